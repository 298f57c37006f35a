package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/rl1809/train-booking/internal/core/domain"
	"github.com/rl1809/train-booking/internal/core/service"
	"github.com/rl1809/train-booking/internal/metrics"
)

const maxBodyBytes = 1 << 20

type BookingUseCase interface {
	Book(ctx context.Context, in service.BookInput) (domain.Reservation, error)
	GetBooking(ctx context.Context, bookingID string) (domain.ReservationDetail, error)
	CreateTrain(ctx context.Context, train domain.Train) (int64, error)
}

type AvailabilityUseCase interface {
	Available(ctx context.Context, trainID int64) (domain.Availability, error)
	List(ctx context.Context, source, destination string) ([]domain.Availability, error)
}

type HTTPHandler struct {
	bookings     BookingUseCase
	availability AvailabilityUseCase
	auth         *Authenticator
	authz        *Authorizer
}

type BookHTTPRequest struct {
	UserID    *int64 `json:"user_id"`
	NoOfSeats int    `json:"no_of_seats"`
	RequestID string `json:"request_id"`
}

type BookHTTPResponse struct {
	Message     string `json:"message"`
	BookingID   string `json:"booking_id"`
	SeatNumbers []int  `json:"seat_numbers"`
}

type CreateTrainHTTPRequest struct {
	TrainName                string    `json:"train_name"`
	Source                   string    `json:"source"`
	Destination              string    `json:"destination"`
	SeatCapacity             int       `json:"seat_capacity"`
	ArrivalTimeAtSource      timestamp `json:"arrival_time_at_source"`
	ArrivalTimeAtDestination timestamp `json:"arrival_time_at_destination"`
}

type CreateTrainHTTPResponse struct {
	Message string `json:"message"`
	TrainID int64  `json:"train_id"`
}

func NewHTTPHandler(bookings BookingUseCase, availability AvailabilityUseCase, auth *Authenticator, authz *Authorizer) *HTTPHandler {
	return &HTTPHandler{
		bookings:     bookings,
		availability: availability,
		auth:         auth,
		authz:        authz,
	}
}

// Routes builds the router. metricsHandler is mounted at /metrics when set.
func (h *HTTPHandler) Routes(logger zerolog.Logger, rec *metrics.Recorder, metricsHandler http.Handler) http.Handler {
	r := mux.NewRouter()
	r.Use(RequestLogger(logger, rec))
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, codeNotFound, "Not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed")
	})

	r.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)
	if metricsHandler != nil {
		r.Handle("/metrics", metricsHandler).Methods(http.MethodGet)
	}

	r.HandleFunc("/api/trains/availability", h.ListAvailability).Methods(http.MethodGet)
	r.HandleFunc("/api/trains/create", h.requireToken(h.requireAdminKey(h.CreateTrain))).Methods(http.MethodPost)
	r.HandleFunc("/api/trains/{train_id}/availability", h.Availability).Methods(http.MethodGet)
	r.HandleFunc("/api/trains/{train_id}/book", h.requireToken(h.Book)).Methods(http.MethodPost)
	r.HandleFunc("/api/bookings/{booking_id}", h.requireToken(h.GetBooking)).Methods(http.MethodGet)

	return r
}

func (h *HTTPHandler) ListAvailability(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	list, err := h.availability.List(r.Context(), q.Get("source"), q.Get("destination"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	resp := make([]TrainAvailability, 0, len(list))
	for _, a := range list {
		resp = append(resp, toTrainAvailability(a))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *HTTPHandler) Availability(w http.ResponseWriter, r *http.Request) {
	trainID, ok := parseTrainID(w, r)
	if !ok {
		return
	}

	a, err := h.availability.Available(r.Context(), trainID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTrainAvailability(a))
}

func (h *HTTPHandler) Book(w http.ResponseWriter, r *http.Request) {
	trainID, ok := parseTrainID(w, r)
	if !ok {
		return
	}

	var req BookHTTPRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "Invalid request body")
		return
	}

	p, _ := principalFrom(r.Context())
	accountID := p.UserID
	if req.UserID != nil {
		accountID = *req.UserID
	}
	if !h.authorize(w, r, actionBook, accountID) {
		return
	}

	res, err := h.bookings.Book(r.Context(), service.BookInput{
		RequestID: req.RequestID,
		AccountID: accountID,
		TrainID:   trainID,
		SeatCount: req.NoOfSeats,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, BookHTTPResponse{
		Message:     "Seat booked successfully",
		BookingID:   res.ID,
		SeatNumbers: res.SeatNumbers,
	})
}

func (h *HTTPHandler) GetBooking(w http.ResponseWriter, r *http.Request) {
	detail, err := h.bookings.GetBooking(r.Context(), mux.Vars(r)["booking_id"])
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	// Bookings the caller may not read are reported as missing so ids cannot
	// be probed for existence.
	p, _ := principalFrom(r.Context())
	ok, err := h.authz.Allow(r.Context(), p, actionReadBooking, detail.AccountID)
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Str("action", actionReadBooking).Msg("authorization failed")
		writeError(w, http.StatusInternalServerError, codeInternalError, "Internal server error")
		return
	}
	if !ok {
		writeServiceError(w, r, domain.ErrReservationNotFound)
		return
	}
	writeJSON(w, http.StatusOK, toBookingDetail(detail))
}

func (h *HTTPHandler) CreateTrain(w http.ResponseWriter, r *http.Request) {
	var req CreateTrainHTTPRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "Invalid request body")
		return
	}
	if !h.authorize(w, r, actionCreateTrain, 0) {
		return
	}

	id, err := h.bookings.CreateTrain(r.Context(), domain.Train{
		Name:                 req.TrainName,
		Source:               req.Source,
		Destination:          req.Destination,
		Capacity:             req.SeatCapacity,
		ArrivalAtSource:      req.ArrivalTimeAtSource.Time,
		ArrivalAtDestination: req.ArrivalTimeAtDestination.Time,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	zerolog.Ctx(r.Context()).Info().Int64("train_id", id).Msg("train created")
	writeJSON(w, http.StatusOK, CreateTrainHTTPResponse{Message: "Train added successfully", TrainID: id})
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// parseTrainID reads {train_id}. Ids that cannot name a train are reported
// as not found.
func parseTrainID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["train_id"], 10, 64)
	if err != nil || id <= 0 {
		writeServiceError(w, r, domain.ErrTrainNotFound)
		return 0, false
	}
	return id, true
}
