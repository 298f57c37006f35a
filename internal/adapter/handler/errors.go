package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/rl1809/train-booking/internal/core/domain"
)

const (
	codeTrainNotFound        = "train_not_found"
	codeInvalidSeatCount     = "invalid_seat_count"
	codeInsufficientCapacity = "insufficient_capacity"
	codeStoreUnavailable     = "store_unavailable"
	codeBookingNotFound      = "booking_not_found"
	codeDuplicateRequest     = "duplicate_request"
	codeInvalidTrain         = "invalid_train"
	codeInvalidRequestBody   = "invalid_request_body"
	codeForbidden            = "forbidden"
	codeNotFound             = "not_found"
	codeInternalError        = "internal_error"
)

type errorResponse struct {
	Message    string `json:"message"`
	StatusCode int    `json:"status_code"`
	Code       string `json:"code"`
}

type authErrorResponse struct {
	Status     string `json:"status"`
	StatusCode int    `json:"status_code"`
}

// classify maps a service error to its HTTP status, code and public message.
func classify(err error) (int, string, string) {
	switch {
	case errors.Is(err, domain.ErrTrainNotFound):
		return http.StatusNotFound, codeTrainNotFound, "Train not found"
	case errors.Is(err, domain.ErrInvalidSeatCount):
		return http.StatusBadRequest, codeInvalidSeatCount, "Invalid number of seats"
	case errors.Is(err, domain.ErrInsufficientCapacity):
		return http.StatusBadRequest, codeInsufficientCapacity, "Not enough seats available"
	case errors.Is(err, domain.ErrReservationNotFound):
		return http.StatusNotFound, codeBookingNotFound, "Booking not found"
	case errors.Is(err, domain.ErrDuplicateRequest):
		return http.StatusConflict, codeDuplicateRequest, "Duplicate request"
	case errors.Is(err, domain.ErrInvalidTrain):
		return http.StatusBadRequest, codeInvalidTrain, "Invalid train"
	case errors.Is(err, domain.ErrStoreUnavailable):
		return http.StatusInternalServerError, codeStoreUnavailable, "Service temporarily unavailable, please retry"
	default:
		return http.StatusInternalServerError, codeInternalError, "Internal server error"
	}
}

func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, message := classify(err)
	if status >= http.StatusInternalServerError {
		zerolog.Ctx(r.Context()).Error().Err(err).Str("code", code).Msg("request failed")
	}
	writeError(w, status, code, message)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Message: message, StatusCode: status, Code: code})
}

func writeAuthError(w http.ResponseWriter, status int) {
	writeJSON(w, status, authErrorResponse{Status: http.StatusText(status), StatusCode: status})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
