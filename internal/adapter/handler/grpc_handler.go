package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/rl1809/train-booking/internal/core/domain"
	"github.com/rl1809/train-booking/internal/core/service"
)

var protectedMethods = map[string]bool{
	methodReserve:    true,
	methodGetBooking: true,
}

type GRPCHandler struct {
	bookings     BookingUseCase
	availability AvailabilityUseCase
	authz        *Authorizer
}

func NewGRPCHandler(bookings BookingUseCase, availability AvailabilityUseCase, authz *Authorizer) *GRPCHandler {
	return &GRPCHandler{bookings: bookings, availability: availability, authz: authz}
}

func (h *GRPCHandler) Reserve(ctx context.Context, req *ReserveRequest) (*ReserveResponse, error) {
	p, _ := principalFrom(ctx)
	accountID := req.UserID
	if accountID == 0 {
		accountID = p.UserID
	}
	if code, msg, ok := h.authorize(ctx, p, actionBook, accountID); !ok {
		return &ReserveResponse{Success: false, Message: msg, Code: code}, nil
	}

	res, err := h.bookings.Book(ctx, service.BookInput{
		RequestID: req.RequestID,
		AccountID: accountID,
		TrainID:   req.TrainID,
		SeatCount: req.NoOfSeats,
	})
	if err != nil {
		code, msg := grpcFailure(ctx, err)
		return &ReserveResponse{Success: false, Message: msg, Code: code}, nil
	}

	return &ReserveResponse{
		Success:     true,
		Message:     "Seat booked successfully",
		BookingID:   res.ID,
		SeatNumbers: res.SeatNumbers,
	}, nil
}

func (h *GRPCHandler) Availability(ctx context.Context, req *AvailabilityRequest) (*AvailabilityResponse, error) {
	a, err := h.availability.Available(ctx, req.TrainID)
	if err != nil {
		code, msg := grpcFailure(ctx, err)
		return &AvailabilityResponse{Success: false, Message: msg, Code: code, TrainID: req.TrainID}, nil
	}
	return &AvailabilityResponse{
		Success:        true,
		TrainID:        a.TrainID,
		TrainName:      a.TrainName,
		AvailableSeats: a.AvailableSeats,
	}, nil
}

func (h *GRPCHandler) ListAvailability(ctx context.Context, req *ListAvailabilityRequest) (*ListAvailabilityResponse, error) {
	list, err := h.availability.List(ctx, req.Source, req.Destination)
	if err != nil {
		_, msg := grpcFailure(ctx, err)
		if errors.Is(err, domain.ErrStoreUnavailable) {
			return nil, status.Error(codes.Unavailable, msg)
		}
		return nil, status.Error(codes.Internal, msg)
	}

	resp := &ListAvailabilityResponse{Trains: make([]TrainAvailability, 0, len(list))}
	for _, a := range list {
		resp.Trains = append(resp.Trains, toTrainAvailability(a))
	}
	return resp, nil
}

func (h *GRPCHandler) GetBooking(ctx context.Context, req *GetBookingRequest) (*GetBookingResponse, error) {
	detail, err := h.bookings.GetBooking(ctx, req.BookingID)
	if err != nil {
		code, msg := grpcFailure(ctx, err)
		return &GetBookingResponse{Success: false, Message: msg, Code: code}, nil
	}

	p, _ := principalFrom(ctx)
	if code, msg, ok := h.authorize(ctx, p, actionReadBooking, detail.AccountID); !ok {
		if code == codeForbidden {
			code, msg = grpcFailure(ctx, domain.ErrReservationNotFound)
		}
		return &GetBookingResponse{Success: false, Message: msg, Code: code}, nil
	}

	booking := toBookingDetail(detail)
	return &GetBookingResponse{Success: true, Booking: &booking}, nil
}

func (h *GRPCHandler) authorize(ctx context.Context, p Principal, action string, ownerID int64) (string, string, bool) {
	ok, err := h.authz.Allow(ctx, p, action, ownerID)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("action", action).Msg("authorization failed")
		return codeInternalError, "Internal server error", false
	}
	if !ok {
		return codeForbidden, "Forbidden", false
	}
	return "", "", true
}

func grpcFailure(ctx context.Context, err error) (string, string) {
	httpStatus, code, msg := classify(err)
	if httpStatus >= http.StatusInternalServerError {
		zerolog.Ctx(ctx).Error().Err(err).Str("code", code).Msg("rpc failed")
	}
	return code, msg
}

// UnaryLoggingInterceptor gives every call a request-scoped logger and logs
// its completion.
func UnaryLoggingInterceptor(base zerolog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()

		requestID := firstMetadata(ctx, "x-request-id")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		logger := base.With().
			Str("request_id", requestID).
			Str("method", info.FullMethod).
			Logger()

		resp, err := handler(logger.WithContext(ctx), req)

		logger.Info().
			Str("status", status.Code(err).String()).
			Dur("duration", time.Since(start)).
			Msg("rpc")
		return resp, err
	}
}

// UnaryAuthInterceptor requires a bearer token in the authorization metadata
// for Reserve and GetBooking.
func UnaryAuthInterceptor(auth *Authenticator) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if !protectedMethods[info.FullMethod] {
			return handler(ctx, req)
		}

		p, err := auth.ParseToken(bearerToken(firstMetadata(ctx, "authorization")))
		if errors.Is(err, errMissingToken) {
			return nil, status.Error(codes.Unauthenticated, "Unauthorized")
		}
		if err != nil {
			return nil, status.Error(codes.PermissionDenied, "Forbidden")
		}
		p.Admin = auth.IsAdminKey(firstMetadata(ctx, "x-api-key"))

		return handler(withPrincipal(ctx, p), req)
	}
}

func firstMetadata(ctx context.Context, key string) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	if values := md.Get(key); len(values) > 0 {
		return values[0]
	}
	return ""
}
