package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/rl1809/train-booking/internal/core/domain"
	"github.com/rl1809/train-booking/internal/port"
)

// Reserver is the engine contract the booking facade delegates to.
type Reserver interface {
	Reserve(ctx context.Context, in ReserveInput) (domain.Reservation, error)
}

// BookingService sits between the transports and the engine: it guards
// against replayed requests, delegates the reservation, announces it, and
// serves reservation lookups. It never retries on the caller's behalf.
type BookingService struct {
	engine Reserver
	repo   port.DatabaseRepository
	cache  port.CacheRepository
	events port.EventPublisher
}

type BookingServiceOption func(*BookingService)

// WithIdempotency enables request_id deduplication backed by cache.
func WithIdempotency(cache port.CacheRepository) BookingServiceOption {
	return func(s *BookingService) {
		s.cache = cache
	}
}

func WithEventPublisher(events port.EventPublisher) BookingServiceOption {
	return func(s *BookingService) {
		s.events = events
	}
}

func NewBookingService(engine Reserver, repo port.DatabaseRepository, opts ...BookingServiceOption) *BookingService {
	s := &BookingService{
		engine: engine,
		repo:   repo,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type BookInput struct {
	RequestID string
	AccountID int64
	TrainID   int64
	SeatCount int
}

func (s *BookingService) Book(ctx context.Context, in BookInput) (domain.Reservation, error) {
	idempotencyKey := ""
	if s.cache != nil && in.RequestID != "" {
		idempotencyKey = fmt.Sprintf("booking:%d:%s", in.AccountID, in.RequestID)

		ok, err := s.cache.SetIdempotency(ctx, idempotencyKey)
		if err != nil {
			return domain.Reservation{}, fmt.Errorf("%w: idempotency check failed: %w", domain.ErrStoreUnavailable, err)
		}
		if !ok {
			return domain.Reservation{}, domain.ErrDuplicateRequest
		}
	}

	res, err := s.engine.Reserve(ctx, ReserveInput{
		TrainID:   in.TrainID,
		AccountID: in.AccountID,
		SeatCount: in.SeatCount,
	})
	if err != nil {
		if idempotencyKey != "" {
			if releaseErr := s.cache.ReleaseIdempotency(context.WithoutCancel(ctx), idempotencyKey); releaseErr != nil {
				zerolog.Ctx(ctx).Warn().Err(releaseErr).Str("key", idempotencyKey).Msg("failed to release idempotency key")
			}
		}
		return domain.Reservation{}, err
	}

	if s.events != nil {
		if err := s.events.PublishReservationCreated(context.WithoutCancel(ctx), res); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Str("booking_id", res.ID).Msg("failed to publish reservation event")
		}
	}

	return res, nil
}

func (s *BookingService) GetBooking(ctx context.Context, bookingID string) (domain.ReservationDetail, error) {
	if bookingID == "" {
		return domain.ReservationDetail{}, domain.ErrReservationNotFound
	}
	detail, err := s.repo.GetReservation(ctx, bookingID)
	if err != nil {
		return domain.ReservationDetail{}, storeError(err)
	}
	return detail, nil
}

// CreateTrain registers a new train. It is an administrative path and never
// touches reservations.
func (s *BookingService) CreateTrain(ctx context.Context, train domain.Train) (int64, error) {
	if err := train.Validate(); err != nil {
		return 0, err
	}
	id, err := s.repo.CreateTrain(ctx, train)
	if err != nil {
		return 0, storeError(err)
	}
	return id, nil
}
