package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/rl1809/train-booking/internal/core/domain"
	"github.com/rl1809/train-booking/internal/metrics"
	"github.com/rl1809/train-booking/internal/port"
)

const defaultTxTimeout = 10 * time.Second

var tracer = otel.Tracer("github.com/rl1809/train-booking/internal/core/service")

// ReservationService is the only writer of reservations. Every Reserve call
// re-reads capacity under the train's exclusive lock, so concurrent calls on
// one train are serialized while calls on different trains run in parallel.
//
// When capacity is marginal, the call that acquires the train lock first wins.
// Request arrival order is not honored.
type ReservationService struct {
	repo      port.DatabaseRepository
	metrics   *metrics.Recorder
	txTimeout time.Duration
	newID     func() string
	now       func() time.Time
}

type ReservationServiceOption func(*ReservationService)

// WithTxTimeout bounds the whole reservation transaction, lock wait included.
func WithTxTimeout(d time.Duration) ReservationServiceOption {
	return func(s *ReservationService) {
		if d > 0 {
			s.txTimeout = d
		}
	}
}

func WithMetrics(rec *metrics.Recorder) ReservationServiceOption {
	return func(s *ReservationService) {
		s.metrics = rec
	}
}

func WithClock(now func() time.Time) ReservationServiceOption {
	return func(s *ReservationService) {
		if now != nil {
			s.now = now
		}
	}
}

func NewReservationService(repo port.DatabaseRepository, opts ...ReservationServiceOption) *ReservationService {
	s := &ReservationService{
		repo:      repo,
		txTimeout: defaultTxTimeout,
		newID:     uuid.NewString,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type ReserveInput struct {
	TrainID   int64
	AccountID int64
	SeatCount int
}

// Reserve atomically checks remaining capacity and persists a reservation
// holding the lowest free seat numbers. Failures are ErrTrainNotFound,
// ErrInvalidSeatCount, ErrInsufficientCapacity or ErrStoreUnavailable; the
// last one is always safe to retry because nothing was committed.
//
// Cancelling ctx does not interrupt a started transaction. It still resolves
// to commit or rollback within the configured transaction timeout.
func (s *ReservationService) Reserve(ctx context.Context, in ReserveInput) (res domain.Reservation, err error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "ReservationService.Reserve", trace.WithAttributes(
		attribute.Int64("train.id", in.TrainID),
		attribute.Int64("account.id", in.AccountID),
		attribute.Int("seat.count", in.SeatCount),
	))
	defer func() {
		s.metrics.ObserveReservation(outcomeOf(err), in.SeatCount, time.Since(start))
		if err != nil {
			span.RecordError(err)
			if errors.Is(err, domain.ErrStoreUnavailable) {
				span.SetStatus(codes.Error, err.Error())
			}
		}
		span.End()
	}()

	if in.SeatCount <= 0 {
		return domain.Reservation{}, domain.ErrInvalidSeatCount
	}

	txCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.txTimeout)
	defer cancel()

	var created domain.Reservation
	err = s.repo.WithTx(txCtx, func(ctx context.Context) error {
		train, err := s.repo.GetTrainForUpdate(ctx, in.TrainID)
		if err != nil {
			return err
		}
		if in.SeatCount > train.Capacity {
			return domain.ErrInvalidSeatCount
		}

		reserved, err := s.repo.SumReservedSeats(ctx, train.ID)
		if err != nil {
			return err
		}
		if train.Capacity-reserved < in.SeatCount {
			return domain.ErrInsufficientCapacity
		}

		taken, err := s.repo.ListAssignedSeats(ctx, train.ID)
		if err != nil {
			return err
		}
		seats, err := lowestFreeSeats(train.Capacity, taken, in.SeatCount)
		if err != nil {
			return err
		}

		res := domain.Reservation{
			ID:          s.newID(),
			AccountID:   in.AccountID,
			TrainID:     train.ID,
			SeatCount:   in.SeatCount,
			SeatNumbers: seats,
			CreatedAt:   s.now(),
		}
		if err := s.repo.CreateReservation(ctx, res); err != nil {
			return err
		}
		created = res
		return nil
	})
	if err != nil {
		err = storeError(err)
		if errors.Is(err, domain.ErrStoreUnavailable) {
			zerolog.Ctx(ctx).Warn().Err(err).Int64("train_id", in.TrainID).Msg("reservation rolled back")
		}
		return domain.Reservation{}, err
	}

	zerolog.Ctx(ctx).Debug().
		Str("booking_id", created.ID).
		Int64("train_id", created.TrainID).
		Ints("seat_numbers", created.SeatNumbers).
		Msg("reservation committed")
	return created, nil
}

// storeError keeps domain failures as they are and folds everything else
// (driver errors, lock wait timeouts, deadlines) into ErrStoreUnavailable.
func storeError(err error) error {
	if err == nil || domain.IsCallerError(err) || errors.Is(err, domain.ErrStoreUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case errors.Is(err, domain.ErrTrainNotFound):
		return metrics.OutcomeTrainNotFound
	case errors.Is(err, domain.ErrInvalidSeatCount):
		return metrics.OutcomeInvalidSeatCount
	case errors.Is(err, domain.ErrInsufficientCapacity):
		return metrics.OutcomeInsufficientCapacity
	default:
		return metrics.OutcomeStoreUnavailable
	}
}
