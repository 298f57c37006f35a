package port

import (
	"context"

	"github.com/rl1809/train-booking/internal/core/domain"
)

type DatabaseRepository interface {
	// WithTx runs fn inside one transaction. The transaction travels in the
	// context handed to fn; it commits when fn returns nil and rolls back on
	// any error or panic.
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error

	// GetTrainForUpdate reads the train and takes its exclusive per-train lock
	// until the surrounding transaction ends. Requires WithTx.
	GetTrainForUpdate(ctx context.Context, trainID int64) (domain.Train, error)

	// SumReservedSeats returns the reserved seat total for a train, 0 when none.
	SumReservedSeats(ctx context.Context, trainID int64) (int, error)

	// ListAssignedSeats returns every seat number already held on the train.
	ListAssignedSeats(ctx context.Context, trainID int64) ([]int, error)

	// CreateReservation writes the reservation row and its seat numbers.
	CreateReservation(ctx context.Context, res domain.Reservation) error

	// GetAvailability is a lock-free snapshot read for one train.
	GetAvailability(ctx context.Context, trainID int64) (domain.Availability, error)

	// ListAvailability is a lock-free snapshot read for every train on a route.
	ListAvailability(ctx context.Context, source, destination string) ([]domain.Availability, error)

	GetReservation(ctx context.Context, reservationID string) (domain.ReservationDetail, error)

	CreateTrain(ctx context.Context, train domain.Train) (int64, error)
}
