package port

import (
	"context"

	"github.com/rl1809/train-booking/internal/core/domain"
)

type EventPublisher interface {
	// PublishReservationCreated announces a committed reservation
	PublishReservationCreated(ctx context.Context, res domain.Reservation) error
}
