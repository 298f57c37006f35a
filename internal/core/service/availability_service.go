package service

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/rl1809/train-booking/internal/core/domain"
	"github.com/rl1809/train-booking/internal/port"
)

// AvailabilityService answers display queries. Its results are snapshots that
// never take the train lock; a later Reserve may still be rejected.
type AvailabilityService struct {
	repo port.DatabaseRepository
}

func NewAvailabilityService(repo port.DatabaseRepository) *AvailabilityService {
	return &AvailabilityService{repo: repo}
}

// Available returns capacity minus reserved seats for one train.
func (s *AvailabilityService) Available(ctx context.Context, trainID int64) (domain.Availability, error) {
	ctx, span := tracer.Start(ctx, "AvailabilityService.Available",
		trace.WithAttributes(attribute.Int64("train.id", trainID)))
	defer span.End()

	a, err := s.repo.GetAvailability(ctx, trainID)
	if err != nil {
		span.RecordError(err)
		return domain.Availability{}, storeError(err)
	}
	if a.AvailableSeats < 0 {
		a.AvailableSeats = 0
	}
	return a, nil
}

// List returns availability for every train between source and destination.
// The result is never nil.
func (s *AvailabilityService) List(ctx context.Context, source, destination string) ([]domain.Availability, error) {
	ctx, span := tracer.Start(ctx, "AvailabilityService.List", trace.WithAttributes(
		attribute.String("route.source", source),
		attribute.String("route.destination", destination),
	))
	defer span.End()

	list, err := s.repo.ListAvailability(ctx, source, destination)
	if err != nil {
		span.RecordError(err)
		return nil, storeError(err)
	}
	out := make([]domain.Availability, 0, len(list))
	for _, a := range list {
		if a.AvailableSeats < 0 {
			a.AvailableSeats = 0
		}
		out = append(out, a)
	}
	return out, nil
}
