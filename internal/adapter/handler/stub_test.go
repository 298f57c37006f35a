package handler

import (
	"context"
	"sync"

	"github.com/rl1809/train-booking/internal/core/domain"
	"github.com/rl1809/train-booking/internal/core/service"
)

type stubBookings struct {
	mu        sync.Mutex
	result    domain.Reservation
	bookErr   error
	detail    domain.ReservationDetail
	detailErr error
	trainID   int64
	trainErr  error

	booked []service.BookInput
	trains []domain.Train
}

func (s *stubBookings) Book(_ context.Context, in service.BookInput) (domain.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.booked = append(s.booked, in)
	if s.bookErr != nil {
		return domain.Reservation{}, s.bookErr
	}
	return s.result, nil
}

func (s *stubBookings) GetBooking(_ context.Context, _ string) (domain.ReservationDetail, error) {
	if s.detailErr != nil {
		return domain.ReservationDetail{}, s.detailErr
	}
	return s.detail, nil
}

func (s *stubBookings) CreateTrain(_ context.Context, train domain.Train) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trains = append(s.trains, train)
	if s.trainErr != nil {
		return 0, s.trainErr
	}
	return s.trainID, nil
}

type stubAvailability struct {
	avail    domain.Availability
	availErr error
	list     []domain.Availability
	listErr  error
}

func (s *stubAvailability) Available(_ context.Context, _ int64) (domain.Availability, error) {
	return s.avail, s.availErr
}

func (s *stubAvailability) List(_ context.Context, _, _ string) ([]domain.Availability, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.list, nil
}
