package domain

import "time"

// Reservation binds an account, a train and a set of seat numbers.
// SeatNumbers is sorted ascending and len(SeatNumbers) == SeatCount.
type Reservation struct {
	ID          string
	AccountID   int64
	TrainID     int64
	SeatCount   int
	SeatNumbers []int
	CreatedAt   time.Time
}

// ReservationDetail is a reservation joined with its train's metadata.
type ReservationDetail struct {
	Reservation
	TrainName            string
	ArrivalAtSource      time.Time
	ArrivalAtDestination time.Time
}
