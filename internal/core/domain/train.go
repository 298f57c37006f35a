package domain

import (
	"math"
	"time"
)

// MaxSeatCapacity is the largest capacity the inventory schema can store.
const MaxSeatCapacity = math.MaxInt32

// Train is a scheduled service with a fixed seat capacity. Capacity never
// changes after creation.
type Train struct {
	ID                   int64
	Name                 string
	Source               string
	Destination          string
	Capacity             int
	ArrivalAtSource      time.Time
	ArrivalAtDestination time.Time
	CreatedAt            time.Time
}

func (t Train) Validate() error {
	if t.Name == "" || t.Source == "" || t.Destination == "" {
		return ErrInvalidTrain
	}
	if t.Capacity <= 0 || t.Capacity > MaxSeatCapacity {
		return ErrInvalidTrain
	}
	if t.ArrivalAtSource.IsZero() || t.ArrivalAtDestination.IsZero() {
		return ErrInvalidTrain
	}
	if t.ArrivalAtDestination.Before(t.ArrivalAtSource) {
		return ErrInvalidTrain
	}
	return nil
}

// Availability is an advisory snapshot of remaining seats on a train.
type Availability struct {
	TrainID        int64
	TrainName      string
	AvailableSeats int
}
