package handler

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/rl1809/train-booking/internal/core/domain"
)

type TrainAvailability struct {
	TrainID        int64  `json:"train_id"`
	TrainName      string `json:"train_name"`
	AvailableSeats int    `json:"available_seats"`
}

func toTrainAvailability(a domain.Availability) TrainAvailability {
	return TrainAvailability{TrainID: a.TrainID, TrainName: a.TrainName, AvailableSeats: a.AvailableSeats}
}

type BookingDetail struct {
	BookingID                string    `json:"booking_id"`
	TrainID                  int64     `json:"train_id"`
	TrainName                string    `json:"train_name"`
	UserID                   int64     `json:"user_id"`
	NoOfSeats                int       `json:"no_of_seats"`
	SeatNumbers              []int     `json:"seat_numbers"`
	ArrivalTimeAtSource      time.Time `json:"arrival_time_at_source"`
	ArrivalTimeAtDestination time.Time `json:"arrival_time_at_destination"`
}

func toBookingDetail(d domain.ReservationDetail) BookingDetail {
	return BookingDetail{
		BookingID:                d.ID,
		TrainID:                  d.TrainID,
		TrainName:                d.TrainName,
		UserID:                   d.AccountID,
		NoOfSeats:                d.SeatCount,
		SeatNumbers:              d.SeatNumbers,
		ArrivalTimeAtSource:      d.ArrivalAtSource,
		ArrivalTimeAtDestination: d.ArrivalAtDestination,
	}
}

// timestamp accepts RFC 3339 and the "YYYY-MM-DD HH:MM:SS" form the admin
// tooling sends. The latter is read as UTC.
type timestamp struct {
	time.Time
}

var timestampLayouts = []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02T15:04:05"}

func (t *timestamp) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("invalid timestamp %q", s)
}
