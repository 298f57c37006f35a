package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rl1809/train-booking/internal/core/domain"
	"github.com/rl1809/train-booking/internal/core/service"
	"github.com/rl1809/train-booking/internal/port"
)

type report struct {
	Capacity     int
	Requests     int
	SeatsEach    int
	Successful   int
	Insufficient int
	Unavailable  int
	Other        int
	Reserved     int
	AssignedSeat int
	Duplicates   int
	OutOfRange   int
	Duration     time.Duration
}

// runStress seeds a fresh train and fires every request at once.
func runStress(ctx context.Context, store port.DatabaseRepository, opts *options) (report, error) {
	departs := time.Now().UTC().Add(24 * time.Hour).Truncate(time.Second)
	trainID, err := store.CreateTrain(ctx, domain.Train{
		Name:                 fmt.Sprintf("stress-%d", time.Now().UnixNano()),
		Source:               "Stress",
		Destination:          "Test",
		Capacity:             opts.capacity,
		ArrivalAtSource:      departs,
		ArrivalAtDestination: departs.Add(time.Hour),
	})
	if err != nil {
		return report{}, fmt.Errorf("seed train: %w", err)
	}

	engine := service.NewReservationService(store, service.WithTxTimeout(opts.txTimeout))

	r := report{Capacity: opts.capacity, Requests: opts.requests, SeatsEach: opts.seats}
	var mu sync.Mutex
	start := make(chan struct{})

	var wg sync.WaitGroup
	for i := 0; i < opts.requests; i++ {
		accountID := int64(i + 1)
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := engine.Reserve(ctx, service.ReserveInput{TrainID: trainID, AccountID: accountID, SeatCount: opts.seats})

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				r.Successful++
			case errors.Is(err, domain.ErrInsufficientCapacity):
				r.Insufficient++
			case errors.Is(err, domain.ErrStoreUnavailable):
				r.Unavailable++
			default:
				r.Other++
			}
		}()
	}

	began := time.Now()
	close(start)
	wg.Wait()
	r.Duration = time.Since(began)

	if r.Reserved, err = store.SumReservedSeats(ctx, trainID); err != nil {
		return report{}, err
	}
	seats, err := store.ListAssignedSeats(ctx, trainID)
	if err != nil {
		return report{}, err
	}
	r.AssignedSeat = len(seats)
	seen := make(map[int]bool, len(seats))
	for _, s := range seats {
		if seen[s] {
			r.Duplicates++
		}
		if s < 1 || s > opts.capacity {
			r.OutOfRange++
		}
		seen[s] = true
	}
	return r, nil
}

func (r report) capacityHeld() bool {
	return r.Reserved <= r.Capacity && r.Reserved == r.Successful*r.SeatsEach
}

func (r report) seatsUnique() bool {
	return r.Duplicates == 0 && r.OutOfRange == 0 && r.AssignedSeat == r.Reserved
}

// exhausted reports whether every seat that could be sold was sold. It only
// holds when no request timed out on the lock.
func (r report) exhausted() bool {
	want := r.Capacity / r.SeatsEach
	if r.Requests < want {
		want = r.Requests
	}
	return r.Unavailable > 0 || r.Successful == want
}

func (r report) passed() bool {
	return r.capacityHeld() && r.seatsUnique() && r.exhausted() && r.Other == 0
}

func (r report) print(w io.Writer) {
	fmt.Fprintln(w, "========== STRESS TEST RESULTS ==========")
	fmt.Fprintf(w, "Capacity:         %d\n", r.Capacity)
	fmt.Fprintf(w, "Total Requests:   %d x %d seats\n", r.Requests, r.SeatsEach)
	fmt.Fprintf(w, "Successful:       %d\n", r.Successful)
	fmt.Fprintf(w, "Sold out:         %d\n", r.Insufficient)
	fmt.Fprintf(w, "Lock timeouts:    %d\n", r.Unavailable)
	fmt.Fprintf(w, "Other failures:   %d\n", r.Other)
	fmt.Fprintf(w, "Reserved seats:   %d\n", r.Reserved)
	fmt.Fprintf(w, "Duration:         %v\n", r.Duration)
	fmt.Fprintln(w, "==========================================")

	check(w, r.capacityHeld(), "reserved seats never exceed capacity")
	check(w, r.seatsUnique(), "no seat number assigned twice")
	check(w, r.exhausted(), "every available seat was sold")
	check(w, r.Other == 0, "no unexpected failures")
}

func check(w io.Writer, ok bool, what string) {
	if ok {
		fmt.Fprintf(w, "PASS: %s\n", what)
		return
	}
	fmt.Fprintf(w, "FAIL: %s\n", what)
}
