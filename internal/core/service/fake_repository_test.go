package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/rl1809/train-booking/internal/core/domain"
)

type fakeTxKey struct{}

type fakeTx struct {
	pending []domain.Reservation
	held    []chan struct{}
}

// fakeRepo is an in-memory DatabaseRepository with per-train locks that
// honour context deadlines, staged writes that only become visible on commit,
// and hooks for injecting failures.
type fakeRepo struct {
	mu           sync.Mutex
	trains       map[int64]domain.Train
	reservations []domain.Reservation
	locks        map[int64]chan struct{}
	nextTrainID  int64

	beforeCommit func(ctx context.Context) error
	sumErr       error
}

func newFakeRepo(trains ...domain.Train) *fakeRepo {
	f := &fakeRepo{
		trains: make(map[int64]domain.Train),
		locks:  make(map[int64]chan struct{}),
	}
	for _, t := range trains {
		f.trains[t.ID] = t
		if t.ID > f.nextTrainID {
			f.nextTrainID = t.ID
		}
	}
	return f
}

func (f *fakeRepo) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	tx := &fakeTx{}
	defer func() {
		for _, l := range tx.held {
			<-l
		}
	}()

	if err := fn(context.WithValue(ctx, fakeTxKey{}, tx)); err != nil {
		return err
	}
	if f.beforeCommit != nil {
		if err := f.beforeCommit(ctx); err != nil {
			return err
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.reservations = append(f.reservations, tx.pending...)
	return nil
}

func (f *fakeRepo) GetTrainForUpdate(ctx context.Context, trainID int64) (domain.Train, error) {
	tx, ok := ctx.Value(fakeTxKey{}).(*fakeTx)
	if !ok {
		return domain.Train{}, errors.New("GetTrainForUpdate outside transaction")
	}

	f.mu.Lock()
	l, ok := f.locks[trainID]
	if !ok {
		l = make(chan struct{}, 1)
		f.locks[trainID] = l
	}
	f.mu.Unlock()

	select {
	case l <- struct{}{}:
		tx.held = append(tx.held, l)
	case <-ctx.Done():
		return domain.Train{}, fmt.Errorf("lock train %d: %w", trainID, ctx.Err())
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.trains[trainID]
	if !ok {
		return domain.Train{}, domain.ErrTrainNotFound
	}
	return t, nil
}

func (f *fakeRepo) SumReservedSeats(ctx context.Context, trainID int64) (int, error) {
	if f.sumErr != nil {
		return 0, f.sumErr
	}
	total := 0
	for _, r := range f.visible(ctx) {
		if r.TrainID == trainID {
			total += r.SeatCount
		}
	}
	return total, nil
}

func (f *fakeRepo) ListAssignedSeats(ctx context.Context, trainID int64) ([]int, error) {
	var seats []int
	for _, r := range f.visible(ctx) {
		if r.TrainID == trainID {
			seats = append(seats, r.SeatNumbers...)
		}
	}
	return seats, nil
}

func (f *fakeRepo) CreateReservation(ctx context.Context, res domain.Reservation) error {
	taken, _ := f.ListAssignedSeats(ctx, res.TrainID)
	for _, seat := range taken {
		for _, want := range res.SeatNumbers {
			if seat == want {
				return fmt.Errorf("duplicate seat %d on train %d", seat, res.TrainID)
			}
		}
	}

	if tx, ok := ctx.Value(fakeTxKey{}).(*fakeTx); ok {
		tx.pending = append(tx.pending, res)
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reservations = append(f.reservations, res)
	return nil
}

func (f *fakeRepo) GetAvailability(ctx context.Context, trainID int64) (domain.Availability, error) {
	f.mu.Lock()
	t, ok := f.trains[trainID]
	f.mu.Unlock()
	if !ok {
		return domain.Availability{}, domain.ErrTrainNotFound
	}
	return domain.Availability{
		TrainID:        t.ID,
		TrainName:      t.Name,
		AvailableSeats: t.Capacity - f.committedTotal(trainID),
	}, nil
}

func (f *fakeRepo) ListAvailability(ctx context.Context, source, destination string) ([]domain.Availability, error) {
	f.mu.Lock()
	var ids []int64
	for id, t := range f.trains {
		if t.Source == source && t.Destination == destination {
			ids = append(ids, id)
		}
	}
	f.mu.Unlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var out []domain.Availability
	for _, id := range ids {
		a, err := f.GetAvailability(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func (f *fakeRepo) GetReservation(ctx context.Context, reservationID string) (domain.ReservationDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.reservations {
		if r.ID == reservationID {
			t := f.trains[r.TrainID]
			return domain.ReservationDetail{
				Reservation:          r,
				TrainName:            t.Name,
				ArrivalAtSource:      t.ArrivalAtSource,
				ArrivalAtDestination: t.ArrivalAtDestination,
			}, nil
		}
	}
	return domain.ReservationDetail{}, domain.ErrReservationNotFound
}

func (f *fakeRepo) CreateTrain(ctx context.Context, train domain.Train) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextTrainID++
	train.ID = f.nextTrainID
	f.trains[train.ID] = train
	return train.ID, nil
}

// visible returns committed reservations plus the caller's staged ones.
func (f *fakeRepo) visible(ctx context.Context) []domain.Reservation {
	f.mu.Lock()
	out := append([]domain.Reservation(nil), f.reservations...)
	f.mu.Unlock()
	if tx, ok := ctx.Value(fakeTxKey{}).(*fakeTx); ok {
		out = append(out, tx.pending...)
	}
	return out
}

func (f *fakeRepo) committedTotal(trainID int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, r := range f.reservations {
		if r.TrainID == trainID {
			total += r.SeatCount
		}
	}
	return total
}

func (f *fakeRepo) committed() []domain.Reservation {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Reservation(nil), f.reservations...)
}
