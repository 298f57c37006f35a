package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rl1809/train-booking/internal/core/domain"
)

// sqlRepository holds the queries shared by the MySQL and SQLite adapters.
// Both use "?" placeholders; they differ in locking and transaction setup.
type sqlRepository struct {
	db        *sql.DB
	txOptions *sql.TxOptions
	lockTrain string // suffix appended to the train select under WithTx
	setupTx   func(ctx context.Context, tx *sql.Tx) error
	mapErr    func(error) error
}

func (r *sqlRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	err := withTx(ctx, r.db, r.txOptions, r.setupTx, fn)
	if err != nil && r.mapErr != nil {
		return r.mapErr(err)
	}
	return err
}

func (r *sqlRepository) GetTrainForUpdate(ctx context.Context, trainID int64) (domain.Train, error) {
	tx := txFromContext(ctx)
	if tx == nil {
		return domain.Train{}, errors.New("get train for update: no transaction in context")
	}

	var t domain.Train
	err := tx.QueryRowContext(ctx, `
		SELECT id, train_name, source, destination, seat_capacity,
		       arrival_time_at_source, arrival_time_at_destination, created_at
		FROM trains WHERE id = ?`+r.lockTrain, trainID,
	).Scan(&t.ID, &t.Name, &t.Source, &t.Destination, &t.Capacity,
		&t.ArrivalAtSource, &t.ArrivalAtDestination, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Train{}, domain.ErrTrainNotFound
	}
	if err != nil {
		return domain.Train{}, fmt.Errorf("lock train: %w", err)
	}
	return t, nil
}

func (r *sqlRepository) SumReservedSeats(ctx context.Context, trainID int64) (int, error) {
	var total int
	err := r.conn(ctx).QueryRowContext(ctx, `
		SELECT COALESCE(SUM(no_of_seats), 0) FROM bookings WHERE train_id = ?`, trainID,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum reserved seats: %w", err)
	}
	return total, nil
}

func (r *sqlRepository) ListAssignedSeats(ctx context.Context, trainID int64) ([]int, error) {
	rows, err := r.conn(ctx).QueryContext(ctx, `
		SELECT seat_number FROM booking_seats WHERE train_id = ? ORDER BY seat_number`, trainID)
	if err != nil {
		return nil, fmt.Errorf("list assigned seats: %w", err)
	}
	return scanSeats(rows)
}

// CreateReservation writes the booking row and every seat row in one
// transaction, joining the caller's when there is one.
func (r *sqlRepository) CreateReservation(ctx context.Context, res domain.Reservation) error {
	if len(res.SeatNumbers) != res.SeatCount {
		return fmt.Errorf("create reservation: %d seat numbers for %d seats", len(res.SeatNumbers), res.SeatCount)
	}

	return r.WithTx(ctx, func(ctx context.Context) error {
		tx := txFromContext(ctx)

		_, err := tx.ExecContext(ctx, `
			INSERT INTO bookings (id, user_id, train_id, no_of_seats, created_at)
			VALUES (?, ?, ?, ?, ?)`,
			res.ID, res.AccountID, res.TrainID, res.SeatCount, res.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert booking: %w", err)
		}

		values := make([]string, 0, len(res.SeatNumbers))
		args := make([]any, 0, 3*len(res.SeatNumbers))
		for _, seat := range res.SeatNumbers {
			values = append(values, "(?, ?, ?)")
			args = append(args, res.ID, res.TrainID, seat)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO booking_seats (booking_id, train_id, seat_number) VALUES `+strings.Join(values, ", "),
			args...,
		)
		if err != nil {
			return fmt.Errorf("insert booking seats: %w", err)
		}
		return nil
	})
}

const availabilitySelect = `
	SELECT t.id, t.train_name,
	       t.seat_capacity - COALESCE((SELECT SUM(b.no_of_seats) FROM bookings b WHERE b.train_id = t.id), 0)
	FROM trains t`

func (r *sqlRepository) GetAvailability(ctx context.Context, trainID int64) (domain.Availability, error) {
	var a domain.Availability
	err := r.db.QueryRowContext(ctx, availabilitySelect+` WHERE t.id = ?`, trainID).
		Scan(&a.TrainID, &a.TrainName, &a.AvailableSeats)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Availability{}, domain.ErrTrainNotFound
	}
	if err != nil {
		return domain.Availability{}, fmt.Errorf("query availability: %w", err)
	}
	return a, nil
}

func (r *sqlRepository) ListAvailability(ctx context.Context, source, destination string) ([]domain.Availability, error) {
	rows, err := r.db.QueryContext(ctx,
		availabilitySelect+` WHERE t.source = ? AND t.destination = ? ORDER BY t.id`, source, destination)
	if err != nil {
		return nil, fmt.Errorf("list availability: %w", err)
	}
	defer rows.Close()

	list := make([]domain.Availability, 0)
	for rows.Next() {
		var a domain.Availability
		if err := rows.Scan(&a.TrainID, &a.TrainName, &a.AvailableSeats); err != nil {
			return nil, fmt.Errorf("scan availability: %w", err)
		}
		list = append(list, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list availability: %w", err)
	}
	return list, nil
}

func (r *sqlRepository) GetReservation(ctx context.Context, reservationID string) (domain.ReservationDetail, error) {
	var d domain.ReservationDetail
	err := r.db.QueryRowContext(ctx, `
		SELECT b.id, b.user_id, b.train_id, b.no_of_seats, b.created_at,
		       t.train_name, t.arrival_time_at_source, t.arrival_time_at_destination
		FROM bookings b INNER JOIN trains t ON b.train_id = t.id
		WHERE b.id = ?`, reservationID,
	).Scan(&d.ID, &d.AccountID, &d.TrainID, &d.SeatCount, &d.CreatedAt,
		&d.TrainName, &d.ArrivalAtSource, &d.ArrivalAtDestination)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ReservationDetail{}, domain.ErrReservationNotFound
	}
	if err != nil {
		return domain.ReservationDetail{}, fmt.Errorf("query booking: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT seat_number FROM booking_seats WHERE booking_id = ? ORDER BY seat_number`, reservationID)
	if err != nil {
		return domain.ReservationDetail{}, fmt.Errorf("query booking seats: %w", err)
	}
	d.SeatNumbers, err = scanSeats(rows)
	if err != nil {
		return domain.ReservationDetail{}, err
	}
	return d, nil
}

func (r *sqlRepository) CreateTrain(ctx context.Context, t domain.Train) (int64, error) {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	result, err := r.conn(ctx).ExecContext(ctx, `
		INSERT INTO trains (train_name, source, destination, seat_capacity,
		                    arrival_time_at_source, arrival_time_at_destination, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.Name, t.Source, t.Destination, t.Capacity,
		t.ArrivalAtSource.UTC(), t.ArrivalAtDestination.UTC(), t.CreatedAt.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("insert train: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert train: %w", err)
	}
	return id, nil
}

func (r *sqlRepository) conn(ctx context.Context) querier {
	if tx := txFromContext(ctx); tx != nil {
		return tx
	}
	return r.db
}

func scanSeats(rows *sql.Rows) ([]int, error) {
	defer rows.Close()

	seats := make([]int, 0)
	for rows.Next() {
		var seat int
		if err := rows.Scan(&seat); err != nil {
			return nil, fmt.Errorf("scan seat: %w", err)
		}
		seats = append(seats, seat)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scan seats: %w", err)
	}
	return seats, nil
}
