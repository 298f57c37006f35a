package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/rl1809/train-booking/internal/core/domain"
)

const (
	mysqlErrLockWaitTimeout = 1205
	mysqlErrDeadlock        = 1213
)

// MySQLAdapter is the production inventory store. The per-train lock is an
// InnoDB row lock on the train (SELECT ... FOR UPDATE) under READ COMMITTED,
// so reservations on different trains never wait on each other.
type MySQLAdapter struct {
	sqlRepository
	lockWaitTimeout time.Duration
}

type MySQLOption func(*MySQLAdapter)

// WithLockWaitTimeout bounds how long a reservation waits for the train lock.
// InnoDB counts in whole seconds, so the value is rounded up to at least 1s.
func WithLockWaitTimeout(d time.Duration) MySQLOption {
	return func(m *MySQLAdapter) {
		if d > 0 {
			m.lockWaitTimeout = d
		}
	}
}

func NewMySQLAdapter(db *sql.DB, opts ...MySQLOption) *MySQLAdapter {
	m := &MySQLAdapter{lockWaitTimeout: 5 * time.Second}
	for _, opt := range opts {
		opt(m)
	}
	m.sqlRepository = sqlRepository{
		db:        db,
		txOptions: &sql.TxOptions{Isolation: sql.LevelReadCommitted},
		lockTrain: " FOR UPDATE",
		setupTx:   m.setLockWaitTimeout,
		mapErr:    mapMySQLError,
	}
	return m
}

// Migrate creates the tables when they do not exist.
func (m *MySQLAdapter) Migrate(ctx context.Context) error {
	return applySchema(ctx, m.db, "mysql.sql")
}

func (m *MySQLAdapter) setLockWaitTimeout(ctx context.Context, tx *sql.Tx) error {
	seconds := int(math.Ceil(m.lockWaitTimeout.Seconds()))
	if seconds < 1 {
		seconds = 1
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("SET SESSION innodb_lock_wait_timeout = %d", seconds)); err != nil {
		return fmt.Errorf("set lock wait timeout: %w", err)
	}
	return nil
}

func mapMySQLError(err error) error {
	if errors.Is(err, domain.ErrStoreUnavailable) {
		return err
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && (myErr.Number == mysqlErrLockWaitTimeout || myErr.Number == mysqlErrDeadlock) {
		return fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
	}
	return err
}
