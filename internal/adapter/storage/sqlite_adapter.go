package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/rl1809/train-booking/internal/core/domain"
)

// SQLiteAdapter is the embedded inventory store used for local runs, the
// stress tool and tests. Every reservation transaction starts with
// BEGIN IMMEDIATE, which takes SQLite's single write lock. That serializes
// writers across all trains, not only per train; readers are never blocked
// thanks to WAL.
type SQLiteAdapter struct {
	sqlRepository
}

// OpenSQLite opens (or creates) the database file at path. lockWait bounds
// how long a writer waits for the write lock before failing with SQLITE_BUSY.
func OpenSQLite(path string, lockWait time.Duration) (*SQLiteAdapter, error) {
	if lockWait <= 0 {
		lockWait = 5 * time.Second
	}

	params := url.Values{}
	params.Set("_txlock", "immediate")
	params.Set("_busy_timeout", fmt.Sprint(lockWait.Milliseconds()))
	params.Set("_journal_mode", "WAL")
	params.Set("_synchronous", "NORMAL")
	params.Set("_foreign_keys", "on")

	db, err := sql.Open("sqlite3", "file:"+path+"?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(8)

	return &SQLiteAdapter{sqlRepository: sqlRepository{
		db:     db,
		mapErr: mapSQLiteError,
	}}, nil
}

func (s *SQLiteAdapter) Migrate(ctx context.Context) error {
	return applySchema(ctx, s.db, "sqlite.sql")
}

func (s *SQLiteAdapter) DB() *sql.DB {
	return s.db
}

func (s *SQLiteAdapter) Close() error {
	return s.db.Close()
}

func mapSQLiteError(err error) error {
	if errors.Is(err, domain.ErrStoreUnavailable) {
		return err
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && (sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked) {
		return fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
	}
	return err
}
