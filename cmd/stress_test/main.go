package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/rl1809/train-booking/internal/adapter/storage"
	"github.com/rl1809/train-booking/internal/config"
	"github.com/rl1809/train-booking/internal/port"
)

type options struct {
	driver    string
	dsn       string
	path      string
	capacity  int
	requests  int
	seats     int
	lockWait  time.Duration
	txTimeout time.Duration
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:          "stress_test",
		Short:        "Fire concurrent reservations at one train and verify it is never oversold",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.capacity <= 0 || opts.requests <= 0 || opts.seats <= 0 {
				return fmt.Errorf("capacity, requests and seats must be positive")
			}

			ctx := cmd.Context()
			store, cleanup, err := openStore(ctx, opts)
			if err != nil {
				return err
			}
			defer cleanup()

			report, err := runStress(ctx, store, opts)
			if err != nil {
				return err
			}
			report.print(cmd.OutOrStdout())
			if !report.passed() {
				return fmt.Errorf("invariant violated")
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.driver, "driver", config.DriverSQLite, "store driver (sqlite|mysql)")
	f.StringVar(&opts.dsn, "dsn", "root:root@tcp(localhost:3306)/train_booking?parseTime=true", "MySQL DSN")
	f.StringVar(&opts.path, "sqlite-path", "", "SQLite file (default: a temporary file)")
	f.IntVar(&opts.capacity, "capacity", 20, "seat capacity of the seeded train")
	f.IntVar(&opts.requests, "requests", 50, "concurrent reservation requests")
	f.IntVar(&opts.seats, "seats", 1, "seats per request")
	f.DurationVar(&opts.lockWait, "lock-wait", 5*time.Second, "bounded wait on the train lock")
	f.DurationVar(&opts.txTimeout, "tx-timeout", 10*time.Second, "deadline of one reservation transaction")

	return cmd
}

type stressStore interface {
	port.DatabaseRepository
	Migrate(ctx context.Context) error
}

func openStore(ctx context.Context, opts *options) (stressStore, func(), error) {
	var store stressStore
	var cleanup func()

	switch opts.driver {
	case config.DriverMySQL:
		db, err := sql.Open("mysql", opts.dsn)
		if err != nil {
			return nil, nil, err
		}
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("failed to connect mysql: %w", err)
		}
		store = storage.NewMySQLAdapter(db, storage.WithLockWaitTimeout(opts.lockWait))
		cleanup = func() { db.Close() }
	case config.DriverSQLite:
		path := opts.path
		dir := ""
		if path == "" {
			var err error
			dir, err = os.MkdirTemp("", "train-booking-stress-")
			if err != nil {
				return nil, nil, err
			}
			path = filepath.Join(dir, "stress.db")
		}
		s, err := storage.OpenSQLite(path, opts.lockWait)
		if err != nil {
			return nil, nil, err
		}
		store = s
		cleanup = func() {
			s.Close()
			if dir != "" {
				os.RemoveAll(dir)
			}
		}
	default:
		return nil, nil, fmt.Errorf("unknown driver %q", opts.driver)
	}

	if err := store.Migrate(ctx); err != nil {
		cleanup()
		return nil, nil, err
	}
	return store, cleanup, nil
}
