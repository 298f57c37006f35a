package main

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-sql-driver/mysql"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/rl1809/train-booking/internal/adapter/handler"
	"github.com/rl1809/train-booking/internal/adapter/messaging"
	"github.com/rl1809/train-booking/internal/adapter/storage"
	"github.com/rl1809/train-booking/internal/config"
	"github.com/rl1809/train-booking/internal/core/service"
	"github.com/rl1809/train-booking/internal/logger"
	"github.com/rl1809/train-booking/internal/metrics"
	"github.com/rl1809/train-booking/internal/port"
	"github.com/rl1809/train-booking/internal/tracing"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		boot := zerolog.New(os.Stderr).With().Timestamp().Logger()
		boot.Fatal().Err(err).Msg("failed to load config")
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Pretty, cfg.Tracing.ServiceName)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

type inventoryStore interface {
	port.DatabaseRepository
	Migrate(ctx context.Context) error
}

// run serves HTTP and gRPC until ctx is cancelled, then shuts both down.
func run(ctx context.Context, cfg config.Config, log zerolog.Logger) error {
	ctx = log.WithContext(ctx)

	shutdownTracing, err := tracing.Init(cfg.Tracing.ServiceName, cfg.Tracing.JaegerEndpoint)
	if err != nil {
		return err
	}
	defer shutdownTracing(context.Background())

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()
	if err := store.Migrate(ctx); err != nil {
		return err
	}
	log.Info().Str("driver", cfg.Store.Driver).Msg("inventory store ready")

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	rec := metrics.New(reg)

	engine := service.NewReservationService(store,
		service.WithTxTimeout(cfg.Reservation.TxTimeout),
		service.WithMetrics(rec),
	)

	var bookingOpts []service.BookingServiceOption
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return err
		}
		bookingOpts = append(bookingOpts, service.WithIdempotency(
			storage.NewRedisAdapter(rdb, storage.WithIdempotencyTTL(cfg.Redis.IdempotencyTTL)),
		))
		log.Info().Str("addr", cfg.Redis.Addr).Msg("connected to redis")
	}
	if len(cfg.Kafka.Brokers) > 0 {
		publisher := messaging.NewKafkaPublisher(messaging.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.Topic))
		defer publisher.Close()
		bookingOpts = append(bookingOpts, service.WithEventPublisher(publisher))
		log.Info().Strs("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.Topic).Msg("publishing reservation events")
	}

	bookings := service.NewBookingService(engine, store, bookingOpts...)
	availability := service.NewAvailabilityService(store)

	auth := handler.NewAuthenticator(cfg.Auth.SecretKey, cfg.Auth.AdminAPIKey)
	authz, err := handler.NewAuthorizer(ctx)
	if err != nil {
		return err
	}

	grpcServer := grpc.NewServer(grpc.ChainUnaryInterceptor(
		handler.UnaryLoggingInterceptor(log),
		handler.UnaryAuthInterceptor(auth),
	))
	handler.RegisterBookingServer(grpcServer, handler.NewGRPCHandler(bookings, availability, authz))

	httpHandler := handler.NewHTTPHandler(bookings, availability, auth, authz)
	httpServer := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      httpHandler.Routes(log, rec, promhttp.HandlerFor(reg, promhttp.HandlerOpts{})),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	grpcLis, err := net.Listen("tcp", cfg.GRPC.Addr)
	if err != nil {
		return err
	}
	httpLis, err := net.Listen("tcp", cfg.HTTP.Addr)
	if err != nil {
		grpcLis.Close()
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Str("addr", grpcLis.Addr().String()).Msg("gRPC server listening")
		if err := grpcServer.Serve(grpcLis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		log.Info().Str("addr", httpLis.Addr().String()).Msg("HTTP server listening")
		if err := httpServer.Serve(httpLis); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("HTTP shutdown incomplete")
		}
		log.Info().Msg("HTTP server stopped")

		grpcServer.GracefulStop()
		log.Info().Msg("gRPC server stopped")
		return nil
	})

	return g.Wait()
}

func openStore(ctx context.Context, cfg config.Config) (inventoryStore, func(), error) {
	switch cfg.Store.Driver {
	case config.DriverMySQL:
		connector, err := mysqlConnector(cfg.Store.MySQLDSN)
		if err != nil {
			return nil, nil, err
		}
		db := sql.OpenDB(connector)
		db.SetMaxOpenConns(cfg.Store.MaxOpenConns)
		db.SetMaxIdleConns(cfg.Store.MaxIdleConns)
		db.SetConnMaxLifetime(cfg.Store.ConnMaxLifetime)
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		store := storage.NewMySQLAdapter(db, storage.WithLockWaitTimeout(cfg.Reservation.LockWaitTimeout))
		return store, func() { db.Close() }, nil
	default:
		store, err := storage.OpenSQLite(cfg.Store.SQLitePath, cfg.Reservation.LockWaitTimeout)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { store.Close() }, nil
	}
}

func mysqlConnector(dsn string) (driver.Connector, error) {
	mcfg, err := mysqlConfig(dsn)
	if err != nil {
		return nil, err
	}
	return mysql.NewConnector(mcfg)
}

// mysqlConfig parses dsn and forces parseTime, since the store scans
// DATETIME columns into time.Time.
func mysqlConfig(dsn string) (*mysql.Config, error) {
	mcfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse mysql dsn: %w", err)
	}
	mcfg.ParseTime = true
	return mcfg, nil
}
