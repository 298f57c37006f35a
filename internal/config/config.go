package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

type Config struct {
	HTTP        HTTPConfig        `yaml:"http"`
	GRPC        GRPCConfig        `yaml:"grpc"`
	Store       StoreConfig       `yaml:"store"`
	Reservation ReservationConfig `yaml:"reservation"`
	Redis       RedisConfig       `yaml:"redis"`
	Kafka       KafkaConfig       `yaml:"kafka"`
	Auth        AuthConfig        `yaml:"auth"`
	Tracing     TracingConfig     `yaml:"tracing"`
	Log         LogConfig         `yaml:"log"`
}

type HTTPConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type GRPCConfig struct {
	Addr string `yaml:"addr"`
}

type StoreConfig struct {
	Driver          string        `yaml:"driver"`
	MySQLDSN        string        `yaml:"mysql_dsn"`
	SQLitePath      string        `yaml:"sqlite_path"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

type ReservationConfig struct {
	LockWaitTimeout time.Duration `yaml:"lock_wait_timeout"`
	TxTimeout       time.Duration `yaml:"tx_timeout"`
}

// RedisConfig enables the booking idempotency guard when Addr is set.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`

	IdempotencyTTL time.Duration `yaml:"idempotency_ttl"`
}

// KafkaConfig enables reservation events when Brokers is non-empty.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

type AuthConfig struct {
	SecretKey   string `yaml:"secret_key"`
	AdminAPIKey string `yaml:"admin_api_key"`
}

type TracingConfig struct {
	ServiceName    string `yaml:"service_name"`
	JaegerEndpoint string `yaml:"jaeger_endpoint"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

func Default() Config {
	return Config{
		HTTP: HTTPConfig{
			Addr:            ":8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 5 * time.Second,
		},
		GRPC: GRPCConfig{Addr: ":50051"},
		Store: StoreConfig{
			Driver:          DriverSQLite,
			MySQLDSN:        "root:root@tcp(localhost:3306)/train_booking?parseTime=true",
			SQLitePath:      "train_booking.db",
			MaxOpenConns:    50,
			MaxIdleConns:    25,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Reservation: ReservationConfig{
			LockWaitTimeout: 5 * time.Second,
			TxTimeout:       10 * time.Second,
		},
		Redis:   RedisConfig{PoolSize: 100, IdempotencyTTL: 24 * time.Hour},
		Kafka:   KafkaConfig{Topic: "train-booking.reservations"},
		Tracing: TracingConfig{ServiceName: "train-booking"},
		Log:     LogConfig{Level: "info"},
	}
}

// Load reads the YAML file at path over the defaults, then applies
// environment overrides. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("PORT"); v != "" {
		c.HTTP.Addr = ":" + v
	}
	setString(&c.HTTP.Addr, "HTTP_ADDR")
	setString(&c.GRPC.Addr, "GRPC_ADDR")
	setString(&c.Store.Driver, "STORE_DRIVER")
	setString(&c.Store.MySQLDSN, "MYSQL_DSN")
	setString(&c.Store.SQLitePath, "SQLITE_PATH")
	setString(&c.Redis.Addr, "REDIS_ADDR")
	setString(&c.Kafka.Topic, "KAFKA_TOPIC")
	setString(&c.Auth.SecretKey, "SECRET_KEY")
	setString(&c.Auth.AdminAPIKey, "ADMIN_API_KEY")
	setString(&c.Tracing.JaegerEndpoint, "JAEGER_ENDPOINT")
	setString(&c.Log.Level, "LOG_LEVEL")

	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = nil
		for _, b := range strings.Split(v, ",") {
			if b = strings.TrimSpace(b); b != "" {
				c.Kafka.Brokers = append(c.Kafka.Brokers, b)
			}
		}
	}
}

func (c Config) Validate() error {
	switch c.Store.Driver {
	case DriverMySQL:
		if c.Store.MySQLDSN == "" {
			return errors.New("config: store.mysql_dsn is required for the mysql driver")
		}
	case DriverSQLite:
		if c.Store.SQLitePath == "" {
			return errors.New("config: store.sqlite_path is required for the sqlite driver")
		}
	default:
		return fmt.Errorf("config: unknown store driver %q", c.Store.Driver)
	}

	if c.Reservation.LockWaitTimeout <= 0 {
		return errors.New("config: reservation.lock_wait_timeout must be positive")
	}
	if c.Reservation.TxTimeout <= 0 {
		return errors.New("config: reservation.tx_timeout must be positive")
	}
	if c.Auth.SecretKey == "" {
		return errors.New("config: auth.secret_key is required")
	}
	if c.HTTP.Addr == "" {
		return errors.New("config: http.addr is required")
	}
	if c.Redis.Addr != "" && c.Redis.IdempotencyTTL <= 0 {
		return errors.New("config: redis.idempotency_ttl must be positive")
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		return errors.New("config: kafka.topic is required when brokers are set")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
