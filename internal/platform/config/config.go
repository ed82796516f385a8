// Package config builds service configuration from environment variables so
// each main stays lean. Every service constructs its connections once from
// this config and passes them down; nothing here holds live handles.
package config

import (
	"os"
	"strconv"
	"time"
)

// HTTP captures HTTP server level configuration.
type HTTP struct {
	Addr string
}

// Postgres captures the primary store connection settings.
type Postgres struct {
	URL string
}

// Redis captures cache store connection settings.
type Redis struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Kafka captures broker settings shared by producer and consumer.
type Kafka struct {
	Brokers         string
	GroupID         string
	Acks            string
	Retries         int
	DeliveryTimeout time.Duration
	AutoOffsetReset string
}

// JWT captures token signing settings. Access and refresh tokens are signed
// with distinct secrets so one leaked key cannot mint the other kind.
type JWT struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
}

// Cache captures profile projection cache settings.
type Cache struct {
	ProfileTTL time.Duration
}

// Outbox captures relay worker cadence.
type Outbox struct {
	PollInterval time.Duration
	BatchSize    int
}

// Service is the full configuration for one service process.
type Service struct {
	HTTP     HTTP
	Postgres Postgres
	Redis    Redis
	Kafka    Kafka
	JWT      JWT
	Cache    Cache
	Outbox   Outbox
}

const (
	defaultAccessTTL   = 15 * time.Minute
	defaultRefreshTTL  = 7 * 24 * time.Hour
	defaultProfileTTL  = time.Hour
	defaultPollEvery   = 100 * time.Millisecond
	defaultOutboxBatch = 100
)

// FromEnv builds a Service config from environment variables. The addr
// default lets each binary pick its own port via IDPLANE_ADDR.
func FromEnv() Service {
	accessSecret := getenv("JWT_ACCESS_SECRET", "dev-access-secret-change-in-production")
	refreshSecret := os.Getenv("JWT_REFRESH_SECRET")
	if refreshSecret == "" {
		// Dev fallback: derive from the access secret so a single env var
		// is enough locally while the two keyspaces stay distinct.
		refreshSecret = accessSecret + "/refresh"
	}

	return Service{
		HTTP: HTTP{
			Addr: getenv("IDPLANE_ADDR", ":8080"),
		},
		Postgres: Postgres{
			URL: os.Getenv("POSTGRES_URL"),
		},
		Redis: Redis{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     getenvInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getenvInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getenvDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getenvDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getenvDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: Kafka{
			Brokers:         os.Getenv("KAFKA_BROKERS"),
			GroupID:         os.Getenv("KAFKA_GROUP_ID"),
			Acks:            getenv("KAFKA_ACKS", "all"),
			Retries:         getenvInt("KAFKA_RETRIES", 3),
			DeliveryTimeout: getenvDuration("KAFKA_DELIVERY_TIMEOUT", 30*time.Second),
			AutoOffsetReset: getenv("KAFKA_AUTO_OFFSET_RESET", "earliest"),
		},
		JWT: JWT{
			AccessSecret:  accessSecret,
			RefreshSecret: refreshSecret,
			AccessTTL:     getenvDuration("JWT_ACCESS_TTL", defaultAccessTTL),
			RefreshTTL:    getenvDuration("JWT_REFRESH_TTL", defaultRefreshTTL),
			Issuer:        getenv("JWT_ISSUER", "idplane"),
		},
		Cache: Cache{
			ProfileTTL: getenvDuration("PROFILE_CACHE_TTL", defaultProfileTTL),
		},
		Outbox: Outbox{
			PollInterval: getenvDuration("OUTBOX_POLL_INTERVAL", defaultPollEvery),
			BatchSize:    getenvInt("OUTBOX_BATCH_SIZE", defaultOutboxBatch),
		},
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
