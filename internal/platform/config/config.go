package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	pstrings "github.com/ak652231/TraceQ-sub001/pkg/platform/strings"
)

// Server captures process level configuration.
type Server struct {
	Addr     string
	LogLevel string

	// DatabaseURL selects the Postgres store; empty runs on the in-memory store.
	DatabaseURL  string
	StoreTimeout time.Duration
	// SeedFile optionally provisions users and officer profiles at boot.
	SeedFile     string

	Redis RedisConfig
	Kafka KafkaConfig
	JWT   JWTConfig

	DispatchTimeout time.Duration
	// AllowedOrigins limits websocket handshakes. Empty keeps same-origin only.
	AllowedOrigins []string
}

// RedisConfig configures the shared Redis used for revocation and live fan-out.
// An empty URL disables both.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Channel      string
}

// KafkaConfig configures the outbox relay. No brokers disables it.
type KafkaConfig struct {
	Brokers           []string
	Topic             string
	Partitions        int32
	ReplicationFactor int16
	PollInterval      time.Duration
	BatchSize         int
}

type JWTConfig struct {
	SigningKey string
	Issuer     string
}

// FromEnv builds a Server config from environment variables, after loading an
// optional .env file so local runs need no exported variables.
func FromEnv() (Server, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return Server{}, fmt.Errorf("load .env: %w", err)
	}

	var errs []string
	duration := func(key string, def time.Duration) time.Duration {
		raw := os.Getenv(key)
		if raw == "" {
			return def
		}
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			errs = append(errs, key+" must be a positive duration")
			return def
		}
		return d
	}
	integer := func(key string, def int) int {
		raw := os.Getenv(key)
		if raw == "" {
			return def
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			errs = append(errs, key+" must be a positive integer")
			return def
		}
		return n
	}

	cfg := Server{
		Addr:         stringOr("TRACEQ_ADDR", ":8080"),
		LogLevel:     stringOr("LOG_LEVEL", "info"),
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		StoreTimeout: duration("STORE_TIMEOUT", 5*time.Second),
		SeedFile:     os.Getenv("SEED_FILE"),
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     integer("REDIS_POOL_SIZE", 10),
			MinIdleConns: integer("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  duration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  duration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: duration("REDIS_WRITE_TIMEOUT", 3*time.Second),
			Channel:      stringOr("REDIS_LIVE_CHANNEL", "traceq:live"),
		},
		Kafka: KafkaConfig{
			Brokers:           pstrings.SplitList(os.Getenv("KAFKA_BROKERS"), ","),
			Topic:             stringOr("KAFKA_TOPIC", "traceq.report-events"),
			Partitions:        int32(integer("KAFKA_TOPIC_PARTITIONS", 6)),
			ReplicationFactor: int16(integer("KAFKA_TOPIC_REPLICATION", 1)),
			PollInterval:      duration("OUTBOX_POLL_INTERVAL", time.Second),
			BatchSize:         integer("OUTBOX_BATCH_SIZE", 100),
		},
		JWT: JWTConfig{
			SigningKey: os.Getenv("JWT_SIGNING_KEY"),
			Issuer:     stringOr("JWT_ISSUER", "traceq"),
		},
		DispatchTimeout: duration("DISPATCH_TIMEOUT", 2*time.Second),
		AllowedOrigins:  pstrings.SplitList(os.Getenv("ALLOWED_ORIGINS"), ","),
	}

	if cfg.JWT.SigningKey == "" {
		errs = append(errs, "JWT_SIGNING_KEY is required")
	}
	if len(errs) > 0 {
		return Server{}, fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}
	return cfg, nil
}

func stringOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}
