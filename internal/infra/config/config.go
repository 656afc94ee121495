package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DriverMemory   = "memory"
	DriverMongo    = "mongo"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
)

// Config aggregates application configuration values loaded from environment variables.
type Config struct {
	Env                string
	HTTPAddr           string
	StorageDriver      string
	MongoURI           string
	MongoDB            string
	AvailabilityDriver string
	PostgresDSN        string
	LockDriver         string
	RedisAddr          string
	LockTTL            time.Duration
	KafkaBrokers       []string
	KafkaTopicPrefix   string
	PaymentEventsTopic string
	KafkaGroupID       string
	CallbackToken      string
	IdempotencyTTL     time.Duration
	OutboxPollInterval time.Duration
	RetryBackoff       []time.Duration
	PaymentMaxAttempts int
	PaymentTimeout     time.Duration
	BreakerMaxFailures uint32
	BreakerOpenTimeout time.Duration
	HoldWindow         time.Duration
	HoldSweepInterval  time.Duration
	MaxStayNights      int
	ShutdownTimeout    time.Duration
	SeedFile           string
	S3Endpoint         string
	S3AccessKey        string
	S3SecretKey        string
	S3Bucket           string
	S3UseSSL           bool
}

// Load parses configuration from the current environment. A .env file in the
// working directory, when present, seeds variables that are not already set.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	cfg := Config{
		Env:                getEnv("APP_ENV", "dev"),
		HTTPAddr:           getEnv("HTTP_ADDR", ":8080"),
		StorageDriver:      strings.ToLower(getEnv("STORAGE_DRIVER", DriverMemory)),
		MongoURI:           os.Getenv("MONGO_URI"),
		MongoDB:            getEnv("MONGO_DB", "roomstay"),
		AvailabilityDriver: strings.ToLower(os.Getenv("AVAILABILITY_DRIVER")),
		PostgresDSN:        os.Getenv("POSTGRES_DSN"),
		LockDriver:         strings.ToLower(getEnv("LOCK_DRIVER", DriverMemory)),
		RedisAddr:          getEnv("REDIS_ADDR", "localhost:6379"),
		KafkaTopicPrefix:   getEnv("KAFKA_TOPIC_PREFIX", ""),
		PaymentEventsTopic: getEnv("PAYMENT_EVENTS_TOPIC", "payments.events.v1"),
		KafkaGroupID:       getEnv("KAFKA_GROUP_ID", "roomstay"),
		CallbackToken:      os.Getenv("PAYMENTS_CALLBACK_TOKEN"),
		SeedFile:           os.Getenv("CATALOG_SEED_FILE"),
		S3Endpoint:         os.Getenv("S3_ENDPOINT"),
		S3AccessKey:        getEnv("S3_ACCESS_KEY", "minioadmin"),
		S3SecretKey:        getEnv("S3_SECRET_KEY", "minioadmin"),
		S3Bucket:           getEnv("S3_BUCKET", "roomstay-quotes"),
	}
	brokers := getEnv("KAFKA_BROKERS", "")
	if brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}

	durations := []struct {
		key string
		def time.Duration
		dst *time.Duration
	}{
		{"LOCK_TTL", 10 * time.Second, &cfg.LockTTL},
		{"IDEMP_TTL", 168 * time.Hour, &cfg.IdempotencyTTL},
		{"OUTBOX_POLL_INTERVAL", 500 * time.Millisecond, &cfg.OutboxPollInterval},
		{"PAYMENT_TIMEOUT", 10 * time.Second, &cfg.PaymentTimeout},
		{"BREAKER_OPEN_TIMEOUT", 30 * time.Second, &cfg.BreakerOpenTimeout},
		{"HOLD_WINDOW", 15 * time.Minute, &cfg.HoldWindow},
		{"HOLD_SWEEP_INTERVAL", time.Minute, &cfg.HoldSweepInterval},
		{"SHUTDOWN_TIMEOUT", 10 * time.Second, &cfg.ShutdownTimeout},
	}
	for _, d := range durations {
		v, err := parseDurationEnv(d.key, d.def)
		if err != nil {
			return Config{}, err
		}
		*d.dst = v
	}

	attempts, err := parseIntEnv("PAYMENT_MAX_ATTEMPTS", 3)
	if err != nil {
		return Config{}, err
	}
	cfg.PaymentMaxAttempts = attempts

	maxStay, err := parseIntEnv("MAX_STAY_NIGHTS", 365)
	if err != nil {
		return Config{}, err
	}
	if maxStay < 1 {
		return Config{}, fmt.Errorf("MAX_STAY_NIGHTS must be positive, got %d", maxStay)
	}
	cfg.MaxStayNights = maxStay

	failures, err := parseIntEnv("BREAKER_MAX_FAILURES", 5)
	if err != nil {
		return Config{}, err
	}
	if failures < 1 {
		return Config{}, fmt.Errorf("BREAKER_MAX_FAILURES must be positive, got %d", failures)
	}
	cfg.BreakerMaxFailures = uint32(failures)

	retryStr := getEnv("RETRY_BACKOFF", "200ms,1s,5s")
	for _, raw := range strings.Split(retryStr, ",") {
		val := strings.TrimSpace(raw)
		if val == "" {
			continue
		}
		d, err := time.ParseDuration(val)
		if err != nil {
			return Config{}, fmt.Errorf("invalid RETRY_BACKOFF component %q: %w", raw, err)
		}
		cfg.RetryBackoff = append(cfg.RetryBackoff, d)
	}
	useSSL, err := parseBoolEnv("S3_USE_SSL", false)
	if err != nil {
		return Config{}, err
	}
	cfg.S3UseSSL = useSSL

	switch cfg.StorageDriver {
	case DriverMemory:
	case DriverMongo:
		if cfg.MongoURI == "" {
			return Config{}, fmt.Errorf("MONGO_URI is required when STORAGE_DRIVER=%s", DriverMongo)
		}
	default:
		return Config{}, fmt.Errorf("unknown STORAGE_DRIVER %q", cfg.StorageDriver)
	}
	switch cfg.AvailabilityDriver {
	case "":
	case DriverPostgres:
		if cfg.PostgresDSN == "" {
			return Config{}, fmt.Errorf("POSTGRES_DSN is required when AVAILABILITY_DRIVER=%s", DriverPostgres)
		}
	default:
		return Config{}, fmt.Errorf("unknown AVAILABILITY_DRIVER %q", cfg.AvailabilityDriver)
	}
	switch cfg.LockDriver {
	case DriverMemory, DriverRedis:
	default:
		return Config{}, fmt.Errorf("unknown LOCK_DRIVER %q", cfg.LockDriver)
	}
	if cfg.PaymentMaxAttempts < 1 {
		cfg.PaymentMaxAttempts = 1
	}
	return cfg, nil
}

// Dev reports whether the service runs on a developer machine.
func (c Config) Dev() bool {
	return c.Env == "dev" || c.Env == "local"
}

// Topic prefixes name with KAFKA_TOPIC_PREFIX.
func (c Config) Topic(name string) string {
	return c.KafkaTopicPrefix + name
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseDurationEnv(key string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s duration: %w", key, err)
	}
	return d, nil
}

func parseIntEnv(key string, def int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s integer: %w", key, err)
	}
	return n, nil
}

func parseBoolEnv(key string, def bool) (bool, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "t", "true", "yes", "y", "on":
		return true, nil
	case "0", "f", "false", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid %s boolean: %q", key, raw)
	}
}
