package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"eventreg/pkg/platform/middleware/metadata"
	pstrings "eventreg/pkg/platform/strings"
)

// Store backends.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string
	CORSOrigin      string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	AdminJWTSecret  string
	RateLimit       int
	// TrustedProxies may set the client address the rate limit is keyed on.
	TrustedProxies metadata.Proxies
}

// Store selects and configures the persistence backend.
type Store struct {
	Backend     string
	DatabaseURL string
	Redis       RedisConfig
	Collection  string
	CounterKey  string
	TxTimeout   time.Duration
	MaxAttempts int
}

// RedisConfig configures the go-redis client.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Events configures the registration event publisher. Empty Brokers disables it.
type Events struct {
	Brokers []string
	Topic   string
}

// Log configures the slog handler.
type Log struct {
	Format string
	Level  slog.Level
}

// Config is the complete process configuration.
type Config struct {
	Server Server
	Store  Store
	Events Events
	Log    Log
}

// FromEnv builds the config from environment variables so main stays lean.
func FromEnv() (Config, error) {
	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	cfg := Config{
		Server: Server{
			Addr:           getEnvDefault("ADDR", ":8080"),
			CORSOrigin:     getEnvDefault("CORS_ORIGIN", "*"),
			AdminJWTSecret: os.Getenv("ADMIN_JWT_SECRET"),
		},
		Store: Store{
			Backend:     strings.ToLower(getEnvDefault("STORE_BACKEND", BackendMemory)),
			DatabaseURL: os.Getenv("DATABASE_URL"),
			Redis: RedisConfig{
				URL:          os.Getenv("REDIS_URL"),
				MinIdleConns: 2,
				DialTimeout:  5 * time.Second,
				ReadTimeout:  3 * time.Second,
				WriteTimeout: 3 * time.Second,
			},
			Collection: getEnvDefault("COLLECTION", "registrations"),
			CounterKey: getEnvDefault("COUNTER_KEY", "registrations"),
		},
		Events: Events{
			Brokers: pstrings.SplitList(os.Getenv("KAFKA_BROKERS")),
			Topic:   getEnvDefault("KAFKA_TOPIC", "registration-events"),
		},
		Log: Log{
			Format: strings.ToLower(getEnvDefault("LOG_FORMAT", "json")),
		},
	}

	var err error
	cfg.Server.RequestTimeout, err = getEnvDuration("REQUEST_TIMEOUT", 30*time.Second)
	collect(err)
	cfg.Server.ShutdownTimeout, err = getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second)
	collect(err)
	cfg.Server.RateLimit, err = getEnvInt("RATE_LIMIT_PER_MINUTE", 30)
	collect(err)
	cfg.Server.TrustedProxies, err = metadata.ParseProxies(pstrings.SplitList(os.Getenv("TRUSTED_PROXIES")))
	if err != nil {
		collect(fmt.Errorf("TRUSTED_PROXIES: %w", err))
	}
	cfg.Store.Redis.PoolSize, err = getEnvInt("REDIS_POOL_SIZE", 10)
	collect(err)
	cfg.Store.TxTimeout, err = getEnvDuration("TX_TIMEOUT", 5*time.Second)
	collect(err)
	cfg.Store.MaxAttempts, err = getEnvInt("TX_MAX_ATTEMPTS", 5)
	collect(err)
	cfg.Log.Level, err = parseLogLevel(getEnvDefault("LOG_LEVEL", "info"))
	collect(err)

	collect(cfg.validate())
	if len(errs) > 0 {
		return Config{}, fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.Store.Backend {
	case BackendMemory:
	case BackendPostgres:
		if c.Store.DatabaseURL == "" {
			return errors.New("DATABASE_URL: required for postgres backend")
		}
	case BackendRedis:
		if c.Store.Redis.URL == "" {
			return errors.New("REDIS_URL: required for redis backend")
		}
	default:
		return fmt.Errorf("STORE_BACKEND: unknown backend %q, allowed: memory, postgres, redis", c.Store.Backend)
	}
	if c.Store.MaxAttempts < 1 {
		return errors.New("TX_MAX_ATTEMPTS: must be at least 1")
	}
	if c.Server.RateLimit < 0 {
		return errors.New("RATE_LIMIT_PER_MINUTE: must not be negative")
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return fmt.Errorf("LOG_FORMAT: unknown format %q, allowed: json, text", c.Log.Format)
	}
	return nil
}

func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q", key, val)
	}
	return n, nil
}

func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q (use Go format: 30s, 1m)", key, val)
	}
	return d, nil
}

func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("LOG_LEVEL: invalid level %q, allowed: debug, info, warn, error", level)
	}
}
