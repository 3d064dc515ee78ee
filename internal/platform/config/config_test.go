package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	for _, key := range []string{
		"ADDR", "STORE_BACKEND", "DATABASE_URL", "REDIS_URL", "KAFKA_BROKERS",
		"TX_MAX_ATTEMPTS", "TX_TIMEOUT", "LOG_FORMAT", "LOG_LEVEL", "RATE_LIMIT_PER_MINUTE",
		"TRUSTED_PROXIES",
	} {
		t.Setenv(key, "")
	}

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "*", cfg.Server.CORSOrigin)
	assert.Equal(t, 30, cfg.Server.RateLimit)
	assert.Empty(t, cfg.Server.TrustedProxies)
	assert.Equal(t, BackendMemory, cfg.Store.Backend)
	assert.Equal(t, "registrations", cfg.Store.Collection)
	assert.Equal(t, "registrations", cfg.Store.CounterKey)
	assert.Equal(t, 5, cfg.Store.MaxAttempts)
	assert.Equal(t, 5*time.Second, cfg.Store.TxTimeout)
	assert.Empty(t, cfg.Events.Brokers)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, slog.LevelInfo, cfg.Log.Level)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("STORE_BACKEND", "Postgres")
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost:5432/db")
	t.Setenv("KAFKA_BROKERS", "a:9092, ,b:9092")
	t.Setenv("TX_TIMEOUT", "2s")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8, 192.0.2.10")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, BackendPostgres, cfg.Store.Backend)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Events.Brokers)
	assert.Equal(t, 2*time.Second, cfg.Store.TxTimeout)
	assert.Equal(t, slog.LevelDebug, cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Len(t, cfg.Server.TrustedProxies, 2)
	assert.True(t, cfg.Server.TrustedProxies.Trusts("10.4.5.6"))
	assert.False(t, cfg.Server.TrustedProxies.Trusts("192.0.2.11"))
}

func TestFromEnvErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"postgres without url", map[string]string{"STORE_BACKEND": "postgres", "DATABASE_URL": ""}, "DATABASE_URL"},
		{"redis without url", map[string]string{"STORE_BACKEND": "redis", "REDIS_URL": ""}, "REDIS_URL"},
		{"unknown backend", map[string]string{"STORE_BACKEND": "mongo"}, "STORE_BACKEND"},
		{"bad duration", map[string]string{"STORE_BACKEND": "", "TX_TIMEOUT": "soon"}, "TX_TIMEOUT"},
		{"bad integer", map[string]string{"STORE_BACKEND": "", "TX_MAX_ATTEMPTS": "many"}, "TX_MAX_ATTEMPTS"},
		{"zero attempts", map[string]string{"STORE_BACKEND": "", "TX_MAX_ATTEMPTS": "0"}, "TX_MAX_ATTEMPTS"},
		{"bad log level", map[string]string{"STORE_BACKEND": "", "LOG_LEVEL": "loud"}, "LOG_LEVEL"},
		{"bad trusted proxy", map[string]string{"STORE_BACKEND": "", "TRUSTED_PROXIES": "lb.internal"}, "TRUSTED_PROXIES"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := FromEnv()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
