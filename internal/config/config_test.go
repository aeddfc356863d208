package config

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	for _, k := range []string{
		"PORT", "LOG_LEVEL", "LOG_FORMAT", "CORS_ALLOWED_ORIGINS", "REDIS_ADDR", "REDIS_CHANNEL",
		"CLIENT_QUEUE_SIZE", "WS_READ_LIMIT", "STATS_SCHEDULE", "CONNECT_RATE_RPS",
		"CONNECT_RATE_BURST", "SEED_FILE",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "3001", cfg.Port)
	assert.Equal(t, ":3001", cfg.Addr())
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
	assert.Empty(t, cfg.RedisAddr)
	assert.Equal(t, "collab:documents", cfg.RedisChannel)
	assert.Equal(t, 256, cfg.ClientQueueSize)
	assert.Equal(t, int64(1<<20), cfg.WSReadLimit)
	assert.Equal(t, float64(0), cfg.ConnectRateRPS)
	assert.Equal(t, 10, cfg.ConnectRateBurst)
}

func TestLoadConfigOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "8085")
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://a.test, http://b.test,")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("CLIENT_QUEUE_SIZE", "16")
	t.Setenv("CONNECT_RATE_RPS", "2.5")
	t.Setenv("SEED_FILE", "/etc/seeds.yaml")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, ":8085", cfg.Addr())
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.AllowedOrigins)
	assert.Equal(t, "redis:6379", cfg.RedisAddr)
	assert.Equal(t, 16, cfg.ClientQueueSize)
	assert.Equal(t, 2.5, cfg.ConnectRateRPS)
	assert.Equal(t, "/etc/seeds.yaml", cfg.SeedFile)
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	cases := map[string][2]string{
		"non-numeric port": {"PORT", "abc"},
		"port too large":   {"PORT", "70000"},
		"bad queue size":   {"CLIENT_QUEUE_SIZE", "x"},
		"zero queue size":  {"CLIENT_QUEUE_SIZE", "0"},
		"negative rate":    {"CONNECT_RATE_RPS", "-1"},
		"bad read limit":   {"WS_READ_LIMIT", "1k"},
	}
	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(kv[0], kv[1])
			_, err := LoadConfig()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidPort) || errors.Is(err, ErrInvalidNumber), "got %v", err)
		})
	}
}
