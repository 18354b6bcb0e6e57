package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv_Defaults(t *testing.T) {
	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 15*24*time.Hour, cfg.Token.TTL)
	assert.Equal(t, "@every 1h", cfg.Sweep.Schedule)
	assert.Empty(t, cfg.Database.URL)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.Equal(t, int32(3), cfg.Kafka.Partitions)
	assert.True(t, cfg.UsesDevSecrets())
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("VERIHIRE_ADDR", ":9090")
	t.Setenv("PUBLIC_BASE_URL", "https://verihire.example/")
	t.Setenv("REQUEST_TOKEN_TTL", "48h")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("MESSAGING_RATE_PER_SECOND", "0.5")
	t.Setenv("REQUEST_TOKEN_SECRET", "s3cret")
	t.Setenv("CREDENTIAL_HMAC_KEY", "k3y")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "https://verihire.example", cfg.Server.PublicBaseURL)
	assert.Equal(t, 48*time.Hour, cfg.Token.TTL)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.InDelta(t, 0.5, cfg.Messaging.RatePerSecond, 1e-9)
	assert.False(t, cfg.UsesDevSecrets())
}

func TestFromEnv_InvalidValuesKeepDefaults(t *testing.T) {
	t.Setenv("REASONING_TIMEOUT", "soon")
	t.Setenv("MESSAGING_BURST", "-3")

	cfg, err := FromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "REASONING_TIMEOUT")
	assert.Contains(t, err.Error(), "MESSAGING_BURST")
	assert.Equal(t, 20*time.Second, cfg.Reasoning.Timeout)
	assert.Equal(t, 5, cfg.Messaging.Burst)
}
