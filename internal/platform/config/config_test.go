package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("JWT_SIGNING_KEY", "k")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("KAFKA_BROKERS", "")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, 5*time.Second, cfg.StoreTimeout)
	assert.Equal(t, 2*time.Second, cfg.DispatchTimeout)
	assert.Equal(t, time.Second, cfg.Kafka.PollInterval)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.Equal(t, "traceq", cfg.JWT.Issuer)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("JWT_SIGNING_KEY", "k")
	t.Setenv("TRACEQ_ADDR", ":9090")
	t.Setenv("STORE_TIMEOUT", "750ms")
	t.Setenv("DISPATCH_TIMEOUT", "1s")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")
	t.Setenv("ALLOWED_ORIGINS", "https://traceq.example")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, 750*time.Millisecond, cfg.StoreTimeout)
	assert.Equal(t, time.Second, cfg.DispatchTimeout)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, []string{"https://traceq.example"}, cfg.AllowedOrigins)
}

func TestFromEnvRejectsInvalidValues(t *testing.T) {
	t.Setenv("JWT_SIGNING_KEY", "")
	t.Setenv("STORE_TIMEOUT", "soon")

	_, err := FromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SIGNING_KEY")
	assert.Contains(t, err.Error(), "STORE_TIMEOUT")
}
