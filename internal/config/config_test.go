package config

import (
	"testing"
	"time"

	"github.com/aretw0/caregraph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("CAREGRAPH_ENV", "test")
	for _, key := range []string{"CAREGRAPH_REDIS_URL", "CAREGRAPH_STORE", "CAREGRAPH_ADDR", "CAREGRAPH_DELIVERY",
		"CAREGRAPH_TURN_TIMEOUT", "CAREGRAPH_ALLOWED_ORIGINS", "OPENAI_API_KEY", "OTEL_EXPORTER_OTLP_ENDPOINT"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, StoreMemory, cfg.Session.Store)
	assert.Equal(t, caregraph.DeliverTokens, cfg.Engine.Delivery)
	assert.Equal(t, caregraph.DefaultTurnTimeout, cfg.Engine.TurnTimeout)
	assert.Equal(t, []string{"*"}, cfg.Security.AllowedOrigins)
	assert.False(t, cfg.OpenAI.Enabled())
	assert.False(t, cfg.OTel.Enabled())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("CAREGRAPH_ENV", "production")
	t.Setenv("CAREGRAPH_REDIS_URL", "redis://localhost:6379/2")
	t.Setenv("CAREGRAPH_DELIVERY", "message")
	t.Setenv("CAREGRAPH_THREAD_TTL", "90m")
	t.Setenv("CAREGRAPH_TURN_TIMEOUT", "15s")
	t.Setenv("CAREGRAPH_ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("CAREGRAPH_REDACT_PII", "true")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, StoreRedis, cfg.Session.Store, "a redis url selects the redis store")
	assert.Equal(t, caregraph.DeliverMessage, cfg.Engine.Delivery)
	assert.Equal(t, 90*time.Minute, cfg.Session.ThreadTTL)
	assert.Equal(t, 15*time.Second, cfg.Engine.TurnTimeout)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Security.AllowedOrigins)
	assert.True(t, cfg.Security.RedactPII)
	assert.True(t, cfg.OpenAI.Enabled())
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("CAREGRAPH_ENV", "test")

	t.Run("Delivery", func(t *testing.T) {
		t.Setenv("CAREGRAPH_DELIVERY", "pigeon")
		_, err := Load()
		assert.Error(t, err)
	})
	t.Run("Redis Without URL", func(t *testing.T) {
		t.Setenv("CAREGRAPH_STORE", "redis")
		_, err := Load()
		assert.Error(t, err)
	})
	t.Run("Unknown Store", func(t *testing.T) {
		t.Setenv("CAREGRAPH_STORE", "tape")
		_, err := Load()
		assert.Error(t, err)
	})
}
