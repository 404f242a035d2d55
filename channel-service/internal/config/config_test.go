package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, v, err := Load()
	require.NoError(t, err)
	require.NotNil(t, v)

	assert.Equal(t, 3001, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.WebSocket.PingInterval)
	assert.Equal(t, int64(65536), cfg.WebSocket.MaxMessageSize)
	assert.Equal(t, time.Hour, cfg.StreamKey.TTL)
	assert.Equal(t, 30*time.Minute, cfg.StreamKey.PublishTTL)
	assert.Equal(t, "http", cfg.Readiness.Driver)
	assert.Equal(t, 5*time.Second, cfg.Readiness.Timeout)
	assert.Equal(t, 250*time.Millisecond, cfg.Readiness.Interval)
	assert.Equal(t, "none", cfg.Events.Driver)
	assert.Equal(t, "channel-events", cfg.Events.Kafka.Topic)
	assert.Equal(t, []string{"*"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("STREAM_KEY_SECRET", "s3cr3t")
	t.Setenv("AUTH_JWT_SECRET", "jwt")
	t.Setenv("READINESS_TIMEOUT", "2s")
	t.Setenv("READINESS_DRIVER", "local")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg, _, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "s3cr3t", cfg.StreamKey.Secret)
	assert.Equal(t, "jwt", cfg.Auth.JWTSecret)
	assert.Equal(t, 2*time.Second, cfg.Readiness.Timeout)
	assert.Equal(t, "local", cfg.Readiness.Driver)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
}

func TestParseDurationFallsBack(t *testing.T) {
	t.Setenv("STREAMKEY_TTL", "soon")

	cfg, _, err := Load()
	require.NoError(t, err)
	assert.Equal(t, time.Hour, cfg.StreamKey.TTL)
}
