package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "dev", cfg.Env)
	assert.Equal(t, "8081", cfg.HTTPPort)
	assert.Equal(t, 5*time.Minute, cfg.QRTokenTTL)
	assert.Equal(t, 4*time.Minute, cfg.QRRotateEvery)
	assert.Equal(t, "redis", cfg.QueueBackend)
	assert.Equal(t, 120, cfg.RateLimitPerMin)
	// Rotation has to land inside the validity window.
	assert.Less(t, cfg.QRRotateEvery, cfg.QRTokenTTL)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("QR_TOKEN_TTL", "10m")
	t.Setenv("RATE_LIMIT_PER_MIN", "30")
	t.Setenv("QUEUE_BACKEND", "memory")

	cfg := Load()

	assert.Equal(t, 10*time.Minute, cfg.QRTokenTTL)
	assert.Equal(t, 30, cfg.RateLimitPerMin)
	assert.Equal(t, "memory", cfg.QueueBackend)
}

func TestLoad_BadValuesFallBack(t *testing.T) {
	t.Setenv("QR_TOKEN_TTL", "soon")
	t.Setenv("RATE_LIMIT_PER_MIN", "lots")

	cfg := Load()

	assert.Equal(t, 5*time.Minute, cfg.QRTokenTTL)
	assert.Equal(t, 120, cfg.RateLimitPerMin)
}
