package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, "errors", cfg.ErrorLogName)
	assert.Equal(t, "documents", cfg.DocumentsTable)
	assert.Equal(t, float64(1000), cfg.SearchRadiusMeters)
	assert.Equal(t, 72*time.Hour, cfg.ProcessedTTL)
	assert.False(t, cfg.InlineOrchestration)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("SEARCH_RADIUS_METERS", "2500")
	t.Setenv("INLINE_ORCHESTRATION", "true")
	t.Setenv("PROCESSED_EVENT_TTL", "1h")
	t.Setenv("WORKER_MAX_MESSAGES", "10")

	cfg := Load()

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, float64(2500), cfg.SearchRadiusMeters)
	assert.True(t, cfg.InlineOrchestration)
	assert.Equal(t, time.Hour, cfg.ProcessedTTL)
	assert.Equal(t, 10, cfg.WorkerMaxMessages)
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	t.Setenv("SEARCH_RADIUS_METERS", "not-a-number")
	t.Setenv("WORKER_WAIT_SECONDS", "ten")

	cfg := Load()

	assert.Equal(t, float64(1000), cfg.SearchRadiusMeters)
	assert.Equal(t, 10, cfg.WorkerWaitSeconds)
}
