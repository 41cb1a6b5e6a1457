package config

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearOptional unsets every optional variable so a developer's shell
// environment cannot leak into the assertions. t.Setenv registers the
// restore; the unset makes the variable truly absent for the test.
func clearOptional(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"APP_NAME", "APP_ENV", "HTTP_ADDR",
		"SESSION_STORE", "SESSION_TTL", "COUNTDOWN_TICK_INTERVAL",
		"PG_HOST", "PG_USER", "PG_PASSWORD", "PG_DATABASE",
		"REDIS_ADDR", "GENERATOR_URL", "GENERATOR_API_KEY",
		"CONTENT_URL", "CONTENT_API_KEY", "JWT_SECRET",
	} {
		t.Setenv(key, os.Getenv(key))
		os.Unsetenv(key)
	}
}

func TestLoadMinimalEnvironment(t *testing.T) {
	clearOptional(t)
	t.Setenv("JWT_SECRET", "test-secret")

	cfg, err := Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "classrally", cfg.Name)
	assert.Equal(t, StoreMemory, cfg.Session.StoreBackend)
	assert.Equal(t, 250*time.Millisecond, cfg.Session.TickInterval)
	assert.False(t, cfg.Postgres.Enabled())
	assert.Empty(t, cfg.Redis.Addr)
	assert.Empty(t, cfg.Generator.URL)
}

func TestLoadRequiresJWTSecret(t *testing.T) {
	clearOptional(t)

	_, err := Load(context.Background())
	require.Error(t, err)
}

func TestLoadRedisBackendRequiresAddr(t *testing.T) {
	clearOptional(t)
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("SESSION_STORE", StoreRedis)

	_, err := Load(context.Background())
	require.ErrorContains(t, err, "REDIS_ADDR")

	t.Setenv("REDIS_ADDR", "localhost:6379")
	cfg, err := Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StoreRedis, cfg.Session.StoreBackend)
}

func TestLoadRejectsUnknownStore(t *testing.T) {
	clearOptional(t)
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("SESSION_STORE", "etcd")

	_, err := Load(context.Background())
	require.ErrorContains(t, err, "SESSION_STORE")
}

func TestLoadPartialPostgresConfig(t *testing.T) {
	clearOptional(t)
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("PG_HOST", "localhost")

	_, err := Load(context.Background())
	require.ErrorContains(t, err, "PG_USER")

	t.Setenv("PG_USER", "classrally")
	t.Setenv("PG_DATABASE", "classrally")
	cfg, err := Load(context.Background())
	require.NoError(t, err)
	assert.True(t, cfg.Postgres.Enabled())
}
