package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("DB_USER", "cinevault")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", "3306")
	t.Setenv("DB_NAME", "cinevault")
	t.Setenv("JWT_ACCESS_SECRET", "access-secret")
	t.Setenv("JWT_REFRESH_SECRET", "refresh-secret")
}

func TestFromEnvDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := fromEnv()
	require.NoError(t, err)

	assert.Equal(t, "3000", cfg.Port)
	assert.Equal(t, 15*time.Minute, cfg.AccessTTL)
	assert.Equal(t, 7*24*time.Hour, cfg.RefreshTTL)
	assert.Equal(t, 10, cfg.BcryptCost)
	assert.Equal(t, 5, cfg.WorkerConcurrency)
	assert.Equal(t, "cinevault/images", cfg.PosterFolder)
	assert.False(t, cfg.IsProduction())
	assert.False(t, cfg.CloudinaryConfigured())
}

func TestFromEnvReportsEveryMissingKey(t *testing.T) {
	for _, k := range []string{"DB_USER", "DB_HOST", "DB_PORT", "DB_NAME", "JWT_ACCESS_SECRET", "JWT_REFRESH_SECRET"} {
		t.Setenv(k, "")
	}

	_, err := fromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DB_USER")
	assert.Contains(t, err.Error(), "JWT_REFRESH_SECRET")
}

func TestFromEnvDayDurations(t *testing.T) {
	setRequired(t)
	t.Setenv("JWT_REFRESH_EXPIRY", "14d")
	t.Setenv("JWT_ACCESS_EXPIRY", "1h")
	t.Setenv("APP_ENV", "production")

	cfg, err := fromEnv()
	require.NoError(t, err)
	assert.Equal(t, 14*24*time.Hour, cfg.RefreshTTL)
	assert.Equal(t, time.Hour, cfg.AccessTTL)
	assert.True(t, cfg.IsProduction())
}

func TestFromEnvRejectsBadValues(t *testing.T) {
	setRequired(t)
	t.Setenv("BCRYPT_COST", "high")
	t.Setenv("JWT_REFRESH_SECRET", "access-secret")

	_, err := fromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BCRYPT_COST")
	assert.Contains(t, err.Error(), "must differ")
}

func TestRedisOptionsPreferURL(t *testing.T) {
	rc := RedisConfig{URL: "rediss://default@cache.example.com:6380", Token: "tok", Addr: "localhost:6379"}
	opts, err := rc.Options()
	require.NoError(t, err)
	assert.Equal(t, "cache.example.com:6380", opts.Addr)
	assert.Equal(t, "tok", opts.Password)
	assert.NotNil(t, opts.TLSConfig)
}

func TestRateLimitNormalized(t *testing.T) {
	rl := RateLimitConfig{Capacity: 0, RefillTokens: 0, RefillInterval: 0, TTL: time.Second}.normalized()
	assert.Equal(t, 1, rl.Capacity)
	assert.Equal(t, 1, rl.RefillTokens)
	assert.Equal(t, time.Second, rl.RefillInterval)
	assert.Equal(t, 5*time.Second, rl.TTL)
}
