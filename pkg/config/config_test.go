package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromViperDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	cfg := fromViper(v)
	require.NotNil(t, cfg)
	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, 24, cfg.Enrollment.CreditLimit)
	assert.Equal(t, 14, cfg.Enrollment.WithdrawalWindowDays)
	assert.Equal(t, 5*time.Second, cfg.Enrollment.LockTTL)
	assert.Equal(t, 1, cfg.Calendar.MaxRetries)
	assert.Equal(t, 2*time.Second, cfg.Scheduling.ConflictCheckTimeout)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
	assert.False(t, cfg.Redis.Enabled)
}

func TestFromViperOverrides(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("ENROLLMENT_CREDIT_LIMIT", 0)
	v.Set("CALENDAR_TIMEOUT", "not-a-duration")
	v.Set("ALLOWED_ORIGINS", "https://a.example, ,https://b.example")
	v.Set("TRANSCRIPT_CACHE_TTL", "1m")

	cfg := fromViper(v)
	assert.Equal(t, 24, cfg.Enrollment.CreditLimit)
	assert.Equal(t, 5*time.Second, cfg.Calendar.Timeout)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, time.Minute, cfg.Cache.TranscriptTTL)
}
