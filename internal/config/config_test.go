package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetConfigDefaults(t *testing.T) {
	t.Setenv("STAYBOOST_ENV", Test)
	Reset()
	t.Cleanup(Reset)

	cfg := GetConfig()
	require.NotNil(t, cfg)

	assert.Equal(t, "stayboost", cfg.AppName)
	assert.Equal(t, Test, cfg.Environment)
	assert.True(t, cfg.IsTest())
	assert.Equal(t, ScoringPolicyGeoBehavioral, cfg.ScoringPolicy)
	assert.False(t, cfg.AuditNonMatches)
	assert.Equal(t, 5*time.Minute, cfg.BrandingCacheTTL())
	assert.Equal(t, time.Hour, cfg.JobInterval())
	assert.Equal(t, 90*24*time.Hour, cfg.ExecutionsRetention())
	assert.Equal(t, 30*24*time.Hour, cfg.SegmentEstimationWindow())
	assert.Equal(t, 4, cfg.MarketplaceStatsParallel)
	assert.Equal(t, "storage/stayboost-test.db", cfg.DatabaseName)
	assert.Equal(t, 1, cfg.GetMaxOpenConns())
}

func TestGetConfigEnvironmentOverrides(t *testing.T) {
	t.Setenv("STAYBOOST_ENV", Development)
	t.Setenv("STAYBOOST_SCORING_POLICY", ScoringPolicyAll)
	t.Setenv("STAYBOOST_AUDIT_NON_MATCHES", "true")
	t.Setenv("STAYBOOST_BRANDING_CACHE_TTL_SECONDS", "60")
	t.Setenv("STAYBOOST_EXECUTIONS_RETENTION_DAYS", "0")
	t.Setenv("STAYBOOST_REDIS_URL", "redis://localhost:6379/2")
	Reset()
	t.Cleanup(Reset)

	cfg := GetConfig()
	assert.Equal(t, ScoringPolicyAll, cfg.ScoringPolicy)
	assert.True(t, cfg.AuditNonMatches)
	assert.Equal(t, time.Minute, cfg.BrandingCacheTTL())
	assert.Zero(t, cfg.ExecutionsRetention(), "zero disables pruning")
	assert.Equal(t, "redis://localhost:6379/2", cfg.RedisURL)
	assert.Equal(t, 10, cfg.GetMaxOpenConns())
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Environment:             Test,
			DatabaseType:            SQLiteDatabase,
			ScoringPolicy:           ScoringPolicyGeoBehavioral,
			BrandingCacheTTLSeconds: 300,
			JobIntervalSeconds:      60,
		}
	}
	require.NoError(t, valid().validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"environment", func(c *Config) { c.Environment = "staging" }},
		{"database type", func(c *Config) { c.DatabaseType = "postgres" }},
		{"scoring policy", func(c *Config) { c.ScoringPolicy = "random" }},
		{"cache ttl", func(c *Config) { c.BrandingCacheTTLSeconds = 0 }},
		{"job interval", func(c *Config) { c.JobIntervalSeconds = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			assert.Error(t, cfg.validate())
		})
	}
}
