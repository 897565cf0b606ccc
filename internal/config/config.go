// Package config provides configuration management using Viper
package config

import (
	"fmt"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Environment types
const (
	Development = "development"
	Production  = "production"
	Test        = "test"
)

// LogLevel represents the logging level for the application
type LogLevel string

// Available log levels
const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// Database types
const (
	SQLiteDatabase = "sqlite"
)

// Scoring policies
const (
	ScoringPolicyGeoBehavioral = "geo_behavioral"
	ScoringPolicyAll           = "all"
)

const defaultPrivateKey = "88888888888888888888888888888888"

// Config holds all configuration parameters for the application
type Config struct {
	// Application settings
	AppName     string   `mapstructure:"appname"`
	AppPort     string   `mapstructure:"appport"`
	Environment string   `mapstructure:"environment"`
	LogLevel    LogLevel `mapstructure:"loglevel"`
	PrivateKey  string   `mapstructure:"privatekey"`

	// Shopify app secret used to verify session tokens
	ShopifyAPISecret string `mapstructure:"shopifyapisecret"`

	// File paths
	DatabasePath          string `mapstructure:"storagepath"`
	DatabaseName          string `mapstructure:"-"` // Derived from other settings
	GeoDBPath             string `mapstructure:"geodbpath"`
	GeoLiteLicenseKey     string `mapstructure:"geolitelicensekey"`
	PublicDirectory       string `mapstructure:"publicdir"`
	PublicAssetsUrlPrefix string `mapstructure:"publicassetsurlprefix"`

	// Logging settings
	LogsDirectory    string `mapstructure:"logsdir"`
	LogsMaxSizeInMb  int    `mapstructure:"logsmaxsizeinmb"`
	LogsMaxBackups   int    `mapstructure:"logsmaxbackups"`
	LogsMaxAgeInDays int    `mapstructure:"logsmaxageindays"`

	// Database settings
	DatabaseType         string `mapstructure:"dbtype"`
	DatabaseMaxOpenConns int    `mapstructure:"dbmaxopenconns"`
	DatabaseMaxIdleConns int    `mapstructure:"dbmaxidleconns"`

	// Branding cache settings. An empty RedisURL keeps the cache in process.
	BrandingCacheTTLSeconds int    `mapstructure:"brandingcachettlseconds"`
	RedisURL                string `mapstructure:"redisurl"`

	// Targeting settings
	AuditNonMatches          bool   `mapstructure:"auditnonmatches"`
	ScoringPolicy            string `mapstructure:"scoringpolicy"`
	SegmentEstimationDays    int    `mapstructure:"segmentestimationdays"`
	ExecutionsRetentionDays  int    `mapstructure:"executionsretentiondays"`
	JobIntervalSeconds       int    `mapstructure:"jobintervalseconds"`
	MarketplaceStatsParallel int    `mapstructure:"marketplacestatsparallel"`
}

var (
	cfg  *Config
	once sync.Once
)

// GetConfig returns the application configuration
func GetConfig() *Config {
	once.Do(func() {
		// A missing .env file is not an error; the environment may already be set.
		_ = godotenv.Load()

		v := viper.New()

		v.SetDefault("appname", "stayboost")
		v.SetDefault("appport", "3000")
		v.SetDefault("environment", Development)
		v.SetDefault("loglevel", string(LogLevelDebug))
		v.SetDefault("privatekey", defaultPrivateKey)
		v.SetDefault("shopifyapisecret", "")
		v.SetDefault("storagepath", "storage")
		v.SetDefault("geodbpath", "storage/GeoLite2-City.mmdb")
		v.SetDefault("geolitelicensekey", "")
		v.SetDefault("publicdir", "web/dist/assets")
		v.SetDefault("publicassetsurlprefix", "/")
		v.SetDefault("logsdir", "logs")
		v.SetDefault("logsmaxsizeinmb", 20)
		v.SetDefault("logsmaxbackups", 10)
		v.SetDefault("logsmaxageindays", 30)
		v.SetDefault("dbtype", SQLiteDatabase)
		v.SetDefault("dbmaxopenconns", 0)
		v.SetDefault("dbmaxidleconns", 0)
		v.SetDefault("brandingcachettlseconds", 300)
		v.SetDefault("redisurl", "")
		v.SetDefault("auditnonmatches", false)
		v.SetDefault("scoringpolicy", ScoringPolicyGeoBehavioral)
		v.SetDefault("segmentestimationdays", 30)
		v.SetDefault("executionsretentiondays", 90)
		v.SetDefault("jobintervalseconds", 3600)
		v.SetDefault("marketplacestatsparallel", 4)

		v.BindEnv("appname", "STAYBOOST_APP_NAME")
		v.BindEnv("appport", "STAYBOOST_APP_PORT")
		v.BindEnv("environment", "STAYBOOST_ENV")
		v.BindEnv("loglevel", "STAYBOOST_LOG_LEVEL")
		v.BindEnv("privatekey", "STAYBOOST_PRIVATE_KEY")
		v.BindEnv("shopifyapisecret", "SHOPIFY_API_SECRET")
		v.BindEnv("storagepath", "STAYBOOST_STORAGE_PATH")
		v.BindEnv("geodbpath", "STAYBOOST_GEO_DB_PATH")
		v.BindEnv("geolitelicensekey", "STAYBOOST_GEOLITE_LICENSE_KEY")
		v.BindEnv("publicdir", "STAYBOOST_PUBLIC_DIR")
		v.BindEnv("publicassetsurlprefix", "STAYBOOST_PUBLIC_ASSETS_URL_PREFIX")
		v.BindEnv("logsdir", "STAYBOOST_LOGS_DIR")
		v.BindEnv("logsmaxsizeinmb", "STAYBOOST_LOGS_MAX_SIZE_IN_MB")
		v.BindEnv("logsmaxbackups", "STAYBOOST_LOGS_MAX_BACKUPS")
		v.BindEnv("logsmaxageindays", "STAYBOOST_LOGS_MAX_AGE_IN_DAYS")
		v.BindEnv("dbtype", "STAYBOOST_DB_TYPE")
		v.BindEnv("dbmaxopenconns", "STAYBOOST_DB_MAX_OPEN_CONNS")
		v.BindEnv("dbmaxidleconns", "STAYBOOST_DB_MAX_IDLE_CONNS")
		v.BindEnv("brandingcachettlseconds", "STAYBOOST_BRANDING_CACHE_TTL_SECONDS")
		v.BindEnv("redisurl", "STAYBOOST_REDIS_URL")
		v.BindEnv("auditnonmatches", "STAYBOOST_AUDIT_NON_MATCHES")
		v.BindEnv("scoringpolicy", "STAYBOOST_SCORING_POLICY")
		v.BindEnv("segmentestimationdays", "STAYBOOST_SEGMENT_ESTIMATION_DAYS")
		v.BindEnv("executionsretentiondays", "STAYBOOST_EXECUTIONS_RETENTION_DAYS")
		v.BindEnv("jobintervalseconds", "STAYBOOST_JOB_INTERVAL_SECONDS")
		v.BindEnv("marketplacestatsparallel", "STAYBOOST_MARKETPLACE_STATS_PARALLEL")

		cfg = &Config{}
		if err := v.Unmarshal(cfg); err != nil {
			log.Fatalf("config: failed to unmarshal configuration: %v", err)
		}

		if err := cfg.validate(); err != nil {
			log.Fatalf("config: invalid configuration: %v", err)
		}

		cfg.DatabaseName = cfg.GetDatabasePath()

		if cfg.PrivateKey == "" {
			log.Fatal("Private key is required")
		}
		if cfg.IsProduction() && cfg.PrivateKey == defaultPrivateKey {
			log.Fatal("Production requires a unique STAYBOOST_PRIVATE_KEY (cannot use default)")
		}
	})
	return cfg
}

// validate checks the configuration for errors
func (c *Config) validate() error {
	validEnvs := map[string]bool{
		Development: true,
		Production:  true,
		Test:        true,
	}
	if !validEnvs[c.Environment] {
		return fmt.Errorf("invalid environment: %s", c.Environment)
	}

	if c.DatabaseType != SQLiteDatabase {
		return fmt.Errorf("invalid database type: %s", c.DatabaseType)
	}

	switch c.ScoringPolicy {
	case ScoringPolicyGeoBehavioral, ScoringPolicyAll:
	default:
		return fmt.Errorf("invalid scoring policy: %s", c.ScoringPolicy)
	}

	if c.BrandingCacheTTLSeconds <= 0 {
		return fmt.Errorf("branding cache TTL must be positive, got %d", c.BrandingCacheTTLSeconds)
	}

	if c.JobIntervalSeconds <= 0 {
		return fmt.Errorf("job interval must be positive, got %d", c.JobIntervalSeconds)
	}

	return nil
}

// GetDatabasePath returns the appropriate database path based on environment
func (c *Config) GetDatabasePath() string {
	if c.DatabaseName == "" {
		c.DatabaseName = filepath.Join(c.DatabasePath,
			fmt.Sprintf("%s-%s.db", c.AppName, c.Environment))
	}
	return c.DatabaseName
}

// IsDevelopment returns true if the environment is development
func (c *Config) IsDevelopment() bool {
	return c.Environment == Development
}

// IsProduction returns true if the environment is production
func (c *Config) IsProduction() bool {
	return c.Environment == Production
}

// IsTest returns true if the environment is test
func (c *Config) IsTest() bool {
	return c.Environment == Test
}

// BrandingCacheTTL returns the lifetime of a cached shop branding entry.
func (c *Config) BrandingCacheTTL() time.Duration {
	return time.Duration(c.BrandingCacheTTLSeconds) * time.Second
}

// JobInterval returns the period of the background jobs.
func (c *Config) JobInterval() time.Duration {
	return time.Duration(c.JobIntervalSeconds) * time.Second
}

// ExecutionsRetention returns how long audit executions are kept. Zero
// disables pruning.
func (c *Config) ExecutionsRetention() time.Duration {
	if c.ExecutionsRetentionDays <= 0 {
		return 0
	}
	return time.Duration(c.ExecutionsRetentionDays) * 24 * time.Hour
}

// SegmentEstimationWindow returns how far back segment sizes look.
func (c *Config) SegmentEstimationWindow() time.Duration {
	days := c.SegmentEstimationDays
	if days <= 0 {
		days = 30
	}
	return time.Duration(days) * 24 * time.Hour
}

// GetPort returns the HTTP server port (implements cartridge.Config interface).
func (c *Config) GetPort() string {
	return c.AppPort
}

// GetPublicDirectory returns the path to public/static assets (implements cartridge.Config interface).
func (c *Config) GetPublicDirectory() string {
	return c.PublicDirectory
}

// GetAssetsPrefix returns the URL prefix for static assets (implements cartridge.Config interface).
func (c *Config) GetAssetsPrefix() string {
	return c.PublicAssetsUrlPrefix
}

// GetAppName returns the application name (implements cartridge.FactoryConfig interface).
func (c *Config) GetAppName() string {
	return c.AppName
}

// DatabaseDSN returns the database connection string (implements cartridge.FactoryConfig interface).
func (c *Config) DatabaseDSN() string {
	return c.GetDatabasePath()
}

// GetSessionSecret returns the session encryption key (implements cartridge.FactoryConfig interface).
func (c *Config) GetSessionSecret() string {
	return c.PrivateKey
}

// GetMaxOpenConns returns the appropriate MaxOpenConns value based on environment.
// Tests run with a single connection; other environments allow 10 concurrent readers.
func (c *Config) GetMaxOpenConns() int {
	if c.DatabaseMaxOpenConns > 0 {
		return c.DatabaseMaxOpenConns
	}
	if c.Environment == Test {
		return 1
	}
	return 10
}

// GetMaxIdleConns returns the appropriate MaxIdleConns value based on environment.
func (c *Config) GetMaxIdleConns() int {
	if c.DatabaseMaxIdleConns > 0 {
		return c.DatabaseMaxIdleConns
	}
	if c.Environment == Test {
		return 1
	}
	return 5
}

// GetLogLevel returns the log level as a string (implements cartridge.LogConfigProvider).
func (c *Config) GetLogLevel() string {
	return string(c.LogLevel)
}

// GetLogDirectory returns the logs directory (implements cartridge.LogConfigProvider).
func (c *Config) GetLogDirectory() string {
	return c.LogsDirectory
}

// GetLogMaxSizeMB returns the max log file size in MB (implements cartridge.LogConfigProvider).
func (c *Config) GetLogMaxSizeMB() int {
	return c.LogsMaxSizeInMb
}

// GetLogMaxBackups returns the max number of log backups (implements cartridge.LogConfigProvider).
func (c *Config) GetLogMaxBackups() int {
	return c.LogsMaxBackups
}

// GetLogMaxAgeDays returns the max age in days for log files (implements cartridge.LogConfigProvider).
func (c *Config) GetLogMaxAgeDays() int {
	return c.LogsMaxAgeInDays
}

// Reset clears the cached configuration; intended for tests.
func Reset() {
	once = sync.Once{}
	cfg = nil
}
