// Package geoip holds the optional GeoLite2 reader used as a country fallback
// when a storefront does not send a geolocation payload.
package geoip

import (
	"log/slog"
	"os"
	"sync"

	"github.com/oschwald/geoip2-golang"

	"stayboost/internal/config"
)

var (
	geoDB  *geoip2.Reader
	once   sync.Once
	mu     sync.RWMutex
	logger = slog.Default()
)

// InitLogger sets the logger for the geoip package.
func InitLogger(l *slog.Logger) {
	if l != nil {
		logger = l
	}
}

// Open opens the GeoLite2 database at path. It returns nil when the path is
// empty or the file is missing, since lookups are optional.
func Open(path string) *geoip2.Reader {
	if path == "" {
		logger.Debug("GeoIP database path not configured - country fallback disabled")
		return nil
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			logger.Info("GeoLite2 database not found - country fallback disabled",
				slog.String("path", path))
		} else {
			logger.Warn("Error checking GeoLite2 database file",
				slog.String("path", path),
				slog.Any("error", err))
		}
		return nil
	}

	db, err := geoip2.Open(path)
	if err != nil {
		logger.Error("Failed to open GeoLite2 database",
			slog.String("path", path),
			slog.Any("error", err))
		return nil
	}

	logger.Info("GeoLite2 database initialized", slog.String("path", path))
	return db
}

// GetGeoDB returns the shared reader for the configured path, opening it on
// first use. The result may be nil.
func GetGeoDB() *geoip2.Reader {
	once.Do(func() {
		mu.Lock()
		geoDB = Open(config.GetConfig().GeoDBPath)
		mu.Unlock()
	})
	mu.RLock()
	defer mu.RUnlock()
	return geoDB
}

// ReloadGeoDB closes the shared reader and opens the configured file again.
func ReloadGeoDB() {
	once.Do(func() {})

	mu.Lock()
	defer mu.Unlock()

	if geoDB != nil {
		geoDB.Close()
	}
	geoDB = Open(config.GetConfig().GeoDBPath)
}
