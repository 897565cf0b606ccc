package jobs

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"stayboost/internal/config"
	"stayboost/internal/pkg/geoip"
)

const (
	// GeoLite database is updated weekly by MaxMind
	GeoLiteUpdateInterval = 7 * 24 * time.Hour
	// MaxMind download URL template
	MaxMindDownloadURL = "https://download.maxmind.com/app/geoip_download?edition_id=GeoLite2-City&license_key=%s&suffix=tar.gz"
)

// GeoLiteUpdaterJob keeps the GeoLite2 database used for the country
// fallback up to date. It does nothing without a license key.
type GeoLiteUpdaterJob struct {
	logger      *slog.Logger
	path        string
	licenseKey  string
	downloadURL string
	client      *http.Client
}

// NewGeoLiteUpdaterJob creates a new GeoLite updater job
func NewGeoLiteUpdaterJob(logger *slog.Logger, cfg *config.Config) *GeoLiteUpdaterJob {
	path := cfg.GeoDBPath
	if path == "" {
		path = filepath.Join("storage", "GeoLite2-City.mmdb")
	}
	return &GeoLiteUpdaterJob{
		logger:      logger,
		path:        path,
		licenseKey:  cfg.GeoLiteLicenseKey,
		downloadURL: fmt.Sprintf(MaxMindDownloadURL, cfg.GeoLiteLicenseKey),
		client:      &http.Client{Timeout: 2 * time.Minute},
	}
}

func (j *GeoLiteUpdaterJob) Name() string { return "geolite_updater" }

// Run downloads a fresh database when the current file is missing or older
// than GeoLiteUpdateInterval, then reloads the shared reader.
func (j *GeoLiteUpdaterJob) Run(ctx context.Context) error {
	if j.licenseKey == "" {
		j.logger.Debug("GeoLite license key not configured, skipping update")
		return nil
	}

	if info, err := os.Stat(j.path); err == nil && time.Since(info.ModTime()) < GeoLiteUpdateInterval {
		j.logger.Debug("GeoLite database is up to date",
			slog.Time("last_update", info.ModTime()))
		return nil
	}

	j.logger.Info("Starting GeoLite database update", slog.String("path", j.path))
	if err := j.downloadAndUpdate(ctx); err != nil {
		return fmt.Errorf("failed to update GeoLite database: %w", err)
	}

	geoip.ReloadGeoDB()
	j.logger.Info("GeoLite database updated successfully")
	return nil
}

// downloadAndUpdate downloads the archive and replaces the database file
func (j *GeoLiteUpdaterJob) downloadAndUpdate(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(j.path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, j.downloadURL, nil)
	if err != nil {
		return err
	}
	resp, err := j.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download GeoLite database: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download failed with status: %d", resp.StatusCode)
	}

	// Extract next to the target and rename, so readers never see a partial file.
	tmpPath := j.path + ".download"
	if err := extractMMDB(resp.Body, tmpPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to extract database: %w", err)
	}
	return os.Rename(tmpPath, j.path)
}

// extractMMDB writes the first .mmdb entry of a tar.gz stream to destPath.
func extractMMDB(r io.Reader, destPath string) error {
	gzr, err := gzip.NewReader(r)
	if err != nil {
		return fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer gzr.Close()

	tr := tar.NewReader(gzr)
	for {
		header, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read tar: %w", err)
		}
		if !strings.HasSuffix(header.Name, ".mmdb") {
			continue
		}

		outFile, err := os.Create(destPath)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer outFile.Close()

		if _, err := io.Copy(outFile, tr); err != nil {
			return fmt.Errorf("failed to extract file: %w", err)
		}
		return outFile.Close()
	}

	return fmt.Errorf("no .mmdb file found in archive")
}
