package jobs

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stayboost/internal/config"
)

func tarGz(t *testing.T, files map[string]string) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for name, content := range files {
		require.NoError(t, tw.WriteHeader(&tar.Header{Name: name, Mode: 0644, Size: int64(len(content))}))
		_, err := tw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	return &buf
}

func TestExtractMMDB(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "GeoLite2-City.mmdb")

	archive := tarGz(t, map[string]string{
		"GeoLite2-City_20260101/README.txt":         "readme",
		"GeoLite2-City_20260101/GeoLite2-City.mmdb": "mmdb-bytes",
	})
	require.NoError(t, extractMMDB(archive, dest))

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "mmdb-bytes", string(data))
}

func TestExtractMMDBWithoutDatabase(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "GeoLite2-City.mmdb")
	archive := tarGz(t, map[string]string{"README.txt": "readme"})
	assert.ErrorContains(t, extractMMDB(archive, dest), "no .mmdb file")
}

func TestGeoLiteUpdaterSkipsWithoutLicenseKey(t *testing.T) {
	cfg := &config.Config{GeoDBPath: filepath.Join(t.TempDir(), "geo.mmdb")}
	job := NewGeoLiteUpdaterJob(slog.Default(), cfg)

	require.NoError(t, job.Run(context.Background()))
	_, err := os.Stat(cfg.GeoDBPath)
	assert.True(t, os.IsNotExist(err))
}
