package database

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stayboost/internal/config"
)

func TestMigrateDatabase(t *testing.T) {
	cfg := &config.Config{
		Environment:  config.Test,
		DatabaseName: filepath.Join(t.TempDir(), "stayboost.db"),
	}
	dm := NewDBManager(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, dm.Init())
	t.Cleanup(func() {
		if sqlDB, err := dm.GetConnection().DB(); err == nil {
			sqlDB.Close()
		}
	})

	require.NoError(t, dm.MigrateDatabase())
	require.NoError(t, dm.MigrateDatabase(), "migrations are repeatable")

	migrator := dm.GetConnection().Migrator()
	for _, table := range []string{
		"targeting_rules",
		"targeting_executions",
		"customer_segments",
		"templates",
		"template_usage_stats",
		"template_ratings",
		"shop_brandings",
	} {
		assert.True(t, migrator.HasTable(table), table)
	}
}
