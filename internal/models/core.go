// Package models holds persistence helpers shared by the domain packages.
package models

import (
	"context"
	"log/slog"

	"github.com/karloscodes/cartridge/sqlite"
	"gorm.io/gorm"
)

// PerformWriteContext runs f in a write transaction bound to ctx, retrying
// while SQLite reports the database as busy.
func PerformWriteContext(ctx context.Context, logger *slog.Logger, dbConn *gorm.DB, f func(tx *gorm.DB) error) error {
	return sqlite.PerformWrite(logger, dbConn.WithContext(ctx), f)
}
