package http

import (
	"context"
	"log/slog"
	"time"

	"github.com/karloscodes/cartridge"

	"stayboost/internal/pkg/geoip"
)

// HealthStatus represents the health check response
type HealthStatus struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	DBStatus  string    `json:"db_status"`
	GeoStatus string    `json:"geo_status"`
}

// HealthIndexAction reports database connectivity and whether the GeoLite
// database is loaded. A missing GeoLite database does not degrade health;
// countries then come from the storefront payload only.
func HealthIndexAction(ctx *cartridge.Context) error {
	dbStatus := "ok"

	db := ctx.DBManager.GetConnection()
	if db == nil {
		dbStatus = "error"
		ctx.Logger.Error("Database connection unavailable")
	} else {
		sqlDB, err := db.DB()
		if err != nil {
			dbStatus = "error"
			ctx.Logger.Error("Database connection error", slog.Any("error", err))
		} else {
			pingCtx, cancel := context.WithTimeout(ctx.UserContext(), 2*time.Second)
			defer cancel()
			if err := sqlDB.PingContext(pingCtx); err != nil {
				dbStatus = "error"
				ctx.Logger.Error("Database ping failed", slog.Any("error", err))
			}
		}
	}

	geoStatus := "ok"
	if geoip.GetGeoDB() == nil {
		geoStatus = "unavailable"
	}

	health := HealthStatus{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
		DBStatus:  dbStatus,
		GeoStatus: geoStatus,
	}

	if dbStatus != "ok" {
		health.Status = "degraded"
	}

	return ctx.JSON(health)
}
