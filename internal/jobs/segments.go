package jobs

import (
	"context"
	"log/slog"

	"github.com/karloscodes/cartridge"

	"stayboost/internal/config"
	"stayboost/internal/targeting"
)

// SegmentRefreshJob keeps the cached size of active segments current
// between reads.
type SegmentRefreshJob struct {
	dbManager cartridge.DBManager
	logger    *slog.Logger
	cfg       *config.Config
}

func NewSegmentRefreshJob(dbManager cartridge.DBManager, logger *slog.Logger, cfg *config.Config) *SegmentRefreshJob {
	return &SegmentRefreshJob{dbManager: dbManager, logger: logger, cfg: cfg}
}

func (j *SegmentRefreshJob) Name() string { return "segment_refresh" }

func (j *SegmentRefreshJob) Run(ctx context.Context) error {
	estimator := targeting.NewSegmentEstimator(j.dbManager.GetConnection(), j.logger, j.cfg.SegmentEstimationWindow())
	refreshed, err := estimator.RefreshActive(ctx)
	if err != nil {
		return err
	}
	j.logger.Debug("Refreshed segment sizes", slog.Int("segments", refreshed))
	return nil
}
