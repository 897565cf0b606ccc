package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/karloscodes/cartridge"
	"gorm.io/gorm"

	"stayboost/internal/config"
	"stayboost/internal/models"
	"stayboost/internal/targeting"
)

// ExecutionRetentionJob deletes audit executions older than the retention
// period.
type ExecutionRetentionJob struct {
	dbManager cartridge.DBManager
	logger    *slog.Logger
	retention time.Duration
	now       func() time.Time
}

func NewExecutionRetentionJob(dbManager cartridge.DBManager, logger *slog.Logger, cfg *config.Config) *ExecutionRetentionJob {
	return &ExecutionRetentionJob{
		dbManager: dbManager,
		logger:    logger,
		retention: cfg.ExecutionsRetention(),
		now:       time.Now,
	}
}

func (j *ExecutionRetentionJob) Name() string { return "execution_retention" }

// Run deletes expired executions in one write. A zero retention keeps
// everything.
func (j *ExecutionRetentionJob) Run(ctx context.Context) error {
	if j.retention <= 0 {
		j.logger.Debug("Execution retention disabled")
		return nil
	}
	cutoff := j.now().UTC().Add(-j.retention)

	var deleted int64
	err := models.PerformWriteContext(ctx, j.logger, j.dbManager.GetConnection(), func(tx *gorm.DB) error {
		var err error
		deleted, err = targeting.PruneExecutions(tx, cutoff)
		return err
	})
	if err != nil {
		return err
	}

	if deleted > 0 {
		j.logger.Info("Pruned old targeting executions",
			slog.Int64("deleted_count", deleted),
			slog.Time("cutoff", cutoff))
	}
	return nil
}
