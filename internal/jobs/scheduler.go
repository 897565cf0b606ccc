package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/karloscodes/cartridge"

	"stayboost/internal/config"
	"stayboost/internal/metrics"
)

// Job is a unit of periodic background work.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

type scheduledJob struct {
	job      Job
	interval time.Duration
}

// Scheduler is responsible for running background jobs
type Scheduler struct {
	dbManager cartridge.DBManager
	logger    *slog.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	enabled   bool
	isRunning bool
	cfg       *config.Config

	// Mutex to prevent concurrent job executions
	processingMutex sync.Mutex
	isProcessing    bool

	jobs    []scheduledJob
	tickers []*time.Ticker
	wg      sync.WaitGroup
}

// NewScheduler registers the StayBoost jobs: execution retention and segment
// refresh on the configured interval, GeoLite updates daily.
func NewScheduler(dbManager cartridge.DBManager, logger *slog.Logger) (*Scheduler, error) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := config.GetConfig()

	s := &Scheduler{
		dbManager: dbManager,
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
		enabled:   true,
		cfg:       cfg,
	}

	s.Register(NewExecutionRetentionJob(dbManager, logger, cfg), cfg.JobInterval())
	s.Register(NewSegmentRefreshJob(dbManager, logger, cfg), cfg.JobInterval())
	s.Register(NewGeoLiteUpdaterJob(logger, cfg), 24*time.Hour)

	return s, nil
}

// Register adds a job to run every interval once the scheduler starts.
func (s *Scheduler) Register(job Job, interval time.Duration) {
	s.jobs = append(s.jobs, scheduledJob{job: job, interval: interval})
}

// executeJobSafely runs a job only if no other job is currently executing
func (s *Scheduler) executeJobSafely(job Job) {
	name := job.Name()

	s.processingMutex.Lock()
	if s.isProcessing {
		s.logger.Debug("Skipping job execution - previous job still running", slog.String("job", name))
		s.processingMutex.Unlock()
		metrics.JobRuns.WithLabelValues(name, "skipped").Inc()
		return
	}
	s.isProcessing = true
	s.processingMutex.Unlock()

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Panic recovered in background job",
				slog.String("job", name),
				slog.Any("panic", r))
			metrics.JobRuns.WithLabelValues(name, "error").Inc()
		}

		s.processingMutex.Lock()
		s.isProcessing = false
		s.processingMutex.Unlock()
	}()

	if err := job.Run(s.ctx); err != nil {
		s.logger.Error("Error executing job", slog.String("job", name), slog.Any("error", err))
		metrics.JobRuns.WithLabelValues(name, "error").Inc()
		return
	}
	metrics.JobRuns.WithLabelValues(name, "ok").Inc()
}

// Start begins all background jobs.
// Implements cartridge.BackgroundWorker interface.
func (s *Scheduler) Start() error {
	if !s.enabled {
		s.logger.Info("Background jobs are disabled.")
		return nil
	}

	if s.isRunning {
		s.logger.Info("Background jobs already running.")
		return nil
	}

	s.logger.Info("Starting background jobs...", slog.Int("jobs", len(s.jobs)))
	s.isRunning = true

	for _, sj := range s.jobs {
		s.startJob(sj)
	}

	s.logger.Info("Background jobs started",
		slog.Bool("enabled", s.enabled),
		slog.Bool("isRunning", s.isRunning))

	return nil
}

func (s *Scheduler) startJob(sj scheduledJob) {
	s.logger.Info("Starting job", slog.String("job", sj.job.Name()), slog.Duration("interval", sj.interval))
	ticker := time.NewTicker(sj.interval)
	s.tickers = append(s.tickers, ticker)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.executeJobSafely(sj.job)

		for {
			select {
			case <-ticker.C:
				s.executeJobSafely(sj.job)
			case <-s.ctx.Done():
				s.logger.Info("Job stopped", slog.String("job", sj.job.Name()))
				return
			}
		}
	}()
}

// Stop halts all background jobs.
// Implements cartridge.BackgroundWorker interface.
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping background jobs...")
	s.enabled = false

	for _, ticker := range s.tickers {
		ticker.Stop()
	}

	s.cancel()
	s.wg.Wait()
	s.isRunning = false
	s.logger.Info("Background jobs stopped")
}

// IsRunning returns whether jobs are currently running
func (s *Scheduler) IsRunning() bool {
	return s.isRunning
}

// RunNow runs a registered job by name, outside the schedule. It reports
// false when no job has that name.
func (s *Scheduler) RunNow(ctx context.Context, name string) (bool, error) {
	for _, sj := range s.jobs {
		if sj.job.Name() == name {
			return true, sj.job.Run(ctx)
		}
	}
	return false, nil
}
