// Package cron provides scheduled background jobs using robfig/cron.
package cron

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/FACorreiaa/radiology-revenue-tracker/pkg/metrics"
)

const jobTimeout = 5 * time.Minute

// Resyncer pushes locally buffered writes back to the primary store.
type Resyncer interface {
	Resync(ctx context.Context) (int, error)
}

// Scheduler manages background scheduled jobs using robfig/cron.
type Scheduler struct {
	cron     *cron.Cron
	schedule string
	resyncer Resyncer
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewScheduler creates a new job scheduler. schedule is a standard 5-field
// cron expression.
func NewScheduler(schedule string, resyncer Resyncer, m *metrics.Metrics, logger *slog.Logger) *Scheduler {
	// Create cron with seconds disabled (standard 5-field format)
	c := cron.New(
		cron.WithLogger(cron.VerbosePrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelDebug))),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)

	return &Scheduler{
		cron:     c,
		schedule: schedule,
		resyncer: resyncer,
		metrics:  m,
		logger:   logger,
	}
}

// Start begins scheduled jobs.
func (s *Scheduler) Start() error {
	_, err := s.cron.AddFunc(s.schedule, s.resync)
	if err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info("cron scheduler started",
		slog.Int("jobs", len(s.cron.Entries())),
		slog.String("resync_schedule", s.schedule),
	)
	return nil
}

// Stop gracefully stops all scheduled jobs.
func (s *Scheduler) Stop() context.Context {
	s.logger.Info("cron scheduler stopping")
	return s.cron.Stop()
}

// RunNow triggers a resync on the calling goroutine.
func (s *Scheduler) RunNow() {
	s.resync()
}

func (s *Scheduler) resync() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	synced, err := s.resyncer.Resync(ctx)
	s.metrics.AddResynced(synced)
	if err != nil {
		s.logger.Warn("fallback resync incomplete",
			slog.Int("units_synced", synced),
			slog.Any("error", err),
		)
		return
	}

	if synced > 0 {
		s.logger.Info("fallback resync completed", slog.Int("units_synced", synced))
	}
}
