package scheduler

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Nexora-Open-Source/job-feed-backend/types"
)

// Importer runs a full import cycle against a set of feed URLs.
type Importer interface {
	RunImport(ctx context.Context, urls []string) (*types.ImportSummary, error)
}

// Scheduler triggers periodic imports on a fixed interval.
type Scheduler struct {
	importer Importer
	urls     []string
	interval time.Duration
	logger   *logrus.Logger
}

func New(importer Importer, urls []string, interval time.Duration, logger *logrus.Logger) *Scheduler {
	return &Scheduler{
		importer: importer,
		urls:     urls,
		interval: interval,
		logger:   logger,
	}
}

// Run blocks until ctx is cancelled, kicking off an import every interval.
// An interval of zero (or no configured URLs) disables scheduling entirely.
func (s *Scheduler) Run(ctx context.Context) {
	if s.interval <= 0 || len(s.urls) == 0 {
		s.logger.Info("Scheduled imports disabled")
		return
	}

	s.logger.WithFields(logrus.Fields{
		"interval":  s.interval.String(),
		"feed_urls": len(s.urls),
	}).Info("Starting import scheduler")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Import scheduler stopped")
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	summary, err := s.importer.RunImport(ctx, s.urls)
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"error": err.Error(),
		}).Error("Scheduled import failed")
		return
	}

	s.logger.WithFields(logrus.Fields{
		"import_run_id": summary.ImportRunID,
		"total_jobs":    summary.TotalJobs,
	}).Info("Scheduled import completed")
}
