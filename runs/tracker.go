/*
Package runs tracks the lifecycle and accounting of import runs.

One run covers one fetch sweep across a set of feed URLs: created in-progress,
updated once with fetch-phase counts, then incrementally reconciled with
per-item queue outcomes until its counters reflect exact processing results.
*/
package runs

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/Nexora-Open-Source/job-feed-backend/monitoring"
	"github.com/Nexora-Open-Source/job-feed-backend/queue"
	"github.com/Nexora-Open-Source/job-feed-backend/store"
	"github.com/Nexora-Open-Source/job-feed-backend/types"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Tracker records import run lifecycles against the run store.
type Tracker struct {
	store  store.RunStore
	logger *logrus.Logger
	now    func() time.Time
	newID  func() string

	// serializes read-modify-write cycles from concurrent queue workers
	mu sync.Mutex
}

// NewTracker creates a tracker over the given run store.
func NewTracker(runStore store.RunStore, logger *logrus.Logger) *Tracker {
	return &Tracker{
		store:  runStore,
		logger: logger,
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// FetchPhase carries the accounting of a completed fetch sweep.
type FetchPhase struct {
	TotalFetched int
	DurationMs   int64
	FetchErrors  []string
}

// Start creates a new in-progress run and returns its ID.
func (t *Tracker) Start(ctx context.Context, sourceLabel string) (string, error) {
	run := &types.ImportRun{
		ID:          t.newID(),
		SourceLabel: sourceLabel,
		StartedAt:   t.now(),
		Status:      types.RunInProgress,
	}
	if err := t.store.Create(ctx, run); err != nil {
		return "", fmt.Errorf("starting import run: %v", err)
	}

	t.logger.WithFields(logrus.Fields{
		"import_run_id": run.ID,
		"source_label":  sourceLabel,
	}).Info("Import run started")
	return run.ID, nil
}

// RecordFetchPhase stores the fetch-sweep counts and resolves the run's
// status: zero fetched jobs with at least one fetch error is a failed run,
// zero fetched with zero errors completes cleanly, anything fetched
// completes and leaves per-item accounting to RecordOutcome.
func (t *Tracker) RecordFetchPhase(ctx context.Context, runID string, phase FetchPhase) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	run, err := t.store.Get(ctx, runID)
	if err != nil {
		return fmt.Errorf("recording fetch phase: %v", err)
	}

	run.TotalFetched = phase.TotalFetched
	run.DurationMs = phase.DurationMs
	run.FailedReasons = append(run.FailedReasons, phase.FetchErrors...)
	if phase.TotalFetched == 0 && len(phase.FetchErrors) > 0 {
		run.Status = types.RunFailed
	} else {
		run.Status = types.RunCompleted
	}

	if err := t.store.Update(ctx, run); err != nil {
		return fmt.Errorf("recording fetch phase: %v", err)
	}
	monitoring.RecordImportRun(run.Status)

	t.logger.WithFields(logrus.Fields{
		"import_run_id": runID,
		"total_fetched": phase.TotalFetched,
		"fetch_errors":  len(phase.FetchErrors),
		"status":        run.Status,
		"duration_ms":   phase.DurationMs,
	}).Info("Import run fetch phase recorded")
	return nil
}

// RecordOutcome rolls one terminal queue outcome into the run's counters.
func (t *Tracker) RecordOutcome(ctx context.Context, runID string, outcome queue.Outcome) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	run, err := t.store.Get(ctx, runID)
	if err != nil {
		return fmt.Errorf("recording outcome: %v", err)
	}

	switch outcome.Status {
	case queue.OutcomeCreated:
		run.NewJobs++
	case queue.OutcomeUpdated:
		run.UpdatedJobs++
	default:
		run.FailedJobs++
		if outcome.Reason != "" {
			run.FailedReasons = append(run.FailedReasons, outcome.Reason)
		}
	}

	if err := t.store.Update(ctx, run); err != nil {
		return fmt.Errorf("recording outcome: %v", err)
	}
	return nil
}

// MarkFailed terminates a run with a single failure reason, e.g. when bulk
// enqueue fails with the broker unavailable.
func (t *Tracker) MarkFailed(ctx context.Context, runID, reason string, durationMs int64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	run, err := t.store.Get(ctx, runID)
	if err != nil {
		return fmt.Errorf("marking run failed: %v", err)
	}

	run.Status = types.RunFailed
	run.FailedReasons = append(run.FailedReasons, reason)
	run.DurationMs = durationMs

	if err := t.store.Update(ctx, run); err != nil {
		return fmt.Errorf("marking run failed: %v", err)
	}
	monitoring.RecordImportRun(run.Status)

	t.logger.WithFields(logrus.Fields{
		"import_run_id": runID,
		"reason":        reason,
	}).Error("Import run failed")
	return nil
}

// GetByID returns one run.
func (t *Tracker) GetByID(ctx context.Context, runID string) (*types.ImportRun, error) {
	return t.store.Get(ctx, runID)
}

// List returns one page of runs, newest first. Pages are 1-based.
func (t *Tracker) List(ctx context.Context, page, pageSize int) ([]*types.ImportRun, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return t.store.List(ctx, (page-1)*pageSize, pageSize)
}

// Stats aggregates run statistics: totals, runs over the last 24h, the
// completed-run success rate as a two-decimal percentage (0 with no runs) and
// the most recent run.
func (t *Tracker) Stats(ctx context.Context) (*types.ImportStats, error) {
	total, err := t.store.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("aggregating run stats: %v", err)
	}

	stats := &types.ImportStats{TotalRuns: total}
	if total == 0 {
		return stats, nil
	}

	completed, err := t.store.CountByStatus(ctx, types.RunCompleted)
	if err != nil {
		return nil, fmt.Errorf("aggregating run stats: %v", err)
	}
	stats.SuccessRate = math.Round(float64(completed)/float64(total)*100*100) / 100

	stats.RunsLast24h, err = t.store.CountSince(ctx, t.now().Add(-24*time.Hour))
	if err != nil {
		return nil, fmt.Errorf("aggregating run stats: %v", err)
	}

	latest, err := t.store.List(ctx, 0, 1)
	if err != nil {
		return nil, fmt.Errorf("aggregating run stats: %v", err)
	}
	if len(latest) > 0 {
		stats.LatestRun = latest[0]
	}
	return stats, nil
}
