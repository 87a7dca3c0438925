/*
Package importer orchestrates one end-to-end ingestion sweep: parallel feed
fetch, extraction, normalization, run accounting and bulk enqueue.
*/
package importer

import (
	"context"
	"fmt"
	"time"

	"github.com/Nexora-Open-Source/job-feed-backend/feed"
	"github.com/Nexora-Open-Source/job-feed-backend/monitoring"
	"github.com/Nexora-Open-Source/job-feed-backend/runs"
	"github.com/Nexora-Open-Source/job-feed-backend/types"
	"github.com/sirupsen/logrus"
)

// Enqueuer is the queue capability the importer depends on.
type Enqueuer interface {
	EnqueueBulk(ctx context.Context, candidates []*types.Job, importRunID string) (int, error)
}

// Service is the pipeline entry point.
type Service struct {
	client     *feed.Client
	extractor  *feed.Extractor
	normalizer *feed.Normalizer
	queue      Enqueuer
	tracker    *runs.Tracker
	logger     *logrus.Logger
}

// New wires an importer from its collaborators.
func New(client *feed.Client, queue Enqueuer, tracker *runs.Tracker, logger *logrus.Logger) *Service {
	return &Service{
		client:     client,
		extractor:  feed.NewExtractor(),
		normalizer: feed.NewNormalizer(),
		queue:      queue,
		tracker:    tracker,
		logger:     logger,
	}
}

// RunImport sweeps the given feed URLs once. Per-URL fetch failures never
// abort the sweep; they accumulate into the run's failure reasons. The
// fetch-phase accounting is persisted before enqueue is attempted, so a crash
// in between leaves an auditable totalFetched with no queued progress. A
// failed bulk enqueue marks the whole run failed with that error as the sole
// reason.
func (s *Service) RunImport(ctx context.Context, urls []string) (*types.ImportSummary, error) {
	start := time.Now()
	ctx, span := monitoring.CreateSpan(ctx, "import-run")
	defer span.End()

	runID, err := s.tracker.Start(ctx, fmt.Sprintf("%d feed url(s)", len(urls)))
	if err != nil {
		return nil, err
	}
	monitoring.SetSpanAttributes(span, map[string]interface{}{
		"import_run_id": runID,
		"feed_urls":     len(urls),
	})

	var (
		candidates  []*types.Job
		fetchErrors []string
	)
	for _, res := range s.client.FetchAll(ctx, urls) {
		if !res.Success {
			fetchErrors = append(fetchErrors, fmt.Sprintf("%s: %s", res.URL, res.Error))
			continue
		}

		doc, err := feed.ParseDocument(res.Body)
		if err != nil {
			fetchErrors = append(fetchErrors, fmt.Sprintf("%s: %v", res.URL, err))
			continue
		}

		items := s.extractor.Extract(doc, res.Body, res.URL)
		jobs := s.normalizer.NormalizeAll(items, res.URL)
		candidates = append(candidates, jobs...)
		monitoring.RecordFeedItems(res.URL, len(jobs))

		s.logger.WithFields(logrus.Fields{
			"import_run_id": runID,
			"url":           res.URL,
			"items":         len(jobs),
		}).Info("Feed extracted")
	}

	// Fetch accounting must be durable before anything is enqueued.
	phase := runs.FetchPhase{
		TotalFetched: len(candidates),
		DurationMs:   time.Since(start).Milliseconds(),
		FetchErrors:  fetchErrors,
	}
	if err := s.tracker.RecordFetchPhase(ctx, runID, phase); err != nil {
		return nil, err
	}

	if _, err := s.queue.EnqueueBulk(ctx, candidates, runID); err != nil {
		enqueueErr := fmt.Errorf("bulk enqueue failed: %v", err)
		monitoring.SetSpanError(span, enqueueErr)
		if markErr := s.tracker.MarkFailed(ctx, runID, enqueueErr.Error(), time.Since(start).Milliseconds()); markErr != nil {
			s.logger.WithFields(logrus.Fields{
				"import_run_id": runID,
				"error":         markErr.Error(),
			}).Error("Failed to mark run failed after enqueue error")
		}
		return nil, enqueueErr
	}

	s.logger.WithFields(logrus.Fields{
		"import_run_id": runID,
		"total_fetched": len(candidates),
		"fetch_errors":  len(fetchErrors),
		"duration_ms":   time.Since(start).Milliseconds(),
	}).Info("Import run enqueued")

	return &types.ImportSummary{ImportRunID: runID, TotalJobs: len(candidates)}, nil
}
