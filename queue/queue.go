package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Nexora-Open-Source/job-feed-backend/monitoring"
	"github.com/Nexora-Open-Source/job-feed-backend/types"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// taskName identifies queued work in logs and spans.
const taskName = "process-job"

// Config controls queue capacity, throughput and retry behavior.
type Config struct {
	Workers       int
	Size          int
	RatePerSecond float64       // aggregate cap across all workers
	MaxAttempts   int
	BackoffBase   time.Duration // doubles per attempt

	DedupeWindow            time.Duration
	CompletedRetentionAge   time.Duration
	CompletedRetentionCount int
	FailedRetentionAge      time.Duration
	ShutdownTimeout         time.Duration
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = 5
	}
	if c.Size <= 0 {
		c.Size = 1000
	}
	if c.RatePerSecond <= 0 {
		c.RatePerSecond = 100
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = 2 * time.Second
	}
	if c.DedupeWindow <= 0 {
		c.DedupeWindow = time.Hour
	}
	if c.CompletedRetentionAge <= 0 {
		c.CompletedRetentionAge = time.Hour
	}
	if c.CompletedRetentionCount <= 0 {
		c.CompletedRetentionCount = 1000
	}
	if c.FailedRetentionAge <= 0 {
		c.FailedRetentionAge = 24 * time.Hour
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 30 * time.Second
	}
	return c
}

// Item is one unit of queued work: a job candidate bound to its import run.
type Item struct {
	Key         string
	ImportRunID string
	Candidate   *types.Job
	EnqueuedAt  time.Time
}

// ItemRecord is a terminal item retained briefly for observability.
type ItemRecord struct {
	Key         string
	ImportRunID string
	Outcome     Outcome
	Attempts    int
	FinishedAt  time.Time
}

// Stats is a point-in-time snapshot of queue state.
type Stats struct {
	Depth     int `json:"depth"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Workers   int `json:"workers"`
}

// Queue decouples fetch from persistence. Acceptance is synchronous,
// processing is asynchronous: EnqueueBulk returns once items are accepted and
// the worker pool drains them at a rate-limited pace, retrying failed items
// with exponential backoff before terminal-failing them.
type Queue struct {
	cfg       Config
	processor *Processor
	limiter   *rate.Limiter
	items     chan Item
	quit      chan struct{}
	wg        sync.WaitGroup
	logger    *logrus.Logger

	// onResult receives every terminal outcome, keyed by import run.
	onResult func(importRunID string, outcome Outcome)

	mu        sync.Mutex
	closed    bool
	seen      map[string]time.Time
	completed []*ItemRecord
	failed    []*ItemRecord
}

// New creates a queue and starts its worker pool. onResult may be nil.
func New(cfg Config, processor *Processor, onResult func(string, Outcome), logger *logrus.Logger) *Queue {
	cfg = cfg.withDefaults()
	q := &Queue{
		cfg:       cfg,
		processor: processor,
		limiter:   rate.NewLimiter(rate.Limit(cfg.RatePerSecond), int(cfg.RatePerSecond)),
		items:     make(chan Item, cfg.Size),
		quit:      make(chan struct{}),
		logger:    logger,
		onResult:  onResult,
		seen:      make(map[string]time.Time),
	}

	monitoring.UpdateActiveWorkers(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		q.wg.Add(1)
		go q.worker(i)
	}
	go q.cleanupLoop()

	return q
}

// IdempotencyKey builds the per-run item key preventing duplicate enqueue of
// the same logical job within the dedupe window.
func IdempotencyKey(importRunID, externalID string) string {
	return importRunID + ":" + externalID
}

// EnqueueBulk accepts candidates for asynchronous processing and returns the
// accepted count. Re-submitting the same run's candidates does not duplicate
// queue entries. Fails loudly once the queue is shut down.
func (q *Queue) EnqueueBulk(ctx context.Context, candidates []*types.Job, importRunID string) (int, error) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return 0, fmt.Errorf("queue is shut down")
	}
	q.mu.Unlock()

	accepted := 0
	now := time.Now()
	for _, candidate := range candidates {
		key := IdempotencyKey(importRunID, candidate.ExternalID)

		q.mu.Lock()
		if seenAt, ok := q.seen[key]; ok && now.Sub(seenAt) < q.cfg.DedupeWindow {
			q.mu.Unlock()
			q.logger.WithFields(logrus.Fields{
				"task": taskName,
				"key":  key,
			}).Debug("Duplicate enqueue suppressed")
			continue
		}
		q.seen[key] = now
		q.mu.Unlock()

		item := Item{Key: key, ImportRunID: importRunID, Candidate: candidate, EnqueuedAt: now}
		select {
		case q.items <- item:
			accepted++
			monitoring.UpdateQueueDepth(len(q.items))
		case <-ctx.Done():
			return accepted, ctx.Err()
		case <-q.quit:
			return accepted, fmt.Errorf("queue is shut down")
		}
	}

	q.logger.WithFields(logrus.Fields{
		"task":          taskName,
		"import_run_id": importRunID,
		"submitted":     len(candidates),
		"accepted":      accepted,
	}).Info("Bulk enqueue accepted")
	return accepted, nil
}

// Snapshot reports current queue state.
func (q *Queue) Snapshot() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Stats{
		Depth:     len(q.items),
		Completed: len(q.completed),
		Failed:    len(q.failed),
		Workers:   q.cfg.Workers,
	}
}

// Stop shuts the queue down gracefully: in-flight items finish or fail, then
// workers exit. After the hard timeout the wait is abandoned so shutdown can
// never hang indefinitely.
func (q *Queue) Stop() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.mu.Unlock()

	q.logger.Info("Stopping queue")
	close(q.quit)

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		q.logger.Info("Queue stopped")
	case <-time.After(q.cfg.ShutdownTimeout):
		q.logger.WithField("timeout", q.cfg.ShutdownTimeout.String()).Warn("Queue shutdown timed out, abandoning workers")
	}
}

func (q *Queue) worker(id int) {
	defer q.wg.Done()

	q.logger.WithField("worker_id", id).Info("Queue worker started")
	for {
		select {
		case item := <-q.items:
			monitoring.UpdateQueueDepth(len(q.items))
			q.handle(id, item)
		case <-q.quit:
			q.logger.WithField("worker_id", id).Info("Queue worker stopping")
			return
		}
	}
}

// handle drives one item to a terminal outcome, retrying retryable failures
// with exponential backoff up to MaxAttempts.
func (q *Queue) handle(workerID int, item Item) {
	start := time.Now()
	ctx, span := monitoring.CreateSpan(context.Background(), taskName)
	defer span.End()
	monitoring.SetSpanAttributes(span, map[string]interface{}{
		"queue.key":     item.Key,
		"import_run_id": item.ImportRunID,
	})

	var outcome Outcome
	attempts := 0
	for attempt := 1; attempt <= q.cfg.MaxAttempts; attempt++ {
		attempts = attempt
		if err := q.limiter.Wait(ctx); err != nil {
			outcome = Outcome{Status: OutcomeFailed, Reason: fmt.Sprintf("rate limiter interrupted: %v", err)}
			break
		}

		outcome = q.processor.Process(ctx, item.Candidate)
		if outcome.Status != OutcomeFailed || !outcome.Retryable || attempt == q.cfg.MaxAttempts {
			break
		}

		delay := q.cfg.BackoffBase << (attempt - 1)
		q.logger.WithFields(logrus.Fields{
			"task":      taskName,
			"worker_id": workerID,
			"key":       item.Key,
			"attempt":   attempt,
			"backoff":   delay.String(),
			"reason":    outcome.Reason,
		}).Warn("Item failed, retrying after backoff")

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-q.quit:
			timer.Stop()
			outcome = Outcome{Status: OutcomeFailed, Reason: "shutdown during retry backoff"}
			attempt = q.cfg.MaxAttempts
		}
	}

	q.retain(item, outcome, attempts)
	monitoring.RecordQueueItem(outcome.Status, time.Since(start).Seconds())
	if q.onResult != nil {
		q.onResult(item.ImportRunID, outcome)
	}

	fields := logrus.Fields{
		"task":          taskName,
		"worker_id":     workerID,
		"key":           item.Key,
		"import_run_id": item.ImportRunID,
		"outcome":       outcome.Status,
		"attempts":      attempts,
		"duration_ms":   time.Since(start).Milliseconds(),
	}
	if outcome.Status == OutcomeFailed {
		monitoring.SetSpanError(span, fmt.Errorf("%s", outcome.Reason))
		fields["reason"] = outcome.Reason
		q.logger.WithFields(fields).Error("Queued item terminally failed")
		return
	}
	q.logger.WithFields(fields).Info("Queued item processed")
}

func (q *Queue) retain(item Item, outcome Outcome, attempts int) {
	record := &ItemRecord{
		Key:         item.Key,
		ImportRunID: item.ImportRunID,
		Outcome:     outcome,
		Attempts:    attempts,
		FinishedAt:  time.Now(),
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if outcome.Status == OutcomeFailed {
		q.failed = append(q.failed, record)
		return
	}
	q.completed = append(q.completed, record)
	if len(q.completed) > q.cfg.CompletedRetentionCount {
		q.completed = q.completed[len(q.completed)-q.cfg.CompletedRetentionCount:]
	}
}

// cleanupLoop prunes dedupe keys and retained records past their windows.
func (q *Queue) cleanupLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			q.cleanup(time.Now())
		case <-q.quit:
			return
		}
	}
}

func (q *Queue) cleanup(now time.Time) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for key, seenAt := range q.seen {
		if now.Sub(seenAt) >= q.cfg.DedupeWindow {
			delete(q.seen, key)
		}
	}
	q.completed = pruneByAge(q.completed, now, q.cfg.CompletedRetentionAge)
	q.failed = pruneByAge(q.failed, now, q.cfg.FailedRetentionAge)
}

func pruneByAge(records []*ItemRecord, now time.Time, maxAge time.Duration) []*ItemRecord {
	kept := records[:0]
	for _, r := range records {
		if now.Sub(r.FinishedAt) < maxAge {
			kept = append(kept, r)
		}
	}
	return kept
}
