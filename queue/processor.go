/*
Package queue implements the asynchronous half of the ingestion pipeline: a
bounded worker pool draining job candidates into the store with rate limiting,
per-item retry/backoff and idempotent bulk submission.
*/
package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Nexora-Open-Source/job-feed-backend/store"
	"github.com/Nexora-Open-Source/job-feed-backend/types"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Outcome status values.
const (
	OutcomeCreated = "created"
	OutcomeUpdated = "updated"
	OutcomeFailed  = "failed"
)

// Outcome is the typed result of reconciling one candidate. The retry wrapper
// is driven by this result; nothing in the processor panics across the
// component boundary.
type Outcome struct {
	Status    string
	Reason    string
	Retryable bool
}

// BatchResult aggregates the outcomes of an independently-processed batch.
type BatchResult struct {
	Created       int
	Updated       int
	Failed        int
	FailedReasons []string
}

// Processor performs create-or-update reconciliation of job candidates
// against the store, keyed by external identity.
type Processor struct {
	jobs   store.JobStore
	logger *logrus.Logger
	now    func() time.Time
}

// NewProcessor creates a processor writing through the given job store.
func NewProcessor(jobs store.JobStore, logger *logrus.Logger) *Processor {
	return &Processor{jobs: jobs, logger: logger, now: time.Now}
}

// Process reconciles a single candidate. A candidate missing any of the four
// identity-bearing fields fails without touching the store. Otherwise the
// candidate matches an existing record on externalId OR url and updates it in
// place, or inserts a new record. A duplicate-key race on insert falls back
// to update; re-processing an identical candidate is idempotent.
func (p *Processor) Process(ctx context.Context, candidate *types.Job) Outcome {
	if missing := missingIdentityFields(candidate); len(missing) > 0 {
		return Outcome{
			Status: OutcomeFailed,
			Reason: fmt.Sprintf("validation failed: missing %s", strings.Join(missing, ", ")),
		}
	}

	existing, err := p.jobs.FindByIdentity(ctx, candidate.ExternalID, candidate.URL)
	if err != nil {
		return Outcome{Status: OutcomeFailed, Reason: fmt.Sprintf("identity lookup failed: %v", err), Retryable: true}
	}
	if existing != nil {
		return p.update(ctx, existing, candidate)
	}

	fresh := *candidate
	fresh.UpdatedAt = p.now()
	err = p.jobs.Insert(ctx, &fresh)
	if errors.Is(err, store.ErrDuplicate) {
		// Lost the insert race; the uniqueness constraint is the backstop.
		existing, lookupErr := p.jobs.FindByIdentity(ctx, candidate.ExternalID, candidate.URL)
		if lookupErr != nil || existing == nil {
			return Outcome{
				Status: OutcomeFailed,
				Reason: fmt.Sprintf("duplicate identity conflict not recoverable for %q", candidate.ExternalID),
			}
		}
		return p.update(ctx, existing, candidate)
	}
	if err != nil {
		return Outcome{Status: OutcomeFailed, Reason: fmt.Sprintf("insert failed: %v", err), Retryable: true}
	}

	p.logger.WithFields(logrus.Fields{
		"external_id": fresh.ExternalID,
		"title":       fresh.Title,
	}).Info("Job created")
	return Outcome{Status: OutcomeCreated}
}

// ProcessBatch reconciles candidates independently and concurrently; one
// item's failure never aborts the batch.
func (p *Processor) ProcessBatch(ctx context.Context, candidates []*types.Job) BatchResult {
	var (
		mu     sync.Mutex
		result BatchResult
	)

	var g errgroup.Group
	g.SetLimit(5)
	for _, candidate := range candidates {
		candidate := candidate
		g.Go(func() error {
			outcome := p.Process(ctx, candidate)

			mu.Lock()
			defer mu.Unlock()
			switch outcome.Status {
			case OutcomeCreated:
				result.Created++
			case OutcomeUpdated:
				result.Updated++
			default:
				result.Failed++
				result.FailedReasons = append(result.FailedReasons, outcome.Reason)
			}
			return nil
		})
	}
	_ = g.Wait()

	return result
}

// update overwrites all mutable fields of the matched record with the
// candidate's values. The stored external ID stays authoritative when the
// match came through the URL, since it is the entity key.
func (p *Processor) update(ctx context.Context, existing, candidate *types.Job) Outcome {
	merged := *candidate
	merged.ExternalID = existing.ExternalID
	merged.UpdatedAt = p.now()

	if err := p.jobs.Update(ctx, &merged); err != nil {
		return Outcome{Status: OutcomeFailed, Reason: fmt.Sprintf("update failed: %v", err), Retryable: true}
	}

	p.logger.WithFields(logrus.Fields{
		"external_id": merged.ExternalID,
		"title":       merged.Title,
	}).Info("Job updated")
	return Outcome{Status: OutcomeUpdated}
}

func missingIdentityFields(candidate *types.Job) []string {
	var missing []string
	if strings.TrimSpace(candidate.ExternalID) == "" {
		missing = append(missing, "externalId")
	}
	if strings.TrimSpace(candidate.Title) == "" {
		missing = append(missing, "title")
	}
	if strings.TrimSpace(candidate.Company) == "" {
		missing = append(missing, "company")
	}
	if strings.TrimSpace(candidate.URL) == "" {
		missing = append(missing, "url")
	}
	return missing
}
