package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Nexora-Open-Source/job-feed-backend/types"
)

// MemoryJobStore is an in-memory JobStore with the same identity semantics as
// the Datastore implementation. Used by tests and local development.
type MemoryJobStore struct {
	mu    sync.RWMutex
	byID  map[string]*types.Job
	byURL map[string]string // url -> external id
}

// NewMemoryJobStore creates an empty in-memory job store.
func NewMemoryJobStore() *MemoryJobStore {
	return &MemoryJobStore{
		byID:  make(map[string]*types.Job),
		byURL: make(map[string]string),
	}
}

func (s *MemoryJobStore) FindByIdentity(ctx context.Context, externalID, url string) (*types.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if job, ok := s.byID[externalID]; ok {
		return cloneJob(job), nil
	}
	if id, ok := s.byURL[url]; ok {
		return cloneJob(s.byID[id]), nil
	}
	return nil, nil
}

func (s *MemoryJobStore) Insert(ctx context.Context, job *types.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[job.ExternalID]; ok {
		return ErrDuplicate
	}
	if _, ok := s.byURL[job.URL]; ok {
		return ErrDuplicate
	}
	s.byID[job.ExternalID] = cloneJob(job)
	s.byURL[job.URL] = job.ExternalID
	return nil
}

func (s *MemoryJobStore) Update(ctx context.Context, job *types.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.byID[job.ExternalID]; ok {
		delete(s.byURL, existing.URL)
	}
	s.byID[job.ExternalID] = cloneJob(job)
	s.byURL[job.URL] = job.ExternalID
	return nil
}

// Len reports the number of stored jobs.
func (s *MemoryJobStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

// Get returns the stored job for an external ID, or nil.
func (s *MemoryJobStore) Get(externalID string) *types.Job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneJob(s.byID[externalID])
}

// MemoryRunStore is an in-memory RunStore.
type MemoryRunStore struct {
	mu   sync.RWMutex
	runs map[string]*types.ImportRun
}

// NewMemoryRunStore creates an empty in-memory run store.
func NewMemoryRunStore() *MemoryRunStore {
	return &MemoryRunStore{runs: make(map[string]*types.ImportRun)}
}

func (s *MemoryRunStore) Create(ctx context.Context, run *types.ImportRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.ID] = cloneRun(run)
	return nil
}

func (s *MemoryRunStore) Get(ctx context.Context, id string) (*types.ImportRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneRun(run), nil
}

func (s *MemoryRunStore) Update(ctx context.Context, run *types.ImportRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.runs[run.ID]; !ok {
		return ErrNotFound
	}
	s.runs[run.ID] = cloneRun(run)
	return nil
}

func (s *MemoryRunStore) List(ctx context.Context, offset, limit int) ([]*types.ImportRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sorted := make([]*types.ImportRun, 0, len(s.runs))
	for _, run := range s.runs {
		sorted = append(sorted, run)
	}
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].StartedAt.Equal(sorted[j].StartedAt) {
			return sorted[i].ID > sorted[j].ID
		}
		return sorted[i].StartedAt.After(sorted[j].StartedAt)
	})

	if offset >= len(sorted) {
		return nil, nil
	}
	end := offset + limit
	if end > len(sorted) {
		end = len(sorted)
	}
	out := make([]*types.ImportRun, 0, end-offset)
	for _, run := range sorted[offset:end] {
		out = append(out, cloneRun(run))
	}
	return out, nil
}

func (s *MemoryRunStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.runs), nil
}

func (s *MemoryRunStore) CountByStatus(ctx context.Context, status string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, run := range s.runs {
		if run.Status == status {
			n++
		}
	}
	return n, nil
}

func (s *MemoryRunStore) CountSince(ctx context.Context, since time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, run := range s.runs {
		if !run.StartedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func cloneJob(job *types.Job) *types.Job {
	if job == nil {
		return nil
	}
	copied := *job
	return &copied
}

func cloneRun(run *types.ImportRun) *types.ImportRun {
	if run == nil {
		return nil
	}
	copied := *run
	copied.FailedReasons = append([]string(nil), run.FailedReasons...)
	return &copied
}
