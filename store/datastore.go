package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/datastore"
	"github.com/Nexora-Open-Source/job-feed-backend/monitoring"
	"github.com/Nexora-Open-Source/job-feed-backend/types"
)

const (
	jobKind = "Job"
	runKind = "ImportRun"
)

// observe reports one datastore operation to the metrics registry.
func observe(operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	monitoring.RecordDatastoreOperation(operation, status, time.Since(start).Seconds())
}

// DatastoreJobStore stores jobs in Google Cloud Datastore. The external ID is
// the entity name key, so key uniqueness is the backstop against concurrent
// inserts of the same identity; URL identity is matched by query.
type DatastoreJobStore struct {
	client *datastore.Client
}

// NewDatastoreJobStore creates a job store on top of a Datastore client.
func NewDatastoreJobStore(client *datastore.Client) *DatastoreJobStore {
	return &DatastoreJobStore{client: client}
}

// FindByIdentity looks the job up by external ID first, then by URL.
func (s *DatastoreJobStore) FindByIdentity(ctx context.Context, externalID, url string) (*types.Job, error) {
	start := time.Now()

	var job types.Job
	err := s.client.Get(ctx, datastore.NameKey(jobKind, externalID, nil), &job)
	if err == nil {
		observe("job_find", start, nil)
		return &job, nil
	}
	if !errors.Is(err, datastore.ErrNoSuchEntity) {
		observe("job_find", start, err)
		return nil, fmt.Errorf("job lookup by external id: %v", err)
	}

	query := datastore.NewQuery(jobKind).FilterField("url", "=", url).Limit(1)
	var matches []*types.Job
	if _, err := s.client.GetAll(ctx, query, &matches); err != nil {
		observe("job_find", start, err)
		return nil, fmt.Errorf("job lookup by url: %v", err)
	}
	observe("job_find", start, nil)
	if len(matches) == 0 {
		return nil, nil
	}
	return matches[0], nil
}

// Insert stores a new job, failing with ErrDuplicate when the key already
// exists. The existence check and put share one transaction.
func (s *DatastoreJobStore) Insert(ctx context.Context, job *types.Job) error {
	start := time.Now()
	key := datastore.NameKey(jobKind, job.ExternalID, nil)
	_, err := s.client.RunInTransaction(ctx, func(tx *datastore.Transaction) error {
		var existing types.Job
		getErr := tx.Get(key, &existing)
		if getErr == nil {
			return ErrDuplicate
		}
		if !errors.Is(getErr, datastore.ErrNoSuchEntity) {
			return getErr
		}
		_, putErr := tx.Put(key, job)
		return putErr
	})
	observe("job_insert", start, err)
	if errors.Is(err, ErrDuplicate) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("job insert: %v", err)
	}
	return nil
}

// Update overwrites the stored job under its external ID key.
func (s *DatastoreJobStore) Update(ctx context.Context, job *types.Job) error {
	start := time.Now()
	key := datastore.NameKey(jobKind, job.ExternalID, nil)
	_, err := s.client.Put(ctx, key, job)
	observe("job_update", start, err)
	if err != nil {
		return fmt.Errorf("job update: %v", err)
	}
	return nil
}

// DatastoreRunStore stores import runs in Google Cloud Datastore.
type DatastoreRunStore struct {
	client *datastore.Client
}

// NewDatastoreRunStore creates a run store on top of a Datastore client.
func NewDatastoreRunStore(client *datastore.Client) *DatastoreRunStore {
	return &DatastoreRunStore{client: client}
}

func (s *DatastoreRunStore) Create(ctx context.Context, run *types.ImportRun) error {
	start := time.Now()
	key := datastore.NameKey(runKind, run.ID, nil)
	_, err := s.client.Put(ctx, key, run)
	observe("run_create", start, err)
	if err != nil {
		return fmt.Errorf("run create: %v", err)
	}
	return nil
}

func (s *DatastoreRunStore) Get(ctx context.Context, id string) (*types.ImportRun, error) {
	start := time.Now()
	var run types.ImportRun
	err := s.client.Get(ctx, datastore.NameKey(runKind, id, nil), &run)
	observe("run_get", start, err)
	if errors.Is(err, datastore.ErrNoSuchEntity) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("run get: %v", err)
	}
	run.ID = id
	return &run, nil
}

func (s *DatastoreRunStore) Update(ctx context.Context, run *types.ImportRun) error {
	start := time.Now()
	key := datastore.NameKey(runKind, run.ID, nil)
	_, err := s.client.Put(ctx, key, run)
	observe("run_update", start, err)
	if err != nil {
		return fmt.Errorf("run update: %v", err)
	}
	return nil
}

// List returns runs newest-first. Backed by the started_at index; see
// index.yaml for the compound (status, started_at) index used by stats.
func (s *DatastoreRunStore) List(ctx context.Context, offset, limit int) ([]*types.ImportRun, error) {
	start := time.Now()
	query := datastore.NewQuery(runKind).Order("-started_at").Offset(offset).Limit(limit)
	var runs []*types.ImportRun
	keys, err := s.client.GetAll(ctx, query, &runs)
	observe("run_list", start, err)
	if err != nil {
		return nil, fmt.Errorf("run list: %v", err)
	}
	for i, key := range keys {
		runs[i].ID = key.Name
	}
	return runs, nil
}

func (s *DatastoreRunStore) Count(ctx context.Context) (int, error) {
	return s.count(ctx, datastore.NewQuery(runKind))
}

func (s *DatastoreRunStore) CountByStatus(ctx context.Context, status string) (int, error) {
	return s.count(ctx, datastore.NewQuery(runKind).FilterField("status", "=", status))
}

func (s *DatastoreRunStore) CountSince(ctx context.Context, since time.Time) (int, error) {
	return s.count(ctx, datastore.NewQuery(runKind).FilterField("started_at", ">=", since))
}

func (s *DatastoreRunStore) count(ctx context.Context, query *datastore.Query) (int, error) {
	start := time.Now()
	n, err := s.client.Count(ctx, query)
	observe("run_count", start, err)
	if err != nil {
		return 0, fmt.Errorf("run count: %v", err)
	}
	return n, nil
}
