/*
Package store provides durable persistence for jobs and import runs.

The production implementations sit on Google Cloud Datastore; every consumer
depends on the small JobStore/RunStore interfaces so tests substitute the
in-memory implementations.
*/
package store

import (
	"context"
	"errors"
	"time"

	"github.com/Nexora-Open-Source/job-feed-backend/types"
)

// ErrDuplicate reports an insert that collided with an existing identity.
var ErrDuplicate = errors.New("duplicate job identity")

// ErrNotFound reports a lookup for a record that does not exist.
var ErrNotFound = errors.New("record not found")

// JobStore persists canonical job records. At most one stored job exists per
// external ID or per URL; the two identity fields are interchangeable during
// matching.
type JobStore interface {
	// FindByIdentity returns the job matching externalID OR url, or nil when
	// no record matches.
	FindByIdentity(ctx context.Context, externalID, url string) (*types.Job, error)
	// Insert stores a never-seen job. Returns ErrDuplicate when the identity
	// already exists.
	Insert(ctx context.Context, job *types.Job) error
	// Update overwrites the stored record matching the job's external ID.
	Update(ctx context.Context, job *types.Job) error
}

// RunStore persists import run records.
type RunStore interface {
	Create(ctx context.Context, run *types.ImportRun) error
	Get(ctx context.Context, id string) (*types.ImportRun, error)
	Update(ctx context.Context, run *types.ImportRun) error
	// List returns runs in reverse-chronological order.
	List(ctx context.Context, offset, limit int) ([]*types.ImportRun, error)
	Count(ctx context.Context) (int, error)
	CountByStatus(ctx context.Context, status string) (int, error)
	CountSince(ctx context.Context, since time.Time) (int, error)
}
