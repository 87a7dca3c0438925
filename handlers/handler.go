/*
Package handlers provides HTTP handlers with dependency injection support.

The Handler struct carries all service dependencies behind small interfaces,
eliminating global state and letting tests substitute fakes.
*/
package handlers

import (
	"context"

	"github.com/Nexora-Open-Source/job-feed-backend/cache"
	"github.com/Nexora-Open-Source/job-feed-backend/queue"
	"github.com/Nexora-Open-Source/job-feed-backend/types"
	"github.com/sirupsen/logrus"
)

// ImporterInterface defines the pipeline entry point
type ImporterInterface interface {
	RunImport(ctx context.Context, urls []string) (*types.ImportSummary, error)
}

// TrackerInterface defines the run query operations
type TrackerInterface interface {
	GetByID(ctx context.Context, runID string) (*types.ImportRun, error)
	List(ctx context.Context, page, pageSize int) ([]*types.ImportRun, error)
	Stats(ctx context.Context) (*types.ImportStats, error)
}

// QueueInterface defines the queue observability surface
type QueueInterface interface {
	Snapshot() queue.Stats
}

// Handler contains all service dependencies for HTTP handlers
type Handler struct {
	Importer ImporterInterface
	Tracker  TrackerInterface
	Queue    QueueInterface
	Cache    *cache.Manager
	FeedURLs []string
	Logger   *logrus.Logger
}

// NewHandler creates a new handler instance with injected dependencies
func NewHandler(imp ImporterInterface, tracker TrackerInterface, q QueueInterface, statsCache *cache.Manager, feedURLs []string, logger *logrus.Logger) *Handler {
	return &Handler{
		Importer: imp,
		Tracker:  tracker,
		Queue:    q,
		Cache:    statsCache,
		FeedURLs: feedURLs,
		Logger:   logger,
	}
}
