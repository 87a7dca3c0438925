/*
Package cache provides short-lived caching of read-side reporting payloads.

Run listings and aggregate stats are recomputed from the store on every
request; caching them briefly bounds read pressure while imports are running.
*/
package cache

import (
	"fmt"
	"sync"
	"time"

	"github.com/Nexora-Open-Source/job-feed-backend/types"
	"github.com/sirupsen/logrus"
)

type statsEntry struct {
	stats     *types.ImportStats
	expiresAt time.Time
}

type runsEntry struct {
	runs      []*types.ImportRun
	expiresAt time.Time
}

// Manager caches import stats and run pages with a shared TTL.
type Manager struct {
	mu       sync.RWMutex
	ttl      time.Duration
	stats    *statsEntry
	runPages map[string]*runsEntry
	logger   *logrus.Logger
}

// NewManager creates a cache manager with the given TTL.
func NewManager(ttl time.Duration, logger *logrus.Logger) *Manager {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Manager{
		ttl:      ttl,
		runPages: make(map[string]*runsEntry),
		logger:   logger,
	}
}

// GetStats returns the cached aggregate stats, if fresh.
func (m *Manager) GetStats() (*types.ImportStats, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.stats == nil || time.Now().After(m.stats.expiresAt) {
		return nil, false
	}
	return m.stats.stats, true
}

// SetStats caches aggregate stats.
func (m *Manager) SetStats(stats *types.ImportStats) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats = &statsEntry{stats: stats, expiresAt: time.Now().Add(m.ttl)}
}

// GetRunPage returns a cached page of runs, if fresh.
func (m *Manager) GetRunPage(page, pageSize int) ([]*types.ImportRun, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.runPages[pageKey(page, pageSize)]
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.runs, true
}

// SetRunPage caches one page of runs.
func (m *Manager) SetRunPage(page, pageSize int, runs []*types.ImportRun) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runPages[pageKey(page, pageSize)] = &runsEntry{runs: runs, expiresAt: time.Now().Add(m.ttl)}
}

// Invalidate drops everything; called after a new import is triggered.
func (m *Manager) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats = nil
	m.runPages = make(map[string]*runsEntry)
	if m.logger != nil {
		m.logger.Debug("Reporting cache invalidated")
	}
}

func pageKey(page, pageSize int) string {
	return fmt.Sprintf("runs:%d:%d", page, pageSize)
}
