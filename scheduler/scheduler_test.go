package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"github.com/Nexora-Open-Source/job-feed-backend/types"
)

type countingImporter struct {
	mu    sync.Mutex
	calls int
}

func (c *countingImporter) RunImport(ctx context.Context, urls []string) (*types.ImportSummary, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return &types.ImportSummary{ImportRunID: "run-1", TotalJobs: len(urls)}, nil
}

func (c *countingImporter) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func TestSchedulerTriggersImports(t *testing.T) {
	imp := &countingImporter{}
	s := New(imp, []string{"https://a.example.com/feed.xml"}, 10*time.Millisecond, testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	s.Run(ctx)

	assert.GreaterOrEqual(t, imp.count(), 2)
}

func TestSchedulerDisabledWithZeroInterval(t *testing.T) {
	imp := &countingImporter{}
	s := New(imp, []string{"https://a.example.com/feed.xml"}, 0, testLogger())

	done := make(chan struct{})
	go func() {
		s.Run(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not return with a zero interval")
	}
	assert.Equal(t, 0, imp.count())
}

func TestSchedulerDisabledWithoutURLs(t *testing.T) {
	imp := &countingImporter{}
	s := New(imp, nil, time.Minute, testLogger())

	done := make(chan struct{})
	go func() {
		s.Run(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not return without configured URLs")
	}
	assert.Equal(t, 0, imp.count())
}

func TestSchedulerStopsOnContextCancel(t *testing.T) {
	imp := &countingImporter{}
	s := New(imp, []string{"https://a.example.com/feed.xml"}, time.Hour, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop on context cancellation")
	}
}
