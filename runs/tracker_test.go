package runs

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nexora-Open-Source/job-feed-backend/queue"
	"github.com/Nexora-Open-Source/job-feed-backend/store"
	"github.com/Nexora-Open-Source/job-feed-backend/types"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func newTestTracker() (*Tracker, *store.MemoryRunStore) {
	runStore := store.NewMemoryRunStore()
	return NewTracker(runStore, testLogger()), runStore
}

func TestStartCreatesInProgressRun(t *testing.T) {
	tracker, runStore := newTestTracker()

	runID, err := tracker.Start(context.Background(), "2 feed url(s)")
	require.NoError(t, err)
	require.NotEmpty(t, runID)

	run, err := runStore.Get(context.Background(), runID)
	require.NoError(t, err)
	assert.Equal(t, types.RunInProgress, run.Status)
	assert.Equal(t, "2 feed url(s)", run.SourceLabel)
	assert.False(t, run.StartedAt.IsZero())
}

func TestRecordFetchPhaseStatusDerivation(t *testing.T) {
	ctx := context.Background()

	cases := []struct {
		name       string
		fetched    int
		errors     []string
		wantStatus string
	}{
		{"nothing fetched with errors fails", 0, []string{"https://a.example.com: request failed"}, types.RunFailed},
		{"nothing fetched without errors completes", 0, nil, types.RunCompleted},
		{"fetched items complete despite fetch errors", 12, []string{"https://b.example.com: unexpected status 500"}, types.RunCompleted},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tracker, runStore := newTestTracker()
			runID, err := tracker.Start(ctx, "test")
			require.NoError(t, err)

			err = tracker.RecordFetchPhase(ctx, runID, FetchPhase{
				TotalFetched: tc.fetched,
				DurationMs:   150,
				FetchErrors:  tc.errors,
			})
			require.NoError(t, err)

			run, err := runStore.Get(ctx, runID)
			require.NoError(t, err)
			assert.Equal(t, tc.wantStatus, run.Status)
			assert.Equal(t, tc.fetched, run.TotalFetched)
			assert.Equal(t, int64(150), run.DurationMs)
			assert.Equal(t, tc.errors, run.FailedReasons)
		})
	}
}

func TestRecordOutcomeAccumulatesCounters(t *testing.T) {
	ctx := context.Background()
	tracker, runStore := newTestTracker()
	runID, err := tracker.Start(ctx, "test")
	require.NoError(t, err)

	require.NoError(t, tracker.RecordOutcome(ctx, runID, queue.Outcome{Status: queue.OutcomeCreated}))
	require.NoError(t, tracker.RecordOutcome(ctx, runID, queue.Outcome{Status: queue.OutcomeCreated}))
	require.NoError(t, tracker.RecordOutcome(ctx, runID, queue.Outcome{Status: queue.OutcomeUpdated}))
	require.NoError(t, tracker.RecordOutcome(ctx, runID, queue.Outcome{Status: queue.OutcomeFailed, Reason: "insert failed: boom"}))

	run, err := runStore.Get(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, 2, run.NewJobs)
	assert.Equal(t, 1, run.UpdatedJobs)
	assert.Equal(t, 1, run.FailedJobs)
	assert.Equal(t, []string{"insert failed: boom"}, run.FailedReasons)
}

func TestRecordOutcomeUnknownRun(t *testing.T) {
	tracker, _ := newTestTracker()

	err := tracker.RecordOutcome(context.Background(), "missing", queue.Outcome{Status: queue.OutcomeCreated})
	assert.Error(t, err)
}

func TestMarkFailed(t *testing.T) {
	ctx := context.Background()
	tracker, runStore := newTestTracker()
	runID, err := tracker.Start(ctx, "test")
	require.NoError(t, err)

	require.NoError(t, tracker.MarkFailed(ctx, runID, "bulk enqueue failed: queue is shut down", 230))

	run, err := runStore.Get(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, types.RunFailed, run.Status)
	assert.Equal(t, []string{"bulk enqueue failed: queue is shut down"}, run.FailedReasons)
	assert.Equal(t, int64(230), run.DurationMs)
}

func TestListPaginatesNewestFirst(t *testing.T) {
	ctx := context.Background()
	tracker, _ := newTestTracker()

	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	seq := 0
	tracker.now = func() time.Time {
		seq++
		return base.Add(time.Duration(seq) * time.Minute)
	}
	tracker.newID = func() string { return fmt.Sprintf("run-%02d", seq+1) }

	for i := 0; i < 5; i++ {
		_, err := tracker.Start(ctx, "test")
		require.NoError(t, err)
	}

	page, err := tracker.List(ctx, 1, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "run-05", page[0].ID)
	assert.Equal(t, "run-04", page[1].ID)

	page, err = tracker.List(ctx, 3, 2)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "run-01", page[0].ID)

	// out-of-range page is empty, not an error
	page, err = tracker.List(ctx, 9, 2)
	require.NoError(t, err)
	assert.Empty(t, page)
}

func TestListClampsPageArguments(t *testing.T) {
	ctx := context.Background()
	tracker, _ := newTestTracker()

	for i := 0; i < 3; i++ {
		_, err := tracker.Start(ctx, "test")
		require.NoError(t, err)
	}

	// page < 1 becomes page 1, pageSize < 1 becomes the default
	page, err := tracker.List(ctx, 0, 0)
	require.NoError(t, err)
	assert.Len(t, page, 3)

	// oversized pageSize clamps to the maximum rather than erroring
	page, err = tracker.List(ctx, 1, 10000)
	require.NoError(t, err)
	assert.Len(t, page, 3)
}

func TestStatsEmptyStore(t *testing.T) {
	tracker, _ := newTestTracker()

	stats, err := tracker.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, stats.TotalRuns)
	assert.Equal(t, 0.0, stats.SuccessRate)
	assert.Nil(t, stats.LatestRun)
}

func TestStatsSuccessRate(t *testing.T) {
	ctx := context.Background()
	tracker, _ := newTestTracker()

	for i := 0; i < 3; i++ {
		runID, err := tracker.Start(ctx, "test")
		require.NoError(t, err)
		require.NoError(t, tracker.RecordFetchPhase(ctx, runID, FetchPhase{TotalFetched: 1}))
	}
	runID, err := tracker.Start(ctx, "test")
	require.NoError(t, err)
	require.NoError(t, tracker.RecordFetchPhase(ctx, runID, FetchPhase{FetchErrors: []string{"down"}}))

	stats, err := tracker.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.TotalRuns)
	assert.Equal(t, 75.0, stats.SuccessRate)
	assert.Equal(t, 4, stats.RunsLast24h)
	require.NotNil(t, stats.LatestRun)
}

func TestStatsSuccessRateRounding(t *testing.T) {
	ctx := context.Background()
	tracker, _ := newTestTracker()

	// 1 completed of 3 runs: 33.333...% rounds to 33.33
	runID, err := tracker.Start(ctx, "test")
	require.NoError(t, err)
	require.NoError(t, tracker.RecordFetchPhase(ctx, runID, FetchPhase{TotalFetched: 1}))
	for i := 0; i < 2; i++ {
		runID, err = tracker.Start(ctx, "test")
		require.NoError(t, err)
		require.NoError(t, tracker.RecordFetchPhase(ctx, runID, FetchPhase{FetchErrors: []string{"down"}}))
	}

	stats, err := tracker.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 33.33, stats.SuccessRate)
}
