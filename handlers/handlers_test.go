package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nexora-Open-Source/job-feed-backend/cache"
	"github.com/Nexora-Open-Source/job-feed-backend/middleware"
	"github.com/Nexora-Open-Source/job-feed-backend/queue"
	"github.com/Nexora-Open-Source/job-feed-backend/store"
	"github.com/Nexora-Open-Source/job-feed-backend/types"
)

func TestMain(m *testing.M) {
	middleware.InitLogger()
	middleware.Logger.SetLevel(logrus.PanicLevel)
	os.Exit(m.Run())
}

type fakeImporter struct {
	summary  *types.ImportSummary
	err      error
	gotURLs  []string
	runCalls int
}

func (f *fakeImporter) RunImport(ctx context.Context, urls []string) (*types.ImportSummary, error) {
	f.runCalls++
	f.gotURLs = urls
	return f.summary, f.err
}

type fakeTracker struct {
	runs  []*types.ImportRun
	stats *types.ImportStats
	err   error
}

func (f *fakeTracker) GetByID(ctx context.Context, runID string) (*types.ImportRun, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, run := range f.runs {
		if run.ID == runID {
			return run, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeTracker) List(ctx context.Context, page, pageSize int) ([]*types.ImportRun, error) {
	return f.runs, f.err
}

func (f *fakeTracker) Stats(ctx context.Context) (*types.ImportStats, error) {
	return f.stats, f.err
}

type fakeQueue struct {
	stats queue.Stats
}

func (f *fakeQueue) Snapshot() queue.Stats { return f.stats }

func testHandler(imp ImporterInterface, tracker TrackerInterface, q QueueInterface, feedURLs []string) *Handler {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return NewHandler(imp, tracker, q, cache.NewManager(time.Minute, logger), feedURLs, logger)
}

func TestHandleStartImportWithBodyURLs(t *testing.T) {
	imp := &fakeImporter{summary: &types.ImportSummary{ImportRunID: "run-1", TotalJobs: 7}}
	h := testHandler(imp, &fakeTracker{}, &fakeQueue{}, nil)

	body, _ := json.Marshal(ImportRequest{URLs: []string{"https://a.example.com/feed.xml"}})
	req := httptest.NewRequest(http.MethodPost, "/import", bytes.NewReader(body))
	w := httptest.NewRecorder()
	h.HandleStartImport(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"https://a.example.com/feed.xml"}, imp.gotURLs)

	var summary types.ImportSummary
	require.NoError(t, json.NewDecoder(w.Body).Decode(&summary))
	assert.Equal(t, "run-1", summary.ImportRunID)
	assert.Equal(t, 7, summary.TotalJobs)
}

func TestHandleStartImportFallsBackToConfiguredFeeds(t *testing.T) {
	imp := &fakeImporter{summary: &types.ImportSummary{ImportRunID: "run-1"}}
	configured := []string{"https://a.example.com/feed.xml", "https://b.example.com/feed.xml"}
	h := testHandler(imp, &fakeTracker{}, &fakeQueue{}, configured)

	req := httptest.NewRequest(http.MethodPost, "/import", nil)
	w := httptest.NewRecorder()
	h.HandleStartImport(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, configured, imp.gotURLs)
}

func TestHandleStartImportNoURLsAnywhere(t *testing.T) {
	imp := &fakeImporter{}
	h := testHandler(imp, &fakeTracker{}, &fakeQueue{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/import", nil)
	w := httptest.NewRecorder()
	h.HandleStartImport(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 0, imp.runCalls)

	var apiErr middleware.APIError
	require.NoError(t, json.NewDecoder(w.Body).Decode(&apiErr))
	assert.Equal(t, middleware.ErrCodeValidation, apiErr.Error)
}

func TestHandleStartImportMalformedBody(t *testing.T) {
	h := testHandler(&fakeImporter{}, &fakeTracker{}, &fakeQueue{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/import", bytes.NewReader([]byte("{not json")))
	w := httptest.NewRecorder()
	h.HandleStartImport(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleStartImportImporterError(t *testing.T) {
	imp := &fakeImporter{err: fmt.Errorf("bulk enqueue failed: queue is shut down")}
	h := testHandler(imp, &fakeTracker{}, &fakeQueue{}, []string{"https://a.example.com/feed.xml"})

	req := httptest.NewRequest(http.MethodPost, "/import", nil)
	w := httptest.NewRecorder()
	h.HandleStartImport(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestHandleListRunsCaching(t *testing.T) {
	tracker := &fakeTracker{runs: []*types.ImportRun{{ID: "run-1", Status: types.RunCompleted}}}
	h := testHandler(&fakeImporter{}, tracker, &fakeQueue{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/import-runs?page=1&page_size=10", nil)
	w := httptest.NewRecorder()
	h.HandleListRuns(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "MISS", w.Header().Get("X-Cache"))

	w = httptest.NewRecorder()
	h.HandleListRuns(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "HIT", w.Header().Get("X-Cache"))

	var runs []*types.ImportRun
	require.NoError(t, json.NewDecoder(w.Body).Decode(&runs))
	require.Len(t, runs, 1)
	assert.Equal(t, "run-1", runs[0].ID)
}

func TestHandleListRunsInvalidPage(t *testing.T) {
	h := testHandler(&fakeImporter{}, &fakeTracker{}, &fakeQueue{}, nil)

	for _, target := range []string{"/import-runs?page=abc", "/import-runs?page=0", "/import-runs?page_size=-5"} {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		w := httptest.NewRecorder()
		h.HandleListRuns(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code, target)
	}
}

func TestHandleGetRun(t *testing.T) {
	tracker := &fakeTracker{runs: []*types.ImportRun{{ID: "run-1", Status: types.RunCompleted, NewJobs: 3}}}
	h := testHandler(&fakeImporter{}, tracker, &fakeQueue{}, nil)

	router := mux.NewRouter()
	router.HandleFunc("/import-runs/{id}", h.HandleGetRun).Methods("GET")

	req := httptest.NewRequest(http.MethodGet, "/import-runs/run-1", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var run types.ImportRun
	require.NoError(t, json.NewDecoder(w.Body).Decode(&run))
	assert.Equal(t, "run-1", run.ID)
	assert.Equal(t, 3, run.NewJobs)
}

func TestHandleGetRunNotFound(t *testing.T) {
	h := testHandler(&fakeImporter{}, &fakeTracker{}, &fakeQueue{}, nil)

	router := mux.NewRouter()
	router.HandleFunc("/import-runs/{id}", h.HandleGetRun).Methods("GET")

	req := httptest.NewRequest(http.MethodGet, "/import-runs/missing", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleGetStats(t *testing.T) {
	tracker := &fakeTracker{stats: &types.ImportStats{TotalRuns: 4, SuccessRate: 75.0}}
	h := testHandler(&fakeImporter{}, tracker, &fakeQueue{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/import-stats", nil)
	w := httptest.NewRecorder()
	h.HandleGetStats(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "MISS", w.Header().Get("X-Cache"))

	var stats types.ImportStats
	require.NoError(t, json.NewDecoder(w.Body).Decode(&stats))
	assert.Equal(t, 4, stats.TotalRuns)
	assert.Equal(t, 75.0, stats.SuccessRate)

	w = httptest.NewRecorder()
	h.HandleGetStats(w, req)
	assert.Equal(t, "HIT", w.Header().Get("X-Cache"))
}

func TestHandleGetQueueStats(t *testing.T) {
	h := testHandler(&fakeImporter{}, &fakeTracker{}, &fakeQueue{stats: queue.Stats{Depth: 3, Workers: 5}}, nil)

	req := httptest.NewRequest(http.MethodGet, "/queue-stats", nil)
	w := httptest.NewRecorder()
	h.HandleGetQueueStats(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var stats queue.Stats
	require.NoError(t, json.NewDecoder(w.Body).Decode(&stats))
	assert.Equal(t, 3, stats.Depth)
	assert.Equal(t, 5, stats.Workers)
}

func TestHandleGetFeeds(t *testing.T) {
	h := testHandler(&fakeImporter{}, &fakeTracker{}, &fakeQueue{}, []string{
		"https://jobs.example.com/feed.xml",
		"not a url",
	})

	req := httptest.NewRequest(http.MethodGet, "/feeds", nil)
	w := httptest.NewRecorder()
	h.HandleGetFeeds(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var feeds []FeedSource
	require.NoError(t, json.NewDecoder(w.Body).Decode(&feeds))
	require.Len(t, feeds, 2)
	assert.Equal(t, "jobs.example.com", feeds[0].Name)
	assert.Equal(t, "not a url", feeds[1].Name)
}

func TestHandleGetFeedsEmpty(t *testing.T) {
	h := testHandler(&fakeImporter{}, &fakeTracker{}, &fakeQueue{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/feeds", nil)
	w := httptest.NewRecorder()
	h.HandleGetFeeds(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())
}
