package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nexora-Open-Source/job-feed-backend/middleware"
	"github.com/Nexora-Open-Source/job-feed-backend/store"
	"github.com/Nexora-Open-Source/job-feed-backend/types"
)

func TestMain(m *testing.M) {
	middleware.InitLogger()
	middleware.Logger.SetLevel(logrus.PanicLevel)
	os.Exit(m.Run())
}

func testHealthHandler(runStore store.RunStore) *Handler {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return NewHandler(runStore, logger)
}

func TestHandleHealthCheckHealthy(t *testing.T) {
	h := testHealthHandler(store.NewMemoryRunStore())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	h.HandleHealthCheck(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var status Status
	require.NoError(t, json.NewDecoder(w.Body).Decode(&status))
	assert.Equal(t, "healthy", status.Status)
	assert.Equal(t, "healthy", status.Services["store"])
	assert.NotEmpty(t, status.Uptime)
}

func TestHandleHealthCheckStoreDown(t *testing.T) {
	h := testHealthHandler(&downRunStore{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	h.HandleHealthCheck(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var status Status
	require.NoError(t, json.NewDecoder(w.Body).Decode(&status))
	assert.Equal(t, "unhealthy", status.Status)
	assert.Contains(t, status.Services["store"], "unhealthy")
}

func TestHandleLivenessCheck(t *testing.T) {
	h := testHealthHandler(&downRunStore{})

	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	w := httptest.NewRecorder()
	h.HandleLivenessCheck(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "alive", body["status"])
}

func TestHandleReadinessCheck(t *testing.T) {
	h := testHealthHandler(store.NewMemoryRunStore())

	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	w := httptest.NewRecorder()
	h.HandleReadinessCheck(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHandleReadinessCheckStoreDown(t *testing.T) {
	h := testHealthHandler(&downRunStore{})

	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	w := httptest.NewRecorder()
	h.HandleReadinessCheck(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

// downRunStore fails every operation.
type downRunStore struct{}

func (s *downRunStore) Create(ctx context.Context, run *types.ImportRun) error {
	return fmt.Errorf("store unavailable")
}

func (s *downRunStore) Get(ctx context.Context, id string) (*types.ImportRun, error) {
	return nil, fmt.Errorf("store unavailable")
}

func (s *downRunStore) Update(ctx context.Context, run *types.ImportRun) error {
	return fmt.Errorf("store unavailable")
}

func (s *downRunStore) List(ctx context.Context, offset, limit int) ([]*types.ImportRun, error) {
	return nil, fmt.Errorf("store unavailable")
}

func (s *downRunStore) Count(ctx context.Context) (int, error) {
	return 0, fmt.Errorf("store unavailable")
}

func (s *downRunStore) CountByStatus(ctx context.Context, status string) (int, error) {
	return 0, fmt.Errorf("store unavailable")
}

func (s *downRunStore) CountSince(ctx context.Context, since time.Time) (int, error) {
	return 0, fmt.Errorf("store unavailable")
}
