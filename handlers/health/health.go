// Package health provides health check handlers for the job feed backend
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/Nexora-Open-Source/job-feed-backend/middleware"
	"github.com/Nexora-Open-Source/job-feed-backend/store"
	"github.com/Nexora-Open-Source/job-feed-backend/utils"
	"github.com/sirupsen/logrus"
)

// Status represents the health check response structure
type Status struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Version   string            `json:"version"`
	Services  map[string]string `json:"services"`
	Uptime    string            `json:"uptime"`
}

// Handler contains dependencies for health handlers
type Handler struct {
	RunStore store.RunStore
	Logger   *logrus.Logger
}

// NewHandler creates a new health handler
func NewHandler(runStore store.RunStore, logger *logrus.Logger) *Handler {
	return &Handler{RunStore: runStore, Logger: logger}
}

// HandleHealthCheck provides a health check endpoint for monitoring
func (h *Handler) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	health := Status{
		Status:    "healthy",
		Timestamp: time.Now().Format(time.RFC3339),
		Version:   "1.0.0",
		Services:  make(map[string]string),
		Uptime:    time.Since(startTime).String(),
	}

	if err := h.checkStoreHealth(); err != nil {
		health.Status = "unhealthy"
		health.Services["store"] = "unhealthy: " + err.Error()
		h.Logger.WithFields(logrus.Fields{
			"service": "store",
			"error":   err.Error(),
		}).Error("Health check failed for store")
	} else {
		health.Services["store"] = "healthy"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(health)
}

// HandleLivenessCheck provides a simple liveness probe
func (h *Handler) HandleLivenessCheck(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":    "alive",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(startTime).String(),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}

// HandleReadinessCheck provides a readiness probe
func (h *Handler) HandleReadinessCheck(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get("X-Request-ID")
	if requestID == "" {
		requestID = utils.GenerateRequestID()
	}

	if err := h.checkStoreHealth(); err != nil {
		middleware.RespondServiceUnavailable(w, err, requestID)
		return
	}

	response := map[string]interface{}{
		"status":    "ready",
		"timestamp": time.Now().Format(time.RFC3339),
		"services": map[string]string{
			"store": "ready",
		},
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}

// checkStoreHealth verifies the run store is reachable
func (h *Handler) checkStoreHealth() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := h.RunStore.Count(ctx)
	return err
}

var startTime = time.Now()
