package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/Nexora-Open-Source/job-feed-backend/middleware"
	"github.com/Nexora-Open-Source/job-feed-backend/store"
	"github.com/Nexora-Open-Source/job-feed-backend/utils"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// HandleListRuns returns one page of import runs, newest first.
//
// Query parameters: page (default 1), page_size (default 20, max 100).
func (h *Handler) HandleListRuns(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get("X-Request-ID")
	if requestID == "" {
		requestID = utils.GenerateRequestID()
		w.Header().Set("X-Request-ID", requestID)
	}

	page, err := positiveIntParam(r, "page", 1)
	if err != nil {
		middleware.RespondBadRequest(w, err, requestID)
		return
	}
	pageSize, err := positiveIntParam(r, "page_size", 20)
	if err != nil {
		middleware.RespondBadRequest(w, err, requestID)
		return
	}

	if cached, found := h.Cache.GetRunPage(page, pageSize); found {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Cache", "HIT")
		json.NewEncoder(w).Encode(cached)
		return
	}

	runs, err := h.Tracker.List(r.Context(), page, pageSize)
	if err != nil {
		middleware.RespondInternalError(w, err, requestID)
		return
	}
	h.Cache.SetRunPage(page, pageSize, runs)

	h.Logger.WithFields(logrus.Fields{
		"request_id": requestID,
		"action":     "list_runs",
		"page":       page,
		"page_size":  pageSize,
		"count":      len(runs),
	}).Info("Import runs listed")

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Cache", "MISS")
	json.NewEncoder(w).Encode(runs)
}

// HandleGetRun returns a single import run by ID.
func (h *Handler) HandleGetRun(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get("X-Request-ID")
	if requestID == "" {
		requestID = utils.GenerateRequestID()
		w.Header().Set("X-Request-ID", requestID)
	}

	runID := mux.Vars(r)["id"]
	if runID == "" {
		middleware.RespondBadRequest(w, fmt.Errorf("run id is missing"), requestID)
		return
	}

	run, err := h.Tracker.GetByID(r.Context(), runID)
	if errors.Is(err, store.ErrNotFound) {
		middleware.RespondNotFound(w, fmt.Errorf("import run %s not found", runID), requestID)
		return
	}
	if err != nil {
		middleware.RespondInternalError(w, err, requestID)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(run)
}

// HandleGetStats returns aggregate import run statistics.
func (h *Handler) HandleGetStats(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get("X-Request-ID")
	if requestID == "" {
		requestID = utils.GenerateRequestID()
		w.Header().Set("X-Request-ID", requestID)
	}

	if cached, found := h.Cache.GetStats(); found {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Cache", "HIT")
		json.NewEncoder(w).Encode(cached)
		return
	}

	stats, err := h.Tracker.Stats(r.Context())
	if err != nil {
		middleware.RespondInternalError(w, err, requestID)
		return
	}
	h.Cache.SetStats(stats)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Cache", "MISS")
	json.NewEncoder(w).Encode(stats)
}

// HandleGetQueueStats returns a snapshot of current queue state.
func (h *Handler) HandleGetQueueStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.Queue.Snapshot())
}

func positiveIntParam(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed < 1 {
		return 0, fmt.Errorf("invalid %s parameter: %q", name, raw)
	}
	return parsed, nil
}
