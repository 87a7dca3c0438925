package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/Nexora-Open-Source/job-feed-backend/middleware"
	"github.com/Nexora-Open-Source/job-feed-backend/utils"
	"github.com/sirupsen/logrus"
)

// ImportRequest is the body of a manual import trigger. URLs may be omitted
// to sweep the configured feed sources.
type ImportRequest struct {
	URLs []string `json:"urls"`
}

/*
HandleStartImport triggers one ingestion sweep.

Example:

	POST /import
	{"urls": ["https://example.com/jobs.xml"]}

Response:
  - 200 OK: {"import_run_id": "...", "total_jobs": 42}
  - 400 Bad Request: no URLs given and none configured.
  - 500 Internal Server Error: the sweep could not start or enqueue.
*/
func (h *Handler) HandleStartImport(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get("X-Request-ID")
	if requestID == "" {
		requestID = utils.GenerateRequestID()
		w.Header().Set("X-Request-ID", requestID)
	}

	var req ImportRequest
	if r.Body != nil {
		// An empty body is a valid "sweep the configured feeds" request.
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err.Error() != "EOF" {
			middleware.RespondBadRequest(w, fmt.Errorf("invalid request body: %v", err), requestID)
			return
		}
	}

	urls := req.URLs
	if len(urls) == 0 {
		urls = h.FeedURLs
	}
	if len(urls) == 0 {
		middleware.RespondValidationError(w, fmt.Errorf("no feed urls given and none configured"), requestID)
		return
	}

	h.Logger.WithFields(logrus.Fields{
		"request_id": requestID,
		"action":     "start_import",
		"feed_urls":  len(urls),
	}).Info("Processing import trigger")

	summary, err := h.Importer.RunImport(r.Context(), urls)
	if err != nil {
		middleware.RespondInternalError(w, err, requestID)
		return
	}

	h.Cache.Invalidate()

	h.Logger.WithFields(logrus.Fields{
		"request_id":    requestID,
		"import_run_id": summary.ImportRunID,
		"total_jobs":    summary.TotalJobs,
	}).Info("Import run triggered successfully")

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(summary)
}
