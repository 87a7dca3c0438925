// Package types contains the shared records used across the job feed backend
package types

import (
	"time"
)

// Job is the canonical, persisted job posting record. ExternalID and URL are
// both identity keys: a stored job matches a candidate on either one.
type Job struct {
	ExternalID  string    `json:"external_id" datastore:"external_id"`
	URL         string    `json:"url" datastore:"url"`
	Title       string    `json:"title" datastore:"title,noindex"`
	Company     string    `json:"company" datastore:"company,noindex"`
	Category    string    `json:"category" datastore:"category,noindex"`
	Type        string    `json:"type" datastore:"type,noindex"`
	Location    string    `json:"location" datastore:"location,noindex"`
	Description string    `json:"description" datastore:"description,noindex"`
	PostedAt    time.Time `json:"posted_at" datastore:"posted_at,noindex"`
	UpdatedAt   time.Time `json:"updated_at" datastore:"updated_at"`
}

// Schema length bounds for Job string fields. Normalization truncates to
// these, it never rejects.
const (
	MaxExternalIDLen  = 200
	MaxURLLen         = 500
	MaxTitleLen       = 200
	MaxCompanyLen     = 200
	MaxCategoryLen    = 100
	MaxLocationLen    = 200
	MaxDescriptionLen = 5000
)

// Job type enum values.
const (
	TypeFullTime  = "Full-time"
	TypePartTime  = "Part-time"
	TypeContract  = "Contract"
	TypeFreelance = "Freelance"
	TypeRemote    = "Remote"
	TypeOther     = "Other"
)

// Defaults applied by normalization when no source field alias is present.
const (
	DefaultTitle    = "Untitled Position"
	DefaultCompany  = "Unknown Company"
	DefaultLocation = "Remote"
	DefaultCategory = "General"
)

// ImportRun status values.
const (
	RunInProgress = "in-progress"
	RunCompleted  = "completed"
	RunFailed     = "failed"
)

// ImportRun records the lifecycle of one fetch sweep across a set of feed
// URLs.
type ImportRun struct {
	ID            string    `json:"id" datastore:"-"`
	SourceLabel   string    `json:"source_label" datastore:"source_label,noindex"`
	StartedAt     time.Time `json:"started_at" datastore:"started_at"`
	Status        string    `json:"status" datastore:"status"`
	TotalFetched  int       `json:"total_fetched" datastore:"total_fetched,noindex"`
	NewJobs       int       `json:"new_jobs" datastore:"new_jobs,noindex"`
	UpdatedJobs   int       `json:"updated_jobs" datastore:"updated_jobs,noindex"`
	FailedJobs    int       `json:"failed_jobs" datastore:"failed_jobs,noindex"`
	FailedReasons []string  `json:"failed_reasons" datastore:"failed_reasons,noindex"`
	DurationMs    int64     `json:"duration_ms" datastore:"duration_ms,noindex"`
}

// ImportSummary is what the pipeline entry point returns to its caller.
type ImportSummary struct {
	ImportRunID string `json:"import_run_id"`
	TotalJobs   int    `json:"total_jobs"`
}

// ImportStats aggregates run-level statistics for reporting.
type ImportStats struct {
	TotalRuns   int        `json:"total_runs"`
	RunsLast24h int        `json:"runs_last_24h"`
	SuccessRate float64    `json:"success_rate"` // percentage, two-decimal precision
	LatestRun   *ImportRun `json:"latest_run,omitempty"`
}
