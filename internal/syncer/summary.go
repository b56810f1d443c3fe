package syncer

import (
	"time"

	"github.com/seclytics/sirsync/internal/cursor"
)

// Summary is the structured result of one sync run.
type Summary struct {
	RunID     string    `json:"run_id"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`

	// Fetched counts raw records returned by the source, Processed counts
	// records that survived the pipeline.
	Fetched   int `json:"fetched"`
	Processed int `json:"processed"`
	Sent      int `json:"sent"`
	Success   int `json:"success"`
	Failed    int `json:"failed"`

	// Cursor is the value persisted at the end of the run.
	Cursor cursor.Cursor `json:"-"`
	// CursorValue is the string form, for the status endpoint.
	CursorValue string `json:"cursor"`
}

// Stats accumulates across runs for the status server.
type Stats struct {
	Runs         int64     `json:"runs"`
	FailedRuns   int64     `json:"failed_runs"`
	TotalSent    int64     `json:"total_sent"`
	TotalSuccess int64     `json:"total_success"`
	TotalFailed  int64     `json:"total_failed"`
	LastRunAt    time.Time `json:"last_run_at,omitempty"`
	LastError    string    `json:"last_error,omitempty"`

	LastSummary *Summary `json:"last_summary,omitempty"`
}
