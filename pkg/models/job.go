// Package models contains shared data models used across the meetscribe codebase.
package models

import "time"

const (
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
)

// IsTerminal reports whether a status admits no further transitions.
func IsTerminal(status string) bool {
	return status == JobStatusCompleted || status == JobStatusFailed
}

// JobStatus is the status record clients poll via GET /status/{job_id}.
// Exactly one runner writes it while the job is processing; progress is
// monotonically non-decreasing until a terminal status is reached.
type JobStatus struct {
	JobID     string    `db:"job_id"     json:"job_id"`
	Status    string    `db:"status"     json:"status"`
	Message   string    `db:"message"    json:"message,omitempty"`
	Progress  int       `db:"progress"   json:"progress"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
