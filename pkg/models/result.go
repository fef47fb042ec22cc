package models

import (
	"strings"
	"time"
)

// Segment is one speaker-attributed span of the transcript, ordered by
// StartTime non-decreasing within a protocol.
type Segment struct {
	Speaker   string  `json:"speaker"`
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
	Text      string  `json:"text"`
}

// JobResult is the result record written exactly once when a job completes.
// Protocol is immutable after the completed transition; Summary is the only
// field that may be set (or overwritten) afterwards.
type JobResult struct {
	JobID       string    `db:"job_id"       json:"job_id"`
	Status      string    `db:"status"       json:"status"`
	Protocol    []Segment `db:"protocol"     json:"protocol"`
	Summary     *string   `db:"summary"      json:"summary"`
	CompletedAt time.Time `db:"completed_at" json:"completed_at"`
}

// TranscriptText renders the protocol as "SPEAKER: text" lines, the form
// handed to the summarization provider.
func (r *JobResult) TranscriptText() string {
	var b strings.Builder
	for i, seg := range r.Protocol {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(seg.Speaker)
		b.WriteString(": ")
		b.WriteString(seg.Text)
	}
	return b.String()
}
