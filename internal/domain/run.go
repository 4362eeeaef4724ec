package domain

import (
	"time"
)

// RunID is a unique identifier for a pipeline run.
type RunID string

// String returns the string representation of the RunID.
func (id RunID) String() string {
	return string(id)
}

// RunStatus represents the current state of a run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
)

// Run records one pipeline execution for the admin API.
type Run struct {
	ID         RunID         `json:"id"`
	URL        string        `json:"url"`
	ChatID     int64         `json:"chat_id"`
	Status     RunStatus     `json:"status"`
	Reason     FailureReason `json:"reason,omitempty"`
	FileName   string        `json:"file_name,omitempty"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
}

// NewRun creates a running run for a request.
func NewRun(id RunID, req DownloadRequest) *Run {
	return &Run{
		ID:        id,
		URL:       req.URL,
		ChatID:    req.ChatID,
		Status:    RunStatusRunning,
		StartedAt: time.Now(),
	}
}

// Finish applies an outcome to the run.
func (r *Run) Finish(o PipelineOutcome) {
	r.FinishedAt = time.Now()
	if o.Success {
		r.Status = RunStatusSucceeded
		r.FileName = o.FilePath
		return
	}
	r.Status = RunStatusFailed
	r.Reason = o.Reason
}

// Duration returns how long the run took, or has taken so far.
func (r *Run) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return time.Since(r.StartedAt)
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
