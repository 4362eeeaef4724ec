package domain

import (
	"sync"
	"time"
)

// FailureReason classifies why a pipeline failed.
type FailureReason string

const (
	ReasonNone        FailureReason = ""
	ReasonTooLong     FailureReason = "too_long"
	ReasonTooLarge    FailureReason = "too_large"
	ReasonBlocked     FailureReason = "blocked"
	ReasonFileMissing FailureReason = "file_missing"
	ReasonDownload    FailureReason = "download_failed"
	ReasonTool        FailureReason = "tool_error"
	ReasonIO          FailureReason = "io_error"
	ReasonDelivery    FailureReason = "delivery_failed"
	ReasonInterrupted FailureReason = "interrupted"
	ReasonInternal    FailureReason = "internal"
)

// String returns the string representation of the FailureReason.
func (r FailureReason) String() string {
	return string(r)
}

// Expected reports whether r is a limit or validation failure rather than
// an error raised by a stage.
func (r FailureReason) Expected() bool {
	switch r {
	case ReasonTooLong, ReasonTooLarge, ReasonBlocked, ReasonFileMissing, ReasonDownload:
		return true
	}
	return false
}

// PipelineOutcome is the single result of one DownloadRequest.
type PipelineOutcome struct {
	Success  bool
	FilePath string
	Caption  string

	Reason  FailureReason
	Message string // user-facing text, already sent
	Err     error  // sentinel or underlying error, nil on success
}

// Succeeded builds a successful outcome.
func Succeeded(path, caption string) PipelineOutcome {
	return PipelineOutcome{Success: true, FilePath: path, Caption: caption}
}

// Failed builds a failed outcome.
func Failed(reason FailureReason, message string, err error) PipelineOutcome {
	return PipelineOutcome{Reason: reason, Message: message, Err: err}
}

// BatchSummary aggregates outcomes of a batch. Safe for concurrent use.
type BatchSummary struct {
	mu        sync.Mutex
	total     int
	succeeded int
	failed    int
	failures  []string
	started   time.Time
	elapsed   time.Duration
}

// NewBatchSummary starts a summary for total requests.
func NewBatchSummary(total int, started time.Time) *BatchSummary {
	return &BatchSummary{total: total, started: started}
}

// Record adds one outcome. Unexpected failures are detailed as
// "url (reason: error)", expected ones as the bare URL.
func (s *BatchSummary) Record(url string, o PipelineOutcome) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if o.Success {
		s.succeeded++
		return
	}
	s.failed++
	if o.Err != nil && !o.Reason.Expected() {
		reason := o.Reason
		if reason == ReasonNone {
			reason = ReasonInternal
		}
		s.failures = append(s.failures, url+" ("+reason.String()+": "+o.Err.Error()+")")
		return
	}
	s.failures = append(s.failures, url)
}

// Finish stamps the elapsed time.
func (s *BatchSummary) Finish(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.elapsed = now.Sub(s.started)
}

// Total returns the number of requests in the batch.
func (s *BatchSummary) Total() int {
	return s.total
}

// Counts returns the success and failure counts.
func (s *BatchSummary) Counts() (succeeded, failed int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.succeeded, s.failed
}

// Failures returns a copy of the failure details in completion order.
func (s *BatchSummary) Failures() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.failures))
	copy(out, s.failures)
	return out
}

// Elapsed returns the duration set by Finish.
func (s *BatchSummary) Elapsed() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.elapsed
}

// Complete reports whether every request has been recorded.
func (s *BatchSummary) Complete() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.succeeded+s.failed == s.total
}
