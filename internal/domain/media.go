package domain

import (
	"fmt"
	"strings"
)

// Unknown marks a size or duration that could not be measured.
const Unknown = -1

// DownloadRequest is one URL extracted from an inbound message.
type DownloadRequest struct {
	URL    string
	ChatID int64
	Index  int // 1-based position within the batch
	Total  int
}

// Position renders the request's place in its batch, e.g. "(2/5)".
func (r DownloadRequest) Position() string {
	return fmt.Sprintf("(%d/%d)", r.Index, r.Total)
}

// MediaProbe holds the size and duration reported before downloading.
type MediaProbe struct {
	Size     int64   // bytes, or Unknown
	Duration float64 // seconds, or Unknown
}

// UnknownProbe returns a probe with both fields unknown.
func UnknownProbe() MediaProbe {
	return MediaProbe{Size: Unknown, Duration: Unknown}
}

// SizeKnown reports whether Size was measured.
func (p MediaProbe) SizeKnown() bool {
	return p.Size >= 0
}

// DurationKnown reports whether Duration was measured.
func (p MediaProbe) DurationKnown() bool {
	return p.Duration >= 0
}

// ExceedsDuration reports whether a known duration is over maxSeconds.
// Unknown durations never exceed.
func (p MediaProbe) ExceedsDuration(maxSeconds float64) bool {
	return p.DurationKnown() && p.Duration > maxSeconds
}

// ExceedsSize reports whether a known, non-zero size is over maxBytes.
func (p MediaProbe) ExceedsSize(maxBytes int64) bool {
	return p.Size > 0 && p.Size > maxBytes
}

// VideoMetadata is the raw uploader and title of a video. Empty means unset.
type VideoMetadata struct {
	Channel string
	Title   string
}

// IsEmpty returns true if neither field is set.
func (m VideoMetadata) IsEmpty() bool {
	return strings.TrimSpace(m.Channel) == "" && strings.TrimSpace(m.Title) == ""
}

// HasTitle returns true if the title is non-blank.
func (m VideoMetadata) HasTitle() bool {
	return strings.TrimSpace(m.Title) != ""
}
