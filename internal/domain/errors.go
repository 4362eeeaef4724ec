package domain

import "errors"

// Domain errors.
var (
	// ErrInvalidLink is returned when a message carries no supported YouTube link.
	ErrInvalidLink = errors.New("invalid YouTube link")

	// ErrTooLong is returned when a video exceeds the configured duration limit.
	ErrTooLong = errors.New("media exceeds duration limit")

	// ErrTooLarge is returned when a file exceeds the configured size limit.
	ErrTooLarge = errors.New("media exceeds size limit")

	// ErrBlocked is returned when the downloaded file is empty.
	ErrBlocked = errors.New("media blocked or unavailable")

	// ErrFileMissing is returned when the downloaded file does not exist.
	ErrFileMissing = errors.New("downloaded file not found")

	// ErrDownloadFailed is returned when the audio download fails.
	ErrDownloadFailed = errors.New("audio download failed")

	// ErrToolUnavailable is returned when an external binary cannot be started.
	ErrToolUnavailable = errors.New("external tool unavailable")

	// ErrConversionFailed is returned when ffmpeg fails to convert a file.
	ErrConversionFailed = errors.New("conversion failed")

	// ErrUnsupportedFile is returned for documents the converter does not handle.
	ErrUnsupportedFile = errors.New("unsupported file type")

	// ErrRunNotFound is returned when a pipeline run cannot be found.
	ErrRunNotFound = errors.New("run not found")

	// ErrURLExpired is returned when a fetched URL is no longer valid.
	ErrURLExpired = errors.New("URL has expired")

	// ErrRateLimited is returned when rate limited by external services.
	ErrRateLimited = errors.New("rate limited")
)

// PipelineError wraps an error with the URL and stage it occurred in.
type PipelineError struct {
	URL string
	Op  string
	Err error
}

func (e *PipelineError) Error() string {
	if e.URL != "" {
		return e.Op + " [" + e.URL + "]: " + e.Err.Error()
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// NewPipelineError creates a new PipelineError.
func NewPipelineError(url, op string, err error) *PipelineError {
	return &PipelineError{
		URL: url,
		Op:  op,
		Err: err,
	}
}
