package downloader

import (
	"context"
)

// Fetcher retrieves remote content over HTTP.
type Fetcher interface {
	// FetchPage returns the body of url after a single attempt.
	FetchPage(ctx context.Context, url string) ([]byte, error)

	// Download writes url to dest, retrying transient failures.
	Download(ctx context.Context, url, dest string) (int64, error)
}
