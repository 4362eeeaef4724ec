package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/telegrambots/mediabots/internal/config"
	"github.com/telegrambots/mediabots/internal/domain"
)

// maxPageSize caps how much of a watch page is read.
const maxPageSize = 8 << 20

// errUnexpectedStatus marks non-200 responses that are worth retrying.
var errUnexpectedStatus = errors.New("unexpected status code")

// HTTPDownloader implements Fetcher using HTTP requests.
type HTTPDownloader struct {
	// client is used for page fetches with an overall timeout
	client *http.Client
	// streamClient is used for file downloads without overall timeout
	streamClient *http.Client
	userAgent    string
	retry        Backoff
	logger       *slog.Logger
}

// NewHTTPDownloader creates a new HTTP downloader.
func NewHTTPDownloader(cfg config.FetchConfig, logger *slog.Logger) *HTTPDownloader {
	if logger == nil {
		logger = slog.Default()
	}

	streamTransport := &http.Transport{
		ResponseHeaderTimeout: 30 * time.Second,
	}

	return &HTTPDownloader{
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		streamClient: &http.Client{
			Transport: streamTransport,
		},
		userAgent: cfg.UserAgent,
		retry:     BackoffFrom(cfg),
		logger:    logger,
	}
}

// FetchPage performs a single GET and returns the body. No retries.
func (d *HTTPDownloader) FetchPage(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", d.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if err := statusError(resp.StatusCode); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageSize))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

// Download fetches url into dest, retrying transient failures, and returns
// the bytes written. dest is removed if every attempt fails.
func (d *HTTPDownloader) Download(ctx context.Context, url, dest string) (int64, error) {
	var n int64
	err := d.retry.Do(ctx, func(ctx context.Context) error {
		var err error
		if n, err = d.downloadOnce(ctx, url, dest); err != nil {
			d.logger.Warn("download attempt failed", "error", err)
		}
		return err
	}, isRetryableError)
	if err != nil {
		os.Remove(dest)
		return 0, fmt.Errorf("download failed: %w", err)
	}
	return n, nil
}

func (d *HTTPDownloader) downloadOnce(ctx context.Context, url, dest string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", d.userAgent)

	resp, err := d.streamClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if err := statusError(resp.StatusCode); err != nil {
		return 0, err
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return 0, fmt.Errorf("create dir: %w", err)
	}
	f, err := os.Create(dest)
	if err != nil {
		return 0, fmt.Errorf("create file: %w", err)
	}

	n, err := io.Copy(f, resp.Body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return 0, fmt.Errorf("write file: %w", err)
	}
	return n, nil
}

func statusError(code int) error {
	switch {
	case code == http.StatusForbidden || code == http.StatusUnauthorized || code == http.StatusNotFound:
		return domain.ErrURLExpired
	case code == http.StatusTooManyRequests:
		return domain.ErrRateLimited
	case code != http.StatusOK:
		return fmt.Errorf("%w: %d", errUnexpectedStatus, code)
	}
	return nil
}

func isRetryableError(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	// URL expired is not retryable
	if errors.Is(err, domain.ErrURLExpired) {
		return false
	}
	return true
}
