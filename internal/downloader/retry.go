package downloader

import (
	"context"
	"time"

	"github.com/telegrambots/mediabots/internal/config"
)

const backoffFactor = 2

// Backoff retries an operation with exponentially growing pauses.
type Backoff struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// BackoffFrom builds a Backoff from fetch settings. Zero values fall back
// to 3 attempts starting at 2s and capped at 20s.
func BackoffFrom(cfg config.FetchConfig) Backoff {
	b := Backoff{MaxAttempts: 3, InitialDelay: 2 * time.Second, MaxDelay: 20 * time.Second}
	if cfg.MaxAttempts > 0 {
		b.MaxAttempts = cfg.MaxAttempts
	}
	if cfg.RetryDelay > 0 {
		b.InitialDelay = cfg.RetryDelay
	}
	if cfg.MaxRetryDelay > 0 {
		b.MaxDelay = cfg.MaxRetryDelay
	}
	return b
}

// Delay returns the pause after the given zero-based failed attempt.
func (b Backoff) Delay(attempt int) time.Duration {
	d := b.InitialDelay
	for i := 0; i < attempt && d < b.MaxDelay; i++ {
		d *= backoffFactor
	}
	return min(d, b.MaxDelay)
}

// Do calls fn until it succeeds, retryable reports false, the attempts run
// out or ctx is done. A nil retryable retries every error. The last error
// from fn is returned, or ctx.Err() if the wait was interrupted.
func (b Backoff) Do(ctx context.Context, fn func(ctx context.Context) error, retryable func(error) bool) error {
	attempts := max(b.MaxAttempts, 1)

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if retryable != nil && !retryable(err) {
			return err
		}
		if attempt == attempts-1 {
			break
		}

		timer := time.NewTimer(b.Delay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return err
}
