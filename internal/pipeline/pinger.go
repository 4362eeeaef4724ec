package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/telegrambots/mediabots/internal/notify"
)

// pinger repeats the upload chat action until stopped.
type pinger struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

func (p *Pipeline) startPinger(ctx context.Context, chatID int64, logger *slog.Logger) *pinger {
	ctx, cancel := context.WithCancel(ctx)
	pg := &pinger{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(pg.done)

		ticker := time.NewTicker(p.cfg.StatusInterval)
		defer ticker.Stop()

		for {
			if err := p.sink.SendChatAction(chatID, notify.ActionUploadDocument); err != nil {
				logger.Debug("status ping failed", "error", err)
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()

	return pg
}

// stop cancels the pinger and waits for it to exit. Safe to call more than once.
func (pg *pinger) stop() {
	pg.once.Do(func() {
		pg.cancel()
		<-pg.done
	})
}
