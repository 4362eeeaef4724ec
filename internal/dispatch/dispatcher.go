// Package dispatch long-polls Telegram and hands each message to a handler
// on its own background task.
package dispatch

import (
	"context"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// UpdateSource is the subset of *tgbotapi.BotAPI used for polling.
type UpdateSource interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// MessageHandler processes one inbound message.
type MessageHandler interface {
	HandleMessage(ctx context.Context, msg *tgbotapi.Message)
}

// Tasks starts tracked background work.
type Tasks interface {
	Go(name string, fn func(ctx context.Context)) error
}

// Dispatcher fans updates out to a MessageHandler.
type Dispatcher struct {
	source      UpdateSource
	handler     MessageHandler
	tasks       Tasks
	pollTimeout int
	logger      *slog.Logger
}

// New creates a Dispatcher. pollTimeout is the long-poll timeout in seconds.
func New(source UpdateSource, handler MessageHandler, tasks Tasks, pollTimeout int, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		source:      source,
		handler:     handler,
		tasks:       tasks,
		pollTimeout: pollTimeout,
		logger:      logger,
	}
}

// Run polls until ctx is canceled or the update channel closes.
func (d *Dispatcher) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = d.pollTimeout

	updates := d.source.GetUpdatesChan(u)
	d.logger.Info("polling for updates", "timeout", d.pollTimeout)

	for {
		select {
		case <-ctx.Done():
			d.source.StopReceivingUpdates()
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			d.dispatch(update)
		}
	}
}

func (d *Dispatcher) dispatch(update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.Chat == nil {
		return
	}

	d.logger.Debug("message received",
		"update_id", update.UpdateID,
		"chat_id", msg.Chat.ID,
		"has_document", msg.Document != nil,
	)

	if err := d.tasks.Go("update", func(ctx context.Context) {
		d.handler.HandleMessage(ctx, msg)
	}); err != nil {
		d.logger.Warn("dropping update", "update_id", update.UpdateID, "error", err)
	}
}
