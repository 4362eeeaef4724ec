// Package bot implements the YouTube to MP3 bot: link extraction, single
// and batch dispatch of download pipelines, and batch summaries.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/telegrambots/mediabots/internal/domain"
	"github.com/telegrambots/mediabots/internal/notify"
)

// PipelineRunner processes one request and reports its outcome.
type PipelineRunner interface {
	Run(ctx context.Context, req domain.DownloadRequest) domain.PipelineOutcome
}

// Tasks runs background work with bounded batch parallelism. Acquire
// hands out the process-wide run slots every pipeline waits for.
type Tasks interface {
	Go(name string, fn func(ctx context.Context)) error
	RunBatches(ctx context.Context, n int, fn func(ctx context.Context, i int) error) error
	BatchSize() int
	Acquire(ctx context.Context) (release func(), err error)
}

// Orchestrator turns inbound text into pipeline runs.
type Orchestrator struct {
	pipeline PipelineRunner
	tasks    Tasks
	sink     notify.Sink
	logger   *slog.Logger
	now      func() time.Time
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(pipeline PipelineRunner, tasks Tasks, sink notify.Sink, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		pipeline: pipeline,
		tasks:    tasks,
		sink:     sink,
		logger:   logger,
		now:      time.Now,
	}
}

// HandleMessage routes a Telegram message: /start gets the welcome text,
// any other text goes to Handle.
func (o *Orchestrator) HandleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.IsCommand() {
		if msg.Command() == "start" {
			o.send(msg.Chat.ID, welcomeText)
		}
		return
	}
	if msg.Text == "" {
		return
	}
	o.Handle(msg.Chat.ID, msg.Text)
}

// Handle extracts links from text and starts processing them in the
// background. It reports whether the text carried at least one link.
func (o *Orchestrator) Handle(chatID int64, text string) bool {
	urls := ExtractURLs(text)
	if len(urls) == 0 {
		if u, ok := singleLink(text); ok {
			urls = []string{u}
		}
	}

	switch len(urls) {
	case 0:
		o.logger.Debug("no link in message", "chat_id", chatID, "error", domain.ErrInvalidLink)
		o.send(chatID, invalidText)
		return false
	case 1:
		o.runSingle(chatID, urls[0])
	default:
		o.runBatch(chatID, urls)
	}
	return true
}

func (o *Orchestrator) runSingle(chatID int64, url string) {
	o.send(chatID, acceptedText)
	if err := o.sink.SendChatAction(chatID, notify.ActionUploadDocument); err != nil {
		o.logger.Debug("failed to send chat action", "chat_id", chatID, "error", err)
	}

	o.logger.Info("link accepted", "chat_id", chatID, "video_id", ExtractVideoID(url))
	req := domain.DownloadRequest{URL: url, ChatID: chatID, Index: 1, Total: 1}
	if err := o.tasks.Go("pipeline", func(ctx context.Context) {
		o.runPipeline(ctx, req)
	}); err != nil {
		o.logger.Warn("could not start pipeline", "url", url, "error", err)
	}
}

func (o *Orchestrator) runBatch(chatID int64, urls []string) {
	total := len(urls)
	size := o.tasks.BatchSize()
	started := o.now()

	o.logger.Info("batch detected", "chat_id", chatID, "links", total, "parallel", size)
	o.send(chatID, estimateText(total, size))

	err := o.tasks.Go("batch", func(ctx context.Context) {
		summary := domain.NewBatchSummary(total, started)

		_ = o.tasks.RunBatches(ctx, total, func(ctx context.Context, i int) error {
			req := domain.DownloadRequest{URL: urls[i], ChatID: chatID, Index: i + 1, Total: total}
			summary.Record(req.URL, o.runPipeline(ctx, req))
			return nil
		})

		summary.Finish(o.now())
		succeeded, failed := summary.Counts()
		o.logger.Info("batch complete",
			"chat_id", chatID,
			"succeeded", succeeded,
			"failed", failed,
			"elapsed", summary.Elapsed(),
		)
		o.send(chatID, summaryText(summary))
	})
	if err != nil {
		o.logger.Warn("could not start batch", "chat_id", chatID, "error", err)
	}
}

// runPipeline runs one request once a run slot is free; a panic becomes an
// internal failure so the batch still counts every request.
func (o *Orchestrator) runPipeline(ctx context.Context, req domain.DownloadRequest) (outcome domain.PipelineOutcome) {
	release, err := o.tasks.Acquire(ctx)
	if err != nil {
		o.logger.Warn("pipeline not started", "url", req.URL, "position", req.Position(), "error", err)
		o.send(req.ChatID, notStartedText(req))
		return domain.Failed(domain.ReasonInterrupted, notStartedText(req), err)
	}
	defer release()

	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("pipeline panicked",
				"url", req.URL,
				"position", req.Position(),
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()),
			)
			outcome = domain.Failed(domain.ReasonInternal, "", fmt.Errorf("panic: %v", r))
		}
	}()
	return o.pipeline.Run(ctx, req)
}

func (o *Orchestrator) send(chatID int64, text string) {
	if err := o.sink.SendText(chatID, text); err != nil {
		o.logger.Error("failed to send message", "chat_id", chatID, "error", err)
	}
}
