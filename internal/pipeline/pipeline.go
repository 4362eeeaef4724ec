// Package pipeline turns one YouTube URL into a delivered MP3 or a classified failure.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/telegrambots/mediabots/internal/domain"
	"github.com/telegrambots/mediabots/internal/notify"
	"github.com/telegrambots/mediabots/internal/repository"
	"github.com/telegrambots/mediabots/pkg/sanitize"
)

// TempDirName is the subdirectory of the work dir holding in-flight downloads.
const TempDirName = "temp_mp3"

// Gateway is the set of external tool operations the pipeline uses.
type Gateway interface {
	ProbeSizeAndDuration(ctx context.Context, url string) (domain.MediaProbe, error)
	FetchMetadata(ctx context.Context, url string) (domain.VideoMetadata, error)
	FetchMetadataFallback(ctx context.Context, url string) domain.VideoMetadata
	DownloadAudio(ctx context.Context, url, dest string) (bool, error)
	FetchThumbnail(ctx context.Context, url, base string) (string, bool)
	EmbedCoverArt(ctx context.Context, audio, thumb, out string) bool
	ProbeFileDuration(ctx context.Context, path string) float64
}

// Config holds pipeline limits and storage settings.
type Config struct {
	WorkDir            string
	MaxFileSize        int64
	MaxDurationMinutes float64
	StatusInterval     time.Duration
	KeepAudio          bool
}

// Pipeline runs the per-URL download state machine. Safe for concurrent use.
type Pipeline struct {
	gateway Gateway
	sink    notify.Sink
	runs    repository.RunRepository
	cfg     Config
	logger  *slog.Logger
	stat    func(string) (fs.FileInfo, error)
}

// New creates a Pipeline.
func New(gw Gateway, sink notify.Sink, runs repository.RunRepository, cfg Config, logger *slog.Logger) *Pipeline {
	if cfg.StatusInterval <= 0 {
		cfg.StatusInterval = time.Second
	}
	return &Pipeline{
		gateway: gw,
		sink:    sink,
		runs:    runs,
		cfg:     cfg,
		logger:  logger,
		stat:    os.Stat,
	}
}

// Run processes req and always returns exactly one outcome. The user has
// been told about the outcome by the time Run returns.
func (p *Pipeline) Run(ctx context.Context, req domain.DownloadRequest) (outcome domain.PipelineOutcome) {
	logger := p.logger.With("url", req.URL, "position", req.Position(), "chat_id", req.ChatID)
	start := time.Now()

	runID := domain.RunID(uuid.NewString())
	if err := p.runs.Create(ctx, domain.NewRun(runID, req)); err != nil {
		logger.Warn("failed to record run", "error", err)
	}
	defer func() {
		if err := p.runs.Finish(context.Background(), runID, outcome); err != nil {
			logger.Warn("failed to finish run", "run_id", runID, "error", err)
		}
		logger.Info("pipeline finished",
			"run_id", runID,
			"success", outcome.Success,
			"reason", outcome.Reason,
			"duration", time.Since(start),
		)
	}()

	defer func() {
		if r := recover(); r != nil {
			logger.Error("pipeline panicked", "panic", fmt.Sprint(r), "stack", string(debug.Stack()))
			outcome = domain.Failed(domain.ReasonInternal, unexpectedText(req), fmt.Errorf("panic: %v", r))
			p.notifyFailure(req, outcome, logger)
		}
	}()

	// The final file is staged in a directory of its own so that runs
	// producing the same name never touch each other's files.
	runDir := filepath.Join(p.cfg.WorkDir, runID.String())
	defer p.removeRunDir(runDir, logger)

	outcome = p.execute(ctx, req, runDir, logger)
	if !outcome.Success {
		p.notifyFailure(req, outcome, logger)
		return outcome
	}
	return p.deliver(req, outcome, logger)
}

// execute runs every stage up to and including PostValidate. The status
// pinger is stopped before it returns.
func (p *Pipeline) execute(ctx context.Context, req domain.DownloadRequest, runDir string, logger *slog.Logger) domain.PipelineOutcome {
	pinger := p.startPinger(ctx, req.ChatID, logger)
	defer pinger.stop()

	// PreCheck
	probe, err := p.gateway.ProbeSizeAndDuration(ctx, req.URL)
	if err != nil {
		return p.failure(req, "precheck", err)
	}
	if probe.ExceedsDuration(p.maxDurationSeconds()) {
		logger.Warn("duration exceeds limit",
			"duration", probe.Duration,
			"limit_seconds", p.maxDurationSeconds(),
		)
		return domain.Failed(domain.ReasonTooLong, tooLongText(req, p.cfg.MaxDurationMinutes), domain.ErrTooLong)
	}
	if probe.ExceedsSize(p.cfg.MaxFileSize) {
		logger.Warn("size exceeds limit", "size", probe.Size, "limit_bytes", p.cfg.MaxFileSize)
		return domain.Failed(domain.ReasonTooLarge, tooLargeText(req, p.cfg.MaxFileSize), domain.ErrTooLarge)
	}
	logger.Info("pre-check passed", "size", probe.Size, "duration", probe.Duration)

	// MetadataFetch, MetadataFallback, NameCompose
	name, err := p.composeName(ctx, req.URL, logger)
	if err != nil {
		return p.failure(req, "metadata", err)
	}

	// Download
	finalPath := filepath.Join(runDir, name.base+".mp3")
	downloaded, err := p.download(ctx, req.URL, name.base, finalPath, logger)
	if err != nil {
		return p.failure(req, "download", err)
	}
	if !downloaded {
		return domain.Failed(domain.ReasonDownload, downloadErrorText(req), domain.ErrDownloadFailed)
	}

	// PostValidate
	if o, ok := p.validate(ctx, req, finalPath, logger); !ok {
		return o
	}

	return domain.Succeeded(finalPath, captionText(req, name.before, name.base+".mp3", name.fallbackUsed))
}

// naming is the result of the metadata stages.
type naming struct {
	base         string // file name without extension
	before       string // raw name shown in the caption
	fallbackUsed bool
}

// unsafeName matches characters that make a sanitized name unusable.
var unsafeName = regexp.MustCompile(`[=/:*?"<>|]`)

func malformed(s string) bool {
	return strings.TrimSpace(s) == "" || unsafeName.MatchString(s) || strings.Contains(s, "http")
}

func (p *Pipeline) composeName(ctx context.Context, url string, logger *slog.Logger) (naming, error) {
	meta, err := p.gateway.FetchMetadata(ctx, url)
	if err != nil {
		return naming{}, err
	}

	channel := sanitize.Sanitize(meta.Channel)
	title := sanitize.Sanitize(meta.Title)
	logger.Info("metadata",
		"raw_channel", meta.Channel,
		"raw_title", meta.Title,
		"channel", channel,
		"title", title,
	)

	before := meta.Title
	if strings.TrimSpace(before) == "" {
		before = "(unknown)"
	}
	n := naming{before: before + ".mp3"}

	if malformed(channel) || malformed(title) {
		fb := p.gateway.FetchMetadataFallback(ctx, url)
		if fb.HasTitle() {
			title = sanitize.Sanitize(fb.Title)
			channel = ""
			if strings.TrimSpace(fb.Channel) != "" {
				channel = sanitize.Sanitize(fb.Channel)
			}
			n.fallbackUsed = true
			n.before = fb.Title + ".mp3"
			logger.Info("metadata from page fallback", "raw_title", fb.Title, "raw_author", fb.Channel)
		} else {
			title = "video"
			channel = ""
		}
	}

	n.base = title
	if strings.TrimSpace(channel) != "" {
		n.base = sanitize.ComposeFileName(channel, title)
	}
	if strings.TrimSpace(n.base) == "" {
		n.base = "audio"
	}
	return n, nil
}

// download fetches the audio into a temp file, attaches cover art when it
// can, and moves the result to finalPath. It reports false on a hard
// download failure that left no file behind.
func (p *Pipeline) download(ctx context.Context, url, base, finalPath string, logger *slog.Logger) (bool, error) {
	if err := os.MkdirAll(filepath.Dir(finalPath), 0755); err != nil {
		return false, fmt.Errorf("create run dir: %w", err)
	}

	tempDir := filepath.Join(p.cfg.WorkDir, TempDirName)
	if err := os.MkdirAll(tempDir, 0755); err != nil {
		return false, fmt.Errorf("create temp dir: %w", err)
	}

	token := fmt.Sprintf("%s_%d_%s", base, time.Now().UnixMilli(), uuid.NewString()[:8])
	tempAudio := filepath.Join(tempDir, token+".mp3")
	coverAudio := filepath.Join(tempDir, token+"_cover.mp3")
	thumbBase := filepath.Join(tempDir, token)
	defer cleanupTemp(tempDir, token, logger)

	ok, err := p.gateway.DownloadAudio(ctx, url, tempAudio)
	if err != nil {
		return false, err
	}
	if !fileExists(tempAudio) {
		if !ok {
			return false, nil
		}
		logger.Warn("download reported success but produced no file", "path", tempAudio)
		return true, nil
	}

	src := tempAudio
	if thumb, found := p.gateway.FetchThumbnail(ctx, url, thumbBase); found {
		if p.gateway.EmbedCoverArt(ctx, tempAudio, thumb, coverAudio) {
			src = coverAudio
		}
	} else {
		logger.Info("no thumbnail, keeping audio without cover art")
	}

	if err := os.Rename(src, finalPath); err != nil {
		return false, fmt.Errorf("move audio: %w", err)
	}
	logger.Info("audio saved", "path", finalPath)
	return true, nil
}

// validate re-measures the downloaded file. It returns false with a failure
// outcome when the file is unusable; the file is removed in that case.
func (p *Pipeline) validate(ctx context.Context, req domain.DownloadRequest, path string, logger *slog.Logger) (domain.PipelineOutcome, bool) {
	measured := domain.MediaProbe{Size: domain.Unknown, Duration: p.gateway.ProbeFileDuration(ctx, path)}
	if measured.ExceedsDuration(p.maxDurationSeconds()) {
		logger.Warn("downloaded audio too long", "duration", measured.Duration, "limit_seconds", p.maxDurationSeconds())
		p.remove(path, logger)
		return domain.Failed(domain.ReasonTooLong, downloadedTooLongText(req, p.cfg.MaxDurationMinutes), domain.ErrTooLong), false
	}

	info, err := p.stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		logger.Error("downloaded file does not exist", "path", path)
		return domain.Failed(domain.ReasonFileMissing, fileMissingText(req), domain.ErrFileMissing), false
	case err != nil:
		p.remove(path, logger)
		return p.failure(req, "stat", err), false
	case info.Size() == 0:
		logger.Error("downloaded file is empty, video is likely blocked or restricted", "path", path)
		p.remove(path, logger)
		return domain.Failed(domain.ReasonBlocked, blockedText(req), domain.ErrBlocked), false
	case info.Size() > p.cfg.MaxFileSize:
		logger.Warn("downloaded file too large", "size", info.Size(), "limit_bytes", p.cfg.MaxFileSize)
		p.remove(path, logger)
		return domain.Failed(domain.ReasonTooLarge, downloadedTooLargeText(req, p.cfg.MaxFileSize, info.Size()), domain.ErrTooLarge), false
	}
	return domain.PipelineOutcome{}, true
}

// deliver sends the audio with its caption and removes the local copy
// unless KeepAudio is set.
func (p *Pipeline) deliver(req domain.DownloadRequest, o domain.PipelineOutcome, logger *slog.Logger) domain.PipelineOutcome {
	defer func() {
		if !p.cfg.KeepAudio {
			p.remove(o.FilePath, logger)
		}
	}()

	if err := p.sink.SendAudio(req.ChatID, o.FilePath, o.Caption); err != nil {
		logger.Error("failed to send audio", "path", o.FilePath, "error", err)
		failed := domain.Failed(domain.ReasonDelivery, unexpectedText(req), err)
		p.notifyFailure(req, failed, logger)
		return failed
	}
	logger.Info("audio sent", "path", o.FilePath)
	return o
}

// failure classifies an error returned by a stage.
func (p *Pipeline) failure(req domain.DownloadRequest, op string, err error) domain.PipelineOutcome {
	err = domain.NewPipelineError(req.URL, op, err)

	var pathErr *fs.PathError
	var linkErr *os.LinkError
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return domain.Failed(domain.ReasonInterrupted, interruptedText(req), err)
	case errors.Is(err, domain.ErrToolUnavailable):
		return domain.Failed(domain.ReasonTool, unexpectedText(req), err)
	case errors.As(err, &pathErr), errors.As(err, &linkErr):
		return domain.Failed(domain.ReasonIO, ioErrorText(req), err)
	default:
		return domain.Failed(domain.ReasonInternal, unexpectedText(req), err)
	}
}

func (p *Pipeline) notifyFailure(req domain.DownloadRequest, o domain.PipelineOutcome, logger *slog.Logger) {
	switch {
	case o.Err == nil:
	case o.Reason.Expected():
		logger.Warn("pipeline rejected", "reason", o.Reason, "error", o.Err)
	default:
		logger.Error("pipeline failed", "reason", o.Reason, "error", o.Err)
	}
	if o.Message == "" {
		return
	}
	if err := p.sink.SendText(req.ChatID, o.Message); err != nil {
		logger.Error("failed to send failure message", "error", err)
	}
}

func (p *Pipeline) maxDurationSeconds() float64 {
	return p.cfg.MaxDurationMinutes * 60
}

func (p *Pipeline) remove(path string, logger *slog.Logger) {
	if err := removeIfExists(path); err != nil {
		logger.Warn("failed to remove file", "path", path, "error", err)
	}
}

// removeRunDir deletes the run directory. With KeepAudio set only an empty
// directory is removed, so a delivered file stays in place.
func (p *Pipeline) removeRunDir(dir string, logger *slog.Logger) {
	if p.cfg.KeepAudio {
		// Fails while the kept file is still inside.
		_ = os.Remove(dir)
		return
	}
	if err := os.RemoveAll(dir); err != nil {
		logger.Warn("failed to remove run dir", "path", dir, "error", err)
	}
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// cleanupTemp removes every file in dir whose name starts with token.
func cleanupTemp(dir, token string, logger *slog.Logger) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), token) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, e.Name())); err != nil && !errors.Is(err, fs.ErrNotExist) {
			logger.Warn("failed to remove temp file", "name", e.Name(), "error", err)
		}
	}
}
