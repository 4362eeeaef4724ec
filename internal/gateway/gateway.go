// Package gateway exposes the external tools used by the download pipeline
// as typed, single-attempt operations.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/telegrambots/mediabots/internal/domain"
	"github.com/telegrambots/mediabots/pkg/ffmpeg"
	"github.com/telegrambots/mediabots/pkg/process"
	"github.com/telegrambots/mediabots/pkg/ytdlp"
	"github.com/telegrambots/mediabots/pkg/ytpage"
)

// PageFetcher fetches a web page in one attempt.
type PageFetcher interface {
	FetchPage(ctx context.Context, url string) ([]byte, error)
}

// Gateway runs yt-dlp, ffmpeg and ffprobe and scrapes watch pages.
type Gateway struct {
	ytdlp   *ytdlp.Client
	ffmpeg  *ffmpeg.Processor
	fetcher PageFetcher
	logger  *slog.Logger
}

// New creates a Gateway.
func New(yt *ytdlp.Client, ff *ffmpeg.Processor, fetcher PageFetcher, logger *slog.Logger) *Gateway {
	return &Gateway{
		ytdlp:   yt,
		ffmpeg:  ff,
		fetcher: fetcher,
		logger:  logger,
	}
}

// ProbeSizeAndDuration reports the expected size and duration of url. It
// tries the audio-only probe first and falls back to the general probe when
// no positive size comes back. An error means yt-dlp could not be run.
func (g *Gateway) ProbeSizeAndDuration(ctx context.Context, url string) (domain.MediaProbe, error) {
	info, err := g.ytdlp.ProbeAudio(ctx, url)
	if err != nil {
		return domain.UnknownProbe(), toolError("probe audio", err)
	}
	if info.Size > 0 {
		g.logger.Info("audio probe", "url", url, "size", info.Size, "duration", info.Duration)
		return domain.MediaProbe{Size: info.Size, Duration: info.Duration}, nil
	}

	info, err = g.ytdlp.Probe(ctx, url)
	if err != nil {
		return domain.UnknownProbe(), toolError("probe", err)
	}
	g.logger.Info("general probe", "url", url, "size", info.Size, "duration", info.Duration)
	return domain.MediaProbe{Size: info.Size, Duration: info.Duration}, nil
}

// FetchMetadata returns the raw uploader and title printed by yt-dlp.
func (g *Gateway) FetchMetadata(ctx context.Context, url string) (domain.VideoMetadata, error) {
	uploader, title, err := g.ytdlp.Metadata(ctx, url)
	if err != nil {
		return domain.VideoMetadata{}, toolError("metadata", err)
	}
	return domain.VideoMetadata{Channel: uploader, Title: title}, nil
}

// FetchMetadataFallback scrapes the watch page. Any failure yields empty metadata.
func (g *Gateway) FetchMetadataFallback(ctx context.Context, url string) domain.VideoMetadata {
	body, err := g.fetcher.FetchPage(ctx, pageURL(url))
	if err != nil {
		g.logger.Warn("fallback page fetch failed", "url", url, "error", err)
		return domain.VideoMetadata{}
	}
	page := ytpage.Parse(body)
	return domain.VideoMetadata{Channel: page.Author, Title: page.Title}
}

// DownloadAudio downloads url as a 320 kbps MP3 to dest. Exit 0 and the
// soft failure exit both count as success.
func (g *Gateway) DownloadAudio(ctx context.Context, url, dest string) (bool, error) {
	res, err := g.ytdlp.DownloadAudio(ctx, url, dest)
	if err != nil {
		return false, toolError("download", err)
	}

	switch {
	case res.Soft():
		g.logger.Warn("yt-dlp soft failure", "url", url, "exit_code", res.ExitCode, "output", res.Output)
	case !res.OK():
		g.logger.Error("yt-dlp download failed", "url", url, "exit_code", res.ExitCode, "output", res.Output)
	}
	return res.OK(), nil
}

// FetchThumbnail writes the video thumbnail as <base>.jpg and returns its
// path. yt-dlp may name the file differently, so any JPEG in the same
// directory starting with base is accepted.
func (g *Gateway) FetchThumbnail(ctx context.Context, url, base string) (string, bool) {
	if _, err := g.ytdlp.WriteThumbnail(ctx, url, base); err != nil {
		g.logger.Warn("thumbnail download failed", "url", url, "error", err)
		return "", false
	}

	exact := base + ".jpg"
	if fileExists(exact) {
		return exact, true
	}

	matches, _ := filepath.Glob(globEscape(base) + "*.jpg")
	for _, m := range matches {
		if fileExists(m) {
			g.logger.Debug("found alternative thumbnail", "path", m)
			return m, true
		}
	}
	return "", false
}

// EmbedCoverArt writes out with thumb attached as cover art.
func (g *Gateway) EmbedCoverArt(ctx context.Context, audio, thumb, out string) bool {
	if err := g.ffmpeg.EmbedCover(ctx, audio, thumb, out); err != nil {
		g.logger.Warn("embed cover art failed", "audio", audio, "error", err)
		return false
	}
	return fileExists(out)
}

// ProbeFileDuration returns the duration of a local file, or domain.Unknown.
func (g *Gateway) ProbeFileDuration(ctx context.Context, path string) float64 {
	dur, err := g.ffmpeg.Duration(ctx, path)
	if err != nil {
		g.logger.Warn("ffprobe duration failed", "path", path, "error", err)
		return domain.Unknown
	}
	return dur
}

func toolError(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	if errors.Is(err, process.ErrNotStarted) {
		return fmt.Errorf("%s: %w: %v", op, domain.ErrToolUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// pageURL makes sure the watch page is requested over https.
func pageURL(url string) string {
	if strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://") {
		return url
	}
	return "https://" + url
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// globEscape quotes glob metacharacters in a literal path prefix.
func globEscape(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', '\\':
			b.WriteRune('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
