package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/telegrambots/mediabots/pkg/process"
)

// ErrFailed is returned when ffmpeg or ffprobe exits non-zero.
var ErrFailed = errors.New("ffmpeg failed")

// Processor handles audio and video processing using ffmpeg.
type Processor struct {
	runner      process.Runner
	ffmpegPath  string
	ffprobePath string
}

// NewProcessor creates a new processor for the given binaries.
func NewProcessor(runner process.Runner, ffmpegPath, ffprobePath string) *Processor {
	return &Processor{
		runner:      runner,
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
	}
}

// Duration returns the container duration of a media file in seconds.
func (p *Processor) Duration(ctx context.Context, path string) (float64, error) {
	res, err := p.runner.Run(ctx, p.ffprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	if err != nil {
		return 0, fmt.Errorf("ffprobe: %w", err)
	}
	if !res.Success() {
		return 0, fmt.Errorf("ffprobe exit %d: %w", res.ExitCode, ErrFailed)
	}

	lines := res.Lines()
	if len(lines) == 0 {
		return 0, fmt.Errorf("ffprobe: empty output: %w", ErrFailed)
	}
	dur, err := strconv.ParseFloat(strings.TrimSpace(lines[0]), 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", lines[0], err)
	}
	return dur, nil
}

// EmbedCover writes out as a copy of audio with cover attached as ID3v2 front cover.
func (p *Processor) EmbedCover(ctx context.Context, audio, cover, out string) error {
	res, err := p.runner.Run(ctx, p.ffmpegPath,
		"-i", audio,
		"-i", cover,
		"-map", "0:a",
		"-map", "1:v",
		"-c:a", "copy",
		"-c:v", "mjpeg",
		"-id3v2_version", "3",
		"-metadata:s:v", "title=Album cover",
		"-metadata:s:v", "comment=Cover (front)",
		"-disposition:v", "attached_pic",
		out,
	)
	if err != nil {
		return fmt.Errorf("embed cover: %w", err)
	}
	if !res.Success() {
		return fmt.Errorf("embed cover exit %d: %w", res.ExitCode, ErrFailed)
	}
	return nil
}

// ConvertToMP4 re-encodes in as an MP4 at 30 fps, overwriting out.
func (p *Processor) ConvertToMP4(ctx context.Context, in, out string) error {
	res, err := p.runner.Run(ctx, p.ffmpegPath, "-y", "-i", in, "-r", "30", out)
	if err != nil {
		return fmt.Errorf("convert: %w", err)
	}
	if !res.Success() {
		return fmt.Errorf("convert exit %d: %s: %w", res.ExitCode, lastLine(res.Stderr), ErrFailed)
	}
	return nil
}

// Version returns the ffmpeg version string.
func (p *Processor) Version(ctx context.Context) (string, error) {
	res, err := p.runner.Run(ctx, p.ffmpegPath, "-version")
	if err != nil {
		return "", err
	}
	if lines := res.Lines(); len(lines) > 0 {
		return strings.TrimSpace(lines[0]), nil
	}
	return "unknown", nil
}

// IsAvailable checks if both configured binaries resolve.
func (p *Processor) IsAvailable() bool {
	return process.Available(p.ffmpegPath) && process.Available(p.ffprobePath)
}

// FFmpegPath returns the configured ffmpeg binary.
func (p *Processor) FFmpegPath() string {
	return p.ffmpegPath
}

// FFprobePath returns the configured ffprobe binary.
func (p *Processor) FFprobePath() string {
	return p.ffprobePath
}

// CleanupTempFiles removes temporary files created during processing.
func CleanupTempFiles(paths ...string) {
	for _, path := range paths {
		if path != "" {
			os.Remove(path)
		}
	}
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
