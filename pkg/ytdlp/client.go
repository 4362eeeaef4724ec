// Package ytdlp wraps the yt-dlp command line.
package ytdlp

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/telegrambots/mediabots/pkg/process"
)

// SoftFailureExitCode is what yt-dlp exits with when it stops early, for
// example on --max-downloads or blocked content, while still leaving a file
// behind. Observed on the yt-dlp versions this bot runs against; other
// versions may differ.
const SoftFailureExitCode = 101

// AudioFormat is the format selector used for probing and downloading.
const AudioFormat = "bestaudio[ext=webm]/bestaudio/best"

const unknown = -1

// Info holds the size and duration reported by --dump-json.
type Info struct {
	Size     int64   // bytes, -1 if unknown
	Duration float64 // seconds, -1 if unknown
}

// DownloadResult is the outcome of a download invocation.
type DownloadResult struct {
	ExitCode int
	Output   string
}

// OK reports whether the exit code counts as success.
func (r DownloadResult) OK() bool {
	return r.ExitCode == 0 || r.ExitCode == SoftFailureExitCode
}

// Soft reports whether yt-dlp exited with the soft failure code.
func (r DownloadResult) Soft() bool {
	return r.ExitCode == SoftFailureExitCode
}

// Client runs yt-dlp.
type Client struct {
	runner      process.Runner
	path        string
	ffmpegDir   string
	maxFileSize int64
}

// NewClient creates a yt-dlp client. When ffmpegPath has a directory
// component it is passed along as --ffmpeg-location.
func NewClient(runner process.Runner, path, ffmpegPath string, maxFileSize int64) *Client {
	dir := filepath.Dir(ffmpegPath)
	if dir == "." {
		dir = ""
	}
	return &Client{
		runner:      runner,
		path:        path,
		ffmpegDir:   dir,
		maxFileSize: maxFileSize,
	}
}

// Path returns the yt-dlp binary path.
func (c *Client) Path() string {
	return c.path
}

// ProbeAudio dumps the metadata of the best audio format. Only the exact
// filesize is used; a missing size yields unknown for both fields.
func (c *Client) ProbeAudio(ctx context.Context, url string) (Info, error) {
	res, err := c.runner.Run(ctx, c.path,
		"--dump-json",
		"--no-download",
		"--format", AudioFormat,
		"--extract-audio",
		"--audio-format", "mp3",
		url,
	)
	if err != nil {
		return unknownInfo(), err
	}
	if !res.Success() {
		return unknownInfo(), nil
	}

	info := parseInfo(res.Stdout, false)
	if info.Size <= 0 {
		return unknownInfo(), nil
	}
	return info, nil
}

// Probe dumps the metadata of the default format, using filesize and then
// filesize_approx.
func (c *Client) Probe(ctx context.Context, url string) (Info, error) {
	res, err := c.runner.Run(ctx, c.path, "--dump-json", "--no-download", url)
	if err != nil {
		return unknownInfo(), err
	}
	if !res.Success() {
		return unknownInfo(), nil
	}
	return parseInfo(res.Stdout, true), nil
}

// Metadata prints the uploader and title. Lines that are blank or start with
// WARNING are skipped. A failed run yields empty strings.
func (c *Client) Metadata(ctx context.Context, url string) (uploader, title string, err error) {
	res, err := c.runner.Run(ctx, c.path, "--print", "uploader", "--print", "title", url)
	if err != nil {
		return "", "", err
	}
	if !res.Success() {
		return "", "", nil
	}

	var values []string
	for _, line := range res.Lines() {
		if strings.HasPrefix(line, "WARNING") {
			continue
		}
		values = append(values, strings.TrimSpace(line))
		if len(values) == 2 {
			break
		}
	}
	if len(values) > 0 {
		uploader = values[0]
	}
	if len(values) > 1 {
		title = values[1]
	}
	return uploader, title, nil
}

// DownloadArgs returns the arguments used to download url as a 320 kbps MP3 into dest.
func (c *Client) DownloadArgs(url, dest string) []string {
	var args []string
	if c.ffmpegDir != "" {
		args = append(args, "--ffmpeg-location", c.ffmpegDir)
	}
	return append(args,
		"--force-overwrites",
		"-f", AudioFormat,
		"--extract-audio",
		"--audio-format", "mp3",
		"--audio-quality", "320K",
		"--postprocessor-args", "-b:a 320k",
		"--max-filesize", strconv.FormatInt(c.maxFileSize, 10),
		"--no-playlist",
		"--max-downloads", "1",
		"--output", dest,
		url,
	)
}

// DownloadAudio downloads url as MP3 into dest.
func (c *Client) DownloadAudio(ctx context.Context, url, dest string) (DownloadResult, error) {
	res, err := c.runner.Run(ctx, c.path, c.DownloadArgs(url, dest)...)
	return DownloadResult{ExitCode: res.ExitCode, Output: res.Output()}, err
}

// WriteThumbnail writes the video thumbnail as JPEG next to outputBase.
// yt-dlp appends the extension itself.
func (c *Client) WriteThumbnail(ctx context.Context, url, outputBase string) (bool, error) {
	res, err := c.runner.Run(ctx, c.path,
		"--skip-download",
		"--write-thumbnail",
		"--convert-thumbnails", "jpg",
		"--output", outputBase,
		url,
	)
	if err != nil {
		return false, err
	}
	return res.Success(), nil
}

// Version returns the yt-dlp version string.
func (c *Client) Version(ctx context.Context) (string, error) {
	res, err := c.runner.Run(ctx, c.path, "--version")
	if err != nil {
		return "", err
	}
	if lines := res.Lines(); len(lines) > 0 {
		return strings.TrimSpace(lines[0]), nil
	}
	return "unknown", nil
}

func unknownInfo() Info {
	return Info{Size: unknown, Duration: unknown}
}

type dumpJSON struct {
	Filesize       *float64 `json:"filesize"`
	FilesizeApprox *float64 `json:"filesize_approx"`
	Duration       *float64 `json:"duration"`
}

// parseInfo reads the first JSON object line of a --dump-json output.
func parseInfo(stdout string, allowApprox bool) Info {
	info := unknownInfo()

	var line string
	for _, l := range strings.Split(stdout, "\n") {
		if l = strings.TrimSpace(l); strings.HasPrefix(l, "{") {
			line = l
			break
		}
	}
	if line == "" {
		return info
	}

	var parsed dumpJSON
	if err := json.Unmarshal([]byte(line), &parsed); err != nil {
		return info
	}

	switch {
	case parsed.Filesize != nil && *parsed.Filesize >= 0:
		info.Size = int64(*parsed.Filesize)
	case allowApprox && parsed.FilesizeApprox != nil && *parsed.FilesizeApprox >= 0:
		info.Size = int64(*parsed.FilesizeApprox)
	}
	if parsed.Duration != nil && *parsed.Duration >= 0 {
		info.Duration = *parsed.Duration
	}
	return info
}
