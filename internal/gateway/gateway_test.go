package gateway

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/telegrambots/mediabots/internal/domain"
	"github.com/telegrambots/mediabots/pkg/ffmpeg"
	"github.com/telegrambots/mediabots/pkg/process"
	"github.com/telegrambots/mediabots/pkg/ytdlp"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeRunner struct {
	mu    sync.Mutex
	calls [][]string
	fn    func(name string, args []string) (process.Result, error)
}

func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) (process.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, append([]string{name}, args...))
	f.mu.Unlock()
	return f.fn(name, args)
}

func (f *fakeRunner) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeFetcher struct {
	body []byte
	err  error
	url  string
}

func (f *fakeFetcher) FetchPage(ctx context.Context, url string) ([]byte, error) {
	f.url = url
	return f.body, f.err
}

func hasArg(args []string, want string) bool {
	for _, a := range args {
		if a == want {
			return true
		}
	}
	return false
}

func argAfter(args []string, flag string) string {
	for i, a := range args {
		if a == flag && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

func newGateway(runner process.Runner, fetcher PageFetcher) *Gateway {
	return New(
		ytdlp.NewClient(runner, "yt-dlp", "ffmpeg", 50*1024*1024),
		ffmpeg.NewProcessor(runner, "ffmpeg", "ffprobe"),
		fetcher,
		testLogger(),
	)
}

func TestGateway_ProbeSizeAndDuration(t *testing.T) {
	tests := []struct {
		name      string
		audio     process.Result
		general   process.Result
		want      domain.MediaProbe
		wantCalls int
	}{
		{
			name:      "audio probe has size",
			audio:     process.Result{Stdout: `{"filesize": 4000000, "duration": 200}`},
			want:      domain.MediaProbe{Size: 4000000, Duration: 200},
			wantCalls: 1,
		},
		{
			name:      "falls back to approx size",
			audio:     process.Result{Stdout: `{"filesize": null, "duration": 200}`},
			general:   process.Result{Stdout: `{"filesize": null, "filesize_approx": 9000000, "duration": 200}`},
			want:      domain.MediaProbe{Size: 9000000, Duration: 200},
			wantCalls: 2,
		},
		{
			name:      "both probes fail",
			audio:     process.Result{ExitCode: 1},
			general:   process.Result{ExitCode: 1},
			want:      domain.UnknownProbe(),
			wantCalls: 2,
		},
		{
			name:      "malformed json",
			audio:     process.Result{Stdout: "not json"},
			general:   process.Result{Stdout: `{"duration": `},
			want:      domain.UnknownProbe(),
			wantCalls: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &fakeRunner{fn: func(name string, args []string) (process.Result, error) {
				if hasArg(args, "--format") {
					return tt.audio, nil
				}
				return tt.general, nil
			}}
			g := newGateway(runner, &fakeFetcher{})

			got, err := g.ProbeSizeAndDuration(context.Background(), "https://youtu.be/dQw4w9WgXcQ")
			if err != nil {
				t.Fatalf("ProbeSizeAndDuration failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("probe = %+v, want %+v", got, tt.want)
			}
			if runner.callCount() != tt.wantCalls {
				t.Errorf("calls = %d, want %d", runner.callCount(), tt.wantCalls)
			}
		})
	}
}

func TestGateway_ProbeToolUnavailable(t *testing.T) {
	runner := &fakeRunner{fn: func(name string, args []string) (process.Result, error) {
		return process.Result{ExitCode: -1}, process.ErrNotStarted
	}}
	g := newGateway(runner, &fakeFetcher{})

	_, err := g.ProbeSizeAndDuration(context.Background(), "u")
	if !errors.Is(err, domain.ErrToolUnavailable) {
		t.Errorf("err = %v, want ErrToolUnavailable", err)
	}
}

func TestGateway_ProbeCanceled(t *testing.T) {
	runner := &fakeRunner{fn: func(name string, args []string) (process.Result, error) {
		return process.Result{ExitCode: -1}, context.Canceled
	}}
	g := newGateway(runner, &fakeFetcher{})

	_, err := g.ProbeSizeAndDuration(context.Background(), "u")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestGateway_FetchMetadata(t *testing.T) {
	runner := &fakeRunner{fn: func(name string, args []string) (process.Result, error) {
		return process.Result{Stdout: "WARNING: x\nZillaKami\nLEMON JUICE\n"}, nil
	}}
	g := newGateway(runner, &fakeFetcher{})

	meta, err := g.FetchMetadata(context.Background(), "u")
	if err != nil {
		t.Fatalf("FetchMetadata failed: %v", err)
	}
	if meta.Channel != "ZillaKami" || meta.Title != "LEMON JUICE" {
		t.Errorf("meta = %+v", meta)
	}
}

func TestGateway_FetchMetadataFallback(t *testing.T) {
	tests := []struct {
		name       string
		fetcher    *fakeFetcher
		url        string
		wantTitle  string
		wantAuthor string
		wantURL    string
	}{
		{
			name:       "page parsed",
			fetcher:    &fakeFetcher{body: []byte(`<title>Song - YouTube</title><script>{"author":"Artist"}</script>`)},
			url:        "https://youtu.be/dQw4w9WgXcQ",
			wantTitle:  "Song",
			wantAuthor: "Artist",
			wantURL:    "https://youtu.be/dQw4w9WgXcQ",
		},
		{
			name:    "scheme added",
			fetcher: &fakeFetcher{body: []byte(``)},
			url:     "youtu.be/dQw4w9WgXcQ",
			wantURL: "https://youtu.be/dQw4w9WgXcQ",
		},
		{
			name:    "fetch error",
			fetcher: &fakeFetcher{err: errors.New("connection refused")},
			url:     "https://youtu.be/dQw4w9WgXcQ",
			wantURL: "https://youtu.be/dQw4w9WgXcQ",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newGateway(&fakeRunner{}, tt.fetcher)

			meta := g.FetchMetadataFallback(context.Background(), tt.url)
			if meta.Title != tt.wantTitle || meta.Channel != tt.wantAuthor {
				t.Errorf("meta = %+v, want title %q author %q", meta, tt.wantTitle, tt.wantAuthor)
			}
			if tt.fetcher.url != tt.wantURL {
				t.Errorf("fetched %q, want %q", tt.fetcher.url, tt.wantURL)
			}
		})
	}
}

func TestGateway_DownloadAudio(t *testing.T) {
	tests := []struct {
		name string
		code int
		want bool
	}{
		{"success", 0, true},
		{"soft failure continues", ytdlp.SoftFailureExitCode, true},
		{"hard failure", 1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &fakeRunner{fn: func(name string, args []string) (process.Result, error) {
				return process.Result{ExitCode: tt.code}, nil
			}}
			g := newGateway(runner, &fakeFetcher{})

			ok, err := g.DownloadAudio(context.Background(), "u", "/tmp/x.mp3")
			if err != nil {
				t.Fatalf("DownloadAudio failed: %v", err)
			}
			if ok != tt.want {
				t.Errorf("DownloadAudio() = %v, want %v", ok, tt.want)
			}
		})
	}
}

func TestGateway_FetchThumbnail(t *testing.T) {
	tests := []struct {
		name     string
		suffix   string
		wantOK   bool
		wantName string
	}{
		{"exact name", ".jpg", true, "clip_1.jpg"},
		{"alternative name", ".webp.jpg", true, "clip_1.webp.jpg"},
		{"nothing written", "", false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			base := filepath.Join(dir, "clip_1")

			runner := &fakeRunner{fn: func(name string, args []string) (process.Result, error) {
				if tt.suffix != "" {
					os.WriteFile(argAfter(args, "--output")+tt.suffix, []byte("jpeg"), 0644)
				}
				return process.Result{}, nil
			}}
			g := newGateway(runner, &fakeFetcher{})

			path, ok := g.FetchThumbnail(context.Background(), "u", base)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if tt.wantOK && filepath.Base(path) != tt.wantName {
				t.Errorf("path = %q, want %q", path, tt.wantName)
			}
		})
	}
}

func TestGateway_EmbedCoverArt(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out.mp3")

	runner := &fakeRunner{fn: func(name string, args []string) (process.Result, error) {
		os.WriteFile(args[len(args)-1], []byte("mp3"), 0644)
		return process.Result{}, nil
	}}
	g := newGateway(runner, &fakeFetcher{})

	if !g.EmbedCoverArt(context.Background(), "a.mp3", "c.jpg", out) {
		t.Error("EmbedCoverArt should succeed when ffmpeg writes the output")
	}

	failing := newGateway(&fakeRunner{fn: func(name string, args []string) (process.Result, error) {
		return process.Result{ExitCode: 1}, nil
	}}, &fakeFetcher{})
	if failing.EmbedCoverArt(context.Background(), "a.mp3", "c.jpg", filepath.Join(dir, "other.mp3")) {
		t.Error("EmbedCoverArt should fail on non-zero exit")
	}
}

func TestGateway_ProbeFileDuration(t *testing.T) {
	runner := &fakeRunner{fn: func(name string, args []string) (process.Result, error) {
		if name != "ffprobe" {
			t.Errorf("ran %q, want ffprobe", name)
		}
		return process.Result{Stdout: "180.5\n"}, nil
	}}
	g := newGateway(runner, &fakeFetcher{})

	if got := g.ProbeFileDuration(context.Background(), "a.mp3"); got != 180.5 {
		t.Errorf("ProbeFileDuration() = %v, want 180.5", got)
	}

	failing := newGateway(&fakeRunner{fn: func(name string, args []string) (process.Result, error) {
		return process.Result{ExitCode: 1}, nil
	}}, &fakeFetcher{})
	if got := failing.ProbeFileDuration(context.Background(), "a.mp3"); got != domain.Unknown {
		t.Errorf("ProbeFileDuration() = %v, want Unknown", got)
	}
}
