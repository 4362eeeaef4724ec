package bot

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/telegrambots/mediabots/internal/domain"
	"github.com/telegrambots/mediabots/internal/worker"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type mockPipeline struct {
	mu       sync.Mutex
	requests []domain.DownloadRequest
	running  int
	peak     int

	delay    time.Duration
	outcomes map[string]domain.PipelineOutcome
	panicOn  string
}

func (m *mockPipeline) Run(ctx context.Context, req domain.DownloadRequest) domain.PipelineOutcome {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.running++
	if m.running > m.peak {
		m.peak = m.running
	}
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.running--
		m.mu.Unlock()
	}()

	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	if req.URL == m.panicOn {
		panic("pipeline exploded")
	}
	if o, ok := m.outcomes[req.URL]; ok {
		return o
	}
	return domain.Succeeded("x.mp3", "caption")
}

func (m *mockPipeline) urls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.requests))
	for i, r := range m.requests {
		out[i] = r.URL
	}
	return out
}

type mockSink struct {
	mu      sync.Mutex
	texts   []string
	actions []string
}

func (s *mockSink) SendText(chatID int64, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.texts = append(s.texts, text)
	return nil
}

func (s *mockSink) SendAudio(chatID int64, path, caption string) error    { return nil }
func (s *mockSink) SendDocument(chatID int64, path, caption string) error { return nil }

func (s *mockSink) SendChatAction(chatID int64, action string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actions = append(s.actions, action)
	return nil
}

func (s *mockSink) allTexts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.texts...)
}

func newOrchestrator(p *mockPipeline, batchSize int) (*Orchestrator, *worker.Pool, *mockSink) {
	return newCappedOrchestrator(p, batchSize, 0)
}

func newCappedOrchestrator(p *mockPipeline, batchSize, maxRuns int) (*Orchestrator, *worker.Pool, *mockSink) {
	pool := worker.NewPool(worker.Config{BatchSize: batchSize, MaxRuns: maxRuns}, testLogger())
	sink := &mockSink{}
	return NewOrchestrator(p, pool, sink, testLogger()), pool, sink
}

func wait(t *testing.T, pool *worker.Pool) {
	t.Helper()
	if err := pool.Stop(5 * time.Second); err != nil {
		t.Fatalf("pool did not drain: %v", err)
	}
}

func TestOrchestrator_SingleLink(t *testing.T) {
	p := &mockPipeline{}
	o, pool, sink := newOrchestrator(p, 3)

	if !o.Handle(42, "https://youtu.be/dQw4w9WgXcQ") {
		t.Fatal("Handle should return true for a single link")
	}
	wait(t, pool)

	if got := p.urls(); len(got) != 1 || got[0] != "https://youtu.be/dQw4w9WgXcQ" {
		t.Errorf("pipelines = %v", got)
	}
	if p.requests[0].Index != 1 || p.requests[0].Total != 1 {
		t.Errorf("position = %s, want (1/1)", p.requests[0].Position())
	}

	texts := sink.allTexts()
	if len(texts) != 1 || texts[0] != acceptedText {
		t.Errorf("texts = %v, want only the accepted reply", texts)
	}
	if len(sink.actions) == 0 {
		t.Error("an upload chat action should be sent")
	}
}

func TestOrchestrator_DuplicateLinksRunOnce(t *testing.T) {
	p := &mockPipeline{}
	o, pool, sink := newOrchestrator(p, 3)

	o.Handle(42, "https://youtu.be/dQw4w9WgXcQ https://youtu.be/dQw4w9WgXcQ")
	wait(t, pool)

	if got := p.urls(); len(got) != 1 {
		t.Errorf("pipelines = %v, want exactly one", got)
	}
	for _, text := range sink.allTexts() {
		if strings.Contains(text, "SUMMARY") {
			t.Error("a deduplicated single link should not produce a batch summary")
		}
	}
}

func TestOrchestrator_LooseSingleLink(t *testing.T) {
	p := &mockPipeline{}
	o, pool, _ := newOrchestrator(p, 3)

	if !o.Handle(42, "  youtu.be/dQw4w9WgXcQ  ") {
		t.Fatal("Handle should accept a link without a scheme")
	}
	wait(t, pool)

	if got := p.urls(); len(got) != 1 || got[0] != "https://youtu.be/dQw4w9WgXcQ" {
		t.Errorf("pipelines = %v", got)
	}
}

func TestOrchestrator_InvalidText(t *testing.T) {
	tests := []string{
		"hello there",
		"",
		"https://vimeo.com/123456",
		"https://youtu.be/short",
	}

	for _, text := range tests {
		t.Run(text, func(t *testing.T) {
			p := &mockPipeline{}
			o, pool, sink := newOrchestrator(p, 3)

			if o.Handle(42, text) {
				t.Error("Handle should return false")
			}
			wait(t, pool)

			if len(p.urls()) != 0 {
				t.Error("no pipeline should run")
			}
			if texts := sink.allTexts(); len(texts) != 1 || texts[0] != invalidText {
				t.Errorf("texts = %v", texts)
			}
		})
	}
}

func TestOrchestrator_Batch(t *testing.T) {
	p := &mockPipeline{}
	o, pool, sink := newOrchestrator(p, 3)

	text := "first https://youtu.be/aaaaaaaaaaa then https://www.youtube.com/watch?v=bbbbbbbbbbb"
	if !o.Handle(42, text) {
		t.Fatal("Handle should return true for a batch")
	}
	wait(t, pool)

	if got := p.urls(); len(got) != 2 {
		t.Fatalf("pipelines = %v, want 2", got)
	}

	texts := sink.allTexts()
	if len(texts) != 2 {
		t.Fatalf("texts = %v, want estimate and summary", texts)
	}
	if !strings.HasPrefix(texts[0], "🤯 Detected 2 YouTube links! Up to 3 will be processed in parallel.") {
		t.Errorf("estimate = %q", texts[0])
	}
	if !strings.Contains(texts[0], "Approximate export time: 60 seconds (1 min)") {
		t.Errorf("estimate = %q", texts[0])
	}
	if !strings.Contains(texts[1], "[SUCCESS ✅] Processed: 2\n[ERROR ☢️☣️] Failed: 0\n") {
		t.Errorf("summary = %q", texts[1])
	}
	if strings.Contains(texts[1], "Failed URLs") {
		t.Error("summary should not list failures when there are none")
	}
}

func TestOrchestrator_BatchPositions(t *testing.T) {
	p := &mockPipeline{}
	o, pool, _ := newOrchestrator(p, 1)

	o.Handle(42, "https://youtu.be/aaaaaaaaaaa https://youtu.be/bbbbbbbbbbb https://youtu.be/ccccccccccc")
	wait(t, pool)

	for i, req := range p.requests {
		if req.Index != i+1 || req.Total != 3 {
			t.Errorf("request %d position = %s", i, req.Position())
		}
	}
	want := []string{"https://youtu.be/aaaaaaaaaaa", "https://youtu.be/bbbbbbbbbbb", "https://youtu.be/ccccccccccc"}
	got := p.urls()
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("order = %v, want %v", got, want)
			break
		}
	}
}

func TestOrchestrator_BatchBoundsParallelism(t *testing.T) {
	p := &mockPipeline{delay: 10 * time.Millisecond}
	o, pool, _ := newOrchestrator(p, 2)

	var links []string
	for _, c := range "abcdefg" {
		links = append(links, "https://youtu.be/"+strings.Repeat(string(c), 11))
	}
	o.Handle(42, strings.Join(links, "\n"))
	wait(t, pool)

	if len(p.urls()) != 7 {
		t.Fatalf("pipelines = %d, want 7", len(p.urls()))
	}
	if p.peak > 2 {
		t.Errorf("peak parallel pipelines = %d, want <= 2", p.peak)
	}
}

func TestOrchestrator_CapsRunsAcrossMessages(t *testing.T) {
	p := &mockPipeline{delay: 10 * time.Millisecond}
	o, pool, _ := newCappedOrchestrator(p, 3, 2)

	for _, c := range "abcde" {
		o.Handle(int64(c), "https://youtu.be/"+strings.Repeat(string(c), 11))
	}
	o.Handle(99, "https://youtu.be/fffffffffff https://youtu.be/ggggggggggg https://youtu.be/hhhhhhhhhhh")
	wait(t, pool)

	if len(p.urls()) != 8 {
		t.Fatalf("pipelines = %d, want 8", len(p.urls()))
	}
	if p.peak > 2 {
		t.Errorf("peak parallel pipelines = %d, want <= 2", p.peak)
	}
}

func TestOrchestrator_RunNotStartedWhenCanceled(t *testing.T) {
	p := &mockPipeline{}
	o, pool, sink := newOrchestrator(p, 3)
	defer wait(t, pool)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := domain.DownloadRequest{URL: "https://youtu.be/dQw4w9WgXcQ", ChatID: 42, Index: 1, Total: 1}

	outcome := o.runPipeline(ctx, req)

	if outcome.Success || outcome.Reason != domain.ReasonInterrupted {
		t.Errorf("outcome = %+v, want interrupted", outcome)
	}
	if !errors.Is(outcome.Err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", outcome.Err)
	}
	if len(p.urls()) != 0 {
		t.Error("pipeline should not run without a slot")
	}
	if texts := sink.allTexts(); len(texts) != 1 || texts[0] != notStartedText(req) {
		t.Errorf("texts = %v", texts)
	}
}

func TestOrchestrator_BatchFailures(t *testing.T) {
	p := &mockPipeline{
		outcomes: map[string]domain.PipelineOutcome{
			"https://youtu.be/bbbbbbbbbbb": domain.Failed(domain.ReasonTooLong, "too long", domain.ErrTooLong),
			"https://youtu.be/ccccccccccc": domain.Failed(domain.ReasonTool, "error", errors.New("exit status 2")),
		},
		panicOn: "https://youtu.be/ddddddddddd",
	}
	o, pool, sink := newOrchestrator(p, 2)

	o.Handle(42, "https://youtu.be/aaaaaaaaaaa https://youtu.be/bbbbbbbbbbb https://youtu.be/ccccccccccc https://youtu.be/ddddddddddd")
	wait(t, pool)

	if len(p.urls()) != 4 {
		t.Fatalf("pipelines = %d, want 4", len(p.urls()))
	}

	texts := sink.allTexts()
	summary := texts[len(texts)-1]
	for _, want := range []string{
		"Processed: 1\n",
		"Failed: 3\n",
		"\nFailed URLs:\n",
		"https://youtu.be/bbbbbbbbbbb\n",
		"https://youtu.be/ccccccccccc (tool_error: exit status 2)\n",
		"https://youtu.be/ddddddddddd (internal: panic: pipeline exploded)\n",
	} {
		if !strings.Contains(summary, want) {
			t.Errorf("summary missing %q:\n%s", want, summary)
		}
	}
}

func TestOrchestrator_HandleMessage(t *testing.T) {
	p := &mockPipeline{}
	o, pool, sink := newOrchestrator(p, 3)

	start := &tgbotapi.Message{
		Text:     "/start",
		Chat:     &tgbotapi.Chat{ID: 42},
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: 6}},
	}
	o.HandleMessage(context.Background(), start)

	link := &tgbotapi.Message{Text: "https://youtu.be/dQw4w9WgXcQ", Chat: &tgbotapi.Chat{ID: 42}}
	o.HandleMessage(context.Background(), link)

	empty := &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 42}}
	o.HandleMessage(context.Background(), empty)
	wait(t, pool)

	texts := sink.allTexts()
	if len(texts) != 2 || texts[0] != welcomeText || texts[1] != acceptedText {
		t.Errorf("texts = %v", texts)
	}
	if len(p.urls()) != 1 {
		t.Errorf("pipelines = %d, want 1", len(p.urls()))
	}
}

func TestOrchestrator_StoppedPool(t *testing.T) {
	p := &mockPipeline{}
	o, pool, _ := newOrchestrator(p, 3)
	wait(t, pool)

	if !o.Handle(42, "https://youtu.be/dQw4w9WgXcQ") {
		t.Error("Handle should still report the link as handled")
	}
	if len(p.urls()) != 0 {
		t.Error("no pipeline should start after the pool stopped")
	}
}

func TestEstimateSeconds(t *testing.T) {
	tests := []struct {
		n, parallel, want int
	}{
		{2, 3, 60},
		{3, 3, 60},
		{4, 3, 120},
		{7, 2, 240},
		{5, 1, 300},
		{5, 0, 300},
	}

	for _, tt := range tests {
		if got := EstimateSeconds(tt.n, tt.parallel); got != tt.want {
			t.Errorf("EstimateSeconds(%d, %d) = %d, want %d", tt.n, tt.parallel, got, tt.want)
		}
	}
}

func TestSummaryText_Elapsed(t *testing.T) {
	start := time.Unix(1000, 0)
	s := domain.NewBatchSummary(1, start)
	s.Record("u", domain.Succeeded("a", "b"))
	s.Finish(start.Add(125 * time.Second))

	text := summaryText(s)
	if !strings.Contains(text, "⏱️ Export time: 125 seconds (2 min)\n") {
		t.Errorf("summary = %q", text)
	}
	if !strings.HasPrefix(text, "🎉 [SUMMARY] Batch complete!\n") {
		t.Errorf("summary = %q", text)
	}
}
