package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/telegrambots/mediabots/internal/api"
	"github.com/telegrambots/mediabots/internal/api/handler"
	"github.com/telegrambots/mediabots/internal/bot"
	"github.com/telegrambots/mediabots/internal/config"
	"github.com/telegrambots/mediabots/internal/dispatch"
	"github.com/telegrambots/mediabots/internal/downloader"
	"github.com/telegrambots/mediabots/internal/gateway"
	"github.com/telegrambots/mediabots/internal/notify"
	"github.com/telegrambots/mediabots/internal/pipeline"
	"github.com/telegrambots/mediabots/internal/repository"
	"github.com/telegrambots/mediabots/internal/worker"
	"github.com/telegrambots/mediabots/pkg/ffmpeg"
	"github.com/telegrambots/mediabots/pkg/process"
	"github.com/telegrambots/mediabots/pkg/ytdlp"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

const shutdownTimeout = 30 * time.Second

func main() {
	configPath := flag.String("config", "", "Path to config file")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("ytmp3-bot %s (built %s)\n", Version, BuildTime)
		os.Exit(0)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	logger.Info("starting ytmp3-bot",
		"version", Version,
		"build_time", BuildTime,
	)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	if err := os.MkdirAll(cfg.Storage.WorkDir, 0755); err != nil {
		logger.Error("failed to create work directory", "error", err)
		os.Exit(1)
	}

	botAPI, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		logger.Error("failed to connect to telegram", "error", err)
		os.Exit(1)
	}
	botAPI.Debug = cfg.Telegram.Debug
	logger.Info("authorized", "username", botAPI.Self.UserName)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// External tools
	runner := process.NewExecRunner()
	yt := ytdlp.NewClient(runner, cfg.Tools.YtDlpPath, cfg.Tools.FFmpegPath, cfg.Limits.MaxFileSize)
	ff := ffmpeg.NewProcessor(runner, cfg.Tools.FFmpegPath, cfg.Tools.FFprobePath)
	logToolVersions(ctx, logger, yt, ff)

	// Core services
	sink := notify.NewTelegramSink(botAPI, logger)
	gw := gateway.New(yt, ff, downloader.NewHTTPDownloader(cfg.Fetch, logger), logger)
	runs := repository.NewInMemoryRunRepository(0)
	pool := worker.NewPool(worker.Config{
		BatchSize: cfg.Limits.MaxParallelDownloads,
		MaxRuns:   cfg.Limits.MaxConcurrentRuns,
	}, logger)

	pipe := pipeline.New(gw, sink, runs, pipeline.Config{
		WorkDir:            cfg.Storage.WorkDir,
		MaxFileSize:        cfg.Limits.MaxFileSize,
		MaxDurationMinutes: cfg.Limits.MaxDurationMinutes,
		StatusInterval:     cfg.Telegram.StatusInterval,
		KeepAudio:          cfg.Storage.KeepAudio,
	}, logger)
	orchestrator := bot.NewOrchestrator(pipe, pool, sink, logger)

	// Admin server
	var srv *http.Server
	if cfg.Admin.Enabled {
		tools := []string{cfg.Tools.YtDlpPath, cfg.Tools.FFmpegPath, cfg.Tools.FFprobePath}
		healthHandler := handler.NewHealthHandler(runs, pool, tools, cfg.Storage.WorkDir, logger)
		srv = &http.Server{
			Addr:              cfg.Admin.Address(),
			Handler:           api.NewRouter(healthHandler, cfg.Admin.APIKey, logger),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			logger.Info("starting admin server", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("admin server error", "error", err)
			}
		}()
	}

	d := dispatch.New(botAPI, orchestrator, pool, cfg.Telegram.PollTimeout, logger)
	if err := d.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("dispatcher stopped", "error", err)
	}

	logger.Info("shutting down")

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("admin server shutdown error", "error", err)
		}
		cancel()
	}

	// In-flight pipelines see a canceled context and report themselves
	// interrupted before Stop returns.
	if err := pool.Stop(shutdownTimeout); err != nil {
		logger.Error("worker pool shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
}

func logToolVersions(ctx context.Context, logger *slog.Logger, yt *ytdlp.Client, ff *ffmpeg.Processor) {
	if v, err := yt.Version(ctx); err != nil {
		logger.Warn("yt-dlp not available", "path", yt.Path(), "error", err)
	} else {
		logger.Info("yt-dlp found", "version", v)
	}
	if v, err := ff.Version(ctx); err != nil {
		logger.Warn("ffmpeg not available", "path", ff.FFmpegPath(), "error", err)
	} else {
		logger.Info("ffmpeg found", "version", v)
	}
}
