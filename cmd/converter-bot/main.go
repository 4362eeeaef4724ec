package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/telegrambots/mediabots/internal/config"
	"github.com/telegrambots/mediabots/internal/converter"
	"github.com/telegrambots/mediabots/internal/dispatch"
	"github.com/telegrambots/mediabots/internal/downloader"
	"github.com/telegrambots/mediabots/internal/notify"
	"github.com/telegrambots/mediabots/internal/worker"
	"github.com/telegrambots/mediabots/pkg/ffmpeg"
	"github.com/telegrambots/mediabots/pkg/process"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	configPath := flag.String("config", "", "Path to config file")
	textsPath := flag.String("texts", "", "Path to a JSON file of reply variants (default: built-in)")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("converter-bot %s (built %s)\n", Version, BuildTime)
		os.Exit(0)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	logger.Info("starting converter-bot",
		"version", Version,
		"build_time", BuildTime,
	)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	texts := converter.DefaultTexts()
	if *textsPath != "" {
		data, err := os.ReadFile(*textsPath)
		if err != nil {
			logger.Error("failed to read texts", "path", *textsPath, "error", err)
			os.Exit(1)
		}
		if texts, err = converter.ParseTexts(data); err != nil {
			logger.Error("failed to parse texts", "path", *textsPath, "error", err)
			os.Exit(1)
		}
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

	ff := ffmpeg.NewProcessor(process.NewExecRunner(), cfg.Tools.FFmpegPath, cfg.Tools.FFprobePath)
	if !ff.IsAvailable() {
		logger.Warn("ffmpeg not found", "path", ff.FFmpegPath())
	}

	h := converter.NewHandler(
		botAPI,
		downloader.NewHTTPDownloader(cfg.Fetch, logger),
		ff,
		notify.NewTelegramSink(botAPI, logger),
		texts,
		cfg.Storage.WorkDir,
		logger,
	)
	pool := worker.NewPool(worker.Config{}, logger)

	d := dispatch.New(botAPI, h, pool, cfg.Telegram.PollTimeout, logger)
	if err := d.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("dispatcher stopped", "error", err)
	}

	logger.Info("shutting down")
	if err := pool.Stop(30 * time.Second); err != nil {
		logger.Error("worker pool shutdown error", "error", err)
	}
	logger.Info("shutdown complete")
}
