// Package converter implements the bot that turns .webm and .gif documents into .mp4.
package converter

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime/debug"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"

	"github.com/telegrambots/mediabots/internal/domain"
	"github.com/telegrambots/mediabots/internal/notify"
	"github.com/telegrambots/mediabots/pkg/ffmpeg"
)

const (
	wrongTypeText  = "Please send a .webm or .gif file to convert."
	failedText     = "[ERROR ☢️☣️] An error occurred during file conversion. Please try again. ❌"
	unexpectedText = "An error occurred while processing your request. Please try again."
)

// FileLocator resolves a Telegram file ID to a download URL.
type FileLocator interface {
	GetFileDirectURL(fileID string) (string, error)
}

// Downloader writes a remote file to a local path.
type Downloader interface {
	Download(ctx context.Context, url, dest string) (int64, error)
}

// Converter transcodes a video file to MP4.
type Converter interface {
	ConvertToMP4(ctx context.Context, in, out string) error
}

// Handler handles converter bot messages.
type Handler struct {
	files      FileLocator
	downloader Downloader
	converter  Converter
	sink       notify.Sink
	texts      *Texts
	workDir    string
	logger     *slog.Logger
}

// NewHandler creates a Handler. Temporary files are written to workDir.
func NewHandler(files FileLocator, dl Downloader, conv Converter, sink notify.Sink, texts *Texts, workDir string, logger *slog.Logger) *Handler {
	if texts == nil {
		texts = DefaultTexts()
	}
	return &Handler{
		files:      files,
		downloader: dl,
		converter:  conv,
		sink:       sink,
		texts:      texts,
		workDir:    workDir,
		logger:     logger,
	}
}

// Supported reports whether fileName has a convertible extension.
func Supported(fileName string) bool {
	ext := strings.ToLower(filepath.Ext(fileName))
	return ext == ".webm" || ext == ".gif"
}

// HandleMessage answers /start and converts documents.
func (h *Handler) HandleMessage(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("update handler panicked",
				"chat_id", chatID,
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()),
			)
			h.send(chatID, unexpectedText)
		}
	}()

	if msg.IsCommand() {
		if msg.Command() == "start" {
			h.send(chatID, "[SUCCESS ✅] "+h.texts.Random(KeyWelcome)+" 👋")
		}
		return
	}
	if msg.Document == nil {
		return
	}

	if err := h.Convert(ctx, chatID, msg.Document.FileID, msg.Document.FileName); err != nil {
		h.logger.Warn("conversion failed", "chat_id", chatID, "file_name", msg.Document.FileName, "error", err)
	}
}

// Convert downloads the document, converts it and sends back the MP4.
// The user is told about every failure.
func (h *Handler) Convert(ctx context.Context, chatID int64, fileID, fileName string) error {
	if !Supported(fileName) {
		h.send(chatID, wrongTypeText)
		return fmt.Errorf("%w: %q", domain.ErrUnsupportedFile, fileName)
	}

	logger := h.logger.With("chat_id", chatID, "file_name", fileName)
	logger.Info("file received")
	h.action(chatID, notify.ActionUploadDocument)

	in, out := h.tempPaths(fileName)
	defer ffmpeg.CleanupTempFiles(in, out)

	if err := h.convert(ctx, fileID, in, out); err != nil {
		h.send(chatID, failedText)
		return err
	}
	logger.Info("conversion finished", "output", out)

	if err := h.sink.SendDocument(chatID, out, "[SUCCESS ✅] "+h.texts.Random(KeyDone)+" 🎬"); err != nil {
		h.send(chatID, failedText)
		return fmt.Errorf("send mp4: %w", err)
	}
	logger.Info("mp4 sent")

	h.action(chatID, notify.ActionTyping)
	return nil
}

func (h *Handler) convert(ctx context.Context, fileID, in, out string) error {
	url, err := h.files.GetFileDirectURL(fileID)
	if err != nil {
		return fmt.Errorf("resolve file: %w", err)
	}
	if _, err := h.downloader.Download(ctx, url, in); err != nil {
		return err
	}
	if err := h.converter.ConvertToMP4(ctx, in, out); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrConversionFailed, err)
	}
	return nil
}

// tempPaths returns unique input and output paths for one conversion. The
// output keeps the uploaded stem so the chat shows a meaningful name.
func (h *Handler) tempPaths(fileName string) (in, out string) {
	base := filepath.Base(fileName)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	if stem == "" || stem == "." {
		stem = "video"
	}
	token := uuid.NewString()[:8]

	in = filepath.Join(h.workDir, token+"_input"+strings.ToLower(ext))
	out = filepath.Join(h.workDir, stem+"_"+token+".mp4")
	return in, out
}

func (h *Handler) send(chatID int64, text string) {
	if err := h.sink.SendText(chatID, text); err != nil {
		h.logger.Error("failed to send message", "chat_id", chatID, "error", err)
	}
}

func (h *Handler) action(chatID int64, action string) {
	if err := h.sink.SendChatAction(chatID, action); err != nil {
		h.logger.Debug("failed to send chat action", "chat_id", chatID, "error", err)
	}
}
