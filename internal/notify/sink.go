// Package notify delivers messages, files and chat actions to Telegram chats.
package notify

import (
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Chat actions shown while work is in progress.
const (
	ActionUploadDocument = tgbotapi.ChatUploadDocument
	ActionTyping         = tgbotapi.ChatTyping
)

// Sink delivers output to a chat. Errors are returned for the caller to log.
type Sink interface {
	SendText(chatID int64, text string) error
	SendAudio(chatID int64, path, caption string) error
	SendDocument(chatID int64, path, caption string) error
	SendChatAction(chatID int64, action string) error
}

// Messenger is the subset of *tgbotapi.BotAPI the sink needs.
type Messenger interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// TelegramSink implements Sink over the Bot API.
type TelegramSink struct {
	api    Messenger
	logger *slog.Logger
}

// NewTelegramSink creates a sink backed by api.
func NewTelegramSink(api Messenger, logger *slog.Logger) *TelegramSink {
	return &TelegramSink{api: api, logger: logger}
}

// SendText sends a plain text message.
func (s *TelegramSink) SendText(chatID int64, text string) error {
	if _, err := s.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		return fmt.Errorf("send text: %w", err)
	}
	return nil
}

// SendAudio uploads the file at path as audio with a caption.
func (s *TelegramSink) SendAudio(chatID int64, path, caption string) error {
	audio := tgbotapi.NewAudio(chatID, tgbotapi.FilePath(path))
	audio.Caption = caption
	if _, err := s.api.Send(audio); err != nil {
		return fmt.Errorf("send audio: %w", err)
	}
	s.logger.Debug("audio sent", "chat_id", chatID, "path", path)
	return nil
}

// SendDocument uploads the file at path as a document with a caption.
func (s *TelegramSink) SendDocument(chatID int64, path, caption string) error {
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FilePath(path))
	doc.Caption = caption
	if _, err := s.api.Send(doc); err != nil {
		return fmt.Errorf("send document: %w", err)
	}
	s.logger.Debug("document sent", "chat_id", chatID, "path", path)
	return nil
}

// SendChatAction shows an activity indicator such as "uploading document".
func (s *TelegramSink) SendChatAction(chatID int64, action string) error {
	// The API answers chat actions with a bare boolean, which Send cannot decode.
	if _, err := s.api.Request(tgbotapi.NewChatAction(chatID, action)); err != nil {
		return fmt.Errorf("send chat action: %w", err)
	}
	return nil
}
