package pipeline

import (
	"fmt"
	"strconv"

	"github.com/telegrambots/mediabots/internal/domain"
)

const (
	errorTag   = "[ERROR ☢️☣️]"
	successTag = "[SUCCESS ✅]"

	fallbackNote = "\n\nTitle taken from <title> tag of YouTube page (curl fallback)"
)

func megabytes(n int64) int64 {
	return n / 1024 / 1024
}

func minutes(m float64) string {
	return strconv.FormatFloat(m, 'f', -1, 64)
}

func tooLongText(req domain.DownloadRequest, maxMinutes float64) string {
	return fmt.Sprintf("%s Audio is too long (over %s minutes). Try another video. %s\nURL: %s ⏳",
		errorTag, minutes(maxMinutes), req.Position(), req.URL)
}

func tooLargeText(req domain.DownloadRequest, maxBytes int64) string {
	return fmt.Sprintf("%s Audio file is too large (over %d MB). Try another video. %s\nURL: %s 💾",
		errorTag, megabytes(maxBytes), req.Position(), req.URL)
}

func downloadErrorText(req domain.DownloadRequest) string {
	return fmt.Sprintf("%s Error downloading or converting audio. Check the link or try another video. %s\nURL: %s ❌",
		errorTag, req.Position(), req.URL)
}

func downloadedTooLongText(req domain.DownloadRequest, maxMinutes float64) string {
	return fmt.Sprintf("%s Video is too long (over %s minutes). Try another video. %s\nURL: %s ⏳",
		errorTag, minutes(maxMinutes), req.Position(), req.URL)
}

func blockedText(req domain.DownloadRequest) string {
	return fmt.Sprintf("%s Failed to download video. Video may be unavailable, age-restricted, or blocked by YouTube. %s\nURL: %s 🚫"+
		"\n\n🔍 Debug: Empty file (0 bytes) - usually means YouTube blocked access or video is restricted.",
		errorTag, req.Position(), req.URL)
}

func downloadedTooLargeText(req domain.DownloadRequest, maxBytes, size int64) string {
	return fmt.Sprintf("%s Audio file exceeds %d MB (%.2f MB). Try another video. %s\nURL: %s 💾",
		errorTag, megabytes(maxBytes), float64(size)/1024/1024, req.Position(), req.URL)
}

func fileMissingText(req domain.DownloadRequest) string {
	return fmt.Sprintf("%s Download failed. File not found. %s\nURL: %s ❓", errorTag, req.Position(), req.URL)
}

func ioErrorText(req domain.DownloadRequest) string {
	return fmt.Sprintf("%s File or disk access error: %s\nURL: %s 💾", errorTag, req.Position(), req.URL)
}

func interruptedText(req domain.DownloadRequest) string {
	return fmt.Sprintf("%s Operation was interrupted: %s\nURL: %s ⏹️", errorTag, req.Position(), req.URL)
}

func unexpectedText(req domain.DownloadRequest) string {
	return fmt.Sprintf("%s An unexpected error occurred: %s\nURL: %s ❌", errorTag, req.Position(), req.URL)
}

func captionText(req domain.DownloadRequest, before, after string, fallbackUsed bool) string {
	caption := fmt.Sprintf("%s Audio ready! 🎶 %s\n🎵 Song renamed\n🔢 Before: %s\n🔁 After:  %s\n🔗 YouTube: %s",
		successTag, req.Position(), before, after, req.URL)
	if fallbackUsed {
		caption += fallbackNote
	}
	return caption
}
