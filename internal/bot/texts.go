package bot

import (
	"fmt"
	"strings"
	"time"

	"github.com/telegrambots/mediabots/internal/domain"
)

const (
	welcomeText  = "[SUCCESS ✅] Send me one or more YouTube links and I'll send back 320 kbps MP3 files. 🎶"
	acceptedText = "[SUCCESS ✅] Link accepted! 🎬 Starting processing..."
	invalidText  = "[ERROR ☢️☣️] Please send a valid YouTube video link. 🚫"
)

// EstimateSeconds is the announced export time for n links processed
// maxParallel at a time: one minute per sub-batch.
func EstimateSeconds(n, maxParallel int) int {
	if maxParallel < 1 {
		maxParallel = 1
	}
	batches := (n + maxParallel - 1) / maxParallel
	return batches * 60
}

func estimateText(n, maxParallel int) string {
	sec := EstimateSeconds(n, maxParallel)
	return fmt.Sprintf("🤯 Detected %d YouTube links! Up to %d will be processed in parallel. "+
		"Files will be sent as soon as each is ready.\nApproximate export time: %d seconds (%d min)",
		n, maxParallel, sec, sec/60)
}

func notStartedText(req domain.DownloadRequest) string {
	return fmt.Sprintf("[ERROR ☢️☣️] Operation was interrupted before it started: %s\nURL: %s ⏹️", req.Position(), req.URL)
}

func summaryText(s *domain.BatchSummary) string {
	succeeded, failed := s.Counts()
	elapsed := int(s.Elapsed() / time.Second)

	var b strings.Builder
	b.WriteString("🎉 [SUMMARY] Batch complete!\n")
	fmt.Fprintf(&b, "[SUCCESS ✅] Processed: %d\n", succeeded)
	fmt.Fprintf(&b, "[ERROR ☢️☣️] Failed: %d\n", failed)
	fmt.Fprintf(&b, "⏱️ Export time: %d seconds (%d min)\n", elapsed, elapsed/60)

	if failures := s.Failures(); len(failures) > 0 {
		b.WriteString("\nFailed URLs:\n")
		for _, f := range failures {
			b.WriteString(f)
			b.WriteString("\n")
		}
	}
	return b.String()
}
