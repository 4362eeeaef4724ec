package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/telegrambots/mediabots/pkg/sanitize"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	ext := flag.String("ext", ".mp3", "Only rename files with this extension (empty for all)")
	dryRun := flag.Bool("dry-run", false, "Print the renames without applying them")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("sanitize-names %s (built %s)\n", Version, BuildTime)
		os.Exit(0)
	}

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: sanitize-names [-ext .mp3] [-dry-run] <dir>")
		flag.PrintDefaults()
		os.Exit(2)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	report, err := sanitize.RenameAll(flag.Arg(0), strings.ToLower(*ext), *dryRun)
	if err != nil {
		logger.Error("rename failed", "dir", flag.Arg(0), "error", err)
		os.Exit(1)
	}

	for _, c := range report.Changes {
		switch {
		case c.Err != nil:
			logger.Warn("skipped", "file", c.From, "error", c.Err)
		case report.DryRun:
			fmt.Printf("would rename: %s -> %s\n", c.From, c.To)
		default:
			fmt.Printf("renamed: %s -> %s\n", c.From, c.To)
		}
	}

	logger.Info("done",
		"dir", report.Dir,
		"checked", report.Checked,
		"renamed", report.Renamed(),
		"unchanged", len(report.Clean),
		"failed", report.Failed(),
		"dry_run", report.DryRun,
	)
	if report.Failed() > 0 {
		os.Exit(1)
	}
}
