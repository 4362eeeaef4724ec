package sanitize

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeFiles(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("data"), 0644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func TestRenameAll_DryRun(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "ZillaKami - LEMON JUICE (Official Audio).mp3", "Clean Name.mp3", "notes.txt")

	report, err := RenameAll(dir, ".mp3", true)
	if err != nil {
		t.Fatalf("RenameAll failed: %v", err)
	}

	if report.Checked != 2 {
		t.Errorf("Checked = %d, want 2", report.Checked)
	}
	if len(report.Changes) != 1 {
		t.Fatalf("Changes = %d, want 1", len(report.Changes))
	}
	if got := report.Changes[0].To; got != "Zillakami Lemon Juice.mp3" {
		t.Errorf("To = %q, want %q", got, "Zillakami Lemon Juice.mp3")
	}
	if report.Renamed() != 0 {
		t.Errorf("Renamed() = %d, want 0 in dry run", report.Renamed())
	}
	if len(report.Clean) != 1 || report.Clean[0] != "Clean Name.mp3" {
		t.Errorf("Clean = %v, want [Clean Name.mp3]", report.Clean)
	}
	if !exists(filepath.Join(dir, "ZillaKami - LEMON JUICE (Official Audio).mp3")) {
		t.Error("dry run should not rename files")
	}
}

func TestRenameAll_Renames(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "ZillaKami - LEMON JUICE (Official Audio).mp3", "notes.txt")

	report, err := RenameAll(dir, ".mp3", false)
	if err != nil {
		t.Fatalf("RenameAll failed: %v", err)
	}

	if report.Renamed() != 1 {
		t.Errorf("Renamed() = %d, want 1", report.Renamed())
	}
	if !exists(filepath.Join(dir, "Zillakami Lemon Juice.mp3")) {
		t.Error("renamed file should exist")
	}
	if exists(filepath.Join(dir, "ZillaKami - LEMON JUICE (Official Audio).mp3")) {
		t.Error("original file should be gone")
	}
	if !exists(filepath.Join(dir, "notes.txt")) {
		t.Error("non-matching file should be untouched")
	}
}

func TestRenameAll_AllExtensions(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "my_notes.txt")

	report, err := RenameAll(dir, "", false)
	if err != nil {
		t.Fatalf("RenameAll failed: %v", err)
	}
	if report.Checked != 1 || report.Renamed() != 1 {
		t.Errorf("Checked = %d, Renamed = %d, want 1, 1", report.Checked, report.Renamed())
	}
	if !exists(filepath.Join(dir, "My Notes.txt")) {
		t.Error("expected My Notes.txt")
	}
}

func TestRenameAll_TargetExists(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "a_b.mp3", "A B.mp3")

	report, err := RenameAll(dir, ".mp3", false)
	if err != nil {
		t.Fatalf("RenameAll failed: %v", err)
	}
	if report.Failed() != 1 {
		t.Fatalf("Failed() = %d, want 1", report.Failed())
	}
	for _, c := range report.Changes {
		if c.From == "a_b.mp3" && !errors.Is(c.Err, ErrTargetExists) {
			t.Errorf("Err = %v, want ErrTargetExists", c.Err)
		}
	}
	if !exists(filepath.Join(dir, "a_b.mp3")) {
		t.Error("source should not be renamed over an existing file")
	}
}

func TestRenameAll_EmptyName(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "!!!.mp3")

	report, err := RenameAll(dir, ".mp3", false)
	if err != nil {
		t.Fatalf("RenameAll failed: %v", err)
	}
	if report.Failed() != 1 || !errors.Is(report.Changes[0].Err, ErrEmptyName) {
		t.Errorf("expected ErrEmptyName, got %+v", report.Changes)
	}
}

func TestRenameAll_NotDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "file.mp3")

	_, err := RenameAll(filepath.Join(dir, "file.mp3"), ".mp3", true)
	if !errors.Is(err, ErrNotDirectory) {
		t.Errorf("err = %v, want ErrNotDirectory", err)
	}
}

func TestRenameAll_MissingDirectory(t *testing.T) {
	if _, err := RenameAll("/nonexistent/dir", ".mp3", true); err == nil {
		t.Error("RenameAll should fail for a missing directory")
	}
}
