package sanitize

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrNotDirectory is returned when the rename target is not a directory.
	ErrNotDirectory = errors.New("not a directory")

	// ErrEmptyName is returned when a file name sanitizes to nothing.
	ErrEmptyName = errors.New("name sanitizes to empty string")

	// ErrTargetExists is returned when the sanitized name is already taken.
	ErrTargetExists = errors.New("target file already exists")
)

// RenameAction describes one file whose name changes.
type RenameAction struct {
	From    string
	To      string
	Renamed bool
	Err     error
}

// RenameReport summarizes a RenameAll pass.
type RenameReport struct {
	Dir     string
	DryRun  bool
	Checked int
	Changes []RenameAction
	Clean   []string
}

// Renamed returns how many files were actually renamed.
func (r RenameReport) Renamed() int {
	n := 0
	for _, c := range r.Changes {
		if c.Renamed {
			n++
		}
	}
	return n
}

// Failed returns how many renames failed.
func (r RenameReport) Failed() int {
	n := 0
	for _, c := range r.Changes {
		if c.Err != nil {
			n++
		}
	}
	return n
}

// RenameAll sanitizes the name of every regular file in dir whose lower-cased
// name ends with ext. An empty ext matches all files. The extension after the
// last dot is kept as is. With dryRun set nothing is renamed.
func RenameAll(dir, ext string, dryRun bool) (RenameReport, error) {
	report := RenameReport{Dir: dir, DryRun: dryRun}

	info, err := os.Stat(dir)
	if err != nil {
		return report, fmt.Errorf("stat %s: %w", dir, err)
	}
	if !info.IsDir() {
		return report, fmt.Errorf("%s: %w", dir, ErrNotDirectory)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return report, fmt.Errorf("read %s: %w", dir, err)
	}

	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		name := entry.Name()
		if ext != "" && !strings.HasSuffix(strings.ToLower(name), ext) {
			continue
		}
		report.Checked++

		newName, err := sanitizedFileName(name)
		if err != nil {
			report.Changes = append(report.Changes, RenameAction{From: name, Err: err})
			continue
		}
		if newName == name {
			report.Clean = append(report.Clean, name)
			continue
		}

		action := RenameAction{From: name, To: newName}
		if !dryRun {
			action.Err = renameNoClobber(filepath.Join(dir, name), filepath.Join(dir, newName))
			action.Renamed = action.Err == nil
		}
		report.Changes = append(report.Changes, action)
	}

	return report, nil
}

func sanitizedFileName(name string) (string, error) {
	base, ext := name, ""
	if dot := strings.LastIndex(name, "."); dot > 0 {
		base, ext = name[:dot], name[dot:]
	}
	clean := Sanitize(base)
	if clean == "" {
		return "", ErrEmptyName
	}
	return clean + ext, nil
}

func renameNoClobber(from, to string) error {
	// Names differing only in case resolve to the same file on
	// case-insensitive filesystems.
	if !strings.EqualFold(from, to) {
		if _, err := os.Stat(to); err == nil {
			return ErrTargetExists
		}
	}
	return os.Rename(from, to)
}
