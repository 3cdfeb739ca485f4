package staging

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// Remove deletes files from dir. Files that are already gone are skipped; the
// returned errors cover everything else and are for the caller to log.
func Remove(dir string, files []string) []error {
	var errs []error
	for _, name := range files {
		err := os.Remove(filepath.Join(dir, name))
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, fmt.Errorf("remove %s: %w", name, err))
		}
	}
	return errs
}

// SweepResult summarizes a Sweep.
type SweepResult struct {
	Removed []string
	Errors  []error
}

// Sweep removes staged artifacts last modified before now-maxAge from each of
// dirs. Those are left behind when a process dies between staging and
// cleanup. Missing directories are ignored.
func Sweep(dirs []string, maxAge time.Duration, now time.Time) SweepResult {
	var res SweepResult
	cutoff := now.Add(-maxAge)
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				res.Errors = append(res.Errors, fmt.Errorf("read %s: %w", dir, err))
			}
			continue
		}
		for _, entry := range entries {
			if entry.IsDir() || !IsArtifact(entry.Name()) {
				continue
			}
			info, err := entry.Info()
			if err != nil || !info.ModTime().Before(cutoff) {
				continue
			}
			path := filepath.Join(dir, entry.Name())
			if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
				res.Errors = append(res.Errors, fmt.Errorf("remove %s: %w", path, err))
				continue
			}
			res.Removed = append(res.Removed, path)
		}
	}
	return res
}
