// Package storage archives rendered run reports on disk and issues the
// signed tokens that gate access to them.
package storage

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// ReportArchive persists report files under baseDir, one subdirectory per
// run. Filenames are kept relative so the archive can move between hosts.
type ReportArchive struct {
	baseDir string
}

// NewReportArchive ensures the base directory exists and returns a handle.
func NewReportArchive(baseDir string) (*ReportArchive, error) {
	if baseDir == "" {
		baseDir = "./reports"
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create report directory: %w", err)
	}
	return &ReportArchive{baseDir: baseDir}, nil
}

// Save writes one rendered report for a run and returns its relative path.
func (a *ReportArchive) Save(runID, filename string, data []byte) (string, error) {
	rel, err := a.relPath(runID, filename)
	if err != nil {
		return "", err
	}
	full := filepath.Join(a.baseDir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("prepare report directory: %w", err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return "", fmt.Errorf("write report file: %w", err)
	}
	return rel, nil
}

// Open returns a read-only handle for a previously saved report.
func (a *ReportArchive) Open(relPath string) (*os.File, error) {
	full, err := a.resolve(relPath)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(full)
	if err != nil {
		return nil, fmt.Errorf("open report file: %w", err)
	}
	return file, nil
}

// Exists reports whether a saved report is still on disk.
func (a *ReportArchive) Exists(relPath string) bool {
	full, err := a.resolve(relPath)
	if err != nil {
		return false
	}
	info, err := os.Stat(full)
	return err == nil && !info.IsDir()
}

// DeleteRun removes every archived report of one run.
func (a *ReportArchive) DeleteRun(runID string) error {
	if runID == "" || strings.ContainsAny(runID, `/\`) {
		return fmt.Errorf("invalid run id %q", runID)
	}
	if err := os.RemoveAll(filepath.Join(a.baseDir, runID)); err != nil {
		return fmt.Errorf("delete run reports: %w", err)
	}
	return nil
}

// CleanupOlderThan deletes report files whose modification time is older
// than ttl and returns their relative paths.
func (a *ReportArchive) CleanupOlderThan(ttl time.Duration) ([]string, error) {
	cutoff := time.Now().Add(-ttl)
	var deleted []string
	err := filepath.WalkDir(a.baseDir, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if info.ModTime().After(cutoff) {
			return nil
		}
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return err
		}
		if rel, err := filepath.Rel(a.baseDir, p); err == nil {
			deleted = append(deleted, filepath.ToSlash(rel))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("cleanup reports: %w", err)
	}
	return deleted, nil
}

// relPath builds the run-scoped relative path, rejecting separators and
// traversal in the inputs.
func (a *ReportArchive) relPath(runID, filename string) (string, error) {
	if runID == "" || strings.ContainsAny(runID, `/\`) {
		return "", fmt.Errorf("invalid run id %q", runID)
	}
	if filename == "" || strings.ContainsAny(filename, `/\`) || filename == "." || filename == ".." {
		return "", fmt.Errorf("invalid report filename %q", filename)
	}
	return path.Join(runID, filename), nil
}

// resolve maps a stored relative path back under baseDir, refusing anything
// that escapes it.
func (a *ReportArchive) resolve(relPath string) (string, error) {
	cleaned := path.Clean(filepath.ToSlash(relPath))
	if cleaned == "." || strings.HasPrefix(cleaned, "../") || path.IsAbs(cleaned) {
		return "", fmt.Errorf("invalid report path %q", relPath)
	}
	return filepath.Join(a.baseDir, filepath.FromSlash(cleaned)), nil
}
