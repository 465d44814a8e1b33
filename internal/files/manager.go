package files

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	apperrors "wbreports/internal/errors"
)

// Manager provides file management operations
type Manager struct {
	logger *slog.Logger
}

// NewManager creates a new file manager instance
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{logger: logger.With(slog.String("component", "files"))}
}

// CopyFile copies src to dst, replacing dst if it exists.
func (m *Manager) CopyFile(src, dst string) error {
	m.logger.Info("Copying file",
		slog.String("src", src),
		slog.String("dst", dst))

	if err := m.EnsureDirectory(filepath.Dir(dst)); err != nil {
		return err
	}

	srcFile, err := os.Open(src)
	if err != nil {
		return apperrors.NewStorageError("failed to open source file", err).WithContext("path", src)
	}
	defer srcFile.Close()

	dstFile, err := os.Create(dst)
	if err != nil {
		return apperrors.NewStorageError("failed to create destination file", err).WithContext("path", dst)
	}
	defer dstFile.Close()

	if _, err := io.Copy(dstFile, srcFile); err != nil {
		return apperrors.NewStorageError("failed to copy file content", err).WithContext("path", dst)
	}

	if err := dstFile.Sync(); err != nil {
		return apperrors.NewStorageError("failed to sync destination file", err).WithContext("path", dst)
	}
	return nil
}

// MoveFile moves src to dst, replacing dst if it exists.
func (m *Manager) MoveFile(src, dst string) error {
	m.logger.Info("Moving file",
		slog.String("src", src),
		slog.String("dst", dst))

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return apperrors.NewStorageError("failed to create destination directory", err).
			WithContext("path", dst)
	}

	// Try rename first (atomic if on same filesystem)
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	// Fall back to copy and delete
	if err := m.CopyFile(src, dst); err != nil {
		return err
	}
	if err := os.Remove(src); err != nil {
		return apperrors.NewStorageError("failed to remove moved file", err).WithContext("path", src)
	}
	return nil
}

// DeleteFile deletes a file. A missing file is not an error.
func (m *Manager) DeleteFile(path string) error {
	m.logger.Info("Deleting file", slog.String("path", path))

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return apperrors.NewStorageError("failed to delete file", err).WithContext("path", path)
	}
	return nil
}

// ClearMatching deletes every file in dir that d matches, except those keep
// accepts, and returns how many were removed. A nil keep keeps nothing.
func (m *Manager) ClearMatching(dir string, d *Discovery, keep func(FileInfo) bool) (int, error) {
	found, err := d.Find(dir)
	if err != nil {
		return 0, apperrors.NewStorageError("failed to list directory", err).WithContext("path", dir)
	}
	removed := 0
	for _, f := range found {
		if keep != nil && keep(f) {
			continue
		}
		if err := m.DeleteFile(f.Path); err != nil {
			return removed, err
		}
		removed++
	}
	if removed > 0 {
		m.logger.Info("Cleared stale files",
			slog.String("dir", dir),
			slog.Int("count", removed))
	}
	return removed, nil
}

// EnsureDirectory creates a directory if it doesn't exist
func (m *Manager) EnsureDirectory(path string) error {
	if err := os.MkdirAll(path, 0755); err != nil {
		return apperrors.NewStorageError(fmt.Sprintf("failed to create directory %s", path), err)
	}
	return nil
}
