package files

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// SpreadsheetExtensions are the extensions the console exports.
var SpreadsheetExtensions = []string{".xlsx", ".xls"}

// temporarySuffixes mark files a browser or office suite is still writing.
var temporarySuffixes = []string{".crdownload", ".part", ".tmp", ".download"}

// FileInfo represents information about a discovered file
type FileInfo struct {
	Path    string
	Name    string
	Size    int64
	ModTime time.Time
}

// Discovery lists finished files with given extensions in a directory.
type Discovery struct {
	extensions []string
}

// NewDiscovery matches the given extensions, case-insensitively. No
// extensions means SpreadsheetExtensions.
func NewDiscovery(extensions ...string) *Discovery {
	if len(extensions) == 0 {
		extensions = SpreadsheetExtensions
	}
	norm := make([]string, 0, len(extensions))
	for _, ext := range extensions {
		ext = strings.ToLower(ext)
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		norm = append(norm, ext)
	}
	return &Discovery{extensions: norm}
}

// IsTemporary reports whether name is a lock file or an unfinished download.
func IsTemporary(name string) bool {
	if strings.HasPrefix(name, "~$") || strings.HasPrefix(name, ".~lock") {
		return true
	}
	lower := strings.ToLower(name)
	for _, suffix := range temporarySuffixes {
		if strings.HasSuffix(lower, suffix) {
			return true
		}
	}
	return false
}

// Matches reports whether name has a wanted extension and is not temporary.
func (d *Discovery) Matches(name string) bool {
	if IsTemporary(name) {
		return false
	}
	lower := strings.ToLower(name)
	for _, ext := range d.extensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// Find returns matching files in dir, oldest first. A missing directory is
// an empty result.
func (d *Discovery) Find(dir string) ([]FileInfo, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	var files []FileInfo
	for _, entry := range entries {
		if entry.IsDir() || !d.Matches(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			// Vanished between ReadDir and Info.
			continue
		}
		files = append(files, FileInfo{
			Path:    filepath.Join(dir, entry.Name()),
			Name:    entry.Name(),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].ModTime.Before(files[j].ModTime)
	})
	return files, nil
}

// GetLatestFile returns the most recently modified file from a list
func GetLatestFile(files []FileInfo) (FileInfo, bool) {
	if len(files) == 0 {
		return FileInfo{}, false
	}

	latest := files[0]
	for _, file := range files[1:] {
		if file.ModTime.After(latest.ModTime) {
			latest = file
		}
	}

	return latest, true
}
