package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DateLayout is the DD.MM.YYYY form the console and the archive use.
const DateLayout = "02.01.2006"

// Paths contains every resolved file system location the tool touches.
type Paths struct {
	BaseDir         string
	DownloadsDir    string
	ArchiveDir      string
	LogsDir         string
	PagesDir        string
	ProfileDir      string
	HeaderTemplate  string
	CredentialsFile string
	LogFile         string
	TracesFile      string
	MetricsFile     string
}

// ResolvePaths anchors the configured relative paths at Paths.BaseDir, or at
// the executable directory when no base is configured.
func (c *Config) ResolvePaths() (*Paths, error) {
	base := c.Paths.BaseDir
	if base == "" {
		exe, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("failed to get executable path: %v", err)
		}
		exe, err = filepath.EvalSymlinks(exe)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve executable symlinks: %v", err)
		}
		base = filepath.Dir(exe)
	}
	base, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve base dir: %v", err)
	}

	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(base, p)
	}
	logs := abs(c.Paths.LogsDir)
	inLogs := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(logs, p)
	}

	return &Paths{
		BaseDir:         base,
		DownloadsDir:    abs(c.Paths.DownloadsDir),
		ArchiveDir:      abs(c.Paths.ArchiveDir),
		LogsDir:         logs,
		PagesDir:        abs(c.Paths.PagesDir),
		ProfileDir:      abs(c.Browser.ProfileDir),
		HeaderTemplate:  abs(c.Paths.HeaderTemplate),
		CredentialsFile: abs(c.Paths.CredentialsFile),
		LogFile:         inLogs(c.Logging.FilePath),
		TracesFile:      inLogs(c.Telemetry.TracesFile),
		MetricsFile:     inLogs(c.Telemetry.MetricsFile),
	}, nil
}

// EnsureDirectories creates all required directories if they don't exist
func (p *Paths) EnsureDirectories() error {
	directories := []string{
		p.DownloadsDir,
		p.ArchiveDir,
		p.LogsDir,
		p.PagesDir,
	}

	for _, dir := range directories {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %v", dir, err)
		}
		slog.Debug("Ensured directory exists", slog.String("directory", dir))
	}

	return nil
}

// LogPathResolution logs the resolved locations at startup
func (p *Paths) LogPathResolution(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("Path resolution summary",
		slog.Group("directories",
			slog.String("base", p.BaseDir),
			slog.String("downloads", p.DownloadsDir),
			slog.String("archive", p.ArchiveDir),
			slog.String("logs", p.LogsDir),
			slog.String("pages", p.PagesDir),
			slog.String("profile", p.ProfileDir),
		),
		slog.Group("files",
			slog.String("log", p.LogFile),
			slog.String("header_template", p.HeaderTemplate),
			slog.String("credentials", p.CredentialsFile),
		))
}

// WorkingFilePath is where a cabinet's freshly downloaded report is renamed
// to: "{dir}/{Name} {DD.MM.YYYY}.xlsx".
func WorkingFilePath(dir, cabinet string, date time.Time) string {
	return filepath.Join(dir, fmt.Sprintf("%s %s.xlsx", cabinet, date.Format(DateLayout)))
}

// ArchiveDateDir is the per-date archive folder.
func ArchiveDateDir(dir string, date time.Time) string {
	return filepath.Join(dir, date.Format(DateLayout))
}

// ArchiveFilePath is "{dir}/{DD.MM.YYYY}/{lower(Name)}_{DD.MM.YYYY}.xlsx".
func ArchiveFilePath(dir, cabinet string, date time.Time) string {
	d := date.Format(DateLayout)
	return filepath.Join(dir, d, fmt.Sprintf("%s_%s.xlsx", strings.ToLower(cabinet), d))
}

// APIFilePath is where the API report of a cabinet lands, next to the
// browser archive: "{dir}/{DD.MM.YYYY}/api_{lower(Name)}_{DD.MM.YYYY}.xlsx".
func APIFilePath(dir, cabinet string, date time.Time) string {
	d := date.Format(DateLayout)
	return filepath.Join(dir, d, fmt.Sprintf("api_%s_%s.xlsx", strings.ToLower(cabinet), d))
}

// ParseDate parses a DD.MM.YYYY date in the local time zone.
func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, strings.TrimSpace(s), time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected DD.MM.YYYY: %w", s, err)
	}
	return t, nil
}

// Yesterday returns the start of the previous calendar day relative to now.
func Yesterday(now time.Time) time.Time {
	y := now.AddDate(0, 0, -1)
	return time.Date(y.Year(), y.Month(), y.Day(), 0, 0, 0, 0, now.Location())
}

// FileExists checks if a file exists
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
