package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolvePaths(t *testing.T) {
	base := t.TempDir()

	t.Run("relative paths anchor at base", func(t *testing.T) {
		cfg := Default()
		cfg.Paths.BaseDir = base

		paths, err := cfg.ResolvePaths()
		require.NoError(t, err)

		assert.Equal(t, filepath.Join(base, "downloads"), paths.DownloadsDir)
		assert.Equal(t, filepath.Join(base, "data"), paths.ArchiveDir)
		assert.Equal(t, filepath.Join(base, "pages_code"), paths.PagesDir)
		assert.Equal(t, filepath.Join(base, "chrome_profile"), paths.ProfileDir)
		assert.Equal(t, filepath.Join(base, "logs", "wbreports.log"), paths.LogFile)
		assert.Equal(t, filepath.Join(base, "logs", "traces.json"), paths.TracesFile)
		assert.Empty(t, paths.HeaderTemplate)
	})

	t.Run("absolute paths kept", func(t *testing.T) {
		abs := filepath.Join(base, "elsewhere")
		cfg := Default()
		cfg.Paths.BaseDir = base
		cfg.Paths.ArchiveDir = abs
		cfg.Logging.FilePath = filepath.Join(abs, "x.log")

		paths, err := cfg.ResolvePaths()
		require.NoError(t, err)
		assert.Equal(t, abs, paths.ArchiveDir)
		assert.Equal(t, filepath.Join(abs, "x.log"), paths.LogFile)
	})

	t.Run("executable dir when base empty", func(t *testing.T) {
		paths, err := Default().ResolvePaths()
		require.NoError(t, err)
		assert.True(t, filepath.IsAbs(paths.BaseDir))
	})
}

func TestEnsureDirectories(t *testing.T) {
	cfg := Default()
	cfg.Paths.BaseDir = t.TempDir()
	paths, err := cfg.ResolvePaths()
	require.NoError(t, err)

	require.NoError(t, paths.EnsureDirectories())
	for _, dir := range []string{paths.DownloadsDir, paths.ArchiveDir, paths.LogsDir, paths.PagesDir} {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}

func TestReportFilePaths(t *testing.T) {
	date := time.Date(2025, 12, 10, 0, 0, 0, 0, time.Local)

	assert.Equal(t, filepath.Join("dl", "MAU 10.12.2025.xlsx"), WorkingFilePath("dl", "MAU", date))
	assert.Equal(t, filepath.Join("data", "10.12.2025"), ArchiveDateDir("data", date))
	assert.Equal(t, filepath.Join("data", "10.12.2025", "mau_10.12.2025.xlsx"), ArchiveFilePath("data", "MAU", date))
	assert.Equal(t, filepath.Join("data", "10.12.2025", "dreamlab_10.12.2025.xlsx"), ArchiveFilePath("data", "dreamlab", date))
	assert.Equal(t, filepath.Join("data", "10.12.2025", "api_mab_10.12.2025.xlsx"), APIFilePath("data", "MAB", date))
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    time.Time
		wantErr bool
	}{
		{name: "valid", input: "10.12.2025", want: time.Date(2025, 12, 10, 0, 0, 0, 0, time.Local)},
		{name: "trims spaces", input: " 01.02.2024 ", want: time.Date(2024, 2, 1, 0, 0, 0, 0, time.Local)},
		{name: "iso rejected", input: "2025-12-10", wantErr: true},
		{name: "impossible day", input: "32.01.2025", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDate(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got))
		})
	}
}

func TestYesterday(t *testing.T) {
	now := time.Date(2025, 1, 1, 15, 30, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC), Yesterday(now))
}
