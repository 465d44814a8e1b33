package files

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path string, size int, mod time.Time) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0644))
	if !mod.IsZero() {
		require.NoError(t, os.Chtimes(path, mod, mod))
	}
}

func TestNewDiscoveryNormalizesExtensions(t *testing.T) {
	d := NewDiscovery("XLSX", ".Csv")
	assert.Equal(t, []string{".xlsx", ".csv"}, d.extensions)

	d = NewDiscovery()
	assert.Equal(t, SpreadsheetExtensions, d.extensions)
}

func TestIsTemporary(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"report.xlsx", false},
		{"~$report.xlsx", true},
		{".~lock.report.xlsx#", true},
		{"report.xlsx.crdownload", true},
		{"Unconfirmed 123.crdownload", true},
		{"report.tmp", true},
		{"report.xlsx.part", true},
		{"report.TMP", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTemporary(tt.name))
		})
	}
}

func TestFind(t *testing.T) {
	dir := t.TempDir()
	base := time.Now().Add(-time.Hour)

	writeFile(t, filepath.Join(dir, "b.xlsx"), 10, base.Add(2*time.Minute))
	writeFile(t, filepath.Join(dir, "a.XLSX"), 20, base.Add(time.Minute))
	writeFile(t, filepath.Join(dir, "~$a.xlsx"), 1, base)
	writeFile(t, filepath.Join(dir, "c.xlsx.crdownload"), 5, base)
	writeFile(t, filepath.Join(dir, "notes.txt"), 5, base)
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.xlsx"), 0755))

	found, err := NewDiscovery(".xlsx").Find(dir)
	require.NoError(t, err)
	require.Len(t, found, 2)

	assert.Equal(t, "a.XLSX", found[0].Name)
	assert.Equal(t, int64(20), found[0].Size)
	assert.Equal(t, filepath.Join(dir, "a.XLSX"), found[0].Path)
	assert.Equal(t, "b.xlsx", found[1].Name)
}

func TestFindMissingDirectory(t *testing.T) {
	found, err := NewDiscovery().Find(filepath.Join(t.TempDir(), "missing"))
	assert.NoError(t, err)
	assert.Empty(t, found)
}

func TestGetLatestFile(t *testing.T) {
	_, ok := GetLatestFile(nil)
	assert.False(t, ok)

	now := time.Now()
	latest, ok := GetLatestFile([]FileInfo{
		{Name: "old", ModTime: now.Add(-time.Hour)},
		{Name: "new", ModTime: now},
		{Name: "mid", ModTime: now.Add(-time.Minute)},
	})
	assert.True(t, ok)
	assert.Equal(t, "new", latest.Name)
}
