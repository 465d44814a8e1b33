package download

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "wbreports/internal/errors"
)

func fastWatcher(dir string, timeout time.Duration) *Watcher {
	w := NewWatcher(dir, timeout, slog.New(slog.NewTextHandler(io.Discard, nil)))
	w.PollInterval = 10 * time.Millisecond
	w.SampleInterval = 20 * time.Millisecond
	return w
}

func TestAwaitReturnsNewStableFile(t *testing.T) {
	dir := t.TempDir()
	w := fastWatcher(dir, 2*time.Second)

	snap, err := w.Snapshot()
	require.NoError(t, err)

	path := filepath.Join(dir, "report.xlsx")
	require.NoError(t, os.WriteFile(path, make([]byte, 128), 0644))

	f, err := w.Await(context.Background(), snap)
	require.NoError(t, err)
	assert.Equal(t, path, f.Path)
	assert.Equal(t, int64(128), f.Size)
	assert.Equal(t, []int64{128, 128, 128}, f.Samples)
}

func TestAwaitWaitsForGrowingFileToSettle(t *testing.T) {
	dir := t.TempDir()
	w := fastWatcher(dir, 3*time.Second)

	snap, err := w.Snapshot()
	require.NoError(t, err)

	path := filepath.Join(dir, "growing.xlsx")
	done := make(chan struct{})
	go func() {
		defer close(done)
		f, err := os.Create(path)
		if err != nil {
			return
		}
		defer f.Close()
		for i := 0; i < 10; i++ {
			_, _ = f.Write(make([]byte, 100))
			time.Sleep(15 * time.Millisecond)
		}
	}()

	f, err := w.Await(context.Background(), snap)
	require.NoError(t, err)
	<-done

	assert.Equal(t, int64(1000), f.Size, "returned before the writer finished")
	for _, s := range f.Samples {
		assert.Equal(t, int64(1000), s)
	}
}

func TestAwaitIgnoresPreexistingAndTemporaryFiles(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "old.xlsx")
	require.NoError(t, os.WriteFile(old, []byte("old"), 0644))
	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(old, past, past))

	w := fastWatcher(dir, 150*time.Millisecond)
	snap, err := w.Snapshot()
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "new.xlsx.crdownload"), []byte("part"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "~$new.xlsx"), []byte("lock"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "empty.xlsx"), nil, 0644))

	_, err = w.Await(context.Background(), snap)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeDownloadTimeout))
}

func TestAwaitPicksUpRewrittenFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "report.xlsx")
	require.NoError(t, os.WriteFile(path, []byte("old"), 0644))
	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(path, past, past))

	w := fastWatcher(dir, 2*time.Second)
	snap, err := w.Snapshot()
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("new content"), 0644))

	f, err := w.Await(context.Background(), snap)
	require.NoError(t, err)
	assert.Equal(t, int64(len("new content")), f.Size)
}

func TestAwaitTimesOutWithinPollGranularity(t *testing.T) {
	w := fastWatcher(t.TempDir(), 100*time.Millisecond)
	snap, err := w.Snapshot()
	require.NoError(t, err)

	start := time.Now()
	_, err = w.Await(context.Background(), snap)
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeDownloadTimeout))
	assert.GreaterOrEqual(t, elapsed, 100*time.Millisecond)
	assert.Less(t, elapsed, 100*time.Millisecond+w.PollInterval+200*time.Millisecond)
}

func TestAwaitHonorsCancellation(t *testing.T) {
	w := fastWatcher(t.TempDir(), time.Minute)
	snap, err := w.Snapshot()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	_, err = w.Await(ctx, snap)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, apperrors.IsType(err, apperrors.ErrTypeDownloadTimeout))
}

func TestSnapshotOfMissingDirectory(t *testing.T) {
	w := fastWatcher(filepath.Join(t.TempDir(), "missing"), time.Second)
	snap, err := w.Snapshot()
	require.NoError(t, err)
	assert.Empty(t, snap.files)
}
