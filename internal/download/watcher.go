// Package download detects when the browser has finished writing an exported
// report into the download directory.
//
// A Snapshot is taken before the export is triggered. Await then polls the
// directory for a spreadsheet that is new, or was rewritten, since the
// snapshot and whose size stays the same over several samples.
package download

import (
	"context"
	"errors"
	"log/slog"
	"time"

	apperrors "wbreports/internal/errors"
	"wbreports/internal/files"
	"wbreports/internal/infrastructure"
	"wbreports/internal/retry"
)

// Default polling parameters.
const (
	DefaultPollInterval   = time.Second
	DefaultSampleInterval = time.Second
	DefaultSamples        = 3
	DefaultTimeout        = 60 * time.Second
)

// File is a completed download.
type File struct {
	Path string
	Size int64
	// Samples are the size observations that proved the file stable.
	Samples []int64
}

// Snapshot records the modification times of the files present before an
// export was triggered.
type Snapshot struct {
	Taken time.Time
	files map[string]time.Time
}

// Watcher waits for a finished download in a single directory.
type Watcher struct {
	Dir            string
	PollInterval   time.Duration
	SampleInterval time.Duration
	Samples        int
	Timeout        time.Duration

	discovery *files.Discovery
	logger    *slog.Logger
	metrics   *infrastructure.RunMetrics
}

// NewWatcher watches dir for files with the given extensions, ".xlsx" when
// none are given.
func NewWatcher(dir string, timeout time.Duration, logger *slog.Logger, extensions ...string) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	if len(extensions) == 0 {
		extensions = []string{".xlsx"}
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Watcher{
		Dir:            dir,
		PollInterval:   DefaultPollInterval,
		SampleInterval: DefaultSampleInterval,
		Samples:        DefaultSamples,
		Timeout:        timeout,
		discovery:      files.NewDiscovery(extensions...),
		logger:         logger.With(slog.String("component", "download")),
	}
}

// WithMetrics records download waits on m.
func (w *Watcher) WithMetrics(m *infrastructure.RunMetrics) *Watcher {
	w.metrics = m
	return w
}

// Snapshot lists the directory as it is now.
func (w *Watcher) Snapshot() (Snapshot, error) {
	found, err := w.discovery.Find(w.Dir)
	if err != nil {
		return Snapshot{}, apperrors.NewStorageError("failed to snapshot download directory", err).
			WithContext("dir", w.Dir)
	}
	snap := Snapshot{Taken: time.Now(), files: make(map[string]time.Time, len(found))}
	for _, f := range found {
		snap.files[f.Path] = f.ModTime
	}
	return snap, nil
}

// candidate returns the newest file that appeared or changed since snap.
func (w *Watcher) candidate(snap Snapshot) (files.FileInfo, bool, error) {
	found, err := w.discovery.Find(w.Dir)
	if err != nil {
		return files.FileInfo{}, false, err
	}
	var fresh []files.FileInfo
	for _, f := range found {
		if f.Size <= 0 {
			continue
		}
		if prev, seen := snap.files[f.Path]; seen && !f.ModTime.After(prev) {
			continue
		}
		fresh = append(fresh, f)
	}
	latest, ok := files.GetLatestFile(fresh)
	return latest, ok, nil
}

// stable samples the size of path and reports whether all samples were equal
// and positive.
func (w *Watcher) stable(ctx context.Context, path string) ([]int64, bool, error) {
	samples := make([]int64, 0, w.Samples)
	for i := 0; i < w.Samples; i++ {
		if i > 0 {
			if err := retry.Sleep(ctx, w.SampleInterval); err != nil {
				return samples, false, err
			}
		}
		size, ok := fileSize(path)
		if !ok || size <= 0 {
			return samples, false, nil
		}
		samples = append(samples, size)
		if size != samples[0] {
			return samples, false, nil
		}
	}
	return samples, true, nil
}

// Await blocks until a download completes, the timeout elapses or ctx is
// cancelled. Timing out yields a DOWNLOAD_TIMEOUT error; cancellation
// returns the context error.
func (w *Watcher) Await(ctx context.Context, snap Snapshot) (*File, error) {
	start := time.Now()
	waitCtx, cancel := context.WithTimeout(ctx, w.Timeout)
	defer cancel()

	w.logger.InfoContext(ctx, "Waiting for download",
		slog.String("dir", w.Dir),
		slog.Duration("timeout", w.Timeout))

	for {
		f, ok, err := w.candidate(snap)
		if err != nil {
			w.logger.DebugContext(ctx, "Download directory scan failed", slog.String("error", err.Error()))
		}
		if ok {
			samples, done, err := w.stable(waitCtx, f.Path)
			if err == nil && done {
				elapsed := time.Since(start)
				w.metrics.RecordDownloadWait(ctx, elapsed)
				w.logger.InfoContext(ctx, "Download complete",
					slog.String("file", f.Path),
					slog.Int64("size", samples[len(samples)-1]),
					slog.Duration("elapsed", elapsed))
				return &File{Path: f.Path, Size: samples[len(samples)-1], Samples: samples}, nil
			}
			if err == nil {
				w.logger.DebugContext(ctx, "Download still growing",
					slog.String("file", f.Path),
					slog.Any("samples", samples))
			}
		}

		if err := retry.Sleep(waitCtx, w.PollInterval); err != nil {
			return nil, w.waitError(ctx, err)
		}
	}
}

func (w *Watcher) waitError(parent context.Context, err error) error {
	if parentErr := parent.Err(); parentErr != nil {
		return parentErr
	}
	if errors.Is(err, context.DeadlineExceeded) {
		w.logger.Warn("Download timed out",
			slog.String("dir", w.Dir),
			slog.Duration("timeout", w.Timeout))
		return apperrors.NewDownloadTimeoutError(w.Dir, err).WithContext("timeout", w.Timeout.String())
	}
	return err
}
