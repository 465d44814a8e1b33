// Package cabinet downloads one cabinet's sales report from the console.
//
// A run selects the cabinet, clears previously generated reports, sets the
// report date, exports the spreadsheet and then renames, normalizes and
// archives it. Every failure aborts the run and names the cabinet and step.
package cabinet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"wbreports/internal/browser"
	"wbreports/internal/config"
	"wbreports/internal/console"
	"wbreports/internal/download"
	"wbreports/internal/files"
	"wbreports/internal/infrastructure"
	"wbreports/internal/spreadsheet"
)

// Step names a stage of a cabinet run.
type Step string

const (
	StepOpenSelector   Step = "open_selector"
	StepSelectCabinet  Step = "select_cabinet"
	StepDeleteStale    Step = "delete_stale_reports"
	StepSetDates       Step = "set_dates"
	StepClearDownloads Step = "clear_downloads"
	StepExport         Step = "export"
	StepAwaitDownload  Step = "await_download"
	StepRename         Step = "rename"
	StepNormalize      Step = "normalize"
	StepArchive        Step = "archive"
)

// StepError is a failed cabinet run.
type StepError struct {
	Cabinet string
	Step    Step
	Err     error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("cabinet %s: step %s: %v", e.Cabinet, e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Request is one cabinet's report for one date.
type Request struct {
	Cabinet     config.Cabinet
	Date        time.Time
	DownloadDir string
	ArchiveDir  string
}

// Result describes a finished cabinet run.
type Result struct {
	Cabinet     config.Cabinet
	Download    *download.File
	WorkingFile string
	ArchiveFile string
	Header      *spreadsheet.Result
	Duration    time.Duration
}

// Options tunes waits of a cabinet run.
type Options struct {
	// OptionalWait bounds lookups of controls that may be absent.
	OptionalWait    time.Duration
	DownloadTimeout time.Duration
	PollInterval    time.Duration
	SampleInterval  time.Duration
	Samples         int
	// MaxStaleReports caps how many generated reports are deleted per run.
	MaxStaleReports int
}

// DefaultOptions returns the production waits.
func DefaultOptions() Options {
	return Options{
		OptionalWait:    3 * time.Second,
		DownloadTimeout: download.DefaultTimeout,
		PollInterval:    download.DefaultPollInterval,
		SampleInterval:  download.DefaultSampleInterval,
		Samples:         download.DefaultSamples,
		MaxStaleReports: 10,
	}
}

// Flow runs cabinet requests on one browser session.
type Flow struct {
	actor      *browser.Actor
	normalizer *spreadsheet.Normalizer
	files      *files.Manager
	dumper     *browser.PageDumper
	opts       Options
	tracer     trace.Tracer
	metrics    *infrastructure.RunMetrics
	logger     *slog.Logger
	cabinets   config.CabinetList
}

// NewFlow returns a cabinet flow.
func NewFlow(actor *browser.Actor, normalizer *spreadsheet.Normalizer, fm *files.Manager, opts Options, logger *slog.Logger) *Flow {
	if logger == nil {
		logger = slog.Default()
	}
	return &Flow{
		actor:      actor,
		normalizer: normalizer,
		files:      fm,
		opts:       opts,
		tracer:     tracenoop.NewTracerProvider().Tracer(infrastructure.MeterName),
		logger:     logger.With(slog.String("component", "cabinet")),
	}
}

// WithTelemetry traces runs and records download waits through t.
func (f *Flow) WithTelemetry(t *infrastructure.Telemetry) *Flow {
	if t != nil {
		f.tracer = t.Tracer
		f.metrics = t.Metrics
	}
	return f
}

// WithCabinets names the cabinets whose working copies survive download
// clearing, in addition to the requested one.
func (f *Flow) WithCabinets(l config.CabinetList) *Flow {
	f.cabinets = l
	return f
}

// WithPageDumps saves the page on failure.
func (f *Flow) WithPageDumps(d *browser.PageDumper) *Flow {
	f.dumper = d
	return f
}

func (f *Flow) watcher(dir string) *download.Watcher {
	w := download.NewWatcher(dir, f.opts.DownloadTimeout, f.logger).WithMetrics(f.metrics)
	if f.opts.PollInterval > 0 {
		w.PollInterval = f.opts.PollInterval
	}
	if f.opts.SampleInterval > 0 {
		w.SampleInterval = f.opts.SampleInterval
	}
	if f.opts.Samples > 0 {
		w.Samples = f.opts.Samples
	}
	return w
}

// Run downloads, normalizes and archives the report for req.
func (f *Flow) Run(ctx context.Context, req Request) (res *Result, err error) {
	start := time.Now()
	date := req.Date.Format(config.DateLayout)
	logger := f.logger.With(
		slog.String("cabinet", req.Cabinet.Name),
		slog.String("cabinet_id", req.Cabinet.ID),
		slog.String("date", date))

	ctx, span := f.tracer.Start(ctx, "cabinet.run", trace.WithAttributes(
		attribute.String("cabinet", req.Cabinet.Name),
		attribute.String("date", date)))
	defer func() {
		if err != nil {
			infrastructure.RecordError(ctx, err)
			f.dump(ctx, req.Cabinet, err)
		}
		f.metrics.RecordCabinet(ctx, req.Cabinet.Name, err == nil, time.Since(start))
		span.End()
	}()

	fail := func(step Step, cause error) error {
		return &StepError{Cabinet: req.Cabinet.Name, Step: step, Err: cause}
	}

	logger.InfoContext(ctx, "Processing cabinet")

	if _, err := f.actor.ClickIfPresent(ctx, console.CabinetToggle, f.opts.OptionalWait); err != nil {
		return nil, fail(StepOpenSelector, err)
	}

	if err := f.selectCabinet(ctx, req.Cabinet); err != nil {
		return nil, fail(StepSelectCabinet, err)
	}

	if err := f.deleteStaleReports(ctx, logger); err != nil {
		return nil, fail(StepDeleteStale, err)
	}

	if err := f.setDates(ctx, date); err != nil {
		return nil, fail(StepSetDates, err)
	}

	if _, err := f.files.ClearMatching(req.DownloadDir, files.NewDiscovery(".xlsx"), f.workingFiles(req.Cabinet)); err != nil {
		return nil, fail(StepClearDownloads, err)
	}

	w := f.watcher(req.DownloadDir)
	snap, err := w.Snapshot()
	if err != nil {
		return nil, fail(StepExport, err)
	}
	if err := f.actor.Click(ctx, console.ExportButton); err != nil {
		return nil, fail(StepExport, err)
	}
	file, err := w.Await(ctx, snap)
	if err != nil {
		return nil, fail(StepAwaitDownload, err)
	}

	res = &Result{Cabinet: req.Cabinet, Download: file}

	res.WorkingFile = config.WorkingFilePath(req.DownloadDir, req.Cabinet.Name, req.Date)
	if err := f.files.MoveFile(file.Path, res.WorkingFile); err != nil {
		return nil, fail(StepRename, err)
	}

	header, err := f.normalizer.Normalize(ctx, res.WorkingFile)
	if err != nil {
		return nil, fail(StepNormalize, err)
	}
	res.Header = header

	res.ArchiveFile = config.ArchiveFilePath(req.ArchiveDir, req.Cabinet.Name, req.Date)
	if err := f.files.CopyFile(res.WorkingFile, res.ArchiveFile); err != nil {
		return nil, fail(StepArchive, err)
	}

	res.Duration = time.Since(start)
	logger.InfoContext(ctx, "Cabinet report archived",
		slog.String("archive", res.ArchiveFile),
		slog.Int64("size", file.Size),
		slog.Duration("duration", res.Duration))
	return res, nil
}

// workingFiles matches "{Name} {DD.MM.YYYY}.xlsx" for the known cabinet
// names: the renamed reports of this and earlier runs, which clearing leaves
// in place.
func (f *Flow) workingFiles(current config.Cabinet) func(files.FileInfo) bool {
	names := []string{regexp.QuoteMeta(current.Name)}
	for _, c := range f.cabinets {
		if c.Name != current.Name {
			names = append(names, regexp.QuoteMeta(c.Name))
		}
	}
	re := regexp.MustCompile(`^(?:` + strings.Join(names, "|") + `) \d{2}\.\d{2}\.\d{4}\.xlsx$`)
	return func(fi files.FileInfo) bool {
		return re.MatchString(fi.Name)
	}
}

func (f *Flow) selectCabinet(ctx context.Context, cab config.Cabinet) error {
	if err := f.actor.Type(ctx, console.CabinetSearch, cab.ID, true); err != nil {
		return err
	}
	if err := f.actor.BetweenActions(ctx); err != nil {
		return err
	}
	if err := f.actor.Click(ctx, console.CabinetOption(cab.ID)); err != nil {
		return err
	}
	return f.actor.WaitForPageLoad(ctx)
}

// deleteStaleReports removes reports generated by earlier runs so the export
// produces a fresh file. Absent controls end the loop.
func (f *Flow) deleteStaleReports(ctx context.Context, logger *slog.Logger) error {
	deleted := 0
	for deleted < f.opts.MaxStaleReports {
		found, err := f.actor.ClickIfPresent(ctx, console.StaleReportDelete, f.opts.OptionalWait)
		if err != nil {
			if ctx.Err() != nil {
				return err
			}
			logger.WarnContext(ctx, "Could not delete generated report", slog.String("error", err.Error()))
			break
		}
		if !found {
			break
		}
		if _, err := f.actor.ClickIfPresent(ctx, console.ConfirmDelete, f.opts.OptionalWait); err != nil {
			if ctx.Err() != nil {
				return err
			}
			logger.WarnContext(ctx, "Delete confirmation failed", slog.String("error", err.Error()))
		}
		deleted++
	}
	if deleted > 0 {
		logger.InfoContext(ctx, "Deleted generated reports", slog.Int("count", deleted))
	}
	return nil
}

func (f *Flow) setDates(ctx context.Context, date string) error {
	if err := f.actor.Click(ctx, console.DateRangeButton); err != nil {
		return err
	}
	if err := f.actor.Type(ctx, console.StartDate, date, true); err != nil {
		return err
	}
	if err := f.actor.Type(ctx, console.EndDate, date, true); err != nil {
		return err
	}
	if err := f.actor.Click(ctx, console.SaveDates); err != nil {
		return err
	}
	return f.actor.WaitForPageLoad(ctx)
}

func (f *Flow) dump(ctx context.Context, cab config.Cabinet, cause error) {
	if f.dumper == nil {
		return
	}
	label := cab.Name
	var se *StepError
	if errors.As(cause, &se) {
		label = fmt.Sprintf("%s_%s", cab.Name, se.Step)
	}
	dumpCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if _, _, err := f.dumper.Dump(dumpCtx, f.actor.Driver(), label); err != nil {
		f.logger.DebugContext(ctx, "Page dump failed", slog.String("error", err.Error()))
	}
}
