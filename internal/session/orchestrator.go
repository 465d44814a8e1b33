// Package session runs a full report session: it opens the browser, makes
// sure the console is signed in and downloads every cabinet's report in
// turn.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"wbreports/internal/auth"
	"wbreports/internal/browser"
	"wbreports/internal/cabinet"
	"wbreports/internal/config"
	"wbreports/internal/console"
	apperrors "wbreports/internal/errors"
	"wbreports/internal/files"
	"wbreports/internal/infrastructure"
	"wbreports/internal/pagestate"
	"wbreports/internal/retry"
	"wbreports/internal/spreadsheet"
)

// DriverFactory opens a browser session.
type DriverFactory func(ctx context.Context) (browser.Driver, error)

// Publisher uploads an archived report somewhere else.
type Publisher interface {
	Publish(ctx context.Context, cab config.Cabinet, date time.Time, path string) error
}

// Orchestrator owns the browser for the length of one run.
type Orchestrator struct {
	opts      Options
	factory   DriverFactory
	codes     auth.CodeProvider
	telemetry *infrastructure.Telemetry
	publisher Publisher
	logger    *slog.Logger
}

// New returns an orchestrator. codes supplies one-time sign-in codes.
func New(opts Options, factory DriverFactory, codes auth.CodeProvider, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		opts:      opts,
		factory:   factory,
		codes:     codes,
		telemetry: infrastructure.NoopTelemetry(),
		logger:    logger.With(slog.String("component", "session")),
	}
}

// WithTelemetry traces and measures runs through t.
func (o *Orchestrator) WithTelemetry(t *infrastructure.Telemetry) *Orchestrator {
	if t != nil {
		o.telemetry = t
	}
	return o
}

// WithPublisher uploads every archived report through p.
func (o *Orchestrator) WithPublisher(p Publisher) *Orchestrator {
	o.publisher = p
	return o
}

// run bundles the components bound to one live driver.
type run struct {
	driver   browser.Driver
	actor    *browser.Actor
	detector *pagestate.Detector
	signIn   *auth.Flow
	cabinets *cabinet.Flow
}

func (o *Orchestrator) bind(d browser.Driver) *run {
	logger := o.logger
	actor := browser.NewActor(d, o.opts.Delays, o.opts.ElementWait, logger)
	detector := pagestate.NewDetector(d, o.opts.AuthHosts, console.Landmarks, o.opts.ProbeTimeout, logger)

	optionalWait := o.opts.Cabinet.OptionalWait
	signIn := auth.NewFlow(actor, detector, o.codes, logger).WithMetrics(o.telemetry.Metrics)
	if optionalWait > 0 {
		signIn = signIn.WithOptionalWait(optionalWait)
	}

	flow := cabinet.NewFlow(actor,
		spreadsheet.NewNormalizer(o.opts.Header, logger).WithMetrics(o.telemetry.Metrics),
		files.NewManager(logger),
		o.opts.Cabinet,
		logger).WithTelemetry(o.telemetry).WithCabinets(o.opts.Cabinets)
	if o.opts.PagesDir != "" {
		flow = flow.WithPageDumps(browser.NewPageDumper(o.opts.PagesDir, logger))
	}

	return &run{driver: d, actor: actor, detector: detector, signIn: signIn, cabinets: flow}
}

// Execute downloads the report of every configured cabinet for date. A
// failing cabinet is recorded in the summary and the run moves on; the
// returned error is reserved for failures that end the whole run, such as a
// browser that will not start or a sign-in that does not complete. The
// browser is closed on every path.
func (o *Orchestrator) Execute(ctx context.Context, date time.Time) (summary *Summary, err error) {
	ctx = infrastructure.EnsureRunID(ctx)
	summary = &Summary{RunID: infrastructure.GetRunID(ctx), Date: date, Started: time.Now()}

	ctx, span := o.telemetry.Tracer.Start(ctx, "session.execute", trace.WithAttributes(
		attribute.String("date", date.Format(config.DateLayout)),
		attribute.Int("cabinets", len(o.opts.Cabinets))))
	defer func() {
		summary.Duration = time.Since(summary.Started)
		if err != nil {
			infrastructure.RecordError(ctx, err)
		}
		span.End()
	}()

	o.logger.InfoContext(ctx, "Starting report session",
		slog.String("date", date.Format(config.DateLayout)),
		slog.Int("cabinets", len(o.opts.Cabinets)))

	driver, err := o.factory(ctx)
	if err != nil {
		return summary, fmt.Errorf("failed to start browser: %w", err)
	}
	defer func() {
		if cerr := driver.Close(); cerr != nil {
			o.logger.Warn("Browser close failed", slog.String("error", cerr.Error()))
		}
		o.logger.Info("Browser closed")
	}()

	r := o.bind(driver)

	if err := driver.SetDownloadDir(ctx, o.opts.DownloadDir); err != nil {
		return summary, fmt.Errorf("failed to set download directory: %w", err)
	}
	if err := o.open(ctx, r); err != nil {
		return summary, err
	}

	for i, cab := range o.opts.Cabinets {
		if i > 0 {
			if err := r.actor.Pause(ctx, o.opts.BetweenCabinets); err != nil {
				return summary, err
			}
			if err := o.open(ctx, r); err != nil {
				return summary, err
			}
		}
		if err := o.ensureAuthorized(ctx, r); err != nil {
			return summary, err
		}

		outcome := o.processCabinet(ctx, r, cab, date)
		summary.Outcomes = append(summary.Outcomes, outcome)
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}
	}

	if failed := summary.Failed(); len(failed) > 0 {
		o.logger.WarnContext(ctx, "Report session finished with failures",
			slog.Int("failed", len(failed)),
			slog.Int("total", len(summary.Outcomes)))
	} else {
		o.logger.InfoContext(ctx, "Report session finished",
			slog.Int("total", len(summary.Outcomes)))
	}
	return summary, nil
}

// open navigates to the console root and waits for the page to settle.
func (o *Orchestrator) open(ctx context.Context, r *run) error {
	if err := r.driver.Navigate(ctx, o.opts.ConsoleURL); err != nil {
		return apperrors.NewNetworkError("failed to open console", err).WithContext("url", o.opts.ConsoleURL)
	}
	return r.actor.WaitForPageLoad(ctx)
}

// ensureAuthorized classifies the page until the reports page is showing,
// signing in when asked to. An unrecognised page is given time and reloaded.
func (o *Orchestrator) ensureAuthorized(ctx context.Context, r *run) error {
	cycles := o.opts.MaxAuthCycles
	if cycles < 1 {
		cycles = 1
	}

	for cycle := 1; cycle <= cycles; cycle++ {
		state := r.detector.Detect(ctx)
		if err := ctx.Err(); err != nil {
			return err
		}
		o.logger.DebugContext(ctx, "Page state",
			slog.String("state", state.String()),
			slog.Int("cycle", cycle))

		switch state {
		case pagestate.ReportsReady:
			return nil

		case pagestate.AuthRequired:
			o.logger.InfoContext(ctx, "Sign-in required", slog.Int("cycle", cycle))
			if err := r.signIn.Authenticate(ctx, o.opts.Phone); err != nil {
				return err
			}

		default:
			o.logger.WarnContext(ctx, "Unrecognised page, waiting",
				slog.Duration("backoff", o.opts.UnknownBackoff),
				slog.Int("cycle", cycle))
			if err := retry.Sleep(ctx, o.opts.UnknownBackoff); err != nil {
				return err
			}
			if err := o.open(ctx, r); err != nil {
				return err
			}
		}
	}
	return apperrors.NewAuthError(fmt.Sprintf("reports page not reached after %d attempts", cycles), nil).
		WithContext("cycles", cycles)
}

func (o *Orchestrator) processCabinet(ctx context.Context, r *run, cab config.Cabinet, date time.Time) Outcome {
	start := time.Now()
	res, err := r.cabinets.Run(ctx, cabinet.Request{
		Cabinet:     cab,
		Date:        date,
		DownloadDir: o.opts.DownloadDir,
		ArchiveDir:  o.opts.ArchiveDir,
	})
	outcome := Outcome{Cabinet: cab, Result: res, Err: err, Duration: time.Since(start)}

	if err != nil {
		var se *cabinet.StepError
		if errors.As(err, &se) {
			outcome.Step = se.Step
		}
		infrastructure.WithError(o.logger, err).ErrorContext(ctx, "Cabinet failed",
			slog.String("cabinet", cab.Name),
			slog.String("step", string(outcome.Step)),
			slog.String("error_type", string(apperrors.TypeOf(err))))
		return outcome
	}

	if o.publisher != nil {
		if perr := o.publisher.Publish(ctx, cab, date, res.ArchiveFile); perr != nil {
			outcome.PublishErr = perr
			o.logger.WarnContext(ctx, "Upload failed",
				slog.String("cabinet", cab.Name),
				slog.String("error", perr.Error()))
		}
	}
	return outcome
}
