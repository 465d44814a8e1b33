package wbapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"wbreports/internal/config"
	apperrors "wbreports/internal/errors"
	"wbreports/internal/infrastructure"
	"wbreports/internal/spreadsheet"
)

// Outcome is the API result of one cabinet.
type Outcome struct {
	Cabinet config.Cabinet
	Path    string
	Rows    int
	Source  string
	// Skipped is set when no token is configured for the cabinet.
	Skipped bool
	Err     error
}

// Publisher receives every written report.
type Publisher interface {
	Publish(ctx context.Context, cab config.Cabinet, date time.Time, path string) error
}

// Runner fetches the API report of each cabinet that has a token.
type Runner struct {
	api        config.APIConfig
	archiveDir string
	header     []string
	publisher  Publisher
	metrics    *infrastructure.RunMetrics
	logger     *slog.Logger
}

// NewRunner returns a runner writing under archiveDir. A nil header means
// the canonical one.
func NewRunner(api config.APIConfig, archiveDir string, header []string, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	if header == nil {
		header = spreadsheet.CanonicalHeader
	}
	return &Runner{
		api:        api,
		archiveDir: archiveDir,
		header:     header,
		logger:     logger.With(slog.String("component", "wbapi")),
	}
}

// WithMetrics records API requests on m.
func (r *Runner) WithMetrics(m *infrastructure.RunMetrics) *Runner {
	r.metrics = m
	return r
}

// WithPublisher uploads every written report through p.
func (r *Runner) WithPublisher(p Publisher) *Runner {
	r.publisher = p
	return r
}

// Run processes cabinets in order. A failing cabinet does not stop the
// others; the returned error joins every failure.
func (r *Runner) Run(ctx context.Context, cabinets config.CabinetList, date time.Time) ([]Outcome, error) {
	outcomes := make([]Outcome, 0, len(cabinets))
	var errs []error

	for _, cab := range cabinets {
		if err := ctx.Err(); err != nil {
			return outcomes, err
		}
		out := r.runCabinet(ctx, cab, date)
		outcomes = append(outcomes, out)
		if out.Err != nil {
			if ctx.Err() != nil {
				return outcomes, ctx.Err()
			}
			errs = append(errs, fmt.Errorf("cabinet %s: %w", cab.Name, out.Err))
		}
	}

	if len(errs) > 0 {
		return outcomes, errors.Join(errs...)
	}
	return outcomes, nil
}

func (r *Runner) runCabinet(ctx context.Context, cab config.Cabinet, date time.Time) Outcome {
	logger := r.logger.With(slog.String("cabinet", cab.Name))
	out := Outcome{Cabinet: cab}

	token := r.api.Tokens[cab.Name]
	if token == "" {
		logger.InfoContext(ctx, "No API token configured, skipping")
		out.Skipped = true
		return out
	}

	client := NewClient(ClientOptions{
		StatisticsURL: r.api.StatisticsURL,
		ContentURL:    r.api.ContentURL,
		Token:         token,
		Timeout:       r.api.Timeout,
		RPS:           r.api.RPS,
		Burst:         r.api.Burst,
		RetryCount:    r.api.RetryCount,
	}, logger).WithMetrics(r.metrics)

	report, err := NewFetcher(client, logger).Fetch(ctx, date)
	if err != nil {
		logger.ErrorContext(ctx, "API report failed",
			slog.String("error", err.Error()),
			slog.String("error_type", string(apperrors.TypeOf(err))))
		out.Err = err
		return out
	}

	out.Path = config.APIFilePath(r.archiveDir, cab.Name, date)
	out.Rows = len(report.Rows)
	out.Source = report.SalesSource
	if err := WriteXLSX(out.Path, r.header, report.Rows); err != nil {
		out.Err = err
		return out
	}
	logger.InfoContext(ctx, "API report written",
		slog.String("path", out.Path),
		slog.Int("rows", out.Rows))

	if r.publisher != nil {
		if err := r.publisher.Publish(ctx, cab, date, out.Path); err != nil {
			logger.WarnContext(ctx, "Publish failed", slog.String("error", err.Error()))
		}
	}
	return out
}
