package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"wbreports/internal/auth"
	"wbreports/internal/config"
	"wbreports/internal/session"
	"wbreports/internal/validation"
)

var runFlags struct {
	date string
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Download, normalize and archive the sales report of every cabinet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			date, err := reportDate(runFlags.date, time.Now())
			if err != nil {
				return err
			}
			a, err := setup()
			if err != nil {
				return err
			}
			defer a.close()

			ctx, stop := signalContext(cmd.Context())
			defer stop()

			summary, err := a.runSession(ctx, date)
			if summary != nil && len(summary.Outcomes) > 0 {
				summary.Render(cmd.OutOrStdout())
			}
			a.logArchive(date)
			if err != nil {
				return interrupted(ctx, err)
			}
			return summary.Err()
		},
	}
	cmd.Flags().StringVar(&runFlags.date, "date", "", "report date as DD.MM.YYYY (default: yesterday)")
	return cmd
}

// runSession performs one browser session for date.
func (a *app) runSession(ctx context.Context, date time.Time) (*session.Summary, error) {
	opts := session.NewOptions(a.cfg, a.paths)
	opts.Header = a.header()

	orch := session.New(opts, a.driverFactory(), auth.NewPromptCodeProvider(os.Stdin, os.Stdout), a.logger).
		WithTelemetry(a.telemetry)

	pub, err := a.publisher(ctx)
	if err != nil {
		a.logger.Warn("Sheets upload disabled", slog.String("error", err.Error()))
	} else if pub != nil {
		orch = orch.WithPublisher(pub)
	}

	a.logger.InfoContext(ctx, "Report run requested",
		slog.String("date", date.Format(config.DateLayout)),
		slog.Int("cabinets", len(opts.Cabinets)))
	return orch.Execute(ctx, date)
}

// logArchive reports how many reports the date folder holds.
func (a *app) logArchive(date time.Time) {
	dir := config.ArchiveDateDir(a.paths.ArchiveDir, date)
	if !config.FileExists(dir) {
		return
	}
	n, err := validation.NewFileValidator(a.logger).CountFiles(dir, "*.xlsx")
	if err != nil {
		return
	}
	a.logger.Info("Archive folder", slog.String("dir", dir), slog.Int("reports", n))
}
