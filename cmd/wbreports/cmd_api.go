package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"wbreports/internal/config"
	"wbreports/internal/wbapi"
)

var apiFlags struct {
	date string
}

func newAPICmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "api",
		Short: "Build the sales report from the marketplace API for cabinets with tokens",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			date, err := reportDate(apiFlags.date, time.Now())
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

			runner := wbapi.NewRunner(a.cfg.API, a.paths.ArchiveDir, a.header(), a.logger).
				WithMetrics(a.telemetry.Metrics)
			pub, err := a.publisher(ctx)
			if err != nil {
				a.logger.Warn("Sheets upload disabled", slog.String("error", err.Error()))
			} else if pub != nil {
				runner = runner.WithPublisher(pub)
			}

			outcomes, err := runner.Run(ctx, a.cfg.Cabinets, date)
			renderAPIOutcomes(cmd, date, outcomes)
			return interrupted(ctx, err)
		},
	}
	cmd.Flags().StringVar(&apiFlags.date, "date", "", "report date as DD.MM.YYYY (default: yesterday)")
	return cmd
}

func renderAPIOutcomes(cmd *cobra.Command, date time.Time, outcomes []wbapi.Outcome) {
	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.SetTitle(fmt.Sprintf("API reports for %s", date.Format(config.DateLayout)))
	t.AppendHeader(table.Row{"Cabinet", "Status", "Rows", "Source", "File"})
	for _, o := range outcomes {
		status, file := "ok", o.Path
		switch {
		case o.Skipped:
			status = "skipped"
		case o.Err != nil:
			status, file = "failed", o.Err.Error()
		}
		t.AppendRow(table.Row{o.Cabinet.Name, status, o.Rows, o.Source, file})
	}
	t.SetStyle(table.StyleRounded)
	t.Render()
}
