package main

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"wbreports/internal/spreadsheet"
	"wbreports/internal/validation"
)

func newNormalizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "normalize FILE...",
		Short: "Rewrite the header row of report files in place",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup()
			if err != nil {
				return err
			}
			defer a.close()

			ctx, stop := signalContext(cmd.Context())
			defer stop()

			v := validation.NewFileValidator(a.logger)
			n := spreadsheet.NewNormalizer(a.header(), a.logger).WithMetrics(a.telemetry.Metrics)

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.SetTitle("Header normalization")
			t.AppendHeader(table.Row{"File", "Unmerged", "Status"})

			failed := 0
			for _, path := range args {
				if err := ctx.Err(); err != nil {
					return errInterrupted
				}
				if err := v.ValidateExcelFile(path); err != nil {
					failed++
					t.AppendRow(table.Row{path, "", err.Error()})
					continue
				}
				res, err := n.Normalize(ctx, path)
				if err != nil {
					failed++
					t.AppendRow(table.Row{path, "", err.Error()})
					continue
				}
				status := "ok"
				if !res.Verified() {
					status = fmt.Sprintf("%d mismatches", len(res.Mismatches))
				}
				t.AppendRow(table.Row{path, strings.Join(res.Unmerged, ", "), status})
			}
			t.AppendFooter(table.Row{"", "", fmt.Sprintf("%d/%d ok", len(args)-failed, len(args))})
			t.SetStyle(table.StyleRounded)
			t.Style().Format.Footer = text.FormatDefault
			t.Render()

			if failed > 0 {
				return fmt.Errorf("%d of %d files failed", failed, len(args))
			}
			return nil
		},
	}
}
