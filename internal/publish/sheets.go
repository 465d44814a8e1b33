// Package publish uploads archived reports to Google Sheets.
package publish

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"wbreports/internal/config"
	apperrors "wbreports/internal/errors"
)

// SheetsPublisher appends report rows to a spreadsheet tab named after the
// cabinet. Missing tabs are created with the report header.
type SheetsPublisher struct {
	service       *sheets.Service
	spreadsheetID string
	logger        *slog.Logger
}

// NewSheetsPublisher creates the Sheets client. opts are passed through to
// the client, e.g. option.WithCredentialsFile.
func NewSheetsPublisher(ctx context.Context, spreadsheetID string, logger *slog.Logger, opts ...option.ClientOption) (*SheetsPublisher, error) {
	if spreadsheetID == "" {
		return nil, apperrors.NewConfigError("spreadsheet id is required", nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, apperrors.NewConfigError("failed to create sheets service", err)
	}
	return &SheetsPublisher{
		service:       svc,
		spreadsheetID: spreadsheetID,
		logger:        logger.With(slog.String("component", "publish")),
	}, nil
}

// FromConfig builds a publisher from cfg, or returns nil when uploads are
// disabled.
func FromConfig(ctx context.Context, cfg config.SheetsConfig, credentialsFile string, logger *slog.Logger) (*SheetsPublisher, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}
	return NewSheetsPublisher(ctx, cfg.SpreadsheetID, logger, opts...)
}

// Publish appends the data rows of the xlsx at path to the cabinet's tab.
func (p *SheetsPublisher) Publish(ctx context.Context, cab config.Cabinet, date time.Time, path string) error {
	header, rows, err := readRows(path)
	if err != nil {
		return err
	}

	created, err := p.ensureTab(ctx, cab.Name)
	if err != nil {
		return err
	}

	values := make([][]interface{}, 0, len(rows)+1)
	if created {
		values = append(values, append([]interface{}{"Дата"}, header...))
	}
	stamp := date.Format(config.DateLayout)
	for _, r := range rows {
		values = append(values, append([]interface{}{stamp}, r...))
	}
	if len(values) == 0 {
		p.logger.InfoContext(ctx, "Nothing to publish", slog.String("cabinet", cab.Name))
		return nil
	}

	_, err = p.service.Spreadsheets.Values.Append(p.spreadsheetID, tabRange(cab.Name), &sheets.ValueRange{Values: values}).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return apperrors.NewNetworkError("failed to append rows", err).WithContext("cabinet", cab.Name)
	}

	p.logger.InfoContext(ctx, "Report published",
		slog.String("cabinet", cab.Name),
		slog.String("date", stamp),
		slog.Int("rows", len(rows)))
	return nil
}

// ensureTab creates the tab when missing and reports whether it did.
func (p *SheetsPublisher) ensureTab(ctx context.Context, title string) (bool, error) {
	doc, err := p.service.Spreadsheets.Get(p.spreadsheetID).
		Fields("sheets.properties.title").
		Context(ctx).
		Do()
	if err != nil {
		return false, apperrors.NewNetworkError("failed to read spreadsheet", err)
	}
	for _, s := range doc.Sheets {
		if s.Properties != nil && s.Properties.Title == title {
			return false, nil
		}
	}

	req := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			AddSheet: &sheets.AddSheetRequest{Properties: &sheets.SheetProperties{Title: title}},
		}},
	}
	if _, err := p.service.Spreadsheets.BatchUpdate(p.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return false, apperrors.NewNetworkError("failed to add tab", err).WithContext("tab", title)
	}
	p.logger.InfoContext(ctx, "Tab created", slog.String("tab", title))
	return true, nil
}

func tabRange(title string) string {
	return fmt.Sprintf("'%s'!A1", title)
}

// readRows returns the first row of the active sheet and the rest.
func readRows(path string) ([]interface{}, [][]interface{}, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, nil, apperrors.NewStorageError("failed to open report", err).WithContext("path", path)
	}
	defer f.Close()

	all, err := f.GetRows(f.GetSheetName(f.GetActiveSheetIndex()))
	if err != nil {
		return nil, nil, apperrors.NewParsingError("failed to read report", err).WithContext("path", path)
	}
	if len(all) == 0 {
		return nil, nil, nil
	}

	toCells := func(row []string) []interface{} {
		out := make([]interface{}, len(row))
		for i, v := range row {
			out[i] = v
		}
		return out
	}
	rows := make([][]interface{}, 0, len(all)-1)
	for _, r := range all[1:] {
		if len(r) == 0 {
			continue
		}
		rows = append(rows, toCells(r))
	}
	return toCells(all[0]), rows, nil
}
