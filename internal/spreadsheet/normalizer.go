package spreadsheet

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xuri/excelize/v2"

	apperrors "wbreports/internal/errors"
	"wbreports/internal/infrastructure"
)

// Mismatch is a header cell that did not read back as written.
type Mismatch struct {
	Cell     string
	Expected string
	Got      string
}

func (m Mismatch) String() string {
	return fmt.Sprintf("%s: expected %q, got %q", m.Cell, m.Expected, m.Got)
}

// Result describes one normalized file.
type Result struct {
	Path  string
	Sheet string
	// Unmerged lists the row-1 ranges that were split, e.g. "A1:P1".
	Unmerged   []string
	Mismatches []Mismatch
}

// Verified reports whether every header cell read back as written.
func (r *Result) Verified() bool {
	return len(r.Mismatches) == 0
}

// Normalizer rewrites report headers in place.
type Normalizer struct {
	header  []string
	logger  *slog.Logger
	metrics *infrastructure.RunMetrics
}

// NewNormalizer writes header, or CanonicalHeader when header is nil.
func NewNormalizer(header []string, logger *slog.Logger) *Normalizer {
	if header == nil {
		header = CanonicalHeader
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{
		header: header,
		logger: logger.With(slog.String("component", "spreadsheet")),
	}
}

// WithMetrics counts normalized files on m.
func (n *Normalizer) WithMetrics(m *infrastructure.RunMetrics) *Normalizer {
	n.metrics = m
	return n
}

// Header returns the header the normalizer writes.
func (n *Normalizer) Header() []string {
	return n.header
}

// Normalize splits the merged ranges of row 1, deletes row 1, writes the
// header into the new row 1 and saves. The file is then reopened to verify
// the header; mismatches are returned in the result and logged, not treated
// as errors.
func (n *Normalizer) Normalize(ctx context.Context, path string) (*Result, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to open workbook", err).WithContext("path", path)
	}

	res := &Result{Path: path, Sheet: f.GetSheetName(f.GetActiveSheetIndex())}
	if err := n.rewrite(f, res); err != nil {
		f.Close()
		return nil, err
	}
	if err := f.Save(); err != nil {
		f.Close()
		return nil, apperrors.NewStorageError("failed to save workbook", err).WithContext("path", path)
	}
	if err := f.Close(); err != nil {
		return nil, apperrors.NewStorageError("failed to close workbook", err).WithContext("path", path)
	}

	mismatches, err := n.verify(path, res.Sheet)
	if err != nil {
		return nil, err
	}
	res.Mismatches = mismatches

	if len(mismatches) > 0 {
		for _, m := range mismatches {
			n.logger.WarnContext(ctx, "Header verification mismatch",
				slog.String("file", path),
				slog.String("cell", m.Cell),
				slog.String("expected", m.Expected),
				slog.String("got", m.Got))
		}
	} else {
		n.logger.InfoContext(ctx, "Header normalized",
			slog.String("file", path),
			slog.Int("unmerged", len(res.Unmerged)))
	}
	n.metrics.RecordNormalized(ctx)
	return res, nil
}

func (n *Normalizer) rewrite(f *excelize.File, res *Result) error {
	merges, err := f.GetMergeCells(res.Sheet)
	if err != nil {
		return apperrors.NewParsingError("failed to read merged cells", err).WithContext("path", res.Path)
	}

	for _, mc := range merges {
		start, end := mc.GetStartAxis(), mc.GetEndAxis()
		_, top, err := excelize.CellNameToCoordinates(start)
		if err != nil {
			return apperrors.NewParsingError("bad merged range", err).WithContext("range", start+":"+end)
		}
		_, bottom, err := excelize.CellNameToCoordinates(end)
		if err != nil {
			return apperrors.NewParsingError("bad merged range", err).WithContext("range", start+":"+end)
		}
		// Only ranges wholly inside row 1.
		if top != 1 || bottom != 1 {
			continue
		}
		if err := f.UnmergeCell(res.Sheet, start, end); err != nil {
			return apperrors.NewStorageError("failed to unmerge cells", err).WithContext("range", start+":"+end)
		}
		res.Unmerged = append(res.Unmerged, start+":"+end)
	}

	if err := f.RemoveRow(res.Sheet, 1); err != nil {
		return apperrors.NewStorageError("failed to remove title row", err).WithContext("path", res.Path)
	}

	row := make([]interface{}, len(n.header))
	for i, h := range n.header {
		row[i] = h
	}
	if err := f.SetSheetRow(res.Sheet, "A1", &row); err != nil {
		return apperrors.NewStorageError("failed to write header row", err).WithContext("path", res.Path)
	}
	return nil
}

func (n *Normalizer) verify(path, sheet string) ([]Mismatch, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to reopen workbook", err).WithContext("path", path)
	}
	defer f.Close()

	var mismatches []Mismatch
	for i, want := range n.header {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		got, err := f.GetCellValue(sheet, cell)
		if err != nil {
			return nil, apperrors.NewParsingError("failed to read header cell", err).WithContext("cell", cell)
		}
		if got != want {
			mismatches = append(mismatches, Mismatch{Cell: cell, Expected: want, Got: got})
		}
	}
	return mismatches, nil
}
