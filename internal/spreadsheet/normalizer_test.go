package spreadsheet

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	apperrors "wbreports/internal/errors"
)

var (
	oldHeader = []string{"Бренд", "Предмет", "Сезон", "Коллекция", "Наименование",
		"Артикул продавца", "Артикул WB", "Баркод", "Размер", "Контракт", "Склад",
		"шт.", "Сумма заказов минус комиссия WB, руб.", "шт.", "руб.", "шт."}
	dataRows = [][]string{
		{"MAU", "Платья", "Лето", "Base", "Платье", "SKU-1", "1001", "460000001", "42", "Основной", "Коледино", "3", "4500", "2", "3000", "10"},
		{"MAU", "Юбки", "Лето", "Base", "Юбка", "SKU-2", "1002", "460000002", "44", "Основной", "Казань", "1", "1500", "1", "1500", "4"},
		{"MAU", "Блузки", "Весна", "Base", "Блузка", "SKU-3", "1003", "460000003", "46", "Основной", "Тула", "0", "0", "0", "0", "7"},
	}
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setRow(t *testing.T, f *excelize.File, row int, values []string) {
	t.Helper()
	cells := make([]interface{}, len(values))
	for i, v := range values {
		cells[i] = v
	}
	require.NoError(t, f.SetSheetRow("Sheet1", fmt.Sprintf("A%d", row), &cells))
}

// exportFixture builds a workbook shaped like a console export: a title band
// in row 1 merged over the given ranges, the console headers in row 2 and
// data below.
func exportFixture(t *testing.T, merges ...[2]string) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	require.NoError(t, f.SetCellValue("Sheet1", "A1", "Отчёт о продажах"))
	require.NoError(t, f.SetCellValue("Sheet1", "L1", "Заказано"))
	for _, m := range merges {
		require.NoError(t, f.MergeCell("Sheet1", m[0], m[1]))
	}
	setRow(t, f, 2, oldHeader)
	for i, r := range dataRows {
		setRow(t, f, i+3, r)
	}

	path := filepath.Join(t.TempDir(), "export.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func readRows(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(f.GetSheetName(f.GetActiveSheetIndex()))
	require.NoError(t, err)
	return rows
}

func TestNormalizeMergedTitleRow(t *testing.T) {
	tests := []struct {
		name   string
		merges [][2]string
	}{
		{name: "no merges"},
		{name: "one merge", merges: [][2]string{{"A1", "P1"}}},
		{name: "three merges", merges: [][2]string{{"A1", "D1"}, {"E1", "K1"}, {"L1", "P1"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := exportFixture(t, tt.merges...)

			res, err := NewNormalizer(nil, quietLogger()).Normalize(context.Background(), path)
			require.NoError(t, err)
			assert.True(t, res.Verified(), "mismatches: %v", res.Mismatches)
			assert.Len(t, res.Unmerged, len(tt.merges))

			rows := readRows(t, path)
			require.Len(t, rows, 1+len(dataRows))
			if diff := cmp.Diff(CanonicalHeader, rows[0]); diff != "" {
				t.Errorf("header mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(dataRows, rows[1:]); diff != "" {
				t.Errorf("data rows changed (-want +got):\n%s", diff)
			}

			f, err := excelize.OpenFile(path)
			require.NoError(t, err)
			defer f.Close()
			merges, err := f.GetMergeCells("Sheet1")
			require.NoError(t, err)
			assert.Empty(t, merges)
		})
	}
}

func TestNormalizeLeavesMergesOutsideRowOne(t *testing.T) {
	f := excelize.NewFile()
	require.NoError(t, f.SetCellValue("Sheet1", "A1", "Отчёт"))
	require.NoError(t, f.MergeCell("Sheet1", "A1", "P1"))
	setRow(t, f, 2, oldHeader)
	for i, r := range dataRows {
		setRow(t, f, i+3, r)
	}
	require.NoError(t, f.MergeCell("Sheet1", "K3", "K4"))
	path := filepath.Join(t.TempDir(), "export.xlsx")
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	res, err := NewNormalizer(nil, quietLogger()).Normalize(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, []string{"A1:P1"}, res.Unmerged)

	out, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer out.Close()
	merges, err := out.GetMergeCells("Sheet1")
	require.NoError(t, err)
	assert.Len(t, merges, 1, "data-area merge must survive")
}

func TestNormalizeTwiceDropsFirstDataRow(t *testing.T) {
	path := exportFixture(t, [2]string{"A1", "P1"})
	n := NewNormalizer(nil, quietLogger())

	_, err := n.Normalize(context.Background(), path)
	require.NoError(t, err)
	_, err = n.Normalize(context.Background(), path)
	require.NoError(t, err)

	rows := readRows(t, path)
	if diff := cmp.Diff(CanonicalHeader, rows[0]); diff != "" {
		t.Errorf("header mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(dataRows[1:], rows[1:]); diff != "" {
		t.Errorf("second pass should have consumed the first data row (-want +got):\n%s", diff)
	}
}

func TestNormalizeCustomHeader(t *testing.T) {
	path := exportFixture(t)
	header := make([]string, ColumnCount)
	for i := range header {
		header[i] = fmt.Sprintf("col%d", i+1)
	}

	n := NewNormalizer(header, quietLogger())
	res, err := n.Normalize(context.Background(), path)
	require.NoError(t, err)
	assert.True(t, res.Verified())
	assert.Equal(t, header, readRows(t, path)[0])
}

func TestNormalizeMissingFile(t *testing.T) {
	_, err := NewNormalizer(nil, quietLogger()).Normalize(context.Background(), filepath.Join(t.TempDir(), "nope.xlsx"))
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeStorage))
}

func TestLoadHeader(t *testing.T) {
	dir := t.TempDir()

	good := excelize.NewFile()
	setRow(t, good, 1, CanonicalHeader)
	goodPath := filepath.Join(dir, "header.xlsx")
	require.NoError(t, good.SaveAs(goodPath))
	require.NoError(t, good.Close())

	header, err := LoadHeader(goodPath)
	require.NoError(t, err)
	assert.Equal(t, CanonicalHeader, header)

	short := excelize.NewFile()
	setRow(t, short, 1, CanonicalHeader[:5])
	shortPath := filepath.Join(dir, "short.xlsx")
	require.NoError(t, short.SaveAs(shortPath))
	require.NoError(t, short.Close())

	_, err = LoadHeader(shortPath)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeParsing))

	_, err = LoadHeader(filepath.Join(dir, "missing.xlsx"))
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeStorage))
}

func TestMismatchString(t *testing.T) {
	m := Mismatch{Cell: "B1", Expected: "Предмет", Got: ""}
	assert.Equal(t, `B1: expected "Предмет", got ""`, m.String())
}
