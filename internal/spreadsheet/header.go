package spreadsheet

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	apperrors "wbreports/internal/errors"
)

// CanonicalHeader is the column layout A through P of a normalized report.
var CanonicalHeader = []string{
	"Бренд",
	"Предмет",
	"Сезон",
	"Коллекция",
	"Наименование",
	"Артикул поставщика",
	"Номенклатура",
	"Баркод",
	"Размер",
	"Контракт",
	"Склад",
	"Заказано шт",
	"Заказано себестоимость",
	"Выкупили шт",
	"Выкупили руб",
	"Текущий остаток",
}

// ColumnCount is the width of the canonical header.
var ColumnCount = len(CanonicalHeader)

// LoadHeader reads a replacement header from the first row of the active
// sheet of an xlsx template. The row must hold exactly ColumnCount non-empty
// cells.
func LoadHeader(path string) ([]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to open header template", err).WithContext("path", path)
	}
	defer f.Close()

	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, apperrors.NewParsingError("failed to read header template", err).WithContext("path", path)
	}
	if len(rows) == 0 {
		return nil, apperrors.NewParsingError("header template is empty", nil).WithContext("path", path)
	}

	header := make([]string, 0, ColumnCount)
	for _, cell := range rows[0] {
		cell = strings.TrimSpace(cell)
		if cell == "" {
			break
		}
		header = append(header, cell)
	}
	if len(header) != ColumnCount {
		return nil, apperrors.NewParsingError(
			fmt.Sprintf("header template has %d columns, want %d", len(header), ColumnCount), nil).
			WithContext("path", path)
	}
	return header, nil
}
