package wbapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/xuri/excelize/v2"
	"golang.org/x/sync/errgroup"

	apperrors "wbreports/internal/errors"
)

// Report is the assembled API report of one cabinet and date.
type Report struct {
	Date time.Time
	// SalesSource is the path the sales lines came from.
	SalesSource string
	Rows        []Row
}

type rowKey struct {
	nmID      int64
	warehouse string
	size      string
}

type salesTotals struct {
	orderedQty  int
	orderedCost float64
	boughtQty   int
	boughtSum   float64
}

// BuildRows joins sales and stocks on (nmId, warehouse, size) and fills the
// descriptive columns from the product cards, falling back to what the sale
// or stock line itself carries. Rows are ordered by nmId, warehouse, size.
func BuildRows(sales []Sale, stocks []Stock, cards map[int64]Card) []Row {
	totals := make(map[rowKey]*salesTotals)
	fallback := make(map[rowKey]Card)

	remember := func(k rowKey, brand, subject, article, barcode string) {
		if _, ok := fallback[k]; ok {
			return
		}
		fallback[k] = Card{
			NmID: k.nmID, Brand: brand, Subject: subject, SupplierArticle: article,
			Sizes: []CardSize{{TechSize: k.size, Barcode: barcode}},
		}
	}

	for _, s := range sales {
		k := rowKey{s.NmID, s.WarehouseName, s.TechSize}
		t, ok := totals[k]
		if !ok {
			t = &salesTotals{}
			totals[k] = t
		}
		units := s.Units()
		t.orderedQty += units
		t.orderedCost += s.TotalPrice
		if s.BoughtOut() {
			t.boughtQty += units
			t.boughtSum += s.TotalPrice
		}
		remember(k, s.Brand, s.Subject, s.SupplierArticle, s.Barcode)
	}

	stock := make(map[rowKey]int)
	for _, s := range stocks {
		if len(s.Warehouses) > 0 {
			for _, wh := range s.Warehouses {
				k := rowKey{s.NmID, wh.WarehouseName, s.TechSize}
				stock[k] += wh.Quantity
				remember(k, s.Brand, s.Subject, s.SupplierArticle, s.Barcode)
			}
			continue
		}
		k := rowKey{s.NmID, s.WarehouseName, s.TechSize}
		stock[k] += s.Quantity
		remember(k, s.Brand, s.Subject, s.SupplierArticle, s.Barcode)
	}

	keys := make([]rowKey, 0, len(fallback))
	for k := range fallback {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.nmID != b.nmID {
			return a.nmID < b.nmID
		}
		if a.warehouse != b.warehouse {
			return a.warehouse < b.warehouse
		}
		return a.size < b.size
	})

	rows := make([]Row, 0, len(keys))
	for _, k := range keys {
		card, hasCard := cards[k.nmID]
		fb := fallback[k]
		t := totals[k]
		if t == nil {
			t = &salesTotals{}
		}

		row := Row{
			NmID:        k.nmID,
			Size:        k.size,
			Warehouse:   k.warehouse,
			OrderedQty:  t.orderedQty,
			OrderedCost: t.orderedCost,
			BoughtQty:   t.boughtQty,
			BoughtSum:   t.boughtSum,
			Stock:       stock[k],
		}
		if hasCard {
			row.Brand = firstNonEmpty(card.Brand, fb.Brand)
			row.Subject = firstNonEmpty(card.SubjectOf(), fb.Subject)
			row.Season = card.Season
			row.Collection = card.Collection
			row.Name = card.Name()
			row.SupplierArticle = firstNonEmpty(card.Article(), fb.SupplierArticle)
			row.Barcode = firstNonEmpty(card.BarcodeFor(k.size), fb.BarcodeFor(k.size))
		} else {
			row.Brand = fb.Brand
			row.Subject = fb.Subject
			row.SupplierArticle = fb.SupplierArticle
			row.Barcode = fb.BarcodeFor(k.size)
		}
		rows = append(rows, row)
	}
	return rows
}

// Fetcher assembles reports through a Client.
type Fetcher struct {
	client        *Client
	cardsPageSize int
	logger        *slog.Logger
}

// NewFetcher returns a fetcher using c.
func NewFetcher(c *Client, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{client: c, cardsPageSize: 1000, logger: logger.With(slog.String("component", "wbapi"))}
}

// Fetch loads sales, stocks and cards for date concurrently and builds the
// report. Sales are required; when the sales endpoint has nothing, the
// reportDetailByPeriod versions are probed in order. Missing stocks or
// cards only leave their columns empty.
func (f *Fetcher) Fetch(ctx context.Context, date time.Time) (*Report, error) {
	var (
		sales  []Sale
		source string
		stocks []Stock
		cards  map[int64]Card
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		sales, source, err = f.sales(gctx, date)
		return err
	})
	g.Go(func() error {
		var err error
		stocks, err = f.client.Stocks(gctx, date)
		if err != nil && gctx.Err() == nil {
			f.logger.WarnContext(ctx, "Stocks unavailable", slog.String("error", err.Error()))
			stocks = nil
		}
		return nil
	})
	g.Go(func() error {
		var err error
		cards, err = f.client.Cards(gctx, f.cardsPageSize)
		if err != nil && gctx.Err() == nil {
			f.logger.WarnContext(ctx, "Product cards unavailable", slog.String("error", err.Error()))
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rows := BuildRows(sales, stocks, cards)
	f.logger.InfoContext(ctx, "API report assembled",
		slog.String("sales_source", source),
		slog.Int("sales", len(sales)),
		slog.Int("stocks", len(stocks)),
		slog.Int("cards", len(cards)),
		slog.Int("rows", len(rows)))
	return &Report{Date: date, SalesSource: source, Rows: rows}, nil
}

func (f *Fetcher) sales(ctx context.Context, date time.Time) ([]Sale, string, error) {
	var errs []error
	answered := false

	sales, err := f.client.Sales(ctx, date)
	switch {
	case err == nil && len(sales) > 0:
		return sales, SalesPath, nil
	case err != nil:
		if ctx.Err() != nil {
			return nil, "", ctx.Err()
		}
		errs = append(errs, err)
		f.logger.WarnContext(ctx, "Sales endpoint failed, probing detail reports", slog.String("error", err.Error()))
	default:
		answered = true
		f.logger.InfoContext(ctx, "No sales for date, probing detail reports")
	}

	for _, path := range DetailPaths {
		rows, err := f.client.Detail(ctx, path, date)
		if err != nil {
			if ctx.Err() != nil {
				return nil, "", ctx.Err()
			}
			errs = append(errs, err)
			f.logger.DebugContext(ctx, "Detail report unavailable",
				slog.String("path", path),
				slog.String("error", err.Error()))
			continue
		}
		answered = true
		if len(rows) == 0 {
			continue
		}
		out := make([]Sale, 0, len(rows))
		for _, r := range rows {
			out = append(out, r.ToSale())
		}
		return out, path, nil
	}

	// Every source answered and none had data: an empty day, not a failure.
	if answered {
		return nil, SalesPath, nil
	}
	return nil, "", apperrors.NewNetworkError("no sales source answered", errors.Join(errs...))
}

// WriteXLSX writes header and rows to path, creating parent directories.
func WriteXLSX(path string, header []string, rows []Row) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return apperrors.NewStorageError("failed to create report directory", err).WithContext("path", path)
	}

	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(f.GetActiveSheetIndex())

	head := make([]interface{}, len(header))
	for i, h := range header {
		head[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &head); err != nil {
		return apperrors.NewStorageError("failed to write header", err)
	}
	for i, r := range rows {
		values := r.Values()
		if err := f.SetSheetRow(sheet, fmt.Sprintf("A%d", i+2), &values); err != nil {
			return apperrors.NewStorageError("failed to write row", err).WithContext("row", i+2)
		}
	}
	if err := f.SaveAs(path); err != nil {
		return apperrors.NewStorageError("failed to save report", err).WithContext("path", path)
	}
	return nil
}
