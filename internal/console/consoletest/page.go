// Package consoletest scripts the seller console on a browsertest.Fake.
package consoletest

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/xuri/excelize/v2"

	"wbreports/internal/browser"
	"wbreports/internal/browser/browsertest"
	"wbreports/internal/console"
)

// Key is the fake element key of a locator: its first selector's query.
func Key(l browser.Locator) string { return l.Selectors[0].Query }

// ExportName is the file name the console gives an exported report.
const ExportName = "Отчет о продажах.xlsx"

// Console models the reports page and the sign-in pages.
type Console struct {
	Fake        *browsertest.Fake
	URL         string
	AuthURL     string
	DownloadDir string

	mu            sync.Mutex
	authenticated bool
	selected      string
	cabinets      []string
	exports       map[string]int
	// FailExport lists cabinet ids whose export never produces a file.
	FailExport map[string]bool
	// StaleReports is how many generated reports the page lists.
	StaleReports int
	// UnknownLoads makes the next n page loads show neither landmark nor
	// sign-in form.
	UnknownLoads int
	// RejectCodes makes code submission keep the sign-in page.
	RejectCodes bool
	// SecondCode asks for a second confirmation code after the first.
	SecondCode bool
}

// New returns a console on f. Navigating to any URL shows the sign-in page
// until Authenticated or a successful sign-in.
func New(f *browsertest.Fake, url, authURL, downloadDir string) *Console {
	c := &Console{
		Fake:        f,
		URL:         url,
		AuthURL:     authURL,
		DownloadDir: downloadDir,
		exports:     make(map[string]int),
		FailExport:  make(map[string]bool),
	}
	f.OnNavigate = func(f *browsertest.Fake, _ string) { c.load() }
	return c
}

// Authenticated marks the session as signed in.
func (c *Console) Authenticated() *Console {
	c.mu.Lock()
	c.authenticated = true
	c.mu.Unlock()
	return c
}

// IsAuthenticated reports whether sign-in completed.
func (c *Console) IsAuthenticated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.authenticated
}

// Selected returns the id of the last chosen cabinet.
func (c *Console) Selected() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selected
}

// Exports returns how many files were exported for cabinet id.
func (c *Console) Exports(id string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.exports[id]
}

func (c *Console) load() {
	c.mu.Lock()
	unknown := c.UnknownLoads > 0
	if unknown {
		c.UnknownLoads--
	}
	auth := c.authenticated
	c.mu.Unlock()

	c.Fake.Reset()
	switch {
	case unknown:
		c.Fake.SetURL(c.URL)
	case !auth:
		c.Fake.SetURL(c.AuthURL)
		c.signInPage()
	default:
		c.Fake.SetURL(c.URL)
		c.reportsPage()
	}
}

func (c *Console) signInPage() {
	f := c.Fake
	f.Add(Key(console.PhoneInput), nil)
	f.Add(Key(console.SubmitPhone), &browsertest.Element{OnClick: func(f *browsertest.Fake) error {
		f.Add(Key(console.FirstCodeInput), nil)
		f.Add(Key(console.SubmitFirstCode), &browsertest.Element{OnClick: func(f *browsertest.Fake) error {
			c.mu.Lock()
			second := c.SecondCode
			c.mu.Unlock()
			if !second {
				c.submitCodes()
				return nil
			}
			f.Add(Key(console.SecondCodeInput), nil)
			f.Add(Key(console.SubmitSecondCode), &browsertest.Element{OnClick: func(*browsertest.Fake) error {
				c.submitCodes()
				return nil
			}})
			return nil
		}})
		return nil
	}})
}

func (c *Console) submitCodes() {
	c.mu.Lock()
	reject := c.RejectCodes
	if !reject {
		c.authenticated = true
	}
	c.mu.Unlock()
	if !reject {
		c.load()
	}
}

// Cabinets makes the search offer the given cabinet ids.
func (c *Console) Cabinets(ids ...string) *Console {
	c.mu.Lock()
	c.cabinets = append(c.cabinets, ids...)
	c.mu.Unlock()
	return c
}

func (c *Console) addOptions() {
	c.mu.Lock()
	ids := append([]string(nil), c.cabinets...)
	c.mu.Unlock()
	for _, id := range ids {
		id := id
		c.Fake.Add(Key(console.CabinetOption(id)), &browsertest.Element{OnClick: func(*browsertest.Fake) error {
			c.mu.Lock()
			c.selected = id
			c.mu.Unlock()
			return nil
		}})
	}
}

func (c *Console) reportsPage() {
	f := c.Fake
	f.Add(Key(console.PageHeading), nil)
	f.Add(Key(console.CabinetToggle), nil)
	f.Add(Key(console.CabinetSearch), nil)
	c.addOptions()
	f.Add(Key(console.DateRangeButton), &browsertest.Element{OnClick: func(f *browsertest.Fake) error {
		f.Add(Key(console.StartDate), nil)
		f.Add(Key(console.EndDate), nil)
		f.Add(Key(console.SaveDates), nil)
		return nil
	}})
	f.Add(Key(console.ExportButton), &browsertest.Element{OnClick: func(*browsertest.Fake) error {
		return c.export()
	}})

	c.mu.Lock()
	stale := c.StaleReports
	c.mu.Unlock()
	if stale > 0 {
		c.addStaleReport()
	}
}

func (c *Console) addStaleReport() {
	f := c.Fake
	f.Add(Key(console.StaleReportDelete), &browsertest.Element{OnClick: func(f *browsertest.Fake) error {
		f.Add(Key(console.ConfirmDelete), &browsertest.Element{OnClick: func(f *browsertest.Fake) error {
			f.Remove(Key(console.ConfirmDelete))
			f.Remove(Key(console.StaleReportDelete))
			c.mu.Lock()
			c.StaleReports--
			more := c.StaleReports > 0
			c.mu.Unlock()
			if more {
				c.addStaleReport()
			}
			return nil
		}})
		return nil
	}})
}

// Stale returns how many generated reports remain.
func (c *Console) Stale() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.StaleReports
}

func (c *Console) export() error {
	c.mu.Lock()
	id := c.selected
	fail := c.FailExport[id]
	c.mu.Unlock()
	if fail {
		return nil
	}
	if err := WriteExport(filepath.Join(c.DownloadDir, ExportName), id); err != nil {
		return err
	}
	c.mu.Lock()
	c.exports[id]++
	c.mu.Unlock()
	return nil
}

// WriteExport writes a workbook shaped like a console export: a merged
// title band, the console's own headers and one data row tagged with id.
func WriteExport(path, id string) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := "Sheet1"
	if err := f.SetCellValue(sheet, "A1", "Отчет о продажах по реализации"); err != nil {
		return err
	}
	if err := f.MergeCell(sheet, "A1", "K1"); err != nil {
		return err
	}
	if err := f.SetCellValue(sheet, "L1", "Заказано"); err != nil {
		return err
	}
	if err := f.MergeCell(sheet, "L1", "P1"); err != nil {
		return err
	}
	header := []interface{}{"Бренд", "Предмет", "Сезон", "Коллекция", "Наименование",
		"Артикул продавца", "Артикул WB", "Баркод", "Размер", "Контракт", "Склад",
		"шт.", "руб.", "шт.", "руб.", "шт."}
	if err := f.SetSheetRow(sheet, "A2", &header); err != nil {
		return err
	}
	row := []interface{}{"Brand", "Платья", "Лето", "Base", fmt.Sprintf("Item %s", id),
		"SKU-" + id, id, "4600000000001", "42", "Основной", "Коледино", 3, 4500, 2, 3000, 10}
	if err := f.SetSheetRow(sheet, "A3", &row); err != nil {
		return err
	}
	return f.SaveAs(path)
}
