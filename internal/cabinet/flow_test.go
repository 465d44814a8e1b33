package cabinet

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"wbreports/internal/browser"
	"wbreports/internal/browser/browsertest"
	"wbreports/internal/config"
	"wbreports/internal/console"
	"wbreports/internal/console/consoletest"
	apperrors "wbreports/internal/errors"
	"wbreports/internal/files"
	"wbreports/internal/retry"
	"wbreports/internal/spreadsheet"
)

const (
	consoleURL = "https://seller.example/analytics-reports/sales"
	authURL    = "https://seller-auth.example/login"
)

type fixture struct {
	fake     *browsertest.Fake
	console  *consoletest.Console
	flow     *Flow
	download string
	archive  string
	pages    string
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newFixture(t *testing.T, ids ...string) *fixture {
	t.Helper()
	base := t.TempDir()
	fx := &fixture{
		fake:     browsertest.New(),
		download: filepath.Join(base, "downloads"),
		archive:  filepath.Join(base, "data"),
		pages:    filepath.Join(base, "pages_code"),
	}
	require.NoError(t, os.MkdirAll(fx.download, 0755))

	fx.console = consoletest.New(fx.fake, consoleURL, authURL, fx.download).Authenticated().Cabinets(ids...)
	require.NoError(t, fx.fake.Navigate(context.Background(), consoleURL))

	logger := quietLogger()
	actor := browser.NewActor(fx.fake, browser.Delays{PageLoad: time.Millisecond}, time.Millisecond, logger).
		WithStalePolicy(retry.Fixed(2, time.Millisecond))
	opts := Options{
		OptionalWait:    time.Millisecond,
		DownloadTimeout: 300 * time.Millisecond,
		PollInterval:    10 * time.Millisecond,
		SampleInterval:  5 * time.Millisecond,
		Samples:         2,
		MaxStaleReports: 5,
	}
	fx.flow = NewFlow(actor, spreadsheet.NewNormalizer(nil, logger), files.NewManager(logger), opts, logger).
		WithPageDumps(browser.NewPageDumper(fx.pages, logger))
	return fx
}

func (fx *fixture) request(name, id string, date time.Time) Request {
	return Request{
		Cabinet:     config.Cabinet{Name: name, ID: id},
		Date:        date,
		DownloadDir: fx.download,
		ArchiveDir:  fx.archive,
	}
}

func TestRunArchivesNormalizedReport(t *testing.T) {
	fx := newFixture(t, "53607")
	date := time.Date(2025, 12, 10, 0, 0, 0, 0, time.Local)

	res, err := fx.flow.Run(context.Background(), fx.request("MAU", "53607", date))
	require.NoError(t, err)

	assert.Equal(t, "53607", fx.console.Selected())
	assert.Equal(t, filepath.Join(fx.download, "MAU 10.12.2025.xlsx"), res.WorkingFile)
	assert.Equal(t, filepath.Join(fx.archive, "10.12.2025", "mau_10.12.2025.xlsx"), res.ArchiveFile)
	assert.True(t, res.Header.Verified())

	_, err = os.Stat(filepath.Join(fx.download, consoletest.ExportName))
	assert.True(t, os.IsNotExist(err), "export must be renamed")

	f, err := excelize.OpenFile(res.ArchiveFile)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Sheet1")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, spreadsheet.CanonicalHeader, rows[0])
	assert.Equal(t, "53607", rows[1][6])

	assert.Equal(t, "10.12.2025", fx.fake.Value(consoletest.Key(console.StartDate)))
	assert.Equal(t, "10.12.2025", fx.fake.Value(consoletest.Key(console.EndDate)))
	assert.Equal(t, "53607", fx.fake.Value(consoletest.Key(console.CabinetSearch)))
}

func TestRunClearsStaleDownloadsAndReports(t *testing.T) {
	fx := newFixture(t, "121614")
	fx.console.StaleReports = 2
	require.NoError(t, fx.fake.Navigate(context.Background(), consoleURL))

	leftover := filepath.Join(fx.download, "old export.xlsx")
	require.NoError(t, os.WriteFile(leftover, []byte("stale"), 0644))

	_, err := fx.flow.Run(context.Background(), fx.request("MAB", "121614", time.Date(2025, 12, 10, 0, 0, 0, 0, time.Local)))
	require.NoError(t, err)

	assert.Equal(t, 0, fx.console.Stale())
	_, err = os.Stat(leftover)
	assert.True(t, os.IsNotExist(err))
}

func TestRunOverwritesExistingArchive(t *testing.T) {
	fx := newFixture(t, "53607")
	date := time.Date(2025, 12, 10, 0, 0, 0, 0, time.Local)
	target := config.ArchiveFilePath(fx.archive, "MAU", date)
	require.NoError(t, os.MkdirAll(filepath.Dir(target), 0755))
	require.NoError(t, os.WriteFile(target, []byte("yesterday's run"), 0644))

	_, err := fx.flow.Run(context.Background(), fx.request("MAU", "53607", date))
	require.NoError(t, err)

	f, err := excelize.OpenFile(target)
	require.NoError(t, err)
	f.Close()
}

func TestRunDownloadTimeout(t *testing.T) {
	fx := newFixture(t, "174711")
	fx.console.FailExport["174711"] = true

	_, err := fx.flow.Run(context.Background(), fx.request("MMA", "174711", time.Now()))
	require.Error(t, err)

	var se *StepError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "MMA", se.Cabinet)
	assert.Equal(t, StepAwaitDownload, se.Step)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeDownloadTimeout))

	dumps, _ := filepath.Glob(filepath.Join(fx.pages, "MMA_await_download_*.html"))
	assert.Len(t, dumps, 1)
}

func TestRunMissingCabinetOption(t *testing.T) {
	fx := newFixture(t)

	_, err := fx.flow.Run(context.Background(), fx.request("cosmo", "224650", time.Now()))
	require.Error(t, err)

	var se *StepError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, StepSelectCabinet, se.Step)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeElementNotFound))
	assert.Contains(t, err.Error(), "cabinet cosmo")
}

func TestRunMissingDateControl(t *testing.T) {
	fx := newFixture(t, "224650")
	fx.fake.Remove(consoletest.Key(console.DateRangeButton))

	_, err := fx.flow.Run(context.Background(), fx.request("cosmo", "224650", time.Now()))
	var se *StepError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, StepSetDates, se.Step)
}

func TestRunWithoutCabinetToggle(t *testing.T) {
	fx := newFixture(t, "1140223")
	fx.fake.Remove(consoletest.Key(console.CabinetToggle))

	_, err := fx.flow.Run(context.Background(), fx.request("dreamlab", "1140223", time.Now()))
	assert.NoError(t, err, "cabinet selector toggle is optional")
}

func TestStepErrorMessage(t *testing.T) {
	err := &StepError{Cabinet: "MAU", Step: StepExport, Err: errors.New("boom")}
	assert.Equal(t, "cabinet MAU: step export: boom", err.Error())
	assert.Equal(t, "boom", errors.Unwrap(err).Error())
}

func TestRunKeepsOnlyCabinetWorkingCopies(t *testing.T) {
	fx := newFixture(t, "121614")
	fx.flow.WithCabinets(config.CabinetList{
		{Name: "MAU", ID: "53607"},
		{Name: "MAB", ID: "121614"},
	})

	earlier := filepath.Join(fx.download, "MAU 09.12.2025.xlsx")
	dated := filepath.Join(fx.download, "Отчет о продажах 09.12.2025.xlsx")
	unknown := filepath.Join(fx.download, "OTHER 09.12.2025.xlsx")
	for _, path := range []string{earlier, dated, unknown} {
		require.NoError(t, os.WriteFile(path, []byte("report"), 0644))
	}

	res, err := fx.flow.Run(context.Background(), fx.request("MAB", "121614", time.Date(2025, 12, 10, 0, 0, 0, 0, time.Local)))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(fx.download, "MAB 10.12.2025.xlsx"), res.WorkingFile)

	assert.FileExists(t, earlier)
	assert.NoFileExists(t, dated)
	assert.NoFileExists(t, unknown)
}

func TestWorkingFilesIncludesRequestedCabinet(t *testing.T) {
	fx := newFixture(t)
	keep := fx.flow.workingFiles(config.Cabinet{Name: "A+B", ID: "1"})

	assert.True(t, keep(files.FileInfo{Name: "A+B 10.12.2025.xlsx"}))
	assert.False(t, keep(files.FileInfo{Name: "AAB 10.12.2025.xlsx"}))
	assert.False(t, keep(files.FileInfo{Name: "A+B 10.12.2025.xlsx.crdownload"}))
	assert.False(t, keep(files.FileInfo{Name: "Отчет 10.12.2025.xlsx"}))
}
