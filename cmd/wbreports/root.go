package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"wbreports/internal/browser"
	"wbreports/internal/config"
	"wbreports/internal/infrastructure"
	"wbreports/internal/publish"
	"wbreports/internal/session"
	"wbreports/internal/spreadsheet"
	"wbreports/internal/validation"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootFlags struct {
	configPath string
	cabinets   []string
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "wbreports",
		Short: "Collect daily sales reports from the Wildberries seller console",
		Long: "wbreports signs in to the seller console, exports the sales report of\n" +
			"every configured cabinet, fixes its header row and archives it by date.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
	}
	root.PersistentFlags().StringVar(&rootFlags.configPath, "config", "", "path to config.yaml (default: first found in the usual locations)")
	root.PersistentFlags().StringSliceVar(&rootFlags.cabinets, "cabinet", nil, "limit the run to these cabinets, by name (repeatable)")

	root.AddCommand(newRunCmd())
	root.AddCommand(newAPICmd())
	root.AddCommand(newNormalizeCmd())
	root.AddCommand(newLoginCmd())
	root.AddCommand(newScheduleCmd())
	return root
}

// app holds what every command shares once configuration is loaded.
type app struct {
	cfg       *config.Config
	paths     *config.Paths
	logger    *slog.Logger
	telemetry *infrastructure.Telemetry
}

// setup loads configuration, resolves paths and starts logging and
// telemetry. The caller must call close.
func setup() (*app, error) {
	var (
		cfg *config.Config
		err error
	)
	if rootFlags.configPath != "" {
		cfg, err = config.LoadFrom(rootFlags.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if len(rootFlags.cabinets) > 0 {
		if cfg.Cabinets, err = cfg.Cabinets.Filter(rootFlags.cabinets); err != nil {
			return nil, err
		}
	}

	paths, err := cfg.ResolvePaths()
	if err != nil {
		return nil, err
	}
	if err := paths.EnsureDirectories(); err != nil {
		return nil, err
	}
	cfg.Logging.FilePath = paths.LogFile

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to initialize logger, using default: %v\n", err)
		logger = slog.Default()
	}
	paths.LogPathResolution(logger)

	v := validation.NewFileValidator(logger)
	for _, dir := range []string{paths.DownloadsDir, paths.ArchiveDir} {
		if err := v.ValidateOutputDirectory(dir); err != nil {
			_ = infrastructure.CloseLogFile()
			return nil, err
		}
	}

	tel, err := infrastructure.InitializeTelemetry(infrastructure.TelemetryOptions{
		Enabled:     cfg.Telemetry.Enabled,
		Environment: cfg.Telemetry.Environment,
		SampleRatio: cfg.Telemetry.SampleRate,
		TracesFile:  paths.TracesFile,
		MetricsFile: paths.MetricsFile,
	}, logger)
	if err != nil {
		logger.Warn("Telemetry disabled", slog.String("error", err.Error()))
		tel = infrastructure.NoopTelemetry()
	}

	return &app{cfg: cfg, paths: paths, logger: logger, telemetry: tel}, nil
}

func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.telemetry.Shutdown(ctx); err != nil {
		a.logger.Warn("Telemetry shutdown failed", slog.String("error", err.Error()))
	}
	_ = infrastructure.CloseLogFile()
}

// header returns the template header when one is configured and readable,
// or nil for the built-in one.
func (a *app) header() []string {
	path := a.paths.HeaderTemplate
	if path == "" || !config.FileExists(path) {
		return nil
	}
	h, err := spreadsheet.LoadHeader(path)
	if err != nil {
		a.logger.Warn("Header template unusable, using built-in header",
			slog.String("path", path),
			slog.String("error", err.Error()))
		return nil
	}
	a.logger.Info("Using header template", slog.String("path", path))
	return h
}

// chromeOptions maps configuration onto browser launch options.
func (a *app) chromeOptions() browser.ChromeOptions {
	return browser.ChromeOptions{
		BinaryPath:     a.cfg.Browser.BinaryPath,
		ProfileDir:     a.paths.ProfileDir,
		ProfileName:    a.cfg.Browser.ProfileName,
		Headless:       a.cfg.Browser.Headless,
		UserAgent:      a.cfg.Browser.UserAgent,
		DownloadDir:    a.paths.DownloadsDir,
		CommandTimeout: a.cfg.Waits.Element,
	}
}

func (a *app) driverFactory() session.DriverFactory {
	opts := a.chromeOptions()
	return func(ctx context.Context) (browser.Driver, error) {
		c, err := browser.NewChrome(ctx, opts, a.logger)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}

// publisher returns the Sheets uploader, or nil when uploads are off.
func (a *app) publisher(ctx context.Context) (*publish.SheetsPublisher, error) {
	return publish.FromConfig(ctx, a.cfg.Sheets, a.paths.CredentialsFile, a.logger)
}

// reportDate parses the --date flag, defaulting to yesterday.
func reportDate(value string, now time.Time) (time.Time, error) {
	if value == "" {
		return config.Yesterday(now), nil
	}
	return config.ParseDate(value)
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// errInterrupted is returned when a signal stopped the run.
var errInterrupted = errors.New("interrupted")

func interrupted(ctx context.Context, err error) error {
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		return errInterrupted
	}
	return err
}
