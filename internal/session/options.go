package session

import (
	"time"

	"wbreports/internal/browser"
	"wbreports/internal/cabinet"
	"wbreports/internal/config"
)

// Options configures an orchestrator.
type Options struct {
	ConsoleURL string
	AuthHosts  []string
	Phone      string
	Cabinets   config.CabinetList

	DownloadDir string
	ArchiveDir  string
	// PagesDir receives page dumps on failure; empty disables them.
	PagesDir string

	Delays          browser.Delays
	ElementWait     time.Duration
	ProbeTimeout    time.Duration
	MaxAuthCycles   int
	UnknownBackoff  time.Duration
	BetweenCabinets time.Duration

	Cabinet cabinet.Options
	// Header replaces the canonical header when set.
	Header []string
}

// NewOptions maps configuration and resolved paths onto Options.
func NewOptions(cfg *config.Config, paths *config.Paths) Options {
	cab := cabinet.DefaultOptions()
	cab.OptionalWait = cfg.Waits.Probe
	cab.DownloadTimeout = cfg.Waits.Download
	cab.PollInterval = cfg.Waits.DownloadPoll

	return Options{
		ConsoleURL:  cfg.Console.URL,
		AuthHosts:   cfg.Console.AuthHosts,
		Phone:       cfg.Auth.Phone,
		Cabinets:    cfg.Cabinets,
		DownloadDir: paths.DownloadsDir,
		ArchiveDir:  paths.ArchiveDir,
		PagesDir:    paths.PagesDir,
		Delays: browser.Delays{
			BeforeClick:    cfg.Delays.BeforeClick,
			AfterClick:     cfg.Delays.AfterClick,
			BeforeType:     cfg.Delays.BeforeType,
			AfterType:      cfg.Delays.AfterType,
			BetweenKeys:    cfg.Delays.BetweenKeys,
			PageLoad:       cfg.Delays.PageLoad,
			BetweenActions: cfg.Delays.BetweenActions,
		},
		ElementWait:     cfg.Waits.Element,
		ProbeTimeout:    cfg.Waits.Probe,
		MaxAuthCycles:   cfg.Waits.AuthCycles,
		UnknownBackoff:  cfg.Waits.UnknownBackoff,
		BetweenCabinets: cfg.Delays.BetweenCabinets,
		Cabinet:         cab,
	}
}
