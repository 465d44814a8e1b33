// Package pagestate classifies what the browser is currently showing.
package pagestate

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"wbreports/internal/browser"
)

// State is the classification of the current page.
type State int

const (
	Unknown State = iota
	AuthRequired
	ReportsReady
)

func (s State) String() string {
	switch s {
	case AuthRequired:
		return "auth_required"
	case ReportsReady:
		return "reports_ready"
	default:
		return "unknown"
	}
}

// Detector decides the page state from the URL and a list of landmarks.
type Detector struct {
	driver       browser.Driver
	authHosts    []string
	landmarks    []browser.Locator
	probeTimeout time.Duration
	logger       *slog.Logger
}

// NewDetector returns a detector. probeTimeout bounds the wait of every
// single landmark selector.
func NewDetector(d browser.Driver, authHosts []string, landmarks []browser.Locator, probeTimeout time.Duration, logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{
		driver:       d,
		authHosts:    authHosts,
		landmarks:    landmarks,
		probeTimeout: probeTimeout,
		logger:       logger.With(slog.String("component", "page_detector")),
	}
}

// Detect classifies the current page. A URL on a sign-in host wins over any
// landmark. Inspection failures count as Unknown and are never returned.
func (d *Detector) Detect(ctx context.Context) State {
	url, err := d.driver.CurrentURL(ctx)
	if err != nil {
		d.logger.DebugContext(ctx, "URL read failed", slog.String("error", err.Error()))
	} else if d.isAuthURL(url) {
		d.logger.InfoContext(ctx, "Sign-in page detected", slog.String("url", url))
		return AuthRequired
	}

	for _, landmark := range d.landmarks {
		if ctx.Err() != nil {
			return Unknown
		}
		_, found, err := landmark.Optional(ctx, d.driver, d.probeTimeout)
		if err != nil {
			d.logger.DebugContext(ctx, "Landmark probe failed",
				slog.String("landmark", landmark.Name),
				slog.String("error", err.Error()))
			continue
		}
		if found {
			d.logger.DebugContext(ctx, "Reports page detected", slog.String("landmark", landmark.Name))
			return ReportsReady
		}
	}

	d.logger.InfoContext(ctx, "Page state unknown", slog.String("url", url))
	return Unknown
}

func (d *Detector) isAuthURL(url string) bool {
	for _, host := range d.authHosts {
		if host != "" && strings.Contains(url, host) {
			return true
		}
	}
	return false
}
