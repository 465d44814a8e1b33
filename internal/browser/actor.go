package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	apperrors "wbreports/internal/errors"
	"wbreports/internal/retry"
)

// Delays paces interaction so the console sees human-like timing.
type Delays struct {
	BeforeClick    time.Duration
	AfterClick     time.Duration
	BeforeType     time.Duration
	AfterType      time.Duration
	BetweenKeys    time.Duration
	PageLoad       time.Duration
	BetweenActions time.Duration
}

// minKeyDelay is the lower bound of the randomized keystroke pause.
const minKeyDelay = 50 * time.Millisecond

// LoaderSelectors match the spinners the console shows while fetching data.
var LoaderSelectors = []Selector{
	CSS(".loader"),
	CSS(".spinner"),
	CSS("[class*='loading']"),
}

// Actor performs paced clicks and keystrokes through a Driver. Stale element
// handles are re-located and the action retried.
type Actor struct {
	driver Driver
	delays Delays
	wait   time.Duration
	stale  retry.Policy
	logger *slog.Logger

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewActor returns an actor whose required lookups wait up to wait per
// selector.
func NewActor(d Driver, delays Delays, wait time.Duration, logger *slog.Logger) *Actor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Actor{
		driver: d,
		delays: delays,
		wait:   wait,
		stale:  retry.Fixed(3, 500*time.Millisecond),
		logger: logger.With(slog.String("component", "actor")),
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// WithStalePolicy overrides how stale handles are retried.
func (a *Actor) WithStalePolicy(p retry.Policy) *Actor {
	a.stale = p
	return a
}

// Driver returns the underlying driver.
func (a *Actor) Driver() Driver { return a.driver }

// Wait returns the per-selector wait used for required elements.
func (a *Actor) Wait() time.Duration { return a.wait }

// Delays returns the configured pacing.
func (a *Actor) Delays() Delays { return a.delays }

// Pause sleeps for d unless ctx ends first.
func (a *Actor) Pause(ctx context.Context, d time.Duration) error {
	return retry.Sleep(ctx, d)
}

// BetweenActions sleeps for the configured inter-step pause.
func (a *Actor) BetweenActions(ctx context.Context) error {
	return a.Pause(ctx, a.delays.BetweenActions)
}

func (a *Actor) keyDelay() time.Duration {
	max := a.delays.BetweenKeys
	if max <= 0 {
		return 0
	}
	min := minKeyDelay
	if min > max {
		min = max
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return min + time.Duration(a.rnd.Int63n(int64(max-min)+1))
}

func isStale(err error) bool {
	return errors.Is(err, ErrStaleElement)
}

// Click locates a required clickable element and clicks it. A click the
// page rejects falls back to a scripted click.
func (a *Actor) Click(ctx context.Context, loc Locator) error {
	if err := a.Pause(ctx, a.delays.BeforeClick); err != nil {
		return err
	}
	err := retry.Do(ctx, a.stale, func(ctx context.Context) error {
		el, err := loc.FindClickable(ctx, a.driver, a.wait)
		if err != nil {
			return err
		}
		return a.clickElement(ctx, loc, el)
	}, isStale)
	if err != nil {
		return a.wrapStale(loc, err)
	}
	return a.Pause(ctx, a.delays.AfterClick)
}

// ClickIfPresent clicks an optional element. It reports whether the element
// was there.
func (a *Actor) ClickIfPresent(ctx context.Context, loc Locator, wait time.Duration) (bool, error) {
	var found bool
	err := retry.Do(ctx, a.stale, func(ctx context.Context) error {
		el, ok, err := loc.Optional(ctx, a.driver, wait)
		if err != nil || !ok {
			found = false
			return err
		}
		found = true
		if err := a.Pause(ctx, a.delays.BeforeClick); err != nil {
			return err
		}
		return a.clickElement(ctx, loc, el)
	}, isStale)
	if err != nil {
		return found, a.wrapStale(loc, err)
	}
	if !found {
		a.logger.DebugContext(ctx, "Optional element absent", slog.String("element", loc.Name))
		return false, nil
	}
	return true, a.Pause(ctx, a.delays.AfterClick)
}

func (a *Actor) clickElement(ctx context.Context, loc Locator, el Element) error {
	if err := a.driver.ScrollIntoView(ctx, el); err != nil && isStale(err) {
		return err
	}
	err := a.driver.Click(ctx, el)
	if err == nil || isStale(err) || ctx.Err() != nil {
		return err
	}
	a.logger.DebugContext(ctx, "Click rejected, using scripted click",
		slog.String("element", loc.Name),
		slog.String("error", err.Error()))
	return a.driver.JSClick(ctx, el)
}

// Type locates a required input, optionally clears it, and types text one
// character at a time with randomized pauses.
func (a *Actor) Type(ctx context.Context, loc Locator, text string, clear bool) error {
	if err := a.Pause(ctx, a.delays.BeforeType); err != nil {
		return err
	}
	err := retry.Do(ctx, a.stale, func(ctx context.Context) error {
		el, err := loc.Find(ctx, a.driver, a.wait)
		if err != nil {
			return err
		}
		return a.typeInto(ctx, el, text, clear)
	}, isStale)
	if err != nil {
		return a.wrapStale(loc, err)
	}
	return a.Pause(ctx, a.delays.AfterType)
}

func (a *Actor) typeInto(ctx context.Context, el Element, text string, clear bool) error {
	if err := a.driver.Click(ctx, el); err != nil {
		if isStale(err) {
			return err
		}
		// Focus by click is best effort; keystrokes target the node directly.
		a.logger.DebugContext(ctx, "Focus click failed", slog.String("error", err.Error()))
	}
	if clear {
		if err := a.driver.Clear(ctx, el); err != nil {
			return err
		}
	}
	for _, r := range text {
		if err := a.driver.SendKeys(ctx, el, string(r)); err != nil {
			return err
		}
		if err := a.Pause(ctx, a.keyDelay()); err != nil {
			return err
		}
	}
	return nil
}

func (a *Actor) wrapStale(loc Locator, err error) error {
	if isStale(err) {
		return apperrors.NewStaleElementError(fmt.Sprintf("element %q kept detaching", loc.Name), err).
			WithContext("element", loc.Name)
	}
	return err
}

// WaitForPageLoad waits until the document is complete and no loader is
// visible, bounded by the configured page-load delay. Timing out is not an
// error; the page may simply be slow to settle its spinners.
func (a *Actor) WaitForPageLoad(ctx context.Context) error {
	limit := a.delays.PageLoad
	if limit <= 0 {
		limit = time.Second
	}
	deadline := time.Now().Add(limit)
	poll := limit / 10
	if poll < 50*time.Millisecond {
		poll = 50 * time.Millisecond
	}

	for {
		if a.pageSettled(ctx) {
			return nil
		}
		if time.Now().After(deadline) {
			a.logger.DebugContext(ctx, "Page still loading after wait", slog.Duration("waited", limit))
			return nil
		}
		if err := a.Pause(ctx, poll); err != nil {
			return err
		}
	}
}

func (a *Actor) pageSettled(ctx context.Context) bool {
	state, err := a.driver.ReadyState(ctx)
	if err != nil || state != "complete" {
		return false
	}
	for _, sel := range LoaderSelectors {
		els, err := a.driver.FindAll(ctx, sel)
		if err != nil || len(els) > 0 {
			return false
		}
	}
	return true
}
