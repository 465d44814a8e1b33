package browser

import (
	"context"
	"errors"
	"time"

	apperrors "wbreports/internal/errors"
)

// Locator names a page element and lists the selectors that may find it, in
// order of preference.
type Locator struct {
	Name      string
	Selectors []Selector
}

// NewLocator builds a locator from an ordered selector list.
func NewLocator(name string, selectors ...Selector) Locator {
	return Locator{Name: name, Selectors: selectors}
}

// Find tries each selector in turn, each with its own wait, and returns the
// first match. Exhausting the list yields an ELEMENT_NOT_FOUND error.
func (l Locator) Find(ctx context.Context, d Driver, wait time.Duration) (Element, error) {
	return l.find(ctx, d, wait, false)
}

// FindClickable is Find restricted to visible elements.
func (l Locator) FindClickable(ctx context.Context, d Driver, wait time.Duration) (Element, error) {
	return l.find(ctx, d, wait, true)
}

// Optional is Find for elements whose absence is expected. Absence is
// (nil, false, nil); only cancellation and driver failures are errors.
func (l Locator) Optional(ctx context.Context, d Driver, wait time.Duration) (Element, bool, error) {
	el, err := l.find(ctx, d, wait, true)
	if err == nil {
		return el, true, nil
	}
	if apperrors.IsType(err, apperrors.ErrTypeElementNotFound) {
		return nil, false, nil
	}
	return nil, false, err
}

func (l Locator) find(ctx context.Context, d Driver, wait time.Duration, clickable bool) (Element, error) {
	var lastErr error
	for _, sel := range l.Selectors {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var (
			el  Element
			err error
		)
		if clickable {
			el, err = d.FindClickable(ctx, sel, wait)
		} else {
			el, err = d.Find(ctx, sel, wait)
		}
		if err == nil {
			return el, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, ErrClosed) {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
	}
	return nil, apperrors.NewElementNotFoundError(l.Name, lastErr).
		WithContext("strategies", len(l.Selectors))
}
