// Package browser is the page automation surface used by the report flows:
// a small Driver interface, a chromedp implementation, ordered-fallback
// element locators and a paced "human" actor on top of them.
package browser

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Driver-level sentinel errors. Implementations wrap or return these so the
// layers above can tell absence and detachment from other failures.
var (
	ErrNoSuchElement = errors.New("no such element")
	ErrStaleElement  = errors.New("stale element")
	ErrClosed        = errors.New("browser closed")
)

// By selects how a Selector's query is interpreted.
type By int

const (
	ByQuery By = iota // CSS selector
	ByID
	ByXPath
)

func (b By) String() string {
	switch b {
	case ByID:
		return "id"
	case ByXPath:
		return "xpath"
	default:
		return "css"
	}
}

// Selector is one way of finding an element.
type Selector struct {
	Query string
	By    By
}

// CSS returns a CSS selector.
func CSS(query string) Selector { return Selector{Query: query, By: ByQuery} }

// ID returns a selector matching the element id.
func ID(id string) Selector { return Selector{Query: id, By: ByID} }

// XPath returns an XPath selector.
func XPath(expr string) Selector { return Selector{Query: expr, By: ByXPath} }

func (s Selector) String() string {
	return fmt.Sprintf("%s=%s", s.By, s.Query)
}

// Element is an opaque handle to a node on the current page. Handles may go
// stale after the page re-renders.
type Element interface {
	Describe() string
}

// Driver is the browser surface the flows depend on.
type Driver interface {
	Navigate(ctx context.Context, url string) error
	CurrentURL(ctx context.Context) (string, error)
	ReadyState(ctx context.Context) (string, error)

	// Find waits up to wait for the selector to match an element present in
	// the document. It returns ErrNoSuchElement on timeout.
	Find(ctx context.Context, sel Selector, wait time.Duration) (Element, error)
	// FindClickable is Find that also requires the element to be visible.
	FindClickable(ctx context.Context, sel Selector, wait time.Duration) (Element, error)
	// FindAll returns the current matches without waiting.
	FindAll(ctx context.Context, sel Selector) ([]Element, error)

	Click(ctx context.Context, el Element) error
	// JSClick dispatches a click from script, bypassing overlays.
	JSClick(ctx context.Context, el Element) error
	SendKeys(ctx context.Context, el Element, text string) error
	Clear(ctx context.Context, el Element) error
	ScrollIntoView(ctx context.Context, el Element) error

	Windows(ctx context.Context) ([]string, error)
	SwitchWindow(ctx context.Context, id string) error
	SetDownloadDir(ctx context.Context, dir string) error
	HTML(ctx context.Context) (string, error)

	Close() error
}
