// Package browsertest provides a scripted in-memory browser.Driver.
//
// Pages are modelled as a set of elements keyed by selector query. Tests add
// and remove elements, usually from OnClick and OnNavigate hooks, to move the
// fake through the console's screens.
package browsertest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"wbreports/internal/browser"
)

// Element is a node on the fake page.
type Element struct {
	Key    string
	Hidden bool
	Value  string
	// StaleFor makes the next n interactions fail with ErrStaleElement.
	StaleFor int
	// ClickErr is returned by Click (not JSClick) while set.
	ClickErr error
	OnClick  func(f *Fake) error
}

func (e *Element) Describe() string { return e.Key }

// Fake implements browser.Driver.
type Fake struct {
	mu          sync.Mutex
	url         string
	readyState  string
	elements    map[string]*Element
	html        string
	downloadDir string
	windows     []string
	current     string
	closed      bool
	closeCount  int
	events      []string

	// HonorWaits makes lookups of missing elements poll for the full wait
	// instead of failing at once.
	HonorWaits bool
	// OnNavigate runs after every navigation.
	OnNavigate func(f *Fake, url string)
	// URLErr, when set, fails CurrentURL.
	URLErr error
}

var _ browser.Driver = (*Fake)(nil)

// New returns an empty fake on about:blank.
func New() *Fake {
	return &Fake{
		url:        "about:blank",
		readyState: "complete",
		elements:   make(map[string]*Element),
		windows:    []string{"main"},
		current:    "main",
	}
}

// Add places an element matching query on the page and returns it.
func (f *Fake) Add(query string, el *Element) *Element {
	if el == nil {
		el = &Element{}
	}
	el.Key = query
	f.mu.Lock()
	f.elements[query] = el
	f.mu.Unlock()
	return el
}

// Remove takes the element matching query off the page.
func (f *Fake) Remove(query string) {
	f.mu.Lock()
	delete(f.elements, query)
	f.mu.Unlock()
}

// Reset clears every element.
func (f *Fake) Reset() {
	f.mu.Lock()
	f.elements = make(map[string]*Element)
	f.mu.Unlock()
}

// Get returns the element matching query, or nil.
func (f *Fake) Get(query string) *Element {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.elements[query]
}

// Value returns the typed value of the element matching query.
func (f *Fake) Value(query string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if el, ok := f.elements[query]; ok {
		return el.Value
	}
	return ""
}

// SetURL moves the fake to url without running OnNavigate.
func (f *Fake) SetURL(url string) {
	f.mu.Lock()
	f.url = url
	f.mu.Unlock()
}

// SetReadyState sets document.readyState.
func (f *Fake) SetReadyState(state string) {
	f.mu.Lock()
	f.readyState = state
	f.mu.Unlock()
}

// SetHTML sets the markup returned by HTML.
func (f *Fake) SetHTML(html string) {
	f.mu.Lock()
	f.html = html
	f.mu.Unlock()
}

// AddWindow registers another page target.
func (f *Fake) AddWindow(id string) {
	f.mu.Lock()
	f.windows = append(f.windows, id)
	f.mu.Unlock()
}

// Events returns the interaction log: "navigate:URL", "click:KEY",
// "jsclick:KEY", "keys:KEY:TEXT", "clear:KEY", "switch:ID", "download:DIR".
func (f *Fake) Events() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.events...)
}

// Clicks returns how often the element matching query was clicked.
func (f *Fake) Clicks(query string) int {
	n := 0
	for _, e := range f.Events() {
		if e == "click:"+query || e == "jsclick:"+query {
			n++
		}
	}
	return n
}

// Closed reports whether Close was called, and how often.
func (f *Fake) Closed() (bool, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed, f.closeCount
}

// DownloadDir returns the last directory passed to SetDownloadDir.
func (f *Fake) DownloadDir() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.downloadDir
}

func (f *Fake) record(event string) {
	f.events = append(f.events, event)
}

func (f *Fake) checkOpen() error {
	if f.closed {
		return browser.ErrClosed
	}
	return nil
}

func (f *Fake) Navigate(ctx context.Context, url string) error {
	f.mu.Lock()
	if err := f.checkOpen(); err != nil {
		f.mu.Unlock()
		return err
	}
	f.url = url
	f.record("navigate:" + url)
	hook := f.OnNavigate
	f.mu.Unlock()

	if hook != nil {
		hook(f, url)
	}
	return ctx.Err()
}

func (f *Fake) CurrentURL(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkOpen(); err != nil {
		return "", err
	}
	if f.URLErr != nil {
		return "", f.URLErr
	}
	return f.url, ctx.Err()
}

func (f *Fake) ReadyState(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.readyState, f.checkOpen()
}

func (f *Fake) lookup(sel browser.Selector, visible bool) (*Element, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	el, ok := f.elements[sel.Query]
	if !ok || (visible && el.Hidden) {
		return nil, false
	}
	return el, true
}

func (f *Fake) find(ctx context.Context, sel browser.Selector, wait time.Duration, visible bool) (browser.Element, error) {
	f.mu.Lock()
	closedErr := f.checkOpen()
	honor := f.HonorWaits
	f.mu.Unlock()
	if closedErr != nil {
		return nil, closedErr
	}

	deadline := time.Now().Add(wait)
	for {
		if el, ok := f.lookup(sel, visible); ok {
			return el, nil
		}
		if !honor || !time.Now().Before(deadline) {
			return nil, fmt.Errorf("%w: %s", browser.ErrNoSuchElement, sel)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func (f *Fake) Find(ctx context.Context, sel browser.Selector, wait time.Duration) (browser.Element, error) {
	return f.find(ctx, sel, wait, false)
}

func (f *Fake) FindClickable(ctx context.Context, sel browser.Selector, wait time.Duration) (browser.Element, error) {
	return f.find(ctx, sel, wait, true)
}

func (f *Fake) FindAll(ctx context.Context, sel browser.Selector) ([]browser.Element, error) {
	if el, ok := f.lookup(sel, false); ok {
		return []browser.Element{el}, nil
	}
	return nil, ctx.Err()
}

// interact validates a handle and consumes one stale tick.
func (f *Fake) interact(el browser.Element) (*Element, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkOpen(); err != nil {
		return nil, err
	}
	fe, ok := el.(*Element)
	if !ok {
		return nil, fmt.Errorf("%w: foreign handle", browser.ErrStaleElement)
	}
	if fe.StaleFor > 0 {
		fe.StaleFor--
		return nil, fmt.Errorf("%w: %s", browser.ErrStaleElement, fe.Key)
	}
	if current, ok := f.elements[fe.Key]; !ok || current != fe {
		return nil, fmt.Errorf("%w: %s detached", browser.ErrStaleElement, fe.Key)
	}
	return fe, nil
}

func (f *Fake) click(el browser.Element, scripted bool) error {
	fe, err := f.interact(el)
	if err != nil {
		return err
	}
	f.mu.Lock()
	if !scripted && fe.ClickErr != nil {
		err := fe.ClickErr
		f.mu.Unlock()
		return err
	}
	if scripted {
		f.record("jsclick:" + fe.Key)
	} else {
		f.record("click:" + fe.Key)
	}
	hook := fe.OnClick
	f.mu.Unlock()

	if hook != nil {
		return hook(f)
	}
	return nil
}

func (f *Fake) Click(ctx context.Context, el browser.Element) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return f.click(el, false)
}

func (f *Fake) JSClick(ctx context.Context, el browser.Element) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return f.click(el, true)
}

func (f *Fake) SendKeys(ctx context.Context, el browser.Element, text string) error {
	fe, err := f.interact(el)
	if err != nil {
		return err
	}
	f.mu.Lock()
	fe.Value += text
	f.record("keys:" + fe.Key + ":" + text)
	f.mu.Unlock()
	return ctx.Err()
}

func (f *Fake) Clear(ctx context.Context, el browser.Element) error {
	fe, err := f.interact(el)
	if err != nil {
		return err
	}
	f.mu.Lock()
	fe.Value = ""
	f.record("clear:" + fe.Key)
	f.mu.Unlock()
	return ctx.Err()
}

func (f *Fake) ScrollIntoView(ctx context.Context, el browser.Element) error {
	_, err := f.interact(el)
	return err
}

func (f *Fake) Windows(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.windows...), f.checkOpen()
}

func (f *Fake) SwitchWindow(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, w := range f.windows {
		if w == id {
			f.current = id
			f.record("switch:" + id)
			return nil
		}
	}
	return fmt.Errorf("no window %q", id)
}

func (f *Fake) SetDownloadDir(ctx context.Context, dir string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.downloadDir = dir
	f.record("download:" + dir)
	return f.checkOpen()
}

func (f *Fake) HTML(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.html, f.checkOpen()
}

func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.closeCount++
	return nil
}
