package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	cdpbrowser "github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
)

const hideWebdriverScript = `Object.defineProperty(navigator, 'webdriver', {get: () => undefined});`

// ChromeOptions configures the launched browser.
type ChromeOptions struct {
	BinaryPath  string
	ProfileDir  string
	ProfileName string
	Headless    bool
	UserAgent   string
	DownloadDir string
	// CommandTimeout bounds actions that have no wait of their own.
	CommandTimeout time.Duration
}

// Chrome drives a local Chrome through the DevTools protocol.
type Chrome struct {
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc

	mu         sync.Mutex
	tabCtx     context.Context
	tabCancels []context.CancelFunc

	timeout   time.Duration
	logger    *slog.Logger
	closeOnce sync.Once
	closed    bool
}

type chromeElement struct {
	node *cdp.Node
}

func (e *chromeElement) Describe() string {
	if e.node == nil {
		return "<nil>"
	}
	return e.node.FullXPath()
}

// NewChrome launches a browser on the configured profile and prepares the
// first tab. The browser lives until Close, independently of ctx, which only
// bounds the launch.
func NewChrome(ctx context.Context, opts ChromeOptions, logger *slog.Logger) (*Chrome, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "chrome"))

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("enable-automation", false),
		chromedp.WindowSize(1920, 1080),
	)
	if opts.BinaryPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.BinaryPath))
	}
	if opts.ProfileDir != "" {
		allocOpts = append(allocOpts, chromedp.UserDataDir(opts.ProfileDir))
	}
	if opts.ProfileName != "" {
		allocOpts = append(allocOpts, chromedp.Flag("profile-directory", opts.ProfileName))
	}
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...interface{}) {
			logger.Debug(fmt.Sprintf(format, args...))
		}))

	timeout := opts.CommandTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	c := &Chrome{
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		tabCtx:        browserCtx,
		timeout:       timeout,
		logger:        logger,
	}

	// The first Run allocates the browser and must use the unbounded browser
	// context, otherwise the deadline would tear the process down with it.
	stop := context.AfterFunc(ctx, browserCancel)
	err := chromedp.Run(browserCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		_, err := page.AddScriptToEvaluateOnNewDocument(hideWebdriverScript).Do(ctx)
		return err
	}))
	stop()
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}

	if opts.DownloadDir != "" {
		if err := c.SetDownloadDir(ctx, opts.DownloadDir); err != nil {
			c.Close()
			return nil, err
		}
	}

	logger.Info("Browser started",
		slog.String("profile_dir", opts.ProfileDir),
		slog.String("profile", opts.ProfileName),
		slog.Bool("headless", opts.Headless))
	return c, nil
}

func (c *Chrome) tab() (context.Context, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}
	return c.tabCtx, nil
}

// run executes actions on the current tab, bounded by timeout and by ctx.
func (c *Chrome) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	tabCtx, err := c.tab()
	if err != nil {
		return err
	}
	runCtx, cancel := context.WithTimeout(tabCtx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err = chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return classify(err)
}

// classify maps protocol errors onto the package sentinels.
func classify(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "No node with given id"),
		strings.Contains(msg, "Node is detached"),
		strings.Contains(msg, "Could not find node with given id"),
		strings.Contains(msg, "Cannot find context with specified id"):
		return fmt.Errorf("%w: %v", ErrStaleElement, err)
	}
	return err
}

func queryOptions(sel Selector, all bool) []chromedp.QueryOption {
	switch sel.By {
	case ByID:
		return []chromedp.QueryOption{chromedp.ByID}
	case ByXPath:
		return []chromedp.QueryOption{chromedp.BySearch}
	default:
		if all {
			return []chromedp.QueryOption{chromedp.ByQueryAll}
		}
		return []chromedp.QueryOption{chromedp.ByQuery}
	}
}

func (c *Chrome) find(ctx context.Context, sel Selector, wait time.Duration, visible bool) (Element, error) {
	opts := queryOptions(sel, false)
	if visible {
		opts = append(opts, chromedp.NodeVisible)
	}

	var nodes []*cdp.Node
	err := c.run(ctx, wait, chromedp.Nodes(sel.Query, &nodes, opts...))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s", ErrNoSuchElement, sel)
		}
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoSuchElement, sel)
	}
	return &chromeElement{node: nodes[0]}, nil
}

func (c *Chrome) Find(ctx context.Context, sel Selector, wait time.Duration) (Element, error) {
	return c.find(ctx, sel, wait, false)
}

func (c *Chrome) FindClickable(ctx context.Context, sel Selector, wait time.Duration) (Element, error) {
	return c.find(ctx, sel, wait, true)
}

func (c *Chrome) FindAll(ctx context.Context, sel Selector) ([]Element, error) {
	opts := append(queryOptions(sel, true), chromedp.AtLeast(0))
	var nodes []*cdp.Node
	if err := c.run(ctx, c.timeout, chromedp.Nodes(sel.Query, &nodes, opts...)); err != nil {
		return nil, err
	}
	out := make([]Element, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, &chromeElement{node: n})
	}
	return out, nil
}

func nodeOf(el Element) (*cdp.Node, error) {
	ce, ok := el.(*chromeElement)
	if !ok || ce.node == nil {
		return nil, fmt.Errorf("%w: foreign element handle", ErrStaleElement)
	}
	return ce.node, nil
}

func (c *Chrome) Click(ctx context.Context, el Element) error {
	node, err := nodeOf(el)
	if err != nil {
		return err
	}
	return c.run(ctx, c.timeout, chromedp.MouseClickNode(node))
}

func (c *Chrome) SendKeys(ctx context.Context, el Element, text string) error {
	node, err := nodeOf(el)
	if err != nil {
		return err
	}
	return c.run(ctx, c.timeout, chromedp.KeyEventNode(node, text))
}

// callOn runs a JavaScript function with this bound to the element.
func (c *Chrome) callOn(ctx context.Context, el Element, fn string) error {
	node, err := nodeOf(el)
	if err != nil {
		return err
	}
	return c.run(ctx, c.timeout, chromedp.ActionFunc(func(ctx context.Context) error {
		obj, err := dom.ResolveNode().WithBackendNodeID(node.BackendNodeID).Do(ctx)
		if err != nil {
			return err
		}
		_, exc, err := runtime.CallFunctionOn(fn).WithObjectID(obj.ObjectID).Do(ctx)
		if err != nil {
			return err
		}
		if exc != nil {
			return exc
		}
		return nil
	}))
}

func (c *Chrome) JSClick(ctx context.Context, el Element) error {
	return c.callOn(ctx, el, `function() { this.click(); }`)
}

func (c *Chrome) Clear(ctx context.Context, el Element) error {
	return c.callOn(ctx, el, `function() {
		this.value = '';
		this.dispatchEvent(new Event('input', {bubbles: true}));
		this.dispatchEvent(new Event('change', {bubbles: true}));
	}`)
}

func (c *Chrome) ScrollIntoView(ctx context.Context, el Element) error {
	return c.callOn(ctx, el, `function() { this.scrollIntoView({block: 'center'}); }`)
}

func (c *Chrome) Navigate(ctx context.Context, url string) error {
	return c.run(ctx, c.timeout, chromedp.Navigate(url))
}

func (c *Chrome) CurrentURL(ctx context.Context) (string, error) {
	var url string
	err := c.run(ctx, c.timeout, chromedp.Location(&url))
	return url, err
}

func (c *Chrome) ReadyState(ctx context.Context) (string, error) {
	var state string
	err := c.run(ctx, c.timeout, chromedp.Evaluate(`document.readyState`, &state))
	return state, err
}

func (c *Chrome) HTML(ctx context.Context) (string, error) {
	var html string
	err := c.run(ctx, c.timeout, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	return html, err
}

// Windows lists the page targets of the browser.
func (c *Chrome) Windows(ctx context.Context) ([]string, error) {
	tabCtx, err := c.tab()
	if err != nil {
		return nil, err
	}
	infos, err := chromedp.Targets(tabCtx)
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, info := range infos {
		if info.Type == "page" {
			ids = append(ids, string(info.TargetID))
		}
	}
	return ids, nil
}

// SwitchWindow attaches subsequent actions to the given page target.
func (c *Chrome) SwitchWindow(ctx context.Context, id string) error {
	if _, err := c.tab(); err != nil {
		return err
	}
	newCtx, cancel := chromedp.NewContext(c.browserCtx, chromedp.WithTargetID(target.ID(id)))
	stop := context.AfterFunc(ctx, cancel)
	err := chromedp.Run(newCtx)
	stop()
	if err != nil {
		cancel()
		return classify(err)
	}

	c.mu.Lock()
	c.tabCtx = newCtx
	c.tabCancels = append(c.tabCancels, cancel)
	c.mu.Unlock()
	return nil
}

func (c *Chrome) SetDownloadDir(ctx context.Context, dir string) error {
	return c.run(ctx, c.timeout, cdpbrowser.SetDownloadBehavior(cdpbrowser.SetDownloadBehaviorBehaviorAllow).
		WithDownloadPath(dir).
		WithEventsEnabled(true))
}

// Close shuts the browser down. It is safe to call more than once.
func (c *Chrome) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		tabCancels := c.tabCancels
		c.mu.Unlock()

		for _, cancel := range tabCancels {
			cancel()
		}
		err = chromedp.Cancel(c.browserCtx)
		c.browserCancel()
		c.allocCancel()
		c.logger.Info("Browser closed")
	})
	return err
}
