// pkg/tabs/types.go

// Package tabs manages the tabs of a driven Chrome session: opening,
// switching, closing, element queries, scrolling and waiting helpers, and
// per-tab periodic tasks. All bookkeeping talks to the browser through the
// Driver interface, so the logic is testable without a running Chrome.
package tabs

import (
	"context"
	"time"

	"github.com/chromedp/cdproto/cdp"

	"github.com/inquilabee/browsertabs/internal/config"
	"github.com/inquilabee/browsertabs/internal/monitoring"
	"github.com/inquilabee/browsertabs/internal/utils"
)

// TargetID identifies one page target. It is the window-handle analog and
// stays stable for the lifetime of the tab.
type TargetID string

// TargetInfo describes one page target as reported by the driver.
type TargetInfo struct {
	ID       TargetID `json:"id"`
	URL      string   `json:"url"`
	Title    string   `json:"title"`
	Attached bool     `json:"attached"`
}

// NodeRef identifies one DOM node returned by a selector query.
type NodeRef struct {
	NodeID cdp.NodeID
	Tag    string
}

// ClickStrategy selects how a click is delivered to an element.
type ClickStrategy string

const (
	// ClickHumanized dispatches a raw mouse click at the element's center
	// plus a small random offset.
	ClickHumanized ClickStrategy = "humanized"

	// ClickJS calls el.click() from inside the page.
	ClickJS ClickStrategy = "js"

	// ClickPlain forwards to the driver's own click action.
	ClickPlain ClickStrategy = "plain"
)

// defaultClickOrder is the ladder Click walks until one strategy lands.
var defaultClickOrder = []ClickStrategy{ClickHumanized, ClickJS, ClickPlain}

// WaitCondition names the element states the wait helpers can block on.
type WaitCondition int

const (
	WaitUntilVisible WaitCondition = iota
	WaitUntilPresent
	WaitUntilNotPresent
	WaitUntilNotVisible
)

// String returns the condition name for logs.
func (c WaitCondition) String() string {
	switch c {
	case WaitUntilVisible:
		return "visible"
	case WaitUntilPresent:
		return "present"
	case WaitUntilNotPresent:
		return "not-present"
	case WaitUntilNotVisible:
		return "not-visible"
	}
	return "unknown"
}

// Driver is the narrow surface of the browser the tab bookkeeping uses.
// The production implementation drives Chrome over the DevTools protocol;
// tests substitute a fake. Methods taking a context honor its cancellation
// and deadline on top of the driver's own timeouts.
type Driver interface {
	// Start boots the browser and attaches to its initial page target.
	// Calling Start on a running driver is a no-op.
	Start(ctx context.Context) error
	// Stop closes every target and the browser. Idempotent.
	Stop() error

	// Targets lists the current page targets in driver order.
	Targets(ctx context.Context) ([]TargetInfo, error)
	// FocusedTarget reports which page target currently has focus.
	FocusedTarget(ctx context.Context) (TargetID, error)
	// NewTarget opens a new page target. An empty url means about:blank.
	NewTarget(ctx context.Context, url string) (TargetID, error)
	CloseTarget(ctx context.Context, id TargetID) error
	ActivateTarget(ctx context.Context, id TargetID) error

	// Navigate drives the target to url and waits for the load to finish,
	// up to timeout. A timeout surfaces as context.DeadlineExceeded so the
	// caller can decide whether the partial page is acceptable.
	Navigate(ctx context.Context, id TargetID, url string, timeout time.Duration) error
	Reload(ctx context.Context, id TargetID) error
	Back(ctx context.Context, id TargetID) error
	Forward(ctx context.Context, id TargetID) error
	StopLoading(ctx context.Context, id TargetID) error

	// Evaluate runs js in the target and decodes the result into out.
	// A nil out discards the result. Page exceptions surface as errors.
	Evaluate(ctx context.Context, id TargetID, js string, out any) error
	// HTML returns the outer HTML of the document.
	HTML(ctx context.Context, id TargetID) (string, error)
	// Screenshot captures the viewport as PNG.
	Screenshot(ctx context.Context, id TargetID) ([]byte, error)
	SetUserAgent(ctx context.Context, id TargetID, userAgent string) error
	// SendKeyEvent dispatches raw key input to the page, not to an element.
	SendKeyEvent(ctx context.Context, id TargetID, keys string) error

	// QueryNodes resolves a CSS selector to the matching DOM nodes. No
	// matches is an empty slice, not an error.
	QueryNodes(ctx context.Context, id TargetID, selector string) ([]NodeRef, error)
	// NodeCenter reports the viewport coordinates of the center of the
	// index-th node matching selector.
	NodeCenter(ctx context.Context, id TargetID, selector string, index int) (x, y float64, err error)
	// ClickNode clicks the index-th node matching selector using one
	// strategy. Walking the strategy ladder is the caller's job.
	ClickNode(ctx context.Context, id TargetID, selector string, index int, strategy ClickStrategy) error
	// ClickPoint clicks a bare viewport coordinate.
	ClickPoint(ctx context.Context, id TargetID, x, y float64) error
	SendKeys(ctx context.Context, id TargetID, selector string, index int, keys string) error
	Clear(ctx context.Context, id TargetID, selector string, index int) error
	// WaitFor blocks until the selector reaches the condition or ctx ends.
	WaitFor(ctx context.Context, id TargetID, selector string, cond WaitCondition) error
}

// Default browser geometry and navigation policy.
const (
	DefaultWindowWidth  = 1920
	DefaultWindowHeight = 1080
)

// Options configures a browser session.
type Options struct {
	// Headless runs Chrome without a visible window.
	Headless bool

	// WindowWidth and WindowHeight set the browser window size.
	WindowWidth  int
	WindowHeight int

	// UserAgent overrides the browser user agent for every tab.
	UserAgent string

	// UserAgents is the pool used when RotateUserAgent is set. An empty
	// pool falls back to a default desktop set.
	UserAgents []string

	// RotateUserAgent gives each newly opened tab the next user agent
	// from the pool.
	RotateUserAgent bool

	// UserDataDir points Chrome at a persistent profile directory.
	UserDataDir string

	// Proxy is the proxy server URL passed to Chrome.
	Proxy string

	// ExecPath overrides the Chrome binary location.
	ExecPath string

	// Stealth registers the automation-concealment script in every tab.
	Stealth bool

	// NoSandbox disables the Chrome sandbox. Required in most containers.
	NoSandbox bool

	// PageLoadTimeout bounds a full page load before the partial-load
	// policy applies.
	PageLoadTimeout time.Duration

	// PartialLoadWait is the settle delay after accepting a partial load.
	PartialLoadWait time.Duration

	// Logger receives session logs. Defaults to the package logger.
	Logger utils.Logger

	// Metrics receives session metrics. Defaults to monitoring.Default().
	Metrics *monitoring.MetricsManager

	// driver substitutes the browser implementation in tests.
	driver Driver
}

// Option mutates Options, chromedp-style.
type Option func(*Options)

func defaultOptions() Options {
	return Options{
		WindowWidth:     DefaultWindowWidth,
		WindowHeight:    DefaultWindowHeight,
		PageLoadTimeout: config.DefaultPageLoadTimeout,
		PartialLoadWait: config.DefaultPartialLoadWait,
	}
}

// WithHeadless toggles headless mode.
func WithHeadless(headless bool) Option {
	return func(o *Options) { o.Headless = headless }
}

// WithWindowSize sets the browser window size. Non-positive dimensions keep
// the defaults.
func WithWindowSize(width, height int) Option {
	return func(o *Options) {
		if width > 0 {
			o.WindowWidth = width
		}
		if height > 0 {
			o.WindowHeight = height
		}
	}
}

// WithUserAgent fixes the user agent for the whole session.
func WithUserAgent(userAgent string) Option {
	return func(o *Options) { o.UserAgent = userAgent }
}

// WithUserAgentRotation rotates through agents as tabs open. An empty list
// uses a default desktop set.
func WithUserAgentRotation(agents ...string) Option {
	return func(o *Options) {
		o.RotateUserAgent = true
		o.UserAgents = agents
	}
}

// WithUserDataDir points Chrome at a persistent profile directory.
func WithUserDataDir(dir string) Option {
	return func(o *Options) { o.UserDataDir = dir }
}

// WithProxy routes browser traffic through the given proxy server.
func WithProxy(proxyURL string) Option {
	return func(o *Options) { o.Proxy = proxyURL }
}

// WithExecPath overrides the Chrome binary location.
func WithExecPath(path string) Option {
	return func(o *Options) { o.ExecPath = path }
}

// WithStealth toggles the automation-concealment script.
func WithStealth(stealth bool) Option {
	return func(o *Options) { o.Stealth = stealth }
}

// WithNoSandbox disables the Chrome sandbox.
func WithNoSandbox(noSandbox bool) Option {
	return func(o *Options) { o.NoSandbox = noSandbox }
}

// WithPageLoadTimeout bounds full page loads.
func WithPageLoadTimeout(d time.Duration) Option {
	return func(o *Options) {
		if d > 0 {
			o.PageLoadTimeout = d
		}
	}
}

// WithPartialLoadWait sets the settle delay after a partial load.
func WithPartialLoadWait(d time.Duration) Option {
	return func(o *Options) {
		if d >= 0 {
			o.PartialLoadWait = d
		}
	}
}

// WithLogger routes session logs to logger.
func WithLogger(logger utils.Logger) Option {
	return func(o *Options) { o.Logger = logger }
}

// WithMetrics routes session metrics to mm.
func WithMetrics(mm *monitoring.MetricsManager) Option {
	return func(o *Options) { o.Metrics = mm }
}

// withDriver substitutes the driver. Tests only.
func withDriver(d Driver) Option {
	return func(o *Options) { o.driver = d }
}

// FromConfig maps the browser section of a config file onto options.
func FromConfig(bc config.BrowserConfig) []Option {
	opts := []Option{
		WithHeadless(bc.Headless),
		WithWindowSize(bc.WindowWidth, bc.WindowHeight),
		WithPageLoadTimeout(bc.PageLoadTimeoutDuration()),
		WithPartialLoadWait(bc.PartialLoadWaitDuration()),
	}
	if bc.UserAgent != "" {
		opts = append(opts, WithUserAgent(bc.UserAgent))
	}
	if bc.RotateUserAgent {
		opts = append(opts, WithUserAgentRotation(bc.UserAgents...))
	}
	if bc.UserDataDir != "" {
		opts = append(opts, WithUserDataDir(bc.UserDataDir))
	}
	if bc.Proxy != "" {
		opts = append(opts, WithProxy(bc.Proxy))
	}
	if bc.ExecPath != "" {
		opts = append(opts, WithExecPath(bc.ExecPath))
	}
	if bc.Stealth {
		opts = append(opts, WithStealth(true))
	}
	if bc.NoSandbox {
		opts = append(opts, WithNoSandbox(true))
	}
	return opts
}
