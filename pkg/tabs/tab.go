// pkg/tabs/tab.go
package tabs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp/kb"

	"github.com/inquilabee/browsertabs/internal/scripts"
	"github.com/inquilabee/browsertabs/internal/urlutil"
	"github.com/inquilabee/browsertabs/internal/utils"
	"github.com/inquilabee/browsertabs/pkg/jquery"
	"github.com/inquilabee/browsertabs/pkg/scheduler"
)

// Tab is one page in a browser session. A Tab stays valid after the page
// is closed; operations then fail with a tab-closed error. Every operation
// focuses the tab first, so at most one tab of a session is worked on at a
// time and page-side code observes a visible page.
type Tab struct {
	id        TargetID
	sessionID string
	browser   *Browser
	startURL  string
	created   time.Time
	managed   bool

	loadTimeout time.Duration
	partialWait time.Duration
}

func newTab(b *Browser, id TargetID, url string, managed bool) *Tab {
	return &Tab{
		id:          id,
		sessionID:   b.id,
		browser:     b,
		startURL:    url,
		created:     time.Now(),
		managed:     managed,
		loadTimeout: b.opts.PageLoadTimeout,
		partialWait: b.opts.PartialLoadWait,
	}
}

// ID returns the tab's target identifier.
func (t *Tab) ID() TargetID { return t.id }

// SessionID returns the id of the session that owns this tab.
func (t *Tab) SessionID() string { return t.sessionID }

// Managed reports whether the session tracks this tab.
func (t *Tab) Managed() bool { return t.managed }

// Created returns when this Tab was first seen by its session.
func (t *Tab) Created() time.Time { return t.created }

// StartURL returns the URL this tab was opened with.
func (t *Tab) StartURL() string { return t.startURL }

// ownerKey places the tab's scheduled tasks under its session in the
// owner hierarchy.
func (t *Tab) ownerKey() string {
	return t.sessionID + "/" + string(t.id)
}

func (t *Tab) owner() *Browser {
	if t.browser != nil {
		return t.browser
	}
	return lookupSession(t.sessionID)
}

// do runs fn with the session locked and this tab focused. Dead tabs are
// dropped from tracking and reported as closed.
func (t *Tab) do(fn func(ctx context.Context, b *Browser) error) error {
	b := t.owner()
	if b == nil {
		return utils.NewError(utils.ErrCodeSessionClosed, "tab has no running session").Build()
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return utils.NewError(utils.ErrCodeSessionClosed, "browser session is closed").Build()
	}

	ctx := context.Background()
	if !b.liveLocked(ctx, t.id) {
		if b.tabs.Exists(t.id) {
			b.tabs.Remove(t.id)
			scheduler.Default().CancelOwner(scheduler.OwnerKey(t.ownerKey()))
			b.metrics.RecordTabClosed()
		}
		return utils.NewError(utils.ErrCodeTabClosed, fmt.Sprintf("tab %s is closed", t.id)).Build()
	}

	if err := b.switchToLocked(ctx, t.id); err != nil {
		return err
	}
	return fn(ctx, b)
}

// Alive reports whether the page behind this tab is still open.
func (t *Tab) Alive() bool {
	b := t.owner()
	if b == nil {
		return false
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return false
	}
	return b.liveLocked(context.Background(), t.id)
}

// Exists reports whether the session still tracks this tab.
func (t *Tab) Exists() bool {
	b := t.owner()
	if b == nil {
		return false
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return false
	}
	return b.tabs.Exists(t.id)
}

// Switch focuses this tab.
func (t *Tab) Switch() error {
	return t.do(func(ctx context.Context, b *Browser) error { return nil })
}

// Close closes this tab through its session.
func (t *Tab) Close() error {
	b := t.owner()
	if b == nil {
		return utils.NewError(utils.ErrCodeSessionClosed, "tab has no running session").Build()
	}
	return b.CloseTab(t)
}

// Open navigates this tab to url. A load that exceeds the page load
// timeout is stopped; the page is kept when it reached the right site,
// otherwise the navigation fails with a timeout error.
func (t *Tab) Open(url string) error {
	return t.do(func(ctx context.Context, b *Browser) error {
		return t.openLocked(ctx, b, url)
	})
}

func (t *Tab) openLocked(ctx context.Context, b *Browser, url string) error {
	start := time.Now()

	err := b.driver.Navigate(ctx, t.id, url, t.loadTimeout)
	if err == nil {
		b.metrics.RecordNavigation("success", time.Since(start))
		b.logger.WithFields(map[string]interface{}{
			"tab": string(t.id),
			"url": url,
		}).Debug("page loaded")
		return nil
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		b.metrics.RecordNavigation("error", time.Since(start))
		return fmt.Errorf("navigation failed: %w", err)
	}

	// The load timed out. Stop it and keep the page when it at least
	// reached the right site; single page apps often never fire load.
	if serr := b.driver.StopLoading(ctx, t.id); serr != nil {
		b.logger.WithField("tab", string(t.id)).Debugf("stop loading failed: %v", serr)
	}

	var loaded string
	if eerr := b.driver.Evaluate(ctx, t.id, scripts.LocationHref, &loaded); eerr != nil || !urlutil.SameSite(loaded, url) {
		b.metrics.RecordNavigation("timeout", time.Since(start))
		return utils.NewError(utils.ErrCodeNavigationTimeout, "page did not load in time").
			WithCause(err).
			WithContext("url", url).
			WithContext("loaded", loaded).
			Build()
	}

	if t.partialWait > 0 {
		time.Sleep(t.partialWait)
	}
	b.metrics.RecordNavigation("partial", time.Since(start))
	b.logger.WithFields(map[string]interface{}{
		"tab": string(t.id),
		"url": url,
	}).Warn("accepted partially loaded page")
	return nil
}

// Refresh reloads the page.
func (t *Tab) Refresh() error {
	return t.do(func(ctx context.Context, b *Browser) error {
		return b.driver.Reload(ctx, t.id)
	})
}

// Back navigates one entry back in the tab's history.
func (t *Tab) Back() error {
	return t.do(func(ctx context.Context, b *Browser) error {
		return b.driver.Back(ctx, t.id)
	})
}

// Forward navigates one entry forward in the tab's history.
func (t *Tab) Forward() error {
	return t.do(func(ctx context.Context, b *Browser) error {
		return b.driver.Forward(ctx, t.id)
	})
}

// WaitReady blocks until the document has fully loaded or ctx ends. The
// session stays locked while waiting, so other tabs' operations queue
// behind it.
func (t *Tab) WaitReady(ctx context.Context) error {
	return t.do(func(dctx context.Context, b *Browser) error {
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			var complete bool
			if err := b.driver.Evaluate(dctx, t.id, scripts.DocumentComplete, &complete); err == nil && complete {
				return nil
			}
			select {
			case <-ctx.Done():
				return utils.WrapError(ctx.Err(), utils.ErrCodeNavigationTimeout, "page never finished loading")
			case <-ticker.C:
			}
		}
	})
}

// Title returns the page title.
func (t *Tab) Title() (string, error) {
	var title string
	err := t.do(func(ctx context.Context, b *Browser) error {
		return b.driver.Evaluate(ctx, t.id, scripts.PageTitle, &title)
	})
	return title, err
}

// URL returns the page URL as the page sees it, redirects included.
func (t *Tab) URL() (string, error) {
	var href string
	err := t.do(func(ctx context.Context, b *Browser) error {
		return b.driver.Evaluate(ctx, t.id, scripts.LocationHref, &href)
	})
	return href, err
}

// Domain returns the registrable domain of the page URL.
func (t *Tab) Domain() (string, error) {
	href, err := t.URL()
	if err != nil {
		return "", err
	}
	return urlutil.RegistrableDomain(href)
}

// PageSource returns the serialized document.
func (t *Tab) PageSource() (string, error) {
	var html string
	err := t.do(func(ctx context.Context, b *Browser) error {
		var herr error
		html, herr = b.driver.HTML(ctx, t.id)
		return herr
	})
	return html, err
}

// PageHeight returns the full scrollable height of the document.
func (t *Tab) PageHeight() (int64, error) {
	var height int64
	err := t.do(func(ctx context.Context, b *Browser) error {
		return b.driver.Evaluate(ctx, t.id, scripts.PageHeight, &height)
	})
	return height, err
}

// RunJS evaluates js in the page and decodes the result into out. A nil
// out discards the result; page exceptions fail the evaluation.
func (t *Tab) RunJS(js string, out any) error {
	return t.do(func(ctx context.Context, b *Browser) error {
		if err := b.driver.Evaluate(ctx, t.id, js, out); err != nil {
			b.metrics.RecordJSEvaluation("error")
			return utils.WrapError(err, utils.ErrCodeScriptFailed, "script evaluation failed")
		}
		b.metrics.RecordJSEvaluation("success")
		return nil
	})
}

// RunJSAsync evaluates js for its side effects only. The result is
// discarded and page promises are not awaited.
func (t *Tab) RunJSAsync(js string) error {
	return t.RunJS(js, nil)
}

// Document parses the current page into a goquery document for static
// inspection. The document is a snapshot; it does not follow later page
// changes.
func (t *Tab) Document() (*goquery.Document, error) {
	html, err := t.PageSource()
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, utils.WrapError(err, utils.ErrCodeInternal, "failed to parse page")
	}
	return doc, nil
}

// JQuery injects jQuery into the page when no usable copy is present and
// returns a handle for running jQuery expressions.
func (t *Tab) JQuery() (*jquery.JQuery, error) {
	jq := jquery.New(t)
	if err := jq.Ensure(); err != nil {
		return nil, err
	}
	return jq, nil
}

// CSS returns live element handles for every node matching selector, in
// document order. No matches is an empty slice, not an error.
func (t *Tab) CSS(selector string) ([]*Element, error) {
	if err := utils.ValidateSelector(selector); err != nil {
		return nil, err
	}
	var elements []*Element
	err := t.do(func(ctx context.Context, b *Browser) error {
		refs, err := b.driver.QueryNodes(ctx, t.id, selector)
		if err != nil {
			return err
		}
		elements = make([]*Element, 0, len(refs))
		for i, ref := range refs {
			elements = append(elements, &Element{
				tab:      t,
				selector: selector,
				index:    i,
				ref:      ref,
			})
		}
		return nil
	})
	return elements, err
}

// Find returns the first element matching selector.
func (t *Tab) Find(selector string) (*Element, error) {
	elements, err := t.CSS(selector)
	if err != nil {
		return nil, err
	}
	if len(elements) == 0 {
		return nil, utils.NewError(utils.ErrCodeSelectorNotFound,
			fmt.Sprintf("no element matches %q", selector)).
			WithContext("selector", selector).
			Build()
	}
	return elements[0], nil
}

// clickSettings configures how Click delivers the click.
type clickSettings struct {
	strategies []ClickStrategy
}

// ClickOption adjusts a single click call.
type ClickOption func(*clickSettings)

// WithStrategies restricts the click to the given strategies, tried in
// order.
func WithStrategies(strategies ...ClickStrategy) ClickOption {
	return func(s *clickSettings) {
		if len(strategies) > 0 {
			s.strategies = strategies
		}
	}
}

// clickLocked walks the strategy ladder until one click lands.
func (t *Tab) clickLocked(ctx context.Context, b *Browser, selector string, index int, opts []ClickOption) error {
	settings := clickSettings{strategies: defaultClickOrder}
	for _, opt := range opts {
		opt(&settings)
	}

	var lastErr error
	for _, strategy := range settings.strategies {
		err := b.driver.ClickNode(ctx, t.id, selector, index, strategy)
		if err == nil {
			b.metrics.RecordClick(string(strategy), "success")
			return nil
		}
		b.metrics.RecordClick(string(strategy), "error")
		b.logger.WithFields(map[string]interface{}{
			"tab":      string(t.id),
			"selector": selector,
			"strategy": string(strategy),
		}).Debugf("click failed: %v", err)
		lastErr = err
	}
	return fmt.Errorf("all click strategies failed for %q: %w", selector, lastErr)
}

// Click clicks the first element matching selector. Strategies are tried
// in order until one lands: a humanized mouse click near the element
// center, a page-side el.click(), then the driver's own click.
func (t *Tab) Click(selector string, opts ...ClickOption) error {
	return t.do(func(ctx context.Context, b *Browser) error {
		return t.clickLocked(ctx, b, selector, 0, opts)
	})
}

// EmptyClick clicks a neutral point near the viewport origin, useful for
// dismissing focus or overlays without hitting an element.
func (t *Tab) EmptyClick() error {
	return t.do(func(ctx context.Context, b *Browser) error {
		if err := b.driver.ClickPoint(ctx, t.id, 1, 1); err != nil {
			b.metrics.RecordClick("empty", "error")
			return fmt.Errorf("empty click failed: %w", err)
		}
		b.metrics.RecordClick("empty", "success")
		return nil
	})
}

// SendKeys types text into the first element matching selector.
func (t *Tab) SendKeys(selector, text string) error {
	return t.do(func(ctx context.Context, b *Browser) error {
		return b.driver.SendKeys(ctx, t.id, selector, 0, text)
	})
}

// Submit sends a return key to the first element matching selector,
// submitting the form it belongs to.
func (t *Tab) Submit(selector string) error {
	return t.do(func(ctx context.Context, b *Browser) error {
		return b.driver.SendKeys(ctx, t.id, selector, 0, kb.Enter)
	})
}

// Clear empties the value of the first element matching selector.
func (t *Tab) Clear(selector string) error {
	return t.do(func(ctx context.Context, b *Browser) error {
		return b.driver.Clear(ctx, t.id, selector, 0)
	})
}

// Screenshot captures the visible viewport as PNG.
func (t *Tab) Screenshot() ([]byte, error) {
	var buf []byte
	err := t.do(func(ctx context.Context, b *Browser) error {
		var serr error
		buf, serr = b.driver.Screenshot(ctx, t.id)
		return serr
	})
	return buf, err
}

// SaveScreenshot captures the viewport and writes it to path.
func (t *Tab) SaveScreenshot(path string) error {
	buf, err := t.Screenshot()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, buf, 0644); err != nil {
		return fmt.Errorf("failed to write screenshot: %w", err)
	}
	return nil
}

// ScheduleTask runs fn against this tab every period. Failures are logged
// and counted but never stop the schedule; the task is cancelled when the
// tab or its session closes.
func (t *Tab) ScheduleTask(period time.Duration, fn func(*Tab) error) (scheduler.TaskID, error) {
	return t.ScheduleNamedTask(fmt.Sprintf("tab-%s", t.id), period, fn)
}

// ScheduleNamedTask is ScheduleTask with an explicit task name for logs
// and status output.
func (t *Tab) ScheduleNamedTask(name string, period time.Duration, fn func(*Tab) error) (scheduler.TaskID, error) {
	return scheduler.Default().Schedule(scheduler.OwnerKey(t.ownerKey()), name, period, func() error {
		if !t.Alive() {
			return utils.NewError(utils.ErrCodeTabClosed,
				fmt.Sprintf("tab %s is closed", t.id)).Build()
		}
		return fn(t)
	})
}
