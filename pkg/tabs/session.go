// pkg/tabs/session.go
package tabs

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"

	"github.com/inquilabee/browsertabs/internal/antidetect"
	"github.com/inquilabee/browsertabs/internal/scripts"
	"github.com/inquilabee/browsertabs/internal/utils"
)

// humanClickJitter is the maximum pixel offset added to humanized clicks.
const humanClickJitter = 5

// chromeDriver drives one Chrome process over the DevTools protocol using
// chromedp. Page targets get their own attached chromedp context, created
// lazily so targets opened by the page itself (window.open, target=_blank)
// can be adopted after the fact.
type chromeDriver struct {
	opts   Options
	logger utils.Logger

	mu            sync.Mutex
	allocCtx      context.Context
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	targets       map[TargetID]*targetSession
	initialID     TargetID
	started       bool
}

// targetSession is the attached chromedp context for one page target. The
// initial target reuses the browser context and carries a nil cancel.
type targetSession struct {
	ctx    context.Context
	cancel context.CancelFunc
}

func newChromeDriver(opts Options) *chromeDriver {
	logger := opts.Logger
	if logger == nil {
		logger = utils.NewLogger()
	}
	return &chromeDriver{
		opts:   opts,
		logger: logger.WithField("component", "driver"),
	}
}

// boundCtx derives a context from base that also ends when caller does.
// Chrome outlives the caller's context; only the in-flight operation is
// bound to it.
func boundCtx(caller, base context.Context) (context.Context, context.CancelFunc) {
	var ctx context.Context
	var cancel context.CancelFunc
	if deadline, ok := caller.Deadline(); ok {
		ctx, cancel = context.WithDeadline(base, deadline)
	} else {
		ctx, cancel = context.WithCancel(base)
	}
	stop := context.AfterFunc(caller, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

// Start launches Chrome and attaches to its initial blank tab.
func (d *chromeDriver) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.started {
		return nil
	}

	allocOpts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.DisableGPU,
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.WindowSize(d.opts.WindowWidth, d.opts.WindowHeight),
	}

	if d.opts.Headless {
		allocOpts = append(allocOpts, chromedp.Headless)
	}

	if d.opts.NoSandbox {
		allocOpts = append(allocOpts, chromedp.NoSandbox)
	}

	if d.opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(d.opts.UserAgent))
	}

	if d.opts.UserDataDir != "" {
		allocOpts = append(allocOpts, chromedp.UserDataDir(d.opts.UserDataDir))
	}

	if d.opts.Proxy != "" {
		allocOpts = append(allocOpts, chromedp.ProxyServer(d.opts.Proxy))
	}

	if d.opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(d.opts.ExecPath))
	}

	// The allocator hangs off context.Background, not the caller's context,
	// so the browser survives after Start returns. Stop tears it down.
	d.allocCtx, d.allocCancel = chromedp.NewExecAllocator(context.Background(), allocOpts...)
	d.browserCtx, d.browserCancel = chromedp.NewContext(d.allocCtx)

	launch, cancel := boundCtx(ctx, d.browserCtx)
	defer cancel()

	// The first Run starts the browser process and attaches to the initial
	// target.
	if err := chromedp.Run(launch); err != nil {
		d.teardownLocked()
		return fmt.Errorf("failed to start browser: %w", err)
	}

	c := chromedp.FromContext(d.browserCtx)
	d.initialID = TargetID(c.Target.TargetID)
	d.targets = map[TargetID]*targetSession{
		d.initialID: {ctx: d.browserCtx},
	}
	d.started = true

	if d.opts.Stealth {
		if err := d.registerStealth(ctx, d.browserCtx); err != nil {
			d.logger.Warnf("failed to register stealth script: %v", err)
		}
	}

	d.logger.WithField("target", string(d.initialID)).Debug("browser session started")
	return nil
}

// Stop closes every tab and the browser process. Safe to call twice.
func (d *chromeDriver) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.started {
		return nil
	}

	for id, ts := range d.targets {
		if ts.cancel != nil {
			ts.cancel()
		}
		delete(d.targets, id)
	}

	// Ask the browser to shut down cleanly before cancelling its context.
	if err := chromedp.Cancel(d.browserCtx); err != nil {
		d.logger.Debugf("graceful browser shutdown failed: %v", err)
	}

	d.teardownLocked()
	d.logger.Debug("browser session stopped")
	return nil
}

func (d *chromeDriver) teardownLocked() {
	if d.browserCancel != nil {
		d.browserCancel()
	}
	if d.allocCancel != nil {
		d.allocCancel()
	}
	d.browserCtx = nil
	d.browserCancel = nil
	d.allocCtx = nil
	d.allocCancel = nil
	d.targets = nil
	d.initialID = ""
	d.started = false
}

// registerStealth arranges for the concealment script to run in every new
// document of the target behind tctx. Script registration is per session,
// so each attached target registers its own copy.
func (d *chromeDriver) registerStealth(caller context.Context, tctx context.Context) error {
	run, cancel := boundCtx(caller, tctx)
	defer cancel()
	return chromedp.Run(run, chromedp.ActionFunc(func(ctx context.Context) error {
		_, err := page.AddScriptToEvaluateOnNewDocument(antidetect.StealthScript).Do(ctx)
		return err
	}))
}

// initSession forces the lazy chromedp context to attach so failures
// surface here rather than on the first real action.
func (d *chromeDriver) initSession(caller context.Context, tctx context.Context) error {
	if d.opts.Stealth {
		return d.registerStealth(caller, tctx)
	}
	run, cancel := boundCtx(caller, tctx)
	defer cancel()
	return chromedp.Run(run)
}

// sessionLocked returns the attached context for a target, adopting targets
// this driver has not seen before (pages opened by window.open or a link
// with target=_blank).
func (d *chromeDriver) sessionLocked(ctx context.Context, id TargetID) (*targetSession, error) {
	if !d.started {
		return nil, utils.NewError(utils.ErrCodeSessionClosed, "browser session is not running").Build()
	}

	if ts, ok := d.targets[id]; ok {
		return ts, nil
	}

	infos, err := d.targetsLocked(ctx)
	if err != nil {
		return nil, err
	}
	known := false
	for _, info := range infos {
		if info.ID == id {
			known = true
			break
		}
	}
	if !known {
		return nil, utils.NewError(utils.ErrCodeTabNotFound, fmt.Sprintf("no such tab: %s", id)).Build()
	}

	tctx, cancel := chromedp.NewContext(d.browserCtx, chromedp.WithTargetID(target.ID(id)))
	if err := d.initSession(ctx, tctx); err != nil {
		cancel()
		return nil, utils.WrapError(err, utils.ErrCodeTabNotFound, fmt.Sprintf("failed to attach to tab %s", id))
	}

	ts := &targetSession{ctx: tctx, cancel: cancel}
	d.targets[id] = ts
	return ts, nil
}

// browserExecutorLocked returns a context that issues commands on the
// browser-level connection. Browser commands keep working even while no
// page target is attached.
func (d *chromeDriver) browserExecutorLocked(caller context.Context) (context.Context, context.CancelFunc, error) {
	if !d.started {
		return nil, nil, utils.NewError(utils.ErrCodeSessionClosed, "browser session is not running").Build()
	}
	c := chromedp.FromContext(d.browserCtx)
	if c == nil || c.Browser == nil {
		return nil, nil, utils.NewError(utils.ErrCodeBrowserFailed, "browser connection is not initialized").Build()
	}
	run, cancel := boundCtx(caller, d.browserCtx)
	return cdp.WithExecutor(run, c.Browser), cancel, nil
}

func (d *chromeDriver) runLocked(ctx context.Context, id TargetID, actions ...chromedp.Action) error {
	ts, err := d.sessionLocked(ctx, id)
	if err != nil {
		return err
	}
	run, cancel := boundCtx(ctx, ts.ctx)
	defer cancel()
	return chromedp.Run(run, actions...)
}

func (d *chromeDriver) run(ctx context.Context, id TargetID, actions ...chromedp.Action) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.runLocked(ctx, id, actions...)
}

// Targets lists the open page targets. Non-page targets (service workers,
// extensions) are filtered out.
func (d *chromeDriver) Targets(ctx context.Context) ([]TargetInfo, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.targetsLocked(ctx)
}

func (d *chromeDriver) targetsLocked(ctx context.Context) ([]TargetInfo, error) {
	if !d.started {
		return nil, utils.NewError(utils.ErrCodeSessionClosed, "browser session is not running").Build()
	}
	run, cancel := boundCtx(ctx, d.browserCtx)
	defer cancel()

	infos, err := chromedp.Targets(run)
	if err != nil {
		return nil, fmt.Errorf("failed to list targets: %w", err)
	}

	out := make([]TargetInfo, 0, len(infos))
	for _, info := range infos {
		if info.Type != "page" {
			continue
		}
		out = append(out, TargetInfo{
			ID:       TargetID(info.TargetID),
			URL:      info.URL,
			Title:    info.Title,
			Attached: info.Attached,
		})
	}
	return out, nil
}

// FocusedTarget probes each page for document.visibilityState and reports
// the first visible one. Chrome keeps exactly one page visible per window.
func (d *chromeDriver) FocusedTarget(ctx context.Context) (TargetID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	infos, err := d.targetsLocked(ctx)
	if err != nil {
		return "", err
	}

	for _, info := range infos {
		var visible bool
		if err := d.runLocked(ctx, info.ID, chromedp.Evaluate(scripts.Visible, &visible)); err != nil {
			d.logger.WithField("target", string(info.ID)).Debugf("visibility probe failed: %v", err)
			continue
		}
		if visible {
			return info.ID, nil
		}
	}
	return "", utils.NewError(utils.ErrCodeTabNotFound, "no focused tab").Build()
}

// NewTarget opens a new page target and attaches to it. An empty url opens
// about:blank.
func (d *chromeDriver) NewTarget(ctx context.Context, url string) (TargetID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if url == "" {
		url = "about:blank"
	}

	bctx, cancel, err := d.browserExecutorLocked(ctx)
	if err != nil {
		return "", err
	}
	defer cancel()

	id, err := target.CreateTarget(url).Do(bctx)
	if err != nil {
		return "", fmt.Errorf("failed to create target: %w", err)
	}

	tid := TargetID(id)
	tctx, tcancel := chromedp.NewContext(d.browserCtx, chromedp.WithTargetID(id))
	if err := d.initSession(ctx, tctx); err != nil {
		tcancel()
		if cerr := d.closeTargetLocked(ctx, tid); cerr != nil {
			d.logger.WithField("target", string(tid)).Debugf("failed to close unattachable target: %v", cerr)
		}
		return "", utils.WrapError(err, utils.ErrCodeBrowserFailed, "failed to attach to new tab")
	}
	d.targets[tid] = &targetSession{ctx: tctx, cancel: tcancel}

	return tid, nil
}

// CloseTarget closes a page target. Closing the last one leaves the
// browser process running; browser commands go over their own connection.
func (d *chromeDriver) CloseTarget(ctx context.Context, id TargetID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closeTargetLocked(ctx, id)
}

func (d *chromeDriver) closeTargetLocked(ctx context.Context, id TargetID) error {
	bctx, cancel, err := d.browserExecutorLocked(ctx)
	if err != nil {
		return err
	}
	defer cancel()

	if err := target.CloseTarget(target.ID(id)).Do(bctx); err != nil {
		return fmt.Errorf("failed to close target: %w", err)
	}

	if ts, ok := d.targets[id]; ok {
		if ts.cancel != nil {
			ts.cancel()
		}
		delete(d.targets, id)
	}
	return nil
}

// ActivateTarget focuses a page target. BringToFront flips the page's
// visibilityState, which ActivateTarget alone does not always do under
// headless Chrome.
func (d *chromeDriver) ActivateTarget(ctx context.Context, id TargetID) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	ts, err := d.sessionLocked(ctx, id)
	if err != nil {
		return err
	}

	bctx, cancel, err := d.browserExecutorLocked(ctx)
	if err != nil {
		return err
	}
	defer cancel()

	if err := target.ActivateTarget(target.ID(id)).Do(bctx); err != nil {
		return fmt.Errorf("failed to activate target: %w", err)
	}

	run, rcancel := boundCtx(ctx, ts.ctx)
	defer rcancel()
	if err := chromedp.Run(run, chromedp.ActionFunc(func(ctx context.Context) error {
		return page.BringToFront().Do(ctx)
	})); err != nil {
		d.logger.WithField("target", string(id)).Debugf("bring to front failed: %v", err)
	}
	return nil
}

// Navigate drives the target to url. The timeout bounds the full load; on
// expiry the error is context.DeadlineExceeded and the page keeps loading
// until the caller stops it.
func (d *chromeDriver) Navigate(ctx context.Context, id TargetID, url string, timeout time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	ts, err := d.sessionLocked(ctx, id)
	if err != nil {
		return err
	}

	run, cancel := boundCtx(ctx, ts.ctx)
	defer cancel()
	if timeout > 0 {
		var tcancel context.CancelFunc
		run, tcancel = context.WithTimeout(run, timeout)
		defer tcancel()
	}
	return chromedp.Run(run, chromedp.Navigate(url))
}

func (d *chromeDriver) Reload(ctx context.Context, id TargetID) error {
	return d.run(ctx, id, chromedp.Reload())
}

func (d *chromeDriver) Back(ctx context.Context, id TargetID) error {
	return d.run(ctx, id, chromedp.NavigateBack())
}

func (d *chromeDriver) Forward(ctx context.Context, id TargetID) error {
	return d.run(ctx, id, chromedp.NavigateForward())
}

func (d *chromeDriver) StopLoading(ctx context.Context, id TargetID) error {
	return d.run(ctx, id, chromedp.Stop())
}

// Evaluate runs js in the page. A nil out discards the result; page
// exceptions and undefined results surface as errors.
func (d *chromeDriver) Evaluate(ctx context.Context, id TargetID, js string, out any) error {
	return d.run(ctx, id, chromedp.Evaluate(js, out))
}

func (d *chromeDriver) HTML(ctx context.Context, id TargetID) (string, error) {
	var html string
	if err := d.run(ctx, id, chromedp.OuterHTML("html", &html)); err != nil {
		return "", err
	}
	return html, nil
}

func (d *chromeDriver) Screenshot(ctx context.Context, id TargetID) ([]byte, error) {
	var buf []byte
	if err := d.run(ctx, id, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, err
	}
	return buf, nil
}

func (d *chromeDriver) SetUserAgent(ctx context.Context, id TargetID, userAgent string) error {
	return d.run(ctx, id, chromedp.ActionFunc(func(ctx context.Context) error {
		return emulation.SetUserAgentOverride(userAgent).Do(ctx)
	}))
}

func (d *chromeDriver) SendKeyEvent(ctx context.Context, id TargetID, keys string) error {
	return d.run(ctx, id, chromedp.KeyEvent(keys))
}

// QueryNodes resolves selector against the page. No matches is an empty
// slice, not an error.
func (d *chromeDriver) QueryNodes(ctx context.Context, id TargetID, selector string) ([]NodeRef, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.queryNodesLocked(ctx, id, selector)
}

func (d *chromeDriver) queryNodesLocked(ctx context.Context, id TargetID, selector string) ([]NodeRef, error) {
	var nodes []*cdp.Node
	err := d.runLocked(ctx, id, chromedp.Nodes(selector, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0)))
	if err != nil {
		return nil, fmt.Errorf("failed to query %q: %w", selector, err)
	}

	refs := make([]NodeRef, 0, len(nodes))
	for _, node := range nodes {
		refs = append(refs, NodeRef{
			NodeID: node.NodeID,
			Tag:    strings.ToLower(node.NodeName),
		})
	}
	return refs, nil
}

func (d *chromeDriver) resolveNodeLocked(ctx context.Context, id TargetID, selector string, index int) (NodeRef, error) {
	refs, err := d.queryNodesLocked(ctx, id, selector)
	if err != nil {
		return NodeRef{}, err
	}
	if index < 0 || index >= len(refs) {
		return NodeRef{}, utils.NewError(utils.ErrCodeSelectorNotFound,
			fmt.Sprintf("selector %q matched %d nodes, want index %d", selector, len(refs), index)).
			WithContext("selector", selector).
			Build()
	}
	return refs[index], nil
}

// NodeCenter reports the viewport coordinates of the center of the
// index-th node matching selector.
func (d *chromeDriver) NodeCenter(ctx context.Context, id TargetID, selector string, index int) (float64, float64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.nodeCenterLocked(ctx, id, selector, index)
}

func (d *chromeDriver) nodeCenterLocked(ctx context.Context, id TargetID, selector string, index int) (float64, float64, error) {
	ref, err := d.resolveNodeLocked(ctx, id, selector, index)
	if err != nil {
		return 0, 0, err
	}

	var x, y float64
	err = d.runLocked(ctx, id, chromedp.ActionFunc(func(ctx context.Context) error {
		box, err := dom.GetBoxModel().WithNodeID(ref.NodeID).Do(ctx)
		if err != nil {
			return err
		}
		content := box.Content
		if len(content) < 6 {
			return fmt.Errorf("box model for %q has no content quad", selector)
		}
		// Content is the quad [x1 y1 x2 y2 x3 y3 x4 y4], clockwise from
		// top left.
		x = (content[0] + content[4]) / 2
		y = (content[1] + content[5]) / 2
		return nil
	}))
	if err != nil {
		return 0, 0, fmt.Errorf("failed to measure %q: %w", selector, err)
	}
	return x, y, nil
}

// ClickNode clicks the index-th node matching selector using one strategy.
func (d *chromeDriver) ClickNode(ctx context.Context, id TargetID, selector string, index int, strategy ClickStrategy) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch strategy {
	case ClickHumanized:
		x, y, err := d.nodeCenterLocked(ctx, id, selector, index)
		if err != nil {
			return err
		}
		dx, dy := antidetect.RandomOffset(humanClickJitter)
		return d.runLocked(ctx, id, chromedp.MouseClickXY(x+float64(dx), y+float64(dy)))

	case ClickJS:
		return d.runLocked(ctx, id, chromedp.Evaluate(scripts.ElementClick(selector, index), nil))

	case ClickPlain:
		ref, err := d.resolveNodeLocked(ctx, id, selector, index)
		if err != nil {
			return err
		}
		return d.runLocked(ctx, id, chromedp.Click([]cdp.NodeID{ref.NodeID}, chromedp.ByNodeID))

	default:
		return fmt.Errorf("unknown click strategy %q", strategy)
	}
}

func (d *chromeDriver) ClickPoint(ctx context.Context, id TargetID, x, y float64) error {
	return d.run(ctx, id, chromedp.MouseClickXY(x, y))
}

func (d *chromeDriver) SendKeys(ctx context.Context, id TargetID, selector string, index int, keys string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	ref, err := d.resolveNodeLocked(ctx, id, selector, index)
	if err != nil {
		return err
	}
	return d.runLocked(ctx, id, chromedp.SendKeys([]cdp.NodeID{ref.NodeID}, keys, chromedp.ByNodeID))
}

func (d *chromeDriver) Clear(ctx context.Context, id TargetID, selector string, index int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	ref, err := d.resolveNodeLocked(ctx, id, selector, index)
	if err != nil {
		return err
	}
	return d.runLocked(ctx, id, chromedp.Clear([]cdp.NodeID{ref.NodeID}, chromedp.ByNodeID))
}

// WaitFor blocks until selector reaches cond or the context ends.
func (d *chromeDriver) WaitFor(ctx context.Context, id TargetID, selector string, cond WaitCondition) error {
	var action chromedp.Action
	switch cond {
	case WaitUntilVisible:
		action = chromedp.WaitVisible(selector, chromedp.ByQuery)
	case WaitUntilPresent:
		action = chromedp.WaitReady(selector, chromedp.ByQuery)
	case WaitUntilNotPresent:
		action = chromedp.WaitNotPresent(selector, chromedp.ByQuery)
	case WaitUntilNotVisible:
		action = chromedp.WaitNotVisible(selector, chromedp.ByQuery)
	default:
		return fmt.Errorf("unknown wait condition %d", cond)
	}
	return d.run(ctx, id, action)
}
