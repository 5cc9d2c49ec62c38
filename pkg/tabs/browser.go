// pkg/tabs/browser.go
package tabs

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/inquilabee/browsertabs/internal/antidetect"
	"github.com/inquilabee/browsertabs/internal/monitoring"
	"github.com/inquilabee/browsertabs/internal/utils"
	"github.com/inquilabee/browsertabs/pkg/scheduler"
)

// Browser is one running browser session and the set of tabs it manages.
// Every operation that talks to the browser first focuses the tab it
// works on, so tabs behave like the foreground tab a person would see.
// All methods are safe for concurrent use; operations on the same session
// serialize on the session lock.
type Browser struct {
	id      string
	driver  Driver
	opts    Options
	tabs    *tabManager
	logger  utils.Logger
	metrics *monitoring.MetricsManager
	rotator *antidetect.UserAgentRotator

	mu      sync.Mutex
	current TargetID
	closed  bool
}

func newSessionID() string {
	return fmt.Sprintf("session-%08x", rand.Uint32())
}

// New launches a browser session. The browser starts with one blank tab,
// which becomes the session's first managed tab.
func New(opts ...Option) (*Browser, error) {
	options := defaultOptions()
	for _, opt := range opts {
		opt(&options)
	}
	if options.Logger == nil {
		options.Logger = utils.NewLogger()
	}
	if options.Metrics == nil {
		options.Metrics = monitoring.Default()
	}

	driver := options.driver
	if driver == nil {
		driver = newChromeDriver(options)
	}

	b := &Browser{
		id:      newSessionID(),
		driver:  driver,
		opts:    options,
		tabs:    newTabManager(),
		metrics: options.Metrics,
	}
	b.logger = options.Logger.WithField("session", b.id)

	if options.RotateUserAgent {
		b.rotator = antidetect.NewUserAgentRotator(options.UserAgents)
	}

	ctx := context.Background()
	if err := driver.Start(ctx); err != nil {
		return nil, utils.WrapError(err, utils.ErrCodeBrowserFailed, "failed to start browser session")
	}

	infos, err := driver.Targets(ctx)
	if err != nil {
		driver.Stop()
		return nil, utils.WrapError(err, utils.ErrCodeBrowserFailed, "failed to list initial tabs")
	}
	if len(infos) == 0 {
		driver.Stop()
		return nil, utils.NewError(utils.ErrCodeBrowserFailed, "browser started with no tabs").Build()
	}

	first := newTab(b, infos[0].ID, infos[0].URL, true)
	b.tabs.Add(first)
	b.current = first.id

	registerSession(b)
	b.metrics.RecordSessionStart()
	b.metrics.RecordTabOpened()
	b.logger.Info("browser session started")
	return b, nil
}

// ID returns the session identifier.
func (b *Browser) ID() string {
	return b.id
}

// Open opens a new tab and navigates it to url. The new tab is appended to
// the tab strip and receives focus. When navigation fails the tab is still
// returned and stays managed, so the caller can retry or close it.
func (b *Browser) Open(url string) (*Tab, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, utils.NewError(utils.ErrCodeSessionClosed, "browser session is closed").Build()
	}

	ctx := context.Background()

	// A person opens tabs from the end of the strip. Focus the last tab
	// first so the new one lands next to it.
	if last := b.tabs.Last(); last != nil {
		if err := b.switchToLocked(ctx, last.id); err != nil {
			b.logger.WithField("tab", string(last.id)).Debugf("pre-open focus failed: %v", err)
		}
	}

	id, err := b.driver.NewTarget(ctx, "")
	if err != nil {
		return nil, utils.WrapError(err, utils.ErrCodeBrowserFailed, "failed to open tab")
	}

	t := newTab(b, id, url, true)
	b.tabs.Add(t)
	b.metrics.RecordTabOpened()

	if err := b.switchToLocked(ctx, id); err != nil {
		b.logger.WithField("tab", string(id)).Debugf("focus after open failed: %v", err)
	}

	if b.rotator != nil {
		agent := b.rotator.GetNext()
		if err := b.driver.SetUserAgent(ctx, id, agent); err != nil {
			b.logger.WithField("tab", string(id)).Debugf("user agent rotation failed: %v", err)
		} else {
			b.metrics.RecordUserAgentRotation()
		}
	}

	if url != "" && url != "about:blank" {
		if err := t.openLocked(ctx, b, url); err != nil {
			return t, err
		}
	}

	b.logger.WithFields(map[string]interface{}{
		"tab": string(id),
		"url": url,
	}).Info("opened tab")
	return t, nil
}

// OpenBlank opens a new empty tab.
func (b *Browser) OpenBlank() (*Tab, error) {
	return b.Open("about:blank")
}

// Tabs returns the managed tabs in opening order. Tabs the user closed in
// the browser itself are dropped from tracking on the way.
func (b *Browser) Tabs() []*Tab {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.pruneLocked(context.Background())
	return b.tabs.All()
}

// First returns the oldest managed tab, nil when none are left.
func (b *Browser) First() *Tab {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.pruneLocked(context.Background())
	return b.tabs.First()
}

// Last returns the most recently opened managed tab, nil when none are left.
func (b *Browser) Last() *Tab {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.pruneLocked(context.Background())
	return b.tabs.Last()
}

// Current returns the managed tab that has focus. When the browser cannot
// be asked, the last tab this session focused is returned.
func (b *Browser) Current() *Tab {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}

	if id, err := b.driver.FocusedTarget(context.Background()); err == nil {
		if t := b.tabs.Get(id); t != nil {
			b.current = id
			return t
		}
	}
	return b.tabs.Get(b.current)
}

// CloseTab closes a managed tab. Focus moves to the most recently opened
// of the remaining tabs.
func (b *Browser) CloseTab(t *Tab) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closeTabLocked(context.Background(), t)
}

// CloseCurrentTab closes the tab that has focus.
func (b *Browser) CloseCurrentTab() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	ctx := context.Background()
	if b.closed {
		return utils.NewError(utils.ErrCodeSessionClosed, "browser session is closed").Build()
	}

	var t *Tab
	if id, err := b.driver.FocusedTarget(ctx); err == nil {
		t = b.tabs.Get(id)
	}
	if t == nil {
		t = b.tabs.Get(b.current)
	}
	return b.closeTabLocked(ctx, t)
}

func (b *Browser) closeTabLocked(ctx context.Context, t *Tab) error {
	if b.closed {
		return utils.NewError(utils.ErrCodeSessionClosed, "browser session is closed").Build()
	}
	if t == nil {
		return utils.NewError(utils.ErrCodeTabNotFound, "no tab to close").Build()
	}
	if !b.tabs.Exists(t.id) {
		return utils.NewError(utils.ErrCodeTabNotFound,
			fmt.Sprintf("tab %s is not managed by this session", t.id)).Build()
	}

	if !b.liveLocked(ctx, t.id) {
		b.tabs.Remove(t.id)
		scheduler.Default().CancelOwner(scheduler.OwnerKey(t.ownerKey()))
		b.metrics.RecordTabClosed()
		return utils.NewError(utils.ErrCodeTabClosed,
			fmt.Sprintf("tab %s is already closed", t.id)).Build()
	}

	// Closing mirrors user behavior: the tab is focused first.
	if err := b.switchToLocked(ctx, t.id); err != nil {
		b.logger.WithField("tab", string(t.id)).Debugf("focus before close failed: %v", err)
	}

	if err := b.driver.CloseTarget(ctx, t.id); err != nil {
		return utils.WrapError(err, utils.ErrCodeBrowserFailed, "failed to close tab")
	}

	b.tabs.Remove(t.id)
	scheduler.Default().CancelOwner(scheduler.OwnerKey(t.ownerKey()))
	b.metrics.RecordTabClosed()

	if last := b.tabs.Last(); last != nil {
		if err := b.switchToLocked(ctx, last.id); err != nil {
			b.logger.WithField("tab", string(last.id)).Debugf("focus after close failed: %v", err)
		}
	} else {
		b.current = ""
	}

	b.logger.WithField("tab", string(t.id)).Info("closed tab")
	return nil
}

// UnmanagedTabs returns the open tabs this session does not manage, such
// as pages the site opened with window.open. Adopt brings one under
// management.
func (b *Browser) UnmanagedTabs() ([]*Tab, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, utils.NewError(utils.ErrCodeSessionClosed, "browser session is closed").Build()
	}

	infos, err := b.driver.Targets(context.Background())
	if err != nil {
		return nil, utils.WrapError(err, utils.ErrCodeBrowserFailed, "failed to list tabs")
	}

	var out []*Tab
	for _, info := range infos {
		if b.tabs.Exists(info.ID) {
			continue
		}
		out = append(out, newTab(b, info.ID, info.URL, false))
	}
	return out, nil
}

// Adopt brings a tab under this session's management. Adopting an already
// managed tab is a no-op.
func (b *Browser) Adopt(t *Tab) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return utils.NewError(utils.ErrCodeSessionClosed, "browser session is closed").Build()
	}
	if t == nil {
		return utils.NewError(utils.ErrCodeTabNotFound, "no tab to adopt").Build()
	}

	if b.tabs.Exists(t.id) {
		t.managed = true
		return nil
	}

	if !b.liveLocked(context.Background(), t.id) {
		return utils.NewError(utils.ErrCodeTabClosed,
			fmt.Sprintf("tab %s is already closed", t.id)).Build()
	}

	t.managed = true
	t.browser = b
	t.sessionID = b.id
	b.tabs.Add(t)
	b.metrics.RecordTabOpened()
	b.logger.WithField("tab", string(t.id)).Info("adopted tab")
	return nil
}

// ExecuteTasks runs the scheduled tab tasks until maxTime elapses or ctx
// is cancelled. A non-positive maxTime runs until cancellation.
func (b *Browser) ExecuteTasks(ctx context.Context, maxTime time.Duration) error {
	return scheduler.Default().Run(ctx, maxTime)
}

// Close cancels the session's scheduled tasks, closes all its tabs and
// stops the browser. Safe to call twice.
func (b *Browser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	// Tab owner keys live under the session id, so one cancel covers every
	// tab's tasks, adopted tabs included.
	scheduler.Default().CancelOwner(scheduler.OwnerKey(b.id))

	for range b.tabs.All() {
		b.metrics.RecordTabClosed()
	}
	b.tabs = newTabManager()
	b.current = ""

	deregisterSession(b.id)
	b.metrics.RecordSessionEnd()

	if err := b.driver.Stop(); err != nil {
		return utils.WrapError(err, utils.ErrCodeBrowserFailed, "failed to stop browser")
	}

	b.logger.Info("browser session closed")
	return nil
}

// switchToLocked focuses a tab and updates the active-tab pointer.
func (b *Browser) switchToLocked(ctx context.Context, id TargetID) error {
	if err := b.driver.ActivateTarget(ctx, id); err != nil {
		return utils.WrapError(err, utils.ErrCodeTabNotFound, "failed to focus tab")
	}
	if b.current != id {
		b.metrics.RecordTabSwitch()
		b.logger.WithField("tab", string(id)).Debug("switched tab")
	}
	b.current = id
	return nil
}

// liveLocked reports whether the browser still has the target open.
func (b *Browser) liveLocked(ctx context.Context, id TargetID) bool {
	infos, err := b.driver.Targets(ctx)
	if err != nil {
		return false
	}
	for _, info := range infos {
		if info.ID == id {
			return true
		}
	}
	return false
}

// pruneLocked drops managed tabs whose targets no longer exist, cancelling
// their tasks on the way.
func (b *Browser) pruneLocked(ctx context.Context) {
	infos, err := b.driver.Targets(ctx)
	if err != nil {
		return
	}

	live := make(map[TargetID]struct{}, len(infos))
	for _, info := range infos {
		live[info.ID] = struct{}{}
	}

	for _, t := range b.tabs.All() {
		if _, ok := live[t.id]; ok {
			continue
		}
		b.tabs.Remove(t.id)
		scheduler.Default().CancelOwner(scheduler.OwnerKey(t.ownerKey()))
		b.metrics.RecordTabClosed()
		b.logger.WithField("tab", string(t.id)).Debug("pruned closed tab")
	}

	if _, ok := live[b.current]; !ok && b.current != "" {
		if last := b.tabs.Last(); last != nil {
			b.current = last.id
		} else {
			b.current = ""
		}
	}
}
