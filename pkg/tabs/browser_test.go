// pkg/tabs/browser_test.go
package tabs

import (
	"errors"
	"testing"

	"github.com/inquilabee/browsertabs/internal/utils"
)

func TestNewStartsWithInitialTab(t *testing.T) {
	d := newFakeDriver()
	b := newTestBrowser(t, d)

	tabs := b.Tabs()
	if len(tabs) != 1 {
		t.Fatalf("expected 1 initial tab, got %d", len(tabs))
	}
	if b.First() != b.Last() {
		t.Error("expected first and last to be the same tab")
	}

	current := b.Current()
	if current == nil {
		t.Fatal("expected a current tab")
	}
	if current.ID() != tabs[0].ID() {
		t.Errorf("current tab = %s, want %s", current.ID(), tabs[0].ID())
	}
	if !current.Managed() {
		t.Error("initial tab should be managed")
	}

	found := false
	for _, s := range Sessions() {
		if s.ID() == b.ID() {
			found = true
		}
	}
	if !found {
		t.Error("session not registered")
	}
}

func TestOpenAppendsAndFocuses(t *testing.T) {
	d := newFakeDriver()
	b := newTestBrowser(t, d)

	tab, err := b.Open("https://example.com/a")
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}

	if got := len(b.Tabs()); got != 2 {
		t.Fatalf("expected 2 tabs, got %d", got)
	}
	if b.Last().ID() != tab.ID() {
		t.Errorf("last tab = %s, want %s", b.Last().ID(), tab.ID())
	}
	if b.Current().ID() != tab.ID() {
		t.Errorf("current tab = %s, want %s", b.Current().ID(), tab.ID())
	}
	if d.focused != tab.ID() {
		t.Errorf("focused target = %s, want %s", d.focused, tab.ID())
	}
	if !d.hasOp("new:about:blank") {
		t.Error("expected the tab to open blank before navigating")
	}
	if !d.hasOp("navigate:"+string(tab.ID())+":https://example.com/a") {
		t.Errorf("missing navigate op, got %v", d.ops)
	}
}

func TestOpenBlankDoesNotNavigate(t *testing.T) {
	d := newFakeDriver()
	b := newTestBrowser(t, d)

	tab, err := b.OpenBlank()
	if err != nil {
		t.Fatalf("OpenBlank() error: %v", err)
	}
	if tab.StartURL() != "about:blank" {
		t.Errorf("start url = %q, want about:blank", tab.StartURL())
	}
	if n := d.opCount("navigate:"); n != 0 {
		t.Errorf("expected no navigation, got %d", n)
	}
}

func TestOpenNavigationErrorKeepsTab(t *testing.T) {
	d := newFakeDriver()
	b := newTestBrowser(t, d)
	d.navErr = errors.New("net::ERR_NAME_NOT_RESOLVED")

	tab, err := b.Open("https://bad.invalid/")
	if err == nil {
		t.Fatal("expected a navigation error")
	}
	if tab == nil {
		t.Fatal("expected the tab to be returned despite the error")
	}
	if got := len(b.Tabs()); got != 2 {
		t.Errorf("expected the failed tab to stay managed, got %d tabs", got)
	}
}

func TestCloseTabFocusesLast(t *testing.T) {
	d := newFakeDriver()
	b := newTestBrowser(t, d)

	first, err := b.OpenBlank()
	if err != nil {
		t.Fatalf("OpenBlank() error: %v", err)
	}
	second, err := b.OpenBlank()
	if err != nil {
		t.Fatalf("OpenBlank() error: %v", err)
	}

	if err := b.CloseTab(second); err != nil {
		t.Fatalf("CloseTab() error: %v", err)
	}
	if !d.hasOp("close:" + string(second.ID())) {
		t.Error("expected the target to be closed")
	}
	if got := b.Current().ID(); got != first.ID() {
		t.Errorf("current tab after close = %s, want %s", got, first.ID())
	}
	if got := len(b.Tabs()); got != 2 {
		t.Errorf("expected 2 tabs left, got %d", got)
	}
}

func TestCloseCurrentTab(t *testing.T) {
	d := newFakeDriver()
	b := newTestBrowser(t, d)

	initial := b.First()
	tab, err := b.OpenBlank()
	if err != nil {
		t.Fatalf("OpenBlank() error: %v", err)
	}

	if err := b.CloseCurrentTab(); err != nil {
		t.Fatalf("CloseCurrentTab() error: %v", err)
	}
	if tab.Exists() {
		t.Error("closed tab should no longer be tracked")
	}
	if got := b.Current().ID(); got != initial.ID() {
		t.Errorf("current tab = %s, want %s", got, initial.ID())
	}

	if err := b.CloseCurrentTab(); err != nil {
		t.Fatalf("CloseCurrentTab() error: %v", err)
	}
	err = b.CloseCurrentTab()
	if !utils.IsCode(err, utils.ErrCodeTabNotFound) {
		t.Errorf("expected tab-not-found with no tabs left, got %v", err)
	}
}

func TestCloseTabUnmanaged(t *testing.T) {
	d := newFakeDriver()
	b := newTestBrowser(t, d)

	stray := newTab(b, "bogus", "", false)
	err := b.CloseTab(stray)
	if !utils.IsCode(err, utils.ErrCodeTabNotFound) {
		t.Errorf("expected tab-not-found, got %v", err)
	}
}

func TestCloseTabAlreadyClosed(t *testing.T) {
	d := newFakeDriver()
	b := newTestBrowser(t, d)

	tab, err := b.OpenBlank()
	if err != nil {
		t.Fatalf("OpenBlank() error: %v", err)
	}

	// The user closed the tab in the browser itself.
	d.removeTarget(tab.ID())

	err = b.CloseTab(tab)
	if !utils.IsCode(err, utils.ErrCodeTabClosed) {
		t.Errorf("expected tab-closed, got %v", err)
	}
	if tab.Exists() {
		t.Error("dead tab should be dropped from tracking")
	}

	// A second close sees an untracked tab.
	err = b.CloseTab(tab)
	if !utils.IsCode(err, utils.ErrCodeTabNotFound) {
		t.Errorf("expected tab-not-found on second close, got %v", err)
	}
}

func TestTabsPrunesExternallyClosed(t *testing.T) {
	d := newFakeDriver()
	b := newTestBrowser(t, d)

	middle, err := b.OpenBlank()
	if err != nil {
		t.Fatalf("OpenBlank() error: %v", err)
	}
	last, err := b.OpenBlank()
	if err != nil {
		t.Fatalf("OpenBlank() error: %v", err)
	}

	d.removeTarget(middle.ID())

	tabs := b.Tabs()
	if len(tabs) != 2 {
		t.Fatalf("expected 2 tabs after prune, got %d", len(tabs))
	}
	for _, tab := range tabs {
		if tab.ID() == middle.ID() {
			t.Error("externally closed tab still tracked")
		}
	}

	// Losing the focused tab moves the pointer to the newest survivor.
	d.removeTarget(last.ID())
	b.Tabs()
	if got := b.Current().ID(); got != b.First().ID() {
		t.Errorf("current tab = %s, want %s", got, b.First().ID())
	}
}

func TestUnmanagedTabsAndAdopt(t *testing.T) {
	d := newFakeDriver()
	b := newTestBrowser(t, d)

	// The page opened a popup behind the session's back.
	popupID := d.addTarget("https://popup.example/")

	unmanaged, err := b.UnmanagedTabs()
	if err != nil {
		t.Fatalf("UnmanagedTabs() error: %v", err)
	}
	if len(unmanaged) != 1 {
		t.Fatalf("expected 1 unmanaged tab, got %d", len(unmanaged))
	}
	popup := unmanaged[0]
	if popup.ID() != popupID {
		t.Errorf("unmanaged tab = %s, want %s", popup.ID(), popupID)
	}
	if popup.Managed() {
		t.Error("popup should not be managed yet")
	}

	if err := b.Adopt(popup); err != nil {
		t.Fatalf("Adopt() error: %v", err)
	}
	if !popup.Managed() {
		t.Error("adopted tab should be managed")
	}
	if got := len(b.Tabs()); got != 2 {
		t.Errorf("expected 2 managed tabs, got %d", got)
	}
	if err := b.Adopt(popup); err != nil {
		t.Errorf("re-adopting should be a no-op, got %v", err)
	}

	unmanaged, err = b.UnmanagedTabs()
	if err != nil {
		t.Fatalf("UnmanagedTabs() error: %v", err)
	}
	if len(unmanaged) != 0 {
		t.Errorf("expected no unmanaged tabs left, got %d", len(unmanaged))
	}
}

func TestAdoptDeadTab(t *testing.T) {
	d := newFakeDriver()
	b := newTestBrowser(t, d)

	id := d.addTarget("https://popup.example/")
	unmanaged, err := b.UnmanagedTabs()
	if err != nil || len(unmanaged) != 1 {
		t.Fatalf("UnmanagedTabs() = %v, %v", unmanaged, err)
	}

	d.removeTarget(id)

	err = b.Adopt(unmanaged[0])
	if !utils.IsCode(err, utils.ErrCodeTabClosed) {
		t.Errorf("expected tab-closed, got %v", err)
	}
}

func TestCloseIdempotentAndDeregisters(t *testing.T) {
	d := newFakeDriver()
	b := newTestBrowser(t, d)
	id := b.ID()

	if err := b.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	for _, s := range Sessions() {
		if s.ID() == id {
			t.Error("closed session still registered")
		}
	}
	if err := b.Close(); err != nil {
		t.Errorf("second Close() should be a no-op, got %v", err)
	}

	_, err := b.Open("https://example.com/")
	if !utils.IsCode(err, utils.ErrCodeSessionClosed) {
		t.Errorf("expected session-closed, got %v", err)
	}
	if tabs := b.Tabs(); tabs != nil {
		t.Errorf("expected nil tabs after close, got %v", tabs)
	}
}

func TestCurrentFallsBackToPointer(t *testing.T) {
	d := newFakeDriver()
	b := newTestBrowser(t, d)

	tab, err := b.OpenBlank()
	if err != nil {
		t.Fatalf("OpenBlank() error: %v", err)
	}

	// No target reports focus, e.g. the window is minimized.
	d.mu.Lock()
	d.focused = ""
	d.mu.Unlock()

	current := b.Current()
	if current == nil {
		t.Fatal("expected fallback to the tracked pointer")
	}
	if current.ID() != tab.ID() {
		t.Errorf("current tab = %s, want %s", current.ID(), tab.ID())
	}
}

func TestSwitchSetsCurrent(t *testing.T) {
	d := newFakeDriver()
	b := newTestBrowser(t, d)

	first := b.First()
	if _, err := b.OpenBlank(); err != nil {
		t.Fatalf("OpenBlank() error: %v", err)
	}

	if err := first.Switch(); err != nil {
		t.Fatalf("Switch() error: %v", err)
	}
	if d.focused != first.ID() {
		t.Errorf("focused target = %s, want %s", d.focused, first.ID())
	}
	if got := b.Current().ID(); got != first.ID() {
		t.Errorf("current tab = %s, want %s", got, first.ID())
	}
}
