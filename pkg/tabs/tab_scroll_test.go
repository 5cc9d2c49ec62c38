// pkg/tabs/tab_scroll_test.go
package tabs

import (
	"testing"
	"time"

	"github.com/chromedp/chromedp/kb"

	"github.com/inquilabee/browsertabs/internal/scripts"
)

func TestScrollOps(t *testing.T) {
	d := newFakeDriver()
	b := newTestBrowser(t, d)
	tab := b.First()

	if err := tab.ScrollTo(0, 500); err != nil {
		t.Fatalf("ScrollTo() error: %v", err)
	}
	if !d.hasOp("eval:" + scripts.ScrollTo(0, 500)) {
		t.Errorf("missing scroll op, got %v", d.ops)
	}

	if err := tab.ScrollDown(3); err != nil {
		t.Fatalf("ScrollDown() error: %v", err)
	}
	if !d.hasOp("eval:" + scripts.ScrollBy(150)) {
		t.Error("ScrollDown(3) should scroll by 3 wheel clicks")
	}

	if err := tab.ScrollUp(2); err != nil {
		t.Fatalf("ScrollUp() error: %v", err)
	}
	if !d.hasOp("eval:" + scripts.ScrollBy(-100)) {
		t.Error("ScrollUp(2) should scroll up by 2 wheel clicks")
	}
}

func TestScrollToBottom(t *testing.T) {
	d := newFakeDriver()
	b := newTestBrowser(t, d)
	d.evalResults[scripts.PageHeight] = 1200

	if err := b.First().ScrollToBottom(); err != nil {
		t.Fatalf("ScrollToBottom() error: %v", err)
	}
	if !d.hasOp("key:" + kb.End) {
		t.Error("expected an End key press")
	}
	if !d.hasOp("eval:" + scripts.ScrollTo(0, 1200)) {
		t.Error("expected a scroll to the measured height")
	}
}

func TestInfiniteScrollSettles(t *testing.T) {
	d := newFakeDriver()
	b := newTestBrowser(t, d)
	d.evalResults[scripts.PageHeight] = 1000

	start := time.Now()
	if err := b.First().InfiniteScroll(5); err != nil {
		t.Fatalf("InfiniteScroll() error: %v", err)
	}
	elapsed := time.Since(start)

	// The page never grows, so one round suffices.
	if got := d.opCount("eval:" + scripts.ScrollTo(0, 1000)); got != 1 {
		t.Errorf("expected 1 scroll round, got %d", got)
	}
	if elapsed < time.Second {
		t.Errorf("expected a settle wait after the round, elapsed %v", elapsed)
	}
}

func TestInfiniteScrollHonorsMaxRounds(t *testing.T) {
	d := newFakeDriver()
	b := newTestBrowser(t, d)

	// The height is read twice per round: once to detect growth, once to
	// scroll. The page keeps growing, so only maxRounds stops the loop.
	d.evalSeq[scripts.PageHeight] = []any{1000, 1000, 2000, 2000}

	if err := b.First().InfiniteScroll(2); err != nil {
		t.Fatalf("InfiniteScroll() error: %v", err)
	}

	if got := d.opCount("eval:" + scripts.ScrollTo(0, 1000)); got != 1 {
		t.Errorf("expected a scroll to 1000, got %d", got)
	}
	if got := d.opCount("eval:" + scripts.ScrollTo(0, 2000)); got != 1 {
		t.Errorf("expected a scroll to 2000, got %d", got)
	}
}
