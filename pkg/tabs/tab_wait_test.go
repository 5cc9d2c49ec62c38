// pkg/tabs/tab_wait_test.go
package tabs

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/inquilabee/browsertabs/internal/scripts"
	"github.com/inquilabee/browsertabs/internal/utils"
)

func TestWaitDelegation(t *testing.T) {
	d := newFakeDriver()
	b := newTestBrowser(t, d)
	tab := b.First()
	ctx := context.Background()

	if err := tab.WaitVisible(ctx, "div.modal"); err != nil {
		t.Fatalf("WaitVisible() error: %v", err)
	}
	if err := tab.WaitPresent(ctx, "div.modal"); err != nil {
		t.Fatalf("WaitPresent() error: %v", err)
	}
	if err := tab.WaitNotPresent(ctx, "div.spinner"); err != nil {
		t.Fatalf("WaitNotPresent() error: %v", err)
	}
	if err := tab.WaitNotVisible(ctx, "div.spinner"); err != nil {
		t.Fatalf("WaitNotVisible() error: %v", err)
	}

	for _, want := range []string{
		"waitfor:visible:div.modal",
		"waitfor:present:div.modal",
		"waitfor:not-present:div.spinner",
		"waitfor:not-visible:div.spinner",
	} {
		if !d.hasOp(want) {
			t.Errorf("missing op %q, got %v", want, d.opsWithPrefix("waitfor:"))
		}
	}
}

func TestWaitErrorNamesSelector(t *testing.T) {
	d := newFakeDriver()
	b := newTestBrowser(t, d)
	d.waitErr = context.DeadlineExceeded

	err := b.First().WaitVisible(context.Background(), "div.modal")
	if err == nil {
		t.Fatal("expected the wait to fail")
	}
	if !strings.Contains(err.Error(), `"div.modal"`) || !strings.Contains(err.Error(), "visible") {
		t.Errorf("error should name selector and condition: %v", err)
	}
}

func TestWaitRejectsUnsafeSelector(t *testing.T) {
	d := newFakeDriver()
	b := newTestBrowser(t, d)

	err := b.First().WaitVisible(context.Background(), "div{width:expression(alert(1))}")
	var verr utils.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected a validation error, got %v", err)
	}
	if d.opCount("waitfor:") != 0 {
		t.Error("rejected selector should not reach the browser")
	}
}

func TestWaitURLContains(t *testing.T) {
	d := newFakeDriver()
	b := newTestBrowser(t, d)
	tab := b.First()

	d.evalResults[scripts.URLContains("/dashboard")] = true
	if err := tab.WaitURLContains(context.Background(), "/dashboard", time.Second); err != nil {
		t.Fatalf("WaitURLContains() error: %v", err)
	}

	d.evalResults[scripts.URLContains("/missing")] = false
	err := tab.WaitURLContains(context.Background(), "/missing", 50*time.Millisecond)
	if !utils.IsCode(err, utils.ErrCodeNavigationTimeout) {
		t.Errorf("expected navigation-timeout, got %v", err)
	}
}

func TestPauseRejectsBadRange(t *testing.T) {
	d := newFakeDriver()
	b := newTestBrowser(t, d)
	tab := b.First()

	err := tab.Pause(-1)
	if !utils.IsCode(err, utils.ErrCodeInvalidWait) {
		t.Errorf("expected invalid-wait, got %v", err)
	}

	err = tab.PauseBetween(2, 1)
	if !utils.IsCode(err, utils.ErrCodeInvalidWait) {
		t.Errorf("expected invalid-wait for inverted range, got %v", err)
	}
}
