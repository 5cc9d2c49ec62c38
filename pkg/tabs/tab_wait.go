// pkg/tabs/tab_wait.go
package tabs

import (
	"context"
	"fmt"
	"time"

	"github.com/inquilabee/browsertabs/internal/humanize"
	"github.com/inquilabee/browsertabs/internal/scripts"
	"github.com/inquilabee/browsertabs/internal/utils"
)

// waitFor rejects malformed selectors up front; letting one through would
// block until the context expires instead of failing.
func (t *Tab) waitFor(ctx context.Context, selector string, cond WaitCondition) error {
	if err := utils.ValidateSelector(selector); err != nil {
		return err
	}
	return t.do(func(dctx context.Context, b *Browser) error {
		if err := b.driver.WaitFor(ctx, t.id, selector, cond); err != nil {
			return fmt.Errorf("waiting for %q to become %s: %w", selector, cond, err)
		}
		return nil
	})
}

// WaitVisible blocks until an element matching selector is visible.
func (t *Tab) WaitVisible(ctx context.Context, selector string) error {
	return t.waitFor(ctx, selector, WaitUntilVisible)
}

// WaitPresent blocks until an element matching selector exists in the DOM,
// visible or not.
func (t *Tab) WaitPresent(ctx context.Context, selector string) error {
	return t.waitFor(ctx, selector, WaitUntilPresent)
}

// WaitNotPresent blocks until no element matches selector.
func (t *Tab) WaitNotPresent(ctx context.Context, selector string) error {
	return t.waitFor(ctx, selector, WaitUntilNotPresent)
}

// WaitNotVisible blocks until no element matching selector is visible.
func (t *Tab) WaitNotVisible(ctx context.Context, selector string) error {
	return t.waitFor(ctx, selector, WaitUntilNotVisible)
}

// WaitURLContains blocks until the page URL contains fragment, polling the
// page. A positive timeout bounds the wait on top of ctx.
func (t *Tab) WaitURLContains(ctx context.Context, fragment string, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	probe := scripts.URLContains(fragment)
	return t.do(func(dctx context.Context, b *Browser) error {
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			var matched bool
			if err := b.driver.Evaluate(dctx, t.id, probe, &matched); err == nil && matched {
				return nil
			}
			select {
			case <-ctx.Done():
				return utils.WrapError(ctx.Err(), utils.ErrCodeNavigationTimeout,
					fmt.Sprintf("url never contained %q", fragment))
			case <-ticker.C:
			}
		}
	})
}

// Pause sleeps for a humanized duration of at least minSeconds.
func (t *Tab) Pause(minSeconds float64) error {
	return humanize.Wait(minSeconds)
}

// PauseBetween sleeps for a humanized duration in [min, max] seconds.
func (t *Tab) PauseBetween(minSeconds, maxSeconds float64) error {
	return humanize.WaitBetween(minSeconds, maxSeconds)
}
