// pkg/tabs/tab_scroll.go
package tabs

import (
	"context"

	"github.com/chromedp/chromedp/kb"

	"github.com/inquilabee/browsertabs/internal/humanize"
	"github.com/inquilabee/browsertabs/internal/scripts"
)

const (
	// scrollClickDistance approximates one mouse wheel click in pixels.
	scrollClickDistance = 50

	// defaultScrollRounds bounds InfiniteScroll when the caller passes no
	// limit.
	defaultScrollRounds = 10

	// scrollSettleSeconds is how long InfiniteScroll lets the page load
	// more content after each round.
	scrollSettleSeconds = 1.0
)

// ScrollTo scrolls the viewport to an absolute position.
func (t *Tab) ScrollTo(x, y int64) error {
	return t.do(func(ctx context.Context, b *Browser) error {
		return b.driver.Evaluate(ctx, t.id, scripts.ScrollTo(x, y), nil)
	})
}

// ScrollDown scrolls down by the given number of wheel clicks.
func (t *Tab) ScrollDown(clicks int) error {
	return t.ScrollBy(int64(clicks) * scrollClickDistance)
}

// ScrollUp scrolls up by the given number of wheel clicks.
func (t *Tab) ScrollUp(clicks int) error {
	return t.ScrollBy(-int64(clicks) * scrollClickDistance)
}

// ScrollBy scrolls the viewport down by dy pixels; negative dy scrolls up.
func (t *Tab) ScrollBy(dy int64) error {
	return t.do(func(ctx context.Context, b *Browser) error {
		return b.driver.Evaluate(ctx, t.id, scripts.ScrollBy(dy), nil)
	})
}

// ScrollToBottom scrolls to the bottom of the page.
func (t *Tab) ScrollToBottom() error {
	return t.do(func(ctx context.Context, b *Browser) error {
		return t.scrollBottomLocked(ctx, b)
	})
}

// scrollBottomLocked presses End first so pages listening for key input
// react, then pins the viewport to the measured document height.
func (t *Tab) scrollBottomLocked(ctx context.Context, b *Browser) error {
	if err := b.driver.SendKeyEvent(ctx, t.id, kb.End); err != nil {
		b.logger.WithField("tab", string(t.id)).Debugf("end key scroll failed: %v", err)
	}

	var height int64
	if err := b.driver.Evaluate(ctx, t.id, scripts.PageHeight, &height); err != nil {
		return err
	}
	return b.driver.Evaluate(ctx, t.id, scripts.ScrollTo(0, height), nil)
}

// InfiniteScroll keeps scrolling to the bottom until the page stops
// growing or maxRounds is reached, waiting a moment after each round so
// lazily loaded content can arrive. A non-positive maxRounds applies a
// default bound.
func (t *Tab) InfiniteScroll(maxRounds int) error {
	if maxRounds <= 0 {
		maxRounds = defaultScrollRounds
	}

	return t.do(func(ctx context.Context, b *Browser) error {
		var prev int64 = -1
		rounds := 0

		for rounds < maxRounds {
			var height int64
			if err := b.driver.Evaluate(ctx, t.id, scripts.PageHeight, &height); err != nil {
				return err
			}
			if height == prev {
				break
			}
			prev = height

			if err := t.scrollBottomLocked(ctx, b); err != nil {
				return err
			}
			rounds++

			if err := humanize.WaitBetween(scrollSettleSeconds, scrollSettleSeconds); err != nil {
				return err
			}
		}

		b.metrics.RecordScrollRounds(rounds)
		b.logger.WithFields(map[string]interface{}{
			"tab":    string(t.id),
			"rounds": rounds,
		}).Debug("infinite scroll settled")
		return nil
	})
}
