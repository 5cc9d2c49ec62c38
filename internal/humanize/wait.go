// internal/humanize/wait.go

// Package humanize produces the small randomized delays that make driven
// browsing look like a person at a keyboard instead of a tight loop.
package humanize

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/inquilabee/browsertabs/internal/utils"
)

const (
	// multiplyFactor derives the default upper bound from the lower one.
	multiplyFactor = 2.0

	// waitAddendum pads every wait so even a zero-width range never fires
	// back-to-back driver calls.
	waitAddendum = 0.25
)

// Duration picks a random wait in [min, max] seconds plus the fixed
// addendum. A max of zero defaults to multiplyFactor times min.
func Duration(minSeconds, maxSeconds float64) (time.Duration, error) {
	if math.IsNaN(minSeconds) || math.IsInf(minSeconds, 0) || minSeconds <= 0 {
		return 0, utils.NewError(utils.ErrCodeInvalidWait, "minimum wait must be a positive number").
			WithContext("min", minSeconds).Build()
	}
	if maxSeconds == 0 {
		maxSeconds = minSeconds * multiplyFactor
	}
	if math.IsNaN(maxSeconds) || math.IsInf(maxSeconds, 0) || maxSeconds < minSeconds {
		return 0, utils.NewError(utils.ErrCodeInvalidWait, "maximum wait must not be below the minimum").
			WithContext("min", minSeconds).WithContext("max", maxSeconds).Build()
	}
	seconds := minSeconds + rand.Float64()*(maxSeconds-minSeconds) + waitAddendum
	return time.Duration(seconds * float64(time.Second)), nil
}

// Wait sleeps for a random duration of at least minSeconds.
func Wait(minSeconds float64) error {
	return WaitBetween(minSeconds, 0)
}

// WaitBetween sleeps for a random duration in [min, max] seconds.
func WaitBetween(minSeconds, maxSeconds float64) error {
	d, err := Duration(minSeconds, maxSeconds)
	if err != nil {
		return err
	}
	time.Sleep(d)
	return nil
}

// WaitCtx sleeps like WaitBetween but returns early with the context error
// when ctx is cancelled.
func WaitCtx(ctx context.Context, minSeconds, maxSeconds float64) error {
	d, err := Duration(minSeconds, maxSeconds)
	if err != nil {
		return err
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
