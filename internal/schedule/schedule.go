// Package schedule paces the sampling loop on period multiples of the
// session start.
package schedule

import (
	"context"
	"time"
)

// NextWait returns how long to wait until the next tick aligned to
// start + k*period. The result lies in [0, period); it is zero when now falls
// exactly on a tick. A now before start is treated as start. NextWait returns
// zero for a non-positive period; callers validate the period beforehand.
func NextWait(period time.Duration, start, now time.Time) time.Duration {
	if period <= 0 {
		return 0
	}

	elapsed := now.Sub(start)
	if elapsed < 0 {
		elapsed = 0
	}

	return (period - elapsed%period) % period
}

// NextTick returns the first tick after last that is not yet in the past,
// and how long to wait for it. Ticks are numbered from start, which is tick 0.
// Missed ticks are skipped, but the tick of the previous sample is never
// reused, so a reading that completes within the clock's resolution still
// waits a full period. The wait lies in [0, period] unless the clock moved
// backwards.
func NextTick(period time.Duration, start, now time.Time, last int) (int, time.Duration) {
	if period <= 0 {
		return last + 1, 0
	}

	elapsed := now.Sub(start)
	if elapsed < 0 {
		elapsed = 0
	}

	tick := int(elapsed / period)
	if NextWait(period, start, now) > 0 {
		tick++
	}
	if tick <= last {
		tick = last + 1
	}

	return tick, start.Add(time.Duration(tick) * period).Sub(now)
}

// Clock is the loop's view of time. Wait is the only place a session blocks.
type Clock interface {
	Now() time.Time
	// Wait blocks for d or until ctx is done, returning ctx.Err() in the
	// latter case.
	Wait(ctx context.Context, d time.Duration) error
}

type systemClock struct{}

// SystemClock returns a Clock backed by the wall clock.
func SystemClock() Clock {
	return systemClock{}
}

func (systemClock) Now() time.Time {
	return time.Now()
}

func (systemClock) Wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
