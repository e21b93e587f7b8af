// Package schedule runs a function at a fixed interval.
package schedule

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
)

// Run calls fn immediately, and then again `interval` after each call
// returns, until ctx is cancelled. Calls never overlap: a call that takes
// longer than `interval` delays the next one rather than running alongside
// it.
//
// ctx is passed through to fn so that a call in progress can notice the
// cancellation. Run returns once ctx is cancelled and the current call (if
// any) has returned.
func Run(ctx context.Context, clock clockwork.Clock, interval time.Duration, fn func(context.Context)) {
	for {
		if ctx.Err() != nil {
			return
		}

		fn(ctx)

		select {
		case <-ctx.Done():
			return
		case <-clock.After(interval):
		}
	}
}
