// Package retry provides a bounded retry combinator for waiting on an
// external value to stabilize.
package retry

import (
	"context"
	"time"
)

// Do calls fn up to attempts times, sleeping delay between calls, until fn
// reports ok. Returns the last value and whether any attempt succeeded.
// After exhaustion the caller proceeds with the zero value rather than
// failing; this is a wait, not an error path. Cancelling the context ends
// the wait early.
func Do[T any](ctx context.Context, attempts int, delay time.Duration, fn func() (T, bool)) (T, bool) {
	var last T

	for i := 0; i < attempts; i++ {
		if v, ok := fn(); ok {
			return v, true
		}

		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return last, false
		case <-time.After(delay):
		}
	}

	return last, false
}
