package harvest

import (
	"context"
	"time"
)

const defaultPollInterval = 50 * time.Millisecond

// WaitUntil blocks until cond returns true, the timeout elapses or ctx ends.
// cond is checked right away, on every change notification of doc when doc
// implements Notifier, and on every poll tick. The subscription is released
// before WaitUntil returns.
func WaitUntil(ctx context.Context, doc Document, timeout, poll time.Duration, cond func() bool) bool {
	if cond() {
		return true
	}

	if poll <= 0 {
		poll = defaultPollInterval
	}

	var changes <-chan struct{}

	if n, ok := doc.(Notifier); ok {
		ch, release, err := n.Subscribe(ctx)
		if err == nil {
			defer release()

			changes = ch
		}
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return false
		case <-deadline.C:
			return cond()
		case _, ok := <-changes:
			if !ok {
				changes = nil

				continue
			}
		case <-ticker.C:
		}

		if cond() {
			return true
		}
	}
}
