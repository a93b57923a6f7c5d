package pulse

import "sort"

// Batch groups multiple signal updates into a single notification phase.
// Writes during the batch mark dependents dirty immediately (so reads inside
// the batch stay consistent through lazy recomputation), but listener
// delivery and effect runs are deferred until the outermost batch completes.
//
// A computed with N dependencies changed within one batch recomputes exactly
// once, observing the final value of every dependency.
//
// Batches can be nested. Delivery only fires when the outermost batch completes.
//
// Example:
//
//	Batch(func() {
//	    firstName.Set("John")
//	    lastName.Set("Doe")
//	    age.Set(30)
//	})
//	// Listeners fire once with all three changes applied
func Batch(fn func()) {
	tc := getTrackingContext()
	tc.batchDepth++

	defer func() {
		tc.batchDepth--
		if tc.batchDepth == 0 && !tc.flushing {
			flushPending(tc)
		}
	}()

	fn()
}

// flushPending drains the pending notification and effect queues until the
// graph is quiescent. Callback delivery is ordered by ascending signal
// height, so a consumer never fires before its producers have settled, and
// listeners of the same signal fire in registration order.
func flushPending(tc *TrackingContext) {
	if tc.flushing {
		return
	}
	tc.flushing = true
	defer func() { tc.flushing = false }()

	delivered, effectsRun := 0, 0

	for {
		notifs := tc.pendingNotify
		tc.pendingNotify = nil
		effects := tc.pendingEffects
		tc.pendingEffects = nil

		if len(notifs) == 0 && len(effects) == 0 {
			break
		}

		sort.SliceStable(notifs, func(i, j int) bool {
			return notifs[i].src.height.Load() < notifs[j].src.height.Load()
		})
		for _, l := range notifs {
			l.deliver()
			delivered++
		}

		for _, e := range effects {
			if e.pending.Load() {
				e.run()
				effectsRun++
			}
		}
	}

	if delivered > 0 || effectsRun > 0 {
		if DebugMode && Debug.LogFlushes {
			logger().Debug("pulse: flush complete",
				"delivered", delivered, "effects", effectsRun)
		}
		observeFlushCompleted(delivered, effectsRun)
	}
}

// Untracked runs a function without tracking signal reads as dependencies.
// This is useful when you need to read values inside a computed or effect
// without creating subscriptions.
//
// Note: For single signal reads, use the signal's Peek method instead, which
// is more efficient and clearer in intent.
func Untracked(fn func()) {
	old := setCurrentListener(nil)
	defer setCurrentListener(old)
	fn()
}

// UntrackedGet reads a mutable's value without creating a dependency.
// This is a convenience function equivalent to s.Peek().
func UntrackedGet[T any](s *Mutable[T]) T {
	return s.Peek()
}
