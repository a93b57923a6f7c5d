package pulse

import "sync/atomic"

// Listener is anything that can be notified when a producer changes.
// This interface is implemented by computeds, effects, and the internal
// adapters created for On() callbacks.
type Listener interface {
	// MarkDirty notifies the listener that one of its dependencies has changed.
	// For computeds, this invalidates the cached value and propagates staleness.
	// For effects, this schedules the effect to re-run.
	// For On() callbacks, this queues delivery for the current flush.
	MarkDirty()

	// ID returns a unique identifier for this listener.
	// Used for deduplication during batch processing.
	ID() uint64
}

// Cleanup is a function returned by effects to clean up resources.
// It is called before the effect re-runs and when the effect is disposed.
type Cleanup func()

// tracker is a Listener that records which producers it read during a run,
// so stale edges can be dropped on the next recomputation.
type tracker interface {
	Listener
	addSource(source *signalBase)
}

// funcListener adapts a plain callback registered via On() to the Listener
// interface. Delivery is deferred to the flush so callbacks observe a fully
// settled graph, and a version check suppresses redundant invocations.
type funcListener struct {
	id  uint64
	fn  func()
	src *signalBase

	// settle brings the source value up to date before delivery.
	// A no-op for mutables; recomputes dirty computeds.
	settle func()

	// last is the source version most recently delivered.
	last uint64

	// queued dedupes entries in the pending-notification set.
	queued atomic.Bool

	// gone is set when the caller unsubscribes.
	gone atomic.Bool
}

func (l *funcListener) ID() uint64 { return l.id }

// MarkDirty queues the callback for delivery at the end of the current flush.
func (l *funcListener) MarkDirty() {
	if l.gone.Load() {
		return
	}
	if l.queued.CompareAndSwap(false, true) {
		queuePendingNotify(l)
	}
}

// deliver settles the source and invokes the callback if the source value
// actually changed since the last delivery. A delivery queued before the
// source was disposed is dropped, matching the listener-set clear in dispose.
func (l *funcListener) deliver() {
	l.queued.Store(false)
	if l.gone.Load() || l.src.disposed.Load() {
		return
	}
	if l.settle != nil {
		l.settle()
	}
	if v := l.src.version.Load(); v != l.last {
		l.last = v
		l.fn()
	}
}
