package pulse

import (
	"runtime"
	"sync"
)

// TrackingContext holds the reactive state for a goroutine.
// Each goroutine has its own tracking context so graph reads and writes on
// concurrent goroutines never observe each other's in-progress computations.
type TrackingContext struct {
	// currentScope is the Scope that will own newly created signals/effects.
	currentScope *Scope

	// currentListener is what's currently tracking dependencies.
	// When a signal is read, it subscribes this listener.
	// nil means no tracking (reads don't create subscriptions).
	currentListener Listener

	// batchDepth tracks nested Batch() calls.
	// When > 0, notification delivery is deferred to the outermost batch end.
	batchDepth int

	// cascadeDepth is > 0 while dirty-marking is propagating through the
	// graph. Flushes are held until the cascade settles.
	cascadeDepth int

	// flushing is true while the pending sets are being drained.
	flushing bool

	// pendingNotify accumulates On() callbacks awaiting delivery.
	pendingNotify []*funcListener

	// pendingEffects accumulates effects scheduled to re-run.
	pendingEffects []*Effect
}

// trackingContexts stores per-goroutine tracking contexts.
// Using sync.Map for concurrent access from multiple goroutines.
var trackingContexts sync.Map

// getGoroutineID returns a unique identifier for the current goroutine.
// This uses the runtime stack to extract the goroutine ID.
// Note: This is an implementation detail and should not be relied upon externally.
func getGoroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)

	// The stack starts with "goroutine <id> "
	var id uint64
	for i := 10; i < n; i++ {
		if buf[i] == ' ' {
			break
		}
		id = id*10 + uint64(buf[i]-'0')
	}
	return id
}

// getTrackingContext returns the tracking context for the current goroutine,
// creating one if necessary.
func getTrackingContext() *TrackingContext {
	gid := getGoroutineID()

	if ctx, ok := trackingContexts.Load(gid); ok {
		return ctx.(*TrackingContext)
	}

	ctx := &TrackingContext{}
	trackingContexts.Store(gid, ctx)
	return ctx
}

// getCurrentListener returns the current listener being tracked.
// Returns nil if no tracking is active.
func getCurrentListener() Listener {
	return getTrackingContext().currentListener
}

// setCurrentListener sets the current listener for dependency tracking.
// Returns the previous listener so it can be restored.
func setCurrentListener(l Listener) Listener {
	ctx := getTrackingContext()
	old := ctx.currentListener
	ctx.currentListener = l
	return old
}

// getCurrentScope returns the current ownership scope for the goroutine.
// Returns nil if no scope is active.
func getCurrentScope() *Scope {
	return getTrackingContext().currentScope
}

// setCurrentScope sets the current scope for signal/effect creation.
// Returns the previous scope so it can be restored.
func setCurrentScope(s *Scope) *Scope {
	ctx := getTrackingContext()
	old := ctx.currentScope
	ctx.currentScope = s
	return old
}

// queuePendingNotify adds an On() callback to the pending delivery queue.
func queuePendingNotify(l *funcListener) {
	ctx := getTrackingContext()
	ctx.pendingNotify = append(ctx.pendingNotify, l)
}

// queuePendingEffect schedules an effect to run at the end of the flush.
func queuePendingEffect(e *Effect) {
	ctx := getTrackingContext()
	ctx.pendingEffects = append(ctx.pendingEffects, e)
}

// WithScope runs a function with the specified scope as the current scope.
// Signals and effects created inside fn are owned by the scope and disposed
// with it. This is also how goroutines attach work to an existing scope.
//
// Example:
//
//	go func() {
//	    WithScope(parent, func() {
//	        count := NewMutable(0)
//	        _ = count
//	    })
//	}()
func WithScope(scope *Scope, fn func()) {
	old := setCurrentScope(scope)
	defer setCurrentScope(old)
	fn()
}

// WithListener runs a function with the specified listener for tracking.
// This is used internally to set up dependency tracking during recomputation.
func WithListener(l Listener, fn func()) {
	old := setCurrentListener(l)
	defer setCurrentListener(old)
	fn()
}

// cleanupGoroutineContext removes the tracking context for the current goroutine.
// Should be called when a goroutine is about to exit to prevent memory leaks.
// This is optional - contexts are lightweight and will be overwritten if reused.
func cleanupGoroutineContext() {
	trackingContexts.Delete(getGoroutineID())
}
