package pulse

import (
	"sync"
	"sync/atomic"
)

// Effect is a reactive side effect that re-runs when its dependencies change.
// Effects run immediately when created, track every signal read during their
// execution, and re-run at the end of the flush in which a dependency
// changed. They can return a Cleanup function that is called before the
// effect re-runs and when the effect is disposed.
type Effect struct {
	id uint64

	// fn is the effect function to run.
	fn func() Cleanup

	// cleanup is the cleanup function from the last run.
	cleanup Cleanup

	// sources are the signals this effect depends on.
	sources   []*signalBase
	sourcesMu sync.Mutex

	// scope is the Scope that owns this effect, if any.
	scope *Scope

	// pending indicates the effect is scheduled for re-run.
	pending atomic.Bool

	// running suppresses self-invalidation: producers recomputed by this
	// effect's own reads must not reschedule it.
	running atomic.Bool

	// disposed indicates the effect has been disposed.
	disposed atomic.Bool
}

// CreateEffect creates and runs a new effect. The effect function runs
// immediately and re-runs when any signal it reads changes. If a Scope is
// current, the effect is owned by it and disposed with it.
//
// Example:
//
//	CreateEffect(func() Cleanup {
//	    fmt.Println("Count is:", count.Get())
//	    return func() { fmt.Println("cleanup") }
//	})
func CreateEffect(fn func() Cleanup) *Effect {
	e := &Effect{
		id:    nextID(),
		fn:    fn,
		scope: getCurrentScope(),
	}

	if e.scope != nil {
		e.scope.registerEffect(e)
	}

	// Run immediately
	e.run()

	return e
}

// MarkDirty schedules the effect for re-run at the end of the current flush.
// Implements the Listener interface.
func (e *Effect) MarkDirty() {
	if e.disposed.Load() || e.running.Load() {
		return
	}

	// CAS ensures we schedule at most once per flush.
	if e.pending.CompareAndSwap(false, true) {
		queuePendingEffect(e)
	}
}

// ID returns the unique identifier for this effect.
// Implements the Listener interface.
func (e *Effect) ID() uint64 {
	return e.id
}

// run executes the effect function, rebuilding its dependency set.
func (e *Effect) run() {
	if e.disposed.Load() {
		return
	}

	e.pending.Store(false)
	e.running.Store(true)
	defer e.running.Store(false)

	// Run cleanup from previous run
	if e.cleanup != nil {
		e.cleanup()
		e.cleanup = nil
	}

	// Unsubscribe from old sources
	e.sourcesMu.Lock()
	for _, source := range e.sources {
		source.unsubscribe(e)
	}
	e.sources = e.sources[:0]
	e.sourcesMu.Unlock()

	// Track new sources during execution
	old := setCurrentListener(e)
	e.cleanup = e.fn()
	setCurrentListener(old)
}

// addSource records a producer read during the effect's execution.
// Implements the tracker interface.
func (e *Effect) addSource(source *signalBase) {
	e.sourcesMu.Lock()
	defer e.sourcesMu.Unlock()

	for _, s := range e.sources {
		if s == source {
			return
		}
	}
	e.sources = append(e.sources, source)
}

// Dispose runs the pending cleanup and unsubscribes from all sources.
// Idempotent.
func (e *Effect) Dispose() {
	if e.disposed.Swap(true) {
		return
	}

	if e.cleanup != nil {
		e.cleanup()
		e.cleanup = nil
	}

	e.sourcesMu.Lock()
	for _, source := range e.sources {
		source.unsubscribe(e)
	}
	e.sources = nil
	e.sourcesMu.Unlock()
}

// Disposed reports whether Dispose has been called.
func (e *Effect) Disposed() bool {
	return e.disposed.Load()
}

// OnMount creates an effect that runs exactly once.
// This is equivalent to CreateEffect with no reactive dependencies.
func OnMount(fn func()) {
	CreateEffect(func() Cleanup {
		Untracked(fn)
		return nil
	})
}

// OnUpdate creates an effect that skips the callback on the first run.
// The deps function is called on every run to establish dependencies; the
// callback only runs on subsequent changes.
//
// Example:
//
//	OnUpdate(
//	    func() { _ = count.Get() },           // deps: read signals to track
//	    func() { fmt.Println("changed") },    // callback: only on changes
//	)
func OnUpdate(deps func(), callback func()) {
	first := true
	CreateEffect(func() Cleanup {
		deps()
		if first {
			first = false
			return nil
		}
		callback()
		return nil
	})
}

var _ tracker = (*Effect)(nil)
