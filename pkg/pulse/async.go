package pulse

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// asyncState identifies "the current authoritative result" of an async
// signal. A fresh record is installed on every fetch; settle handlers
// compare the live record pointer against the one they captured and discard
// superseded results. This is the sole cancellation mechanism: in-flight
// work is never aborted, only its result dropped.
type asyncState[T any] struct {
	value   T
	err     error
	settled bool
}

// Async is a signal whose value is produced asynchronously by a fetch
// function. Reads are stale-while-revalidate: once a fetch has succeeded,
// Get keeps returning the last settled value while a newer fetch is in
// flight. Settlements that were superseded by a later Refresh are discarded.
//
// The fetch starts lazily on the first read, or explicitly via Refresh.
type Async[T any] struct {
	base signalBase

	fetch func(ctx context.Context) (T, error)

	mu sync.Mutex

	// state is the live authoritative-result token.
	state *asyncState[T]

	// promise is the in-flight (or last) fetch.
	promise *Promise[T]

	// lastValue is the most recent successfully settled value, served to
	// stale-while-revalidate readers.
	lastValue T
	lastErr   error
	hasValue  bool

	// started indicates the first fetch has been launched.
	started bool

	// staleFlag forces a refetch on the next read.
	staleFlag atomic.Bool

	equal func(T, T) bool
}

// NewAsync creates an async signal from a fetch function. The fetch runs in
// its own goroutine; its result re-enters the notification path when it
// settles, guarded by the staleness check.
//
// Cancellation is cooperative: the context passed to fetch is never
// cancelled by the runtime, and superseded results are discarded rather than
// aborted. Callers needing true cancellation must race upstream themselves.
func NewAsync[T any](fetch func(ctx context.Context) (T, error), opts ...Option) *Async[T] {
	cfg := applyOptions(opts)

	a := &Async[T]{
		base:  newSignalBase(cfg.name),
		fetch: fetch,
		state: &asyncState[T]{},
		equal: equalsFor[T](cfg.equality),
	}
	if cfg.onError != nil {
		a.base.setOnError(cfg.onError)
	}

	if scope := getCurrentScope(); scope != nil {
		scope.OnCleanup(a.Dispose)
	}

	observeSignalCreated(KindAsync, cfg.name)
	return a
}

// Get returns the latest settled value and subscribes the current listener.
// Before the first settlement it returns ErrPending. While a newer fetch is
// in flight, it returns the previous settled value (stale-while-revalidate).
func (a *Async[T]) Get() (T, error) {
	a.base.track()
	a.ensureStarted()

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.hasValue || a.lastErr != nil {
		return a.lastValue, a.lastErr
	}
	var zero T
	return zero, ErrPending
}

// Peek returns the latest settled value without subscribing or starting the
// first fetch.
func (a *Async[T]) Peek() (T, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.hasValue || a.lastErr != nil {
		return a.lastValue, a.lastErr
	}
	var zero T
	return zero, ErrPending
}

// Loading reports whether a fetch is in flight, subscribing the current
// listener to the loading transition.
func (a *Async[T]) Loading() bool {
	a.base.track()

	a.mu.Lock()
	defer a.mu.Unlock()
	return a.started && !a.state.settled
}

// Task returns the discriminated snapshot of the current fetch, subscribing
// the current listener. Multiple observers share the same record.
func (a *Async[T]) Task() *Task[T] {
	a.base.track()
	a.ensureStarted()

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.promise != nil {
		return TaskFrom(a.promise)
	}
	if a.lastErr != nil {
		return FailedTask[T](a.lastErr)
	}
	return CompletedTask(a.lastValue)
}

// Refresh launches a new fetch, superseding any fetch still in flight.
// The superseded fetch's settlement will be discarded when it arrives.
func (a *Async[T]) Refresh() error {
	if a.base.disposed.Load() {
		return disposedErr("Refresh", &a.base)
	}
	a.start()
	return nil
}

// Stale marks the current value stale: the next read launches a fresh fetch
// while continuing to serve the previous value until it settles.
func (a *Async[T]) Stale() error {
	if a.base.disposed.Load() {
		return disposedErr("Stale", &a.base)
	}
	a.staleFlag.Store(true)
	return nil
}

// Reset is inert on async signals: there is no initial value to restore.
func (a *Async[T]) Reset() error {
	if a.base.disposed.Load() {
		return disposedErr("Reset", &a.base)
	}
	return nil
}

// ensureStarted launches the first fetch, or a refetch after Stale.
func (a *Async[T]) ensureStarted() {
	if a.base.disposed.Load() {
		return
	}
	if a.staleFlag.Swap(false) {
		a.start()
		return
	}
	a.mu.Lock()
	started := a.started
	a.mu.Unlock()
	if !started {
		a.start()
	}
}

// start installs a fresh authoritative-result token and launches the fetch.
func (a *Async[T]) start() {
	a.mu.Lock()
	st := &asyncState[T]{}
	a.state = st
	a.started = true
	wasLoading := a.promise != nil && !a.promise.Settled()

	p := Go(func() (T, error) {
		return a.fetch(context.Background())
	})
	a.promise = p
	a.mu.Unlock()

	// Loading transition is observable unless a fetch was already in flight.
	if !wasLoading {
		a.base.bumpVersion()
		a.base.notify()
	}

	p.onSettle(func(v T, err error) {
		a.settle(st, v, err)
	})
}

// settle applies a fetch result, unless the captured token has been
// superseded by a newer fetch, in which case the result is discarded.
func (a *Async[T]) settle(st *asyncState[T], v T, err error) {
	a.mu.Lock()
	if a.state != st || a.base.disposed.Load() {
		a.mu.Unlock()
		observeAsyncSettled(a.base.displayName(), true)
		return
	}

	st.settled = true
	st.value = v
	st.err = err

	changed := true
	if err == nil {
		if a.hasValue && a.lastErr == nil {
			changed = !a.equal(a.lastValue, v)
		}
		a.lastValue = v
		a.lastErr = nil
		a.hasValue = true
	} else {
		a.lastErr = err
	}
	a.mu.Unlock()

	observeAsyncSettled(a.base.displayName(), false)

	if err != nil {
		AddErrorTrace(err, TraceEntry{
			Signal: a.base.displayName(),
			Phase:  PhaseAsync,
			Async:  true,
			Time:   time.Now(),
		})
		a.base.routeError(err)
	}

	if changed {
		a.base.bumpVersion()
	}
	// Re-enter the flush path: loading ended even if the value is equal.
	a.base.notify()
}

// On registers a change listener, fired on loading transitions and
// settlements that change the observable value.
func (a *Async[T]) On(fn func()) (func(), error) {
	return a.base.on(fn, nil)
}

// OnDispose registers a hook that fires exactly once at teardown.
func (a *Async[T]) OnDispose(fn func()) {
	a.base.registerDisposer(fn)
}

// OnError installs the signal's error channel. Fetch rejections that pass
// the staleness guard are delivered here.
func (a *Async[T]) OnError(fn func(error)) {
	a.base.setOnError(fn)
}

// Pause suspends listener notification without detaching subscriptions.
func (a *Async[T]) Pause() {
	a.base.pause()
}

// Resume re-enables notification, delivering a buffered change if any.
func (a *Async[T]) Resume() {
	a.base.resume()
}

// Dispose releases listeners and triggers and discards any in-flight fetch
// result. Idempotent. The last settled value remains readable.
func (a *Async[T]) Dispose() {
	if !a.base.dispose() {
		return
	}
	a.mu.Lock()
	// Invalidate the live token so in-flight settlements are discarded.
	a.state = &asyncState[T]{}
	a.mu.Unlock()
}

// Disposed reports whether Dispose has been called.
func (a *Async[T]) Disposed() bool {
	return a.base.disposed.Load()
}

// ID returns the unique identifier for this signal.
func (a *Async[T]) ID() uint64 {
	return a.base.id
}

// Name returns the signal's display name, or "" if unnamed.
func (a *Async[T]) Name() string {
	return a.base.name
}

func (a *Async[T]) signalRef() *signalBase {
	return &a.base
}

func (a *Async[T]) anyValue() (any, error) {
	return a.Get()
}

var (
	_ Signal = (*Async[int])(nil)
	_ Source = (*Async[int])(nil)
)
