package pulse

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Computed is a cached derived computation that automatically tracks its
// dependencies. When any dependency changes, the computed is marked dirty
// and recomputes on the next read.
//
// Computeds are lazy: they only compute their value when read (or when
// Refresh is called). If multiple dependencies change before a read, the
// computed recomputes once, observing the final value of every dependency.
//
// Computeds can also be subscribed to, behaving like signals themselves.
// This allows building chains of derived values.
type Computed[T any] struct {
	base signalBase

	// compute produces the value. Errors are cached and returned from every
	// read until the next successful recomputation.
	compute func() (T, error)

	// value and err are the cached result of the last recomputation.
	// They are never partially applied: both reflect the same run.
	value   T
	err     error
	valueMu sync.RWMutex

	// dirty indicates the cached result may no longer reflect the
	// dependencies. The next read triggers recomputation.
	dirty atomic.Bool

	// sources are the producers this computed depends on. Rebuilt from
	// scratch on every recomputation so conditional dependencies drop
	// their stale edges.
	sources   []*signalBase
	sourcesMu sync.Mutex

	// equal is the equality function for determining value changes.
	equal func(T, T) bool

	// computing prevents infinite recursion in circular dependencies.
	computing atomic.Bool
}

// NewComputed creates a computed with the given function. Dependencies are
// captured implicitly: every signal read during the function's execution
// registers an edge. The function is not run until the first read.
func NewComputed[T any](compute func() (T, error), opts ...Option) *Computed[T] {
	cfg := applyOptions(opts)

	c := &Computed[T]{
		base:    newSignalBase(cfg.name),
		compute: compute,
		equal:   equalsFor[T](cfg.equality),
	}
	c.dirty.Store(true)
	if cfg.onError != nil {
		c.base.setOnError(cfg.onError)
	}

	if scope := getCurrentScope(); scope != nil {
		scope.OnCleanup(c.Dispose)
	}

	observeSignalCreated(KindComputed, cfg.name)
	return c
}

// NewComputedNamed creates a computed with an explicit, pre-declared
// dependency map. The declared sources are read once up front into a
// resolved snapshot passed to the function, in sorted name order. Signals
// read inside the function body are still tracked implicitly, supplementing
// the declared set.
//
// If a declared dependency yields an error, the function is not run and the
// computed caches the wrapped dependency error.
func NewComputedNamed[T any](deps map[string]Source, fn func(deps map[string]any) (T, error), opts ...Option) *Computed[T] {
	names := make([]string, 0, len(deps))
	for name := range deps {
		names = append(names, name)
	}
	sort.Strings(names)

	compute := func() (T, error) {
		resolved := make(map[string]any, len(deps))
		for _, name := range names {
			v, err := deps[name].anyValue()
			if err != nil {
				var zero T
				return zero, fmt.Errorf("dependency %q: %w", name, err)
			}
			resolved[name] = v
		}
		return fn(resolved)
	}

	return NewComputed(compute, opts...)
}

// Get returns the computed's value, recomputing if dirty, and subscribes
// the current listener. A cached compute error is returned from every read
// until a later recomputation succeeds. After disposal, Get serves the
// cached result as a terminal snapshot and never recomputes.
func (c *Computed[T]) Get() (T, error) {
	c.base.track()

	if c.dirty.Load() && !c.base.disposed.Load() {
		c.recompute()
	}

	c.valueMu.RLock()
	value, err := c.value, c.err
	c.valueMu.RUnlock()
	return value, err
}

// MustGet is Get for contexts where the compute function cannot fail.
// It panics on a cached error.
func (c *Computed[T]) MustGet() T {
	v, err := c.Get()
	if err != nil {
		panic(fmt.Sprintf("pulse: MustGet on %s: %v", c.base.displayName(), err))
	}
	return v
}

// Peek returns the computed's value without subscribing.
// Still triggers recomputation if the cached value is dirty, except after
// disposal, where the cached result is served as a terminal snapshot.
func (c *Computed[T]) Peek() (T, error) {
	if c.dirty.Load() && !c.base.disposed.Load() {
		c.recompute()
	}
	c.valueMu.RLock()
	value, err := c.value, c.err
	c.valueMu.RUnlock()
	return value, err
}

// MarkDirty invalidates the cached value and propagates staleness to
// subscribers. Implements the Listener interface; dependency edges call
// this when a producer changes.
func (c *Computed[T]) MarkDirty() {
	if c.base.disposed.Load() {
		return
	}
	// CAS keeps the cascade idempotent: an already-dirty computed has
	// already notified its own subscribers.
	if c.dirty.CompareAndSwap(false, true) {
		c.base.notify()
	}
}

// Stale marks the computed dirty without recomputing. The next read (or
// observed-listener delivery) triggers recomputation. Used for lazy
// invalidation of idempotent-but-externally-changing sources.
func (c *Computed[T]) Stale() error {
	if c.base.disposed.Load() {
		return disposedErr("Stale", &c.base)
	}
	c.MarkDirty()
	return nil
}

// Refresh forces immediate recomputation regardless of dependency staleness
// and returns the compute error, if any.
func (c *Computed[T]) Refresh() error {
	if c.base.disposed.Load() {
		return disposedErr("Refresh", &c.base)
	}
	c.recompute()

	c.valueMu.RLock()
	defer c.valueMu.RUnlock()
	return c.err
}

// Reset is inert on computeds: there is no initial value to restore.
func (c *Computed[T]) Reset() error {
	if c.base.disposed.Load() {
		return disposedErr("Reset", &c.base)
	}
	return nil
}

// On registers a change listener. The listener fires when a recomputation
// produces a value that differs per the configured equality.
func (c *Computed[T]) On(fn func()) (func(), error) {
	return c.base.on(fn, func() {
		if c.dirty.Load() {
			c.recompute()
		}
	})
}

// OnDispose registers a hook that fires exactly once at teardown.
func (c *Computed[T]) OnDispose(fn func()) {
	c.base.registerDisposer(fn)
}

// OnError installs the signal's error channel. Compute errors are reported
// here in addition to being cached for re-raise on read.
func (c *Computed[T]) OnError(fn func(error)) {
	c.base.setOnError(fn)
}

// Pause suspends listener notification without detaching subscriptions.
func (c *Computed[T]) Pause() {
	c.base.pause()
}

// Resume re-enables notification, delivering a buffered change if one
// occurred while paused.
func (c *Computed[T]) Resume() {
	c.base.resume()
}

// Dispose unsubscribes from all dependencies, cancels registered triggers,
// and clears the listener set. Idempotent. The cached value remains
// readable as a terminal snapshot.
func (c *Computed[T]) Dispose() {
	if !c.base.dispose() {
		return
	}

	c.sourcesMu.Lock()
	for _, source := range c.sources {
		source.unsubscribe(c)
	}
	c.sources = nil
	c.sourcesMu.Unlock()
}

// Disposed reports whether Dispose has been called.
func (c *Computed[T]) Disposed() bool {
	return c.base.disposed.Load()
}

// WithEquals configures the computed with a custom equality function.
func (c *Computed[T]) WithEquals(fn func(T, T) bool) *Computed[T] {
	if fn != nil {
		c.equal = fn
	}
	return c
}

// ID returns the unique identifier for this computed.
// Implements the Listener interface.
func (c *Computed[T]) ID() uint64 {
	return c.base.id
}

// Name returns the computed's display name, or "" if unnamed.
func (c *Computed[T]) Name() string {
	return c.base.name
}

// addSource records a producer read during recomputation.
// Implements the tracker interface.
func (c *Computed[T]) addSource(source *signalBase) {
	c.sourcesMu.Lock()
	defer c.sourcesMu.Unlock()

	for _, s := range c.sources {
		if s == source {
			return
		}
	}
	c.sources = append(c.sources, source)
}

// recompute runs the computation inside a fresh tracking frame and updates
// the cached result. Edges from the previous run are dropped first so
// conditional dependencies are pruned; reads during the run rebuild the set.
func (c *Computed[T]) recompute() {
	// Disposal is terminal: the compute function never runs again and the
	// cached result stays frozen as the snapshot.
	if c.base.disposed.Load() {
		return
	}
	// Prevent infinite recursion in circular dependencies: the inner read
	// observes the previous cached value.
	if c.computing.Swap(true) {
		return
	}
	defer c.computing.Store(false)

	// Unsubscribe from old sources
	c.sourcesMu.Lock()
	for _, source := range c.sources {
		source.unsubscribe(c)
	}
	c.sources = c.sources[:0]
	c.sourcesMu.Unlock()

	start := time.Now()

	// Track new sources during computation
	old := setCurrentListener(c)
	newValue, err := c.compute()
	setCurrentListener(old)

	// Height = 1 + max(source heights), for topological flush ordering.
	var maxh int32
	c.sourcesMu.Lock()
	for _, source := range c.sources {
		if h := source.height.Load(); h > maxh {
			maxh = h
		}
	}
	c.sourcesMu.Unlock()
	c.base.height.Store(maxh + 1)

	c.valueMu.Lock()
	changed := true
	switch {
	case err == nil && c.err == nil:
		changed = !c.equal(c.value, newValue)
	case err != nil && c.err != nil:
		// A repeated identical error is not an observable change.
		changed = !errors.Is(err, c.err)
	}
	c.value = newValue
	c.err = err
	c.valueMu.Unlock()

	c.dirty.Store(false)

	if err != nil {
		AddErrorTrace(err, TraceEntry{
			Signal: c.base.displayName(),
			Phase:  PhaseCompute,
			Time:   time.Now(),
		})
		// The error is cached and re-raised on read, so the error channel
		// is informational here: invoke it only if one is installed.
		c.base.errMu.Lock()
		onErr := c.base.onError
		c.base.errMu.Unlock()
		if onErr != nil {
			onErr(err)
		}
	}

	if DebugMode && Debug.LogRecomputes {
		logger().Debug("pulse: recompute",
			"signal", c.base.displayName(),
			"duration", time.Since(start),
			"failed", err != nil)
	}
	observeRecomputed(c.base.displayName(), time.Since(start), err != nil)

	if changed {
		c.base.bumpVersion()
		c.base.notify()
	}
}

var (
	_ Signal  = (*Computed[int])(nil)
	_ Source  = (*Computed[int])(nil)
	_ tracker = (*Computed[int])(nil)
)

func (c *Computed[T]) signalRef() *signalBase {
	return &c.base
}

func (c *Computed[T]) anyValue() (any, error) {
	return c.Get()
}
