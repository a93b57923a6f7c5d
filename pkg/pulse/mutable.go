package pulse

import "sync"

// Mutable is a writable reactive value container.
// Reading a Mutable's value during a tracked context (computed recomputation
// or effect execution) automatically subscribes the current listener to
// receive notifications when the value changes.
type Mutable[T any] struct {
	base signalBase

	// initial is the construction-time value restored by Reset.
	initial T

	// value is the current signal value.
	value T

	// mu protects the value.
	mu sync.RWMutex

	// equal is the equality function used to determine if the value changed.
	equal func(T, T) bool
}

// NewMutable creates a new mutable signal with the given initial value.
// If a Scope is current, the signal is owned by it and disposed with it.
func NewMutable[T any](initial T, opts ...Option) *Mutable[T] {
	cfg := applyOptions(opts)

	s := &Mutable[T]{
		base:    newSignalBase(cfg.name),
		initial: initial,
		value:   initial,
		equal:   equalsFor[T](cfg.equality),
	}
	if cfg.onError != nil {
		s.base.setOnError(cfg.onError)
	}

	if scope := getCurrentScope(); scope != nil {
		scope.OnCleanup(s.Dispose)
	}

	observeSignalCreated(KindMutable, cfg.name)
	return s
}

// Get returns the current value and subscribes the current listener.
// After disposal, Get returns the terminal snapshot taken at disposal time.
func (s *Mutable[T]) Get() T {
	s.mu.RLock()
	value := s.value
	s.mu.RUnlock()

	// Track dependency (after releasing value lock to prevent deadlock)
	s.base.track()

	return value
}

// Peek returns the current value without subscribing.
// This is useful when you need to read a value without creating a dependency.
func (s *Mutable[T]) Peek() T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value
}

// Set updates the signal's value and notifies subscribers if the value
// changed per the configured equality. Setting an equal value is a no-op:
// no notification, no dependent invalidation.
func (s *Mutable[T]) Set(value T) error {
	if s.base.disposed.Load() {
		return disposedErr("Set", &s.base)
	}

	s.mu.Lock()
	changed := !s.equal(s.value, value)
	if changed {
		s.value = value
	}
	s.mu.Unlock()

	if changed {
		s.base.bumpVersion()
		s.base.notify()
	}
	return nil
}

// Update atomically reads and updates the signal's value.
// The function receives the current value and returns the new value.
func (s *Mutable[T]) Update(fn func(T) T) error {
	if s.base.disposed.Load() {
		return disposedErr("Update", &s.base)
	}

	s.mu.Lock()
	oldValue := s.value
	newValue := fn(oldValue)
	changed := !s.equal(oldValue, newValue)
	if changed {
		s.value = newValue
	}
	s.mu.Unlock()

	if changed {
		s.base.bumpVersion()
		s.base.notify()
	}
	return nil
}

// Reset restores the construction-time initial value, notifying if the
// current value differs.
func (s *Mutable[T]) Reset() error {
	if s.base.disposed.Load() {
		return disposedErr("Reset", &s.base)
	}
	return s.Set(s.initial)
}

// Refresh is inert on mutables: there is nothing to recompute.
func (s *Mutable[T]) Refresh() error {
	if s.base.disposed.Load() {
		return disposedErr("Refresh", &s.base)
	}
	return nil
}

// Stale is inert on mutables: there is no cached derivation to invalidate.
func (s *Mutable[T]) Stale() error {
	if s.base.disposed.Load() {
		return disposedErr("Stale", &s.base)
	}
	return nil
}

// On registers a change listener. The listener fires after each observable
// value change, in registration order relative to other listeners.
func (s *Mutable[T]) On(fn func()) (func(), error) {
	return s.base.on(fn, nil)
}

// OnDispose registers a hook that fires exactly once at teardown.
func (s *Mutable[T]) OnDispose(fn func()) {
	s.base.registerDisposer(fn)
}

// OnError installs the signal's error channel, used by when() triggers
// targeting this signal.
func (s *Mutable[T]) OnError(fn func(error)) {
	s.base.setOnError(fn)
}

// Pause suspends listener notification without detaching subscriptions.
// The signal still updates internally while paused.
func (s *Mutable[T]) Pause() {
	s.base.pause()
}

// Resume re-enables notification. If the value changed while paused, a
// single notification is delivered now.
func (s *Mutable[T]) Resume() {
	s.base.resume()
}

// Dispose releases listeners and registered triggers. Idempotent.
// The current value remains readable as a terminal snapshot.
func (s *Mutable[T]) Dispose() {
	s.base.dispose()
}

// Disposed reports whether Dispose has been called.
func (s *Mutable[T]) Disposed() bool {
	return s.base.disposed.Load()
}

// WithEquals returns the signal configured with a custom equality function.
// This is useful for custom types where reflect.DeepEqual is too expensive
// or has incorrect semantics.
func (s *Mutable[T]) WithEquals(fn func(T, T) bool) *Mutable[T] {
	if fn != nil {
		s.equal = fn
	}
	return s
}

// ID returns the unique identifier for this signal.
func (s *Mutable[T]) ID() uint64 {
	return s.base.id
}

// Name returns the signal's display name, or "" if unnamed.
func (s *Mutable[T]) Name() string {
	return s.base.name
}

func (s *Mutable[T]) signalRef() *signalBase {
	return &s.base
}

func (s *Mutable[T]) anyValue() (any, error) {
	return s.Get(), nil
}

var (
	_ Signal = (*Mutable[int])(nil)
	_ Source = (*Mutable[int])(nil)
)
