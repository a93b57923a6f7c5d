package pulse

import (
	"strconv"
	"sync"
	"sync/atomic"
)

// Signal is the lifecycle contract shared by every reactive cell: mutables,
// computeds, and async values. Operations that do not apply to a particular
// kind (Reset on a computed, Refresh on a mutable) are inert and return nil
// rather than failing.
type Signal interface {
	// ID returns the unique identifier for this signal.
	ID() uint64

	// Name returns the optional display name, or "" if unnamed.
	Name() string

	// On registers a change listener and returns an idempotent unsubscribe.
	// The listener is never invoked for the registration itself.
	// Returns ErrDisposed if the signal has been disposed.
	On(fn func()) (func(), error)

	// OnDispose registers a hook that fires exactly once at teardown.
	// If the signal is already disposed the hook runs immediately.
	OnDispose(fn func())

	// Pause suspends listener notification without detaching subscriptions.
	Pause()

	// Resume re-enables notification. If a change occurred while paused, a
	// single notification is delivered.
	Resume()

	// Refresh forces recomputation regardless of staleness. Inert on mutables.
	Refresh() error

	// Reset restores the construction-time initial value. Inert on computeds.
	Reset() error

	// Stale marks a computed dirty without recomputing. Inert on mutables.
	Stale() error

	// Dispose releases all dependency subscriptions and triggers, exactly
	// once. Idempotent.
	Dispose()

	// Disposed reports whether Dispose has been called.
	Disposed() bool

	signalRef() *signalBase
}

// Source is a Signal whose current value can be resolved dynamically.
// Named-dependency computeds accept any Source as a declared dependency.
type Source interface {
	Signal

	// anyValue performs a tracked read of the current value.
	anyValue() (any, error)
}

// signalBase provides type-erased listener management and lifecycle state.
// It is embedded in Mutable[T], Computed[T], and Async[T].
type signalBase struct {
	id   uint64
	name string

	// subs are the listeners subscribed to this signal, in registration order.
	subs []Listener

	// subMu protects the subs slice.
	subMu sync.RWMutex

	// version increments on every observable value change. On() callbacks
	// compare versions to suppress redundant deliveries.
	version atomic.Uint64

	// height is this signal's depth in the dependency graph: 0 for mutables,
	// 1 + max(source heights) for computeds. Flush delivery is ordered by
	// ascending height so no callback observes a half-updated graph.
	height atomic.Int32

	paused             atomic.Bool
	pendingWhilePaused atomic.Bool
	disposed           atomic.Bool

	// onDispose fires exactly once at teardown. Dependency edges, when()
	// triggers, and external owners append their release hooks here.
	onDispose Emitter[struct{}]

	// onError receives errors routed from when() triggers and async
	// settlements targeting this signal.
	errMu   sync.Mutex
	onError func(error)
}

func newSignalBase(name string) signalBase {
	return signalBase{id: nextID(), name: name}
}

func (b *signalBase) getID() uint64 { return b.id }

func (b *signalBase) getName() string { return b.name }

// displayName returns the signal's name, or its ID when unnamed.
func (b *signalBase) displayName() string {
	if b.name != "" {
		return b.name
	}
	return "#" + strconv.FormatUint(b.id, 10)
}

// subscribe adds a listener to this signal's subscribers.
// Deduplicates by listener ID to prevent double-subscription. Listener
// addition on a disposed signal is dropped.
func (b *signalBase) subscribe(l Listener) {
	if l == nil || b.disposed.Load() {
		return
	}

	b.subMu.Lock()
	defer b.subMu.Unlock()

	lid := l.ID()
	for _, existing := range b.subs {
		if existing.ID() == lid {
			return
		}
	}

	b.subs = append(b.subs, l)
}

// unsubscribe removes a listener from this signal's subscribers.
// Removal preserves registration order for the remaining listeners.
func (b *signalBase) unsubscribe(l Listener) {
	if l == nil {
		return
	}

	b.subMu.Lock()
	defer b.subMu.Unlock()

	lid := l.ID()
	for i, existing := range b.subs {
		if existing.ID() == lid {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			return
		}
	}
}

// track registers the current computation (if any) as a subscriber of this
// signal. Called on every tracked read.
func (b *signalBase) track() {
	if b.disposed.Load() {
		return
	}
	if listener := getCurrentListener(); listener != nil {
		b.subscribe(listener)
		if t, ok := listener.(tracker); ok {
			t.addSource(b)
		}
	}
}

// notify marks all subscribers dirty and, outside of a batch or flush,
// triggers delivery. While paused, at most one pending notification is
// recorded and re-issued on Resume.
func (b *signalBase) notify() {
	if b.disposed.Load() {
		return
	}
	if b.paused.Load() {
		b.pendingWhilePaused.Store(true)
		return
	}

	// Copy subscribers while holding lock
	b.subMu.RLock()
	subs := make([]Listener, len(b.subs))
	copy(subs, b.subs)
	b.subMu.RUnlock()

	tc := getTrackingContext()
	tc.cascadeDepth++
	for _, sub := range subs {
		sub.MarkDirty()
	}
	tc.cascadeDepth--

	if tc.batchDepth == 0 && tc.cascadeDepth == 0 && !tc.flushing {
		flushPending(tc)
	}
}

// bumpVersion records an observable value change.
func (b *signalBase) bumpVersion() {
	b.version.Add(1)
}

// on wires a plain callback through a funcListener. settle is invoked before
// delivery to bring the source value up to date.
func (b *signalBase) on(fn func(), settle func()) (func(), error) {
	if b.disposed.Load() {
		return nil, disposedErr("On", b)
	}
	if fn == nil {
		return func() {}, nil
	}

	l := &funcListener{
		id:     nextID(),
		fn:     fn,
		src:    b,
		settle: settle,
		last:   b.version.Load(),
	}
	b.subscribe(l)

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			l.gone.Store(true)
			b.unsubscribe(l)
		})
	}
	return unsub, nil
}

// pause suspends listener notification.
func (b *signalBase) pause() {
	b.paused.Store(true)
}

// resume re-enables notification and re-issues a buffered change, if any.
func (b *signalBase) resume() {
	if !b.paused.Swap(false) {
		return
	}
	if b.pendingWhilePaused.Swap(false) {
		b.notify()
	}
}

// registerDisposer appends a release hook to this signal's disposal scope.
// Runs immediately if the signal is already disposed.
func (b *signalBase) registerDisposer(fn func()) {
	if fn == nil {
		return
	}
	b.onDispose.Subscribe(func(struct{}) { fn() })
}

// dispose marks the signal disposed, fires the disposal scope exactly once,
// and clears the listener set. Returns false if already disposed.
func (b *signalBase) dispose() bool {
	if b.disposed.Swap(true) {
		return false
	}

	b.onDispose.Close(struct{}{})

	b.subMu.Lock()
	b.subs = nil
	b.subMu.Unlock()
	return true
}

// setOnError installs the error channel for this signal.
func (b *signalBase) setOnError(fn func(error)) {
	b.errMu.Lock()
	b.onError = fn
	b.errMu.Unlock()
}

// routeError delivers an error to the signal's error channel, falling back
// to the package logger.
func (b *signalBase) routeError(err error) {
	if err == nil {
		return
	}
	b.errMu.Lock()
	fn := b.onError
	b.errMu.Unlock()

	if fn != nil {
		fn(err)
		return
	}
	logger().Warn("pulse: unhandled signal error",
		"signal", b.displayName(), "err", err)
}
