package pulse

import (
	"log/slog"
	"sync/atomic"
	"time"
)

// DebugMode enables debug logging throughout the pulse package.
// This should be set at startup and not changed during runtime.
var DebugMode bool

// DebugConfig controls debugging features for development.
type DebugConfig struct {
	// LogFlushes logs each flush with the number of deliveries and effects.
	LogFlushes bool

	// LogRecomputes logs each computed recomputation with timing.
	LogRecomputes bool
}

// Debug is the global debug configuration, consulted only when DebugMode is
// enabled. Modify this at application startup.
var Debug DebugConfig

// pkgLogger is the logger used for debug output and unrouted errors.
var pkgLogger atomic.Pointer[slog.Logger]

// SetLogger installs the logger used for debug output and for errors that
// have no per-signal error channel. Passing nil restores slog.Default.
func SetLogger(l *slog.Logger) {
	if l == nil {
		pkgLogger.Store(nil)
		return
	}
	pkgLogger.Store(l)
}

func logger() *slog.Logger {
	if l := pkgLogger.Load(); l != nil {
		return l
	}
	return slog.Default()
}

// SignalKind identifies the kind of a reactive primitive for instrumentation.
type SignalKind uint8

const (
	KindMutable SignalKind = iota + 1
	KindComputed
	KindAsync
)

// String returns a human-readable name for the signal kind.
func (k SignalKind) String() string {
	switch k {
	case KindMutable:
		return "mutable"
	case KindComputed:
		return "computed"
	case KindAsync:
		return "async"
	default:
		return "unknown"
	}
}

// Observer receives runtime events for instrumentation. All methods are
// called synchronously on the goroutine where the event occurred, so
// implementations must be fast and must not touch the signal graph.
type Observer interface {
	// SignalCreated is called once per signal construction.
	SignalCreated(kind SignalKind, name string)

	// Recomputed is called after each computed recomputation.
	Recomputed(name string, d time.Duration, failed bool)

	// FlushCompleted is called at the end of each outermost flush.
	FlushCompleted(delivered, effects int)

	// AsyncSettled is called when an async fetch settles. discarded is true
	// when the result was superseded and dropped by the staleness guard.
	AsyncSettled(name string, discarded bool)
}

// observerHolder wraps the Observer so an atomic.Pointer can store the
// interface value.
type observerHolder struct {
	obs Observer
}

var globalObserver atomic.Pointer[observerHolder]

// SetObserver installs a package-wide instrumentation observer.
// Passing nil removes the current observer.
func SetObserver(obs Observer) {
	if obs == nil {
		globalObserver.Store(nil)
		return
	}
	globalObserver.Store(&observerHolder{obs: obs})
}

func observer() Observer {
	if h := globalObserver.Load(); h != nil {
		return h.obs
	}
	return nil
}

func observeSignalCreated(kind SignalKind, name string) {
	if obs := observer(); obs != nil {
		obs.SignalCreated(kind, name)
	}
}

func observeRecomputed(name string, d time.Duration, failed bool) {
	if obs := observer(); obs != nil {
		obs.Recomputed(name, d, failed)
	}
}

func observeFlushCompleted(delivered, effects int) {
	if obs := observer(); obs != nil {
		obs.FlushCompleted(delivered, effects)
	}
}

func observeAsyncSettled(name string, discarded bool) {
	if obs := observer(); obs != nil {
		obs.AsyncSettled(name, discarded)
	}
}
