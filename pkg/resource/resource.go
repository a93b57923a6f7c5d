package resource

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/vango-dev/pulse/pkg/pulse"
)

// State represents the current state of a resource.
type State int

const (
	Pending State = iota // Initial state, before first fetch
	Loading              // Fetch in progress
	Ready                // Data successfully loaded
	Error                // Fetch failed
)

// String returns a human-readable name for the state.
func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// Resource manages asynchronous data fetching and state. State, data, and
// error are each held in a pulse signal, so reads inside computeds and
// effects establish dependencies the same way any signal read does.
type Resource[T any] struct {
	fetcher func(context.Context) (T, error)
	state   *pulse.Mutable[State]
	data    *pulse.Mutable[T]
	err     *pulse.Mutable[error]

	staleTime  time.Duration
	retryCount int
	retryDelay time.Duration
	onSuccess  func(T)
	onError    func(error)
	logger     *slog.Logger

	// lastFetch and fetchID are guarded by mu. fetchID lets a newer fetch
	// supersede an older in-flight one: a goroutine whose ID no longer
	// matches discards its result.
	lastFetch time.Time
	fetchID   uint64
	mu        sync.Mutex
}

// New creates a Resource with the given fetcher and triggers the first fetch
// immediately.
func New[T any](fetcher func(context.Context) (T, error), opts ...Option[T]) *Resource[T] {
	r := &Resource[T]{
		fetcher: fetcher,
		state:   pulse.NewMutable(Pending),
		data:    pulse.NewMutable(*new(T)),
		err:     pulse.NewMutable[error](nil),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.Fetch()
	return r
}

// NewKeyed creates a Resource that refetches whenever the key changes. The
// key function runs inside an effect, so every signal it reads becomes a
// trigger for a refetch.
func NewKeyed[K comparable, T any](key func() K, fetcher func(context.Context, K) (T, error), opts ...Option[T]) *Resource[T] {
	r := &Resource[T]{
		fetcher: func(ctx context.Context) (T, error) {
			var k K
			pulse.Untracked(func() { k = key() })
			return fetcher(ctx, k)
		},
		state:  pulse.NewMutable(Pending),
		data:   pulse.NewMutable(*new(T)),
		err:    pulse.NewMutable[error](nil),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}

	first := true
	pulse.CreateEffect(func() pulse.Cleanup {
		key()
		if first {
			first = false
			r.Fetch()
		} else {
			r.Refetch()
		}
		return nil
	})

	return r
}

// State returns the current resource state, tracked reactively.
func (r *Resource[T]) State() State {
	return r.state.Get()
}

// IsLoading reports whether a fetch is in flight or has not started yet.
func (r *Resource[T]) IsLoading() bool {
	s := r.state.Get()
	return s == Loading || s == Pending
}

// IsReady reports whether data has been loaded successfully.
func (r *Resource[T]) IsReady() bool {
	return r.state.Get() == Ready
}

// IsError reports whether the last fetch failed.
func (r *Resource[T]) IsError() bool {
	return r.state.Get() == Error
}

// Data returns the last successfully loaded value, tracked reactively.
func (r *Resource[T]) Data() T {
	return r.data.Get()
}

// DataOr returns the loaded value, or fallback while the resource is not
// ready.
func (r *Resource[T]) DataOr(fallback T) T {
	if r.IsReady() {
		return r.data.Get()
	}
	return fallback
}

// Error returns the last fetch error, tracked reactively.
func (r *Resource[T]) Error() error {
	return r.err.Get()
}

// Fetch triggers a fetch unless ready data is still within its stale time.
// To bypass the stale check, use Refetch.
func (r *Resource[T]) Fetch() {
	r.mu.Lock()
	if r.state.Peek() == Ready && time.Since(r.lastFetch) < r.staleTime {
		r.mu.Unlock()
		return
	}
	r.mu.Unlock()
	r.Refetch()
}

// Refetch forces a fetch, superseding any fetch still in flight.
func (r *Resource[T]) Refetch() {
	r.mu.Lock()
	r.fetchID++
	currentID := r.fetchID
	r.mu.Unlock()

	pulse.Batch(func() {
		r.state.Set(Loading)
		r.err.Set(nil)
	})

	go r.fetch(currentID)
}

func (r *Resource[T]) fetch(id uint64) {
	var result T
	var err error

	maxAttempts := 1 + r.retryCount
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			r.logger.Debug("retrying resource fetch",
				"attempt", attempt+1,
				"max_attempts", maxAttempts,
				"error", err)
			time.Sleep(r.retryDelay)
		}

		if r.superseded(id) {
			return
		}

		result, err = r.fetcher(context.Background())
		if err == nil {
			break
		}
	}

	r.mu.Lock()
	if r.fetchID != id {
		r.mu.Unlock()
		return
	}
	r.lastFetch = time.Now()
	r.mu.Unlock()

	if err != nil {
		pulse.Batch(func() {
			r.err.Set(err)
			r.state.Set(Error)
		})
		if r.onError != nil {
			r.onError(err)
		}
		return
	}

	pulse.Batch(func() {
		r.data.Set(result)
		r.state.Set(Ready)
	})
	if r.onSuccess != nil {
		r.onSuccess(result)
	}
}

func (r *Resource[T]) superseded(id uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fetchID != id
}

// Invalidate marks the current data as stale so the next Fetch refetches
// regardless of stale time.
func (r *Resource[T]) Invalidate() {
	r.mu.Lock()
	r.lastFetch = time.Time{}
	r.mu.Unlock()
}

// Mutate applies an optimistic local update to the data signal without
// touching the fetch state.
func (r *Resource[T]) Mutate(fn func(T) T) {
	r.data.Set(fn(r.data.Peek()))
}
