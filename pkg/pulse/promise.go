package pulse

import "sync"

// Promise is a one-shot future. It settles exactly once, with either a value
// or an error; later Resolve/Reject calls are dropped. Settlement callbacks
// registered after the promise settles run immediately.
type Promise[T any] struct {
	mu        sync.Mutex
	done      chan struct{}
	value     T
	err       error
	settled   bool
	callbacks []func(T, error)

	task     *Task[T]
	taskOnce sync.Once
}

// NewPromise creates an unsettled promise.
func NewPromise[T any]() *Promise[T] {
	return &Promise[T]{done: make(chan struct{})}
}

// Go runs fn in a new goroutine and returns a promise for its result.
func Go[T any](fn func() (T, error)) *Promise[T] {
	p := NewPromise[T]()
	go func() {
		v, err := fn()
		if err != nil {
			p.Reject(err)
		} else {
			p.Resolve(v)
		}
	}()
	return p
}

// Resolved returns a promise already settled with v.
func Resolved[T any](v T) *Promise[T] {
	p := NewPromise[T]()
	p.Resolve(v)
	return p
}

// Rejected returns a promise already settled with err.
func Rejected[T any](err error) *Promise[T] {
	p := NewPromise[T]()
	p.Reject(err)
	return p
}

// Resolve settles the promise with a value. The first settlement wins.
func (p *Promise[T]) Resolve(v T) {
	p.settle(v, nil)
}

// Reject settles the promise with an error. The first settlement wins.
func (p *Promise[T]) Reject(err error) {
	var zero T
	p.settle(zero, err)
}

func (p *Promise[T]) settle(v T, err error) {
	p.mu.Lock()
	if p.settled {
		p.mu.Unlock()
		return
	}
	p.settled = true
	p.value = v
	p.err = err
	callbacks := p.callbacks
	p.callbacks = nil
	close(p.done)
	p.mu.Unlock()

	for _, fn := range callbacks {
		fn(v, err)
	}
}

// Done returns a channel closed when the promise settles.
func (p *Promise[T]) Done() <-chan struct{} {
	return p.done
}

// Settled reports whether the promise has settled.
func (p *Promise[T]) Settled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.settled
}

// Result blocks until the promise settles and returns its outcome.
func (p *Promise[T]) Result() (T, error) {
	<-p.done
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.value, p.err
}

// onSettle registers a settlement callback. If the promise has already
// settled, the callback runs immediately on the calling goroutine.
func (p *Promise[T]) onSettle(fn func(T, error)) {
	p.mu.Lock()
	if p.settled {
		v, err := p.value, p.err
		p.mu.Unlock()
		fn(v, err)
		return
	}
	p.callbacks = append(p.callbacks, fn)
	p.mu.Unlock()
}

// TaskStatus is the discriminant of a Task snapshot.
type TaskStatus uint8

const (
	TaskLoading TaskStatus = iota
	TaskSuccess
	TaskError
)

// String returns a human-readable name for the task status.
func (s TaskStatus) String() string {
	switch s {
	case TaskSuccess:
		return "success"
	case TaskError:
		return "error"
	default:
		return "loading"
	}
}

// Task is a discriminated loading/success/error snapshot of a promise.
// Exactly one Task exists per promise: repeated TaskFrom calls for the same
// promise return the same record, so all observers share one
// loading-to-settled transition. The record lives exactly as long as the
// promise that owns it.
type Task[T any] struct {
	mu     sync.Mutex
	status TaskStatus
	value  T
	err    error

	promise *Promise[T]
}

// TaskFrom returns the Task associated with the promise, creating it on
// first use.
func TaskFrom[T any](p *Promise[T]) *Task[T] {
	p.taskOnce.Do(func() {
		t := &Task[T]{promise: p}
		p.task = t
		p.onSettle(func(v T, err error) {
			t.mu.Lock()
			if err != nil {
				t.status = TaskError
				t.err = err
			} else {
				t.status = TaskSuccess
				t.value = v
			}
			t.mu.Unlock()
		})
	})
	return p.task
}

// CompletedTask returns a success-state task not backed by a live promise.
func CompletedTask[T any](v T) *Task[T] {
	return TaskFrom(Resolved(v))
}

// FailedTask returns an error-state task not backed by a live promise.
func FailedTask[T any](err error) *Task[T] {
	return TaskFrom(Rejected[T](err))
}

// Status returns the task's current state.
func (t *Task[T]) Status() TaskStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// Value returns the settled value. Zero until the task reaches TaskSuccess.
func (t *Task[T]) Value() T {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.value
}

// Err returns the settled error. Nil until the task reaches TaskError.
func (t *Task[T]) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Promise returns the promise backing this task.
func (t *Task[T]) Promise() *Promise[T] {
	return t.promise
}
