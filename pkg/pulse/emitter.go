package pulse

import "sync"

// Emitter is a minimal publish/subscribe primitive. Handlers are invoked in
// registration order, and subscriptions return an idempotent unsubscribe.
//
// Emitter backs the per-signal disposal hooks and is exported as a building
// block for consumers of the core contract.
type Emitter[T any] struct {
	mu       sync.Mutex
	handlers []emitterEntry[T]

	// closed marks the emitter as terminally settled. Subscriptions made
	// after Close are invoked immediately with the closing value.
	closed bool
	last   T
}

type emitterEntry[T any] struct {
	id uint64
	fn func(T)
}

// NewEmitter creates an empty emitter.
func NewEmitter[T any]() *Emitter[T] {
	return &Emitter[T]{}
}

// Subscribe registers a handler and returns an unsubscribe function.
// The handler is not invoked for the registration itself. If the emitter has
// already been closed, the handler runs immediately with the closing value
// and the returned unsubscribe is a no-op.
func (e *Emitter[T]) Subscribe(fn func(T)) func() {
	if fn == nil {
		return func() {}
	}

	e.mu.Lock()
	if e.closed {
		last := e.last
		e.mu.Unlock()
		fn(last)
		return func() {}
	}
	id := nextID()
	e.handlers = append(e.handlers, emitterEntry[T]{id: id, fn: fn})
	e.mu.Unlock()

	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		for i, h := range e.handlers {
			if h.id == id {
				e.handlers = append(e.handlers[:i], e.handlers[i+1:]...)
				return
			}
		}
	}
}

// Emit invokes all handlers with the given value, in registration order.
// Handlers are copied before invocation so subscribing or unsubscribing
// from within a handler is safe. Emit after Close is a no-op.
func (e *Emitter[T]) Emit(v T) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	handlers := make([]emitterEntry[T], len(e.handlers))
	copy(handlers, e.handlers)
	e.mu.Unlock()

	for _, h := range handlers {
		h.fn(v)
	}
}

// Close emits the value to all handlers exactly once and marks the emitter
// closed. Further Emit calls are dropped and further Subscribe calls invoke
// their handler immediately. Close is idempotent.
func (e *Emitter[T]) Close(v T) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	e.last = v
	handlers := e.handlers
	e.handlers = nil
	e.mu.Unlock()

	for _, h := range handlers {
		h.fn(v)
	}
}

// Len returns the number of active subscriptions.
func (e *Emitter[T]) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.handlers)
}
