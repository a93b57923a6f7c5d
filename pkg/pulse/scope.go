package pulse

import (
	"sync"
	"sync/atomic"
)

// Scope is an ownership boundary for reactive primitives. Signals and
// effects created while a scope is current are disposed with it, and scopes
// form a parent-creates-child hierarchy: disposing a scope disposes its
// children first, in reverse creation order.
//
// Ownership never flows along dependency edges. A computed reading a signal
// from another scope does not own it, and disposing either side releases
// only the subscription between them.
type Scope struct {
	id uint64

	// parent is the parent scope, or nil for a root scope.
	parent *Scope

	// children are child scopes.
	children   []*Scope
	childrenMu sync.Mutex

	// effects owned by this scope.
	effects   []*Effect
	effectsMu sync.Mutex

	// cleanups are functions registered via OnCleanup, run in reverse order
	// at disposal. Owned signals register their Dispose here.
	cleanups   []func()
	cleanupsMu sync.Mutex

	// disposed indicates whether this scope has been disposed.
	disposed atomic.Bool
}

// NewScope creates a new scope with the given parent.
// The new scope is automatically registered as a child of the parent.
// If parent is nil, creates a root scope.
func NewScope(parent *Scope) *Scope {
	s := &Scope{
		id:     nextID(),
		parent: parent,
	}

	if parent != nil {
		parent.addChild(s)
	}

	return s
}

// ID returns the unique identifier for this scope.
func (s *Scope) ID() uint64 {
	return s.id
}

// Parent returns the parent scope, or nil if this is a root scope.
func (s *Scope) Parent() *Scope {
	return s.parent
}

// Disposed reports whether this scope has been disposed.
func (s *Scope) Disposed() bool {
	return s.disposed.Load()
}

func (s *Scope) addChild(child *Scope) {
	s.childrenMu.Lock()
	defer s.childrenMu.Unlock()
	s.children = append(s.children, child)
}

func (s *Scope) removeChild(child *Scope) {
	s.childrenMu.Lock()
	defer s.childrenMu.Unlock()

	for i, c := range s.children {
		if c == child {
			s.children = append(s.children[:i], s.children[i+1:]...)
			return
		}
	}
}

// registerEffect adds an effect to this scope.
// The effect will be disposed when this scope is disposed.
func (s *Scope) registerEffect(e *Effect) {
	if s.disposed.Load() {
		return
	}

	s.effectsMu.Lock()
	defer s.effectsMu.Unlock()
	s.effects = append(s.effects, e)
}

// OnCleanup registers a cleanup function to run when this scope is disposed.
// If the scope is already disposed, the cleanup runs immediately.
func (s *Scope) OnCleanup(fn func()) {
	if fn == nil {
		return
	}
	if s.disposed.Load() {
		fn()
		return
	}

	s.cleanupsMu.Lock()
	defer s.cleanupsMu.Unlock()
	s.cleanups = append(s.cleanups, fn)
}

// Run executes fn with this scope as the current scope for the goroutine.
// Equivalent to WithScope(s, fn).
func (s *Scope) Run(fn func()) {
	WithScope(s, fn)
}

// Dispose disposes this scope and all its children, effects, and cleanups,
// exactly once. Children are disposed in reverse order (last created first),
// then effects, then cleanups in reverse registration order.
func (s *Scope) Dispose() {
	if s.disposed.Swap(true) {
		return
	}

	if s.parent != nil {
		s.parent.removeChild(s)
	}

	s.childrenMu.Lock()
	children := make([]*Scope, len(s.children))
	copy(children, s.children)
	s.children = nil
	s.childrenMu.Unlock()

	for i := len(children) - 1; i >= 0; i-- {
		children[i].Dispose()
	}

	s.effectsMu.Lock()
	effects := s.effects
	s.effects = nil
	s.effectsMu.Unlock()

	for _, e := range effects {
		e.Dispose()
	}

	s.cleanupsMu.Lock()
	cleanups := s.cleanups
	s.cleanups = nil
	s.cleanupsMu.Unlock()

	for i := len(cleanups) - 1; i >= 0; i-- {
		cleanups[i]()
	}
}
