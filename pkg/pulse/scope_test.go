package pulse

import "testing"

func TestScopeOwnsSignals(t *testing.T) {
	scope := NewScope(nil)

	var count *Mutable[int]
	WithScope(scope, func() {
		count = NewMutable(1)
	})

	scope.Dispose()

	if !count.Disposed() {
		t.Error("expected owned signal to be disposed with its scope")
	}
}

func TestScopeChildrenDisposedInReverseOrder(t *testing.T) {
	root := NewScope(nil)

	var order []int
	for i := 0; i < 3; i++ {
		i := i
		child := NewScope(root)
		child.OnCleanup(func() { order = append(order, i) })
	}

	root.Dispose()

	if len(order) != 3 || order[0] != 2 || order[1] != 1 || order[2] != 0 {
		t.Errorf("expected reverse creation order [2 1 0], got %v", order)
	}
}

func TestScopeCleanupsRunInReverseOrder(t *testing.T) {
	scope := NewScope(nil)

	var order []int
	for i := 0; i < 3; i++ {
		i := i
		scope.OnCleanup(func() { order = append(order, i) })
	}

	scope.Dispose()

	if len(order) != 3 || order[0] != 2 || order[1] != 1 || order[2] != 0 {
		t.Errorf("expected [2 1 0], got %v", order)
	}
}

func TestScopeDisposeIsIdempotent(t *testing.T) {
	scope := NewScope(nil)

	cleanups := 0
	scope.OnCleanup(func() { cleanups++ })

	scope.Dispose()
	scope.Dispose()

	if cleanups != 1 {
		t.Errorf("expected cleanups to run once, got %d", cleanups)
	}
}

func TestScopeOnCleanupAfterDisposeRunsImmediately(t *testing.T) {
	scope := NewScope(nil)
	scope.Dispose()

	ran := false
	scope.OnCleanup(func() { ran = true })

	if !ran {
		t.Error("expected cleanup to run immediately on disposed scope")
	}
}

func TestScopeDisposalDoesNotCascadeAlongDependencies(t *testing.T) {
	// A computed in one scope reading a signal from another scope does not
	// own it: disposing the consumer leaves the producer alive.
	producerScope := NewScope(nil)
	consumerScope := NewScope(nil)

	var source *Mutable[int]
	WithScope(producerScope, func() {
		source = NewMutable(1)
	})

	var derived *Computed[int]
	WithScope(consumerScope, func() {
		derived = NewComputed(func() (int, error) { return source.Get() * 2, nil })
	})
	derived.Get()

	consumerScope.Dispose()

	if source.Disposed() {
		t.Error("disposal must not cascade upward to producers")
	}
	if err := source.Set(2); err != nil {
		t.Errorf("producer must remain writable: %v", err)
	}
}

func TestScopeOwnsEffects(t *testing.T) {
	scope := NewScope(nil)
	count := NewMutable(0)

	runs := 0
	WithScope(scope, func() {
		CreateEffect(func() Cleanup {
			runs++
			count.Get()
			return nil
		})
	})

	if runs != 1 {
		t.Fatalf("expected initial run, got %d", runs)
	}

	scope.Dispose()
	count.Set(1)

	if runs != 1 {
		t.Errorf("expected no re-run after scope disposal, got %d", runs)
	}
}

func TestScopeRun(t *testing.T) {
	scope := NewScope(nil)

	var inner *Scope
	scope.Run(func() {
		inner = getCurrentScope()
	})

	if inner != scope {
		t.Error("expected Run to install the scope as current")
	}
	if getCurrentScope() != nil {
		t.Error("expected current scope to be restored")
	}
}
