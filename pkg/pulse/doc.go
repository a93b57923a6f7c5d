// Package pulse is a fine-grained reactive runtime: a graph of observable
// value cells and derived computations that recompute automatically, exactly
// once per change, with explicit lifecycle and error semantics.
//
// # Core Types
//
// Mutable[T] is a writable reactive value container:
//
//	count := NewMutable(0)
//	value := count.Get()  // Read (subscribes current listener)
//	count.Set(5)          // Write (notifies subscribers)
//	count.Update(func(n int) int { return n + 1 })
//
// Computed[T] is a cached derived computation:
//
//	doubled := NewComputed(func() (int, error) {
//	    return count.Get() * 2, nil
//	})
//	value, err := doubled.Get()  // Recomputes only if dependencies changed
//
// Async[T] produces its value asynchronously with stale-while-revalidate
// reads and a staleness guard that discards superseded settlements:
//
//	user := NewAsync(func(ctx context.Context) (User, error) {
//	    return loadUser(ctx, id)
//	})
//
// CreateEffect runs side effects when dependencies change:
//
//	CreateEffect(func() Cleanup {
//	    fmt.Println("Count is:", count.Get())
//	    return func() { /* cleanup */ }
//	})
//
// # Batching
//
// Multiple writes can be batched so every affected computed recomputes at
// most once, observing the final value of every dependency:
//
//	Batch(func() {
//	    a.Set(1)
//	    b.Set(2)
//	})  // One delivery pass after all updates
//
// # Lifecycle
//
// Every signal supports Pause/Resume, Refresh/Reset/Stale, On, and an
// idempotent Dispose that cascades through its disposal scope. Scope groups
// primitives under an owner so a whole subtree tears down exactly once.
// When binds a notifier signal to a lifecycle action on a target.
//
// # Thread Safety
//
// All primitives are safe for concurrent use. The dependency-tracking
// context is per-goroutine, so work spawned on other goroutines attaches to
// a scope explicitly via WithScope.
package pulse
