package pulse

import (
	"errors"
	"testing"
)

func TestComputedBasic(t *testing.T) {
	count := NewMutable(5)

	recomputes := 0
	doubled := NewComputed(func() (int, error) {
		recomputes++
		return count.Get() * 2, nil
	})

	if got, err := doubled.Get(); err != nil || got != 10 {
		t.Fatalf("expected 10, got %d (err %v)", got, err)
	}

	count.Set(10)

	if got, err := doubled.Get(); err != nil || got != 20 {
		t.Fatalf("expected 20, got %d (err %v)", got, err)
	}
	if recomputes != 2 {
		t.Errorf("expected exactly 2 recomputations, got %d", recomputes)
	}
}

func TestComputedIsLazy(t *testing.T) {
	count := NewMutable(1)

	recomputes := 0
	doubled := NewComputed(func() (int, error) {
		recomputes++
		return count.Get() * 2, nil
	})

	count.Set(2)
	count.Set(3)

	if recomputes != 0 {
		t.Errorf("expected no recomputation before first read, got %d", recomputes)
	}

	doubled.Get()
	if recomputes != 1 {
		t.Errorf("expected 1 recomputation, got %d", recomputes)
	}

	// Repeated reads of a clean computed hit the cache.
	doubled.Get()
	if recomputes != 1 {
		t.Errorf("expected cached read, got %d recomputations", recomputes)
	}
}

func TestComputedChain(t *testing.T) {
	price := NewMutable(100.0)
	taxRate := NewMutable(0.08)

	taxed := NewComputed(func() (float64, error) {
		return price.Get() * (1 + taxRate.Get()), nil
	})

	total := NewComputed(func() (float64, error) {
		v, err := taxed.Get()
		if err != nil {
			return 0, err
		}
		return v * 2, nil
	})

	if got, _ := total.Get(); got != 216 {
		t.Errorf("expected 216, got %f", got)
	}

	price.Set(200)
	if got, _ := total.Get(); got != 432 {
		t.Errorf("expected 432, got %f", got)
	}
}

func TestComputedDynamicDependencies(t *testing.T) {
	useFirst := NewMutable(true)
	first := NewMutable("a")
	second := NewMutable("b")

	recomputes := 0
	pick := NewComputed(func() (string, error) {
		recomputes++
		if useFirst.Get() {
			return first.Get(), nil
		}
		return second.Get(), nil
	})

	if got, _ := pick.Get(); got != "a" {
		t.Errorf("expected a, got %s", got)
	}

	// While the first branch is active, the second signal is not a dependency.
	second.Set("B")
	pick.Get()
	if recomputes != 1 {
		t.Errorf("expected stale edge to be pruned, got %d recomputations", recomputes)
	}

	useFirst.Set(false)
	if got, _ := pick.Get(); got != "B" {
		t.Errorf("expected B, got %s", got)
	}

	// Now the first signal's edge must be dropped.
	first.Set("A")
	pick.Get()
	if recomputes != 2 {
		t.Errorf("expected 2 recomputations, got %d", recomputes)
	}
}

func TestComputedNamedDependencies(t *testing.T) {
	a := NewMutable(1, WithName("a"))
	b := NewMutable(2, WithName("b"))

	sum := NewComputedNamed(map[string]Source{"a": a, "b": b}, func(deps map[string]any) (int, error) {
		return deps["a"].(int) + deps["b"].(int), nil
	})

	if got, err := sum.Get(); err != nil || got != 3 {
		t.Fatalf("expected 3, got %d (err %v)", got, err)
	}

	a.Set(10)
	if got, _ := sum.Get(); got != 12 {
		t.Errorf("expected 12, got %d", got)
	}
}

func TestComputedNamedDependenciesSupplementImplicit(t *testing.T) {
	a := NewMutable(1)
	extra := NewMutable(100)

	sum := NewComputedNamed(map[string]Source{"a": a}, func(deps map[string]any) (int, error) {
		// Signals read inside the body are tracked in addition to the
		// declared set.
		return deps["a"].(int) + extra.Get(), nil
	})

	if got, _ := sum.Get(); got != 101 {
		t.Errorf("expected 101, got %d", got)
	}

	extra.Set(200)
	if got, _ := sum.Get(); got != 201 {
		t.Errorf("expected implicit dependency to invalidate, got %d", got)
	}
}

func TestComputedNamedDependencyError(t *testing.T) {
	boom := errors.New("boom")
	bad := NewComputed(func() (int, error) { return 0, boom }, WithName("bad"))

	recomputed := false
	sum := NewComputedNamed(map[string]Source{"bad": bad}, func(deps map[string]any) (int, error) {
		recomputed = true
		return 0, nil
	})

	_, err := sum.Get()
	if !errors.Is(err, boom) {
		t.Errorf("expected wrapped dependency error, got %v", err)
	}
	if recomputed {
		t.Error("function must not run when a declared dependency fails")
	}
}

func TestComputedErrorCapturedAndReRaised(t *testing.T) {
	fail := NewMutable(true)
	boom := errors.New("boom")

	runs := 0
	c := NewComputed(func() (int, error) {
		runs++
		if fail.Get() {
			return 0, boom
		}
		return 7, nil
	})

	if _, err := c.Get(); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	// The cached error is re-raised without recomputing.
	if _, err := c.Get(); !errors.Is(err, boom) {
		t.Fatalf("expected cached boom, got %v", err)
	}
	if runs != 1 {
		t.Errorf("expected 1 run, got %d", runs)
	}

	fail.Set(false)
	if got, err := c.Get(); err != nil || got != 7 {
		t.Errorf("expected recovery to 7, got %d (err %v)", got, err)
	}
}

func TestComputedErrorPropagatesThroughDependents(t *testing.T) {
	boom := errors.New("boom")
	upstream := NewComputed(func() (int, error) { return 0, boom }, WithName("upstream"))

	downstream := NewComputed(func() (int, error) {
		v, err := upstream.Get()
		if err != nil {
			return 0, err
		}
		return v + 1, nil
	}, WithName("downstream"))

	if _, err := downstream.Get(); !errors.Is(err, boom) {
		t.Fatalf("expected propagated error, got %v", err)
	}

	trace := ErrorTrace(boom)
	if len(trace) < 2 {
		t.Fatalf("expected trace through both computeds, got %v", trace)
	}
	if trace[0].Signal != "upstream" || trace[1].Signal != "downstream" {
		t.Errorf("expected upstream then downstream, got %v", trace)
	}
}

func TestComputedRefresh(t *testing.T) {
	calls := 0
	now := NewComputed(func() (int, error) {
		calls++
		return calls, nil
	})

	if got, _ := now.Get(); got != 1 {
		t.Fatalf("expected 1, got %d", got)
	}

	// No dependencies changed, but Refresh recomputes anyway.
	if err := now.Refresh(); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if got, _ := now.Get(); got != 2 {
		t.Errorf("expected 2 after refresh, got %d", got)
	}
}

func TestComputedStale(t *testing.T) {
	calls := 0
	c := NewComputed(func() (int, error) {
		calls++
		return calls, nil
	})

	c.Get()
	if err := c.Stale(); err != nil {
		t.Fatalf("Stale failed: %v", err)
	}
	if calls != 1 {
		t.Errorf("Stale must not recompute, got %d calls", calls)
	}

	c.Get()
	if calls != 2 {
		t.Errorf("expected recompute on next read, got %d calls", calls)
	}
}

func TestComputedResetIsInert(t *testing.T) {
	count := NewMutable(1)
	doubled := NewComputed(func() (int, error) { return count.Get() * 2, nil })
	doubled.Get()

	if err := doubled.Reset(); err != nil {
		t.Fatalf("Reset on computed must be a no-op, got %v", err)
	}
	if got, _ := doubled.Get(); got != 2 {
		t.Errorf("expected state unchanged, got %d", got)
	}
}

func TestComputedEqualityCutSuppressesNotification(t *testing.T) {
	count := NewMutable(1)
	parity := NewComputed(func() (int, error) { return count.Get() % 2, nil })
	parity.Get()

	notifications := 0
	if _, err := parity.On(func() { notifications++ }); err != nil {
		t.Fatalf("On failed: %v", err)
	}

	count.Set(3) // parity unchanged
	if notifications != 0 {
		t.Errorf("expected equality cut, got %d notifications", notifications)
	}

	count.Set(4) // parity changes
	if notifications != 1 {
		t.Errorf("expected 1 notification, got %d", notifications)
	}
}

func TestComputedOnDeliversSettledValue(t *testing.T) {
	count := NewMutable(1)
	doubled := NewComputed(func() (int, error) { return count.Get() * 2, nil })
	doubled.Get()

	var seen []int
	if _, err := doubled.On(func() {
		v, _ := doubled.Get()
		seen = append(seen, v)
	}); err != nil {
		t.Fatalf("On failed: %v", err)
	}

	count.Set(2)
	count.Set(3)

	if len(seen) != 2 || seen[0] != 4 || seen[1] != 6 {
		t.Errorf("expected settled values [4 6], got %v", seen)
	}
}

func TestComputedDisposeReleasesDependencyEdges(t *testing.T) {
	count := NewMutable(1)
	recomputes := 0
	doubled := NewComputed(func() (int, error) {
		recomputes++
		return count.Get() * 2, nil
	})
	doubled.Get()

	doubled.Dispose()
	count.Set(2)

	if recomputes != 1 {
		t.Errorf("expected no recomputation after dispose, got %d", recomputes)
	}
	if err := doubled.Refresh(); !errors.Is(err, ErrDisposed) {
		t.Errorf("expected ErrDisposed from Refresh, got %v", err)
	}
}

func TestComputedDisposedReadServesTerminalSnapshot(t *testing.T) {
	src := NewMutable(2)
	runs := 0
	c := NewComputed(func() (int, error) {
		runs++
		return src.Get() * 3, nil
	})

	// Never read, so the computed is still dirty at disposal.
	c.Dispose()

	if got, err := c.Get(); err != nil || got != 0 {
		t.Fatalf("expected zero terminal snapshot, got %d (err %v)", got, err)
	}
	if got, err := c.Peek(); err != nil || got != 0 {
		t.Fatalf("expected zero terminal snapshot from Peek, got %d (err %v)", got, err)
	}
	if runs != 0 {
		t.Errorf("expected no compute runs after dispose, got %d", runs)
	}

	src.base.subMu.RLock()
	subs := len(src.base.subs)
	src.base.subMu.RUnlock()
	if subs != 0 {
		t.Errorf("expected no subscriptions left on producer, got %d", subs)
	}
}

func TestComputedStaleThenDisposeKeepsLastValue(t *testing.T) {
	src := NewMutable(1)
	runs := 0
	c := NewComputed(func() (int, error) {
		runs++
		return src.Get() + 10, nil
	})

	if got, _ := c.Get(); got != 11 {
		t.Fatalf("expected 11, got %d", got)
	}

	c.Stale()
	c.Dispose()

	if got, err := c.Get(); err != nil || got != 11 {
		t.Errorf("expected frozen 11 after dispose, got %d (err %v)", got, err)
	}
	if runs != 1 {
		t.Errorf("expected 1 compute run, got %d", runs)
	}
}

func TestComputedRepeatedErrorDoesNotRenotify(t *testing.T) {
	trigger := NewMutable(0)
	boom := errors.New("boom")
	c := NewComputed(func() (int, error) {
		trigger.Get()
		return 0, boom
	})

	notified := 0
	if _, err := c.On(func() { notified++ }); err != nil {
		t.Fatalf("On failed: %v", err)
	}

	if _, err := c.Get(); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	first := notified

	trigger.Set(1)
	trigger.Set(2)

	if notified != first {
		t.Errorf("expected no renotification for an unchanged error, got %d extra", notified-first)
	}
}

func TestComputedCycleKeepsCachedValue(t *testing.T) {
	var c *Computed[int]
	c = NewComputed(func() (int, error) {
		v, _ := c.Get() // reads itself
		return v + 1, nil
	})

	// The inner read observes the zero cache instead of recursing.
	if got, _ := c.Get(); got != 1 {
		t.Errorf("expected 1, got %d", got)
	}
}

func TestNestedComputedTracking(t *testing.T) {
	a := NewMutable(1)

	inner := NewComputed(func() (int, error) { return a.Get() * 10, nil })
	outer := NewComputed(func() (int, error) {
		v, err := inner.Get()
		if err != nil {
			return 0, err
		}
		return v + a.Get(), nil
	})

	if got, _ := outer.Get(); got != 11 {
		t.Fatalf("expected 11, got %d", got)
	}

	a.Set(2)
	if got, _ := outer.Get(); got != 22 {
		t.Errorf("expected 22, got %d", got)
	}
}

func TestUntrackedReadDoesNotSubscribe(t *testing.T) {
	a := NewMutable(1)
	b := NewMutable(10)

	recomputes := 0
	c := NewComputed(func() (int, error) {
		recomputes++
		var bv int
		Untracked(func() { bv = b.Get() })
		return a.Get() + bv, nil
	})

	if got, _ := c.Get(); got != 11 {
		t.Fatalf("expected 11, got %d", got)
	}

	b.Set(20)
	c.Get()
	if recomputes != 1 {
		t.Errorf("untracked read must not create a dependency, got %d recomputations", recomputes)
	}

	a.Set(2)
	if got, _ := c.Get(); got != 22 {
		t.Errorf("expected 22, got %d", got)
	}
}
