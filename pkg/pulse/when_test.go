package pulse

import (
	"errors"
	"testing"
)

func TestWhenResetTrigger(t *testing.T) {
	counter := NewMutable(10)
	trigger := NewMutable(0)

	if _, err := When(trigger, counter, TriggerReset); err != nil {
		t.Fatalf("When failed: %v", err)
	}

	counter.Set(50)
	if got := counter.Get(); got != 50 {
		t.Fatalf("expected 50, got %d", got)
	}

	trigger.Set(1)
	if got := counter.Get(); got != 10 {
		t.Errorf("expected reset to initial 10, got %d", got)
	}
}

func TestWhenRefreshTrigger(t *testing.T) {
	calls := 0
	clock := NewComputed(func() (int, error) {
		calls++
		return calls, nil
	})
	clock.Get()

	tick := NewMutable(0)
	if _, err := When(tick, clock, TriggerRefresh); err != nil {
		t.Fatalf("When failed: %v", err)
	}

	tick.Set(1)
	if calls != 2 {
		t.Errorf("expected refresh on trigger, got %d calls", calls)
	}
}

func TestWhenStaleTrigger(t *testing.T) {
	calls := 0
	c := NewComputed(func() (int, error) {
		calls++
		return calls, nil
	})
	c.Get()

	invalidate := NewMutable(0)
	if _, err := When(invalidate, c, TriggerStale); err != nil {
		t.Fatalf("When failed: %v", err)
	}

	invalidate.Set(1)
	if calls != 1 {
		t.Errorf("stale trigger must not recompute eagerly, got %d calls", calls)
	}

	c.Get()
	if calls != 2 {
		t.Errorf("expected recompute on next read, got %d calls", calls)
	}
}

func TestWhenFilter(t *testing.T) {
	counter := NewMutable(10)
	trigger := NewMutable(0)

	_, err := When(trigger, counter, TriggerReset, WithFilter(func(notifier, _ Signal) bool {
		n := notifier.(*Mutable[int])
		return n.Peek() > 5
	}))
	if err != nil {
		t.Fatalf("When failed: %v", err)
	}

	counter.Set(50)
	trigger.Set(1) // filtered out
	if got := counter.Get(); got != 50 {
		t.Errorf("expected filter to gate action, got %d", got)
	}

	trigger.Set(6)
	if got := counter.Get(); got != 10 {
		t.Errorf("expected reset once filter passes, got %d", got)
	}
}

func TestWhenCallbackErrorRoutedToTarget(t *testing.T) {
	boom := errors.New("boom")

	var routed error
	target := NewMutable(0, WithName("target"), WithOnError(func(err error) { routed = err }))
	notifier := NewMutable(0)

	_, err := WhenFunc(notifier, target, func(_, _ Signal) error {
		return boom
	})
	if err != nil {
		t.Fatalf("WhenFunc failed: %v", err)
	}

	notifier.Set(1)

	if !errors.Is(routed, boom) {
		t.Errorf("expected error routed to target channel, got %v", routed)
	}

	trace := ErrorTrace(boom)
	if len(trace) != 1 || trace[0].Phase != PhaseTrigger || trace[0].Signal != "target" {
		t.Errorf("expected trigger-phase trace entry for target, got %v", trace)
	}
}

func TestWhenFilterPanicRoutedToTarget(t *testing.T) {
	var routed error
	target := NewMutable(0, WithOnError(func(err error) { routed = err }))
	notifier := NewMutable(0)

	_, err := When(notifier, target, TriggerReset, WithFilter(func(_, _ Signal) bool {
		panic("filter exploded")
	}))
	if err != nil {
		t.Fatalf("When failed: %v", err)
	}

	notifier.Set(1)

	if routed == nil {
		t.Fatal("expected panic converted to routed error")
	}
}

func TestWhenStopsAfterTargetDispose(t *testing.T) {
	counter := NewMutable(10)
	trigger := NewMutable(0)

	resets := 0
	if _, err := WhenFunc(trigger, counter, func(_, target Signal) error {
		resets++
		return target.Reset()
	}); err != nil {
		t.Fatalf("WhenFunc failed: %v", err)
	}

	trigger.Set(1)
	if resets != 1 {
		t.Fatalf("expected trigger to fire, got %d", resets)
	}

	counter.Dispose()
	trigger.Set(2)
	trigger.Set(3)

	if resets != 1 {
		t.Errorf("expected no trigger fires after target dispose, got %d", resets)
	}
}

func TestWhenOnDisposedTargetFails(t *testing.T) {
	counter := NewMutable(10)
	counter.Dispose()

	trigger := NewMutable(0)
	if _, err := When(trigger, counter, TriggerReset); !errors.Is(err, ErrDisposed) {
		t.Errorf("expected ErrDisposed, got %v", err)
	}
}

func TestWhenUnsubscribe(t *testing.T) {
	counter := NewMutable(10)
	trigger := NewMutable(0)

	unsub, err := When(trigger, counter, TriggerReset)
	if err != nil {
		t.Fatalf("When failed: %v", err)
	}

	counter.Set(50)
	unsub()
	trigger.Set(1)

	if got := counter.Get(); got != 50 {
		t.Errorf("expected trigger detached, got %d", got)
	}
}

func TestWhenMultipleNotifiers(t *testing.T) {
	counter := NewMutable(10)
	t1 := NewMutable(0)
	t2 := NewMutable(0)

	if _, err := When(t1, counter, TriggerReset); err != nil {
		t.Fatalf("When failed: %v", err)
	}
	if _, err := When(t2, counter, TriggerReset); err != nil {
		t.Fatalf("When failed: %v", err)
	}

	counter.Set(50)
	t1.Set(1)
	if got := counter.Get(); got != 10 {
		t.Errorf("expected reset via first notifier, got %d", got)
	}

	counter.Set(60)
	t2.Set(1)
	if got := counter.Get(); got != 10 {
		t.Errorf("expected reset via second notifier, got %d", got)
	}
}
