package pulse

import "testing"

func TestEmitterSubscribeEmit(t *testing.T) {
	e := NewEmitter[string]()

	var got []string
	unsub := e.Subscribe(func(v string) { got = append(got, v) })
	defer unsub()

	e.Emit("a")
	e.Emit("b")

	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("expected [a b], got %v", got)
	}
}

func TestEmitterHandlerOrder(t *testing.T) {
	e := NewEmitter[int]()

	var order []int
	for i := 0; i < 3; i++ {
		i := i
		e.Subscribe(func(int) { order = append(order, i) })
	}

	e.Emit(0)
	if len(order) != 3 || order[0] != 0 || order[1] != 1 || order[2] != 2 {
		t.Errorf("expected registration order, got %v", order)
	}
}

func TestEmitterUnsubscribe(t *testing.T) {
	e := NewEmitter[int]()

	calls := 0
	unsub := e.Subscribe(func(int) { calls++ })

	e.Emit(1)
	unsub()
	unsub() // idempotent
	e.Emit(2)

	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
	if e.Len() != 0 {
		t.Errorf("expected no handlers, got %d", e.Len())
	}
}

func TestEmitterClose(t *testing.T) {
	e := NewEmitter[int]()

	calls := 0
	e.Subscribe(func(v int) {
		if v != 42 {
			t.Errorf("expected closing value 42, got %d", v)
		}
		calls++
	})

	e.Close(42)
	e.Close(43) // idempotent
	e.Emit(1)   // dropped

	if calls != 1 {
		t.Errorf("expected handler to fire once, got %d", calls)
	}

	// Late subscription runs immediately with the closing value.
	late := 0
	e.Subscribe(func(v int) { late = v })
	if late != 42 {
		t.Errorf("expected immediate invocation with 42, got %d", late)
	}
}

func TestEmitterUnsubscribeDuringEmit(t *testing.T) {
	e := NewEmitter[int]()

	var unsub func()
	calls := 0
	unsub = e.Subscribe(func(int) {
		calls++
		unsub()
	})

	e.Emit(1)
	e.Emit(2)

	if calls != 1 {
		t.Errorf("expected handler removed from within itself, got %d calls", calls)
	}
}
