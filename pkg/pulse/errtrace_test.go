package pulse

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

type sliceError []string

func (e sliceError) Error() string { return "slice error" }

func TestErrorTraceAccumulates(t *testing.T) {
	err := errors.New("fail")
	defer ClearErrorTrace(err)

	AddErrorTrace(err, TraceEntry{Signal: "a", Phase: PhaseCompute})
	AddErrorTrace(err, TraceEntry{Signal: "b", Phase: PhaseCompute})

	trace := ErrorTrace(err)
	if len(trace) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(trace))
	}
	if trace[0].Signal != "a" || trace[1].Signal != "b" {
		t.Errorf("expected oldest-first ordering, got %v", trace)
	}
	if trace[0].Time.IsZero() {
		t.Error("expected auto-filled timestamp")
	}
}

func TestErrorTraceAsyncPhaseFlagged(t *testing.T) {
	err := errors.New("fetch failed")
	defer ClearErrorTrace(err)

	AddErrorTrace(err, TraceEntry{Signal: "loader", Phase: PhaseAsync})

	trace := ErrorTrace(err)
	if len(trace) != 1 || !trace[0].Async {
		t.Errorf("expected async flag forced for async phase, got %v", trace)
	}
}

func TestErrorTraceNonComparableIgnored(t *testing.T) {
	err := sliceError{"x"}

	AddErrorTrace(err, TraceEntry{Signal: "a", Phase: PhaseCompute})

	if trace := ErrorTrace(err); trace != nil {
		t.Errorf("expected non-comparable error ignored, got %v", trace)
	}
}

func TestErrorTraceNilIgnored(t *testing.T) {
	AddErrorTrace(nil, TraceEntry{Signal: "a", Phase: PhaseCompute})
	if trace := ErrorTrace(nil); trace != nil {
		t.Errorf("expected nil error ignored, got %v", trace)
	}
}

func TestErrorTraceReturnsCopy(t *testing.T) {
	err := errors.New("fail")
	defer ClearErrorTrace(err)

	AddErrorTrace(err, TraceEntry{Signal: "a", Phase: PhaseCompute})

	trace := ErrorTrace(err)
	trace[0].Signal = "mutated"

	if got := ErrorTrace(err); got[0].Signal != "a" {
		t.Errorf("expected registry unaffected by caller mutation, got %q", got[0].Signal)
	}
}

func TestClearErrorTrace(t *testing.T) {
	err := errors.New("fail")

	AddErrorTrace(err, TraceEntry{Signal: "a", Phase: PhaseCompute})
	ClearErrorTrace(err)

	if trace := ErrorTrace(err); trace != nil {
		t.Errorf("expected trace cleared, got %v", trace)
	}

	// Clearing an unknown error is a no-op.
	ClearErrorTrace(errors.New("never traced"))
}

func TestErrorTraceEvictsOldest(t *testing.T) {
	oldest := errors.New("oldest")
	AddErrorTrace(oldest, TraceEntry{Signal: "first", Phase: PhaseCompute})

	kept := make([]error, maxTracedErrors)
	for i := range kept {
		kept[i] = fmt.Errorf("filler %d", i)
		AddErrorTrace(kept[i], TraceEntry{Signal: "filler", Phase: PhaseCompute})
	}
	defer func() {
		for _, err := range kept {
			ClearErrorTrace(err)
		}
	}()

	if trace := ErrorTrace(oldest); trace != nil {
		t.Errorf("expected oldest error evicted, got %v", trace)
	}
	if trace := ErrorTrace(kept[len(kept)-1]); len(trace) != 1 {
		t.Errorf("expected newest error retained, got %v", trace)
	}

	entry := TraceEntry{Signal: "again", Phase: PhaseTrigger, Time: time.Unix(0, 0)}
	AddErrorTrace(oldest, entry)
	defer ClearErrorTrace(oldest)

	trace := ErrorTrace(oldest)
	if len(trace) != 1 || trace[0].Signal != "again" {
		t.Errorf("expected evicted error to start a fresh trace, got %v", trace)
	}
	if !trace[0].Time.Equal(time.Unix(0, 0)) {
		t.Errorf("expected explicit timestamp preserved, got %v", trace[0].Time)
	}
}
