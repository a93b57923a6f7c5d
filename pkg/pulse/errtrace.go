package pulse

import (
	"reflect"
	"sync"
	"time"
)

// TracePhase identifies where in the runtime an error passed through.
type TracePhase string

const (
	// PhaseCompute marks an error thrown by a compute function or updater.
	PhaseCompute TracePhase = "compute"

	// PhaseAsync marks an async fetch rejection.
	PhaseAsync TracePhase = "async"

	// PhaseTrigger marks a filter or callback error inside a when() trigger.
	PhaseTrigger TracePhase = "trigger"
)

// TraceEntry records one hop of an error's propagation across the signal
// graph. Entries are diagnostic metadata only: they never alter control flow
// and are not required for correctness.
type TraceEntry struct {
	Signal string
	Phase  TracePhase
	Async  bool
	Time   time.Time
}

// maxTracedErrors bounds the registry. When exceeded, the oldest traced
// error is evicted so the registry never retains more than this many error
// objects.
const maxTracedErrors = 256

// traceRegistry associates trace entries with error objects. Keys are the
// error values themselves, so entries accumulated by several signals for the
// same error form one ordered path.
type traceRegistry struct {
	mu      sync.Mutex
	entries map[error][]TraceEntry
	order   []error
}

var traces = traceRegistry{entries: make(map[error][]TraceEntry)}

// AddErrorTrace appends a trace entry to the path associated with err.
// Errors whose dynamic type is not hashable cannot carry metadata and are
// silently ignored, as is nil.
func AddErrorTrace(err error, entry TraceEntry) {
	if err == nil || !hashableError(err) {
		return
	}
	if entry.Time.IsZero() {
		entry.Time = time.Now()
	}
	if entry.Phase == PhaseAsync {
		entry.Async = true
	}

	traces.mu.Lock()
	defer traces.mu.Unlock()

	if _, ok := traces.entries[err]; !ok {
		traces.order = append(traces.order, err)
		if len(traces.order) > maxTracedErrors {
			oldest := traces.order[0]
			traces.order = traces.order[1:]
			delete(traces.entries, oldest)
		}
	}
	traces.entries[err] = append(traces.entries[err], entry)
}

// ErrorTrace returns the accumulated propagation path for err, oldest entry
// first, or nil if the error carries no trace.
func ErrorTrace(err error) []TraceEntry {
	if err == nil || !hashableError(err) {
		return nil
	}

	traces.mu.Lock()
	defer traces.mu.Unlock()

	entries := traces.entries[err]
	if len(entries) == 0 {
		return nil
	}
	out := make([]TraceEntry, len(entries))
	copy(out, entries)
	return out
}

// ClearErrorTrace drops the trace associated with err, releasing the
// registry's reference to the error object.
func ClearErrorTrace(err error) {
	if err == nil || !hashableError(err) {
		return
	}

	traces.mu.Lock()
	defer traces.mu.Unlock()

	if _, ok := traces.entries[err]; !ok {
		return
	}
	delete(traces.entries, err)
	for i, e := range traces.order {
		if e == err {
			traces.order = append(traces.order[:i], traces.order[i+1:]...)
			return
		}
	}
}

// hashableError reports whether err can be used as a map key.
func hashableError(err error) bool {
	t := reflect.TypeOf(err)
	return t != nil && t.Comparable()
}
