package pulse

import (
	"errors"
	"fmt"
)

// ErrDisposed is returned when a mutating operation is attempted on a signal
// that has already been disposed. Reads of a disposed signal do not fail;
// they return the terminal snapshot taken at disposal time.
//
// Use errors.Is(err, ErrDisposed) to detect this condition regardless of the
// operation that produced it.
var ErrDisposed = errors.New("pulse: signal disposed")

// ErrPending is returned when an async signal is read before its first
// fetch has settled. Once a fetch succeeds, reads return the last settled
// value even while a newer fetch is in flight.
var ErrPending = errors.New("pulse: async value pending")

// DisposedError reports the operation and signal that hit a disposed state.
// It unwraps to ErrDisposed.
type DisposedError struct {
	Op     string // the attempted operation, e.g. "Set"
	Signal string // the signal's display name, or its ID if unnamed
}

// Error implements the error interface.
func (e *DisposedError) Error() string {
	return fmt.Sprintf("pulse: %s on disposed signal %s", e.Op, e.Signal)
}

// Unwrap returns ErrDisposed for errors.Is support.
func (e *DisposedError) Unwrap() error {
	return ErrDisposed
}

// disposedErr builds a DisposedError for the given operation and signal.
func disposedErr(op string, b *signalBase) error {
	return &DisposedError{Op: op, Signal: b.displayName()}
}
