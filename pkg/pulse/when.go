package pulse

import (
	"fmt"
	"time"
)

// TriggerAction is a lifecycle action applied to a target signal when a
// notifier changes.
type TriggerAction uint8

const (
	// TriggerReset restores the target's initial value on each notification.
	TriggerReset TriggerAction = iota + 1

	// TriggerRefresh forces recomputation of the target on each notification.
	TriggerRefresh

	// TriggerStale marks the target dirty on each notification, deferring
	// recomputation to the next read.
	TriggerStale
)

// String returns a human-readable name for the trigger action.
func (a TriggerAction) String() string {
	switch a {
	case TriggerReset:
		return "reset"
	case TriggerRefresh:
		return "refresh"
	case TriggerStale:
		return "stale"
	default:
		return "unknown"
	}
}

// WhenOption configures a when() trigger.
type WhenOption func(*whenConfig)

type whenConfig struct {
	filter func(notifier, target Signal) bool
}

// WithFilter gates the trigger: the action or callback only runs when the
// filter returns true. A filter that panics is treated as an error and
// routed to the target's error channel.
func WithFilter(fn func(notifier, target Signal) bool) WhenOption {
	return func(c *whenConfig) {
		c.filter = fn
	}
}

// When binds a notifier signal's changes to a lifecycle action on the
// target. The returned unsubscribe is idempotent; the subscription is also
// registered through the target's disposal scope, so disposing the target
// releases it even if the notifier keeps changing.
//
// Action and filter errors are routed to the target's error channel and
// never propagate out of the notifier's change dispatch.
//
// Example:
//
//	counter := NewMutable(10)
//	trigger := NewMutable(0)
//	When(trigger, counter, TriggerReset)
//	counter.Set(50)
//	trigger.Set(1) // counter reads 10 again
func When(notifier, target Signal, action TriggerAction, opts ...WhenOption) (func(), error) {
	return WhenFunc(notifier, target, func(_, target Signal) error {
		switch action {
		case TriggerReset:
			return target.Reset()
		case TriggerRefresh:
			return target.Refresh()
		case TriggerStale:
			return target.Stale()
		default:
			return fmt.Errorf("pulse: unknown trigger action %d", action)
		}
	}, opts...)
}

// WhenFunc binds a notifier signal's changes to a custom callback receiving
// both the notifier and the target. Errors returned (or panics raised) by
// the callback or filter are routed to the target's error channel.
func WhenFunc(notifier, target Signal, fn func(notifier, target Signal) error, opts ...WhenOption) (func(), error) {
	if target.Disposed() {
		return nil, disposedErr("When", target.signalRef())
	}
	if fn == nil {
		return func() {}, nil
	}

	var cfg whenConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	handler := func() {
		if target.Disposed() {
			return
		}
		err := runTrigger(notifier, target, cfg.filter, fn)
		if err != nil {
			AddErrorTrace(err, TraceEntry{
				Signal: target.signalRef().displayName(),
				Phase:  PhaseTrigger,
				Time:   time.Now(),
			})
			target.signalRef().routeError(err)
		}
	}

	unsub, err := notifier.On(handler)
	if err != nil {
		return nil, err
	}

	// Release with the target: disposing the target must silence the
	// trigger even while the notifier keeps changing.
	target.OnDispose(unsub)

	return unsub, nil
}

// runTrigger evaluates the filter and callback, converting panics into
// errors so nothing escapes the notifier's dispatch loop.
func runTrigger(notifier, target Signal, filter func(notifier, target Signal) bool, fn func(notifier, target Signal) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pulse: trigger panic: %v", r)
		}
	}()

	if filter != nil && !filter(notifier, target) {
		return nil
	}
	return fn(notifier, target)
}
