package resource

import (
	"log/slog"
	"time"
)

// Option configures a Resource at construction time.
type Option[T any] func(*Resource[T])

// WithStaleTime sets the duration for which ready data satisfies Fetch
// without a network round trip.
func WithStaleTime[T any](d time.Duration) Option[T] {
	return func(r *Resource[T]) {
		r.staleTime = d
	}
}

// WithRetry sets the number of retries after a failed fetch and the delay
// between attempts.
func WithRetry[T any](count int, delay time.Duration) Option[T] {
	return func(r *Resource[T]) {
		r.retryCount = count
		r.retryDelay = delay
	}
}

// WithOnSuccess registers a callback invoked after each successful fetch.
func WithOnSuccess[T any](fn func(T)) Option[T] {
	return func(r *Resource[T]) {
		r.onSuccess = fn
	}
}

// WithOnError registers a callback invoked after a fetch has exhausted its
// retries.
func WithOnError[T any](fn func(error)) Option[T] {
	return func(r *Resource[T]) {
		r.onError = fn
	}
}

// WithLogger sets the logger used for retry diagnostics. Defaults to
// slog.Default.
func WithLogger[T any](l *slog.Logger) Option[T] {
	return func(r *Resource[T]) {
		if l != nil {
			r.logger = l
		}
	}
}
