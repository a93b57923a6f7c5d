package pulse

// Option configures a signal at construction time.
type Option func(*signalConfig)

// signalConfig holds kind-independent construction settings.
type signalConfig struct {
	name     string
	equality Equality
	onError  func(error)
}

// WithName sets a display name for the signal. Names appear in error traces,
// debug logs, and instrumentation labels.
//
// Example:
//
//	count := NewMutable(0, WithName("count"))
func WithName(name string) Option {
	return func(c *signalConfig) {
		c.name = name
	}
}

// WithEquality selects the value-comparison strategy used to decide whether
// a new value differs enough from the old one to notify listeners.
// For a custom comparison function, use the WithEquals method on the
// concrete signal instead.
func WithEquality(e Equality) Option {
	return func(c *signalConfig) {
		c.equality = e
	}
}

// WithOnError installs the signal's error channel. Errors from when()
// triggers and async settlements targeting this signal are delivered here
// instead of the package logger.
func WithOnError(fn func(error)) Option {
	return func(c *signalConfig) {
		c.onError = fn
	}
}

// applyOptions applies the given options and returns the resulting config.
func applyOptions(opts []Option) signalConfig {
	var cfg signalConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}
