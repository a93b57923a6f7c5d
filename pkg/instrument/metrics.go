package instrument

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/vango-dev/pulse/pkg/pulse"
)

// MetricsConfig configures the Prometheus metrics observer.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "pulse").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for recompute duration in seconds.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// MetricsOption configures the Prometheus metrics observer.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the recompute duration histogram buckets.
func WithBuckets(buckets []float64) MetricsOption {
	return func(c *MetricsConfig) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

// defaultMetricsConfig returns the default metrics configuration.
func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace:   "pulse",
		Subsystem:   "",
		ConstLabels: nil,
		Buckets:     prometheus.DefBuckets,
		Registry:    prometheus.DefaultRegisterer,
	}
}

// Metrics is a pulse.Observer that exports runtime counters and histograms
// to Prometheus.
type Metrics struct {
	signalsCreated    *prometheus.CounterVec
	recomputesTotal   *prometheus.CounterVec
	recomputeDuration prometheus.Histogram
	flushesTotal      prometheus.Counter
	flushDeliveries   prometheus.Histogram
	flushEffects      prometheus.Histogram
	asyncSettled      *prometheus.CounterVec
}

// NewMetrics builds a metrics observer and registers its collectors.
func NewMetrics(opts ...MetricsOption) *Metrics {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}

	factory := promauto.With(config.Registry)

	return &Metrics{
		signalsCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "signals_created_total",
			Help:        "Total number of signals created, by kind",
			ConstLabels: config.ConstLabels,
		}, []string{"kind"}),

		recomputesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "recomputes_total",
			Help:        "Total number of computed recomputations, by status",
			ConstLabels: config.ConstLabels,
		}, []string{"status"}),

		recomputeDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "recompute_duration_seconds",
			Help:        "Computed recomputation duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}),

		flushesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "flushes_total",
			Help:        "Total number of completed flushes",
			ConstLabels: config.ConstLabels,
		}),

		flushDeliveries: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "flush_deliveries",
			Help:        "Listener deliveries per flush",
			ConstLabels: config.ConstLabels,
			Buckets:     []float64{0, 1, 2, 5, 10, 25, 100, 500},
		}),

		flushEffects: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "flush_effects",
			Help:        "Effect runs per flush",
			ConstLabels: config.ConstLabels,
			Buckets:     []float64{0, 1, 2, 5, 10, 25, 100},
		}),

		asyncSettled: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "async_settled_total",
			Help:        "Total number of async fetch settlements, by outcome",
			ConstLabels: config.ConstLabels,
		}, []string{"outcome"}),
	}
}

// Prometheus builds a metrics observer and installs it as the runtime's
// global observer.
//
// Metrics collected:
//   - pulse_signals_created_total: Counter of signals by kind
//   - pulse_recomputes_total: Counter of recomputations by status
//   - pulse_recompute_duration_seconds: Histogram of recompute duration
//   - pulse_flushes_total: Counter of completed flushes
//   - pulse_flush_deliveries: Histogram of listener deliveries per flush
//   - pulse_flush_effects: Histogram of effect runs per flush
//   - pulse_async_settled_total: Counter of async settlements by outcome
//
// Example:
//
//	instrument.Prometheus(
//	    instrument.WithNamespace("myapp"),
//	)
//	http.Handle("/metrics", promhttp.Handler())
func Prometheus(opts ...MetricsOption) *Metrics {
	m := NewMetrics(opts...)
	pulse.SetObserver(m)
	return m
}

// SignalCreated implements pulse.Observer.
func (m *Metrics) SignalCreated(kind pulse.SignalKind, name string) {
	m.signalsCreated.WithLabelValues(kind.String()).Inc()
}

// Recomputed implements pulse.Observer.
func (m *Metrics) Recomputed(name string, d time.Duration, failed bool) {
	status := "success"
	if failed {
		status = "error"
	}
	m.recomputesTotal.WithLabelValues(status).Inc()
	m.recomputeDuration.Observe(d.Seconds())
}

// FlushCompleted implements pulse.Observer.
func (m *Metrics) FlushCompleted(delivered, effects int) {
	m.flushesTotal.Inc()
	m.flushDeliveries.Observe(float64(delivered))
	m.flushEffects.Observe(float64(effects))
}

// AsyncSettled implements pulse.Observer.
func (m *Metrics) AsyncSettled(name string, discarded bool) {
	outcome := "applied"
	if discarded {
		outcome = "discarded"
	}
	m.asyncSettled.WithLabelValues(outcome).Inc()
}

var _ pulse.Observer = (*Metrics)(nil)
