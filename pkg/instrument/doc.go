// Package instrument provides observability for the pulse runtime.
//
// Two integrations are offered:
//
//   - Prometheus metrics via a pulse.Observer implementation. Install it
//     with instrument.Prometheus and expose the registry with promhttp.
//   - OpenTelemetry tracing via a Tracer that wraps batches and refreshes
//     in spans.
//
// Both integrations are optional and independent; the runtime pays no cost
// for them when they are not installed.
package instrument
