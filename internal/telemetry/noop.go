package telemetry

import (
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// NewDisabled builds a Sink backed by no-op OTel providers. Used when
// HEPHAESTUS_TELEMETRY_ENABLED is false, or in tests that don't care about
// telemetry wiring.
func NewDisabled() *Sink {
	return New(false, tracenoop.NewTracerProvider(), metricnoop.NewMeterProvider())
}
