// Package telemetry implements the abstract spans/counters/histograms sink
// (component C1): schema-validated event emission enriched with run/
// operation context, dispatched to an OpenTelemetry backend. All emission
// paths are non-blocking and backend errors are swallowed after a single
// log line — telemetry must never fail the caller.
package telemetry

import (
	"context"
	"fmt"
	"log"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

type ctxKey struct{}

// scope is one entry of the LIFO operation-context stack bound to a
// context.Context. Nested scopes inherit enclosing fields unless overridden.
type scope struct {
	fields map[string]string
	parent *scope
}

// Sink is the process-wide telemetry backend. Construct one with New and
// share it by reference; it is safe for concurrent use.
type Sink struct {
	enabled  bool
	registry *Registry
	tracer   trace.Tracer
	meter    metric.Meter
	logger   *log.Logger

	mu            sync.Mutex
	warnedOnce    bool
	eventCounter  metric.Int64Counter
	phaseHisto    metric.Float64Histogram
}

// Option configures a Sink at construction time.
type Option func(*Sink)

// WithLogger overrides the structured-log-line destination.
func WithLogger(l *log.Logger) Option {
	return func(s *Sink) { s.logger = l }
}

// New builds a Sink. enabled mirrors HEPHAESTUS_TELEMETRY_ENABLED; when
// false every API below becomes a cheap no-op.
func New(enabled bool, tp trace.TracerProvider, mp metric.MeterProvider, opts ...Option) *Sink {
	s := &Sink{
		enabled:  enabled,
		registry: DefaultRegistry(),
		tracer:   tp.Tracer("hephaestus"),
		meter:    mp.Meter("hephaestus"),
		logger:   log.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if enabled {
		counter, err := s.meter.Int64Counter("hephaestus.telemetry.events",
			metric.WithDescription("count of emitted telemetry events by name"))
		if err == nil {
			s.eventCounter = counter
		}
		histo, err := s.meter.Float64Histogram("hephaestus.phase.duration",
			metric.WithDescription("per-phase duration in seconds"))
		if err == nil {
			s.phaseHisto = histo
		}
	}
	return s
}

// EnterScope pushes a new LIFO operation-context scope onto ctx, binding the
// given fields (merged over any enclosing scope's fields). The scope lives
// only on the returned context and ends when the caller stops using it;
// the returned func is a no-op kept for symmetric enter/exit call sites.
func (s *Sink) EnterScope(ctx context.Context, fields map[string]string) (context.Context, func()) {
	parent, _ := ctx.Value(ctxKey{}).(*scope)
	next := &scope{fields: fields, parent: parent}
	child := context.WithValue(ctx, ctxKey{}, next)
	return child, func() {}
}

func (s *Sink) currentFields(ctx context.Context) map[string]string {
	cur, _ := ctx.Value(ctxKey{}).(*scope)
	out := map[string]string{}
	chain := []*scope{}
	for n := cur; n != nil; n = n.parent {
		chain = append(chain, n)
	}
	for i := len(chain) - 1; i >= 0; i-- {
		for k, v := range chain[i].fields {
			out[k] = v
		}
	}
	return out
}

// Emit validates payload against the schema registered for name, enriches it
// with the current scope's run/operation fields, and dispatches to the span,
// counter, and structured log backends. A SchemaViolation is returned to the
// caller (the one case where emission can fail the operation, per spec
// §3); any other backend error is logged once and suppressed.
func (s *Sink) Emit(ctx context.Context, name string, severity Severity, message string, payload map[string]any) error {
	if err := s.registry.Validate(name, payload); err != nil {
		return err
	}
	if !s.enabled {
		return nil
	}

	fields := s.currentFields(ctx)

	_, span := s.tracer.Start(ctx, name)
	attrs := make([]attribute.KeyValue, 0, len(payload)+len(fields))
	for k, v := range fields {
		attrs = append(attrs, attribute.String(k, v))
	}
	for k, v := range payload {
		attrs = append(attrs, attribute.String(k, fmt.Sprintf("%v", v)))
	}
	span.SetAttributes(attrs...)
	span.End()

	s.safeCounterAdd(ctx, name)

	s.logger.Printf("[%s] %s run_id=%s operation_id=%s payload=%v",
		severity, message, fields["run_id"], fields["operation_id"], payload)
	return nil
}

func (s *Sink) safeCounterAdd(ctx context.Context, name string) {
	defer func() {
		if r := recover(); r != nil {
			s.warnOnce(fmt.Sprintf("telemetry backend panicked: %v", r))
		}
	}()
	if s.eventCounter != nil {
		s.eventCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("event", name)))
	}
}

// ObservePhase records a histogram sample for a named pipeline phase, e.g.
// "hephaestus.cleanup.preview.duration".
func (s *Sink) ObservePhase(ctx context.Context, phase string, seconds float64) {
	if !s.enabled || s.phaseHisto == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			s.warnOnce(fmt.Sprintf("telemetry histogram backend panicked: %v", r))
		}
	}()
	s.phaseHisto.Record(ctx, seconds, metric.WithAttributes(attribute.String("phase", phase)))
}

func (s *Sink) warnOnce(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.warnedOnce {
		return
	}
	s.warnedOnce = true
	s.logger.Printf("[warn] %s (further telemetry backend errors suppressed)", msg)
}
