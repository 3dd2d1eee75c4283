package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/Patchlock-Labs/patchlock/core/pkg/gate"

// GateInstruments holds the tracer and counters for gate decisions.
type GateInstruments struct {
	tracer    trace.Tracer
	decisions metric.Int64Counter
	latency   metric.Float64Histogram
}

// NewGateInstruments creates instruments against the global providers.
func NewGateInstruments() (*GateInstruments, error) {
	meter := otel.Meter(instrumentationName)

	decisions, err := meter.Int64Counter("patchlock.gate.decisions",
		metric.WithDescription("Gated operation decisions by outcome and reason"))
	if err != nil {
		return nil, fmt.Errorf("observability: decisions counter: %w", err)
	}
	latency, err := meter.Float64Histogram("patchlock.gate.decision_ms",
		metric.WithDescription("Gate decision latency in milliseconds"),
		metric.WithUnit("ms"))
	if err != nil {
		return nil, fmt.Errorf("observability: latency histogram: %w", err)
	}

	return &GateInstruments{
		tracer:    otel.Tracer(instrumentationName),
		decisions: decisions,
		latency:   latency,
	}, nil
}

// StartSpan opens a span around one gate evaluation.
func (g *GateInstruments) StartSpan(ctx context.Context, operation string) (context.Context, trace.Span) {
	if g == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return g.tracer.Start(ctx, "gate.execute_if_approved",
		trace.WithAttributes(attribute.String("gate.operation", operation)))
}

// RecordDecision records one decision outcome. Safe on a nil receiver so the
// gate works without instrumentation wired.
func (g *GateInstruments) RecordDecision(ctx context.Context, operation, reason string, allowed bool, elapsedMS float64) {
	if g == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("gate.operation", operation),
		attribute.Bool("gate.allowed", allowed),
		attribute.String("gate.reason", reason),
	)
	g.decisions.Add(ctx, 1, attrs)
	g.latency.Record(ctx, elapsedMS, attrs)
}
