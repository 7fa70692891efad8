package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Tracer returns a tracer for the given name
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}

// StartSpan starts a new span from context
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return otel.Tracer(instrumentationName).Start(ctx, name, opts...)
}

// StartServiceSpan starts a span for service operations
func StartServiceSpan(ctx context.Context, service, operation string) (context.Context, trace.Span) {
	return StartSpan(ctx, fmt.Sprintf("%s.%s", service, operation),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("service.component", service),
			attribute.String("service.operation", operation),
		),
	)
}

// StartRemoteSpan starts a span for a call to the remote system
func StartRemoteSpan(ctx context.Context, method, path string) (context.Context, trace.Span) {
	return StartSpan(ctx, fmt.Sprintf("remote %s %s", method, path),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", method),
			attribute.String("http.target", path),
			attribute.String("peer.service", "remote-resource-management"),
		),
	)
}

// RecordError records an error on the span
func RecordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// SetSuccess marks the span as successful
func SetSuccess(span trace.Span) {
	span.SetStatus(codes.Ok, "")
}

// AddEvent adds an event to the span
func AddEvent(span trace.Span, name string, attrs ...attribute.KeyValue) {
	span.AddEvent(name, trace.WithAttributes(attrs...))
}

// SyncMetrics holds sync engine metrics
type SyncMetrics struct {
	runCount      metric.Int64Counter
	unitCount     metric.Int64Counter
	unitsPerRun   metric.Int64Histogram
	failuresByRun metric.Int64Histogram
}

// NewSyncMetrics creates sync metrics instruments
func NewSyncMetrics() (*SyncMetrics, error) {
	meter := otel.Meter(instrumentationName)

	runCount, err := meter.Int64Counter(
		"timesync.run.count",
		metric.WithDescription("Total number of sync runs by terminal status"),
		metric.WithUnit("{runs}"),
	)
	if err != nil {
		return nil, err
	}

	unitCount, err := meter.Int64Counter(
		"timesync.unit.count",
		metric.WithDescription("Total number of processed sync units by action and outcome"),
		metric.WithUnit("{units}"),
	)
	if err != nil {
		return nil, err
	}

	unitsPerRun, err := meter.Int64Histogram(
		"timesync.run.units",
		metric.WithDescription("Units attempted per run"),
		metric.WithUnit("{units}"),
	)
	if err != nil {
		return nil, err
	}

	failuresPerRun, err := meter.Int64Histogram(
		"timesync.run.failures",
		metric.WithDescription("Units failed per run"),
		metric.WithUnit("{units}"),
	)
	if err != nil {
		return nil, err
	}

	return &SyncMetrics{
		runCount:      runCount,
		unitCount:     unitCount,
		unitsPerRun:   unitsPerRun,
		failuresByRun: failuresPerRun,
	}, nil
}

// RecordRun records a finished sync run
func (m *SyncMetrics) RecordRun(ctx context.Context, status string, attempted, failed int) {
	attrs := []attribute.KeyValue{
		attribute.String("run.status", status),
	}
	m.runCount.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.unitsPerRun.Record(ctx, int64(attempted), metric.WithAttributes(attrs...))
	m.failuresByRun.Record(ctx, int64(failed), metric.WithAttributes(attrs...))
}

// RecordUnit records one processed sync unit
func (m *SyncMetrics) RecordUnit(ctx context.Context, action, outcome string) {
	attrs := []attribute.KeyValue{
		attribute.String("unit.action", action),
		attribute.String("unit.outcome", outcome),
	}
	m.unitCount.Add(ctx, 1, metric.WithAttributes(attrs...))
}
