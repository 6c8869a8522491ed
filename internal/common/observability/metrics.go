package observability

import (
	"context"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
)

// Observability owns the OTel meter provider and the service-level
// evaluation instruments. Subsystem counters live in common/metrics and
// are registered directly with Prometheus; both surface through the same
// /metrics endpoint.
type Observability struct {
	meterProvider *metric.MeterProvider
	meter         otelmetric.Meter
	evalCounter   otelmetric.Int64Counter
	evalDuration  otelmetric.Float64Histogram
}

func New(serviceName string) *Observability {
	exporter, err := prometheus.New()
	if err != nil {
		log.Printf("Failed to create Prometheus exporter: %v", err)
		return &Observability{}
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter(serviceName)

	evalCounter, _ := meter.Int64Counter(
		"evaluations.processed",
		otelmetric.WithDescription("Number of loan evaluations processed"),
	)

	evalDuration, _ := meter.Float64Histogram(
		"evaluations.duration",
		otelmetric.WithDescription("End-to-end loan evaluation duration"),
		otelmetric.WithUnit("ms"),
	)

	return &Observability{
		meterProvider: provider,
		meter:         meter,
		evalCounter:   evalCounter,
		evalDuration:  evalDuration,
	}
}

func (o *Observability) RecordEvaluation(ctx context.Context, decision string) {
	if o.evalCounter != nil {
		o.evalCounter.Add(ctx, 1, otelmetric.WithAttributes(
			attribute.String("decision", decision),
		))
	}
}

func (o *Observability) RecordEvaluationDuration(ctx context.Context, duration time.Duration, decision string) {
	if o.evalDuration != nil {
		o.evalDuration.Record(ctx, float64(duration.Milliseconds()), otelmetric.WithAttributes(
			attribute.String("decision", decision),
		))
	}
}

func (o *Observability) Shutdown() {
	if o.meterProvider != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		o.meterProvider.Shutdown(ctx)
	}
}
