package observability

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
)

// OTelRecorder pushes counters to an OTLP collector over HTTP.
type OTelRecorder struct {
	provider    *sdkmetric.MeterProvider
	requests    metric.Int64Counter
	latency     metric.Float64Histogram
	errors      metric.Int64Counter
	transitions metric.Int64Counter
	sideEffects metric.Int64Counter
}

// NewOTelRecorder creates the exporter, meter provider and instruments.
func NewOTelRecorder(ctx context.Context, endpoint string, insecure bool, serviceName string) (*OTelRecorder, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("otel collector endpoint is required")
	}

	opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(endpoint)}
	if insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}
	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create OTLP exporter: %w", err)
	}

	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceNameKey.String(serviceName)))
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)),
	)
	meter := provider.Meter(serviceName)

	r := &OTelRecorder{provider: provider}
	if r.requests, err = meter.Int64Counter("alpi.http.requests"); err != nil {
		return nil, err
	}
	if r.latency, err = meter.Float64Histogram("alpi.http.request.duration", metric.WithUnit("s")); err != nil {
		return nil, err
	}
	if r.errors, err = meter.Int64Counter("alpi.http.errors"); err != nil {
		return nil, err
	}
	if r.transitions, err = meter.Int64Counter("alpi.ticket.transitions"); err != nil {
		return nil, err
	}
	if r.sideEffects, err = meter.Int64Counter("alpi.side_effect.failures"); err != nil {
		return nil, err
	}
	return r, nil
}

func (o *OTelRecorder) RecordRequest(path, method string, status int, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("path", path),
		attribute.String("method", method),
		attribute.String("status", strconv.Itoa(status)),
	)
	o.requests.Add(context.Background(), 1, attrs)
	o.latency.Record(context.Background(), duration.Seconds(), attrs)
}

func (o *OTelRecorder) RecordError(path, method, code string) {
	o.errors.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("path", path),
		attribute.String("method", method),
		attribute.String("code", code),
	))
}

func (o *OTelRecorder) RecordTransition(transition, outcome string) {
	o.transitions.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("transition", transition),
		attribute.String("outcome", outcome),
	))
}

func (o *OTelRecorder) RecordSideEffectFailure(kind string) {
	o.sideEffects.Add(context.Background(), 1, metric.WithAttributes(attribute.String("kind", kind)))
}

// Shutdown flushes pending metrics.
func (o *OTelRecorder) Shutdown(ctx context.Context) error {
	return o.provider.Shutdown(ctx)
}
