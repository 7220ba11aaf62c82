// Package telemetry wires OpenTelemetry tracing and metrics the way the
// teacher's internal/job_tracer/trace.go sets up its OTLP/HTTP exporters,
// generalized from one job tracer to the whole service and given a
// no-op fallback when no collector endpoint is configured.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	apimetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.20.0"
	"go.opentelemetry.io/otel/trace"
)

// Provider bundles a Tracer and a shutdown hook that flushes the
// exporters; the daemon never calls Shutdown. An empty collector
// endpoint yields tracing/metrics providers
// with no configured exporter (spans and metrics are simply dropped),
// rather than forcing the caller to branch on whether telemetry is on.
type Provider struct {
	tracer   trace.Tracer
	shutdown func(context.Context) error
}

// New sets the global tracer/meter providers. collector is an OTLP/HTTP
// endpoint host:port; an empty string disables export (spec: telemetry
// is an ambient concern, never load-bearing for correctness).
func New(ctx context.Context, serviceName, collector string) (*Provider, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion("1.0.0"),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry: building resource: %w", err)
	}

	if collector == "" {
		tp := sdktrace.NewTracerProvider(sdktrace.WithResource(res))
		otel.SetTracerProvider(tp)
		return &Provider{
			tracer:   otel.Tracer(serviceName),
			shutdown: tp.Shutdown,
		}, nil
	}

	traceExporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(collector),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry: creating OTLP trace exporter: %w", err)
	}

	metricExporter, err := otlpmetrichttp.New(ctx,
		otlpmetrichttp.WithEndpoint(collector),
		otlpmetrichttp.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry: creating OTLP metric exporter: %w", err)
	}

	meterProvider := metric.NewMeterProvider(
		metric.WithReader(metric.NewPeriodicReader(metricExporter)),
		metric.WithResource(res),
	)
	otel.SetMeterProvider(meterProvider)

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter,
			sdktrace.WithBatchTimeout(500*time.Millisecond),
			sdktrace.WithExportTimeout(2*time.Second),
			sdktrace.WithMaxQueueSize(2048),
		),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &Provider{
		tracer: otel.Tracer(serviceName),
		shutdown: func(ctx context.Context) error {
			if err := tp.Shutdown(ctx); err != nil {
				return err
			}
			return meterProvider.Shutdown(ctx)
		},
	}, nil
}

// Tracer returns the process-wide job tracer.
func (p *Provider) Tracer() trace.Tracer { return p.tracer }

// Shutdown flushes and closes any configured exporters.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.shutdown == nil {
		return nil
	}
	return p.shutdown(ctx)
}

// AggregateCounters mirrors the spec's process-wide counters record; a
// StatsSource (the service package's adapter over the scheduler and the
// session roster in production, a fake in tests) supplies the current
// values on each collection.
type AggregateCounters struct {
	TotalClients  uint64
	ActiveClients uint64
	TotalJobs     uint64
	ActiveJobs    uint64
	CompletedJobs uint64
	FailedJobs    uint64
	BytesReceived uint64
	BytesSent     uint64
}

// StatsSource is the read side telemetry needs. Neither scheduler.Scheduler
// nor session.Roster implements it; the service package's counters
// adapter combines the two so telemetry imports neither package.
type StatsSource interface {
	Counters() AggregateCounters
}

// RegisterCounters installs observable gauges on the global meter that
// report src's values on each collection cycle (spec §3: Aggregate
// counters). A no-op meter (disabled telemetry) simply never collects.
func (p *Provider) RegisterCounters(meterName string, src StatsSource) error {
	meter := otel.GetMeterProvider().Meter(meterName)

	totalClients, err := meter.Int64ObservableGauge("codeserver.clients.total")
	if err != nil {
		return err
	}
	activeClients, err := meter.Int64ObservableGauge("codeserver.clients.active")
	if err != nil {
		return err
	}
	totalJobs, err := meter.Int64ObservableGauge("codeserver.jobs.total")
	if err != nil {
		return err
	}
	activeJobs, err := meter.Int64ObservableGauge("codeserver.jobs.active")
	if err != nil {
		return err
	}
	completedJobs, err := meter.Int64ObservableGauge("codeserver.jobs.completed")
	if err != nil {
		return err
	}
	failedJobs, err := meter.Int64ObservableGauge("codeserver.jobs.failed")
	if err != nil {
		return err
	}
	bytesRecv, err := meter.Int64ObservableGauge("codeserver.bytes.received")
	if err != nil {
		return err
	}
	bytesSent, err := meter.Int64ObservableGauge("codeserver.bytes.sent")
	if err != nil {
		return err
	}

	_, err = meter.RegisterCallback(func(_ context.Context, o apimetric.Observer) error {
		c := src.Counters()
		o.ObserveInt64(totalClients, int64(c.TotalClients))
		o.ObserveInt64(activeClients, int64(c.ActiveClients))
		o.ObserveInt64(totalJobs, int64(c.TotalJobs))
		o.ObserveInt64(activeJobs, int64(c.ActiveJobs))
		o.ObserveInt64(completedJobs, int64(c.CompletedJobs))
		o.ObserveInt64(failedJobs, int64(c.FailedJobs))
		o.ObserveInt64(bytesRecv, int64(c.BytesReceived))
		o.ObserveInt64(bytesSent, int64(c.BytesSent))
		return nil
	}, totalClients, activeClients, totalJobs, activeJobs, completedJobs, failedJobs, bytesRecv, bytesSent)
	return err
}

// StartJobSpan opens a span around a job's compile/run lifecycle,
// tagging it with the fields an operator would want when correlating a
// trace back to a scheduler job (spec §3: Job).
func (p *Provider) StartJobSpan(ctx context.Context, jobID uint32, language string) (context.Context, trace.Span) {
	return p.tracer.Start(ctx, "job.execute",
		trace.WithAttributes(
			attribute.Int64("job.id", int64(jobID)),
			attribute.String("job.language", language),
		),
	)
}
