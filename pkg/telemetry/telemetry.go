// Package telemetry wires the fabric's span tracing onto the real
// OpenTelemetry SDK: a TracerProvider exporting batched spans over
// OTLP/HTTP, or a no-op provider when tracing is disabled, so callers
// always have a Tracer to use regardless of configuration.
package telemetry

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	oteltrace "go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Compression selects the OTLP/HTTP payload compression.
type Compression string

const (
	CompressionNone Compression = "none"
	CompressionGzip Compression = "gzip"
)

// Config configures a Provider. An empty Endpoint disables export
// entirely — Span still works, but every span is discarded.
type Config struct {
	ServiceName string
	Endpoint    string // OTLP/HTTP collector root, without "/v1/traces"

	Username string // basic auth; both empty means no auth
	Password string

	BatchTimeout       time.Duration // 0 uses the SDK's default batching
	MaxExportBatchSize int           // 0 uses the SDK's default (512)
	Compression        Compression
}

// Provider owns the fabric's tracer and its export pipeline.
type Provider struct {
	tp     *sdktrace.TracerProvider // nil when tracing is disabled
	tracer oteltrace.Tracer
}

// New builds a Provider from cfg. When cfg.Endpoint is empty, it
// returns a Provider backed by the OpenTelemetry no-op tracer: every
// Span call still works, but nothing is ever exported or allocated for
// export, mirroring the upstream's noexport_span escape hatch.
func New(ctx context.Context, cfg Config) (*Provider, error) {
	if cfg.Endpoint == "" {
		return &Provider{tracer: noop.NewTracerProvider().Tracer(cfg.ServiceName)}, nil
	}

	opts := []otlptracehttp.Option{
		otlptracehttp.WithEndpointURL(cfg.Endpoint),
	}
	if cfg.Compression == CompressionGzip {
		opts = append(opts, otlptracehttp.WithCompression(otlptracehttp.GzipCompression))
	}
	if cfg.Username != "" || cfg.Password != "" {
		opts = append(opts, otlptracehttp.WithHeaders(map[string]string{
			"Authorization": basicAuthHeader(cfg.Username, cfg.Password),
		}))
	}

	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("telemetry: building OTLP exporter: %w", err)
	}

	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceName(cfg.ServiceName),
	))
	if err != nil {
		return nil, fmt.Errorf("telemetry: building resource: %w", err)
	}

	batchOpts := []sdktrace.BatchSpanProcessorOption{}
	if cfg.BatchTimeout > 0 {
		batchOpts = append(batchOpts, sdktrace.WithBatchTimeout(cfg.BatchTimeout))
	}
	if cfg.MaxExportBatchSize > 0 {
		batchOpts = append(batchOpts, sdktrace.WithMaxExportBatchSize(cfg.MaxExportBatchSize))
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter, batchOpts...),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	return &Provider{tp: tp, tracer: tp.Tracer(cfg.ServiceName)}, nil
}

// Span starts a new span named name, as a child of any span already
// present in ctx. Callers must call the returned end func (typically
// via defer) once the work the span covers has completed.
func (p *Provider) Span(ctx context.Context, name string, kind oteltrace.SpanKind, attrs ...attribute.KeyValue) (context.Context, func()) {
	ctx, span := p.tracer.Start(ctx, name,
		oteltrace.WithSpanKind(kind),
		oteltrace.WithAttributes(attrs...),
	)
	return ctx, span.End
}

// Shutdown flushes and stops the export pipeline. It is a no-op when
// tracing is disabled.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.tp == nil {
		return nil
	}
	return p.tp.Shutdown(ctx)
}

func basicAuthHeader(username, password string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(username+":"+password))
}
