package observability

import (
	"context"
	"fmt"
	"io"

	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// tracerName identifies aoirun spans.
const tracerName = "github.com/gazemetrics/aoirun"

// SetupTracing builds a tracer writing spans to w. The returned shutdown
// function flushes pending spans and must be called before exit. When
// enabled is false a no-op tracer is returned and shutdown does nothing.
func SetupTracing(w io.Writer, enabled bool) (trace.Tracer, func(context.Context) error, error) {
	if !enabled {
		return noop.NewTracerProvider().Tracer(tracerName), func(context.Context) error { return nil }, nil
	}

	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		return nil, nil, fmt.Errorf("create trace exporter: %w", err)
	}

	provider := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))

	return provider.Tracer(tracerName), provider.Shutdown, nil
}
