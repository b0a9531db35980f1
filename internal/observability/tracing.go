package observability

import (
	"context"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"google.golang.org/grpc/stats"
)

// InitTracerProvider initializes OpenTelemetry tracing with stdout exporter
// and installs it as the global provider.
func InitTracerProvider(ctx context.Context, logger *zap.Logger) (*trace.TracerProvider, error) {
	// Create stdout exporter for development (swap to an OTLP exporter for production)
	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		logger.Error("failed to create trace exporter", zap.Error(err))
		return nil, err
	}

	tp := trace.NewTracerProvider(
		trace.WithBatcher(exporter),
	)
	otel.SetTracerProvider(tp)

	return tp, nil
}

// ShutdownTracerProvider gracefully shuts down the tracer provider
func ShutdownTracerProvider(ctx context.Context, tp *trace.TracerProvider, logger *zap.Logger) {
	if tp == nil {
		return
	}
	if err := tp.Shutdown(ctx); err != nil {
		logger.Error("failed to shutdown tracer provider", zap.Error(err))
	}
}

// GRPCStatsHandler returns the otelgrpc server handler bound to the global
// tracer provider.
func GRPCStatsHandler() stats.Handler {
	return otelgrpc.NewServerHandler(otelgrpc.WithTracerProvider(otel.GetTracerProvider()))
}
