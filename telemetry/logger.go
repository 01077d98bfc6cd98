package telemetry

import (
	"context"
	"os"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OTELHook adds trace and span IDs to every log entry.
type OTELHook struct{}

func (h OTELHook) Run(e *zerolog.Event, level zerolog.Level, msg string) {
	ctx := e.GetCtx()
	if ctx == nil {
		return
	}

	span := trace.SpanFromContext(ctx)
	if !span.SpanContext().IsValid() {
		return
	}

	e.Str("trace_id", span.SpanContext().TraceID().String())
	e.Str("span_id", span.SpanContext().SpanID().String())

	if level == zerolog.ErrorLevel {
		span.SetStatus(codes.Error, msg)
	}
}

// Logger wraps zerolog with OTEL integration.
type Logger struct {
	zerolog.Logger
}

// NewLogger creates a new logger with OTEL hooks.
func NewLogger(service string) *Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs

	logger := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", service).
		Logger().
		Hook(OTELHook{})

	return &Logger{Logger: logger}
}

// WithContext returns a logger with context (for trace propagation).
func (l *Logger) WithContext(ctx context.Context) *zerolog.Logger {
	logger := l.Logger.With().Ctx(ctx).Logger()
	return &logger
}

// LogUnitFailure logs a failed (service, region) collection unit.
func (l *Logger) LogUnitFailure(ctx context.Context, resourceType, region string, err error) {
	l.WithContext(ctx).Warn().
		Err(err).
		Str("resource_type", resourceType).
		Str("region", region).
		Msg("collection unit failed")
}

// LogBatchOperation logs a persistence batch.
func (l *Logger) LogBatchOperation(ctx context.Context, operation string, batchSize int) {
	l.WithContext(ctx).Info().
		Str("operation", operation).
		Int("batch_size", batchSize).
		Msg("processing batch")
}

// LogEviction logs a metric-retention sweep.
func (l *Logger) LogEviction(ctx context.Context, account string, deleted int, durationMs float64) {
	l.WithContext(ctx).Info().
		Str("aws_account_id", account).
		Int("deleted_points", deleted).
		Float64("duration_ms", durationMs).
		Str("operation", "eviction").
		Msg("metric eviction sweep completed")
}

// LogStorageError logs a failed storage operation.
func (l *Logger) LogStorageError(ctx context.Context, operation string, err error) {
	l.WithContext(ctx).Error().
		Err(err).
		Str("operation", operation).
		Msg("storage operation failed")
}
