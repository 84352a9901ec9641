package bootstrap

import (
	"context"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
)

const tracerName = "balgil/bootstrap"

// logSpanProcessor writes finished spans to the debug log
type logSpanProcessor struct {
	logger *zap.SugaredLogger
}

func (p logSpanProcessor) OnStart(context.Context, sdktrace.ReadWriteSpan) {}

func (p logSpanProcessor) OnEnd(s sdktrace.ReadOnlySpan) {
	fields := []interface{}{
		"span", s.Name(),
		"duration", s.EndTime().Sub(s.StartTime()),
		"status", s.Status().Code.String(),
	}
	for _, attr := range s.Attributes() {
		fields = append(fields, string(attr.Key), attr.Value.Emit())
	}
	p.logger.Debugw("Span finished", fields...)
}

func (p logSpanProcessor) Shutdown(context.Context) error   { return nil }
func (p logSpanProcessor) ForceFlush(context.Context) error { return nil }

// NewTracerProvider returns a provider that logs bootstrap spans at debug
// level. Callers shut it down with the app.
func NewTracerProvider(logger *zap.SugaredLogger) *sdktrace.TracerProvider {
	return sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(logSpanProcessor{logger: logger}),
	)
}
