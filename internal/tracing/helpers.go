package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// StartDBSpan creates a new span for a database operation against the
// given table. Returns the new context and a function to end the span.
//
//	func (r *Repo) Get(ctx context.Context, id int) (_ *Row, err error) {
//		ctx, endSpan := tracing.StartDBSpan(ctx, "rows", "select")
//		defer func() { endSpan(err) }()
func StartDBSpan(ctx context.Context, table, operation string) (context.Context, func(error)) {
	tracer := otel.Tracer("tonequest/db")

	spanName := operation
	if table != "" {
		spanName = spanName + " " + table
	}

	ctx, span := tracer.Start(ctx, spanName,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.operation", operation),
		),
	)
	if table != "" {
		span.SetAttributes(attribute.String("db.sql.table", table))
	}

	return ctx, endFunc(span)
}

// StartOracleSpan creates a span for an embedding oracle call. End it
// the same way as StartDBSpan, with a closure over the named error.
func StartOracleSpan(ctx context.Context, textCount int) (context.Context, func(error)) {
	tracer := otel.Tracer("tonequest/oracle")

	ctx, span := tracer.Start(ctx, "embed",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.Int("oracle.text_count", textCount),
		),
	)
	return ctx, endFunc(span)
}

// StartSpan creates a new span for a general operation.
func StartSpan(ctx context.Context, name string) (context.Context, func(error)) {
	tracer := otel.Tracer("tonequest")
	ctx, span := tracer.Start(ctx, name)
	return ctx, endFunc(span)
}

// endFunc builds the span-ending closure shared by the Start helpers.
func endFunc(span trace.Span) func(error) {
	return func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}

// AddEvent adds an event to the current span.
func AddEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	span.AddEvent(name, trace.WithAttributes(attrs...))
}

// SetAttributes sets attributes on the current span.
func SetAttributes(ctx context.Context, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	span.SetAttributes(attrs...)
}
