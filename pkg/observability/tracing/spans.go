// Package tracing provides OpenTelemetry spans for store and counter operations.
package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// SpanOperation represents a traced operation type.
type SpanOperation string

const (
	SpanOperationDBQuery     SpanOperation = "db.query"
	SpanOperationDBInsert    SpanOperation = "db.insert"
	SpanOperationDBUpdate    SpanOperation = "db.update"
	SpanOperationDBDelete    SpanOperation = "db.delete"
	SpanOperationDBAggregate SpanOperation = "db.aggregate"

	SpanOperationCounterIncrement SpanOperation = "counter.increment"
)

// StartDatabaseSpan starts a client span for a document store operation.
func StartDatabaseSpan(ctx context.Context, operation SpanOperation, opts ...DatabaseSpanOption) (context.Context, trace.Span) {
	tracer := otel.Tracer("database")

	spanOpts := &databaseSpanOptions{
		attributes: []attribute.KeyValue{
			attribute.String("db.operation", string(operation)),
		},
	}
	for _, opt := range opts {
		opt(spanOpts)
	}

	spanName := fmt.Sprintf("DB %s", operation)
	if spanOpts.collection != "" {
		spanName = fmt.Sprintf("DB %s %s", operation, spanOpts.collection)
	}

	ctx, span := tracer.Start(ctx, spanName, trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(spanOpts.attributes...)
	return ctx, span
}

// DatabaseSpanOption configures a database span.
type DatabaseSpanOption func(*databaseSpanOptions)

type databaseSpanOptions struct {
	collection string
	attributes []attribute.KeyValue
}

// WithDBCollection sets the collection the operation targets.
func WithDBCollection(collection string) DatabaseSpanOption {
	return func(opts *databaseSpanOptions) {
		opts.collection = collection
		opts.attributes = append(opts.attributes, attribute.String("db.mongodb.collection", collection))
	}
}

// WithDBSystem sets the database system, e.g. "mongodb".
func WithDBSystem(system string) DatabaseSpanOption {
	return func(opts *databaseSpanOptions) {
		opts.attributes = append(opts.attributes, attribute.String("db.system", system))
	}
}

// WithDBStatement sets a printable form of the query, e.g. the filter expression.
func WithDBStatement(statement string) DatabaseSpanOption {
	return func(opts *databaseSpanOptions) {
		opts.attributes = append(opts.attributes, attribute.String("db.statement", statement))
	}
}

// WithDBMethod records the repository method that issued the operation.
func WithDBMethod(method string) DatabaseSpanOption {
	return func(opts *databaseSpanOptions) {
		opts.attributes = append(opts.attributes, attribute.String("db.method", method))
	}
}

// StartCounterSpan starts a span for an identifier counter operation.
func StartCounterSpan(ctx context.Context, backend, counter string) (context.Context, trace.Span) {
	tracer := otel.Tracer("identifier")
	ctx, span := tracer.Start(ctx,
		fmt.Sprintf("COUNTER %s %s", SpanOperationCounterIncrement, counter),
		trace.WithSpanKind(trace.SpanKindClient),
	)
	span.SetAttributes(
		attribute.String("counter.backend", backend),
		attribute.String("counter.name", counter),
	)
	return ctx, span
}

// RecordError records err on span and marks it failed.
func RecordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// RecordSuccess marks span as successful.
func RecordSuccess(span trace.Span) {
	span.SetStatus(codes.Ok, "")
}
