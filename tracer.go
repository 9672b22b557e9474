package taskgraph

import "context"

// Tracer is the tracing abstraction the observer subpackage implements over
// OpenTelemetry. It is defined here, rather than in observer, so that core
// engine code could in principle emit spans without importing the OTEL SDK
// directly (observer is the only package that currently does).
type Tracer interface {
	Start(ctx context.Context, name string, attrs ...SpanAttr) (context.Context, Span)
}

// Span is a single traced operation, such as one task execution.
type Span interface {
	SetAttr(attrs ...SpanAttr)
	Event(name string, attrs ...SpanAttr)
	Error(err error)
	End()
}

// SpanAttr is a single tracing attribute key/value pair.
type SpanAttr struct {
	Key   string
	Value any
}

// StringAttr builds a string-valued SpanAttr.
func StringAttr(k, v string) SpanAttr { return SpanAttr{Key: k, Value: v} }

// IntAttr builds an int-valued SpanAttr.
func IntAttr(k string, v int) SpanAttr { return SpanAttr{Key: k, Value: v} }

// BoolAttr builds a bool-valued SpanAttr.
func BoolAttr(k string, v bool) SpanAttr { return SpanAttr{Key: k, Value: v} }

// Float64Attr builds a float64-valued SpanAttr.
func Float64Attr(k string, v float64) SpanAttr { return SpanAttr{Key: k, Value: v} }
