// Package observer provides OTEL-based observability for taskgraph
// workflows.
//
// It subscribes to a Workflow's NotificationBus and emits spans, counters,
// and a duration histogram for task lifecycle events. Init also installs an
// OTLP log provider and Instruments carries a Logger, but Attach writes no
// log records. A workflow with no observer
// attached pays zero OTEL overhead: the bus simply has no subscriber for
// that source.
package observer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	taskgraph "github.com/nevindra/taskgraph"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	tglog "go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const scopeName = "github.com/nevindra/taskgraph/observer"

// Instruments holds all OTEL instruments the observer emits.
type Instruments struct {
	Tracer trace.Tracer
	Meter  metric.Meter
	Logger tglog.Logger

	TaskStarted   metric.Int64Counter
	TaskFinished  metric.Int64Counter
	TaskFailed    metric.Int64Counter
	TaskCancelled metric.Int64Counter
	TaskDuration  metric.Float64Histogram
}

// Init sets up OTEL trace, metric, and log providers with OTLP HTTP
// exporters. Configuration comes from standard OTEL env vars
// (OTEL_EXPORTER_OTLP_ENDPOINT, etc). Returns a shutdown function that must
// be called on application exit.
func Init(ctx context.Context) (*Instruments, func(context.Context) error, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceName("taskgraph")),
		resource.WithFromEnv(),
	)
	if err != nil {
		return nil, nil, err
	}

	traceExp, err := otlptracehttp.New(ctx)
	if err != nil {
		return nil, nil, err
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	metricExp, err := otlpmetrichttp.New(ctx)
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, nil, err
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExp)),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)

	logExp, err := otlploghttp.New(ctx)
	if err != nil {
		_ = tp.Shutdown(ctx)
		_ = mp.Shutdown(ctx)
		return nil, nil, err
	}
	lp := sdklog.NewLoggerProvider(
		sdklog.WithProcessor(sdklog.NewBatchProcessor(logExp)),
		sdklog.WithResource(res),
	)
	global.SetLoggerProvider(lp)

	inst, err := newInstruments()
	if err != nil {
		_ = tp.Shutdown(ctx)
		_ = mp.Shutdown(ctx)
		_ = lp.Shutdown(ctx)
		return nil, nil, err
	}

	shutdown := func(ctx context.Context) error {
		return errors.Join(
			tp.Shutdown(ctx),
			mp.Shutdown(ctx),
			lp.Shutdown(ctx),
		)
	}

	return inst, shutdown, nil
}

func newInstruments() (*Instruments, error) {
	tracer := otel.Tracer(scopeName)
	meter := otel.Meter(scopeName)
	logger := global.GetLoggerProvider().Logger(scopeName)

	taskStarted, err := meter.Int64Counter("task.started",
		metric.WithDescription("Task execution starts"),
		metric.WithUnit("{task}"))
	if err != nil {
		return nil, err
	}

	taskFinished, err := meter.Int64Counter("task.finished",
		metric.WithDescription("Tasks that reached Finished"),
		metric.WithUnit("{task}"))
	if err != nil {
		return nil, err
	}

	taskFailed, err := meter.Int64Counter("task.failed",
		metric.WithDescription("Tasks that reached Failed"),
		metric.WithUnit("{task}"))
	if err != nil {
		return nil, err
	}

	taskCancelled, err := meter.Int64Counter("task.cancelled",
		metric.WithDescription("Tasks that reached Cancelled"),
		metric.WithUnit("{task}"))
	if err != nil {
		return nil, err
	}

	taskDuration, err := meter.Float64Histogram("task.duration",
		metric.WithDescription("Task execution duration"),
		metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}

	return &Instruments{
		Tracer:        tracer,
		Meter:         meter,
		Logger:        logger,
		TaskStarted:   taskStarted,
		TaskFinished:  taskFinished,
		TaskFailed:    taskFailed,
		TaskCancelled: taskCancelled,
		TaskDuration:  taskDuration,
	}, nil
}

// spanState tracks the in-flight span and start time for one task execution,
// so the DidFinish/DidFail/DidCancel handler can close it and record a
// duration.
type spanState struct {
	span  taskgraph.Span
	start time.Time
}

// Attach subscribes inst to every task currently in w, emitting one span per
// task execution (opened at TaskDidStart, closed at TaskDidFinish/
// TaskDidFail/TaskDidCancel) plus the started/finished/failed/cancelled
// counters and the duration histogram. Call Attach after all tasks have been
// added to w but before Start.
func Attach(ctx context.Context, w *taskgraph.Workflow, inst *Instruments) {
	tracer := NewTracer()
	var mu sync.Mutex
	states := make(map[*taskgraph.Task]*spanState)

	for _, t := range w.AllTasks() {
		t := t
		w.Bus().Subscribe(t, taskgraph.EventTaskDidStart, func(taskgraph.Notification) {
			_, span := tracer.Start(ctx, "task.execute",
				taskgraph.StringAttr(string(AttrTaskID), t.ID()),
				taskgraph.StringAttr(string(AttrTaskName), t.Name()),
				taskgraph.StringAttr(string(AttrWorkflowID), w.ID()),
				taskgraph.StringAttr(string(AttrWorkflowName), w.Name()),
			)
			mu.Lock()
			states[t] = &spanState{span: span, start: time.Now()}
			mu.Unlock()
			inst.TaskStarted.Add(ctx, 1)
		})
		w.Bus().Subscribe(t, taskgraph.EventTaskDidFinish, func(taskgraph.Notification) {
			finishSpan(ctx, inst, &mu, states, t, "finished", nil, inst.TaskFinished)
		})
		w.Bus().Subscribe(t, taskgraph.EventTaskDidFail, func(taskgraph.Notification) {
			err, _ := t.Err()
			finishSpan(ctx, inst, &mu, states, t, "failed", err, inst.TaskFailed)
		})
		w.Bus().Subscribe(t, taskgraph.EventTaskDidCancel, func(taskgraph.Notification) {
			finishSpan(ctx, inst, &mu, states, t, "cancelled", nil, inst.TaskCancelled)
		})
	}
}

// finishSpan closes the span opened for t's current execution, stamping it
// with the task's final lifecycle state (and, on failure, the error that
// ended it) before recording the duration and bumping counter.
func finishSpan(ctx context.Context, inst *Instruments, mu *sync.Mutex, states map[*taskgraph.Task]*spanState, t *taskgraph.Task, state string, err error, counter metric.Int64Counter) {
	mu.Lock()
	st, ok := states[t]
	if ok {
		delete(states, t)
	}
	mu.Unlock()
	if !ok {
		return
	}
	st.span.SetAttr(taskgraph.StringAttr(string(AttrTaskState), state))
	if err != nil {
		st.span.SetAttr(taskgraph.StringAttr(string(AttrTaskError), err.Error()))
		st.span.Error(err)
	}
	st.span.End()
	inst.TaskDuration.Record(ctx, float64(time.Since(st.start).Milliseconds()))
	counter.Add(ctx, 1)
}

// taskAttrKeys maps the string form of this package's declared attribute
// keys back to their typed attribute.Key, so toOTELAttr can build typed
// attribute.KeyValue pairs (attribute.Key.String/.Int/...) for the
// task-graph-specific attribute set instead of falling back to
// attribute.String(name, v) for every key, known or not.
var taskAttrKeys = map[string]attribute.Key{
	string(AttrTaskID):       AttrTaskID,
	string(AttrTaskName):     AttrTaskName,
	string(AttrTaskState):    AttrTaskState,
	string(AttrWorkflowID):   AttrWorkflowID,
	string(AttrWorkflowName): AttrWorkflowName,
	string(AttrTaskError):    AttrTaskError,
}

// otelTracer implements taskgraph.Tracer using OpenTelemetry.
type otelTracer struct {
	inner trace.Tracer
}

// NewTracer returns a taskgraph.Tracer backed by the global OTEL TracerProvider.
// Call observer.Init() first to configure the provider; otherwise spans go to
// a no-op backend.
func NewTracer() taskgraph.Tracer {
	return &otelTracer{inner: otel.Tracer(scopeName)}
}

func (t *otelTracer) Start(ctx context.Context, name string, attrs ...taskgraph.SpanAttr) (context.Context, taskgraph.Span) {
	ctx, span := t.inner.Start(ctx, name, trace.WithAttributes(toOTELAttrs(attrs)...))
	return ctx, &otelSpan{inner: span}
}

// otelSpan implements taskgraph.Span using an OTEL trace.Span.
type otelSpan struct {
	inner trace.Span
}

func (s *otelSpan) SetAttr(attrs ...taskgraph.SpanAttr) {
	s.inner.SetAttributes(toOTELAttrs(attrs)...)
}

func (s *otelSpan) Event(name string, attrs ...taskgraph.SpanAttr) {
	s.inner.AddEvent(name, trace.WithAttributes(toOTELAttrs(attrs)...))
}

func (s *otelSpan) Error(err error) {
	s.inner.RecordError(err)
	s.inner.SetStatus(codes.Error, err.Error())
}

func (s *otelSpan) End() {
	s.inner.End()
}

func toOTELAttrs(attrs []taskgraph.SpanAttr) []attribute.KeyValue {
	kvs := make([]attribute.KeyValue, len(attrs))
	for i, a := range attrs {
		kvs[i] = toOTELAttr(a)
	}
	return kvs
}

// toOTELAttr converts a taskgraph.SpanAttr to an OTEL attribute.KeyValue,
// using the typed key from taskAttrKeys when a.Key names one of this
// package's declared attributes, and a generic attribute.Key otherwise.
func toOTELAttr(a taskgraph.SpanAttr) attribute.KeyValue {
	key, ok := taskAttrKeys[a.Key]
	if !ok {
		key = attribute.Key(a.Key)
	}
	switch v := a.Value.(type) {
	case string:
		return key.String(v)
	case int:
		return key.Int(v)
	case int64:
		return key.Int64(v)
	case float64:
		return key.Float64(v)
	case bool:
		return key.Bool(v)
	default:
		return key.String(fmt.Sprintf("%v", v))
	}
}

// compile-time checks
var (
	_ taskgraph.Tracer = (*otelTracer)(nil)
	_ taskgraph.Span   = (*otelSpan)(nil)
)
