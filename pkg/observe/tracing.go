package observe

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/boardsync/pkg/protocol"
	"github.com/vango-dev/boardsync/pkg/realtime"
)

// Default tracer name for boardsync clients.
const defaultTracerName = "boardsync"

// TracingConfig configures OpenTelemetry tracing.
type TracingConfig struct {
	// TracerName is the name of the tracer (default: "boardsync").
	TracerName string

	// Provider supplies the tracer. Default: the global provider.
	Provider trace.TracerProvider

	// IncludeUserID adds the envelope's user id to dispatch spans.
	// May identify people; disabled by default.
	IncludeUserID bool

	// Filter decides which envelopes get a dispatch span. If nil, every
	// envelope except ping and pong is traced.
	Filter func(env protocol.Envelope) bool
}

// TracingOption configures Tracing.
type TracingOption func(*TracingConfig)

// WithTracerName sets the tracer name.
func WithTracerName(name string) TracingOption {
	return func(c *TracingConfig) {
		c.TracerName = name
	}
}

// WithTracerProvider sets the tracer provider.
func WithTracerProvider(tp trace.TracerProvider) TracingOption {
	return func(c *TracingConfig) {
		c.Provider = tp
	}
}

// WithIncludeUserID enables the user id attribute.
func WithIncludeUserID(include bool) TracingOption {
	return func(c *TracingConfig) {
		c.IncludeUserID = include
	}
}

// WithEnvelopeFilter sets the dispatch span filter.
func WithEnvelopeFilter(filter func(env protocol.Envelope) bool) TracingOption {
	return func(c *TracingConfig) {
		c.Filter = filter
	}
}

// Tracing creates spans for connection attempts and dispatched envelopes.
// It implements realtime.Instrumentation and dispatch.Observer.
//
// Configure the global provider before constructing it, or pass one with
// WithTracerProvider:
//
//	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
//	otel.SetTracerProvider(tp)
type Tracing struct {
	realtime.NopInstrumentation

	config TracingConfig
	tracer trace.Tracer
}

// NewTracing returns a Tracing using the configured provider.
func NewTracing(opts ...TracingOption) *Tracing {
	config := TracingConfig{TracerName: defaultTracerName}
	for _, opt := range opts {
		opt(&config)
	}
	if config.Provider == nil {
		config.Provider = otel.GetTracerProvider()
	}
	return &Tracing{
		config: config,
		tracer: config.Provider.Tracer(config.TracerName),
	}
}

// DialStarted opens a client span around one dial.
func (t *Tracing) DialStarted(ctx context.Context, attempt int) (context.Context, func(error)) {
	ctx, span := t.tracer.Start(ctx, "boardsync.connect",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.Int("boardsync.reconnect_attempt", attempt)),
	)
	return ctx, func(err error) {
		defer span.End()
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return
		}
		span.SetStatus(codes.Ok, "")
	}
}

// ObserveEnvelope records one span per dispatched envelope.
func (t *Tracing) ObserveEnvelope(env protocol.Envelope, handlers int) {
	if t.config.Filter != nil {
		if !t.config.Filter(env) {
			return
		}
	} else if env.Kind == protocol.KindPing || env.Kind == protocol.KindPong {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("boardsync.kind", env.Name()),
		attribute.Int("boardsync.handlers", handlers),
	}
	if env.SessionID != "" {
		attrs = append(attrs, attribute.String("boardsync.session_id", env.SessionID))
	}
	if t.config.IncludeUserID && env.UserID != nil {
		attrs = append(attrs, attribute.Int64("boardsync.user_id", int64(*env.UserID)))
	}

	kind := trace.SpanKindConsumer
	if env.Kind.Local() {
		kind = trace.SpanKindInternal
	}
	_, span := t.tracer.Start(context.Background(), fmt.Sprintf("boardsync.dispatch %s", env.Name()),
		trace.WithSpanKind(kind),
		trace.WithAttributes(attrs...),
	)
	if !env.Kind.Known() {
		span.SetStatus(codes.Error, "unknown kind")
	}
	span.End()
}
