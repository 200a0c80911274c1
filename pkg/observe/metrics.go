package observe

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/vango-dev/boardsync/pkg/protocol"
	"github.com/vango-dev/boardsync/pkg/realtime"
)

// MetricsConfig configures the Prometheus collectors.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "boardsync").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for dial duration.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// MetricsOption configures Metrics.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the dial duration buckets.
func WithBuckets(buckets []float64) MetricsOption {
	return func(c *MetricsConfig) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace: "boardsync",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Metrics records client activity as Prometheus metrics. It implements
// realtime.Instrumentation, dispatch.Observer and dispatch.PanicReporter.
//
// Metrics collected (with the default namespace):
//   - boardsync_connection_state: 1 for the current state, 0 otherwise
//   - boardsync_dials_total: dial attempts by result
//   - boardsync_dial_duration_seconds: dial latency
//   - boardsync_envelopes_sent_total / _sent_bytes_total: outbound traffic by kind
//   - boardsync_envelopes_dropped_total: unsent envelopes by kind and reason
//   - boardsync_frames_received_total / _received_bytes_total / _malformed_total
//   - boardsync_envelopes_dispatched_total / _unhandled_total: inbound by kind
//   - boardsync_handler_panics_total: recovered subscriber panics by kind
//   - boardsync_disconnects_total: closes by code
//   - boardsync_reconnects_scheduled_total, _reconnect_delay_seconds, _reconnects_exhausted_total
type Metrics struct {
	state               *prometheus.GaugeVec
	dialsTotal          *prometheus.CounterVec
	dialDuration        prometheus.Histogram
	sentTotal           *prometheus.CounterVec
	sentBytes           prometheus.Counter
	droppedTotal        *prometheus.CounterVec
	framesTotal         prometheus.Counter
	framesBytes         prometheus.Counter
	framesMalformed     prometheus.Counter
	dispatchedTotal     *prometheus.CounterVec
	unhandledTotal      *prometheus.CounterVec
	panicsTotal         *prometheus.CounterVec
	disconnectsTotal    *prometheus.CounterVec
	reconnectsScheduled prometheus.Counter
	reconnectDelay      prometheus.Histogram
	reconnectsExhausted prometheus.Counter
}

var allStates = []realtime.State{
	realtime.StateDisconnected,
	realtime.StateConnecting,
	realtime.StateConnected,
	realtime.StateReconnecting,
	realtime.StateClosing,
}

// NewMetrics registers the collectors and returns them. Registering twice
// against the same registry panics, as with promauto.
func NewMetrics(opts ...MetricsOption) *Metrics {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}
	factory := promauto.With(config.Registry)

	counter := func(name, help string) prometheus.Counter {
		return factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        name,
			Help:        help,
			ConstLabels: config.ConstLabels,
		})
	}
	counterVec := func(name, help string, labels ...string) *prometheus.CounterVec {
		return factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        name,
			Help:        help,
			ConstLabels: config.ConstLabels,
		}, labels)
	}

	m := &Metrics{
		state: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "connection_state",
			Help:        "Current connection state (1 for the active state)",
			ConstLabels: config.ConstLabels,
		}, []string{"state"}),

		dialsTotal: counterVec("dials_total", "Total dial attempts by result", "result"),

		dialDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "dial_duration_seconds",
			Help:        "Time to open the WebSocket including the handshake",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}),

		sentTotal:       counterVec("envelopes_sent_total", "Envelopes written to the socket by kind", "kind"),
		sentBytes:       counter("envelopes_sent_bytes_total", "Bytes written to the socket"),
		droppedTotal:    counterVec("envelopes_dropped_total", "Envelopes not sent by kind and reason", "kind", "reason"),
		framesTotal:     counter("frames_received_total", "Frames read from the socket"),
		framesBytes:     counter("frames_received_bytes_total", "Bytes read from the socket"),
		framesMalformed: counter("frames_malformed_total", "Inbound frames dropped as malformed"),

		dispatchedTotal: counterVec("envelopes_dispatched_total", "Envelopes dispatched to subscribers by kind", "kind"),
		unhandledTotal:  counterVec("envelopes_unhandled_total", "Dispatched envelopes no subscriber handled", "kind"),
		panicsTotal:     counterVec("handler_panics_total", "Recovered subscriber panics by kind", "kind"),

		disconnectsTotal:    counterVec("disconnects_total", "Connection closes by close code", "code"),
		reconnectsScheduled: counter("reconnects_scheduled_total", "Reconnect attempts scheduled"),

		reconnectDelay: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "reconnect_delay_seconds",
			Help:        "Backoff delay before each reconnect attempt",
			ConstLabels: config.ConstLabels,
			Buckets:     []float64{0.5, 1, 2, 4, 8, 16, 32, 64},
		}),

		reconnectsExhausted: counter("reconnects_exhausted_total", "Times the client gave up reconnecting"),
	}
	m.StateChanged(realtime.StateDisconnected, realtime.StateDisconnected)
	return m
}

// DialStarted times the dial and counts its result.
func (m *Metrics) DialStarted(ctx context.Context, _ int) (context.Context, func(error)) {
	start := time.Now()
	return ctx, func(err error) {
		m.dialDuration.Observe(time.Since(start).Seconds())
		m.dialsTotal.WithLabelValues(dialResult(err)).Inc()
	}
}

// dialResult maps a dial error to a low-cardinality label.
func dialResult(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, realtime.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, realtime.ErrConnectTimeout):
		return "timeout"
	case errors.Is(err, realtime.ErrClientClosed):
		return "cancelled"
	}
	var he *realtime.HandshakeError
	if errors.As(err, &he) {
		return "handshake"
	}
	return "network"
}

// StateChanged sets the state gauge.
func (m *Metrics) StateChanged(_, to realtime.State) {
	for _, s := range allStates {
		v := 0.0
		if s == to {
			v = 1
		}
		m.state.WithLabelValues(s.String()).Set(v)
	}
}

// EnvelopeSent counts an outbound envelope.
func (m *Metrics) EnvelopeSent(kind protocol.Kind, bytes int) {
	m.sentTotal.WithLabelValues(kind.String()).Inc()
	m.sentBytes.Add(float64(bytes))
}

// EnvelopeDropped counts an envelope that was not sent.
func (m *Metrics) EnvelopeDropped(kind protocol.Kind, reason string) {
	m.droppedTotal.WithLabelValues(kind.String(), reason).Inc()
}

// FrameReceived counts an inbound frame.
func (m *Metrics) FrameReceived(bytes int) {
	m.framesTotal.Inc()
	m.framesBytes.Add(float64(bytes))
}

// FrameMalformed counts a dropped inbound frame.
func (m *Metrics) FrameMalformed() { m.framesMalformed.Inc() }

// Disconnected counts a close by code.
func (m *Metrics) Disconnected(code int) {
	m.disconnectsTotal.WithLabelValues(strconv.Itoa(code)).Inc()
}

// ReconnectScheduled counts a scheduled reconnect and its delay.
func (m *Metrics) ReconnectScheduled(_ int, delay time.Duration) {
	m.reconnectsScheduled.Inc()
	m.reconnectDelay.Observe(delay.Seconds())
}

// ReconnectExhausted counts giving up.
func (m *Metrics) ReconnectExhausted() { m.reconnectsExhausted.Inc() }

// ObserveEnvelope counts a dispatched envelope. Unknown kinds are
// labelled "unknown" to keep cardinality bounded.
func (m *Metrics) ObserveEnvelope(env protocol.Envelope, handlers int) {
	kind := env.Kind.String()
	m.dispatchedTotal.WithLabelValues(kind).Inc()
	if handlers == 0 {
		m.unhandledTotal.WithLabelValues(kind).Inc()
	}
}

// HandlerPanicked counts a recovered subscriber panic.
func (m *Metrics) HandlerPanicked(kind protocol.Kind, _ any) {
	m.panicsTotal.WithLabelValues(kind.String()).Inc()
}
