package observe

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/vango-dev/boardsync/pkg/dispatch"
	"github.com/vango-dev/boardsync/pkg/protocol"
	"github.com/vango-dev/boardsync/pkg/realtime"
)

var (
	_ realtime.Instrumentation = (*Metrics)(nil)
	_ dispatch.Observer        = (*Metrics)(nil)
	_ dispatch.PanicReporter   = (*Metrics)(nil)
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("counter Write() error: %v", err)
	}
	if m.Counter == nil {
		t.Fatal("expected counter metric to have Counter field")
	}
	return m.GetCounter().GetValue()
}

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var m dto.Metric
	if err := g.Write(&m); err != nil {
		t.Fatalf("gauge Write() error: %v", err)
	}
	return m.GetGauge().GetValue()
}

func histogramCount(t *testing.T, o prometheus.Observer) uint64 {
	t.Helper()
	metric, ok := o.(prometheus.Metric)
	if !ok {
		t.Fatalf("observer %T does not implement prometheus.Metric", o)
	}
	var m dto.Metric
	if err := metric.Write(&m); err != nil {
		t.Fatalf("histogram Write() error: %v", err)
	}
	return m.GetHistogram().GetSampleCount()
}

func newTestMetrics(t *testing.T) (*Metrics, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	return NewMetrics(WithRegistry(reg)), reg
}

func TestMetrics_StateGauge(t *testing.T) {
	m, _ := newTestMetrics(t)

	if got := gaugeValue(t, m.state.WithLabelValues("disconnected")); got != 1 {
		t.Fatalf("initial disconnected = %v, want 1", got)
	}

	m.StateChanged(realtime.StateConnecting, realtime.StateConnected)
	for _, s := range allStates {
		want := 0.0
		if s == realtime.StateConnected {
			want = 1
		}
		if got := gaugeValue(t, m.state.WithLabelValues(s.String())); got != want {
			t.Errorf("state %s = %v, want %v", s, got, want)
		}
	}
}

func TestMetrics_DialResults(t *testing.T) {
	m, _ := newTestMetrics(t)

	cases := []struct {
		err  error
		want string
	}{
		{nil, "success"},
		{&realtime.HandshakeError{StatusCode: 401, Err: realtime.ErrUnauthorized}, "unauthorized"},
		{fmt.Errorf("%w: i/o timeout", realtime.ErrConnectTimeout), "timeout"},
		{realtime.ErrClientClosed, "cancelled"},
		{&realtime.HandshakeError{StatusCode: 503, Err: errors.New("bad handshake")}, "handshake"},
		{errors.New("connection refused"), "network"},
	}
	for _, tc := range cases {
		_, end := m.DialStarted(context.Background(), 0)
		end(tc.err)
		if got := counterValue(t, m.dialsTotal.WithLabelValues(tc.want)); got != 1 {
			t.Errorf("dials_total{result=%q} = %v, want 1", tc.want, got)
		}
	}
	if got := histogramCount(t, m.dialDuration); got != uint64(len(cases)) {
		t.Fatalf("dial_duration samples = %d, want %d", got, len(cases))
	}
}

func TestMetrics_Traffic(t *testing.T) {
	m, _ := newTestMetrics(t)

	m.EnvelopeSent(protocol.KindCardMoved, 100)
	m.EnvelopeSent(protocol.KindCardMoved, 50)
	m.EnvelopeDropped(protocol.KindCursorUpdate, "not_connected")
	m.FrameReceived(30)
	m.FrameMalformed()
	m.Disconnected(1006)
	m.ReconnectScheduled(1, 2*time.Second)
	m.ReconnectExhausted()

	checks := []struct {
		name string
		c    prometheus.Counter
		want float64
	}{
		{"sent", m.sentTotal.WithLabelValues("card_moved"), 2},
		{"sent bytes", m.sentBytes, 150},
		{"dropped", m.droppedTotal.WithLabelValues("cursor_update", "not_connected"), 1},
		{"frames", m.framesTotal, 1},
		{"frame bytes", m.framesBytes, 30},
		{"malformed", m.framesMalformed, 1},
		{"disconnects", m.disconnectsTotal.WithLabelValues("1006"), 1},
		{"reconnects", m.reconnectsScheduled, 1},
		{"exhausted", m.reconnectsExhausted, 1},
	}
	for _, c := range checks {
		if got := counterValue(t, c.c); got != c.want {
			t.Errorf("%s = %v, want %v", c.name, got, c.want)
		}
	}
	if got := histogramCount(t, m.reconnectDelay); got != 1 {
		t.Fatalf("reconnect_delay samples = %d, want 1", got)
	}
}

func TestMetrics_ObservesRegistry(t *testing.T) {
	m, _ := newTestMetrics(t)
	reg := dispatch.New(
		dispatch.WithLogger(quietLogger()),
		dispatch.WithObserver(m),
		dispatch.WithPanicReporter(m),
	)
	reg.Subscribe(protocol.KindCardMoved, dispatch.Func(func(protocol.Envelope) { panic("boom") }))

	moved, _ := protocol.NewEnvelope(protocol.KindCardMoved, nil, time.Now())
	reg.Dispatch(moved)
	unknown, err := protocol.Decode([]byte(`{"kind":"future_kind","payload":{}}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	reg.Dispatch(unknown)

	if got := counterValue(t, m.dispatchedTotal.WithLabelValues("card_moved")); got != 1 {
		t.Errorf("dispatched card_moved = %v, want 1", got)
	}
	if got := counterValue(t, m.unhandledTotal.WithLabelValues("unknown")); got != 1 {
		t.Errorf("unhandled unknown = %v, want 1", got)
	}
	if got := counterValue(t, m.panicsTotal.WithLabelValues("card_moved")); got != 1 {
		t.Errorf("panics card_moved = %v, want 1", got)
	}
}

func TestMetrics_GatherUsesNamespace(t *testing.T) {
	m, reg := newTestMetrics(t)
	m.FrameMalformed()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	found := false
	for _, f := range families {
		if f.GetName() == "boardsync_frames_malformed_total" {
			found = true
		}
	}
	if !found {
		t.Fatal("boardsync_frames_malformed_total not gathered")
	}
}
