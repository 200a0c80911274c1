package realtime

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vango-dev/boardsync/internal/clock"
	"github.com/vango-dev/boardsync/pkg/protocol"
)

const testToken = "secret"

var epoch = time.Date(2026, time.January, 2, 15, 4, 5, 0, time.UTC)

// peer is an in-process collaboration server.
type peer struct {
	srv *httptest.Server

	status atomic.Int32 // non-zero rejects the upgrade with this status
	dials  atomic.Int32
	hold   chan struct{}

	mu     sync.Mutex
	tokens []string

	conns  chan *websocket.Conn
	recv   chan protocol.Envelope
	closes chan *websocket.CloseError
}

func newPeer(t *testing.T) *peer {
	t.Helper()
	p := &peer{
		conns:  make(chan *websocket.Conn, 16),
		recv:   make(chan protocol.Envelope, 64),
		closes: make(chan *websocket.CloseError, 16),
	}
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

	p.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p.dials.Add(1)
		p.mu.Lock()
		p.tokens = append(p.tokens, r.URL.Query().Get("token"))
		hold := p.hold
		p.mu.Unlock()
		if hold != nil {
			<-hold
		}
		if status := p.status.Load(); status != 0 {
			http.Error(w, http.StatusText(int(status)), int(status))
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		p.conns <- conn
		go func() {
			for {
				_, data, err := conn.ReadMessage()
				if err != nil {
					var ce *websocket.CloseError
					if errors.As(err, &ce) {
						p.closes <- ce
					}
					return
				}
				env, err := protocol.Decode(data)
				if err != nil {
					continue
				}
				p.recv <- env
			}
		}()
	}))
	t.Cleanup(p.srv.Close)
	return p
}

func (p *peer) url() string {
	return "ws" + strings.TrimPrefix(p.srv.URL, "http") + "/ws"
}

func (p *peer) lastToken() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.tokens) == 0 {
		return ""
	}
	return p.tokens[len(p.tokens)-1]
}

// accept returns the server side of the next accepted connection.
func (p *peer) accept(t *testing.T) *websocket.Conn {
	t.Helper()
	select {
	case conn := <-p.conns:
		t.Cleanup(func() { _ = conn.Close() })
		return conn
	case <-time.After(2 * time.Second):
		t.Fatal("no connection accepted")
		return nil
	}
}

// next returns the next envelope the client sent, skipping pings unless
// ping is the wanted kind.
func (p *peer) next(t *testing.T, want protocol.Kind) protocol.Envelope {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case env := <-p.recv:
			if env.Kind == protocol.KindPing && want != protocol.KindPing {
				continue
			}
			if env.Kind != want {
				t.Fatalf("received %s, want %s", env.Kind, want)
			}
			return env
		case <-deadline:
			t.Fatalf("no %s received", want)
			return protocol.Envelope{}
		}
	}
}

// quiet asserts that the client sends nothing for a short while.
func (p *peer) quiet(t *testing.T) {
	t.Helper()
	select {
	case env := <-p.recv:
		t.Fatalf("unexpected %s from client", env.Kind)
	case <-time.After(100 * time.Millisecond):
	}
}

func send(t *testing.T, conn *websocket.Conn, data string) {
	t.Helper()
	if err := conn.WriteMessage(websocket.TextMessage, []byte(data)); err != nil {
		t.Fatalf("server write: %v", err)
	}
}

func closeWith(t *testing.T, conn *websocket.Conn, code int, reason string) {
	t.Helper()
	msg := websocket.FormatCloseMessage(code, reason)
	if err := conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second)); err != nil {
		t.Fatalf("server close: %v", err)
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig(url string) *Config {
	cfg := DefaultConfig().WithURL(url).WithReconnect(5, time.Second, 0)
	cfg.ConnectTimeout = 2 * time.Second
	return cfg
}

func newTestClient(t *testing.T, cfg *Config, opts ...Option) (*Client, *clock.FakeClock) {
	t.Helper()
	clk := clock.Fake(epoch)
	opts = append([]Option{
		WithClock(clk),
		WithLogger(discardLogger()),
		WithTokenSource(StaticToken(testToken)),
	}, opts...)
	c, err := New(cfg, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(c.Disconnect)
	return c, clk
}

func connect(t *testing.T, c *Client) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
}

// events records dispatched envelopes of the given kinds in order.
type events struct {
	mu   sync.Mutex
	list []protocol.Envelope
}

func record(c *Client, kinds ...protocol.Kind) *events {
	ev := &events{}
	for _, k := range kinds {
		c.Registry().SubscribeFunc(k, func(env protocol.Envelope) {
			ev.mu.Lock()
			ev.list = append(ev.list, env)
			ev.mu.Unlock()
		})
	}
	return ev
}

func (ev *events) all() []protocol.Envelope {
	ev.mu.Lock()
	defer ev.mu.Unlock()
	return append([]protocol.Envelope(nil), ev.list...)
}

func (ev *events) kinds() []protocol.Kind {
	var out []protocol.Kind
	for _, env := range ev.all() {
		out = append(out, env.Kind)
	}
	return out
}

func (ev *events) count(kind protocol.Kind) int {
	n := 0
	for _, env := range ev.all() {
		if env.Kind == kind {
			n++
		}
	}
	return n
}

func (ev *events) fatal() int {
	n := 0
	for _, env := range ev.all() {
		var p protocol.ErrorPayload
		if env.Kind == protocol.KindError && env.DecodePayload(&p) == nil && p.Fatal {
			n++
		}
	}
	return n
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// scheduled waits until exactly one reconnect timer is armed and returns
// its delay.
func scheduled(t *testing.T, clk *clock.FakeClock) time.Duration {
	t.Helper()
	var timers []time.Duration
	eventually(t, "reconnect timer", func() bool {
		timers = clk.PendingTimers()
		return len(timers) == 1
	})
	return timers[0]
}
