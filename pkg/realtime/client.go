package realtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/vango-dev/boardsync/internal/clock"
	"github.com/vango-dev/boardsync/pkg/dispatch"
	"github.com/vango-dev/boardsync/pkg/protocol"
)

// Client owns one duplex connection to the collaboration server. It is
// the only writer of the connection state; other components observe it
// through dispatched connect, disconnect, reconnect and error events.
//
// A Client is constructed once at application start and passed to the
// components that need it.
type Client struct {
	config    *Config
	registry  *dispatch.Registry
	logger    *slog.Logger
	clock     clock.Clock
	dialer    *websocket.Dialer
	tokens    TokenSource
	instr     Instrumentation
	sessionID string

	mu         sync.Mutex
	state      State
	conn       *websocket.Conn
	generation uint64 // bumped per opened connection; stale closes are ignored
	pending    *attempt
	attempts   int
	exhausted  bool
	retry      clock.Timer
	backoff    *backoff.ExponentialBackOff
	heartbeat  *heartbeat
	room       *protocol.RoomID

	writeMu sync.Mutex
}

// attempt is a dial shared by every Connect caller that arrives while it
// is in flight.
type attempt struct {
	done      chan struct{}
	err       error
	once      sync.Once
	reconnect bool
	cancel    context.CancelFunc
}

func (a *attempt) finish(err error) {
	a.once.Do(func() {
		a.err = err
		close(a.done)
	})
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithClock sets the clock driving heartbeats and reconnect timers.
func WithClock(clk clock.Clock) Option {
	return func(c *Client) {
		if clk != nil {
			c.clock = clk
		}
	}
}

// WithRegistry shares an existing dispatch registry.
func WithRegistry(r *dispatch.Registry) Option {
	return func(c *Client) {
		if r != nil {
			c.registry = r
		}
	}
}

// WithTokenSource sets where the bearer token comes from.
func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) {
		c.tokens = ts
	}
}

// WithTokenStore uses store as the token source and disconnects the
// client whenever the stored token is cleared.
func WithTokenStore(store *TokenStore) Option {
	return func(c *Client) {
		c.tokens = store
		store.OnChange(func(token string) {
			if token == "" {
				c.logger.Info("credential cleared, disconnecting")
				c.Disconnect()
			}
		})
	}
}

// WithInstrumentation attaches metrics or tracing.
func WithInstrumentation(in ...Instrumentation) Option {
	return func(c *Client) {
		c.instr = MultiInstrumentation(append([]Instrumentation{c.instr}, in...)...)
	}
}

// WithDialer replaces the WebSocket dialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(c *Client) {
		if d != nil {
			c.dialer = d
		}
	}
}

// WithSessionID overrides the generated session id.
func WithSessionID(id string) Option {
	return func(c *Client) {
		if id != "" {
			c.sessionID = id
		}
	}
}

// New creates a disconnected Client. The config is validated and cloned.
func New(config *Config, opts ...Option) (*Client, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	config = config.Clone()

	c := &Client{
		config:    config,
		logger:    slog.Default(),
		clock:     clock.Real(),
		tokens:    StaticToken(""),
		instr:     NopInstrumentation{},
		sessionID: uuid.NewString(),
		state:     StateDisconnected,
	}
	c.dialer = &websocket.Dialer{
		Proxy:             http.ProxyFromEnvironment,
		HandshakeTimeout:  config.ConnectTimeout,
		ReadBufferSize:    config.ReadBufferSize,
		WriteBufferSize:   config.WriteBufferSize,
		EnableCompression: config.EnableCompression,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.registry == nil {
		c.registry = dispatch.New(dispatch.WithLogger(c.logger))
	}
	c.logger = c.logger.With("session_id", c.sessionID)

	c.backoff = backoff.NewExponentialBackOff()
	c.backoff.InitialInterval = config.ReconnectBaseDelay
	c.backoff.Multiplier = 2
	c.backoff.RandomizationFactor = config.ReconnectJitter
	c.backoff.MaxInterval = config.ReconnectMaxDelay
	c.backoff.MaxElapsedTime = 0
	c.backoff.Clock = c.clock
	c.backoff.Reset()

	return c, nil
}

// SessionID returns the id stamped on outbound envelopes.
func (c *Client) SessionID() string { return c.sessionID }

// Registry returns the dispatch registry inbound envelopes are routed to.
func (c *Client) Registry() *dispatch.Registry { return c.registry }

// Subscribe registers h for envelopes of kind, including the synthetic
// connect, disconnect, reconnect and error events.
func (c *Client) Subscribe(kind protocol.Kind, h dispatch.Handler) {
	c.registry.Subscribe(kind, h)
}

// Unsubscribe removes h from kind.
func (c *Client) Unsubscribe(kind protocol.Kind, h dispatch.Handler) {
	c.registry.Unsubscribe(kind, h)
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Attempts returns the number of reconnect attempts since the last
// successful open.
func (c *Client) Attempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

// Connect opens the channel. It returns nil at once when already
// connected; concurrent callers share a single in-flight attempt, so at
// most one socket is ever dialed. ctx bounds only this caller's wait.
//
// Connect fails fast with ErrUnauthenticated when no token is available.
// A failed dial is reported to the caller and then retried in the
// background like an unclean close, unless the server rejected the
// credential.
func (c *Client) Connect(ctx context.Context) error {
	a, err := c.begin(false)
	if err != nil {
		return err
	}
	if a == nil {
		return nil
	}
	select {
	case <-a.done:
		return a.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// begin returns the attempt to wait on, or nil when already connected.
func (c *Client) begin(reconnect bool) (*attempt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateConnected {
		return nil, nil
	}
	if c.pending != nil {
		return c.pending, nil
	}

	token := ""
	if c.tokens != nil {
		token = c.tokens.Token()
	}
	if token == "" {
		return nil, ErrUnauthenticated
	}
	target, err := c.config.dialURL(token)
	if err != nil {
		return nil, err
	}

	switch {
	case c.state == StateReconnecting:
		// A manual Connect during backoff dials now instead of waiting.
		reconnect = true
		if c.retry != nil {
			c.retry.Stop()
			c.retry = nil
		}
	case !reconnect:
		c.attempts = 0
		c.exhausted = false
		c.backoff.Reset()
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.config.ConnectTimeout)
	a := &attempt{
		done:      make(chan struct{}),
		reconnect: reconnect,
		cancel:    cancel,
	}
	c.pending = a
	c.setStateLocked(StateConnecting)
	go c.dial(ctx, a, target, c.attempts)
	return a, nil
}

func (c *Client) dial(ctx context.Context, a *attempt, target string, attemptNo int) {
	defer a.cancel()

	ctx, end := c.instr.DialStarted(ctx, attemptNo)
	conn, resp, err := c.dialer.DialContext(ctx, target, nil)
	if err == nil {
		end(nil)
		c.opened(a, conn)
		return
	}

	switch {
	case resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden):
		err = &HandshakeError{StatusCode: resp.StatusCode, Err: ErrUnauthorized}
	case errors.Is(ctx.Err(), context.DeadlineExceeded) || isTimeout(err):
		err = fmt.Errorf("%w: %v", ErrConnectTimeout, err)
	case errors.Is(ctx.Err(), context.Canceled):
		err = ErrClientClosed
	case resp != nil:
		err = &HandshakeError{StatusCode: resp.StatusCode, Err: err}
	}
	end(err)
	c.failed(a, err)
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func (c *Client) opened(a *attempt, conn *websocket.Conn) {
	c.mu.Lock()
	if c.pending != a {
		// Disconnect cancelled this attempt while the handshake completed.
		c.mu.Unlock()
		conn.Close()
		return
	}
	c.pending = nil
	c.conn = conn
	c.generation++
	gen := c.generation
	attempts := c.attempts
	c.attempts = 0
	c.exhausted = false
	c.backoff.Reset()
	c.setStateLocked(StateConnected)
	c.startHeartbeatLocked()
	var room *protocol.RoomID
	if a.reconnect && c.room != nil {
		id := *c.room
		room = &id
	}
	c.mu.Unlock()

	conn.SetReadLimit(protocol.MaxFrameSize)
	c.logger.Info("connected", "reconnect", a.reconnect, "attempts", attempts)
	a.finish(nil)

	c.emit(protocol.KindConnect, nil)
	if a.reconnect {
		c.emit(protocol.KindReconnect, protocol.ReconnectPayload{Attempts: attempts})
		if room != nil {
			c.logger.Info("rejoining room", "room", *room)
			_ = c.Send(protocol.KindJoinBoard, protocol.RoomPayload{RoomID: *room})
		}
	}

	go c.readLoop(conn, gen)
}

func (c *Client) failed(a *attempt, err error) {
	c.mu.Lock()
	if c.pending != a {
		c.mu.Unlock()
		return
	}
	c.pending = nil
	c.setStateLocked(StateDisconnected)
	c.mu.Unlock()

	c.logger.Warn("connect failed", "error", err)
	a.finish(err)
	c.emitError(err, false)

	if errors.Is(err, ErrUnauthorized) {
		return
	}
	c.handleReconnect()
}

// readLoop dispatches inbound envelopes in the order the transport
// delivers them until the connection closes. Lifecycle kinds are only
// ever dispatched by the client itself, so a server frame carrying one is
// dropped like a malformed frame.
func (c *Client) readLoop(conn *websocket.Conn, gen uint64) {
	defer conn.Close()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			ce, transportErr := closeStatus(err)
			c.handleClose(gen, ce, transportErr)
			return
		}
		c.instr.FrameReceived(len(data))

		env, err := protocol.Decode(data)
		if err != nil {
			c.logger.Warn("dropping malformed frame", "error", err, "bytes", len(data))
			c.instr.FrameMalformed()
			continue
		}
		if env.Kind.Local() {
			c.logger.Warn("dropping lifecycle kind sent by server", "kind", env.Kind)
			c.instr.FrameMalformed()
			continue
		}
		c.registry.Dispatch(env)
	}
}

func (c *Client) handleClose(gen uint64, ce *CloseError, transportErr error) {
	c.mu.Lock()
	if gen != c.generation || c.conn == nil {
		c.mu.Unlock()
		return
	}
	c.stopHeartbeatLocked()
	c.conn = nil
	c.setStateLocked(StateDisconnected)
	c.mu.Unlock()

	if transportErr != nil {
		c.logger.Warn("transport error", "error", transportErr)
		c.emitError(transportErr, false)
	}
	c.logger.Info("disconnected", "code", ce.Code, "reason", ce.Reason)
	c.instr.Disconnected(ce.Code)
	c.emit(protocol.KindDisconnect, protocol.DisconnectPayload{Code: ce.Code, Reason: ce.Reason})

	if ce.Clean() {
		return
	}
	c.handleReconnect()
}

// Disconnect closes the channel with code 1000, forgets the current
// room, and cancels any pending reconnect or in-flight connect attempt.
func (c *Client) Disconnect() {
	c.mu.Lock()
	c.room = nil
	if c.retry != nil {
		c.retry.Stop()
		c.retry = nil
	}
	pending := c.pending
	c.pending = nil
	c.attempts = 0
	c.exhausted = false
	c.backoff.Reset()

	conn := c.conn
	if conn != nil {
		c.setStateLocked(StateClosing)
		c.stopHeartbeatLocked()
		c.conn = nil
		c.generation++
	} else {
		c.setStateLocked(StateDisconnected)
	}
	c.mu.Unlock()

	if pending != nil {
		pending.cancel()
		pending.finish(ErrClientClosed)
	}
	if conn == nil {
		return
	}

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "client disconnect")
	if err := conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(c.config.WriteTimeout)); err != nil {
		c.logger.Debug("close frame not sent", "error", err)
	}
	conn.Close()

	c.mu.Lock()
	if c.state == StateClosing {
		c.setStateLocked(StateDisconnected)
	}
	c.mu.Unlock()

	c.logger.Info("disconnected", "code", websocket.CloseNormalClosure, "reason", "client disconnect")
	c.instr.Disconnected(websocket.CloseNormalClosure)
	c.emit(protocol.KindDisconnect, protocol.DisconnectPayload{
		Code:   websocket.CloseNormalClosure,
		Reason: "client disconnect",
	})
}

func (c *Client) setStateLocked(s State) {
	if c.state == s {
		return
	}
	from := c.state
	c.state = s
	c.instr.StateChanged(from, s)
}

// emit dispatches a synthetic lifecycle event to local subscribers.
func (c *Client) emit(kind protocol.Kind, payload any) {
	env, err := protocol.NewEnvelope(kind, payload, c.clock.Now())
	if err != nil {
		c.logger.Error("building local event", "kind", kind, "error", err)
		return
	}
	c.registry.Dispatch(env.WithOrigin(c.sessionID, c.config.UserID))
}

func (c *Client) emitError(err error, fatal bool) {
	c.emit(protocol.KindError, protocol.ErrorPayload{Message: err.Error(), Fatal: fatal})
}
