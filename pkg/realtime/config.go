package realtime

import (
	"fmt"
	"net/url"
	"time"

	"github.com/vango-dev/boardsync/pkg/protocol"
)

// Config holds the connection settings for a Client.
type Config struct {
	// URL is the WebSocket endpoint (ws://, wss://, http:// or https://).
	URL string

	// TokenParam is the query parameter that carries the bearer token.
	// Default: "token".
	TokenParam string

	// UserID, when set, is stamped on every outbound envelope.
	UserID *protocol.UserID

	// Timeouts

	// ConnectTimeout bounds a single dial including the WebSocket
	// handshake. The attempt is failed and the socket closed when it
	// elapses. Default: 10 seconds.
	ConnectTimeout time.Duration

	// WriteTimeout is the maximum time to wait when sending a frame.
	// Default: 10 seconds.
	WriteTimeout time.Duration

	// HeartbeatInterval is the time between ping envelopes while
	// connected. Default: 30 seconds.
	HeartbeatInterval time.Duration

	// Reconnection

	// MaxReconnectAttempts is the number of automatic reconnects after an
	// unclean close before the client gives up. Default: 5.
	MaxReconnectAttempts int

	// ReconnectBaseDelay is the delay before the first reconnect; the n-th
	// attempt waits ReconnectBaseDelay * 2^(n-1). Default: 1 second.
	ReconnectBaseDelay time.Duration

	// ReconnectMaxDelay caps a single backoff delay. Default: 1 minute.
	ReconnectMaxDelay time.Duration

	// ReconnectJitter randomizes each delay within ±ReconnectJitter of its
	// nominal value so clients recovering from the same outage spread out.
	// Zero gives the exact exponential schedule. Default: 0.2.
	ReconnectJitter float64

	// Transport

	// ReadBufferSize and WriteBufferSize size the WebSocket I/O buffers.
	// Default: 4096.
	ReadBufferSize  int
	WriteBufferSize int

	// EnableCompression negotiates permessage-deflate.
	// Default: false.
	EnableCompression bool
}

// DefaultConfig returns a Config with sensible defaults and no URL.
func DefaultConfig() *Config {
	return &Config{
		TokenParam:           "token",
		ConnectTimeout:       10 * time.Second,
		WriteTimeout:         10 * time.Second,
		HeartbeatInterval:    30 * time.Second,
		MaxReconnectAttempts: 5,
		ReconnectBaseDelay:   time.Second,
		ReconnectMaxDelay:    time.Minute,
		ReconnectJitter:      0.2,
		ReadBufferSize:       4096,
		WriteBufferSize:      4096,
	}
}

// Clone returns a copy of the Config.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	clone := *c
	if c.UserID != nil {
		id := *c.UserID
		clone.UserID = &id
	}
	return &clone
}

// WithURL sets the endpoint and returns the config for chaining.
func (c *Config) WithURL(u string) *Config {
	c.URL = u
	return c
}

// WithUserID sets the user stamped on outbound envelopes.
func (c *Config) WithUserID(id protocol.UserID) *Config {
	c.UserID = &id
	return c
}

// WithHeartbeatInterval sets the ping interval and returns the config for chaining.
func (c *Config) WithHeartbeatInterval(d time.Duration) *Config {
	c.HeartbeatInterval = d
	return c
}

// WithReconnect sets the reconnect policy and returns the config for chaining.
func (c *Config) WithReconnect(maxAttempts int, baseDelay time.Duration, jitter float64) *Config {
	c.MaxReconnectAttempts = maxAttempts
	c.ReconnectBaseDelay = baseDelay
	c.ReconnectJitter = jitter
	return c
}

// Validate reports the first invalid field.
func (c *Config) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("realtime: config: URL is required")
	}
	if _, err := endpoint(c.URL); err != nil {
		return err
	}
	switch {
	case c.TokenParam == "":
		return fmt.Errorf("realtime: config: TokenParam is required")
	case c.ConnectTimeout <= 0:
		return fmt.Errorf("realtime: config: ConnectTimeout must be positive")
	case c.WriteTimeout <= 0:
		return fmt.Errorf("realtime: config: WriteTimeout must be positive")
	case c.HeartbeatInterval <= 0:
		return fmt.Errorf("realtime: config: HeartbeatInterval must be positive")
	case c.MaxReconnectAttempts < 0:
		return fmt.Errorf("realtime: config: MaxReconnectAttempts must not be negative")
	case c.ReconnectBaseDelay <= 0:
		return fmt.Errorf("realtime: config: ReconnectBaseDelay must be positive")
	case c.ReconnectMaxDelay < c.ReconnectBaseDelay:
		return fmt.Errorf("realtime: config: ReconnectMaxDelay must be at least ReconnectBaseDelay")
	case c.ReconnectJitter < 0 || c.ReconnectJitter >= 1:
		return fmt.Errorf("realtime: config: ReconnectJitter must be in [0, 1)")
	}
	return nil
}

// endpoint parses the configured URL, mapping http(s) to ws(s).
func endpoint(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("realtime: config: invalid URL: %w", err)
	}
	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return nil, fmt.Errorf("realtime: config: unsupported URL scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("realtime: config: URL has no host")
	}
	return u, nil
}

// dialURL returns the endpoint with the token attached as a query
// parameter.
func (c *Config) dialURL(token string) (string, error) {
	u, err := endpoint(c.URL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set(c.TokenParam, token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
