package realtime

import (
	"errors"
	"fmt"

	"github.com/gorilla/websocket"
)

// Sentinel errors for connection and send failures.
var (
	// ErrUnauthenticated is returned by Connect when no bearer token is
	// available. It is reported synchronously and never retried.
	ErrUnauthenticated = errors.New("realtime: no credential")

	// ErrUnauthorized is returned when the server rejects the handshake
	// with 401 or 403. It is never retried.
	ErrUnauthorized = errors.New("realtime: credential rejected")

	// ErrConnectTimeout is returned when the channel does not open within
	// Config.ConnectTimeout.
	ErrConnectTimeout = errors.New("realtime: connect timeout")

	// ErrReconnectExhausted is carried by the terminal error event after
	// Config.MaxReconnectAttempts reconnects have failed.
	ErrReconnectExhausted = errors.New("realtime: reconnect attempts exhausted")

	// ErrNotConnected is returned by Send when the channel is not open.
	// The message is dropped, not queued.
	ErrNotConnected = errors.New("realtime: not connected")

	// ErrClientClosed is returned to callers waiting on a connect attempt
	// that Disconnect cancelled.
	ErrClientClosed = errors.New("realtime: client disconnected")

	// ErrLocalKind is returned when Send is asked to transmit a kind that
	// only the client itself may produce.
	ErrLocalKind = errors.New("realtime: kind is local-only")
)

// CloseError describes how the channel was closed.
type CloseError struct {
	Code   int
	Reason string
}

// Error returns the error message.
func (e *CloseError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("realtime: closed with code %d", e.Code)
	}
	return fmt.Sprintf("realtime: closed with code %d: %s", e.Code, e.Reason)
}

// Clean reports whether the close was a normal, caller-initiated shutdown
// (1000 or 1001) that must not trigger reconnection.
func (e *CloseError) Clean() bool {
	return e.Code == websocket.CloseNormalClosure || e.Code == websocket.CloseGoingAway
}

// closeStatus extracts the close code from a read error. Errors that are
// not close frames (network failures, read limits) map to 1006 and are
// returned as transport faults.
func closeStatus(err error) (*CloseError, error) {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return &CloseError{Code: ce.Code, Reason: ce.Text}, nil
	}
	return &CloseError{Code: websocket.CloseAbnormalClosure}, err
}

// HandshakeError is returned when the server answers the upgrade request
// with a non-101 status.
type HandshakeError struct {
	StatusCode int
	Err        error
}

// Error returns the error message.
func (e *HandshakeError) Error() string {
	return fmt.Sprintf("realtime: handshake failed with status %d: %v", e.StatusCode, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As.
func (e *HandshakeError) Unwrap() error {
	return e.Err
}
