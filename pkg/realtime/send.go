package realtime

import (
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vango-dev/boardsync/pkg/protocol"
)

// Send transmits one envelope of the given kind. The payload is marshaled
// to JSON; nil sends an empty object.
//
// Nothing is queued: when the channel is not open the message is dropped,
// a warning is logged, and ErrNotConnected is returned. Synthetic
// lifecycle kinds are rejected with ErrLocalKind.
func (c *Client) Send(kind protocol.Kind, payload any) error {
	if kind.Local() {
		return ErrLocalKind
	}

	c.mu.Lock()
	conn := c.conn
	connected := c.state == StateConnected && conn != nil
	c.mu.Unlock()

	if !connected {
		c.logger.Warn("not connected, dropping message", "kind", kind)
		c.instr.EnvelopeDropped(kind, "not_connected")
		return ErrNotConnected
	}

	env, err := protocol.NewEnvelope(kind, payload, c.clock.Now())
	if err != nil {
		return fmt.Errorf("realtime: build %s: %w", kind, err)
	}
	data, err := protocol.Encode(env.WithOrigin(c.sessionID, c.config.UserID))
	if err != nil {
		return fmt.Errorf("realtime: encode %s: %w", kind, err)
	}

	c.writeMu.Lock()
	conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	err = conn.WriteMessage(websocket.TextMessage, data)
	c.writeMu.Unlock()

	if err != nil {
		c.logger.Warn("write failed", "kind", kind, "error", err)
		c.instr.EnvelopeDropped(kind, "write_error")
		// The read loop sees the broken socket and runs the close path.
		conn.Close()
		return fmt.Errorf("realtime: send %s: %w", kind, err)
	}
	c.instr.EnvelopeSent(kind, len(data))
	return nil
}
