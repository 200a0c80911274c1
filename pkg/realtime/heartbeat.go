package realtime

import (
	"github.com/vango-dev/boardsync/internal/clock"
	"github.com/vango-dev/boardsync/pkg/protocol"
)

// heartbeat sends a ping envelope every HeartbeatInterval while the
// connection it was started for is open.
type heartbeat struct {
	ticker *clock.Ticker
	stop   chan struct{}
}

// startHeartbeatLocked replaces any running heartbeat. c.mu must be held.
func (c *Client) startHeartbeatLocked() {
	c.stopHeartbeatLocked()
	hb := &heartbeat{
		ticker: c.clock.NewTicker(c.config.HeartbeatInterval),
		stop:   make(chan struct{}),
	}
	c.heartbeat = hb
	go c.heartbeatLoop(hb)
}

// stopHeartbeatLocked cancels the running heartbeat, if any. c.mu must be
// held.
func (c *Client) stopHeartbeatLocked() {
	if c.heartbeat == nil {
		return
	}
	c.heartbeat.ticker.Stop()
	close(c.heartbeat.stop)
	c.heartbeat = nil
}

func (c *Client) heartbeatLoop(hb *heartbeat) {
	for {
		select {
		case <-hb.stop:
			return
		case <-hb.ticker.C:
		}

		c.mu.Lock()
		current := c.heartbeat == hb
		c.mu.Unlock()
		if !current {
			return
		}
		if err := c.Send(protocol.KindPing, nil); err != nil {
			c.logger.Debug("heartbeat not sent", "error", err)
		}
	}
}
