package realtime

import "time"

// handleReconnect schedules the next reconnect after an unclean close or
// a failed dial. Once MaxReconnectAttempts is reached it emits a single
// fatal error event and schedules nothing further.
func (c *Client) handleReconnect() {
	c.mu.Lock()
	if c.state != StateDisconnected || c.pending != nil {
		// Someone already started a new attempt.
		c.mu.Unlock()
		return
	}
	if c.attempts >= c.config.MaxReconnectAttempts {
		if c.exhausted {
			c.mu.Unlock()
			return
		}
		c.exhausted = true
		attempts := c.attempts
		c.mu.Unlock()

		c.logger.Error("giving up reconnecting", "attempts", attempts)
		c.instr.ReconnectExhausted()
		c.emitError(ErrReconnectExhausted, true)
		return
	}

	c.attempts++
	attempt := c.attempts
	delay := c.nextDelayLocked()
	c.setStateLocked(StateReconnecting)
	c.retry = c.clock.AfterFunc(delay, c.retryConnect)
	c.mu.Unlock()

	c.logger.Info("reconnect scheduled", "attempt", attempt, "delay", delay)
	c.instr.ReconnectScheduled(attempt, delay)
}

// nextDelayLocked returns ReconnectBaseDelay * 2^(attempt-1), randomized
// by ReconnectJitter.
func (c *Client) nextDelayLocked() time.Duration {
	d := c.backoff.NextBackOff()
	if d <= 0 {
		d = c.config.ReconnectBaseDelay
	}
	return d
}

func (c *Client) retryConnect() {
	c.mu.Lock()
	if c.state != StateReconnecting {
		c.mu.Unlock()
		return
	}
	c.retry = nil
	c.mu.Unlock()

	if _, err := c.begin(true); err != nil {
		// The credential went away while waiting; nothing to retry with.
		c.mu.Lock()
		if c.state == StateReconnecting {
			c.setStateLocked(StateDisconnected)
		}
		c.mu.Unlock()
		c.logger.Warn("reconnect aborted", "error", err)
		c.emitError(err, false)
	}
}

// PendingReconnect reports whether a reconnect timer is armed.
func (c *Client) PendingReconnect() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.retry != nil
}
