package realtime

import (
	"context"

	"github.com/vango-dev/boardsync/pkg/protocol"
)

// JoinRoom connects if needed, remembers id as the current room, and
// sends join_board. The remembered room is rejoined automatically after
// every successful reconnect until LeaveRoom or Disconnect.
func (c *Client) JoinRoom(ctx context.Context, id protocol.RoomID) error {
	if err := c.Connect(ctx); err != nil {
		return err
	}

	c.mu.Lock()
	c.room = &id
	c.mu.Unlock()

	c.logger.Info("joining room", "room", id)
	return c.Send(protocol.KindJoinBoard, protocol.RoomPayload{RoomID: id})
}

// LeaveRoom sends leave_board for id. If id is the remembered room it is
// forgotten, even when the message cannot be sent: leaving while
// disconnected still stops the room from being rejoined on the next
// reconnect. This is the only sender that changes local state without a
// connection; the returned ErrNotConnected reports that the server was
// not told.
func (c *Client) LeaveRoom(id protocol.RoomID) error {
	c.mu.Lock()
	if c.room != nil && *c.room == id {
		c.room = nil
	}
	c.mu.Unlock()

	c.logger.Info("leaving room", "room", id)
	return c.Send(protocol.KindLeaveBoard, protocol.RoomPayload{RoomID: id})
}

// CurrentRoom returns the room that will be rejoined on reconnect.
func (c *Client) CurrentRoom() (protocol.RoomID, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.room == nil {
		return 0, false
	}
	return *c.room, true
}
