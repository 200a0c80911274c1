package collab

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/vango-dev/boardsync/pkg/protocol"
)

// ErrInvalidStatus is returned by UpdatePresence for a status other than
// online, idle or away.
var ErrInvalidStatus = errors.New("collab: invalid presence status")

// Transport is the part of realtime.Client the senders need.
type Transport interface {
	Send(kind protocol.Kind, payload any) error
	CurrentRoom() (protocol.RoomID, bool)
}

// Session sends collaboration events for the local user.
type Session struct {
	transport Transport
	logger    *slog.Logger
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithSessionLogger sets the logger. Default: slog.Default().
func WithSessionLogger(l *slog.Logger) SessionOption {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewSession returns a Session sending through t.
func NewSession(t Transport, opts ...SessionOption) *Session {
	s := &Session{transport: t, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// BroadcastCardMove announces that a card moved between columns.
func (s *Session) BroadcastCardMove(room protocol.RoomID, card protocol.CardID, from, to protocol.ColumnID, position int) error {
	return s.send(protocol.KindCardMoved, protocol.CardMovePayload{
		RoomID:       room,
		CardID:       card,
		FromColumnID: from,
		ToColumnID:   to,
		Position:     position,
	})
}

// BroadcastCardCreate announces a new card with its initial fields.
func (s *Session) BroadcastCardCreate(room protocol.RoomID, card protocol.CardID, data map[string]any) error {
	return s.send(protocol.KindCardCreated, protocol.CardPayload{RoomID: room, CardID: card, Data: data})
}

// BroadcastCardUpdate announces changed card fields.
func (s *Session) BroadcastCardUpdate(room protocol.RoomID, card protocol.CardID, data map[string]any) error {
	return s.send(protocol.KindCardUpdated, protocol.CardPayload{RoomID: room, CardID: card, Data: data})
}

// BroadcastCardDelete announces a deleted card.
func (s *Session) BroadcastCardDelete(room protocol.RoomID, card protocol.CardID) error {
	return s.send(protocol.KindCardDeleted, protocol.CardPayload{RoomID: room, CardID: card})
}

// LockCard signals intent to edit a card. Calling it twice sends two
// envelopes.
func (s *Session) LockCard(room protocol.RoomID, card protocol.CardID) error {
	return s.send(protocol.KindCardLocked, protocol.CardLockPayload{RoomID: room, CardID: card})
}

// UnlockCard releases a card lock.
func (s *Session) UnlockCard(room protocol.RoomID, card protocol.CardID) error {
	return s.send(protocol.KindCardUnlocked, protocol.CardLockPayload{RoomID: room, CardID: card})
}

// UpdateCursor sends one cursor position per call. Throttling is up to
// the caller.
func (s *Session) UpdateCursor(room protocol.RoomID, x, y float64) error {
	return s.send(protocol.KindCursorUpdate, protocol.CursorPayload{RoomID: room, X: x, Y: y})
}

// StartTyping marks the local user as typing in card. Callers must make
// sure StopTyping follows, on blur or after a timeout.
func (s *Session) StartTyping(card protocol.CardID) error {
	return s.send(protocol.KindTypingStart, s.typing(card))
}

// StopTyping clears the typing indicator for card.
func (s *Session) StopTyping(card protocol.CardID) error {
	return s.send(protocol.KindTypingStop, s.typing(card))
}

func (s *Session) typing(card protocol.CardID) protocol.TypingPayload {
	p := protocol.TypingPayload{CardID: card}
	if room, ok := s.transport.CurrentRoom(); ok {
		p.RoomID = &room
	}
	return p
}

// UpdatePresence publishes the local user's status. Keys in extra are
// merged into the payload; status always wins over an extra "status".
func (s *Session) UpdatePresence(status protocol.PresenceStatus, extra map[string]any) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	payload := make(map[string]any, len(extra)+2)
	for k, v := range extra {
		payload[k] = v
	}
	payload["status"] = status
	if _, ok := payload["roomId"]; !ok {
		if room, ok := s.transport.CurrentRoom(); ok {
			payload["roomId"] = room
		}
	}
	return s.send(protocol.KindUserPresenceUpdate, payload)
}

func (s *Session) send(kind protocol.Kind, payload any) error {
	if err := s.transport.Send(kind, payload); err != nil {
		s.logger.Debug("collab event not sent", "kind", kind, "error", err)
		return err
	}
	return nil
}
