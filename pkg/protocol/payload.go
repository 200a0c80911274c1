package protocol

import "time"

// Identifiers shared with the REST layer.
type (
	RoomID   int64
	CardID   int64
	ColumnID int64
	UserID   int64
)

// PresenceStatus is a peer's live status.
type PresenceStatus string

const (
	StatusOnline PresenceStatus = "online"
	StatusIdle   PresenceStatus = "idle"
	StatusAway   PresenceStatus = "away"
)

// Valid reports whether s is one of the known statuses.
func (s PresenceStatus) Valid() bool {
	switch s {
	case StatusOnline, StatusIdle, StatusAway:
		return true
	default:
		return false
	}
}

// RoomPayload carries join_board and leave_board.
type RoomPayload struct {
	RoomID RoomID `json:"roomId"`
}

// CardPayload carries card_created, card_updated and card_deleted.
// Data holds the card fields; it is omitted for deletes.
type CardPayload struct {
	RoomID RoomID         `json:"roomId"`
	CardID CardID         `json:"cardId"`
	Data   map[string]any `json:"data,omitempty"`
}

// CardMovePayload carries card_moved.
type CardMovePayload struct {
	RoomID       RoomID   `json:"roomId"`
	CardID       CardID   `json:"cardId"`
	FromColumnID ColumnID `json:"fromColumnId"`
	ToColumnID   ColumnID `json:"toColumnId"`
	Position     int      `json:"position"`
}

// CardLockPayload carries card_locked and card_unlocked. UserID and
// LockedAt are filled in by the server when it relays the lock.
type CardLockPayload struct {
	RoomID   RoomID     `json:"roomId"`
	CardID   CardID     `json:"cardId"`
	UserID   *UserID    `json:"userId,omitempty"`
	LockedAt *time.Time `json:"lockedAt,omitempty"`
}

// Cursor is a pointer position on the board canvas.
type Cursor struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// CursorPayload carries cursor_update.
type CursorPayload struct {
	RoomID RoomID  `json:"roomId"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	UserID *UserID `json:"userId,omitempty"`
}

// TypingPayload carries typing_start and typing_stop.
type TypingPayload struct {
	CardID CardID  `json:"cardId"`
	RoomID *RoomID `json:"roomId,omitempty"`
	UserID *UserID `json:"userId,omitempty"`
}

// PresencePayload carries user_joined, user_left and
// user_presence_update as relayed by the server.
type PresencePayload struct {
	UserID        UserID         `json:"userId"`
	DisplayName   string         `json:"displayName,omitempty"`
	RoomID        *RoomID        `json:"roomId,omitempty"`
	Status        PresenceStatus `json:"status,omitempty"`
	Cursor        *Cursor        `json:"cursor,omitempty"`
	FocusedCardID *CardID        `json:"focusedCardId,omitempty"`
}

// DisconnectPayload is dispatched locally when the channel closes.
type DisconnectPayload struct {
	Code   int    `json:"code"`
	Reason string `json:"reason,omitempty"`
}

// ReconnectPayload is dispatched locally after a successful reconnect.
type ReconnectPayload struct {
	Attempts int `json:"attempts"`
}

// ErrorPayload is dispatched locally for transport faults. Fatal marks
// reconnect exhaustion, after which no automatic recovery happens.
type ErrorPayload struct {
	Message string `json:"message"`
	Fatal   bool   `json:"fatal,omitempty"`
}
