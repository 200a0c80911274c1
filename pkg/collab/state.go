package collab

import (
	"time"

	"github.com/vango-dev/boardsync/pkg/protocol"
)

// UserPresence is one peer's record in one room.
type UserPresence struct {
	UserID        protocol.UserID         `json:"userId"`
	DisplayName   string                  `json:"displayName,omitempty"`
	RoomID        *protocol.RoomID        `json:"roomId,omitempty"`
	LastSeen      time.Time               `json:"lastSeen"`
	Cursor        *protocol.Cursor        `json:"cursor,omitempty"`
	FocusedCardID *protocol.CardID        `json:"focusedCardId,omitempty"`
	Status        protocol.PresenceStatus `json:"status"`
}

func (p UserPresence) clone() UserPresence {
	if p.RoomID != nil {
		id := *p.RoomID
		p.RoomID = &id
	}
	if p.Cursor != nil {
		c := *p.Cursor
		p.Cursor = &c
	}
	if p.FocusedCardID != nil {
		id := *p.FocusedCardID
		p.FocusedCardID = &id
	}
	return p
}

// CardLock records who holds the advisory lock on a card.
type CardLock struct {
	UserID   protocol.UserID `json:"userId"`
	LockedAt time.Time       `json:"lockedAt"`
}

// TypingIndicator records who is typing in a card.
type TypingIndicator struct {
	UserID   protocol.UserID `json:"userId"`
	TypingAt time.Time       `json:"typingAt"`
}

// BoardCollaboration is the live collaboration state of one room. A card
// has at most one lock holder; the last card_locked wins.
type BoardCollaboration struct {
	RoomID protocol.RoomID                     `json:"roomId"`
	Users  map[protocol.UserID]UserPresence    `json:"users"`
	Locks  map[protocol.CardID]CardLock        `json:"locks"`
	Typing map[protocol.CardID]TypingIndicator `json:"typing"`
}

func newBoard(room protocol.RoomID) *BoardCollaboration {
	return &BoardCollaboration{
		RoomID: room,
		Users:  make(map[protocol.UserID]UserPresence),
		Locks:  make(map[protocol.CardID]CardLock),
		Typing: make(map[protocol.CardID]TypingIndicator),
	}
}

func (b *BoardCollaboration) clone() BoardCollaboration {
	out := BoardCollaboration{
		RoomID: b.RoomID,
		Users:  make(map[protocol.UserID]UserPresence, len(b.Users)),
		Locks:  make(map[protocol.CardID]CardLock, len(b.Locks)),
		Typing: make(map[protocol.CardID]TypingIndicator, len(b.Typing)),
	}
	for id, u := range b.Users {
		out.Users[id] = u.clone()
	}
	for id, l := range b.Locks {
		out.Locks[id] = l
	}
	for id, ti := range b.Typing {
		out.Typing[id] = ti
	}
	return out
}

// LockHolder returns the user holding card's lock.
func (b BoardCollaboration) LockHolder(card protocol.CardID) (protocol.UserID, bool) {
	l, ok := b.Locks[card]
	return l.UserID, ok
}
