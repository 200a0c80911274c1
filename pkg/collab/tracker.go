package collab

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/vango-dev/boardsync/internal/clock"
	"github.com/vango-dev/boardsync/pkg/dispatch"
	"github.com/vango-dev/boardsync/pkg/protocol"
)

// DefaultTypingTTL is how long a typing indicator survives without a
// typing_stop.
const DefaultTypingTTL = 10 * time.Second

// Tracker rebuilds per-room collaboration state from inbound presence,
// cursor, lock and typing events. Everything is cleared when the local
// connection drops, since peers' state may have changed unseen.
type Tracker struct {
	registry *dispatch.Registry
	clock    clock.Clock
	logger   *slog.Logger
	ttl      time.Duration

	mu    sync.Mutex
	rooms map[protocol.RoomID]*BoardCollaboration

	handles map[protocol.Kind]dispatch.Handler
}

// TrackerOption configures a Tracker.
type TrackerOption func(*Tracker)

// WithTrackerClock sets the clock used for receipt times and expiry.
func WithTrackerClock(c clock.Clock) TrackerOption {
	return func(t *Tracker) {
		if c != nil {
			t.clock = c
		}
	}
}

// WithTypingTTL sets how long typing indicators live. Zero disables
// expiry.
func WithTypingTTL(d time.Duration) TrackerOption {
	return func(t *Tracker) { t.ttl = d }
}

// WithTrackerLogger sets the logger.
func WithTrackerLogger(l *slog.Logger) TrackerOption {
	return func(t *Tracker) {
		if l != nil {
			t.logger = l
		}
	}
}

// NewTracker subscribes a Tracker to registry. Call Close to unsubscribe.
func NewTracker(registry *dispatch.Registry, opts ...TrackerOption) *Tracker {
	t := &Tracker{
		registry: registry,
		clock:    clock.Real(),
		logger:   slog.Default(),
		ttl:      DefaultTypingTTL,
		rooms:    make(map[protocol.RoomID]*BoardCollaboration),
	}
	for _, opt := range opts {
		opt(t)
	}

	t.handles = map[protocol.Kind]dispatch.Handler{
		protocol.KindUserJoined:         dispatch.Func(t.onUserJoined),
		protocol.KindUserLeft:           dispatch.Func(t.onUserLeft),
		protocol.KindUserPresenceUpdate: dispatch.Func(t.onPresence),
		protocol.KindCursorUpdate:       dispatch.Func(t.onCursor),
		protocol.KindCardLocked:         dispatch.Func(t.onLocked),
		protocol.KindCardUnlocked:       dispatch.Func(t.onUnlocked),
		protocol.KindTypingStart:        dispatch.Func(t.onTypingStart),
		protocol.KindTypingStop:         dispatch.Func(t.onTypingStop),
		protocol.KindDisconnect:         dispatch.Func(t.onDisconnect),
	}
	for kind, h := range t.handles {
		registry.Subscribe(kind, h)
	}
	return t
}

// Close unsubscribes the tracker. The last state stays readable.
func (t *Tracker) Close() {
	for kind, h := range t.handles {
		t.registry.Unsubscribe(kind, h)
	}
}

// Snapshot returns a deep copy of room's state with expired typing
// indicators removed.
func (t *Tracker) Snapshot(room protocol.RoomID) (BoardCollaboration, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	b, ok := t.rooms[room]
	if !ok {
		return BoardCollaboration{}, false
	}
	t.pruneLocked(b)
	return b.clone(), true
}

// Rooms returns the rooms with tracked state in ascending order.
func (t *Tracker) Rooms() []protocol.RoomID {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]protocol.RoomID, 0, len(t.rooms))
	for id := range t.rooms {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Reset drops all tracked state.
func (t *Tracker) Reset() {
	t.mu.Lock()
	t.rooms = make(map[protocol.RoomID]*BoardCollaboration)
	t.mu.Unlock()
}

func (t *Tracker) pruneLocked(b *BoardCollaboration) {
	if t.ttl <= 0 {
		return
	}
	cutoff := t.clock.Now().Add(-t.ttl)
	for card, ti := range b.Typing {
		if ti.TypingAt.Before(cutoff) {
			delete(b.Typing, card)
		}
	}
}

func (t *Tracker) boardLocked(room protocol.RoomID) *BoardCollaboration {
	b, ok := t.rooms[room]
	if !ok {
		b = newBoard(room)
		t.rooms[room] = b
	}
	return b
}

// sender resolves the acting user: the payload field when the server
// filled it in, otherwise the envelope origin.
func sender(payload *protocol.UserID, env protocol.Envelope) (protocol.UserID, bool) {
	switch {
	case payload != nil:
		return *payload, true
	case env.UserID != nil:
		return *env.UserID, true
	default:
		return 0, false
	}
}

func (t *Tracker) decode(env protocol.Envelope, v any) bool {
	if err := env.DecodePayload(v); err != nil {
		t.logger.Warn("ignoring collaboration event", "kind", env.Kind, "error", err)
		return false
	}
	return true
}

func (t *Tracker) onUserJoined(env protocol.Envelope) {
	var p protocol.PresencePayload
	if !t.decode(env, &p) || p.RoomID == nil {
		return
	}
	now := t.clock.Now()

	t.mu.Lock()
	defer t.mu.Unlock()
	b := t.boardLocked(*p.RoomID)
	u := b.Users[p.UserID]
	u.UserID = p.UserID
	u.RoomID = p.RoomID
	u.LastSeen = now
	applyPresence(&u, p)
	if u.Status == "" {
		u.Status = protocol.StatusOnline
	}
	b.Users[p.UserID] = u
}

func (t *Tracker) onUserLeft(env protocol.Envelope) {
	var p protocol.PresencePayload
	if !t.decode(env, &p) || p.RoomID == nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	b, ok := t.rooms[*p.RoomID]
	if !ok {
		return
	}
	delete(b.Users, p.UserID)
	for card, ti := range b.Typing {
		if ti.UserID == p.UserID {
			delete(b.Typing, card)
		}
	}
	if len(b.Users) == 0 && len(b.Locks) == 0 && len(b.Typing) == 0 {
		delete(t.rooms, *p.RoomID)
	}
}

func (t *Tracker) onPresence(env protocol.Envelope) {
	var p protocol.PresencePayload
	if !t.decode(env, &p) || p.RoomID == nil {
		return
	}
	if p.Status != "" && !p.Status.Valid() {
		t.logger.Warn("ignoring presence with unknown status", "status", p.Status, "user", p.UserID)
		return
	}
	now := t.clock.Now()

	t.mu.Lock()
	defer t.mu.Unlock()
	b := t.boardLocked(*p.RoomID)
	u, ok := b.Users[p.UserID]
	if !ok {
		u = UserPresence{UserID: p.UserID, RoomID: p.RoomID, Status: protocol.StatusOnline}
	}
	u.LastSeen = now
	applyPresence(&u, p)
	b.Users[p.UserID] = u
}

// applyPresence copies the fields present in p onto u.
func applyPresence(u *UserPresence, p protocol.PresencePayload) {
	if p.DisplayName != "" {
		u.DisplayName = p.DisplayName
	}
	if p.Status != "" {
		u.Status = p.Status
	}
	if p.Cursor != nil {
		c := *p.Cursor
		u.Cursor = &c
	}
	if p.FocusedCardID != nil {
		id := *p.FocusedCardID
		u.FocusedCardID = &id
	}
}

func (t *Tracker) onCursor(env protocol.Envelope) {
	var p protocol.CursorPayload
	if !t.decode(env, &p) {
		return
	}
	user, ok := sender(p.UserID, env)
	if !ok {
		return
	}
	now := t.clock.Now()

	t.mu.Lock()
	defer t.mu.Unlock()
	b := t.boardLocked(p.RoomID)
	u, ok := b.Users[user]
	if !ok {
		room := p.RoomID
		u = UserPresence{UserID: user, RoomID: &room, Status: protocol.StatusOnline}
	}
	u.Cursor = &protocol.Cursor{X: p.X, Y: p.Y}
	u.LastSeen = now
	b.Users[user] = u
}

func (t *Tracker) onLocked(env protocol.Envelope) {
	var p protocol.CardLockPayload
	if !t.decode(env, &p) {
		return
	}
	user, ok := sender(p.UserID, env)
	if !ok {
		return
	}
	at := t.clock.Now()
	if p.LockedAt != nil {
		at = *p.LockedAt
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.boardLocked(p.RoomID).Locks[p.CardID] = CardLock{UserID: user, LockedAt: at}
}

func (t *Tracker) onUnlocked(env protocol.Envelope) {
	var p protocol.CardLockPayload
	if !t.decode(env, &p) {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if b, ok := t.rooms[p.RoomID]; ok {
		delete(b.Locks, p.CardID)
	}
}

func (t *Tracker) onTypingStart(env protocol.Envelope) {
	var p protocol.TypingPayload
	if !t.decode(env, &p) || p.RoomID == nil {
		return
	}
	user, ok := sender(p.UserID, env)
	if !ok {
		return
	}
	now := t.clock.Now()

	t.mu.Lock()
	defer t.mu.Unlock()
	t.boardLocked(*p.RoomID).Typing[p.CardID] = TypingIndicator{UserID: user, TypingAt: now}
}

func (t *Tracker) onTypingStop(env protocol.Envelope) {
	var p protocol.TypingPayload
	if !t.decode(env, &p) || p.RoomID == nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if b, ok := t.rooms[*p.RoomID]; ok {
		delete(b.Typing, p.CardID)
	}
}

func (t *Tracker) onDisconnect(protocol.Envelope) {
	t.Reset()
}
