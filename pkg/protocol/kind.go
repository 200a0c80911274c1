package protocol

// Kind identifies the type of an envelope. The vocabulary is closed and
// versioned: both peers know every kind at build time. Names that are not
// in the vocabulary decode to KindUnknown and are never dispatched.
type Kind uint8

const (
	KindUnknown Kind = iota

	// Synthetic lifecycle events, dispatched locally by the client.
	KindConnect
	KindDisconnect
	KindReconnect
	KindError

	// Room membership
	KindJoinBoard
	KindLeaveBoard

	// Board and card updates
	KindBoardUpdate
	KindCardMoved
	KindCardCreated
	KindCardUpdated
	KindCardDeleted
	KindCardLocked
	KindCardUnlocked

	// Columns
	KindColumnCreated
	KindColumnUpdated
	KindColumnDeleted
	KindColumnReordered

	// Presence
	KindUserJoined
	KindUserLeft
	KindUserPresenceUpdate
	KindCursorUpdate
	KindTypingStart
	KindTypingStop

	// Agents and workflows
	KindAgentCreated
	KindAgentUpdated
	KindAgentTaskAssigned
	KindAgentTaskCompleted
	KindWorkflowExecuted
	KindWorkflowCompleted
	KindWorkflowFailed

	// System
	KindSystemMessage
	KindNotification
	KindPing
	KindPong

	kindCount
)

var kindNames = [kindCount]string{
	KindUnknown:            "unknown",
	KindConnect:            "connect",
	KindDisconnect:         "disconnect",
	KindReconnect:          "reconnect",
	KindError:              "error",
	KindJoinBoard:          "join_board",
	KindLeaveBoard:         "leave_board",
	KindBoardUpdate:        "board_update",
	KindCardMoved:          "card_moved",
	KindCardCreated:        "card_created",
	KindCardUpdated:        "card_updated",
	KindCardDeleted:        "card_deleted",
	KindCardLocked:         "card_locked",
	KindCardUnlocked:       "card_unlocked",
	KindColumnCreated:      "column_created",
	KindColumnUpdated:      "column_updated",
	KindColumnDeleted:      "column_deleted",
	KindColumnReordered:    "column_reordered",
	KindUserJoined:         "user_joined",
	KindUserLeft:           "user_left",
	KindUserPresenceUpdate: "user_presence_update",
	KindCursorUpdate:       "cursor_update",
	KindTypingStart:        "typing_start",
	KindTypingStop:         "typing_stop",
	KindAgentCreated:       "agent_created",
	KindAgentUpdated:       "agent_updated",
	KindAgentTaskAssigned:  "agent_task_assigned",
	KindAgentTaskCompleted: "agent_task_completed",
	KindWorkflowExecuted:   "workflow_executed",
	KindWorkflowCompleted:  "workflow_completed",
	KindWorkflowFailed:     "workflow_failed",
	KindSystemMessage:      "system_message",
	KindNotification:       "notification",
	KindPing:               "ping",
	KindPong:               "pong",
}

var kindsByName = func() map[string]Kind {
	m := make(map[string]Kind, kindCount)
	for k := KindConnect; k < kindCount; k++ {
		m[kindNames[k]] = k
	}
	return m
}()

// String returns the wire name of the kind.
func (k Kind) String() string {
	if k >= kindCount {
		return kindNames[KindUnknown]
	}
	return kindNames[k]
}

// Known reports whether k is part of the vocabulary.
func (k Kind) Known() bool {
	return k > KindUnknown && k < kindCount
}

// Local reports whether k is a synthetic lifecycle event that is produced
// by the client itself rather than received from the server.
func (k Kind) Local() bool {
	switch k {
	case KindConnect, KindDisconnect, KindReconnect, KindError:
		return true
	default:
		return false
	}
}

// ParseKind maps a wire name to its Kind. The boolean is false for names
// outside the vocabulary, in which case KindUnknown is returned.
func ParseKind(name string) (Kind, bool) {
	k, ok := kindsByName[name]
	if !ok {
		return KindUnknown, false
	}
	return k, true
}

// Kinds returns every known kind in declaration order.
func Kinds() []Kind {
	out := make([]Kind, 0, kindCount-1)
	for k := KindConnect; k < kindCount; k++ {
		out = append(out, k)
	}
	return out
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	if !k.Known() {
		return nil, ErrUnknownKind
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Unknown names decode
// to KindUnknown without error so newer servers can add kinds first.
func (k *Kind) UnmarshalText(text []byte) error {
	*k, _ = ParseKind(string(text))
	return nil
}
