package protocol

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestEncodeWireShape(t *testing.T) {
	at := time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC)
	env, err := NewEnvelope(KindJoinBoard, RoomPayload{RoomID: 42}, at)
	if err != nil {
		t.Fatalf("NewEnvelope: %v", err)
	}
	uid := UserID(9)
	env = env.WithOrigin("sess-1", &uid)

	data, err := Encode(env)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got["kind"] != "join_board" {
		t.Errorf("kind=%v, want join_board", got["kind"])
	}
	if got["emittedAt"] != "2026-01-02T15:04:05Z" {
		t.Errorf("emittedAt=%v", got["emittedAt"])
	}
	if got["sessionId"] != "sess-1" {
		t.Errorf("sessionId=%v", got["sessionId"])
	}
	if got["userId"] != float64(9) {
		t.Errorf("userId=%v", got["userId"])
	}
	payload, ok := got["payload"].(map[string]any)
	if !ok || payload["roomId"] != float64(42) {
		t.Errorf("payload=%v, want roomId 42", got["payload"])
	}
}

func TestEncodeOmitsOptionalOrigin(t *testing.T) {
	env, _ := NewEnvelope(KindPing, nil, time.Now())
	data, err := Encode(env)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	s := string(data)
	if strings.Contains(s, "sessionId") || strings.Contains(s, "userId") {
		t.Fatalf("unexpected origin fields in %s", s)
	}
	if !strings.Contains(s, `"payload":{}`) {
		t.Fatalf("nil payload should encode as {}: %s", s)
	}
}

func TestEncodeRejectsUnknownKind(t *testing.T) {
	if _, err := Encode(Envelope{Kind: KindUnknown}); !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("Encode(unknown) err=%v, want ErrUnknownKind", err)
	}
	if _, err := NewEnvelope(KindUnknown, nil, time.Now()); !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("NewEnvelope(unknown) err=%v, want ErrUnknownKind", err)
	}
}

func TestDecodeKnownKind(t *testing.T) {
	frame := `{"kind":"card_moved","payload":{"roomId":42,"cardId":7,"fromColumnId":1,"toColumnId":2,"position":3},"emittedAt":"2026-01-02T15:04:05Z","userId":5}`
	env, err := Decode([]byte(frame))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if env.Kind != KindCardMoved {
		t.Fatalf("Kind=%v, want card_moved", env.Kind)
	}
	if env.UserID == nil || *env.UserID != 5 {
		t.Fatalf("UserID=%v, want 5", env.UserID)
	}

	var p CardMovePayload
	if err := env.DecodePayload(&p); err != nil {
		t.Fatalf("DecodePayload: %v", err)
	}
	want := CardMovePayload{RoomID: 42, CardID: 7, FromColumnID: 1, ToColumnID: 2, Position: 3}
	if p != want {
		t.Fatalf("payload=%+v, want %+v", p, want)
	}
}

func TestDecodeUnknownKindIsNotAnError(t *testing.T) {
	env, err := Decode([]byte(`{"kind":"card_teleported","payload":{}}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if env.Kind != KindUnknown {
		t.Fatalf("Kind=%v, want KindUnknown", env.Kind)
	}
	if env.Name() != "card_teleported" {
		t.Fatalf("Name()=%q, want card_teleported", env.Name())
	}
}

func TestDecodeAcceptsAnyPayloadValue(t *testing.T) {
	tests := []struct {
		name    string
		frame   string
		payload string
	}{
		{"array", `{"kind":"card_moved","payload":[1,2]}`, `[1,2]`},
		{"string", `{"kind":"ping","payload":"x"}`, `"x"`},
		{"number", `{"kind":"pong","payload":7}`, `7`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := Decode([]byte(tt.frame))
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if string(env.Payload) != tt.payload {
				t.Fatalf("Payload=%s, want %s", env.Payload, tt.payload)
			}
		})
	}

	env, _ := Decode([]byte(`{"kind":"card_moved","payload":[1,2]}`))
	var p CardMovePayload
	if err := env.DecodePayload(&p); err == nil {
		t.Fatal("DecodePayload into a struct accepted an array")
	}
}

func TestDecodeMalformed(t *testing.T) {
	tests := []struct {
		name  string
		frame string
	}{
		{"not json", `hello`},
		{"array", `[1,2,3]`},
		{"missing kind", `{"payload":{}}`},
		{"bad timestamp", `{"kind":"ping","emittedAt":"yesterday"}`},
		{"deep payload", `{"kind":"ping","payload":` + strings.Repeat(`{"a":`, MaxPayloadDepth+1) + `1` + strings.Repeat(`}`, MaxPayloadDepth+1) + `}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.frame))
			if !errors.Is(err, ErrMalformedFrame) {
				t.Fatalf("Decode err=%v, want ErrMalformedFrame", err)
			}
		})
	}
}

func TestDecodeTooLarge(t *testing.T) {
	big := make([]byte, MaxFrameSize+1)
	if _, err := Decode(big); !errors.Is(err, ErrFrameTooLarge) {
		t.Fatalf("Decode err=%v, want ErrFrameTooLarge", err)
	}
}

func TestPayloadDepthIgnoresStrings(t *testing.T) {
	if d := payloadDepth([]byte(`{"a":"{{{[[["}`)); d != 1 {
		t.Fatalf("payloadDepth=%d, want 1", d)
	}
	if d := payloadDepth([]byte(`{"a":"\"{","b":[{}]}`)); d != 3 {
		t.Fatalf("payloadDepth=%d, want 3", d)
	}
}

func TestPresenceStatusValid(t *testing.T) {
	for _, s := range []PresenceStatus{StatusOnline, StatusIdle, StatusAway} {
		if !s.Valid() {
			t.Errorf("%q.Valid()=false", s)
		}
	}
	if PresenceStatus("busy").Valid() {
		t.Error(`"busy".Valid()=true`)
	}
}
