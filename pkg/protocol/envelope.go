package protocol

import (
	"bytes"
	"encoding/json"
	"time"
)

// Envelope is the tagged message exchanged over the duplex channel.
// Envelopes are values: they are built at send time or when an inbound
// frame is parsed and are not modified afterwards.
//
// Wire format (one JSON object per text frame):
//
//	{ "kind": string, "payload": any (usually an object), "emittedAt": RFC 3339 string,
//	  "sessionId"?: string, "userId"?: number }
type Envelope struct {
	Kind Kind

	// RawKind is the kind name exactly as received. It differs from
	// Kind.String() only when Kind is KindUnknown.
	RawKind string

	Payload   json.RawMessage
	EmittedAt time.Time
	SessionID string
	UserID    *UserID
}

type wireEnvelope struct {
	Kind      string          `json:"kind"`
	Payload   json.RawMessage `json:"payload"`
	EmittedAt time.Time       `json:"emittedAt"`
	SessionID string          `json:"sessionId,omitempty"`
	UserID    *UserID         `json:"userId,omitempty"`
}

var emptyPayload = json.RawMessage("{}")

// NewEnvelope builds an envelope of the given kind, marshaling payload to
// JSON. A nil payload becomes an empty object.
func NewEnvelope(kind Kind, payload any, emittedAt time.Time) (Envelope, error) {
	if !kind.Known() {
		return Envelope{}, ErrUnknownKind
	}
	raw := emptyPayload
	if payload != nil {
		switch p := payload.(type) {
		case json.RawMessage:
			raw = p
		default:
			data, err := json.Marshal(payload)
			if err != nil {
				return Envelope{}, err
			}
			raw = data
		}
	}
	return Envelope{
		Kind:      kind,
		RawKind:   kind.String(),
		Payload:   raw,
		EmittedAt: emittedAt.UTC(),
	}, nil
}

// WithOrigin returns a copy of the envelope stamped with the sender's
// session and user.
func (e Envelope) WithOrigin(sessionID string, userID *UserID) Envelope {
	e.SessionID = sessionID
	if userID != nil {
		id := *userID
		e.UserID = &id
	}
	return e
}

// DecodePayload unmarshals the payload into v.
func (e Envelope) DecodePayload(v any) error {
	if len(e.Payload) == 0 || bytes.Equal(e.Payload, []byte("null")) {
		return nil
	}
	return json.Unmarshal(e.Payload, v)
}

// Name returns the wire name of the envelope kind, preserving unknown
// names.
func (e Envelope) Name() string {
	if e.RawKind != "" {
		return e.RawKind
	}
	return e.Kind.String()
}

// Encode serializes an envelope into a single JSON frame.
func Encode(e Envelope) ([]byte, error) {
	if !e.Kind.Known() {
		return nil, ErrUnknownKind
	}
	payload := e.Payload
	if len(payload) == 0 {
		payload = emptyPayload
	}
	return json.Marshal(wireEnvelope{
		Kind:      e.Kind.String(),
		Payload:   payload,
		EmittedAt: e.EmittedAt,
		SessionID: e.SessionID,
		UserID:    e.UserID,
	})
}

// Decode parses a JSON frame into an envelope. Frames with an unrecognized
// kind decode successfully with Kind set to KindUnknown. The payload may be
// any JSON value; a shape mismatch surfaces when a handler calls
// DecodePayload. Frames that are not JSON objects, lack a kind or nest too
// deeply return an error wrapping ErrMalformedFrame.
func Decode(data []byte) (Envelope, error) {
	if len(data) > MaxFrameSize {
		return Envelope{}, ErrFrameTooLarge
	}
	var w wireEnvelope
	if err := json.Unmarshal(data, &w); err != nil {
		return Envelope{}, malformed("invalid json", err)
	}
	if w.Kind == "" {
		return Envelope{}, malformed("missing kind", nil)
	}
	if len(w.Payload) > 0 {
		if payloadDepth(w.Payload) > MaxPayloadDepth {
			return Envelope{}, malformed("payload nested too deeply", nil)
		}
	}

	kind, _ := ParseKind(w.Kind)
	return Envelope{
		Kind:      kind,
		RawKind:   w.Kind,
		Payload:   w.Payload,
		EmittedAt: w.EmittedAt,
		SessionID: w.SessionID,
		UserID:    w.UserID,
	}, nil
}
