// Package protocol defines the JSON envelope exchanged between a board
// client and the collaboration server.
//
// Every frame is a single JSON text message:
//
//	{ "kind": "card_moved",
//	  "payload": {"roomId": 42, "cardId": 7, "fromColumnId": 1, "toColumnId": 2, "position": 0},
//	  "emittedAt": "2026-01-02T15:04:05Z",
//	  "sessionId": "1b4e28ba-2fa1-11d2-883f-0016d3cca427",
//	  "userId": 9 }
//
// # Kinds
//
// Kind is a closed enumeration known to both peers. Decode maps names
// outside the vocabulary to KindUnknown and keeps the original name in
// Envelope.RawKind, so a newer server can introduce kinds without breaking
// older clients. Encode refuses unknown kinds.
//
// The kinds connect, disconnect, reconnect and error are synthetic: the
// client dispatches them locally to report lifecycle changes and never
// sends them.
//
// # Payloads
//
// Payloads stay as json.RawMessage on the envelope. The typed payload
// structs in this package (CardMovePayload, CursorPayload, ...) are
// decoded on demand with Envelope.DecodePayload.
package protocol
