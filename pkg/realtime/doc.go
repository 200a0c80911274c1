// Package realtime is the client side of the board collaboration channel:
// one WebSocket connection per Client, with reconnection, heartbeats and
// room membership.
//
// # Lifecycle
//
//	disconnected -> connecting -> connected -> (unclean close) -> reconnecting -> connecting ...
//	connected -> Disconnect() -> closing -> disconnected
//
// Connect is idempotent and concurrent callers share one dial. After an
// unclean close (any code other than 1000 or 1001) the Client retries with
// exponential backoff until MaxReconnectAttempts is reached, then emits a
// single fatal error event and stays disconnected.
//
// # Events
//
// Inbound envelopes and the synthetic connect, disconnect, reconnect and
// error events are delivered through a dispatch.Registry:
//
//	client, _ := realtime.New(realtime.DefaultConfig().WithURL("wss://api.example.com/ws"),
//		realtime.WithTokenSource(realtime.StaticToken(token)))
//	client.Registry().SubscribeFunc(protocol.KindCardMoved, func(env protocol.Envelope) {
//		var p protocol.CardMovePayload
//		_ = env.DecodePayload(&p)
//	})
//	if err := client.JoinRoom(ctx, 42); err != nil { ... }
//
// Outbound messages are never queued. Send returns ErrNotConnected when
// the channel is not open.
package realtime
