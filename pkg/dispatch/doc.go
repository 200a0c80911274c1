// Package dispatch routes inbound envelopes to application handlers.
//
// A Registry maps each protocol.Kind to an ordered set of handlers:
//
//	reg := dispatch.New(dispatch.WithLogger(logger))
//	moved := dispatch.Func(func(env protocol.Envelope) {
//	    var p protocol.CardMovePayload
//	    if err := env.DecodePayload(&p); err == nil {
//	        board.ApplyMove(p)
//	    }
//	})
//	reg.Subscribe(protocol.KindCardMoved, moved)
//	defer reg.Unsubscribe(protocol.KindCardMoved, moved)
//
// Every matching handler is invoked for every envelope, in the order it
// was subscribed. A panic in one handler is recovered and logged and does
// not prevent the others from running. Envelopes whose kind is unknown
// reach observers but no handler.
package dispatch
