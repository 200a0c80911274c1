// Package collab implements the collaborative editing protocol on top of
// a realtime.Client: typed senders for card broadcasts, advisory card
// locks, cursors, typing indicators and presence, plus a Tracker that
// rebuilds each room's BoardCollaboration snapshot from inbound events.
//
// Locks and typing indicators are advisory. Nothing here prevents a peer
// from editing a card another peer has locked; the server arbitrates.
//
// Senders never queue. When the channel is not connected the message is
// dropped with a logged warning and realtime.ErrNotConnected is returned.
package collab
