// Package core holds the seams between the call switchboard and the outside:
// the transport a participant is reached through, the events pushed to it and
// the collaborators consulted before acting.
package core

import "errors"

// Frame is a raw encoded message.
type Frame []byte

var (
	ErrBackpressure = errors.New("backpressure")
	ErrConnClosed   = errors.New("connection closed")
)

// SignalConnection abstracts for a system messaging transport
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}
