package core

import "github.com/dkeye/voicemesh/internal/signaling"

// Frame is a raw binary payload.
type Frame []byte

// SignalConnection abstracts for a system messaging transport
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}

// Relay is the outbound half of the client's signaling channel.
type Relay interface {
	Send(signaling.Event) error
}
