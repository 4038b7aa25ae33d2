package core

import (
	"context"

	"github.com/dkeye/Howdy/internal/domain"
)

// Frame is a raw text payload.
type Frame []byte

// SignalConnection abstracts for a system messaging transport
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}

// RelayLink is the client side of the relay channel for one local identity.
// OnMessage and OnClose callbacks may run on any goroutine; OnClose fires once.
type RelayLink interface {
	Send(Envelope) error
	OnMessage(func(Envelope))
	OnClose(func(error))
	Close() error
}

// LinkDialer opens a RelayLink addressed by identity. No retry is attempted.
type LinkDialer interface {
	Dial(ctx context.Context, id domain.Identity) (RelayLink, error)
}
