package coretest

import (
	"context"
	"sync"

	"github.com/dkeye/Howdy/internal/core"
	"github.com/dkeye/Howdy/internal/domain"
)

// Link is an in-memory RelayLink. Deliver and Drop simulate the remote side.
type Link struct {
	mu sync.Mutex

	ID      domain.Identity
	Sent    []core.Envelope
	SendErr  error
	CloseErr error
	closed   bool

	onMessage func(core.Envelope)
	onClose   func(error)
	closeOnce sync.Once
}

func (l *Link) Send(env core.Envelope) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return domain.ErrLinkUnavailable
	}
	if l.SendErr != nil {
		return l.SendErr
	}
	l.Sent = append(l.Sent, env)
	return nil
}

func (l *Link) OnMessage(fn func(core.Envelope)) {
	l.mu.Lock()
	l.onMessage = fn
	l.mu.Unlock()
}

func (l *Link) OnClose(fn func(error)) {
	l.mu.Lock()
	l.onClose = fn
	l.mu.Unlock()
}

func (l *Link) Close() error {
	l.Drop(nil)
	return l.CloseErr
}

// Deliver hands env to the message callback as if it came from the relay.
func (l *Link) Deliver(env core.Envelope) {
	l.mu.Lock()
	fn := l.onMessage
	l.mu.Unlock()
	if fn != nil {
		fn(env)
	}
}

// Drop closes the link from the relay side.
func (l *Link) Drop(err error) {
	l.closeOnce.Do(func() {
		l.mu.Lock()
		l.closed = true
		fn := l.onClose
		l.mu.Unlock()
		if fn != nil {
			fn(err)
		}
	})
}

func (l *Link) IsClosed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

// SentEnvelopes returns a copy of every envelope sent so far.
func (l *Link) SentEnvelopes() []core.Envelope {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]core.Envelope(nil), l.Sent...)
}

// SentOfType filters SentEnvelopes by type.
func (l *Link) SentOfType(t core.EnvelopeType) []core.Envelope {
	var out []core.Envelope
	for _, env := range l.SentEnvelopes() {
		if env.Type() == t {
			out = append(out, env)
		}
	}
	return out
}

// Dialer returns Link on every Dial, or Err. OnDial runs inside a
// successful Dial before it returns.
type Dialer struct {
	mu sync.Mutex

	Link   *Link
	Err    error
	Dials  int
	OnDial func()
}

func (d *Dialer) Dial(_ context.Context, id domain.Identity) (core.RelayLink, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Dials++
	if d.Err != nil {
		return nil, d.Err
	}
	if d.Link == nil {
		d.Link = &Link{}
	}
	d.Link.ID = id
	if d.OnDial != nil {
		d.OnDial()
	}
	return d.Link, nil
}

func (d *Dialer) DialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.Dials
}
