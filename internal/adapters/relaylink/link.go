// Package relaylink is the client side of the relay: one WebSocket per local
// identity at <base>/ws/<identity>.
package relaylink

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"

	"github.com/dkeye/Howdy/internal/core"
	"github.com/dkeye/Howdy/internal/domain"
)

const writeWait = 5 * time.Second

var errSendBufferFull = errors.New("send buffer full")

type Dialer struct {
	BaseURL    string
	WS         *websocket.Dialer
	ReadLimit  int64
	SendBuffer int
}

func NewDialer(baseURL string) *Dialer {
	return &Dialer{BaseURL: baseURL}
}

// Address derives the link URL from id; the identity is a path segment.
func (d *Dialer) Address(id domain.Identity) (string, error) {
	u, err := url.Parse(d.BaseURL)
	if err != nil {
		return "", fmt.Errorf("relay url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	return u.JoinPath("ws", url.PathEscape(id.String())).String(), nil
}

func (d *Dialer) Dial(ctx context.Context, id domain.Identity) (core.RelayLink, error) {
	addr, err := d.Address(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrLinkUnavailable, err)
	}
	ws := d.WS
	if ws == nil {
		ws = websocket.DefaultDialer
	}
	conn, _, err := ws.DialContext(ctx, addr, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %w", domain.ErrLinkUnavailable, addr, err)
	}
	if d.ReadLimit > 0 {
		conn.SetReadLimit(d.ReadLimit)
	}
	buf := d.SendBuffer
	if buf <= 0 {
		buf = 64
	}

	l := &Link{
		conn:   conn,
		send:   make(chan []byte, buf),
		done:   make(chan struct{}),
		ready:  make(chan struct{}),
		logger: log.With().Str("module", "relaylink").Str("id", id.String()).Logger(),
	}
	l.wg.Go(l.readPump)
	l.wg.Go(l.writePump)
	l.logger.Info().Str("addr", addr).Msg("link open")
	return l, nil
}

// Link delivers nothing until OnMessage is registered, so no envelope is lost
// between Dial and wiring.
type Link struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}

	ready     chan struct{}
	readyOnce sync.Once
	closeOnce sync.Once
	wg        conc.WaitGroup

	mu        sync.Mutex
	onMessage func(core.Envelope)
	onClose   func(error)
	closed    bool
	closeErr  error
	notified  bool

	logger zerolog.Logger
}

func (l *Link) Send(env core.Envelope) error {
	data, err := core.Encode(env)
	if err != nil {
		return err
	}
	select {
	case <-l.done:
		return domain.ErrLinkUnavailable
	default:
	}
	select {
	case l.send <- data:
		return nil
	case <-l.done:
		return domain.ErrLinkUnavailable
	default:
		return fmt.Errorf("%w: %w", domain.ErrLinkUnavailable, errSendBufferFull)
	}
}

func (l *Link) OnMessage(fn func(core.Envelope)) {
	l.mu.Lock()
	l.onMessage = fn
	l.mu.Unlock()
	l.readyOnce.Do(func() { close(l.ready) })
}

// OnClose fires fn exactly once, immediately if the link is already closed.
func (l *Link) OnClose(fn func(error)) {
	l.mu.Lock()
	l.onClose = fn
	l.mu.Unlock()
	l.notify()
}

// Close shuts the link down and waits for its pumps. It must not be called
// from a link callback.
func (l *Link) Close() error {
	_ = l.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
	l.shutdown(nil)
	l.wg.Wait()
	return nil
}

func (l *Link) shutdown(err error) {
	l.closeOnce.Do(func() {
		l.mu.Lock()
		l.closed = true
		l.closeErr = err
		l.mu.Unlock()
		close(l.done)
		_ = l.conn.Close()
		if err != nil {
			l.logger.Warn().Err(err).Msg("link closed")
		} else {
			l.logger.Info().Msg("link closed")
		}
	})
	l.notify()
}

func (l *Link) notify() {
	l.mu.Lock()
	if !l.closed || l.notified || l.onClose == nil {
		l.mu.Unlock()
		return
	}
	l.notified = true
	fn, err := l.onClose, l.closeErr
	l.mu.Unlock()
	fn(err)
}

func (l *Link) readPump() {
	select {
	case <-l.ready:
	case <-l.done:
		return
	}
	for {
		_, data, err := l.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				err = nil
			}
			select {
			case <-l.done:
				err = nil
			default:
			}
			l.shutdown(err)
			return
		}
		env, err := core.Decode(data)
		if err != nil {
			l.logger.Warn().Err(err).Int("len", len(data)).Msg("dropped inbound envelope")
			continue
		}
		l.mu.Lock()
		fn := l.onMessage
		l.mu.Unlock()
		fn(env)
	}
}

func (l *Link) writePump() {
	for {
		select {
		case <-l.done:
			return
		case data := <-l.send:
			if err := l.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				l.shutdown(err)
				return
			}
			if err := l.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				l.shutdown(err)
				return
			}
		}
	}
}
