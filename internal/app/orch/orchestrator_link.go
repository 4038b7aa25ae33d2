package orch

import (
	"context"
	"errors"
	"fmt"

	"github.com/dkeye/Howdy/internal/app/callstate"
	"github.com/dkeye/Howdy/internal/core"
	"github.com/dkeye/Howdy/internal/domain"
)

// Connect opens the relay link for the local identity. It is a no-op while a
// link is open or being dialed. There is no reconnect: after the link closes
// the caller decides whether to Connect again. A dial failure is returned,
// not raised as a Notice.
func (o *Orchestrator) Connect(ctx context.Context) error {
	skip := false
	err := o.do(ctx, func() error {
		if o.link != nil || o.dialing {
			skip = true
			return nil
		}
		o.dialing = true
		return nil
	})
	if err != nil || skip {
		return err
	}

	// Dial outside the loop; inbound work keeps flowing meanwhile.
	link, dialErr := o.dialer.Dial(ctx, o.self)

	return o.do(context.WithoutCancel(ctx), func() error {
		o.dialing = false
		if dialErr != nil {
			err := dialErr
			if !errors.Is(err, domain.ErrLinkUnavailable) {
				err = fmt.Errorf("%w: %w", domain.ErrLinkUnavailable, dialErr)
			}
			o.logger.Warn().Err(err).Msg("relay dial failed")
			o.emitChange()
			return err
		}
		if ctx.Err() != nil {
			if err := link.Close(); err != nil {
				o.logger.Debug().Err(err).Msg("link close")
			}
			return ctx.Err()
		}
		o.attach(link)
		return nil
	})
}

func (o *Orchestrator) attach(link core.RelayLink) {
	o.link = link
	o.linkGen++
	gen := o.linkGen

	link.OnMessage(func(env core.Envelope) {
		o.box.post(func() {
			if gen != o.linkGen {
				return
			}
			o.dispatch(env)
			o.emitChange()
		})
	})
	link.OnClose(func(err error) {
		o.box.post(func() {
			if gen != o.linkGen {
				return
			}
			o.linkClosed(err)
		})
	})
	o.logger.Info().Msg("relay link open")
	o.emitChange()
}

// detach forgets the current link; callbacks from it become stale.
func (o *Orchestrator) detach() {
	o.link = nil
	o.linkGen++
}

// linkClosed ends the call in progress; resources may already be gone.
func (o *Orchestrator) linkClosed(err error) {
	o.detach()
	o.logger.Warn().Err(err).Msg("relay link closed")
	if o.machine.Status().Active() {
		o.notify(domain.ErrLinkUnavailable)
		o.finish(callstate.EventLinkClosed)
	}
	o.emitChange()
}

func (o *Orchestrator) dispatch(env core.Envelope) {
	switch e := env.(type) {
	case core.Offer:
		o.onOffer(e)
	case core.Answer:
		o.onAnswer(e)
	case core.ICE:
		o.onICE(e)
	case core.Transcript:
		o.onTranscript(e)
	case core.Hangup:
		o.onHangup(e)
	case core.Error:
		o.onRelayError(e)
	default:
		o.logger.Warn().Str("type", string(env.Type())).Msg("unhandled envelope")
	}
}

func (o *Orchestrator) onRelayError(e core.Error) {
	o.logger.Warn().Str("code", e.Code).Str("peer", e.From.String()).Str("error", e.Message).Msg("relay error")
	switch e.Code {
	case core.CodePeerOffline:
		if e.From != o.remote {
			return
		}
		switch o.machine.Status() {
		case domain.StatusConnecting, domain.StatusCalling:
			o.announced = false
			o.notify(domain.ErrPeerOffline)
			o.finish(callstate.EventAbort)
		}
	default:
		o.notify(fmt.Errorf("%w: relay rejected envelope: %s", domain.ErrLinkUnavailable, e.Code))
	}
}
