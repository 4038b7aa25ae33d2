package orch

import (
	"context"
	"errors"
	"fmt"

	"github.com/dkeye/Howdy/internal/app/callstate"
	"github.com/dkeye/Howdy/internal/app/negotiate"
	"github.com/dkeye/Howdy/internal/core"
	"github.com/dkeye/Howdy/internal/domain"
)

// Call starts an outbound round towards remote. Only one call can be placed
// from idle at a time. Failures are returned, never also raised as a Notice.
func (o *Orchestrator) Call(ctx context.Context, remote domain.Identity) error {
	return o.do(ctx, func() error { return o.call(remote) })
}

// EndCall hangs up the current round. Ending while idle is a no-op.
func (o *Orchestrator) EndCall(ctx context.Context) error {
	return o.do(ctx, func() error {
		if !o.machine.Status().Active() {
			return nil
		}
		o.hangup(core.ReasonEnded)
		o.finish(callstate.EventHangup)
		return nil
	})
}

func (o *Orchestrator) call(remote domain.Identity) error {
	switch {
	case remote.IsZero():
		return domain.ErrIdentityEmpty
	case remote == o.self:
		return domain.ErrSelfCall
	case o.link == nil:
		return domain.ErrLinkUnavailable
	case o.machine.Status().Active():
		return domain.ErrBusy
	}

	o.remote = remote
	if _, err := o.machine.Fire(callstate.EventDial); err != nil {
		o.remote = ""
		return err
	}
	o.begin(remote)
	defer o.emitChange()

	// Failures here are returned to the caller instead of raised as notices.
	offer, err := o.engine.StartAsCaller(remote)
	if err != nil {
		o.fail()
		return err
	}
	if err := o.send(offer); err != nil {
		o.fail()
		return err
	}
	o.announced = true
	o.fire(callstate.EventOfferSent)
	return nil
}

// onOffer answers an inbound offer while idle. Offers received during a round
// are declined with a busy hangup; when both sides dial each other at once,
// both decline and both return to idle.
func (o *Orchestrator) onOffer(e core.Offer) {
	if e.From.IsZero() {
		o.logger.Warn().Msg("offer without sender dropped")
		return
	}
	if o.machine.Status().Active() {
		o.logger.Info().Str("from", e.From.String()).Str("status", string(o.machine.Status())).Msg("busy, declining offer")
		if err := o.send(core.Hangup{To: e.From, Reason: core.ReasonBusy}); err != nil {
			o.logger.Debug().Err(err).Msg("busy hangup not delivered")
		}
		return
	}

	o.remote = e.From
	if !o.fire(callstate.EventOfferReceived) {
		o.remote = ""
		return
	}
	o.begin(e.From)
	o.announced = true

	answer, err := o.engine.StartAsCallee(e)
	if err != nil {
		o.abort(err)
		return
	}
	if err := o.send(answer); err != nil {
		o.abort(err)
		return
	}
	o.fire(callstate.EventAnswerSent)
	o.markConnected()
}

func (o *Orchestrator) onAnswer(e core.Answer) {
	if o.machine.Status() != domain.StatusCalling || e.From != o.remote {
		o.logger.Debug().Str("from", e.From.String()).Str("status", string(o.machine.Status())).Msg("stale answer dropped")
		return
	}
	if err := o.engine.CompleteAsCaller(e); err != nil {
		o.abort(err)
		return
	}
	o.fire(callstate.EventAnswerReceived)
	o.markConnected()
}

// onICE hands the candidate to the engine. While idle the engine holds it for
// an offer from the same sender.
func (o *Orchestrator) onICE(e core.ICE) {
	applied, err := o.engine.ApplyCandidate(e.From, e.Candidate)
	switch {
	case err == nil:
		o.logger.Debug().Str("from", e.From.String()).Bool("applied", applied).Msg("remote candidate")
	case errors.Is(err, negotiate.ErrForeignCandidate):
		o.logger.Debug().Err(err).Msg("candidate dropped")
	default:
		o.abort(err)
	}
}

func (o *Orchestrator) onTranscript(e core.Transcript) {
	if !o.machine.Status().Active() || e.From != o.remote {
		o.logger.Debug().Str("from", e.From.String()).Msg("transcript outside call dropped")
		return
	}
	o.speech.Receive(e.Text)
}

func (o *Orchestrator) onHangup(e core.Hangup) {
	if !o.machine.Status().Active() || e.From != o.remote {
		return
	}
	o.logger.Info().Str("from", e.From.String()).Str("reason", e.Reason).Msg("remote hung up")
	switch e.Reason {
	case core.ReasonBusy:
		o.notify(domain.ErrBusy)
	case core.ReasonFailed:
		o.notify(fmt.Errorf("%w: remote failed", domain.ErrNegotiationFailure))
	}
	o.announced = false
	o.finish(callstate.EventRemoteHangup)
}
