package app

import (
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Howdy/internal/core"
	"github.com/dkeye/Howdy/internal/domain"
)

// Limiter admits or refuses one inbound frame of a sender. Forget drops the
// sender's state once it goes offline.
type Limiter interface {
	Allow(domain.Identity) bool
	Forget(domain.Identity)
}

// Hub routes envelopes between bound identities. The relay never interprets
// a call; it only validates, stamps the sender and forwards.
type Hub struct {
	Registry *Registry
	Policy   Policy
	Limiter  Limiter
}

func (h *Hub) OnFrame(from domain.Identity, data core.Frame) {
	if h.Limiter != nil && !h.Limiter.Allow(from) {
		h.reply(from, core.Error{To: from, Code: core.CodeRateLimited, Message: "too many messages"})
		return
	}

	env, err := core.Decode(data)
	if err == nil && env.Type() == core.TypeError {
		err = errors.New("error envelopes are relay-originated")
	}
	if err == nil && env.Header().To.IsZero() {
		err = errors.New("missing recipient")
	}
	if err != nil {
		log.Warn().Str("module", "app.hub").Str("from", from.String()).Err(err).Msg("rejected envelope")
		h.reply(from, core.Error{To: from, Code: core.CodeBadEnvelope, Message: err.Error()})
		return
	}

	to := env.Header().To
	conn, ok := h.Registry.Get(to)
	if !ok {
		log.Debug().Str("module", "app.hub").Str("from", from.String()).Str("to", to.String()).Msg("recipient offline")
		h.reply(from, core.Error{To: from, From: to, Code: core.CodePeerOffline, Message: "peer offline"})
		return
	}

	out, err := core.Encode(core.WithFrom(env, from))
	if err != nil {
		log.Error().Str("module", "app.hub").Err(err).Msg("encode")
		return
	}
	if err := conn.TrySend(out); err != nil {
		h.onSendFailure(to, err)
		return
	}
	log.Debug().Str("module", "app.hub").Str("type", string(env.Type())).Str("from", from.String()).Str("to", to.String()).Msg("routed")
}

// Release unbinds connID from id. The sender's limiter state goes with it,
// unless a newer connection already took the identity over.
func (h *Hub) Release(id domain.Identity, connID string) bool {
	if !h.Registry.Unbind(id, connID) {
		return false
	}
	if h.Limiter != nil {
		h.Limiter.Forget(id)
	}
	return true
}

func (h *Hub) onSendFailure(to domain.Identity, err error) {
	if h.Policy == nil {
		return
	}
	switch h.Policy.OnBackPressure(to) {
	case KickMember:
		log.Warn().Str("module", "app.hub").Str("to", to.String()).Err(err).Msg("slow peer kicked")
		h.Registry.Kick(to)
	case DropFrame, NoAction:
		log.Debug().Str("module", "app.hub").Str("to", to.String()).Err(err).Msg("frame dropped")
	}
}

func (h *Hub) reply(to domain.Identity, e core.Error) {
	conn, ok := h.Registry.Get(to)
	if !ok {
		return
	}
	data, err := core.Encode(e)
	if err != nil {
		return
	}
	_ = conn.TrySend(data)
}
