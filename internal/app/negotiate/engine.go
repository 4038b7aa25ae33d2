// Package negotiate drives offer/answer sequencing against a core.PeerSession
// and holds back remote candidates until their round has a remote description.
//
// An Engine is confined to its owner's execution context and is not safe for
// concurrent use. Hooks may be invoked from PeerSession goroutines; the owner is
// expected to re-post them onto its own context.
package negotiate

import (
	"errors"
	"fmt"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Howdy/internal/core"
	"github.com/dkeye/Howdy/internal/domain"
)

var ErrForeignCandidate = errors.New("candidate from a peer outside the current round")

// Hooks receive events produced by a round's peer session, tagged with the
// round id so the owner can drop events from a superseded round.
type Hooks struct {
	OnLocalCandidate func(round uint64, c webrtc.ICECandidateInit)
	OnRemoteTrack    func(round uint64, t core.RemoteTrack)
	OnFailed         func(round uint64)
}

type round struct {
	id       uint64
	remoteID domain.Identity
	role     domain.Role
	peer     core.PeerSession
	media    core.LocalMedia

	localDesc   *webrtc.SessionDescription
	remoteDesc  *webrtc.SessionDescription
	remoteUfrag string
	pending     *CandidateQueue
}

// closedRound remembers who the last round was with, so its candidates still
// in flight are not mistaken for the start of the next one.
type closedRound struct {
	remote domain.Identity
	ufrag  string
}

type Engine struct {
	peers   core.PeerFactory
	capture core.MediaCapture
	hooks   Hooks
	video   bool

	seq   uint64
	round *round
	// early holds candidates that arrived while no round was open, per sender.
	early map[domain.Identity]*CandidateQueue
	last  *closedRound

	logger zerolog.Logger
}

func NewEngine(self domain.Identity, peers core.PeerFactory, capture core.MediaCapture, hooks Hooks) *Engine {
	return &Engine{
		peers:   peers,
		capture: capture,
		hooks:   hooks,
		early:   make(map[domain.Identity]*CandidateQueue),
		logger:  log.With().Str("module", "negotiate").Str("self", self.String()).Logger(),
	}
}

// SetVideo selects whether the next round captures video.
func (e *Engine) SetVideo(on bool) { e.video = on }

func (e *Engine) Video() bool { return e.video }

func (e *Engine) Active() bool { return e.round != nil }

// Round returns the id of the open round, 0 when none is open.
func (e *Engine) Round() uint64 {
	if e.round == nil {
		return 0
	}
	return e.round.id
}

func (e *Engine) Remote() domain.Identity {
	if e.round == nil {
		return ""
	}
	return e.round.remoteID
}

func (e *Engine) Role() domain.Role {
	if e.round == nil {
		return domain.RoleNone
	}
	return e.round.role
}

func (e *Engine) Media() core.LocalMedia {
	if e.round == nil {
		return nil
	}
	return e.round.media
}

func (e *Engine) LocalDescription() *webrtc.SessionDescription {
	if e.round == nil {
		return nil
	}
	return e.round.localDesc
}

func (e *Engine) RemoteDescription() *webrtc.SessionDescription {
	if e.round == nil {
		return nil
	}
	return e.round.remoteDesc
}

// PendingCandidates counts candidates held for the current round.
func (e *Engine) PendingCandidates() int {
	if e.round == nil {
		return 0
	}
	return e.round.pending.Len()
}

// StartAsCaller opens a round towards remote and returns the offer to send.
func (e *Engine) StartAsCaller(remote domain.Identity) (core.Offer, error) {
	e.early = make(map[domain.Identity]*CandidateQueue)
	e.last = nil
	r, err := e.open(remote, domain.RoleCaller, NewCandidateQueue())
	if err != nil {
		return core.Offer{}, err
	}

	offer, err := r.peer.CreateOffer()
	if err != nil {
		e.Close()
		return core.Offer{}, fmt.Errorf("%w: create offer: %w", domain.ErrNegotiationFailure, err)
	}
	if err := r.peer.SetLocalDescription(offer); err != nil {
		e.Close()
		return core.Offer{}, fmt.Errorf("%w: set local offer: %w", domain.ErrNegotiationFailure, err)
	}
	r.localDesc = &offer
	e.logger.Info().Str("remote", remote.String()).Msg("offer created")
	return core.Offer{To: remote, SDP: offer}, nil
}

// StartAsCallee opens a round for an inbound offer and returns the answer to send.
// Candidates that arrived from the offerer before the offer are adopted unless
// they name another ICE session than the offer.
func (e *Engine) StartAsCallee(offer core.Offer) (core.Answer, error) {
	pending := NewCandidateQueue()
	if early, ok := e.early[offer.From]; ok {
		ufrag := sdpUfrag(offer.SDP.SDP)
		for _, c := range early.Drain() {
			if foreignSession(c, ufrag) {
				e.logger.Debug().Str("from", offer.From.String()).Msg("early candidate of another session dropped")
				continue
			}
			pending.Enqueue(c)
		}
	}
	e.early = make(map[domain.Identity]*CandidateQueue)
	e.last = nil

	r, err := e.open(offer.From, domain.RoleCallee, pending)
	if err != nil {
		return core.Answer{}, err
	}
	if err := e.setRemote(r, offer.SDP); err != nil {
		e.Close()
		return core.Answer{}, err
	}

	answer, err := r.peer.CreateAnswer()
	if err != nil {
		e.Close()
		return core.Answer{}, fmt.Errorf("%w: create answer: %w", domain.ErrNegotiationFailure, err)
	}
	if err := r.peer.SetLocalDescription(answer); err != nil {
		e.Close()
		return core.Answer{}, fmt.Errorf("%w: set local answer: %w", domain.ErrNegotiationFailure, err)
	}
	r.localDesc = &answer
	e.logger.Info().Str("remote", offer.From.String()).Msg("answer created")
	return core.Answer{To: offer.From, SDP: answer}, nil
}

// CompleteAsCaller applies the remote answer of an outbound round.
func (e *Engine) CompleteAsCaller(answer core.Answer) error {
	r := e.round
	if r == nil || r.role != domain.RoleCaller {
		return fmt.Errorf("%w: no outbound round", domain.ErrNegotiationFailure)
	}
	if r.remoteDesc != nil {
		return fmt.Errorf("%w: remote description already set", domain.ErrNegotiationFailure)
	}
	return e.setRemote(r, answer.SDP)
}

// ApplyCandidate adds c to the peer session when the round has a remote
// description, and queues it otherwise. It reports whether c was applied.
func (e *Engine) ApplyCandidate(from domain.Identity, c webrtc.ICECandidateInit) (bool, error) {
	r := e.round
	if r == nil {
		e.hold(from, c)
		return false, nil
	}
	if from != "" && from != r.remoteID {
		return false, fmt.Errorf("%w: %s", ErrForeignCandidate, from)
	}
	if foreignSession(c, r.remoteUfrag) {
		return false, fmt.Errorf("%w: %s, ufrag %s", ErrForeignCandidate, from, candidateUfrag(c))
	}
	if r.remoteDesc == nil {
		r.pending.Enqueue(c)
		return false, nil
	}
	if err := r.peer.AddICECandidate(c); err != nil {
		return false, fmt.Errorf("%w: add candidate: %w", domain.ErrNegotiationFailure, err)
	}
	return true, nil
}

// hold keeps an idle-time candidate for a later offer from the same sender.
// Leftovers of the round that just closed are dropped: a candidate from that
// remote is kept only when it names a different ICE session.
func (e *Engine) hold(from domain.Identity, c webrtc.ICECandidateInit) {
	if e.last != nil && from == e.last.remote {
		if u := candidateUfrag(c); u == "" || u == e.last.ufrag {
			e.logger.Debug().Str("from", from.String()).Msg("candidate of closed round dropped")
			return
		}
	}
	q, ok := e.early[from]
	switch {
	case !ok && len(e.early) >= maxEarlySenders:
		e.logger.Warn().Str("from", from.String()).Msg("too many early senders, candidate dropped")
		return
	case ok && q.Len() >= maxEarlyPerSender:
		e.logger.Warn().Str("from", from.String()).Msg("early candidate limit reached, candidate dropped")
		return
	case !ok:
		q = NewCandidateQueue()
		e.early[from] = q
	}
	q.Enqueue(c)
}

// Close releases the current round: media first, then the peer session, then
// both descriptions. Safe to call without a round.
func (e *Engine) Close() {
	e.early = make(map[domain.Identity]*CandidateQueue)
	r := e.round
	if r == nil {
		return
	}
	e.round = nil
	e.last = &closedRound{remote: r.remoteID, ufrag: r.remoteUfrag}
	if r.media != nil {
		r.media.Stop()
	}
	if err := r.peer.Close(); err != nil {
		e.logger.Warn().Err(err).Str("remote", r.remoteID.String()).Msg("peer close")
	}
	r.localDesc = nil
	r.remoteDesc = nil
	r.remoteUfrag = ""
	r.pending.Drain()
	e.logger.Info().Str("remote", r.remoteID.String()).Msg("round closed")
}

func (e *Engine) open(remote domain.Identity, role domain.Role, pending *CandidateQueue) (*round, error) {
	if e.round != nil {
		e.Close()
	}

	media, err := e.capture.Acquire(true, e.video)
	if err != nil {
		if !errors.Is(err, domain.ErrMediaPermissionDenied) {
			err = fmt.Errorf("%w: %w", domain.ErrMediaPermissionDenied, err)
		}
		return nil, err
	}

	peer, err := e.peers.NewPeerSession()
	if err != nil {
		media.Stop()
		return nil, fmt.Errorf("%w: new peer session: %w", domain.ErrNegotiationFailure, err)
	}
	e.seq++
	id := e.seq
	if fn := e.hooks.OnLocalCandidate; fn != nil {
		peer.OnICECandidate(func(c webrtc.ICECandidateInit) { fn(id, c) })
	}
	if fn := e.hooks.OnRemoteTrack; fn != nil {
		peer.OnRemoteTrack(func(t core.RemoteTrack) { fn(id, t) })
	}
	if fn := e.hooks.OnFailed; fn != nil {
		peer.OnFailed(func() { fn(id) })
	}

	for _, track := range media.Tracks() {
		if err := peer.AddTrack(track); err != nil {
			media.Stop()
			_ = peer.Close()
			return nil, fmt.Errorf("%w: add track %s: %w", domain.ErrNegotiationFailure, track.ID(), err)
		}
	}

	e.round = &round{
		id:       id,
		remoteID: remote,
		role:     role,
		peer:     peer,
		media:    media,
		pending:  pending,
	}
	return e.round, nil
}

func (e *Engine) setRemote(r *round, d webrtc.SessionDescription) error {
	if err := r.peer.SetRemoteDescription(d); err != nil {
		return fmt.Errorf("%w: set remote %s: %w", domain.ErrNegotiationFailure, d.Type, err)
	}
	r.remoteDesc = &d
	r.remoteUfrag = sdpUfrag(d.SDP)

	queued := r.pending.Drain()
	for _, c := range queued {
		if err := r.peer.AddICECandidate(c); err != nil {
			return fmt.Errorf("%w: add queued candidate: %w", domain.ErrNegotiationFailure, err)
		}
	}
	if len(queued) > 0 {
		e.logger.Debug().Int("count", len(queued)).Str("remote", r.remoteID.String()).Msg("flushed queued candidates")
	}
	return nil
}
