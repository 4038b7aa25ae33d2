// Package orch runs the session of one local identity: its relay link, the
// current call round and the transcript relay, all driven from a single loop.
//
// Every callback (link pumps, peer session, recognizer, timers) is re-posted
// into the loop's mailbox, so the fields of Orchestrator are only touched from
// Run. Public actions post a closure and wait for its result.
package orch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Howdy/internal/app/callstate"
	"github.com/dkeye/Howdy/internal/app/negotiate"
	"github.com/dkeye/Howdy/internal/app/transcript"
	"github.com/dkeye/Howdy/internal/core"
	"github.com/dkeye/Howdy/internal/domain"
)

var (
	ErrStopped = errors.New("session loop stopped")

	errActionPanicked = errors.New("session action panicked")
)

type Options struct {
	Identity   domain.Identity
	Dialer     core.LinkDialer
	Peers      core.PeerFactory
	Capture    core.MediaCapture
	Recognizer core.Recognizer

	// Video selects whether new rounds capture video.
	Video                   bool
	RecognitionRestartDelay time.Duration
	Now                     func() time.Time
}

// State is the observable snapshot handed to OnChange.
type State struct {
	Self             domain.Identity
	Linked           bool
	Status           domain.CallStatus
	Role             domain.Role
	Remote           domain.Identity
	Muted            bool
	Video            bool
	RemoteTracks     int
	Transcribing     bool
	LocalTranscript  string
	RemoteTranscript string
}

// Notice is one user-facing failure report.
type Notice struct {
	Err    error
	Remote domain.Identity
}

func (n Notice) String() string {
	if n.Remote.IsZero() {
		return n.Err.Error()
	}
	return fmt.Sprintf("%s: %v", n.Remote, n.Err)
}

type Orchestrator struct {
	self   domain.Identity
	dialer core.LinkDialer
	now    func() time.Time

	box     *mailbox
	stopped chan struct{}

	link    core.RelayLink
	linkGen int
	dialing bool

	machine *callstate.Machine
	engine  *negotiate.Engine
	speech  *transcript.Relay

	remote       domain.Identity
	announced    bool
	muted        bool
	remoteTracks int
	startedAt    time.Time
	connectedAt  time.Time

	onChange    func(State)
	onNotice    func(Notice)
	onCallEnded func(domain.CallRecord)
	last        State

	logger zerolog.Logger
}

func New(opts Options) *Orchestrator {
	o := &Orchestrator{
		self:    opts.Identity,
		dialer:  opts.Dialer,
		now:     opts.Now,
		box:     newMailbox(),
		stopped: make(chan struct{}),
		machine: callstate.New(),
		logger:  log.With().Str("module", "orch").Str("self", opts.Identity.String()).Logger(),
	}
	if o.now == nil {
		o.now = time.Now
	}

	o.engine = negotiate.NewEngine(opts.Identity, opts.Peers, opts.Capture, negotiate.Hooks{
		OnLocalCandidate: o.postLocalCandidate,
		OnRemoteTrack:    o.postRemoteTrack,
		OnFailed:         o.postPeerFailed,
	})
	o.engine.SetVideo(opts.Video)

	o.speech = transcript.NewRelay(opts.Recognizer, transcript.Options{
		Post: func(fn func()) {
			o.box.post(func() {
				fn()
				o.emitChange()
			})
		},
		Send:         func(tr core.Transcript) error { return o.send(tr) },
		Remote:       func() domain.Identity { return o.remote },
		RestartDelay: opts.RecognitionRestartDelay,
		Logger:       &o.logger,
	})

	o.machine.OnTransition(func(t callstate.Transition) {
		o.logger.Info().
			Str("from", string(t.From)).
			Str("to", string(t.To)).
			Str("event", string(t.Event)).
			Str("remote", o.remote.String()).
			Msg("call state")
	})
	return o
}

// OnChange, OnNotice and OnCallEnded must be registered before Run. The
// callbacks run on the session loop and must not call back into blocking
// actions.
func (o *Orchestrator) OnChange(fn func(State)) { o.onChange = fn }

func (o *Orchestrator) OnNotice(fn func(Notice)) { o.onNotice = fn }

func (o *Orchestrator) OnCallEnded(fn func(domain.CallRecord)) { o.onCallEnded = fn }

func (o *Orchestrator) Self() domain.Identity { return o.self }

// Run drains the mailbox until ctx is done, then ends any call and closes the link.
func (o *Orchestrator) Run(ctx context.Context) error {
	defer close(o.stopped)
	for {
		select {
		case <-ctx.Done():
			o.exec(o.shutdown)
			return ctx.Err()
		case <-o.box.ready():
			for _, fn := range o.box.take() {
				o.exec(fn)
			}
		}
	}
}

func (o *Orchestrator) exec(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error().Interface("panic", r).Msg("recovered in session loop")
		}
	}()
	fn()
}

// do runs fn on the loop and waits for it.
func (o *Orchestrator) do(ctx context.Context, fn func() error) error {
	errc := make(chan error, 1)
	o.box.post(func() {
		err := errActionPanicked
		defer func() { errc <- err }()
		err = fn()
	})
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-o.stopped:
		return ErrStopped
	}
}

func (o *Orchestrator) Snapshot(ctx context.Context) (State, error) {
	var st State
	err := o.do(ctx, func() error {
		st = o.state()
		return nil
	})
	return st, err
}

func (o *Orchestrator) state() State {
	return State{
		Self:             o.self,
		Linked:           o.link != nil,
		Status:           o.machine.Status(),
		Role:             o.machine.Role(),
		Remote:           o.remote,
		Muted:            o.muted,
		Video:            o.engine.Video(),
		RemoteTracks:     o.remoteTracks,
		Transcribing:     o.speech.Active() && !o.speech.Disabled(),
		LocalTranscript:  o.speech.Local(),
		RemoteTranscript: o.speech.Remote(),
	}
}

func (o *Orchestrator) emitChange() {
	st := o.state()
	if st == o.last {
		return
	}
	o.last = st
	if o.onChange != nil {
		o.onChange(st)
	}
}

func (o *Orchestrator) notify(err error) {
	o.logger.Warn().Err(err).Str("remote", o.remote.String()).Msg("notice")
	if o.onNotice != nil {
		o.onNotice(Notice{Err: err, Remote: o.remote})
	}
}

func (o *Orchestrator) shutdown() {
	if o.machine.Status().Active() {
		o.hangup(core.ReasonEnded)
		o.finish(callstate.EventHangup)
	}
	if o.link != nil {
		link := o.link
		o.detach()
		if err := link.Close(); err != nil {
			o.logger.Debug().Err(err).Msg("link close")
		}
	}
	o.emitChange()
}

// fire applies ev and logs table violations; they indicate a dispatch bug.
func (o *Orchestrator) fire(ev callstate.Event) bool {
	if _, err := o.machine.Fire(ev); err != nil {
		o.logger.Error().Err(err).Str("event", string(ev)).Msg("state machine rejected event")
		return false
	}
	return true
}

// begin records the remote of a round that just left idle and starts capturing speech.
func (o *Orchestrator) begin(remote domain.Identity) {
	o.remote = remote
	o.startedAt = o.now()
	o.connectedAt = time.Time{}
	o.speech.Start()
}

func (o *Orchestrator) markConnected() {
	o.connectedAt = o.now()
}

// finish tears the round down and returns to idle. Media and the peer session
// are released before the status changes.
func (o *Orchestrator) finish(ev callstate.Event) {
	if !o.machine.Status().Active() {
		return
	}
	role := o.machine.Role()
	o.speech.Stop()
	o.engine.Close()
	o.fire(ev)

	record := domain.CallRecord{
		ID:               uuid.NewString(),
		Self:             o.self,
		Remote:           o.remote,
		Role:             role,
		StartedAt:        o.startedAt,
		ConnectedAt:      o.connectedAt,
		EndedAt:          o.now(),
		EndReason:        string(ev),
		LocalTranscript:  o.speech.Local(),
		RemoteTranscript: o.speech.Remote(),
	}
	o.speech.Reset()
	o.remote = ""
	o.announced = false
	o.muted = false
	o.remoteTracks = 0
	o.startedAt = time.Time{}
	o.connectedAt = time.Time{}

	if o.onCallEnded != nil {
		o.onCallEnded(record)
	}
	o.emitChange()
}

// abort ends the round after a local failure, telling the remote when it
// already knows about the call.
func (o *Orchestrator) abort(err error) {
	if !o.machine.Status().Active() {
		return
	}
	o.notify(err)
	o.fail()
}

// fail ends the round after a local failure without raising a notice. Actions
// use it when they return the error themselves.
func (o *Orchestrator) fail() {
	if !o.machine.Status().Active() {
		return
	}
	o.hangup(core.ReasonFailed)
	o.finish(callstate.EventAbort)
}

// hangup tells the remote the round is over. Best effort.
func (o *Orchestrator) hangup(reason string) {
	if !o.announced || o.remote.IsZero() || o.link == nil {
		return
	}
	if err := o.send(core.Hangup{To: o.remote, Reason: reason}); err != nil {
		o.logger.Debug().Err(err).Msg("hangup not delivered")
	}
}

func (o *Orchestrator) send(env core.Envelope) error {
	if o.link == nil {
		return domain.ErrLinkUnavailable
	}
	if err := o.link.Send(env); err != nil {
		if errors.Is(err, domain.ErrLinkUnavailable) {
			return err
		}
		return fmt.Errorf("%w: %w", domain.ErrLinkUnavailable, err)
	}
	return nil
}
