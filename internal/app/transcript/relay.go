// Package transcript forwards locally finalized speech to the remote party and
// accumulates what the remote party forwards back.
package transcript

import (
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Howdy/internal/core"
	"github.com/dkeye/Howdy/internal/domain"
)

const DefaultRestartDelay = time.Second

type Options struct {
	// Post schedules fn on the owner's execution context. Required.
	Post func(fn func())
	// Send forwards a finalized segment.
	Send func(core.Transcript) error
	// Remote returns the current remote identity, empty when unknown.
	Remote       func() domain.Identity
	RestartDelay time.Duration
	Logger       *zerolog.Logger
}

// Relay is confined to the owner's context; recognizer callbacks are
// re-posted through Options.Post before they touch any field.
type Relay struct {
	rec  core.Recognizer
	opts Options

	local  Buffer
	remote Buffer

	active   bool
	disabled bool
	gen      int
	timer    *time.Timer

	logger zerolog.Logger
}

func NewRelay(rec core.Recognizer, opts Options) *Relay {
	if opts.RestartDelay <= 0 {
		opts.RestartDelay = DefaultRestartDelay
	}
	if opts.Remote == nil {
		opts.Remote = func() domain.Identity { return "" }
	}
	logger := log.With().Str("module", "transcript").Logger()
	if opts.Logger != nil {
		logger = opts.Logger.With().Str("component", "transcript").Logger()
	}
	r := &Relay{rec: rec, opts: opts, logger: logger}
	if rec != nil {
		rec.OnResult(func(seg core.Segment) { opts.Post(func() { r.handleSegment(seg) }) })
		rec.OnEnd(func() { opts.Post(r.handleEnd) })
		rec.OnError(func(err error) { opts.Post(func() { r.handleError(err) }) })
	}
	return r
}

func (r *Relay) Active() bool { return r.active }

// Disabled reports whether recognition gave up for the current session.
func (r *Relay) Disabled() bool { return r.disabled }

func (r *Relay) Local() string { return r.local.String() }

func (r *Relay) Remote() string { return r.remote.String() }

// Start begins capturing for a call session. Idempotent.
func (r *Relay) Start() {
	if r.active {
		return
	}
	r.active = true
	r.disabled = false
	r.gen++
	r.startRecognizer()
}

// Stop ends capturing; buffers are kept until Reset.
func (r *Relay) Stop() {
	if !r.active {
		return
	}
	r.active = false
	r.gen++
	r.stopTimer()
	if r.rec != nil {
		r.rec.Stop()
	}
}

// Reset clears both buffers.
func (r *Relay) Reset() {
	r.local.Reset()
	r.remote.Reset()
}

// Receive appends a segment forwarded by the remote party.
func (r *Relay) Receive(text string) {
	if !r.remote.AppendReceived(text) {
		return
	}
	r.logger.Debug().Int("len", r.remote.Len()).Msg("remote transcript appended")
}

func (r *Relay) startRecognizer() {
	if r.rec == nil {
		r.disabled = true
		return
	}
	err := r.rec.Start()
	switch {
	case err == nil:
		r.logger.Debug().Msg("recognition started")
	case errors.Is(err, domain.ErrRecognitionUnsupported):
		r.disabled = true
		r.logger.Info().Msg("speech recognition unsupported, transcript disabled")
	case errors.Is(err, domain.ErrRecognitionPermissionDenied):
		r.disabled = true
		r.logger.Warn().Err(err).Msg("speech recognition denied")
	default:
		r.logger.Warn().Err(err).Msg("recognition start failed, retrying")
		r.scheduleRestart()
	}
}

func (r *Relay) handleSegment(seg core.Segment) {
	if !r.active || !seg.Final {
		return
	}
	text, ok := r.local.Append(seg.Text)
	if !ok {
		return
	}
	remote := r.opts.Remote()
	if remote.IsZero() || r.opts.Send == nil {
		return
	}
	if err := r.opts.Send(core.Transcript{To: remote, Text: text}); err != nil {
		r.logger.Warn().Err(err).Str("to", remote.String()).Msg("transcript send")
	}
}

func (r *Relay) handleEnd() {
	if !r.active || r.disabled {
		return
	}
	r.logger.Debug().Dur("delay", r.opts.RestartDelay).Msg("recognition ended, scheduling restart")
	r.scheduleRestart()
}

func (r *Relay) handleError(err error) {
	if !r.active {
		return
	}
	if errors.Is(err, domain.ErrRecognitionPermissionDenied) {
		r.logger.Warn().Err(err).Msg("recognition permission denied, stopping")
		r.disabled = true
		r.stopTimer()
		r.rec.Stop()
		return
	}
	r.logger.Debug().Err(err).Msg("recognition error")
}

func (r *Relay) scheduleRestart() {
	r.stopTimer()
	gen := r.gen
	r.timer = time.AfterFunc(r.opts.RestartDelay, func() {
		r.opts.Post(func() {
			if !r.active || r.disabled || r.gen != gen {
				return
			}
			r.startRecognizer()
		})
	})
}

func (r *Relay) stopTimer() {
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
}
