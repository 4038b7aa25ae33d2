package orch

import (
	"context"

	"github.com/pion/webrtc/v4"

	"github.com/dkeye/Howdy/internal/core"
	"github.com/dkeye/Howdy/internal/domain"
)

// ToggleMute flips the local audio of the current call and reports whether it
// is now muted.
func (o *Orchestrator) ToggleMute(ctx context.Context) (bool, error) {
	var muted bool
	err := o.do(ctx, func() error {
		media := o.engine.Media()
		if media == nil {
			return domain.ErrNotInCall
		}
		o.muted = !media.SetAudioEnabled(o.muted)
		muted = o.muted
		o.emitChange()
		return nil
	})
	return muted, err
}

// ToggleVideo flips the video preference. A call in progress only changes if
// its media carries a video track; otherwise the next round picks it up.
func (o *Orchestrator) ToggleVideo(ctx context.Context) (bool, error) {
	var on bool
	err := o.do(ctx, func() error {
		on = !o.engine.Video()
		o.engine.SetVideo(on)
		if media := o.engine.Media(); media != nil && media.HasVideo() {
			media.SetVideoEnabled(on)
		}
		o.emitChange()
		return nil
	})
	return on, err
}

// The post* hooks run on peer session goroutines. Each event carries the
// round it came from and is dropped once that round is gone.

func (o *Orchestrator) postLocalCandidate(round uint64, c webrtc.ICECandidateInit) {
	o.box.post(func() {
		if round != o.engine.Round() {
			return
		}
		if err := o.send(core.ICE{To: o.remote, Candidate: c}); err != nil {
			o.logger.Warn().Err(err).Msg("local candidate not sent")
		}
	})
}

func (o *Orchestrator) postRemoteTrack(round uint64, t core.RemoteTrack) {
	o.box.post(func() {
		if round != o.engine.Round() {
			return
		}
		o.remoteTracks++
		o.logger.Info().Str("kind", t.Kind).Str("track", t.ID).Msg("remote track")
		o.emitChange()
	})
}

func (o *Orchestrator) postPeerFailed(round uint64) {
	o.box.post(func() {
		if round != o.engine.Round() {
			return
		}
		o.abort(domain.ErrNegotiationFailure)
	})
}
