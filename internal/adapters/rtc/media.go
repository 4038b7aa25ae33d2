package rtc

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"

	"github.com/dkeye/Howdy/internal/core"
	"github.com/dkeye/Howdy/internal/domain"
)

const (
	frameDuration = 20 * time.Millisecond
	// 48kHz opus clock.
	samplesPerFrame = 960
)

// opusSilence is a single-frame opus packet that decodes to silence.
var opusSilence = []byte{0xf8, 0xff, 0xfe}

// Capture produces synthetic local media: an opus track that streams silence
// while enabled and an optional VP8 track that carries no frames. Deny makes
// every Acquire fail as if the user refused access.
type Capture struct {
	Deny bool
}

func (c *Capture) Acquire(audio, video bool) (core.LocalMedia, error) {
	if c.Deny {
		return nil, domain.ErrMediaPermissionDenied
	}
	stream := "howdy-" + uuid.NewString()
	m := &SyntheticMedia{}
	if audio {
		t, err := webrtc.NewTrackLocalStaticRTP(
			webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2},
			"audio", stream)
		if err != nil {
			return nil, err
		}
		m.audio = t
		m.audioOn.Store(true)
	}
	if video {
		t, err := webrtc.NewTrackLocalStaticRTP(
			webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8, ClockRate: 90000},
			"video", stream)
		if err != nil {
			return nil, err
		}
		m.video = t
		m.videoOn.Store(true)
	}

	var ctx context.Context
	ctx, m.cancel = context.WithCancel(context.Background())
	if m.audio != nil {
		m.wg.Go(func() { m.pump(ctx) })
	}
	log.Debug().Str("module", "rtc.media").Str("stream", stream).Bool("audio", audio).Bool("video", video).Msg("media acquired")
	return m, nil
}

type SyntheticMedia struct {
	audio *webrtc.TrackLocalStaticRTP
	video *webrtc.TrackLocalStaticRTP

	audioOn atomic.Bool
	videoOn atomic.Bool

	cancel   context.CancelFunc
	wg       conc.WaitGroup
	stopOnce sync.Once
}

func (m *SyntheticMedia) Tracks() []webrtc.TrackLocal {
	var out []webrtc.TrackLocal
	if m.audio != nil {
		out = append(out, m.audio)
	}
	if m.video != nil {
		out = append(out, m.video)
	}
	return out
}

func (m *SyntheticMedia) HasVideo() bool { return m.video != nil }

func (m *SyntheticMedia) SetAudioEnabled(on bool) bool {
	if m.audio == nil {
		return false
	}
	m.audioOn.Store(on)
	return on
}

func (m *SyntheticMedia) SetVideoEnabled(on bool) bool {
	if m.video == nil {
		return false
	}
	m.videoOn.Store(on)
	return on
}

func (m *SyntheticMedia) Stop() {
	m.stopOnce.Do(func() {
		m.cancel()
		m.wg.Wait()
	})
}

// pump writes one silent frame per tick. Muted ticks advance the timestamp
// without sending, the way a muted sender leaves a gap.
func (m *SyntheticMedia) pump(ctx context.Context) {
	ticker := time.NewTicker(frameDuration)
	defer ticker.Stop()

	var seq uint16
	var ts uint32
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		ts += samplesPerFrame
		if !m.audioOn.Load() {
			continue
		}
		seq++
		pkt := &rtp.Packet{
			Header: rtp.Header{
				Version:        2,
				SequenceNumber: seq,
				Timestamp:      ts,
			},
			Payload: opusSilence,
		}
		// Unbound tracks drop the write; nothing to report.
		if err := m.audio.WriteRTP(pkt); err != nil {
			log.Debug().Err(err).Str("module", "rtc.media").Msg("write RTP")
		}
	}
}
