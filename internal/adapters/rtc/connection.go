package rtc

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/pion/rtcp"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"

	"github.com/dkeye/Howdy/internal/core"
)

// WebRTCConnection adapts a pion PeerConnection to core.PeerSession. Callbacks
// run on pion goroutines.
type WebRTCConnection struct {
	pc     *webrtc.PeerConnection
	ctx    context.Context
	cancel context.CancelFunc
	wg     conc.WaitGroup

	mu       sync.Mutex
	onICE    func(webrtc.ICECandidateInit)
	onTrack  func(core.RemoteTrack)
	onFailed func()

	closeOnce sync.Once
	logger    zerolog.Logger
}

func NewWebRTCConnection(api *webrtc.API, cfg webrtc.Configuration) (*WebRTCConnection, error) {
	pc, err := api.NewPeerConnection(cfg)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &WebRTCConnection{
		pc:     pc,
		ctx:    ctx,
		cancel: cancel,
		logger: log.With().Str("module", "webrtc").Logger(),
	}

	pc.OnICEConnectionStateChange(func(s webrtc.ICEConnectionState) {
		c.logger.Info().Str("ice_state", s.String()).Msg("ICE state")
	})

	pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		c.logger.Info().Str("peer_connection_state", s.String()).Msg("Peer state")
		if s != webrtc.PeerConnectionStateFailed {
			return
		}
		c.mu.Lock()
		fn := c.onFailed
		c.mu.Unlock()
		if fn != nil {
			fn()
		}
	})

	pc.OnICECandidate(func(cand *webrtc.ICECandidate) {
		// nil marks the end of gathering.
		if cand == nil {
			return
		}
		c.mu.Lock()
		fn := c.onICE
		c.mu.Unlock()
		if fn != nil {
			fn(cand.ToJSON())
		}
	})

	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		c.logger.Info().
			Str("kind", track.Kind().String()).
			Str("track_id", track.ID()).
			Str("stream_id", track.StreamID()).
			Msg("OnTrack received")
		c.mu.Lock()
		fn := c.onTrack
		c.mu.Unlock()
		if fn != nil {
			fn(core.RemoteTrack{ID: track.ID(), Kind: track.Kind().String(), StreamID: track.StreamID()})
		}
		c.wg.Go(func() { c.drain(track) })
	})

	return c, nil
}

func (c *WebRTCConnection) CreateOffer() (webrtc.SessionDescription, error) {
	return c.pc.CreateOffer(nil)
}

func (c *WebRTCConnection) CreateAnswer() (webrtc.SessionDescription, error) {
	return c.pc.CreateAnswer(nil)
}

func (c *WebRTCConnection) SetLocalDescription(d webrtc.SessionDescription) error {
	return c.pc.SetLocalDescription(d)
}

func (c *WebRTCConnection) SetRemoteDescription(d webrtc.SessionDescription) error {
	return c.pc.SetRemoteDescription(d)
}

func (c *WebRTCConnection) AddICECandidate(ci webrtc.ICECandidateInit) error {
	return c.pc.AddICECandidate(ci)
}

// AddTrack attaches a local track and keeps its sender's RTCP flowing so the
// interceptors see receiver reports.
func (c *WebRTCConnection) AddTrack(track webrtc.TrackLocal) error {
	sender, err := c.pc.AddTrack(track)
	if err != nil {
		return err
	}
	c.wg.Go(func() { c.readRTCP(track.ID(), sender) })
	return nil
}

func (c *WebRTCConnection) OnICECandidate(fn func(webrtc.ICECandidateInit)) {
	c.mu.Lock()
	c.onICE = fn
	c.mu.Unlock()
}

func (c *WebRTCConnection) OnRemoteTrack(fn func(core.RemoteTrack)) {
	c.mu.Lock()
	c.onTrack = fn
	c.mu.Unlock()
}

func (c *WebRTCConnection) OnFailed(fn func()) {
	c.mu.Lock()
	c.onFailed = fn
	c.mu.Unlock()
}

// Close tears the PeerConnection down and waits for the media goroutines.
// Idempotent.
func (c *WebRTCConnection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.onICE, c.onTrack, c.onFailed = nil, nil, nil
		c.mu.Unlock()
		c.cancel()
		err = c.pc.Close()
		if err != nil {
			c.logger.Error().Err(err).Msg("close error")
		} else {
			c.logger.Info().Msg("closed")
		}
		c.wg.Wait()
	})
	return err
}

// drain consumes inbound RTP until the track ends. Playback is out of scope;
// reading keeps the receive buffers and interceptors moving.
func (c *WebRTCConnection) drain(track *webrtc.TrackRemote) {
	var packets int
	for {
		select {
		case <-c.ctx.Done():
			c.logger.Debug().Str("track_id", track.ID()).Int("packets", packets).Msg("remote track drain stopped")
			return
		default:
		}
		if _, _, err := track.ReadRTP(); err != nil {
			if !errors.Is(err, io.EOF) {
				c.logger.Debug().Err(err).Str("track_id", track.ID()).Msg("remote track read ended")
			}
			return
		}
		packets++
	}
}

func (c *WebRTCConnection) readRTCP(trackID string, sender *webrtc.RTPSender) {
	buf := make([]byte, 1500)
	for {
		n, _, err := sender.Read(buf)
		if err != nil {
			return
		}
		pkts, err := rtcp.Unmarshal(buf[:n])
		if err != nil {
			continue
		}
		for _, p := range pkts {
			if _, ok := p.(*rtcp.PictureLossIndication); ok {
				c.logger.Debug().Str("track_id", trackID).Msg("PLI from remote")
			}
		}
	}
}
