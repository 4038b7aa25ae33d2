// Package coretest provides in-memory implementations of the core contracts
// for tests. All types are safe for concurrent use.
package coretest

import (
	"errors"
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/dkeye/Howdy/internal/core"
	"github.com/dkeye/Howdy/internal/domain"
)

var ErrNoRemoteDescription = errors.New("remote description not set")

// Peer records every call made against it.
type Peer struct {
	mu sync.Mutex

	Local   *webrtc.SessionDescription
	Remote  *webrtc.SessionDescription
	Applied []webrtc.ICECandidateInit
	Tracks  []webrtc.TrackLocal
	Ops     []string
	Closed  bool

	// Gathered is emitted through OnICECandidate on SetLocalDescription.
	Gathered        []webrtc.ICECandidateInit
	SetRemoteErr    error
	AddCandidateErr error
	CreateOfferErr  error
	CreateAnswerErr error
	SetLocalErr     error

	onICE    func(webrtc.ICECandidateInit)
	onTrack  func(core.RemoteTrack)
	onFailed func()
}

func (p *Peer) op(s string) { p.Ops = append(p.Ops, s) }

func (p *Peer) CreateOffer() (webrtc.SessionDescription, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.op("create-offer")
	if p.CreateOfferErr != nil {
		return webrtc.SessionDescription{}, p.CreateOfferErr
	}
	return webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "v=0 offer"}, nil
}

func (p *Peer) CreateAnswer() (webrtc.SessionDescription, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.op("create-answer")
	if p.CreateAnswerErr != nil {
		return webrtc.SessionDescription{}, p.CreateAnswerErr
	}
	if p.Remote == nil {
		return webrtc.SessionDescription{}, ErrNoRemoteDescription
	}
	return webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "v=0 answer"}, nil
}

func (p *Peer) SetLocalDescription(d webrtc.SessionDescription) error {
	p.mu.Lock()
	p.op("set-local:" + d.Type.String())
	if p.SetLocalErr != nil {
		p.mu.Unlock()
		return p.SetLocalErr
	}
	p.Local = &d
	gathered := append([]webrtc.ICECandidateInit(nil), p.Gathered...)
	fn := p.onICE
	p.mu.Unlock()

	if fn != nil {
		for _, c := range gathered {
			fn(c)
		}
	}
	return nil
}

func (p *Peer) SetRemoteDescription(d webrtc.SessionDescription) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.op("set-remote:" + d.Type.String())
	if p.SetRemoteErr != nil {
		return p.SetRemoteErr
	}
	p.Remote = &d
	return nil
}

// AddICECandidate fails like a real session when no remote description exists.
func (p *Peer) AddICECandidate(c webrtc.ICECandidateInit) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.op("add-candidate:" + c.Candidate)
	if p.Remote == nil {
		return ErrNoRemoteDescription
	}
	if p.AddCandidateErr != nil {
		return p.AddCandidateErr
	}
	p.Applied = append(p.Applied, c)
	return nil
}

func (p *Peer) AddTrack(t webrtc.TrackLocal) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.op("add-track:" + t.Kind().String())
	p.Tracks = append(p.Tracks, t)
	return nil
}

func (p *Peer) OnICECandidate(fn func(webrtc.ICECandidateInit)) {
	p.mu.Lock()
	p.onICE = fn
	p.mu.Unlock()
}

func (p *Peer) OnRemoteTrack(fn func(core.RemoteTrack)) {
	p.mu.Lock()
	p.onTrack = fn
	p.mu.Unlock()
}

func (p *Peer) OnFailed(fn func()) {
	p.mu.Lock()
	p.onFailed = fn
	p.mu.Unlock()
}

func (p *Peer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.op("close")
	p.Closed = true
	return nil
}

// EmitCandidate simulates late local gathering.
func (p *Peer) EmitCandidate(c webrtc.ICECandidateInit) {
	p.mu.Lock()
	fn := p.onICE
	p.mu.Unlock()
	if fn != nil {
		fn(c)
	}
}

func (p *Peer) EmitRemoteTrack(t core.RemoteTrack) {
	p.mu.Lock()
	fn := p.onTrack
	p.mu.Unlock()
	if fn != nil {
		fn(t)
	}
}

func (p *Peer) Fail() {
	p.mu.Lock()
	fn := p.onFailed
	p.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (p *Peer) AppliedCandidates() []webrtc.ICECandidateInit {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]webrtc.ICECandidateInit(nil), p.Applied...)
}

func (p *Peer) OpLog() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.Ops...)
}

func (p *Peer) IsClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Closed
}

// PeerFactory hands out fresh Peers and remembers them in creation order.
type PeerFactory struct {
	mu sync.Mutex

	Err       error
	Gathered  []webrtc.ICECandidateInit
	Configure func(*Peer)
	Created   []*Peer
}

func (f *PeerFactory) NewPeerSession() (core.PeerSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	p := &Peer{Gathered: f.Gathered}
	if f.Configure != nil {
		f.Configure(p)
	}
	f.Created = append(f.Created, p)
	return p, nil
}

// Last returns the most recently created Peer, or nil.
func (f *PeerFactory) Last() *Peer {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Created) == 0 {
		return nil
	}
	return f.Created[len(f.Created)-1]
}

func (f *PeerFactory) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Created)
}

// Candidate builds a distinct host candidate for index i.
func Candidate(i int) webrtc.ICECandidateInit {
	return webrtc.ICECandidateInit{Candidate: fmt.Sprintf("candidate:%d 1 udp 2130706431 127.0.0.1 %d typ host", i, 5000+i)}
}

// Capture hands out Media; Err simulates a refused device.
type Capture struct {
	mu sync.Mutex

	Err      error
	Acquired []*Media
}

func (c *Capture) Acquire(audio, video bool) (core.LocalMedia, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return nil, c.Err
	}
	m := &Media{audioOn: audio, videoOn: video, hasVideo: video}
	if audio {
		t, err := webrtc.NewTrackLocalStaticRTP(webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus}, "audio", "coretest")
		if err != nil {
			return nil, err
		}
		m.tracks = append(m.tracks, t)
	}
	if video {
		t, err := webrtc.NewTrackLocalStaticRTP(webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8}, "video", "coretest")
		if err != nil {
			return nil, err
		}
		m.tracks = append(m.tracks, t)
	}
	c.Acquired = append(c.Acquired, m)
	return m, nil
}

func (c *Capture) Last() *Media {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.Acquired) == 0 {
		return nil
	}
	return c.Acquired[len(c.Acquired)-1]
}

// DeniedCapture is a ready-made refused capture.
func DeniedCapture() *Capture {
	return &Capture{Err: fmt.Errorf("getUserMedia: %w", domain.ErrMediaPermissionDenied)}
}

type Media struct {
	mu sync.Mutex

	tracks   []webrtc.TrackLocal
	audioOn  bool
	videoOn  bool
	hasVideo bool
	stopped  bool
}

func (m *Media) Tracks() []webrtc.TrackLocal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]webrtc.TrackLocal(nil), m.tracks...)
}

func (m *Media) HasVideo() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hasVideo
}

func (m *Media) SetAudioEnabled(on bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audioOn = on
	return m.audioOn
}

func (m *Media) SetVideoEnabled(on bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.hasVideo {
		return false
	}
	m.videoOn = on
	return m.videoOn
}

func (m *Media) AudioEnabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.audioOn
}

func (m *Media) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped = true
}

func (m *Media) Stopped() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopped
}
