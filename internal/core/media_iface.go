package core

import (
	"github.com/pion/webrtc/v4"
)

// RemoteTrack describes a media track announced by the remote peer.
type RemoteTrack struct {
	ID       string
	Kind     string
	StreamID string
}

// PeerSession is the platform real-time session for one negotiation round.
type PeerSession interface {
	CreateOffer() (webrtc.SessionDescription, error)
	CreateAnswer() (webrtc.SessionDescription, error)
	SetLocalDescription(webrtc.SessionDescription) error
	SetRemoteDescription(webrtc.SessionDescription) error
	// AddICECandidate applies a remote ICE candidate.
	AddICECandidate(webrtc.ICECandidateInit) error
	// AddTrack attaches a local track to the session.
	AddTrack(webrtc.TrackLocal) error
	// OnICECandidate sets a callback for newly gathered local ICE candidates.
	// It may be invoked from any goroutine.
	OnICECandidate(func(webrtc.ICECandidateInit))
	// OnRemoteTrack sets a callback that will be invoked when a new remote track arrives.
	OnRemoteTrack(func(RemoteTrack))
	// OnFailed sets a callback for an unrecoverable transport failure.
	OnFailed(func())
	// Close should stop all underlying media resources.
	Close() error
}

type PeerFactory interface {
	NewPeerSession() (PeerSession, error)
}

// LocalMedia is a set of captured local tracks owned by one call session.
type LocalMedia interface {
	Tracks() []webrtc.TrackLocal
	HasVideo() bool
	// SetAudioEnabled and SetVideoEnabled return the resulting enabled state.
	SetAudioEnabled(bool) bool
	SetVideoEnabled(bool) bool
	// Stop releases every track. Idempotent.
	Stop()
}

// MediaCapture acquires local capture handles. It fails with
// domain.ErrMediaPermissionDenied when access is refused.
type MediaCapture interface {
	Acquire(audio, video bool) (LocalMedia, error)
}
