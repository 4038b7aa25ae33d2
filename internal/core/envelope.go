package core

import (
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/pion/webrtc/v4"

	"github.com/dkeye/Howdy/internal/domain"
)

type EnvelopeType string

const (
	TypeOffer      EnvelopeType = "offer"
	TypeAnswer     EnvelopeType = "answer"
	TypeICE        EnvelopeType = "ice"
	TypeTranscript EnvelopeType = "transcript"
	TypeHangup     EnvelopeType = "hangup"
	TypeError      EnvelopeType = "error"
)

// Hangup reasons.
const (
	ReasonEnded  = "ended"
	ReasonBusy   = "busy"
	ReasonFailed = "failed"
)

// Relay error codes.
const (
	CodePeerOffline = "peer_offline"
	CodeBadEnvelope = "bad_envelope"
	CodeRateLimited = "rate_limited"
)

var (
	ErrUnknownEnvelope = errors.New("unknown envelope type")
	ErrBadEnvelope     = errors.New("malformed envelope")
)

// Header is the routing part every envelope carries.
type Header struct {
	To   domain.Identity
	From domain.Identity
}

// Envelope is one relay message. The set of implementations is closed:
// Offer, Answer, ICE, Transcript, Hangup and Error.
type Envelope interface {
	Type() EnvelopeType
	Header() Header
	envelope()
}

type Offer struct {
	To, From domain.Identity
	SDP      webrtc.SessionDescription
}

type Answer struct {
	To, From domain.Identity
	SDP      webrtc.SessionDescription
}

type ICE struct {
	To, From  domain.Identity
	Candidate webrtc.ICECandidateInit
}

type Transcript struct {
	To, From domain.Identity
	Text     string
}

type Hangup struct {
	To, From domain.Identity
	Reason   string
}

// Error is emitted by the relay itself, never by a peer.
type Error struct {
	To, From domain.Identity
	Code     string
	Message  string
}

func (Offer) Type() EnvelopeType      { return TypeOffer }
func (Answer) Type() EnvelopeType     { return TypeAnswer }
func (ICE) Type() EnvelopeType        { return TypeICE }
func (Transcript) Type() EnvelopeType { return TypeTranscript }
func (Hangup) Type() EnvelopeType     { return TypeHangup }
func (Error) Type() EnvelopeType      { return TypeError }

func (e Offer) Header() Header      { return Header{To: e.To, From: e.From} }
func (e Answer) Header() Header     { return Header{To: e.To, From: e.From} }
func (e ICE) Header() Header        { return Header{To: e.To, From: e.From} }
func (e Transcript) Header() Header { return Header{To: e.To, From: e.From} }
func (e Hangup) Header() Header     { return Header{To: e.To, From: e.From} }
func (e Error) Header() Header      { return Header{To: e.To, From: e.From} }

func (Offer) envelope()      {}
func (Answer) envelope()     {}
func (ICE) envelope()        {}
func (Transcript) envelope() {}
func (Hangup) envelope()     {}
func (Error) envelope()      {}

type wireSDP struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

type wireCandidate struct {
	Candidate        string  `json:"candidate"`
	SDPMid           *string `json:"sdpMid,omitempty"`
	SDPMLineIndex    *uint16 `json:"sdpMLineIndex,omitempty"`
	UsernameFragment *string `json:"usernameFragment,omitempty"`
}

// wireEnvelope is the flat text object that travels over the relay.
type wireEnvelope struct {
	Type      EnvelopeType    `json:"type"`
	To        domain.Identity `json:"to,omitempty"`
	From      domain.Identity `json:"from,omitempty"`
	SDP       *wireSDP        `json:"sdp,omitempty"`
	Candidate *wireCandidate  `json:"candidate,omitempty"`
	Text      string          `json:"text,omitempty"`
	Reason    string          `json:"reason,omitempty"`
	Code      string          `json:"code,omitempty"`
	Error     string          `json:"error,omitempty"`
}

func sdpToWire(d webrtc.SessionDescription) *wireSDP {
	return &wireSDP{Type: d.Type.String(), SDP: d.SDP}
}

func (s *wireSDP) toPion(want webrtc.SDPType) (webrtc.SessionDescription, error) {
	if s == nil {
		return webrtc.SessionDescription{}, fmt.Errorf("%w: missing sdp", ErrBadEnvelope)
	}
	if webrtc.NewSDPType(s.Type) != want {
		return webrtc.SessionDescription{}, fmt.Errorf("%w: sdp.type=%q, want %q", ErrBadEnvelope, s.Type, want.String())
	}
	if s.SDP == "" {
		return webrtc.SessionDescription{}, fmt.Errorf("%w: empty sdp", ErrBadEnvelope)
	}
	return webrtc.SessionDescription{Type: want, SDP: s.SDP}, nil
}

func candidateToWire(c webrtc.ICECandidateInit) *wireCandidate {
	return &wireCandidate{
		Candidate:        c.Candidate,
		SDPMid:           c.SDPMid,
		SDPMLineIndex:    c.SDPMLineIndex,
		UsernameFragment: c.UsernameFragment,
	}
}

func (c *wireCandidate) toPion() webrtc.ICECandidateInit {
	return webrtc.ICECandidateInit{
		Candidate:        c.Candidate,
		SDPMid:           c.SDPMid,
		SDPMLineIndex:    c.SDPMLineIndex,
		UsernameFragment: c.UsernameFragment,
	}
}

// Encode serializes an envelope into its wire form.
func Encode(env Envelope) ([]byte, error) {
	h := env.Header()
	w := wireEnvelope{Type: env.Type(), To: h.To, From: h.From}
	switch e := env.(type) {
	case Offer:
		w.SDP = sdpToWire(e.SDP)
	case Answer:
		w.SDP = sdpToWire(e.SDP)
	case ICE:
		w.Candidate = candidateToWire(e.Candidate)
	case Transcript:
		w.Text = e.Text
	case Hangup:
		w.Reason = e.Reason
	case Error:
		w.Code = e.Code
		w.Error = e.Message
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownEnvelope, env)
	}
	return json.Marshal(w)
}

// PeekType reads only the discriminator and routing fields.
func PeekType(data []byte) (EnvelopeType, Header, error) {
	var w struct {
		Type EnvelopeType    `json:"type"`
		To   domain.Identity `json:"to"`
		From domain.Identity `json:"from"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return "", Header{}, fmt.Errorf("%w: %v", ErrBadEnvelope, err)
	}
	return w.Type, Header{To: w.To, From: w.From}, nil
}

// Decode parses and validates one wire envelope. Unknown types are rejected
// with ErrUnknownEnvelope, missing mandatory fields with ErrBadEnvelope.
func Decode(data []byte) (Envelope, error) {
	var w wireEnvelope
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadEnvelope, err)
	}
	switch w.Type {
	case TypeOffer:
		d, err := w.SDP.toPion(webrtc.SDPTypeOffer)
		if err != nil {
			return nil, err
		}
		return Offer{To: w.To, From: w.From, SDP: d}, nil
	case TypeAnswer:
		d, err := w.SDP.toPion(webrtc.SDPTypeAnswer)
		if err != nil {
			return nil, err
		}
		return Answer{To: w.To, From: w.From, SDP: d}, nil
	case TypeICE:
		if w.Candidate == nil {
			return nil, fmt.Errorf("%w: ice without candidate", ErrBadEnvelope)
		}
		return ICE{To: w.To, From: w.From, Candidate: w.Candidate.toPion()}, nil
	case TypeTranscript:
		if w.Text == "" {
			return nil, fmt.Errorf("%w: transcript without text", ErrBadEnvelope)
		}
		return Transcript{To: w.To, From: w.From, Text: w.Text}, nil
	case TypeHangup:
		reason := w.Reason
		if reason == "" {
			reason = ReasonEnded
		}
		return Hangup{To: w.To, From: w.From, Reason: reason}, nil
	case TypeError:
		if w.Code == "" {
			return nil, fmt.Errorf("%w: error without code", ErrBadEnvelope)
		}
		return Error{To: w.To, From: w.From, Code: w.Code, Message: w.Error}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEnvelope, w.Type)
	}
}

// WithFrom returns a copy of env whose sender is from.
func WithFrom(env Envelope, from domain.Identity) Envelope {
	switch e := env.(type) {
	case Offer:
		e.From = from
		return e
	case Answer:
		e.From = from
		return e
	case ICE:
		e.From = from
		return e
	case Transcript:
		e.From = from
		return e
	case Hangup:
		e.From = from
		return e
	case Error:
		e.From = from
		return e
	}
	return env
}
