package core

import (
	"testing"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeOfferFromOriginalClient(t *testing.T) {
	raw := []byte(`{"type":"offer","to":"bob","from":"alice","sdp":{"type":"offer","sdp":"v=0"}}`)

	env, err := Decode(raw)
	require.NoError(t, err)

	offer, ok := env.(Offer)
	require.True(t, ok, "got %T", env)
	assert.Equal(t, Header{To: "bob", From: "alice"}, offer.Header())
	assert.Equal(t, webrtc.SDPTypeOffer, offer.SDP.Type)
	assert.Equal(t, "v=0", offer.SDP.SDP)
}

func TestDecodeCandidate(t *testing.T) {
	raw := []byte(`{
		"type":"ice",
		"to":"bob",
		"candidate":{"candidate":"candidate:1 1 udp 1 127.0.0.1 9 typ host","sdpMid":"0","sdpMLineIndex":0}
	}`)

	env, err := Decode(raw)
	require.NoError(t, err)

	ice := env.(ICE)
	assert.Equal(t, "candidate:1 1 udp 1 127.0.0.1 9 typ host", ice.Candidate.Candidate)
	require.NotNil(t, ice.Candidate.SDPMid)
	assert.Equal(t, "0", *ice.Candidate.SDPMid)
	require.NotNil(t, ice.Candidate.SDPMLineIndex)
	assert.Equal(t, uint16(0), *ice.Candidate.SDPMLineIndex)
}

func TestDecodeRejectsUnknownType(t *testing.T) {
	_, err := Decode([]byte(`{"type":"join","room":"main"}`))
	assert.ErrorIs(t, err, ErrUnknownEnvelope)
}

func TestDecodeRejectsMalformed(t *testing.T) {
	cases := map[string]string{
		"not json":         `{"type":`,
		"offer no sdp":     `{"type":"offer","to":"bob"}`,
		"offer sdp answer": `{"type":"offer","sdp":{"type":"answer","sdp":"v=0"}}`,
		"answer empty sdp": `{"type":"answer","sdp":{"type":"answer","sdp":""}}`,
		"ice no candidate": `{"type":"ice","to":"bob"}`,
		"empty transcript": `{"type":"transcript","to":"bob","text":""}`,
		"error no code":    `{"type":"error","error":"x"}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Decode([]byte(raw))
			assert.ErrorIs(t, err, ErrBadEnvelope)
		})
	}
}

func TestHangupDefaultsReason(t *testing.T) {
	env, err := Decode([]byte(`{"type":"hangup","from":"alice"}`))
	require.NoError(t, err)
	assert.Equal(t, ReasonEnded, env.(Hangup).Reason)
}

func TestEncodeIsFlat(t *testing.T) {
	b, err := Encode(Transcript{To: "bob", Text: "hello "})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"transcript","to":"bob","text":"hello "}`, string(b))

	b, err = Encode(Answer{To: "alice", SDP: webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "v=0"}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"answer","to":"alice","sdp":{"type":"answer","sdp":"v=0"}}`, string(b))
}

func TestWithFromStampsSender(t *testing.T) {
	env := WithFrom(ICE{To: "bob"}, "alice")
	assert.Equal(t, Header{To: "bob", From: "alice"}, env.Header())
	assert.Equal(t, TypeICE, env.Type())
}

func TestPeekType(t *testing.T) {
	typ, h, err := PeekType([]byte(`{"type":"transcript","to":"bob","text":"hi"}`))
	require.NoError(t, err)
	assert.Equal(t, TypeTranscript, typ)
	assert.Equal(t, "bob", h.To.String())
}
