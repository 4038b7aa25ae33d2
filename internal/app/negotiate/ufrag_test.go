package negotiate

import (
	"testing"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
)

func TestSDPUfrag(t *testing.T) {
	assert.Equal(t, "F7gI", sdpUfrag("v=0\r\no=- 1 2 IN IP4 0.0.0.0\r\na=ice-ufrag:F7gI\r\na=ice-pwd:x\r\n"))
	assert.Empty(t, sdpUfrag("v=0 remote"))
}

func TestCandidateUfrag(t *testing.T) {
	u := "abc"
	assert.Equal(t, "abc", candidateUfrag(webrtc.ICECandidateInit{Candidate: "candidate:1 1 udp 1 127.0.0.1 5000 typ host", UsernameFragment: &u}))
	assert.Equal(t, "xyz", candidateUfrag(webrtc.ICECandidateInit{Candidate: "candidate:1 1 udp 1 127.0.0.1 5000 typ host ufrag xyz"}))
	assert.Empty(t, candidateUfrag(webrtc.ICECandidateInit{Candidate: "candidate:1 1 udp 1 127.0.0.1 5000 typ host"}))
}
