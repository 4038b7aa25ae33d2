package negotiate

import (
	"strings"

	"github.com/pion/webrtc/v4"
)

const (
	maxEarlyPerSender = 64
	maxEarlySenders   = 16
)

// sdpUfrag returns the first a=ice-ufrag value of sdp, empty when absent.
func sdpUfrag(sdp string) string {
	for line := range strings.Lines(sdp) {
		if v, ok := strings.CutPrefix(strings.TrimSpace(line), "a=ice-ufrag:"); ok {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// candidateUfrag reads usernameFragment, falling back to the "ufrag"
// extension of the candidate line. Empty means the candidate cannot be
// attributed to a session.
func candidateUfrag(c webrtc.ICECandidateInit) string {
	if c.UsernameFragment != nil && *c.UsernameFragment != "" {
		return *c.UsernameFragment
	}
	fields := strings.Fields(c.Candidate)
	for i := 0; i+1 < len(fields); i++ {
		if fields[i] == "ufrag" {
			return fields[i+1]
		}
	}
	return ""
}

// foreignSession reports whether c names an ICE session other than ufrag.
// Either side being unknown counts as a match.
func foreignSession(c webrtc.ICECandidateInit, ufrag string) bool {
	u := candidateUfrag(c)
	return u != "" && ufrag != "" && u != ufrag
}
