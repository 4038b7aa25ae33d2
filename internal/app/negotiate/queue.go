package negotiate

import "github.com/pion/webrtc/v4"

// CandidateQueue buffers remote candidates that arrive before the remote
// description they belong to. Drain hands them back in arrival order.
type CandidateQueue struct {
	items []webrtc.ICECandidateInit
}

func NewCandidateQueue() *CandidateQueue {
	return &CandidateQueue{}
}

func (q *CandidateQueue) Enqueue(c webrtc.ICECandidateInit) {
	q.items = append(q.items, c)
}

// Drain removes and returns every queued candidate.
func (q *CandidateQueue) Drain() []webrtc.ICECandidateInit {
	out := q.items
	q.items = nil
	return out
}

func (q *CandidateQueue) Len() int { return len(q.items) }
