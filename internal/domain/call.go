package domain

import "time"

// CallRecord summarizes one finished call round.
type CallRecord struct {
	ID          string
	Self        Identity
	Remote      Identity
	Role        Role
	StartedAt   time.Time
	ConnectedAt time.Time
	EndedAt     time.Time
	// EndReason is the event that returned the call to idle.
	EndReason        string
	LocalTranscript  string
	RemoteTranscript string
}

// Connected reports whether the call ever reached StatusConnected.
func (r CallRecord) Connected() bool { return !r.ConnectedAt.IsZero() }

// Duration is the connected time, zero for calls that never connected.
func (r CallRecord) Duration() time.Duration {
	if !r.Connected() {
		return 0
	}
	return r.EndedAt.Sub(r.ConnectedAt)
}
