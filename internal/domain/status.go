package domain

// CallStatus is the externally observable lifecycle of a call session.
type CallStatus string

const (
	StatusIdle       CallStatus = "idle"
	StatusConnecting CallStatus = "connecting"
	StatusCalling    CallStatus = "calling"
	StatusConnected  CallStatus = "connected"
)

func (s CallStatus) Active() bool { return s != StatusIdle && s != "" }

// Role tells which side opened the current negotiation round.
type Role string

const (
	RoleNone   Role = ""
	RoleCaller Role = "caller"
	RoleCallee Role = "callee"
)
