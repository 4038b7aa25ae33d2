package domain

import "errors"

var (
	ErrIdentityEmpty   = errors.New("identity empty")
	ErrIdentityTooLong = errors.New("identity too long")
	ErrIdentityInvalid = errors.New("identity contains reserved characters")
)

// Call failure taxonomy. Callers branch on these with errors.Is.
var (
	ErrMediaPermissionDenied       = errors.New("media permission denied")
	ErrLinkUnavailable             = errors.New("relay link unavailable")
	ErrNegotiationFailure          = errors.New("negotiation failure")
	ErrRecognitionUnsupported      = errors.New("speech recognition unsupported")
	ErrRecognitionPermissionDenied = errors.New("speech recognition permission denied")
	ErrRecognitionTransientStop    = errors.New("speech recognition stopped")

	ErrBusy        = errors.New("call already in progress")
	ErrNotInCall   = errors.New("no active call")
	ErrSelfCall    = errors.New("cannot call own identity")
	ErrPeerOffline = errors.New("peer offline")
)
