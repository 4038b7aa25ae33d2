package app

import "github.com/dkeye/Howdy/internal/domain"

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	KickMember
	DropFrame
)

// Policy decides what happens to a recipient whose send buffer is full.
type Policy interface {
	OnBackPressure(to domain.Identity) BackpressureAction
}

type SimplePolicy struct{}

func (SimplePolicy) OnBackPressure(domain.Identity) BackpressureAction {
	return KickMember
}
