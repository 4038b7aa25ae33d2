// Package callstate holds the per-call lifecycle table. A Machine is not safe
// for concurrent use; its owner serializes access.
package callstate

import (
	"errors"
	"fmt"

	"github.com/dkeye/Howdy/internal/domain"
)

var ErrInvalidTransition = errors.New("invalid call state transition")

type Event string

const (
	EventDial           Event = "dial"
	EventOfferSent      Event = "offer_sent"
	EventOfferReceived  Event = "offer_received"
	EventAnswerSent     Event = "answer_sent"
	EventAnswerReceived Event = "answer_received"
	EventHangup         Event = "hangup"
	EventRemoteHangup   Event = "remote_hangup"
	EventLinkClosed     Event = "link_closed"
	EventAbort          Event = "abort"
)

// anyActive matches every non-idle state in a rule.
const anyActive domain.CallStatus = "*"

type rule struct {
	from domain.CallStatus
	ev   Event
	// role is the role required to fire, or the role assigned when leaving idle.
	role domain.Role
	to   domain.CallStatus
}

var table = []rule{
	{domain.StatusIdle, EventDial, domain.RoleCaller, domain.StatusConnecting},
	{domain.StatusConnecting, EventOfferSent, domain.RoleCaller, domain.StatusCalling},
	{domain.StatusIdle, EventOfferReceived, domain.RoleCallee, domain.StatusConnecting},
	{domain.StatusConnecting, EventAnswerSent, domain.RoleCallee, domain.StatusConnected},
	{domain.StatusCalling, EventAnswerReceived, domain.RoleCaller, domain.StatusConnected},
	{anyActive, EventHangup, domain.RoleNone, domain.StatusIdle},
	{anyActive, EventRemoteHangup, domain.RoleNone, domain.StatusIdle},
	{anyActive, EventLinkClosed, domain.RoleNone, domain.StatusIdle},
	{anyActive, EventAbort, domain.RoleNone, domain.StatusIdle},
}

// Transition describes one applied state change.
type Transition struct {
	From  domain.CallStatus
	To    domain.CallStatus
	Event Event
	Role  domain.Role
}

type Machine struct {
	status domain.CallStatus
	role   domain.Role

	onTransition func(Transition)
}

func New() *Machine {
	return &Machine{status: domain.StatusIdle}
}

func (m *Machine) Status() domain.CallStatus { return m.status }

// Role is the side that opened the current round, RoleNone while idle.
func (m *Machine) Role() domain.Role { return m.role }

// OnTransition registers a hook fired after every applied transition.
func (m *Machine) OnTransition(fn func(Transition)) { m.onTransition = fn }

// Can reports whether ev would be accepted in the current state.
func (m *Machine) Can(ev Event) bool {
	_, ok := m.match(ev)
	return ok
}

// Fire applies ev. An event with no matching row leaves the machine untouched.
func (m *Machine) Fire(ev Event) (Transition, error) {
	r, ok := m.match(ev)
	if !ok {
		return Transition{}, fmt.Errorf("%w: %s on %s", ErrInvalidTransition, ev, m.status)
	}
	tr := Transition{From: m.status, To: r.to, Event: ev}
	switch {
	case r.to == domain.StatusIdle:
		m.role = domain.RoleNone
	case m.status == domain.StatusIdle:
		m.role = r.role
	}
	tr.Role = m.role
	m.status = r.to
	if m.onTransition != nil {
		m.onTransition(tr)
	}
	return tr, nil
}

func (m *Machine) match(ev Event) (rule, bool) {
	for _, r := range table {
		if r.ev != ev {
			continue
		}
		switch r.from {
		case anyActive:
			if !m.status.Active() {
				continue
			}
		case m.status:
		default:
			continue
		}
		if r.from != domain.StatusIdle && r.role != domain.RoleNone && r.role != m.role {
			continue
		}
		return r, true
	}
	return rule{}, false
}
