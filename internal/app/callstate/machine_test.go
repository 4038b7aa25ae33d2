package callstate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/Howdy/internal/domain"
)

func fire(t *testing.T, m *Machine, evs ...Event) {
	t.Helper()
	for _, ev := range evs {
		_, err := m.Fire(ev)
		require.NoError(t, err, "event %s", ev)
	}
}

func TestCallerPath(t *testing.T) {
	m := New()
	fire(t, m, EventDial)
	assert.Equal(t, domain.StatusConnecting, m.Status())
	assert.Equal(t, domain.RoleCaller, m.Role())

	fire(t, m, EventOfferSent)
	assert.Equal(t, domain.StatusCalling, m.Status())

	fire(t, m, EventAnswerReceived)
	assert.Equal(t, domain.StatusConnected, m.Status())

	fire(t, m, EventHangup)
	assert.Equal(t, domain.StatusIdle, m.Status())
	assert.Equal(t, domain.RoleNone, m.Role())
}

func TestCalleePath(t *testing.T) {
	m := New()
	fire(t, m, EventOfferReceived)
	assert.Equal(t, domain.StatusConnecting, m.Status())
	assert.Equal(t, domain.RoleCallee, m.Role())

	fire(t, m, EventAnswerSent)
	assert.Equal(t, domain.StatusConnected, m.Status())
}

func TestRoleGatesConnectingExits(t *testing.T) {
	caller := New()
	fire(t, caller, EventDial)
	_, err := caller.Fire(EventAnswerSent)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, domain.StatusConnecting, caller.Status())

	callee := New()
	fire(t, callee, EventOfferReceived)
	_, err = callee.Fire(EventOfferSent)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestConnectedUnreachableWithoutPredecessor(t *testing.T) {
	m := New()
	for _, ev := range []Event{EventAnswerReceived, EventAnswerSent, EventOfferSent, EventHangup, EventLinkClosed, EventAbort, EventRemoteHangup} {
		_, err := m.Fire(ev)
		assert.ErrorIs(t, err, ErrInvalidTransition, "event %s", ev)
		assert.Equal(t, domain.StatusIdle, m.Status())
	}

	fire(t, m, EventDial)
	_, err := m.Fire(EventAnswerReceived)
	assert.ErrorIs(t, err, ErrInvalidTransition, "connected must not skip calling")
}

func TestSecondDialRejected(t *testing.T) {
	m := New()
	fire(t, m, EventDial)
	assert.False(t, m.Can(EventDial))
	assert.False(t, m.Can(EventOfferReceived))
}

func TestTerminalEventsFromEveryActiveState(t *testing.T) {
	paths := map[string][]Event{
		"connecting caller": {EventDial},
		"calling":           {EventDial, EventOfferSent},
		"connected caller":  {EventDial, EventOfferSent, EventAnswerReceived},
		"connecting callee": {EventOfferReceived},
		"connected callee":  {EventOfferReceived, EventAnswerSent},
	}
	for _, ev := range []Event{EventHangup, EventRemoteHangup, EventLinkClosed, EventAbort} {
		for name, path := range paths {
			t.Run(string(ev)+"/"+name, func(t *testing.T) {
				m := New()
				fire(t, m, path...)
				tr, err := m.Fire(ev)
				require.NoError(t, err)
				assert.Equal(t, domain.StatusIdle, tr.To)
				assert.Equal(t, domain.StatusIdle, m.Status())
			})
		}
	}
}

func TestOnTransitionHook(t *testing.T) {
	m := New()
	var got []Transition
	m.OnTransition(func(tr Transition) { got = append(got, tr) })
	fire(t, m, EventDial, EventOfferSent)

	require.Len(t, got, 2)
	assert.Equal(t, Transition{From: domain.StatusIdle, To: domain.StatusConnecting, Event: EventDial, Role: domain.RoleCaller}, got[0])
	assert.Equal(t, domain.StatusCalling, got[1].To)
}
