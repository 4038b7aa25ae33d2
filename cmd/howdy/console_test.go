package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/Howdy/internal/app/orch"
	"github.com/dkeye/Howdy/internal/domain"
)

type fakeSession struct {
	called []domain.Identity
	ended  int
	muted  bool
	state  orch.State
}

func (f *fakeSession) Call(_ context.Context, remote domain.Identity) error {
	f.called = append(f.called, remote)
	return nil
}

func (f *fakeSession) EndCall(context.Context) error {
	f.ended++
	return nil
}

func (f *fakeSession) ToggleMute(context.Context) (bool, error) {
	f.muted = !f.muted
	return f.muted, nil
}

func (f *fakeSession) ToggleVideo(context.Context) (bool, error) { return false, domain.ErrNotInCall }

func (f *fakeSession) Snapshot(context.Context) (orch.State, error) { return f.state, nil }

type fakeHistory []domain.CallRecord

func (h fakeHistory) List(_ context.Context, limit int) ([]domain.CallRecord, error) {
	if limit < len(h) {
		return h[:limit], nil
	}
	return h, nil
}

func newConsole() (*console, *fakeSession, *[]string, *bytes.Buffer) {
	s := &fakeSession{}
	var spoken []string
	out := &bytes.Buffer{}
	speak := func(line string) bool {
		spoken = append(spoken, line)
		return true
	}
	c := &console{s: s, speak: speak, out: out}
	return c, s, &spoken, out
}

func TestConsoleCommands(t *testing.T) {
	c, s, spoken, out := newConsole()
	ctx := context.Background()

	require.NoError(t, c.handle(ctx, "/call bob"))
	assert.Equal(t, []domain.Identity{"bob"}, s.called)
	assert.ErrorIs(t, c.handle(ctx, "/call"), domain.ErrIdentityEmpty)

	require.NoError(t, c.handle(ctx, "/mute"))
	assert.Contains(t, out.String(), "muted: true")
	assert.ErrorIs(t, c.handle(ctx, "/video"), domain.ErrNotInCall)

	require.NoError(t, c.handle(ctx, "/hangup"))
	assert.Equal(t, 1, s.ended)

	require.NoError(t, c.handle(ctx, "  how are you  "))
	require.NoError(t, c.handle(ctx, "   "))
	assert.Equal(t, []string{"how are you"}, *spoken)

	assert.ErrorIs(t, c.handle(ctx, "/quit"), errQuit)
	assert.Error(t, c.handle(ctx, "/dance"))
}

func TestConsoleStatus(t *testing.T) {
	c, s, _, out := newConsole()
	s.state = orch.State{
		Self:         "alice",
		Linked:       true,
		Status:       domain.StatusConnected,
		Role:         domain.RoleCaller,
		Remote:       "bob",
		RemoteTracks: 1,
	}
	require.NoError(t, c.handle(context.Background(), "/status"))
	assert.Equal(t, "alice [connected] caller with bob muted=false video=false tracks=1\n", out.String())

	assert.Equal(t, "carol [idle] offline", describe(orch.State{Self: "carol", Status: domain.StatusIdle}))
}

func TestConsoleHistory(t *testing.T) {
	c, _, _, out := newConsole()
	assert.Error(t, c.handle(context.Background(), "/history"))

	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	c.history = fakeHistory{
		{Remote: "bob", Role: domain.RoleCaller, StartedAt: start, ConnectedAt: start, EndedAt: start.Add(90 * time.Second), EndReason: "hangup"},
		{Remote: "carol", Role: domain.RoleCallee, StartedAt: start, EndedAt: start, EndReason: "remote_hangup"},
	}
	require.NoError(t, c.handle(context.Background(), "/history 1"))
	assert.Contains(t, out.String(), "bob")
	assert.Contains(t, out.String(), "1m30s")
	assert.NotContains(t, out.String(), "carol")
	assert.Error(t, c.handle(context.Background(), "/history many"))
}
