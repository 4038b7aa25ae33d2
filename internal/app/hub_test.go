package app

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/Howdy/internal/core"
	"github.com/dkeye/Howdy/internal/domain"
)

type fakeConn struct {
	mu     sync.Mutex
	frames []core.Frame
	full   bool
	closed bool
}

func (c *fakeConn) TrySend(f core.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("closed")
	}
	if c.full {
		return errors.New("backpressure")
	}
	c.frames = append(c.frames, f)
	return nil
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

func (c *fakeConn) envelopes(t *testing.T) []core.Envelope {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]core.Envelope, 0, len(c.frames))
	for _, f := range c.frames {
		env, err := core.Decode(f)
		require.NoError(t, err)
		out = append(out, env)
	}
	return out
}

type denyAll struct{}

func (denyAll) Allow(domain.Identity) bool { return false }
func (denyAll) Forget(domain.Identity)     {}

type countingLimiter struct {
	forgotten []domain.Identity
}

func (l *countingLimiter) Allow(domain.Identity) bool { return true }
func (l *countingLimiter) Forget(id domain.Identity)  { l.forgotten = append(l.forgotten, id) }

func newHub(ids ...domain.Identity) (*Hub, map[domain.Identity]*fakeConn) {
	reg := NewRegistry()
	conns := make(map[domain.Identity]*fakeConn)
	for _, id := range ids {
		c := &fakeConn{}
		conns[id] = c
		reg.Bind(id, c, nil)
	}
	return &Hub{Registry: reg, Policy: SimplePolicy{}}, conns
}

func TestHubStampsSender(t *testing.T) {
	hub, conns := newHub("alice", "bob")

	hub.OnFrame("alice", core.Frame(`{"type":"transcript","to":"bob","from":"mallory","text":"hi "}`))

	got := conns["bob"].envelopes(t)
	require.Len(t, got, 1)
	assert.Equal(t, core.Transcript{To: "bob", From: "alice", Text: "hi "}, got[0])
	assert.Empty(t, conns["alice"].envelopes(t))
}

func TestHubPeerOffline(t *testing.T) {
	hub, conns := newHub("alice")

	hub.OnFrame("alice", core.Frame(`{"type":"hangup","to":"bob"}`))

	got := conns["alice"].envelopes(t)
	require.Len(t, got, 1)
	e, ok := got[0].(core.Error)
	require.True(t, ok)
	assert.Equal(t, core.CodePeerOffline, e.Code)
	assert.Equal(t, domain.Identity("bob"), e.From)
}

func TestHubRejectsBadEnvelopes(t *testing.T) {
	for name, frame := range map[string]string{
		"not json":       `{`,
		"unknown type":   `{"type":"join","to":"bob"}`,
		"no recipient":   `{"type":"hangup"}`,
		"client error":   `{"type":"error","to":"bob","code":"peer_offline"}`,
		"offer sdp-less": `{"type":"offer","to":"bob"}`,
	} {
		t.Run(name, func(t *testing.T) {
			hub, conns := newHub("alice", "bob")
			hub.OnFrame("alice", core.Frame(frame))

			assert.Empty(t, conns["bob"].envelopes(t))
			got := conns["alice"].envelopes(t)
			require.Len(t, got, 1)
			assert.Equal(t, core.CodeBadEnvelope, got[0].(core.Error).Code)
		})
	}
}

func TestHubRateLimited(t *testing.T) {
	hub, conns := newHub("alice", "bob")
	hub.Limiter = denyAll{}

	hub.OnFrame("alice", core.Frame(`{"type":"hangup","to":"bob"}`))

	assert.Empty(t, conns["bob"].envelopes(t))
	got := conns["alice"].envelopes(t)
	require.Len(t, got, 1)
	assert.Equal(t, core.CodeRateLimited, got[0].(core.Error).Code)
}

func TestHubKicksSlowPeer(t *testing.T) {
	hub, conns := newHub("alice", "bob")
	conns["bob"].full = true

	hub.OnFrame("alice", core.Frame(`{"type":"hangup","to":"bob"}`))

	assert.True(t, conns["bob"].closed)
	_, ok := hub.Registry.Get("bob")
	assert.False(t, ok)
}

func TestHubReleaseForgetsLimiter(t *testing.T) {
	hub, _ := newHub()
	limiter := &countingLimiter{}
	hub.Limiter = limiter

	oldID := hub.Registry.Bind("alice", &fakeConn{}, nil)
	newID := hub.Registry.Bind("alice", &fakeConn{}, nil)

	assert.False(t, hub.Release("alice", oldID))
	assert.Empty(t, limiter.forgotten, "superseded connection keeps the bucket")

	assert.True(t, hub.Release("alice", newID))
	assert.Equal(t, []domain.Identity{"alice"}, limiter.forgotten)
	_, ok := hub.Registry.Get("alice")
	assert.False(t, ok)
}

func TestRegistrySupersedes(t *testing.T) {
	reg := NewRegistry()
	first, second := &fakeConn{}, &fakeConn{}
	canceled := false

	oldID := reg.Bind("alice", first, func() { canceled = true })
	newID := reg.Bind("alice", second, nil)

	assert.NotEqual(t, oldID, newID)
	assert.True(t, first.closed)
	assert.True(t, canceled)

	assert.False(t, reg.Unbind("alice", oldID))
	conn, ok := reg.Get("alice")
	require.True(t, ok)
	assert.Same(t, second, conn)

	assert.True(t, reg.Unbind("alice", newID))
	assert.Zero(t, reg.Len())
}

func TestRegistryOnlineSorted(t *testing.T) {
	reg := NewRegistry()
	for _, id := range []domain.Identity{"carol", "alice", "bob"} {
		reg.Bind(id, &fakeConn{}, nil)
	}
	assert.Equal(t, []domain.Identity{"alice", "bob", "carol"}, reg.Online())
}
