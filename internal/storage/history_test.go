package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/Howdy/internal/domain"
)

func openTemp(t *testing.T) *History {
	t.Helper()
	h, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Close() })
	return h
}

func TestSaveAndList(t *testing.T) {
	h := openTemp(t)
	ctx := context.Background()
	base := time.UnixMilli(1_700_000_000_000)

	first := domain.CallRecord{
		ID:               "c1",
		Self:             "alice",
		Remote:           "bob",
		Role:             domain.RoleCaller,
		StartedAt:        base,
		ConnectedAt:      base.Add(time.Second),
		EndedAt:          base.Add(time.Minute),
		EndReason:        "hangup",
		LocalTranscript:  "hi ",
		RemoteTranscript: "hello ",
	}
	missed := domain.CallRecord{
		ID:        "c2",
		Self:      "alice",
		Remote:    "carol",
		Role:      domain.RoleCallee,
		StartedAt: base.Add(time.Hour),
		EndedAt:   base.Add(time.Hour + time.Second),
		EndReason: "remote_hangup",
	}
	require.NoError(t, h.Save(ctx, first))
	require.NoError(t, h.Save(ctx, missed))

	got, err := h.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "c2", got[0].ID)
	assert.True(t, got[0].ConnectedAt.IsZero())
	assert.False(t, got[0].Connected())

	assert.Equal(t, first.ID, got[1].ID)
	assert.Equal(t, first.Remote, got[1].Remote)
	assert.Equal(t, first.Role, got[1].Role)
	assert.True(t, first.ConnectedAt.Equal(got[1].ConnectedAt))
	assert.Equal(t, time.Minute-time.Second, got[1].Duration())
	assert.Equal(t, "hello ", got[1].RemoteTranscript)

	latest, err := h.List(ctx, 1)
	require.NoError(t, err)
	require.Len(t, latest, 1)
	assert.Equal(t, "c2", latest[0].ID)
}

func TestSaveUpdatesExisting(t *testing.T) {
	h := openTemp(t)
	ctx := context.Background()
	rec := domain.CallRecord{ID: "c1", Self: "alice", Remote: "bob", Role: domain.RoleCaller, StartedAt: time.Now(), EndedAt: time.Now()}
	require.NoError(t, h.Save(ctx, rec))
	rec.LocalTranscript = "later "
	require.NoError(t, h.Save(ctx, rec))

	got, err := h.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "later ", got[0].LocalTranscript)
}

func TestReopenKeepsRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	h, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, h.Save(context.Background(), domain.CallRecord{ID: "c1", Self: "a", Remote: "b", StartedAt: time.Now(), EndedAt: time.Now()}))
	require.NoError(t, h.Close())

	h, err = Open(path)
	require.NoError(t, err)
	defer h.Close()
	got, err := h.List(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
