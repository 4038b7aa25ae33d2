// Package storage keeps finished call records in SQLite.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"github.com/dkeye/Howdy/internal/domain"
)

type History struct {
	db *sql.DB
	mu sync.Mutex
}

// Open opens or creates the history database at path. ":memory:" works for
// throwaway sessions.
func Open(path string) (*History, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	// A single connection keeps ":memory:" databases alive across calls.
	db.SetMaxOpenConns(1)

	for _, stmt := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		`CREATE TABLE IF NOT EXISTS calls (
			id                TEXT PRIMARY KEY,
			self              TEXT NOT NULL,
			remote            TEXT NOT NULL,
			role              TEXT NOT NULL,
			started_at        INTEGER NOT NULL,
			connected_at      INTEGER DEFAULT 0,
			ended_at          INTEGER NOT NULL,
			end_reason        TEXT DEFAULT '',
			local_transcript  TEXT DEFAULT '',
			remote_transcript TEXT DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS calls_started ON calls (started_at)`,
	} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("init history: %w", err)
		}
	}
	log.Info().Str("module", "storage").Str("path", path).Msg("history open")
	return &History{db: db}, nil
}

func (h *History) Save(ctx context.Context, rec domain.CallRecord) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	_, err := h.db.ExecContext(ctx, `INSERT INTO calls (id, self, remote, role, started_at, connected_at, ended_at, end_reason, local_transcript, remote_transcript)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			connected_at=excluded.connected_at,
			ended_at=excluded.ended_at,
			end_reason=excluded.end_reason,
			local_transcript=excluded.local_transcript,
			remote_transcript=excluded.remote_transcript`,
		rec.ID, rec.Self.String(), rec.Remote.String(), string(rec.Role),
		millis(rec.StartedAt), millis(rec.ConnectedAt), millis(rec.EndedAt),
		rec.EndReason, rec.LocalTranscript, rec.RemoteTranscript)
	if err != nil {
		return fmt.Errorf("save call %s: %w", rec.ID, err)
	}
	return nil
}

// List returns up to limit records, newest first. limit <= 0 means all.
func (h *History) List(ctx context.Context, limit int) ([]domain.CallRecord, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if limit <= 0 {
		limit = -1
	}
	rows, err := h.db.QueryContext(ctx, `SELECT id, self, remote, role, started_at, connected_at, ended_at, end_reason, local_transcript, remote_transcript
		FROM calls ORDER BY started_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list calls: %w", err)
	}
	defer rows.Close()

	var result []domain.CallRecord
	for rows.Next() {
		var (
			r                         domain.CallRecord
			self, remote, role        string
			started, connected, ended int64
		)
		if err := rows.Scan(&r.ID, &self, &remote, &role, &started, &connected, &ended,
			&r.EndReason, &r.LocalTranscript, &r.RemoteTranscript); err != nil {
			return nil, err
		}
		r.Self, r.Remote = domain.Identity(self), domain.Identity(remote)
		r.Role = domain.Role(role)
		r.StartedAt, r.ConnectedAt, r.EndedAt = fromMillis(started), fromMillis(connected), fromMillis(ended)
		result = append(result, r)
	}
	return result, rows.Err()
}

func (h *History) Close() error {
	return h.db.Close()
}

func millis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
