// Package sqlite stores session bundles in a local SQLite file for solo
// play. It uses the pure-Go modernc driver through database/sql.
package sqlite

import (
	"context"
	"database/sql"
	"errors"

	_ "modernc.org/sqlite"

	"Chronicle/internal/game/entity"
	"Chronicle/internal/session/infra/persistence/model"
	"Chronicle/internal/session/port"
	"Chronicle/modules/kit/errx"
)

const schema = `
CREATE TABLE IF NOT EXISTS session (
	id         TEXT PRIMARY KEY,
	version    INTEGER NOT NULL,
	revision   INTEGER NOT NULL,
	turn       INTEGER NOT NULL,
	payload    BLOB NOT NULL,
	updated_at INTEGER NOT NULL
)`

const upsert = `
INSERT INTO session (id, version, revision, turn, payload, updated_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	version = excluded.version,
	revision = excluded.revision,
	turn = excluded.turn,
	payload = excluded.payload,
	updated_at = excluded.updated_at
WHERE excluded.version >= session.version`

type SessionRepository struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path. ":memory:" gives a
// private in-memory database.
func Open(ctx context.Context, path string) (*SessionRepository, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// one writer; sqlite serializes anyway and this keeps ":memory:" a
	// single database
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SessionRepository{db: db}, nil
}

func (r *SessionRepository) Close() error {
	return r.db.Close()
}

func (r *SessionRepository) Load(ctx context.Context, sessionID string) (*entity.Bundle, error) {
	var payload []byte
	err := r.db.QueryRowContext(ctx, `SELECT payload FROM session WHERE id = ?`, sessionID).Scan(&payload)
	switch {
	case err == nil:
	case errors.Is(err, sql.ErrNoRows):
		return nil, port.ErrSessionNotFound.WithData("session_id", sessionID)
	default:
		return nil, errx.ErrUnavailable.WithCause(err).WithData("session_id", sessionID)
	}

	b, err := model.RowToBundle(payload)
	if err != nil {
		return nil, errx.ErrCorrupt.WithCause(err).WithData("session_id", sessionID)
	}
	return b, nil
}

func (r *SessionRepository) Save(ctx context.Context, s *port.Snapshot) error {
	if s == nil || s.Bundle == nil {
		return nil
	}
	m, err := model.SnapshotToRow(s)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, upsert,
		m.ID, int64(m.Version), int64(m.Revision), m.Turn, m.Payload, m.UpdatedAt.UnixMilli())
	if err != nil {
		return errx.ErrUnavailable.WithCause(err).WithData("session_id", s.SessionID)
	}
	return nil
}
