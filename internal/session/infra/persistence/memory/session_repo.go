package memory

import (
	"context"
	"sync"

	"Chronicle/internal/game/entity"
	"Chronicle/internal/session/infra/persistence/model"
	"Chronicle/internal/session/port"
)

// SessionRepository keeps encoded bundles in process memory.
type SessionRepository struct {
	mu       sync.RWMutex
	rows     map[string]*model.SessionRow
	versions map[string]uint64
}

func NewSessionRepository() *SessionRepository {
	return &SessionRepository{
		rows:     make(map[string]*model.SessionRow),
		versions: make(map[string]uint64),
	}
}

func (r *SessionRepository) Load(ctx context.Context, sessionID string) (*entity.Bundle, error) {
	_ = ctx
	r.mu.RLock()
	row, ok := r.rows[sessionID]
	r.mu.RUnlock()
	if !ok {
		return nil, port.ErrSessionNotFound.WithData("session_id", sessionID)
	}
	return model.RowToBundle(row.Payload)
}

func (r *SessionRepository) Save(ctx context.Context, s *port.Snapshot) error {
	_ = ctx
	if s == nil || s.Bundle == nil {
		return nil
	}
	row, err := model.SnapshotToRow(s)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if s.Version < r.versions[s.SessionID] {
		return nil
	}
	r.versions[s.SessionID] = s.Version
	r.rows[s.SessionID] = row
	return nil
}
