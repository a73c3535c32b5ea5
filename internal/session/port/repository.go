package port

import (
	"context"

	"Chronicle/internal/game/entity"
	"Chronicle/modules/kit/errx"
)

const CodeSessionNotFound errx.Code = "SESSION_NOT_FOUND"

var ErrSessionNotFound = errx.NewBiz(CodeSessionNotFound, "session not found")

// Snapshot is one persisted version of a session bundle. Repositories may
// drop a snapshot whose Version is older than the one already stored.
type Snapshot struct {
	SessionID string
	Version   uint64
	Bundle    *entity.Bundle
}

type BundleRepository interface {
	// Load returns ErrSessionNotFound when nothing is stored for id.
	Load(ctx context.Context, sessionID string) (*entity.Bundle, error)
	Save(ctx context.Context, s *Snapshot) error
}
