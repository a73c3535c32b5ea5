package mysql

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"Chronicle/internal/game/entity"
	"Chronicle/internal/session/infra/persistence/model"
	"Chronicle/internal/session/port"
	"Chronicle/modules/kit/errx"
)

type SessionRepo struct {
	db *gorm.DB
}

func NewSessionRepo(db *gorm.DB) *SessionRepo {
	return &SessionRepo{db: db}
}

// Migrate creates or updates the session table.
func (r *SessionRepo) Migrate(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&model.SessionRow{})
}

const OpLoadSession = "repo.session.Load"

func (r *SessionRepo) Load(ctx context.Context, sessionID string) (*entity.Bundle, error) {
	var m model.SessionRow
	err := r.db.WithContext(ctx).Where("id = ?", sessionID).First(&m).Error

	switch {
	case err == nil:
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, port.ErrSessionNotFound.WithData("session_id", sessionID)
	default:
		return nil, errx.ErrUnavailable.WithCause(err).WithData("op", OpLoadSession).WithData("session_id", sessionID)
	}

	b, err := model.RowToBundle(m.Payload)
	if err != nil {
		return nil, errx.ErrCorrupt.WithCause(err).WithData("op", OpLoadSession).WithData("session_id", sessionID)
	}
	return b, nil
}

const OpSaveSession = "repo.session.Save"

// Save upserts the row; an older version never overwrites a newer one.
func (r *SessionRepo) Save(ctx context.Context, s *port.Snapshot) error {
	if s == nil || s.Bundle == nil {
		return nil
	}
	m, err := model.SnapshotToRow(s)
	if err != nil {
		return err
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cur model.SessionRow
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id", "version").
			Where("id = ?", m.ID).
			First(&cur).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
		case err != nil:
			return errx.ErrUnavailable.WithCause(err).WithData("op", OpSaveSession).WithData("session_id", m.ID)
		case cur.Version > m.Version:
			return nil
		}
		if err := tx.Save(m).Error; err != nil {
			return errx.ErrUnavailable.WithCause(err).WithData("op", OpSaveSession).WithData("session_id", m.ID)
		}
		return nil
	})
}
