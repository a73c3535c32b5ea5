// Package model holds the stored shape of a session bundle shared by the
// persistence drivers.
package model

import (
	"encoding/json"
	"time"

	"Chronicle/internal/game/entity"
	"Chronicle/internal/session/port"
)

// SessionRow is one session as the SQL drivers store it. The bundle is
// kept whole as JSON; Turn and Revision are copied out for inspection.
type SessionRow struct {
	ID        string    `gorm:"column:id;primaryKey;size:64"`
	Version   uint64    `gorm:"column:version"`
	Revision  uint64    `gorm:"column:revision"`
	Turn      int       `gorm:"column:turn"`
	Payload   []byte    `gorm:"column:payload;type:longblob"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (SessionRow) TableName() string {
	return "session"
}

func SnapshotToRow(s *port.Snapshot) (*SessionRow, error) {
	payload, err := json.Marshal(s.Bundle)
	if err != nil {
		return nil, err
	}
	return &SessionRow{
		ID:        s.SessionID,
		Version:   s.Version,
		Revision:  s.Bundle.Revision,
		Turn:      s.Bundle.State.Turn,
		Payload:   payload,
		UpdatedAt: time.Now().UTC(),
	}, nil
}

func RowToBundle(payload []byte) (*entity.Bundle, error) {
	var b entity.Bundle
	if err := json.Unmarshal(payload, &b); err != nil {
		return nil, err
	}
	return &b, nil
}
