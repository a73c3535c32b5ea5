package mongodb

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"Chronicle/internal/game/entity"
	"Chronicle/internal/session/infra/persistence/model"
	"Chronicle/internal/session/port"
	"Chronicle/modules/kit/errx"
)

const defaultCollectionName = "session"

// sessionDoc stores the bundle as its JSON encoding so generator-defined
// extra fields survive unchanged.
type sessionDoc struct {
	ID        string    `bson:"_id"`
	Version   uint64    `bson:"version"`
	Revision  uint64    `bson:"revision"`
	Turn      int       `bson:"turn"`
	Payload   []byte    `bson:"payload"`
	UpdatedAt time.Time `bson:"updated_at"`
}

type SessionRepository struct {
	coll *mongo.Collection
}

func NewSessionRepository(db *mongo.Database) *SessionRepository {
	return &SessionRepository{
		coll: db.Collection(defaultCollectionName),
	}
}

func (r *SessionRepository) Load(ctx context.Context, sessionID string) (*entity.Bundle, error) {
	if r == nil || r.coll == nil {
		return nil, errors.New("mongodb session collection is nil")
	}

	var doc sessionDoc
	err := r.coll.FindOne(ctx, bson.M{"_id": sessionID}).Decode(&doc)
	switch {
	case err == nil:
	case errors.Is(err, mongo.ErrNoDocuments):
		return nil, port.ErrSessionNotFound.WithData("session_id", sessionID)
	default:
		return nil, errx.ErrUnavailable.WithCause(err).WithData("session_id", sessionID)
	}

	b, err := model.RowToBundle(doc.Payload)
	if err != nil {
		return nil, errx.ErrCorrupt.WithCause(err).WithData("session_id", sessionID)
	}
	return b, nil
}

// Save upserts the snapshot unless a newer version is already stored.
func (r *SessionRepository) Save(ctx context.Context, s *port.Snapshot) error {
	if s == nil || s.Bundle == nil {
		return nil
	}
	if r == nil || r.coll == nil {
		return errors.New("mongodb session collection is nil")
	}

	row, err := model.SnapshotToRow(s)
	if err != nil {
		return err
	}
	doc := sessionDoc{
		ID:        row.ID,
		Version:   row.Version,
		Revision:  row.Revision,
		Turn:      row.Turn,
		Payload:   row.Payload,
		UpdatedAt: row.UpdatedAt,
	}

	_, err = r.coll.ReplaceOne(
		ctx,
		bson.M{"_id": doc.ID, "version": bson.M{"$lte": doc.Version}},
		doc,
		options.Replace().SetUpsert(true),
	)
	if mongo.IsDuplicateKeyError(err) {
		// the filter missed because a newer version is stored
		return nil
	}
	if err != nil {
		return errx.ErrUnavailable.WithCause(err).WithData("session_id", s.SessionID)
	}
	return nil
}
