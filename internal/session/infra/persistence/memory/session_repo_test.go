package memory

import (
	"context"
	"errors"
	"testing"

	"Chronicle/internal/game/entity"
	"Chronicle/internal/session/port"
)

func TestSaveAndLoad(t *testing.T) {
	r := NewSessionRepository()
	ctx := context.Background()

	if _, err := r.Load(ctx, "s1"); !errors.Is(err, port.ErrSessionNotFound) {
		t.Fatalf("Load err = %v, want ErrSessionNotFound", err)
	}

	b := entity.NewBundle(entity.SessionContext{SessionID: "s1"}, entity.GameState{Turn: 3})
	if err := r.Save(ctx, &port.Snapshot{SessionID: "s1", Version: 2, Bundle: b}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	stale := entity.NewBundle(entity.SessionContext{SessionID: "s1"}, entity.GameState{Turn: 1})
	if err := r.Save(ctx, &port.Snapshot{SessionID: "s1", Version: 1, Bundle: stale}); err != nil {
		t.Fatalf("Save stale: %v", err)
	}

	got, err := r.Load(ctx, "s1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.State.Turn != 3 {
		t.Fatalf("turn = %d, want 3 (older version must not win)", got.State.Turn)
	}
	got.State.Turn = 10
	again, _ := r.Load(ctx, "s1")
	if again.State.Turn != 3 {
		t.Fatalf("loaded bundle is shared with the store")
	}
}
