package statestore

import (
	"context"
	"errors"
	"sync"
	"testing"

	"Chronicle/internal/game/entity"
)

func TestCommitIsAllOrNothing(t *testing.T) {
	s := NewLocked(entity.NewBundle(entity.SessionContext{SessionID: "s1"}, entity.GameState{Turn: 1}))
	ctx := context.Background()

	boom := errors.New("boom")
	err := s.Commit(ctx, func(b *entity.Bundle) error {
		b.State.Turn = 99
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Commit err = %v, want boom", err)
	}
	got, _ := s.Snapshot(ctx)
	if got.State.Turn != 1 || got.Revision != 0 {
		t.Fatalf("failed commit leaked: turn=%d revision=%d", got.State.Turn, got.Revision)
	}

	if err := s.Commit(ctx, func(b *entity.Bundle) error {
		b.State.Turn++
		return nil
	}); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	got, _ = s.Snapshot(ctx)
	if got.State.Turn != 2 || got.Revision != 1 {
		t.Fatalf("turn=%d revision=%d, want 2/1", got.State.Turn, got.Revision)
	}
}

func TestSnapshotIsDetached(t *testing.T) {
	s := NewLocked(entity.NewBundle(entity.SessionContext{}, entity.GameState{}))
	ctx := context.Background()

	snap, _ := s.Snapshot(ctx)
	snap.State.WorldFlags["x"] = 1

	again, _ := s.Snapshot(ctx)
	if _, ok := again.State.WorldFlags["x"]; ok {
		t.Fatalf("snapshot mutation reached the store")
	}
}

func TestCommitsAreSerialized(t *testing.T) {
	s := NewLocked(entity.NewBundle(entity.SessionContext{}, entity.GameState{}))
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Commit(ctx, func(b *entity.Bundle) error {
				b.State.Turn++
				return nil
			})
		}()
	}
	wg.Wait()

	got, _ := s.Snapshot(ctx)
	if got.State.Turn != 50 {
		t.Fatalf("turn = %d, want 50", got.State.Turn)
	}
}

func TestReplaceNotifies(t *testing.T) {
	s := NewLocked(nil)
	var seen int
	s.OnChange(func(b *entity.Bundle) { seen = b.State.Turn })

	if err := s.Replace(context.Background(), &entity.Bundle{State: entity.GameState{Turn: 7}}); err != nil {
		t.Fatalf("Replace: %v", err)
	}
	if seen != 7 {
		t.Fatalf("OnChange saw turn %d, want 7", seen)
	}
}

func TestCanceledContext(t *testing.T) {
	s := NewLocked(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := s.Commit(ctx, func(*entity.Bundle) error { return nil }); !errors.Is(err, context.Canceled) {
		t.Fatalf("Commit err = %v, want context.Canceled", err)
	}
}
