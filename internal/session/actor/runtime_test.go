package actor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"Chronicle/internal/game/entity"
	"Chronicle/internal/session/actors"
	"Chronicle/internal/session/infra/persistence/memory"
	"Chronicle/internal/session/port"
	"Chronicle/modules/kit/errx"
)

func newRuntime(t *testing.T, seed func(string) *entity.Bundle) (*Runtime, *memory.SessionRepository) {
	t.Helper()
	repo := memory.NewSessionRepository()
	rt := NewRuntime(actors.Options{Repo: repo, Seed: seed, FlushEvery: 60_000}, time.Second)
	t.Cleanup(rt.Shutdown)
	return rt, repo
}

func seed(id string) *entity.Bundle {
	return entity.NewBundle(entity.SessionContext{SessionID: id}, entity.GameState{})
}

func TestSessionStoreCommitAndSnapshot(t *testing.T) {
	rt, _ := newRuntime(t, seed)
	s := rt.Session("s1")
	ctx := context.Background()

	if err := s.Commit(ctx, func(b *entity.Bundle) error {
		b.State.Turn = 1
		b.State.WorldFlags["gate"] = "open"
		return nil
	}); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	boom := errors.New("boom")
	if err := s.Commit(ctx, func(b *entity.Bundle) error {
		b.State.Turn = 42
		return boom
	}); !errors.Is(err, boom) {
		t.Fatalf("Commit err = %v, want boom", err)
	}

	got, err := s.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if got.State.Turn != 1 || got.State.WorldFlags["gate"] != "open" || got.Revision != 1 {
		t.Fatalf("snapshot = turn %d flags %v revision %d", got.State.Turn, got.State.WorldFlags, got.Revision)
	}
}

func TestCommitPanicLeavesBundle(t *testing.T) {
	rt, _ := newRuntime(t, seed)
	s := rt.Session("s1")
	ctx := context.Background()

	err := s.Commit(ctx, func(b *entity.Bundle) error {
		b.State.Turn = 5
		panic("reducer bug")
	})
	if err == nil {
		t.Fatalf("panicking commit returned nil")
	}
	got, err := s.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if got.State.Turn != 0 {
		t.Fatalf("after panic: turn %d, want 0", got.State.Turn)
	}
}

func TestConcurrentCommitsApplyInOrder(t *testing.T) {
	rt, _ := newRuntime(t, seed)
	s := rt.Session("s1")
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
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

	got, err := s.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if got.State.Turn != 20 {
		t.Fatalf("turn = %d, want 20", got.State.Turn)
	}
}

func TestReplaceAndFlush(t *testing.T) {
	rt, repo := newRuntime(t, seed)
	s := rt.Session("s1")
	ctx := context.Background()

	next := entity.NewBundle(entity.SessionContext{SessionID: "s1"}, entity.GameState{Turn: 8})
	if err := s.Replace(ctx, next); err != nil {
		t.Fatalf("Replace: %v", err)
	}
	if err := s.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	stored, err := repo.Load(ctx, "s1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if stored.State.Turn != 8 {
		t.Fatalf("stored turn = %d, want 8", stored.State.Turn)
	}
}

func TestUnknownSessionWithoutSeed(t *testing.T) {
	rt, _ := newRuntime(t, nil)

	_, err := rt.Session("ghost").Snapshot(context.Background())
	if !errors.Is(err, port.ErrSessionNotFound) {
		t.Fatalf("Snapshot err = %v, want ErrSessionNotFound in chain", err)
	}
}

func TestTimedOutCommitIsDiscarded(t *testing.T) {
	repo := memory.NewSessionRepository()
	rt := NewRuntime(actors.Options{Repo: repo, Seed: seed, FlushEvery: 60_000}, 100*time.Millisecond)
	t.Cleanup(rt.Shutdown)
	s := rt.Session("s1")
	ctx := context.Background()
	if _, err := s.Snapshot(ctx); err != nil {
		t.Fatalf("Snapshot: %v", err)
	}

	err := s.Commit(ctx, func(b *entity.Bundle) error {
		time.Sleep(400 * time.Millisecond)
		b.State.Turn = 9
		return nil
	})
	if errx.CodeOf(err) != errx.CodeTimeout {
		t.Fatalf("Commit err = %v, want timeout", err)
	}

	time.Sleep(600 * time.Millisecond)
	got, err := s.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if got.State.Turn != 0 || got.Revision != 0 {
		t.Fatalf("after abandoned commit: turn %d revision %d, want 0 0", got.State.Turn, got.Revision)
	}
}
