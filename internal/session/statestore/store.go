// Package statestore defines the serialized access path to a session
// bundle and a mutex-backed implementation of it.
package statestore

import (
	"context"
	"sync"

	"Chronicle/internal/game/entity"
	"Chronicle/internal/merge"
)

// Store serializes every access to one bundle. Implementations apply
// commits and replacements strictly in submission order.
type Store interface {
	// Snapshot returns a copy the caller owns.
	Snapshot(ctx context.Context) (*entity.Bundle, error)
	// Commit runs fn against a working copy and installs it only when fn
	// returns nil. The revision is bumped on success.
	Commit(ctx context.Context, fn func(b *entity.Bundle) error) error
	// Replace installs b wholesale.
	Replace(ctx context.Context, b *entity.Bundle) error
}

// Locked is a Store guarded by a single mutex.
type Locked struct {
	mu       sync.Mutex
	b        *entity.Bundle
	onChange func(*entity.Bundle)
}

func NewLocked(initial *entity.Bundle) *Locked {
	if initial == nil {
		initial = &entity.Bundle{}
	}
	b := merge.Clone(*initial)
	return &Locked{b: &b}
}

// OnChange registers fn to observe every installed bundle. fn runs under
// the store lock and must not call back into the store.
func (s *Locked) OnChange(fn func(*entity.Bundle)) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

func (s *Locked) Snapshot(ctx context.Context) (*entity.Bundle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := merge.Clone(*s.b)
	return &out, nil
}

func (s *Locked) Commit(ctx context.Context, fn func(b *entity.Bundle) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return Apply(s.b, fn, s.onChange)
}

func (s *Locked) Replace(ctx context.Context, b *entity.Bundle) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	next := merge.Clone(*b)
	s.mu.Lock()
	defer s.mu.Unlock()
	*s.b = next
	if s.onChange != nil {
		s.onChange(s.b)
	}
	return nil
}

// Apply runs fn on a copy of cur and copies the result back on success.
// Store implementations share it so commit semantics stay identical.
func Apply(cur *entity.Bundle, fn func(b *entity.Bundle) error, onChange func(*entity.Bundle)) error {
	work := merge.Clone(*cur)
	if err := fn(&work); err != nil {
		return err
	}
	work.Revision = cur.Revision + 1
	*cur = work
	if onChange != nil {
		onChange(cur)
	}
	return nil
}
