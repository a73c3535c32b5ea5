// Package generator is the boundary to the external narrative generator.
package generator

import (
	"context"

	"Chronicle/internal/game/entity"
)

// Request is what the generator sees for one turn.
type Request struct {
	SessionID string           `json:"sessionId"`
	Turn      int              `json:"turn"`
	Input     entity.TurnInput `json:"input"`
	Context   Projection       `json:"context"`
}

// Progress is one incremental update emitted while a turn is generated.
type Progress struct {
	Stage string `json:"stage,omitempty"`
	Text  string `json:"text,omitempty"`
}

type ProgressFunc func(Progress)

// Generator produces the patch for one turn. Implementations must return
// promptly with ctx.Err() once ctx is done.
type Generator interface {
	Generate(ctx context.Context, req Request, progress ProgressFunc) (*entity.Patch, error)
}

// Func adapts a plain function to Generator.
type Func func(ctx context.Context, req Request, progress ProgressFunc) (*entity.Patch, error)

func (f Func) Generate(ctx context.Context, req Request, progress ProgressFunc) (*entity.Patch, error) {
	return f(ctx, req, progress)
}
