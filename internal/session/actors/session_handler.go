package actors

import (
	"context"
	"fmt"

	"github.com/asynkron/protoactor-go/actor"

	"Chronicle/internal/game/entity"
	"Chronicle/internal/merge"
	"Chronicle/internal/session/statestore"
	"Chronicle/internal/shared/actor/messages"
	"Chronicle/modules/kit/errx"
)

var errAbandoned = errx.ErrTimeout.WithData("reason", "commit_abandoned")

type SessionHandler struct{}

var SH = &SessionHandler{}

func (h *SessionHandler) HandleSnapshot(ctx actor.Context, s *SessionActor, _ messages.Snapshot) {
	ctx.Respond(messages.Reply{Bundle: copyOf(s.Bundle())})
}

// HandleCommit runs the caller's function inside the mailbox. A panic in
// it is reported as an internal error and leaves the bundle untouched.
func (h *SessionHandler) HandleCommit(ctx actor.Context, s *SessionActor, req messages.Commit) {
	if req.Fn == nil {
		ctx.Respond(messages.Reply{Err: errx.ErrBadRequest.WithData("reason", "nil_commit")})
		return
	}
	err := func() (err error) {
		defer func() {
			if p := recover(); p != nil {
				err = errx.ErrInternal.WithCause(fmt.Errorf("commit panicked: %v", p))
			}
		}()
		return statestore.Apply(s.Bundle(), claimed(req), func(*entity.Bundle) { s.dc.MarkDirty() })
	}()
	if err != nil {
		ctx.Respond(messages.Reply{Err: err})
		return
	}
	ctx.Respond(messages.Reply{Bundle: copyOf(s.Bundle())})
}

// claimed wraps the commit function so a result nobody waits for is
// discarded instead of installed.
func claimed(req messages.Commit) func(b *entity.Bundle) error {
	if req.Claim == nil {
		return req.Fn
	}
	return func(b *entity.Bundle) error {
		if err := req.Fn(b); err != nil {
			return err
		}
		if !req.Claim() {
			return errAbandoned
		}
		return nil
	}
}

func (h *SessionHandler) HandleReplace(ctx actor.Context, s *SessionActor, req messages.Replace) {
	if req.Bundle == nil {
		ctx.Respond(messages.Reply{Err: errx.ErrBadRequest.WithData("reason", "nil_bundle")})
		return
	}
	s.dc.Set(copyOf(req.Bundle))
	ctx.Respond(messages.Reply{})
}

func (h *SessionHandler) HandleFlush(ctx actor.Context, s *SessionActor, _ messages.Flush) {
	ctx.Respond(messages.Reply{Err: s.dc.FlushSync(context.Background())})
}

func copyOf(b *entity.Bundle) *entity.Bundle {
	out := merge.Clone(*b)
	return &out
}
