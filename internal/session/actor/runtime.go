package actor

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	protoactor "github.com/asynkron/protoactor-go/actor"

	"Chronicle/internal/game/entity"
	"Chronicle/internal/session/actors"
	"Chronicle/internal/session/statestore"
	"Chronicle/internal/shared/actor/messages"
	"Chronicle/modules/kit/errx"
)

const defaultAskTimeout = 3 * time.Second

const (
	commitPending int32 = iota
	commitClaimed
	commitAbandoned
)

var errNotStarted = errx.ErrInternal.WithData("reason", "actor_runtime_not_started")

// Runtime hosts the session actors and turns mailbox round trips into
// plain calls.
type Runtime struct {
	system  *protoactor.ActorSystem
	root    *protoactor.RootContext
	manager *protoactor.PID
	timeout time.Duration
}

func NewRuntime(opts actors.Options, askTimeout time.Duration) *Runtime {
	if askTimeout <= 0 {
		askTimeout = defaultAskTimeout
	}

	system := protoactor.NewActorSystem()
	root := system.Root
	// the manager only routes; each session gets its own child actor
	managerProps := protoactor.PropsFromProducer(func() protoactor.Actor {
		return actors.NewManagerActor(opts)
	})
	manager := root.Spawn(managerProps)

	return &Runtime{
		system:  system,
		root:    root,
		manager: manager,
		timeout: askTimeout,
	}
}

// Shutdown stops every session actor, which flushes their bundles.
func (r *Runtime) Shutdown() {
	if r == nil {
		return
	}
	if r.root != nil && r.manager != nil {
		_ = r.root.StopFuture(r.manager).Wait()
	}
	if r.system != nil {
		r.system.Shutdown()
	}
}

func (r *Runtime) request(ctx context.Context, msg messages.SessionMessage) (messages.Reply, error) {
	if r == nil || r.root == nil {
		return messages.Reply{}, errNotStarted
	}
	if err := ctx.Err(); err != nil {
		return messages.Reply{}, err
	}

	future := r.root.RequestFuture(r.manager, msg, r.timeoutFromContext(ctx))
	res, err := future.Result()
	if err != nil {
		if errors.Is(err, protoactor.ErrTimeout) {
			return messages.Reply{}, errx.ErrTimeout.WithCause(err).WithData("session_id", msg.SessionID())
		}
		return messages.Reply{}, errx.ErrInternal.WithCause(err).WithData("session_id", msg.SessionID())
	}
	reply, ok := res.(messages.Reply)
	if !ok {
		return messages.Reply{}, errx.ErrInternal.WithData("reason", "unexpected_reply_type")
	}
	return reply, reply.Err
}

func (r *Runtime) timeoutFromContext(ctx context.Context) time.Duration {
	if r.timeout <= 0 {
		return defaultAskTimeout
	}
	deadline, ok := ctx.Deadline()
	if !ok {
		return r.timeout
	}
	remain := time.Until(deadline)
	if remain <= 0 {
		return time.Millisecond
	}
	return min(remain, r.timeout)
}

// Session returns the Store view of one session. The session actor is
// started on first use.
func (r *Runtime) Session(sessionID string) *SessionStore {
	return &SessionStore{rt: r, base: messages.SessionBaseMessage{Session: sessionID}}
}

// SessionStore implements statestore.Store over a session actor.
type SessionStore struct {
	rt   *Runtime
	base messages.SessionBaseMessage
}

var _ statestore.Store = (*SessionStore)(nil)

func (s *SessionStore) Snapshot(ctx context.Context) (*entity.Bundle, error) {
	reply, err := s.rt.request(ctx, messages.Snapshot{SessionBaseMessage: s.base})
	if err != nil {
		return nil, err
	}
	return reply.Bundle, nil
}

// Commit asks the session actor to apply fn. When the ask times out while
// fn is still running, the result is discarded; when fn already finished,
// the commit stands and Commit reports success.
func (s *SessionStore) Commit(ctx context.Context, fn func(b *entity.Bundle) error) error {
	var state atomic.Int32 // commitPending, commitClaimed or commitAbandoned
	_, err := s.rt.request(ctx, messages.Commit{
		SessionBaseMessage: s.base,
		Fn:                 fn,
		Claim:              func() bool { return state.CompareAndSwap(commitPending, commitClaimed) },
	})
	if err != nil && errx.CodeOf(err) == errx.CodeTimeout && !state.CompareAndSwap(commitPending, commitAbandoned) {
		return nil
	}
	return err
}

func (s *SessionStore) Replace(ctx context.Context, b *entity.Bundle) error {
	_, err := s.rt.request(ctx, messages.Replace{SessionBaseMessage: s.base, Bundle: b})
	return err
}

// Flush writes the session to its repository before returning.
func (s *SessionStore) Flush(ctx context.Context) error {
	_, err := s.rt.request(ctx, messages.Flush{SessionBaseMessage: s.base})
	return err
}
