package netsync

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"Chronicle/internal/game/entity"
	"Chronicle/internal/session/statestore"
	"Chronicle/internal/shared/security"
	"Chronicle/internal/turn"
	"Chronicle/modules/kit/errx"
	"Chronicle/modules/kit/logx"
)

// TurnRunner runs composite inputs from coordinated actions.
type TurnRunner interface {
	RunTurn(ctx context.Context, in entity.TurnInput) (*turn.Outcome, error)
	WaitIdle(ctx context.Context) error
}

// JoinVerifier returns the peer id a join token admits into sessionID.
type JoinVerifier func(token, sessionID string) (string, error)

// VerifyJWT checks tokens issued by security.AwardJoin.
func VerifyJWT(token, sessionID string) (string, error) {
	claims, err := security.ParseJoin(token, sessionID)
	if err != nil {
		return "", err
	}
	return claims.PeerID, nil
}

type HostOption func(*Host)

func WithHostLogger(l logx.Logger) HostOption { return func(h *Host) { h.log = l } }

func WithJoinVerifier(v JoinVerifier) HostOption { return func(h *Host) { h.verify = v } }

// Host owns the canonical bundle of a networked session. It admits peers,
// commits their turns, tracks coordinated actions and pushes full-syncs.
type Host struct {
	sessionID string
	selfID    string
	store     statestore.Store
	verify    JoinVerifier
	members   *Members
	log       logx.Logger
	seq       atomic.Int64

	mu      sync.Mutex
	runner  TurnRunner
	actions map[string]*pendingAction
}

func NewHost(sessionID, selfID string, store statestore.Store, opts ...HostOption) *Host {
	h := &Host{
		sessionID: sessionID,
		selfID:    selfID,
		store:     store,
		verify:    VerifyJWT,
		log:       logx.Nop(),
		actions:   make(map[string]*pendingAction),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.log = h.log.With(zap.String("session_id", sessionID))
	h.members = NewMembers(h.departed)
	return h
}

// Attach sets the coordinator that runs composite turns. The coordinator in
// turn uses the host as its broadcaster.
func (h *Host) Attach(r TurnRunner) {
	h.mu.Lock()
	h.runner = r
	h.mu.Unlock()
}

func (h *Host) Members() []string { return h.members.IDs() }

func (h *Host) envelope(kind Kind, payload any) (Envelope, error) {
	env, err := NewEnvelope(kind, h.selfID, payload)
	env.Seq = h.seq.Add(1)
	return env, err
}

// BroadcastFullSync sends b to every member.
func (h *Host) BroadcastFullSync(ctx context.Context, b *entity.Bundle) error {
	return h.broadcast(ctx, b, "turn")
}

// Sync snapshots the store and broadcasts it.
func (h *Host) Sync(ctx context.Context, reason string) error {
	b, err := h.store.Snapshot(ctx)
	if err != nil {
		return err
	}
	return h.broadcast(ctx, b, reason)
}

func (h *Host) broadcast(ctx context.Context, b *entity.Bundle, reason string) error {
	env, err := h.envelope(KindFullSync, &FullSync{Reason: reason, Bundle: b, Members: h.members.IDs()})
	if err != nil {
		return err
	}
	return h.fanout(ctx, env)
}

func (h *Host) fanout(ctx context.Context, env Envelope) error {
	var errs []error
	for _, m := range h.members.List() {
		if err := m.Conn.Send(ctx, env); err != nil {
			h.log.Warn("host send failed", zap.String("peer_id", m.PeerID), zap.String("kind", string(env.Kind)), zap.Error(err))
			errs = append(errs, err)
		}
	}
	if len(errs) != 0 {
		return turn.ErrConnectionLost.WithCause(errors.Join(errs...))
	}
	return nil
}

func (h *Host) sendFull(ctx context.Context, conn Conn, reason string) error {
	b, err := h.store.Snapshot(ctx)
	if err != nil {
		return err
	}
	env, err := h.envelope(KindFullSync, &FullSync{Reason: reason, Bundle: b, Members: h.members.IDs()})
	if err != nil {
		return err
	}
	return conn.Send(ctx, env)
}

// Handle processes one envelope from conn. Everything but a join requires
// the connection to belong to a member.
func (h *Host) Handle(ctx context.Context, conn Conn, env Envelope) error {
	if env.Kind == KindJoin {
		return h.join(ctx, conn, env)
	}
	peerID, ok := h.members.PeerOf(conn)
	if !ok {
		return ErrNotMember.WithData("kind", string(env.Kind))
	}
	switch env.Kind {
	case KindLeave:
		h.Kick(ctx, peerID, "left")
		return nil
	case KindSyncRequest:
		return h.sendFull(ctx, conn, "request")
	case KindTurnSubmit:
		return h.acceptTurn(ctx, peerID, conn, env)
	case KindActionRequest:
		req := ActionRequest{}
		if err := env.Decode(&req); err != nil {
			return err
		}
		_, err := h.RequestAction(ctx, peerID, req)
		return err
	case KindActionSubmit:
		sub := ActionSubmit{}
		if err := env.Decode(&sub); err != nil {
			return err
		}
		_, err := h.SubmitAction(ctx, peerID, sub)
		return err
	case KindActionCancel:
		c := ActionCancel{}
		if err := env.Decode(&c); err != nil {
			return err
		}
		return h.CancelAction(ctx, peerID, c.ActionID)
	default:
		return errx.ErrBadRequest.WithData("reason", "unknown_kind").WithData("kind", string(env.Kind))
	}
}

func (h *Host) join(ctx context.Context, conn Conn, env Envelope) error {
	req := Join{}
	if err := env.Decode(&req); err != nil {
		return err
	}
	peerID, err := h.verify(req.Token, h.sessionID)
	if err != nil {
		logx.ReportBiz(ctx, h.log, logx.NewBizLog("session.join", "bad_token", err.Error()), zap.String("remote", conn.Addr()))
		return ErrJoinRejected.WithCause(err)
	}
	if peerID == "" || peerID == h.selfID {
		return ErrJoinRejected.WithData("reason", "reserved_peer_id").WithData("peer_id", peerID)
	}

	if old := h.members.Bind(peerID, req.Name, conn); old != nil {
		if kick, err := h.envelope(KindLeave, &Leave{PeerID: peerID, Reason: "replaced"}); err == nil {
			_ = old.Send(ctx, kick)
		}
		old.Close()
	}
	h.log.Info("peer joined", zap.String("peer_id", peerID), zap.String("remote", conn.Addr()))
	// the joiner receives this too, as a complete snapshot
	return h.Sync(ctx, "join")
}

// Kick removes peerID, tells it why and rebroadcasts membership.
func (h *Host) Kick(ctx context.Context, peerID, reason string) {
	conn, ok := h.members.Unbind(peerID)
	if !ok {
		return
	}
	if env, err := h.envelope(KindLeave, &Leave{PeerID: peerID, Reason: reason}); err == nil {
		_ = conn.Send(ctx, env)
	}
	h.log.Info("peer left", zap.String("peer_id", peerID), zap.String("reason", reason))
	h.afterLeave(ctx, peerID)
}

// departed runs when a member's connection closes underneath it.
func (h *Host) departed(peerID string) {
	h.log.Info("peer disconnected", zap.String("peer_id", peerID))
	h.afterLeave(context.Background(), peerID)
}

func (h *Host) afterLeave(ctx context.Context, peerID string) {
	h.dropParticipant(ctx, peerID)
	if err := h.Sync(ctx, "leave"); err != nil {
		h.log.Warn("membership sync failed", zap.Error(err))
	}
}

// acceptTurn commits a peer's optimistic result as canonical: the bundle is
// replaced and the turn advanced. A result built on an older turn or an older
// revision loses and its sender is resynced.
func (h *Host) acceptTurn(ctx context.Context, peerID string, conn Conn, env Envelope) error {
	sub := turn.Submission{}
	if err := env.Decode(&sub); err != nil {
		return err
	}
	if sub.Bundle == nil {
		return errx.ErrBadRequest.WithData("reason", "empty_bundle")
	}
	if sub.SessionID != h.sessionID {
		return errx.ErrBadRequest.WithData("reason", "session_mismatch").WithData("session_id", sub.SessionID)
	}
	if r := h.turnRunner(); r != nil {
		if err := r.WaitIdle(ctx); err != nil {
			return err
		}
	}

	var canonical int
	err := h.store.Commit(ctx, func(b *entity.Bundle) error {
		if sub.Bundle.State.Turn != b.State.Turn {
			return ErrStaleTurn.WithData("base_turn", sub.Bundle.State.Turn).WithData("turn", b.State.Turn)
		}
		// host edits made since the peer's last full-sync must survive
		if sub.BaseRevision != b.Revision {
			return ErrStaleTurn.WithData("base_revision", sub.BaseRevision).WithData("revision", b.Revision)
		}
		b.State = sub.Bundle.State
		b.History = sub.Bundle.History
		b.Logs = sub.Bundle.Logs
		b.State.Turn++
		canonical = b.State.Turn
		return nil
	})
	if errors.Is(err, ErrStaleTurn) {
		logx.ReportBiz(ctx, h.log, logx.NewBizLog("turn.submit", "stale", err.Error()), zap.String("peer_id", peerID))
		if serr := h.sendFull(ctx, conn, "stale"); serr != nil {
			h.log.Warn("resync after stale turn failed", zap.String("peer_id", peerID), zap.Error(serr))
		}
		return err
	}
	if err != nil {
		return err
	}
	h.log.Info("peer turn committed", zap.String("peer_id", peerID), zap.Int("turn", canonical),
		zap.String("input", sub.Input.Text))
	return h.Sync(ctx, "turn")
}

func (h *Host) turnRunner() TurnRunner {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.runner
}

// runComposite waits out any running turn and runs in, retrying while
// another caller wins the race for the coordinator.
func (h *Host) runComposite(ctx context.Context, in entity.TurnInput) (*turn.Outcome, error) {
	r := h.turnRunner()
	if r == nil {
		return nil, errx.ErrInternal.WithData("reason", "no_turn_runner")
	}
	for {
		if err := r.WaitIdle(ctx); err != nil {
			return nil, err
		}
		out, err := r.RunTurn(ctx, in)
		if !errors.Is(err, turn.ErrBusy) {
			return out, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(10 * time.Millisecond):
		}
	}
}
