package netsync

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"Chronicle/internal/session/statestore"
	"Chronicle/internal/turn"
	"Chronicle/modules/kit/errx"
	"Chronicle/modules/kit/logx"
)

// Syncer learns that an authoritative bundle has replaced the local one.
type Syncer interface {
	OnAuthoritativeSync()
}

type PeerOption func(*Peer)

func WithPeerLogger(l logx.Logger) PeerOption { return func(p *Peer) { p.log = l } }

// WithActionObserver receives action requests and cancellations from the host.
func WithActionObserver(fn func(Envelope)) PeerOption {
	return func(p *Peer) { p.onAction = fn }
}

// Peer is a non-authoritative participant. It submits its optimistic turns
// to the host and replaces its bundle wholesale on every full-sync.
type Peer struct {
	id        string
	sessionID string
	store     statestore.Store
	onAction  func(Envelope)
	log       logx.Logger
	seq       atomic.Int64
	syncs     atomic.Int64
	base      atomic.Uint64

	mu     sync.RWMutex
	conn   Conn
	syncer Syncer
}

func NewPeer(id, sessionID string, store statestore.Store, opts ...PeerOption) *Peer {
	p := &Peer{
		id:        id,
		sessionID: sessionID,
		store:     store,
		log:       logx.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.log = p.log.With(zap.String("session_id", sessionID), zap.String("peer_id", id))
	return p
}

// Connect sets the channel to the host.
func (p *Peer) Connect(conn Conn) {
	p.mu.Lock()
	p.conn = conn
	p.mu.Unlock()
}

// SetSyncer sets who is told about full-syncs, normally the coordinator.
func (p *Peer) SetSyncer(s Syncer) {
	p.mu.Lock()
	p.syncer = s
	p.mu.Unlock()
}

// Syncs counts the full-syncs applied so far.
func (p *Peer) Syncs() int64 { return p.syncs.Load() }

func (p *Peer) send(ctx context.Context, kind Kind, payload any) error {
	p.mu.RLock()
	conn := p.conn
	p.mu.RUnlock()
	if conn == nil {
		return turn.ErrConnectionLost.WithData("reason", "not_connected")
	}
	env, err := NewEnvelope(kind, p.id, payload)
	if err != nil {
		return err
	}
	env.Seq = p.seq.Add(1)
	if err := conn.Send(ctx, env); err != nil {
		return turn.ErrConnectionLost.WithData("kind", string(kind)).WithCause(err)
	}
	return nil
}

// SubmitTurn sends a locally applied turn to the host, stamped with the
// revision of the last full-sync.
func (p *Peer) SubmitTurn(ctx context.Context, s turn.Submission) error {
	s.BaseRevision = p.base.Load()
	return p.send(ctx, KindTurnSubmit, &s)
}

func (p *Peer) Join(ctx context.Context, token, name string) error {
	return p.send(ctx, KindJoin, &Join{Token: token, Name: name})
}

func (p *Peer) Leave(ctx context.Context) error {
	return p.send(ctx, KindLeave, &Leave{PeerID: p.id})
}

func (p *Peer) RequestSync(ctx context.Context) error {
	return p.send(ctx, KindSyncRequest, nil)
}

// RequestAction asks the host to open a coordinated action and returns its id.
func (p *Peer) RequestAction(ctx context.Context, participants []string, prompt string) (string, error) {
	id := uuid.NewString()
	err := p.send(ctx, KindActionRequest, &ActionRequest{ActionID: id, Participants: participants, Prompt: prompt})
	return id, err
}

func (p *Peer) SubmitAction(ctx context.Context, actionID, text string) error {
	return p.send(ctx, KindActionSubmit, &ActionSubmit{ActionID: actionID, Text: text})
}

func (p *Peer) CancelAction(ctx context.Context, actionID string) error {
	return p.send(ctx, KindActionCancel, &ActionCancel{ActionID: actionID})
}

// Handle processes one envelope from the host.
func (p *Peer) Handle(ctx context.Context, _ Conn, env Envelope) error {
	switch env.Kind {
	case KindFullSync:
		return p.applyFullSync(ctx, env)
	case KindLeave:
		l := Leave{}
		if err := env.Decode(&l); err != nil {
			return err
		}
		if l.PeerID == p.id {
			p.log.Warn("removed from session", zap.String("reason", l.Reason))
		}
		return nil
	case KindActionRequest, KindActionCancel:
		if p.onAction != nil {
			p.onAction(env)
		}
		return nil
	default:
		return errx.ErrBadRequest.WithData("reason", "unknown_kind").WithData("kind", string(env.Kind))
	}
}

// applyFullSync replaces the local bundle, discarding any optimistic
// overlay, and releases a coordinator waiting for authority.
func (p *Peer) applyFullSync(ctx context.Context, env Envelope) error {
	fs := FullSync{}
	if err := env.Decode(&fs); err != nil {
		return err
	}
	if fs.Bundle == nil {
		return errx.ErrBadRequest.WithData("reason", "empty_bundle")
	}
	if fs.Bundle.Context.SessionID != p.sessionID {
		return errx.ErrBadRequest.WithData("reason", "session_mismatch").WithData("session_id", fs.Bundle.Context.SessionID)
	}
	if err := p.store.Replace(ctx, fs.Bundle); err != nil {
		return err
	}
	p.base.Store(fs.Bundle.Revision)
	p.syncs.Add(1)

	p.mu.RLock()
	s := p.syncer
	p.mu.RUnlock()
	if s != nil {
		s.OnAuthoritativeSync()
	}
	p.log.Info("full-sync applied", zap.String("reason", fs.Reason), zap.Int("turn", fs.Bundle.State.Turn),
		zap.Strings("members", fs.Members))
	return nil
}
