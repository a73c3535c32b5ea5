// Package turn runs one turn at a time: ask the generator, resolve ids,
// reduce into the session bundle and propagate the result by role.
package turn

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"Chronicle/internal/game/entity"
	"Chronicle/internal/game/reducer"
	"Chronicle/internal/generator"
	"Chronicle/internal/idresolve"
	"Chronicle/internal/merge"
	"Chronicle/internal/session/statestore"
	"Chronicle/modules/kit/logx"
)

const DefaultModerationThreshold = 0.8

// Submission is a peer's locally applied turn, sent to the host.
type Submission struct {
	SessionID string           `json:"sessionId"`
	Input     entity.TurnInput `json:"input"`
	Bundle    *entity.Bundle   `json:"bundle"`
	// BaseRevision is the host revision of the last full-sync the turn was
	// built on.
	BaseRevision uint64 `json:"baseRevision"`
}

// Submitter delivers a peer's turn to the host.
type Submitter interface {
	SubmitTurn(ctx context.Context, s Submission) error
}

// Broadcaster pushes the canonical bundle to every peer.
type Broadcaster interface {
	BroadcastFullSync(ctx context.Context, b *entity.Bundle) error
}

type Config struct {
	Role      Role
	SessionID string
	// ModerationThreshold rejects input whose moderation score is above it.
	ModerationThreshold float64
	// ContextEvents bounds the history projected for the generator.
	ContextEvents int
}

type Outcome struct {
	Status    Status        `json:"status"`
	Turn      int           `json:"turn"`
	Narrative []string      `json:"narrative,omitempty"`
	Combat    []string      `json:"combat,omitempty"`
	Dropped   reducer.Drops `json:"dropped"`
	// External counts references to ids the patch did not declare.
	External int `json:"externalRefs"`
}

type Option func(*Coordinator)

func WithSubmitter(s Submitter) Option     { return func(c *Coordinator) { c.submitter = s } }
func WithBroadcaster(b Broadcaster) Option { return func(c *Coordinator) { c.broadcaster = b } }
func WithLogger(l logx.Logger) Option      { return func(c *Coordinator) { c.log = l } }
func WithResolver(r *idresolve.Resolver) Option {
	return func(c *Coordinator) { c.resolver = r }
}
func WithReducer(r *reducer.Reducer) Option { return func(c *Coordinator) { c.reducer = r } }

// WithProgress observes generator progress for the running turn.
func WithProgress(fn generator.ProgressFunc) Option {
	return func(c *Coordinator) { c.onProgress = fn }
}

func WithClock(now func() time.Time) Option { return func(c *Coordinator) { c.now = now } }

type Coordinator struct {
	cfg         Config
	store       statestore.Store
	gen         generator.Generator
	resolver    *idresolve.Resolver
	reducer     *reducer.Reducer
	submitter   Submitter
	broadcaster Broadcaster
	onProgress  generator.ProgressFunc
	log         logx.Logger
	now         func() time.Time

	phase atomic.Int32

	mu       sync.Mutex
	busy     bool
	awaiting bool
	syncSeq  uint64
	cancel   context.CancelFunc
	idle     chan struct{}
}

func New(cfg Config, store statestore.Store, gen generator.Generator, opts ...Option) *Coordinator {
	if cfg.Role == "" {
		cfg.Role = RoleSolo
	}
	if cfg.ModerationThreshold <= 0 {
		cfg.ModerationThreshold = DefaultModerationThreshold
	}
	c := &Coordinator{
		cfg:   cfg,
		store: store,
		gen:   gen,
		log:   logx.Nop(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.resolver == nil {
		c.resolver = idresolve.New(nil, nil)
	}
	if c.reducer == nil {
		c.reducer = reducer.New(merge.Default(), reducer.DefaultConfig())
	}
	c.log = c.log.With(zap.String("session_id", cfg.SessionID), zap.String("role", string(cfg.Role)))
	return c
}

func (c *Coordinator) Role() Role { return c.cfg.Role }

func (c *Coordinator) Phase() Phase { return Phase(c.phase.Load()) }

func (c *Coordinator) setPhase(p Phase) { c.phase.Store(int32(p)) }

// Busy reports whether RunTurn would fail with ErrBusy.
func (c *Coordinator) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.busy || c.awaiting
}

// AwaitingAuthority reports whether a submitted peer turn still waits for
// the host's full-sync.
func (c *Coordinator) AwaitingAuthority() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.awaiting
}

// WaitIdle blocks until RunTurn can start or ctx is done.
func (c *Coordinator) WaitIdle(ctx context.Context) error {
	for {
		c.mu.Lock()
		if !c.busy && !c.awaiting {
			c.mu.Unlock()
			return nil
		}
		ch := c.idleSignal()
		c.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// idleSignal returns the channel closed at the next transition towards
// idle. Callers hold c.mu.
func (c *Coordinator) idleSignal() chan struct{} {
	if c.idle == nil {
		c.idle = make(chan struct{})
	}
	return c.idle
}

// signalIdle wakes WaitIdle callers. Callers hold c.mu.
func (c *Coordinator) signalIdle() {
	if c.idle != nil {
		close(c.idle)
		c.idle = nil
	}
}

// Cancel aborts the running turn if it is still waiting for the generator.
// Once applying has begun it has no effect.
func (c *Coordinator) Cancel() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel == nil {
		return false
	}
	c.cancel()
	return true
}

// OnAuthoritativeSync records that the host's full-sync has superseded
// any optimistic local turn.
func (c *Coordinator) OnAuthoritativeSync() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.syncSeq++
	if c.awaiting {
		c.awaiting = false
		c.signalIdle()
	}
}

func (c *Coordinator) acquire() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.awaiting {
		return ErrBusy.WithData("reason", "awaiting_authority")
	}
	if c.busy {
		return ErrBusy.WithData("phase", c.Phase().String())
	}
	c.busy = true
	return nil
}

func (c *Coordinator) release() {
	c.setPhase(Idle)
	c.mu.Lock()
	c.busy = false
	c.cancel = nil
	c.signalIdle()
	c.mu.Unlock()
}

// RunTurn plays one turn for in. It fails fast with ErrBusy when a turn is
// already running. Cancelling ctx (or calling Cancel) while the generator
// runs aborts the turn with status Aborted and no error.
func (c *Coordinator) RunTurn(ctx context.Context, in entity.TurnInput) (*Outcome, error) {
	if err := c.acquire(); err != nil {
		return nil, err
	}
	defer c.release()

	log := c.log.WithContext(ctx).With(zap.String("actor_id", in.ActorID))

	// requesting
	c.setPhase(Requesting)
	patch, err := c.request(ctx, in)
	if err != nil {
		return c.failRequest(ctx, log, in, err)
	}

	// applying: never cancelled once begun
	c.setPhase(Applying)
	applyCtx := context.WithoutCancel(ctx)
	out, err := c.apply(applyCtx, in, patch)
	if err != nil {
		c.rollback(applyCtx, in)
		logx.ReportSysError(applyCtx, log, logx.NewSysLog("turn.apply", err))
		return nil, err
	}
	if out.Dropped.Total() > 0 {
		log.Warn("turn dropped sub-updates",
			zap.Int("wounds", out.Dropped.Wounds),
			zap.Int("flags", out.Dropped.Flags),
			zap.Int("activities", out.Dropped.Activities),
			zap.Int("equipment", out.Dropped.Equipment),
		)
	}

	c.setPhase(Propagating)
	if err := c.propagate(applyCtx, in, out); err != nil {
		return nil, err
	}
	log.Info("turn finished", zap.String("status", string(out.Status)), zap.Int("turn", out.Turn))
	return out, nil
}

func (c *Coordinator) request(ctx context.Context, in entity.TurnInput) (*entity.Patch, error) {
	reqCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()

	if err := c.store.Commit(reqCtx, func(b *entity.Bundle) error {
		b.AppendInput(in, c.now().UTC())
		return nil
	}); err != nil {
		return nil, abortedOr(reqCtx, err)
	}
	b, err := c.store.Snapshot(reqCtx)
	if err != nil {
		return nil, abortedOr(reqCtx, err)
	}

	req := generator.Request{
		SessionID: b.Context.SessionID,
		Turn:      b.State.Turn + 1,
		Input:     in,
		Context:   generator.Project(b, c.cfg.ContextEvents),
	}
	patch, err := c.gen.Generate(reqCtx, req, c.progress)

	c.mu.Lock()
	c.cancel = nil
	c.mu.Unlock()

	// a result that raced with cancellation is discarded
	if reqCtx.Err() != nil {
		return nil, errAborted
	}
	if err != nil {
		return nil, ErrGeneration.WithCause(err)
	}
	if patch == nil {
		return nil, ErrGeneration.WithData("reason", "empty_patch")
	}
	if m := patch.Moderation; m != nil && m.Score > c.cfg.ModerationThreshold {
		return nil, ErrPolicyRejected.
			WithData("score", m.Score).
			WithData("threshold", c.cfg.ModerationThreshold).
			WithData("notice", m.Reason)
	}
	return patch, nil
}

var errAborted = errors.New("turn aborted")

func abortedOr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return errAborted
	}
	return err
}

func (c *Coordinator) progress(p generator.Progress) {
	c.log.Debug("turn progress", zap.String("stage", p.Stage), zap.Int("text_len", len(p.Text)))
	if c.onProgress != nil {
		c.onProgress(p)
	}
}

func (c *Coordinator) failRequest(ctx context.Context, log logx.Logger, in entity.TurnInput, err error) (*Outcome, error) {
	bg := context.WithoutCancel(ctx)
	// dropping the input is a no-op when it was never recorded
	c.rollback(bg, in)
	if errors.Is(err, errAborted) {
		log.Info("turn aborted")
		return &Outcome{Status: Aborted}, nil
	}
	logx.Report(bg, log, "turn.request", err)
	return nil, err
}

func (c *Coordinator) rollback(ctx context.Context, in entity.TurnInput) {
	err := c.store.Commit(ctx, func(b *entity.Bundle) error {
		b.DropInput(in)
		return nil
	})
	if err != nil {
		c.log.WithContext(ctx).Warn("input rollback failed", zap.Error(err))
	}
}

// apply resolves and reduces patch in one serialized commit. Solo and host
// turns advance the turn counter in the same commit.
func (c *Coordinator) apply(ctx context.Context, in entity.TurnInput, patch *entity.Patch) (*Outcome, error) {
	advance := c.cfg.Role != RolePeer
	out := &Outcome{Status: Committed}
	if !advance {
		out.Status = Submitted
	}

	err := c.store.Commit(ctx, func(b *entity.Bundle) error {
		p := merge.Clone(*patch)
		prior := reducer.SnapshotEffects(&b.State)

		res, err := c.resolver.Resolve(&p, idresolve.IndexState(&b.State))
		if err != nil {
			return err
		}
		if left := c.resolver.Unresolved(&p); len(left) > 0 {
			return ErrUnresolvedReference.WithData("refs", left)
		}

		r, err := c.reducer.Reduce(b.State, p, prior, true)
		if err != nil {
			return err
		}
		b.State = r.State
		if advance {
			b.State.Turn++
		}
		b.Logs.Narrative = append(b.Logs.Narrative, r.Narrative...)
		b.Logs.Combat = append(b.Logs.Combat, r.Combat...)

		out.Turn = b.State.Turn
		out.Narrative = r.Narrative
		out.Combat = r.Combat
		out.Dropped = r.Dropped
		out.External = len(res.External)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Coordinator) propagate(ctx context.Context, in entity.TurnInput, out *Outcome) error {
	switch c.cfg.Role {
	case RoleHost:
		c.broadcast(ctx)
	case RolePeer:
		if c.submitter == nil {
			return ErrConnectionLost.WithData("reason", "no_submitter")
		}
		b, err := c.store.Snapshot(ctx)
		if err != nil {
			return err
		}
		c.mu.Lock()
		seq := c.syncSeq
		c.mu.Unlock()

		if err := c.submitter.SubmitTurn(ctx, Submission{SessionID: b.Context.SessionID, Input: in, Bundle: b}); err != nil {
			err = ErrConnectionLost.WithCause(err)
			logx.ReportSysError(ctx, c.log, logx.NewSysLog("turn.submit", err))
			return err
		}
		c.mu.Lock()
		// a full-sync that already arrived answers this turn
		if c.syncSeq == seq {
			c.awaiting = true
		}
		c.mu.Unlock()
	}
	return nil
}

func (c *Coordinator) broadcast(ctx context.Context) {
	if c.broadcaster == nil {
		return
	}
	b, err := c.store.Snapshot(ctx)
	if err == nil {
		err = c.broadcaster.BroadcastFullSync(ctx, b)
	}
	if err != nil {
		logx.ReportSysError(ctx, c.log, logx.NewSysLog("turn.broadcast", err))
	}
}
