package actors

import (
	"context"
	"time"

	"github.com/asynkron/protoactor-go/actor"

	"Chronicle/internal/game/entity"
	"Chronicle/internal/session/dc"
	"Chronicle/internal/shared/actor/messages"
	"Chronicle/modules/kit/errx"
)

type State int

const (
	None State = iota
	Init
	Online
	Offline
	Stopping
)

// SessionActor is the single writer of one session bundle. Every read and
// write arrives through its mailbox and is handled in arrival order.
type SessionActor struct {
	state      State
	sessionID  string
	seed       func(string) *entity.Bundle
	dc         *dc.SessionDC
	loadErr    error
	dispatcher *Dispatcher
	flushStop  chan struct{}
}

type flushTick struct{}

func (flushTick) NotInfluenceReceiveTimeout() {}

var errNotOnline = errx.ErrUnavailable.WithData("reason", "session_not_online")

func NewSessionActor(sessionID string, opts Options) *SessionActor {
	return &SessionActor{
		state:      None,
		sessionID:  sessionID,
		seed:       opts.Seed,
		dc:         dc.NewSessionDC(opts.Repo, time.Duration(opts.FlushEvery)*time.Millisecond),
		dispatcher: NewDispatcher(),
	}
}

func (s *SessionActor) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		s.state = Init
		s.init(ctx)
	case *actor.Stopping:
		s.stopFlushLoop()
		closeCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := s.dc.Close(closeCtx); err != nil {
			ctx.Logger().Error("session dc close failed", "session_id", s.sessionID, "err", err)
		}
		s.state = Stopping
	case *actor.Stopped:
		s.stopFlushLoop()
		s.state = Offline
	case *actor.Restarting:
		s.stopFlushLoop()
		s.state = Init
	case flushTick:
		if s.state != Online {
			return
		}
		s.dc.Flush(context.Background())
	case messages.SessionMessage:
		if s.state != Online {
			err := errNotOnline.WithData("session_id", s.sessionID)
			if s.loadErr != nil {
				err = err.WithCause(s.loadErr)
			}
			ctx.Respond(messages.Reply{Err: err})
			return
		}
		s.dispatcher.Dispatch(ctx, s, msg)
	}
}

// init loads the bundle. A failed load leaves the actor Offline so callers
// get the load error instead of a timeout.
func (s *SessionActor) init(ctx actor.Context) {
	var seed func() *entity.Bundle
	if s.seed != nil {
		seed = func() *entity.Bundle { return s.seed(s.sessionID) }
	}
	if _, err := s.dc.Load(context.Background(), s.sessionID, seed); err != nil {
		ctx.Logger().Error("session load failed", "session_id", s.sessionID, "err", err)
		s.loadErr = err
		s.state = Offline
		return
	}
	s.state = Online
	s.startFlushLoop(ctx)
}

func (s *SessionActor) SessionID() string {
	return s.sessionID
}

func (s *SessionActor) Bundle() *entity.Bundle {
	return s.dc.Bundle()
}

func (s *SessionActor) DC() *dc.SessionDC {
	return s.dc
}

func (s *SessionActor) startFlushLoop(ctx actor.Context) {
	if s.flushStop != nil {
		return
	}
	interval := s.dc.FlushEvery()
	if interval <= 0 {
		return
	}
	s.flushStop = make(chan struct{})
	self := ctx.Self()
	root := ctx.ActorSystem().Root

	go func(stop <-chan struct{}, every time.Duration) {
		ticker := time.NewTicker(every)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				root.Send(self, flushTick{})
			case <-stop:
				return
			}
		}
	}(s.flushStop, interval)
}

func (s *SessionActor) stopFlushLoop() {
	if s.flushStop == nil {
		return
	}
	close(s.flushStop)
	s.flushStop = nil
}
