package actors

import (
	"errors"

	"github.com/asynkron/protoactor-go/actor"

	"Chronicle/internal/game/entity"
	"Chronicle/internal/session/port"
	"Chronicle/internal/shared/actor/messages"
)

var errNoSession = errors.New("message has no session id")

// Options configure every session actor the manager spawns.
type Options struct {
	Repo port.BundleRepository
	// Seed builds the bundle of a session the repository does not know.
	// Nil means unknown sessions fail to load.
	Seed       func(sessionID string) *entity.Bundle
	FlushEvery int64 // milliseconds
}

// ManagerActor routes session messages to one child actor per session.
type ManagerActor struct {
	opts     Options
	sessions map[string]*actor.PID
}

func NewManagerActor(opts Options) *ManagerActor {
	return &ManagerActor{
		opts:     opts,
		sessions: make(map[string]*actor.PID),
	}
}

func (m *ManagerActor) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Terminated:
		for id, pid := range m.sessions {
			if pid.Equal(msg.Who) {
				delete(m.sessions, id)
			}
		}
	case messages.SessionMessage:
		id := msg.SessionID()
		if id == "" {
			ctx.Respond(messages.Reply{Err: errNoSession})
			return
		}
		ctx.Forward(m.getOrSpawn(ctx, id))
	}
}

func (m *ManagerActor) getOrSpawn(ctx actor.Context, sessionID string) *actor.PID {
	if pid, ok := m.sessions[sessionID]; ok && pid != nil {
		return pid
	}

	props := actor.PropsFromProducer(func() actor.Actor {
		return NewSessionActor(sessionID, m.opts)
	})
	pid := ctx.Spawn(props)
	ctx.Watch(pid)
	m.sessions[sessionID] = pid
	return pid
}
