package netsync

import (
	"context"
	"strings"

	"Chronicle/internal/shared/transport/ws"
)

// Conn is a reliable ordered channel to one remote party.
type Conn interface {
	Send(ctx context.Context, env Envelope) error
	Close()
	// Done is closed once the connection is gone.
	Done() <-chan struct{}
	Addr() string
}

type Handler interface {
	Handle(ctx context.Context, conn Conn, env Envelope) error
}

type wsConn struct {
	c *ws.Conn
}

// OverWS adapts a websocket connection. Adapting the same connection twice
// yields equal Conns.
func OverWS(c *ws.Conn) Conn {
	return wsConn{c: c}
}

func (w wsConn) Send(ctx context.Context, env Envelope) error {
	return w.c.Send(ctx, &ws.Message{Seq: env.Seq, Name: string(env.Kind), From: env.From, Msg: env.Payload})
}

func (w wsConn) Close()                { w.c.Close() }
func (w wsConn) Done() <-chan struct{} { return w.c.Done() }
func (w wsConn) Addr() string          { return w.c.Addr() }

func fromMessage(m *ws.Message) Envelope {
	return Envelope{Kind: Kind(m.Name), From: m.From, Seq: m.Seq, Payload: m.Msg}
}

// Route registers h on r for each kind.
func Route(r *ws.Router, h Handler, kinds ...Kind) {
	for _, k := range kinds {
		group, name, _ := strings.Cut(string(k), ".")
		r.Group(group).Handle(name, func(ctx context.Context, c *ws.Conn, m *ws.Message) error {
			return h.Handle(ctx, OverWS(c), fromMessage(m))
		})
	}
}
