package ws

import (
	"context"
	"strings"

	"Chronicle/internal/shared/logs"
	"Chronicle/internal/shared/transport"
	"Chronicle/modules/kit/errx"
	"Chronicle/modules/kit/logx"
	"Chronicle/modules/kit/tracex"
)

type HandlerFunc func(ctx context.Context, conn *Conn, msg *Message) error

type Group struct {
	prefix   string
	handlers map[string]HandlerFunc
}

func (g *Group) Handle(name string, h HandlerFunc) {
	g.handlers[name] = h
}

type Router struct {
	groups map[string]*Group
	log    logx.Logger
}

func NewRouter(l logx.Logger) *Router {
	if l == nil {
		l = logx.NewZapLogger(logs.Logger())
	}
	return &Router{
		groups: make(map[string]*Group),
		log:    l,
	}
}

func (r *Router) Group(prefix string) *Group {
	group := r.groups[prefix]
	if group == nil {
		group = &Group{
			prefix:   prefix,
			handlers: make(map[string]HandlerFunc),
		}
	}
	r.groups[prefix] = group
	return group
}

// Dispatch routes msg by its name, group.handler (e.g. turn.submit). A failed
// handler's error is pushed back to the sender under ErrorMsg.
func (r *Router) Dispatch(conn *Conn, msg *Message) {
	action := "WS unknown"
	parent := context.Background()
	if msg != nil {
		action = "WS " + msg.Name
		if msg.From != "" {
			parent = tracex.WithPeerID(parent, msg.From)
		}
	}
	ctx := transport.NewContextWithParent(parent, action)
	defer transport.WriteAccessLog(ctx, r.log)

	err := r.dispatch(ctx, conn, msg)
	transport.SetResult(ctx, err)
	if err != nil && conn != nil && msg != nil {
		_ = conn.Push(ErrorMsg, &ErrorBody{Name: msg.Name, Code: string(errx.CodeOf(err)), Msg: err.Error()})
	}
}

func (r *Router) dispatch(ctx context.Context, conn *Conn, msg *Message) error {
	if msg == nil {
		return errx.ErrBadRequest.WithData("reason", "empty_message")
	}
	prefix, handler, ok := parseRouteName(msg.Name)
	if !ok {
		return errx.ErrBadRequest.WithData("reason", "bad_route").WithData("name", msg.Name)
	}
	group := r.groups[prefix]
	if group == nil {
		return errx.ErrBadRequest.WithData("reason", "unknown_group").WithData("name", msg.Name)
	}
	h := group.handlers[handler]
	if h == nil {
		return errx.ErrBadRequest.WithData("reason", "unknown_handler").WithData("name", msg.Name)
	}
	return h(ctx, conn, msg)
}

func parseRouteName(name string) (string, string, bool) {
	prefix, handler, ok := strings.Cut(name, ".")
	if !ok || prefix == "" || handler == "" || strings.Contains(handler, ".") {
		return "", "", false
	}
	return prefix, handler, true
}
