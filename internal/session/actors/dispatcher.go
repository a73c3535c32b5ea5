package actors

import (
	"fmt"
	"reflect"

	"github.com/asynkron/protoactor-go/actor"

	"Chronicle/internal/shared/actor/messages"
)

type Dispatcher struct {
	handlers map[reflect.Type]Handler
}

type Handler struct {
	fn      reflect.Value
	reqType reflect.Type
}

func NewDispatcher() *Dispatcher {
	d := &Dispatcher{
		handlers: make(map[reflect.Type]Handler),
	}
	d.registerAll()
	return d
}

func (d *Dispatcher) registerAll() {
	register(d, SH.HandleSnapshot)
	register(d, SH.HandleCommit)
	register(d, SH.HandleReplace)
	register(d, SH.HandleFlush)
}

// register binds a handler to the concrete message type it accepts.
func register[Req messages.SessionMessage](
	d *Dispatcher,
	fn func(ctx actor.Context, s *SessionActor, req Req),
) {
	reqType := reflect.TypeOf((*Req)(nil)).Elem()
	d.handlers[reqType] = Handler{
		fn:      reflect.ValueOf(fn),
		reqType: reqType,
	}
}

func (d *Dispatcher) Dispatch(ctx actor.Context, s *SessionActor, msg messages.SessionMessage) {
	h, ok := d.handlers[reflect.TypeOf(msg)]
	if !ok {
		ctx.Respond(messages.Reply{Err: fmt.Errorf("no handler for %T", msg)})
		return
	}
	h.fn.Call([]reflect.Value{
		reflect.ValueOf(ctx),
		reflect.ValueOf(s),
		reflect.ValueOf(msg),
	})
}
