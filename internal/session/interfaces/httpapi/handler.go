// Package httpapi exposes a session's admin surface: inspect the bundle, edit
// flags and entities, force a sync, and drive turns.
package httpapi

import (
	"context"
	nethttp "net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"Chronicle/internal/game/entity"
	"Chronicle/internal/session/statestore"
	"Chronicle/internal/shared/transport"
	"Chronicle/internal/turn"
	"Chronicle/modules/kit/errx"
	"Chronicle/modules/kit/logx"
)

// Turns is the coordinator surface the API drives.
type Turns interface {
	RunTurn(ctx context.Context, in entity.TurnInput) (*turn.Outcome, error)
	Cancel() bool
	Phase() turn.Phase
	AwaitingAuthority() bool
	SetFlag(ctx context.Context, key string, value any) error
	DeleteFlag(ctx context.Context, key string) error
	DeleteEntity(ctx context.Context, id string) error
}

// Syncer pushes (host) or pulls (peer) a full-sync.
type Syncer interface {
	Sync(ctx context.Context, reason string) error
}

type SyncFunc func(ctx context.Context, reason string) error

func (f SyncFunc) Sync(ctx context.Context, reason string) error { return f(ctx, reason) }

var errNoSync = errx.NewBiz("SYNC_UNSUPPORTED", "this session has nobody to sync with")

type Handler struct {
	store statestore.Store
	turns Turns
	sync  Syncer
	log   logx.Logger
}

// New builds the handler; sync may be nil for a solo session.
func New(store statestore.Store, turns Turns, sync Syncer, log logx.Logger) *Handler {
	if log == nil {
		log = logx.Nop()
	}
	return &Handler{store: store, turns: turns, sync: sync, log: log}
}

func (h *Handler) RegisterRoutes(group *gin.RouterGroup) {
	s := group.Group("/session")
	s.GET("", h.Session)
	s.PUT("/flags/:key", h.SetFlag)
	s.DELETE("/flags/:key", h.DeleteFlag)
	s.DELETE("/entities/:id", h.DeleteEntity)
	s.POST("/sync", h.Sync)
	s.POST("/turns", h.RunTurn)
	s.POST("/turns/cancel", h.CancelTurn)
}

func (h *Handler) Session(c *gin.Context) {
	ctx := c.Request.Context()
	b, err := h.store.Snapshot(ctx)
	if err != nil {
		h.error(ctx, c, "session.get", err)
		return
	}
	h.ok(c, &SessionView{
		Phase:             h.turns.Phase().String(),
		AwaitingAuthority: h.turns.AwaitingAuthority(),
		Bundle:            b,
	})
}

func (h *Handler) SetFlag(c *gin.Context) {
	ctx := c.Request.Context()
	var req FlagReq
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, transport.InvalidParam, "body must be {\"value\": ...}")
		return
	}
	if err := h.turns.SetFlag(ctx, c.Param("key"), req.Value); err != nil {
		h.error(ctx, c, "session.flag.set", err)
		return
	}
	h.ok(c, nil)
}

func (h *Handler) DeleteFlag(c *gin.Context) {
	ctx := c.Request.Context()
	if err := h.turns.DeleteFlag(ctx, c.Param("key")); err != nil {
		h.error(ctx, c, "session.flag.delete", err)
		return
	}
	h.ok(c, nil)
}

func (h *Handler) DeleteEntity(c *gin.Context) {
	ctx := c.Request.Context()
	if err := h.turns.DeleteEntity(ctx, c.Param("id")); err != nil {
		h.error(ctx, c, "session.entity.delete", err)
		return
	}
	h.ok(c, nil)
}

func (h *Handler) Sync(c *gin.Context) {
	ctx := c.Request.Context()
	if h.sync == nil {
		h.error(ctx, c, "session.sync", errNoSync)
		return
	}
	var req SyncReq
	// the body is optional
	_ = c.ShouldBindJSON(&req)
	if req.Reason == "" {
		req.Reason = "manual"
	}
	if err := h.sync.Sync(ctx, req.Reason); err != nil {
		h.error(ctx, c, "session.sync", err)
		return
	}
	h.ok(c, nil)
}

// RunTurn blocks until the turn ends; the response carries its outcome.
func (h *Handler) RunTurn(c *gin.Context) {
	ctx := c.Request.Context()
	var req TurnReq
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, transport.InvalidParam, "actorId and text are required")
		return
	}
	out, err := h.turns.RunTurn(ctx, entity.TurnInput{ActorID: req.ActorID, Text: req.Text})
	if err != nil {
		h.error(ctx, c, "session.turn", err)
		return
	}
	h.ok(c, out)
}

func (h *Handler) CancelTurn(c *gin.Context) {
	h.ok(c, gin.H{"cancelled": h.turns.Cancel()})
}

func (h *Handler) ok(c *gin.Context, data any) {
	transport.SetBizCode(c.Request.Context(), transport.OK)
	c.JSON(nethttp.StatusOK, &Result{Code: transport.OK, Data: data})
}

func (h *Handler) fail(c *gin.Context, code transport.BizCode, msg string) {
	ctx := c.Request.Context()
	transport.SetBizCode(ctx, code)
	transport.SetErrorReason(ctx, msg)
	c.JSON(nethttp.StatusOK, &Result{Code: code, Msg: msg})
}

func (h *Handler) error(ctx context.Context, c *gin.Context, action string, err error) {
	logx.Report(ctx, h.log, action, err, zap.String("path", c.FullPath()))
	msg := err.Error()
	if code := errx.CodeOf(err); code != "" {
		msg = string(code)
	}
	h.fail(c, transport.CodeFor(err), msg)
	transport.SetErrorReason(ctx, err.Error())
}
