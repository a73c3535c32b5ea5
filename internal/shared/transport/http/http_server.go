package http

import (
	"context"
	"errors"
	nethttp "net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"Chronicle/internal/shared/transport/http/middleware"
	"Chronicle/modules/kit/logx"
)

// Registrar is a module that adds its routes under a group.
type Registrar interface {
	RegisterRoutes(group *gin.RouterGroup)
}

type Server struct {
	engine *gin.Engine
	srv    *nethttp.Server
	log    logx.Logger
}

// NewHttpServer wraps engine (a fresh recovering engine when nil) with CORS,
// access logging and /healthz.
func NewHttpServer(addr string, engine *gin.Engine, logger logx.Logger) *Server {
	if engine == nil {
		engine = gin.New()
		engine.Use(gin.Recovery())
	}
	if logger == nil {
		logger = logx.Nop()
	}
	engine.Use(middleware.Cors(), middleware.AccessLog(logger))
	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(nethttp.StatusOK, gin.H{"code": 0, "status": "ok"})
	})

	return &Server{
		engine: engine,
		log:    logger,
		srv: &nethttp.Server{
			Addr:              addr,
			Handler:           engine,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			// turns wait on the generator
			WriteTimeout: 2 * time.Minute,
			IdleTimeout:  60 * time.Second,
		},
	}
}

// Register mounts modules under prefix.
func (s *Server) Register(prefix string, modules ...Registrar) {
	g := s.engine.Group(prefix)
	for _, m := range modules {
		m.RegisterRoutes(g)
	}
}

// Mount serves a plain handler, such as a websocket upgrader, on GET path.
func (s *Server) Mount(path string, h nethttp.Handler) {
	s.engine.GET(path, gin.WrapH(h))
}

// Run serves until ctx is done, then shuts down within grace. A clean
// shutdown returns nil.
func (s *Server) Run(ctx context.Context, grace time.Duration) error {
	errCh := make(chan error, 1)
	go func() { errCh <- s.srv.ListenAndServe() }()
	s.log.Info("http server started", zap.String("addr", s.srv.Addr))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, nethttp.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Engine() *gin.Engine { return s.engine }

func (s *Server) Handler() nethttp.Handler { return s.srv.Handler }
