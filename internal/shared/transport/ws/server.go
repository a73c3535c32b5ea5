package ws

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"Chronicle/modules/kit/logx"
)

type Server struct {
	router     *Router
	log        logx.Logger
	needSecret bool
	onConnect  func(*Conn)
}

// NewServer accepts websocket upgrades. With needSecret every connection
// gets its own AES key in the handshake.
func NewServer(r *Router, l logx.Logger, needSecret bool) *Server {
	if l == nil {
		l = logx.Nop()
	}
	return &Server{
		router:     r,
		log:        l,
		needSecret: needSecret,
	}
}

// OnConnect runs fn for every accepted connection, after it started.
func (s *Server) OnConnect(fn func(*Conn)) {
	s.onConnect = fn
}

func (s *Server) ServeHTTP(resp http.ResponseWriter, req *http.Request) {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
	wsConn, err := upgrader.Upgrade(resp, req, nil)
	if err != nil {
		s.log.Error("websocket upgrade error", zap.Error(err))
		return
	}
	s.log.Info("websocket upgrade success", zap.String("remote", wsConn.RemoteAddr().String()))

	conn := newConn(wsConn, false, s.log)
	conn.Router(s.router)
	conn.handshake(s.needSecret)
	conn.Run()
	if s.onConnect != nil {
		s.onConnect(conn)
	}
}

var errNoHandshake = errors.New("ws: server did not open with a handshake")

// Dial connects to a Server and waits for its handshake, so the returned
// Conn already holds the frame key.
func Dial(ctx context.Context, url string, r *Router, l logx.Logger) (*Conn, error) {
	wsConn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	if dl, ok := ctx.Deadline(); ok {
		_ = wsConn.SetReadDeadline(dl)
	}
	_, frame, err := wsConn.ReadMessage()
	if err != nil {
		_ = wsConn.Close()
		return nil, err
	}
	_ = wsConn.SetReadDeadline(time.Time{})

	msg, err := openFrame(frame, "")
	if err != nil || msg.Name != HandshakeMsg {
		_ = wsConn.Close()
		return nil, errNoHandshake
	}
	h := Handshake{}
	if err := BindJSON(msg, &h); err != nil {
		_ = wsConn.Close()
		return nil, err
	}

	conn := newConn(wsConn, true, l)
	conn.Router(r)
	if h.Key != "" {
		conn.SetProperty(SecretKey, h.Key)
	}
	conn.Run()
	return conn, nil
}
