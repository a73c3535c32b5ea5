package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"Chronicle/internal/shared/security"
	"Chronicle/internal/shared/utils"
	"Chronicle/modules/kit/logx"
)

var ErrClosed = errors.New("ws connection closed")

type outFrame struct {
	msg *Message
	// handshakes are compressed but never encrypted
	plain bool
}

// Conn is one side of a websocket: a read loop dispatching to the router and
// a write loop draining the out queue. Frames are zstd compressed and, once a
// key has been handed out, AES encrypted.
type Conn struct {
	conn     *websocket.Conn
	router   *Router
	outChan  chan outFrame
	seq      atomic.Int64
	property map[string]any
	sync.RWMutex
	done      chan struct{}
	closeOnce sync.Once
	client    bool
	log       logx.Logger
}

func newConn(wsConn *websocket.Conn, client bool, l logx.Logger) *Conn {
	if l == nil {
		l = logx.Nop()
	}
	return &Conn{
		conn:     wsConn,
		outChan:  make(chan outFrame, 1000),
		property: make(map[string]any),
		done:     make(chan struct{}),
		client:   client,
		log:      l.With(zap.String("remote", wsConn.RemoteAddr().String())),
	}
}

func (s *Conn) Router(router *Router) {
	s.router = router
}

func (s *Conn) SetProperty(key string, value any) {
	s.Lock()
	defer s.Unlock()
	s.property[key] = value
}

func (s *Conn) GetProperty(key string) any {
	s.RLock()
	defer s.RUnlock()
	return s.property[key]
}

func (s *Conn) RemoveProperty(key string) {
	s.Lock()
	defer s.Unlock()
	delete(s.property, key)
}

func (s *Conn) Addr() string {
	return s.conn.RemoteAddr().String()
}

func (s *Conn) secret() string {
	key, _ := s.GetProperty(SecretKey).(string)
	return key
}

// Send queues m for writing. A zero Seq is replaced with the next one.
func (s *Conn) Send(ctx context.Context, m *Message) error {
	if m.Seq == 0 {
		m.Seq = s.seq.Add(1)
	}
	return s.enqueue(ctx, outFrame{msg: m})
}

// Push marshals data and sends it under name.
func (s *Conn) Push(name string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return s.Send(context.Background(), &Message{Name: name, Msg: raw})
}

func (s *Conn) enqueue(ctx context.Context, f outFrame) error {
	select {
	case <-s.done:
		return ErrClosed
	default:
	}
	select {
	case s.outChan <- f:
		return nil
	case <-s.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Conn) Run() {
	go s.readMsgLoop()
	go s.writeMsgLoop()
}

// KeepAlive sends a heartbeat every interval until the connection closes.
func (s *Conn) KeepAlive(every time.Duration) {
	if every <= 0 {
		return
	}
	go func() {
		t := time.NewTicker(every)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				_ = s.Push(HeartbeatMsg, &Heartbeat{CTime: time.Now().UnixMilli()})
			case <-s.done:
				return
			}
		}
	}()
}

func (s *Conn) readMsgLoop() {
	defer func() {
		if err := recover(); err != nil {
			s.log.Error("ws readMsgLoop panic", zap.String("err", fmt.Sprintf("%v", err)))
		}
		s.Close()
	}()
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Warn("ws read msg", zap.Error(err))
			}
			return
		}

		msg, err := s.decode(data)
		if err != nil {
			s.log.Error("ws readMsgLoop decode", zap.Error(err))
			if !s.client && s.secret() != "" {
				// the peer lost its key, hand it out again
				s.handshake(false)
			}
			continue
		}

		switch msg.Name {
		case HandshakeMsg:
			if s.client {
				h := Handshake{}
				if err := BindJSON(msg, &h); err == nil {
					s.SetProperty(SecretKey, h.Key)
				}
			}
		case HeartbeatMsg:
			if !s.client {
				h := &Heartbeat{}
				_ = BindJSON(msg, h)
				h.STime = time.Now().UnixMilli()
				raw, _ := json.Marshal(h)
				_ = s.enqueue(context.Background(), outFrame{msg: &Message{Seq: msg.Seq, Name: HeartbeatMsg, Msg: raw}})
			}
		default:
			s.log.Debug("ws read msg", zap.String("name", msg.Name), zap.Int64("seq", msg.Seq))
			if s.router != nil {
				s.router.Dispatch(s, msg)
			}
		}
	}
}

func (s *Conn) writeMsgLoop() {
	for {
		select {
		case f := <-s.outChan:
			if f.msg.Name != HeartbeatMsg {
				s.log.Debug("ws write msg", zap.String("name", f.msg.Name), zap.Int64("seq", f.msg.Seq))
			}
			s.write(f)
		case <-s.done:
			return
		}
	}
}

func (s *Conn) Close() {
	s.closeOnce.Do(func() {
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		_ = s.conn.Close()
		close(s.done)
	})
}

// Done is closed when the connection ends.
func (s *Conn) Done() <-chan struct{} {
	return s.done
}

func (s *Conn) write(f outFrame) {
	data, err := json.Marshal(f.msg)
	if err != nil {
		s.log.Error("ws write marshal json error", zap.Error(err))
		return
	}
	key := ""
	if !f.plain {
		key = s.secret()
	}
	frame, err := security.Seal(data, key)
	if err != nil {
		s.log.Error("ws write seal error", zap.Error(err))
		return
	}
	// sealed frames are binary
	if err := s.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		s.log.Warn("ws write error", zap.Error(err))
		s.Close()
	}
}

func (s *Conn) decode(frame []byte) (*Message, error) {
	key := s.secret()
	msg, err := openFrame(frame, key)
	if err == nil || key == "" {
		return msg, err
	}
	plain, perr := openFrame(frame, "")
	if perr != nil || plain.Name != HandshakeMsg {
		return nil, err
	}
	return plain, nil
}

func openFrame(frame []byte, key string) (*Message, error) {
	data, err := security.Open(frame, key)
	if err != nil {
		return nil, err
	}
	msg := &Message{}
	if err := json.Unmarshal(data, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

func (s *Conn) handshake(needSecret bool) {
	key := s.secret()
	if key == "" && needSecret {
		key = utils.RandSeq(16)
	}
	raw, err := json.Marshal(&Handshake{Key: key})
	if err != nil {
		s.log.Error("ws handshake marshal json error", zap.Error(err))
		return
	}
	if key != "" {
		s.SetProperty(SecretKey, key)
	}
	if err := s.enqueue(context.Background(), outFrame{msg: &Message{Name: HandshakeMsg, Msg: raw}, plain: true}); err != nil {
		s.log.Warn("ws handshake", zap.Error(err))
	}
}
