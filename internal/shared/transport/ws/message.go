package ws

import (
	"encoding/json"

	"Chronicle/modules/kit/errx"
)

// Message is one frame's payload once opened. Name routes it as
// "group.handler"; Seq is per-sender and increases monotonically.
type Message struct {
	Seq  int64           `json:"seq"`
	Name string          `json:"name"`
	From string          `json:"from,omitempty"`
	Msg  json.RawMessage `json:"msg,omitempty"`
}

type Handshake struct {
	Key string `json:"key"`
}

type Heartbeat struct {
	CTime int64 `json:"ctime"`
	STime int64 `json:"stime"`
}

// ErrorBody is pushed back under ErrorMsg when a handler fails.
type ErrorBody struct {
	Name string `json:"name"`
	Code string `json:"code"`
	Msg  string `json:"msg"`
}

const (
	HandshakeMsg = "handshake"
	HeartbeatMsg = "heartbeat"
	ErrorMsg     = "sys.error"

	SecretKey = "secretKey"
)

// BindJSON decodes msg's body into dst. An empty or malformed body is a bad
// request from the sender.
func BindJSON(msg *Message, dst any) error {
	if msg == nil || len(msg.Msg) == 0 {
		return errx.ErrBadRequest.WithData("reason", "empty_body")
	}
	if err := json.Unmarshal(msg.Msg, dst); err != nil {
		return errx.ErrBadRequest.WithData("reason", "bad_body").WithData("name", msg.Name).WithCause(err)
	}
	return nil
}
