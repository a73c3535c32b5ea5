package httpapi

import (
	"Chronicle/internal/game/entity"
	"Chronicle/internal/shared/transport"
)

// Result is every response body: code 0 is success.
type Result struct {
	Code transport.BizCode `json:"code"`
	Msg  string            `json:"msg,omitempty"`
	Data any               `json:"data,omitempty"`
}

type SessionView struct {
	Phase             string         `json:"phase"`
	AwaitingAuthority bool           `json:"awaitingAuthority"`
	Bundle            *entity.Bundle `json:"bundle"`
}

type FlagReq struct {
	Value any `json:"value"`
}

type TurnReq struct {
	ActorID string `json:"actorId" binding:"required"`
	Text    string `json:"text" binding:"required"`
}

type SyncReq struct {
	Reason string `json:"reason"`
}
