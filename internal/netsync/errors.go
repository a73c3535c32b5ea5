package netsync

import "Chronicle/modules/kit/errx"

const (
	CodeJoinRejected  errx.Code = "SYNC_JOIN_REJECTED"
	CodeNotMember     errx.Code = "SYNC_NOT_MEMBER"
	CodeStaleTurn     errx.Code = "SYNC_STALE_TURN"
	CodeUnknownAction errx.Code = "SYNC_UNKNOWN_ACTION"
)

var (
	ErrJoinRejected  = errx.NewBiz(CodeJoinRejected, "join rejected")
	ErrNotMember     = errx.NewBiz(CodeNotMember, "sender has not joined the session")
	ErrStaleTurn     = errx.NewBiz(CodeStaleTurn, "turn was built on an outdated bundle")
	ErrUnknownAction = errx.NewBiz(CodeUnknownAction, "no such pending action")
)
