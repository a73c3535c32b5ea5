package turn

import "Chronicle/modules/kit/errx"

const (
	CodeBusy                errx.Code = "TURN_BUSY"
	CodeGenerationFailed    errx.Code = "TURN_GENERATION_FAILED"
	CodePolicyRejected      errx.Code = "TURN_POLICY_REJECTED"
	CodeUnresolvedReference errx.Code = "TURN_UNRESOLVED_REFERENCE"
	CodeConnectionLost      errx.Code = "SYNC_CONNECTION_LOST"
)

var (
	// ErrBusy: another turn is in flight, or a peer still waits for the
	// host's answer to its last turn. Callers wait with WaitIdle.
	ErrBusy = errx.NewBiz(CodeBusy, "a turn is already in progress")
	// ErrGeneration is retryable; the input was rolled back.
	ErrGeneration = errx.NewSys(CodeGenerationFailed, "turn generation failed")
	// ErrPolicyRejected: the input was stripped from history.
	ErrPolicyRejected      = errx.NewBiz(CodePolicyRejected, "input rejected by content policy")
	ErrUnresolvedReference = errx.NewSys(CodeUnresolvedReference, "patch kept unresolved references")
	// ErrConnectionLost: the peer's local state stays optimistic until the
	// next full-sync. Not retried.
	ErrConnectionLost = errx.NewSys(CodeConnectionLost, "connection to host lost")
)
