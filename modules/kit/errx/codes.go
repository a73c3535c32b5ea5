package errx

// 全局共享的系统类错误码。
//
// 约束：
// - 这里只放跨包通用的技术类错误（超时、不可用、请求格式错误等）
// - 领域错误码（TURN_BUSY、SYNC_JOIN_REJECTED 等）在抛出它的包里定义，不集中到 kit
const (
	CodeInternal    Code = "INTERNAL_ERROR"
	CodeUnavailable Code = "SERVICE_UNAVAILABLE"
	CodeTimeout     Code = "TIMEOUT"
	CodeBadRequest  Code = "BAD_REQUEST"
	CodeCorrupt     Code = "DATA_CORRUPT"
)

var (
	ErrInternal    = NewSys(CodeInternal, "internal error")
	ErrUnavailable = NewSys(CodeUnavailable, "dependency unavailable")
	ErrTimeout     = NewSys(CodeTimeout, "request timed out")
	ErrBadRequest  = NewBiz(CodeBadRequest, "invalid request")
	ErrCorrupt     = NewSys(CodeCorrupt, "stored data could not be decoded")
)
