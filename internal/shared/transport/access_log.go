package transport

import (
	"context"
	"time"

	"go.uber.org/zap"

	"Chronicle/modules/kit/logx"
	"Chronicle/modules/kit/tracex"
)

// AccessLog 是请求级日志上下文，WS 路由、管理 API、生成器流共用。
// handler 负责写入结果，传输层负责输出。
type AccessLog struct {
	BizCode     BizCode
	ErrorReason string
	settled     bool
	fields      []zap.Field
	start       time.Time
	action      string
}

type accessLogKey struct{}

// NewContextWithParent 创建带 AccessLog 的 context（保留父 context 的取消信号和 trace id）。
func NewContextWithParent(parent context.Context, action string) context.Context {
	if parent == nil {
		parent = context.Background()
	}
	if action == "" {
		action = "unknown"
	}
	al := &AccessLog{BizCode: SystemError, start: time.Now(), action: action}
	return context.WithValue(tracex.Ensure(parent), accessLogKey{}, al)
}

func FromContext(ctx context.Context) *AccessLog {
	if ctx == nil {
		return nil
	}
	al, _ := ctx.Value(accessLogKey{}).(*AccessLog)
	return al
}

// Settled 表示 handler 是否已经写入结果。
func (al *AccessLog) Settled() bool { return al != nil && al.settled }

func SetBizCode(ctx context.Context, code BizCode) {
	if al := FromContext(ctx); al != nil {
		al.BizCode = code
		al.settled = true
	}
}

func SetErrorReason(ctx context.Context, reason string) {
	if al := FromContext(ctx); al != nil && reason != "" {
		al.ErrorReason = reason
	}
}

// SetResult 根据 handler 返回的错误写入结果。
func SetResult(ctx context.Context, err error) {
	SetBizCode(ctx, CodeFor(err))
	if err != nil {
		SetErrorReason(ctx, err.Error())
	}
}

// AddFields 追加额外字段（例如 session/peer id）。
func AddFields(ctx context.Context, fields ...zap.Field) {
	if al := FromContext(ctx); al != nil {
		al.fields = append(al.fields, fields...)
	}
}

// WriteAccessLog 输出访问日志（在中间件里 defer 调用）。
func WriteAccessLog(ctx context.Context, log logx.Logger) {
	al := FromContext(ctx)
	if al == nil || log == nil {
		return
	}
	fields := append([]zap.Field{zap.Duration("latency", time.Since(al.start))}, al.fields...)
	if al.BizCode == OK {
		fields = append(fields, zap.String("result", "success"))
	} else {
		fields = append(fields, zap.String("result", "failure"))
		if al.ErrorReason != "" {
			fields = append(fields, zap.String("error_reason", al.ErrorReason))
		}
	}
	logx.ReportAccess(ctx, log, al.action, int(al.BizCode), fields...)
}
