package logx

import (
	"context"

	"go.uber.org/zap"
)

// Logger 是注入给各服务的日志接口，避免直接依赖 zap。
// WithContext 会带上 tracex 放在 context 里的关联 id。
type Logger interface {
	Debug(msg string, fields ...zap.Field)
	Info(msg string, fields ...zap.Field)
	Warn(msg string, fields ...zap.Field)
	Error(msg string, fields ...zap.Field)
	With(fields ...zap.Field) Logger
	WithContext(ctx context.Context) Logger
}

func Nop() Logger { return NewZapLogger(nil) }
