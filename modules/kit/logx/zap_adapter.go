package logx

import (
	"context"

	"go.uber.org/zap"

	"Chronicle/modules/kit/tracex"
)

// ZapLogger adapts *zap.Logger to Logger.
type ZapLogger struct {
	l *zap.Logger
}

// NewZapLogger wraps l; nil gives a logger that drops everything.
func NewZapLogger(l *zap.Logger) *ZapLogger {
	if l == nil {
		l = zap.NewNop()
	}
	return &ZapLogger{l: l}
}

// WithContext adds every correlation id on ctx as a field.
func (z *ZapLogger) WithContext(ctx context.Context) Logger {
	var fields []zap.Field
	tracex.Each(ctx, func(field, value string) {
		fields = append(fields, zap.String(field, value))
	})
	if len(fields) == 0 {
		return z
	}
	return &ZapLogger{l: z.l.With(fields...)}
}

func (z *ZapLogger) With(fields ...zap.Field) Logger {
	return &ZapLogger{l: z.l.With(fields...)}
}

// Zap exposes the wrapped logger for libraries that want one.
func (z *ZapLogger) Zap() *zap.Logger { return z.l }

func (z *ZapLogger) Debug(msg string, fields ...zap.Field) { z.l.Debug(msg, fields...) }
func (z *ZapLogger) Info(msg string, fields ...zap.Field)  { z.l.Info(msg, fields...) }
func (z *ZapLogger) Warn(msg string, fields ...zap.Field)  { z.l.Warn(msg, fields...) }
func (z *ZapLogger) Error(msg string, fields ...zap.Field) { z.l.Error(msg, fields...) }
