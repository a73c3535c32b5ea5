package logs

import (
	"io"
	"os"
	"strings"
	"sync/atomic"

	"github.com/natefinch/lumberjack"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"Chronicle/internal/shared/config"
)

var (
	logger atomic.Pointer[zap.Logger]
	level  = zap.NewAtomicLevelAt(zapcore.InfoLevel)
)

func init() {
	logger.Store(zap.NewNop())
}

// Init 初始化进程日志：
// - 控制台：彩色可读格式
// - 文件：配置了 cfg.FileDir 时输出 JSON，并用 lumberjack 切割
func Init(appName string, cfg config.LogConfig) error {
	SetLevel(cfg.Level)

	encoderCfg := zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stack",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	consoleCfg := encoderCfg
	consoleCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	consoleEncoder := zapcore.NewConsoleEncoder(consoleCfg)

	fileCfg := encoderCfg
	fileCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	jsonEncoder := zapcore.NewJSONEncoder(fileCfg)

	var fileWriter io.Writer = io.Discard
	if cfg.FileDir != "" {
		fileWriter = &lumberjack.Logger{
			Filename:   cfg.FileDir,
			MaxSize:    max(1, cfg.MaxSize),
			MaxBackups: max(0, cfg.MaxBackups),
			MaxAge:     max(0, cfg.MaxAge),
			Compress:   cfg.Compress,
		}
	}

	consoleSyncer := zapcore.Lock(os.Stderr)
	core := zapcore.NewCore(consoleEncoder, consoleSyncer, level)
	if cfg.FileDir != "" {
		// 分成两路 core，避免把 ANSI 颜色码写进文件
		core = zapcore.NewTee(
			core,
			zapcore.NewCore(jsonEncoder, zapcore.AddSync(fileWriter), level),
		)
	}

	opts := []zap.Option{zap.AddCaller()}
	if cfg.Dev {
		opts = append(opts, zap.Development(), zap.AddStacktrace(zapcore.WarnLevel))
	}

	l := zap.New(core, opts...).Named(appName)
	if old := logger.Swap(l); old != nil {
		_ = old.Sync()
	}
	return nil
}

// SetLevel 动态调整日志级别；无法识别的级别回退到 info。
func SetLevel(name string) {
	lvl := zapcore.InfoLevel
	if err := lvl.UnmarshalText([]byte(strings.ToLower(name))); err != nil {
		lvl = zapcore.InfoLevel
	}
	level.SetLevel(lvl)
}

// Logger 返回进程日志对象，不会为 nil。
func Logger() *zap.Logger {
	return logger.Load()
}

func Sync() error {
	return Logger().Sync()
}

func Debug(msg string, fields ...zap.Field) { Logger().Debug(msg, fields...) }

func Info(msg string, fields ...zap.Field) { Logger().Info(msg, fields...) }

func Warn(msg string, fields ...zap.Field) { Logger().Warn(msg, fields...) }

func Error(msg string, fields ...zap.Field) { Logger().Error(msg, fields...) }

// Fatal 输出日志后以状态码 1 退出。
func Fatal(msg string, fields ...zap.Field) { Logger().Fatal(msg, fields...) }
