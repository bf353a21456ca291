// Package log is a thin package-level wrapper over zap's sugared logger.
// Call sites pass alternating key/value pairs: log.Info("msg", "key", value).
package log

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu     sync.RWMutex
	logger = newDefault()
)

func newDefault() *zap.SugaredLogger {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.DisableStacktrace = true

	l, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		// zap's production config cannot fail to build; keep a nop as a guard.
		return zap.NewNop().Sugar()
	}
	return l.Sugar()
}

// SetLevel adjusts verbosity at runtime ("debug", "info", "warn", "error").
func SetLevel(level string) {
	lv, err := zapcore.ParseLevel(level)
	if err != nil {
		return
	}
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.DisableStacktrace = true
	cfg.Level = zap.NewAtomicLevelAt(lv)

	l, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return
	}
	mu.Lock()
	logger = l.Sugar()
	mu.Unlock()
}

// Silence replaces the logger with a nop; used by tests.
func Silence() {
	mu.Lock()
	logger = zap.NewNop().Sugar()
	mu.Unlock()
}

func get() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

func Debug(msg string, kv ...any) { get().Debugw(msg, kv...) }
func Info(msg string, kv ...any)  { get().Infow(msg, kv...) }
func Warn(msg string, kv ...any)  { get().Warnw(msg, kv...) }
func Error(msg string, kv ...any) { get().Errorw(msg, kv...) }
func Fatal(msg string, kv ...any) { get().Fatalw(msg, kv...) }
