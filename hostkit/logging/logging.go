// Package logging provides the structured Logger the rest of hostkit and
// cmd/installhostd log through, backed by github.com/ipfs/go-log/v2 and
// go.uber.org/zap with a logfmt encoder — the same stack and interface shape
// as the teacher's log.go, re-derived for this domain rather than copied.
package logging

import (
	"context"
	"os"

	ipfslog "github.com/ipfs/go-log/v2"
	zaplogfmt "github.com/jsternberg/zap-logfmt"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the structured logging interface used throughout hostkit and
// cmd/installhostd.
type Logger interface {
	Debug(msg string, keysAndValues ...interface{})
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	With(key string, value interface{}) Logger
	Named(name string) Logger
}

type zapLogger struct {
	lg *zap.SugaredLogger
}

// New builds a Logger named name, with output encoded as logfmt (one line
// per record, key=value pairs) rather than JSON — easier to eyeball in a
// terminal during manual protocol runs.
func New(name string) Logger {
	cfg := zaplogfmt.NewEncoderConfig()
	core := zapcore.NewCore(zaplogfmt.NewEncoder(cfg), zapcore.Lock(os.Stderr), zapLevel())
	base := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))
	return &zapLogger{lg: base.Named(name).Sugar()}
}

func zapLevel() zapcore.Level {
	levelStr := os.Getenv("INSTALLPROTO_LOG_LEVEL")
	if levelStr == "" {
		levelStr = "info"
	}
	lvl, err := ipfslog.LevelFromString(levelStr)
	if err != nil {
		return zapcore.InfoLevel
	}
	return zapcore.Level(lvl)
}

func (l *zapLogger) Debug(msg string, kv ...interface{}) { l.lg.Debugw(msg, kv...) }
func (l *zapLogger) Info(msg string, kv ...interface{})  { l.lg.Infow(msg, kv...) }
func (l *zapLogger) Warn(msg string, kv ...interface{})  { l.lg.Warnw(msg, kv...) }
func (l *zapLogger) Error(msg string, kv ...interface{}) { l.lg.Errorw(msg, kv...) }

func (l *zapLogger) With(key string, value interface{}) Logger {
	return &zapLogger{lg: l.lg.With(key, value)}
}

func (l *zapLogger) Named(name string) Logger {
	return &zapLogger{lg: l.lg.Named(name)}
}

type loggerContextKey struct{}

// WithContext attaches lg to ctx.
func WithContext(ctx context.Context, lg Logger) context.Context {
	return context.WithValue(ctx, loggerContextKey{}, lg)
}

// FromContext retrieves the Logger attached by WithContext, or a noop logger
// if none was attached.
func FromContext(ctx context.Context) Logger {
	if lg, ok := ctx.Value(loggerContextKey{}).(Logger); ok {
		return lg
	}
	return noop{}
}

type noop struct{}

func (noop) Debug(string, ...interface{}) {}
func (noop) Info(string, ...interface{})  {}
func (noop) Warn(string, ...interface{})  {}
func (noop) Error(string, ...interface{}) {}
func (noop) With(string, interface{}) Logger { return noop{} }
func (noop) Named(string) Logger             { return noop{} }
