// Package logger is the zap-backed structured logger shared by the docnum
// server, seeder and migrator.
//
// Request handlers log through the package-level helpers, which pick up the
// logger stored in the request context and tag every line with the request's
// trace and caller ids.
package logger

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	appctx "docnum/internal/core/context"
)

// Logger is a sugared zap logger.
type Logger struct {
	*zap.SugaredLogger
}

type loggerKey struct{}

// Config selects level, encoding and sinks.
type Config struct {
	// Level is one of debug, info, warn, error. Unknown values fall back to info.
	Level string
	// Development switches to the colored console encoder.
	Development bool
	OutputPaths []string
	// Process names the binary ("server", "seed", "migrate") and is attached to every line.
	Process string
}

// New builds a logger for one of the docnum binaries.
func New(cfg Config) (*Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	zc := zap.NewProductionConfig()
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	if len(cfg.OutputPaths) > 0 {
		zc.OutputPaths = cfg.OutputPaths
	}

	zl, err := zc.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, err
	}
	if cfg.Process != "" {
		zl = zl.With(zap.String("process", cfg.Process))
	}
	return &Logger{zl.Sugar()}, nil
}

// NewNop discards everything.
func NewNop() *Logger {
	return &Logger{zap.NewNop().Sugar()}
}

var (
	defaultOnce   sync.Once
	defaultLogger *Logger
)

// Default is a JSON logger on stdout, used when a router is built without one.
func Default() *Logger {
	defaultOnce.Do(func() {
		zc := zap.NewProductionConfig()
		zc.OutputPaths = []string{"stdout"}
		zl, err := zc.Build(zap.AddCallerSkip(1))
		if err != nil {
			zl = zap.NewNop()
		}
		defaultLogger = &Logger{zl.Sugar()}
	})
	return defaultLogger
}

// WithContext tags the logger with the trace, request and caller ids carried by ctx.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	sugar := l.SugaredLogger
	if trace := appctx.GetTrace(ctx); trace != nil {
		sugar = sugar.With("trace_id", trace.TraceID, "request_id", trace.RequestID)
	}
	if user := appctx.GetUser(ctx); user != nil {
		sugar = sugar.With("user_id", user.UserID)
	}
	return &Logger{sugar}
}

// WithComponent tags lines with the subsystem emitting them, e.g. "migrate".
func (l *Logger) WithComponent(name string) *Logger {
	return &Logger{l.SugaredLogger.With("component", name)}
}

// WithLogger stores l in ctx for the package-level helpers.
func WithLogger(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, l)
}

// FromContext returns the request logger, or Default, tagged via WithContext.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerKey{}).(*Logger); ok {
		return l.WithContext(ctx)
	}
	return Default().WithContext(ctx)
}

func Info(ctx context.Context, msg string, keysAndValues ...any) {
	FromContext(ctx).Infow(msg, keysAndValues...)
}

func Warn(ctx context.Context, msg string, keysAndValues ...any) {
	FromContext(ctx).Warnw(msg, keysAndValues...)
}

func Error(ctx context.Context, msg string, keysAndValues ...any) {
	FromContext(ctx).Errorw(msg, keysAndValues...)
}
