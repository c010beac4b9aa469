package logger

import (
	"context"
	"os"

	"go.uber.org/zap"

	"github.com/questhold/questhold/pkg/interfaces"
)

// ZapLogger adapts a zap logger to interfaces.Logger.
type ZapLogger struct {
	logger *zap.Logger
}

// New creates a logger using QUESTHOLD_ENVIRONMENT and QUESTHOLD_LOG_LEVEL.
func New() interfaces.Logger {
	cfg := DefaultConfig()
	env := os.Getenv("QUESTHOLD_ENVIRONMENT")
	if env == "" || env == "development" {
		cfg = DevelopmentConfig()
	}
	if level := os.Getenv("QUESTHOLD_LOG_LEVEL"); level != "" {
		cfg.Level = level
	}

	l, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	return l
}

// NewZapLogger wraps an existing zap logger.
func NewZapLogger(l *zap.Logger) *ZapLogger {
	return &ZapLogger{logger: l}
}

func (l *ZapLogger) Debug(msg string, fields ...interfaces.Field) {
	l.logger.Debug(msg, convertFields(fields)...)
}

func (l *ZapLogger) Info(msg string, fields ...interfaces.Field) {
	l.logger.Info(msg, convertFields(fields)...)
}

func (l *ZapLogger) Warn(msg string, fields ...interfaces.Field) {
	l.logger.Warn(msg, convertFields(fields)...)
}

func (l *ZapLogger) Error(msg string, fields ...interfaces.Field) {
	l.logger.Error(msg, convertFields(fields)...)
}

func (l *ZapLogger) Fatal(msg string, fields ...interfaces.Field) {
	l.logger.Fatal(msg, convertFields(fields)...)
}

// WithContext attaches the scan and request identifiers stored in ctx.
func (l *ZapLogger) WithContext(ctx context.Context) interfaces.Logger {
	fields := contextFields(ctx)
	if len(fields) == 0 {
		return l
	}
	return l.WithFields(fields...)
}

func (l *ZapLogger) WithFields(fields ...interfaces.Field) interfaces.Logger {
	return &ZapLogger{logger: l.logger.With(convertFields(fields)...)}
}

// Named returns a child logger with the given name segment.
func (l *ZapLogger) Named(name string) *ZapLogger {
	return &ZapLogger{logger: l.logger.Named(name)}
}

// Zap exposes the underlying zap logger for libraries that need it directly.
func (l *ZapLogger) Zap() *zap.Logger {
	return l.logger
}

// Sync flushes any buffered log entries.
func (l *ZapLogger) Sync() error {
	return l.logger.Sync()
}

func convertFields(fields []interfaces.Field) []zap.Field {
	zapFields := make([]zap.Field, len(fields))
	for i, field := range fields {
		if err, ok := field.Value.(error); ok && field.Key == "error" {
			zapFields[i] = zap.Error(err)
			continue
		}
		zapFields[i] = zap.Any(field.Key, field.Value)
	}
	return zapFields
}

// Zap returns the zap logger behind l, or a no-op zap logger when l is not
// zap-backed.
func Zap(l interfaces.Logger) *zap.Logger {
	if zl, ok := l.(*ZapLogger); ok {
		return zl.logger
	}
	return zap.NewNop()
}
