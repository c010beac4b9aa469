package logger

import (
	"context"

	"github.com/questhold/questhold/pkg/interfaces"
)

type contextKey int

const (
	loggerKey contextKey = iota
	scanIDKey
)

// FromContext retrieves a logger from the context, falling back to fallback.
func FromContext(ctx context.Context, fallback interfaces.Logger) interfaces.Logger {
	if l, ok := ctx.Value(loggerKey).(interfaces.Logger); ok {
		return l
	}
	return fallback
}

// WithContext adds a logger to the context.
func WithContext(ctx context.Context, l interfaces.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// WithScanID tags ctx with the running scan's id so log lines can be correlated.
func WithScanID(ctx context.Context, scanID string) context.Context {
	return context.WithValue(ctx, scanIDKey, scanID)
}

func contextFields(ctx context.Context) []interfaces.Field {
	if ctx == nil {
		return nil
	}
	var fields []interfaces.Field
	if id, ok := ctx.Value(scanIDKey).(string); ok && id != "" {
		fields = append(fields, interfaces.String("scan_id", id))
	}
	return fields
}
