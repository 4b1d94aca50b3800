package logger

import (
	"context"

	"github.com/google/uuid"
)

// WithTraceID adds a trace ID to the context. If traceID is empty a new
// UUID is generated.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	if traceID == "" {
		traceID = uuid.New().String()
	}
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// GetTraceID extracts the trace ID from the context. Returns an empty
// string if no trace ID is found.
func GetTraceID(ctx context.Context) string {
	if traceID, ok := ctx.Value(TraceIDKey).(string); ok {
		return traceID
	}
	return ""
}

// NewTraceID generates a new trace ID using UUID v4.
func NewTraceID() string {
	return uuid.New().String()
}
