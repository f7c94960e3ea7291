package logging

import (
	"context"
	"crypto/rand"
	"encoding/hex"
)

type contextKey string

const loggerKey contextKey = "logger"

// GenerateTraceID returns a random 16-byte hex trace ID.
func GenerateTraceID() string {
	b := make([]byte, 16)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// FromContext retrieves the logger carried by the context, falling back to
// the default logger.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerKey).(*Logger); ok {
		return l
	}
	return Default()
}

// NewContext returns a context carrying the logger.
func NewContext(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// WithTraceContext mints a trace ID, stamps it on the context's logger and
// returns both. Every inbound interaction gets one, so all log lines it
// produces can be correlated.
func WithTraceContext(ctx context.Context) (context.Context, *Logger) {
	l := FromContext(ctx).WithTraceID(GenerateTraceID())
	return NewContext(ctx, l), l
}

// SignalContext returns the context logger scoped to one signal.
func SignalContext(ctx context.Context, signalID, asset string) *Logger {
	return FromContext(ctx).WithComponent("bot").With("signal_id", signalID, "asset", asset)
}

// InteractionContext returns the context logger scoped to one interaction.
func InteractionContext(ctx context.Context, interactionID, userID string) *Logger {
	return FromContext(ctx).WithComponent("discord_handler").With("interaction_id", interactionID, "user_id", userID)
}
