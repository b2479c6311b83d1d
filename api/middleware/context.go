package middleware

import (
	"context"

	"github.com/angelmondragon/storefront-gateway/internal/session"
)

type contextKey string

const (
	ctxSessionID contextKey = "session_id"
	ctxSnapshot  contextKey = "session_snapshot"
)

// SessionIDFromContext returns the storefront session bound by the Session middleware.
func SessionIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxSessionID).(string); ok {
		return v
	}
	return ""
}

// WithSessionID injects the storefront session identifier into the context.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxSessionID, sessionID)
}

// SnapshotFromContext returns the identity loaded by Gate, if the route was gated.
func SnapshotFromContext(ctx context.Context) (session.Snapshot, bool) {
	if ctx == nil {
		return session.Snapshot{}, false
	}
	snap, ok := ctx.Value(ctxSnapshot).(session.Snapshot)
	return snap, ok
}

func withSnapshot(ctx context.Context, snap session.Snapshot) context.Context {
	return context.WithValue(ctx, ctxSnapshot, snap)
}
