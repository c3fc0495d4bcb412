package reqctx

import (
	"context"
	"log/slog"
)

type ctxKey string

const (
	keyRID ctxKey = "herald_rid"
	keyUID ctxKey = "herald_uid"
)

// WithRID stores the request correlation id.
func WithRID(ctx context.Context, rid string) context.Context {
	return context.WithValue(ctx, keyRID, rid)
}

// RID returns correlation id if present.
func RID(ctx context.Context) string {
	v, _ := ctx.Value(keyRID).(string)
	return v
}

// WithUID stores the authenticated user id.
func WithUID(ctx context.Context, uid string) context.Context {
	return context.WithValue(ctx, keyUID, uid)
}

// UID returns the authenticated user id if present.
func UID(ctx context.Context) string {
	v, _ := ctx.Value(keyUID).(string)
	return v
}

// Logger decorates base with whatever request attributes ctx carries.
func Logger(ctx context.Context, base *slog.Logger) *slog.Logger {
	if base == nil {
		base = slog.Default()
	}
	if rid := RID(ctx); rid != "" {
		base = base.With("rid", rid)
	}
	if uid := UID(ctx); uid != "" {
		base = base.With("uid", uid)
	}
	return base
}
