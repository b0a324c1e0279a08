// Package appctx provides context-based utilities for cross-cutting concerns:
// the request-scoped logger and the correlation data the operation log needs.
package appctx

import (
	"context"
	"log/slog"
)

type loggerKey struct{}

type requestKey struct{}

// RequestInfo describes the originating request of a sync operation.
// The ID is generated lazily by the operation log and then reused for every
// entry recorded under the same request.
type RequestInfo struct {
	ID     string
	Path   string
	UserID *uint
}

// WithLogger attaches a logger to the context.
func WithLogger(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, l)
}

// LoggerFromContext returns the logger from the context (if present).
func LoggerFromContext(ctx context.Context) (*slog.Logger, bool) {
	l, ok := ctx.Value(loggerKey{}).(*slog.Logger)
	return l, ok && l != nil
}

// GetLogger returns the logger from the context, or slog.Default() if missing.
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := LoggerFromContext(ctx); ok {
		return l
	}
	return slog.Default()
}

// WithRequest attaches request information to the context. The returned
// pointer is shared, so a lazily assigned ID is visible to every holder of
// the context.
func WithRequest(ctx context.Context, path string, userID *uint) (context.Context, *RequestInfo) {
	info := &RequestInfo{Path: path, UserID: userID}
	return context.WithValue(ctx, requestKey{}, info), info
}

// RequestFromContext returns the request information, if any.
func RequestFromContext(ctx context.Context) (*RequestInfo, bool) {
	info, ok := ctx.Value(requestKey{}).(*RequestInfo)
	return info, ok && info != nil
}
