package http

import (
	"context"
	"log/slog"

	"github.com/example/school-scheduler/internal/logging"
)

type contextKey string

const (
	schoolIDContextKey   contextKey = "school_id"
	resourceIDContextKey contextKey = "resource_id"
)

// ContextWithSchoolID returns a derived context carrying the current school.
func ContextWithSchoolID(ctx context.Context, schoolID string) context.Context {
	return context.WithValue(ctx, schoolIDContextKey, schoolID)
}

// SchoolIDFromContext extracts the current school if available.
func SchoolIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(schoolIDContextKey).(string)
	return id, ok && id != ""
}

// ContextWithResourceID injects the identifier resolved from the request path.
func ContextWithResourceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, resourceIDContextKey, id)
}

// ResourceIDFromContext extracts an identifier previously associated with the context.
func ResourceIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(resourceIDContextKey).(string)
	return id, ok
}

// ContextWithLogger returns a derived context carrying the request logger.
func ContextWithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return logging.ContextWithLogger(ctx, logger)
}

// LoggerFromContext extracts the request logger, or nil.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx)
}
