package http

import (
	"context"
	"log/slog"
)

// handlerLogger prefers the request scoped logger so records carry the
// request_id set by RequestLogger.
func handlerLogger(ctx context.Context, fallback *slog.Logger, handler, operation string, attrs ...any) *slog.Logger {
	logger := LoggerFromContext(ctx)
	if logger == nil {
		logger = fallback
	}
	if logger == nil {
		logger = slog.Default()
	}

	pairs := make([]any, 0, 4+len(attrs))
	pairs = append(pairs, "handler", handler, "operation", operation)
	return logger.With(append(pairs, attrs...)...)
}

// errorKind tags decode and parameter failures that never reach a service.
const errorKindBadRequest = "bad_request"

func defaultLogger(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.Default()
}
