package application

import (
	"context"
	"errors"
	"log/slog"

	"github.com/example/school-scheduler/internal/logging"
)

func defaultLogger(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.Default()
}

func serviceLogger(ctx context.Context, base *slog.Logger, serviceName, operation string, attrs ...any) *slog.Logger {
	logger := logging.FromContext(ctx)
	if logger == nil {
		logger = base
	}
	if logger == nil {
		logger = slog.Default()
	}

	pairs := []any{"service", serviceName}
	if operation != "" {
		pairs = append(pairs, "operation", operation)
	}
	if len(attrs) > 0 {
		pairs = append(pairs, attrs...)
	}
	return logger.With(pairs...)
}

// ErrorKind maps sentinel and typed errors to a stable logging label.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrPermission):
		return "permission"
	case errors.Is(err, ErrAlreadyExists):
		return "already_exists"
	}

	var cErr *ConflictError
	if errors.As(err, &cErr) {
		return "conflict"
	}
	if IsMalformedRule(err) {
		return "malformed_rule"
	}
	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return "validation"
	}

	return "unexpected"
}

// logOutcome writes the standard completion record for a service operation.
func logOutcome(ctx context.Context, logger *slog.Logger, err error, failure, success string, attrs ...any) {
	if err == nil {
		logger.InfoContext(ctx, success, attrs...)
		return
	}
	level := slog.LevelError
	switch ErrorKind(err) {
	case "validation", "conflict", "not_found", "permission", "already_exists":
		// Caller mistakes are expected traffic.
		level = slog.LevelWarn
	}
	logger.Log(ctx, level, failure, append([]any{"error", err, "error_kind", ErrorKind(err)}, attrs...)...)
}
