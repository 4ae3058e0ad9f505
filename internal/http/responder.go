package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/example/school-scheduler/internal/application"
	"github.com/example/school-scheduler/internal/recurrence"
)

var (
	errBadRequestBody  = errors.New("request body is not valid JSON")
	errInvalidEventID  = errors.New("invalid event id")
	errInvalidSchoolID = errors.New("invalid school id")
	errMissingSchool   = errors.New("the X-School-ID header is required")
)

type responder struct {
	logger *slog.Logger
}

func newResponder(logger *slog.Logger) responder {
	if logger == nil {
		logger = slog.Default()
	}
	return responder{logger: logger}
}

func (r responder) writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	if w == nil {
		return
	}

	if status == http.StatusNoContent || payload == nil {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		r.loggerFor(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (r responder) writeError(ctx context.Context, w http.ResponseWriter, status int, err error) {
	message := statusMessage(status)
	if err != nil {
		if msg := strings.TrimSpace(err.Error()); msg != "" {
			message = msg
		}
		r.loggerFor(ctx).WarnContext(ctx, "request rejected", "status", status, "error", err)
	}

	r.writeJSON(ctx, w, status, errorResponse{Message: message})
}

func (r responder) writeValidation(ctx context.Context, w http.ResponseWriter, fields map[string]string) {
	r.writeJSON(ctx, w, http.StatusUnprocessableEntity, errorResponse{
		ErrorCode: "VALIDATION_FAILED",
		Message:   statusMessage(http.StatusUnprocessableEntity),
		Errors:    fields,
	})
}

func (r responder) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		r.writeError(ctx, w, http.StatusInternalServerError, errors.New("unknown error"))
		return
	}

	var (
		cErr *application.ConflictError
		mErr *recurrence.MalformedRuleError
		vErr *application.ValidationError
	)
	switch {
	case errors.As(err, &cErr):
		r.writeJSON(ctx, w, http.StatusConflict, errorResponse{
			ErrorCode: "SCHEDULE_CONFLICT",
			Message:   cErr.Error(),
			Conflict:  toConflictDTO(cErr),
		})
	case errors.As(err, &mErr):
		r.writeJSON(ctx, w, http.StatusUnprocessableEntity, errorResponse{
			ErrorCode: "MALFORMED_RULE",
			Message:   "the recurrence rule is malformed",
			EventID:   mErr.EventID,
			Errors:    map[string]string{"recurrence_rule": mErr.Reason},
		})
	case errors.As(err, &vErr):
		r.writeValidation(ctx, w, vErr.FieldErrors)
	case errors.Is(err, application.ErrPermission):
		r.writeJSON(ctx, w, http.StatusForbidden, errorResponse{
			ErrorCode: "FORBIDDEN",
			Message:   statusMessage(http.StatusForbidden),
		})
	case errors.Is(err, application.ErrNotFound):
		r.writeJSON(ctx, w, http.StatusNotFound, errorResponse{Message: statusMessage(http.StatusNotFound)})
	case errors.Is(err, application.ErrAlreadyExists):
		r.writeJSON(ctx, w, http.StatusConflict, errorResponse{
			ErrorCode: "ALREADY_EXISTS",
			Message:   "a resource with the same name already exists",
		})
	default:
		r.loggerFor(ctx).ErrorContext(ctx, "unexpected service error", "error", err)
		r.writeJSON(ctx, w, http.StatusInternalServerError, errorResponse{Message: statusMessage(http.StatusInternalServerError)})
	}
}

func (r responder) loggerFor(ctx context.Context) *slog.Logger {
	if logger := LoggerFromContext(ctx); logger != nil {
		return logger
	}
	return r.logger
}

func statusMessage(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "the request is malformed"
	case http.StatusForbidden:
		return "the resource belongs to another school"
	case http.StatusNotFound:
		return "the requested resource was not found"
	case http.StatusConflict:
		return "the request conflicts with the current schedule"
	case http.StatusUnprocessableEntity:
		return "the input is invalid"
	default:
		return "internal server error"
	}
}

type errorResponse struct {
	ErrorCode string            `json:"error_code,omitempty"`
	Message   string            `json:"message"`
	EventID   string            `json:"event_id,omitempty"`
	Errors    map[string]string `json:"errors,omitempty"`
	Conflict  *conflictDTO      `json:"conflict,omitempty"`
}

type conflictDTO struct {
	EventID        string `json:"event_id"`
	Field          string `json:"field"`
	CandidateStart string `json:"candidate_start"`
	CandidateEnd   string `json:"candidate_end"`
	ExistingStart  string `json:"existing_start"`
	ExistingEnd    string `json:"existing_end"`
}

func toConflictDTO(err *application.ConflictError) *conflictDTO {
	if err == nil {
		return nil
	}
	return &conflictDTO{
		EventID:        err.EventID,
		Field:          err.Field,
		CandidateStart: err.CandidateStart.Format(time.RFC3339),
		CandidateEnd:   err.CandidateEnd.Format(time.RFC3339),
		ExistingStart:  err.ExistingStart.Format(time.RFC3339),
		ExistingEnd:    err.ExistingEnd.Format(time.RFC3339),
	}
}
