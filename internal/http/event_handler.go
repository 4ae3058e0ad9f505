package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/example/school-scheduler/internal/application"
)

type eventService interface {
	CreateEvent(ctx context.Context, params application.CreateEventParams) (application.Event, error)
	UpdateEvent(ctx context.Context, params application.UpdateEventParams) (application.Event, error)
	DeleteEvent(ctx context.Context, schoolID, eventID string) error
	GetEvent(ctx context.Context, schoolID, eventID string) (application.Event, error)
	ListEvents(ctx context.Context, schoolID string) ([]application.Event, error)
	CheckConflict(ctx context.Context, params application.CheckConflictParams) (application.ConflictCheck, error)
}

// schoolLookup resolves the school's time zone for offset-free times.
type schoolLookup interface {
	GetSchool(ctx context.Context, id string) (application.School, error)
}

// zoneFor returns the school's location, or UTC when it cannot be resolved.
// An unknown school is reported by the service call that follows.
func zoneFor(ctx context.Context, schools schoolLookup, schoolID string) *time.Location {
	if schools == nil {
		return time.UTC
	}
	school, err := schools.GetSchool(ctx, schoolID)
	if err != nil {
		return time.UTC
	}
	loc, err := time.LoadLocation(school.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

type EventHandler struct {
	service   eventService
	schools   schoolLookup
	validator *requestValidator
	responder responder
	logger    *slog.Logger
}

func NewEventHandler(service eventService, schools schoolLookup, logger *slog.Logger) *EventHandler {
	base := defaultLogger(logger)
	return &EventHandler{
		service:   service,
		schools:   schools,
		validator: newRequestValidator(),
		responder: newResponder(base),
		logger:    base,
	}
}

func (h *EventHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return handlerLogger(ctx, h.logger, "EventHandler", operation, attrs...)
}

func (h *EventHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	schoolID, _ := SchoolIDFromContext(r.Context())

	events, err := h.service.ListEvents(r.Context(), schoolID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listEventsResponse{Events: toEventDTOs(events)})
}

func (h *EventHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	schoolID, _ := SchoolIDFromContext(r.Context())
	eventID, ok := ResourceIDFromContext(r.Context())
	if !ok || strings.TrimSpace(eventID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidEventID)
		return
	}

	event, err := h.service.GetEvent(r.Context(), schoolID, eventID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, eventResponse{Event: toEventDTO(event)})
}

func (h *EventHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	schoolID, _ := SchoolIDFromContext(r.Context())

	var req eventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Create", "error_kind", errorKindBadRequest).WarnContext(r.Context(), "failed to decode event request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}
	if fields := h.validator.check(req); fields != nil {
		h.responder.writeValidation(r.Context(), w, fields)
		return
	}

	logger := h.log(r.Context(), "Create")
	input := req.toInput(zoneFor(r.Context(), h.schools, schoolID))
	event, err := h.service.CreateEvent(r.Context(), application.CreateEventParams{SchoolID: schoolID, Input: input})
	if err != nil {
		logger.WarnContext(r.Context(), "event creation refused", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("event_id", event.ID).InfoContext(r.Context(), "event created")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, eventResponse{Event: toEventDTO(event)})
}

func (h *EventHandler) Update(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	schoolID, _ := SchoolIDFromContext(r.Context())
	eventID, ok := ResourceIDFromContext(r.Context())
	if !ok || strings.TrimSpace(eventID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidEventID)
		return
	}

	var req eventPatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Update", "event_id", eventID, "error_kind", errorKindBadRequest).WarnContext(r.Context(), "failed to decode event patch", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}
	if fields := h.validator.check(req); fields != nil {
		h.responder.writeValidation(r.Context(), w, fields)
		return
	}

	logger := h.log(r.Context(), "Update", "event_id", eventID)
	event, err := h.service.UpdateEvent(r.Context(), application.UpdateEventParams{
		SchoolID: schoolID,
		EventID:  eventID,
		Patch:    req.toPatch(zoneFor(r.Context(), h.schools, schoolID)),
	})
	if err != nil {
		logger.WarnContext(r.Context(), "event update refused", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "event updated")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, eventResponse{Event: toEventDTO(event)})
}

func (h *EventHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	schoolID, _ := SchoolIDFromContext(r.Context())
	eventID, ok := ResourceIDFromContext(r.Context())
	if !ok || strings.TrimSpace(eventID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidEventID)
		return
	}

	if err := h.service.DeleteEvent(r.Context(), schoolID, eventID); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.log(r.Context(), "Delete", "event_id", eventID).InfoContext(r.Context(), "event deleted")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

// Check runs the conflict gate without writing. A conflict is a normal 200
// response with conflict set.
func (h *EventHandler) Check(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	schoolID, _ := SchoolIDFromContext(r.Context())

	var req checkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Check", "error_kind", errorKindBadRequest).WarnContext(r.Context(), "failed to decode check request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}
	if fields := h.validator.check(req); fields != nil {
		h.responder.writeValidation(r.Context(), w, fields)
		return
	}

	result, err := h.service.CheckConflict(r.Context(), application.CheckConflictParams{
		SchoolID: schoolID,
		EventID:  strings.TrimSpace(req.EventID),
		Input:    req.toInput(zoneFor(r.Context(), h.schools, schoolID)),
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, checkResponse{
		Conflict: result.Conflict,
		Details:  toConflictDTO(result.Details),
	})
}

type eventRequest struct {
	ClassID        string `json:"class_id" validate:"required,notblank"`
	SubjectID      string `json:"subject_id" validate:"required,notblank"`
	TeacherID      string `json:"teacher_id" validate:"required,notblank"`
	Title          string `json:"title" validate:"max=200"`
	Start          string `json:"start" validate:"required,instant"`
	End            string `json:"end" validate:"required,instant"`
	AllDay         bool   `json:"all_day"`
	RecurrenceRule string `json:"recurrence_rule" validate:"max=512"`
}

func (r eventRequest) toInput(loc *time.Location) application.EventInput {
	start, _ := parseInstant(r.Start, loc)
	end, _ := parseInstant(r.End, loc)
	return application.EventInput{
		ClassID:        strings.TrimSpace(r.ClassID),
		SubjectID:      strings.TrimSpace(r.SubjectID),
		TeacherID:      strings.TrimSpace(r.TeacherID),
		Title:          strings.TrimSpace(r.Title),
		Start:          start,
		End:            end,
		AllDay:         r.AllDay,
		RecurrenceRule: strings.TrimSpace(r.RecurrenceRule),
	}
}

type checkRequest struct {
	eventRequest
	// EventID is set when checking an edit of a stored event.
	EventID string `json:"event_id"`
}

// eventPatchRequest leaves absent fields unchanged. An empty recurrence_rule
// turns a series into a single event.
type eventPatchRequest struct {
	ClassID        *string `json:"class_id" validate:"omitempty,notblank"`
	SubjectID      *string `json:"subject_id" validate:"omitempty,notblank"`
	TeacherID      *string `json:"teacher_id" validate:"omitempty,notblank"`
	Title          *string `json:"title" validate:"omitempty,max=200"`
	Start          *string `json:"start" validate:"omitempty,instant"`
	End            *string `json:"end" validate:"omitempty,instant"`
	AllDay         *bool   `json:"all_day"`
	RecurrenceRule *string `json:"recurrence_rule" validate:"omitempty,max=512"`
}

func (r eventPatchRequest) toPatch(loc *time.Location) application.EventPatch {
	patch := application.EventPatch{
		ClassID:   trimmed(r.ClassID),
		SubjectID: trimmed(r.SubjectID),
		TeacherID: trimmed(r.TeacherID),
		Title:     trimmed(r.Title),
		AllDay:    r.AllDay,
	}
	if r.Start != nil {
		if ts, ok := parseInstant(*r.Start, loc); ok {
			patch.Start = &ts
		}
	}
	if r.End != nil {
		if ts, ok := parseInstant(*r.End, loc); ok {
			patch.End = &ts
		}
	}
	if rule := trimmed(r.RecurrenceRule); rule != nil {
		if *rule == "" {
			patch.ClearRecurrence = true
		} else {
			patch.RecurrenceRule = rule
		}
	}
	return patch
}

func trimmed(value *string) *string {
	if value == nil {
		return nil
	}
	s := strings.TrimSpace(*value)
	return &s
}

type eventResponse struct {
	Event eventDTO `json:"event"`
}

type listEventsResponse struct {
	Events []eventDTO `json:"events"`
}

type checkResponse struct {
	Conflict bool         `json:"conflict"`
	Details  *conflictDTO `json:"details,omitempty"`
}

type eventDTO struct {
	ID             string `json:"id"`
	SchoolID       string `json:"school_id"`
	ClassID        string `json:"class_id"`
	SubjectID      string `json:"subject_id"`
	TeacherID      string `json:"teacher_id"`
	Title          string `json:"title"`
	Start          string `json:"start"`
	End            string `json:"end"`
	AllDay         bool   `json:"all_day"`
	RecurrenceRule string `json:"recurrence_rule,omitempty"`
	CreatedAt      string `json:"created_at"`
	UpdatedAt      string `json:"updated_at"`
}

func toEventDTO(event application.Event) eventDTO {
	return eventDTO{
		ID:             event.ID,
		SchoolID:       event.SchoolID,
		ClassID:        event.ClassID,
		SubjectID:      event.SubjectID,
		TeacherID:      event.TeacherID,
		Title:          event.Title,
		Start:          event.Start.Format(time.RFC3339),
		End:            event.End.Format(time.RFC3339),
		AllDay:         event.AllDay,
		RecurrenceRule: event.RecurrenceRule,
		CreatedAt:      event.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:      event.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func toEventDTOs(events []application.Event) []eventDTO {
	out := make([]eventDTO, 0, len(events))
	for _, event := range events {
		out = append(out, toEventDTO(event))
	}
	return out
}
