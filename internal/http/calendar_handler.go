package http

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/example/school-scheduler/internal/application"
	"github.com/example/school-scheduler/internal/ics"
	"github.com/example/school-scheduler/internal/scheduler"
)

type calendarService interface {
	Calendar(ctx context.Context, params application.CalendarParams) (application.Calendar, error)
	Series(ctx context.Context, params application.SeriesParams) (application.SeriesListing, error)
}

// CalendarHandler serves the read side: rendered day/week windows, series
// records for client-side expansion and an iCalendar feed.
type CalendarHandler struct {
	service   calendarService
	schools   schoolLookup
	responder responder
	logger    *slog.Logger
	now       func() time.Time
}

func NewCalendarHandler(service calendarService, schools schoolLookup, now func() time.Time, logger *slog.Logger) *CalendarHandler {
	base := defaultLogger(logger)
	if now == nil {
		now = time.Now
	}
	return &CalendarHandler{service: service, schools: schools, responder: newResponder(base), logger: base, now: now}
}

func (h *CalendarHandler) View(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	schoolID, _ := SchoolIDFromContext(r.Context())
	query := r.URL.Query()

	filter, fields := parseFilter(query)
	params := application.CalendarParams{
		SchoolID: schoolID,
		View:     application.CalendarView(strings.ToLower(strings.TrimSpace(query.Get("view")))),
		Filter:   filter,
	}
	if raw := strings.TrimSpace(query.Get("date")); raw == "" {
		params.Date = h.now()
	} else if date, ok := parseInstant(raw, zoneFor(r.Context(), h.schools, schoolID)); ok {
		params.Date = date
	} else {
		fields["date"] = "date must be a YYYY-MM-DD date"
	}
	if len(fields) > 0 {
		h.responder.writeValidation(r.Context(), w, fields)
		return
	}

	calendar, err := h.service.Calendar(r.Context(), params)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	if len(calendar.Unrenderable) > 0 {
		handlerLogger(r.Context(), h.logger, "CalendarHandler", "View").
			WarnContext(r.Context(), "calendar rendered with unrenderable events", "count", len(calendar.Unrenderable))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, calendarResponse{
		View:         string(calendar.View),
		Start:        calendar.Start.Format(time.RFC3339),
		End:          calendar.End.Format(time.RFC3339),
		Events:       nonNil(calendar.Events),
		Unrenderable: toUnrenderableDTOs(calendar.Unrenderable),
	})
}

func (h *CalendarHandler) Series(w http.ResponseWriter, r *http.Request) {
	listing, ok := h.series(w, r)
	if !ok {
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, seriesResponse{
		TimeZone:     listing.TimeZone,
		Series:       nonNil(listing.Records),
		Unrenderable: toUnrenderableDTOs(listing.Unrenderable),
	})
}

// Feed writes the series as text/calendar. Events with malformed rules are
// left out of the feed and logged.
func (h *CalendarHandler) Feed(w http.ResponseWriter, r *http.Request) {
	listing, ok := h.series(w, r)
	if !ok {
		return
	}
	schoolID, _ := SchoolIDFromContext(r.Context())
	logger := handlerLogger(r.Context(), h.logger, "CalendarHandler", "Feed")
	for _, item := range listing.Unrenderable {
		logger.WarnContext(r.Context(), "event left out of feed", "event_id", item.EventID, "reason", item.Reason)
	}

	var buf bytes.Buffer
	feed := ics.Feed{Name: schoolID, TimeZone: listing.TimeZone, Stamp: h.now()}
	if err := ics.Encode(&buf, feed, listing.Records); err != nil {
		logger.ErrorContext(r.Context(), "failed to encode calendar feed", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusInternalServerError, nil)
		return
	}
	w.Header().Set("Content-Type", ics.ContentType)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		logger.ErrorContext(r.Context(), "failed to write calendar feed", "error", err)
	}
}

func (h *CalendarHandler) series(w http.ResponseWriter, r *http.Request) (application.SeriesListing, bool) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return application.SeriesListing{}, false
	}
	schoolID, _ := SchoolIDFromContext(r.Context())
	filter, fields := parseFilter(r.URL.Query())
	if len(fields) > 0 {
		h.responder.writeValidation(r.Context(), w, fields)
		return application.SeriesListing{}, false
	}
	listing, err := h.service.Series(r.Context(), application.SeriesParams{SchoolID: schoolID, Filter: filter})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return application.SeriesListing{}, false
	}
	return listing, true
}

// parseFilter reads class_id or teacher_id. Both at once is rejected.
func parseFilter(query url.Values) (scheduler.Filter, map[string]string) {
	fields := map[string]string{}
	classID := strings.TrimSpace(query.Get("class_id"))
	teacherID := strings.TrimSpace(query.Get("teacher_id"))
	switch {
	case classID != "" && teacherID != "":
		fields["filter"] = "filter by class_id or teacher_id, not both"
		return scheduler.Filter{}, fields
	case classID != "":
		return scheduler.Filter{Dimension: scheduler.FilterClass, Value: classID}, fields
	case teacherID != "":
		return scheduler.Filter{Dimension: scheduler.FilterTeacher, Value: teacherID}, fields
	}
	return scheduler.Filter{}, fields
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

type calendarResponse struct {
	View         string                `json:"view"`
	Start        string                `json:"start"`
	End          string                `json:"end"`
	Events       []scheduler.ViewEvent `json:"events"`
	Unrenderable []unrenderableDTO     `json:"unrenderable,omitempty"`
}

type seriesResponse struct {
	TimeZone     string                   `json:"time_zone"`
	Series       []scheduler.SeriesRecord `json:"series"`
	Unrenderable []unrenderableDTO        `json:"unrenderable,omitempty"`
}

// unrenderableDTO is the "could not be displayed" state of an event.
type unrenderableDTO struct {
	EventID string `json:"event_id"`
	Title   string `json:"title"`
	Reason  string `json:"reason"`
}

func toUnrenderableDTOs(items []application.UnrenderableEvent) []unrenderableDTO {
	if len(items) == 0 {
		return nil
	}
	out := make([]unrenderableDTO, 0, len(items))
	for _, item := range items {
		out = append(out, unrenderableDTO{EventID: item.EventID, Title: item.Title, Reason: item.Reason})
	}
	return out
}
