package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/example/school-scheduler/internal/application"
	"github.com/example/school-scheduler/internal/recurrence"
	"github.com/example/school-scheduler/internal/scheduler"
)

func decodeError(t *testing.T, body string) errorResponse {
	t.Helper()
	var resp errorResponse
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		t.Fatalf("decode error body %q: %v", body, err)
	}
	return resp
}

func TestRouter(t *testing.T) {
	t.Parallel()

	t.Run("school scoped routes require the school header", func(t *testing.T) {
		f := newFixture(t)
		for _, target := range []string{"/events", "/calendar", "/calendar/series", "/calendar.ics", "/classes"} {
			rec := f.do(http.MethodGet, target, "", "")
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("%s: expected 400, got %d", target, rec.Code)
			}
		}
	})

	t.Run("unsupported methods are rejected with Allow", func(t *testing.T) {
		f := newFixture(t)
		rec := f.do(http.MethodDelete, "/events", "", "s1")
		if rec.Code != http.StatusMethodNotAllowed {
			t.Fatalf("expected 405, got %d", rec.Code)
		}
		if allow := rec.Header().Get("Allow"); allow != "GET, POST" {
			t.Fatalf("unexpected Allow header %q", allow)
		}
	})

	t.Run("healthz reports storage failures", func(t *testing.T) {
		healthy := NewRouter(RouterConfig{Logger: discardLogger()})
		f := &fixture{handler: healthy}
		if rec := f.do(http.MethodGet, "/healthz", "", ""); rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}

		failing := NewRouter(RouterConfig{
			Logger: discardLogger(),
			Health: func(_ context.Context) error { return errors.New("disk gone") },
		})
		f = &fixture{handler: failing}
		if rec := f.do(http.MethodGet, "/healthz", "", ""); rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("expected 503, got %d", rec.Code)
		}
	})
}

func TestEventHandlerCreate(t *testing.T) {
	t.Parallel()

	t.Run("reads offset-free times in the school zone", func(t *testing.T) {
		f := newFixture(t)
		f.events.event = application.Event{ID: "ev-1", SchoolID: "s1", Start: time.Date(2024, 4, 1, 9, 0, 0, 0, tokyo(t))}
		body := `{"class_id":"C1","subject_id":"MATH","teacher_id":"T1","start":"2024-04-01T09:00","end":"2024-04-01T10:00:00+09:00","recurrence_rule":" FREQ=WEEKLY;BYDAY=MO "}`

		rec := f.do(http.MethodPost, "/events", body, "s1")
		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		got := f.events.created
		if got.SchoolID != "s1" {
			t.Fatalf("expected school s1, got %q", got.SchoolID)
		}
		want := time.Date(2024, 4, 1, 9, 0, 0, 0, tokyo(t))
		if !got.Input.Start.Equal(want) || !got.Input.End.Equal(want.Add(time.Hour)) {
			t.Fatalf("unexpected times %v - %v", got.Input.Start, got.Input.End)
		}
		if got.Input.RecurrenceRule != "FREQ=WEEKLY;BYDAY=MO" {
			t.Fatalf("expected trimmed rule, got %q", got.Input.RecurrenceRule)
		}
		var resp eventResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if resp.Event.ID != "ev-1" || resp.Event.Start != "2024-04-01T09:00:00+09:00" {
			t.Fatalf("unexpected response %+v", resp.Event)
		}
	})

	t.Run("rejects invalid bodies before calling the service", func(t *testing.T) {
		f := newFixture(t)
		rec := f.do(http.MethodPost, "/events", `{"class_id":" ","start":"next monday"}`, "s1")
		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422, got %d", rec.Code)
		}
		resp := decodeError(t, rec.Body.String())
		for _, field := range []string{"class_id", "subject_id", "teacher_id", "start", "end"} {
			if _, ok := resp.Errors[field]; !ok {
				t.Fatalf("expected error for %s, got %v", field, resp.Errors)
			}
		}
		if f.events.created.SchoolID != "" {
			t.Fatal("service must not be called for invalid input")
		}

		if rec := f.do(http.MethodPost, "/events", `{`, "s1"); rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 for broken JSON, got %d", rec.Code)
		}
	})

	valid := `{"class_id":"C1","subject_id":"MATH","teacher_id":"T1","start":"2024-04-01T09:00:00Z","end":"2024-04-01T10:00:00Z"}`
	start := time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC)
	tests := []struct {
		name   string
		err    error
		status int
		check  func(t *testing.T, resp errorResponse)
	}{
		{
			name: "conflict",
			err: &application.ConflictError{
				EventID: "ev-9", Field: "teacher",
				CandidateStart: start, CandidateEnd: start.Add(time.Hour),
				ExistingStart: start, ExistingEnd: start.Add(time.Hour),
			},
			status: http.StatusConflict,
			check: func(t *testing.T, resp errorResponse) {
				if resp.ErrorCode != "SCHEDULE_CONFLICT" || resp.Conflict == nil {
					t.Fatalf("unexpected body %+v", resp)
				}
				if resp.Conflict.EventID != "ev-9" || resp.Conflict.Field != "teacher" {
					t.Fatalf("unexpected conflict %+v", resp.Conflict)
				}
			},
		},
		{
			name:   "malformed rule",
			err:    &recurrence.MalformedRuleError{EventID: "ev-3", Text: "FREQ=HOURLY", Reason: "unsupported frequency"},
			status: http.StatusUnprocessableEntity,
			check: func(t *testing.T, resp errorResponse) {
				if resp.ErrorCode != "MALFORMED_RULE" || resp.EventID != "ev-3" {
					t.Fatalf("unexpected body %+v", resp)
				}
				if resp.Errors["recurrence_rule"] != "unsupported frequency" {
					t.Fatalf("unexpected errors %v", resp.Errors)
				}
			},
		},
		{
			name:   "validation",
			err:    &application.ValidationError{FieldErrors: map[string]string{"teacher_id": "teacher does not exist"}},
			status: http.StatusUnprocessableEntity,
			check: func(t *testing.T, resp errorResponse) {
				if resp.Errors["teacher_id"] != "teacher does not exist" {
					t.Fatalf("unexpected errors %v", resp.Errors)
				}
			},
		},
		{name: "unexpected", err: errors.New("boom"), status: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.events.err = tt.err
			rec := f.do(http.MethodPost, "/events", valid, "s1")
			if rec.Code != tt.status {
				t.Fatalf("expected %d, got %d: %s", tt.status, rec.Code, rec.Body.String())
			}
			if tt.check != nil {
				tt.check(t, decodeError(t, rec.Body.String()))
			}
		})
	}
}

func TestEventHandlerByID(t *testing.T) {
	t.Parallel()

	t.Run("update builds a patch from present fields", func(t *testing.T) {
		f := newFixture(t)
		f.events.event = application.Event{ID: "ev-1"}
		rec := f.do(http.MethodPut, "/events/ev-1", `{"title":" Algebra ","recurrence_rule":""}`, "s1")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		got := f.events.updated
		if got.EventID != "ev-1" || got.SchoolID != "s1" {
			t.Fatalf("unexpected params %+v", got)
		}
		patch := got.Patch
		if patch.Title == nil || *patch.Title != "Algebra" {
			t.Fatalf("expected trimmed title, got %v", patch.Title)
		}
		if !patch.ClearRecurrence || patch.RecurrenceRule != nil {
			t.Fatalf("expected recurrence to be cleared, got %+v", patch)
		}
		if patch.ClassID != nil || patch.Start != nil || patch.AllDay != nil {
			t.Fatalf("absent fields must stay nil: %+v", patch)
		}
	})

	t.Run("permission and not found", func(t *testing.T) {
		f := newFixture(t)
		f.events.err = application.ErrPermission
		if rec := f.do(http.MethodGet, "/events/ev-1", "", "s1"); rec.Code != http.StatusForbidden {
			t.Fatalf("expected 403, got %d", rec.Code)
		}
		f.events.err = application.ErrNotFound
		if rec := f.do(http.MethodDelete, "/events/ev-1", "", "s1"); rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
	})

	t.Run("delete returns no content", func(t *testing.T) {
		f := newFixture(t)
		rec := f.do(http.MethodDelete, "/events/ev-7", "", "s1")
		if rec.Code != http.StatusNoContent {
			t.Fatalf("expected 204, got %d", rec.Code)
		}
		if f.events.deletedID != "ev-7" {
			t.Fatalf("expected ev-7 deleted, got %q", f.events.deletedID)
		}
	})

	t.Run("nested paths are not events", func(t *testing.T) {
		f := newFixture(t)
		if rec := f.do(http.MethodGet, "/events/ev-1/extra", "", "s1"); rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
	})
}

func TestEventHandlerCheck(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	start := time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC)
	f.events.check = application.ConflictCheck{
		Conflict: true,
		Details:  &application.ConflictError{EventID: "ev-2", Field: "class", ExistingStart: start, ExistingEnd: start.Add(time.Hour)},
	}
	body := `{"event_id":"ev-1","class_id":"C1","subject_id":"MATH","teacher_id":"T1","start":"2024-04-01","end":"2024-04-02","all_day":true}`
	rec := f.do(http.MethodPost, "/events/check", body, "s1")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp checkResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Conflict || resp.Details == nil || resp.Details.EventID != "ev-2" || resp.Details.Field != "class" {
		t.Fatalf("unexpected response %+v", resp)
	}
	got := f.events.checked
	if got.EventID != "ev-1" || !got.Input.AllDay {
		t.Fatalf("unexpected params %+v", got)
	}
	if want := time.Date(2024, 4, 1, 0, 0, 0, 0, tokyo(t)); !got.Input.Start.Equal(want) {
		t.Fatalf("expected local midnight %v, got %v", want, got.Input.Start)
	}
}

func TestCalendarHandler(t *testing.T) {
	t.Parallel()

	t.Run("passes view, date and filter", func(t *testing.T) {
		f := newFixture(t)
		f.calendar.calendar = application.Calendar{
			View:         application.CalendarViewDay,
			Events:       []scheduler.ViewEvent{{EventID: "ev-1", Title: "Math"}},
			Unrenderable: []application.UnrenderableEvent{{EventID: "ev-bad", Reason: "malformed"}},
		}
		rec := f.do(http.MethodGet, "/calendar?view=day&date=2024-04-01&teacher_id=T1", "", "s1")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		got := f.calendar.params
		if got.View != application.CalendarViewDay || got.Filter.Dimension != scheduler.FilterTeacher || got.Filter.Value != "T1" {
			t.Fatalf("unexpected params %+v", got)
		}
		if want := time.Date(2024, 4, 1, 0, 0, 0, 0, tokyo(t)); !got.Date.Equal(want) {
			t.Fatalf("expected %v, got %v", want, got.Date)
		}
		var resp calendarResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(resp.Events) != 1 || len(resp.Unrenderable) != 1 || resp.Unrenderable[0].EventID != "ev-bad" {
			t.Fatalf("unexpected response %+v", resp)
		}
	})

	t.Run("rejects two filters and bad dates", func(t *testing.T) {
		f := newFixture(t)
		rec := f.do(http.MethodGet, "/calendar?class_id=C1&teacher_id=T1&date=someday", "", "s1")
		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422, got %d", rec.Code)
		}
		resp := decodeError(t, rec.Body.String())
		if resp.Errors["filter"] == "" || resp.Errors["date"] == "" {
			t.Fatalf("unexpected errors %v", resp.Errors)
		}
	})

	t.Run("empty calendars encode an empty list", func(t *testing.T) {
		f := newFixture(t)
		rec := f.do(http.MethodGet, "/calendar", "", "s1")
		if !strings.Contains(rec.Body.String(), `"events":[]`) {
			t.Fatalf("expected empty events array, got %s", rec.Body.String())
		}
	})

	t.Run("series and feed", func(t *testing.T) {
		f := newFixture(t)
		loc := tokyo(t)
		f.calendar.listing = application.SeriesListing{
			TimeZone: "Asia/Tokyo",
			Records: []scheduler.SeriesRecord{{
				ID:             "ev-1",
				Title:          "Math",
				Start:          time.Date(2024, 4, 1, 9, 0, 0, 0, loc),
				End:            time.Date(2024, 4, 1, 10, 0, 0, 0, loc),
				RecurrenceRule: "FREQ=WEEKLY;INTERVAL=1;BYDAY=MO",
			}},
		}
		rec := f.do(http.MethodGet, "/calendar/series?class_id=C1", "", "s1")
		if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"time_zone":"Asia/Tokyo"`) {
			t.Fatalf("unexpected series response %d: %s", rec.Code, rec.Body.String())
		}
		if f.calendar.seriesParams.Filter.Dimension != scheduler.FilterClass {
			t.Fatalf("expected class filter, got %+v", f.calendar.seriesParams)
		}

		rec = f.do(http.MethodGet, "/calendar.ics", "", "s1")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/calendar") {
			t.Fatalf("unexpected content type %q", ct)
		}
		if body := rec.Body.String(); !strings.Contains(body, "RRULE:FREQ=WEEKLY;INTERVAL=1;BYDAY=MO") {
			t.Fatalf("feed is missing the rule:\n%s", body)
		}
	})
}

func TestDirectoryHandler(t *testing.T) {
	t.Parallel()

	t.Run("create school validates the time zone", func(t *testing.T) {
		f := newFixture(t)
		rec := f.do(http.MethodPost, "/schools", `{"name":"North","time_zone":"Mars/Olympus"}`, "")
		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422, got %d", rec.Code)
		}
		f.directory.school = application.School{ID: "s9", Name: "North", TimeZone: "Asia/Tokyo"}
		rec = f.do(http.MethodPost, "/schools", `{"name":"North","time_zone":"Asia/Tokyo"}`, "")
		if rec.Code != http.StatusCreated || !strings.Contains(rec.Body.String(), `"id":"s9"`) {
			t.Fatalf("unexpected response %d: %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("get school by path", func(t *testing.T) {
		f := newFixture(t)
		rec := f.do(http.MethodGet, "/schools/s3", "", "")
		if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"id":"s3"`) {
			t.Fatalf("unexpected response %d: %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("teacher email is validated", func(t *testing.T) {
		f := newFixture(t)
		rec := f.do(http.MethodPost, "/teachers", `{"name":"Sato","email":"not-an-email"}`, "s1")
		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422, got %d", rec.Code)
		}
		if f.directory.lastName != "" {
			t.Fatal("service must not be called")
		}
	})

	t.Run("duplicate names conflict", func(t *testing.T) {
		f := newFixture(t)
		f.directory.err = application.ErrAlreadyExists
		rec := f.do(http.MethodPost, "/classes", `{"name":"1-A"}`, "s1")
		if rec.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", rec.Code)
		}
	})

	t.Run("list classes", func(t *testing.T) {
		f := newFixture(t)
		f.directory.classes = []application.Class{{ID: "C1", SchoolID: "s1", Name: "1-A"}}
		rec := f.do(http.MethodGet, "/classes", "", "s1")
		if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"name":"1-A"`) {
			t.Fatalf("unexpected response %d: %s", rec.Code, rec.Body.String())
		}
	})
}
