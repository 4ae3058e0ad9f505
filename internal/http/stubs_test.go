package http

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/example/school-scheduler/internal/application"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubEvents struct {
	created   application.CreateEventParams
	updated   application.UpdateEventParams
	checked   application.CheckConflictParams
	deletedID string
	event     application.Event
	events    []application.Event
	check     application.ConflictCheck
	err       error
}

func (s *stubEvents) CreateEvent(_ context.Context, params application.CreateEventParams) (application.Event, error) {
	s.created = params
	return s.event, s.err
}

func (s *stubEvents) UpdateEvent(_ context.Context, params application.UpdateEventParams) (application.Event, error) {
	s.updated = params
	return s.event, s.err
}

func (s *stubEvents) DeleteEvent(_ context.Context, _, eventID string) error {
	s.deletedID = eventID
	return s.err
}

func (s *stubEvents) GetEvent(_ context.Context, _, _ string) (application.Event, error) {
	return s.event, s.err
}

func (s *stubEvents) ListEvents(_ context.Context, _ string) ([]application.Event, error) {
	return s.events, s.err
}

func (s *stubEvents) CheckConflict(_ context.Context, params application.CheckConflictParams) (application.ConflictCheck, error) {
	s.checked = params
	return s.check, s.err
}

type stubCalendar struct {
	params       application.CalendarParams
	seriesParams application.SeriesParams
	calendar     application.Calendar
	listing      application.SeriesListing
	err          error
}

func (s *stubCalendar) Calendar(_ context.Context, params application.CalendarParams) (application.Calendar, error) {
	s.params = params
	return s.calendar, s.err
}

func (s *stubCalendar) Series(_ context.Context, params application.SeriesParams) (application.SeriesListing, error) {
	s.seriesParams = params
	return s.listing, s.err
}

type stubDirectory struct {
	school   application.School
	teacher  application.Teacher
	classes  []application.Class
	err      error
	lastName string
}

func (s *stubDirectory) CreateSchool(_ context.Context, params application.CreateSchoolParams) (application.School, error) {
	s.lastName = params.Name
	return s.school, s.err
}

func (s *stubDirectory) GetSchool(_ context.Context, id string) (application.School, error) {
	if s.err != nil {
		return application.School{}, s.err
	}
	school := s.school
	if school.ID == "" {
		school.ID = id
	}
	return school, nil
}

func (s *stubDirectory) CreateClass(_ context.Context, params application.CreateClassParams) (application.Class, error) {
	s.lastName = params.Name
	return application.Class{ID: "c-new", SchoolID: params.SchoolID, Name: params.Name}, s.err
}

func (s *stubDirectory) CreateSubject(_ context.Context, params application.CreateSubjectParams) (application.Subject, error) {
	s.lastName = params.Name
	return application.Subject{ID: "sub-new", SchoolID: params.SchoolID, Name: params.Name}, s.err
}

func (s *stubDirectory) CreateTeacher(_ context.Context, params application.CreateTeacherParams) (application.Teacher, error) {
	s.lastName = params.Name
	return s.teacher, s.err
}

func (s *stubDirectory) ListClasses(_ context.Context, _ string) ([]application.Class, error) {
	return s.classes, s.err
}

func (s *stubDirectory) ListSubjects(_ context.Context, _ string) ([]application.Subject, error) {
	return nil, s.err
}

func (s *stubDirectory) ListTeachers(_ context.Context, _ string) ([]application.Teacher, error) {
	return nil, s.err
}

type fixture struct {
	events    *stubEvents
	calendar  *stubCalendar
	directory *stubDirectory
	handler   http.Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		events:    &stubEvents{},
		calendar:  &stubCalendar{},
		directory: &stubDirectory{school: application.School{Name: "North", TimeZone: "Asia/Tokyo"}},
	}
	logger := discardLogger()
	now := func() time.Time { return time.Date(2024, 4, 3, 12, 0, 0, 0, time.UTC) }
	f.handler = NewRouter(RouterConfig{
		Events:    NewEventHandler(f.events, f.directory, logger),
		Calendar:  NewCalendarHandler(f.calendar, f.directory, now, logger),
		Directory: NewDirectoryHandler(f.directory, logger),
		Logger:    logger,
		Middleware: []func(http.Handler) http.Handler{
			RequestLogger(logger),
		},
	})
	return f
}

// do sends a request, scoped to school when it is non-empty.
func (f *fixture) do(method, target, body, school string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if school != "" {
		req.Header.Set(SchoolHeader, school)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func tokyo(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	return loc
}
