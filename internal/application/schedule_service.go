package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/example/school-scheduler/internal/persistence"
	"github.com/example/school-scheduler/internal/recurrence"
	"github.com/example/school-scheduler/internal/scheduler"
)

// EventStore captures the event reads and writes needed by the service.
type EventStore interface {
	ListEventsForSchool(ctx context.Context, schoolID string) ([]Event, error)
	GetEvent(ctx context.Context, id string) (Event, error)
	CreateEvent(ctx context.Context, event Event) error
	UpdateEvent(ctx context.Context, event Event) error
	DeleteEvent(ctx context.Context, id string) error
}

// EventRepository is an EventStore that can run the conflict check and the
// write it guards as one atomic unit.
type EventRepository interface {
	EventStore
	Atomically(ctx context.Context, fn func(ctx context.Context, store EventStore) error) error
}

// Directory resolves schools and the references events point at.
type Directory interface {
	GetSchool(ctx context.Context, id string) (School, error)
	GetClass(ctx context.Context, id string) (Class, error)
	GetSubject(ctx context.Context, id string) (Subject, error)
	GetTeacher(ctx context.Context, id string) (Teacher, error)
	ListClasses(ctx context.Context, schoolID string) ([]Class, error)
	ListSubjects(ctx context.Context, schoolID string) ([]Subject, error)
	ListTeachers(ctx context.Context, schoolID string) ([]Teacher, error)
}

// ScheduleOption customizes a ScheduleService.
type ScheduleOption func(*ScheduleService)

// WithLookAhead bounds conflict checks between two never-ending series.
func WithLookAhead(d time.Duration) ScheduleOption {
	return func(s *ScheduleService) { s.lookAhead = d }
}

// ScheduleService orchestrates validation, conflict detection and persistence
// for schedule events.
type ScheduleService struct {
	events      EventRepository
	directory   Directory
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
	lookAhead   time.Duration
}

// NewScheduleService wires dependencies for schedule operations.
func NewScheduleService(events EventRepository, directory Directory, idGenerator func() string, now func() time.Time, opts ...ScheduleOption) *ScheduleService {
	return NewScheduleServiceWithLogger(events, directory, idGenerator, now, nil, opts...)
}

// NewScheduleServiceWithLogger wires dependencies with a specified logger.
func NewScheduleServiceWithLogger(events EventRepository, directory Directory, idGenerator func() string, now func() time.Time, logger *slog.Logger, opts ...ScheduleOption) *ScheduleService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	s := &ScheduleService{
		events:      events,
		directory:   directory,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
		lookAhead:   scheduler.DefaultLookAhead,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *ScheduleService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "ScheduleService", operation, attrs...)
}

func (s *ScheduleService) ready() error {
	if s == nil {
		return fmt.Errorf("ScheduleService is nil")
	}
	if s.events == nil || s.directory == nil {
		return fmt.Errorf("schedule service dependencies not configured")
	}
	return nil
}

// CreateEvent validates the input, rejects it when it overlaps an event
// sharing its class or teacher, and stores it. The check and the insert are
// atomic with respect to other writers.
func (s *ScheduleService) CreateEvent(ctx context.Context, params CreateEventParams) (event Event, err error) {
	if err = s.ready(); err != nil {
		return
	}
	logger := s.loggerWith(ctx, "CreateEvent", "school_id", params.SchoolID)
	defer func() { logOutcome(ctx, logger, err, "failed to create event", "event created", "event_id", event.ID) }()

	var loc *time.Location
	event, loc, err = s.prepare(ctx, params.SchoolID, Event{SchoolID: params.SchoolID}, params.Input)
	if err != nil {
		return Event{}, err
	}
	event.ID = s.idGenerator()
	event.CreatedAt = s.now()
	event.UpdatedAt = event.CreatedAt

	err = s.events.Atomically(ctx, func(ctx context.Context, store EventStore) error {
		if err := s.gate(ctx, store, loc, event); err != nil {
			return err
		}
		return store.CreateEvent(ctx, event)
	})
	if err != nil {
		return Event{}, mapRepoError(err)
	}
	return event, nil
}

// UpdateEvent applies patch to a stored event. The updated event runs through
// the same validation and conflict gate as a new one, with its own stored
// version excluded.
func (s *ScheduleService) UpdateEvent(ctx context.Context, params UpdateEventParams) (event Event, err error) {
	if err = s.ready(); err != nil {
		return
	}
	logger := s.loggerWith(ctx, "UpdateEvent", "school_id", params.SchoolID, "event_id", params.EventID)
	defer func() { logOutcome(ctx, logger, err, "failed to update event", "event updated") }()

	existing, err := s.owned(ctx, params.SchoolID, params.EventID)
	if err != nil {
		return Event{}, err
	}

	input := applyPatch(existing, params.Patch)
	var loc *time.Location
	event, loc, err = s.prepare(ctx, params.SchoolID, existing, input)
	if err != nil {
		return Event{}, err
	}
	event.UpdatedAt = s.now()

	err = s.events.Atomically(ctx, func(ctx context.Context, store EventStore) error {
		// The event may have been deleted since it was read.
		if _, err := store.GetEvent(ctx, event.ID); err != nil {
			return err
		}
		if err := s.gate(ctx, store, loc, event); err != nil {
			return err
		}
		return store.UpdateEvent(ctx, event)
	})
	if err != nil {
		return Event{}, mapRepoError(err)
	}
	return event, nil
}

// DeleteEvent removes a stored event owned by schoolID.
func (s *ScheduleService) DeleteEvent(ctx context.Context, schoolID, eventID string) (err error) {
	if err = s.ready(); err != nil {
		return
	}
	logger := s.loggerWith(ctx, "DeleteEvent", "school_id", schoolID, "event_id", eventID)
	defer func() { logOutcome(ctx, logger, err, "failed to delete event", "event deleted") }()

	if _, err = s.owned(ctx, schoolID, eventID); err != nil {
		return err
	}
	if err = s.events.DeleteEvent(ctx, eventID); err != nil {
		return mapRepoError(err)
	}
	return nil
}

// GetEvent returns a stored event owned by schoolID.
func (s *ScheduleService) GetEvent(ctx context.Context, schoolID, eventID string) (Event, error) {
	if err := s.ready(); err != nil {
		return Event{}, err
	}
	return s.owned(ctx, schoolID, eventID)
}

// ListEvents returns the school's stored events ordered by start then ID.
func (s *ScheduleService) ListEvents(ctx context.Context, schoolID string) ([]Event, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if _, _, err := s.school(ctx, schoolID); err != nil {
		return nil, err
	}
	events, err := s.events.ListEventsForSchool(ctx, schoolID)
	if err != nil {
		return nil, mapRepoError(err)
	}
	sortEvents(events)
	return events, nil
}

// CheckConflict runs the validation and conflict gate without writing. A
// detected conflict is reported in the result rather than as an error.
func (s *ScheduleService) CheckConflict(ctx context.Context, params CheckConflictParams) (ConflictCheck, error) {
	if err := s.ready(); err != nil {
		return ConflictCheck{}, err
	}
	base := Event{SchoolID: params.SchoolID}
	if params.EventID != "" {
		existing, err := s.owned(ctx, params.SchoolID, params.EventID)
		if err != nil {
			return ConflictCheck{}, err
		}
		base = existing
	}
	candidate, loc, err := s.prepare(ctx, params.SchoolID, base, params.Input)
	if err != nil {
		return ConflictCheck{}, err
	}

	err = s.gate(ctx, s.events, loc, candidate)
	var cErr *ConflictError
	switch {
	case errors.As(err, &cErr):
		return ConflictCheck{Conflict: true, Details: cErr}, nil
	case err != nil:
		return ConflictCheck{}, mapRepoError(err)
	}
	return ConflictCheck{}, nil
}

// Calendar renders the day or week around params.Date in the school's time
// zone. Occurrences are expanded from the stored rules on every call; events
// whose rules cannot be expanded are listed as unrenderable instead of
// failing the whole view.
func (s *ScheduleService) Calendar(ctx context.Context, params CalendarParams) (Calendar, error) {
	if err := s.ready(); err != nil {
		return Calendar{}, err
	}
	_, loc, err := s.school(ctx, params.SchoolID)
	if err != nil {
		return Calendar{}, err
	}

	vErr := validateFilter(params.Filter)
	var window recurrence.Window
	switch params.View {
	case CalendarViewDay:
		window = scheduler.DayWindow(params.Date, loc)
	case CalendarViewWeek, "":
		params.View = CalendarViewWeek
		window = scheduler.WeekWindow(params.Date, loc)
	default:
		vErr.add("view", "view must be day or week")
	}
	if params.Date.IsZero() {
		vErr.add("date", "date is required")
	}
	if vErr.HasErrors() {
		return Calendar{}, vErr
	}

	events, err := s.events.ListEventsForSchool(ctx, params.SchoolID)
	if err != nil {
		return Calendar{}, mapRepoError(err)
	}
	labels, err := s.labels(ctx, params.SchoolID)
	if err != nil {
		return Calendar{}, err
	}

	projection, err := scheduler.Project(recurrence.NewEngine(loc), schedulerEvents(events), window, params.Filter, labels)
	if err != nil {
		return Calendar{}, err
	}
	if len(projection.Unrenderable) > 0 {
		logger := s.loggerWith(ctx, "Calendar", "school_id", params.SchoolID)
		for _, item := range projection.Unrenderable {
			logger.WarnContext(ctx, "event could not be displayed", "event_id", item.EventID, "error", item.Err)
		}
	}

	return Calendar{
		View:         params.View,
		Start:        window.Start,
		End:          window.End,
		Events:       projection.Events,
		Unrenderable: unrenderable(projection.Unrenderable),
	}, nil
}

// Series lists one record per stored series for widgets that expand rules
// themselves.
func (s *ScheduleService) Series(ctx context.Context, params SeriesParams) (SeriesListing, error) {
	if err := s.ready(); err != nil {
		return SeriesListing{}, err
	}
	school, loc, err := s.school(ctx, params.SchoolID)
	if err != nil {
		return SeriesListing{}, err
	}
	if vErr := validateFilter(params.Filter); vErr.HasErrors() {
		return SeriesListing{}, vErr
	}
	events, err := s.events.ListEventsForSchool(ctx, params.SchoolID)
	if err != nil {
		return SeriesListing{}, mapRepoError(err)
	}
	labels, err := s.labels(ctx, params.SchoolID)
	if err != nil {
		return SeriesListing{}, err
	}
	for i := range events {
		events[i].Start = events[i].Start.In(loc)
		events[i].End = events[i].End.In(loc)
	}
	records, failed := scheduler.SeriesRecords(schedulerEvents(events), params.Filter, labels)
	return SeriesListing{TimeZone: school.TimeZone, Records: records, Unrenderable: unrenderable(failed)}, nil
}

// prepare validates input against the school's directory and returns the
// event that would be stored, based on base.
func (s *ScheduleService) prepare(ctx context.Context, schoolID string, base Event, input EventInput) (Event, *time.Location, error) {
	_, loc, err := s.school(ctx, schoolID)
	if err != nil {
		return Event{}, nil, err
	}

	vErr := validateEventInput(input)
	var ruleText string
	if text := strings.TrimSpace(input.RecurrenceRule); text != "" {
		rule, err := recurrence.Parse(text)
		if err != nil {
			return Event{}, nil, err
		}
		ruleText = rule.String()
	}
	vErr.merge(s.checkReferences(ctx, schoolID, input))
	if vErr.HasErrors() {
		return Event{}, nil, vErr
	}

	event := base
	event.SchoolID = schoolID
	event.ClassID = input.ClassID
	event.SubjectID = input.SubjectID
	event.TeacherID = input.TeacherID
	event.Title = strings.TrimSpace(input.Title)
	event.AllDay = input.AllDay
	event.RecurrenceRule = ruleText
	event.Start, event.End = input.Start.In(loc), input.End.In(loc)
	if event.AllDay {
		event.Start, event.End = recurrence.NormalizeAllDay(event.Start, event.End, loc)
	}
	return event, loc, nil
}

// gate returns a *ConflictError when candidate overlaps a stored event of the
// same school. A stored event with a malformed rule fails the check.
func (s *ScheduleService) gate(ctx context.Context, store EventStore, loc *time.Location, candidate Event) error {
	existing, err := store.ListEventsForSchool(ctx, candidate.SchoolID)
	if err != nil {
		return err
	}
	detector := scheduler.NewDetector(recurrence.NewEngine(loc), s.lookAhead)
	result, err := detector.Check(candidate.schedulerEvent(), schedulerEvents(existing))
	if err != nil {
		return err
	}
	if !result.Conflict {
		return nil
	}
	return &ConflictError{
		EventID:        result.WithEventID,
		Field:          string(result.Field),
		CandidateStart: result.Candidate.Start,
		CandidateEnd:   result.Candidate.End,
		ExistingStart:  result.Existing.Start,
		ExistingEnd:    result.Existing.End,
	}
}

func (s *ScheduleService) school(ctx context.Context, schoolID string) (School, *time.Location, error) {
	if strings.TrimSpace(schoolID) == "" {
		return School{}, nil, fieldError("school_id", "school is required")
	}
	school, err := s.directory.GetSchool(ctx, schoolID)
	if err != nil {
		if isNotFound(err) {
			return School{}, nil, fieldError("school_id", "school does not exist")
		}
		return School{}, nil, err
	}
	loc, err := time.LoadLocation(school.TimeZone)
	if err != nil {
		return School{}, nil, fmt.Errorf("school %s has invalid time zone %q: %w", school.ID, school.TimeZone, err)
	}
	return school, loc, nil
}

func (s *ScheduleService) owned(ctx context.Context, schoolID, eventID string) (Event, error) {
	event, err := s.events.GetEvent(ctx, eventID)
	if err != nil {
		return Event{}, mapRepoError(err)
	}
	if event.SchoolID != schoolID {
		return Event{}, ErrPermission
	}
	return event, nil
}

// checkReferences requires every referenced entity to exist in schoolID.
func (s *ScheduleService) checkReferences(ctx context.Context, schoolID string, input EventInput) *ValidationError {
	vErr := &ValidationError{}
	check := func(field, id string, lookup func() (string, error)) {
		if id == "" {
			return
		}
		owner, err := lookup()
		switch {
		case err != nil && isNotFound(err):
			vErr.add(field, "does not exist")
		case err != nil:
			vErr.add(field, "could not be verified")
		case owner != schoolID:
			vErr.add(field, "belongs to another school")
		}
	}
	check("class_id", input.ClassID, func() (string, error) {
		c, err := s.directory.GetClass(ctx, input.ClassID)
		return c.SchoolID, err
	})
	check("subject_id", input.SubjectID, func() (string, error) {
		sub, err := s.directory.GetSubject(ctx, input.SubjectID)
		return sub.SchoolID, err
	})
	check("teacher_id", input.TeacherID, func() (string, error) {
		t, err := s.directory.GetTeacher(ctx, input.TeacherID)
		return t.SchoolID, err
	})
	return vErr
}

func (s *ScheduleService) labels(ctx context.Context, schoolID string) (scheduler.Labels, error) {
	labels := scheduler.Labels{
		Classes:  map[string]string{},
		Subjects: map[string]string{},
		Teachers: map[string]string{},
	}
	classes, err := s.directory.ListClasses(ctx, schoolID)
	if err != nil {
		return scheduler.Labels{}, err
	}
	for _, c := range classes {
		labels.Classes[c.ID] = c.Name
	}
	subjects, err := s.directory.ListSubjects(ctx, schoolID)
	if err != nil {
		return scheduler.Labels{}, err
	}
	for _, sub := range subjects {
		labels.Subjects[sub.ID] = sub.Name
	}
	teachers, err := s.directory.ListTeachers(ctx, schoolID)
	if err != nil {
		return scheduler.Labels{}, err
	}
	for _, t := range teachers {
		labels.Teachers[t.ID] = t.Name
	}
	return labels, nil
}

func validateEventInput(input EventInput) *ValidationError {
	vErr := &ValidationError{}
	if strings.TrimSpace(input.ClassID) == "" {
		vErr.add("class_id", "class is required")
	}
	if strings.TrimSpace(input.SubjectID) == "" {
		vErr.add("subject_id", "subject is required")
	}
	if strings.TrimSpace(input.TeacherID) == "" {
		vErr.add("teacher_id", "teacher is required")
	}
	if input.Start.IsZero() {
		vErr.add("start", "start is required")
	}
	if input.End.IsZero() {
		vErr.add("end", "end is required")
	}
	if !input.Start.IsZero() && !input.End.IsZero() && !input.End.After(input.Start) {
		vErr.add("end", "end must be after start")
	}
	return vErr
}

func validateFilter(filter scheduler.Filter) *ValidationError {
	vErr := &ValidationError{}
	switch filter.Dimension {
	case scheduler.FilterNone:
	case scheduler.FilterClass, scheduler.FilterTeacher:
		if strings.TrimSpace(filter.Value) == "" {
			vErr.add(string(filter.Dimension)+"_id", "filter value is required")
		}
	default:
		vErr.add("filter", "filter must be class or teacher")
	}
	return vErr
}

func applyPatch(existing Event, patch EventPatch) EventInput {
	input := EventInput{
		ClassID:        existing.ClassID,
		SubjectID:      existing.SubjectID,
		TeacherID:      existing.TeacherID,
		Title:          existing.Title,
		Start:          existing.Start,
		End:            existing.End,
		AllDay:         existing.AllDay,
		RecurrenceRule: existing.RecurrenceRule,
	}
	if patch.ClassID != nil {
		input.ClassID = *patch.ClassID
	}
	if patch.SubjectID != nil {
		input.SubjectID = *patch.SubjectID
	}
	if patch.TeacherID != nil {
		input.TeacherID = *patch.TeacherID
	}
	if patch.Title != nil {
		input.Title = *patch.Title
	}
	if patch.Start != nil {
		input.Start = *patch.Start
	}
	if patch.End != nil {
		input.End = *patch.End
	}
	if patch.AllDay != nil {
		input.AllDay = *patch.AllDay
	}
	if patch.RecurrenceRule != nil {
		input.RecurrenceRule = *patch.RecurrenceRule
	}
	if patch.ClearRecurrence {
		input.RecurrenceRule = ""
	}
	return input
}

func sortEvents(events []Event) {
	slices.SortStableFunc(events, func(a, b Event) int {
		if c := a.Start.Compare(b.Start); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
}

func mapRepoError(err error) error {
	if err == nil {
		return nil
	}
	var cErr *ConflictError
	var vErr *ValidationError
	switch {
	case errors.As(err, &cErr), errors.As(err, &vErr), IsMalformedRule(err):
		return err
	case isNotFound(err):
		return ErrNotFound
	case errors.Is(err, persistence.ErrDuplicate):
		return ErrAlreadyExists
	case errors.Is(err, persistence.ErrForeignKeyViolation):
		return fieldError("references", "related records are missing")
	case errors.Is(err, persistence.ErrConstraintViolation):
		return fieldError("event", "violates a storage constraint")
	}
	return err
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, persistence.ErrNotFound)
}
