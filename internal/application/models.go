package application

import (
	"time"

	"github.com/example/school-scheduler/internal/scheduler"
)

// School is a tenant. TimeZone is an IANA name; recurrences expand in it.
type School struct {
	ID        string
	Name      string
	TimeZone  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Class is a group of students sharing a timetable.
type Class struct {
	ID        string
	SchoolID  string
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Subject is a taught subject.
type Subject struct {
	ID        string
	SchoolID  string
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Teacher is a staff member assignable to events.
type Teacher struct {
	ID        string
	SchoolID  string
	Name      string
	Email     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Event is a stored single or recurring schedule event. RecurrenceRule holds
// canonical rule text or is empty for a single event.
type Event struct {
	ID             string
	SchoolID       string
	ClassID        string
	SubjectID      string
	TeacherID      string
	Title          string
	Start          time.Time
	End            time.Time
	AllDay         bool
	RecurrenceRule string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (e Event) schedulerEvent() scheduler.Event {
	return scheduler.Event{
		ID:             e.ID,
		SchoolID:       e.SchoolID,
		ClassID:        e.ClassID,
		SubjectID:      e.SubjectID,
		TeacherID:      e.TeacherID,
		Title:          e.Title,
		Start:          e.Start,
		End:            e.End,
		AllDay:         e.AllDay,
		RecurrenceRule: e.RecurrenceRule,
	}
}

func schedulerEvents(events []Event) []scheduler.Event {
	out := make([]scheduler.Event, 0, len(events))
	for _, e := range events {
		out = append(out, e.schedulerEvent())
	}
	return out
}

// EventInput captures caller provided event fields.
type EventInput struct {
	ClassID        string
	SubjectID      string
	TeacherID      string
	Title          string
	Start          time.Time
	End            time.Time
	AllDay         bool
	RecurrenceRule string
}

// CreateEventParams wraps the data required to create an event.
type CreateEventParams struct {
	SchoolID string
	Input    EventInput
}

// EventPatch lists the fields to change. Nil pointers leave a field unchanged.
// ClearRecurrence turns a recurring event into a single event.
type EventPatch struct {
	ClassID         *string
	SubjectID       *string
	TeacherID       *string
	Title           *string
	Start           *time.Time
	End             *time.Time
	AllDay          *bool
	RecurrenceRule  *string
	ClearRecurrence bool
}

// UpdateEventParams wraps the data required to update an existing event.
type UpdateEventParams struct {
	SchoolID string
	EventID  string
	Patch    EventPatch
}

// CheckConflictParams describes a dry-run conflict check. EventID is set when
// the candidate is an edit of a stored event.
type CheckConflictParams struct {
	SchoolID string
	EventID  string
	Input    EventInput
}

// ConflictCheck is the result of a dry-run conflict check.
type ConflictCheck struct {
	Conflict bool
	// Set only when Conflict is true.
	Details *ConflictError
}

// CalendarView selects the calendar window size.
type CalendarView string

const (
	// CalendarViewDay shows one local day.
	CalendarViewDay CalendarView = "day"
	// CalendarViewWeek shows the Monday-start week.
	CalendarViewWeek CalendarView = "week"
)

// CalendarParams wraps the data required to render a calendar window.
type CalendarParams struct {
	SchoolID string
	View     CalendarView
	// Date is any instant inside the requested day or week.
	Date   time.Time
	Filter scheduler.Filter
}

// UnrenderableEvent names an event whose schedule could not be displayed.
type UnrenderableEvent struct {
	EventID string
	Title   string
	Reason  string
}

// Calendar is a rendered calendar window.
type Calendar struct {
	View         CalendarView
	Start        time.Time
	End          time.Time
	Events       []scheduler.ViewEvent
	Unrenderable []UnrenderableEvent
}

// SeriesParams wraps the data required to list series records.
type SeriesParams struct {
	SchoolID string
	Filter   scheduler.Filter
}

// SeriesListing is the series view of a school's events.
type SeriesListing struct {
	TimeZone     string
	Records      []scheduler.SeriesRecord
	Unrenderable []UnrenderableEvent
}

func unrenderable(items []scheduler.Unrenderable) []UnrenderableEvent {
	if len(items) == 0 {
		return nil
	}
	out := make([]UnrenderableEvent, 0, len(items))
	for _, item := range items {
		out = append(out, UnrenderableEvent{EventID: item.EventID, Title: item.Title, Reason: item.Err.Error()})
	}
	return out
}

// CreateSchoolParams wraps the data required to register a school.
type CreateSchoolParams struct {
	Name     string
	TimeZone string
}

// CreateClassParams wraps the data required to register a class.
type CreateClassParams struct {
	SchoolID string
	Name     string
}

// CreateSubjectParams wraps the data required to register a subject.
type CreateSubjectParams struct {
	SchoolID string
	Name     string
}

// CreateTeacherParams wraps the data required to register a teacher.
type CreateTeacherParams struct {
	SchoolID string
	Name     string
	Email    string
}
