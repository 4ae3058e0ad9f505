// Package testfixtures builds deterministic schools and events for tests
// that run against real storage.
package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/school-scheduler/internal/persistence"
)

var (
	schoolCounter uint64
	eventCounter  uint64
)

// referenceTime is the Monday a fixture term starts on.
var referenceTime = time.Date(2024, time.April, 1, 0, 0, 0, 0, time.UTC)

// ReferenceTime returns the baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// SchoolFixture is a school with one class, subject and teacher.
type SchoolFixture struct {
	ID        string
	Name      string
	TimeZone  string
	ClassID   string
	SubjectID string
	TeacherID string
}

// SchoolOption configures the generated school fixture.
type SchoolOption func(*SchoolFixture)

// NewSchoolFixture returns a school whose reference IDs share a numeric
// suffix, for example school-001 and class-001.
func NewSchoolFixture(opts ...SchoolOption) SchoolFixture {
	idx := atomic.AddUint64(&schoolCounter, 1)
	fixture := SchoolFixture{
		ID:        fmt.Sprintf("school-%03d", idx),
		Name:      fmt.Sprintf("School %03d", idx),
		TimeZone:  "UTC",
		ClassID:   fmt.Sprintf("class-%03d", idx),
		SubjectID: fmt.Sprintf("subject-%03d", idx),
		TeacherID: fmt.Sprintf("teacher-%03d", idx),
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithSchoolTimeZone sets the IANA zone recurrences expand in.
func WithSchoolTimeZone(zone string) SchoolOption {
	return func(f *SchoolFixture) {
		f.TimeZone = zone
	}
}

// Records returns the rows needed to store the school and its references.
func (f SchoolFixture) Records() (persistence.School, persistence.Class, persistence.Subject, persistence.Teacher) {
	return persistence.School{ID: f.ID, Name: f.Name, TimeZone: f.TimeZone, CreatedAt: referenceTime, UpdatedAt: referenceTime},
		persistence.Class{ID: f.ClassID, SchoolID: f.ID, Name: "1-A", CreatedAt: referenceTime, UpdatedAt: referenceTime},
		persistence.Subject{ID: f.SubjectID, SchoolID: f.ID, Name: "Mathematics", CreatedAt: referenceTime, UpdatedAt: referenceTime},
		persistence.Teacher{ID: f.TeacherID, SchoolID: f.ID, Name: "Sato", Email: f.TeacherID + "@example.com", CreatedAt: referenceTime, UpdatedAt: referenceTime}
}

// EventFixture is a lesson owned by a SchoolFixture.
type EventFixture struct {
	ID             string
	School         SchoolFixture
	Title          string
	Start          time.Time
	End            time.Time
	AllDay         bool
	RecurrenceRule string
}

// EventOption configures the generated event fixture.
type EventOption func(*EventFixture)

// NewEventFixture returns a one hour single lesson for school starting at
// the reference time.
func NewEventFixture(school SchoolFixture, opts ...EventOption) EventFixture {
	idx := atomic.AddUint64(&eventCounter, 1)
	fixture := EventFixture{
		ID:     fmt.Sprintf("event-%03d", idx),
		School: school,
		Title:  fmt.Sprintf("Lesson %03d", idx),
		Start:  referenceTime,
		End:    referenceTime.Add(time.Hour),
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithEventID overrides the generated ID.
func WithEventID(id string) EventOption {
	return func(f *EventFixture) {
		f.ID = id
	}
}

// WithEventWindow sets the anchor occurrence.
func WithEventWindow(start, end time.Time) EventOption {
	return func(f *EventFixture) {
		f.Start = start
		f.End = end
	}
}

// WithAllDay marks the event as covering whole dates.
func WithAllDay() EventOption {
	return func(f *EventFixture) {
		f.AllDay = true
	}
}

// WithRecurrence stores rule verbatim, whether or not it parses.
func WithRecurrence(rule string) EventOption {
	return func(f *EventFixture) {
		f.RecurrenceRule = rule
	}
}

// Persistence returns the stored form of the event.
func (f EventFixture) Persistence() persistence.ScheduleEvent {
	return persistence.ScheduleEvent{
		ID:             f.ID,
		SchoolID:       f.School.ID,
		ClassID:        f.School.ClassID,
		SubjectID:      f.School.SubjectID,
		TeacherID:      f.School.TeacherID,
		Title:          f.Title,
		Start:          f.Start,
		End:            f.End,
		AllDay:         f.AllDay,
		RecurrenceRule: f.RecurrenceRule,
		CreatedAt:      referenceTime,
		UpdatedAt:      referenceTime,
	}
}
