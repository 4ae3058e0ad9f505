package persistence

import "time"

// School is the tenant that owns classes, subjects, teachers and events.
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

// Subject is a taught subject such as Mathematics.
type Subject struct {
	ID        string
	SchoolID  string
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Teacher is a staff member who can be assigned to events.
type Teacher struct {
	ID        string
	SchoolID  string
	Name      string
	Email     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ScheduleEvent is the stored anchor of a single or recurring event. The
// recurrence rule is kept as text; occurrences are never stored.
type ScheduleEvent struct {
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
