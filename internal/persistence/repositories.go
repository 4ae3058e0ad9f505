package persistence

import "context"

// EventStore reads and writes schedule events.
type EventStore interface {
	ListEventsForSchool(ctx context.Context, schoolID string) ([]ScheduleEvent, error)
	ListAllEvents(ctx context.Context) ([]ScheduleEvent, error)
	GetEvent(ctx context.Context, id string) (ScheduleEvent, error)
	CreateEvent(ctx context.Context, event ScheduleEvent) error
	UpdateEvent(ctx context.Context, event ScheduleEvent) error
	DeleteEvent(ctx context.Context, id string) error
}

// EventRepository is an EventStore that can run a read-check-write sequence
// atomically. Writes from other callers cannot interleave with fn.
type EventRepository interface {
	EventStore
	Atomically(ctx context.Context, fn func(ctx context.Context, store EventStore) error) error
}

// DirectoryRepository resolves the reference entities events point at.
type DirectoryRepository interface {
	CreateSchool(ctx context.Context, school School) error
	GetSchool(ctx context.Context, id string) (School, error)

	CreateClass(ctx context.Context, class Class) error
	GetClass(ctx context.Context, id string) (Class, error)
	ListClasses(ctx context.Context, schoolID string) ([]Class, error)

	CreateSubject(ctx context.Context, subject Subject) error
	GetSubject(ctx context.Context, id string) (Subject, error)
	ListSubjects(ctx context.Context, schoolID string) ([]Subject, error)

	CreateTeacher(ctx context.Context, teacher Teacher) error
	GetTeacher(ctx context.Context, id string) (Teacher, error)
	ListTeachers(ctx context.Context, schoolID string) ([]Teacher, error)
}
