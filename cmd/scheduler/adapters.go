package main

import (
	"context"

	"github.com/example/school-scheduler/internal/application"
	"github.com/example/school-scheduler/internal/persistence"
)

type eventStoreAdapter struct {
	store persistence.EventStore
}

func (a eventStoreAdapter) ListEventsForSchool(ctx context.Context, schoolID string) ([]application.Event, error) {
	models, err := a.store.ListEventsForSchool(ctx, schoolID)
	if err != nil {
		return nil, err
	}
	return toApplicationEvents(models), nil
}

func (a eventStoreAdapter) ListAllEvents(ctx context.Context) ([]application.Event, error) {
	models, err := a.store.ListAllEvents(ctx)
	if err != nil {
		return nil, err
	}
	return toApplicationEvents(models), nil
}

func (a eventStoreAdapter) GetEvent(ctx context.Context, id string) (application.Event, error) {
	stored, err := a.store.GetEvent(ctx, id)
	if err != nil {
		return application.Event{}, err
	}
	return toApplicationEvent(stored), nil
}

func (a eventStoreAdapter) CreateEvent(ctx context.Context, event application.Event) error {
	return a.store.CreateEvent(ctx, toPersistenceEvent(event))
}

func (a eventStoreAdapter) UpdateEvent(ctx context.Context, event application.Event) error {
	return a.store.UpdateEvent(ctx, toPersistenceEvent(event))
}

func (a eventStoreAdapter) DeleteEvent(ctx context.Context, id string) error {
	return a.store.DeleteEvent(ctx, id)
}

// eventRepositoryAdapter exposes the SQLite event repository to the
// application layer, including its atomic check-then-write scope.
type eventRepositoryAdapter struct {
	eventStoreAdapter
	repo persistence.EventRepository
}

var (
	_ application.EventRepository = (*eventRepositoryAdapter)(nil)
	_ application.EventLister     = (*eventRepositoryAdapter)(nil)
)

func newEventRepositoryAdapter(repo persistence.EventRepository) *eventRepositoryAdapter {
	return &eventRepositoryAdapter{eventStoreAdapter: eventStoreAdapter{store: repo}, repo: repo}
}

func (a *eventRepositoryAdapter) Atomically(ctx context.Context, fn func(ctx context.Context, store application.EventStore) error) error {
	return a.repo.Atomically(ctx, func(ctx context.Context, store persistence.EventStore) error {
		return fn(ctx, eventStoreAdapter{store: store})
	})
}

type directoryAdapter struct {
	repo persistence.DirectoryRepository
}

var _ application.DirectoryRepository = (*directoryAdapter)(nil)

func newDirectoryAdapter(repo persistence.DirectoryRepository) *directoryAdapter {
	return &directoryAdapter{repo: repo}
}

func (a *directoryAdapter) CreateSchool(ctx context.Context, school application.School) error {
	return a.repo.CreateSchool(ctx, persistence.School(school))
}

func (a *directoryAdapter) GetSchool(ctx context.Context, id string) (application.School, error) {
	stored, err := a.repo.GetSchool(ctx, id)
	if err != nil {
		return application.School{}, err
	}
	return application.School(stored), nil
}

func (a *directoryAdapter) CreateClass(ctx context.Context, class application.Class) error {
	return a.repo.CreateClass(ctx, persistence.Class(class))
}

func (a *directoryAdapter) GetClass(ctx context.Context, id string) (application.Class, error) {
	stored, err := a.repo.GetClass(ctx, id)
	if err != nil {
		return application.Class{}, err
	}
	return application.Class(stored), nil
}

func (a *directoryAdapter) ListClasses(ctx context.Context, schoolID string) ([]application.Class, error) {
	models, err := a.repo.ListClasses(ctx, schoolID)
	if err != nil {
		return nil, err
	}
	return convertAll(models, func(m persistence.Class) application.Class { return application.Class(m) }), nil
}

func (a *directoryAdapter) CreateSubject(ctx context.Context, subject application.Subject) error {
	return a.repo.CreateSubject(ctx, persistence.Subject(subject))
}

func (a *directoryAdapter) GetSubject(ctx context.Context, id string) (application.Subject, error) {
	stored, err := a.repo.GetSubject(ctx, id)
	if err != nil {
		return application.Subject{}, err
	}
	return application.Subject(stored), nil
}

func (a *directoryAdapter) ListSubjects(ctx context.Context, schoolID string) ([]application.Subject, error) {
	models, err := a.repo.ListSubjects(ctx, schoolID)
	if err != nil {
		return nil, err
	}
	return convertAll(models, func(m persistence.Subject) application.Subject { return application.Subject(m) }), nil
}

func (a *directoryAdapter) CreateTeacher(ctx context.Context, teacher application.Teacher) error {
	return a.repo.CreateTeacher(ctx, persistence.Teacher(teacher))
}

func (a *directoryAdapter) GetTeacher(ctx context.Context, id string) (application.Teacher, error) {
	stored, err := a.repo.GetTeacher(ctx, id)
	if err != nil {
		return application.Teacher{}, err
	}
	return application.Teacher(stored), nil
}

func (a *directoryAdapter) ListTeachers(ctx context.Context, schoolID string) ([]application.Teacher, error) {
	models, err := a.repo.ListTeachers(ctx, schoolID)
	if err != nil {
		return nil, err
	}
	return convertAll(models, func(m persistence.Teacher) application.Teacher { return application.Teacher(m) }), nil
}

func toApplicationEvent(model persistence.ScheduleEvent) application.Event {
	return application.Event(model)
}

func toApplicationEvents(models []persistence.ScheduleEvent) []application.Event {
	return convertAll(models, toApplicationEvent)
}

func toPersistenceEvent(event application.Event) persistence.ScheduleEvent {
	return persistence.ScheduleEvent(event)
}

func convertAll[S, D any](in []S, convert func(S) D) []D {
	if len(in) == 0 {
		return nil
	}
	out := make([]D, 0, len(in))
	for _, item := range in {
		out = append(out, convert(item))
	}
	return out
}
