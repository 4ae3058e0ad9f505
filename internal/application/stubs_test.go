package application

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// memEvents is an in-memory EventRepository.
type memEvents struct {
	tx     sync.Mutex
	mu     sync.Mutex
	events map[string]Event
	// listErr is returned from every list call when set.
	listErr error
}

func newMemEvents(events ...Event) *memEvents {
	m := &memEvents{events: make(map[string]Event)}
	for _, e := range events {
		m.events[e.ID] = e
	}
	return m
}

func (m *memEvents) ListEventsForSchool(ctx context.Context, schoolID string) ([]Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []Event
	for _, e := range m.events {
		if e.SchoolID == schoolID {
			out = append(out, e)
		}
	}
	sortEvents(out)
	return out, nil
}

func (m *memEvents) ListAllEvents(ctx context.Context) ([]Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := make([]Event, 0, len(m.events))
	for _, e := range m.events {
		out = append(out, e)
	}
	sortEvents(out)
	return out, nil
}

func (m *memEvents) GetEvent(ctx context.Context, id string) (Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.events[id]
	if !ok {
		return Event{}, ErrNotFound
	}
	return e, nil
}

func (m *memEvents) CreateEvent(ctx context.Context, event Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.events[event.ID]; ok {
		return fmt.Errorf("event %s: %w", event.ID, ErrAlreadyExists)
	}
	m.events[event.ID] = event
	return nil
}

func (m *memEvents) UpdateEvent(ctx context.Context, event Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.events[event.ID]; !ok {
		return ErrNotFound
	}
	m.events[event.ID] = event
	return nil
}

func (m *memEvents) DeleteEvent(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.events[id]; !ok {
		return ErrNotFound
	}
	delete(m.events, id)
	return nil
}

func (m *memEvents) Atomically(ctx context.Context, fn func(ctx context.Context, store EventStore) error) error {
	m.tx.Lock()
	defer m.tx.Unlock()

	m.mu.Lock()
	snapshot := make(map[string]Event, len(m.events))
	for id, e := range m.events {
		snapshot[id] = e
	}
	m.mu.Unlock()

	if err := fn(ctx, m); err != nil {
		m.mu.Lock()
		m.events = snapshot
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *memEvents) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

// memDirectory is an in-memory DirectoryRepository.
type memDirectory struct {
	mu       sync.Mutex
	schools  map[string]School
	classes  map[string]Class
	subjects map[string]Subject
	teachers map[string]Teacher
}

func newMemDirectory() *memDirectory {
	return &memDirectory{
		schools:  make(map[string]School),
		classes:  make(map[string]Class),
		subjects: make(map[string]Subject),
		teachers: make(map[string]Teacher),
	}
}

func (d *memDirectory) CreateSchool(ctx context.Context, school School) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.schools[school.ID] = school
	return nil
}

func (d *memDirectory) CreateClass(ctx context.Context, class Class) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, c := range d.classes {
		if c.SchoolID == class.SchoolID && c.Name == class.Name {
			return ErrAlreadyExists
		}
	}
	d.classes[class.ID] = class
	return nil
}

func (d *memDirectory) CreateSubject(ctx context.Context, subject Subject) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.subjects[subject.ID] = subject
	return nil
}

func (d *memDirectory) CreateTeacher(ctx context.Context, teacher Teacher) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.teachers[teacher.ID] = teacher
	return nil
}

func (d *memDirectory) GetSchool(ctx context.Context, id string) (School, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.schools[id]
	if !ok {
		return School{}, ErrNotFound
	}
	return s, nil
}

func (d *memDirectory) GetClass(ctx context.Context, id string) (Class, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.classes[id]
	if !ok {
		return Class{}, ErrNotFound
	}
	return c, nil
}

func (d *memDirectory) GetSubject(ctx context.Context, id string) (Subject, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.subjects[id]
	if !ok {
		return Subject{}, ErrNotFound
	}
	return s, nil
}

func (d *memDirectory) GetTeacher(ctx context.Context, id string) (Teacher, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	t, ok := d.teachers[id]
	if !ok {
		return Teacher{}, ErrNotFound
	}
	return t, nil
}

func (d *memDirectory) ListClasses(ctx context.Context, schoolID string) ([]Class, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []Class
	for _, c := range d.classes {
		if c.SchoolID == schoolID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (d *memDirectory) ListSubjects(ctx context.Context, schoolID string) ([]Subject, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []Subject
	for _, s := range d.subjects {
		if s.SchoolID == schoolID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (d *memDirectory) ListTeachers(ctx context.Context, schoolID string) ([]Teacher, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []Teacher
	for _, t := range d.teachers {
		if t.SchoolID == schoolID {
			out = append(out, t)
		}
	}
	return out, nil
}

// seededDirectory returns a directory with two Tokyo schools. School "s1" has
// classes C1, C2, subjects MATH, ENG and teachers T1, T2; school "s2" has
// class X1 and teacher X9.
func seededDirectory() *memDirectory {
	d := newMemDirectory()
	d.schools["s1"] = School{ID: "s1", Name: "North", TimeZone: "Asia/Tokyo"}
	d.schools["s2"] = School{ID: "s2", Name: "South", TimeZone: "Asia/Tokyo"}
	d.classes["C1"] = Class{ID: "C1", SchoolID: "s1", Name: "1-A"}
	d.classes["C2"] = Class{ID: "C2", SchoolID: "s1", Name: "1-B"}
	d.classes["X1"] = Class{ID: "X1", SchoolID: "s2", Name: "2-A"}
	d.subjects["MATH"] = Subject{ID: "MATH", SchoolID: "s1", Name: "Mathematics"}
	d.subjects["ENG"] = Subject{ID: "ENG", SchoolID: "s1", Name: "English"}
	d.teachers["T1"] = Teacher{ID: "T1", SchoolID: "s1", Name: "Sato"}
	d.teachers["T2"] = Teacher{ID: "T2", SchoolID: "s1", Name: "Suzuki"}
	d.teachers["X9"] = Teacher{ID: "X9", SchoolID: "s2", Name: "Tanaka"}
	return d
}

// sequentialIDs returns a generator yielding prefix-1, prefix-2, ...
func sequentialIDs(prefix string) func() string {
	var (
		mu sync.Mutex
		n  int
	)
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
