package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/example/school-scheduler/internal/persistence"
)

const eventColumns = `id, school_id, class_id, subject_id, teacher_id, title, start_time, end_time,
	all_day, recurrence_rule, created_at, updated_at`

// EventRepository implements persistence.EventRepository using SQLite.
type EventRepository struct {
	pool *ConnectionPool
	eventStore
}

var _ persistence.EventRepository = (*EventRepository)(nil)

// NewEventRepository creates a new SQLite event repository.
func NewEventRepository(pool *ConnectionPool) *EventRepository {
	return &EventRepository{
		pool:       pool,
		eventStore: eventStore{q: pool.DB(), now: time.Now},
	}
}

// Atomically runs fn against a store bound to an immediate transaction. Every
// read fn performs sees the state its writes will be applied to.
func (r *EventRepository) Atomically(ctx context.Context, fn func(ctx context.Context, store persistence.EventStore) error) error {
	return r.pool.WithImmediateTransaction(ctx, func(q querier) error {
		return fn(ctx, &eventStore{q: q, now: r.now})
	})
}

// eventStore holds the queries. It runs against the pool or a transaction.
type eventStore struct {
	q   querier
	now func() time.Time
}

// ListEventsForSchool returns the school's events ordered by start then id.
func (s *eventStore) ListEventsForSchool(ctx context.Context, schoolID string) ([]persistence.ScheduleEvent, error) {
	return s.list(ctx, `SELECT `+eventColumns+` FROM schedule_events WHERE school_id = ? ORDER BY start_time, id`, schoolID)
}

// ListAllEvents returns every stored event across schools.
func (s *eventStore) ListAllEvents(ctx context.Context) ([]persistence.ScheduleEvent, error) {
	return s.list(ctx, `SELECT `+eventColumns+` FROM schedule_events ORDER BY school_id, start_time, id`)
}

// GetEvent retrieves an event by ID.
func (s *eventStore) GetEvent(ctx context.Context, id string) (persistence.ScheduleEvent, error) {
	if id == "" {
		return persistence.ScheduleEvent{}, persistence.ErrNotFound
	}
	row := s.q.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM schedule_events WHERE id = ?`, id)
	event, err := scanEvent(row)
	if err != nil {
		return persistence.ScheduleEvent{}, err
	}
	return event, nil
}

// CreateEvent inserts a new event. CreatedAt and UpdatedAt are set when zero.
func (s *eventStore) CreateEvent(ctx context.Context, event persistence.ScheduleEvent) error {
	if err := validateEvent(event); err != nil {
		return err
	}
	now := s.now().UTC()
	if event.CreatedAt.IsZero() {
		event.CreatedAt = now
	}
	if event.UpdatedAt.IsZero() {
		event.UpdatedAt = now
	}

	_, err := s.q.ExecContext(ctx, `
		INSERT INTO schedule_events (`+eventColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ID,
		event.SchoolID,
		event.ClassID,
		event.SubjectID,
		event.TeacherID,
		event.Title,
		formatTime(event.Start),
		formatTime(event.End),
		event.AllDay,
		event.RecurrenceRule,
		formatTime(event.CreatedAt),
		formatTime(event.UpdatedAt),
	)
	if err != nil {
		return MapError(err)
	}
	return nil
}

// UpdateEvent replaces the mutable fields of an existing event. The owning
// school and CreatedAt never change.
func (s *eventStore) UpdateEvent(ctx context.Context, event persistence.ScheduleEvent) error {
	if err := validateEvent(event); err != nil {
		return err
	}
	if event.UpdatedAt.IsZero() {
		event.UpdatedAt = s.now().UTC()
	}

	result, err := s.q.ExecContext(ctx, `
		UPDATE schedule_events
		SET class_id = ?, subject_id = ?, teacher_id = ?, title = ?, start_time = ?, end_time = ?,
			all_day = ?, recurrence_rule = ?, updated_at = ?
		WHERE id = ? AND school_id = ?`,
		event.ClassID,
		event.SubjectID,
		event.TeacherID,
		event.Title,
		formatTime(event.Start),
		formatTime(event.End),
		event.AllDay,
		event.RecurrenceRule,
		formatTime(event.UpdatedAt),
		event.ID,
		event.SchoolID,
	)
	if err != nil {
		return MapError(err)
	}
	return requireAffected(result)
}

// DeleteEvent removes an event by ID.
func (s *eventStore) DeleteEvent(ctx context.Context, id string) error {
	if id == "" {
		return persistence.ErrNotFound
	}
	result, err := s.q.ExecContext(ctx, `DELETE FROM schedule_events WHERE id = ?`, id)
	if err != nil {
		return MapError(err)
	}
	return requireAffected(result)
}

func (s *eventStore) list(ctx context.Context, query string, args ...any) ([]persistence.ScheduleEvent, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, MapError(err)
	}
	defer rows.Close()

	var events []persistence.ScheduleEvent
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}
	return events, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (persistence.ScheduleEvent, error) {
	var (
		event                            persistence.ScheduleEvent
		start, end, createdAt, updatedAt string
	)
	err := row.Scan(
		&event.ID,
		&event.SchoolID,
		&event.ClassID,
		&event.SubjectID,
		&event.TeacherID,
		&event.Title,
		&start,
		&end,
		&event.AllDay,
		&event.RecurrenceRule,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return persistence.ScheduleEvent{}, MapError(err)
	}
	if event.Start, err = parseTime("start_time", start); err != nil {
		return persistence.ScheduleEvent{}, err
	}
	if event.End, err = parseTime("end_time", end); err != nil {
		return persistence.ScheduleEvent{}, err
	}
	if event.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return persistence.ScheduleEvent{}, err
	}
	if event.UpdatedAt, err = parseTime("updated_at", updatedAt); err != nil {
		return persistence.ScheduleEvent{}, err
	}
	return event, nil
}

func validateEvent(event persistence.ScheduleEvent) error {
	if strings.TrimSpace(event.ID) == "" || strings.TrimSpace(event.SchoolID) == "" {
		return fmt.Errorf("%w: event and school id are required", persistence.ErrConstraintViolation)
	}
	if !event.End.After(event.Start) {
		return fmt.Errorf("%w: end must be after start", persistence.ErrConstraintViolation)
	}
	return nil
}

type rowsAffecter interface {
	RowsAffected() (int64, error)
}

func requireAffected(result rowsAffecter) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return persistence.ErrNotFound
	}
	return nil
}
