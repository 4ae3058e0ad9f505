package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/example/school-scheduler/internal/persistence"
)

// DirectoryRepository implements persistence.DirectoryRepository using SQLite.
type DirectoryRepository struct {
	pool *ConnectionPool
	now  func() time.Time
}

var _ persistence.DirectoryRepository = (*DirectoryRepository)(nil)

// NewDirectoryRepository creates a new SQLite directory repository.
func NewDirectoryRepository(pool *ConnectionPool) *DirectoryRepository {
	return &DirectoryRepository{pool: pool, now: time.Now}
}

// CreateSchool inserts a new school. An empty time zone is stored as UTC.
func (r *DirectoryRepository) CreateSchool(ctx context.Context, school persistence.School) error {
	if strings.TrimSpace(school.ID) == "" || strings.TrimSpace(school.Name) == "" {
		return fmt.Errorf("%w: school id and name are required", persistence.ErrConstraintViolation)
	}
	if school.TimeZone == "" {
		school.TimeZone = "UTC"
	}
	if _, err := time.LoadLocation(school.TimeZone); err != nil {
		return fmt.Errorf("%w: unknown time zone %q", persistence.ErrConstraintViolation, school.TimeZone)
	}
	created, updated := r.stamps(school.CreatedAt, school.UpdatedAt)

	_, err := r.pool.DB().ExecContext(ctx, `
		INSERT INTO schools (id, name, time_zone, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		school.ID, school.Name, school.TimeZone, created, updated)
	return MapError(err)
}

// GetSchool retrieves a school by ID.
func (r *DirectoryRepository) GetSchool(ctx context.Context, id string) (persistence.School, error) {
	var (
		school           persistence.School
		created, updated string
	)
	err := r.pool.DB().QueryRowContext(ctx,
		`SELECT id, name, time_zone, created_at, updated_at FROM schools WHERE id = ?`, id,
	).Scan(&school.ID, &school.Name, &school.TimeZone, &created, &updated)
	if err != nil {
		return persistence.School{}, MapError(err)
	}
	if school.CreatedAt, school.UpdatedAt, err = parseStamps(created, updated); err != nil {
		return persistence.School{}, err
	}
	return school, nil
}

// CreateClass inserts a new class.
func (r *DirectoryRepository) CreateClass(ctx context.Context, class persistence.Class) error {
	return r.createNamed(ctx, "classes", named{class.ID, class.SchoolID, class.Name, class.CreatedAt, class.UpdatedAt})
}

// GetClass retrieves a class by ID.
func (r *DirectoryRepository) GetClass(ctx context.Context, id string) (persistence.Class, error) {
	n, err := r.getNamed(ctx, "classes", id)
	if err != nil {
		return persistence.Class{}, err
	}
	return persistence.Class(n), nil
}

// ListClasses returns the school's classes ordered by name then ID.
func (r *DirectoryRepository) ListClasses(ctx context.Context, schoolID string) ([]persistence.Class, error) {
	rows, err := r.listNamed(ctx, "classes", schoolID)
	if err != nil {
		return nil, err
	}
	classes := make([]persistence.Class, 0, len(rows))
	for _, n := range rows {
		classes = append(classes, persistence.Class(n))
	}
	return classes, nil
}

// CreateSubject inserts a new subject.
func (r *DirectoryRepository) CreateSubject(ctx context.Context, subject persistence.Subject) error {
	return r.createNamed(ctx, "subjects", named{subject.ID, subject.SchoolID, subject.Name, subject.CreatedAt, subject.UpdatedAt})
}

// GetSubject retrieves a subject by ID.
func (r *DirectoryRepository) GetSubject(ctx context.Context, id string) (persistence.Subject, error) {
	n, err := r.getNamed(ctx, "subjects", id)
	if err != nil {
		return persistence.Subject{}, err
	}
	return persistence.Subject(n), nil
}

// ListSubjects returns the school's subjects ordered by name then ID.
func (r *DirectoryRepository) ListSubjects(ctx context.Context, schoolID string) ([]persistence.Subject, error) {
	rows, err := r.listNamed(ctx, "subjects", schoolID)
	if err != nil {
		return nil, err
	}
	subjects := make([]persistence.Subject, 0, len(rows))
	for _, n := range rows {
		subjects = append(subjects, persistence.Subject(n))
	}
	return subjects, nil
}

// CreateTeacher inserts a new teacher. Emails are stored lower-cased.
func (r *DirectoryRepository) CreateTeacher(ctx context.Context, teacher persistence.Teacher) error {
	if strings.TrimSpace(teacher.ID) == "" || strings.TrimSpace(teacher.SchoolID) == "" || strings.TrimSpace(teacher.Name) == "" {
		return fmt.Errorf("%w: teacher id, school and name are required", persistence.ErrConstraintViolation)
	}
	created, updated := r.stamps(teacher.CreatedAt, teacher.UpdatedAt)
	_, err := r.pool.DB().ExecContext(ctx, `
		INSERT INTO teachers (id, school_id, name, email, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		teacher.ID, teacher.SchoolID, teacher.Name, normalizeEmail(teacher.Email), created, updated)
	return MapError(err)
}

// GetTeacher retrieves a teacher by ID.
func (r *DirectoryRepository) GetTeacher(ctx context.Context, id string) (persistence.Teacher, error) {
	row := r.pool.DB().QueryRowContext(ctx,
		`SELECT id, school_id, name, email, created_at, updated_at FROM teachers WHERE id = ?`, id)
	return scanTeacher(row)
}

// ListTeachers returns the school's teachers ordered by name then ID.
func (r *DirectoryRepository) ListTeachers(ctx context.Context, schoolID string) ([]persistence.Teacher, error) {
	rows, err := r.pool.DB().QueryContext(ctx, `
		SELECT id, school_id, name, email, created_at, updated_at
		FROM teachers WHERE school_id = ? ORDER BY name, id`, schoolID)
	if err != nil {
		return nil, MapError(err)
	}
	defer rows.Close()

	var teachers []persistence.Teacher
	for rows.Next() {
		teacher, err := scanTeacher(rows)
		if err != nil {
			return nil, err
		}
		teachers = append(teachers, teacher)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}
	return teachers, nil
}

// named mirrors the shared layout of persistence.Class and persistence.Subject.
type named struct {
	ID        string
	SchoolID  string
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (r *DirectoryRepository) createNamed(ctx context.Context, table string, n named) error {
	if strings.TrimSpace(n.ID) == "" || strings.TrimSpace(n.SchoolID) == "" || strings.TrimSpace(n.Name) == "" {
		return fmt.Errorf("%w: id, school and name are required", persistence.ErrConstraintViolation)
	}
	created, updated := r.stamps(n.CreatedAt, n.UpdatedAt)
	_, err := r.pool.DB().ExecContext(ctx,
		`INSERT INTO `+table+` (id, school_id, name, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		n.ID, n.SchoolID, n.Name, created, updated)
	return MapError(err)
}

func (r *DirectoryRepository) getNamed(ctx context.Context, table, id string) (named, error) {
	row := r.pool.DB().QueryRowContext(ctx,
		`SELECT id, school_id, name, created_at, updated_at FROM `+table+` WHERE id = ?`, id)
	return scanNamed(row)
}

func (r *DirectoryRepository) listNamed(ctx context.Context, table, schoolID string) ([]named, error) {
	rows, err := r.pool.DB().QueryContext(ctx,
		`SELECT id, school_id, name, created_at, updated_at FROM `+table+` WHERE school_id = ? ORDER BY name, id`, schoolID)
	if err != nil {
		return nil, MapError(err)
	}
	defer rows.Close()

	var out []named
	for rows.Next() {
		n, err := scanNamed(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}
	return out, nil
}

func scanNamed(row rowScanner) (named, error) {
	var (
		n                named
		created, updated string
	)
	if err := row.Scan(&n.ID, &n.SchoolID, &n.Name, &created, &updated); err != nil {
		return named{}, MapError(err)
	}
	var err error
	if n.CreatedAt, n.UpdatedAt, err = parseStamps(created, updated); err != nil {
		return named{}, err
	}
	return n, nil
}

func scanTeacher(row rowScanner) (persistence.Teacher, error) {
	var (
		teacher          persistence.Teacher
		created, updated string
	)
	if err := row.Scan(&teacher.ID, &teacher.SchoolID, &teacher.Name, &teacher.Email, &created, &updated); err != nil {
		return persistence.Teacher{}, MapError(err)
	}
	var err error
	if teacher.CreatedAt, teacher.UpdatedAt, err = parseStamps(created, updated); err != nil {
		return persistence.Teacher{}, err
	}
	return teacher, nil
}

func (r *DirectoryRepository) stamps(created, updated time.Time) (string, string) {
	now := r.now()
	if created.IsZero() {
		created = now
	}
	if updated.IsZero() {
		updated = created
	}
	return formatTime(created), formatTime(updated)
}

func parseStamps(created, updated string) (time.Time, time.Time, error) {
	c, err := parseTime("created_at", created)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	u, err := parseTime("updated_at", updated)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return c, u, nil
}

// normalizeEmail trims whitespace and lower-cases the address.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
