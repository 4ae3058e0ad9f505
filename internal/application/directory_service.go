package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/example/school-scheduler/internal/persistence"
)

// DirectoryRepository captures the persistence operations needed to maintain
// schools and their classes, subjects and teachers.
type DirectoryRepository interface {
	Directory
	CreateSchool(ctx context.Context, school School) error
	CreateClass(ctx context.Context, class Class) error
	CreateSubject(ctx context.Context, subject Subject) error
	CreateTeacher(ctx context.Context, teacher Teacher) error
}

// DirectoryService registers and lists the entities events reference.
type DirectoryService struct {
	repo        DirectoryRepository
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewDirectoryService constructs a directory service.
func NewDirectoryService(repo DirectoryRepository, idGenerator func() string, now func() time.Time) *DirectoryService {
	return NewDirectoryServiceWithLogger(repo, idGenerator, now, nil)
}

// NewDirectoryServiceWithLogger constructs a directory service with a specified logger.
func NewDirectoryServiceWithLogger(repo DirectoryRepository, idGenerator func() string, now func() time.Time, logger *slog.Logger) *DirectoryService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &DirectoryService{repo: repo, idGenerator: idGenerator, now: now, logger: defaultLogger(logger)}
}

func (s *DirectoryService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "DirectoryService", operation, attrs...)
}

func (s *DirectoryService) ready() error {
	if s == nil {
		return fmt.Errorf("DirectoryService is nil")
	}
	if s.repo == nil {
		return fmt.Errorf("directory repository not configured")
	}
	return nil
}

// CreateSchool registers a tenant. An empty time zone defaults to UTC.
func (s *DirectoryService) CreateSchool(ctx context.Context, params CreateSchoolParams) (school School, err error) {
	if err = s.ready(); err != nil {
		return
	}
	logger := s.loggerWith(ctx, "CreateSchool")
	defer func() { logOutcome(ctx, logger, err, "failed to create school", "school created", "school_id", school.ID) }()

	vErr := &ValidationError{}
	name := strings.TrimSpace(params.Name)
	if name == "" {
		vErr.add("name", "name is required")
	}
	zone := strings.TrimSpace(params.TimeZone)
	if zone == "" {
		zone = "UTC"
	}
	if _, lErr := time.LoadLocation(zone); lErr != nil {
		vErr.add("time_zone", "unknown time zone")
	}
	if vErr.HasErrors() {
		return School{}, vErr
	}

	school = School{ID: s.idGenerator(), Name: name, TimeZone: zone, CreatedAt: s.now()}
	school.UpdatedAt = school.CreatedAt
	if err = s.repo.CreateSchool(ctx, school); err != nil {
		return School{}, mapDirectoryRepoError(err)
	}
	return school, nil
}

// GetSchool returns a school by ID.
func (s *DirectoryService) GetSchool(ctx context.Context, id string) (School, error) {
	if err := s.ready(); err != nil {
		return School{}, err
	}
	school, err := s.repo.GetSchool(ctx, id)
	if err != nil {
		return School{}, mapDirectoryRepoError(err)
	}
	return school, nil
}

// CreateClass registers a class in a school.
func (s *DirectoryService) CreateClass(ctx context.Context, params CreateClassParams) (class Class, err error) {
	if err = s.ready(); err != nil {
		return
	}
	logger := s.loggerWith(ctx, "CreateClass", "school_id", params.SchoolID)
	defer func() { logOutcome(ctx, logger, err, "failed to create class", "class created", "class_id", class.ID) }()

	name, err := s.requireNamed(ctx, params.SchoolID, params.Name)
	if err != nil {
		return Class{}, err
	}
	class = Class{ID: s.idGenerator(), SchoolID: params.SchoolID, Name: name, CreatedAt: s.now()}
	class.UpdatedAt = class.CreatedAt
	if err = s.repo.CreateClass(ctx, class); err != nil {
		return Class{}, mapDirectoryRepoError(err)
	}
	return class, nil
}

// CreateSubject registers a subject in a school.
func (s *DirectoryService) CreateSubject(ctx context.Context, params CreateSubjectParams) (subject Subject, err error) {
	if err = s.ready(); err != nil {
		return
	}
	logger := s.loggerWith(ctx, "CreateSubject", "school_id", params.SchoolID)
	defer func() { logOutcome(ctx, logger, err, "failed to create subject", "subject created", "subject_id", subject.ID) }()

	name, err := s.requireNamed(ctx, params.SchoolID, params.Name)
	if err != nil {
		return Subject{}, err
	}
	subject = Subject{ID: s.idGenerator(), SchoolID: params.SchoolID, Name: name, CreatedAt: s.now()}
	subject.UpdatedAt = subject.CreatedAt
	if err = s.repo.CreateSubject(ctx, subject); err != nil {
		return Subject{}, mapDirectoryRepoError(err)
	}
	return subject, nil
}

// CreateTeacher registers a teacher in a school.
func (s *DirectoryService) CreateTeacher(ctx context.Context, params CreateTeacherParams) (teacher Teacher, err error) {
	if err = s.ready(); err != nil {
		return
	}
	logger := s.loggerWith(ctx, "CreateTeacher", "school_id", params.SchoolID)
	defer func() { logOutcome(ctx, logger, err, "failed to create teacher", "teacher created", "teacher_id", teacher.ID) }()

	name, err := s.requireNamed(ctx, params.SchoolID, params.Name)
	if err != nil {
		return Teacher{}, err
	}
	email := strings.TrimSpace(params.Email)
	if email != "" {
		if _, pErr := mail.ParseAddress(email); pErr != nil {
			return Teacher{}, fieldError("email", "must be a valid email address")
		}
	}
	teacher = Teacher{ID: s.idGenerator(), SchoolID: params.SchoolID, Name: name, Email: email, CreatedAt: s.now()}
	teacher.UpdatedAt = teacher.CreatedAt
	if err = s.repo.CreateTeacher(ctx, teacher); err != nil {
		return Teacher{}, mapDirectoryRepoError(err)
	}
	return teacher, nil
}

// ListClasses returns the school's classes.
func (s *DirectoryService) ListClasses(ctx context.Context, schoolID string) ([]Class, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	classes, err := s.repo.ListClasses(ctx, schoolID)
	return classes, mapDirectoryRepoError(err)
}

// ListSubjects returns the school's subjects.
func (s *DirectoryService) ListSubjects(ctx context.Context, schoolID string) ([]Subject, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	subjects, err := s.repo.ListSubjects(ctx, schoolID)
	return subjects, mapDirectoryRepoError(err)
}

// ListTeachers returns the school's teachers.
func (s *DirectoryService) ListTeachers(ctx context.Context, schoolID string) ([]Teacher, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	teachers, err := s.repo.ListTeachers(ctx, schoolID)
	return teachers, mapDirectoryRepoError(err)
}

// requireNamed validates a name and that the owning school exists.
func (s *DirectoryService) requireNamed(ctx context.Context, schoolID, name string) (string, error) {
	vErr := &ValidationError{}
	name = strings.TrimSpace(name)
	if name == "" {
		vErr.add("name", "name is required")
	}
	if strings.TrimSpace(schoolID) == "" {
		vErr.add("school_id", "school is required")
	} else if _, err := s.repo.GetSchool(ctx, schoolID); err != nil {
		if !isNotFound(err) {
			return "", err
		}
		vErr.add("school_id", "school does not exist")
	}
	if vErr.HasErrors() {
		return "", vErr
	}
	return name, nil
}

func mapDirectoryRepoError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case isNotFound(err):
		return ErrNotFound
	case errors.Is(err, persistence.ErrDuplicate):
		return ErrAlreadyExists
	case errors.Is(err, persistence.ErrForeignKeyViolation):
		return fieldError("school_id", "school does not exist")
	case errors.Is(err, persistence.ErrConstraintViolation):
		return fieldError("name", "violates a storage constraint")
	}
	return err
}
