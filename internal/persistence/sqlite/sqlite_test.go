package sqlite

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/example/school-scheduler/internal/persistence"
	"github.com/example/school-scheduler/internal/persistence/sqlite/migration"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()

	path := filepath.Join(t.TempDir(), "scheduler.db")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	storage, err := Open(context.Background(), migration.TempFileTestSQLiteConfig(path), logger)
	if err != nil {
		t.Fatalf("failed to open storage: %v", err)
	}
	t.Cleanup(func() {
		_ = storage.Close()
	})
	return storage
}

// seedSchool creates a school with one class, subject and teacher, all
// suffixed with suffix.
func seedSchool(t *testing.T, storage *Storage, suffix string) {
	t.Helper()

	ctx := context.Background()
	dir := storage.Directory
	if err := dir.CreateSchool(ctx, persistence.School{ID: "school-" + suffix, Name: "School " + suffix, TimeZone: "Asia/Tokyo"}); err != nil {
		t.Fatalf("CreateSchool failed: %v", err)
	}
	if err := dir.CreateClass(ctx, persistence.Class{ID: "class-" + suffix, SchoolID: "school-" + suffix, Name: "1-A"}); err != nil {
		t.Fatalf("CreateClass failed: %v", err)
	}
	if err := dir.CreateSubject(ctx, persistence.Subject{ID: "subject-" + suffix, SchoolID: "school-" + suffix, Name: "Math"}); err != nil {
		t.Fatalf("CreateSubject failed: %v", err)
	}
	if err := dir.CreateTeacher(ctx, persistence.Teacher{ID: "teacher-" + suffix, SchoolID: "school-" + suffix, Name: "Sato", Email: " Sato@Example.com "}); err != nil {
		t.Fatalf("CreateTeacher failed: %v", err)
	}
}

func testEvent(id, suffix string, start time.Time) persistence.ScheduleEvent {
	return persistence.ScheduleEvent{
		ID:        id,
		SchoolID:  "school-" + suffix,
		ClassID:   "class-" + suffix,
		SubjectID: "subject-" + suffix,
		TeacherID: "teacher-" + suffix,
		Title:     "Algebra",
		Start:     start,
		End:       start.Add(time.Hour),
	}
}

func TestStorage_OpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scheduler.db")
	config := migration.TempFileTestSQLiteConfig(path)
	ctx := context.Background()

	first, err := Open(ctx, config, nil)
	if err != nil {
		t.Fatalf("first Open failed: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	second, err := Open(ctx, config, nil)
	if err != nil {
		t.Fatalf("second Open failed: %v", err)
	}
	defer second.Close()
	if err := second.Ping(ctx); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}
}

func TestMapError(t *testing.T) {
	storage := newTestStorage(t)
	seedSchool(t, storage, "a")
	ctx := context.Background()

	err := storage.Directory.CreateSchool(ctx, persistence.School{ID: "school-a", Name: "again"})
	if !errors.Is(err, persistence.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	err = storage.Directory.CreateClass(ctx, persistence.Class{ID: "class-x", SchoolID: "missing", Name: "2-B"})
	if !errors.Is(err, persistence.ErrForeignKeyViolation) {
		t.Fatalf("expected ErrForeignKeyViolation, got %v", err)
	}

	if got := MapError(nil); got != nil {
		t.Fatalf("expected nil, got %v", got)
	}
}
