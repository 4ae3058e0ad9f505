package testfixtures

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/example/school-scheduler/internal/persistence/sqlite"
	"github.com/example/school-scheduler/internal/persistence/sqlite/migration"
)

// NewStorage opens a migrated SQLite database in a temporary directory. It is
// closed when the test ends.
func NewStorage(tb testing.TB) *sqlite.Storage {
	tb.Helper()

	path := filepath.Join(tb.TempDir(), "scheduler.db")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	storage, err := sqlite.Open(context.Background(), migration.TempFileTestSQLiteConfig(path), logger)
	if err != nil {
		tb.Fatalf("failed to open storage: %v", err)
	}
	tb.Cleanup(func() {
		_ = storage.Close()
	})
	return storage
}

// Seed stores the school, its references and events.
func Seed(tb testing.TB, storage *sqlite.Storage, school SchoolFixture, events ...EventFixture) {
	tb.Helper()

	ctx := context.Background()
	s, class, subject, teacher := school.Records()
	dir := storage.Directory
	if err := dir.CreateSchool(ctx, s); err != nil {
		tb.Fatalf("CreateSchool failed: %v", err)
	}
	if err := dir.CreateClass(ctx, class); err != nil {
		tb.Fatalf("CreateClass failed: %v", err)
	}
	if err := dir.CreateSubject(ctx, subject); err != nil {
		tb.Fatalf("CreateSubject failed: %v", err)
	}
	if err := dir.CreateTeacher(ctx, teacher); err != nil {
		tb.Fatalf("CreateTeacher failed: %v", err)
	}
	for _, event := range events {
		if err := storage.Events.CreateEvent(ctx, event.Persistence()); err != nil {
			tb.Fatalf("CreateEvent %s failed: %v", event.ID, err)
		}
	}
}
