package migration

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"log/slog"
)

// Manager brings a database up to the latest schema version.
type Manager struct {
	fsys     fs.FS
	dir      string
	executor *Executor
	logger   *slog.Logger
}

// NewManager creates a manager that reads migrations from dir within fsys.
func NewManager(db *sql.DB, fsys fs.FS, dir string, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		fsys:     fsys,
		dir:      dir,
		executor: NewExecutor(db),
		logger:   logger.With("component", "migration"),
	}
}

// Run applies every pending migration in version order.
func (m *Manager) Run(ctx context.Context) error {
	status, err := m.Status(ctx)
	if err != nil {
		return err
	}
	if len(status.Pending) == 0 {
		m.logger.InfoContext(ctx, "schema up to date", "version", status.CurrentVersion)
		return nil
	}

	m.logger.InfoContext(ctx, "applying migrations", "from_version", status.CurrentVersion, "pending", len(status.Pending))
	for _, migration := range status.Pending {
		elapsed, err := m.executor.Apply(ctx, migration)
		if err != nil {
			m.logger.ErrorContext(ctx, "migration failed", "version", migration.Version, "file", migration.FilePath, "error", err)
			return err
		}
		m.logger.InfoContext(ctx, "migration applied",
			"version", migration.Version,
			"description", migration.Description,
			"duration", elapsed,
		)
	}
	return nil
}

// Status reports the applied and pending migrations. It fails when the
// available files and the recorded history disagree.
func (m *Manager) Status(ctx context.Context) (Status, error) {
	if err := m.executor.InitializeVersionTable(ctx); err != nil {
		return Status{}, err
	}
	available, err := Scan(m.fsys, m.dir)
	if err != nil {
		return Status{}, err
	}
	applied, err := m.executor.Applied(ctx)
	if err != nil {
		return Status{}, err
	}
	if err := validateSequence(available, applied); err != nil {
		return Status{}, err
	}

	done := make(map[int]bool, len(applied))
	status := Status{Applied: applied}
	for _, row := range applied {
		done[row.Version] = true
		if row.Version > status.CurrentVersion {
			status.CurrentVersion = row.Version
		}
	}
	for _, migration := range available {
		if !done[migration.Version] {
			status.Pending = append(status.Pending, migration)
		}
	}
	return status, nil
}

func validateSequence(available []Migration, applied []AppliedMigration) error {
	byVersion := make(map[int]Migration, len(available))
	for i, migration := range available {
		if i > 0 && migration.Version != available[i-1].Version+1 {
			return fmt.Errorf("%w: missing migration version %03d", ErrVersionConflict, available[i-1].Version+1)
		}
		byVersion[migration.Version] = migration
	}
	for _, row := range applied {
		migration, ok := byVersion[row.Version]
		if !ok {
			return fmt.Errorf("%w: applied migration %03d has no file", ErrVersionConflict, row.Version)
		}
		if row.Checksum != migration.Checksum {
			return NewMigrationError(row.Version, migration.FilePath, "verify checksum", ErrChecksumMismatch)
		}
	}
	return nil
}
