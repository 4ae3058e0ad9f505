package sqlite

import (
	"context"
	"embed"
	"fmt"
	"log/slog"

	"github.com/example/school-scheduler/internal/persistence/sqlite/migration"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Storage bundles the connection pool and the repositories built on it.
type Storage struct {
	pool      *ConnectionPool
	Events    *EventRepository
	Directory *DirectoryRepository
}

// Open connects to the database described by config and brings its schema up
// to date before returning.
func Open(ctx context.Context, config migration.SQLiteConfig, logger *slog.Logger) (*Storage, error) {
	pool, err := NewConnectionPool(config)
	if err != nil {
		return nil, err
	}
	if err := migration.NewManager(pool.DB(), migrationFiles, "migrations", logger).Run(ctx); err != nil {
		_ = pool.Close()
		return nil, fmt.Errorf("sqlite: migrate %s: %w", config.Path, err)
	}
	return &Storage{
		pool:      pool,
		Events:    NewEventRepository(pool),
		Directory: NewDirectoryRepository(pool),
	}, nil
}

// Ping reports whether the database is reachable.
func (s *Storage) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Storage) Close() error {
	return s.pool.Close()
}
