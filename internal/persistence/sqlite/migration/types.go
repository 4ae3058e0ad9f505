package migration

import "time"

// Migration is one versioned schema change loaded from a source file.
type Migration struct {
	Version     int
	Description string
	SQL         string
	FilePath    string
	Checksum    string
}

// AppliedMigration is a row of the schema_migrations table.
type AppliedMigration struct {
	Version       int
	Checksum      string
	AppliedAt     time.Time
	ExecutionTime time.Duration
}

// Status summarises the schema state.
type Status struct {
	CurrentVersion int
	Applied        []AppliedMigration
	Pending        []Migration
}
