// Package migration applies versioned SQL schema changes to SQLite databases.
//
// Migrations are read from an fs.FS (usually an embed.FS) and must follow the
// naming convention {version}_{description}.sql, e.g. "001_initial_schema.sql".
// Versions must be contiguous. Each migration runs in its own transaction
// together with its schema_migrations bookkeeping row, and the recorded
// checksum guards against editing a file after it was applied.
//
// Example usage:
//
//	db, err := migration.Open(migration.DefaultSQLiteConfig(path))
//	if err != nil {
//		return err
//	}
//	if err := migration.NewManager(db, files, "migrations", logger).Run(ctx); err != nil {
//		return err
//	}
package migration
