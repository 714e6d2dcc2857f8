// Package db stores guidance sessions in sqlite: one row per session, the
// per-tick pose and steering samples behind it, discrete events such as
// engage and section transitions, and periodic coverage snapshots. Schema
// changes are managed with golang-migrate; see migrations/.
package db

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

type DB struct {
	*sql.DB
}

// OpenDB opens the database at path and applies connection pragmas without
// touching the schema. Use this when migrations are managed separately, for
// example by the migrate subcommand.
func OpenDB(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db := &DB{sqlDB}
	if err := db.applyPragmas(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// NewDB opens the database at path and migrates it to the latest schema
// version.
func NewDB(path string) (*DB, error) {
	return NewDBWithMigrationCheck(path, true)
}

// NewDBWithMigrationCheck opens the database at path. With autoMigrate set,
// pending migrations are applied on open. Otherwise an out-of-date schema is
// reported as an error so the operator can run the migrate subcommand
// deliberately.
func NewDBWithMigrationCheck(path string, autoMigrate bool) (*DB, error) {
	db, err := OpenDB(path)
	if err != nil {
		return nil, err
	}

	migrationsFS, err := getMigrationsFS()
	if err != nil {
		db.Close()
		return nil, err
	}

	if autoMigrate {
		if err := db.MigrateUp(migrationsFS); err != nil {
			db.Close()
			return nil, err
		}
		return db, nil
	}

	if _, err := db.CheckAndPromptMigrations(migrationsFS); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// applyPragmas sets the pragmas every database needs: WAL so report queries
// can read while the recorder writes, and a busy timeout so neither side
// fails on a transient lock.
func (db *DB) applyPragmas() error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA temp_store=MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}
	return nil
}

// unixSeconds converts t to unix seconds with sub-second precision, the time
// representation used across all tables.
func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
