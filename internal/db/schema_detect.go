package db

import (
	"database/sql"
	"fmt"
	"io/fs"
	"sort"
	"strings"
)

// DetectSchemaVersion finds the migration version whose schema best matches
// the live database. It is meant for databases from installations that
// predate migration tracking: detect the version, baseline there, then
// migrate up. matchScore is a percentage; differences describes the best
// match's mismatches when the score is below 100.
func (db *DB) DetectSchemaVersion(fsys fs.FS) (version uint, matchScore int, differences []string, err error) {
	latest, err := GetLatestMigrationVersion(fsys)
	if err != nil {
		return 0, 0, nil, err
	}

	current, err := db.schemaObjects()
	if err != nil {
		return 0, 0, nil, err
	}

	bestVersion := uint(1)
	bestScore := -1
	var bestRef map[string]string

	for v := uint(1); v <= latest; v++ {
		ref, err := schemaAtVersion(fsys, v)
		if err != nil {
			return 0, 0, nil, fmt.Errorf("failed to build schema for version %d: %w", v, err)
		}
		score := schemaSimilarity(current, ref)
		if score > bestScore {
			bestVersion, bestScore, bestRef = v, score, ref
		}
	}

	return bestVersion, bestScore, schemaDifferences(current, bestRef), nil
}

// schemaObjects reads the named schema objects from sqlite_master, keyed by
// object name with normalized creation SQL as the value. Internal sqlite
// objects and migration bookkeeping are excluded.
func (db *DB) schemaObjects() (map[string]string, error) {
	rows, err := db.Query(`
		SELECT name, tbl_name, sql FROM sqlite_master
		WHERE sql IS NOT NULL ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema: %w", err)
	}
	defer rows.Close()

	objects := make(map[string]string)
	for rows.Next() {
		var name, tblName, sqlText string
		if err := rows.Scan(&name, &tblName, &sqlText); err != nil {
			return nil, err
		}
		if strings.HasPrefix(name, "sqlite_") || tblName == "schema_migrations" {
			continue
		}
		objects[name] = normalizeSQL(sqlText)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return objects, nil
}

// schemaAtVersion builds a scratch in-memory database migrated to version and
// returns its schema objects.
func schemaAtVersion(fsys fs.FS, version uint) (map[string]string, error) {
	sqlDB, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to open scratch database: %w", err)
	}
	defer sqlDB.Close()
	// A pooled second connection would see a different empty memory database.
	sqlDB.SetMaxOpenConns(1)

	scratch := &DB{sqlDB}
	if err := scratch.MigrateTo(fsys, version); err != nil {
		return nil, err
	}
	return scratch.schemaObjects()
}

// normalizeSQL reduces a CREATE statement to a whitespace- and
// case-insensitive form for comparison.
func normalizeSQL(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// schemaSimilarity scores how closely two schema object maps agree, as a
// percentage of objects present and identical on both sides.
func schemaSimilarity(a, b map[string]string) int {
	if len(a) == 0 && len(b) == 0 {
		return 100
	}
	matched := 0
	for name, sqlText := range a {
		if b[name] == sqlText {
			matched++
		}
	}
	return 100 * 2 * matched / (len(a) + len(b))
}

// schemaDifferences lists the objects that keep current from matching ref.
func schemaDifferences(current, ref map[string]string) []string {
	var diffs []string
	for name, sqlText := range ref {
		got, ok := current[name]
		switch {
		case !ok:
			diffs = append(diffs, fmt.Sprintf("missing: %s", name))
		case got != sqlText:
			diffs = append(diffs, fmt.Sprintf("differs: %s", name))
		}
	}
	for name := range current {
		if _, ok := ref[name]; !ok {
			diffs = append(diffs, fmt.Sprintf("extra: %s", name))
		}
	}
	sort.Strings(diffs)
	return diffs
}
