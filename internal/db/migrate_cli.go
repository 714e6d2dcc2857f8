package db

import (
	"fmt"
	"io/fs"
	"log"
	"os"
)

// RunMigrateCommand handles the 'migrate' subcommand dispatching.
func RunMigrateCommand(args []string, dbPath string) {
	if len(args) < 1 {
		PrintMigrateHelp()
		os.Exit(1)
	}

	action := args[0]

	migrationsFS, err := getMigrationsFS()
	if err != nil {
		log.Fatalf("Failed to get migrations filesystem: %v", err)
	}

	// Open without running migrations; applying them is what this command
	// manages.
	database, err := OpenDB(dbPath)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	switch action {
	case "up":
		handleMigrateUp(database, migrationsFS)

	case "down":
		handleMigrateDown(database, migrationsFS)

	case "status":
		handleMigrateStatus(database, migrationsFS)

	case "detect":
		handleMigrateDetect(database, migrationsFS)

	case "version":
		if len(args) < 2 {
			log.Fatalf("Usage: fieldline migrate version <N>")
		}
		handleMigrateVersion(database, migrationsFS, args[1])

	case "force":
		if len(args) < 2 {
			log.Fatalf("Usage: fieldline migrate force <N>")
		}
		handleMigrateForce(database, migrationsFS, args[1])

	case "baseline":
		if len(args) < 2 {
			log.Fatalf("Usage: fieldline migrate baseline <N>")
		}
		handleMigrateBaseline(database, args[1])

	case "help":
		PrintMigrateHelp()

	default:
		log.Printf("Unknown migrate command: %s", action)
		PrintMigrateHelp()
		os.Exit(1)
	}
}

func handleMigrateUp(database *DB, migrationsFS fs.FS) {
	log.Println("Applying pending migrations...")
	if err := database.MigrateUp(migrationsFS); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	version, dirty, _ := database.MigrateVersion(migrationsFS)
	log.Printf("✓ Migrations applied (version %d, dirty=%v)", version, dirty)
}

func handleMigrateDown(database *DB, migrationsFS fs.FS) {
	log.Println("Rolling back one migration...")
	if err := database.MigrateDown(migrationsFS); err != nil {
		log.Fatalf("Rollback failed: %v", err)
	}

	version, dirty, _ := database.MigrateVersion(migrationsFS)
	log.Printf("✓ Rollback complete (version %d, dirty=%v)", version, dirty)
}

func handleMigrateStatus(database *DB, migrationsFS fs.FS) {
	version, dirty, err := database.MigrateVersion(migrationsFS)
	if err != nil {
		log.Fatalf("Failed to get migration version: %v", err)
	}

	latest, err := GetLatestMigrationVersion(migrationsFS)
	if err != nil {
		log.Fatalf("Failed to get latest migration version: %v", err)
	}

	fmt.Println("=== Schema Migration Status ===")
	fmt.Printf("Current version: %d\n", version)
	fmt.Printf("Latest available: %d\n", latest)
	fmt.Printf("Dirty state: %v\n", dirty)
	fmt.Println()

	switch {
	case dirty:
		fmt.Println("⚠️  Database is in a dirty state. See 'fieldline migrate force' to recover.")
	case version < latest:
		fmt.Printf("⚠️  Database is %d version(s) behind. Run 'fieldline migrate up' to update.\n", latest-version)
	default:
		fmt.Println("✓ Database is up to date!")
	}
}

func handleMigrateVersion(database *DB, migrationsFS fs.FS, versionStr string) {
	var target uint
	if _, err := fmt.Sscanf(versionStr, "%d", &target); err != nil {
		log.Fatalf("Invalid version number: %s", versionStr)
	}

	log.Printf("Migrating to version %d...", target)
	if err := database.MigrateTo(migrationsFS, target); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	log.Printf("✓ Database at version %d", target)
}

func handleMigrateForce(database *DB, migrationsFS fs.FS, versionStr string) {
	var forceVersion int
	if _, err := fmt.Sscanf(versionStr, "%d", &forceVersion); err != nil {
		log.Fatalf("Invalid version number: %s", versionStr)
	}

	log.Printf("Forcing migration version to %d...", forceVersion)
	if err := database.MigrateForce(migrationsFS, forceVersion); err != nil {
		log.Fatalf("Force failed: %v", err)
	}
	log.Printf("✓ Migration version forced to %d", forceVersion)
}

// handleMigrateBaseline sets the baseline version without running migrations
func handleMigrateBaseline(database *DB, versionStr string) {
	var baselineVersion uint
	if _, err := fmt.Sscanf(versionStr, "%d", &baselineVersion); err != nil {
		log.Fatalf("Invalid version number: %s", versionStr)
	}

	log.Printf("Baselining database at version %d...", baselineVersion)
	if err := database.BaselineAtVersion(baselineVersion); err != nil {
		log.Fatalf("Baseline failed: %v", err)
	}
	log.Printf("✓ Database baselined at version %d", baselineVersion)
}

// handleMigrateDetect detects the schema version of a database that has no
// schema_migrations table yet.
func handleMigrateDetect(database *DB, migrationsFS fs.FS) {
	var tracked bool
	err := database.QueryRow(`
		SELECT COUNT(*) > 0
		FROM sqlite_master
		WHERE type='table' AND name='schema_migrations'
	`).Scan(&tracked)
	if err != nil {
		log.Fatalf("Failed to check for schema_migrations table: %v", err)
	}

	if tracked {
		// Already under migration control; show status instead.
		handleMigrateStatus(database, migrationsFS)
		return
	}

	fmt.Println("No schema_migrations table found - running automatic detection...")
	fmt.Println()

	detected, score, differences, err := database.DetectSchemaVersion(migrationsFS)
	if err != nil {
		log.Fatalf("Schema detection failed: %v", err)
	}

	latest, err := GetLatestMigrationVersion(migrationsFS)
	if err != nil {
		log.Fatalf("Failed to get latest migration version: %v", err)
	}

	fmt.Println("=== Schema Detection Results ===")
	fmt.Printf("Best match: version %d\n", detected)
	fmt.Printf("Similarity: %d%%\n", score)
	fmt.Printf("Latest available: %d\n", latest)
	fmt.Println()

	if score == 100 {
		fmt.Println("✓ Perfect match found!")
		fmt.Println()
		fmt.Println("To baseline and apply remaining migrations:")
		fmt.Printf("  1. fieldline migrate baseline %d\n", detected)
		if detected < latest {
			fmt.Println("  2. fieldline migrate up")
		}
	} else {
		fmt.Printf("⚠️  No perfect match found (best: %d%%)\n", score)
		fmt.Println()
		fmt.Println("Schema differences:")
		for _, diff := range differences {
			fmt.Printf("  %s\n", diff)
		}
		fmt.Println()
		fmt.Println("Options:")
		fmt.Printf("  1. Baseline at closest version: fieldline migrate baseline %d\n", detected)
		fmt.Println("  2. Manually inspect and adjust schema before baselining")
	}
}

// PrintMigrateHelp displays the help message for the migrate command
func PrintMigrateHelp() {
	fmt.Println("Database Migration Commands")
	fmt.Println()
	fmt.Println("Usage: fieldline migrate <command> [options]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  up              Apply all pending migrations")
	fmt.Println("  down            Rollback one migration")
	fmt.Println("  status          Show current migration status and version")
	fmt.Println("  detect          Detect schema version (for databases without schema_migrations)")
	fmt.Println("  version <N>     Migrate to specific version N")
	fmt.Println("  force <N>       Force migration version to N (recovery only)")
	fmt.Println("  baseline <N>    Set migration version to N without running migrations")
	fmt.Println("  help            Show this help message")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  fieldline migrate up")
	fmt.Println("  fieldline migrate status")
	fmt.Println("  fieldline migrate version 1")
	fmt.Println()
	fmt.Println("Legacy database upgrade (typical workflow):")
	fmt.Println("  1. fieldline migrate detect        # Find current schema version")
	fmt.Println("  2. fieldline migrate baseline <N>  # Set version based on detect results")
	fmt.Println("  3. fieldline migrate up            # Apply remaining migrations")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  -db <path>    Path to database file (default: fieldline.db)")
	fmt.Println()
	fmt.Println("For more information, see internal/db/migrations/README.md")
}
