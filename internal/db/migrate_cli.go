package db

import (
	"fmt"
	"io/fs"
	"log"
	"os"
	"strconv"
)

// RunMigrateCommand handles the daemon's 'migrate' subcommand.
func RunMigrateCommand(args []string, dbPath string) {
	if len(args) < 1 {
		PrintMigrateHelp()
		os.Exit(1)
	}

	action := args[0]
	migrationsFS := MigrationsFS()

	// Open without running schema initialization; the migrations manage
	// the schema.
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

	case "version":
		if len(args) < 2 {
			log.Fatal("Usage: scale migrate version <version_number>")
		}
		handleMigrateVersion(database, migrationsFS, args[1])

	case "force":
		if len(args) < 2 {
			log.Fatal("Usage: scale migrate force <version_number>")
		}
		handleMigrateForce(database, migrationsFS, args[1])

	case "help":
		PrintMigrateHelp()

	default:
		fmt.Printf("Unknown migrate action: %s\n\n", action)
		PrintMigrateHelp()
		os.Exit(1)
	}
}

func handleMigrateUp(database *DB, migrationsFS fs.FS) {
	log.Printf("Running migrations...")
	if err := database.MigrateUp(migrationsFS); err != nil {
		log.Fatalf("Migration up failed: %v", err)
	}
	log.Println("All migrations applied")
}

func handleMigrateDown(database *DB, migrationsFS fs.FS) {
	log.Printf("Rolling back most recent migration...")
	if err := database.MigrateDown(migrationsFS); err != nil {
		log.Fatalf("Migration down failed: %v", err)
	}
	log.Println("Rollback complete")
}

func handleMigrateStatus(database *DB, migrationsFS fs.FS) {
	version, dirty, err := database.MigrateVersion(migrationsFS)
	if err != nil {
		log.Fatalf("Failed to get migration status: %v", err)
	}
	if version == 0 {
		fmt.Println("No migrations applied yet")
		return
	}
	state := "clean"
	if dirty {
		state = "dirty - run 'migrate force <version>' to recover"
	}
	fmt.Printf("Current version: %d (%s)\n", version, state)
}

func handleMigrateVersion(database *DB, migrationsFS fs.FS, arg string) {
	version, err := strconv.ParseUint(arg, 10, 32)
	if err != nil {
		log.Fatalf("Invalid version number %q: %v", arg, err)
	}
	if err := database.MigrateTo(migrationsFS, uint(version)); err != nil {
		log.Fatalf("Migration to version %d failed: %v", version, err)
	}
	log.Printf("Migrated to version %d", version)
}

func handleMigrateForce(database *DB, migrationsFS fs.FS, arg string) {
	version, err := strconv.Atoi(arg)
	if err != nil {
		log.Fatalf("Invalid version number %q: %v", arg, err)
	}
	if err := database.MigrateForce(migrationsFS, version); err != nil {
		log.Fatalf("Force to version %d failed: %v", version, err)
	}
	log.Printf("Forced version to %d", version)
}

// PrintMigrateHelp prints usage for the migrate subcommand.
func PrintMigrateHelp() {
	fmt.Println(`Usage: scale migrate <action> [args]

Actions:
  up                  apply all pending migrations
  down                roll back the most recent migration
  status              show the current migration version
  version <number>    migrate up or down to a specific version
  force <number>      force the version marker (dirty-state recovery)
  help                show this help`)
}
