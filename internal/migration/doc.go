// Package migration manages versioned schema changes for the session
// store across PostgreSQL, MySQL, and SQLite, built on golang-migrate.
//
// Migration SQL files are embedded per dialect via embed.FS. The
// Migrator interface covers forward migration, rollback, stepping, and
// forcing a version; the CLI type wraps a Migrator with formatted
// terminal output for the migrate subcommands.
package migration
