package db

import (
	"crypto/sha256"
	"embed"
	"encoding/hex"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	embeddedmigrations "github.com/solatis/condfields/migrations"
)

// MigrationStatus represents the state of a single migration.
type MigrationStatus struct {
	ID          string
	Checksum    string
	Applied     bool
	AppliedAt   *time.Time
	ExecutionMs int64
}

// migration is an embedded migration file.
type migration struct {
	ID       string
	Checksum string
	SQL      string
}

// appliedRow is a row of the migrations tracking table.
type appliedRow struct {
	ID          string    `db:"migration_id"`
	Checksum    string    `db:"checksum"`
	AppliedAt   time.Time `db:"applied_at"`
	ExecutionMs int64     `db:"execution_ms"`
}

// MigrateUp applies pending migrations in file name order, each in its own
// transaction together with its tracking row. Applied migrations must still
// match their embedded checksum. Returns the ids applied by this call.
func MigrateUp(db *sqlx.DB) ([]string, error) {
	migrations, applied, err := plan(db)
	if err != nil {
		return nil, err
	}
	if err := verifyChecksums(migrations, applied); err != nil {
		return nil, fmt.Errorf("migration checksum validation failed: %w", err)
	}

	var done []string
	for _, m := range migrations {
		if _, ok := applied[m.ID]; ok {
			continue
		}
		elapsed, err := runMigration(db, m)
		if err != nil {
			return done, err
		}
		logrus.WithFields(logrus.Fields{
			"migration":    m.ID,
			"execution_ms": elapsed.Milliseconds(),
		}).Info("applied migration")
		done = append(done, m.ID)
	}
	return done, nil
}

// EnsureMigrated fails when embedded migrations are pending or an applied
// migration's checksum no longer matches.
func EnsureMigrated(db *sqlx.DB) error {
	migrations, applied, err := plan(db)
	if err != nil {
		return err
	}
	if err := verifyChecksums(migrations, applied); err != nil {
		return err
	}
	var pending []string
	for _, m := range migrations {
		if _, ok := applied[m.ID]; !ok {
			pending = append(pending, m.ID)
		}
	}
	if len(pending) > 0 {
		return fmt.Errorf("pending migrations %s - run 'condfields migrate up' first", strings.Join(pending, ", "))
	}
	return nil
}

// MigrateStatus returns the status of all embedded migrations.
func MigrateStatus(db *sqlx.DB) ([]MigrationStatus, error) {
	migrations, applied, err := plan(db)
	if err != nil {
		return nil, err
	}

	statuses := make([]MigrationStatus, 0, len(migrations))
	for _, m := range migrations {
		row, ok := applied[m.ID]
		if !ok {
			statuses = append(statuses, MigrationStatus{ID: m.ID, Checksum: m.Checksum})
			continue
		}
		at := row.AppliedAt
		statuses = append(statuses, MigrationStatus{
			ID:          row.ID,
			Checksum:    row.Checksum,
			Applied:     true,
			AppliedAt:   &at,
			ExecutionMs: row.ExecutionMs,
		})
	}
	return statuses, nil
}

// plan ensures the tracking table exists, then loads the embedded
// migrations of the connection's driver and the rows already applied.
func plan(db *sqlx.DB) ([]migration, map[string]appliedRow, error) {
	fsys, dir, err := migrationSource(db.DriverName())
	if err != nil {
		return nil, nil, err
	}
	if err := createMigrationsTable(db); err != nil {
		return nil, nil, fmt.Errorf("failed to create migrations table: %w", err)
	}
	migrations, err := readMigrations(fsys, dir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse migrations: %w", err)
	}

	var rows []appliedRow
	if err := db.Select(&rows, "SELECT migration_id, checksum, applied_at, execution_ms FROM migrations"); err != nil {
		return nil, nil, fmt.Errorf("failed to query applied migrations: %w", err)
	}
	applied := make(map[string]appliedRow, len(rows))
	for _, r := range rows {
		applied[r.ID] = r
	}
	return migrations, applied, nil
}

// migrationSource selects the embedded migrations of a driver.
func migrationSource(driver string) (embed.FS, string, error) {
	switch driver {
	case DriverSQLite:
		return embeddedmigrations.SqliteMigrations, "sqlite", nil
	case DriverPostgres:
		return embeddedmigrations.PostgresMigrations, "postgres", nil
	default:
		return embed.FS{}, "", fmt.Errorf("unsupported database driver: %s", driver)
	}
}

// readMigrations returns the .sql files of dir ordered by name.
func readMigrations(fsys fs.FS, dir string) ([]migration, error) {
	names, err := fs.Glob(fsys, path.Join(dir, "*.sql"))
	if err != nil {
		return nil, err
	}
	sort.Strings(names)

	out := make([]migration, 0, len(names))
	for _, name := range names {
		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", name, err)
		}
		sum := sha256.Sum256(content)
		out = append(out, migration{
			ID:       path.Base(name),
			Checksum: hex.EncodeToString(sum[:]),
			SQL:      string(content),
		})
	}
	return out, nil
}

// verifyChecksums fails when an applied migration is unknown or was edited
// after it ran.
func verifyChecksums(migrations []migration, applied map[string]appliedRow) error {
	embedded := make(map[string]string, len(migrations))
	for _, m := range migrations {
		embedded[m.ID] = m.Checksum
	}
	ids := make([]string, 0, len(applied))
	for id := range applied {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		want, ok := embedded[id]
		if !ok {
			return fmt.Errorf("migration %s exists in database but not in embedded files", id)
		}
		if got := applied[id].Checksum; got != want {
			return fmt.Errorf("checksum mismatch for migration %s: expected %s, got %s", id, want, got)
		}
	}
	return nil
}

// runMigration executes m and records it in one transaction.
func runMigration(db *sqlx.DB, m migration) (time.Duration, error) {
	start := time.Now()
	tx, err := db.Beginx()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction for migration %s: %w", m.ID, err)
	}
	defer tx.Rollback()

	// lib/pq rejects multiple statements in a single Exec
	for _, stmt := range strings.Split(m.SQL, ";") {
		stmt = stripComments(stmt)
		if stmt == "" {
			continue
		}
		if _, err := tx.Exec(stmt); err != nil {
			return 0, fmt.Errorf("failed to apply migration %s: %w", m.ID, err)
		}
	}

	elapsed := time.Since(start)
	if err := recordMigration(tx, m, elapsed); err != nil {
		return 0, fmt.Errorf("failed to record migration %s: %w", m.ID, err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit migration %s: %w", m.ID, err)
	}
	return elapsed, nil
}

// stripComments drops full-line "--" comments so a statement preceded by a
// comment still runs.
func stripComments(stmt string) string {
	var lines []string
	for _, line := range strings.Split(stmt, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		lines = append(lines, line)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// createMigrationsTable ensures the tracking table exists. SQLite declares
// applied_at TIMESTAMP so the driver parses it into time.Time.
func createMigrationsTable(db *sqlx.DB) error {
	appliedAt := "TIMESTAMP WITHOUT TIME ZONE NOT NULL"
	check := ""
	if db.DriverName() == DriverSQLite {
		appliedAt = "TIMESTAMP NOT NULL"
		check = ",\n\t\t\tCHECK (applied_at LIKE '____-__-__T__:__:__Z')"
	}
	_, err := db.Exec(fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS migrations (
			migration_id TEXT PRIMARY KEY,
			checksum TEXT NOT NULL,
			applied_at %s,
			execution_ms INTEGER NOT NULL%s
		)`, appliedAt, check))
	return err
}

// recordMigration inserts the tracking row of m. SQLite stores applied_at as
// RFC 3339 text.
func recordMigration(tx *sqlx.Tx, m migration, elapsed time.Duration) error {
	var appliedAt any = time.Now().UTC()
	if tx.DriverName() == DriverSQLite {
		appliedAt = appliedAt.(time.Time).Format(time.RFC3339)
	}
	_, err := tx.Exec(
		tx.Rebind("INSERT INTO migrations (migration_id, checksum, applied_at, execution_ms) VALUES (?, ?, ?, ?)"),
		m.ID, m.Checksum, appliedAt, elapsed.Milliseconds(),
	)
	return err
}
