package db

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	embeddedmigrations "github.com/solatis/listingkeeper/migrations"
)

// MigrationStatus is the state of one embedded migration.
type MigrationStatus struct {
	ID          string
	Checksum    string
	Applied     bool
	AppliedAt   *time.Time
	ExecutionMs int64
}

type migration struct {
	ID       string
	Checksum string
	SQL      string
}

type appliedRow struct {
	ID          string `db:"migration_id"`
	Checksum    string `db:"checksum"`
	AppliedAt   string `db:"applied_at"`
	ExecutionMs int64  `db:"execution_ms"`
}

// migrator runs the embedded migration set that matches a connection's driver.
type migrator struct {
	db         *sqlx.DB
	migrations []migration
}

func newMigrator(ctx context.Context, db *sqlx.DB) (*migrator, error) {
	var dir string
	var fsys fs.FS
	switch db.DriverName() {
	case "sqlite3":
		fsys, dir = embeddedmigrations.SqliteMigrations, "sqlite"
	case "postgres":
		fsys, dir = embeddedmigrations.PostgresMigrations, "postgres"
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", db.DriverName())
	}

	if _, err := db.ExecContext(ctx, trackingTableSQL(db.DriverName())); err != nil {
		return nil, fmt.Errorf("failed to create migrations table: %w", err)
	}
	migrations, err := readMigrations(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to parse migrations: %w", err)
	}
	return &migrator{db: db, migrations: migrations}, nil
}

// MigrateUp applies pending migrations in filename order and returns their IDs.
// Each migration runs in one transaction together with its tracking row.
// Fails without applying anything if an applied migration was edited or removed.
func MigrateUp(ctx context.Context, db *sqlx.DB) ([]string, error) {
	m, err := newMigrator(ctx, db)
	if err != nil {
		return nil, err
	}

	rows, err := m.appliedRows(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query applied migrations: %w", err)
	}
	if err := m.verify(rows); err != nil {
		return nil, fmt.Errorf("migration checksum validation failed: %w", err)
	}

	var applied []string
	for _, mig := range m.migrations {
		if _, ok := rows[mig.ID]; ok {
			continue
		}
		if err := m.apply(ctx, mig); err != nil {
			return applied, err
		}
		applied = append(applied, mig.ID)
	}
	return applied, nil
}

// MigrateStatus lists every embedded migration with its applied state.
func MigrateStatus(ctx context.Context, db *sqlx.DB) ([]MigrationStatus, error) {
	m, err := newMigrator(ctx, db)
	if err != nil {
		return nil, err
	}
	rows, err := m.appliedRows(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query migrations: %w", err)
	}

	statuses := make([]MigrationStatus, 0, len(m.migrations))
	for _, mig := range m.migrations {
		row, ok := rows[mig.ID]
		if !ok {
			statuses = append(statuses, MigrationStatus{ID: mig.ID, Checksum: mig.Checksum})
			continue
		}
		status := MigrationStatus{
			ID:          row.ID,
			Checksum:    row.Checksum,
			Applied:     true,
			ExecutionMs: row.ExecutionMs,
		}
		// TEXT on SQLite; lib/pq renders TIMESTAMP as RFC3339 when scanned into a string.
		if ts, err := time.Parse(time.RFC3339Nano, row.AppliedAt); err == nil {
			status.AppliedAt = &ts
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

// PendingMigrations returns the IDs of embedded migrations not yet applied.
func PendingMigrations(ctx context.Context, db *sqlx.DB) ([]string, error) {
	statuses, err := MigrateStatus(ctx, db)
	if err != nil {
		return nil, err
	}
	var pending []string
	for _, s := range statuses {
		if !s.Applied {
			pending = append(pending, s.ID)
		}
	}
	return pending, nil
}

func (m *migrator) appliedRows(ctx context.Context) (map[string]appliedRow, error) {
	var rows []appliedRow
	err := m.db.SelectContext(ctx, &rows,
		"SELECT migration_id, checksum, applied_at, execution_ms FROM migrations")
	if err != nil {
		return nil, err
	}
	byID := make(map[string]appliedRow, len(rows))
	for _, r := range rows {
		byID[r.ID] = r
	}
	return byID, nil
}

// verify checks that every applied migration still exists with the same content.
func (m *migrator) verify(applied map[string]appliedRow) error {
	embedded := make(map[string]string, len(m.migrations))
	for _, mig := range m.migrations {
		embedded[mig.ID] = mig.Checksum
	}
	ids := make([]string, 0, len(applied))
	for id := range applied {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		checksum, ok := embedded[id]
		if !ok {
			return fmt.Errorf("migration %s exists in database but not in embedded files", id)
		}
		if got := applied[id].Checksum; got != checksum {
			return fmt.Errorf("checksum mismatch for migration %s: expected %s, got %s", id, checksum, got)
		}
	}
	return nil
}

func (m *migrator) apply(ctx context.Context, mig migration) error {
	start := time.Now()
	tx, err := m.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for migration %s: %w", mig.ID, err)
	}
	defer tx.Rollback()

	// lib/pq rejects multiple statements per Exec.
	for _, stmt := range splitStatements(mig.SQL) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", mig.ID, err)
		}
	}

	now := time.Now().UTC()
	var appliedAt any = now
	if m.db.DriverName() == "sqlite3" {
		appliedAt = now.Format(time.RFC3339)
	}
	insert := tx.Rebind("INSERT INTO migrations (migration_id, checksum, applied_at, execution_ms) VALUES (?, ?, ?, ?)")
	if _, err := tx.ExecContext(ctx, insert, mig.ID, mig.Checksum, appliedAt, time.Since(start).Milliseconds()); err != nil {
		return fmt.Errorf("failed to record migration %s: %w", mig.ID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration %s: %w", mig.ID, err)
	}
	return nil
}

// readMigrations loads the .sql files of dir sorted by name, with SHA-256 checksums.
func readMigrations(fsys fs.FS, dir string) ([]migration, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, err
	}

	var migrations []migration
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		content, err := fs.ReadFile(fsys, path.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", e.Name(), err)
		}
		sum := sha256.Sum256(content)
		migrations = append(migrations, migration{
			ID:       e.Name(),
			Checksum: hex.EncodeToString(sum[:]),
			SQL:      string(content),
		})
	}
	sort.Slice(migrations, func(i, j int) bool { return migrations[i].ID < migrations[j].ID })
	return migrations, nil
}

// trackingTableSQL must stay in sync with the migrations table in 001_initial_schema.sql.
func trackingTableSQL(driver string) string {
	if driver == "sqlite3" {
		return `CREATE TABLE IF NOT EXISTS migrations (
			migration_id TEXT PRIMARY KEY,
			checksum TEXT NOT NULL,
			applied_at TEXT NOT NULL,
			execution_ms INTEGER NOT NULL,
			CHECK (applied_at LIKE '____-__-__T__:__:__Z')
		)`
	}
	return `CREATE TABLE IF NOT EXISTS migrations (
		migration_id TEXT PRIMARY KEY,
		checksum TEXT NOT NULL,
		applied_at TIMESTAMP WITHOUT TIME ZONE NOT NULL,
		execution_ms INTEGER NOT NULL
	)`
}

// splitStatements returns the non-empty statements of a migration script.
// Migration files must not use semicolons inside literals or comments.
func splitStatements(script string) []string {
	var statements []string
	for _, chunk := range strings.Split(script, ";") {
		var lines []string
		for _, line := range strings.Split(chunk, "\n") {
			if strings.HasPrefix(strings.TrimSpace(line), "--") {
				continue
			}
			lines = append(lines, line)
		}
		if stmt := strings.TrimSpace(strings.Join(lines, "\n")); stmt != "" {
			statements = append(statements, stmt)
		}
	}
	return statements
}
