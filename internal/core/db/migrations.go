package db

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/solatis/quotekeeper/migrations"
)

/*
 * Schema migrations.
 *
 * Files are embedded per driver (migrations/sqlite, migrations/postgres)
 * and applied in file-name order. Each applied file is recorded in the
 * migrations table with its SHA-256; a recorded checksum that no longer
 * matches the embedded file, or a recorded file that no longer exists,
 * stops Up before anything runs.
 *
 * A migration and its record commit in one transaction. Statements are
 * split on ";" because lib/pq rejects multi-statement Exec.
 *
 * applied_at is RFC 3339 text on SQLite and a timestamp on PostgreSQL.
 */

// MigrationStatus represents the state of a single migration.
type MigrationStatus struct {
	ID          string
	Checksum    string
	Applied     bool
	AppliedAt   *time.Time
	ExecutionMs int64
}

type migrationFile struct {
	id       string
	checksum string
	body     string
}

var trackingTable = map[string]string{
	"sqlite3": `CREATE TABLE IF NOT EXISTS migrations (
		migration_id TEXT PRIMARY KEY,
		checksum TEXT NOT NULL,
		applied_at TEXT NOT NULL,
		execution_ms INTEGER NOT NULL,
		CHECK (applied_at LIKE '____-__-__T__:__:__Z'))`,
	"postgres": `CREATE TABLE IF NOT EXISTS migrations (
		migration_id TEXT PRIMARY KEY,
		checksum TEXT NOT NULL,
		applied_at TIMESTAMP WITHOUT TIME ZONE NOT NULL,
		execution_ms INTEGER NOT NULL)`,
}

// Migrator applies the embedded schema to one database.
type Migrator struct {
	db     *sqlx.DB
	files  []migrationFile
	logger *slog.Logger
}

// NewMigrator loads the migrations for db's driver and ensures the
// tracking table exists.
func NewMigrator(ctx context.Context, db *sqlx.DB, logger *slog.Logger) (*Migrator, error) {
	if logger == nil {
		logger = slog.Default()
	}
	fsys, err := migrationFS(db.DriverName())
	if err != nil {
		return nil, err
	}
	files, err := readMigrationFiles(fsys)
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations: %w", err)
	}
	if _, err := db.ExecContext(ctx, trackingTable[db.DriverName()]); err != nil {
		return nil, fmt.Errorf("failed to create migrations table: %w", err)
	}
	return &Migrator{db: db, files: files, logger: logger}, nil
}

func migrationFS(driver string) (fs.FS, error) {
	switch driver {
	case "sqlite3":
		return fs.Sub(migrations.SqliteMigrations, "sqlite")
	case "postgres":
		return fs.Sub(migrations.PostgresMigrations, "postgres")
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", driver)
	}
}

func readMigrationFiles(fsys fs.FS) ([]migrationFile, error) {
	names, err := fs.Glob(fsys, "*.sql")
	if err != nil {
		return nil, err
	}
	slices.Sort(names)

	files := make([]migrationFile, 0, len(names))
	for _, name := range names {
		body, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		sum := sha256.Sum256(body)
		files = append(files, migrationFile{
			id:       path.Base(name),
			checksum: hex.EncodeToString(sum[:]),
			body:     string(body),
		})
	}
	return files, nil
}

type appliedRow struct {
	ID          string `db:"migration_id"`
	Checksum    string `db:"checksum"`
	AppliedAt   any    `db:"applied_at"`
	ExecutionMs int64  `db:"execution_ms"`
}

func (m *Migrator) applied(ctx context.Context) (map[string]appliedRow, error) {
	var rows []appliedRow
	err := m.db.SelectContext(ctx, &rows,
		"SELECT migration_id, checksum, applied_at, execution_ms FROM migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to query migrations: %w", err)
	}
	out := make(map[string]appliedRow, len(rows))
	for _, r := range rows {
		out[r.ID] = r
	}
	return out, nil
}

// verify rejects recorded migrations that were edited or removed.
func (m *Migrator) verify(applied map[string]appliedRow) error {
	embedded := make(map[string]string, len(m.files))
	for _, f := range m.files {
		embedded[f.id] = f.checksum
	}
	for id, row := range applied {
		want, ok := embedded[id]
		if !ok {
			return fmt.Errorf("migration %s exists in database but not in embedded files", id)
		}
		if row.Checksum != want {
			return fmt.Errorf("checksum mismatch for migration %s: expected %s, got %s", id, want, row.Checksum)
		}
	}
	return nil
}

// Up applies every pending migration and returns the ids it applied.
func (m *Migrator) Up(ctx context.Context) ([]string, error) {
	applied, err := m.applied(ctx)
	if err != nil {
		return nil, err
	}
	if err := m.verify(applied); err != nil {
		return nil, err
	}

	var done []string
	for _, f := range m.files {
		if _, ok := applied[f.id]; ok {
			continue
		}
		if err := m.apply(ctx, f); err != nil {
			return done, fmt.Errorf("migration %s: %w", f.id, err)
		}
		done = append(done, f.id)
	}
	return done, nil
}

func (m *Migrator) apply(ctx context.Context, f migrationFile) error {
	tx, err := m.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	start := time.Now()
	for _, stmt := range strings.Split(stripComments(f.body), ";") {
		if stmt = strings.TrimSpace(stmt); stmt == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("statement failed: %w", err)
		}
	}
	elapsed := time.Since(start)

	var appliedAt any = time.Now().UTC()
	if m.db.DriverName() == "sqlite3" {
		appliedAt = time.Now().UTC().Format(time.RFC3339)
	}
	_, err = tx.ExecContext(ctx,
		tx.Rebind("INSERT INTO migrations (migration_id, checksum, applied_at, execution_ms) VALUES (?, ?, ?, ?)"),
		f.id, f.checksum, appliedAt, elapsed.Milliseconds())
	if err != nil {
		return fmt.Errorf("record migration: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	m.logger.InfoContext(ctx, "migration applied", "migration", f.id, "duration", elapsed)
	return nil
}

// Status reports every embedded migration in apply order.
func (m *Migrator) Status(ctx context.Context) ([]MigrationStatus, error) {
	applied, err := m.applied(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]MigrationStatus, 0, len(m.files))
	for _, f := range m.files {
		st := MigrationStatus{ID: f.id, Checksum: f.checksum}
		if row, ok := applied[f.id]; ok {
			st.Applied = true
			st.Checksum = row.Checksum
			st.ExecutionMs = row.ExecutionMs
			if t, ok := parseAppliedAt(row.AppliedAt); ok {
				st.AppliedAt = &t
			}
		}
		out = append(out, st)
	}
	return out, nil
}

// Pending lists migrations not yet applied.
func (m *Migrator) Pending(ctx context.Context) ([]string, error) {
	statuses, err := m.Status(ctx)
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

// MigrateUp applies pending migrations with a background context.
func MigrateUp(db *sqlx.DB) error {
	m, err := NewMigrator(context.Background(), db, nil)
	if err != nil {
		return err
	}
	_, err = m.Up(context.Background())
	return err
}

// MigrateStatus reports migration state with a background context.
func MigrateStatus(db *sqlx.DB) ([]MigrationStatus, error) {
	m, err := NewMigrator(context.Background(), db, nil)
	if err != nil {
		return nil, err
	}
	return m.Status(context.Background())
}

// Pending lists migrations not yet applied.
func Pending(db *sqlx.DB) ([]string, error) {
	m, err := NewMigrator(context.Background(), db, nil)
	if err != nil {
		return nil, err
	}
	return m.Pending(context.Background())
}

// parseAppliedAt accepts the RFC 3339 text written on SQLite and the
// timestamp returned by PostgreSQL.
func parseAppliedAt(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		parsed, err := time.Parse(time.RFC3339, t)
		return parsed, err == nil
	case []byte:
		parsed, err := time.Parse(time.RFC3339, string(t))
		return parsed, err == nil
	default:
		return time.Time{}, false
	}
}

// stripComments drops full-line "--" comments so a ";" inside one does not
// split a statement.
func stripComments(sql string) string {
	lines := strings.Split(sql, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}
