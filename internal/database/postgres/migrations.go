package postgres

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// migrationLockID keys the advisory lock that keeps two starting replicas from
// applying the same schema change.
const migrationLockID = 0x66617474 // "fatt"

// schemaMigration is one embedded file named NNN_description.sql
type schemaMigration struct {
	File     string
	Sequence int
	SQL      string
}

// loadMigrations reads the embedded migration set ordered by sequence number.
func loadMigrations(fsys fs.FS) ([]schemaMigration, error) {
	entries, err := fs.ReadDir(fsys, "migrations")
	if err != nil {
		return nil, fmt.Errorf("read migrations directory: %w", err)
	}

	seen := make(map[int]string)
	var migrations []schemaMigration
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		prefix, _, ok := strings.Cut(e.Name(), "_")
		seq, err := strconv.Atoi(prefix)
		if !ok || err != nil || seq <= 0 {
			return nil, fmt.Errorf("migration %s: name must start with a sequence number", e.Name())
		}
		if other, dup := seen[seq]; dup {
			return nil, fmt.Errorf("migrations %s and %s share sequence %d", other, e.Name(), seq)
		}
		seen[seq] = e.Name()

		content, err := fs.ReadFile(fsys, "migrations/"+e.Name())
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", e.Name(), err)
		}
		migrations = append(migrations, schemaMigration{File: e.Name(), Sequence: seq, SQL: string(content)})
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Sequence < migrations[j].Sequence
	})
	return migrations, nil
}

// Migrate brings the employees, attendance and office_settings schema up to
// date. Each file runs in its own transaction together with its
// schema_migrations row.
func (p *Pool) Migrate(ctx context.Context) error {
	migrations, err := loadMigrations(migrationsFS)
	if err != nil {
		return err
	}

	if _, err := p.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version VARCHAR(255) PRIMARY KEY,
			applied_at TIMESTAMPTZ DEFAULT NOW()
		)
	`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	applied := 0
	for _, m := range migrations {
		ran, err := p.applyMigration(ctx, m)
		if err != nil {
			return err
		}
		if ran {
			applied++
			logrus.WithFields(logrus.Fields{
				"backend":  "postgres",
				"version":  m.File,
				"sequence": m.Sequence,
			}).Info("Applied schema migration")
		}
	}

	logrus.WithFields(logrus.Fields{
		"backend": "postgres",
		"applied": applied,
		"total":   len(migrations),
	}).Debug("Attendance schema up to date")
	return nil
}

// applyMigration runs m unless another process already recorded it. Returns
// true if it ran.
func (p *Pool) applyMigration(ctx context.Context, m schemaMigration) (bool, error) {
	tx, err := p.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("migration %s: %w", m.File, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock($1)", migrationLockID); err != nil {
		return false, fmt.Errorf("migration %s: acquiring lock: %w", m.File, err)
	}

	var done bool
	if err := tx.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)", m.File,
	).Scan(&done); err != nil {
		return false, fmt.Errorf("migration %s: checking version: %w", m.File, err)
	}
	if done {
		return false, nil
	}

	if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
		return false, fmt.Errorf("migration %s failed: %w", m.File, err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES ($1)", m.File); err != nil {
		return false, fmt.Errorf("migration %s: recording version: %w", m.File, err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("migration %s: commit: %w", m.File, err)
	}
	return true, nil
}

// MigrationsApplied lists recorded schema versions in order
func (p *Pool) MigrationsApplied(ctx context.Context) ([]string, error) {
	rows, err := p.db.QueryContext(ctx, "SELECT version FROM schema_migrations ORDER BY version")
	if err != nil {
		return nil, fmt.Errorf("list schema versions: %w", err)
	}
	defer rows.Close()

	var versions []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan schema version: %w", err)
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}
