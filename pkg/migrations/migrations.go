// Package migrations embeds the database schema and applies it in order.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"
)

//go:embed sql/*.sql
var files embed.FS

// Migration is a single versioned schema change.
type Migration struct {
	Version string
	Name    string
}

// Record is a row in the schema_migrations table.
type Record struct {
	Version   string
	AppliedAt time.Time
}

// Runner applies embedded migrations against a database.
type Runner struct {
	db *sql.DB
}

// NewRunner creates a migration runner.
func NewRunner(db *sql.DB) *Runner {
	return &Runner{db: db}
}

// EnsureMigrationTable creates the schema_migrations table if it doesn't exist.
func (r *Runner) EnsureMigrationTable(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version VARCHAR(14) PRIMARY KEY,
			applied_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)
	`
	_, err := r.db.ExecContext(ctx, query)
	return err
}

// Applied returns all applied migration records ordered by version.
func (r *Runner) Applied(ctx context.Context) ([]Record, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT version, applied_at FROM schema_migrations ORDER BY version`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.Version, &rec.AppliedAt); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Pending returns migrations that have not been applied yet.
func (r *Runner) Pending(ctx context.Context) ([]Migration, error) {
	available, err := Available()
	if err != nil {
		return nil, err
	}

	applied, err := r.Applied(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list applied migrations: %w", err)
	}
	appliedSet := make(map[string]bool, len(applied))
	for _, rec := range applied {
		appliedSet[rec.Version] = true
	}

	var pending []Migration
	for _, m := range available {
		if !appliedSet[m.Version] {
			pending = append(pending, m)
		}
	}
	return pending, nil
}

// Up applies all pending migrations. Each migration runs in its own
// transaction together with its schema_migrations record.
func (r *Runner) Up(ctx context.Context) error {
	if err := r.EnsureMigrationTable(ctx); err != nil {
		return fmt.Errorf("failed to ensure migration table: %w", err)
	}

	pending, err := r.Pending(ctx)
	if err != nil {
		return err
	}

	for _, m := range pending {
		if err := r.apply(ctx, m, "up"); err != nil {
			return fmt.Errorf("migration %s failed: %w", m.Version, err)
		}
	}
	return nil
}

// Down rolls back the most recently applied migration.
func (r *Runner) Down(ctx context.Context) error {
	applied, err := r.Applied(ctx)
	if err != nil {
		return err
	}
	if len(applied) == 0 {
		return nil
	}

	last := applied[len(applied)-1]
	available, err := Available()
	if err != nil {
		return err
	}

	for _, m := range available {
		if m.Version == last.Version {
			if err := r.apply(ctx, m, "down"); err != nil {
				return fmt.Errorf("rollback %s failed: %w", m.Version, err)
			}
			return nil
		}
	}
	return fmt.Errorf("no embedded migration for applied version %s", last.Version)
}

func (r *Runner) apply(ctx context.Context, m Migration, direction string) error {
	content, err := files.ReadFile(fmt.Sprintf("sql/%s_%s.%s.sql", m.Version, m.Name, direction))
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, string(content)); err != nil {
		return err
	}

	switch direction {
	case "up":
		_, err = tx.ExecContext(ctx,
			`INSERT INTO schema_migrations (version) VALUES ($1)`, m.Version)
	case "down":
		_, err = tx.ExecContext(ctx,
			`DELETE FROM schema_migrations WHERE version = $1`, m.Version)
	}
	if err != nil {
		return err
	}

	return tx.Commit()
}

// Available lists the embedded migrations sorted by version.
func Available() ([]Migration, error) {
	var migrations []Migration

	err := fs.WalkDir(files, "sql", func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		if !strings.HasSuffix(path, ".up.sql") {
			return nil
		}

		// 000001_scans.up.sql -> version=000001, name=scans
		base := strings.TrimSuffix(strings.TrimPrefix(path, "sql/"), ".up.sql")
		parts := strings.SplitN(base, "_", 2)
		if len(parts) != 2 {
			return nil
		}

		migrations = append(migrations, Migration{Version: parts[0], Name: parts[1]})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}
