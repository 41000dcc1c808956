package bunstore

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"strings"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrate applies every embedded migration not yet recorded, in filename
// order. Safe to call on every startup.
func (d *Driver) Migrate(ctx context.Context) error {
	_, err := d.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS chronopool_migrations (
			filename   TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("chronopool/bun: create migrations table: %w", err)
	}

	entries, err := fs.ReadDir(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("chronopool/bun: read migrations: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		var applied bool
		err = d.db.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM chronopool_migrations WHERE filename = ?)`,
			entry.Name(),
		).Scan(&applied)
		if err != nil {
			return fmt.Errorf("chronopool/bun: check migration %s: %w", entry.Name(), err)
		}
		if applied {
			continue
		}

		data, readErr := fs.ReadFile(migrationsFS, "migrations/"+entry.Name())
		if readErr != nil {
			return fmt.Errorf("chronopool/bun: read migration %s: %w", entry.Name(), readErr)
		}

		if _, execErr := d.db.ExecContext(ctx, string(data)); execErr != nil {
			return fmt.Errorf("chronopool/bun: execute migration %s: %w", entry.Name(), execErr)
		}

		if _, recErr := d.db.ExecContext(ctx, `INSERT INTO chronopool_migrations (filename) VALUES (?)`, entry.Name()); recErr != nil {
			return fmt.Errorf("chronopool/bun: record migration %s: %w", entry.Name(), recErr)
		}

		d.logger.Info("applied migration", slog.String("file", entry.Name()))
	}

	return nil
}
