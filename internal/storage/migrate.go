package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

func RunMigrations(dsn string) error {
	// Create a separate connection for migrations to avoid interfering with the main connection
	migrateDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("open migration database: %w", err)
	}
	defer migrateDB.Close()

	driver, err := sqlite.WithInstance(migrateDB, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("create sqlite driver: %w", err)
	}

	d, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create iofs source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", d, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

// reconcileLegacySchema brings databases created by earlier releases into a
// shape the versioned migrations can build on. Each step is a no-op when the
// schema is already current.
func reconcileLegacySchema(ctx context.Context, db *sql.DB) error {
	cols, exists, err := tableColumns(ctx, db, "expenses")
	if err != nil {
		return err
	}
	if exists && !cols["user_id"] {
		// Pre-account expenses cannot be attributed to anyone.
		if _, err := db.ExecContext(ctx, "DROP TABLE expenses"); err != nil {
			return fmt.Errorf("drop legacy expenses: %w", err)
		}
		slog.WarnContext(ctx, "Dropped legacy expenses table without user_id")
	}

	steps := []struct {
		table, column, ddl string
	}{
		{"categories", "type", "ALTER TABLE categories ADD COLUMN type TEXT NOT NULL DEFAULT 'expense'"},
		{"income", "category_id", "ALTER TABLE income ADD COLUMN category_id INTEGER"},
	}
	for _, s := range steps {
		cols, exists, err := tableColumns(ctx, db, s.table)
		if err != nil {
			return err
		}
		if !exists || cols[s.column] {
			continue
		}
		if _, err := db.ExecContext(ctx, s.ddl); err != nil {
			return fmt.Errorf("add %s.%s: %w", s.table, s.column, err)
		}
		slog.InfoContext(ctx, "Added missing column", "table", s.table, "column", s.column)
	}
	return nil
}

// tableColumns returns the column names of table and whether it exists.
func tableColumns(ctx context.Context, db *sql.DB, table string) (map[string]bool, bool, error) {
	rows, err := db.QueryContext(ctx, "SELECT name FROM pragma_table_info(?)", table)
	if err != nil {
		return nil, false, fmt.Errorf("table info %s: %w", table, err)
	}
	defer rows.Close()

	cols := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, false, fmt.Errorf("scan table info %s: %w", table, err)
		}
		cols[name] = true
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("table info %s: %w", table, err)
	}
	return cols, len(cols) > 0, nil
}
