package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"gastos/internal/core"
	applog "gastos/internal/log"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const migrationsTable = "gastos_schema_migrations"

// ErrDirtySchema means a previous migration stopped halfway and the
// database needs manual repair before expenses can be stored in it.
var ErrDirtySchema = errors.New("expense schema is dirty")

// migrateLogger forwards golang-migrate progress to slog at debug level.
type migrateLogger struct {
	ctx  context.Context
	path string
}

func (l migrateLogger) Printf(format string, v ...any) {
	slog.DebugContext(l.ctx, strings.TrimSpace(fmt.Sprintf(format, v...)),
		applog.FieldComponent, applog.ComponentStorage, applog.FieldPath, l.path)
}

func (l migrateLogger) Verbose() bool { return false }

// withMigrator opens its own connection to dbPath, since closing a migrate
// instance also closes the database handed to it.
func withMigrator(ctx context.Context, dbPath string, fn func(*migrate.Migrate) error) error {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return fmt.Errorf("open migration database: %w", err)
	}
	defer conn.Close()

	driver, err := sqlite.WithInstance(conn, &sqlite.Config{MigrationsTable: migrationsTable})
	if err != nil {
		return fmt.Errorf("create sqlite driver: %w", err)
	}
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create iofs source: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	defer m.Close()
	m.Log = migrateLogger{ctx: ctx, path: dbPath}

	return fn(m)
}

func currentVersion(m *migrate.Migrate) (uint, error) {
	v, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	if dirty {
		return v, fmt.Errorf("%w at version %d", ErrDirtySchema, v)
	}
	return v, nil
}

// migrateSchema applies pending migrations and returns the resulting
// schema version.
func migrateSchema(ctx context.Context, dbPath string) (uint, error) {
	var version uint
	err := withMigrator(ctx, dbPath, func(m *migrate.Migrate) error {
		before, err := currentVersion(m)
		if err != nil {
			return err
		}
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			var dirty migrate.ErrDirty
			if errors.As(err, &dirty) {
				return fmt.Errorf("%w at version %d", ErrDirtySchema, dirty.Version)
			}
			return fmt.Errorf("apply migrations: %w", err)
		}
		version, err = currentVersion(m)
		if err != nil {
			return err
		}
		if version != before {
			slog.InfoContext(ctx, "Expense schema migrated",
				applog.FieldComponent, applog.ComponentStorage,
				applog.FieldPath, dbPath, "from", before, "to", version)
		}
		return nil
	})
	return version, err
}

// SchemaVersion reports the applied schema version, 0 for an empty database.
func (r *SQLiteRepository) SchemaVersion(ctx context.Context) (uint, error) {
	var version uint
	err := withMigrator(ctx, r.dbPath, func(m *migrate.Migrate) error {
		var err error
		version, err = currentVersion(m)
		return err
	})
	if err != nil {
		return 0, core.NewStorageError("read schema version", err)
	}
	return version, nil
}
