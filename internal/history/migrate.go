package history

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	pgxmigrate "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	sqlitemigrate "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations
var migrationsFS embed.FS

// Migrate brings the schema to the latest version. It runs on a dedicated
// handle because closing the migrator closes the database it was given.
func (s *Store) Migrate(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	sqlDriver, err := sqlDriverName(s.driver)
	if err != nil {
		return err
	}
	db, err := sql.Open(sqlDriver, s.dsn)
	if err != nil {
		return fmt.Errorf("%w: migrate open: %w", ErrStore, err)
	}

	m, err := newMigrator(db, s.driver)
	if err != nil {
		_ = db.Close()
		return err
	}
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			s.logger.Warn("closing migrator", "source_error", srcErr, "database_error", dbErr)
		}
	}()

	if err := up(ctx, m); err != nil {
		return err
	}
	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("%w: migrate version: %w", ErrStore, err)
	}
	s.logger.Info("history schema ready", "driver", s.driver, "version", version, "dirty", dirty)
	return nil
}

// up applies pending migrations. Cancelling ctx stops before the next
// migration; one already running completes.
func up(ctx context.Context, m *migrate.Migrate) error {
	stop := context.AfterFunc(ctx, func() {
		select {
		case m.GracefulStop <- true:
		default:
		}
	})
	defer stop()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("%w: migrate up: %w", ErrStore, err)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: migrate up: %w", ErrStore, err)
	}
	return nil
}

func newMigrator(db *sql.DB, driver string) (*migrate.Migrate, error) {
	var (
		dir string
		drv database.Driver
		err error
	)
	switch driver {
	case DriverSQLite:
		dir = "migrations/sqlite"
		drv, err = sqlitemigrate.WithInstance(db, &sqlitemigrate.Config{})
	case DriverPostgres:
		dir = "migrations/postgres"
		drv, err = pgxmigrate.WithInstance(db, &pgxmigrate.Config{})
	default:
		return nil, fmt.Errorf("%w: unsupported driver %q", ErrStore, driver)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: migrate driver: %w", ErrStore, err)
	}

	src, err := iofs.New(migrationsFS, dir)
	if err != nil {
		return nil, fmt.Errorf("%w: migrate source: %w", ErrStore, err)
	}
	m, err := migrate.NewWithInstance("iofs", src, driver, drv)
	if err != nil {
		return nil, fmt.Errorf("%w: migrate init: %w", ErrStore, err)
	}
	return m, nil
}
