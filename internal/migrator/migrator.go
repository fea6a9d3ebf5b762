// Package migrator manages the analytical database schema, performing
// migrations using the golang-migrate library.
package migrator

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/golang-migrate/migrate/v4"
	clickhouseMigrate "github.com/golang-migrate/migrate/v4/database/clickhouse"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/skywatch/skywatch/migrations"
)

const clickhouseDriver = "clickhouse"

// expectedVersion is the migration version this build of the binary requires.
const expectedVersion uint = 0

// Migrator is responsible for migrating the analytical database schema.
type Migrator struct {
	db       *sql.DB
	migrator *migrate.Migrate
	logger   *slog.Logger
}

// NewAnalyticsMigrator returns a migrator for the analytical database.
func NewAnalyticsMigrator(dsn string, logger *slog.Logger) (*Migrator, error) {
	opts, err := clickhouse.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("migrator: parse clickhouse dsn: %w", err)
	}
	opts.MaxIdleConns = 0
	opts.MaxOpenConns = 0
	opts.ConnMaxLifetime = 0

	db := clickhouse.OpenDB(opts)

	dr, err := clickhouseMigrate.WithInstance(db, &clickhouseMigrate.Config{
		MigrationsTableEngine: "MergeTree",
		MultiStatementEnabled: true,
	})
	if err != nil {
		return nil, fmt.Errorf("migrator: getting db driver: %w", err)
	}

	sourceDriver, err := iofs.New(migrations.FS, clickhouseDriver)
	if err != nil {
		return nil, fmt.Errorf("migrator: creating iofs source driver: %w", err)
	}

	mm, err := migrate.NewWithInstance("iofs", sourceDriver, clickhouseDriver, dr)
	if err != nil {
		return nil, fmt.Errorf("creating migrate instance: %w", err)
	}

	return &Migrator{
		db:       db,
		migrator: mm,
		logger:   logger,
	}, nil
}

// Close closes the source and db.
func (m *Migrator) Close() (source, db error) {
	return m.migrator.Close()
}

// Up runs any pending migrations.
// if canAutoMigrate is false and there are pending migrations, an error is returned
// for manual safety.
func (m *Migrator) Up(canAutoMigrate bool) error {
	// check if any migrations are pending
	currentVersion, _, err := m.migrator.Version()
	if err != nil {
		if !errors.Is(err, migrate.ErrNilVersion) {
			return fmt.Errorf("migrator: getting current migrations version: %w", err)
		}

		m.logger.Info("migrator: first run, running migrations...")

		// if first run then it's safe to migrate
		if err := m.migrator.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("running migrations: %w", err)
		}

		m.logger.Info("migrator: migrations complete")

		return nil
	}

	if currentVersion < expectedVersion {
		if !canAutoMigrate {
			return errors.New(`migrator: migrations pending,
				please set FORCE_MIGRATE to true
				or backup your database and run migrations manually`)
		}

		m.logger.Info("migrator: current migration",
			slog.Uint64("current_version", uint64(currentVersion)),
			slog.Uint64("expected_version", uint64(expectedVersion)))

		m.logger.Info("migrator: running migrations...")

		if err := m.migrator.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("running migrations: %w", err)
		}

		m.logger.Info("migrator: migrations complete")

		return nil
	}

	m.logger.Info("migrator: migrations up to date")

	return nil
}
