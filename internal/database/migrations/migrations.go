// Package migrations manages the database schema with embedded
// golang-migrate files. Table names carry an environment prefix
// (dev_, test_, prod_), so the SQL is written with a {{PREFIX}}
// placeholder rewritten at load time.
package migrations

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	pgxmigrate "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"
)

//go:embed files/*.sql
var migrationFiles embed.FS

// Up runs all pending migrations against the database.
func Up(databaseURL, tablePrefix string) error {
	return run(databaseURL, tablePrefix, func(m *migrate.Migrate) error {
		return m.Up()
	})
}

// Down rolls back all migrations. Destructive; intended for dev and
// test environments only.
func Down(databaseURL, tablePrefix string) error {
	return run(databaseURL, tablePrefix, func(m *migrate.Migrate) error {
		return m.Down()
	})
}

// Status returns the current schema version and whether a previous
// migration left the database dirty.
func Status(databaseURL, tablePrefix string) (version uint, dirty bool, err error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return 0, false, fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	m, err := newMigrate(db, tablePrefix)
	if err != nil {
		return 0, false, err
	}

	version, dirty, err = m.Version()
	if err != nil {
		if errors.Is(err, migrate.ErrNilVersion) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("get schema version: %w", err)
	}

	return version, dirty, nil
}

func run(databaseURL, tablePrefix string, fn func(*migrate.Migrate) error) error {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	m, err := newMigrate(db, tablePrefix)
	if err != nil {
		return err
	}

	if err := fn(m); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			return nil
		}
		return fmt.Errorf("migration failed: %w", err)
	}

	return nil
}

// newMigrate creates a migrate instance for the given database.
// The caller owns db; closing m would close it, so we don't.
func newMigrate(db *sql.DB, tablePrefix string) (*migrate.Migrate, error) {
	sourceDriver, err := iofs.New(migrationFiles, "files")
	if err != nil {
		return nil, fmt.Errorf("read migration files: %w", err)
	}

	src := &prefixSource{Driver: sourceDriver, prefix: tablePrefix}

	dbDriver, err := pgxmigrate.WithInstance(db, &pgxmigrate.Config{
		MigrationsTable: tablePrefix + "schema_migrations",
	})
	if err != nil {
		sourceDriver.Close()
		return nil, fmt.Errorf("create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "pgx", dbDriver)
	if err != nil {
		sourceDriver.Close()
		return nil, fmt.Errorf("create migrate instance: %w", err)
	}

	return m, nil
}

// prefixSource wraps a source driver and substitutes the table prefix
// into the migration SQL as it is read.
type prefixSource struct {
	source.Driver
	prefix string
}

func (s *prefixSource) ReadUp(version uint) (io.ReadCloser, string, error) {
	rc, identifier, err := s.Driver.ReadUp(version)
	if err != nil {
		return nil, identifier, err
	}
	return s.rewrite(rc, identifier)
}

func (s *prefixSource) ReadDown(version uint) (io.ReadCloser, string, error) {
	rc, identifier, err := s.Driver.ReadDown(version)
	if err != nil {
		return nil, identifier, err
	}
	return s.rewrite(rc, identifier)
}

func (s *prefixSource) rewrite(rc io.ReadCloser, identifier string) (io.ReadCloser, string, error) {
	defer rc.Close()

	raw, err := io.ReadAll(rc)
	if err != nil {
		return nil, identifier, fmt.Errorf("read migration %s: %w", identifier, err)
	}

	sql := strings.ReplaceAll(string(raw), "{{PREFIX}}", s.prefix)
	return io.NopCloser(strings.NewReader(sql)), identifier, nil
}
