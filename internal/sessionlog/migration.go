package sessionlog

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"database/sql"
)

// Migrate applies the gateway_session_records migrations at migrationsDir
// (a "file://" path of .up.sql/.down.sql pairs) against db. Mirrors the
// teacher's use of golang-migrate for schema management rather than
// gorm.AutoMigrate, which the teacher avoids in production code paths.
func Migrate(db *sql.DB, migrationsDir string) error {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("sessionlog: migrate driver: %w", err)
	}
	m, err := migrate.NewWithDatabaseInstance(fmt.Sprintf("file://%s", migrationsDir), "postgres", driver)
	if err != nil {
		return fmt.Errorf("sessionlog: migrate init: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("sessionlog: migrate up: %w", err)
	}
	return nil
}
