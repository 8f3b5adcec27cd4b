package db

import (
	"embed"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

// RunMigrations brings the schema up to the latest embedded migration.
func (db *DB) RunMigrations() error {
	goose.SetBaseFS(migrations)
	goose.SetLogger(log.WithPrefix("Migrations"))
	if err := goose.SetDialect("sqlite3"); err != nil {
		return err
	}

	if err := goose.Up(db.db, "migrations"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	version, err := goose.GetDBVersion(db.db)
	if err != nil {
		return fmt.Errorf("failed to get DB version: %w", err)
	}
	log.Info("Migrations applied", "version", version)
	return nil
}
