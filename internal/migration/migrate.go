package migration

import (
	"database/sql"
	"embed"

	_ "github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog"
)

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

// RunMigrations applies the embedded goose migrations, creating the linknest
// schema on first run.
func RunMigrations(dbURL string, logger zerolog.Logger) error {
	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer db.Close()

	if _, err := db.Exec("CREATE SCHEMA IF NOT EXISTS linknest"); err != nil {
		return errors.Wrap(err, "create schema linknest")
	}
	if _, err := db.Exec("SET search_path TO linknest"); err != nil {
		return errors.Wrap(err, "set search path")
	}

	goose.SetBaseFS(embeddedMigrations)
	goose.SetTableName("linknest.goose_db_version")

	if err := goose.Up(db, "migrations"); err != nil {
		return errors.Wrap(err, "apply migrations")
	}

	logger.Info().Msg("migrations applied")
	return nil
}
