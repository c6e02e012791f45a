package main

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/trezcool/masomo-lms/core"
	"github.com/trezcool/masomo-lms/storage/database"
)

var (
	runMigrationsFunc = database.RunMigrations // mockable

	errNoSQLDatabase = errors.New("migrations need the postgres or sqlite database engine")
)

func (cli *commandLine) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate COMMAND [ARGS...]",
		Short: "Run database migrations",
		Long: `Run a migration command against the configured database:
  up, up-by-one, up-to VERSION, down, down-to VERSION, redo, reset, status, version`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.c.Invoke(func(conf *core.Config) error {
				return migrate(conf, args[0], args[1:]...)
			})
		},
	}
}

// migrate opens the database without applying pending migrations first.
func migrate(conf *core.Config, command string, args ...string) error {
	if conf.Database.Engine == database.EngineMemory {
		return errNoSQLDatabase
	}
	if err := database.CreateIfNotExist(conf); err != nil {
		return err
	}

	db, err := database.Open(conf)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	return runMigrationsFunc(db, command, args...)
}
