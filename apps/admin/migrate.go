package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/trezcool/cts/storage/database"
)

var (
	migrateFunc = database.Migrate // mockable

	errNoDatabase = errors.New("migrations need a postgres database")
)

func (cli *commandLine) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate <up|up-by-one|up-to|down|down-to|redo|reset|status|version|create|fix> [args]",
		Short: "Run a goose command against the embedded migrations",
		// goose arguments (versions, names) are not flags
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				_ = cmd.Usage()
				return errHelp
			}
			if cli.db == nil {
				return errNoDatabase
			}
			return migrateFunc(cli.db, args[0], args[1:]...)
		},
	}
}
