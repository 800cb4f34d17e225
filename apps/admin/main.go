package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"

	"github.com/trezcool/cts/core"
	"github.com/trezcool/cts/core/program"
	logsvc "github.com/trezcool/cts/services/logger"
	storagesvc "github.com/trezcool/cts/services/storage"
	"github.com/trezcool/cts/storage/database"
)

func main() {
	conf := core.NewConfig()
	ctx := context.Background()

	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	// set up DB
	var db *sql.DB
	var repos *database.Repositories
	if conf.Database.Engine == database.EngineMemory {
		repos = database.NewMemoryRepositories()
	} else {
		if err := database.CreateIfNotExist(ctx, conf); err != nil {
			logger.Fatal(fmt.Sprintf("creating database: %v", err), err)
		}
		sqlxDB, err := database.Open(ctx, conf)
		if err != nil {
			logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
		}
		db = sqlxDB.DB
		repos = database.NewSQLRepositories(sqlxDB)
	}

	storage, err := storagesvc.New(ctx, conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up file storage: %v", err), err)
	}

	// start CLI
	cli := commandLine{
		db:      db,
		usrRepo: repos.User,
		progSvc: program.NewService(repos.Program, storage),
		out:     os.Stdout,
	}
	err = cli.run(os.Args[1:])
	if cErr := repos.Close(); cErr != nil {
		logger.Error(fmt.Sprintf("closing database: %v", cErr), cErr)
	}
	if err != nil {
		if err != errHelp {
			logger.Error(fmt.Sprintf("error: %v", err), err)
		}
		os.Exit(1)
	}
}
