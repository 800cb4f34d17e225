package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"

	"github.com/go-playground/validator/v10"

	echoapi "github.com/trezcool/cts/apps/api/echo"
	"github.com/trezcool/cts/core"
	"github.com/trezcool/cts/core/application"
	"github.com/trezcool/cts/core/appointment"
	"github.com/trezcool/cts/core/program"
	"github.com/trezcool/cts/core/review"
	"github.com/trezcool/cts/core/staff"
	"github.com/trezcool/cts/core/template3"
	"github.com/trezcool/cts/core/user"
	emailsvc "github.com/trezcool/cts/services/email"
	eventsvc "github.com/trezcool/cts/services/events"
	logsvc "github.com/trezcool/cts/services/logger"
	storagesvc "github.com/trezcool/cts/services/storage"
	"github.com/trezcool/cts/storage/database"
)

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()
	ctx := context.Background()

	// set up loggers
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	dbLogger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	dbLogger.Enable(!conf.Debug)

	// set up DB
	repos, err := setUpRepos(ctx, conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = repos.Close(); err != nil {
			dbLogger.Fatal("Failed to close", err)
		}
	}()

	// set up services
	storage, err := storagesvc.New(ctx, conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up file storage: %v", err), err)
	}
	publisher, err := eventsvc.New(conf.Events.NATSURL)
	if err != nil {
		logger.Fatal(fmt.Sprintf("connecting to NATS: %v", err), err)
	}
	defer func() {
		if err = publisher.Close(); err != nil {
			logger.Error(fmt.Sprintf("closing event publisher: %v", err), err)
		}
	}()

	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf, logger)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	application.InitValidators(validate, translator)

	core.ParseEmailTemplates(conf, logger)

	user.LoadCommonPasswords(logger)

	usrSvc := user.NewService(repos.User, mailSvc, conf)
	progSvc := program.NewService(repos.Program, storage)
	staffSvc := staff.NewService(repos.Staff, usrSvc, progSvc)
	t3Svc := template3.NewService(repos.Template3, progSvc, storage, publisher, logger, validate, translator)
	appSvc := application.NewService(application.Deps{
		Repo:         repos.Application,
		UserSvc:      usrSvc,
		ProgramSvc:   progSvc,
		StaffSvc:     staffSvc,
		Template3Svc: t3Svc,
		DraftSvc:     review.NewDraftService(repos.Drafts, validate),
		Storage:      storage,
		MailSvc:      mailSvc,
		Publisher:    publisher,
		Logger:       logger,
	}, conf)

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(
		echoapi.ServerDeps{
			Conf:           conf,
			Logger:         logger,
			Validate:       validate,
			Translator:     translator,
			UserSvc:        usrSvc,
			ProgramSvc:     progSvc,
			StaffSvc:       staffSvc,
			AppointmentSvc: appointment.NewService(repos.Appointment, usrSvc, mailSvc, publisher, logger),
			ApplicationSvc: appSvc,
			Template3Svc:   t3Svc,
		},
	)

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}

// setUpRepos creates & migrates the postgres database if needed.
func setUpRepos(ctx context.Context, conf *core.Config) (*database.Repositories, error) {
	if conf.Database.Engine == database.EngineMemory {
		return database.NewMemoryRepositories(), nil
	}
	if err := database.CreateIfNotExist(ctx, conf); err != nil {
		return nil, err
	}

	db, err := database.Open(ctx, conf)
	if err != nil {
		return nil, err
	}
	if err = database.Migrate(db.DB, "up"); err != nil {
		_ = db.Close()
		return nil, err
	}
	return database.NewSQLRepositories(db), nil
}
