package testutil

import (
	"context"
	"net/mail"
	"testing"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

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
	storagesvc "github.com/trezcool/cts/services/storage"
	"github.com/trezcool/cts/storage/database"
)

const Password = "Sup3r-S3cret!"

type NopLogger struct{}

func (NopLogger) Debug(string, ...interface{}) {}
func (NopLogger) Info(string, ...interface{})  {}
func (NopLogger) Warn(string, ...interface{})  {}
func (NopLogger) Error(string, ...interface{}) {}
func (NopLogger) Fatal(string, ...interface{}) {}

func NewConfig() *core.Config {
	return &core.Config{
		AppName:          "CTS",
		Env:              "TEST",
		TestMode:         true,
		SecretKey:        "test-secret",
		FrontendBaseURL:  "http://cts.test",
		DefaultFromEmail: mail.Address{Name: "CTS", Address: "noreply@cts.test"},
		Server: core.ServerConfig{
			JWTExpirationDelta:        10 * time.Minute,
			JWTRefreshExpirationDelta: time.Hour,
			PasswordResetTimeoutDelta: 24 * time.Hour,
		},
		Database: core.DatabaseConfig{Engine: database.EngineMemory},
		Review:   core.ReviewConfig{ApprovalThreshold: review.DefaultThreshold},
	}
}

// NewValidator returns a validator with all the app validators registered.
func NewValidator() (*validator.Validate, ut.Translator) {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	application.InitValidators(validate, translator)
	return validate, translator
}

// Env wires every service on a fresh in-memory database.
type Env struct {
	Conf       *core.Config
	Logger     core.Logger
	Repos      *database.Repositories
	Validate   *validator.Validate
	Translator ut.Translator
	Mail       core.EmailService
	Events     *eventsvc.Recorder
	Storage    core.FileStorage

	UserSvc        user.Service
	ProgramSvc     program.Service
	StaffSvc       staff.Service
	Template3Svc   template3.Service
	DraftSvc       review.DraftService
	AppointmentSvc appointment.Service
	ApplicationSvc application.Service
}

func NewEnv(t *testing.T) *Env {
	t.Helper()
	conf := NewConfig()
	logger := NopLogger{}
	core.ParseEmailTemplates(conf, logger)
	emailsvc.ClearSentMessages()

	storage, err := storagesvc.NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewEnv() failed: %v", err)
	}
	env := &Env{
		Conf:    conf,
		Logger:  logger,
		Repos:   database.NewMemoryRepositories(),
		Mail:    emailsvc.NewConsoleServiceMock(conf, logger),
		Events:  new(eventsvc.Recorder),
		Storage: storage,
	}
	env.Validate, env.Translator = NewValidator()

	env.UserSvc = user.NewService(env.Repos.User, env.Mail, conf)
	env.ProgramSvc = program.NewService(env.Repos.Program, storage)
	env.StaffSvc = staff.NewService(env.Repos.Staff, env.UserSvc, env.ProgramSvc)
	env.Template3Svc = template3.NewService(env.Repos.Template3, env.ProgramSvc, storage, env.Events, logger, env.Validate, env.Translator)
	env.DraftSvc = review.NewDraftService(env.Repos.Drafts, env.Validate)
	env.AppointmentSvc = appointment.NewService(env.Repos.Appointment, env.UserSvc, env.Mail, env.Events, logger)
	env.ApplicationSvc = application.NewService(application.Deps{
		Repo:         env.Repos.Application,
		UserSvc:      env.UserSvc,
		ProgramSvc:   env.ProgramSvc,
		StaffSvc:     env.StaffSvc,
		Template3Svc: env.Template3Svc,
		DraftSvc:     env.DraftSvc,
		Storage:      storage,
		MailSvc:      env.Mail,
		Publisher:    env.Events,
		Logger:       logger,
	}, conf)
	return env
}

// Catalog is a campus with one program of two courses.
type Catalog struct {
	Campus  program.Campus
	Program program.Program
	Courses []program.Course
}

func (env *Env) SeedCatalog(t *testing.T) Catalog {
	t.Helper()
	ctx := context.Background()
	campus, err := env.Repos.Program.CreateCampus(ctx, program.Campus{Name: "Main Campus"})
	if err != nil {
		t.Fatalf("SeedCatalog() failed: %v", err)
	}
	if _, err = env.Repos.Program.CreateOldCampus(ctx, program.OldCampus{Name: "Old University"}); err != nil {
		t.Fatalf("SeedCatalog() failed: %v", err)
	}
	prog, err := env.Repos.Program.CreateProgram(ctx, program.Program{Code: "BSC-CS", Name: "Computer Science", CampusID: campus.ID})
	if err != nil {
		t.Fatalf("SeedCatalog() failed: %v", err)
	}
	courses, err := env.Repos.Program.ReplaceCourses(ctx, prog.ID, []program.Course{
		{Code: "CSC101", Name: "Programming", Credit: 4},
		{Code: "MAT101", Name: "Calculus", Credit: 3},
	})
	if err != nil {
		t.Fatalf("SeedCatalog() failed: %v", err)
	}
	return Catalog{Campus: campus, Program: prog, Courses: courses}
}

func CreateUser(t *testing.T, repo user.Repository, name, email, pwd string, roles []string, isActive bool) user.User {
	t.Helper()
	now := time.Now().UTC()
	usr := user.User{
		ID:        uuid.New().String(),
		Name:      name,
		Email:     email,
		Roles:     roles,
		CreatedAt: now,
		UpdatedAt: now,
	}
	usr.SetActive(isActive)
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func (env *Env) CreateStudent(t *testing.T, cat Catalog, name, email string) user.User {
	t.Helper()
	usr, err := env.UserSvc.Signup(context.Background(), user.Signup{
		Name:              name,
		Email:             email,
		Password:          Password,
		Phone:             "+243000000000",
		ProgramID:         cat.Program.ID,
		CampusID:          cat.Campus.ID,
		OldCampusName:     "Old University",
		PrevProgrammeName: "Diploma in IT",
	})
	if err != nil {
		t.Fatalf("CreateStudent() failed: %v", err)
	}
	return usr
}

// CreateStaff creates a lecturer of the catalog campus holding `roleType`:
// coordinator of the program, SME of the course `courseID` or HOS of the campus.
func (env *Env) CreateStaff(t *testing.T, cat Catalog, roleType string, courseID int, name, email string) (user.User, staff.Assignment) {
	t.Helper()
	ctx := context.Background()
	lect, err := env.StaffSvc.CreateLecturer(ctx, staff.NewLecturer{Name: name, Email: email, Password: Password, CampusID: cat.Campus.ID})
	if err != nil {
		t.Fatalf("CreateStaff() failed: %v", err)
	}
	ra := staff.RoleAssignment{RoleType: roleType}
	switch roleType {
	case staff.RoleTypeCoordinator:
		ra.ProgramID = cat.Program.ID
	case staff.RoleTypeSME:
		ra.CourseID = courseID
	}
	a, err := env.StaffSvc.AssignRole(ctx, lect.ID, ra)
	if err != nil {
		t.Fatalf("CreateStaff() failed: %v", err)
	}
	usr, err := env.UserSvc.GetByID(ctx, lect.UserID)
	if err != nil {
		t.Fatalf("CreateStaff() failed: %v", err)
	}
	return usr, a
}
