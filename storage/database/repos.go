package database

import (
	"github.com/jmoiron/sqlx"

	"github.com/trezcool/cts/core/application"
	"github.com/trezcool/cts/core/appointment"
	"github.com/trezcool/cts/core/program"
	"github.com/trezcool/cts/core/review"
	"github.com/trezcool/cts/core/staff"
	"github.com/trezcool/cts/core/template3"
	"github.com/trezcool/cts/core/user"
	inmemdb "github.com/trezcool/cts/storage/database/inmem"
	sqlxrepos "github.com/trezcool/cts/storage/database/sqlx"
)

const EngineMemory = "memory"

// Repositories holds a repository per domain, all backed by the same database.
type Repositories struct {
	User        user.Repository
	Program     program.Repository
	Staff       staff.Repository
	Appointment appointment.Repository
	Template3   template3.Repository
	Application application.Repository
	Drafts      review.DraftRepository

	close func() error
}

func (r *Repositories) Close() error {
	if r.close == nil {
		return nil
	}
	return r.close()
}

// NewMemoryRepositories returns repositories sharing a new in-memory database.
func NewMemoryRepositories() *Repositories {
	db := inmemdb.NewDB()
	return &Repositories{
		User:        inmemdb.NewUserRepository(db),
		Program:     inmemdb.NewProgramRepository(db),
		Staff:       inmemdb.NewStaffRepository(db),
		Appointment: inmemdb.NewAppointmentRepository(db),
		Template3:   inmemdb.NewTemplate3Repository(db),
		Application: inmemdb.NewApplicationRepository(db),
		Drafts:      inmemdb.NewDraftRepository(db),
	}
}

// NewSQLRepositories returns repositories over db; closing them closes db.
func NewSQLRepositories(db *sqlx.DB) *Repositories {
	return &Repositories{
		User:        sqlxrepos.NewUserRepository(db),
		Program:     sqlxrepos.NewProgramRepository(db),
		Staff:       sqlxrepos.NewStaffRepository(db),
		Appointment: sqlxrepos.NewAppointmentRepository(db),
		Template3:   sqlxrepos.NewTemplate3Repository(db),
		Application: sqlxrepos.NewApplicationRepository(db),
		Drafts:      sqlxrepos.NewDraftRepository(db),
		close:       db.Close,
	}
}
