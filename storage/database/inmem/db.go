package inmemdb

import (
	"sync"

	"github.com/trezcool/cts/core/application"
	"github.com/trezcool/cts/core/appointment"
	"github.com/trezcool/cts/core/program"
	"github.com/trezcool/cts/core/review"
	"github.com/trezcool/cts/core/staff"
	"github.com/trezcool/cts/core/template3"
	"github.com/trezcool/cts/core/user"
)

type draftKey struct {
	subjectID int
	userID    string
}

// DB is an in-memory database, for local runs & tests.
// Repositories built on the same DB share its tables.
type DB struct {
	mutex sync.RWMutex
	seq   map[string]int

	users    map[string]user.User
	students map[string]user.Student

	campuses    map[int]program.Campus
	oldCampuses map[int]program.OldCampus
	programs    map[int]program.Program
	courses     map[int]program.Course
	structures  map[int]program.Structure

	lecturers   map[int]staff.Lecturer
	assignments map[int]staff.Assignment

	appointments map[int]appointment.Appointment
	template3    map[int]template3.Template3

	applications map[int]application.Application
	subjects     map[int]application.Subject
	pastSubjects map[int]application.PastSubject
	drafts       map[draftKey]review.Draft
}

func NewDB() *DB {
	return &DB{
		seq:          make(map[string]int),
		users:        make(map[string]user.User),
		students:     make(map[string]user.Student),
		campuses:     make(map[int]program.Campus),
		oldCampuses:  make(map[int]program.OldCampus),
		programs:     make(map[int]program.Program),
		courses:      make(map[int]program.Course),
		structures:   make(map[int]program.Structure),
		lecturers:    make(map[int]staff.Lecturer),
		assignments:  make(map[int]staff.Assignment),
		appointments: make(map[int]appointment.Appointment),
		template3:    make(map[int]template3.Template3),
		applications: make(map[int]application.Application),
		subjects:     make(map[int]application.Subject),
		pastSubjects: make(map[int]application.PastSubject),
		drafts:       make(map[draftKey]review.Draft),
	}
}

// nextID returns the next serial ID of `table`. Callers hold the write lock.
func (db *DB) nextID(table string) int {
	db.seq[table]++
	return db.seq[table]
}
