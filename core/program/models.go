package program

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/cts/core"
)

type Campus struct {
	ID   int    `json:"campus_id" db:"campus_id"`
	Name string `json:"campus_name" db:"campus_name"`
}

// OldCampus is an institution students transfer credits from.
type OldCampus struct {
	ID   int    `json:"old_campus_id" db:"old_campus_id"`
	Name string `json:"old_campus_name" db:"old_campus_name"`
}

type Program struct {
	ID       int    `json:"program_id" db:"program_id"`
	Code     string `json:"program_code" db:"program_code"`
	Name     string `json:"program_name" db:"program_name"`
	CampusID int    `json:"campus_id" db:"campus_id"`
}

type Course struct {
	ID        int    `json:"course_id" db:"course_id"`
	ProgramID int    `json:"program_id" db:"program_id"`
	Code      string `json:"course_code" db:"course_code"`
	Name      string `json:"course_name" db:"course_name"`
	Credit    int    `json:"course_credit" db:"course_credit"`
}

// Structure is an uploaded program structure document.
type Structure struct {
	ID         int       `json:"structure_id" db:"structure_id"`
	ProgramID  int       `json:"program_id" db:"program_id"`
	FilePath   string    `json:"file_path" db:"file_path"`
	UploadedBy string    `json:"uploaded_by" db:"uploaded_by"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	Program    *Program  `json:"program,omitempty" db:"-"`
	Courses    []Course  `json:"courses" db:"-"`
}

// StaticData is what the signup form needs.
type StaticData struct {
	Campuses    []Campus    `json:"campuses"`
	Programs    []Program   `json:"programs"`
	OldCampuses []OldCampus `json:"oldCampuses"`
}

type ProgramFilter struct {
	IDs      []int
	CampusID int
	Name     string
	Code     string
}

// NewCourse contains information needed to create a Course in a program structure.
type NewCourse struct {
	Code   string `json:"course_code" validate:"required,max=50,alphanum_"`
	Name   string `json:"course_name" validate:"required,max=255"`
	Credit int    `json:"course_credit" validate:"required,gt=0"`
}

type NewCourses struct {
	Courses []NewCourse `json:"courses" validate:"required,min=1,dive"`
}

func (nc *NewCourses) Validate(validate *validator.Validate) error {
	seen := make(map[string]bool, len(nc.Courses))
	for i := range nc.Courses {
		nc.Courses[i].Code = core.CleanString(nc.Courses[i].Code)
		nc.Courses[i].Name = core.CleanString(nc.Courses[i].Name)
	}
	if err := validate.Struct(nc); err != nil {
		return err
	}
	for _, c := range nc.Courses {
		code := core.CleanString(c.Code, true /* lower */)
		if seen[code] {
			return core.NewValidationError(nil, core.FieldError{Field: "courses", Error: "duplicate course code " + c.Code})
		}
		seen[code] = true
	}
	return nil
}

// Seed holds static data loaded by the admin CLI.
type Seed struct {
	Campuses    []Campus
	OldCampuses []OldCampus
	Programs    []Program
	Courses     []Course
}

type Repository interface {
	ListCampuses(ctx context.Context) ([]Campus, error)
	CreateCampus(ctx context.Context, c Campus) (Campus, error)
	ListOldCampuses(ctx context.Context) ([]OldCampus, error)
	GetOldCampusByName(ctx context.Context, name string) (OldCampus, error)
	CreateOldCampus(ctx context.Context, oc OldCampus) (OldCampus, error)
	ListPrograms(ctx context.Context, filter ProgramFilter) ([]Program, error)
	GetProgram(ctx context.Context, id int) (Program, error)
	CreateProgram(ctx context.Context, p Program) (Program, error)
	ListCourses(ctx context.Context, programID int) ([]Course, error)
	GetCourse(ctx context.Context, id int) (Course, error)
	// ReplaceCourses upserts `courses` by code in the program; courses absent from the list are kept.
	ReplaceCourses(ctx context.Context, programID int, courses []Course) ([]Course, error)
	CreateStructure(ctx context.Context, st Structure) (Structure, error)
	GetStructure(ctx context.Context, id int) (Structure, error)
	ListStructures(ctx context.Context, programIDs []int) ([]Structure, error)
}
