package template3

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/cts/core"
	"github.com/trezcool/cts/core/program"
)

// Sources
const (
	SourceManual = "manual"
	SourceSME    = "sme"
	SourcePDF    = "pdf"
)

// Template3 is an approved equivalence between a subject taken at a previous institution and a current course.
type Template3 struct {
	ID                   int       `json:"template3_id" db:"template3_id"`
	OldCampusID          *int      `json:"old_campus_id" db:"old_campus_id"`
	OldCampusName        string    `json:"old_campus_name" db:"old_campus_name"`
	OldProgrammeName     string    `json:"old_programme_name" db:"old_programme_name"`
	OldSubjectCode       string    `json:"old_subject_code" db:"old_subject_code"`
	OldSubjectName       string    `json:"old_subject_name" db:"old_subject_name"`
	CourseID             int       `json:"course_id" db:"course_id"`
	ProgramID            int       `json:"program_id" db:"program_id"`
	SimilarityPercentage float64   `json:"similarity_percentage" db:"similarity_percentage"`
	Source               string    `json:"source" db:"source"`
	CreatedBy            *string   `json:"created_by" db:"created_by"`
	CreatedAt            time.Time `json:"created_at" db:"created_at"`

	Course    *program.Course    `json:"course,omitempty" db:"-"`
	OldCampus *program.OldCampus `json:"oldCampus,omitempty" db:"-"`
}

// NormalizeCode upper-cases a subject code and strips its whitespace ("csc 101" -> "CSC101").
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.Join(strings.Fields(code), ""))
}

// NormalizeName lower-cases a name and collapses its whitespace.
func NormalizeName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

// Key identifies the entry of a past subject for a course: campus, code and course,
// the name standing in for the code when there is none.
func (t Template3) Key() string {
	subject := "code:" + NormalizeCode(t.OldSubjectCode)
	if NormalizeCode(t.OldSubjectCode) == "" {
		subject = "name:" + NormalizeName(t.OldSubjectName)
	}
	return fmt.Sprintf("%s|%s|%d", NormalizeName(t.OldCampusName), subject, t.CourseID)
}

// matches reports whether the entry maps the given past subject, by code first, by name when no code is given.
func (t Template3) matches(code, name string) bool {
	if code = NormalizeCode(code); code != "" {
		return NormalizeCode(t.OldSubjectCode) == code
	}
	return name != "" && NormalizeName(t.OldSubjectName) == NormalizeName(name)
}

// NewTemplate3 contains information needed to create a Template3 entry.
type NewTemplate3 struct {
	OldCampusName        string  `json:"old_campus_name" validate:"required,max=255"`
	OldProgrammeName     string  `json:"old_programme_name" validate:"max=255"`
	OldSubjectCode       string  `json:"old_subject_code" validate:"max=50"`
	OldSubjectName       string  `json:"old_subject_name" validate:"required,max=255"`
	CourseID             int     `json:"course_id" validate:"required"`
	SimilarityPercentage float64 `json:"similarity_percentage" validate:"required,percentage"`
}

func (nt *NewTemplate3) Validate(validate *validator.Validate) error {
	nt.OldCampusName = core.CleanString(nt.OldCampusName)
	nt.OldProgrammeName = core.CleanString(nt.OldProgrammeName)
	nt.OldSubjectCode = core.CleanString(nt.OldSubjectCode)
	nt.OldSubjectName = core.CleanString(nt.OldSubjectName)
	return validate.Struct(nt)
}

// BulkFailure reports an entry of a bulk creation that was not created.
type BulkFailure struct {
	Index int    `json:"index"`
	Error string `json:"error"`
}

type BulkResult struct {
	Created []Template3   `json:"created"`
	Failed  []BulkFailure `json:"failed"`
}

// QueryFilter selects Template3 entries; program name & code are resolved to program IDs.
type QueryFilter struct {
	OldCampusID      int    `query:"old_campus_id"`
	OldCampusName    string `query:"old_campus_name"`
	OldProgrammeName string `query:"old_programme_name"`
	ProgramID        int    `query:"program_id"`
	ProgramName      string `query:"program_name"`
	ProgramCode      string `query:"program_code"`
	CourseID         int    `query:"course_id"`

	ProgramIDs []int `query:"-"`
}

func (qf *QueryFilter) Clean() {
	qf.OldCampusName = core.CleanString(qf.OldCampusName)
	qf.OldProgrammeName = core.CleanString(qf.OldProgrammeName)
	qf.ProgramName = core.CleanString(qf.ProgramName)
	qf.ProgramCode = core.CleanString(qf.ProgramCode)
}

type Repository interface {
	// CreateTemplate3 returns ErrExists when the campus, code (or name) & course key is taken.
	CreateTemplate3(ctx context.Context, t Template3) (Template3, error)
	// QueryTemplate3 matches names case-insensitively; ProgramIDs & ProgramID are OR-ed.
	QueryTemplate3(ctx context.Context, filter QueryFilter) ([]Template3, error)
}
