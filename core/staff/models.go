package staff

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/cts/core"
	"github.com/trezcool/cts/core/program"
	"github.com/trezcool/cts/core/user"
)

// Role types a lecturer can be assigned to.
const (
	RoleTypeCoordinator = "coordinator"
	RoleTypeSME         = "sme"
	RoleTypeHOS         = "hos"
)

var (
	RoleTypes = []string{RoleTypeCoordinator, RoleTypeSME, RoleTypeHOS}

	// user role granted by each assignment type
	roleTypeUserRoles = map[string]string{
		RoleTypeCoordinator: user.RoleCoordinator,
		RoleTypeSME:         user.RoleSME,
		RoleTypeHOS:         user.RoleHOS,
	}
)

// UserRole returns the user role granted by an assignment of `roleType`.
func UserRole(roleType string) string {
	return roleTypeUserRoles[roleType]
}

type Lecturer struct {
	ID       int    `json:"lecturer_id" db:"lecturer_id"`
	UserID   string `json:"user_id" db:"user_id"`
	Name     string `json:"lecturer_name" db:"lecturer_name"`
	Email    string `json:"lecturer_email" db:"lecturer_email"`
	CampusID int    `json:"campus_id" db:"campus_id"`
}

// Assignment gives a lecturer a staff role: coordinator of a program, SME of a course or HOS of a campus.
// Ended assignments are kept for history.
type Assignment struct {
	ID         int
	RoleType   string
	LecturerID int
	ProgramID  int
	CourseID   int
	CampusID   int
	StartDate  time.Time
	EndDate    *time.Time

	Lecturer Lecturer
	Program  *program.Program
	Course   *program.Course
}

// IsActive reports whether the assignment is in effect on `day`.
// EndDate is the first day the role is no longer held.
func (a Assignment) IsActive(day time.Time) bool {
	d := truncateDay(day)
	if truncateDay(a.StartDate).After(d) {
		return false
	}
	return a.EndDate == nil || truncateDay(*a.EndDate).After(d)
}

// MarshalJSON names the ID after the role type: coordinator_id, sme_id or hos_id.
func (a Assignment) MarshalJSON() ([]byte, error) {
	m := map[string]interface{}{
		a.RoleType + "_id": a.ID,
		"role_type":        a.RoleType,
		"lecturer_id":      a.LecturerID,
		"start_date":       a.StartDate.Format(dateLayout),
		"end_date":         nil,
		"lecturer":         a.Lecturer,
	}
	if a.EndDate != nil {
		m["end_date"] = a.EndDate.Format(dateLayout)
	}
	if a.ProgramID != 0 {
		m["program_id"] = a.ProgramID
	}
	if a.CourseID != 0 {
		m["course_id"] = a.CourseID
	}
	if a.CampusID != 0 {
		m["campus_id"] = a.CampusID
	}
	if a.Program != nil {
		m["program"] = a.Program
	}
	if a.Course != nil {
		m["course"] = a.Course
	}
	return json.Marshal(m)
}

func (a *Assignment) UnmarshalJSON(data []byte) error {
	var aux struct {
		CoordinatorID int              `json:"coordinator_id"`
		SMEID         int              `json:"sme_id"`
		HOSID         int              `json:"hos_id"`
		RoleType      string           `json:"role_type"`
		LecturerID    int              `json:"lecturer_id"`
		ProgramID     int              `json:"program_id"`
		CourseID      int              `json:"course_id"`
		CampusID      int              `json:"campus_id"`
		StartDate     string           `json:"start_date"`
		EndDate       *string          `json:"end_date"`
		Lecturer      Lecturer         `json:"lecturer"`
		Program       *program.Program `json:"program"`
		Course        *program.Course  `json:"course"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*a = Assignment{
		RoleType:   aux.RoleType,
		LecturerID: aux.LecturerID,
		ProgramID:  aux.ProgramID,
		CourseID:   aux.CourseID,
		CampusID:   aux.CampusID,
		Lecturer:   aux.Lecturer,
		Program:    aux.Program,
		Course:     aux.Course,
	}
	switch aux.RoleType {
	case RoleTypeCoordinator:
		a.ID = aux.CoordinatorID
	case RoleTypeSME:
		a.ID = aux.SMEID
	case RoleTypeHOS:
		a.ID = aux.HOSID
	}
	if aux.StartDate != "" {
		start, err := time.Parse(dateLayout, aux.StartDate)
		if err != nil {
			return err
		}
		a.StartDate = start
	}
	if aux.EndDate != nil && *aux.EndDate != "" {
		end, err := time.Parse(dateLayout, *aux.EndDate)
		if err != nil {
			return err
		}
		a.EndDate = &end
	}
	return nil
}

const dateLayout = "2006-01-02"

func truncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Overview lists the active assignments per role type.
type Overview struct {
	Coordinators         []Assignment `json:"coordinators"`
	SubjectMethodExperts []Assignment `json:"subjectMethodExperts"`
	HeadOfSections       []Assignment `json:"headOfSections"`
}

// NewLecturer contains information needed to create a lecturer & their account.
type NewLecturer struct {
	Name     string `json:"lecturer_name" validate:"required"`
	Email    string `json:"lecturer_email" validate:"required,email"`
	Password string `json:"lecturer_password" validate:"required"`
	CampusID int    `json:"campus_id" validate:"required"`
}

func (nl *NewLecturer) Validate(validate *validator.Validate) error {
	nl.Name = core.CleanString(nl.Name)
	nl.Email = core.CleanString(nl.Email, true /* lower */)
	return validate.Struct(nl)
}

// RoleAssignment assigns a staff role to a lecturer.
type RoleAssignment struct {
	RoleType  string `json:"role_type" validate:"required,oneof=coordinator sme hos"`
	ProgramID int    `json:"program_id" validate:"required_if=RoleType coordinator"`
	CourseID  int    `json:"course_id" validate:"required_if=RoleType sme"`
	StartDate string `json:"start_date" validate:"omitempty,datetime=2006-01-02"`
	EndDate   string `json:"end_date" validate:"omitempty,datetime=2006-01-02"`
}

func (ra *RoleAssignment) Validate(validate *validator.Validate) error {
	ra.RoleType = core.CleanString(ra.RoleType, true /* lower */)
	if err := validate.Struct(ra); err != nil {
		return err
	}
	start, end, err := ra.Dates(time.Now())
	if err != nil {
		return err
	}
	if end != nil && !end.After(start) {
		return core.NewValidationError(nil, core.FieldError{Field: "end_date", Error: "end date must be after start date"})
	}
	return nil
}

// Dates parses the start (defaults to `now`) & end dates.
func (ra RoleAssignment) Dates(now time.Time) (time.Time, *time.Time, error) {
	start := truncateDay(now)
	if ra.StartDate != "" {
		t, err := time.Parse(dateLayout, ra.StartDate)
		if err != nil {
			return time.Time{}, nil, core.NewValidationError(nil, core.FieldError{Field: "start_date", Error: "invalid date"})
		}
		start = t
	}
	if ra.EndDate == "" {
		return start, nil, nil
	}
	end, err := time.Parse(dateLayout, ra.EndDate)
	if err != nil {
		return time.Time{}, nil, core.NewValidationError(nil, core.FieldError{Field: "end_date", Error: "invalid date"})
	}
	return start, &end, nil
}

type EndRole struct {
	RoleType string `json:"role_type" validate:"required,oneof=coordinator sme hos"`
	RoleID   int    `json:"role_id" validate:"required"`
}

type LecturerFilter struct {
	ID     int
	UserID string
}

type AssignmentFilter struct {
	IDs        []int
	RoleType   string
	LecturerID int
	UserID     string
	ProgramID  int
	CourseID   int
	CampusID   int
	ActiveOn   time.Time // zero: ended assignments included
}

type Repository interface {
	CreateLecturer(ctx context.Context, l Lecturer) (Lecturer, error)
	GetLecturer(ctx context.Context, filter LecturerFilter) (Lecturer, error)
	ListLecturers(ctx context.Context, campusID int) ([]Lecturer, error)
	CreateAssignment(ctx context.Context, a Assignment) (Assignment, error)
	GetAssignment(ctx context.Context, id int) (Assignment, error)
	// ListAssignments returns the assignments with their Lecturer set.
	ListAssignments(ctx context.Context, filter AssignmentFilter) ([]Assignment, error)
	EndAssignment(ctx context.Context, id int, end time.Time) (Assignment, error)
}
