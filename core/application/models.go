package application

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/cts/core"
	"github.com/trezcool/cts/core/program"
	"github.com/trezcool/cts/core/review"
	"github.com/trezcool/cts/core/template3"
)

type StudentInfo struct {
	Name  string `json:"student_name"`
	Email string `json:"student_email"`
}

// Application is a student's credit transfer request.
type Application struct {
	ID                int        `json:"ct_id" db:"ct_id"`
	Reference         string     `json:"ct_reference" db:"ct_reference"`
	StudentID         string     `json:"student_id" db:"student_id"`
	ProgramID         int        `json:"program_id" db:"program_id"`
	PrevCampusName    string     `json:"prev_campus_name" db:"prev_campus_name"`
	PrevProgrammeName string     `json:"prev_programme_name" db:"prev_programme_name"`
	TranscriptPath    string     `json:"transcript_path" db:"transcript_path"`
	Status            string     `json:"ct_status" db:"ct_status"`
	Notes             string     `json:"ct_notes" db:"ct_notes"`
	CreatedAt         time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at" db:"updated_at"`
	SubmittedAt       *time.Time `json:"submitted_at" db:"submitted_at"`

	Student  *StudentInfo     `json:"student,omitempty" db:"-"`
	Program  *program.Program `json:"program,omitempty" db:"-"`
	Subjects []Subject        `json:"newApplicationSubjects" db:"-"`
}

// approvals returns the approval statuses of all the application's past subjects.
func (a Application) approvals() []string {
	var aps []string
	for _, s := range a.Subjects {
		for _, ps := range s.PastSubjects {
			aps = append(aps, ps.ApprovalStatus)
		}
	}
	return aps
}

// Subject is a course of the student's current program the student asks credits for.
type Subject struct {
	ID               int    `json:"application_subject_id" db:"application_subject_id"`
	ApplicationID    int    `json:"ct_id" db:"ct_id"`
	CourseID         int    `json:"course_id" db:"course_id"`
	Name             string `json:"application_subject_name" db:"application_subject_name"`
	SMEID            *int   `json:"sme_id" db:"sme_id"` // staff assignment
	CoordinatorNotes string `json:"coordinator_notes" db:"coordinator_notes"`

	Course       *program.Course `json:"course,omitempty" db:"-"`
	PastSubjects []PastSubject   `json:"pastApplicationSubjects" db:"-"`
}

// PastSubject is a subject taken at the previous institution, claimed as equivalent to a Subject.
type PastSubject struct {
	ID                   int                      `json:"pastSubject_id" db:"past_subject_id"`
	SubjectID            int                      `json:"application_subject_id" db:"application_subject_id"`
	Code                 string                   `json:"pastSubject_code" db:"past_subject_code"`
	Name                 string                   `json:"pastSubject_name" db:"past_subject_name"`
	Grade                string                   `json:"pastSubject_grade" db:"past_subject_grade"`
	SyllabusPath         string                   `json:"pastSubject_syllabus_path" db:"syllabus_path"`
	ApprovalStatus       string                   `json:"approval_status" db:"approval_status"`
	SimilarityPercentage *float64                 `json:"similarity_percentage" db:"similarity_percentage"`
	SMEReviewNotes       string                   `json:"sme_review_notes" db:"sme_review_notes"`
	Template3ID          *int                     `json:"template3_id" db:"template3_id"`
	TopicsComparison     []review.TopicComparison `json:"topics_comparison,omitempty" db:"-"`
}

// NewPastSubject is a past subject of an application form.
// SyllabusFile names the multipart file holding its syllabus, if any.
type NewPastSubject struct {
	Code         string `json:"code" validate:"max=50"`
	Name         string `json:"name" validate:"max=255"`
	Grade        string `json:"grade" validate:"max=10"`
	SyllabusFile string `json:"syllabusFile"`
	SyllabusPath string `json:"syllabusPath"`
}

type NewSubject struct {
	CourseID     int              `json:"course_id"`
	PastSubjects []NewPastSubject `json:"pastSubjects" validate:"dive"`
}

// ApplyForm is a student's application form, saved as a draft or submitted.
type ApplyForm struct {
	DraftID           int          `form:"draftId"`
	Submit            bool         `form:"submit"`
	PrevCampusName    string       `form:"prev_campus_name" validate:"max=255"`
	PrevProgrammeName string       `form:"prev_programme_name" validate:"max=255"`
	Subjects          []NewSubject `form:"subjects" validate:"dive"`

	Transcript *core.Upload          `form:"-"`
	Syllabi    map[string]core.Upload `form:"-"` // by file field name
}

func (f *ApplyForm) Validate(validate *validator.Validate) error {
	f.PrevCampusName = core.CleanString(f.PrevCampusName)
	f.PrevProgrammeName = core.CleanString(f.PrevProgrammeName)
	for i := range f.Subjects {
		for j := range f.Subjects[i].PastSubjects {
			ps := &f.Subjects[i].PastSubjects[j]
			ps.Code = core.CleanString(ps.Code)
			ps.Name = core.CleanString(ps.Name)
			ps.Grade = core.CleanString(ps.Grade)
			ps.SyllabusFile = core.CleanString(ps.SyllabusFile)
		}
	}
	return validate.Struct(f)
}

// UpdateStatus is a coordinator's decision on a whole application.
type UpdateStatus struct {
	Status string `json:"ct_status" validate:"required,ctstatus"`
	Notes  string `json:"ct_notes"`
}

func (us *UpdateStatus) Validate(validate *validator.Validate) error {
	us.Status = core.CleanString(us.Status, true /* lower */)
	us.Notes = core.CleanString(us.Notes)
	return validate.Struct(us)
}

// Coordinator actions on a past subject
const (
	ActionCheckTemplate3   = "check_template3"
	ActionApproveTemplate3 = "approve_template3"
	ActionSendToSME        = "send_to_sme"
	ActionReject           = "reject"
)

// Coordinator actions on a subject and all its past subjects
const (
	ActionApproveAll   = "approve_all"
	ActionSendAllToSME = "send_all_to_sme"
)

type PastSubjectReview struct {
	PastSubjectID    int    `json:"pastSubjectId" validate:"required"`
	Action           string `json:"action" validate:"required,oneof=check_template3 approve_template3 send_to_sme reject"`
	CoordinatorNotes string `json:"coordinator_notes"`
}

func (r *PastSubjectReview) Validate(validate *validator.Validate) error {
	r.Action = core.CleanString(r.Action, true /* lower */)
	r.CoordinatorNotes = core.CleanString(r.CoordinatorNotes)
	return validate.Struct(r)
}

type SubjectCheck struct {
	ApplicationSubjectID int    `json:"applicationSubjectId" validate:"required"`
	Action               string `json:"action" validate:"required,oneof=check_template3 approve_all send_all_to_sme"`
	CoordinatorNotes     string `json:"coordinator_notes"`
	SMEID                int    `json:"smeId"`
}

func (c *SubjectCheck) Validate(validate *validator.Validate) error {
	c.Action = core.CleanString(c.Action, true /* lower */)
	c.CoordinatorNotes = core.CleanString(c.CoordinatorNotes)
	return validate.Struct(c)
}

// MatchResult is the Template3 lookup of a past subject.
type MatchResult struct {
	PastSubjectID int                  `json:"pastSubject_id"`
	HasMatch      bool                 `json:"hasMatch"`
	Template3     *template3.Template3 `json:"template3"`
}

type PastSubjectResult struct {
	MatchResult
	PastSubject       PastSubject `json:"pastSubject"`
	ApplicationStatus string      `json:"ct_status"`
}

type SubjectCheckResult struct {
	ApplicationSubjectID int           `json:"applicationSubjectId"`
	TotalSubjects        int           `json:"totalSubjects"`
	MatchedCount         int           `json:"matchedCount"`
	AllMatch             bool          `json:"allMatch"`
	SomeMatch            bool          `json:"someMatch"`
	AveragePercentage    float64       `json:"averagePercentage"`
	CanApproveAll        bool          `json:"canApproveAll"`
	Results              []MatchResult `json:"results"`
	ApplicationStatus    string        `json:"ct_status"`
}

// SMEAssignment is a subject waiting for (or reviewed by) an SME.
type SMEAssignment struct {
	Subject
	Application AssignmentApplication `json:"application"`
	Pending     bool                  `json:"pending"`
}

type AssignmentApplication struct {
	ID                int          `json:"ct_id"`
	Reference         string       `json:"ct_reference"`
	Status            string       `json:"ct_status"`
	PrevCampusName    string       `json:"prev_campus_name"`
	PrevProgrammeName string       `json:"prev_programme_name"`
	Student           *StudentInfo `json:"student,omitempty"`
}

// SubjectDetails is what an SME needs to review a subject.
type SubjectDetails struct {
	Application  AssignmentApplication `json:"application"`
	NewCourse    *program.Course       `json:"newCourse"`
	Subject      Subject               `json:"subject"`
	PastSubjects []PastSubject         `json:"pastSubjects"`
	Draft        *review.Draft         `json:"draft"`
}

type ReviewResult struct {
	Subject           Subject `json:"subject"`
	AverageSimilarity float64 `json:"averageSimilarity"`
	Approved          bool    `json:"approved"`
	ApplicationStatus string  `json:"ct_status"`
}

// Summary counts the applications of a campus per status.
type Summary struct {
	CampusID int            `json:"campus_id"`
	Total    int            `json:"total"`
	ByStatus map[string]int `json:"byStatus"`
}

type QueryFilter struct {
	StudentID  string
	ProgramIDs []int
	Statuses   []string
	// ExcludeDrafts hides drafts; they are only visible to their student.
	ExcludeDrafts bool
}

type SubjectFilter struct {
	SMEIDs []int
}

type Repository interface {
	// CreateApplication creates the application with its subjects & past subjects.
	CreateApplication(ctx context.Context, a Application) (Application, error)
	// ReplaceApplication updates a draft and replaces its subjects & past subjects.
	ReplaceApplication(ctx context.Context, a Application) (Application, error)
	GetApplication(ctx context.Context, id int) (Application, error)
	// QueryApplications returns matching applications with their subjects, latest first.
	QueryApplications(ctx context.Context, filter QueryFilter) ([]Application, error)
	// UpdateApplication updates the status, notes & timestamps of an application.
	UpdateApplication(ctx context.Context, a Application) (Application, error)
	GetSubject(ctx context.Context, id int) (Subject, error)
	QuerySubjects(ctx context.Context, filter SubjectFilter) ([]Subject, error)
	UpdateSubject(ctx context.Context, s Subject) (Subject, error)
	GetPastSubject(ctx context.Context, id int) (PastSubject, error)
	UpdatePastSubject(ctx context.Context, ps PastSubject) (PastSubject, error)
}
