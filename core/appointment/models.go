package appointment

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/cts/core"
)

// Statuses
const (
	StatusScheduled = "scheduled"
	StatusApproved  = "approved"
	StatusRejected  = "rejected"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

// DefaultDuration is the length of an appointment when no end is requested.
const DefaultDuration = 30 * time.Minute

var (
	Statuses = []string{StatusScheduled, StatusApproved, StatusRejected, StatusCompleted, StatusCancelled}

	// statuses in which a student's appointment is still pending
	pendingStatuses = []string{StatusScheduled, StatusApproved}

	transitions = map[string][]string{
		StatusScheduled: {StatusApproved, StatusRejected, StatusCancelled, StatusCompleted},
		StatusApproved:  {StatusCompleted, StatusCancelled},
	}
)

// CanTransition reports whether an appointment may go from status `from` to `to`.
// Setting the same status again is allowed (notes update).
func CanTransition(from, to string) bool {
	if from == to {
		return true
	}
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

type StudentInfo struct {
	Name  string `json:"student_name"`
	Email string `json:"student_email"`
	Phone string `json:"student_phone"`
}

type CoordinatorInfo struct {
	Name  string `json:"coordinator_name"`
	Email string `json:"coordinator_email"`
}

type Appointment struct {
	ID            int       `json:"appointment_id" db:"appointment_id"`
	StudentID     string    `json:"student_id" db:"student_id"`
	CoordinatorID string    `json:"coordinator_id" db:"coordinator_id"`
	Start         time.Time `json:"appointment_start" db:"appointment_start"`
	End           time.Time `json:"appointment_end" db:"appointment_end"`
	Status        string    `json:"appointment_status" db:"appointment_status"`
	Notes         string    `json:"appointment_notes" db:"appointment_notes"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`

	Student     *StudentInfo     `json:"student,omitempty" db:"-"`
	Coordinator *CoordinatorInfo `json:"coordinator,omitempty" db:"-"`
}

// NewAppointment is a student's appointment request.
type NewAppointment struct {
	CoordinatorID  string    `json:"coordinatorId" validate:"required,uuid"`
	RequestedStart time.Time `json:"requestedStart" validate:"required"`
	RequestedEnd   time.Time `json:"requestedEnd"`
	Notes          string    `json:"notes"`
}

func (na *NewAppointment) Validate(validate *validator.Validate, now time.Time) error {
	na.CoordinatorID = core.CleanString(na.CoordinatorID)
	na.Notes = core.CleanString(na.Notes)
	if err := validate.Struct(na); err != nil {
		return err
	}
	if na.RequestedEnd.IsZero() {
		na.RequestedEnd = na.RequestedStart.Add(DefaultDuration)
	}
	if !na.RequestedStart.After(now) {
		return core.NewValidationError(nil, core.FieldError{Field: "requestedStart", Error: "must be in the future"})
	}
	if !na.RequestedEnd.After(na.RequestedStart) {
		return core.NewValidationError(nil, core.FieldError{Field: "requestedEnd", Error: "must be after requestedStart"})
	}
	return nil
}

// UpdateAppointment is a coordinator's decision on an appointment.
type UpdateAppointment struct {
	Status string `json:"appointment_status" validate:"required,oneof=scheduled approved rejected completed cancelled"`
	Notes  string `json:"appointment_notes"`
}

func (ua *UpdateAppointment) Validate(validate *validator.Validate) error {
	ua.Status = core.CleanString(ua.Status, true /* lower */)
	ua.Notes = core.CleanString(ua.Notes)
	return validate.Struct(ua)
}

type QueryFilter struct {
	StudentID     string
	CoordinatorID string
	Statuses      []string
}

type Repository interface {
	CreateAppointment(ctx context.Context, a Appointment) (Appointment, error)
	GetAppointment(ctx context.Context, id int) (Appointment, error)
	// QueryAppointments returns the matching appointments, latest start first.
	QueryAppointments(ctx context.Context, filter QueryFilter) ([]Appointment, error)
	UpdateAppointment(ctx context.Context, a Appointment) (Appointment, error)
}
