package appointment

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/cts/core"
	"github.com/trezcool/cts/core/user"
)

var (
	// errors
	ErrNotFound            = core.NewNotFoundError("appointment not found")
	ErrPendingAppointment  = core.NewConflictError("you already have a pending appointment")
	ErrInvalidTransition   = core.NewConflictError("appointment status cannot be changed that way")
	ErrCoordinatorNotFound = errors.New("coordinator not found")
)

var NowFunc = time.Now // mockable

type (
	Service interface {
		Create(ctx context.Context, student user.User, na NewAppointment) (Appointment, error)
		ListMine(ctx context.Context, studentID string) ([]Appointment, error)
		ListForCoordinator(ctx context.Context, coordinatorID string) ([]Appointment, error)
		Update(ctx context.Context, coordinator user.User, id int, ua UpdateAppointment) (Appointment, error)
	}

	service struct {
		repo      Repository
		usrSvc    user.Service
		mailSvc   core.EmailService
		publisher core.EventPublisher
		logger    core.Logger
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, usrSvc user.Service, mailSvc core.EmailService, publisher core.EventPublisher, logger core.Logger) Service {
	return &service{
		repo:      repo,
		usrSvc:    usrSvc,
		mailSvc:   mailSvc,
		publisher: publisher,
		logger:    logger,
	}
}

// Event is published whenever an appointment is created or updated.
type Event struct {
	Appointment Appointment `json:"appointment"`
}

func (svc *service) Create(ctx context.Context, student user.User, na NewAppointment) (Appointment, error) {
	coord, err := svc.usrSvc.GetByID(ctx, na.CoordinatorID)
	if err != nil && errors.Cause(err) != user.ErrNotFound {
		return Appointment{}, errors.Wrap(err, "getting coordinator")
	}
	if err != nil || !coord.IsCoordinator() || !coord.Active() {
		return Appointment{}, core.NewValidationError(ErrCoordinatorNotFound, core.FieldError{
			Field: "coordinatorId",
			Error: ErrCoordinatorNotFound.Error(),
		})
	}

	pending, err := svc.repo.QueryAppointments(ctx, QueryFilter{StudentID: student.ID, Statuses: pendingStatuses})
	if err != nil {
		return Appointment{}, errors.Wrap(err, "querying pending appointments")
	}
	if len(pending) > 0 {
		return Appointment{}, ErrPendingAppointment
	}

	now := NowFunc().UTC()
	appt, err := svc.repo.CreateAppointment(ctx, Appointment{
		StudentID:     student.ID,
		CoordinatorID: coord.ID,
		Start:         na.RequestedStart.UTC(),
		End:           na.RequestedEnd.UTC(),
		Status:        StatusScheduled,
		Notes:         na.Notes,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	if err != nil {
		return Appointment{}, errors.Wrap(err, "creating appointment")
	}
	svc.attachParties(&appt, student, coord)
	svc.publish(ctx, core.TopicAppointmentCreated, appt)
	return appt, nil
}

func (svc *service) ListMine(ctx context.Context, studentID string) ([]Appointment, error) {
	appts, err := svc.repo.QueryAppointments(ctx, QueryFilter{StudentID: studentID})
	if err != nil {
		return nil, errors.Wrap(err, "querying appointments")
	}
	return svc.hydrate(ctx, appts)
}

func (svc *service) ListForCoordinator(ctx context.Context, coordinatorID string) ([]Appointment, error) {
	appts, err := svc.repo.QueryAppointments(ctx, QueryFilter{CoordinatorID: coordinatorID})
	if err != nil {
		return nil, errors.Wrap(err, "querying appointments")
	}
	return svc.hydrate(ctx, appts)
}

func (svc *service) Update(ctx context.Context, coordinator user.User, id int, ua UpdateAppointment) (Appointment, error) {
	appt, err := svc.repo.GetAppointment(ctx, id)
	if err != nil {
		return Appointment{}, err
	}
	// coordinators only see their own appointments
	if appt.CoordinatorID != coordinator.ID {
		return Appointment{}, ErrNotFound
	}
	if !CanTransition(appt.Status, ua.Status) {
		return Appointment{}, ErrInvalidTransition
	}

	statusChanged := appt.Status != ua.Status
	appt.Status = ua.Status
	appt.Notes = ua.Notes
	appt.UpdatedAt = NowFunc().UTC()
	if appt, err = svc.repo.UpdateAppointment(ctx, appt); err != nil {
		return Appointment{}, errors.Wrap(err, "updating appointment")
	}

	student, err := svc.usrSvc.GetByID(ctx, appt.StudentID)
	if err != nil {
		return Appointment{}, errors.Wrap(err, "getting student")
	}
	svc.attachParties(&appt, student, coordinator)
	svc.publish(ctx, core.TopicAppointmentUpdated, appt)

	if statusChanged {
		svc.mailSvc.SendMessages(core.NewEmailMessage(
			mail.Address{Name: student.Name, Address: student.Email},
			"Appointment "+appt.Status,
			"appointment_updated",
			map[string]string{
				"Name":        student.Name,
				"Start":       appt.Start.Format("Mon, 02 Jan 2006 15:04 MST"),
				"Coordinator": coordinator.Name,
				"Status":      appt.Status,
				"Notes":       appt.Notes,
			},
		))
	}
	return appt, nil
}

func (svc *service) attachParties(appt *Appointment, student, coordinator user.User) {
	appt.Student = &StudentInfo{Name: student.Name, Email: student.Email, Phone: student.Phone}
	appt.Coordinator = &CoordinatorInfo{Name: coordinator.Name, Email: coordinator.Email}
}

func (svc *service) hydrate(ctx context.Context, appts []Appointment) ([]Appointment, error) {
	users := make(map[string]user.User)
	get := func(id string) (user.User, error) {
		if usr, ok := users[id]; ok {
			return usr, nil
		}
		usr, err := svc.usrSvc.GetByID(ctx, id)
		if err != nil {
			return user.User{}, errors.Wrap(err, "getting user")
		}
		users[id] = usr
		return usr, nil
	}

	for i := range appts {
		student, err := get(appts[i].StudentID)
		if err != nil {
			return nil, err
		}
		coord, err := get(appts[i].CoordinatorID)
		if err != nil {
			return nil, err
		}
		svc.attachParties(&appts[i], student, coord)
	}
	if appts == nil {
		appts = []Appointment{}
	}
	return appts, nil
}

func (svc *service) publish(ctx context.Context, topic string, appt Appointment) {
	if err := svc.publisher.Publish(ctx, topic, Event{Appointment: appt}); err != nil {
		svc.logger.Warn(fmt.Sprintf("publishing %s: %v", topic, err), err)
	}
}
