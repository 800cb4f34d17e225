package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/cts/core/appointment"
)

const appointmentColumns = `appointment_id, student_id, coordinator_id, appointment_start, appointment_end,
	appointment_status, appointment_notes, created_at, updated_at`

type appointmentRepository struct {
	db *sqlx.DB
}

var _ appointment.Repository = (*appointmentRepository)(nil) // interface compliance check

func NewAppointmentRepository(db *sqlx.DB) *appointmentRepository {
	return &appointmentRepository{db: db}
}

func (repo *appointmentRepository) CreateAppointment(ctx context.Context, a appointment.Appointment) (appointment.Appointment, error) {
	q, args, err := repo.db.BindNamed(`
		INSERT INTO appointments (student_id, coordinator_id, appointment_start, appointment_end,
			appointment_status, appointment_notes, created_at, updated_at)
		VALUES (:student_id, :coordinator_id, :appointment_start, :appointment_end,
			:appointment_status, :appointment_notes, :created_at, :updated_at)
		RETURNING appointment_id`, a)
	if err != nil {
		return appointment.Appointment{}, errors.Wrap(err, "binding appointment")
	}
	if err = repo.db.GetContext(ctx, &a.ID, q, args...); err != nil {
		return appointment.Appointment{}, errors.Wrap(err, "inserting appointment")
	}
	return a, nil
}

func (repo *appointmentRepository) GetAppointment(ctx context.Context, id int) (appointment.Appointment, error) {
	var a appointment.Appointment
	if err := repo.db.GetContext(ctx, &a, "SELECT "+appointmentColumns+" FROM appointments WHERE appointment_id = $1", id); err != nil {
		return appointment.Appointment{}, trapNoRowsErr(err, appointment.ErrNotFound, "getting appointment")
	}
	return a, nil
}

func (repo *appointmentRepository) QueryAppointments(ctx context.Context, filter appointment.QueryFilter) ([]appointment.Appointment, error) {
	w := new(where)
	if filter.StudentID != "" {
		w.add("student_id = ?", filter.StudentID)
	}
	if filter.CoordinatorID != "" {
		w.add("coordinator_id = ?", filter.CoordinatorID)
	}
	if len(filter.Statuses) > 0 {
		w.add("appointment_status = ANY(?)", pq.Array(filter.Statuses))
	}

	as := make([]appointment.Appointment, 0)
	q := repo.db.Rebind("SELECT " + appointmentColumns + " FROM appointments" + w.String() + " ORDER BY appointment_start DESC")
	if err := repo.db.SelectContext(ctx, &as, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying appointments")
	}
	return as, nil
}

func (repo *appointmentRepository) UpdateAppointment(ctx context.Context, a appointment.Appointment) (appointment.Appointment, error) {
	res, err := repo.db.NamedExecContext(ctx, `
		UPDATE appointments SET
			appointment_start = :appointment_start, appointment_end = :appointment_end,
			appointment_status = :appointment_status, appointment_notes = :appointment_notes, updated_at = :updated_at
		WHERE appointment_id = :appointment_id`, a)
	if err != nil {
		return appointment.Appointment{}, errors.Wrap(err, "updating appointment")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return appointment.Appointment{}, appointment.ErrNotFound
	}
	return a, nil
}
