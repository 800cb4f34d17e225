package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/cts/core/appointment"
)

type appointmentRepository struct {
	db *DB
}

var _ appointment.Repository = (*appointmentRepository)(nil) // interface compliance check

func NewAppointmentRepository(db *DB) *appointmentRepository {
	return &appointmentRepository{db: db}
}

func (repo *appointmentRepository) CreateAppointment(_ context.Context, a appointment.Appointment) (appointment.Appointment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	a.ID = repo.db.nextID("appointments")
	a.Student, a.Coordinator = nil, nil
	repo.db.appointments[a.ID] = a
	return a, nil
}

func (repo *appointmentRepository) GetAppointment(_ context.Context, id int) (appointment.Appointment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	a, ok := repo.db.appointments[id]
	if !ok {
		return appointment.Appointment{}, appointment.ErrNotFound
	}
	return a, nil
}

func (repo *appointmentRepository) QueryAppointments(_ context.Context, filter appointment.QueryFilter) ([]appointment.Appointment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	as := make([]appointment.Appointment, 0)
	for _, a := range repo.db.appointments {
		if filter.StudentID != "" && a.StudentID != filter.StudentID {
			continue
		}
		if filter.CoordinatorID != "" && a.CoordinatorID != filter.CoordinatorID {
			continue
		}
		if len(filter.Statuses) > 0 && !stringsContain(filter.Statuses, a.Status) {
			continue
		}
		as = append(as, a)
	}
	sort.Slice(as, func(i, j int) bool { return as[i].Start.After(as[j].Start) })
	return as, nil
}

func (repo *appointmentRepository) UpdateAppointment(_ context.Context, a appointment.Appointment) (appointment.Appointment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	if _, ok := repo.db.appointments[a.ID]; !ok {
		return appointment.Appointment{}, appointment.ErrNotFound
	}
	stored := a
	stored.Student, stored.Coordinator = nil, nil
	repo.db.appointments[a.ID] = stored
	return a, nil
}

func stringsContain(vals []string, val string) bool {
	for _, v := range vals {
		if v == val {
			return true
		}
	}
	return false
}
