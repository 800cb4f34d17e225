package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/trezcool/cts/core"
	"github.com/trezcool/cts/core/staff"
)

type staffRepository struct {
	db *DB
}

var _ staff.Repository = (*staffRepository)(nil) // interface compliance check

func NewStaffRepository(db *DB) *staffRepository {
	return &staffRepository{db: db}
}

func (repo *staffRepository) CreateLecturer(_ context.Context, l staff.Lecturer) (staff.Lecturer, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	l.ID = repo.db.nextID("lecturers")
	repo.db.lecturers[l.ID] = l
	return l, nil
}

func (repo *staffRepository) GetLecturer(_ context.Context, filter staff.LecturerFilter) (staff.Lecturer, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	for _, l := range repo.db.lecturers {
		if (filter.ID != 0 && l.ID == filter.ID) || (filter.ID == 0 && filter.UserID != "" && l.UserID == filter.UserID) {
			return l, nil
		}
	}
	return staff.Lecturer{}, staff.ErrLecturerNotFound
}

func (repo *staffRepository) ListLecturers(_ context.Context, campusID int) ([]staff.Lecturer, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	lects := make([]staff.Lecturer, 0)
	for _, l := range repo.db.lecturers {
		if campusID == 0 || l.CampusID == campusID {
			lects = append(lects, l)
		}
	}
	sort.Slice(lects, func(i, j int) bool { return lects[i].Name < lects[j].Name })
	return lects, nil
}

func (repo *staffRepository) CreateAssignment(_ context.Context, a staff.Assignment) (staff.Assignment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	a.ID = repo.db.nextID("staff_assignments")
	repo.db.assignments[a.ID] = stripAssignment(a)
	return a, nil
}

// stripAssignment drops the related objects, stored in their own tables.
func stripAssignment(a staff.Assignment) staff.Assignment {
	a.Lecturer, a.Program, a.Course = staff.Lecturer{}, nil, nil
	return a
}

func (repo *staffRepository) withLecturer(a staff.Assignment) staff.Assignment {
	a.Lecturer = repo.db.lecturers[a.LecturerID]
	return a
}

func (repo *staffRepository) GetAssignment(_ context.Context, id int) (staff.Assignment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	a, ok := repo.db.assignments[id]
	if !ok {
		return staff.Assignment{}, staff.ErrAssignmentNotFound
	}
	return repo.withLecturer(a), nil
}

func (repo *staffRepository) ListAssignments(_ context.Context, filter staff.AssignmentFilter) ([]staff.Assignment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	as := make([]staff.Assignment, 0)
	for _, a := range repo.db.assignments {
		a = repo.withLecturer(a)
		switch {
		case filter.IDs != nil && !core.IntsContain(filter.IDs, a.ID),
			filter.RoleType != "" && a.RoleType != filter.RoleType,
			filter.LecturerID != 0 && a.LecturerID != filter.LecturerID,
			filter.UserID != "" && a.Lecturer.UserID != filter.UserID,
			filter.ProgramID != 0 && a.ProgramID != filter.ProgramID,
			filter.CourseID != 0 && a.CourseID != filter.CourseID,
			filter.CampusID != 0 && a.CampusID != filter.CampusID,
			!filter.ActiveOn.IsZero() && !a.IsActive(filter.ActiveOn):
			continue
		}
		as = append(as, a)
	}
	sort.Slice(as, func(i, j int) bool {
		if !as[i].StartDate.Equal(as[j].StartDate) {
			return as[i].StartDate.Before(as[j].StartDate)
		}
		return as[i].ID < as[j].ID
	})
	return as, nil
}

func (repo *staffRepository) EndAssignment(_ context.Context, id int, end time.Time) (staff.Assignment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	a, ok := repo.db.assignments[id]
	if !ok {
		return staff.Assignment{}, staff.ErrAssignmentNotFound
	}
	a.EndDate = &end
	repo.db.assignments[id] = a
	return repo.withLecturer(a), nil
}
