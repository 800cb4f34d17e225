package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/cts/core/staff"
)

const (
	lecturerColumns = "lecturer_id, user_id, lecturer_name, lecturer_email, campus_id"

	assignmentSelect = `
		SELECT a.assignment_id, a.role_type, a.lecturer_id, a.program_id, a.course_id, a.campus_id, a.start_date, a.end_date,
			l.user_id, l.lecturer_name, l.lecturer_email, l.campus_id AS lecturer_campus_id
		FROM staff_assignments a
		JOIN lecturers l ON l.lecturer_id = a.lecturer_id`
)

type assignmentRow struct {
	ID         int       `db:"assignment_id"`
	RoleType   string    `db:"role_type"`
	LecturerID int       `db:"lecturer_id"`
	ProgramID  null.Int  `db:"program_id"`
	CourseID   null.Int  `db:"course_id"`
	CampusID   null.Int  `db:"campus_id"`
	StartDate  time.Time `db:"start_date"`
	EndDate    null.Time `db:"end_date"`

	UserID           string `db:"user_id"`
	LecturerName     string `db:"lecturer_name"`
	LecturerEmail    string `db:"lecturer_email"`
	LecturerCampusID int    `db:"lecturer_campus_id"`
}

func (r assignmentRow) assignment() staff.Assignment {
	return staff.Assignment{
		ID:         r.ID,
		RoleType:   r.RoleType,
		LecturerID: r.LecturerID,
		ProgramID:  r.ProgramID.Int,
		CourseID:   r.CourseID.Int,
		CampusID:   r.CampusID.Int,
		StartDate:  r.StartDate,
		EndDate:    r.EndDate.Ptr(),
		Lecturer: staff.Lecturer{
			ID:       r.LecturerID,
			UserID:   r.UserID,
			Name:     r.LecturerName,
			Email:    r.LecturerEmail,
			CampusID: r.LecturerCampusID,
		},
	}
}

type staffRepository struct {
	db *sqlx.DB
}

var _ staff.Repository = (*staffRepository)(nil) // interface compliance check

func NewStaffRepository(db *sqlx.DB) *staffRepository {
	return &staffRepository{db: db}
}

func (repo *staffRepository) CreateLecturer(ctx context.Context, l staff.Lecturer) (staff.Lecturer, error) {
	err := repo.db.GetContext(ctx, &l.ID, `
		INSERT INTO lecturers (user_id, lecturer_name, lecturer_email, campus_id) VALUES ($1, $2, $3, $4)
		RETURNING lecturer_id`,
		l.UserID, l.Name, l.Email, l.CampusID)
	return l, errors.Wrap(err, "inserting lecturer")
}

func (repo *staffRepository) GetLecturer(ctx context.Context, filter staff.LecturerFilter) (staff.Lecturer, error) {
	w := new(where)
	switch {
	case filter.ID != 0:
		w.add("lecturer_id = ?", filter.ID)
	case filter.UserID != "":
		w.add("user_id = ?", filter.UserID)
	default:
		return staff.Lecturer{}, staff.ErrLecturerNotFound
	}

	var l staff.Lecturer
	q := repo.db.Rebind("SELECT " + lecturerColumns + " FROM lecturers" + w.String())
	if err := repo.db.GetContext(ctx, &l, q, w.args...); err != nil {
		return staff.Lecturer{}, trapNoRowsErr(err, staff.ErrLecturerNotFound, "getting lecturer")
	}
	return l, nil
}

func (repo *staffRepository) ListLecturers(ctx context.Context, campusID int) ([]staff.Lecturer, error) {
	w := new(where)
	if campusID != 0 {
		w.add("campus_id = ?", campusID)
	}
	lects := make([]staff.Lecturer, 0)
	q := repo.db.Rebind("SELECT " + lecturerColumns + " FROM lecturers" + w.String() + " ORDER BY lecturer_name")
	if err := repo.db.SelectContext(ctx, &lects, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "listing lecturers")
	}
	return lects, nil
}

func (repo *staffRepository) CreateAssignment(ctx context.Context, a staff.Assignment) (staff.Assignment, error) {
	var end null.Time
	if a.EndDate != nil {
		end = null.TimeFrom(*a.EndDate)
	}
	err := repo.db.GetContext(ctx, &a.ID, `
		INSERT INTO staff_assignments (role_type, lecturer_id, program_id, course_id, campus_id, start_date, end_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING assignment_id`,
		a.RoleType, a.LecturerID,
		null.NewInt(a.ProgramID, a.ProgramID != 0), null.NewInt(a.CourseID, a.CourseID != 0), null.NewInt(a.CampusID, a.CampusID != 0),
		a.StartDate, end)
	return a, errors.Wrap(err, "inserting assignment")
}

func (repo *staffRepository) GetAssignment(ctx context.Context, id int) (staff.Assignment, error) {
	var row assignmentRow
	if err := repo.db.GetContext(ctx, &row, assignmentSelect+" WHERE a.assignment_id = $1", id); err != nil {
		return staff.Assignment{}, trapNoRowsErr(err, staff.ErrAssignmentNotFound, "getting assignment")
	}
	return row.assignment(), nil
}

func (repo *staffRepository) ListAssignments(ctx context.Context, filter staff.AssignmentFilter) ([]staff.Assignment, error) {
	w := new(where)
	if filter.IDs != nil {
		w.add("a.assignment_id = ANY(?)", pq.Array(filter.IDs))
	}
	if filter.RoleType != "" {
		w.add("a.role_type = ?", filter.RoleType)
	}
	if filter.LecturerID != 0 {
		w.add("a.lecturer_id = ?", filter.LecturerID)
	}
	if filter.UserID != "" {
		w.add("l.user_id = ?", filter.UserID)
	}
	if filter.ProgramID != 0 {
		w.add("a.program_id = ?", filter.ProgramID)
	}
	if filter.CourseID != 0 {
		w.add("a.course_id = ?", filter.CourseID)
	}
	if filter.CampusID != 0 {
		w.add("a.campus_id = ?", filter.CampusID)
	}
	if !filter.ActiveOn.IsZero() {
		// end_date is the first day the role is no longer held
		day := filter.ActiveOn.UTC().Format("2006-01-02")
		w.add("a.start_date <= ?::date AND (a.end_date IS NULL OR a.end_date > ?::date)", day, day)
	}

	var rows []assignmentRow
	q := repo.db.Rebind(assignmentSelect + w.String() + " ORDER BY a.start_date, a.assignment_id")
	if err := repo.db.SelectContext(ctx, &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "listing assignments")
	}
	as := make([]staff.Assignment, 0, len(rows))
	for _, r := range rows {
		as = append(as, r.assignment())
	}
	return as, nil
}

func (repo *staffRepository) EndAssignment(ctx context.Context, id int, end time.Time) (staff.Assignment, error) {
	res, err := repo.db.ExecContext(ctx, "UPDATE staff_assignments SET end_date = $1 WHERE assignment_id = $2", end, id)
	if err != nil {
		return staff.Assignment{}, errors.Wrap(err, "ending assignment")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return staff.Assignment{}, staff.ErrAssignmentNotFound
	}
	return repo.GetAssignment(ctx, id)
}
