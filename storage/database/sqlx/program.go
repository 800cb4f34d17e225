package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/cts/core/program"
)

const (
	programColumns = "program_id, program_code, program_name, campus_id"
	courseColumns  = "course_id, program_id, course_code, course_name, course_credit"
)

type structureRow struct {
	ID         int         `db:"structure_id"`
	ProgramID  int         `db:"program_id"`
	FilePath   string      `db:"file_path"`
	UploadedBy null.String `db:"uploaded_by"`
	CreatedAt  time.Time   `db:"created_at"`
}

func (r structureRow) structure() program.Structure {
	return program.Structure{
		ID:         r.ID,
		ProgramID:  r.ProgramID,
		FilePath:   r.FilePath,
		UploadedBy: r.UploadedBy.String,
		CreatedAt:  r.CreatedAt,
		Courses:    []program.Course{},
	}
}

type programRepository struct {
	db *sqlx.DB
}

var _ program.Repository = (*programRepository)(nil) // interface compliance check

func NewProgramRepository(db *sqlx.DB) *programRepository {
	return &programRepository{db: db}
}

func (repo *programRepository) ListCampuses(ctx context.Context) ([]program.Campus, error) {
	campuses := make([]program.Campus, 0)
	if err := repo.db.SelectContext(ctx, &campuses, "SELECT campus_id, campus_name FROM campuses ORDER BY campus_name"); err != nil {
		return nil, errors.Wrap(err, "listing campuses")
	}
	return campuses, nil
}

func (repo *programRepository) CreateCampus(ctx context.Context, c program.Campus) (program.Campus, error) {
	err := repo.db.GetContext(ctx, &c.ID, "INSERT INTO campuses (campus_name) VALUES ($1) RETURNING campus_id", c.Name)
	return c, errors.Wrap(err, "inserting campus")
}

func (repo *programRepository) ListOldCampuses(ctx context.Context) ([]program.OldCampus, error) {
	ocs := make([]program.OldCampus, 0)
	if err := repo.db.SelectContext(ctx, &ocs, "SELECT old_campus_id, old_campus_name FROM old_campuses ORDER BY old_campus_name"); err != nil {
		return nil, errors.Wrap(err, "listing old campuses")
	}
	return ocs, nil
}

func (repo *programRepository) GetOldCampusByName(ctx context.Context, name string) (program.OldCampus, error) {
	var oc program.OldCampus
	err := repo.db.GetContext(ctx, &oc, `
		SELECT old_campus_id, old_campus_name FROM old_campuses
		WHERE lower(old_campus_name) = lower($1)`, name)
	if err != nil {
		return program.OldCampus{}, trapNoRowsErr(err, program.ErrOldCampusNotFound, "getting old campus")
	}
	return oc, nil
}

func (repo *programRepository) CreateOldCampus(ctx context.Context, oc program.OldCampus) (program.OldCampus, error) {
	err := repo.db.GetContext(ctx, &oc.ID, "INSERT INTO old_campuses (old_campus_name) VALUES ($1) RETURNING old_campus_id", oc.Name)
	return oc, errors.Wrap(err, "inserting old campus")
}

func (repo *programRepository) ListPrograms(ctx context.Context, filter program.ProgramFilter) ([]program.Program, error) {
	w := new(where)
	if filter.IDs != nil {
		w.add("program_id = ANY(?)", pq.Array(filter.IDs))
	}
	if filter.CampusID != 0 {
		w.add("campus_id = ?", filter.CampusID)
	}
	if filter.Name != "" {
		w.add("lower(program_name) = lower(?)", filter.Name)
	}
	if filter.Code != "" {
		w.add("lower(program_code) = lower(?)", filter.Code)
	}

	progs := make([]program.Program, 0)
	q := repo.db.Rebind("SELECT " + programColumns + " FROM programs" + w.String() + " ORDER BY program_name")
	if err := repo.db.SelectContext(ctx, &progs, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "listing programs")
	}
	return progs, nil
}

func (repo *programRepository) GetProgram(ctx context.Context, id int) (program.Program, error) {
	var prog program.Program
	if err := repo.db.GetContext(ctx, &prog, "SELECT "+programColumns+" FROM programs WHERE program_id = $1", id); err != nil {
		return program.Program{}, trapNoRowsErr(err, program.ErrNotFound, "getting program")
	}
	return prog, nil
}

func (repo *programRepository) CreateProgram(ctx context.Context, p program.Program) (program.Program, error) {
	err := repo.db.GetContext(ctx, &p.ID, `
		INSERT INTO programs (program_code, program_name, campus_id) VALUES ($1, $2, $3)
		RETURNING program_id`,
		p.Code, p.Name, p.CampusID)
	return p, errors.Wrap(err, "inserting program")
}

func (repo *programRepository) ListCourses(ctx context.Context, programID int) ([]program.Course, error) {
	courses := make([]program.Course, 0)
	err := repo.db.SelectContext(ctx, &courses, "SELECT "+courseColumns+" FROM courses WHERE program_id = $1 ORDER BY course_code", programID)
	return courses, errors.Wrap(err, "listing courses")
}

func (repo *programRepository) GetCourse(ctx context.Context, id int) (program.Course, error) {
	var course program.Course
	if err := repo.db.GetContext(ctx, &course, "SELECT "+courseColumns+" FROM courses WHERE course_id = $1", id); err != nil {
		return program.Course{}, trapNoRowsErr(err, program.ErrCourseNotFound, "getting course")
	}
	return course, nil
}

func (repo *programRepository) ReplaceCourses(ctx context.Context, programID int, courses []program.Course) ([]program.Course, error) {
	err := withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		for i := range courses {
			courses[i].ProgramID = programID
			err := tx.GetContext(ctx, &courses[i].ID, `
				INSERT INTO courses (program_id, course_code, course_name, course_credit) VALUES ($1, $2, $3, $4)
				ON CONFLICT (program_id, course_code) DO UPDATE
				SET course_name = EXCLUDED.course_name, course_credit = EXCLUDED.course_credit
				RETURNING course_id`,
				programID, courses[i].Code, courses[i].Name, courses[i].Credit)
			if err != nil {
				return errors.Wrapf(err, "upserting course %s", courses[i].Code)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return courses, nil
}

func (repo *programRepository) CreateStructure(ctx context.Context, st program.Structure) (program.Structure, error) {
	err := repo.db.GetContext(ctx, &st.ID, `
		INSERT INTO program_structures (program_id, file_path, uploaded_by, created_at) VALUES ($1, $2, $3, $4)
		RETURNING structure_id`,
		st.ProgramID, st.FilePath, null.NewString(st.UploadedBy, st.UploadedBy != ""), st.CreatedAt.UTC())
	return st, errors.Wrap(err, "inserting structure")
}

func (repo *programRepository) GetStructure(ctx context.Context, id int) (program.Structure, error) {
	var row structureRow
	err := repo.db.GetContext(ctx, &row, `
		SELECT structure_id, program_id, file_path, uploaded_by, created_at
		FROM program_structures WHERE structure_id = $1`, id)
	if err != nil {
		return program.Structure{}, trapNoRowsErr(err, program.ErrStructureNotFound, "getting structure")
	}
	return row.structure(), nil
}

func (repo *programRepository) ListStructures(ctx context.Context, programIDs []int) ([]program.Structure, error) {
	w := new(where)
	if programIDs != nil {
		w.add("program_id = ANY(?)", pq.Array(programIDs))
	}
	var rows []structureRow
	q := repo.db.Rebind("SELECT structure_id, program_id, file_path, uploaded_by, created_at FROM program_structures" +
		w.String() + " ORDER BY created_at DESC")
	if err := repo.db.SelectContext(ctx, &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "listing structures")
	}
	sts := make([]program.Structure, 0, len(rows))
	for _, r := range rows {
		sts = append(sts, r.structure())
	}
	return sts, nil
}
