package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/cts/core/template3"
)

const template3Columns = `template3_id, old_campus_id, old_campus_name, old_programme_name, old_subject_code, old_subject_name,
	course_id, program_id, similarity_percentage, source, created_by, created_at`

type template3Repository struct {
	db *sqlx.DB
}

var _ template3.Repository = (*template3Repository)(nil) // interface compliance check

func NewTemplate3Repository(db *sqlx.DB) *template3Repository {
	return &template3Repository{db: db}
}

func (repo *template3Repository) CreateTemplate3(ctx context.Context, t template3.Template3) (template3.Template3, error) {
	q, args, err := repo.db.BindNamed(`
		INSERT INTO template3 (old_campus_id, old_campus_name, old_programme_name, old_subject_code, old_subject_name,
			course_id, program_id, similarity_percentage, source, created_by, created_at)
		VALUES (:old_campus_id, :old_campus_name, :old_programme_name, :old_subject_code, :old_subject_name,
			:course_id, :program_id, :similarity_percentage, :source, :created_by, :created_at)
		RETURNING template3_id`, t)
	if err != nil {
		return template3.Template3{}, errors.Wrap(err, "binding template3")
	}
	if err = repo.db.GetContext(ctx, &t.ID, q, args...); err != nil {
		if isUniqueViolation(err) {
			return template3.Template3{}, template3.ErrExists
		}
		return template3.Template3{}, errors.Wrap(err, "inserting template3")
	}
	return t, nil
}

func (repo *template3Repository) QueryTemplate3(ctx context.Context, filter template3.QueryFilter) ([]template3.Template3, error) {
	w := new(where)
	if filter.OldCampusID != 0 {
		w.add("old_campus_id = ?", filter.OldCampusID)
	}
	if filter.OldCampusName != "" {
		w.add("lower(old_campus_name) = lower(?)", filter.OldCampusName)
	}
	if filter.OldProgrammeName != "" {
		w.add("lower(old_programme_name) = lower(?)", filter.OldProgrammeName)
	}
	switch {
	case filter.ProgramIDs != nil && filter.ProgramID != 0:
		w.add("(program_id = ANY(?) OR program_id = ?)", pq.Array(filter.ProgramIDs), filter.ProgramID)
	case filter.ProgramIDs != nil:
		w.add("program_id = ANY(?)", pq.Array(filter.ProgramIDs))
	case filter.ProgramID != 0:
		w.add("program_id = ?", filter.ProgramID)
	}
	if filter.CourseID != 0 {
		w.add("course_id = ?", filter.CourseID)
	}

	ts := make([]template3.Template3, 0)
	q := repo.db.Rebind("SELECT " + template3Columns + " FROM template3" + w.String() + " ORDER BY created_at DESC, template3_id DESC")
	if err := repo.db.SelectContext(ctx, &ts, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying template3")
	}
	return ts, nil
}
