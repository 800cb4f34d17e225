package sqlxrepos

import (
	"context"
	"encoding/json"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/cts/core/application"
)

const (
	applicationColumns = `ct_id, ct_reference, student_id, program_id, prev_campus_name, prev_programme_name,
	transcript_path, ct_status, ct_notes, created_at, updated_at, submitted_at`
	subjectColumns     = "application_subject_id, ct_id, course_id, application_subject_name, sme_id, coordinator_notes"
	pastSubjectColumns = `past_subject_id, application_subject_id, past_subject_code, past_subject_name, past_subject_grade,
	syllabus_path, approval_status, similarity_percentage, sme_review_notes, template3_id, topics_comparison`
)

type pastSubjectRow struct {
	application.PastSubject
	Topics null.JSON `db:"topics_comparison"`
}

func (r pastSubjectRow) pastSubject() (application.PastSubject, error) {
	ps := r.PastSubject
	if r.Topics.Valid {
		if err := json.Unmarshal(r.Topics.JSON, &ps.TopicsComparison); err != nil {
			return application.PastSubject{}, errors.Wrap(err, "decoding topics comparison")
		}
	}
	return ps, nil
}

func topicsJSON(ps application.PastSubject) (null.JSON, error) {
	if ps.TopicsComparison == nil {
		return null.JSON{}, nil
	}
	raw, err := json.Marshal(ps.TopicsComparison)
	if err != nil {
		return null.JSON{}, errors.Wrap(err, "encoding topics comparison")
	}
	return null.JSONFrom(raw), nil
}

type applicationRepository struct {
	db *sqlx.DB
}

var _ application.Repository = (*applicationRepository)(nil) // interface compliance check

func NewApplicationRepository(db *sqlx.DB) *applicationRepository {
	return &applicationRepository{db: db}
}

func (repo *applicationRepository) CreateApplication(ctx context.Context, a application.Application) (application.Application, error) {
	err := withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		q, args, err := tx.BindNamed(`
			INSERT INTO ct_applications (ct_reference, student_id, program_id, prev_campus_name, prev_programme_name,
				transcript_path, ct_status, ct_notes, created_at, updated_at, submitted_at)
			VALUES (:ct_reference, :student_id, :program_id, :prev_campus_name, :prev_programme_name,
				:transcript_path, :ct_status, :ct_notes, :created_at, :updated_at, :submitted_at)
			RETURNING ct_id`, a)
		if err != nil {
			return errors.Wrap(err, "binding application")
		}
		if err = tx.GetContext(ctx, &a.ID, q, args...); err != nil {
			return errors.Wrap(err, "inserting application")
		}
		return insertSubjects(ctx, tx, &a)
	})
	if err != nil {
		return application.Application{}, err
	}
	return a, nil
}

func (repo *applicationRepository) ReplaceApplication(ctx context.Context, a application.Application) (application.Application, error) {
	err := withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		res, err := tx.NamedExecContext(ctx, `
			UPDATE ct_applications SET
				program_id = :program_id, prev_campus_name = :prev_campus_name, prev_programme_name = :prev_programme_name,
				transcript_path = :transcript_path, ct_status = :ct_status, ct_notes = :ct_notes,
				updated_at = :updated_at, submitted_at = :submitted_at
			WHERE ct_id = :ct_id`, a)
		if err != nil {
			return errors.Wrap(err, "updating application")
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return application.ErrNotFound
		}
		// past subjects cascade
		if _, err = tx.ExecContext(ctx, "DELETE FROM application_subjects WHERE ct_id = $1", a.ID); err != nil {
			return errors.Wrap(err, "deleting subjects")
		}
		return insertSubjects(ctx, tx, &a)
	})
	if err != nil {
		return application.Application{}, err
	}
	return a, nil
}

func insertSubjects(ctx context.Context, tx *sqlx.Tx, a *application.Application) error {
	for i := range a.Subjects {
		s := &a.Subjects[i]
		s.ApplicationID = a.ID
		err := tx.GetContext(ctx, &s.ID, `
			INSERT INTO application_subjects (ct_id, course_id, application_subject_name, sme_id, coordinator_notes)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING application_subject_id`,
			s.ApplicationID, s.CourseID, s.Name, s.SMEID, s.CoordinatorNotes)
		if err != nil {
			return errors.Wrap(err, "inserting subject")
		}

		for j := range s.PastSubjects {
			ps := &s.PastSubjects[j]
			ps.SubjectID = s.ID
			topics, err := topicsJSON(*ps)
			if err != nil {
				return err
			}
			err = tx.GetContext(ctx, &ps.ID, `
				INSERT INTO past_subjects (application_subject_id, past_subject_code, past_subject_name, past_subject_grade,
					syllabus_path, approval_status, similarity_percentage, sme_review_notes, template3_id, topics_comparison)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
				RETURNING past_subject_id`,
				ps.SubjectID, ps.Code, ps.Name, ps.Grade, ps.SyllabusPath, ps.ApprovalStatus,
				ps.SimilarityPercentage, ps.SMEReviewNotes, ps.Template3ID, topics)
			if err != nil {
				return errors.Wrap(err, "inserting past subject")
			}
		}
	}
	return nil
}

func (repo *applicationRepository) GetApplication(ctx context.Context, id int) (application.Application, error) {
	var a application.Application
	if err := repo.db.GetContext(ctx, &a, "SELECT "+applicationColumns+" FROM ct_applications WHERE ct_id = $1", id); err != nil {
		return application.Application{}, trapNoRowsErr(err, application.ErrNotFound, "getting application")
	}
	apps := []application.Application{a}
	if err := repo.loadSubjects(ctx, apps); err != nil {
		return application.Application{}, err
	}
	return apps[0], nil
}

func (repo *applicationRepository) QueryApplications(ctx context.Context, filter application.QueryFilter) ([]application.Application, error) {
	w := new(where)
	if filter.StudentID != "" {
		w.add("student_id = ?", filter.StudentID)
	}
	if filter.ProgramIDs != nil {
		w.add("program_id = ANY(?)", pq.Array(filter.ProgramIDs))
	}
	if len(filter.Statuses) > 0 {
		w.add("ct_status = ANY(?)", pq.Array(filter.Statuses))
	}
	if filter.ExcludeDrafts {
		w.add("ct_status <> ?", application.StatusDraft)
	}

	apps := make([]application.Application, 0)
	q := repo.db.Rebind("SELECT " + applicationColumns + " FROM ct_applications" + w.String() + " ORDER BY created_at DESC, ct_id DESC")
	if err := repo.db.SelectContext(ctx, &apps, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying applications")
	}
	if err := repo.loadSubjects(ctx, apps); err != nil {
		return nil, err
	}
	return apps, nil
}

// loadSubjects sets the subjects & past subjects of `apps`.
func (repo *applicationRepository) loadSubjects(ctx context.Context, apps []application.Application) error {
	if len(apps) == 0 {
		return nil
	}
	ids := make([]int, 0, len(apps))
	for _, a := range apps {
		ids = append(ids, a.ID)
	}

	var subjects []application.Subject
	err := repo.db.SelectContext(ctx, &subjects,
		"SELECT "+subjectColumns+" FROM application_subjects WHERE ct_id = ANY($1) ORDER BY application_subject_id", pq.Array(ids))
	if err != nil {
		return errors.Wrap(err, "listing subjects")
	}
	if err = repo.loadPastSubjects(ctx, subjects); err != nil {
		return err
	}

	byApp := make(map[int][]application.Subject, len(apps))
	for _, s := range subjects {
		byApp[s.ApplicationID] = append(byApp[s.ApplicationID], s)
	}
	for i := range apps {
		apps[i].Subjects = byApp[apps[i].ID]
		if apps[i].Subjects == nil {
			apps[i].Subjects = []application.Subject{}
		}
	}
	return nil
}

func (repo *applicationRepository) loadPastSubjects(ctx context.Context, subjects []application.Subject) error {
	if len(subjects) == 0 {
		return nil
	}
	ids := make([]int, 0, len(subjects))
	for _, s := range subjects {
		ids = append(ids, s.ID)
	}

	var rows []pastSubjectRow
	err := repo.db.SelectContext(ctx, &rows,
		"SELECT "+pastSubjectColumns+" FROM past_subjects WHERE application_subject_id = ANY($1) ORDER BY past_subject_id", pq.Array(ids))
	if err != nil {
		return errors.Wrap(err, "listing past subjects")
	}
	bySubject := make(map[int][]application.PastSubject, len(subjects))
	for _, r := range rows {
		ps, err := r.pastSubject()
		if err != nil {
			return err
		}
		bySubject[ps.SubjectID] = append(bySubject[ps.SubjectID], ps)
	}
	for i := range subjects {
		subjects[i].PastSubjects = bySubject[subjects[i].ID]
		if subjects[i].PastSubjects == nil {
			subjects[i].PastSubjects = []application.PastSubject{}
		}
	}
	return nil
}

func (repo *applicationRepository) UpdateApplication(ctx context.Context, a application.Application) (application.Application, error) {
	res, err := repo.db.NamedExecContext(ctx, `
		UPDATE ct_applications SET
			ct_status = :ct_status, ct_notes = :ct_notes, updated_at = :updated_at, submitted_at = :submitted_at
		WHERE ct_id = :ct_id`, a)
	if err != nil {
		return application.Application{}, errors.Wrap(err, "updating application")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return application.Application{}, application.ErrNotFound
	}
	return a, nil
}

func (repo *applicationRepository) GetSubject(ctx context.Context, id int) (application.Subject, error) {
	var s application.Subject
	if err := repo.db.GetContext(ctx, &s, "SELECT "+subjectColumns+" FROM application_subjects WHERE application_subject_id = $1", id); err != nil {
		return application.Subject{}, trapNoRowsErr(err, application.ErrSubjectNotFound, "getting subject")
	}
	subjects := []application.Subject{s}
	if err := repo.loadPastSubjects(ctx, subjects); err != nil {
		return application.Subject{}, err
	}
	return subjects[0], nil
}

func (repo *applicationRepository) QuerySubjects(ctx context.Context, filter application.SubjectFilter) ([]application.Subject, error) {
	w := new(where)
	if filter.SMEIDs != nil {
		w.add("sme_id = ANY(?)", pq.Array(filter.SMEIDs))
	}
	subjects := make([]application.Subject, 0)
	q := repo.db.Rebind("SELECT " + subjectColumns + " FROM application_subjects" + w.String() + " ORDER BY application_subject_id DESC")
	if err := repo.db.SelectContext(ctx, &subjects, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying subjects")
	}
	if err := repo.loadPastSubjects(ctx, subjects); err != nil {
		return nil, err
	}
	return subjects, nil
}

func (repo *applicationRepository) UpdateSubject(ctx context.Context, s application.Subject) (application.Subject, error) {
	res, err := repo.db.ExecContext(ctx, `
		UPDATE application_subjects SET sme_id = $1, coordinator_notes = $2
		WHERE application_subject_id = $3`,
		s.SMEID, s.CoordinatorNotes, s.ID)
	if err != nil {
		return application.Subject{}, errors.Wrap(err, "updating subject")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return application.Subject{}, application.ErrSubjectNotFound
	}
	return s, nil
}

func (repo *applicationRepository) GetPastSubject(ctx context.Context, id int) (application.PastSubject, error) {
	var row pastSubjectRow
	if err := repo.db.GetContext(ctx, &row, "SELECT "+pastSubjectColumns+" FROM past_subjects WHERE past_subject_id = $1", id); err != nil {
		return application.PastSubject{}, trapNoRowsErr(err, application.ErrPastSubjectNotFound, "getting past subject")
	}
	return row.pastSubject()
}

func (repo *applicationRepository) UpdatePastSubject(ctx context.Context, ps application.PastSubject) (application.PastSubject, error) {
	topics, err := topicsJSON(ps)
	if err != nil {
		return application.PastSubject{}, err
	}
	res, err := repo.db.ExecContext(ctx, `
		UPDATE past_subjects SET
			approval_status = $1, similarity_percentage = $2, sme_review_notes = $3, template3_id = $4, topics_comparison = $5
		WHERE past_subject_id = $6`,
		ps.ApprovalStatus, ps.SimilarityPercentage, ps.SMEReviewNotes, ps.Template3ID, topics, ps.ID)
	if err != nil {
		return application.PastSubject{}, errors.Wrap(err, "updating past subject")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return application.PastSubject{}, application.ErrPastSubjectNotFound
	}
	return ps, nil
}
