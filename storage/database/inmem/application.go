package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/cts/core"
	"github.com/trezcool/cts/core/application"
	"github.com/trezcool/cts/core/review"
)

type applicationRepository struct {
	db *DB
}

var _ application.Repository = (*applicationRepository)(nil) // interface compliance check

func NewApplicationRepository(db *DB) *applicationRepository {
	return &applicationRepository{db: db}
}

func copyTopics(tcs []review.TopicComparison) []review.TopicComparison {
	if tcs == nil {
		return nil
	}
	cp := make([]review.TopicComparison, len(tcs))
	for i, tc := range tcs {
		tc.PastSubjectTopics = append([]review.PastTopic(nil), tc.PastSubjectTopics...)
		cp[i] = tc
	}
	return cp
}

func (repo *applicationRepository) storePastSubject(ps application.PastSubject) {
	ps.TopicsComparison = copyTopics(ps.TopicsComparison)
	repo.db.pastSubjects[ps.ID] = ps
}

func (repo *applicationRepository) storeSubject(s application.Subject) {
	s.Course, s.PastSubjects = nil, nil
	repo.db.subjects[s.ID] = s
}

func (repo *applicationRepository) storeApplication(a application.Application) {
	a.Student, a.Program, a.Subjects = nil, nil, nil
	repo.db.applications[a.ID] = a
}

func (repo *applicationRepository) insertSubjects(a *application.Application) {
	for i := range a.Subjects {
		s := &a.Subjects[i]
		s.ID = repo.db.nextID("application_subjects")
		s.ApplicationID = a.ID
		for j := range s.PastSubjects {
			ps := &s.PastSubjects[j]
			ps.ID = repo.db.nextID("past_subjects")
			ps.SubjectID = s.ID
			repo.storePastSubject(*ps)
		}
		repo.storeSubject(*s)
	}
}

func (repo *applicationRepository) deleteSubjects(applicationID int) {
	for id, s := range repo.db.subjects {
		if s.ApplicationID != applicationID {
			continue
		}
		for psID, ps := range repo.db.pastSubjects {
			if ps.SubjectID == id {
				delete(repo.db.pastSubjects, psID)
			}
		}
		for key := range repo.db.drafts {
			if key.subjectID == id {
				delete(repo.db.drafts, key)
			}
		}
		delete(repo.db.subjects, id)
	}
}

func (repo *applicationRepository) CreateApplication(_ context.Context, a application.Application) (application.Application, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	a.ID = repo.db.nextID("ct_applications")
	repo.insertSubjects(&a)
	repo.storeApplication(a)
	return a, nil
}

func (repo *applicationRepository) ReplaceApplication(_ context.Context, a application.Application) (application.Application, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	stored, ok := repo.db.applications[a.ID]
	if !ok {
		return application.Application{}, application.ErrNotFound
	}
	a.Reference, a.StudentID, a.CreatedAt = stored.Reference, stored.StudentID, stored.CreatedAt
	repo.deleteSubjects(a.ID)
	repo.insertSubjects(&a)
	repo.storeApplication(a)
	return a, nil
}

// subjects returns the subjects of an application with their past subjects, by ID.
func (repo *applicationRepository) subjects(applicationID int) []application.Subject {
	subjects := make([]application.Subject, 0)
	for _, s := range repo.db.subjects {
		if s.ApplicationID == applicationID {
			subjects = append(subjects, repo.withPastSubjects(s))
		}
	}
	sort.Slice(subjects, func(i, j int) bool { return subjects[i].ID < subjects[j].ID })
	return subjects
}

func (repo *applicationRepository) withPastSubjects(s application.Subject) application.Subject {
	s.PastSubjects = make([]application.PastSubject, 0)
	for _, ps := range repo.db.pastSubjects {
		if ps.SubjectID == s.ID {
			ps.TopicsComparison = copyTopics(ps.TopicsComparison)
			s.PastSubjects = append(s.PastSubjects, ps)
		}
	}
	sort.Slice(s.PastSubjects, func(i, j int) bool { return s.PastSubjects[i].ID < s.PastSubjects[j].ID })
	return s
}

func (repo *applicationRepository) GetApplication(_ context.Context, id int) (application.Application, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	a, ok := repo.db.applications[id]
	if !ok {
		return application.Application{}, application.ErrNotFound
	}
	a.Subjects = repo.subjects(a.ID)
	return a, nil
}

func (repo *applicationRepository) QueryApplications(_ context.Context, filter application.QueryFilter) ([]application.Application, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	apps := make([]application.Application, 0)
	for _, a := range repo.db.applications {
		switch {
		case filter.StudentID != "" && a.StudentID != filter.StudentID,
			filter.ProgramIDs != nil && !core.IntsContain(filter.ProgramIDs, a.ProgramID),
			len(filter.Statuses) > 0 && !stringsContain(filter.Statuses, a.Status),
			filter.ExcludeDrafts && a.Status == application.StatusDraft:
			continue
		}
		a.Subjects = repo.subjects(a.ID)
		apps = append(apps, a)
	}
	sort.Slice(apps, func(i, j int) bool {
		if !apps[i].CreatedAt.Equal(apps[j].CreatedAt) {
			return apps[i].CreatedAt.After(apps[j].CreatedAt)
		}
		return apps[i].ID > apps[j].ID
	})
	return apps, nil
}

func (repo *applicationRepository) UpdateApplication(_ context.Context, a application.Application) (application.Application, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	stored, ok := repo.db.applications[a.ID]
	if !ok {
		return application.Application{}, application.ErrNotFound
	}
	stored.Status, stored.Notes, stored.UpdatedAt, stored.SubmittedAt = a.Status, a.Notes, a.UpdatedAt, a.SubmittedAt
	repo.db.applications[a.ID] = stored
	return a, nil
}

func (repo *applicationRepository) GetSubject(_ context.Context, id int) (application.Subject, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	s, ok := repo.db.subjects[id]
	if !ok {
		return application.Subject{}, application.ErrSubjectNotFound
	}
	return repo.withPastSubjects(s), nil
}

func (repo *applicationRepository) QuerySubjects(_ context.Context, filter application.SubjectFilter) ([]application.Subject, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	subjects := make([]application.Subject, 0)
	for _, s := range repo.db.subjects {
		if filter.SMEIDs != nil && (s.SMEID == nil || !core.IntsContain(filter.SMEIDs, *s.SMEID)) {
			continue
		}
		subjects = append(subjects, repo.withPastSubjects(s))
	}
	sort.Slice(subjects, func(i, j int) bool { return subjects[i].ID > subjects[j].ID })
	return subjects, nil
}

func (repo *applicationRepository) UpdateSubject(_ context.Context, s application.Subject) (application.Subject, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	stored, ok := repo.db.subjects[s.ID]
	if !ok {
		return application.Subject{}, application.ErrSubjectNotFound
	}
	stored.SMEID, stored.CoordinatorNotes = s.SMEID, s.CoordinatorNotes
	repo.db.subjects[s.ID] = stored
	return s, nil
}

func (repo *applicationRepository) GetPastSubject(_ context.Context, id int) (application.PastSubject, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	ps, ok := repo.db.pastSubjects[id]
	if !ok {
		return application.PastSubject{}, application.ErrPastSubjectNotFound
	}
	ps.TopicsComparison = copyTopics(ps.TopicsComparison)
	return ps, nil
}

func (repo *applicationRepository) UpdatePastSubject(_ context.Context, ps application.PastSubject) (application.PastSubject, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	stored, ok := repo.db.pastSubjects[ps.ID]
	if !ok {
		return application.PastSubject{}, application.ErrPastSubjectNotFound
	}
	stored.ApprovalStatus = ps.ApprovalStatus
	stored.SimilarityPercentage = ps.SimilarityPercentage
	stored.SMEReviewNotes = ps.SMEReviewNotes
	stored.Template3ID = ps.Template3ID
	stored.TopicsComparison = ps.TopicsComparison
	repo.storePastSubject(stored)
	return ps, nil
}
