package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/trezcool/cts/core"
	"github.com/trezcool/cts/core/program"
)

type programRepository struct {
	db *DB
}

var _ program.Repository = (*programRepository)(nil) // interface compliance check

func NewProgramRepository(db *DB) *programRepository {
	return &programRepository{db: db}
}

func (repo *programRepository) ListCampuses(_ context.Context) ([]program.Campus, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	campuses := make([]program.Campus, 0, len(repo.db.campuses))
	for _, c := range repo.db.campuses {
		campuses = append(campuses, c)
	}
	sort.Slice(campuses, func(i, j int) bool { return campuses[i].Name < campuses[j].Name })
	return campuses, nil
}

func (repo *programRepository) CreateCampus(_ context.Context, c program.Campus) (program.Campus, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	c.ID = repo.db.nextID("campuses")
	repo.db.campuses[c.ID] = c
	return c, nil
}

func (repo *programRepository) ListOldCampuses(_ context.Context) ([]program.OldCampus, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	ocs := make([]program.OldCampus, 0, len(repo.db.oldCampuses))
	for _, oc := range repo.db.oldCampuses {
		ocs = append(ocs, oc)
	}
	sort.Slice(ocs, func(i, j int) bool { return ocs[i].Name < ocs[j].Name })
	return ocs, nil
}

func (repo *programRepository) GetOldCampusByName(_ context.Context, name string) (program.OldCampus, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	for _, oc := range repo.db.oldCampuses {
		if strings.EqualFold(oc.Name, name) {
			return oc, nil
		}
	}
	return program.OldCampus{}, program.ErrOldCampusNotFound
}

func (repo *programRepository) CreateOldCampus(_ context.Context, oc program.OldCampus) (program.OldCampus, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	oc.ID = repo.db.nextID("old_campuses")
	repo.db.oldCampuses[oc.ID] = oc
	return oc, nil
}

func (repo *programRepository) ListPrograms(_ context.Context, filter program.ProgramFilter) ([]program.Program, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	progs := make([]program.Program, 0)
	for _, p := range repo.db.programs {
		if filter.IDs != nil && !core.IntsContain(filter.IDs, p.ID) {
			continue
		}
		if filter.CampusID != 0 && p.CampusID != filter.CampusID {
			continue
		}
		if filter.Name != "" && !strings.EqualFold(p.Name, filter.Name) {
			continue
		}
		if filter.Code != "" && !strings.EqualFold(p.Code, filter.Code) {
			continue
		}
		progs = append(progs, p)
	}
	sort.Slice(progs, func(i, j int) bool { return progs[i].Name < progs[j].Name })
	return progs, nil
}

func (repo *programRepository) GetProgram(_ context.Context, id int) (program.Program, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	p, ok := repo.db.programs[id]
	if !ok {
		return program.Program{}, program.ErrNotFound
	}
	return p, nil
}

func (repo *programRepository) CreateProgram(_ context.Context, p program.Program) (program.Program, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	p.ID = repo.db.nextID("programs")
	repo.db.programs[p.ID] = p
	return p, nil
}

func (repo *programRepository) ListCourses(_ context.Context, programID int) ([]program.Course, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	return repo.listCourses(programID), nil
}

func (repo *programRepository) listCourses(programID int) []program.Course {
	courses := make([]program.Course, 0)
	for _, c := range repo.db.courses {
		if c.ProgramID == programID {
			courses = append(courses, c)
		}
	}
	sort.Slice(courses, func(i, j int) bool { return courses[i].Code < courses[j].Code })
	return courses
}

func (repo *programRepository) GetCourse(_ context.Context, id int) (program.Course, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	c, ok := repo.db.courses[id]
	if !ok {
		return program.Course{}, program.ErrCourseNotFound
	}
	return c, nil
}

func (repo *programRepository) ReplaceCourses(_ context.Context, programID int, courses []program.Course) ([]program.Course, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	existing := repo.listCourses(programID)
	for i := range courses {
		courses[i].ProgramID = programID
		courses[i].ID = 0
		for _, c := range existing {
			if c.Code == courses[i].Code {
				courses[i].ID = c.ID
				break
			}
		}
		if courses[i].ID == 0 {
			courses[i].ID = repo.db.nextID("courses")
		}
		repo.db.courses[courses[i].ID] = courses[i]
	}
	return courses, nil
}

func (repo *programRepository) CreateStructure(_ context.Context, st program.Structure) (program.Structure, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	st.ID = repo.db.nextID("program_structures")
	st.Program, st.Courses = nil, nil
	repo.db.structures[st.ID] = st
	return st, nil
}

func (repo *programRepository) GetStructure(_ context.Context, id int) (program.Structure, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	st, ok := repo.db.structures[id]
	if !ok {
		return program.Structure{}, program.ErrStructureNotFound
	}
	return st, nil
}

func (repo *programRepository) ListStructures(_ context.Context, programIDs []int) ([]program.Structure, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	sts := make([]program.Structure, 0)
	for _, st := range repo.db.structures {
		if programIDs != nil && !core.IntsContain(programIDs, st.ProgramID) {
			continue
		}
		sts = append(sts, st)
	}
	sort.Slice(sts, func(i, j int) bool { return sts[i].ID > sts[j].ID })
	return sts, nil
}
