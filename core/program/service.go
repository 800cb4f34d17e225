package program

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/cts/core"
)

var (
	// errors
	ErrNotFound          = core.NewNotFoundError("program not found")
	ErrCourseNotFound    = core.NewNotFoundError("course not found")
	ErrStructureNotFound = core.NewNotFoundError("program structure not found")
	ErrOldCampusNotFound = core.NewNotFoundError("previous institution not found")
)

const structuresFolder = "program-structures"

type (
	Service interface {
		StaticData(ctx context.Context, campusID int) (StaticData, error)
		Programs(ctx context.Context, filter ProgramFilter) ([]Program, error)
		Program(ctx context.Context, id int) (Program, error)
		Courses(ctx context.Context, programID int) ([]Course, error)
		Course(ctx context.Context, id int) (Course, error)
		OldCampusByName(ctx context.Context, name string) (OldCampus, error)
		Structures(ctx context.Context, programIDs []int) ([]Structure, error)
		UploadStructure(ctx context.Context, programID int, uploadedBy string, upload core.Upload) (Structure, error)
		ReplaceCourses(ctx context.Context, structureID int, ncs NewCourses) (Structure, error)
		Seed(ctx context.Context, seed Seed) error
	}

	service struct {
		repo    Repository
		storage core.FileStorage
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, storage core.FileStorage) Service {
	return &service{repo: repo, storage: storage}
}

func (svc *service) StaticData(ctx context.Context, campusID int) (StaticData, error) {
	var data StaticData
	var err error

	if data.Campuses, err = svc.repo.ListCampuses(ctx); err != nil {
		return StaticData{}, errors.Wrap(err, "listing campuses")
	}
	if data.Programs, err = svc.repo.ListPrograms(ctx, ProgramFilter{CampusID: campusID}); err != nil {
		return StaticData{}, errors.Wrap(err, "listing programs")
	}
	if data.OldCampuses, err = svc.repo.ListOldCampuses(ctx); err != nil {
		return StaticData{}, errors.Wrap(err, "listing old campuses")
	}
	return data, nil
}

func (svc *service) Programs(ctx context.Context, filter ProgramFilter) ([]Program, error) {
	filter.Name = core.CleanString(filter.Name)
	filter.Code = core.CleanString(filter.Code)
	return svc.repo.ListPrograms(ctx, filter)
}

func (svc *service) Program(ctx context.Context, id int) (Program, error) {
	return svc.repo.GetProgram(ctx, id)
}

func (svc *service) Courses(ctx context.Context, programID int) ([]Course, error) {
	return svc.repo.ListCourses(ctx, programID)
}

func (svc *service) Course(ctx context.Context, id int) (Course, error) {
	return svc.repo.GetCourse(ctx, id)
}

func (svc *service) OldCampusByName(ctx context.Context, name string) (OldCampus, error) {
	return svc.repo.GetOldCampusByName(ctx, core.CleanString(name))
}

func (svc *service) Structures(ctx context.Context, programIDs []int) ([]Structure, error) {
	sts, err := svc.repo.ListStructures(ctx, programIDs)
	if err != nil {
		return nil, errors.Wrap(err, "listing structures")
	}
	for i := range sts {
		if err = svc.hydrate(ctx, &sts[i]); err != nil {
			return nil, err
		}
	}
	return sts, nil
}

func (svc *service) hydrate(ctx context.Context, st *Structure) error {
	prog, err := svc.repo.GetProgram(ctx, st.ProgramID)
	if err != nil {
		return errors.Wrap(err, "getting program")
	}
	st.Program = &prog
	if st.Courses, err = svc.repo.ListCourses(ctx, st.ProgramID); err != nil {
		return errors.Wrap(err, "listing courses")
	}
	return nil
}

func (svc *service) UploadStructure(ctx context.Context, programID int, uploadedBy string, upload core.Upload) (Structure, error) {
	if _, err := svc.repo.GetProgram(ctx, programID); err != nil {
		return Structure{}, err
	}
	if !strings.EqualFold(upload.ContentType, "application/pdf") && !strings.HasSuffix(strings.ToLower(upload.Filename), ".pdf") {
		return Structure{}, core.NewValidationError(nil, core.FieldError{Field: "file", Error: "only PDF documents are accepted"})
	}

	key, err := svc.storage.Save(ctx, structuresFolder, upload)
	if err != nil {
		return Structure{}, errors.Wrap(err, "saving structure document")
	}
	st, err := svc.repo.CreateStructure(ctx, Structure{
		ProgramID:  programID,
		FilePath:   key,
		UploadedBy: uploadedBy,
		CreatedAt:  time.Now().UTC(),
	})
	if err != nil {
		return Structure{}, errors.Wrap(err, "creating structure")
	}
	if err = svc.hydrate(ctx, &st); err != nil {
		return Structure{}, err
	}
	return st, nil
}

func (svc *service) ReplaceCourses(ctx context.Context, structureID int, ncs NewCourses) (Structure, error) {
	st, err := svc.repo.GetStructure(ctx, structureID)
	if err != nil {
		return Structure{}, err
	}
	courses := make([]Course, 0, len(ncs.Courses))
	for _, nc := range ncs.Courses {
		courses = append(courses, Course{
			ProgramID: st.ProgramID,
			Code:      nc.Code,
			Name:      nc.Name,
			Credit:    nc.Credit,
		})
	}
	if _, err = svc.repo.ReplaceCourses(ctx, st.ProgramID, courses); err != nil {
		return Structure{}, errors.Wrap(err, "replacing courses")
	}
	if err = svc.hydrate(ctx, &st); err != nil {
		return Structure{}, err
	}
	return st, nil
}

// Seed creates the given static data, skipping campuses & institutions that already exist by name.
func (svc *service) Seed(ctx context.Context, seed Seed) error {
	campuses, err := svc.repo.ListCampuses(ctx)
	if err != nil {
		return errors.Wrap(err, "listing campuses")
	}
	campusIDs := make(map[int]int, len(seed.Campuses)) // seed ID -> ID
	for _, c := range seed.Campuses {
		var found bool
		for _, existing := range campuses {
			if strings.EqualFold(existing.Name, c.Name) {
				campusIDs[c.ID], found = existing.ID, true
				break
			}
		}
		if !found {
			created, err := svc.repo.CreateCampus(ctx, Campus{Name: c.Name})
			if err != nil {
				return errors.Wrap(err, "creating campus")
			}
			campusIDs[c.ID] = created.ID
		}
	}

	for _, oc := range seed.OldCampuses {
		if _, err := svc.repo.GetOldCampusByName(ctx, oc.Name); err == nil {
			continue
		} else if errors.Cause(err) != ErrOldCampusNotFound {
			return errors.Wrap(err, "getting old campus")
		}
		if _, err := svc.repo.CreateOldCampus(ctx, OldCampus{Name: oc.Name}); err != nil {
			return errors.Wrap(err, "creating old campus")
		}
	}

	for _, p := range seed.Programs {
		campusID := campusIDs[p.CampusID]
		existing, err := svc.repo.ListPrograms(ctx, ProgramFilter{CampusID: campusID, Code: p.Code})
		if err != nil {
			return errors.Wrap(err, "listing programs")
		}
		prog := Program{Code: p.Code, Name: p.Name, CampusID: campusID}
		if len(existing) > 0 {
			prog = existing[0]
		} else if prog, err = svc.repo.CreateProgram(ctx, prog); err != nil {
			return errors.Wrap(err, "creating program")
		}

		var courses []Course
		for _, c := range seed.Courses {
			if c.ProgramID == p.ID {
				c.ProgramID = prog.ID
				courses = append(courses, c)
			}
		}
		if len(courses) > 0 {
			if _, err = svc.repo.ReplaceCourses(ctx, prog.ID, courses); err != nil {
				return errors.Wrap(err, "creating courses")
			}
		}
	}
	return nil
}
