package application

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/cts/core/program"
	"github.com/trezcool/cts/core/user"
)

// hydrator attaches students, programs & courses to applications, fetching each of them once.
type hydrator struct {
	svc      *service
	students map[string]*StudentInfo
	programs map[int]*program.Program
	courses  map[int]*program.Course
}

func (svc *service) newHydrator() *hydrator {
	return &hydrator{
		svc:      svc,
		students: make(map[string]*StudentInfo),
		programs: make(map[int]*program.Program),
		courses:  make(map[int]*program.Course),
	}
}

func (svc *service) hydrate(ctx context.Context, apps []Application) ([]Application, error) {
	h := svc.newHydrator()
	for i := range apps {
		if err := h.application(ctx, &apps[i]); err != nil {
			return nil, err
		}
	}
	if apps == nil {
		apps = []Application{}
	}
	return apps, nil
}

func (h *hydrator) student(ctx context.Context, id string) (*StudentInfo, error) {
	if st, ok := h.students[id]; ok {
		return st, nil
	}
	usr, err := h.svc.usrSvc.GetByID(ctx, id)
	if err != nil && errors.Cause(err) != user.ErrNotFound {
		return nil, errors.Wrap(err, "getting student")
	}
	st := &StudentInfo{Name: usr.Name, Email: usr.Email}
	h.students[id] = st
	return st, nil
}

func (h *hydrator) application(ctx context.Context, app *Application) error {
	var err error
	if app.Student, err = h.student(ctx, app.StudentID); err != nil {
		return err
	}
	prog, ok := h.programs[app.ProgramID]
	if !ok {
		p, err := h.svc.progSvc.Program(ctx, app.ProgramID)
		if err != nil {
			return errors.Wrap(err, "getting program")
		}
		prog = &p
		h.programs[p.ID] = prog
	}
	app.Program = prog

	if app.Subjects == nil {
		app.Subjects = []Subject{}
	}
	for i := range app.Subjects {
		if err = h.subject(ctx, &app.Subjects[i]); err != nil {
			return err
		}
	}
	return nil
}

func (h *hydrator) subject(ctx context.Context, subj *Subject) error {
	course, ok := h.courses[subj.CourseID]
	if !ok {
		c, err := h.svc.progSvc.Course(ctx, subj.CourseID)
		if err != nil {
			return errors.Wrap(err, "getting course")
		}
		course = &c
		h.courses[c.ID] = course
	}
	subj.Course = course
	if subj.PastSubjects == nil {
		subj.PastSubjects = []PastSubject{}
	}
	return nil
}

func (h *hydrator) summary(ctx context.Context, app Application) (AssignmentApplication, error) {
	st, err := h.student(ctx, app.StudentID)
	if err != nil {
		return AssignmentApplication{}, err
	}
	return AssignmentApplication{
		ID:                app.ID,
		Reference:         app.Reference,
		Status:            app.Status,
		PrevCampusName:    app.PrevCampusName,
		PrevProgrammeName: app.PrevProgrammeName,
		Student:           st,
	}, nil
}
