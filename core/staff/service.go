package staff

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/cts/core"
	"github.com/trezcool/cts/core/program"
	"github.com/trezcool/cts/core/user"
)

var (
	// errors
	ErrLecturerNotFound   = core.NewNotFoundError("lecturer not found")
	ErrAssignmentNotFound = core.NewNotFoundError("staff role not found")
	ErrAlreadyAssigned    = core.NewConflictError("lecturer already holds this role")
	ErrAlreadyEnded       = core.NewConflictError("staff role already ended")
)

var NowFunc = time.Now // mockable

type (
	Service interface {
		CreateLecturer(ctx context.Context, nl NewLecturer) (Lecturer, error)
		Lecturers(ctx context.Context, campusID int) ([]Lecturer, error)
		LecturerByUser(ctx context.Context, userID string) (Lecturer, error)
		AssignRole(ctx context.Context, lecturerID int, ra RoleAssignment) (Assignment, error)
		EndRole(ctx context.Context, er EndRole) (Assignment, error)
		Overview(ctx context.Context, campusID int) (Overview, error)
		// CoordinatorProgramIDs returns the programs currently coordinated by the user.
		CoordinatorProgramIDs(ctx context.Context, userID string) ([]int, error)
		// SMEAssignments returns the user's active SME assignments.
		SMEAssignments(ctx context.Context, userID string) ([]Assignment, error)
		// ActiveSMEs returns the active SMEs of a course.
		ActiveSMEs(ctx context.Context, courseID int) ([]Assignment, error)
		Assignment(ctx context.Context, id int) (Assignment, error)
		// HOSCampusID returns the campus the user heads.
		HOSCampusID(ctx context.Context, userID string) (int, error)
	}

	service struct {
		repo    Repository
		usrSvc  user.Service
		progSvc program.Service
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, usrSvc user.Service, progSvc program.Service) Service {
	return &service{repo: repo, usrSvc: usrSvc, progSvc: progSvc}
}

func (svc *service) CreateLecturer(ctx context.Context, nl NewLecturer) (Lecturer, error) {
	usr, err := svc.usrSvc.Create(ctx, user.NewUser{
		Name:            nl.Name,
		Email:           nl.Email,
		Password:        nl.Password,
		PasswordConfirm: nl.Password,
	})
	if err != nil {
		return Lecturer{}, errors.Wrap(err, "creating lecturer account")
	}
	return svc.repo.CreateLecturer(ctx, Lecturer{
		UserID:   usr.ID,
		Name:     usr.Name,
		Email:    usr.Email,
		CampusID: nl.CampusID,
	})
}

func (svc *service) Lecturers(ctx context.Context, campusID int) ([]Lecturer, error) {
	return svc.repo.ListLecturers(ctx, campusID)
}

func (svc *service) LecturerByUser(ctx context.Context, userID string) (Lecturer, error) {
	return svc.repo.GetLecturer(ctx, LecturerFilter{UserID: userID})
}

func (svc *service) AssignRole(ctx context.Context, lecturerID int, ra RoleAssignment) (Assignment, error) {
	lect, err := svc.repo.GetLecturer(ctx, LecturerFilter{ID: lecturerID})
	if err != nil {
		return Assignment{}, err
	}
	start, end, err := ra.Dates(NowFunc())
	if err != nil {
		return Assignment{}, err
	}

	a := Assignment{
		RoleType:   ra.RoleType,
		LecturerID: lect.ID,
		StartDate:  start,
		EndDate:    end,
		Lecturer:   lect,
	}
	filter := AssignmentFilter{RoleType: ra.RoleType, LecturerID: lect.ID, ActiveOn: NowFunc()}
	switch ra.RoleType {
	case RoleTypeCoordinator:
		prog, err := svc.progSvc.Program(ctx, ra.ProgramID)
		if err != nil {
			return Assignment{}, invalidTarget(err, "program_id")
		}
		a.ProgramID, a.Program = prog.ID, &prog
		filter.ProgramID = prog.ID
	case RoleTypeSME:
		course, err := svc.progSvc.Course(ctx, ra.CourseID)
		if err != nil {
			return Assignment{}, invalidTarget(err, "course_id")
		}
		a.CourseID, a.Course = course.ID, &course
		filter.CourseID = course.ID
	case RoleTypeHOS:
		a.CampusID = lect.CampusID
		filter.CampusID = lect.CampusID
	}

	existing, err := svc.repo.ListAssignments(ctx, filter)
	if err != nil {
		return Assignment{}, errors.Wrap(err, "listing assignments")
	}
	if len(existing) > 0 {
		return Assignment{}, ErrAlreadyAssigned
	}

	created, err := svc.repo.CreateAssignment(ctx, a)
	if err != nil {
		return Assignment{}, errors.Wrap(err, "creating assignment")
	}
	created.Lecturer, created.Program, created.Course = lect, a.Program, a.Course

	if _, err = svc.usrSvc.GrantRole(ctx, lect.UserID, UserRole(ra.RoleType)); err != nil {
		return Assignment{}, errors.Wrap(err, "granting user role")
	}
	return created, nil
}

func invalidTarget(err error, field string) error {
	if core.IsNotFound(err) {
		return core.NewValidationError(nil, core.FieldError{Field: field, Error: err.Error()})
	}
	return err
}

func (svc *service) EndRole(ctx context.Context, er EndRole) (Assignment, error) {
	a, err := svc.repo.GetAssignment(ctx, er.RoleID)
	if err != nil {
		return Assignment{}, err
	}
	if a.RoleType != er.RoleType {
		return Assignment{}, ErrAssignmentNotFound
	}
	now := NowFunc()
	if !a.IsActive(now) && !truncateDay(a.StartDate).After(truncateDay(now)) {
		return Assignment{}, ErrAlreadyEnded
	}

	ended, err := svc.repo.EndAssignment(ctx, a.ID, truncateDay(now))
	if err != nil {
		return Assignment{}, errors.Wrap(err, "ending assignment")
	}

	// revoke the user role once no other assignment of this type is active
	remaining, err := svc.repo.ListAssignments(ctx, AssignmentFilter{RoleType: a.RoleType, LecturerID: a.LecturerID, ActiveOn: now})
	if err != nil {
		return Assignment{}, errors.Wrap(err, "listing assignments")
	}
	if len(remaining) == 0 {
		if _, err = svc.usrSvc.RevokeRole(ctx, ended.Lecturer.UserID, UserRole(a.RoleType)); err != nil {
			return Assignment{}, errors.Wrap(err, "revoking user role")
		}
	}
	return ended, nil
}

func (svc *service) Overview(ctx context.Context, campusID int) (Overview, error) {
	all, err := svc.repo.ListAssignments(ctx, AssignmentFilter{ActiveOn: NowFunc()})
	if err != nil {
		return Overview{}, errors.Wrap(err, "listing assignments")
	}
	ov := Overview{
		Coordinators:         []Assignment{},
		SubjectMethodExperts: []Assignment{},
		HeadOfSections:       []Assignment{},
	}
	for _, a := range all {
		if campusID != 0 && a.Lecturer.CampusID != campusID {
			continue
		}
		if err = svc.hydrate(ctx, &a); err != nil {
			return Overview{}, err
		}
		switch a.RoleType {
		case RoleTypeCoordinator:
			ov.Coordinators = append(ov.Coordinators, a)
		case RoleTypeSME:
			ov.SubjectMethodExperts = append(ov.SubjectMethodExperts, a)
		case RoleTypeHOS:
			ov.HeadOfSections = append(ov.HeadOfSections, a)
		}
	}
	return ov, nil
}

func (svc *service) hydrate(ctx context.Context, a *Assignment) error {
	if a.ProgramID != 0 && a.Program == nil {
		prog, err := svc.progSvc.Program(ctx, a.ProgramID)
		if err != nil {
			return errors.Wrap(err, "getting program")
		}
		a.Program = &prog
	}
	if a.CourseID != 0 && a.Course == nil {
		course, err := svc.progSvc.Course(ctx, a.CourseID)
		if err != nil {
			return errors.Wrap(err, "getting course")
		}
		a.Course = &course
	}
	return nil
}

func (svc *service) CoordinatorProgramIDs(ctx context.Context, userID string) ([]int, error) {
	as, err := svc.repo.ListAssignments(ctx, AssignmentFilter{RoleType: RoleTypeCoordinator, UserID: userID, ActiveOn: NowFunc()})
	if err != nil {
		return nil, errors.Wrap(err, "listing assignments")
	}
	ids := make([]int, 0, len(as))
	for _, a := range as {
		if !core.IntsContain(ids, a.ProgramID) {
			ids = append(ids, a.ProgramID)
		}
	}
	return ids, nil
}

func (svc *service) SMEAssignments(ctx context.Context, userID string) ([]Assignment, error) {
	return svc.repo.ListAssignments(ctx, AssignmentFilter{RoleType: RoleTypeSME, UserID: userID, ActiveOn: NowFunc()})
}

func (svc *service) ActiveSMEs(ctx context.Context, courseID int) ([]Assignment, error) {
	as, err := svc.repo.ListAssignments(ctx, AssignmentFilter{RoleType: RoleTypeSME, CourseID: courseID, ActiveOn: NowFunc()})
	if err != nil {
		return nil, errors.Wrap(err, "listing assignments")
	}
	if as == nil {
		as = []Assignment{}
	}
	return as, nil
}

func (svc *service) Assignment(ctx context.Context, id int) (Assignment, error) {
	a, err := svc.repo.GetAssignment(ctx, id)
	if err != nil {
		return Assignment{}, err
	}
	if err = svc.hydrate(ctx, &a); err != nil {
		return Assignment{}, err
	}
	return a, nil
}

func (svc *service) HOSCampusID(ctx context.Context, userID string) (int, error) {
	as, err := svc.repo.ListAssignments(ctx, AssignmentFilter{RoleType: RoleTypeHOS, UserID: userID, ActiveOn: NowFunc()})
	if err != nil {
		return 0, errors.Wrap(err, "listing assignments")
	}
	if len(as) == 0 {
		return 0, ErrAssignmentNotFound
	}
	return as[0].CampusID, nil
}
