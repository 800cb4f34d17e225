package application

import (
	"context"
	"fmt"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/cts/core"
	"github.com/trezcool/cts/core/program"
	"github.com/trezcool/cts/core/review"
	"github.com/trezcool/cts/core/staff"
	"github.com/trezcool/cts/core/template3"
	"github.com/trezcool/cts/core/user"
)

var (
	// errors
	ErrNotFound            = core.NewNotFoundError("credit transfer application not found")
	ErrSubjectNotFound     = core.NewNotFoundError("application subject not found")
	ErrPastSubjectNotFound = core.NewNotFoundError("past subject not found")
	ErrNotDraft            = core.NewConflictError("only draft applications can be edited")
	ErrInvalidTransition   = core.NewConflictError("application status cannot be changed that way")
	ErrNotReviewable       = core.NewConflictError("application is not under review")
	ErrAlreadyDecided      = core.NewConflictError("past subject already has a decision")
	ErrNoTemplate3Match    = core.NewConflictError("no Template3 entry matches this past subject")
	ErrCannotApproveAll    = core.NewConflictError("all past subjects must match Template3 with enough similarity to be approved at once")
	ErrNoSME               = core.NewConflictError("no active subject method expert for this course")
	ErrNothingToReview     = core.NewConflictError("no past subject is waiting for an SME review")
	ErrNotCoordinator      = core.NewPermissionError("you do not coordinate this program")
	ErrNotAssigned         = core.NewPermissionError("this subject is not assigned to you")
	ErrNoStudentProfile    = core.NewPermissionError("student profile not found")
)

const (
	transcriptsFolder = "transcripts"
	syllabiFolder     = "syllabi"
)

var NowFunc = time.Now // mockable

type (
	Service interface {
		// Student
		Apply(ctx context.Context, student user.User, form ApplyForm) (Application, error)
		ListMine(ctx context.Context, studentID string) ([]Application, error)

		// Coordinator
		ListForCoordinator(ctx context.Context, coordinator user.User, statuses ...string) ([]Application, error)
		// Inbox lists the coordinator's applications in `status`, "pending" meaning submitted.
		Inbox(ctx context.Context, coordinator user.User, status string) ([]Application, error)
		UpdateStatus(ctx context.Context, coordinator user.User, id int, us UpdateStatus) (Application, error)
		ReviewPastSubject(ctx context.Context, coordinator user.User, r PastSubjectReview) (PastSubjectResult, error)
		CheckCurrentSubject(ctx context.Context, coordinator user.User, c SubjectCheck) (SubjectCheckResult, error)

		// SME
		SMEAssignments(ctx context.Context, sme user.User) ([]SMEAssignment, error)
		SMESubject(ctx context.Context, sme user.User, subjectID int) (SubjectDetails, error)
		SubmitReview(ctx context.Context, sme user.User, subjectID int, r review.Review) (ReviewResult, error)
		SaveDraft(ctx context.Context, sme user.User, subjectID int, d review.Draft) (review.Draft, error)
		GetDraft(ctx context.Context, sme user.User, subjectID int) (review.Draft, error)
		DeleteDraft(ctx context.Context, sme user.User, subjectID int) error

		// HOS
		Summary(ctx context.Context, hos user.User) (Summary, error)
		ListForHOS(ctx context.Context, hos user.User, statuses ...string) ([]Application, error)
	}

	service struct {
		repo      Repository
		usrSvc    user.Service
		progSvc   program.Service
		staffSvc  staff.Service
		t3Svc     template3.Service
		draftSvc  review.DraftService
		storage   core.FileStorage
		mailSvc   core.EmailService
		publisher core.EventPublisher
		logger    core.Logger
		threshold float64
	}
)

var _ Service = (*service)(nil)

type Deps struct {
	Repo         Repository
	UserSvc      user.Service
	ProgramSvc   program.Service
	StaffSvc     staff.Service
	Template3Svc template3.Service
	DraftSvc     review.DraftService
	Storage      core.FileStorage
	MailSvc      core.EmailService
	Publisher    core.EventPublisher
	Logger       core.Logger
}

func NewService(deps Deps, conf *core.Config) Service {
	threshold := conf.Review.ApprovalThreshold
	if threshold <= 0 {
		threshold = review.DefaultThreshold
	}
	return &service{
		repo:      deps.Repo,
		usrSvc:    deps.UserSvc,
		progSvc:   deps.ProgramSvc,
		staffSvc:  deps.StaffSvc,
		t3Svc:     deps.Template3Svc,
		draftSvc:  deps.DraftSvc,
		storage:   deps.Storage,
		mailSvc:   deps.MailSvc,
		publisher: deps.Publisher,
		logger:    deps.Logger,
		threshold: threshold,
	}
}

// Events

type StatusEvent struct {
	ApplicationID int    `json:"ct_id"`
	Reference     string `json:"ct_reference"`
	From          string `json:"from"`
	To            string `json:"to"`
}

type SubjectEvent struct {
	ApplicationID  int    `json:"ct_id"`
	SubjectID      int    `json:"application_subject_id"`
	PastSubjectID  int    `json:"pastSubject_id"`
	ApprovalStatus string `json:"approval_status"`
}

func (svc *service) publish(ctx context.Context, topic string, event interface{}) {
	if err := svc.publisher.Publish(ctx, topic, event); err != nil {
		svc.logger.Warn(fmt.Sprintf("publishing %s: %v", topic, err), err)
	}
}

// Student

func (svc *service) Apply(ctx context.Context, student user.User, form ApplyForm) (Application, error) {
	profile, err := svc.usrSvc.GetStudent(ctx, student.ID)
	if err != nil {
		if core.IsNotFound(err) {
			return Application{}, ErrNoStudentProfile
		}
		return Application{}, errors.Wrap(err, "getting student profile")
	}

	now := NowFunc().UTC()
	app := Application{
		StudentID: student.ID,
		ProgramID: profile.ProgramID,
		Status:    StatusDraft,
		CreatedAt: now,
	}
	if form.DraftID != 0 {
		if app, err = svc.repo.GetApplication(ctx, form.DraftID); err != nil {
			return Application{}, err
		}
		if app.StudentID != student.ID {
			return Application{}, ErrNotFound
		}
		if app.Status != StatusDraft {
			return Application{}, ErrNotDraft
		}
	}

	app.PrevCampusName = form.PrevCampusName
	if app.PrevCampusName == "" {
		app.PrevCampusName = profile.OldCampusName
	}
	app.PrevProgrammeName = form.PrevProgrammeName
	if app.PrevProgrammeName == "" {
		app.PrevProgrammeName = profile.PrevProgrammeName
	}
	app.UpdatedAt = now

	subjects, err := svc.formSubjects(ctx, app, profile.ProgramID, form)
	if err != nil {
		return Application{}, err
	}
	app.Subjects = subjects

	if form.Transcript != nil {
		key, err := svc.storage.Save(ctx, transcriptsFolder, *form.Transcript)
		if err != nil {
			return Application{}, errors.Wrap(err, "saving transcript")
		}
		app.TranscriptPath = key
	}

	if form.Submit {
		if err = checkComplete(app); err != nil {
			return Application{}, err
		}
		app.Status = StatusSubmitted
		app.SubmittedAt = &now
	}

	if app.ID == 0 {
		if app.Reference, err = NewReference(); err != nil {
			return Application{}, errors.Wrap(err, "generating reference")
		}
		app, err = svc.repo.CreateApplication(ctx, app)
	} else {
		app, err = svc.repo.ReplaceApplication(ctx, app)
	}
	if err != nil {
		return Application{}, errors.Wrap(err, "saving application")
	}

	if app.Status == StatusSubmitted {
		svc.publish(ctx, core.TopicApplicationSubmitted, StatusEvent{
			ApplicationID: app.ID,
			Reference:     app.Reference,
			From:          StatusDraft,
			To:            StatusSubmitted,
		})
		svc.mailSvc.SendMessages(core.NewEmailMessage(
			mail.Address{Name: student.Name, Address: student.Email},
			"Credit transfer application submitted",
			"application_submitted",
			map[string]string{"Name": student.Name, "Reference": app.Reference},
		))
	}

	apps, err := svc.hydrate(ctx, []Application{app})
	if err != nil {
		return Application{}, err
	}
	return apps[0], nil
}

// formSubjects builds the application subjects from the form, storing the uploaded syllabi.
// Syllabus paths may only be kept from the draft being edited.
func (svc *service) formSubjects(ctx context.Context, draft Application, programID int, form ApplyForm) ([]Subject, error) {
	keptPaths := make(map[string]bool)
	for _, s := range draft.Subjects {
		for _, ps := range s.PastSubjects {
			if ps.SyllabusPath != "" {
				keptPaths[ps.SyllabusPath] = true
			}
		}
	}

	seen := make(map[int]bool, len(form.Subjects))
	subjects := make([]Subject, 0, len(form.Subjects))
	for i, ns := range form.Subjects {
		field := "subjects[" + strconv.Itoa(i) + "]"
		if ns.CourseID == 0 {
			if form.Submit {
				return nil, core.NewValidationError(nil, core.FieldError{Field: field + ".course_id", Error: "this field is required"})
			}
			continue
		}
		course, err := svc.progSvc.Course(ctx, ns.CourseID)
		if err != nil && !core.IsNotFound(err) {
			return nil, errors.Wrap(err, "getting course")
		}
		if err != nil || course.ProgramID != programID {
			return nil, core.NewValidationError(nil, core.FieldError{Field: field + ".course_id", Error: "course is not part of your program"})
		}
		if seen[course.ID] {
			return nil, core.NewValidationError(nil, core.FieldError{Field: field + ".course_id", Error: "course is listed more than once"})
		}
		seen[course.ID] = true

		subj := Subject{CourseID: course.ID, Name: course.Name, Course: &course, PastSubjects: []PastSubject{}}
		for _, nps := range ns.PastSubjects {
			if nps.Code == "" && nps.Name == "" && nps.Grade == "" && nps.SyllabusFile == "" && nps.SyllabusPath == "" {
				continue
			}
			ps := PastSubject{
				Code:           nps.Code,
				Name:           nps.Name,
				Grade:          nps.Grade,
				ApprovalStatus: ApprovalPending,
			}
			if upload, ok := form.Syllabi[nps.SyllabusFile]; ok && nps.SyllabusFile != "" {
				if ps.SyllabusPath, err = svc.storage.Save(ctx, syllabiFolder, upload); err != nil {
					return nil, errors.Wrap(err, "saving syllabus")
				}
			} else if keptPaths[nps.SyllabusPath] {
				ps.SyllabusPath = nps.SyllabusPath
			}
			subj.PastSubjects = append(subj.PastSubjects, ps)
		}
		subjects = append(subjects, subj)
	}
	return subjects, nil
}

// checkComplete verifies a submitted application has everything a coordinator needs.
func checkComplete(app Application) error {
	var flds []core.FieldError
	if app.TranscriptPath == "" {
		flds = append(flds, core.FieldError{Field: "transcript", Error: "a transcript is required"})
	}
	if app.PrevCampusName == "" {
		flds = append(flds, core.FieldError{Field: "prev_campus_name", Error: "this field is required"})
	}
	if len(app.Subjects) == 0 {
		flds = append(flds, core.FieldError{Field: "subjects", Error: "at least one subject is required"})
	}
	for i, s := range app.Subjects {
		field := "subjects[" + strconv.Itoa(i) + "]"
		if len(s.PastSubjects) == 0 {
			flds = append(flds, core.FieldError{Field: field + ".pastSubjects", Error: "at least one past subject is required"})
		}
		for j, ps := range s.PastSubjects {
			if ps.Code == "" || ps.Name == "" || ps.Grade == "" {
				flds = append(flds, core.FieldError{
					Field: field + ".pastSubjects[" + strconv.Itoa(j) + "]",
					Error: "code, name and grade are required",
				})
			}
		}
	}
	if len(flds) > 0 {
		return core.NewValidationError(nil, flds...)
	}
	return nil
}

func (svc *service) ListMine(ctx context.Context, studentID string) ([]Application, error) {
	apps, err := svc.repo.QueryApplications(ctx, QueryFilter{StudentID: studentID})
	if err != nil {
		return nil, errors.Wrap(err, "querying applications")
	}
	return svc.hydrate(ctx, apps)
}

// Coordinator

func (svc *service) ListForCoordinator(ctx context.Context, coordinator user.User, statuses ...string) ([]Application, error) {
	progIDs, err := svc.staffSvc.CoordinatorProgramIDs(ctx, coordinator.ID)
	if err != nil {
		return nil, err
	}
	return svc.listForPrograms(ctx, progIDs, statuses)
}

func (svc *service) listForPrograms(ctx context.Context, progIDs []int, statuses []string) ([]Application, error) {
	if len(progIDs) == 0 {
		return []Application{}, nil
	}
	apps, err := svc.repo.QueryApplications(ctx, QueryFilter{ProgramIDs: progIDs, Statuses: statuses, ExcludeDrafts: true})
	if err != nil {
		return nil, errors.Wrap(err, "querying applications")
	}
	return svc.hydrate(ctx, apps)
}

func (svc *service) Inbox(ctx context.Context, coordinator user.User, status string) ([]Application, error) {
	switch status = core.CleanString(status, true /* lower */); status {
	case "", "all":
		return svc.ListForCoordinator(ctx, coordinator)
	case "pending":
		return svc.ListForCoordinator(ctx, coordinator, StatusSubmitted)
	default:
		return svc.ListForCoordinator(ctx, coordinator, status)
	}
}

func (svc *service) checkCoordinator(ctx context.Context, coordinator user.User, programID int) error {
	progIDs, err := svc.staffSvc.CoordinatorProgramIDs(ctx, coordinator.ID)
	if err != nil {
		return err
	}
	if !core.IntsContain(progIDs, programID) {
		return ErrNotCoordinator
	}
	return nil
}

// coordinatedApplication returns the non draft application `id` of a program the user coordinates.
func (svc *service) coordinatedApplication(ctx context.Context, coordinator user.User, id int) (Application, error) {
	app, err := svc.repo.GetApplication(ctx, id)
	if err != nil {
		return Application{}, err
	}
	if app.Status == StatusDraft {
		return Application{}, ErrNotFound
	}
	if err = svc.checkCoordinator(ctx, coordinator, app.ProgramID); err != nil {
		return Application{}, err
	}
	return app, nil
}

func (svc *service) UpdateStatus(ctx context.Context, coordinator user.User, id int, us UpdateStatus) (Application, error) {
	app, err := svc.coordinatedApplication(ctx, coordinator, id)
	if err != nil {
		return Application{}, err
	}
	if app.Status != us.Status && !CanTransition(app.Status, us.Status) {
		return Application{}, ErrInvalidTransition
	}
	if app, err = svc.setStatus(ctx, app, us.Status, &us.Notes); err != nil {
		return Application{}, err
	}
	apps, err := svc.hydrate(ctx, []Application{app})
	if err != nil {
		return Application{}, err
	}
	return apps[0], nil
}

// setStatus saves the application status & notes, then notifies the student on a final decision.
func (svc *service) setStatus(ctx context.Context, app Application, status string, notes *string) (Application, error) {
	from := app.Status
	app.Status = status
	if notes != nil {
		app.Notes = *notes
	}
	app.UpdatedAt = NowFunc().UTC()
	updated, err := svc.repo.UpdateApplication(ctx, app)
	if err != nil {
		return Application{}, errors.Wrap(err, "updating application")
	}
	updated.Subjects = app.Subjects
	if from == status {
		return updated, nil
	}

	svc.publish(ctx, core.TopicApplicationStatus, StatusEvent{
		ApplicationID: updated.ID,
		Reference:     updated.Reference,
		From:          from,
		To:            status,
	})
	if status == StatusApproved || status == StatusRejected {
		student, err := svc.usrSvc.GetByID(ctx, updated.StudentID)
		if err != nil {
			return Application{}, errors.Wrap(err, "getting student")
		}
		svc.mailSvc.SendMessages(core.NewEmailMessage(
			mail.Address{Name: student.Name, Address: student.Email},
			"Credit transfer application "+strings.ReplaceAll(status, "_", " "),
			"application_status",
			map[string]string{
				"Name":      student.Name,
				"Reference": updated.Reference,
				"Status":    status,
				"Notes":     updated.Notes,
			},
		))
	}
	return updated, nil
}

// syncStatus reloads the application and moves it to the status derived from its past subjects.
func (svc *service) syncStatus(ctx context.Context, appID int) (Application, error) {
	app, err := svc.repo.GetApplication(ctx, appID)
	if err != nil {
		return Application{}, err
	}
	next, ok := nextStatus(app.Status, app.approvals())
	if !ok || next == app.Status {
		return app, nil
	}
	if app.Status == StatusSubmitted && next != StatusUnderReview && next != StatusRejected {
		if app, err = svc.setStatus(ctx, app, StatusUnderReview, nil); err != nil {
			return Application{}, err
		}
	}
	return svc.setStatus(ctx, app, next, nil)
}

func (svc *service) match(ctx context.Context, app Application, subj Subject, ps PastSubject) (MatchResult, error) {
	t, ok, err := svc.t3Svc.Match(ctx, app.PrevCampusName, ps.Code, ps.Name, subj.CourseID)
	if err != nil {
		return MatchResult{}, err
	}
	res := MatchResult{PastSubjectID: ps.ID, HasMatch: ok}
	if ok {
		res.Template3 = &t
	}
	return res, nil
}

func approveWithTemplate3(ps *PastSubject, t *template3.Template3) {
	pct := t.SimilarityPercentage
	id := t.ID
	ps.ApprovalStatus = ApprovalTemplate3
	ps.SimilarityPercentage = &pct
	ps.Template3ID = &id
}

func (svc *service) ReviewPastSubject(ctx context.Context, coordinator user.User, r PastSubjectReview) (PastSubjectResult, error) {
	ps, err := svc.repo.GetPastSubject(ctx, r.PastSubjectID)
	if err != nil {
		return PastSubjectResult{}, err
	}
	subj, err := svc.repo.GetSubject(ctx, ps.SubjectID)
	if err != nil {
		return PastSubjectResult{}, err
	}
	app, err := svc.coordinatedApplication(ctx, coordinator, subj.ApplicationID)
	if err != nil {
		return PastSubjectResult{}, err
	}
	match, err := svc.match(ctx, app, subj, ps)
	if err != nil {
		return PastSubjectResult{}, err
	}
	res := PastSubjectResult{MatchResult: match, PastSubject: ps, ApplicationStatus: app.Status}
	if r.Action == ActionCheckTemplate3 {
		return res, nil
	}

	if !IsReviewable(app.Status) {
		return PastSubjectResult{}, ErrNotReviewable
	}
	if IsDecided(ps.ApprovalStatus) {
		return PastSubjectResult{}, ErrAlreadyDecided
	}

	topic := core.TopicSubjectReviewed
	switch r.Action {
	case ActionApproveTemplate3:
		if !match.HasMatch {
			return PastSubjectResult{}, ErrNoTemplate3Match
		}
		approveWithTemplate3(&ps, match.Template3)
	case ActionSendToSME:
		if _, err = svc.assignSME(ctx, app, &subj, 0, r.CoordinatorNotes); err != nil {
			return PastSubjectResult{}, err
		}
		ps.ApprovalStatus = ApprovalNeedsSME
		topic = core.TopicSubjectSentToSME
	case ActionReject:
		ps.ApprovalStatus = ApprovalRejected
	}

	if res.PastSubject, err = svc.repo.UpdatePastSubject(ctx, ps); err != nil {
		return PastSubjectResult{}, errors.Wrap(err, "updating past subject")
	}
	svc.publish(ctx, topic, SubjectEvent{
		ApplicationID:  app.ID,
		SubjectID:      subj.ID,
		PastSubjectID:  ps.ID,
		ApprovalStatus: ps.ApprovalStatus,
	})

	if app, err = svc.syncStatus(ctx, app.ID); err != nil {
		return PastSubjectResult{}, err
	}
	res.ApplicationStatus = app.Status
	return res, nil
}

func (svc *service) CheckCurrentSubject(ctx context.Context, coordinator user.User, c SubjectCheck) (SubjectCheckResult, error) {
	subj, err := svc.repo.GetSubject(ctx, c.ApplicationSubjectID)
	if err != nil {
		return SubjectCheckResult{}, err
	}
	app, err := svc.coordinatedApplication(ctx, coordinator, subj.ApplicationID)
	if err != nil {
		return SubjectCheckResult{}, err
	}

	res := SubjectCheckResult{
		ApplicationSubjectID: subj.ID,
		TotalSubjects:        len(subj.PastSubjects),
		Results:              make([]MatchResult, 0, len(subj.PastSubjects)),
		ApplicationStatus:    app.Status,
	}
	var pcts []float64
	for _, ps := range subj.PastSubjects {
		match, err := svc.match(ctx, app, subj, ps)
		if err != nil {
			return SubjectCheckResult{}, err
		}
		if match.HasMatch {
			res.MatchedCount++
			pcts = append(pcts, match.Template3.SimilarityPercentage)
		}
		res.Results = append(res.Results, match)
	}
	res.AllMatch = res.TotalSubjects > 0 && res.MatchedCount == res.TotalSubjects
	res.SomeMatch = res.MatchedCount > 0
	res.AveragePercentage = review.MeanPercentage(pcts)
	res.CanApproveAll = res.AllMatch && review.Qualifies(res.AveragePercentage, svc.threshold)

	if c.Action == ActionCheckTemplate3 {
		return res, nil
	}
	if !IsReviewable(app.Status) {
		return SubjectCheckResult{}, ErrNotReviewable
	}

	topic := core.TopicSubjectReviewed
	switch c.Action {
	case ActionApproveAll:
		if !res.CanApproveAll {
			return SubjectCheckResult{}, ErrCannotApproveAll
		}
		for i, ps := range subj.PastSubjects {
			if IsDecided(ps.ApprovalStatus) {
				continue
			}
			approveWithTemplate3(&ps, res.Results[i].Template3)
			if subj.PastSubjects[i], err = svc.repo.UpdatePastSubject(ctx, ps); err != nil {
				return SubjectCheckResult{}, errors.Wrap(err, "updating past subject")
			}
		}
		if c.CoordinatorNotes != "" {
			subj.CoordinatorNotes = c.CoordinatorNotes
			if _, err = svc.repo.UpdateSubject(ctx, subj); err != nil {
				return SubjectCheckResult{}, errors.Wrap(err, "updating subject")
			}
		}
	case ActionSendAllToSME:
		if _, err = svc.assignSME(ctx, app, &subj, c.SMEID, c.CoordinatorNotes); err != nil {
			return SubjectCheckResult{}, err
		}
		for i, ps := range subj.PastSubjects {
			if IsDecided(ps.ApprovalStatus) || ps.ApprovalStatus == ApprovalNeedsSME {
				continue
			}
			ps.ApprovalStatus = ApprovalNeedsSME
			if subj.PastSubjects[i], err = svc.repo.UpdatePastSubject(ctx, ps); err != nil {
				return SubjectCheckResult{}, errors.Wrap(err, "updating past subject")
			}
		}
		topic = core.TopicSubjectSentToSME
	}

	for _, ps := range subj.PastSubjects {
		svc.publish(ctx, topic, SubjectEvent{
			ApplicationID:  app.ID,
			SubjectID:      subj.ID,
			PastSubjectID:  ps.ID,
			ApprovalStatus: ps.ApprovalStatus,
		})
	}
	if app, err = svc.syncStatus(ctx, app.ID); err != nil {
		return SubjectCheckResult{}, err
	}
	res.ApplicationStatus = app.Status
	return res, nil
}

// assignSME assigns the subject to an active SME of its course: the requested one, the current one if
// still active, or the first available. The SME is emailed when the subject is newly assigned to them.
func (svc *service) assignSME(ctx context.Context, app Application, subj *Subject, smeID int, notes string) (staff.Assignment, error) {
	now := NowFunc()
	valid := func(a staff.Assignment) bool {
		return a.RoleType == staff.RoleTypeSME && a.CourseID == subj.CourseID && a.IsActive(now)
	}

	var sme staff.Assignment
	switch {
	case smeID != 0:
		a, err := svc.staffSvc.Assignment(ctx, smeID)
		if err != nil && !core.IsNotFound(err) {
			return staff.Assignment{}, err
		}
		if err != nil || !valid(a) {
			return staff.Assignment{}, core.NewValidationError(nil, core.FieldError{Field: "smeId", Error: "not an active SME of this course"})
		}
		sme = a
	case subj.SMEID != nil:
		a, err := svc.staffSvc.Assignment(ctx, *subj.SMEID)
		if err != nil && !core.IsNotFound(err) {
			return staff.Assignment{}, err
		}
		if err == nil && valid(a) {
			sme = a
			break
		}
		fallthrough
	default:
		smes, err := svc.staffSvc.ActiveSMEs(ctx, subj.CourseID)
		if err != nil {
			return staff.Assignment{}, err
		}
		if len(smes) == 0 {
			return staff.Assignment{}, ErrNoSME
		}
		sme = smes[0]
	}

	newlyAssigned := subj.SMEID == nil || *subj.SMEID != sme.ID
	subj.SMEID = &sme.ID
	if notes != "" {
		subj.CoordinatorNotes = notes
	}
	updated, err := svc.repo.UpdateSubject(ctx, *subj)
	if err != nil {
		return staff.Assignment{}, errors.Wrap(err, "updating subject")
	}
	subj.SMEID, subj.CoordinatorNotes = updated.SMEID, updated.CoordinatorNotes

	if newlyAssigned {
		course, err := svc.progSvc.Course(ctx, subj.CourseID)
		if err != nil {
			return staff.Assignment{}, errors.Wrap(err, "getting course")
		}
		names := make([]string, 0, len(subj.PastSubjects))
		for _, ps := range subj.PastSubjects {
			names = append(names, strings.TrimSpace(ps.Code+" "+ps.Name))
		}
		svc.mailSvc.SendMessages(core.NewEmailMessage(
			mail.Address{Name: sme.Lecturer.Name, Address: sme.Lecturer.Email},
			"New subject to review",
			"subject_assigned",
			map[string]string{
				"Name":         sme.Lecturer.Name,
				"Reference":    app.Reference,
				"CourseCode":   course.Code,
				"CourseName":   course.Name,
				"PastSubjects": strings.Join(names, ", "),
			},
		))
	}
	return sme, nil
}

// SME

func (svc *service) SMEAssignments(ctx context.Context, sme user.User) ([]SMEAssignment, error) {
	as, err := svc.staffSvc.SMEAssignments(ctx, sme.ID)
	if err != nil {
		return nil, err
	}
	res := make([]SMEAssignment, 0)
	if len(as) == 0 {
		return res, nil
	}
	ids := make([]int, 0, len(as))
	for _, a := range as {
		ids = append(ids, a.ID)
	}
	subjects, err := svc.repo.QuerySubjects(ctx, SubjectFilter{SMEIDs: ids})
	if err != nil {
		return nil, errors.Wrap(err, "querying subjects")
	}

	h := svc.newHydrator()
	apps := make(map[int]Application)
	for _, subj := range subjects {
		app, ok := apps[subj.ApplicationID]
		if !ok {
			if app, err = svc.repo.GetApplication(ctx, subj.ApplicationID); err != nil {
				return nil, errors.Wrap(err, "getting application")
			}
			apps[app.ID] = app
		}
		if app.Status == StatusDraft {
			continue
		}
		if err = h.subject(ctx, &subj); err != nil {
			return nil, err
		}
		summary, err := h.summary(ctx, app)
		if err != nil {
			return nil, err
		}
		var pending bool
		for _, ps := range subj.PastSubjects {
			if ps.ApprovalStatus == ApprovalNeedsSME {
				pending = true
				break
			}
		}
		res = append(res, SMEAssignment{Subject: subj, Application: summary, Pending: pending})
	}
	return res, nil
}

// assignedSubject returns the subject `id` if it is assigned to the SME, with its application.
// The SME assignment must still be active.
func (svc *service) assignedSubject(ctx context.Context, sme user.User, id int) (Subject, Application, error) {
	subj, err := svc.repo.GetSubject(ctx, id)
	if err != nil {
		return Subject{}, Application{}, err
	}
	if subj.SMEID == nil {
		return Subject{}, Application{}, ErrNotAssigned
	}
	a, err := svc.staffSvc.Assignment(ctx, *subj.SMEID)
	if err != nil {
		if core.IsNotFound(err) {
			return Subject{}, Application{}, ErrNotAssigned
		}
		return Subject{}, Application{}, err
	}
	if a.Lecturer.UserID != sme.ID || !a.IsActive(NowFunc()) {
		return Subject{}, Application{}, ErrNotAssigned
	}
	app, err := svc.repo.GetApplication(ctx, subj.ApplicationID)
	if err != nil {
		return Subject{}, Application{}, errors.Wrap(err, "getting application")
	}
	return subj, app, nil
}

func (svc *service) SMESubject(ctx context.Context, sme user.User, subjectID int) (SubjectDetails, error) {
	subj, app, err := svc.assignedSubject(ctx, sme, subjectID)
	if err != nil {
		return SubjectDetails{}, err
	}
	h := svc.newHydrator()
	if err = h.subject(ctx, &subj); err != nil {
		return SubjectDetails{}, err
	}
	summary, err := h.summary(ctx, app)
	if err != nil {
		return SubjectDetails{}, err
	}
	details := SubjectDetails{
		Application:  summary,
		NewCourse:    subj.Course,
		Subject:      subj,
		PastSubjects: subj.PastSubjects,
	}
	draft, err := svc.draftSvc.Get(ctx, subjectID, sme.ID)
	switch {
	case err == nil:
		details.Draft = &draft
	case !core.IsNotFound(err):
		return SubjectDetails{}, errors.Wrap(err, "getting draft")
	}
	return details, nil
}

func (svc *service) SubmitReview(ctx context.Context, sme user.User, subjectID int, r review.Review) (ReviewResult, error) {
	subj, app, err := svc.assignedSubject(ctx, sme, subjectID)
	if err != nil {
		return ReviewResult{}, err
	}
	if !IsReviewable(app.Status) {
		return ReviewResult{}, ErrNotReviewable
	}

	avg := review.AverageSimilarity(review.Percentages(r.Topics))
	approved := review.Qualifies(avg, svc.threshold)

	var reviewed int
	for i, ps := range subj.PastSubjects {
		if ps.ApprovalStatus != ApprovalNeedsSME {
			continue
		}
		reviewed++
		pct := avg
		ps.SimilarityPercentage = &pct
		ps.SMEReviewNotes = r.Notes
		ps.TopicsComparison = r.Topics
		ps.ApprovalStatus = ApprovalRejected
		if approved {
			ps.ApprovalStatus = ApprovalSME
			createdBy := sme.ID
			t, err := svc.t3Svc.Record(ctx, template3.Template3{
				OldCampusName:        app.PrevCampusName,
				OldProgrammeName:     app.PrevProgrammeName,
				OldSubjectCode:       ps.Code,
				OldSubjectName:       ps.Name,
				CourseID:             subj.CourseID,
				ProgramID:            app.ProgramID,
				SimilarityPercentage: avg,
				Source:               template3.SourceSME,
				CreatedBy:            &createdBy,
			})
			if err != nil {
				return ReviewResult{}, errors.Wrap(err, "recording template3")
			}
			if t.ID != 0 {
				id := t.ID
				ps.Template3ID = &id
			}
		}
		if subj.PastSubjects[i], err = svc.repo.UpdatePastSubject(ctx, ps); err != nil {
			return ReviewResult{}, errors.Wrap(err, "updating past subject")
		}
		svc.publish(ctx, core.TopicSubjectReviewed, SubjectEvent{
			ApplicationID:  app.ID,
			SubjectID:      subj.ID,
			PastSubjectID:  ps.ID,
			ApprovalStatus: ps.ApprovalStatus,
		})
	}
	if reviewed == 0 {
		return ReviewResult{}, ErrNothingToReview
	}

	if err = svc.draftSvc.Delete(ctx, subjectID, sme.ID); err != nil {
		return ReviewResult{}, err
	}
	if app, err = svc.syncStatus(ctx, app.ID); err != nil {
		return ReviewResult{}, err
	}
	if app.Status != StatusApproved && app.Status != StatusRejected {
		// final decisions are mailed by setStatus
		if err = svc.mailReviewed(ctx, app, approved); err != nil {
			return ReviewResult{}, err
		}
	}

	h := svc.newHydrator()
	if err = h.subject(ctx, &subj); err != nil {
		return ReviewResult{}, err
	}
	return ReviewResult{
		Subject:           subj,
		AverageSimilarity: avg,
		Approved:          approved,
		ApplicationStatus: app.Status,
	}, nil
}

func (svc *service) mailReviewed(ctx context.Context, app Application, approved bool) error {
	student, err := svc.usrSvc.GetByID(ctx, app.StudentID)
	if err != nil {
		return errors.Wrap(err, "getting student")
	}
	notes := "A subject of your application was rejected by the subject method expert."
	if approved {
		notes = "A subject of your application was approved by the subject method expert."
	}
	svc.mailSvc.SendMessages(core.NewEmailMessage(
		mail.Address{Name: student.Name, Address: student.Email},
		"Credit transfer application update",
		"application_status",
		map[string]string{
			"Name":      student.Name,
			"Reference": app.Reference,
			"Status":    app.Status,
			"Notes":     notes,
		},
	))
	return nil
}

func (svc *service) SaveDraft(ctx context.Context, sme user.User, subjectID int, d review.Draft) (review.Draft, error) {
	if _, _, err := svc.assignedSubject(ctx, sme, subjectID); err != nil {
		return review.Draft{}, err
	}
	d.ApplicationSubjectID = subjectID
	d.SMEUserID = sme.ID
	return svc.draftSvc.Save(ctx, d)
}

func (svc *service) GetDraft(ctx context.Context, sme user.User, subjectID int) (review.Draft, error) {
	if _, _, err := svc.assignedSubject(ctx, sme, subjectID); err != nil {
		return review.Draft{}, err
	}
	return svc.draftSvc.Get(ctx, subjectID, sme.ID)
}

func (svc *service) DeleteDraft(ctx context.Context, sme user.User, subjectID int) error {
	if _, _, err := svc.assignedSubject(ctx, sme, subjectID); err != nil {
		return err
	}
	return svc.draftSvc.Delete(ctx, subjectID, sme.ID)
}

// HOS

func (svc *service) hosProgramIDs(ctx context.Context, hos user.User) (int, []int, error) {
	campusID, err := svc.staffSvc.HOSCampusID(ctx, hos.ID)
	if err != nil {
		return 0, nil, err
	}
	progs, err := svc.progSvc.Programs(ctx, program.ProgramFilter{CampusID: campusID})
	if err != nil {
		return 0, nil, errors.Wrap(err, "listing programs")
	}
	ids := make([]int, 0, len(progs))
	for _, p := range progs {
		ids = append(ids, p.ID)
	}
	return campusID, ids, nil
}

func (svc *service) Summary(ctx context.Context, hos user.User) (Summary, error) {
	campusID, progIDs, err := svc.hosProgramIDs(ctx, hos)
	if err != nil {
		return Summary{}, err
	}
	sum := Summary{CampusID: campusID, ByStatus: make(map[string]int, len(Statuses)-1)}
	for _, s := range Statuses {
		if s != StatusDraft {
			sum.ByStatus[s] = 0
		}
	}
	if len(progIDs) == 0 {
		return sum, nil
	}
	apps, err := svc.repo.QueryApplications(ctx, QueryFilter{ProgramIDs: progIDs, ExcludeDrafts: true})
	if err != nil {
		return Summary{}, errors.Wrap(err, "querying applications")
	}
	for _, app := range apps {
		sum.ByStatus[app.Status]++
		sum.Total++
	}
	return sum, nil
}

func (svc *service) ListForHOS(ctx context.Context, hos user.User, statuses ...string) ([]Application, error) {
	_, progIDs, err := svc.hosProgramIDs(ctx, hos)
	if err != nil {
		return nil, err
	}
	return svc.listForPrograms(ctx, progIDs, statuses)
}
