package template3

import (
	"context"
	"fmt"
	"strings"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/cts/core"
	"github.com/trezcool/cts/core/program"
)

var (
	// errors
	ErrExists = core.NewConflictError("a Template3 entry already exists for this subject and course")
)

const pdfFolder = "template3"

type (
	Service interface {
		Query(ctx context.Context, filter QueryFilter) ([]Template3, error)
		Create(ctx context.Context, createdBy string, nt NewTemplate3) (Template3, error)
		BulkCreate(ctx context.Context, createdBy string, nts []NewTemplate3) (BulkResult, error)
		// UploadPDF stores a Template3 document and returns its path.
		UploadPDF(ctx context.Context, upload core.Upload) (string, error)
		// Match returns the entry mapping the past subject to the course, if any.
		Match(ctx context.Context, oldCampusName, code, name string, courseID int) (Template3, bool, error)
		// Record stores an entry derived from an approved review; existing mappings are returned unchanged.
		Record(ctx context.Context, t Template3) (Template3, error)
	}

	service struct {
		repo       Repository
		progSvc    program.Service
		storage    core.FileStorage
		publisher  core.EventPublisher
		logger     core.Logger
		validate   *validator.Validate
		translator ut.Translator
	}
)

var _ Service = (*service)(nil)

func NewService(
	repo Repository,
	progSvc program.Service,
	storage core.FileStorage,
	publisher core.EventPublisher,
	logger core.Logger,
	validate *validator.Validate,
	translator ut.Translator,
) Service {
	return &service{
		repo:       repo,
		progSvc:    progSvc,
		storage:    storage,
		publisher:  publisher,
		logger:     logger,
		validate:   validate,
		translator: translator,
	}
}

func (svc *service) Query(ctx context.Context, filter QueryFilter) ([]Template3, error) {
	filter.Clean()
	if filter.ProgramName != "" || filter.ProgramCode != "" {
		progs, err := svc.progSvc.Programs(ctx, program.ProgramFilter{Name: filter.ProgramName, Code: filter.ProgramCode})
		if err != nil {
			return nil, errors.Wrap(err, "listing programs")
		}
		if len(progs) == 0 {
			return []Template3{}, nil
		}
		for _, p := range progs {
			filter.ProgramIDs = append(filter.ProgramIDs, p.ID)
		}
	}

	ts, err := svc.repo.QueryTemplate3(ctx, filter)
	if err != nil {
		return nil, errors.Wrap(err, "querying template3")
	}
	courses := make(map[int]program.Course)
	for i := range ts {
		course, ok := courses[ts[i].CourseID]
		if !ok {
			if course, err = svc.progSvc.Course(ctx, ts[i].CourseID); err != nil {
				return nil, errors.Wrap(err, "getting course")
			}
			courses[course.ID] = course
		}
		ts[i].Course = &course
		if ts[i].OldCampusID != nil {
			ts[i].OldCampus = &program.OldCampus{ID: *ts[i].OldCampusID, Name: ts[i].OldCampusName}
		}
	}
	if ts == nil {
		ts = []Template3{}
	}
	return ts, nil
}

func (svc *service) Create(ctx context.Context, createdBy string, nt NewTemplate3) (Template3, error) {
	course, err := svc.progSvc.Course(ctx, nt.CourseID)
	if err != nil {
		if core.IsNotFound(err) {
			return Template3{}, core.NewValidationError(nil, core.FieldError{Field: "course_id", Error: err.Error()})
		}
		return Template3{}, errors.Wrap(err, "getting course")
	}

	t := Template3{
		OldCampusName:        nt.OldCampusName,
		OldProgrammeName:     nt.OldProgrammeName,
		OldSubjectCode:       nt.OldSubjectCode,
		OldSubjectName:       nt.OldSubjectName,
		CourseID:             course.ID,
		ProgramID:            course.ProgramID,
		SimilarityPercentage: nt.SimilarityPercentage,
		Source:               SourceManual,
	}
	if createdBy != "" {
		t.CreatedBy = &createdBy
	}
	created, err := svc.create(ctx, t)
	if err != nil {
		return Template3{}, err
	}
	created.Course = &course
	return created, nil
}

func (svc *service) create(ctx context.Context, t Template3) (Template3, error) {
	oc, err := svc.progSvc.OldCampusByName(ctx, t.OldCampusName)
	switch {
	case err == nil:
		t.OldCampusID = &oc.ID
		t.OldCampusName = oc.Name
	case !core.IsNotFound(err):
		return Template3{}, errors.Wrap(err, "getting old campus")
	}
	t.CreatedAt = time.Now().UTC()

	created, err := svc.repo.CreateTemplate3(ctx, t)
	if err != nil {
		if errors.Cause(err) == ErrExists {
			return Template3{}, ErrExists
		}
		return Template3{}, errors.Wrap(err, "creating template3")
	}
	if created.OldCampusID != nil {
		created.OldCampus = &program.OldCampus{ID: *created.OldCampusID, Name: created.OldCampusName}
	}
	if err = svc.publisher.Publish(ctx, core.TopicTemplate3Created, created); err != nil {
		svc.logger.Warn(fmt.Sprintf("publishing %s: %v", core.TopicTemplate3Created, err), err)
	}
	return created, nil
}

func (svc *service) BulkCreate(ctx context.Context, createdBy string, nts []NewTemplate3) (BulkResult, error) {
	res := BulkResult{Created: []Template3{}, Failed: []BulkFailure{}}
	for i := range nts {
		nt := nts[i]
		if err := nt.Validate(svc.validate); err != nil {
			res.Failed = append(res.Failed, BulkFailure{Index: i, Error: core.ValidationMessage(err, svc.translator)})
			continue
		}
		created, err := svc.Create(ctx, createdBy, nt)
		if err != nil {
			if core.IsConflict(err) || isValidationErr(err) {
				res.Failed = append(res.Failed, BulkFailure{Index: i, Error: core.ValidationMessage(err, svc.translator)})
				continue
			}
			return BulkResult{}, err
		}
		res.Created = append(res.Created, created)
	}
	return res, nil
}

func isValidationErr(err error) bool {
	_, ok := errors.Cause(err).(*core.ValidationError)
	return ok
}

func (svc *service) UploadPDF(ctx context.Context, upload core.Upload) (string, error) {
	if !strings.EqualFold(upload.ContentType, "application/pdf") && !strings.HasSuffix(strings.ToLower(upload.Filename), ".pdf") {
		return "", core.NewValidationError(nil, core.FieldError{Field: "file", Error: "only PDF documents are accepted"})
	}
	key, err := svc.storage.Save(ctx, pdfFolder, upload)
	if err != nil {
		return "", errors.Wrap(err, "saving template3 document")
	}
	return key, nil
}

func (svc *service) Match(ctx context.Context, oldCampusName, code, name string, courseID int) (Template3, bool, error) {
	if NormalizeCode(code) == "" && NormalizeName(name) == "" {
		return Template3{}, false, nil
	}
	ts, err := svc.repo.QueryTemplate3(ctx, QueryFilter{OldCampusName: core.CleanString(oldCampusName), CourseID: courseID})
	if err != nil {
		return Template3{}, false, errors.Wrap(err, "querying template3")
	}
	for _, t := range ts {
		if t.matches(code, name) {
			return t, true, nil
		}
	}
	return Template3{}, false, nil
}

func (svc *service) Record(ctx context.Context, t Template3) (Template3, error) {
	if existing, ok, err := svc.Match(ctx, t.OldCampusName, t.OldSubjectCode, t.OldSubjectName, t.CourseID); err != nil {
		return Template3{}, err
	} else if ok {
		return existing, nil
	}
	created, err := svc.create(ctx, t)
	if errors.Cause(err) == ErrExists {
		// same code under another name
		return t, nil
	}
	return created, err
}
