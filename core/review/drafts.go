package review

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/cts/core"
)

var ErrDraftNotFound = core.NewNotFoundError("draft not found")

var NowFunc = time.Now // mockable

type (
	DraftRepository interface {
		// SaveDraft inserts or replaces the draft of (ApplicationSubjectID, SMEUserID).
		SaveDraft(ctx context.Context, d Draft) (Draft, error)
		GetDraft(ctx context.Context, applicationSubjectID int, smeUserID string) (Draft, error)
		DeleteDraft(ctx context.Context, applicationSubjectID int, smeUserID string) error
	}

	DraftService interface {
		// Save stores the draft; empty drafts delete the stored one instead.
		Save(ctx context.Context, d Draft) (Draft, error)
		Get(ctx context.Context, applicationSubjectID int, smeUserID string) (Draft, error)
		Delete(ctx context.Context, applicationSubjectID int, smeUserID string) error
	}

	draftService struct {
		repo     DraftRepository
		validate *validator.Validate
	}
)

var _ DraftService = (*draftService)(nil)

func NewDraftService(repo DraftRepository, validate *validator.Validate) DraftService {
	return &draftService{repo: repo, validate: validate}
}

func (svc *draftService) Save(ctx context.Context, d Draft) (Draft, error) {
	d.SMENotes = core.CleanString(d.SMENotes)
	if d.IsEmpty() {
		if err := svc.Delete(ctx, d.ApplicationSubjectID, d.SMEUserID); err != nil {
			return Draft{}, err
		}
		return d, nil
	}
	for _, tc := range d.Topics {
		if err := svc.validate.Struct(tc); err != nil {
			return Draft{}, err
		}
	}
	if d.Topics == nil {
		d.Topics = []TopicComparison{}
	}
	d.AverageSimilarity = AverageSimilarity(Percentages(d.Topics))
	d.SavedAt = NowFunc().UTC()
	saved, err := svc.repo.SaveDraft(ctx, d)
	if err != nil {
		return Draft{}, errors.Wrap(err, "saving draft")
	}
	return saved, nil
}

func (svc *draftService) Get(ctx context.Context, applicationSubjectID int, smeUserID string) (Draft, error) {
	return svc.repo.GetDraft(ctx, applicationSubjectID, smeUserID)
}

func (svc *draftService) Delete(ctx context.Context, applicationSubjectID int, smeUserID string) error {
	if err := svc.repo.DeleteDraft(ctx, applicationSubjectID, smeUserID); err != nil && !core.IsNotFound(err) {
		return errors.Wrap(err, "deleting draft")
	}
	return nil
}
