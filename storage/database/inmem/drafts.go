package inmemdb

import (
	"context"

	"github.com/trezcool/cts/core/review"
)

type draftRepository struct {
	db *DB
}

var _ review.DraftRepository = (*draftRepository)(nil) // interface compliance check

func NewDraftRepository(db *DB) *draftRepository {
	return &draftRepository{db: db}
}

func (repo *draftRepository) SaveDraft(_ context.Context, d review.Draft) (review.Draft, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	stored := d
	stored.Topics = copyTopics(d.Topics)
	repo.db.drafts[draftKey{d.ApplicationSubjectID, d.SMEUserID}] = stored
	return d, nil
}

func (repo *draftRepository) GetDraft(_ context.Context, applicationSubjectID int, smeUserID string) (review.Draft, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()
	d, ok := repo.db.drafts[draftKey{applicationSubjectID, smeUserID}]
	if !ok {
		return review.Draft{}, review.ErrDraftNotFound
	}
	d.Topics = copyTopics(d.Topics)
	return d, nil
}

func (repo *draftRepository) DeleteDraft(_ context.Context, applicationSubjectID int, smeUserID string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	delete(repo.db.drafts, draftKey{applicationSubjectID, smeUserID})
	return nil
}
