package sqlxrepos

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/cts/core/review"
)

type draftRow struct {
	ApplicationSubjectID int       `db:"application_subject_id"`
	SMEUserID            string    `db:"sme_user_id"`
	Topics               []byte    `db:"topics"`
	SMENotes             string    `db:"sme_notes"`
	AverageSimilarity    float64   `db:"average_similarity"`
	SavedAt              time.Time `db:"saved_at"`
}

type draftRepository struct {
	db *sqlx.DB
}

var _ review.DraftRepository = (*draftRepository)(nil) // interface compliance check

func NewDraftRepository(db *sqlx.DB) *draftRepository {
	return &draftRepository{db: db}
}

func (repo *draftRepository) SaveDraft(ctx context.Context, d review.Draft) (review.Draft, error) {
	topics := d.Topics
	if topics == nil {
		topics = []review.TopicComparison{}
	}
	raw, err := json.Marshal(topics)
	if err != nil {
		return review.Draft{}, errors.Wrap(err, "encoding draft topics")
	}
	_, err = repo.db.ExecContext(ctx, `
		INSERT INTO sme_review_drafts (application_subject_id, sme_user_id, topics, sme_notes, average_similarity, saved_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (application_subject_id, sme_user_id) DO UPDATE
		SET topics = EXCLUDED.topics, sme_notes = EXCLUDED.sme_notes,
			average_similarity = EXCLUDED.average_similarity, saved_at = EXCLUDED.saved_at`,
		d.ApplicationSubjectID, d.SMEUserID, raw, d.SMENotes, d.AverageSimilarity, d.SavedAt.UTC())
	if err != nil {
		return review.Draft{}, errors.Wrap(err, "saving draft")
	}
	return d, nil
}

func (repo *draftRepository) GetDraft(ctx context.Context, applicationSubjectID int, smeUserID string) (review.Draft, error) {
	var row draftRow
	err := repo.db.GetContext(ctx, &row, `
		SELECT application_subject_id, sme_user_id, topics, sme_notes, average_similarity, saved_at
		FROM sme_review_drafts WHERE application_subject_id = $1 AND sme_user_id = $2`,
		applicationSubjectID, smeUserID)
	if err != nil {
		return review.Draft{}, trapNoRowsErr(err, review.ErrDraftNotFound, "getting draft")
	}
	d := review.Draft{
		ApplicationSubjectID: row.ApplicationSubjectID,
		SMEUserID:            row.SMEUserID,
		SMENotes:             row.SMENotes,
		AverageSimilarity:    row.AverageSimilarity,
		SavedAt:              row.SavedAt,
	}
	if err = json.Unmarshal(row.Topics, &d.Topics); err != nil {
		return review.Draft{}, errors.Wrap(err, "decoding draft topics")
	}
	return d, nil
}

func (repo *draftRepository) DeleteDraft(ctx context.Context, applicationSubjectID int, smeUserID string) error {
	_, err := repo.db.ExecContext(ctx,
		"DELETE FROM sme_review_drafts WHERE application_subject_id = $1 AND sme_user_id = $2",
		applicationSubjectID, smeUserID)
	return errors.Wrap(err, "deleting draft")
}
