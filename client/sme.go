package client

import (
	"context"
	"net/http"

	"github.com/trezcool/cts/core/application"
	"github.com/trezcool/cts/core/review"
)

func (c *Client) SMEAssignments(ctx context.Context) ([]application.SMEAssignment, error) {
	var resp struct {
		Assignments []application.SMEAssignment `json:"assignments"`
	}
	err := c.doJSON(ctx, http.MethodGet, "/api/credit-transfer/sme/assignments", nil, &resp)
	return resp.Assignments, err
}

func (c *Client) SMESubject(ctx context.Context, subjectID int) (application.SubjectDetails, error) {
	var details application.SubjectDetails
	err := c.doJSON(ctx, http.MethodGet, idPath("/api/credit-transfer/sme/subject/%d", subjectID), nil, &details)
	return details, err
}

// SubmitReview submits the SME review; the server computes the average similarity.
func (c *Client) SubmitReview(ctx context.Context, subjectID int, r review.Review) (application.ReviewResult, error) {
	var res application.ReviewResult
	err := c.doJSON(ctx, http.MethodPost, idPath("/api/credit-transfer/sme/review-subject/%d", subjectID), r, &res)
	return res, err
}

func (c *Client) GetDraft(ctx context.Context, subjectID int) (review.Draft, error) {
	var d review.Draft
	err := c.doJSON(ctx, http.MethodGet, idPath("/api/credit-transfer/sme/drafts/%d", subjectID), nil, &d)
	return d, err
}

func (c *Client) SaveDraft(ctx context.Context, subjectID int, d review.Draft) (review.Draft, error) {
	var saved review.Draft
	err := c.doJSON(ctx, http.MethodPut, idPath("/api/credit-transfer/sme/drafts/%d", subjectID), d, &saved)
	return saved, err
}

func (c *Client) DeleteDraft(ctx context.Context, subjectID int) error {
	return c.doJSON(ctx, http.MethodDelete, idPath("/api/credit-transfer/sme/drafts/%d", subjectID), nil, nil)
}
