package tests

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/cts/core/application"
	"github.com/trezcool/cts/core/review"
)

func Test_reviewApi(t *testing.T) {
	f := newAppFixture(t)
	ctx := context.Background()
	smeToken := f.getToken(t, f.sme)

	app := f.submit(t)
	cs, ma := app.Subjects[0], app.Subjects[1]
	_, err := f.ApplicationSvc.CheckCurrentSubject(ctx, f.coord, application.SubjectCheck{ApplicationSubjectID: ma.ID, Action: application.ActionSendAllToSME})
	require.NoError(t, err)

	subjectPath := fmt.Sprintf("/api/credit-transfer/sme/subject/%d", ma.ID)
	draftPath := fmt.Sprintf("/api/credit-transfer/sme/drafts/%d", ma.ID)
	reviewPath := fmt.Sprintf("/api/credit-transfer/sme/review-subject/%d", ma.ID)

	t.Run("SME required", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/api/credit-transfer/sme/assignments", f.getToken(t, f.coord))
		f.serve(req, rec)
		checkCodeAndData(t, httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"})}, rec)
	})

	t.Run("assignments", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/api/credit-transfer/sme/assignments", smeToken)
		f.serve(req, rec)
		checkCode(t, rec, http.StatusOK)

		var resp struct {
			Assignments []application.SMEAssignment `json:"assignments"`
		}
		decode(t, rec, &resp)
		require.Len(t, resp.Assignments, 1)
		assert.Equal(t, ma.ID, resp.Assignments[0].ID)
		assert.True(t, resp.Assignments[0].Pending)
		assert.Equal(t, app.Reference, resp.Assignments[0].Application.Reference)
	})

	t.Run("subject not assigned", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, fmt.Sprintf("/api/credit-transfer/sme/subject/%d", cs.ID), smeToken)
		f.serve(req, rec)
		checkCodeAndData(t, httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "this subject is not assigned to you"})}, rec)
	})

	t.Run("no draft yet", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, draftPath, smeToken)
		f.serve(req, rec)
		checkCodeAndData(t, httpTest{wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "draft not found"})}, rec)
	})

	topics := []review.TopicComparison{
		{NewSubjectTopic: "Limits", PastSubjectTopics: []review.PastTopic{{Topic: "Limits"}}, SimilarityPercentage: 90},
		{NewSubjectTopic: "Derivatives", PastSubjectTopics: []review.PastTopic{{Topic: "Derivatives"}}, SimilarityPercentage: 80},
	}

	req, rec := newAuthRequest(http.MethodPut, draftPath, smeToken, marchallObj(t, review.Draft{Topics: topics[:1], SMENotes: " halfway "}))
	f.serve(req, rec)
	checkCode(t, rec, http.StatusOK)
	var draft review.Draft
	decode(t, rec, &draft)
	assert.Equal(t, "halfway", draft.SMENotes)
	assert.Equal(t, 90.0, draft.AverageSimilarity)
	assert.Equal(t, ma.ID, draft.ApplicationSubjectID)

	t.Run("draft restored", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, draftPath, smeToken)
		f.serve(req, rec)
		checkCode(t, rec, http.StatusOK)

		var got review.Draft
		decode(t, rec, &got)
		assert.Equal(t, "halfway", got.SMENotes)
		assert.Len(t, got.Topics, 1)
	})

	t.Run("subject details", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, subjectPath, smeToken)
		f.serve(req, rec)
		checkCode(t, rec, http.StatusOK)

		var details application.SubjectDetails
		decode(t, rec, &details)
		require.NotNil(t, details.NewCourse)
		assert.Equal(t, "MAT101", details.NewCourse.Code)
		assert.Len(t, details.PastSubjects, 1)
		require.NotNil(t, details.Draft)
		assert.Equal(t, "halfway", details.Draft.SMENotes)
	})

	t.Run("discard draft", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodDelete, draftPath, smeToken)
		f.serve(req, rec)
		checkCode(t, rec, http.StatusNoContent)

		req, rec = newAuthRequest(http.MethodGet, draftPath, smeToken)
		f.serve(req, rec)
		checkCode(t, rec, http.StatusNotFound)
	})

	t.Run("invalid reviews", func(t *testing.T) {
		tests := []httpTest{
			{
				name:     "no topics",
				body:     []byte(`{"sme_review_notes": "lol"}`),
				wantCode: http.StatusBadRequest,
				wantData: marchallObj(t, map[string]string{"topics_comparison": "this field is required"}),
			},
			{
				name:     "no similarity",
				body:     marchallObj(t, review.Review{Topics: []review.TopicComparison{{NewSubjectTopic: "Limits"}}}),
				wantCode: http.StatusBadRequest,
				wantData: marchallObj(t, map[string]string{"topics_comparison": "at least one topic must have a similarity percentage"}),
			},
			{
				name:     "percentage out of range",
				body:     marchallObj(t, review.Review{Topics: []review.TopicComparison{{NewSubjectTopic: "Limits", SimilarityPercentage: 120}}}),
				wantCode: http.StatusBadRequest,
				wantData: marchallObj(t, map[string]string{"similarityPercentage": "must be a percentage between 0 and 100"}),
			},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				req, rec := newAuthRequest(http.MethodPost, reviewPath, smeToken, tt.body)
				f.serve(req, rec)
				checkCodeAndData(t, tt, rec)
			})
		}
	})

	// a client sent average is ignored
	body := marchallObj(t, review.Review{SimilarityPercentage: 10, Notes: "Same content", Topics: topics})
	req, rec = newAuthRequest(http.MethodPost, reviewPath, smeToken, body)
	f.serve(req, rec)
	checkCode(t, rec, http.StatusOK)
	var res application.ReviewResult
	decode(t, rec, &res)
	assert.True(t, res.Approved)
	assert.Equal(t, 85.0, res.AverageSimilarity)
	require.Len(t, res.Subject.PastSubjects, 1)
	assert.Equal(t, application.ApprovalSME, res.Subject.PastSubjects[0].ApprovalStatus)
	assert.Equal(t, "Same content", res.Subject.PastSubjects[0].SMEReviewNotes)

	t.Run("already reviewed", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, reviewPath, smeToken, body)
		f.serve(req, rec)
		checkCode(t, rec, http.StatusConflict)
	})
}
