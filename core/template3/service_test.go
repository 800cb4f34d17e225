package template3_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/cts/core"
	"github.com/trezcool/cts/core/template3"
	testutil "github.com/trezcool/cts/tests"
)

func TestService(t *testing.T) {
	env := testutil.NewEnv(t)
	cat := env.SeedCatalog(t)
	ctx := context.Background()
	svc := env.Template3Svc
	adminID := "8a7e3c2b-5d0f-4d7e-9f63-0b6f8d3c1a25"
	csc101, mat101 := cat.Courses[0], cat.Courses[1]

	created, err := svc.Create(ctx, adminID, template3.NewTemplate3{
		OldCampusName:        "OLD UNIVERSITY",
		OldProgrammeName:     "Diploma in IT",
		OldSubjectCode:       "CS 101",
		OldSubjectName:       "Intro to Programming",
		CourseID:             csc101.ID,
		SimilarityPercentage: 88.5,
	})
	require.NoError(t, err)
	assert.Equal(t, "Old University", created.OldCampusName)
	require.NotNil(t, created.OldCampusID)
	assert.Equal(t, cat.Program.ID, created.ProgramID)
	assert.Equal(t, template3.SourceManual, created.Source)
	require.NotNil(t, created.CreatedBy)
	assert.Equal(t, adminID, *created.CreatedBy)
	assert.Equal(t, []string{core.TopicTemplate3Created}, env.Events.Topics())

	_, err = svc.Create(ctx, adminID, template3.NewTemplate3{
		OldCampusName:        "Old University",
		OldSubjectCode:       "cs101",
		OldSubjectName:       "Programming I",
		CourseID:             csc101.ID,
		SimilarityPercentage: 70,
	})
	assert.Equal(t, template3.ErrExists, err)

	m, ok, err := svc.Match(ctx, "Old University", "CS101", "Intro to Programming", csc101.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 88.5, m.SimilarityPercentage, "the first entry of a code stays the match")

	_, err = svc.Create(ctx, adminID, template3.NewTemplate3{OldCampusName: "Old University", OldSubjectName: "Algebra", CourseID: 999, SimilarityPercentage: 70})
	var verr *core.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "course_id", verr.Fields[0].Field)

	t.Run("bulk create", func(t *testing.T) {
		res, err := svc.BulkCreate(ctx, adminID, []template3.NewTemplate3{
			{OldCampusName: "Other College", OldSubjectName: "Calculus", CourseID: mat101.ID, SimilarityPercentage: 92},
			{OldCampusName: "Old University", OldSubjectCode: "CS101", OldSubjectName: "Intro", CourseID: csc101.ID, SimilarityPercentage: 90},
			{OldCampusName: "Old University", CourseID: mat101.ID, SimilarityPercentage: 80},
			{OldCampusName: "Old University", OldSubjectName: "Statistics", CourseID: mat101.ID, SimilarityPercentage: 120},
		})
		require.NoError(t, err)
		require.Len(t, res.Created, 1)
		assert.Nil(t, res.Created[0].OldCampusID)
		require.Len(t, res.Failed, 3)
		for i, f := range res.Failed {
			assert.Equal(t, i+1, f.Index)
			assert.NotEmpty(t, f.Error)
		}
	})

	t.Run("query", func(t *testing.T) {
		ts, err := svc.Query(ctx, template3.QueryFilter{})
		require.NoError(t, err)
		assert.Len(t, ts, 2)

		ts, err = svc.Query(ctx, template3.QueryFilter{OldCampusName: " old university "})
		require.NoError(t, err)
		require.Len(t, ts, 1)
		require.NotNil(t, ts[0].Course)
		assert.Equal(t, "CSC101", ts[0].Course.Code)
		require.NotNil(t, ts[0].OldCampus)

		ts, err = svc.Query(ctx, template3.QueryFilter{ProgramCode: "bsc-cs", CourseID: mat101.ID})
		require.NoError(t, err)
		require.Len(t, ts, 1)
		assert.Equal(t, "Calculus", ts[0].OldSubjectName)

		ts, err = svc.Query(ctx, template3.QueryFilter{ProgramName: "Medicine"})
		require.NoError(t, err)
		assert.NotNil(t, ts)
		assert.Empty(t, ts)
	})

	t.Run("match", func(t *testing.T) {
		m, ok, err := svc.Match(ctx, "old university", "cs-101", "", csc101.ID)
		require.NoError(t, err)
		assert.False(t, ok, "codes differ")

		m, ok, err = svc.Match(ctx, "old university", "CS101", "Whatever", csc101.ID)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, created.ID, m.ID)

		m, ok, err = svc.Match(ctx, "Other College", "", "calculus", mat101.ID)
		require.NoError(t, err)
		assert.True(t, ok)

		_, ok, err = svc.Match(ctx, "Old University", "", "", csc101.ID)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("record", func(t *testing.T) {
		existing, err := svc.Record(ctx, template3.Template3{
			OldCampusName:  "Old University",
			OldSubjectCode: "CS101",
			CourseID:       csc101.ID,
			Source:         template3.SourceSME,
		})
		require.NoError(t, err)
		assert.Equal(t, created.ID, existing.ID)
		assert.Equal(t, template3.SourceManual, existing.Source)

		recorded, err := svc.Record(ctx, template3.Template3{
			OldCampusName:        "Old University",
			OldSubjectCode:       "MA1",
			OldSubjectName:       "Mathematics I",
			CourseID:             mat101.ID,
			ProgramID:            cat.Program.ID,
			SimilarityPercentage: 81,
			Source:               template3.SourceSME,
		})
		require.NoError(t, err)
		assert.NotZero(t, recorded.ID)
		assert.Equal(t, template3.SourceSME, recorded.Source)
	})

	t.Run("upload pdf", func(t *testing.T) {
		_, err := svc.UploadPDF(ctx, core.Upload{Filename: "notes.txt", ContentType: "text/plain", Content: strings.NewReader("x")})
		require.ErrorAs(t, err, &verr)

		key, err := svc.UploadPDF(ctx, core.Upload{Filename: "template3.PDF", Content: strings.NewReader("%PDF")})
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(key, "template3/"), key)

		rc, err := env.Storage.Open(ctx, key)
		require.NoError(t, err)
		defer rc.Close()
	})
}
