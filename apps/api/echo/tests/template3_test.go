package tests

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/trezcool/cts/apps/api/echo"
	"github.com/trezcool/cts/core/staff"
	"github.com/trezcool/cts/core/template3"
)

func Test_template3Api(t *testing.T) {
	env := setup(t)
	student := env.CreateStudent(t, env.cat, "Hero", "hero@test.cd")
	coordinator, _ := env.CreateStaff(t, env.cat, staff.RoleTypeCoordinator, 0, "Coord", "coord@test.cd")
	coordToken := env.getToken(t, coordinator)
	csID, mathID := env.cat.Courses[0].ID, env.cat.Courses[1].ID

	t.Run("coordinator required", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/api/template3", env.getToken(t, student))
		env.serve(req, rec)
		checkCodeAndData(t, httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"})}, rec)
	})

	tests := []httpTest{
		{
			name:     "missing fields",
			body:     []byte(`{}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{
				"old_campus_name":       "this field is required",
				"old_subject_name":      "this field is required",
				"course_id":             "this field is required",
				"similarity_percentage": "this field is required",
			}),
		},
		{
			name:     "invalid percentage",
			body:     marchallObj(t, template3.NewTemplate3{OldCampusName: "Old University", OldSubjectName: "Programming 1", CourseID: csID, SimilarityPercentage: 101}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"similarity_percentage": "must be a percentage between 0 and 100"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodPost, "/api/template3", coordToken, tt.body)
			env.serve(req, rec)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("unknown course", func(t *testing.T) {
		body := marchallObj(t, template3.NewTemplate3{OldCampusName: "Old University", OldSubjectName: "Programming 1", CourseID: 999, SimilarityPercentage: 90})
		req, rec := newAuthRequest(http.MethodPost, "/api/template3", coordToken, body)
		env.serve(req, rec)
		checkCode(t, rec, http.StatusBadRequest)

		var fields map[string]string
		decode(t, rec, &fields)
		assert.Contains(t, fields, "course_id")
	})

	entry := template3.NewTemplate3{
		OldCampusName:        " old university ",
		OldSubjectCode:       "CS 101",
		OldSubjectName:       "Programming 1",
		CourseID:             csID,
		SimilarityPercentage: 90,
	}
	req, rec := newAuthRequest(http.MethodPost, "/api/template3", coordToken, marchallObj(t, entry))
	env.serve(req, rec)
	checkCode(t, rec, http.StatusCreated)
	var created template3.Template3
	decode(t, rec, &created)
	assert.Equal(t, template3.SourceManual, created.Source)
	assert.Equal(t, env.cat.Program.ID, created.ProgramID)
	require.NotNil(t, created.OldCampusID)
	assert.Equal(t, "Old University", created.OldCampusName)
	require.NotNil(t, created.CreatedBy)
	assert.Equal(t, coordinator.ID, *created.CreatedBy)

	t.Run("duplicate", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/api/template3", coordToken, marchallObj(t, entry))
		env.serve(req, rec)
		checkCodeAndData(t, httpTest{wantCode: http.StatusConflict, wantData: marchallObj(t, httpErr{Error: "a Template3 entry already exists for this subject and course"})}, rec)
	})

	t.Run("empty bulk", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/api/template3/bulk", coordToken, []byte(`{"template3s": []}`))
		env.serve(req, rec)
		checkCodeAndData(t, httpTest{wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"template3s": "this field is required"})}, rec)
	})

	bulk := echoapi.BulkTemplate3Request{Entries: []template3.NewTemplate3{
		{OldCampusName: "Old University", OldSubjectCode: "MA1", OldSubjectName: "Mathematics I", CourseID: mathID, SimilarityPercentage: 75},
		entry,
		{OldCampusName: "Old University", OldSubjectCode: "PH1", CourseID: mathID, SimilarityPercentage: 60},
	}}
	req, rec = newAuthRequest(http.MethodPost, "/api/template3/bulk", coordToken, marchallObj(t, bulk))
	env.serve(req, rec)
	checkCode(t, rec, http.StatusOK)
	var res template3.BulkResult
	decode(t, rec, &res)
	require.Len(t, res.Created, 1)
	assert.Equal(t, "MA1", res.Created[0].OldSubjectCode)
	assert.Equal(t, []template3.BulkFailure{
		{Index: 1, Error: "a Template3 entry already exists for this subject and course"},
		{Index: 2, Error: "old_subject_name: this field is required"},
	}, res.Failed)

	for path, wantLen := range map[string]int{
		"/api/template3":                                   2,
		"/api/template3?old_campus_name=OLD%20UNIVERSITY":  2,
		fmt.Sprintf("/api/template3?course_id=%d", mathID): 1,
		"/api/template3?old_campus_name=Elsewhere":         0,
	} {
		t.Run(path, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, path, coordToken)
			env.serve(req, rec)
			checkCode(t, rec, http.StatusOK)

			var resp struct {
				Template3s []template3.Template3 `json:"template3s"`
			}
			decode(t, rec, &resp)
			assert.Len(t, resp.Template3s, wantLen)
		})
	}

	t.Run("upload pdf", func(t *testing.T) {
		req, rec := newMultipartRequest(t, http.MethodPost, "/api/template3/upload-pdf", coordToken, nil)
		env.serve(req, rec)
		checkCodeAndData(t, httpTest{wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"template3_pdf": "this field is required"})}, rec)

		txt := formFile{field: "template3_pdf", filename: "template3.txt", content: []byte("lol")}
		req, rec = newMultipartRequest(t, http.MethodPost, "/api/template3/upload-pdf", coordToken, nil, txt)
		env.serve(req, rec)
		checkCodeAndData(t, httpTest{wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"file": "only PDF documents are accepted"})}, rec)

		pdf := formFile{field: "template3_pdf", filename: "template3.pdf", content: []byte("%PDF-1.4")}
		req, rec = newMultipartRequest(t, http.MethodPost, "/api/template3/upload-pdf", coordToken, nil, pdf)
		env.serve(req, rec)
		checkCode(t, rec, http.StatusCreated)

		var resp struct {
			FilePath string `json:"file_path"`
		}
		decode(t, rec, &resp)
		assert.NotEmpty(t, resp.FilePath)
	})
}
