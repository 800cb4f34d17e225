package tests

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/cts/core/program"
	"github.com/trezcool/cts/core/staff"
	"github.com/trezcool/cts/core/user"
	"github.com/trezcool/cts/tests"
)

func Test_programApi_staticData(t *testing.T) {
	env := setup(t)

	for _, path := range []string{"/staticdata", "/api/staticdata", fmt.Sprintf("/staticdata?campus_id=%d", env.cat.Campus.ID)} {
		t.Run(path, func(t *testing.T) {
			req, rec := newRequest(http.MethodGet, path)
			env.serve(req, rec)
			checkCode(t, rec, http.StatusOK)

			var data program.StaticData
			decode(t, rec, &data)
			assert.Len(t, data.Campuses, 1)
			require.Len(t, data.Programs, 1)
			assert.Equal(t, "BSC-CS", data.Programs[0].Code)
			require.Len(t, data.OldCampuses, 1)
			assert.Equal(t, "Old University", data.OldCampuses[0].Name)
		})
	}

	t.Run("unknown campus", func(t *testing.T) {
		req, rec := newRequest(http.MethodGet, "/staticdata?campus_id=999")
		env.serve(req, rec)
		checkCode(t, rec, http.StatusOK)

		var data program.StaticData
		decode(t, rec, &data)
		assert.Empty(t, data.Programs)
	})

	t.Run("invalid campus", func(t *testing.T) {
		req, rec := newRequest(http.MethodGet, "/staticdata?campus_id=lol")
		env.serve(req, rec)
		checkCodeAndData(t, httpTest{wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"campus_id": "must be a number"})}, rec)
	})
}

func Test_programApi_structure(t *testing.T) {
	env := setup(t)
	student := env.CreateStudent(t, env.cat, "Hero", "hero@test.cd")
	coordinator, _ := env.CreateStaff(t, env.cat, staff.RoleTypeCoordinator, 0, "Coord", "coord@test.cd")

	type structureResp struct {
		Program program.Program  `json:"program"`
		Courses []program.Course `json:"courses"`
	}

	tests := []httpTest{
		{name: "Auth required", path: "/api/program/structure", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "staff must name the program", path: "/api/program/structure", token: env.getToken(t, coordinator),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"program_id": "this field is required"}),
		},
		{
			name: "unknown program", path: "/api/program/courses?program_id=999", token: env.getToken(t, coordinator),
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "program not found"}),
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodGet

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token)
			env.serve(req, rec)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("student program", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/api/program/structure", env.getToken(t, student))
		env.serve(req, rec)
		checkCode(t, rec, http.StatusOK)

		var resp structureResp
		decode(t, rec, &resp)
		assert.Equal(t, env.cat.Program.ID, resp.Program.ID)
		assert.Len(t, resp.Courses, 2)
	})

	t.Run("explicit program", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, fmt.Sprintf("/api/program/courses?program_id=%d", env.cat.Program.ID), env.getToken(t, coordinator))
		env.serve(req, rec)
		checkCode(t, rec, http.StatusOK)

		var resp structureResp
		decode(t, rec, &resp)
		assert.Len(t, resp.Courses, 2)
	})
}

func Test_programApi_programStructures(t *testing.T) {
	env := setup(t)
	student := env.CreateStudent(t, env.cat, "Hero", "hero@test.cd")
	coordinator, _ := env.CreateStaff(t, env.cat, staff.RoleTypeCoordinator, 0, "Coord", "coord@test.cd")
	idle := testutil.CreateUser(t, env.Repos.User, "Idle", "idle@test.cd", testutil.Password, []string{user.RoleCoordinator}, true)
	coordToken := env.getToken(t, coordinator)
	progID := fmt.Sprint(env.cat.Program.ID)
	pdf := formFile{field: "program_structure", filename: "structure.pdf", content: []byte("%PDF-1.4")}

	t.Run("coordinator required", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/api/program-structures", env.getToken(t, student))
		env.serve(req, rec)
		checkCodeAndData(t, httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"})}, rec)
	})

	t.Run("file required", func(t *testing.T) {
		req, rec := newMultipartRequest(t, http.MethodPost, "/api/program-structures", coordToken, map[string]string{"program_id": progID})
		env.serve(req, rec)
		checkCodeAndData(t, httpTest{wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"program_structure": "this field is required"})}, rec)
	})

	t.Run("not coordinated", func(t *testing.T) {
		req, rec := newMultipartRequest(t, http.MethodPost, "/api/program-structures", env.getToken(t, idle), map[string]string{"program_id": progID}, pdf)
		env.serve(req, rec)
		checkCode(t, rec, http.StatusForbidden)
	})

	req, rec := newMultipartRequest(t, http.MethodPost, "/api/program-structures", coordToken, map[string]string{"program_id": progID}, pdf)
	env.serve(req, rec)
	checkCode(t, rec, http.StatusCreated)
	var st program.Structure
	decode(t, rec, &st)
	assert.Equal(t, env.cat.Program.ID, st.ProgramID)
	assert.NotEmpty(t, st.FilePath)
	assert.Equal(t, coordinator.ID, st.UploadedBy)

	t.Run("listed", func(t *testing.T) {
		for token, wantLen := range map[string]int{coordToken: 1, env.getToken(t, idle): 0} {
			req, rec := newAuthRequest(http.MethodGet, "/api/program-structures", token)
			env.serve(req, rec)
			checkCode(t, rec, http.StatusOK)

			var resp struct {
				Data []program.Structure `json:"data"`
			}
			decode(t, rec, &resp)
			assert.Len(t, resp.Data, wantLen)
		}
	})

	coursesPath := fmt.Sprintf("/api/program-structures/%d/courses", st.ID)
	courses := program.NewCourses{Courses: []program.NewCourse{
		{Code: "CSC101", Name: "Programming I", Credit: 4},
		{Code: "CSC201", Name: "Data Structures", Credit: 4},
	}}

	t.Run("structure of another program", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPut, coursesPath, env.getToken(t, idle), marchallObj(t, courses))
		env.serve(req, rec)
		checkCodeAndData(t, httpTest{wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "not found"})}, rec)
	})

	t.Run("invalid courses", func(t *testing.T) {
		body := marchallObj(t, program.NewCourses{Courses: []program.NewCourse{{Code: "CSC101", Name: "A", Credit: 1}, {Code: "csc101", Name: "B", Credit: 1}}})
		req, rec := newAuthRequest(http.MethodPut, coursesPath, coordToken, body)
		env.serve(req, rec)
		checkCodeAndData(t, httpTest{wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"courses": "duplicate course code csc101"})}, rec)
	})

	t.Run("courses replaced", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPut, coursesPath, coordToken, marchallObj(t, courses))
		env.serve(req, rec)
		checkCode(t, rec, http.StatusOK)

		var updated program.Structure
		decode(t, rec, &updated)
		require.Len(t, updated.Courses, 3)
		names := make(map[string]string)
		for _, c := range updated.Courses {
			names[c.Code] = c.Name
		}
		assert.Equal(t, "Programming I", names["CSC101"])
		assert.Equal(t, "Data Structures", names["CSC201"])
		assert.Equal(t, "Calculus", names["MAT101"])
	})

	t.Run("multipart courses", func(t *testing.T) {
		values := map[string]string{"courses": `[{"course_code": "CSC301", "course_name": "Compilers", "course_credit": 3}]`}
		req, rec := newMultipartRequest(t, http.MethodPut, coursesPath, coordToken, values)
		env.serve(req, rec)
		checkCode(t, rec, http.StatusOK)

		var updated program.Structure
		decode(t, rec, &updated)
		assert.Len(t, updated.Courses, 4)
	})
}

func Test_programApi_programs(t *testing.T) {
	env := setup(t)
	admin := testutil.CreateUser(t, env.Repos.User, "Admin", "admin@test.cd", testutil.Password, []string{user.RoleAdmin}, true)
	student := env.CreateStudent(t, env.cat, "Hero", "hero@test.cd")

	req, rec := newAuthRequest(http.MethodGet, "/api/admin/programs", env.getToken(t, student))
	env.serve(req, rec)
	checkCode(t, rec, http.StatusForbidden)

	req, rec = newAuthRequest(http.MethodGet, "/api/admin/programs", env.getToken(t, admin))
	env.serve(req, rec)
	checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallObj(t, map[string][]program.Program{"programs": {env.cat.Program}})}, rec)
}
