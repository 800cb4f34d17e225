package program_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/cts/core"
	"github.com/trezcool/cts/core/program"
	testutil "github.com/trezcool/cts/tests"
)

func TestNewCourses_Validate(t *testing.T) {
	validate, _ := testutil.NewValidator()

	ncs := program.NewCourses{Courses: []program.NewCourse{{Code: " CSC101 ", Name: " Programming ", Credit: 4}}}
	require.NoError(t, ncs.Validate(validate))
	assert.Equal(t, "CSC101", ncs.Courses[0].Code)
	assert.Equal(t, "Programming", ncs.Courses[0].Name)

	tests := []struct {
		name string
		ncs  program.NewCourses
	}{
		{"empty", program.NewCourses{}},
		{"no credit", program.NewCourses{Courses: []program.NewCourse{{Code: "CSC101", Name: "Programming"}}}},
		{"bad code", program.NewCourses{Courses: []program.NewCourse{{Code: "CSC 101!", Name: "Programming", Credit: 4}}}},
		{"duplicate code", program.NewCourses{Courses: []program.NewCourse{
			{Code: "CSC101", Name: "Programming", Credit: 4},
			{Code: "csc101", Name: "Programming II", Credit: 4},
		}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.ncs.Validate(validate))
		})
	}
}

func TestService_Seed(t *testing.T) {
	env := testutil.NewEnv(t)
	ctx := context.Background()
	svc := env.ProgramSvc

	seed := program.Seed{
		Campuses:    []program.Campus{{ID: 1, Name: "Main Campus"}, {ID: 2, Name: "City Campus"}},
		OldCampuses: []program.OldCampus{{Name: "Old University"}},
		Programs: []program.Program{
			{ID: 10, Code: "BSC-CS", Name: "Computer Science", CampusID: 1},
			{ID: 11, Code: "BBA", Name: "Business Administration", CampusID: 2},
		},
		Courses: []program.Course{
			{ProgramID: 10, Code: "CSC101", Name: "Programming", Credit: 4},
			{ProgramID: 10, Code: "MAT101", Name: "Calculus", Credit: 3},
			{ProgramID: 11, Code: "ACC101", Name: "Accounting", Credit: 3},
		},
	}
	require.NoError(t, svc.Seed(ctx, seed))
	// seeding twice changes nothing
	require.NoError(t, svc.Seed(ctx, seed))

	data, err := svc.StaticData(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, data.Campuses, 2)
	assert.Len(t, data.OldCampuses, 1)
	assert.Len(t, data.Programs, 2)

	var main program.Campus
	for _, c := range data.Campuses {
		if c.Name == "Main Campus" {
			main = c
		}
	}
	data, err = svc.StaticData(ctx, main.ID)
	require.NoError(t, err)
	require.Len(t, data.Programs, 1)
	assert.Equal(t, "BSC-CS", data.Programs[0].Code)

	courses, err := svc.Courses(ctx, data.Programs[0].ID)
	require.NoError(t, err)
	assert.Len(t, courses, 2)

	progs, err := svc.Programs(ctx, program.ProgramFilter{Name: " business administration "})
	require.NoError(t, err)
	require.Len(t, progs, 1)
	assert.Equal(t, "BBA", progs[0].Code)

	oc, err := svc.OldCampusByName(ctx, "old university")
	require.NoError(t, err)
	assert.Equal(t, "Old University", oc.Name)

	_, err = svc.OldCampusByName(ctx, "Nowhere")
	assert.Equal(t, program.ErrOldCampusNotFound, err)
}

func TestService_Structures(t *testing.T) {
	env := testutil.NewEnv(t)
	cat := env.SeedCatalog(t)
	ctx := context.Background()
	svc := env.ProgramSvc
	coordID := "5f0c1f7e-8c57-4f51-a7b8-2b6a0e9cf1d4"

	_, err := svc.UploadStructure(ctx, cat.Program.ID, coordID, core.Upload{Filename: "structure.docx", Content: strings.NewReader("doc")})
	var verr *core.ValidationError
	require.ErrorAs(t, err, &verr)

	_, err = svc.UploadStructure(ctx, 999, coordID, core.Upload{Filename: "structure.pdf", Content: strings.NewReader("%PDF")})
	assert.Equal(t, program.ErrNotFound, err)

	st, err := svc.UploadStructure(ctx, cat.Program.ID, coordID, core.Upload{Filename: "structure.pdf", ContentType: "application/pdf", Content: strings.NewReader("%PDF")})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(st.FilePath, "program-structures/"), st.FilePath)
	require.NotNil(t, st.Program)
	assert.Equal(t, "BSC-CS", st.Program.Code)
	assert.Len(t, st.Courses, 2)

	st, err = svc.ReplaceCourses(ctx, st.ID, program.NewCourses{Courses: []program.NewCourse{
		{Code: "CSC101", Name: "Programming Fundamentals", Credit: 5},
		{Code: "CSC102", Name: "Data Structures", Credit: 4},
	}})
	require.NoError(t, err)

	byCode := make(map[string]program.Course)
	for _, c := range st.Courses {
		byCode[c.Code] = c
	}
	require.Len(t, byCode, 3)
	// existing courses keep their ID
	assert.Equal(t, cat.Courses[0].ID, byCode["CSC101"].ID)
	assert.Equal(t, "Programming Fundamentals", byCode["CSC101"].Name)
	assert.Equal(t, 5, byCode["CSC101"].Credit)
	assert.Contains(t, byCode, "MAT101")

	sts, err := svc.Structures(ctx, []int{cat.Program.ID})
	require.NoError(t, err)
	require.Len(t, sts, 1)
	assert.Equal(t, st.ID, sts[0].ID)

	_, err = svc.ReplaceCourses(ctx, 999, program.NewCourses{})
	assert.Equal(t, program.ErrStructureNotFound, err)
}
