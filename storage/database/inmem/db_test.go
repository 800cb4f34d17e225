package inmemdb

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/cts/core/application"
	"github.com/trezcool/cts/core/review"
	"github.com/trezcool/cts/core/staff"
	"github.com/trezcool/cts/core/template3"
	"github.com/trezcool/cts/core/user"
)

func TestUserRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(NewDB())

	usr := user.User{ID: "u-1", Name: "Ada", Email: "ada@test.cd", Roles: []string{user.RoleStudent}}
	_, err := repo.CreateStudent(ctx, usr, user.Student{ProgramID: 1, CampusID: 1})
	require.NoError(t, err)

	_, err = repo.CreateUser(ctx, user.User{ID: "u-2", Email: "ada@test.cd"})
	assert.Error(t, err, "duplicate email")

	st, err := repo.GetStudent(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, "u-1", st.UserID)

	got, err := repo.GetUser(ctx, user.GetFilter{Email: "ada@test.cd"})
	require.NoError(t, err)
	got.Roles[0] = user.RoleAdmin
	again, _ := repo.GetUser(ctx, user.GetFilter{ID: "u-1"})
	assert.Equal(t, []string{user.RoleStudent}, again.Roles, "stored user must not be aliased")

	users, err := repo.QueryUsers(ctx, &user.QueryFilter{Search: "ADA", Roles: []string{user.RoleStudent}}, nil)
	require.NoError(t, err)
	assert.Len(t, users, 1)

	require.NoError(t, repo.DeleteUsers(ctx, "u-1"))
	_, err = repo.GetUser(ctx, user.GetFilter{ID: "u-1"})
	assert.Equal(t, user.ErrNotFound, err)
}

func TestStaffRepository_ListAssignments(t *testing.T) {
	ctx := context.Background()
	repo := NewStaffRepository(NewDB())
	day := func(d int) time.Time { return time.Date(2026, 3, d, 0, 0, 0, 0, time.UTC) }

	lect, err := repo.CreateLecturer(ctx, staff.Lecturer{UserID: "u-1", Name: "Grace", CampusID: 1})
	require.NoError(t, err)
	end := day(10)
	_, err = repo.CreateAssignment(ctx, staff.Assignment{RoleType: staff.RoleTypeSME, LecturerID: lect.ID, CourseID: 7, StartDate: day(1), EndDate: &end})
	require.NoError(t, err)

	active, err := repo.ListAssignments(ctx, staff.AssignmentFilter{UserID: "u-1", ActiveOn: day(9)})
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "Grace", active[0].Lecturer.Name)

	ended, err := repo.ListAssignments(ctx, staff.AssignmentFilter{UserID: "u-1", ActiveOn: day(10)})
	require.NoError(t, err)
	assert.Empty(t, ended, "end date is exclusive")
}

func TestTemplate3Repository_CreateTemplate3(t *testing.T) {
	ctx := context.Background()
	repo := NewTemplate3Repository(NewDB())

	_, err := repo.CreateTemplate3(ctx, template3.Template3{OldCampusName: "Old U", OldSubjectCode: "CS 101", OldSubjectName: "Intro", CourseID: 1, ProgramID: 1})
	require.NoError(t, err)
	_, err = repo.CreateTemplate3(ctx, template3.Template3{OldCampusName: "old u", OldSubjectCode: "cs101", OldSubjectName: "INTRO", CourseID: 1, ProgramID: 1})
	assert.Equal(t, template3.ErrExists, err)

	// the code is the key, whatever the name
	_, err = repo.CreateTemplate3(ctx, template3.Template3{OldCampusName: "Old U", OldSubjectCode: "CS101", OldSubjectName: "Programming", CourseID: 1, ProgramID: 1})
	assert.Equal(t, template3.ErrExists, err)

	// without a code, the name is
	_, err = repo.CreateTemplate3(ctx, template3.Template3{OldCampusName: "Old U", OldSubjectName: "Intro", CourseID: 1, ProgramID: 1})
	require.NoError(t, err)
	_, err = repo.CreateTemplate3(ctx, template3.Template3{OldCampusName: "Old U", OldSubjectName: " intro ", CourseID: 1, ProgramID: 1})
	assert.Equal(t, template3.ErrExists, err)
	_, err = repo.CreateTemplate3(ctx, template3.Template3{OldCampusName: "Old U", OldSubjectCode: "CS101", OldSubjectName: "Intro", CourseID: 2, ProgramID: 1})
	require.NoError(t, err)

	ts, err := repo.QueryTemplate3(ctx, template3.QueryFilter{ProgramIDs: []int{}})
	require.NoError(t, err)
	assert.Empty(t, ts, "an empty program list matches nothing")
}

func TestApplicationRepository(t *testing.T) {
	ctx := context.Background()
	db := NewDB()
	repo := NewApplicationRepository(db)
	drafts := NewDraftRepository(db)

	a, err := repo.CreateApplication(ctx, application.Application{
		Reference: "CT-1",
		StudentID: "u-1",
		Status:    application.StatusDraft,
		Subjects: []application.Subject{{
			CourseID:     1,
			PastSubjects: []application.PastSubject{{Name: "Intro", ApprovalStatus: application.ApprovalPending}},
		}},
	})
	require.NoError(t, err)
	oldSubjectID := a.Subjects[0].ID
	_, err = drafts.SaveDraft(ctx, review.Draft{ApplicationSubjectID: oldSubjectID, SMEUserID: "u-2"})
	require.NoError(t, err)

	a.Reference = ""
	a.Subjects = []application.Subject{{CourseID: 2}, {CourseID: 3}}
	_, err = repo.ReplaceApplication(ctx, a)
	require.NoError(t, err)

	got, err := repo.GetApplication(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "CT-1", got.Reference)
	require.Len(t, got.Subjects, 2)
	assert.Equal(t, 2, got.Subjects[0].CourseID)
	_, err = repo.GetSubject(ctx, oldSubjectID)
	assert.Equal(t, application.ErrSubjectNotFound, err)
	_, err = drafts.GetDraft(ctx, oldSubjectID, "u-2")
	assert.Equal(t, review.ErrDraftNotFound, err)

	apps, err := repo.QueryApplications(ctx, application.QueryFilter{ExcludeDrafts: true})
	require.NoError(t, err)
	assert.Empty(t, apps)
}
