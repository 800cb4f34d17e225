package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/trezcool/cts/apps/api/echo"
	"github.com/trezcool/cts/core"
	"github.com/trezcool/cts/core/application"
	"github.com/trezcool/cts/core/appointment"
	"github.com/trezcool/cts/core/review"
	"github.com/trezcool/cts/core/staff"
	"github.com/trezcool/cts/core/user"
	"github.com/trezcool/cts/tests"
)

type serverEnv struct {
	*testutil.Env
	url string
	cat testutil.Catalog
}

// newServerEnv serves the API on a fresh in-memory database.
func newServerEnv(t *testing.T) *serverEnv {
	env := testutil.NewEnv(t)
	server := echoapi.NewServer(echoapi.ServerDeps{
		Conf:           env.Conf,
		Logger:         env.Logger,
		Validate:       env.Validate,
		Translator:     env.Translator,
		UserSvc:        env.UserSvc,
		ProgramSvc:     env.ProgramSvc,
		StaffSvc:       env.StaffSvc,
		AppointmentSvc: env.AppointmentSvc,
		ApplicationSvc: env.ApplicationSvc,
		Template3Svc:   env.Template3Svc,
		DisableReqLogs: true,
	})
	srv := httptest.NewServer(server)
	t.Cleanup(func() {
		srv.Close()
		_ = server.Shutdown(context.Background())
	})
	return &serverEnv{Env: env, url: srv.URL, cat: env.SeedCatalog(t)}
}

func (env *serverEnv) login(t *testing.T, email string) *Client {
	c, err := New(env.url, WithSessionStore(NewFileSessionStore(filepath.Join(t.TempDir(), "session.json"))))
	require.NoError(t, err)
	_, err = c.Login(context.Background(), email, testutil.Password)
	require.NoError(t, err)
	return c
}

func TestClient_studentDashboard(t *testing.T) {
	env := newServerEnv(t)
	env.CreateStudent(t, env.cat, "Ada Lovelace", "ada@test.cd")
	ctx := context.Background()

	anon, err := New(env.url)
	require.NoError(t, err)
	data, err := anon.StaticData(ctx, env.cat.Campus.ID)
	require.NoError(t, err)
	assert.Len(t, data.Programs, 1)

	_, err = anon.Login(ctx, "ada@test.cd", "wrong")
	assert.True(t, IsStatus(err, http.StatusBadRequest) || IsStatus(err, http.StatusUnauthorized), "got %v", err)

	c := env.login(t, "ada@test.cd")
	sess := c.Session()
	path, ok := Guard(sess, user.RoleStudent)
	assert.True(t, ok)
	assert.Empty(t, path)
	assert.Equal(t, "/student", DashboardPath(sess.Role))

	me, err := c.Me(ctx)
	require.NoError(t, err)
	require.NotNil(t, me.Student)
	assert.Equal(t, env.cat.Program.ID, me.Student.ProgramID)

	_, courses, err := c.ProgramStructure(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, courses, 2)

	draft, err := c.Apply(ctx, ApplyRequest{Subjects: []application.NewSubject{
		{CourseID: env.cat.Courses[0].ID, PastSubjects: []application.NewPastSubject{{Code: "CS 101", Name: "Intro to Programming", Grade: "A"}}},
	}})
	require.NoError(t, err)
	assert.Equal(t, application.StatusDraft, draft.Status)
	assert.True(t, strings.HasPrefix(draft.Reference, "CT-"))

	t.Run("incomplete submission", func(t *testing.T) {
		_, err := c.Apply(ctx, ApplyRequest{DraftID: draft.ID, Submit: true})
		require.Error(t, err)
		apiErr, ok := err.(*APIError)
		require.True(t, ok, "got %T", err)
		assert.Equal(t, http.StatusBadRequest, apiErr.Status)
		assert.Equal(t, "a transcript is required", apiErr.Fields["transcript"])
	})

	submitted, err := c.ApplyWithFiles(ctx,
		ApplyRequest{DraftID: draft.ID, Submit: true, Subjects: []application.NewSubject{
			{CourseID: env.cat.Courses[0].ID, PastSubjects: []application.NewPastSubject{
				{Code: "CS 101", Name: "Intro to Programming", Grade: "A", SyllabusFile: SyllabusField(0, 0)},
			}},
		}},
		ApplyFiles{
			Transcript: &File{Name: "transcript.pdf", Content: strings.NewReader("%PDF-1.4")},
			Syllabi:    map[string]File{SyllabusField(0, 0): {Name: "cs101.pdf", Content: strings.NewReader("%PDF-1.4")}},
		},
	)
	require.NoError(t, err)
	assert.Equal(t, application.StatusSubmitted, submitted.Status)

	apps, err := c.MyApplications(ctx)
	require.NoError(t, err)
	require.Len(t, apps, 1)
	assert.Equal(t, draft.ID, apps[0].ID)

	t.Run("coordinator pages", func(t *testing.T) {
		_, err := c.Inbox(ctx, "")
		apiErr, ok := err.(*APIError)
		require.True(t, ok, "got %T", err)
		assert.Equal(t, http.StatusForbidden, apiErr.Status)
		assert.Equal(t, "permission denied", apiErr.Message)
	})
}

func TestClient_smeAutosave(t *testing.T) {
	env := newServerEnv(t)
	ctx := context.Background()
	student := env.CreateStudent(t, env.cat, "Ada Lovelace", "ada@test.cd")
	env.CreateStaff(t, env.cat, staff.RoleTypeCoordinator, 0, "Carl Mbuyi", "carl@test.cd")
	env.CreateStaff(t, env.cat, staff.RoleTypeSME, env.cat.Courses[1].ID, "Sara Ilunga", "sara@test.cd")

	app, err := env.ApplicationSvc.Apply(ctx, student, application.ApplyForm{
		Submit: true,
		Subjects: []application.NewSubject{
			{CourseID: env.cat.Courses[1].ID, PastSubjects: []application.NewPastSubject{{Code: "MA1", Name: "Mathematics I", Grade: "B"}}},
		},
		Transcript: &core.Upload{Filename: "transcript.pdf", ContentType: "application/pdf", Size: 3, Content: strings.NewReader("pdf")},
	})
	require.NoError(t, err)
	subjectID := app.Subjects[0].ID

	coordClient := env.login(t, "carl@test.cd")
	assert.Equal(t, "/coordinator", DashboardPath(coordClient.Session().Role))
	res, err := coordClient.CheckCurrentSubject(ctx, application.SubjectCheck{ApplicationSubjectID: subjectID, Action: application.ActionSendAllToSME})
	require.NoError(t, err)
	assert.Equal(t, application.StatusAwaitingSME, res.ApplicationStatus)

	c := env.login(t, "sara@test.cd")
	_, ok := Guard(c.Session(), user.RoleSME)
	require.True(t, ok)

	assignments, err := c.SMEAssignments(ctx)
	require.NoError(t, err)
	require.Len(t, assignments, 1)
	assert.Equal(t, subjectID, assignments[0].ID)

	store := NewServerDraftStore(c)
	_, err = store.LoadDraft(ctx, subjectID)
	assert.True(t, IsDraftNotFound(err))

	saver := NewAutosaver(store, WithAutosaveDelay(10*time.Millisecond))
	saver.Update(review.Draft{ApplicationSubjectID: subjectID, SMENotes: "half"})
	saver.Update(review.Draft{
		ApplicationSubjectID: subjectID,
		Topics:               []review.TopicComparison{{NewSubjectTopic: "Limits", SimilarityPercentage: 90}},
		SMENotes:             "halfway",
	})
	require.NoError(t, saver.Close(ctx))

	restored, err := store.LoadDraft(ctx, subjectID)
	require.NoError(t, err)
	assert.Equal(t, "halfway", restored.SMENotes)
	assert.Equal(t, 90.0, restored.AverageSimilarity)

	result, err := c.SubmitReview(ctx, subjectID, review.Review{
		Notes: "Same content",
		Topics: []review.TopicComparison{
			{NewSubjectTopic: "Limits", SimilarityPercentage: 90},
			{NewSubjectTopic: "Derivatives", SimilarityPercentage: 80},
		},
	})
	require.NoError(t, err)
	assert.True(t, result.Approved)
	assert.Equal(t, 85.0, result.AverageSimilarity)

	require.NoError(t, store.DeleteDraft(ctx, subjectID))
}

func TestClient_staffPages(t *testing.T) {
	env := newServerEnv(t)
	ctx := context.Background()
	student := env.CreateStudent(t, env.cat, "Ada Lovelace", "ada@test.cd")
	coord, _ := env.CreateStaff(t, env.cat, staff.RoleTypeCoordinator, 0, "Carl Mbuyi", "carl@test.cd")
	_, smeRole := env.CreateStaff(t, env.cat, staff.RoleTypeSME, env.cat.Courses[0].ID, "Sara Ilunga", "sara@test.cd")
	env.CreateStaff(t, env.cat, staff.RoleTypeHOS, 0, "Henri Kabila", "henri@test.cd")
	testutil.CreateUser(t, env.Repos.User, "Root", "root@test.cd", testutil.Password, []string{user.RoleAdmin}, true)

	app, err := env.ApplicationSvc.Apply(ctx, student, application.ApplyForm{
		Submit: true,
		Subjects: []application.NewSubject{
			{CourseID: env.cat.Courses[0].ID, PastSubjects: []application.NewPastSubject{{Code: "CS1", Name: "Programming", Grade: "A"}}},
		},
		Transcript: &core.Upload{Filename: "transcript.pdf", ContentType: "application/pdf", Size: 3, Content: strings.NewReader("pdf")},
	})
	require.NoError(t, err)

	studentClient := env.login(t, "ada@test.cd")
	coordClient := env.login(t, "carl@test.cd")

	t.Run("appointments", func(t *testing.T) {
		start := time.Now().Add(48 * time.Hour).Truncate(time.Minute)
		appt, err := studentClient.BookAppointment(ctx, appointment.NewAppointment{CoordinatorID: coord.ID, RequestedStart: start, Notes: "Credits"})
		require.NoError(t, err)
		assert.Equal(t, appointment.StatusScheduled, appt.Status)
		assert.Equal(t, start.UTC(), appt.Start)

		mine, err := studentClient.MyAppointments(ctx)
		require.NoError(t, err)
		require.Len(t, mine, 1)

		appts, err := coordClient.CoordinatorAppointments(ctx)
		require.NoError(t, err)
		require.Len(t, appts, 1)
		require.NotNil(t, appts[0].Student)
		assert.Equal(t, "Ada Lovelace", appts[0].Student.Name)

		updated, err := coordClient.UpdateAppointment(ctx, appt.ID, appointment.UpdateAppointment{Status: appointment.StatusApproved, Notes: "See you"})
		require.NoError(t, err)
		assert.Equal(t, appointment.StatusApproved, updated.Status)
	})

	t.Run("application status", func(t *testing.T) {
		pending, err := coordClient.Inbox(ctx, "pending")
		require.NoError(t, err)
		require.Len(t, pending, 1)

		rejected, err := coordClient.UpdateApplicationStatus(ctx, app.ID, application.UpdateStatus{Status: application.StatusRejected, Notes: "Incomplete syllabi"})
		require.NoError(t, err)
		assert.Equal(t, application.StatusRejected, rejected.Status)
	})

	t.Run("head of section", func(t *testing.T) {
		c := env.login(t, "henri@test.cd")
		assert.Equal(t, "/hos", DashboardPath(c.Session().Role))

		summary, err := c.HOSSummary(ctx)
		require.NoError(t, err)
		assert.Equal(t, env.cat.Campus.ID, summary.CampusID)
		assert.Equal(t, 1, summary.Total)
		assert.Equal(t, 1, summary.ByStatus[application.StatusRejected])

		apps, err := c.HOSApplications(ctx, application.StatusRejected)
		require.NoError(t, err)
		require.Len(t, apps, 1)
		assert.Equal(t, app.ID, apps[0].ID)
	})

	t.Run("staff assignments", func(t *testing.T) {
		c := env.login(t, "root@test.cd")

		ov, err := c.StaffAssignments(ctx, env.cat.Campus.ID)
		require.NoError(t, err)
		assert.Len(t, ov.Coordinators, 1)
		require.Len(t, ov.SubjectMethodExperts, 1)
		assert.Equal(t, smeRole.ID, ov.SubjectMethodExperts[0].ID)
		assert.Len(t, ov.HeadOfSections, 1)

		ended, err := c.EndStaffRole(ctx, staff.EndRole{RoleType: staff.RoleTypeSME, RoleID: smeRole.ID})
		require.NoError(t, err)
		assert.Equal(t, smeRole.ID, ended.ID)
		assert.NotNil(t, ended.EndDate)

		ov, err = c.StaffAssignments(ctx, env.cat.Campus.ID)
		require.NoError(t, err)
		assert.Empty(t, ov.SubjectMethodExperts)
	})
}
