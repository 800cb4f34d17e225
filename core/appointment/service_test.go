package appointment_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/cts/core"
	"github.com/trezcool/cts/core/appointment"
	"github.com/trezcool/cts/core/staff"
	"github.com/trezcool/cts/core/user"
	emailsvc "github.com/trezcool/cts/services/email"
	testutil "github.com/trezcool/cts/tests"
)

func TestNewAppointment_Validate(t *testing.T) {
	validate, _ := testutil.NewValidator()
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	coordID := "0c4e8f34-4d5c-4f43-9c4d-2d3b1a8f7b10"

	na := appointment.NewAppointment{CoordinatorID: " " + coordID + " ", RequestedStart: now.Add(time.Hour), Notes: "  about CSC101 "}
	require.NoError(t, na.Validate(validate, now))
	assert.Equal(t, coordID, na.CoordinatorID)
	assert.Equal(t, "about CSC101", na.Notes)
	assert.Equal(t, now.Add(time.Hour+appointment.DefaultDuration), na.RequestedEnd)

	tests := []struct {
		name  string
		na    appointment.NewAppointment
		field string
	}{
		{"past start", appointment.NewAppointment{CoordinatorID: coordID, RequestedStart: now.Add(-time.Hour)}, "requestedStart"},
		{"end before start", appointment.NewAppointment{CoordinatorID: coordID, RequestedStart: now.Add(2 * time.Hour), RequestedEnd: now.Add(time.Hour)}, "requestedEnd"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.na.Validate(validate, now)
			var verr *core.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Fields[0].Field)
		})
	}

	bad := appointment.NewAppointment{CoordinatorID: "nope", RequestedStart: now.Add(time.Hour)}
	assert.Error(t, bad.Validate(validate, now))
}

func TestCanTransition(t *testing.T) {
	assert.True(t, appointment.CanTransition(appointment.StatusScheduled, appointment.StatusApproved))
	assert.True(t, appointment.CanTransition(appointment.StatusApproved, appointment.StatusCompleted))
	assert.True(t, appointment.CanTransition(appointment.StatusRejected, appointment.StatusRejected))
	assert.False(t, appointment.CanTransition(appointment.StatusCompleted, appointment.StatusScheduled))
	assert.False(t, appointment.CanTransition(appointment.StatusApproved, appointment.StatusRejected))
}

func TestService(t *testing.T) {
	env := testutil.NewEnv(t)
	cat := env.SeedCatalog(t)
	ctx := context.Background()
	svc := env.AppointmentSvc

	student := env.CreateStudent(t, cat, "Ada Lovelace", "ada@cts.test")
	coord, _ := env.CreateStaff(t, cat, staff.RoleTypeCoordinator, 0, "Carl Mbuyi", "carl@cts.test")
	other, _ := env.CreateStaff(t, cat, staff.RoleTypeCoordinator, 0, "Celine Tshala", "celine@cts.test")
	lecturer := testutil.CreateUser(t, env.Repos.User, "Luc Mukendi", "luc@cts.test", testutil.Password, []string{user.RoleSME}, true)

	start := time.Now().Add(48 * time.Hour).Truncate(time.Minute)
	na := appointment.NewAppointment{CoordinatorID: lecturer.ID, RequestedStart: start, RequestedEnd: start.Add(time.Hour), Notes: "Credits"}

	_, err := svc.Create(ctx, student, na)
	var verr *core.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "coordinatorId", verr.Fields[0].Field)

	na.CoordinatorID = coord.ID
	appt, err := svc.Create(ctx, student, na)
	require.NoError(t, err)
	assert.Equal(t, appointment.StatusScheduled, appt.Status)
	assert.Equal(t, start.UTC(), appt.Start)
	require.NotNil(t, appt.Coordinator)
	assert.Equal(t, "Carl Mbuyi", appt.Coordinator.Name)
	assert.Equal(t, []string{core.TopicAppointmentCreated}, env.Events.Topics())

	_, err = svc.Create(ctx, student, na)
	assert.Equal(t, appointment.ErrPendingAppointment, err)

	mine, err := svc.ListMine(ctx, student.ID)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "Ada Lovelace", mine[0].Student.Name)

	appts, err := svc.ListForCoordinator(ctx, other.ID)
	require.NoError(t, err)
	assert.Empty(t, appts)

	_, err = svc.Update(ctx, other, appt.ID, appointment.UpdateAppointment{Status: appointment.StatusApproved})
	assert.Equal(t, appointment.ErrNotFound, err)

	emailsvc.ClearSentMessages()
	updated, err := svc.Update(ctx, coord, appt.ID, appointment.UpdateAppointment{Status: appointment.StatusApproved, Notes: "Room 12"})
	require.NoError(t, err)
	assert.Equal(t, appointment.StatusApproved, updated.Status)
	assert.Equal(t, "Room 12", updated.Notes)
	outbox := emailsvc.Outbox()
	require.Len(t, outbox, 1)
	assert.Equal(t, "appointment_updated", outbox[0].TemplateName)
	assert.Equal(t, "ada@cts.test", outbox[0].To[0].Address)

	// notes only: no email
	emailsvc.ClearSentMessages()
	_, err = svc.Update(ctx, coord, appt.ID, appointment.UpdateAppointment{Status: appointment.StatusApproved, Notes: "Room 14"})
	require.NoError(t, err)
	assert.Empty(t, emailsvc.Outbox())

	_, err = svc.Update(ctx, coord, appt.ID, appointment.UpdateAppointment{Status: appointment.StatusRejected})
	assert.Equal(t, appointment.ErrInvalidTransition, err)

	_, err = svc.Update(ctx, coord, appt.ID, appointment.UpdateAppointment{Status: appointment.StatusCompleted})
	require.NoError(t, err)

	// completed appointments are no longer pending
	_, err = svc.Create(ctx, student, na)
	assert.NoError(t, err)
}
