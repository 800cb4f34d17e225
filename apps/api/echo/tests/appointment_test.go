package tests

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/cts/core/appointment"
	"github.com/trezcool/cts/core/staff"
	emailsvc "github.com/trezcool/cts/services/email"
)

func Test_appointmentApi(t *testing.T) {
	env := setup(t)
	student := env.CreateStudent(t, env.cat, "Hero", "hero@test.cd")
	coordinator, _ := env.CreateStaff(t, env.cat, staff.RoleTypeCoordinator, 0, "Coord", "coord@test.cd")
	studentToken := env.getToken(t, student)
	coordToken := env.getToken(t, coordinator)
	start := time.Now().Add(48 * time.Hour).UTC().Truncate(time.Second)

	tests := []httpTest{
		{
			name:     "coordinator required",
			body:     marchallObj(t, appointment.NewAppointment{CoordinatorID: student.ID, RequestedStart: start}),
			token:    coordToken,
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name:     "missing fields",
			body:     []byte(`{}`),
			token:    studentToken,
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"coordinatorId": "this field is required", "requestedStart": "this field is required"}),
		},
		{
			name:     "past start",
			body:     marchallObj(t, appointment.NewAppointment{CoordinatorID: coordinator.ID, RequestedStart: time.Now().Add(-time.Hour)}),
			token:    studentToken,
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"requestedStart": "must be in the future"}),
		},
		{
			name:     "not a coordinator",
			body:     marchallObj(t, appointment.NewAppointment{CoordinatorID: student.ID, RequestedStart: start}),
			token:    studentToken,
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"coordinatorId": "coordinator not found"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodPost, "/api/appointments", tt.token, tt.body)
			env.serve(req, rec)
			checkCodeAndData(t, tt, rec)
		})
	}

	body := marchallObj(t, appointment.NewAppointment{CoordinatorID: coordinator.ID, RequestedStart: start, Notes: " transcript questions "})
	req, rec := newAuthRequest(http.MethodPost, "/api/appointments", studentToken, body)
	env.serve(req, rec)
	checkCode(t, rec, http.StatusCreated)
	var appt appointment.Appointment
	decode(t, rec, &appt)
	assert.Equal(t, appointment.StatusScheduled, appt.Status)
	assert.Equal(t, "transcript questions", appt.Notes)
	assert.True(t, appt.End.Equal(start.Add(appointment.DefaultDuration)))
	require.NotNil(t, appt.Coordinator)
	assert.Equal(t, "Coord", appt.Coordinator.Name)

	t.Run("pending appointment", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/api/appointments", studentToken, body)
		env.serve(req, rec)
		checkCodeAndData(t, httpTest{wantCode: http.StatusConflict, wantData: marchallObj(t, httpErr{Error: "you already have a pending appointment"})}, rec)
	})

	t.Run("mine", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/api/appointments/mine", studentToken)
		env.serve(req, rec)
		checkCode(t, rec, http.StatusOK)

		var resp struct {
			Data []appointment.Appointment `json:"data"`
		}
		decode(t, rec, &resp)
		require.Len(t, resp.Data, 1)
		assert.Equal(t, appt.ID, resp.Data[0].ID)
	})

	t.Run("coordinator list", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/api/appointment/coordinator", coordToken)
		env.serve(req, rec)
		checkCode(t, rec, http.StatusOK)

		var resp struct {
			Appointments []appointment.Appointment `json:"appointments"`
		}
		decode(t, rec, &resp)
		require.Len(t, resp.Appointments, 1)
		require.NotNil(t, resp.Appointments[0].Student)
		assert.Equal(t, "hero@test.cd", resp.Appointments[0].Student.Email)
	})

	path := fmt.Sprintf("/api/appointment/%d", appt.ID)

	t.Run("invalid status", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPut, path, coordToken, []byte(`{"appointment_status": "postponed"}`))
		env.serve(req, rec)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"appointment_status": "must be one of: scheduled, approved, rejected, completed, cancelled"}),
		}, rec)
	})

	t.Run("other coordinator", func(t *testing.T) {
		other, _ := env.CreateStaff(t, env.cat, staff.RoleTypeCoordinator, 0, "Other", "other@test.cd")
		req, rec := newAuthRequest(http.MethodPut, path, env.getToken(t, other), []byte(`{"appointment_status": "approved"}`))
		env.serve(req, rec)
		checkCodeAndData(t, httpTest{wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "appointment not found"})}, rec)
	})

	emailsvc.ClearSentMessages()
	req, rec = newAuthRequest(http.MethodPut, path, coordToken, []byte(`{"appointment_status": "Approved", "appointment_notes": "room 12"}`))
	env.serve(req, rec)
	checkCode(t, rec, http.StatusOK)
	var resp struct {
		Appointment appointment.Appointment `json:"appointment"`
	}
	decode(t, rec, &resp)
	assert.Equal(t, appointment.StatusApproved, resp.Appointment.Status)
	assert.Equal(t, "room 12", resp.Appointment.Notes)
	assert.Len(t, emailsvc.Outbox(), 1)

	t.Run("invalid transition", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPut, path, coordToken, []byte(`{"appointment_status": "scheduled"}`))
		env.serve(req, rec)
		checkCodeAndData(t, httpTest{wantCode: http.StatusConflict, wantData: marchallObj(t, httpErr{Error: "appointment status cannot be changed that way"})}, rec)
	})
}
