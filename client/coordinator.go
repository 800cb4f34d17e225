package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/trezcool/cts/core/application"
	"github.com/trezcool/cts/core/appointment"
	"github.com/trezcool/cts/core/program"
	"github.com/trezcool/cts/core/staff"
	"github.com/trezcool/cts/core/template3"
)

// --- Appointments ---

func (c *Client) CoordinatorAppointments(ctx context.Context) ([]appointment.Appointment, error) {
	var resp struct {
		Appointments []appointment.Appointment `json:"appointments"`
	}
	err := c.doJSON(ctx, http.MethodGet, "/api/appointment/coordinator", nil, &resp)
	return resp.Appointments, err
}

func (c *Client) UpdateAppointment(ctx context.Context, id int, ua appointment.UpdateAppointment) (appointment.Appointment, error) {
	var resp struct {
		Appointment appointment.Appointment `json:"appointment"`
	}
	err := c.doJSON(ctx, http.MethodPut, idPath("/api/appointment/%d", id), ua, &resp)
	return resp.Appointment, err
}

// --- Applications ---

// CoordinatorApplications lists the applications of the coordinated programs, optionally in `statuses`.
func (c *Client) CoordinatorApplications(ctx context.Context, statuses ...string) ([]application.Application, error) {
	var resp struct {
		Applications []application.Application `json:"applications"`
	}
	err := c.doJSON(ctx, http.MethodGet, withQuery("/api/credit-transfer/coordinator/applications", statusQuery(statuses)), nil, &resp)
	return resp.Applications, err
}

// Inbox lists the coordinator's applications in `status` ("pending" for submitted, "" for all).
func (c *Client) Inbox(ctx context.Context, status string) ([]application.Application, error) {
	q := url.Values{}
	if status != "" {
		q.Set("status", status)
	}
	var resp struct {
		Data []application.Application `json:"data"`
	}
	err := c.doJSON(ctx, http.MethodGet, withQuery("/api/credit-applications/inbox", q), nil, &resp)
	return resp.Data, err
}

func (c *Client) UpdateApplicationStatus(ctx context.Context, id int, us application.UpdateStatus) (application.Application, error) {
	var app application.Application
	err := c.doJSON(ctx, http.MethodPatch, idPath("/api/credit-applications/%d", id), us, &app)
	return app, err
}

func (c *Client) ReviewPastSubject(ctx context.Context, r application.PastSubjectReview) (application.PastSubjectResult, error) {
	var res application.PastSubjectResult
	err := c.doJSON(ctx, http.MethodPost, "/api/credit-transfer/coordinator/review-subject", r, &res)
	return res, err
}

func (c *Client) CheckCurrentSubject(ctx context.Context, check application.SubjectCheck) (application.SubjectCheckResult, error) {
	var res application.SubjectCheckResult
	err := c.doJSON(ctx, http.MethodPost, "/api/credit-transfer/coordinator/check-current-subject", check, &res)
	return res, err
}

// CourseSMEs lists the SMEs a subject of `courseID` can be sent to.
func (c *Client) CourseSMEs(ctx context.Context, courseID int) ([]staff.Assignment, error) {
	q := url.Values{"course_id": {strconv.Itoa(courseID)}}
	var resp struct {
		Data []staff.Assignment `json:"data"`
	}
	err := c.doJSON(ctx, http.MethodGet, withQuery("/api/credit-transfer/coordinator/smes", q), nil, &resp)
	return resp.Data, err
}

// --- Program structures ---

func (c *Client) ProgramStructures(ctx context.Context) ([]program.Structure, error) {
	var resp struct {
		Data []program.Structure `json:"data"`
	}
	err := c.doJSON(ctx, http.MethodGet, "/api/program-structures", nil, &resp)
	return resp.Data, err
}

func (c *Client) UploadProgramStructure(ctx context.Context, programID int, doc File) (program.Structure, error) {
	fields := map[string]string{"program_id": strconv.Itoa(programID)}
	var st program.Structure
	err := c.doMultipart(ctx, http.MethodPost, "/api/program-structures", fields, map[string]File{"program_structure": doc}, &st)
	return st, err
}

func (c *Client) ReplaceCourses(ctx context.Context, structureID int, nc program.NewCourses) (program.Structure, error) {
	var st program.Structure
	err := c.doJSON(ctx, http.MethodPut, idPath("/api/program-structures/%d/courses", structureID), nc, &st)
	return st, err
}

// --- Template3 ---

func (c *Client) Template3s(ctx context.Context, filter template3.QueryFilter) ([]template3.Template3, error) {
	q := url.Values{}
	setInt(q, "old_campus_id", filter.OldCampusID)
	setString(q, "old_campus_name", filter.OldCampusName)
	setString(q, "old_programme_name", filter.OldProgrammeName)
	setInt(q, "program_id", filter.ProgramID)
	setString(q, "program_name", filter.ProgramName)
	setString(q, "program_code", filter.ProgramCode)
	setInt(q, "course_id", filter.CourseID)

	var resp struct {
		Template3s []template3.Template3 `json:"template3s"`
	}
	err := c.doJSON(ctx, http.MethodGet, withQuery("/api/template3", q), nil, &resp)
	return resp.Template3s, err
}

func (c *Client) CreateTemplate3(ctx context.Context, nt template3.NewTemplate3) (template3.Template3, error) {
	var entry template3.Template3
	err := c.doJSON(ctx, http.MethodPost, "/api/template3", nt, &entry)
	return entry, err
}

// BulkCreateTemplate3 creates what it can; failures are reported per entry index.
func (c *Client) BulkCreateTemplate3(ctx context.Context, nts []template3.NewTemplate3) (template3.BulkResult, error) {
	body := struct {
		Entries []template3.NewTemplate3 `json:"template3s"`
	}{nts}
	var res template3.BulkResult
	err := c.doJSON(ctx, http.MethodPost, "/api/template3/bulk", body, &res)
	return res, err
}

// UploadTemplate3PDF stores a Template3 document and returns its path.
func (c *Client) UploadTemplate3PDF(ctx context.Context, doc File) (string, error) {
	var resp struct {
		FilePath string `json:"file_path"`
	}
	err := c.doMultipart(ctx, http.MethodPost, "/api/template3/upload-pdf", nil, map[string]File{"template3_pdf": doc}, &resp)
	return resp.FilePath, err
}

func statusQuery(statuses []string) url.Values {
	q := url.Values{}
	if len(statuses) > 0 {
		q.Set("status", strings.Join(statuses, ","))
	}
	return q
}

func setInt(q url.Values, key string, v int) {
	if v != 0 {
		q.Set(key, strconv.Itoa(v))
	}
}

func setString(q url.Values, key, v string) {
	if v != "" {
		q.Set(key, v)
	}
}
