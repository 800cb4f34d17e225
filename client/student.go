package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"sort"
	"strconv"

	"github.com/pkg/errors"

	"github.com/trezcool/cts/core/application"
	"github.com/trezcool/cts/core/appointment"
	"github.com/trezcool/cts/core/program"
)

// ApplyRequest is an application form; Submit false saves a draft.
type ApplyRequest struct {
	DraftID           int                      `json:"draftId,omitempty"`
	Submit            bool                     `json:"submit"`
	PrevCampusName    string                   `json:"prev_campus_name"`
	PrevProgrammeName string                   `json:"prev_programme_name"`
	Subjects          []application.NewSubject `json:"subjects"`
}

// File is a document attached to a form.
type File struct {
	Name    string
	Content io.Reader
}

// ApplyFiles are the documents of an application form.
// Syllabi are keyed by the SyllabusFile of their past subject.
type ApplyFiles struct {
	Transcript *File
	Syllabi    map[string]File
}

// SyllabusField names the file field of the syllabus of subjects[i].pastSubjects[j].
func SyllabusField(i, j int) string {
	return fmt.Sprintf("syllabus_%d_%d", i, j)
}

// Apply saves or submits an application without documents.
func (c *Client) Apply(ctx context.Context, req ApplyRequest) (application.Application, error) {
	var app application.Application
	err := c.doJSON(ctx, http.MethodPost, "/api/credit-transfer/apply", req, &app)
	return app, err
}

// ApplyWithFiles saves or submits an application as a multipart form.
func (c *Client) ApplyWithFiles(ctx context.Context, req ApplyRequest, files ApplyFiles) (application.Application, error) {
	subjects, err := json.Marshal(req.Subjects)
	if err != nil {
		return application.Application{}, errors.Wrap(err, "marshaling subjects")
	}
	fields := map[string]string{
		"submit":              strconv.FormatBool(req.Submit),
		"prev_campus_name":    req.PrevCampusName,
		"prev_programme_name": req.PrevProgrammeName,
		"subjects":            string(subjects),
	}
	if req.DraftID > 0 {
		fields["draftId"] = strconv.Itoa(req.DraftID)
	}
	uploads := make(map[string]File, len(files.Syllabi)+1)
	for field, f := range files.Syllabi {
		uploads[field] = f
	}
	if files.Transcript != nil {
		uploads["transcript"] = *files.Transcript
	}

	var app application.Application
	err = c.doMultipart(ctx, http.MethodPost, "/api/credit-transfer/apply", fields, uploads, &app)
	return app, err
}

// MyApplications lists the student's applications, drafts included.
func (c *Client) MyApplications(ctx context.Context) ([]application.Application, error) {
	var resp struct {
		Applications []application.Application `json:"applications"`
	}
	err := c.doJSON(ctx, http.MethodGet, "/api/credit-transfer/applications", nil, &resp)
	return resp.Applications, err
}

func (c *Client) BookAppointment(ctx context.Context, na appointment.NewAppointment) (appointment.Appointment, error) {
	var appt appointment.Appointment
	err := c.doJSON(ctx, http.MethodPost, "/api/appointments", na, &appt)
	return appt, err
}

func (c *Client) MyAppointments(ctx context.Context) ([]appointment.Appointment, error) {
	var resp struct {
		Data []appointment.Appointment `json:"data"`
	}
	err := c.doJSON(ctx, http.MethodGet, "/api/appointments/mine", nil, &resp)
	return resp.Data, err
}

// ProgramStructure returns a program with its courses; programID 0 is the student's own program.
func (c *Client) ProgramStructure(ctx context.Context, programID int) (program.Program, []program.Course, error) {
	q := url.Values{}
	if programID > 0 {
		q.Set("program_id", strconv.Itoa(programID))
	}
	var resp struct {
		Program program.Program  `json:"program"`
		Courses []program.Course `json:"courses"`
	}
	err := c.doJSON(ctx, http.MethodGet, withQuery("/api/program/structure", q), nil, &resp)
	return resp.Program, resp.Courses, err
}

func (c *Client) Courses(ctx context.Context, programID int) ([]program.Course, error) {
	q := url.Values{}
	if programID > 0 {
		q.Set("program_id", strconv.Itoa(programID))
	}
	var resp struct {
		Courses []program.Course `json:"courses"`
	}
	err := c.doJSON(ctx, http.MethodGet, withQuery("/api/program/courses", q), nil, &resp)
	return resp.Courses, err
}

// doMultipart sends `fields` & `files` as multipart/form-data.
func (c *Client) doMultipart(ctx context.Context, method, path string, fields map[string]string, files map[string]File, result interface{}) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	// stable part order
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := w.WriteField(name, fields[name]); err != nil {
			return errors.Wrapf(err, "writing field %s", name)
		}
	}

	names = names[:0]
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		f := files[name]
		part, err := w.CreateFormFile(name, f.Name)
		if err != nil {
			return errors.Wrapf(err, "creating file part %s", name)
		}
		if f.Content != nil {
			if _, err = io.Copy(part, f.Content); err != nil {
				return errors.Wrapf(err, "copying %s", f.Name)
			}
		}
	}
	if err := w.Close(); err != nil {
		return errors.Wrap(err, "closing multipart writer")
	}
	return c.send(ctx, method, path, w.FormDataContentType(), buf.Bytes(), result, true)
}
