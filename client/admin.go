package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/trezcool/cts/core/application"
	"github.com/trezcool/cts/core/program"
	"github.com/trezcool/cts/core/staff"
	"github.com/trezcool/cts/core/user"
)

// --- HOS ---

func (c *Client) HOSSummary(ctx context.Context) (application.Summary, error) {
	var summary application.Summary
	err := c.doJSON(ctx, http.MethodGet, "/api/hos/summary", nil, &summary)
	return summary, err
}

func (c *Client) HOSApplications(ctx context.Context, statuses ...string) ([]application.Application, error) {
	var resp struct {
		Applications []application.Application `json:"applications"`
	}
	err := c.doJSON(ctx, http.MethodGet, withQuery("/api/hos/applications", statusQuery(statuses)), nil, &resp)
	return resp.Applications, err
}

// --- Admin ---

// Users searches users by name or email, optionally having one of `roles`.
func (c *Client) Users(ctx context.Context, search string, roles ...string) ([]user.User, error) {
	q := url.Values{}
	setString(q, "search", search)
	for _, r := range roles {
		q.Add("role", r)
	}
	var usrs []user.User
	err := c.doJSON(ctx, http.MethodGet, withQuery("/api/users", q), nil, &usrs)
	return usrs, err
}

func (c *Client) DeleteUsers(ctx context.Context, ids ...string) error {
	q := url.Values{"id": ids}
	return c.doJSON(ctx, http.MethodDelete, withQuery("/api/users", q), nil, nil)
}

func (c *Client) Lecturers(ctx context.Context, campusID int) ([]staff.Lecturer, error) {
	q := url.Values{}
	setInt(q, "campus_id", campusID)
	var resp struct {
		Lecturers []staff.Lecturer `json:"lecturers"`
	}
	err := c.doJSON(ctx, http.MethodGet, withQuery("/api/admin/lecturers", q), nil, &resp)
	return resp.Lecturers, err
}

func (c *Client) CreateLecturer(ctx context.Context, nl staff.NewLecturer) (staff.Lecturer, error) {
	var lect staff.Lecturer
	err := c.doJSON(ctx, http.MethodPost, "/api/admin/lecturer", nl, &lect)
	return lect, err
}

func (c *Client) AssignRole(ctx context.Context, lecturerID int, ra staff.RoleAssignment) (staff.Assignment, error) {
	var a staff.Assignment
	err := c.doJSON(ctx, http.MethodPut, idPath("/api/admin/lecturer/%d/role", lecturerID), ra, &a)
	return a, err
}

func (c *Client) EndStaffRole(ctx context.Context, er staff.EndRole) (staff.Assignment, error) {
	var a staff.Assignment
	err := c.doJSON(ctx, http.MethodPost, "/api/admin/end-staff-role", er, &a)
	return a, err
}

func (c *Client) StaffAssignments(ctx context.Context, campusID int) (staff.Overview, error) {
	q := url.Values{}
	setInt(q, "campus_id", campusID)
	var ov staff.Overview
	err := c.doJSON(ctx, http.MethodGet, withQuery("/api/admin/staff-assignments", q), nil, &ov)
	return ov, err
}

func (c *Client) Programs(ctx context.Context, campusID int, search string) ([]program.Program, error) {
	q := url.Values{}
	if campusID > 0 {
		q.Set("campus_id", strconv.Itoa(campusID))
	}
	setString(q, "search", search)
	var resp struct {
		Programs []program.Program `json:"programs"`
	}
	err := c.doJSON(ctx, http.MethodGet, withQuery("/api/admin/programs", q), nil, &resp)
	return resp.Programs, err
}
