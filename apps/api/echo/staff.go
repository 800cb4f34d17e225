package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/cts/core"
	"github.com/trezcool/cts/core/staff"
	"github.com/trezcool/cts/core/user"
)

type staffApi struct {
	svc      staff.Service
	validate *validator.Validate
}

func registerStaffAPI(g *echo.Group, deps ServerDeps) {
	api := staffApi{svc: deps.StaffSvc, validate: deps.Validate}

	admin := roleMiddleware(user.RoleAdmin)
	g.GET("/admin/lecturers", api.lecturers, admin)
	g.POST("/admin/lecturer", api.createLecturer, admin)
	g.PUT("/admin/lecturer/:id/role", api.assignRole, admin)
	g.POST("/admin/end-staff-role", api.endRole, admin)
	g.GET("/admin/staff-assignments", api.overview, admin)

	g.GET("/credit-transfer/coordinator/smes", api.courseSMEs, roleMiddleware(user.RoleCoordinator))
}

// Handlers

func (api *staffApi) lecturers(ctx echo.Context) error {
	campusID, err := intQuery(ctx, "campus_id")
	if err != nil {
		return err
	}
	lecturers, err := api.svc.Lecturers(ctx.Request().Context(), campusID)
	if err != nil {
		return errors.Wrap(err, "listing lecturers")
	}
	if lecturers == nil {
		lecturers = []staff.Lecturer{}
	}
	return ctx.JSON(http.StatusOK, echo.Map{"lecturers": lecturers})
}

func (api *staffApi) createLecturer(ctx echo.Context) error {
	var data staff.NewLecturer
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewLecturer")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	lecturer, err := api.svc.CreateLecturer(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating lecturer")
	}
	return ctx.JSON(http.StatusCreated, lecturer)
}

func (api *staffApi) assignRole(ctx echo.Context) error {
	id, err := intParam(ctx, "id")
	if err != nil {
		return err
	}
	var data staff.RoleAssignment
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to RoleAssignment")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	assignment, err := api.svc.AssignRole(ctx.Request().Context(), id, data)
	if err != nil {
		return errors.Wrap(err, "assigning role")
	}
	return ctx.JSON(http.StatusOK, assignment)
}

func (api *staffApi) endRole(ctx echo.Context) error {
	var data staff.EndRole
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to EndRole")
	}
	data.RoleType = core.CleanString(data.RoleType, true /* lower */)
	if err := api.validate.Struct(data); err != nil {
		return err
	}

	assignment, err := api.svc.EndRole(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "ending role")
	}
	return ctx.JSON(http.StatusOK, assignment)
}

func (api *staffApi) overview(ctx echo.Context) error {
	campusID, err := intQuery(ctx, "campus_id")
	if err != nil {
		return err
	}
	ov, err := api.svc.Overview(ctx.Request().Context(), campusID)
	if err != nil {
		return errors.Wrap(err, "getting staff overview")
	}
	return ctx.JSON(http.StatusOK, ov)
}

// courseSMEs lists the SMEs a coordinator can route a subject of ?course_id to.
func (api *staffApi) courseSMEs(ctx echo.Context) error {
	courseID, err := intQuery(ctx, "course_id")
	if err != nil {
		return err
	}
	if courseID == 0 {
		return core.NewValidationError(nil, core.FieldError{Field: "course_id", Error: "this field is required"})
	}
	smes, err := api.svc.ActiveSMEs(ctx.Request().Context(), courseID)
	if err != nil {
		return errors.Wrap(err, "listing course SMEs")
	}
	if smes == nil {
		smes = []staff.Assignment{}
	}
	return ctx.JSON(http.StatusOK, echo.Map{"data": smes})
}
