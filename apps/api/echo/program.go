package echoapi

import (
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/cts/core"
	"github.com/trezcool/cts/core/program"
	"github.com/trezcool/cts/core/staff"
	"github.com/trezcool/cts/core/user"
)

type programApi struct {
	svc      program.Service
	usrSvc   user.Service
	staffSvc staff.Service
	validate *validator.Validate
}

func registerProgramAPI(app *echo.Echo, g *echo.Group, deps ServerDeps) {
	api := programApi{
		svc:      deps.ProgramSvc,
		usrSvc:   deps.UserSvc,
		staffSvc: deps.StaffSvc,
		validate: deps.Validate,
	}

	// un-authed endpoints
	app.GET("/staticdata", api.staticData)
	app.GET("/api/staticdata", api.staticData) // takes precedence over the /api/* auth catch-all

	// authed endpoints
	coordinator := roleMiddleware(user.RoleCoordinator, user.RoleAdmin)
	g.GET("/program/structure", api.structure)
	g.GET("/program/courses", api.courses)
	g.GET("/program-structures", api.structures, coordinator)
	g.POST("/program-structures", api.uploadStructure, coordinator)
	g.PUT("/program-structures/:id/courses", api.replaceCourses, coordinator)
	g.GET("/admin/programs", api.programs, roleMiddleware(user.RoleAdmin))
}

// Handlers

func (api *programApi) staticData(ctx echo.Context) error {
	campusID, err := intQuery(ctx, "campus_id")
	if err != nil {
		return err
	}
	data, err := api.svc.StaticData(ctx.Request().Context(), campusID)
	if err != nil {
		return errors.Wrap(err, "getting static data")
	}
	return ctx.JSON(http.StatusOK, data)
}

// structure returns the courses of ?program_id, defaulting to the student's own program.
func (api *programApi) structure(ctx echo.Context) error {
	prog, err := api.contextProgram(ctx)
	if err != nil {
		return err
	}
	courses, err := api.svc.Courses(ctx.Request().Context(), prog.ID)
	if err != nil {
		return errors.Wrap(err, "listing courses")
	}
	if courses == nil {
		courses = []program.Course{}
	}
	return ctx.JSON(http.StatusOK, echo.Map{"program": prog, "courses": courses})
}

func (api *programApi) courses(ctx echo.Context) error {
	prog, err := api.contextProgram(ctx)
	if err != nil {
		return err
	}
	courses, err := api.svc.Courses(ctx.Request().Context(), prog.ID)
	if err != nil {
		return errors.Wrap(err, "listing courses")
	}
	if courses == nil {
		courses = []program.Course{}
	}
	return ctx.JSON(http.StatusOK, echo.Map{"courses": courses})
}

func (api *programApi) contextProgram(ctx echo.Context) (program.Program, error) {
	progID, err := intQuery(ctx, "program_id")
	if err != nil {
		return program.Program{}, err
	}
	if progID == 0 {
		usr, err := getContextUser(ctx, api.usrSvc)
		if err != nil {
			return program.Program{}, errors.Wrap(err, "getting context user")
		}
		if !usr.IsStudent() {
			return program.Program{}, core.NewValidationError(nil, core.FieldError{Field: "program_id", Error: "this field is required"})
		}
		st, err := api.usrSvc.GetStudent(ctx.Request().Context(), usr.ID)
		if err != nil {
			return program.Program{}, errors.Wrap(err, "getting student profile")
		}
		progID = st.ProgramID
	}

	prog, err := api.svc.Program(ctx.Request().Context(), progID)
	if err != nil {
		return program.Program{}, errors.Wrap(err, "getting program")
	}
	return prog, nil
}

func (api *programApi) structures(ctx echo.Context) error {
	progIDs, err := api.managedProgramIDs(ctx)
	if err != nil {
		return err
	}
	sts := []program.Structure{}
	if progIDs == nil || len(progIDs) > 0 {
		if sts, err = api.svc.Structures(ctx.Request().Context(), progIDs); err != nil {
			return errors.Wrap(err, "listing structures")
		}
	}
	if sts == nil {
		sts = []program.Structure{}
	}
	return ctx.JSON(http.StatusOK, echo.Map{"data": sts})
}

func (api *programApi) uploadStructure(ctx echo.Context) error {
	progID, err := strconv.Atoi(ctx.FormValue("program_id"))
	if err != nil || progID <= 0 {
		return core.NewValidationError(nil, core.FieldError{Field: "program_id", Error: "this field is required"})
	}
	if err = api.checkManagesProgram(ctx, progID); err != nil {
		return err
	}

	var files uploads
	defer files.close()
	upload, err := files.requiredFile(ctx, "program_structure")
	if err != nil {
		return err
	}

	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	st, err := api.svc.UploadStructure(ctx.Request().Context(), progID, usr.ID, upload)
	if err != nil {
		return errors.Wrap(err, "uploading structure")
	}
	return ctx.JSON(http.StatusCreated, st)
}

func (api *programApi) replaceCourses(ctx echo.Context) error {
	id, err := intParam(ctx, "id")
	if err != nil {
		return err
	}

	progIDs, err := api.managedProgramIDs(ctx)
	if err != nil {
		return err
	}
	if progIDs != nil {
		if err = api.checkOwnsStructure(ctx, id, progIDs); err != nil {
			return err
		}
	}

	var data program.NewCourses
	if isMultipart(ctx) {
		if err = bindJSONField(ctx, "courses", &data.Courses); err != nil {
			return err
		}
	} else if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCourses")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	st, err := api.svc.ReplaceCourses(ctx.Request().Context(), id, data)
	if err != nil {
		return errors.Wrap(err, "replacing courses")
	}
	return ctx.JSON(http.StatusOK, st)
}

func (api *programApi) programs(ctx echo.Context) error {
	campusID, err := intQuery(ctx, "campus_id")
	if err != nil {
		return err
	}
	progs, err := api.svc.Programs(ctx.Request().Context(), program.ProgramFilter{
		CampusID: campusID,
		Name:     core.CleanString(ctx.QueryParam("search")),
	})
	if err != nil {
		return errors.Wrap(err, "listing programs")
	}
	if progs == nil {
		progs = []program.Program{}
	}
	return ctx.JSON(http.StatusOK, echo.Map{"programs": progs})
}

// managedProgramIDs returns the programs the context coordinator manages; nil for admins (all programs).
func (api *programApi) managedProgramIDs(ctx echo.Context) ([]int, error) {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return nil, errors.Wrap(err, "getting context user")
	}
	if usr.IsAdmin() {
		return nil, nil
	}
	ids, err := api.staffSvc.CoordinatorProgramIDs(ctx.Request().Context(), usr.ID)
	if err != nil {
		return nil, errors.Wrap(err, "getting coordinated programs")
	}
	if ids == nil {
		ids = []int{}
	}
	return ids, nil
}

func (api *programApi) checkManagesProgram(ctx echo.Context, progID int) error {
	progIDs, err := api.managedProgramIDs(ctx)
	if err != nil {
		return err
	}
	if progIDs != nil && !core.IntsContain(progIDs, progID) {
		return errHttpForbidden
	}
	return nil
}

func (api *programApi) checkOwnsStructure(ctx echo.Context, structureID int, progIDs []int) error {
	if len(progIDs) == 0 {
		return errHttpNotFound
	}
	sts, err := api.svc.Structures(ctx.Request().Context(), progIDs)
	if err != nil {
		return errors.Wrap(err, "listing structures")
	}
	for _, st := range sts {
		if st.ID == structureID {
			return nil
		}
	}
	return errHttpNotFound
}
