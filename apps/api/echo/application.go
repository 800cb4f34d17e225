package echoapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/cts/core"
	"github.com/trezcool/cts/core/application"
	"github.com/trezcool/cts/core/user"
)

const transcriptField = "transcript"

type applicationApi struct {
	svc      application.Service
	usrSvc   user.Service
	validate *validator.Validate
}

func registerApplicationAPI(g *echo.Group, deps ServerDeps) {
	api := applicationApi{svc: deps.ApplicationSvc, usrSvc: deps.UserSvc, validate: deps.Validate}

	student := roleMiddleware(user.RoleStudent)
	g.GET("/credit-transfer/applications", api.listMine, student)
	g.POST("/credit-transfer/apply", api.apply, student)

	coordinator := roleMiddleware(user.RoleCoordinator)
	g.GET("/credit-transfer/coordinator/applications", api.listForCoordinator, coordinator)
	g.POST("/credit-transfer/coordinator/review-subject", api.reviewPastSubject, coordinator)
	g.POST("/credit-transfer/coordinator/check-current-subject", api.checkCurrentSubject, coordinator)
	g.GET("/credit-applications/inbox", api.inbox, coordinator)
	g.PATCH("/credit-applications/:id", api.updateStatus, coordinator)

	hos := roleMiddleware(user.RoleHOS)
	g.GET("/hos/summary", api.hosSummary, hos)
	g.GET("/hos/applications", api.listForHOS, hos)
}

// Handlers

func (api *applicationApi) listMine(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	apps, err := api.svc.ListMine(ctx.Request().Context(), usr.ID)
	if err != nil {
		return errors.Wrap(err, "listing applications")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"applications": nonNilApplications(apps)})
}

// apply saves (or submits) the student's application form.
// Multipart forms carry `subjects` as JSON, the transcript and the syllabi, each under its own file field.
func (api *applicationApi) apply(ctx echo.Context) error {
	var files uploads
	defer files.close()

	var form application.ApplyForm
	var err error
	if isMultipart(ctx) {
		form, err = api.bindMultipartForm(ctx, &files)
	} else {
		var data ApplyRequest
		if err = ctx.Bind(&data); err != nil {
			return errors.Wrap(err, "binding to ApplyRequest")
		}
		form = data.form()
	}
	if err != nil {
		return err
	}
	if err = form.Validate(api.validate); err != nil {
		return err
	}

	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	app, err := api.svc.Apply(ctx.Request().Context(), usr, form)
	if err != nil {
		return errors.Wrap(err, "applying")
	}

	code := http.StatusOK
	if form.DraftID == 0 {
		code = http.StatusCreated
	}
	return ctx.JSON(code, app)
}

func (api *applicationApi) bindMultipartForm(ctx echo.Context, files *uploads) (application.ApplyForm, error) {
	form := application.ApplyForm{
		PrevCampusName:    ctx.FormValue("prev_campus_name"),
		PrevProgrammeName: ctx.FormValue("prev_programme_name"),
	}

	if raw := strings.TrimSpace(ctx.FormValue("draftId")); raw != "" {
		id, err := strconv.Atoi(raw)
		if err != nil {
			return form, core.NewValidationError(nil, core.FieldError{Field: "draftId", Error: "must be a number"})
		}
		form.DraftID = id
	}
	if raw := strings.TrimSpace(ctx.FormValue("submit")); raw != "" {
		submit, err := strconv.ParseBool(raw)
		if err != nil {
			return form, core.NewValidationError(nil, core.FieldError{Field: "submit", Error: "must be a boolean"})
		}
		form.Submit = submit
	}
	if err := bindJSONField(ctx, "subjects", &form.Subjects); err != nil {
		return form, err
	}

	mpForm, err := ctx.MultipartForm()
	if err != nil {
		return form, echo.NewHTTPError(http.StatusBadRequest, err.Error()).SetInternal(err)
	}
	for field, fhs := range mpForm.File {
		if len(fhs) == 0 {
			continue
		}
		upload, err := files.open(fhs[0])
		if err != nil {
			return form, err
		}
		if field == transcriptField {
			form.Transcript = &upload
			continue
		}
		if form.Syllabi == nil {
			form.Syllabi = make(map[string]core.Upload)
		}
		form.Syllabi[field] = upload
	}
	return form, nil
}

func (api *applicationApi) listForCoordinator(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	apps, err := api.svc.ListForCoordinator(ctx.Request().Context(), usr, listQuery(ctx, "status")...)
	if err != nil {
		return errors.Wrap(err, "listing applications")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"applications": nonNilApplications(apps)})
}

func (api *applicationApi) inbox(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	apps, err := api.svc.Inbox(ctx.Request().Context(), usr, ctx.QueryParam("status"))
	if err != nil {
		return errors.Wrap(err, "listing inbox")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"data": nonNilApplications(apps)})
}

func (api *applicationApi) updateStatus(ctx echo.Context) error {
	id, err := intParam(ctx, "id")
	if err != nil {
		return err
	}
	var data application.UpdateStatus
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateStatus")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	app, err := api.svc.UpdateStatus(ctx.Request().Context(), usr, id, data)
	if err != nil {
		return errors.Wrap(err, "updating application status")
	}
	return ctx.JSON(http.StatusOK, app)
}

func (api *applicationApi) reviewPastSubject(ctx echo.Context) error {
	var data application.PastSubjectReview
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PastSubjectReview")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	res, err := api.svc.ReviewPastSubject(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "reviewing past subject")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *applicationApi) checkCurrentSubject(ctx echo.Context) error {
	var data application.SubjectCheck
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SubjectCheck")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	res, err := api.svc.CheckCurrentSubject(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "checking current subject")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *applicationApi) hosSummary(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	summary, err := api.svc.Summary(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "getting summary")
	}
	return ctx.JSON(http.StatusOK, summary)
}

func (api *applicationApi) listForHOS(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	apps, err := api.svc.ListForHOS(ctx.Request().Context(), usr, listQuery(ctx, "status")...)
	if err != nil {
		return errors.Wrap(err, "listing applications")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"applications": nonNilApplications(apps)})
}

// ApplyRequest is the JSON version of the application form; it cannot carry files.
type ApplyRequest struct {
	DraftID           int                      `json:"draftId"`
	Submit            bool                     `json:"submit"`
	PrevCampusName    string                   `json:"prev_campus_name"`
	PrevProgrammeName string                   `json:"prev_programme_name"`
	Subjects          []application.NewSubject `json:"subjects"`
}

func (r ApplyRequest) form() application.ApplyForm {
	return application.ApplyForm{
		DraftID:           r.DraftID,
		Submit:            r.Submit,
		PrevCampusName:    r.PrevCampusName,
		PrevProgrammeName: r.PrevProgrammeName,
		Subjects:          r.Subjects,
	}
}

func nonNilApplications(apps []application.Application) []application.Application {
	if apps == nil {
		return []application.Application{}
	}
	return apps
}
