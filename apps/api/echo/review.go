package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/cts/core/application"
	"github.com/trezcool/cts/core/review"
	"github.com/trezcool/cts/core/user"
)

// reviewApi serves the SME dashboard.
type reviewApi struct {
	svc      application.Service
	usrSvc   user.Service
	validate *validator.Validate
}

func registerReviewAPI(g *echo.Group, deps ServerDeps) {
	api := reviewApi{svc: deps.ApplicationSvc, usrSvc: deps.UserSvc, validate: deps.Validate}

	sme := roleMiddleware(user.RoleSME)
	g.GET("/credit-transfer/sme/assignments", api.assignments, sme)
	g.GET("/credit-transfer/sme/subject/:id", api.subject, sme)
	g.POST("/credit-transfer/sme/review-subject/:id", api.submitReview, sme)
	g.GET("/credit-transfer/sme/drafts/:id", api.getDraft, sme)
	g.PUT("/credit-transfer/sme/drafts/:id", api.saveDraft, sme)
	g.DELETE("/credit-transfer/sme/drafts/:id", api.deleteDraft, sme)
}

// Handlers

func (api *reviewApi) assignments(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	assignments, err := api.svc.SMEAssignments(ctx.Request().Context(), usr)
	if err != nil {
		return errors.Wrap(err, "listing SME assignments")
	}
	if assignments == nil {
		assignments = []application.SMEAssignment{}
	}
	return ctx.JSON(http.StatusOK, echo.Map{"assignments": assignments})
}

func (api *reviewApi) subject(ctx echo.Context) error {
	id, err := intParam(ctx, "id")
	if err != nil {
		return err
	}
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	details, err := api.svc.SMESubject(ctx.Request().Context(), usr, id)
	if err != nil {
		return errors.Wrap(err, "getting subject details")
	}
	return ctx.JSON(http.StatusOK, details)
}

func (api *reviewApi) submitReview(ctx echo.Context) error {
	id, err := intParam(ctx, "id")
	if err != nil {
		return err
	}
	var data review.Review
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Review")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	res, err := api.svc.SubmitReview(ctx.Request().Context(), usr, id, data)
	if err != nil {
		return errors.Wrap(err, "submitting review")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *reviewApi) getDraft(ctx echo.Context) error {
	id, err := intParam(ctx, "id")
	if err != nil {
		return err
	}
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	draft, err := api.svc.GetDraft(ctx.Request().Context(), usr, id)
	if err != nil {
		return errors.Wrap(err, "getting draft")
	}
	return ctx.JSON(http.StatusOK, draft)
}

func (api *reviewApi) saveDraft(ctx echo.Context) error {
	id, err := intParam(ctx, "id")
	if err != nil {
		return err
	}
	var data review.Draft
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Draft")
	}

	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	draft, err := api.svc.SaveDraft(ctx.Request().Context(), usr, id, data)
	if err != nil {
		return errors.Wrap(err, "saving draft")
	}
	return ctx.JSON(http.StatusOK, draft)
}

func (api *reviewApi) deleteDraft(ctx echo.Context) error {
	id, err := intParam(ctx, "id")
	if err != nil {
		return err
	}
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if err = api.svc.DeleteDraft(ctx.Request().Context(), usr, id); err != nil {
		return errors.Wrap(err, "deleting draft")
	}
	return ctx.NoContent(http.StatusNoContent)
}
