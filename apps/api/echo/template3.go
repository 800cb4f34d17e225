package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/cts/core"
	"github.com/trezcool/cts/core/template3"
	"github.com/trezcool/cts/core/user"
)

type template3Api struct {
	svc      template3.Service
	usrSvc   user.Service
	validate *validator.Validate
}

func registerTemplate3API(g *echo.Group, deps ServerDeps) {
	api := template3Api{svc: deps.Template3Svc, usrSvc: deps.UserSvc, validate: deps.Validate}

	coordinator := roleMiddleware(user.RoleCoordinator, user.RoleAdmin)
	g.GET("/template3", api.query, coordinator)
	g.POST("/template3", api.create, coordinator)
	g.POST("/template3/bulk", api.bulkCreate, coordinator)
	g.POST("/template3/upload-pdf", api.uploadPDF, coordinator)
}

// Handlers

func (api *template3Api) query(ctx echo.Context) error {
	filter := new(template3.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, echo.Map{"template3s": []template3.Template3{}})
	}
	filter.Clean()

	entries, err := api.svc.Query(ctx.Request().Context(), *filter)
	if err != nil {
		return errors.Wrap(err, "querying template3")
	}
	if entries == nil {
		entries = []template3.Template3{}
	}
	return ctx.JSON(http.StatusOK, echo.Map{"template3s": entries})
}

func (api *template3Api) create(ctx echo.Context) error {
	var data template3.NewTemplate3
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewTemplate3")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	entry, err := api.svc.Create(ctx.Request().Context(), usr.ID, data)
	if err != nil {
		return errors.Wrap(err, "creating template3")
	}
	return ctx.JSON(http.StatusCreated, entry)
}

// bulkCreate creates each valid entry, reporting the others by index.
func (api *template3Api) bulkCreate(ctx echo.Context) error {
	var data BulkTemplate3Request
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to BulkTemplate3Request")
	}
	if len(data.Entries) == 0 {
		return core.NewValidationError(nil, core.FieldError{Field: "template3s", Error: "this field is required"})
	}

	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	res, err := api.svc.BulkCreate(ctx.Request().Context(), usr.ID, data.Entries)
	if err != nil {
		return errors.Wrap(err, "bulk creating template3")
	}
	return ctx.JSON(http.StatusOK, res)
}

func (api *template3Api) uploadPDF(ctx echo.Context) error {
	var files uploads
	defer files.close()
	upload, err := files.requiredFile(ctx, "template3_pdf")
	if err != nil {
		return err
	}

	key, err := api.svc.UploadPDF(ctx.Request().Context(), upload)
	if err != nil {
		return errors.Wrap(err, "uploading template3 document")
	}
	return ctx.JSON(http.StatusCreated, echo.Map{"file_path": key})
}

type BulkTemplate3Request struct {
	Entries []template3.NewTemplate3 `json:"template3s"`
}
