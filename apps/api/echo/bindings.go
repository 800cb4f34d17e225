package echoapi

import (
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/cts/core"
)

var orderingParam = "ordering"

type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	data := ctx.QueryParams()
	if len(data) == 0 {
		return
	}
	val, ok := data[orderingParam]
	if !ok || len(val) == 0 || val[0] == "" {
		return
	}

	for _, field := range strings.Split(val[0], ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}

// intParam returns the path param `name`; a non numeric value is a 404.
func intParam(ctx echo.Context, name string) (int, error) {
	id, err := strconv.Atoi(ctx.Param(name))
	if err != nil || id <= 0 {
		return 0, errHttpNotFound
	}
	return id, nil
}

// intQuery returns the query param `name`, 0 when absent.
func intQuery(ctx echo.Context, name string) (int, error) {
	val := strings.TrimSpace(ctx.QueryParam(name))
	if val == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, core.NewValidationError(nil, core.FieldError{Field: name, Error: "must be a number"})
	}
	return n, nil
}

// listQuery splits a comma separated query param: ?status=submitted,under_review
func listQuery(ctx echo.Context, name string) []string {
	var vals []string
	for _, raw := range ctx.QueryParams()[name] {
		for _, v := range strings.Split(raw, ",") {
			if v = core.CleanString(v, true /* lower */); v != "" {
				vals = append(vals, v)
			}
		}
	}
	return vals
}

func isMultipart(ctx echo.Context) bool {
	return strings.HasPrefix(ctx.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm)
}

// uploads keeps the uploaded files open until the request is handled.
type uploads []io.Closer

func (u *uploads) open(fh *multipart.FileHeader) (core.Upload, error) {
	file, err := fh.Open()
	if err != nil {
		return core.Upload{}, errors.Wrapf(err, "opening uploaded file %s", fh.Filename)
	}
	*u = append(*u, file)
	return core.Upload{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get(echo.HeaderContentType),
		Size:        fh.Size,
		Content:     file,
	}, nil
}

func (u uploads) close() {
	for _, c := range u {
		_ = c.Close()
	}
}

// requiredFile opens the uploaded file `field`, reporting a validation error when it is missing.
func (u *uploads) requiredFile(ctx echo.Context, field string) (core.Upload, error) {
	fh, err := ctx.FormFile(field)
	if err != nil {
		if err == http.ErrMissingFile || !isMultipart(ctx) {
			return core.Upload{}, core.NewValidationError(nil, core.FieldError{Field: field, Error: "this field is required"})
		}
		return core.Upload{}, echo.NewHTTPError(http.StatusBadRequest, err.Error()).SetInternal(err)
	}
	return u.open(fh)
}

// bindJSONField decodes the JSON held by the form value `field` into `dst`.
func bindJSONField(ctx echo.Context, field string, dst interface{}) error {
	raw := strings.TrimSpace(ctx.FormValue(field))
	if raw == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return core.NewValidationError(nil, core.FieldError{Field: field, Error: "invalid JSON"})
	}
	return nil
}

type SuccessResponse struct {
	Success string `json:"success"`
}
