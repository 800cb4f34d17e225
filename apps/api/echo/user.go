package echoapi

import (
	"net/http"
	"sort"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/cts/core"
	"github.com/trezcool/cts/core/program"
	"github.com/trezcool/cts/core/user"
)

type userApi struct {
	conf       *core.Config
	svc        user.Service
	progSvc    program.Service
	validate   *validator.Validate
	translator ut.Translator
}

func registerAuthAPI(app *echo.Echo, g *echo.Group, deps ServerDeps) {
	api := userApi{
		conf:       deps.Conf,
		svc:        deps.UserSvc,
		progSvc:    deps.ProgramSvc,
		validate:   deps.Validate,
		translator: deps.Translator,
	}

	// un-authed endpoints
	// TODO: rate limit `/login`, `/password-reset` & `/password-reset-confirm`
	app.POST("/login", api.login)
	app.POST("/signup", api.signup)
	app.POST("/token-refresh", api.refreshToken)
	app.POST("/password-reset", api.resetPassword)
	app.POST("/password-reset-confirm", api.confirmPasswordReset)

	// authed endpoints
	admin := roleMiddleware(user.RoleAdmin)
	g.GET("/me", api.me)
	g.GET("/coordinators", api.coordinators)
	g.GET("/users", api.query, admin)
	g.DELETE("/users", api.destroyMultiple, admin)
	g.GET("/users/roles", api.queryRoles, admin)
}

// Handlers

func (api *userApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	usr, err := authenticate(ctx.Request().Context(), data.Email, data.Password, api.svc)
	if err != nil {
		return errors.Wrap(err, "authenticating")
	}
	tokens, err := issueTokens(api.conf, usr)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, newLoginResponse(tokens, usr))
}

func (api *userApi) signup(ctx echo.Context) error {
	var data user.Signup
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Signup")
	}
	if err := data.Validate(ctx.Request().Context(), api.validate, api.svc); err != nil {
		return err
	}

	// the program must be one of the chosen campus
	prog, err := api.progSvc.Program(ctx.Request().Context(), data.ProgramID)
	if err != nil {
		if core.IsNotFound(err) {
			return core.NewValidationError(nil, core.FieldError{Field: "program_id", Error: "unknown program"})
		}
		return errors.Wrap(err, "getting program")
	}
	if prog.CampusID != data.CampusID {
		return core.NewValidationError(nil, core.FieldError{Field: "campus_id", Error: "program is not offered on this campus"})
	}

	usr, err := api.svc.Signup(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "signing up")
	}
	return ctx.JSON(http.StatusCreated, usr)
}

func (api *userApi) refreshToken(ctx echo.Context) error {
	var data RefreshRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to RefreshRequest")
	}
	if err := api.validate.Struct(data); err != nil {
		return err
	}

	tokens, usr, err := refreshTokens(ctx.Request().Context(), api.conf, data.RefreshToken, api.svc)
	if err != nil {
		return errors.Wrap(err, "refreshing token")
	}
	return ctx.JSON(http.StatusOK, newLoginResponse(tokens, usr))
}

func (api *userApi) resetPassword(ctx echo.Context) error {
	var data PasswordResetRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PasswordResetRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	if err := api.svc.RequestPasswordReset(ctx.Request().Context(), data.Email); !(err == nil || core.IsNotFound(err)) {
		// do not return errors to attackers
		ctx.Logger().Errorf("%+v", errors.Wrap(err, "requesting password reset"))
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{
		Success: "If the email address supplied is associated with an active account on this system, " +
			"an email will arrive in your inbox shortly with instructions to reset your password.",
	})
}

func (api *userApi) confirmPasswordReset(ctx echo.Context) error {
	var data user.ResetUserPassword
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ResetUserPassword")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	if err := api.svc.ResetPassword(ctx.Request().Context(), data); err != nil {
		return errors.Wrap(err, "resetting password")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Password has been reset with the new password."})
}

func (api *userApi) me(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	resp := MeResponse{User: usr, Role: user.RoleName(usr.PrimaryRole())}
	if usr.IsStudent() {
		st, err := api.svc.GetStudent(ctx.Request().Context(), usr.ID)
		if err != nil && !core.IsNotFound(err) {
			return errors.Wrap(err, "getting student profile")
		}
		if err == nil {
			resp.Student = &st
		}
	}
	return ctx.JSON(http.StatusOK, resp)
}

// coordinators lists the active coordinators students can book appointments with.
func (api *userApi) coordinators(ctx echo.Context) error {
	active := true
	usrs, err := api.svc.Query(ctx.Request().Context(), &user.QueryFilter{Roles: []string{user.RoleCoordinator}, IsActive: &active}, []core.DBOrdering{{Field: "name", Ascending: true}})
	if err != nil {
		return errors.Wrap(err, "querying coordinators")
	}
	if usrs == nil {
		usrs = []user.User{}
	}
	return ctx.JSON(http.StatusOK, echo.Map{"data": usrs})
}

func (api *userApi) query(ctx echo.Context) error {
	filter := new(user.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []user.User{})
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	users, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying users")
	}
	if users == nil {
		users = []user.User{}
	}
	return ctx.JSON(http.StatusOK, users)
}

func (api *userApi) destroyMultiple(ctx echo.Context) error {
	var query DestroyMultipleRequest
	if err := ctx.Bind(&query); err != nil {
		return errors.Wrap(err, "binding to DestroyMultipleRequest")
	}
	if query.IDs == nil {
		return ctx.NoContent(http.StatusNoContent)
	}

	// Say No to Suicide! ctxUser cannot delete themselves
	ctxUsr, err := getContextUser(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	sort.Strings(query.IDs)
	if i := sort.SearchStrings(query.IDs, ctxUsr.ID); i < len(query.IDs) {
		if match := query.IDs[i]; ctxUsr.ID == match {
			return errHttpForbidden
		}
	}

	if err := api.svc.Delete(ctx.Request().Context(), query.IDs...); err != nil {
		return errors.Wrap(err, "deleting users")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *userApi) queryRoles(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, user.Roles)
}

type (
	LoginRequest struct {
		Email    string `json:"email" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	RefreshRequest struct {
		RefreshToken string `json:"refreshToken" validate:"required"`
	}

	LoginResponse struct {
		Token        string    `json:"token"`
		RefreshToken string    `json:"refreshToken"`
		Role         string    `json:"role"` // display name of the primary role
		User         user.User `json:"user"`
	}

	MeResponse struct {
		User    user.User     `json:"user"`
		Role    string        `json:"role"`
		Student *user.Student `json:"student,omitempty"`
	}

	PasswordResetRequest struct {
		Email string `json:"email" validate:"required,email"`
	}

	DestroyMultipleRequest struct {
		IDs []string `query:"id"`
	}
)

func newLoginResponse(tokens tokenPair, usr user.User) LoginResponse {
	return LoginResponse{
		Token:        tokens.Token,
		RefreshToken: tokens.RefreshToken,
		Role:         user.RoleName(usr.PrimaryRole()),
		User:         usr,
	}
}

func (lr *LoginRequest) Validate(validate *validator.Validate) error {
	lr.Email = core.CleanString(lr.Email, true /* lower */)
	return validate.Struct(lr)
}

func (pr *PasswordResetRequest) Validate(validate *validator.Validate) error {
	pr.Email = core.CleanString(pr.Email, true /* lower */)
	return validate.Struct(pr)
}
