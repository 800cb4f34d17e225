package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/cts/core/appointment"
	"github.com/trezcool/cts/core/user"
)

type appointmentApi struct {
	svc      appointment.Service
	usrSvc   user.Service
	validate *validator.Validate
}

func registerAppointmentAPI(g *echo.Group, deps ServerDeps) {
	api := appointmentApi{svc: deps.AppointmentSvc, usrSvc: deps.UserSvc, validate: deps.Validate}

	student := roleMiddleware(user.RoleStudent)
	g.POST("/appointments", api.create, student)
	g.GET("/appointments/mine", api.listMine, student)

	coordinator := roleMiddleware(user.RoleCoordinator)
	g.GET("/appointment/coordinator", api.listForCoordinator, coordinator)
	g.PUT("/appointment/:id", api.update, coordinator)
}

// Handlers

func (api *appointmentApi) create(ctx echo.Context) error {
	var data appointment.NewAppointment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAppointment")
	}
	if err := data.Validate(api.validate, appointment.NowFunc()); err != nil {
		return err
	}

	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	appt, err := api.svc.Create(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "creating appointment")
	}
	return ctx.JSON(http.StatusCreated, appt)
}

func (api *appointmentApi) listMine(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	appts, err := api.svc.ListMine(ctx.Request().Context(), usr.ID)
	if err != nil {
		return errors.Wrap(err, "listing appointments")
	}
	if appts == nil {
		appts = []appointment.Appointment{}
	}
	return ctx.JSON(http.StatusOK, echo.Map{"data": appts})
}

func (api *appointmentApi) listForCoordinator(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	appts, err := api.svc.ListForCoordinator(ctx.Request().Context(), usr.ID)
	if err != nil {
		return errors.Wrap(err, "listing appointments")
	}
	if appts == nil {
		appts = []appointment.Appointment{}
	}
	return ctx.JSON(http.StatusOK, echo.Map{"appointments": appts})
}

func (api *appointmentApi) update(ctx echo.Context) error {
	id, err := intParam(ctx, "id")
	if err != nil {
		return err
	}
	var data appointment.UpdateAppointment
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateAppointment")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	appt, err := api.svc.Update(ctx.Request().Context(), usr, id, data)
	if err != nil {
		return errors.Wrap(err, "updating appointment")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"appointment": appt})
}
