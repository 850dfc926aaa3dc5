package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/jayalms/lms/core/notice"
	"github.com/jayalms/lms/core/profile"
)

type noticeApi struct {
	svc      *notice.Service
	profiles *profile.Service
}

func registerNoticeAPI(authed *echo.Group, deps ServerDeps) {
	api := noticeApi{svc: deps.Notices, profiles: deps.Profiles}
	teacher := roleMiddleware(deps.Profiles, profile.RoleTeacher)

	ng := authed.Group("/notices")
	ng.GET("", api.query)
	ng.POST("", api.create, teacher)
	ng.PUT("/:id", api.update, teacher)
	ng.DELETE("/:id", api.destroy, teacher)
}

func (api *noticeApi) query(ctx echo.Context) error {
	prof, err := getContextProfile(ctx, api.profiles)
	if err != nil {
		return err
	}

	var notices []notice.Notice
	if prof.Role == profile.RoleTeacher {
		notices, err = api.svc.ListAll(ctx.Request().Context())
	} else {
		notices, err = api.svc.ListForStudent(ctx.Request().Context(), prof.ID)
	}
	if err != nil {
		return errors.Wrap(err, "listing notices")
	}
	if notices == nil {
		notices = []notice.Notice{}
	}
	return ctx.JSON(http.StatusOK, notices)
}

func (api *noticeApi) create(ctx echo.Context) error {
	var data notice.Form
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to notice.Form")
	}
	n, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating notice")
	}
	return ctx.JSON(http.StatusCreated, n)
}

func (api *noticeApi) update(ctx echo.Context) error {
	var data notice.Form
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to notice.Form")
	}
	n, err := api.svc.Update(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating notice")
	}
	return ctx.JSON(http.StatusOK, n)
}

func (api *noticeApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting notice")
	}
	return ctx.NoContent(http.StatusNoContent)
}
