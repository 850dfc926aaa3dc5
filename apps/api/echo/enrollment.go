package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/jayalms/lms/core"
	"github.com/jayalms/lms/core/enrollment"
	"github.com/jayalms/lms/core/profile"
)

type enrollmentApi struct {
	svc      *enrollment.Service
	profiles *profile.Service
}

func registerEnrollmentAPI(authed *echo.Group, deps ServerDeps) {
	api := enrollmentApi{svc: deps.Enrollments, profiles: deps.Profiles}
	teacher := roleMiddleware(deps.Profiles, profile.RoleTeacher)

	eg := authed.Group("/enrollments")
	eg.GET("", api.query)
	eg.POST("", api.request, roleMiddleware(deps.Profiles, profile.RoleStudent))
	eg.PUT("/:id/status", api.setStatus, teacher)
	eg.DELETE("/:id", api.destroy, teacher)
}

// query lists the caller's own enrollments, or all of them for teachers.
// Teachers may filter by `status` & `batch_id`, and group by batch with `group=batch`.
func (api *enrollmentApi) query(ctx echo.Context) error {
	prof, err := getContextProfile(ctx, api.profiles)
	if err != nil {
		return err
	}

	filter := enrollment.Filter{StudentID: prof.ID}
	if prof.Role == profile.RoleTeacher {
		filter = enrollment.Filter{
			BatchID: core.CleanString(ctx.QueryParam("batch_id"), true /* lower */),
			Status:  enrollment.Status(core.CleanString(ctx.QueryParam("status"), true /* lower */)),
		}
	}
	enrollments, err := api.svc.Filter(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying enrollments")
	}

	if ctx.QueryParam("group") == "batch" {
		groups := enrollment.GroupByBatch(enrollments)
		if groups == nil {
			groups = []enrollment.Group{}
		}
		return ctx.JSON(http.StatusOK, groups)
	}
	if enrollments == nil {
		enrollments = []enrollment.Enrollment{}
	}
	return ctx.JSON(http.StatusOK, enrollments)
}

func (api *enrollmentApi) request(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	var data enrollment.RequestForm
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to RequestForm")
	}
	e, err := api.svc.Request(ctx.Request().Context(), claims.UserID(), data)
	if err != nil {
		return errors.Wrap(err, "requesting enrollment")
	}
	return ctx.JSON(http.StatusCreated, e)
}

func (api *enrollmentApi) setStatus(ctx echo.Context) error {
	var data enrollment.StatusForm
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to StatusForm")
	}
	e, err := api.svc.SetStatus(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "setting enrollment status")
	}
	return ctx.JSON(http.StatusOK, e)
}

func (api *enrollmentApi) destroy(ctx echo.Context) error {
	if err := api.svc.Remove(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "removing enrollment")
	}
	return ctx.NoContent(http.StatusNoContent)
}
