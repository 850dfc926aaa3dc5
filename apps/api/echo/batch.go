package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/jayalms/lms/core/batch"
	"github.com/jayalms/lms/core/profile"
)

type batchApi struct {
	svc *batch.Service
}

func registerBatchAPI(authed *echo.Group, deps ServerDeps) {
	api := batchApi{svc: deps.Batches}
	teacher := roleMiddleware(deps.Profiles, profile.RoleTeacher)

	bg := authed.Group("/batches")
	bg.GET("", api.query)
	bg.POST("", api.create, teacher)
	bg.GET("/:id", api.retrieve)
	bg.PUT("/:id", api.update, teacher)
	bg.DELETE("/:id", api.destroy, teacher)
	bg.GET("/:id/students", api.students, teacher)
}

func (api *batchApi) query(ctx echo.Context) error {
	batches, err := api.svc.List(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "listing batches")
	}
	if batches == nil {
		batches = []batch.Batch{}
	}
	return ctx.JSON(http.StatusOK, batches)
}

func (api *batchApi) retrieve(ctx echo.Context) error {
	b, err := api.svc.GetBatch(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting batch")
	}
	return ctx.JSON(http.StatusOK, b)
}

func (api *batchApi) create(ctx echo.Context) error {
	var data batch.Form
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to batch.Form")
	}
	b, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating batch")
	}
	return ctx.JSON(http.StatusCreated, b)
}

func (api *batchApi) update(ctx echo.Context) error {
	var data batch.Form
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to batch.Form")
	}
	b, err := api.svc.Update(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating batch")
	}
	return ctx.JSON(http.StatusOK, b)
}

func (api *batchApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting batch")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *batchApi) students(ctx echo.Context) error {
	students, err := api.svc.Students(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "listing batch students")
	}
	if students == nil {
		students = []profile.Profile{}
	}
	return ctx.JSON(http.StatusOK, students)
}
