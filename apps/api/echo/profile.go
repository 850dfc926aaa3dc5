package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/jayalms/lms/core/profile"
)

type profileApi struct {
	svc *profile.Service
}

func registerProfileAPI(authed *echo.Group, deps ServerDeps) {
	api := profileApi{svc: deps.Profiles}

	authed.GET("/profile", api.retrieve)
	authed.PUT("/profile", api.complete)
}

func (api *profileApi) retrieve(ctx echo.Context) error {
	prof, err := getContextProfile(ctx, api.svc)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, prof)
}

// complete answers with the updated rows. Zero rows is not an error: the caller decides what it means.
func (api *profileApi) complete(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	var data profile.CompleteProfile
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to CompleteProfile")
	}

	rows, err := api.svc.CompleteProfile(ctx.Request().Context(), claims.UserID(), data)
	if err != nil {
		return err
	}
	if rows == nil {
		rows = []profile.Profile{}
	}
	return ctx.JSON(http.StatusOK, RowsResponse{Rows: rows})
}
