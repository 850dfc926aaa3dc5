package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/jayalms/lms/core/identity"
	"github.com/jayalms/lms/core/profile"
)

type identityApi struct {
	svc *identity.Service
}

func registerIdentityAPI(g, authed *echo.Group, deps ServerDeps) {
	api := identityApi{svc: deps.Identity}

	// un-authed endpoints
	g.POST("/auth/signin", api.signIn)
	g.POST("/auth/signup", api.signUp)
	g.POST("/rpc/get_user_email_by_name", api.emailByName)
	g.GET("/auth/roles", api.roles)

	// authed endpoints
	authed.POST("/auth/signout", api.signOut)
	authed.POST("/auth/refresh", api.refresh)
	authed.GET("/auth/session", api.session)
}

// Handlers

// roles lists the roles a new account can pick.
func (api *identityApi) roles(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, profile.Roles)
}

func (api *identityApi) signIn(ctx echo.Context) error {
	var data identity.Credentials
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Credentials")
	}
	sess, err := api.svc.Authenticate(ctx.Request().Context(), data.Email, data.Password)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sess)
}

func (api *identityApi) signUp(ctx echo.Context) error {
	var data identity.NewAccount
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAccount")
	}
	sess, err := api.svc.Register(ctx.Request().Context(), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, sess)
}

func (api *identityApi) emailByName(ctx echo.Context) error {
	var data EmailByNameRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to EmailByNameRequest")
	}
	email, err := api.svc.EmailByName(ctx.Request().Context(), data.Name)
	if err != nil {
		return errors.Wrap(err, "resolving email by name")
	}
	return ctx.JSON(http.StatusOK, EmailResponse{Email: email})
}

func (api *identityApi) signOut(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	api.svc.Revoke(ctx.Request().Context(), claims)
	return ctx.NoContent(http.StatusNoContent)
}

func (api *identityApi) refresh(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	sess, err := api.svc.Refresh(ctx.Request().Context(), claims)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sess)
}

func (api *identityApi) session(ctx echo.Context) error {
	sess, err := getContextSession(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sess)
}
