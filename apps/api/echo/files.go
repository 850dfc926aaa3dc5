package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

// serveFile serves a locally stored submission file through its signed URL.
func (s *Server) serveFile(ctx echo.Context) error {
	path, err := s.deps.Files.Verify(ctx.Param("*"), ctx.QueryParam("expires"), ctx.QueryParam("signature"))
	if err != nil {
		return errors.Wrap(err, "verifying signed url")
	}
	return ctx.File(path)
}
