package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/jayalms/lms/core"
	"github.com/jayalms/lms/core/batch"
	"github.com/jayalms/lms/core/enrollment"
	"github.com/jayalms/lms/core/identity"
	"github.com/jayalms/lms/core/notice"
	"github.com/jayalms/lms/core/profile"
	"github.com/jayalms/lms/core/submission"
	"github.com/jayalms/lms/services/filestore"
)

var (
	errUnauthorized   = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errTokenRevoked   = echo.NewHTTPError(http.StatusUnauthorized, "session has been signed out")
	errHttpNotFound   = echo.NewHTTPError(http.StatusNotFound, "not found")
	errStreamNotAvail = echo.NewHTTPError(http.StatusInternalServerError, "streaming not supported")

	notFoundErrs = []error{
		identity.ErrNotFound,
		profile.ErrNotFound,
		batch.ErrNotFound,
		enrollment.ErrNotFound,
		notice.ErrNotFound,
		submission.ErrNotFound,
		core.ErrObjectNotFound,
		filestore.ErrInvalidKey,
	}
	forbiddenErrs = []error{
		submission.ErrForbidden,
		enrollment.ErrNotStudent,
		filestore.ErrInvalidSignature,
	}
	conflictErrs = []error{
		enrollment.ErrAlreadyRequested,
	}
)

// permissionError is returned by role-restricted groups; Redirect is the caller's own dashboard.
type permissionError struct {
	Redirect string
}

func (e *permissionError) Error() string { return "permission denied" }

func isAny(err error, targets []error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func validationMessage(err error, translator ut.Translator) (interface{}, bool) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fldErrs := make(map[string]string, len(verrs))
		for _, vErr := range verrs {
			fldErrs[vErr.Field()] = vErr.Translate(translator)
		}
		return fldErrs, true
	}
	var cerr *core.ValidationError
	if errors.As(err, &cerr) {
		if cerr.Fields != nil {
			fldErrs := make(map[string]string, len(cerr.Fields))
			for _, fErr := range cerr.Fields {
				fldErrs[fErr.Field] = fErr.Error
			}
			return fldErrs, true
		}
		return cerr.Error(), true
	}
	return nil, false
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		var (
			herr  *echo.HTTPError
			perr  *permissionError
			aerr  *identity.AuthError
			uperr *profile.UpdateError
		)
		switch {
		case errors.As(err, &herr):
			if herr == middleware.ErrJWTMissing {
				code = http.StatusUnauthorized
				message = herr.Message
				break
			}
			if herr.Internal != nil {
				if ierr, ok := herr.Internal.(*echo.HTTPError); ok {
					herr = ierr
				}
			}
			code = herr.Code
			message = herr.Message
		case errors.As(err, &perr):
			code = http.StatusForbidden
			message = echo.Map{"error": perr.Error(), "redirect": perr.Redirect}
		case errors.As(err, &aerr) && aerr.Code != identity.CodeProvider:
			switch aerr.Code {
			case identity.CodeValidation:
				code = http.StatusBadRequest
				if msg, ok := validationMessage(aerr.Err, translator); ok {
					message = msg
				} else {
					message = echo.Map{"error": aerr.Error(), "code": aerr.Code}
				}
			case identity.CodeAlreadyExists:
				code = http.StatusConflict
				message = echo.Map{"error": aerr.Error(), "code": aerr.Code}
			case identity.CodeInvalidToken:
				code = http.StatusUnauthorized
				message = echo.Map{"error": aerr.Error(), "code": aerr.Code}
			default:
				code = http.StatusBadRequest
				message = echo.Map{"error": aerr.Error(), "code": aerr.Code}
			}
		case errors.Is(err, enrollment.ErrProfileIncomplete):
			code = http.StatusForbidden
			message = echo.Map{"error": enrollment.ErrProfileIncomplete.Error(), "code": "profile_incomplete"}
		case errors.As(err, &uperr) && uperr.NoMatch:
			code = http.StatusNotFound
			message = uperr.Error()
		case isAny(err, notFoundErrs):
			code = http.StatusNotFound
			message = errors.Cause(err).Error()
		case isAny(err, forbiddenErrs):
			code = http.StatusForbidden
			message = errors.Cause(err).Error()
		case isAny(err, conflictErrs):
			code = http.StatusConflict
			message = errors.Cause(err).Error()
		default:
			if msg, ok := validationMessage(err, translator); ok {
				code = http.StatusBadRequest
				message = msg
				break
			}

			// any other error is a server error
			code = http.StatusInternalServerError
			msg := http.StatusText(http.StatusInternalServerError)
			message = msg

			var prof profile.Profile
			if claims, cErr := getContextClaims(ctx); cErr == nil {
				prof.ID = claims.UserID()
			}
			logger.Error(msg, errors.Wrap(err, msg), prof)

			// shutting down...
			if core.IsShutdown(err) {
				signalShutdown()
			}

			if ctx.Echo().Debug {
				message = err.Error()
			}
		}

		if m, ok := message.(string); ok {
			message = echo.Map{"error": m}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, message)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}
