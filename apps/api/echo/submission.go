package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/jayalms/lms/core"
	"github.com/jayalms/lms/core/profile"
	"github.com/jayalms/lms/core/submission"
)

type submissionApi struct {
	svc      *submission.Service
	profiles *profile.Service
}

func registerSubmissionAPI(authed *echo.Group, deps ServerDeps) {
	api := submissionApi{svc: deps.Submissions, profiles: deps.Profiles}

	sg := authed.Group("/submissions")
	sg.GET("", api.query)
	sg.POST("", api.upload, roleMiddleware(deps.Profiles, profile.RoleStudent))
	sg.GET("/:id/download", api.download)
}

func (api *submissionApi) query(ctx echo.Context) error {
	prof, err := getContextProfile(ctx, api.profiles)
	if err != nil {
		return err
	}

	var submissions []submission.Submission
	if prof.Role == profile.RoleTeacher {
		submissions, err = api.svc.ListAll(ctx.Request().Context())
	} else {
		submissions, err = api.svc.ListForStudent(ctx.Request().Context(), prof.ID)
	}
	if err != nil {
		return errors.Wrap(err, "listing submissions")
	}
	if submissions == nil {
		submissions = []submission.Submission{}
	}
	return ctx.JSON(http.StatusOK, submissions)
}

// upload expects a multipart form with the PDF as `file` and the target `batch_id`.
func (api *submissionApi) upload(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	fh, err := ctx.FormFile("file")
	if err != nil {
		return core.NewValidationError(nil, core.FieldError{Field: "file", Error: "this field is required"})
	}
	file, err := fh.Open()
	if err != nil {
		return errors.Wrap(err, "opening uploaded file")
	}
	defer file.Close()

	s, err := api.svc.Upload(ctx.Request().Context(), claims.UserID(), ctx.FormValue("batch_id"), file)
	if err != nil {
		return errors.Wrap(err, "uploading submission")
	}
	return ctx.JSON(http.StatusCreated, s)
}

func (api *submissionApi) download(ctx echo.Context) error {
	prof, err := getContextProfile(ctx, api.profiles)
	if err != nil {
		return err
	}
	url, err := api.svc.DownloadURL(ctx.Request().Context(), ctx.Param("id"), prof)
	if err != nil {
		return errors.Wrap(err, "getting download url")
	}
	return ctx.JSON(http.StatusOK, DownloadResponse{URL: url})
}
