package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/jayalms/lms/core/enrollment"
	"github.com/jayalms/lms/core/guard"
	"github.com/jayalms/lms/core/profile"
)

type dashboardApi struct {
	deps ServerDeps
}

func registerDashboardAPI(authed *echo.Group, deps ServerDeps) {
	api := dashboardApi{deps: deps}

	authed.GET(guard.PathStudentDashboard, api.student, dashboardGuard(deps.Profiles, profile.RoleStudent))
	authed.GET(guard.PathTeacherDashboard, api.teacher, dashboardGuard(deps.Profiles, profile.RoleTeacher))
}

func (api *dashboardApi) student(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	rctx := ctx.Request().Context()
	id := claims.UserID()

	enrollments, err := api.deps.Enrollments.ListForStudent(rctx, id)
	if err != nil {
		return errors.Wrap(err, "listing enrollments")
	}
	notices, err := api.deps.Notices.ListForStudent(rctx, id)
	if err != nil {
		return errors.Wrap(err, "listing notices")
	}
	submissions, err := api.deps.Submissions.ListForStudent(rctx, id)
	if err != nil {
		return errors.Wrap(err, "listing submissions")
	}

	overview := StudentOverview{Notices: len(notices), Submissions: len(submissions)}
	for _, e := range enrollments {
		switch e.Status {
		case enrollment.StatusPending:
			overview.Pending++
		case enrollment.StatusApproved:
			overview.Approved++
		case enrollment.StatusRejected:
			overview.Rejected++
		}
	}
	return ctx.JSON(http.StatusOK, overview)
}

func (api *dashboardApi) teacher(ctx echo.Context) error {
	rctx := ctx.Request().Context()

	batches, err := api.deps.Batches.List(rctx)
	if err != nil {
		return errors.Wrap(err, "listing batches")
	}
	enrollments, err := api.deps.Enrollments.ListAll(rctx)
	if err != nil {
		return errors.Wrap(err, "listing enrollments")
	}
	notices, err := api.deps.Notices.ListAll(rctx)
	if err != nil {
		return errors.Wrap(err, "listing notices")
	}
	submissions, err := api.deps.Submissions.ListAll(rctx)
	if err != nil {
		return errors.Wrap(err, "listing submissions")
	}

	overview := TeacherOverview{Batches: len(batches), Notices: len(notices), Submissions: len(submissions)}
	for _, e := range enrollments {
		switch e.Status {
		case enrollment.StatusPending:
			overview.PendingRequests++
		case enrollment.StatusApproved:
			overview.ApprovedStudents++
		}
	}
	return ctx.JSON(http.StatusOK, overview)
}
