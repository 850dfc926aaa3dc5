package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/jayalms/lms/core/profile"
)

type (
	EmailByNameRequest struct {
		Name string `json:"name"`
	}

	EmailResponse struct {
		Email string `json:"email"`
	}

	// RowsResponse carries the rows affected by an update; an empty list means nothing matched.
	RowsResponse struct {
		Rows []profile.Profile `json:"rows"`
	}

	RedirectResponse struct {
		Redirect string `json:"redirect"`
	}

	DownloadResponse struct {
		URL string `json:"url"`
	}

	StudentOverview struct {
		Pending     int `json:"pending_enrollments"`
		Approved    int `json:"approved_enrollments"`
		Rejected    int `json:"rejected_enrollments"`
		Notices     int `json:"notices"`
		Submissions int `json:"submissions"`
	}

	TeacherOverview struct {
		Batches          int `json:"batches"`
		PendingRequests  int `json:"pending_requests"`
		ApprovedStudents int `json:"approved_students"`
		Notices          int `json:"notices"`
		Submissions      int `json:"submissions"`
	}
)

// redirectTo answers with 303 See Other; the target is also in the body for API callers.
func redirectTo(ctx echo.Context, target string) error {
	ctx.Response().Header().Set(echo.HeaderLocation, target)
	return ctx.JSON(http.StatusSeeOther, RedirectResponse{Redirect: target})
}
