package client

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/jayalms/lms/core/enrollment"
	"github.com/jayalms/lms/core/identity"
)

const codeProfileIncomplete = "profile_incomplete"

// APIError is a non-2xx answer of the API.
type APIError struct {
	Status   int
	Message  string
	Code     string
	Redirect string
	// Fields holds per-field validation messages.
	Fields map[string]string
}

func newAPIError(res *http.Response, data []byte) error {
	e := &APIError{Status: res.StatusCode}

	var body map[string]interface{}
	if err := json.Unmarshal(data, &body); err != nil {
		e.Message = strings.TrimSpace(string(data))
	}
	if msg, ok := body["error"].(string); ok {
		e.Message = msg
		e.Code, _ = body["code"].(string)
		e.Redirect, _ = body["redirect"].(string)
	} else if len(body) > 0 {
		e.Fields = make(map[string]string, len(body))
		for k, v := range body {
			e.Fields[k] = fmt.Sprint(v)
		}
	}
	if e.Redirect == "" {
		e.Redirect = res.Header.Get("Location")
	}
	if e.Message == "" {
		e.Message = strings.ToLower(http.StatusText(res.StatusCode))
	}

	if e.Status == http.StatusSeeOther || e.Status == http.StatusFound {
		return &RedirectError{Target: e.Redirect}
	}
	return e
}

func (e *APIError) Error() string {
	if len(e.Fields) == 0 {
		return fmt.Sprintf("api: %d %s", e.Status, e.Message)
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + e.Fields[k]
	}
	return fmt.Sprintf("api: %d %s", e.Status, strings.Join(parts, ", "))
}

// Is lets callers match the API's incomplete profile answer with enrollment.ErrProfileIncomplete.
func (e *APIError) Is(target error) bool {
	return target == enrollment.ErrProfileIncomplete && e.Status == http.StatusForbidden && e.Code == codeProfileIncomplete
}

// RedirectError is the guard's answer when the caller belongs elsewhere.
type RedirectError struct {
	Target string
}

func (e *RedirectError) Error() string {
	return "redirected to " + e.Target
}

// IsStatus reports whether err is an *APIError of the given status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

// authError maps the API answers of the auth endpoints to *identity.AuthError.
func authError(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return &identity.AuthError{Code: identity.CodeProvider, Err: err}
	}

	switch code := identity.AuthErrorCode(apiErr.Code); {
	case code == identity.CodeInvalidCredentials, code == identity.CodeAlreadyExists, code == identity.CodeInvalidToken:
		return &identity.AuthError{Code: code}
	case apiErr.Status == http.StatusUnauthorized:
		return &identity.AuthError{Code: identity.CodeInvalidToken, Err: apiErr}
	case apiErr.Status == http.StatusConflict:
		return &identity.AuthError{Code: identity.CodeAlreadyExists, Err: apiErr}
	case apiErr.Status == http.StatusBadRequest:
		return &identity.AuthError{Code: identity.CodeValidation, Err: apiErr}
	}
	return &identity.AuthError{Code: identity.CodeProvider, Err: apiErr}
}
