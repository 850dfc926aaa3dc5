package identity

import "github.com/pkg/errors"

type AuthErrorCode string

const (
	CodeInvalidCredentials AuthErrorCode = "invalid_credentials"
	CodeAlreadyExists      AuthErrorCode = "already_exists"
	CodeValidation         AuthErrorCode = "validation_failed"
	CodeInvalidToken       AuthErrorCode = "invalid_token"
	CodeProvider           AuthErrorCode = "provider_error"
)

var (
	// sentinels for errors.Is; they match any *AuthError with the same code.
	ErrInvalidCredentials = &AuthError{Code: CodeInvalidCredentials}
	ErrAlreadyExists      = &AuthError{Code: CodeAlreadyExists}
	ErrInvalidToken       = &AuthError{Code: CodeInvalidToken}

	// repository errors
	ErrNotFound      = errors.New("account not found")
	ErrAccountExists = errors.New("an account with this email already exists")
)

// AuthError is returned by sign-in and sign-up operations.
type AuthError struct {
	Code AuthErrorCode
	Err  error
}

func newAuthError(code AuthErrorCode, err error) *AuthError {
	return &AuthError{Code: code, Err: err}
}

func (e *AuthError) Error() string {
	var msg string
	switch e.Code {
	case CodeInvalidCredentials:
		msg = "invalid credentials"
	case CodeAlreadyExists:
		msg = "an account with this email already exists"
	case CodeValidation:
		msg = "validation failed"
	case CodeInvalidToken:
		msg = "invalid or expired session"
	default:
		msg = "authentication provider error"
	}
	if e.Err != nil && e.Code != CodeInvalidCredentials {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *AuthError) Unwrap() error { return e.Err }

func (e *AuthError) Is(target error) bool {
	t, ok := target.(*AuthError)
	return ok && t.Err == nil && t.Code == e.Code
}

// AsAuthError converts any error into an *AuthError; unknown errors become CodeProvider.
func AsAuthError(err error) *AuthError {
	if err == nil {
		return nil
	}
	var aerr *AuthError
	if errors.As(err, &aerr) {
		return aerr
	}
	return newAuthError(CodeProvider, err)
}
