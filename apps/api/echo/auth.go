package echoapi

import (
	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/jayalms/lms/core"
	"github.com/jayalms/lms/core/guard"
	"github.com/jayalms/lms/core/identity"
	"github.com/jayalms/lms/core/profile"
	"github.com/jayalms/lms/core/session"
)

const (
	contextTokenKey   = "userToken"
	contextProfileKey = "profile"
)

// newJWTMiddleware returns the JWT auth middleware for session tokens signed with the app secret key.
func newJWTMiddleware(conf *core.Config) echo.MiddlewareFunc {
	return middleware.JWTWithConfig(middleware.JWTConfig{
		SigningKey:    []byte(conf.SecretKey),
		SigningMethod: middleware.AlgorithmHS256,
		ContextKey:    contextTokenKey,
		Claims:        new(identity.Claims),
	})
}

// sessionMiddleware rejects signed out tokens.
func sessionMiddleware(svc *identity.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return err
			}
			if svc.IsRevoked(claims) {
				return errTokenRevoked
			}
			return next(ctx)
		}
	}
}

func getContextToken(ctx echo.Context) (*jwt.Token, error) {
	if token, ok := ctx.Get(contextTokenKey).(*jwt.Token); ok {
		return token, nil
	}
	return nil, errUnauthorized
}

func getContextClaims(ctx echo.Context) (*identity.Claims, error) {
	token, err := getContextToken(ctx)
	if err != nil {
		return nil, err
	}
	if claims, ok := token.Claims.(*identity.Claims); ok {
		return claims, nil
	}
	return nil, errUnauthorized
}

// getContextSession rebuilds the caller's session from the verified token.
func getContextSession(ctx echo.Context) (identity.Session, error) {
	token, err := getContextToken(ctx)
	if err != nil {
		return identity.Session{}, err
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return identity.Session{}, err
	}
	return identity.SessionFromClaims(token.Raw, claims), nil
}

// getContextProfile loads the caller's profile once per request.
func getContextProfile(ctx echo.Context, profiles profile.Reader) (profile.Profile, error) {
	if prof, ok := ctx.Get(contextProfileKey).(profile.Profile); ok {
		return prof, nil
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return profile.Profile{}, err
	}
	prof, err := profiles.GetProfile(ctx.Request().Context(), claims.UserID())
	if err != nil {
		if errors.Is(err, profile.ErrNotFound) {
			return profile.Profile{}, errUnauthorized
		}
		return profile.Profile{}, errors.Wrap(err, "getting context profile")
	}
	ctx.Set(contextProfileKey, prof)
	return prof, nil
}

// contextState is the session state of the request, as the route guard sees it.
func contextState(ctx echo.Context, profiles profile.Reader) (session.State, error) {
	sess, err := getContextSession(ctx)
	if err != nil {
		return session.State{}, err
	}
	prof, err := getContextProfile(ctx, profiles)
	if err != nil {
		return session.State{}, err
	}
	return session.State{User: &sess, Profile: &prof}, nil
}

// dashboardGuard applies the route guard to a dashboard: redirects are 303 See Other.
func dashboardGuard(profiles profile.Reader, role profile.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			st, err := contextState(ctx, profiles)
			if err != nil {
				return err
			}
			if d := guard.Decide(st, role); d.Action == guard.Redirect {
				return redirectTo(ctx, d.Target)
			}
			return next(ctx)
		}
	}
}

// roleMiddleware restricts an API group to role. Other roles get a 403 hinting at their own dashboard.
func roleMiddleware(profiles profile.Reader, role profile.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			st, err := contextState(ctx, profiles)
			if err != nil {
				return err
			}
			if d := guard.Decide(st, role); d.Action == guard.Redirect {
				return &permissionError{Redirect: d.Target}
			}
			return next(ctx)
		}
	}
}
