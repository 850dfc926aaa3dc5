package identity

import (
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const (
	TokenType = "bearer"
	audience  = "lms"
)

var (
	// SigningMethod is the JWT signing algorithm of session tokens.
	SigningMethod = jwt.SigningMethodHS256

	NowFunc = time.Now // mockable

	// errors
	errRefreshExpired = errors.New("refresh has expired")
)

// Claims represents the authorization claims transmitted via a JWT.
type Claims struct {
	jwt.StandardClaims
	OrigIssuedAt int64  `json:"oriat,omitempty"`
	Email        string `json:"email,omitempty"`
}

// UserID returns the identity the token was issued for.
func (c *Claims) UserID() string { return c.Subject }

type tokenIssuer struct {
	issuer     string
	key        []byte
	ttl        time.Duration
	refreshTTL time.Duration
}

// claimsFor returns fresh claims for acct. origIat carries the original issue time across refreshes.
func (ti tokenIssuer) claimsFor(acct Account, origIat ...int64) *Claims {
	now := NowFunc()
	nownix := now.Unix()

	oriat := nownix
	if len(origIat) > 0 && origIat[0] > 0 {
		oriat = origIat[0]
	}

	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Id:        uuid.New().String(),
			Issuer:    ti.issuer,
			Subject:   acct.ID,
			Audience:  audience,
			ExpiresAt: now.Add(ti.ttl).Unix(),
			IssuedAt:  nownix,
		},
		OrigIssuedAt: oriat,
		Email:        acct.Email,
	}
}

// sign generates a signed JWT token string representing claims and wraps it into a Session.
func (ti tokenIssuer) sign(claims *Claims) (Session, error) {
	token := jwt.NewWithClaims(SigningMethod, claims)
	ss, err := token.SignedString(ti.key)
	if err != nil {
		return Session{}, errors.Wrap(err, "signing token")
	}
	return Session{
		AccessToken: ss,
		TokenType:   TokenType,
		UserID:      claims.Subject,
		Email:       claims.Email,
		ExpiresAt:   time.Unix(claims.ExpiresAt, 0).UTC(),
	}, nil
}

func (ti tokenIssuer) parse(tokenStr string) (*Claims, error) {
	claims := new(Claims)
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != SigningMethod.Alg() {
			return nil, errors.Errorf("unexpected jwt signing method=%v", t.Header["alg"])
		}
		return ti.key, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

func (ti tokenIssuer) canRefresh(claims *Claims) error {
	expTime := time.Unix(claims.OrigIssuedAt, 0).Add(ti.refreshTTL)
	if NowFunc().After(expTime) {
		return errRefreshExpired
	}
	return nil
}

// SessionFromClaims rebuilds the Session of an already verified token.
func SessionFromClaims(token string, claims *Claims) Session {
	return Session{
		AccessToken: token,
		TokenType:   TokenType,
		UserID:      claims.Subject,
		Email:       claims.Email,
		ExpiresAt:   time.Unix(claims.ExpiresAt, 0).UTC(),
	}
}
