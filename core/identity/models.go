package identity

import (
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/jayalms/lms/core"
	"github.com/jayalms/lms/core/profile"
)

// Account is the server-side identity: credentials only. Role & contact details live in its profile.Profile.
type Account struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash []byte    `json:"-"`
	CreatedAt    time.Time `json:"created_at"` // UTC
	LastLogin    time.Time `json:"last_login"` // UTC
}

func (a *Account) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	a.PasswordHash = hash
	return nil
}

func (a *Account) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(a.PasswordHash, []byte(pwd))
}

// Metadata is attached at sign-up and seeds the profile.
type Metadata struct {
	Name string       `json:"name"`
	Role profile.Role `json:"role"`
}

// Session is the authenticated identity's token held for the duration of a login.
type Session struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	UserID      string    `json:"user_id"`
	Email       string    `json:"email"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func (s *Session) Expired(now time.Time) bool {
	return s == nil || (!s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt))
}

// SameUser reports whether both sessions belong to the same identity. Two nil sessions are the same.
func SameUser(a, b *Session) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.UserID == b.UserID
}

// NewAccount contains information needed to sign up.
type NewAccount struct {
	Email           string       `json:"email" validate:"required,email"`
	Password        string       `json:"password" validate:"required"`
	PasswordConfirm string       `json:"password_confirm" validate:"required,eqfield=Password"`
	Name            string       `json:"name" validate:"required,max=120"`
	Role            profile.Role `json:"role" validate:"role"`
}

func (na *NewAccount) Validate(validate *validator.Validate) error {
	na.Email = core.CleanString(na.Email, true /* lower */)
	na.Name = core.CleanString(na.Name)
	return validate.Struct(na)
}

// Credentials is the email & password sign-in form.
type Credentials struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (c *Credentials) Validate(validate *validator.Validate) error {
	c.Email = core.CleanString(c.Email, true /* lower */)
	return validate.Struct(c)
}

// SetPassword is used by admins to reset an account's password.
type SetPassword struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (sp *SetPassword) Validate(validate *validator.Validate) error {
	sp.Email = core.CleanString(sp.Email, true /* lower */)
	return validate.Struct(sp)
}
