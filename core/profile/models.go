package profile

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/jayalms/lms/core"
)

// Role is the closed set of roles a profile can hold.
type Role uint8

const (
	RoleUnset Role = iota
	RoleStudent
	RoleTeacher
)

var (
	Roles = []RoleChoice{
		{Name: "Student", Value: RoleStudent},
		{Name: "Teacher", Value: RoleTeacher},
	}

	errInvalidRole = errors.New("invalid role")
)

type RoleChoice struct {
	Name  string `json:"name"`
	Value Role   `json:"value"`
}

// ParseRole maps "student" | "teacher" | "" to a Role. Anything else is an error.
func ParseRole(s string) (Role, error) {
	switch core.CleanString(s, true /* lower */) {
	case "":
		return RoleUnset, nil
	case "student":
		return RoleStudent, nil
	case "teacher":
		return RoleTeacher, nil
	}
	return RoleUnset, errors.Wrapf(errInvalidRole, "%q", s)
}

func (r Role) String() string {
	switch r {
	case RoleStudent:
		return "student"
	case RoleTeacher:
		return "teacher"
	}
	return ""
}

func (r Role) IsValid() bool { return r == RoleStudent || r == RoleTeacher }

func (r Role) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

func (r *Role) UnmarshalText(text []byte) error {
	role, err := ParseRole(string(text))
	if err != nil {
		return err
	}
	*r = role
	return nil
}

// MarshalJSON encodes RoleUnset as null.
func (r Role) MarshalJSON() ([]byte, error) {
	if r == RoleUnset {
		return []byte("null"), nil
	}
	return json.Marshal(r.String())
}

func (r *Role) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*r = RoleUnset
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	return r.UnmarshalText([]byte(s))
}

// Value stores RoleUnset as NULL.
func (r Role) Value() (driver.Value, error) {
	if r == RoleUnset {
		return nil, nil
	}
	return r.String(), nil
}

func (r *Role) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*r = RoleUnset
		return nil
	case string:
		return r.UnmarshalText([]byte(v))
	case []byte:
		return r.UnmarshalText(v)
	}
	return fmt.Errorf("profile.Role: cannot scan %T", src)
}

// Profile is the durable record of a user's role and contact details, keyed to their identity.
type Profile struct {
	ID          string  `json:"id"`
	Name        *string `json:"name"`
	PhoneNumber *string `json:"phone_number"`
	Role        Role    `json:"role"`
}

// IsComplete reports whether both name and phone number are non-blank.
func (p *Profile) IsComplete() bool {
	return IsComplete(p)
}

// IsComplete is nil-safe: a missing profile is never complete.
func IsComplete(p *Profile) bool {
	if p == nil {
		return false
	}
	return nonBlank(p.Name) && nonBlank(p.PhoneNumber)
}

func (p *Profile) DisplayName() string {
	if p == nil || p.Name == nil {
		return ""
	}
	return *p.Name
}

func (p *Profile) Phone() string {
	if p == nil || p.PhoneNumber == nil {
		return ""
	}
	return *p.PhoneNumber
}

func nonBlank(s *string) bool {
	return s != nil && strings.TrimSpace(*s) != ""
}

// StringPtr is a helper for optional profile fields.
func StringPtr(s string) *string { return &s }

// CompleteProfile is the "complete profile" form: the only way name & phone number change.
type CompleteProfile struct {
	Name        string `json:"name" validate:"required,max=120"`
	PhoneNumber string `json:"phone_number" validate:"required,phone"`
}

func (cp *CompleteProfile) Clean() {
	cp.Name = core.CleanString(cp.Name)
	cp.PhoneNumber = core.CleanString(cp.PhoneNumber)
}

func (cp *CompleteProfile) Validate(validate *validator.Validate) error {
	cp.Clean()
	return validate.Struct(cp)
}
