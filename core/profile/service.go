package profile

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/jayalms/lms/core"
)

var (
	// errors
	ErrNotFound          = errors.New("profile not found")
	ErrNoMatchingProfile = errors.New("no matching profile to update")
)

// UpdateError is returned when completing a profile fails.
// NoMatch distinguishes "zero rows updated" from a failed write; both are safe to retry.
type UpdateError struct {
	Err     error
	NoMatch bool
}

func NewUpdateError(err error) *UpdateError {
	if errors.Is(err, ErrNoMatchingProfile) {
		return &UpdateError{Err: err, NoMatch: true}
	}
	return &UpdateError{Err: err}
}

func (e *UpdateError) Error() string {
	if e.NoMatch {
		return "failed to update profile: " + ErrNoMatchingProfile.Error()
	}
	if e.Err == nil {
		return "failed to update profile"
	}
	return "failed to update profile: " + e.Err.Error()
}

func (e *UpdateError) Unwrap() error {
	if e.NoMatch && e.Err == nil {
		return ErrNoMatchingProfile
	}
	return e.Err
}

type (
	Repository interface {
		GetProfile(ctx context.Context, id string) (Profile, error)
		QueryProfiles(ctx context.Context, ids ...string) ([]Profile, error)
		// UpdateContact sets name & phone_number of profile id and returns the affected rows.
		UpdateContact(ctx context.Context, id, name, phone string) ([]Profile, error)
	}

	// Reader is the keyed profile read used by session holders.
	Reader interface {
		GetProfile(ctx context.Context, id string) (Profile, error)
	}

	// Updater is the keyed "complete profile" write; it returns the affected rows.
	Updater interface {
		CompleteProfile(ctx context.Context, id string, form CompleteProfile) ([]Profile, error)
	}

	Service struct {
		repo     Repository
		validate *validator.Validate
		broker   core.ChangeBroker
		logger   core.Logger
	}
)

var (
	_ Reader  = (*Service)(nil)
	_ Updater = (*Service)(nil)
)

func NewService(repo Repository, validate *validator.Validate, broker core.ChangeBroker, logger core.Logger) *Service {
	return &Service{repo: repo, validate: validate, broker: broker, logger: logger}
}

func (svc *Service) GetProfile(ctx context.Context, id string) (Profile, error) {
	return svc.repo.GetProfile(ctx, id)
}

func (svc *Service) Query(ctx context.Context, ids ...string) ([]Profile, error) {
	return svc.repo.QueryProfiles(ctx, ids...)
}

// CompleteProfile validates form and writes it. Zero returned rows means no profile matched id.
func (svc *Service) CompleteProfile(ctx context.Context, id string, form CompleteProfile) ([]Profile, error) {
	if err := form.Validate(svc.validate); err != nil {
		return nil, err
	}
	rows, err := svc.repo.UpdateContact(ctx, id, form.Name, form.PhoneNumber)
	if err != nil {
		return nil, errors.Wrap(err, "updating profile contact")
	}
	if len(rows) > 0 {
		core.PublishChange(ctx, svc.broker, svc.logger, core.TableUsers, core.OpUpdate, id)
	}
	return rows, nil
}

// Complete is CompleteProfile returning the updated profile, or an *UpdateError.
func (svc *Service) Complete(ctx context.Context, id string, form CompleteProfile) (Profile, error) {
	rows, err := svc.CompleteProfile(ctx, id, form)
	if err != nil {
		if _, ok := errors.Cause(err).(validator.ValidationErrors); ok {
			return Profile{}, err
		}
		return Profile{}, NewUpdateError(err)
	}
	if len(rows) == 0 {
		return Profile{}, &UpdateError{NoMatch: true}
	}
	return rows[0], nil
}
