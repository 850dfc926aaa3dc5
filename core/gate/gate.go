// Package gate suspends actions that need a complete profile until the profile is completed.
package gate

import (
	"context"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/jayalms/lms/core/profile"
	"github.com/jayalms/lms/core/session"
)

var (
	// errors
	ErrProfileIncomplete = errors.New("profile incomplete")
	ErrNotAuthenticated  = errors.New("not authenticated")
)

// Intent is an action that depends on a complete profile.
type Intent func(ctx context.Context) error

// Holder is the session state owner the gate reads from and refreshes.
type Holder interface {
	State() session.State
	RefreshProfile(ctx context.Context) error
}

type Gate struct {
	holder   Holder
	updater  profile.Updater
	validate *validator.Validate

	mu      sync.Mutex
	pending Intent
}

func New(holder Holder, updater profile.Updater, validate *validator.Validate) *Gate {
	return &Gate{holder: holder, updater: updater, validate: validate}
}

// Do runs intent when the profile is complete. Otherwise intent becomes the pending intent and
// ErrProfileIncomplete is returned: the caller presents the completion form and calls Complete.
func (g *Gate) Do(ctx context.Context, intent Intent) error {
	st := g.holder.State()
	if st.User == nil {
		return ErrNotAuthenticated
	}
	if !st.IsProfileComplete() {
		g.mu.Lock()
		g.pending = intent
		g.mu.Unlock()
		return ErrProfileIncomplete
	}
	return intent(ctx)
}

// Suspend makes intent pending without running it. Used when the server rejected it for an incomplete profile.
func (g *Gate) Suspend(intent Intent) {
	g.mu.Lock()
	g.pending = intent
	g.mu.Unlock()
}

func (g *Gate) Pending() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.pending != nil
}

// Complete writes the completion form. A failed write returns a *profile.UpdateError, zero affected
// rows included; onComplete is not called and the pending intent stays suspended.
// On success the profile is refreshed, onComplete called and the pending intent resumed.
func (g *Gate) Complete(ctx context.Context, form profile.CompleteProfile, onComplete func()) error {
	st := g.holder.State()
	if st.User == nil {
		return ErrNotAuthenticated
	}
	if err := form.Validate(g.validate); err != nil {
		return err
	}

	rows, err := g.updater.CompleteProfile(ctx, st.User.UserID, form)
	if err != nil {
		if _, ok := errors.Cause(err).(validator.ValidationErrors); ok {
			return err
		}
		return profile.NewUpdateError(err)
	}
	if len(rows) == 0 {
		return &profile.UpdateError{NoMatch: true}
	}

	// the write succeeded; a failed refresh keeps the previous profile and is logged by the holder
	_ = g.holder.RefreshProfile(ctx)
	if onComplete != nil {
		onComplete()
	}

	g.mu.Lock()
	intent := g.pending
	g.pending = nil
	g.mu.Unlock()

	if intent == nil {
		return nil
	}
	return intent(ctx)
}
