package profile

import (
	"context"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jayalms/lms/core"
)

type fakeRepo struct {
	profiles map[string]Profile
	err      error
}

func (r *fakeRepo) GetProfile(_ context.Context, id string) (Profile, error) {
	if p, ok := r.profiles[id]; ok {
		return p, nil
	}
	return Profile{}, ErrNotFound
}

func (r *fakeRepo) QueryProfiles(_ context.Context, ids ...string) ([]Profile, error) {
	var res []Profile
	for _, id := range ids {
		if p, ok := r.profiles[id]; ok {
			res = append(res, p)
		}
	}
	return res, nil
}

func (r *fakeRepo) UpdateContact(_ context.Context, id, name, phone string) ([]Profile, error) {
	if r.err != nil {
		return nil, r.err
	}
	p, ok := r.profiles[id]
	if !ok {
		return []Profile{}, nil
	}
	p.Name, p.PhoneNumber = StringPtr(name), StringPtr(phone)
	r.profiles[id] = p
	return []Profile{p}, nil
}

type recordingBroker struct {
	events []core.ChangeEvent
}

func (b *recordingBroker) Publish(_ context.Context, ev core.ChangeEvent) error {
	b.events = append(b.events, ev)
	return nil
}

func (b *recordingBroker) Subscribe(context.Context, ...string) (<-chan core.ChangeEvent, func()) {
	return nil, func() {}
}

func TestService_Complete(t *testing.T) {
	ctx := context.Background()
	validate := core.NewValidator(core.NewTranslator())

	t.Run("updates contact fields", func(t *testing.T) {
		repo := &fakeRepo{profiles: map[string]Profile{"u1": {ID: "u1", Role: RoleStudent}}}
		broker := new(recordingBroker)
		svc := NewService(repo, validate, broker, core.NopLogger)

		prof, err := svc.Complete(ctx, "u1", CompleteProfile{Name: "  Jaya ", PhoneNumber: "+243 810 000 000"})
		require.NoError(t, err)
		assert.True(t, prof.IsComplete())
		assert.Equal(t, "Jaya", prof.DisplayName())
		assert.Equal(t, RoleStudent, prof.Role)
		assert.Equal(t, []core.ChangeEvent{{Table: core.TableUsers, Op: core.OpUpdate, RecordID: "u1"}}, broker.events)
	})

	t.Run("zero rows is a no-match update error", func(t *testing.T) {
		broker := new(recordingBroker)
		svc := NewService(&fakeRepo{profiles: map[string]Profile{}}, validate, broker, core.NopLogger)

		_, err := svc.Complete(ctx, "ghost", CompleteProfile{Name: "Jaya", PhoneNumber: "0810000000"})
		var uerr *UpdateError
		require.True(t, errors.As(err, &uerr))
		assert.True(t, uerr.NoMatch)
		assert.True(t, errors.Is(err, ErrNoMatchingProfile))
		assert.Empty(t, broker.events)
	})

	t.Run("write failure is a generic update error", func(t *testing.T) {
		boom := errors.New("connection reset")
		repo := &fakeRepo{profiles: map[string]Profile{"u1": {ID: "u1"}}, err: boom}
		svc := NewService(repo, validate, nil, core.NopLogger)

		_, err := svc.Complete(ctx, "u1", CompleteProfile{Name: "Jaya", PhoneNumber: "0810000000"})
		var uerr *UpdateError
		require.True(t, errors.As(err, &uerr))
		assert.False(t, uerr.NoMatch)
		assert.False(t, errors.Is(err, ErrNoMatchingProfile))
		assert.True(t, errors.Is(err, boom))
	})

	t.Run("blank fields fail validation", func(t *testing.T) {
		svc := NewService(&fakeRepo{profiles: map[string]Profile{"u1": {ID: "u1"}}}, validate, nil, core.NopLogger)

		_, err := svc.Complete(ctx, "u1", CompleteProfile{Name: "   ", PhoneNumber: "\t"})
		var verrs validator.ValidationErrors
		require.True(t, errors.As(err, &verrs))
		assert.Len(t, verrs, 2)
	})
}
