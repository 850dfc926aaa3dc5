package identity

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jayalms/lms/core"
	"github.com/jayalms/lms/core/profile"
	"github.com/jayalms/lms/services/realtime"
)

type fakeAccounts struct {
	mu       sync.Mutex
	accounts map[string]Account
	names    map[string]string // {account id: profile name}
}

func newFakeAccounts() *fakeAccounts {
	return &fakeAccounts{accounts: make(map[string]Account), names: make(map[string]string)}
}

func (r *fakeAccounts) CreateAccount(_ context.Context, acct Account, meta Metadata) (Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.accounts {
		if a.Email == acct.Email {
			return Account{}, ErrAccountExists
		}
	}
	r.accounts[acct.ID] = acct
	r.names[acct.ID] = meta.Name
	return acct, nil
}

func (r *fakeAccounts) GetAccountByID(_ context.Context, id string) (Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.accounts[id]; ok {
		return a, nil
	}
	return Account{}, ErrNotFound
}

func (r *fakeAccounts) GetAccountByEmail(_ context.Context, email string) (Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.accounts {
		if a.Email == email {
			return a, nil
		}
	}
	return Account{}, ErrNotFound
}

func (r *fakeAccounts) GetEmailByName(_ context.Context, name string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, n := range r.names {
		if strings.EqualFold(n, name) {
			return r.accounts[id].Email, nil
		}
	}
	return "", ErrNotFound
}

func (r *fakeAccounts) SetLastLogin(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a := r.accounts[id]
	a.LastLogin = at
	r.accounts[id] = a
	return nil
}

func (r *fakeAccounts) SetPasswordHash(_ context.Context, id string, hash []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a := r.accounts[id]
	a.PasswordHash = hash
	r.accounts[id] = a
	return nil
}

func newTestService(t *testing.T) (*Service, *fakeAccounts) {
	t.Helper()
	translator := core.NewTranslator()
	validate := core.NewValidator(translator)
	InitValidators(validate, translator)

	repo := newFakeAccounts()
	return NewService(repo, validate, nil, nil, core.NewTestConfig(), core.NopLogger), repo
}

func TestService_Register(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	valid := NewAccount{
		Email:           " Jaya@Test.CD ",
		Password:        "s3cret-Pass",
		PasswordConfirm: "s3cret-Pass",
		Name:            "Jaya",
		Role:            profile.RoleStudent,
	}

	sess, err := svc.Register(ctx, valid)
	require.NoError(t, err)
	assert.Equal(t, "jaya@test.cd", sess.Email)
	assert.Equal(t, TokenType, sess.TokenType)
	assert.NotEmpty(t, sess.AccessToken)
	assert.Equal(t, "Jaya", repo.names[sess.UserID])

	claims, err := svc.Verify(ctx, sess.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, sess.UserID, claims.UserID())

	_, err = svc.Register(ctx, valid)
	assert.True(t, errors.Is(err, ErrAlreadyExists), "got %v", err)
	assert.True(t, errors.Is(err, ErrAccountExists))

	tests := []struct {
		name   string
		mutate func(na *NewAccount)
		tag    string
	}{
		{name: "bad email", mutate: func(na *NewAccount) { na.Email = "nope" }, tag: "email"},
		{name: "short password", mutate: func(na *NewAccount) { na.Password, na.PasswordConfirm = "aB1-", "aB1-" }, tag: pwdMinLenTag},
		{name: "whitespace", mutate: func(na *NewAccount) { na.Password, na.PasswordConfirm = "abc def 123", "abc def 123" }, tag: pwdNoSpaceTag},
		{name: "numeric", mutate: func(na *NewAccount) { na.Password, na.PasswordConfirm = "1234567890", "1234567890" }, tag: pwdNotAllNumTag},
		{name: "similar to email", mutate: func(na *NewAccount) { na.Password, na.PasswordConfirm = "other@test.cd", "other@test.cd" }, tag: pwdAttrSimTag},
		{name: "confirm mismatch", mutate: func(na *NewAccount) { na.PasswordConfirm = "something-else1" }, tag: "eqfield"},
		{name: "unset role", mutate: func(na *NewAccount) { na.Role = profile.RoleUnset }, tag: roleTag},
		{name: "no name", mutate: func(na *NewAccount) { na.Name = "  " }, tag: "required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			na := valid
			na.Email = "other@test.cd"
			tt.mutate(&na)

			_, err := svc.Register(ctx, na)
			aerr := AsAuthError(err)
			require.NotNil(t, aerr)
			assert.Equal(t, CodeValidation, aerr.Code)

			var verrs validator.ValidationErrors
			require.True(t, errors.As(err, &verrs))
			var tags []string
			for _, fe := range verrs {
				tags = append(tags, fe.Tag())
			}
			assert.Contains(t, tags, tt.tag)
		})
	}
}

func TestService_Authenticate(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, NewAccount{
		Email: "t@test.cd", Password: "Teach-1234", PasswordConfirm: "Teach-1234", Name: "Mwalimu", Role: profile.RoleTeacher,
	})
	require.NoError(t, err)

	tests := []struct {
		name     string
		email    string
		pwd      string
		wantCode AuthErrorCode
	}{
		{name: "ok", email: "T@test.cd", pwd: "Teach-1234"},
		{name: "wrong password", email: "t@test.cd", pwd: "Teach-12345", wantCode: CodeInvalidCredentials},
		{name: "unknown email", email: "x@test.cd", pwd: "Teach-1234", wantCode: CodeInvalidCredentials},
		{name: "blank", wantCode: CodeValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sess, err := svc.Authenticate(ctx, tt.email, tt.pwd)
			if tt.wantCode == "" {
				require.NoError(t, err)
				assert.Equal(t, "t@test.cd", sess.Email)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, AsAuthError(err).Code)
		})
	}
}

func TestService_RevokeRefresh(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	sess, err := svc.Register(ctx, NewAccount{
		Email: "s@test.cd", Password: "Stud-12345", PasswordConfirm: "Stud-12345", Name: "Mwanafunzi", Role: profile.RoleStudent,
	})
	require.NoError(t, err)
	claims, err := svc.Verify(ctx, sess.AccessToken)
	require.NoError(t, err)

	newSess, err := svc.Refresh(ctx, claims)
	require.NoError(t, err)
	assert.Equal(t, sess.UserID, newSess.UserID)
	assert.NotEqual(t, sess.AccessToken, newSess.AccessToken)

	// the refreshed token is revoked
	_, err = svc.Verify(ctx, sess.AccessToken)
	assert.True(t, errors.Is(err, ErrInvalidToken))

	newClaims, err := svc.Verify(ctx, newSess.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, claims.OrigIssuedAt, newClaims.OrigIssuedAt)

	svc.Revoke(ctx, newClaims)
	_, err = svc.Verify(ctx, newSess.AccessToken)
	assert.True(t, errors.Is(err, ErrInvalidToken))

	// refresh window
	expired := *newClaims
	expired.OrigIssuedAt = time.Now().Add(-5 * time.Hour).Unix()
	_, err = svc.Refresh(ctx, &expired)
	assert.True(t, errors.Is(err, ErrInvalidToken))

	_, err = svc.Verify(ctx, "not.a.token")
	assert.True(t, errors.Is(err, ErrInvalidToken))
}

func TestService_RevocationsAcrossInstances(t *testing.T) {
	translator := core.NewTranslator()
	validate := core.NewValidator(translator)
	InitValidators(validate, translator)
	conf := core.NewTestConfig()
	repo := newFakeAccounts()
	hub := realtime.NewHub(core.NopLogger)

	// two API instances on one database & one change feed
	a := NewService(repo, validate, nil, hub, conf, core.NopLogger)
	b := NewService(repo, validate, nil, hub, conf, core.NopLogger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.WatchRevocations(ctx)
	require.Eventually(t, func() bool { return hub.Subscribers() == 1 }, time.Second, time.Millisecond)

	sess, err := a.Register(ctx, NewAccount{
		Email: "s@test.cd", Password: "Stud-12345", PasswordConfirm: "Stud-12345", Name: "Mwanafunzi", Role: profile.RoleStudent,
	})
	require.NoError(t, err)
	claims, err := b.Verify(ctx, sess.AccessToken)
	require.NoError(t, err)

	a.Revoke(ctx, claims)
	require.Eventually(t, func() bool { return b.IsRevoked(claims) }, time.Second, time.Millisecond)
	_, err = b.Verify(ctx, sess.AccessToken)
	assert.True(t, errors.Is(err, ErrInvalidToken))

	cancel()
	require.Eventually(t, func() bool { return hub.Subscribers() == 0 }, time.Second, time.Millisecond)
}

func TestService_EmailByName(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, NewAccount{
		Email: "jaya@test.cd", Password: "Stud-12345", PasswordConfirm: "Stud-12345", Name: "Jaya Kumar", Role: profile.RoleStudent,
	})
	require.NoError(t, err)

	email, err := svc.EmailByName(ctx, "  jaya KUMAR ")
	require.NoError(t, err)
	assert.Equal(t, "jaya@test.cd", email)

	_, err = svc.EmailByName(ctx, "nobody")
	assert.True(t, errors.Is(err, ErrNotFound))
	_, err = svc.EmailByName(ctx, "   ")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestService_SetPassword(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, NewAccount{
		Email: "jaya@test.cd", Password: "Stud-12345", PasswordConfirm: "Stud-12345", Name: "Jaya", Role: profile.RoleStudent,
	})
	require.NoError(t, err)

	require.NoError(t, svc.SetPassword(ctx, SetPassword{Email: "jaya@test.cd", Password: "Brand-new-99"}))
	_, err = svc.Authenticate(ctx, "jaya@test.cd", "Stud-12345")
	assert.True(t, errors.Is(err, ErrInvalidCredentials))
	_, err = svc.Authenticate(ctx, "jaya@test.cd", "Brand-new-99")
	assert.NoError(t, err)

	assert.Error(t, svc.SetPassword(ctx, SetPassword{Email: "jaya@test.cd", Password: "short"}))
}
