package identity

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jayalms/lms/core"
	"github.com/jayalms/lms/core/profile"
)

type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (l *eventLog) listen(ev Event) {
	l.mu.Lock()
	l.events = append(l.events, ev)
	l.mu.Unlock()
}

func (l *eventLog) types() []EventType {
	l.mu.Lock()
	defer l.mu.Unlock()
	types := make([]EventType, 0, len(l.events))
	for _, ev := range l.events {
		types = append(types, ev.Type)
	}
	return types
}

func TestLocalProvider(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	store := &FileStore{Path: filepath.Join(t.TempDir(), "lms", "session.json")}
	p := NewLocalProvider(svc, store, core.NopLogger)

	var log eventLog
	sub := p.OnAuthStateChange(log.listen)
	assert.Equal(t, 1, p.Listeners())

	sess, err := p.SignUp(ctx, "jaya@test.cd", "Stud-12345", Metadata{Name: "Jaya", Role: profile.RoleStudent})
	require.NoError(t, err)

	stored, err := store.Load()
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, sess.AccessToken, stored.AccessToken)

	got, err := p.GetSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, sess.UserID, got.UserID)

	// a second process restores the persisted session
	p2 := NewLocalProvider(svc, store, core.NopLogger)
	restored, err := p2.GetSession(ctx)
	require.NoError(t, err)
	require.NotNil(t, restored)
	assert.Equal(t, sess.AccessToken, restored.AccessToken)

	refreshed, err := p.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, sess.UserID, refreshed.UserID)

	require.NoError(t, p.SignOut(ctx))
	got, err = p.GetSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)

	// revoked tokens are not restored
	require.NoError(t, store.Save(refreshed))
	p3 := NewLocalProvider(svc, store, core.NopLogger)
	got, err = p3.GetSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)
	stored, err = store.Load()
	require.NoError(t, err)
	assert.Nil(t, stored)

	_, err = p.SignInWithPassword(ctx, "jaya@test.cd", "wrong-pass-1")
	assert.True(t, errors.Is(err, ErrInvalidCredentials))

	assert.Equal(t, []EventType{EventSignedIn, EventTokenRefreshed, EventSignedOut}, log.types())

	sub.Unsubscribe()
	sub.Unsubscribe() // idempotent
	assert.Equal(t, 0, p.Listeners())
}

// loadHookStore runs onLoad once, after the stored session was read.
type loadHookStore struct {
	MemoryStore
	onLoad func()
}

func (s *loadHookStore) Load() (*Session, error) {
	sess, err := s.MemoryStore.Load()
	if hook := s.onLoad; hook != nil {
		s.onLoad = nil
		hook()
	}
	return sess, err
}

func TestLocalProvider_RestoreOverlappedBySignOut(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	sess, err := svc.Register(ctx, NewAccount{
		Email:           "jaya@test.cd",
		Password:        "Stud-12345",
		PasswordConfirm: "Stud-12345",
		Name:            "Jaya",
		Role:            profile.RoleStudent,
	})
	require.NoError(t, err)

	store := new(loadHookStore)
	require.NoError(t, store.Save(&sess))
	p := NewLocalProvider(svc, store, core.NopLogger)
	store.onLoad = func() { assert.NoError(t, p.SignOut(ctx)) }

	got, err := p.GetSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = p.GetSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, got, "the signed out session must not come back")
	stored, _ := store.Load()
	assert.Nil(t, stored)
}

func TestSession_Expired(t *testing.T) {
	now := time.Now()
	var nilSess *Session
	assert.True(t, nilSess.Expired(now))
	assert.False(t, (&Session{ExpiresAt: now.Add(time.Minute)}).Expired(now))
	assert.True(t, (&Session{ExpiresAt: now}).Expired(now))
	assert.False(t, (&Session{}).Expired(now))

	assert.True(t, SameUser(nil, nil))
	assert.False(t, SameUser(&Session{UserID: "a"}, nil))
	assert.True(t, SameUser(&Session{UserID: "a", AccessToken: "1"}, &Session{UserID: "a", AccessToken: "2"}))
}

func TestMemoryStore(t *testing.T) {
	var store MemoryStore
	sess, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, sess)

	orig := &Session{AccessToken: "tok", UserID: "u1"}
	require.NoError(t, store.Save(orig))
	orig.UserID = "mutated"
	sess, err = store.Load()
	require.NoError(t, err)
	assert.Equal(t, "u1", sess.UserID)

	require.NoError(t, store.Clear())
	sess, err = store.Load()
	require.NoError(t, err)
	assert.Nil(t, sess)
}
