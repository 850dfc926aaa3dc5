package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/jayalms/lms/apps/api/echo"
	"github.com/jayalms/lms/core"
	"github.com/jayalms/lms/core/batch"
	"github.com/jayalms/lms/core/enrollment"
	"github.com/jayalms/lms/core/gate"
	"github.com/jayalms/lms/core/guard"
	"github.com/jayalms/lms/core/identity"
	"github.com/jayalms/lms/core/notice"
	"github.com/jayalms/lms/core/profile"
	"github.com/jayalms/lms/core/session"
	"github.com/jayalms/lms/services/filestore"
	testutil "github.com/jayalms/lms/tests"
)

const pdf = "%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\ntrailer\n<< /Root 1 0 R >>\n%%EOF\n"

// setup serves the API on a fresh in-memory database.
func setup(t *testing.T) (*testutil.Env, *httptest.Server) {
	t.Helper()
	conf := core.NewTestConfig()
	conf.Storage.LocalDir = t.TempDir()
	files, err := filestore.NewLocalStorage(conf)
	require.NoError(t, err)

	env := testutil.NewEnv(t, files)
	srv := echoapi.NewServer(echoapi.ServerDeps{
		Conf:        env.Conf,
		Logger:      core.NopLogger,
		Validate:    env.Validate,
		Translator:  env.Translator,
		Identity:    env.Identity,
		Profiles:    env.Profiles,
		Batches:     env.Batches,
		Enrollments: env.Enrollments,
		Notices:     env.Notices,
		Submissions: env.Submissions,
		Broker:      env.Broker,
		Files:       files,
	})
	ts := httptest.NewServer(srv)
	t.Cleanup(func() {
		ts.Close()
		_ = srv.Shutdown(context.Background())
	})
	return env, ts
}

func signedIn(t *testing.T, ts *httptest.Server, sess identity.Session) *Client {
	t.Helper()
	c := New(ts.URL, nil)
	c.SetToken(sess.AccessToken)
	return c
}

type eventRecorder struct {
	mu     sync.Mutex
	events []identity.Event
}

func (r *eventRecorder) record(ev identity.Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *eventRecorder) types() []identity.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	types := make([]identity.EventType, len(r.events))
	for i, ev := range r.events {
		types[i] = ev.Type
	}
	return types
}

func TestProvider_lifecycle(t *testing.T) {
	_, ts := setup(t)
	ctx := context.Background()

	c := New(ts.URL, nil)
	store := new(identity.MemoryStore)
	p := NewProvider(c, store, core.NopLogger)
	rec := new(eventRecorder)
	sub := p.OnAuthStateChange(rec.record)
	defer sub.Unsubscribe()

	sess, err := p.SignUp(ctx, "new@test.cd", testutil.Password, identity.Metadata{Name: "New", Role: profile.RoleStudent})
	require.NoError(t, err)
	assert.Equal(t, "new@test.cd", sess.Email)
	assert.Equal(t, sess.AccessToken, c.Token())
	stored, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, sess, stored)

	prof, err := c.GetProfile(ctx, sess.UserID)
	require.NoError(t, err)
	assert.Equal(t, "New", prof.DisplayName())
	assert.Equal(t, profile.RoleStudent, prof.Role)
	assert.False(t, prof.IsComplete())

	_, err = p.SignUp(ctx, "new@test.cd", testutil.Password, identity.Metadata{Name: "Again", Role: profile.RoleStudent})
	assert.True(t, errors.Is(err, identity.ErrAlreadyExists), "got %v", err)

	refreshed, err := p.Refresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, sess.UserID, refreshed.UserID)
	assert.Equal(t, refreshed.AccessToken, c.Token())

	got, err := p.GetSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, refreshed, got)

	require.NoError(t, p.SignOut(ctx))
	assert.Empty(t, c.Token())
	stored, err = store.Load()
	require.NoError(t, err)
	assert.Nil(t, stored)

	_, err = p.SignInWithPassword(ctx, "new@test.cd", "wrong password")
	assert.True(t, errors.Is(err, identity.ErrInvalidCredentials), "got %v", err)

	_, err = p.SignInWithPassword(ctx, "new@test.cd", testutil.Password)
	require.NoError(t, err)

	assert.Equal(t, []identity.EventType{
		identity.EventSignedIn,
		identity.EventTokenRefreshed,
		identity.EventSignedOut,
		identity.EventSignedIn,
	}, rec.types())
}

func TestProvider_GetSession(t *testing.T) {
	env, ts := setup(t)
	ctx := context.Background()
	sess, _ := env.CreateUser(t, "stu@test.cd", "Stu", "", profile.RoleStudent)

	t.Run("restores a stored session", func(t *testing.T) {
		store := new(identity.MemoryStore)
		require.NoError(t, store.Save(&sess))
		c := New(ts.URL, nil)

		got, err := NewProvider(c, store, core.NopLogger).GetSession(ctx)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, sess, *got)
		assert.Equal(t, sess.AccessToken, c.Token())
	})

	t.Run("clears a rejected session", func(t *testing.T) {
		store := new(identity.MemoryStore)
		require.NoError(t, store.Save(&identity.Session{AccessToken: "not-a-jwt", UserID: sess.UserID}))
		c := New(ts.URL, nil)

		got, err := NewProvider(c, store, core.NopLogger).GetSession(ctx)
		require.NoError(t, err)
		assert.Nil(t, got)
		assert.Empty(t, c.Token())
		stored, _ := store.Load()
		assert.Nil(t, stored)
	})

	t.Run("no stored session", func(t *testing.T) {
		got, err := NewProvider(New(ts.URL, nil), nil, core.NopLogger).GetSession(ctx)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("drops a restore overlapped by a sign-out", func(t *testing.T) {
		store := new(identity.MemoryStore)
		require.NoError(t, store.Save(&sess))

		var p *Provider
		front := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/v1/auth/session" {
				assert.NoError(t, p.SignOut(r.Context()))
			}
			ts.Config.Handler.ServeHTTP(w, r)
		}))
		defer front.Close()
		c := New(front.URL, nil)
		p = NewProvider(c, store, core.NopLogger)

		got, err := p.GetSession(ctx)
		require.NoError(t, err)
		assert.Nil(t, got)
		assert.Empty(t, c.Token())
		stored, _ := store.Load()
		assert.Nil(t, stored)

		got, err = p.GetSession(ctx)
		require.NoError(t, err)
		assert.Nil(t, got, "the signed out session must not come back")
	})

	t.Run("keeps the session when the server is unreachable", func(t *testing.T) {
		down := httptest.NewServer(http.NotFoundHandler())
		down.Close()
		store := new(identity.MemoryStore)
		require.NoError(t, store.Save(&sess))

		got, err := NewProvider(New(down.URL, nil), store, core.NopLogger).GetSession(ctx)
		assert.Error(t, err)
		assert.Nil(t, got)
		stored, _ := store.Load()
		assert.NotNil(t, stored)
	})
}

func TestClient_EmailByName(t *testing.T) {
	env, ts := setup(t)
	env.CreateUser(t, "jane@test.cd", "Jane Doe", "", profile.RoleStudent)
	c := New(ts.URL, nil)

	roles, err := c.Roles(context.Background())
	require.NoError(t, err)
	assert.Equal(t, profile.Roles, roles)

	email, err := c.EmailByName(context.Background(), "Jane Doe")
	require.NoError(t, err)
	assert.Equal(t, "jane@test.cd", email)

	_, err = c.EmailByName(context.Background(), "Nobody")
	assert.Equal(t, identity.ErrNotFound, err)
}

func TestClient_CompleteProfile(t *testing.T) {
	env, ts := setup(t)
	sess, _ := env.CreateUser(t, "stu@test.cd", "Stu", "", profile.RoleStudent)
	c := signedIn(t, ts, sess)
	ctx := context.Background()

	_, err := c.CompleteProfile(ctx, sess.UserID, profile.CompleteProfile{Name: "Stu", PhoneNumber: "call me"})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr), "got %v", err)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, map[string]string{"phone_number": "enter a valid phone number"}, apiErr.Fields)

	rows, err := c.CompleteProfile(ctx, sess.UserID, profile.CompleteProfile{Name: "Stu Dent", PhoneNumber: "0810000000"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].IsComplete())
	assert.Equal(t, "Stu Dent", rows[0].DisplayName())

	_, err = c.GetProfile(ctx, "some-other-user")
	assert.Equal(t, profile.ErrNotFound, err)
}

// TestSessionOverAPI drives the session controller, the guard and the gate with the API as backend.
func TestSessionOverAPI(t *testing.T) {
	env, ts := setup(t)
	env.CreateUser(t, "stu@test.cd", "Stu", "", profile.RoleStudent)
	b := env.CreateBatch(t, "Go 101", "2024-01-15")
	ctx := context.Background()

	c := New(ts.URL, nil)
	ctrl := session.NewController(NewProvider(c, nil, core.NopLogger), c, c, core.NopLogger)
	require.NoError(t, ctrl.Start(ctx))
	defer ctrl.Close()

	st := ctrl.State()
	assert.False(t, st.Loading)
	assert.Nil(t, st.User)
	assert.Equal(t, guard.Decision{Action: guard.Redirect, Target: guard.PathSignIn}, guard.Decide(st, profile.RoleStudent))

	err := ctrl.SignIn(ctx, "Nobody", testutil.Password, session.MethodName)
	assert.True(t, errors.Is(err, identity.ErrInvalidCredentials), "got %v", err)

	require.NoError(t, ctrl.SignIn(ctx, "Stu", testutil.Password, session.MethodName))
	ctrl.Settle()
	st = ctrl.State()
	require.NotNil(t, st.Profile)
	assert.Equal(t, profile.RoleStudent, st.Role())
	assert.False(t, st.IsProfileComplete())
	assert.Equal(t, guard.Decision{Action: guard.Admit}, guard.Decide(st, profile.RoleStudent))
	assert.Equal(t, guard.Decision{Action: guard.Redirect, Target: guard.PathStudentDashboard}, guard.Decide(st, profile.RoleTeacher))

	_, err = c.StudentDashboard(ctx)
	require.NoError(t, err)
	_, err = c.TeacherDashboard(ctx)
	var redirect *RedirectError
	require.True(t, errors.As(err, &redirect), "got %v", err)
	assert.Equal(t, guard.PathStudentDashboard, redirect.Target)

	_, err = c.RequestEnrollment(ctx, b.ID)
	assert.True(t, errors.Is(err, enrollment.ErrProfileIncomplete), "got %v", err)

	g := gate.New(ctrl, c, env.Validate)
	enroll := func(ctx context.Context) error {
		_, err := c.RequestEnrollment(ctx, b.ID)
		return err
	}
	assert.Equal(t, gate.ErrProfileIncomplete, g.Do(ctx, enroll))
	assert.True(t, g.Pending())

	completed := false
	require.NoError(t, g.Complete(ctx, profile.CompleteProfile{Name: "Stu Dent", PhoneNumber: "0810000000"}, func() { completed = true }))
	assert.True(t, completed)
	assert.False(t, g.Pending())
	assert.True(t, ctrl.IsProfileComplete())

	enrollments, err := c.Enrollments(ctx)
	require.NoError(t, err)
	require.Len(t, enrollments, 1)
	assert.Equal(t, b.ID, enrollments[0].BatchID)
	assert.Equal(t, enrollment.StatusPending, enrollments[0].Status)

	ctrl.SignOut(ctx)
	st = ctrl.State()
	assert.Nil(t, st.User)
	assert.Nil(t, st.Profile)
	assert.Empty(t, c.Token())
}

func TestClient_lms(t *testing.T) {
	env, ts := setup(t)
	teaSess, _ := env.CreateUser(t, "tea@test.cd", "Tea", "0820000000", profile.RoleTeacher)
	stuSess, stu := env.CreateUser(t, "stu@test.cd", "Stu", "0810000000", profile.RoleStudent)
	tea, stud := signedIn(t, ts, teaSess), signedIn(t, ts, stuSess)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	changes, err := stud.Watch(ctx, core.TableBatches)
	require.NoError(t, err)

	b, err := tea.CreateBatch(ctx, batch.Form{Name: "Go 101", StartDate: "2024-01-15"})
	require.NoError(t, err)
	select {
	case ev := <-changes:
		assert.Equal(t, core.ChangeEvent{Table: core.TableBatches, Op: core.OpInsert, RecordID: b.ID}, ev)
	case <-ctx.Done():
		t.Fatal("no change event received")
	}

	_, err = stud.CreateBatch(ctx, batch.Form{Name: "Nope", StartDate: "2024-01-15"})
	assert.True(t, IsStatus(err, http.StatusForbidden), "got %v", err)

	batches, err := stud.Batches(ctx)
	require.NoError(t, err)
	assert.Len(t, batches, 1)

	e, err := stud.RequestEnrollment(ctx, b.ID)
	require.NoError(t, err)
	_, err = stud.RequestEnrollment(ctx, b.ID)
	assert.True(t, IsStatus(err, http.StatusConflict), "got %v", err)

	e, err = tea.SetEnrollmentStatus(ctx, e.ID, enrollment.StatusApproved)
	require.NoError(t, err)
	assert.Equal(t, enrollment.StatusApproved, e.Status)

	students, err := tea.BatchStudents(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, students, 1)
	assert.Equal(t, stu.ID, students[0].ID)

	_, err = tea.CreateNotice(ctx, notice.Form{Title: "Welcome", Content: "Class starts Monday", BatchID: &b.ID})
	require.NoError(t, err)
	notices, err := stud.Notices(ctx)
	require.NoError(t, err)
	assert.Len(t, notices, 1)

	s, err := stud.Submit(ctx, b.ID, "homework.pdf", strings.NewReader(pdf))
	require.NoError(t, err)
	assert.Equal(t, stu.ID, s.StudentID)

	_, err = stud.Submit(ctx, b.ID, "homework.pdf", strings.NewReader("not a pdf"))
	assert.True(t, IsStatus(err, http.StatusBadRequest), "got %v", err)

	url, err := tea.DownloadURL(ctx, s.ID)
	require.NoError(t, err)
	assert.Contains(t, url, "signature=")

	overview, err := stud.StudentDashboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, StudentOverview{Approved: 1, Notices: 1, Submissions: 1}, overview)

	tOverview, err := tea.TeacherDashboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, tOverview.Batches)
	assert.Equal(t, 1, tOverview.ApprovedStudents)

	require.NoError(t, tea.RemoveEnrollment(ctx, e.ID))
	students, err = tea.BatchStudents(ctx, b.ID)
	require.NoError(t, err)
	assert.Empty(t, students)

	require.NoError(t, tea.DeleteBatch(ctx, b.ID))
	_, err = tea.Batch(ctx, b.ID)
	assert.True(t, IsStatus(err, http.StatusNotFound), "got %v", err)
}
