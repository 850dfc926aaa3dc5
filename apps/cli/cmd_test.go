package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/jayalms/lms/apps/api/echo"
	"github.com/jayalms/lms/client"
	"github.com/jayalms/lms/core"
	"github.com/jayalms/lms/core/identity"
	"github.com/jayalms/lms/core/notice"
	"github.com/jayalms/lms/core/profile"
	"github.com/jayalms/lms/services/filestore"
	testutil "github.com/jayalms/lms/tests"
)

const pdf = "%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\ntrailer\n<< /Root 1 0 R >>\n%%EOF\n"

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

// terminal runs commands of one user; the session store outlives each run like the session file does.
type terminal struct {
	t     *testing.T
	url   string
	store identity.SessionStore
}

func newTerminal(t *testing.T, ts *httptest.Server) *terminal {
	return &terminal{t: t, url: ts.URL, store: new(identity.MemoryStore)}
}

// run executes args with password as the prompted password and input as stdin.
func (term *terminal) run(password, input string, args ...string) (string, error) {
	term.t.Helper()
	readPasswordFunc = func(fd int) ([]byte, error) { return []byte(password), nil }

	var out bytes.Buffer
	cli := newCommandLine(client.New(term.url, nil), term.store, core.NopLogger, strings.NewReader(input), &out)
	err := cli.run(context.Background(), append([]string{"lms"}, args...))
	return out.String(), err
}

func Test_commandLine_usage(t *testing.T) {
	_, ts := setup(t)
	term := newTerminal(t, ts)

	_, err := term.run("", "")
	assert.Equal(t, errHelp, err)
	_, err = term.run("", "", "lol")
	assert.Equal(t, errNotSignedIn, err)
	_, err = term.run("", "", "whoami")
	assert.Equal(t, errNotSignedIn, err)
	_, err = term.run("", "", "signin")
	assert.Equal(t, errHelp, err)
	_, err = term.run("", "", "signup", "-email", "new@test.cd")
	assert.Equal(t, errHelp, err)
	_, err = term.run("", "", "signin", "new@test.cd")
	assert.Equal(t, errHelp, err, "empty password")
}

func Test_commandLine_student(t *testing.T) {
	env, ts := setup(t)
	b := env.CreateBatch(t, "Go 101", "2024-01-15")
	term := newTerminal(t, ts)

	out, err := term.run(testutil.Password, "", "signup", "-email", "stu@test.cd", "-name", "Stu", "-role", "student")
	require.NoError(t, err)
	assert.Contains(t, out, "Signed in as stu@test.cd")
	assert.Contains(t, out, "Profile: incomplete")

	out, err = term.run("", "", "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "Name: Stu\nRole: student")

	out, err = term.run("", "", "batches")
	require.NoError(t, err)
	assert.Contains(t, out, b.ID)
	assert.Contains(t, out, "Go 101")

	_, err = term.run("", "Stu Dent\ncall me\n", "enroll", b.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "phone_number")

	out, err = term.run("", "Stu Dent\n0810000000\n", "enroll", b.ID)
	require.NoError(t, err)
	assert.Contains(t, out, "Your profile is incomplete.")
	assert.Contains(t, out, "Profile completed.")
	assert.Contains(t, out, "Enrollment requested (pending)")

	out, err = term.run("", "", "dashboard")
	require.NoError(t, err)
	assert.NotContains(t, out, "incomplete")
	assert.Regexp(t, `Pending enrollments\s+1`, out)

	homework := filepath.Join(t.TempDir(), "homework.pdf")
	require.NoError(t, os.WriteFile(homework, []byte(pdf), 0o600))
	out, err = term.run("", "", "submit", b.ID, homework)
	require.NoError(t, err)
	assert.Contains(t, out, "Submitted: ")

	_, err = env.Notices.Create(context.Background(), notice.Form{Title: "Holiday", Content: "No class on Friday"})
	require.NoError(t, err)
	out, err = term.run("", "", "notices")
	require.NoError(t, err)
	assert.Contains(t, out, "Holiday (all)")

	out, err = term.run("", "", "signout")
	require.NoError(t, err)
	assert.Contains(t, out, "Signed out.")
	_, err = term.run("", "", "whoami")
	assert.Equal(t, errNotSignedIn, err)

	_, err = term.run("wrong password", "", "signin", "-name", "Stu Dent")
	assert.True(t, errors.Is(err, identity.ErrInvalidCredentials), "got %v", err)

	out, err = term.run(testutil.Password, "", "signin", "-name", "Stu Dent")
	require.NoError(t, err)
	assert.Contains(t, out, "Signed in as stu@test.cd")
	assert.Contains(t, out, "Phone: 0810000000")
}

func Test_commandLine_teacher(t *testing.T) {
	env, ts := setup(t)
	env.CreateUser(t, "tea@test.cd", "Tea", "0820000000", profile.RoleTeacher)
	b := env.CreateBatch(t, "Go 101", "2024-01-15")
	term := newTerminal(t, ts)

	_, err := term.run(testutil.Password, "", "signin", "tea@test.cd")
	require.NoError(t, err)

	_, err = term.run("", "", "enroll", b.ID)
	assert.Equal(t, errNoPermission, err)

	out, err := term.run("", "", "dashboard")
	require.NoError(t, err)
	assert.Regexp(t, `Batches\s+1`, out)

	out, err = term.run("", "", "dashboard", "student")
	require.NoError(t, err)
	assert.Contains(t, out, "Redirected to /dashboard/teacher")
	assert.Regexp(t, `Batches\s+1`, out)

	out, err = term.run("", "", "dashboard", "teacher")
	require.NoError(t, err)
	assert.NotContains(t, out, "Redirected")

	_, err = term.run("", "", "dashboard", "admin")
	assert.Equal(t, errHelp, err)
}

func Test_commandLine_dashboardWithoutRole(t *testing.T) {
	env, ts := setup(t)
	sess, _ := env.CreateUser(t, "old@test.cd", "Old", "0830000000", profile.RoleStudent)
	require.NoError(t, env.DB.SetRole(sess.UserID, profile.RoleUnset))
	term := newTerminal(t, ts)

	_, err := term.run(testutil.Password, "", "signin", "old@test.cd")
	require.NoError(t, err)

	for _, args := range [][]string{{"dashboard"}, {"dashboard", "student"}, {"dashboard", "teacher"}} {
		out, err := term.run("", "", args...)
		assert.Equal(t, errNoDashboard, err, args)
		assert.Contains(t, out, "Redirected to /\n", args)
	}
}
