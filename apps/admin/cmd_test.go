package main

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"testing"

	"github.com/pkg/errors"

	"github.com/jayalms/lms/core/identity"
	"github.com/jayalms/lms/core/profile"
	testutil "github.com/jayalms/lms/tests"
)

func setup(t *testing.T) (*testutil.Env, *commandLine) {
	env := testutil.NewEnv(t, nil)
	return env, &commandLine{
		db:       new(sql.DB),
		identity: env.Identity,
	}
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	extra      interface{}
}

func Test_commandLine_migrate(t *testing.T) {
	_, cli := setup(t)

	migrateFunc = func(db *sql.DB, command string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s must be of form: goose [OPTIONS] DRIVER DBSTRING %s VERSION", command, command)
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "create", args: []string{"migrate", "create", "course", "sql"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			if err := cli.run(args); err != nil {
				if tt.wantErr != nil {
					if err != tt.wantErr {
						t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
					}
				} else if tt.wantErrStr != "" {
					if err.Error() != tt.wantErrStr {
						t.Errorf("cli.run() error.Error() = %s, wantErrStr %s", err.Error(), tt.wantErrStr)
					}
				} else {
					t.Errorf("cli.run() unexpected error = %v", err)
				}
			}
		})
	}

	t.Run("without database", func(t *testing.T) {
		noDB := &commandLine{identity: cli.identity}
		if err := noDB.run([]string{"admin", "migrate", "up"}); err == nil {
			t.Error("cli.run() expected an error")
		}
	})
}

type extra struct {
	pwd string
}

func runWithPassword(t *testing.T, cli *commandLine, tt cliTest) error {
	t.Helper()
	readPasswordFunc = func(fd int) ([]byte, error) {
		if extra, ok := tt.extra.(extra); ok {
			return []byte(extra.pwd), nil
		}
		return nil, nil
	}
	return cli.run(append([]string{"admin"}, tt.args...))
}

func Test_commandLine_addUser(t *testing.T) {
	env, cli := setup(t)
	ctx := context.Background()

	tests := []cliTest{
		{name: "no args", args: []string{"adduser"}, wantErr: errHelp},
		{name: "email but no name", args: []string{"adduser", "-email", "tea@test.cd"}, wantErr: errHelp},
		{name: "no password", args: []string{"adduser", "-email", "tea@test.cd", "-name", "Tea"}, wantErr: errHelp},
		{
			name:    "unknown role",
			args:    []string{"adduser", "-email", "tea@test.cd", "-name", "Tea", "-role", "janitor"},
			extra:   extra{pwd: "correct-horse-battery"},
			wantErr: errors.New("any"),
		},
		{
			name:  "create teacher",
			args:  []string{"adduser", "-email", "tea@test.cd", "-name", "Tea", "-role", "teacher"},
			extra: extra{pwd: "correct-horse-battery"},
		},
		{
			name:  "existing account gets a new password",
			args:  []string{"adduser", "-email", "tea@test.cd", "-name", "Tea", "-role", "teacher"},
			extra: extra{pwd: "staple-battery-horse"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := runWithPassword(t, cli, tt)
			switch {
			case tt.wantErr == errHelp && err != errHelp:
				t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
			case tt.wantErr != nil && err == nil:
				t.Errorf("cli.run() expected an error")
			case tt.wantErr == nil && err != nil:
				t.Errorf("cli.run() unexpected error = %v", err)
			case tt.wantErr == nil:
				sess, err := env.Identity.Authenticate(ctx, "tea@test.cd", tt.extra.(extra).pwd)
				if err != nil {
					t.Fatalf("Authenticate() failed, %v", err)
				}
				prof, err := env.Profiles.GetProfile(ctx, sess.UserID)
				if err != nil {
					t.Fatalf("GetProfile() failed, %v", err)
				}
				if prof.Role != profile.RoleTeacher {
					t.Errorf("profile role = %v, want %v", prof.Role, profile.RoleTeacher)
				}
			}
		})
	}
}

func Test_commandLine_resetPassword(t *testing.T) {
	env, cli := setup(t)
	env.CreateUser(t, "awe@test.cd", "Awe", "", profile.RoleStudent)

	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "email but no password", args: []string{"resetpassword", "-email", "lol@test.cd"}, wantErr: errHelp},
		{name: "account not found", args: []string{"resetpassword", "-email", "lol@test.cd"}, extra: extra{pwd: "lol-lmao-rofl"}, wantErr: identity.ErrNotFound},
		{name: "reset", args: []string{"resetpassword", "-email", "AWE@test.cd"}, extra: extra{pwd: "lol-lmao-rofl"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := runWithPassword(t, cli, tt)
			if err == nil {
				if tt.wantErr != nil {
					t.Fatalf("cli.run() expected error %v", tt.wantErr)
				}
				if _, err := env.Identity.Authenticate(context.Background(), "awe@test.cd", tt.extra.(extra).pwd); err != nil {
					t.Errorf("failed to update new password: %v", err)
				}
			} else if !errors.Is(err, tt.wantErr) {
				t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
