package main

import (
	"context"

	"github.com/pkg/errors"

	"github.com/jayalms/lms/core/identity"
	"github.com/jayalms/lms/core/profile"
)

// addUser registers an account with a profile, or resets the password of an existing one.
func (cli *commandLine) addUser(email, name, role, pwd string) error {
	ctx := context.Background()
	r, err := profile.ParseRole(role)
	if err != nil {
		return err
	}

	if _, err = cli.identity.GetByEmail(ctx, email); err == nil {
		return cli.identity.SetPassword(ctx, identity.SetPassword{Email: email, Password: pwd})
	} else if !errors.Is(err, identity.ErrNotFound) {
		return err
	}

	_, err = cli.identity.Register(ctx, identity.NewAccount{
		Email:           email,
		Password:        pwd,
		PasswordConfirm: pwd,
		Name:            name,
		Role:            r,
	})
	return err
}
