package main

import (
	"context"

	"github.com/jayalms/lms/core/identity"
)

func (cli *commandLine) resetPassword(email, pwd string) error {
	return cli.identity.SetPassword(context.Background(), identity.SetPassword{Email: email, Password: pwd})
}
