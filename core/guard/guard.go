// Package guard decides whether the current session may enter a role-restricted view.
package guard

import (
	"sync"

	"github.com/jayalms/lms/core/profile"
	"github.com/jayalms/lms/core/session"
)

const (
	PathSignIn           = "/login"
	PathHome             = "/"
	PathStudentDashboard = "/dashboard/student"
	PathTeacherDashboard = "/dashboard/teacher"
)

type Action uint8

const (
	// Wait renders a neutral waiting state; no navigation decision is made yet.
	Wait Action = iota
	Redirect
	Admit
)

func (a Action) String() string {
	switch a {
	case Wait:
		return "wait"
	case Redirect:
		return "redirect"
	case Admit:
		return "admit"
	}
	return "unknown"
}

type Decision struct {
	Action Action
	Target string // set when Action is Redirect
}

func (d Decision) String() string {
	if d.Action == Redirect {
		return d.Action.String() + " " + d.Target
	}
	return d.Action.String()
}

// DashboardPath returns the dashboard of role, or home when the role is unset.
func DashboardPath(role profile.Role) string {
	switch role {
	case profile.RoleStudent:
		return PathStudentDashboard
	case profile.RoleTeacher:
		return PathTeacherDashboard
	}
	return PathHome
}

// Decide evaluates the access decision table. A required RoleUnset admits any authenticated user.
func Decide(state session.State, required profile.Role) Decision {
	switch {
	case state.Loading:
		return Decision{Action: Wait}
	case state.User == nil:
		return Decision{Action: Redirect, Target: PathSignIn}
	case required != profile.RoleUnset && state.Role() != required:
		return Decision{Action: Redirect, Target: DashboardPath(state.Role())}
	}
	return Decision{Action: Admit}
}

// Source is the state holder a guard watches.
type Source interface {
	State() session.State
	Watch(fn func(session.State)) (unwatch func())
}

// Watch reports the current decision, then every decision change caused by a state change, until stop is called.
func Watch(src Source, required profile.Role, fn func(Decision)) (stop func()) {
	var (
		mu   sync.Mutex
		last *Decision
	)
	eval := func(st session.State) {
		d := Decide(st, required)
		mu.Lock()
		if last != nil && *last == d {
			mu.Unlock()
			return
		}
		last = &d
		mu.Unlock()
		fn(d)
	}

	unwatch := src.Watch(eval)
	eval(src.State())
	return unwatch
}
