package guard

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jayalms/lms/core/identity"
	"github.com/jayalms/lms/core/profile"
	"github.com/jayalms/lms/core/session"
)

func TestDecide(t *testing.T) {
	u1 := &identity.Session{UserID: "u1", AccessToken: "tok"}
	withRole := func(r profile.Role) *profile.Profile { return &profile.Profile{ID: "u1", Role: r} }

	tests := []struct {
		name     string
		state    session.State
		required profile.Role
		want     Decision
	}{
		{
			name:     "loading waits",
			state:    session.State{Loading: true},
			required: profile.RoleTeacher,
			want:     Decision{Action: Wait},
		},
		{
			name:     "loading waits even with a user",
			state:    session.State{Loading: true, User: u1, Profile: withRole(profile.RoleTeacher)},
			required: profile.RoleTeacher,
			want:     Decision{Action: Wait},
		},
		{
			name:     "no user goes to sign in",
			state:    session.State{},
			required: profile.RoleStudent,
			want:     Decision{Action: Redirect, Target: PathSignIn},
		},
		{
			name:     "student on teacher view goes to student dashboard",
			state:    session.State{User: u1, Profile: withRole(profile.RoleStudent)},
			required: profile.RoleTeacher,
			want:     Decision{Action: Redirect, Target: PathStudentDashboard},
		},
		{
			name:     "teacher on student view goes to teacher dashboard",
			state:    session.State{User: u1, Profile: withRole(profile.RoleTeacher)},
			required: profile.RoleStudent,
			want:     Decision{Action: Redirect, Target: PathTeacherDashboard},
		},
		{
			name:     "teacher on teacher view is admitted",
			state:    session.State{User: u1, Profile: withRole(profile.RoleTeacher)},
			required: profile.RoleTeacher,
			want:     Decision{Action: Admit},
		},
		{
			name:     "unset role goes home",
			state:    session.State{User: u1, Profile: withRole(profile.RoleUnset)},
			required: profile.RoleStudent,
			want:     Decision{Action: Redirect, Target: PathHome},
		},
		{
			name:     "missing profile goes home",
			state:    session.State{User: u1},
			required: profile.RoleStudent,
			want:     Decision{Action: Redirect, Target: PathHome},
		},
		{
			name:  "no required role admits any user",
			state: session.State{User: u1},
			want:  Decision{Action: Admit},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Decide(tt.state, tt.required); got != tt.want {
				t.Errorf("Decide() = %v, want %v", got, tt.want)
			}
		})
	}
}

type fakeSource struct {
	mu      sync.Mutex
	state   session.State
	watcher func(session.State)
}

func (s *fakeSource) State() session.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *fakeSource) Watch(fn func(session.State)) func() {
	s.mu.Lock()
	s.watcher = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		s.watcher = nil
		s.mu.Unlock()
	}
}

func (s *fakeSource) set(st session.State) {
	s.mu.Lock()
	s.state = st
	fn := s.watcher
	s.mu.Unlock()
	if fn != nil {
		fn(st)
	}
}

func TestWatch(t *testing.T) {
	u1 := &identity.Session{UserID: "u1"}
	teacher := &profile.Profile{ID: "u1", Role: profile.RoleTeacher}
	src := &fakeSource{state: session.State{Loading: true}}

	var got []Decision
	stop := Watch(src, profile.RoleTeacher, func(d Decision) { got = append(got, d) })

	src.set(session.State{User: u1})                   // profile in flight
	src.set(session.State{User: u1, Profile: teacher}) // admitted
	src.set(session.State{User: u1, Profile: teacher}) // unchanged, not reported
	src.set(session.State{})                           // concurrent sign-out evicts the view
	stop()
	src.set(session.State{User: u1, Profile: teacher})

	assert.Equal(t, []Decision{
		{Action: Wait},
		{Action: Redirect, Target: PathHome},
		{Action: Admit},
		{Action: Redirect, Target: PathSignIn},
	}, got)
}

func TestDashboardPath(t *testing.T) {
	assert.Equal(t, PathStudentDashboard, DashboardPath(profile.RoleStudent))
	assert.Equal(t, PathTeacherDashboard, DashboardPath(profile.RoleTeacher))
	assert.Equal(t, PathHome, DashboardPath(profile.RoleUnset))
	assert.Equal(t, PathHome, DashboardPath(profile.Role(42)))
}
