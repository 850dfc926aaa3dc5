package session

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/jayalms/lms/core"
	"github.com/jayalms/lms/core/identity"
	"github.com/jayalms/lms/core/profile"
)

// Method selects how SignIn interprets its identifier.
type Method string

const (
	MethodEmail Method = "email"
	MethodName  Method = "name"
)

var (
	// errors
	ErrAlreadyStarted = errors.New("session controller already started")
	ErrClosed         = errors.New("session controller closed")
)

// State is a snapshot of the controller state. Readers must treat it as read-only.
type State struct {
	User    *identity.Session `json:"user"`
	Profile *profile.Profile  `json:"profile"`
	Loading bool              `json:"loading"`
}

func (s State) Authenticated() bool { return !s.Loading && s.User != nil }

// IsProfileComplete is derived from the profile on every read.
func (s State) IsProfileComplete() bool { return profile.IsComplete(s.Profile) }

func (s State) Role() profile.Role {
	if s.Profile == nil {
		return profile.RoleUnset
	}
	return s.Profile.Role
}

func (s State) copy() State {
	cp := State{Loading: s.Loading}
	if s.User != nil {
		usr := *s.User
		cp.User = &usr
	}
	if s.Profile != nil {
		prof := *s.Profile
		cp.Profile = &prof
	}
	return cp
}

// Controller owns the {user, profile, loading} state of a running application.
// It is the only writer of that state; readers get snapshots through State and Watch.
type Controller struct {
	provider identity.Provider
	profiles profile.Reader
	resolver identity.EmailResolver
	logger   core.Logger

	mu        sync.Mutex
	idle      *sync.Cond // signalled when inflight drops to 0
	state     State
	gen       uint64 // bumped on every session change; profile fetches commit only for their own gen
	eventSeen bool   // a newer session change was applied; a late restore result is discarded
	inflight  int
	started   bool
	closed    bool
	sub       identity.Subscription
	ctx       context.Context
	cancel    context.CancelFunc

	notifyMu    sync.Mutex
	watchersMu  sync.Mutex
	nextWatcher int
	watchers    map[int]func(State)
}

func NewController(provider identity.Provider, profiles profile.Reader, resolver identity.EmailResolver, logger core.Logger) *Controller {
	c := &Controller{
		provider: provider,
		profiles: profiles,
		resolver: resolver,
		logger:   logger,
		state:    State{Loading: true},
		watchers: make(map[int]func(State)),
	}
	c.idle = sync.NewCond(&c.mu)
	return c
}

// Start subscribes to the provider's auth changes, then restores the persisted session.
// It returns once the restore resolved; the profile of a restored session is fetched in the background.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.started {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	c.started = true
	c.ctx, c.cancel = context.WithCancel(context.Background())
	c.mu.Unlock()

	sub := c.provider.OnAuthStateChange(c.onAuthStateChange)
	c.mu.Lock()
	c.sub = sub
	c.mu.Unlock()

	sess, err := c.provider.GetSession(ctx)
	if err != nil {
		c.logger.Warn("restoring session", err)
		sess = nil
	}
	c.restore(sess)
	return nil
}

// Close releases the provider subscription and waits for in-flight profile fetches.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	sub, cancel := c.sub, c.cancel
	c.sub = nil
	c.mu.Unlock()

	if sub != nil {
		sub.Unsubscribe()
	}
	if cancel != nil {
		cancel()
	}
	c.Settle()
}

// Settle blocks until no profile fetch is in flight.
func (c *Controller) Settle() {
	c.mu.Lock()
	for c.inflight > 0 {
		c.idle.Wait()
	}
	c.mu.Unlock()
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.copy()
}

func (c *Controller) IsProfileComplete() bool {
	return c.State().IsProfileComplete()
}

// Watch calls fn with the new state after every change, until the returned func is called.
// fn runs synchronously and must not call the controller's mutating operations.
func (c *Controller) Watch(fn func(State)) (unwatch func()) {
	c.watchersMu.Lock()
	id := c.nextWatcher
	c.nextWatcher++
	c.watchers[id] = fn
	c.watchersMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.watchersMu.Lock()
			delete(c.watchers, id)
			c.watchersMu.Unlock()
		})
	}
}

func (c *Controller) notify() {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	c.watchersMu.Lock()
	fns := make([]func(State), 0, len(c.watchers))
	for _, fn := range c.watchers {
		fns = append(fns, fn)
	}
	c.watchersMu.Unlock()

	st := c.State()
	for _, fn := range fns {
		fn(st)
	}
}

func (c *Controller) onAuthStateChange(ev identity.Event) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.eventSeen = true
	gen, fetch := c.setUserLocked(ev.Session)
	c.mu.Unlock()

	c.afterUserChange(gen, fetch)
}

func (c *Controller) restore(sess *identity.Session) {
	c.mu.Lock()
	if c.closed || c.eventSeen {
		c.mu.Unlock()
		return
	}
	gen, fetch := c.setUserLocked(sess)
	c.mu.Unlock()

	c.afterUserChange(gen, fetch)
}

// setUserLocked applies sess as the current user. The cached profile is dropped when the identity changes.
// It reports the new generation & the user id whose profile needs fetching, if any.
func (c *Controller) setUserLocked(sess *identity.Session) (uint64, string) {
	prev := c.state.User
	c.state.Loading = false

	if prev != nil && sess != nil && prev.AccessToken == sess.AccessToken {
		return c.gen, ""
	}
	if !identity.SameUser(prev, sess) {
		c.state.Profile = nil
	}
	c.gen++

	if sess == nil {
		c.state.User = nil
		return c.gen, ""
	}
	usr := *sess
	c.state.User = &usr
	c.inflight++
	return c.gen, usr.UserID
}

func (c *Controller) afterUserChange(gen uint64, fetchID string) {
	c.notify()
	if fetchID != "" {
		go c.fetchProfile(gen, fetchID)
	}
}

func (c *Controller) fetchProfile(gen uint64, id string) {
	c.mu.Lock()
	ctx := c.ctx
	c.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}

	prof, err := c.profiles.GetProfile(ctx, id)
	if err != nil {
		c.logger.Warn("fetching profile", err, map[string]interface{}{"user": id})
	}

	c.mu.Lock()
	commit := err == nil && c.gen == gen && !c.closed
	if commit {
		c.state.Profile = &prof
	}
	c.mu.Unlock()

	if commit {
		c.notify()
	}

	c.mu.Lock()
	c.inflight--
	if c.inflight == 0 {
		c.idle.Broadcast()
	}
	c.mu.Unlock()
}

// SignIn authenticates identifier & password. With MethodName, identifier is a display name resolved to an email first.
// Errors are *identity.AuthError.
func (c *Controller) SignIn(ctx context.Context, identifier, password string, method Method) error {
	email := identifier
	if method == MethodName {
		if c.resolver == nil {
			return &identity.AuthError{Code: identity.CodeProvider, Err: errors.New("sign in by name is not available")}
		}
		var err error
		email, err = c.resolver.EmailByName(ctx, identifier)
		if err != nil {
			if errors.Is(err, identity.ErrNotFound) {
				return &identity.AuthError{Code: identity.CodeInvalidCredentials}
			}
			return identity.AsAuthError(errors.Wrap(err, "resolving email by name"))
		}
		if email == "" {
			return &identity.AuthError{Code: identity.CodeInvalidCredentials}
		}
	}

	sess, err := c.provider.SignInWithPassword(ctx, email, password)
	if err != nil {
		return identity.AsAuthError(err)
	}
	c.apply(sess)
	return nil
}

// SignUp creates an identity whose profile is seeded with name & role, and signs it in.
func (c *Controller) SignUp(ctx context.Context, email, password, name string, role profile.Role) error {
	sess, err := c.provider.SignUp(ctx, email, password, identity.Metadata{Name: name, Role: role})
	if err != nil {
		return identity.AsAuthError(err)
	}
	c.apply(sess)
	return nil
}

// apply commits a session returned by the provider, unless a notification already did. It supersedes a pending restore.
func (c *Controller) apply(sess *identity.Session) {
	if sess == nil {
		return
	}
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.eventSeen = true
	gen, fetch := c.setUserLocked(sess)
	c.mu.Unlock()

	if fetch != "" {
		c.afterUserChange(gen, fetch)
	}
}

// SignOut always leaves the controller unauthenticated. A remote failure is logged and swallowed.
// A session restore still pending is discarded.
func (c *Controller) SignOut(ctx context.Context) {
	c.mu.Lock()
	c.eventSeen = true
	c.mu.Unlock()

	if err := c.provider.SignOut(ctx); err != nil {
		c.logger.Warn("signing out", err)
	}

	c.mu.Lock()
	changed := c.state.User != nil || c.state.Profile != nil || c.state.Loading
	if changed {
		c.setUserLocked(nil)
		c.state.Profile = nil
	}
	c.mu.Unlock()

	if changed {
		c.notify()
	}
}

// RefreshProfile re-fetches the profile of the current session. It is a no-op without a session.
// On failure the previous profile is kept and the error returned.
func (c *Controller) RefreshProfile(ctx context.Context) error {
	c.mu.Lock()
	usr, gen := c.state.User, c.gen
	c.mu.Unlock()
	if usr == nil {
		return nil
	}

	prof, err := c.profiles.GetProfile(ctx, usr.UserID)
	if err != nil {
		c.logger.Warn("refreshing profile", err, map[string]interface{}{"user": usr.UserID})
		return errors.Wrap(err, "fetching profile")
	}

	c.mu.Lock()
	if c.gen != gen || c.closed {
		c.mu.Unlock()
		return nil
	}
	c.state.Profile = &prof
	c.mu.Unlock()

	c.notify()
	return nil
}
