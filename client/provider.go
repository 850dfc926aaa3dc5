package client

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/jayalms/lms/core"
	"github.com/jayalms/lms/core/identity"
)

// Provider is an identity.Provider backed by the API. The current session's token authenticates every Client call.
type Provider struct {
	client *Client
	store  identity.SessionStore
	logger core.Logger

	emitter identity.Emitter
	mu      sync.Mutex // also orders the client token writes
	current *identity.Session
	changes uint64 // bumped by every session change; a restore that overlaps one is not installed
}

var _ identity.Provider = (*Provider)(nil)

func NewProvider(client *Client, store identity.SessionStore, logger core.Logger) *Provider {
	if store == nil {
		store = new(identity.MemoryStore)
	}
	return &Provider{client: client, store: store, logger: logger}
}

func (p *Provider) setSession(ev identity.EventType, sess *identity.Session) {
	p.mu.Lock()
	p.current = sess
	p.changes++
	p.setTokenLocked(sess)
	p.mu.Unlock()

	if err := p.store.Save(sess); err != nil {
		p.logger.Warn("persisting session", err)
	}
	p.emitter.Emit(identity.Event{Type: ev, Session: sess})
}

func (p *Provider) SignInWithPassword(ctx context.Context, email, password string) (*identity.Session, error) {
	sess, err := p.client.SignIn(ctx, email, password)
	if err != nil {
		return nil, err
	}
	p.setSession(identity.EventSignedIn, &sess)
	return &sess, nil
}

func (p *Provider) SignUp(ctx context.Context, email, password string, meta identity.Metadata) (*identity.Session, error) {
	sess, err := p.client.SignUp(ctx, identity.NewAccount{
		Email:           email,
		Password:        password,
		PasswordConfirm: password,
		Name:            meta.Name,
		Role:            meta.Role,
	})
	if err != nil {
		return nil, err
	}
	p.setSession(identity.EventSignedIn, &sess)
	return &sess, nil
}

// SignOut revokes the token on the server. Local state is cleared even when that fails.
func (p *Provider) SignOut(ctx context.Context) error {
	p.mu.Lock()
	sess := p.current
	p.mu.Unlock()

	var err error
	if sess != nil {
		err = p.client.SignOut(ctx)
	}
	p.setSession(identity.EventSignedOut, nil)
	return err
}

// Refresh exchanges the current token for a new one; the old token is revoked by the server.
func (p *Provider) Refresh(ctx context.Context) (*identity.Session, error) {
	p.mu.Lock()
	sess := p.current
	p.mu.Unlock()
	if sess == nil {
		return nil, &identity.AuthError{Code: identity.CodeInvalidToken}
	}

	newSess, err := p.client.Refresh(ctx)
	if err != nil {
		return nil, err
	}
	p.setSession(identity.EventTokenRefreshed, &newSess)
	return &newSess, nil
}

// GetSession returns the current session, restoring it from the store when needed.
// A stored session the server rejects is cleared; other failures keep it stored and are returned.
// The restored session is dropped when the session changed while the server was verifying it.
func (p *Provider) GetSession(ctx context.Context) (*identity.Session, error) {
	p.mu.Lock()
	sess, seen := p.current, p.changes
	p.mu.Unlock()
	if sess != nil {
		cp := *sess
		return &cp, nil
	}

	sess, err := p.store.Load()
	if err != nil || sess == nil {
		return nil, err
	}

	p.mu.Lock()
	if p.changes != seen {
		defer p.mu.Unlock()
		return copySession(p.current), nil
	}
	p.setTokenLocked(sess)
	p.mu.Unlock()

	_, err = p.client.Session(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.changes != seen {
		p.setTokenLocked(p.current)
		return copySession(p.current), nil
	}
	if err != nil {
		p.setTokenLocked(nil)
		if errors.Is(err, identity.ErrInvalidToken) {
			_ = p.store.Clear()
			return nil, nil
		}
		return nil, err
	}
	p.current = sess
	return copySession(sess), nil
}

func (p *Provider) setTokenLocked(sess *identity.Session) {
	if sess == nil {
		p.client.SetToken("")
		return
	}
	p.client.SetToken(sess.AccessToken)
}

func copySession(sess *identity.Session) *identity.Session {
	if sess == nil {
		return nil
	}
	cp := *sess
	return &cp
}

func (p *Provider) OnAuthStateChange(fn identity.Listener) identity.Subscription {
	return p.emitter.Subscribe(fn)
}
