package identity

import (
	"context"
	"sync"

	"github.com/jayalms/lms/core"
)

// LocalProvider is an in-process Provider over a Service.
type LocalProvider struct {
	svc    *Service
	store  SessionStore
	logger core.Logger

	emitter Emitter
	mu      sync.Mutex
	current *Session
	changes uint64 // bumped by every session change; a restore that overlaps one is not installed
}

var _ Provider = (*LocalProvider)(nil)

func NewLocalProvider(svc *Service, store SessionStore, logger core.Logger) *LocalProvider {
	if store == nil {
		store = new(MemoryStore)
	}
	return &LocalProvider{svc: svc, store: store, logger: logger}
}

func (p *LocalProvider) setSession(ev EventType, sess *Session) {
	p.mu.Lock()
	p.current = sess
	p.changes++
	p.mu.Unlock()

	if err := p.store.Save(sess); err != nil {
		p.logger.Warn("persisting session", err)
	}
	p.emitter.Emit(Event{Type: ev, Session: sess})
}

func (p *LocalProvider) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	sess, err := p.svc.Authenticate(ctx, email, password)
	if err != nil {
		return nil, err
	}
	p.setSession(EventSignedIn, &sess)
	return &sess, nil
}

func (p *LocalProvider) SignUp(ctx context.Context, email, password string, meta Metadata) (*Session, error) {
	sess, err := p.svc.Register(ctx, NewAccount{
		Email:           email,
		Password:        password,
		PasswordConfirm: password,
		Name:            meta.Name,
		Role:            meta.Role,
	})
	if err != nil {
		return nil, err
	}
	p.setSession(EventSignedIn, &sess)
	return &sess, nil
}

// SignOut revokes the current token. Local state is cleared even when revocation fails.
func (p *LocalProvider) SignOut(ctx context.Context) error {
	p.mu.Lock()
	sess := p.current
	p.mu.Unlock()

	var err error
	if sess != nil {
		var claims *Claims
		if claims, err = p.svc.Verify(ctx, sess.AccessToken); err == nil {
			p.svc.Revoke(ctx, claims)
		}
	}
	p.setSession(EventSignedOut, nil)
	return err
}

// Refresh exchanges the current token for a new one of the same user.
func (p *LocalProvider) Refresh(ctx context.Context) (*Session, error) {
	p.mu.Lock()
	sess := p.current
	p.mu.Unlock()
	if sess == nil {
		return nil, newAuthError(CodeInvalidToken, nil)
	}

	claims, err := p.svc.Verify(ctx, sess.AccessToken)
	if err != nil {
		return nil, err
	}
	newSess, err := p.svc.Refresh(ctx, claims)
	if err != nil {
		return nil, err
	}
	p.setSession(EventTokenRefreshed, &newSess)
	return &newSess, nil
}

// GetSession returns the current session, restoring it from the store when needed.
// A stored session that no longer verifies is cleared. The restored session is dropped
// when the session changed while it was being verified.
func (p *LocalProvider) GetSession(ctx context.Context) (*Session, error) {
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
	_, verr := p.svc.Verify(ctx, sess.AccessToken)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.changes != seen {
		return copySession(p.current), nil
	}
	if verr != nil {
		_ = p.store.Clear()
		return nil, nil
	}
	p.current = sess
	return copySession(sess), nil
}

func (p *LocalProvider) OnAuthStateChange(fn Listener) Subscription {
	return p.emitter.Subscribe(fn)
}

// Listeners returns the number of live subscriptions.
func (p *LocalProvider) Listeners() int { return p.emitter.Len() }

func copySession(sess *Session) *Session {
	if sess == nil {
		return nil
	}
	cp := *sess
	return &cp
}
