package identity

import (
	"context"
	"sync"
)

type EventType string

const (
	EventSignedIn       EventType = "SIGNED_IN"
	EventSignedOut      EventType = "SIGNED_OUT"
	EventTokenRefreshed EventType = "TOKEN_REFRESHED"
)

// Event is pushed to auth state listeners. Session is nil after a sign-out.
type Event struct {
	Type    EventType
	Session *Session
}

type Listener func(Event)

type Subscription interface {
	Unsubscribe()
}

type (
	// Provider supplies session tokens and handles credential verification.
	Provider interface {
		SignInWithPassword(ctx context.Context, email, password string) (*Session, error)
		SignUp(ctx context.Context, email, password string, meta Metadata) (*Session, error)
		SignOut(ctx context.Context) error
		// GetSession returns the persisted session, or nil when signed out.
		GetSession(ctx context.Context) (*Session, error)
		// OnAuthStateChange registers fn for every session change; fn may be called from any goroutine.
		OnAuthStateChange(fn Listener) Subscription
	}

	// EmailResolver looks up the email of the account whose profile has the given display name.
	EmailResolver interface {
		EmailByName(ctx context.Context, name string) (string, error)
	}

	// SessionStore persists the current session between runs.
	SessionStore interface {
		Load() (*Session, error)
		Save(sess *Session) error
		Clear() error
	}
)

// Emitter fans events out to registered listeners.
type Emitter struct {
	mu        sync.Mutex
	nextID    int
	listeners map[int]Listener
}

func (e *Emitter) Subscribe(fn Listener) Subscription {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.listeners == nil {
		e.listeners = make(map[int]Listener)
	}
	id := e.nextID
	e.nextID++
	e.listeners[id] = fn

	return &subscription{unsubscribe: func() {
		e.mu.Lock()
		delete(e.listeners, id)
		e.mu.Unlock()
	}}
}

// Emit calls every listener synchronously, outside the emitter lock.
func (e *Emitter) Emit(ev Event) {
	e.mu.Lock()
	fns := make([]Listener, 0, len(e.listeners))
	for _, fn := range e.listeners {
		fns = append(fns, fn)
	}
	e.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

func (e *Emitter) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.listeners)
}

type subscription struct {
	once        sync.Once
	unsubscribe func()
}

func (s *subscription) Unsubscribe() { s.once.Do(s.unsubscribe) }
