package identity

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
)

// MemoryStore keeps the session for the lifetime of the process.
type MemoryStore struct {
	mu   sync.Mutex
	sess *Session
}

var (
	_ SessionStore = (*MemoryStore)(nil)
	_ SessionStore = (*FileStore)(nil)
)

func (s *MemoryStore) Load() (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sess == nil {
		return nil, nil
	}
	sess := *s.sess
	return &sess, nil
}

func (s *MemoryStore) Save(sess *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess == nil {
		s.sess = nil
		return nil
	}
	cp := *sess
	s.sess = &cp
	return nil
}

func (s *MemoryStore) Clear() error { return s.Save(nil) }

// FileStore persists the session as JSON, readable by the owner only.
type FileStore struct {
	Path string
	mu   sync.Mutex
}

// DefaultSessionPath is <user config dir>/<app>/session.json.
func DefaultSessionPath(app string) (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", errors.Wrap(err, "finding user config dir")
	}
	return filepath.Join(dir, app, "session.json"), nil
}

func (s *FileStore) Load() (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "reading session file")
	}
	var sess Session
	if err = json.Unmarshal(data, &sess); err != nil {
		return nil, errors.Wrap(err, "decoding session file")
	}
	if sess.AccessToken == "" {
		return nil, nil
	}
	return &sess, nil
}

func (s *FileStore) Save(sess *Session) error {
	if sess == nil {
		return s.Clear()
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(sess)
	if err != nil {
		return errors.Wrap(err, "encoding session")
	}
	if err = os.MkdirAll(filepath.Dir(s.Path), 0o700); err != nil {
		return errors.Wrap(err, "creating session dir")
	}
	return errors.Wrap(os.WriteFile(s.Path, data, 0o600), "writing session file")
}

func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.Path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "removing session file")
	}
	return nil
}
