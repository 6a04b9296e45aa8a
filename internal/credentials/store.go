// Package credentials keeps the access token for the current process and persists it between runs.
package credentials

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// MaxAge bounds how long a saved token is reused.
const MaxAge = 24 * time.Hour

// ErrLoggedOut reports that no usable token is stored.
var ErrLoggedOut = errors.New("not logged in")

type tokenFile struct {
	AccessToken string    `toml:"access_token"`
	SavedAt     time.Time `toml:"saved_at"`
	ExpiresAt   time.Time `toml:"expires_at"`
}

// Store is the process-wide token holder. The zero value is unusable; call New.
type Store struct {
	mu        sync.RWMutex
	path      string
	token     string
	expiresAt time.Time
	now       func() time.Time
}

// New returns a store persisting to path. An empty path keeps the token in memory only.
func New(path string, now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{path: strings.TrimSpace(path), now: now}
}

// Path returns the token file location.
func (s *Store) Path() string {
	return s.path
}

// Load reads the token file. A missing, malformed, or expired file leaves the store logged out.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token, s.expiresAt = "", time.Time{}
	if s.path == "" {
		return nil
	}
	content, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read token file: %w", err)
	}
	var file tokenFile
	if err := toml.Unmarshal(content, &file); err != nil {
		return nil
	}
	token := strings.TrimSpace(file.AccessToken)
	if token == "" || !s.now().Before(file.ExpiresAt) {
		return nil
	}
	s.token, s.expiresAt = token, file.ExpiresAt
	return nil
}

// Save stores token, valid for MaxAge from now, and writes it with owner-only permissions.
func (s *Store) Save(token string, now time.Time) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return errors.New("access token is empty")
	}
	expiresAt := now.UTC().Add(MaxAge)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.path != "" {
		content, err := toml.Marshal(tokenFile{AccessToken: token, SavedAt: now.UTC(), ExpiresAt: expiresAt})
		if err != nil {
			return fmt.Errorf("encode token file: %w", err)
		}
		if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
			return fmt.Errorf("create token dir: %w", err)
		}
		if err := os.WriteFile(s.path, content, 0o600); err != nil {
			return fmt.Errorf("write token file: %w", err)
		}
		// WriteFile keeps the mode of an existing file.
		if err := os.Chmod(s.path, 0o600); err != nil {
			return fmt.Errorf("restrict token file: %w", err)
		}
	}
	s.token, s.expiresAt = token, expiresAt
	return nil
}

// Clear forgets the token and removes the file.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token, s.expiresAt = "", time.Time{}
	if s.path == "" {
		return nil
	}
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove token file: %w", err)
	}
	return nil
}

// AccessToken returns the current token, or "" once it has expired.
func (s *Store) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == "" || !s.now().Before(s.expiresAt) {
		return ""
	}
	return s.token
}

// Require returns the token or ErrLoggedOut.
func (s *Store) Require() (string, error) {
	token := s.AccessToken()
	if token == "" {
		return "", ErrLoggedOut
	}
	return token, nil
}
