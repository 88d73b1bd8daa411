// Package auth persists browser cookie sessions between scrapes.
//
// Only cookies are stored. Login credentials never pass through this package.
package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/zalando/go-keyring"
)

const (
	// KeyringService is the service name for keyring storage
	KeyringService = "catalog-cli"
	// FallbackDir is the directory, relative to $HOME, for file-based storage
	FallbackDir = ".catalog/sessions"

	manifestKey = "_manifest"
)

// ErrSessionNotFound is returned when no session exists under a name
var ErrSessionNotFound = errors.New("session not found")

// SessionData is a stored cookie jar for one site
type SessionData struct {
	Name      string    `json:"name"`
	URL       string    `json:"url"`
	Cookies   []Cookie  `json:"cookies"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

// Expired reports whether the session is past its expiry
func (s *SessionData) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// Cookie represents a browser cookie
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires"`
	HTTPOnly bool    `json:"httpOnly"`
	Secure   bool    `json:"secure"`
	SameSite string  `json:"sameSite,omitempty"`
}

// StoreOptions configures a Store
type StoreOptions struct {
	// Service is the keyring service name; defaults to KeyringService
	Service string
	// Dir overrides the file fallback directory
	Dir string
	// FileOnly skips the keyring entirely
	FileOnly bool
}

// Store saves sessions to the OS keyring, falling back to 0600 files where no
// keyring is available (containers, CI)
type Store struct {
	service  string
	dir      string
	fileOnly bool

	once    sync.Once
	useFile bool
	mu      sync.Mutex
}

// NewStore creates a Store
func NewStore(opts StoreOptions) *Store {
	if opts.Service == "" {
		opts.Service = KeyringService
	}
	return &Store{service: opts.Service, dir: opts.Dir, fileOnly: opts.FileOnly}
}

// useFileBasedStorage probes the keyring once and caches the answer
func (s *Store) useFileBasedStorage() bool {
	s.once.Do(func() {
		if s.fileOnly || os.Getenv("CODESPACES") != "" || os.Getenv("CI") != "" {
			s.useFile = true
			return
		}
		testKey := "_test_keyring_access_"
		if err := keyring.Set(s.service, testKey, "test"); err != nil {
			s.useFile = true
			return
		}
		_ = keyring.Delete(s.service, testKey)
	})
	return s.useFile
}

// Backend names where sessions are kept
func (s *Store) Backend() string {
	if s.useFileBasedStorage() {
		return "file"
	}
	return "keyring"
}

func (s *Store) sessionDir() (string, error) {
	dir := s.dir
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dir = filepath.Join(home, FallbackDir)
	}
	return dir, os.MkdirAll(dir, 0700)
}

func (s *Store) sessionPath(name string) (string, error) {
	dir, err := s.sessionDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name+".json"), nil
}

func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("session name cannot be empty")
	}
	if strings.ContainsAny(name, `/\`) || name == manifestKey || strings.HasPrefix(name, ".") {
		return fmt.Errorf("invalid session name %q", name)
	}
	return nil
}

// Save stores a session, replacing any previous one with the same name
func (s *Store) Save(session *SessionData) error {
	if session == nil {
		return fmt.Errorf("session cannot be nil")
	}
	if err := validateName(session.Name); err != nil {
		return err
	}

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to serialize session: %w", err)
	}

	if s.useFileBasedStorage() {
		path, err := s.sessionPath(session.Name)
		if err != nil {
			return fmt.Errorf("failed to get session path: %w", err)
		}
		if err := os.WriteFile(path, data, 0600); err != nil {
			return fmt.Errorf("failed to save session file: %w", err)
		}
		return nil
	}

	if err := keyring.Set(s.service, session.Name, string(data)); err != nil {
		return fmt.Errorf("failed to save to keyring: %w", err)
	}
	return s.updateManifest(session.Name, true)
}

// Load returns a stored session. Expired sessions are reported as not found.
func (s *Store) Load(name string) (*SessionData, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}

	var data string

	if s.useFileBasedStorage() {
		path, err := s.sessionPath(name)
		if err != nil {
			return nil, fmt.Errorf("failed to get session path: %w", err)
		}
		fileData, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, name)
			}
			return nil, fmt.Errorf("failed to load session file: %w", err)
		}
		data = string(fileData)
	} else {
		v, err := keyring.Get(s.service, name)
		if err != nil {
			if errors.Is(err, keyring.ErrNotFound) {
				return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, name)
			}
			return nil, fmt.Errorf("failed to load from keyring: %w", err)
		}
		data = v
	}

	var session SessionData
	if err := json.Unmarshal([]byte(data), &session); err != nil {
		return nil, fmt.Errorf("failed to deserialize session: %w", err)
	}

	if session.Expired(time.Now()) {
		return nil, fmt.Errorf("%w: %s expired", ErrSessionNotFound, name)
	}

	return &session, nil
}

// Delete removes a session; deleting a missing session is not an error
func (s *Store) Delete(name string) error {
	if err := validateName(name); err != nil {
		return err
	}

	if s.useFileBasedStorage() {
		path, err := s.sessionPath(name)
		if err != nil {
			return fmt.Errorf("failed to get session path: %w", err)
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to delete session file: %w", err)
		}
		return nil
	}

	if err := keyring.Delete(s.service, name); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("failed to delete from keyring: %w", err)
	}
	return s.updateManifest(name, false)
}

// List returns stored session names, sorted
func (s *Store) List() ([]string, error) {
	var sessions []string

	if s.useFileBasedStorage() {
		dir, err := s.sessionDir()
		if err != nil {
			return nil, err
		}
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				return []string{}, nil
			}
			return nil, err
		}
		for _, entry := range entries {
			if !entry.IsDir() && filepath.Ext(entry.Name()) == ".json" {
				sessions = append(sessions, strings.TrimSuffix(entry.Name(), ".json"))
			}
		}
	} else {
		manifest, err := s.readManifest()
		if err != nil {
			return nil, err
		}
		sessions = manifest
	}

	sort.Strings(sessions)
	if sessions == nil {
		sessions = []string{}
	}
	return sessions, nil
}

// readManifest returns the keyring's list of session names. The keyring has
// no enumeration API, so names are tracked under a reserved key.
func (s *Store) readManifest() ([]string, error) {
	manifestData, err := keyring.Get(s.service, manifestKey)
	if err != nil {
		return []string{}, nil
	}
	var sessions []string
	if err := json.Unmarshal([]byte(manifestData), &sessions); err != nil {
		return nil, fmt.Errorf("failed to deserialize manifest: %w", err)
	}
	return sessions, nil
}

func (s *Store) updateManifest(name string, add bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessions, err := s.readManifest()
	if err != nil {
		return err
	}

	next := make([]string, 0, len(sessions)+1)
	for _, existing := range sessions {
		if existing != name {
			next = append(next, existing)
		}
	}
	if add {
		next = append(next, name)
	}

	data, err := json.Marshal(next)
	if err != nil {
		return err
	}
	return keyring.Set(s.service, manifestKey, string(data))
}
