// Package backends holds the in-memory reference handlers behind the demo
// worker binary and the end-to-end tests. State lives in process memory;
// restarting a worker loses it. The boundary contract is the point, not
// the storage.
package backends

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Domain errors returned to callers verbatim as error-reply messages.
var (
	ErrUsernameExists     = errors.New("username already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrItemNotFound       = errors.New("item not found")
)

// Credentials is the payload for signup and login.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// UserStore implements the user backend commands over in-memory maps.
// Tokens are opaque random strings with no expiry; a session survives until
// the process stops.
type UserStore struct {
	mu       sync.Mutex
	users    map[string]string // username -> password
	sessions map[string]string // token -> username
}

// NewUserStore creates an empty user backend.
func NewUserStore() *UserStore {
	return &UserStore{
		users:    make(map[string]string),
		sessions: make(map[string]string),
	}
}

// Signup registers a new username. Duplicate usernames are rejected.
func (s *UserStore) Signup(_ context.Context, payload json.RawMessage) (json.RawMessage, error) {
	creds, err := decodeCredentials(payload)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[creds.Username]; exists {
		return nil, ErrUsernameExists
	}
	s.users[creds.Username] = creds.Password

	return json.Marshal(map[string]string{"username": creds.Username})
}

// Login checks credentials and mints a session token.
func (s *UserStore) Login(_ context.Context, payload json.RawMessage) (json.RawMessage, error) {
	creds, err := decodeCredentials(payload)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored, exists := s.users[creds.Username]
	if !exists || stored != creds.Password {
		return nil, ErrInvalidCredentials
	}

	token := uuid.NewString()
	s.sessions[token] = creds.Username

	return json.Marshal(map[string]string{"token": token})
}

// VerifyToken resolves a session token to its username.
func (s *UserStore) VerifyToken(_ context.Context, payload json.RawMessage) (json.RawMessage, error) {
	var p struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(payload, &p); err != nil || p.Token == "" {
		return nil, ErrInvalidToken
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	username, ok := s.sessions[p.Token]
	if !ok {
		return nil, ErrInvalidToken
	}

	return json.Marshal(map[string]string{"username": username})
}

func decodeCredentials(payload json.RawMessage) (Credentials, error) {
	var creds Credentials
	if err := json.Unmarshal(payload, &creds); err != nil {
		return Credentials{}, errors.New("username and password are required")
	}
	creds.Username = strings.TrimSpace(creds.Username)
	if creds.Username == "" || creds.Password == "" {
		return Credentials{}, errors.New("username and password are required")
	}
	return creds, nil
}
