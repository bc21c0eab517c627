package stub

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/havenchat/companion/internal/model/chat"
)

var (
	ErrUserExists         = errors.New("a user with that username already exists")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrSessionNotFound    = errors.New("session not found")
)

// Store keeps accounts, cookie sessions and per-user chat history in memory.
type Store struct {
	mu       sync.RWMutex
	users    map[string]string
	sessions map[string]session
	history  map[string][]chat.Exchange
}

type session struct {
	Username  string
	CreatedAt time.Time
}

// NewStore bootstraps an empty in-memory store.
func NewStore() *Store {
	return &Store{
		users:    make(map[string]string),
		sessions: make(map[string]session),
		history:  make(map[string][]chat.Exchange),
	}
}

// Register creates an account and opens a session for it.
func (s *Store) Register(_ context.Context, username, password string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[username]; ok {
		return "", ErrUserExists
	}
	s.users[username] = password
	return s.openSessionLocked(username), nil
}

// Login validates credentials and opens a session.
func (s *Store) Login(_ context.Context, username, password string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.users[username]
	if !ok || stored != password {
		return "", ErrInvalidCredentials
	}
	return s.openSessionLocked(username), nil
}

func (s *Store) openSessionLocked(username string) string {
	id := uuid.NewString()
	s.sessions[id] = session{Username: username, CreatedAt: time.Now().UTC()}
	return id
}

// Logout closes a session; unknown ids are ignored.
func (s *Store) Logout(_ context.Context, sessionID string) {
	s.mu.Lock()
	delete(s.sessions, sessionID)
	s.mu.Unlock()
}

// User resolves a session id.
func (s *Store) User(_ context.Context, sessionID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return "", ErrSessionNotFound
	}
	return sess.Username, nil
}

// AppendExchange records one completed turn for the user.
func (s *Store) AppendExchange(_ context.Context, username string, exchange chat.Exchange) {
	s.mu.Lock()
	s.history[username] = append(s.history[username], exchange)
	s.mu.Unlock()
}

// History returns a copy of the user's turns.
func (s *Store) History(_ context.Context, username string) []chat.Exchange {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := s.history[username]
	copied := make([]chat.Exchange, len(items))
	copy(copied, items)
	return copied
}
