package session

import (
	"sync"

	"github.com/google/uuid"
)

// State is the process-wide identity of the current session: the session id and
// the auth token. The session id is minted on first use and dropped on Reset;
// the token survives resets.
type State struct {
	mu        sync.Mutex
	sessionID string
	authToken string
	newID     func() string
}

// NewState returns a state holding authToken and no session id yet.
func NewState(authToken string) *State {
	return &State{authToken: authToken, newID: uuid.NewString}
}

// SessionID returns the current session id, minting one if needed.
func (s *State) SessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sessionID == "" {
		s.sessionID = s.newID()
	}
	return s.sessionID
}

// AuthToken returns the bearer token.
func (s *State) AuthToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authToken
}

// SetAuthToken replaces the bearer token.
func (s *State) SetAuthToken(tok string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authToken = tok
}

// Reset drops the session id. The next SessionID call mints a fresh one.
func (s *State) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessionID = ""
}
