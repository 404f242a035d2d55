package domain

import (
	"sync"
	"time"
)

// NoChannel marks a session that has not subscribed to a channel yet.
const NoChannel = -1

// Session represents a client's WebSocket session.
type Session struct {
	ID           string
	channelID    int
	identity     Identity
	CreatedAt    time.Time
	LastActiveAt time.Time
	mu           sync.RWMutex
}

// NewSession creates a new session with a unique ID.
func NewSession(id string) *Session {
	now := time.Now()
	return &Session{
		ID:           id,
		channelID:    NoChannel,
		CreatedAt:    now,
		LastActiveAt: now,
	}
}

// Subscribe scopes the session to a channel.
func (s *Session) Subscribe(channelID int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channelID = channelID
	s.LastActiveAt = time.Now()
}

// Channel returns the subscribed channel id, or NoChannel.
func (s *Session) Channel() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.channelID
}

// SetIdentity records the identity last used to join a room.
func (s *Session) SetIdentity(identity Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identity = identity
}

// Identity returns the identity last used to join a room.
func (s *Session) Identity() Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity
}

// UpdateActivity updates the last active timestamp.
func (s *Session) UpdateActivity() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.LastActiveAt = time.Now()
}
