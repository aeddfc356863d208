package session

import (
	"strings"
	"sync"
	"time"

	"collabdocs/internal/models"
)

// ConnectionRegistry maps a live connection to the user it registered as.
// The user id is the connection id, so a reconnect shows up as a new user.
type ConnectionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*models.Session
	now      func() time.Time
}

func NewConnectionRegistry() *ConnectionRegistry {
	return &ConnectionRegistry{sessions: make(map[string]*models.Session), now: time.Now}
}

// Register stores a user for connID. It is a no-op, reporting false, when the name is
// blank or the connection already registered.
func (r *ConnectionRegistry) Register(connID string, p models.Profile) (models.User, bool) {
	if strings.TrimSpace(p.Name) == "" {
		return models.User{}, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.sessions[connID]; exists {
		return models.User{}, false
	}
	s := &models.Session{
		ConnectionID: connID,
		User: models.User{
			ID:     connID,
			Name:   p.Name,
			Avatar: p.Avatar,
			Color:  p.Color,
		},
		RegisteredAt: r.now(),
	}
	r.sessions[connID] = s
	return s.User.Clone(), true
}

func (r *ConnectionRegistry) Lookup(connID string) (models.User, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[connID]
	if !ok {
		return models.User{}, false
	}
	return s.User.Clone(), true
}

func (r *ConnectionRegistry) SetCursor(connID string, c models.Cursor) (models.User, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[connID]
	if !ok {
		return models.User{}, false
	}
	s.User.Cursor = &c
	return s.User.Clone(), true
}

// Remove forgets connID and returns the session it held. It is idempotent.
func (r *ConnectionRegistry) Remove(connID string) (models.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[connID]
	if !ok {
		return models.Session{}, false
	}
	delete(r.sessions, connID)
	out := *s
	out.User = s.User.Clone()
	return out, true
}

func (r *ConnectionRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
