package session

import "collabdocs/internal/models"

// PresenceTracker derives who is visible in a room from the registry and room membership.
type PresenceTracker struct {
	registry *ConnectionRegistry
	rooms    *RoomManager
}

func NewPresenceTracker(registry *ConnectionRegistry, rooms *RoomManager) *PresenceTracker {
	return &PresenceTracker{registry: registry, rooms: rooms}
}

// Snapshot lists the registered members of documentID in join order, minus excluding.
func (p *PresenceTracker) Snapshot(documentID, excluding string) []models.User {
	users := []models.User{}
	for _, id := range p.rooms.Members(documentID) {
		if id == excluding {
			continue
		}
		if u, ok := p.registry.Lookup(id); ok {
			users = append(users, u)
		}
	}
	return users
}

func (p *PresenceTracker) UpdateCursor(connID string, c models.Cursor) (models.User, bool) {
	return p.registry.SetCursor(connID, c)
}
