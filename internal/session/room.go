package session

import "sync"

// Departure describes a room a connection just left and who is still in it.
type Departure struct {
	DocumentID string
	Remaining  []string
}

type JoinResult struct {
	Left     []Departure
	Peers    []string // members already in the room, self excluded
	Rejoined bool     // the connection was already in this room
}

// RoomManager maps document ids to their member connections, in join order.
// A connection belongs to at most one room at a time.
type RoomManager struct {
	mu       sync.Mutex
	rooms    map[string][]string
	memberOf map[string]string
}

func NewRoomManager() *RoomManager {
	return &RoomManager{
		rooms:    make(map[string][]string),
		memberOf: make(map[string]string),
	}
}

// Join moves connID into documentID's room, leaving whatever room it was in first.
func (m *RoomManager) Join(connID, documentID string) JoinResult {
	m.mu.Lock()
	defer m.mu.Unlock()

	if current, ok := m.memberOf[connID]; ok && current == documentID {
		return JoinResult{Peers: without(m.rooms[documentID], connID), Rejoined: true}
	}

	left := m.leaveLocked(connID)
	peers := append([]string(nil), m.rooms[documentID]...)
	m.rooms[documentID] = append(m.rooms[documentID], connID)
	m.memberOf[connID] = documentID
	return JoinResult{Left: left, Peers: peers}
}

// Leave removes connID from every room and reports each one it left.
func (m *RoomManager) Leave(connID string) []Departure {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.leaveLocked(connID)
}

func (m *RoomManager) leaveLocked(connID string) []Departure {
	documentID, ok := m.memberOf[connID]
	if !ok {
		return nil
	}
	delete(m.memberOf, connID)
	remaining := without(m.rooms[documentID], connID)
	if len(remaining) == 0 {
		delete(m.rooms, documentID)
	} else {
		m.rooms[documentID] = remaining
	}
	return []Departure{{DocumentID: documentID, Remaining: append([]string(nil), remaining...)}}
}

func (m *RoomManager) RoomOf(connID string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.memberOf[connID]
	return id, ok
}

func (m *RoomManager) Members(documentID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.rooms[documentID]...)
}

func (m *RoomManager) RoomCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rooms)
}

func without(ids []string, id string) []string {
	out := make([]string, 0, len(ids))
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
