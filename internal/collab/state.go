package collab

// State is where a connection sits in its lifecycle.
type State int

const (
	Disconnected State = iota
	Unregistered
	Registered
	InDocument
)

func (s State) String() string {
	switch s {
	case Unregistered:
		return "unregistered"
	case Registered:
		return "registered"
	case InDocument:
		return "in-document"
	default:
		return "disconnected"
	}
}

// State reports connID's lifecycle state and, when in a document, which one.
func (c *Coordinator) State(connID string) (State, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.hub.Get(connID); !ok {
		return Disconnected, ""
	}
	if documentID, ok := c.rooms.RoomOf(connID); ok {
		return InDocument, documentID
	}
	if _, ok := c.registry.Lookup(connID); ok {
		return Registered, ""
	}
	return Unregistered, ""
}
