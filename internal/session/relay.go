package session

import (
	"collabdocs/internal/metrics"
	"collabdocs/internal/models"
	"collabdocs/internal/utils"
)

// BroadcastRelay fans frames out to room members. Delivery is best effort: each send only
// queues onto the recipient, and a full queue drops the frame for that recipient alone.
type BroadcastRelay struct {
	rooms *RoomManager
	hub   *Hub
	log   *utils.Logger
}

func NewBroadcastRelay(rooms *RoomManager, hub *Hub, log *utils.Logger) *BroadcastRelay {
	return &BroadcastRelay{rooms: rooms, hub: hub, log: log}
}

// Publish sends frame to everyone currently in documentID's room except excluding.
// An empty excluding delivers to all members. It returns the number of frames queued.
func (b *BroadcastRelay) Publish(documentID string, frame models.WSFrame, excluding string) int {
	sent := 0
	for _, id := range b.rooms.Members(documentID) {
		if id == excluding {
			continue
		}
		if b.SendTo(id, frame) {
			sent++
		}
	}
	return sent
}

// SendTo delivers frame to a single connection.
func (b *BroadcastRelay) SendTo(connID string, frame models.WSFrame) bool {
	c, ok := b.hub.Get(connID)
	if !ok {
		return false
	}
	if !c.Send(frame) {
		metrics.FrameDropped(frame.Type)
		b.log.Warn("dropped frame", "connectionId", connID, "event", frame.Type)
		return false
	}
	metrics.FrameDelivered(frame.Type)
	return true
}
