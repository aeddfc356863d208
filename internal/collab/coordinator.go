package collab

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"collabdocs/internal/events"
	"collabdocs/internal/metrics"
	"collabdocs/internal/models"
	"collabdocs/internal/session"
	"collabdocs/internal/store"
	"collabdocs/internal/utils"
)

// Feed event types.
const (
	FeedDocumentCreated    = "document-created"
	FeedDocumentEdited     = "document-edited"
	FeedUserJoinedDocument = "user-joined-document"
	FeedUserLeftDocument   = "user-left-document"
)

// Coordinator is the single handler of inbound events from every connection. Each event
// mutates state and queues its frames under mu; feed events are published after mu is released.
type Coordinator struct {
	mu sync.Mutex

	docs     *store.DocumentStore
	registry *session.ConnectionRegistry
	rooms    *session.RoomManager
	presence *session.PresenceTracker
	hub      *session.Hub
	relay    *session.BroadcastRelay
	feed     events.Publisher
	log      *utils.Logger
}

func New(docs *store.DocumentStore, feed events.Publisher, log *utils.Logger) *Coordinator {
	if feed == nil {
		feed = events.Nop{}
	}
	registry := session.NewConnectionRegistry()
	rooms := session.NewRoomManager()
	hub := session.NewHub()
	return &Coordinator{
		docs:     docs,
		registry: registry,
		rooms:    rooms,
		presence: session.NewPresenceTracker(registry, rooms),
		hub:      hub,
		relay:    session.NewBroadcastRelay(rooms, hub, log),
		feed:     feed,
		log:      log,
	}
}

// outbound is a frame produced while handling an event. With room set it goes to the
// room minus exclude; otherwise straight to connection to.
type outbound struct {
	to      string
	room    string
	exclude string
	frame   models.WSFrame
}

// deliver queues frames onto client channels. Callers hold mu so that every client sees
// frames in the order the state changes were applied; Send never blocks on the network.
func (c *Coordinator) deliver(out []outbound) {
	for _, o := range out {
		if o.room != "" {
			c.relay.Publish(o.room, o.frame, o.exclude)
			continue
		}
		c.relay.SendTo(o.to, o.frame)
	}
}

// announce hands feed events to the publisher. Called after mu is released.
func (c *Coordinator) announce(feed []models.DocumentEvent) {
	for _, ev := range feed {
		c.feed.Publish(ev)
	}
}

// live reports whether connID is still connected. Callers hold mu.
func (c *Coordinator) live(connID string) bool {
	_, ok := c.hub.Get(connID)
	return ok
}

// Connect makes a client eligible to send and receive events.
func (c *Coordinator) Connect(client *session.Client) {
	c.mu.Lock()
	c.hub.Add(client)
	c.mu.Unlock()
	metrics.ConnectionOpened()
	c.log.Info("connection opened", "connectionId", client.ID)
}

// Disconnect removes connID from every shared structure and tells each room it was in.
// It is safe to call more than once.
func (c *Coordinator) Disconnect(connID string) {
	c.mu.Lock()
	departures := c.rooms.Leave(connID)
	sess, wasRegistered := c.registry.Remove(connID)
	client, wasConnected := c.hub.Remove(connID)
	if wasConnected {
		client.Close()
	}
	var feed []models.DocumentEvent
	for _, d := range departures {
		c.deliver([]outbound{{room: d.DocumentID, frame: models.WSFrame{Type: models.EventUserLeftDocument, Data: connID}}})
		feed = append(feed, models.DocumentEvent{Type: FeedUserLeftDocument, DocumentID: d.DocumentID, UserID: connID})
	}
	c.mu.Unlock()
	c.announce(feed)

	if !wasConnected {
		return
	}
	metrics.ConnectionClosed()
	for _, d := range departures {
		c.log.Debug("left document", "connectionId", connID, "documentId", d.DocumentID, "remaining", len(d.Remaining))
	}
	if wasRegistered {
		c.log.Info("user left", "connectionId", connID, "name", sess.User.Name, "rooms", len(departures),
			"session", time.Since(sess.RegisteredAt).Round(time.Second).String())
	} else {
		c.log.Info("connection closed", "connectionId", connID)
	}
}

// HandleMessage decodes one raw frame from connID and dispatches it. Malformed frames are ignored.
func (c *Coordinator) HandleMessage(connID string, raw []byte) {
	var frame models.InboundFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		metrics.InboundEvent("malformed", metrics.OutcomeIgnored)
		c.log.Debug("ignoring malformed frame", "connectionId", connID, "error", err)
		return
	}
	c.Handle(connID, frame)
}

// Handle dispatches a decoded frame from connID.
func (c *Coordinator) Handle(connID string, frame models.InboundFrame) {
	if _, live := c.hub.Get(connID); !live {
		return
	}

	var handled bool
	switch frame.Type {
	case models.EventUserJoin:
		handled = c.userJoin(connID, frame.Data)
	case models.EventGetDocuments:
		handled = c.getDocuments(connID)
	case models.EventCreateDocument:
		handled = c.createDocument(connID, frame.Data)
	case models.EventJoinDocument:
		handled = c.joinDocument(connID, frame.Data)
	case models.EventTextChange:
		handled = c.textChange(connID, frame.Data)
	case models.EventCursorUpdate:
		handled = c.cursorUpdate(connID, frame.Data)
	default:
		metrics.InboundEvent("unknown", metrics.OutcomeIgnored)
		c.log.Debug("ignoring unknown event", "connectionId", connID, "event", frame.Type)
		return
	}

	outcome := metrics.OutcomeHandled
	if !handled {
		outcome = metrics.OutcomeIgnored
		c.log.Debug("ignored event", "connectionId", connID, "event", frame.Type)
	}
	metrics.InboundEvent(frame.Type, outcome)
}

func decode(raw json.RawMessage, v any) bool {
	if len(raw) == 0 {
		return false
	}
	return json.Unmarshal(raw, v) == nil
}

func (c *Coordinator) userJoin(connID string, raw json.RawMessage) bool {
	var p models.Profile
	if !decode(raw, &p) {
		return false
	}

	c.mu.Lock()
	if !c.live(connID) {
		c.mu.Unlock()
		return false
	}
	user, ok := c.registry.Register(connID, p)
	if ok {
		c.deliver([]outbound{{to: connID, frame: models.WSFrame{Type: models.EventUserRegistered, Data: user}}})
	}
	c.mu.Unlock()
	if !ok {
		return false
	}

	c.log.Info("user registered", "connectionId", connID, "name", user.Name)
	return true
}

func (c *Coordinator) getDocuments(connID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deliver([]outbound{{to: connID, frame: models.WSFrame{Type: models.EventDocumentsList, Data: c.docs.List()}}})
	return true
}

func (c *Coordinator) createDocument(connID string, raw json.RawMessage) bool {
	var in models.CreateDocument
	if !decode(raw, &in) {
		return false
	}

	c.mu.Lock()
	if !c.live(connID) {
		c.mu.Unlock()
		return false
	}
	doc, err := c.docs.Create(in)
	if err == nil {
		c.deliver([]outbound{{to: connID, frame: models.WSFrame{Type: models.EventDocumentCreated, Data: doc}}})
	}
	c.mu.Unlock()
	if err != nil {
		return false
	}

	c.announce([]models.DocumentEvent{{Type: FeedDocumentCreated, DocumentID: doc.ID, UserID: connID, Version: doc.Version}})
	c.log.Info("document created", "documentId", doc.ID, "title", doc.Title)
	return true
}

// joinDocumentID accepts either {"documentId": "..."} or a bare JSON string.
func joinDocumentID(raw json.RawMessage) string {
	var id string
	if decode(raw, &id) {
		return strings.TrimSpace(id)
	}
	var in models.JoinDocument
	if decode(raw, &in) {
		return strings.TrimSpace(in.DocumentID)
	}
	return ""
}

func (c *Coordinator) joinDocument(connID string, raw json.RawMessage) bool {
	documentID := joinDocumentID(raw)
	if documentID == "" {
		return false
	}

	c.mu.Lock()
	user, registered := c.registry.Lookup(connID)
	if !registered || !c.live(connID) {
		c.mu.Unlock()
		return false
	}
	joined := c.rooms.Join(connID, documentID)
	loaded := c.docs.Get(documentID)
	peers := c.presence.Snapshot(documentID, connID)

	out := []outbound{
		{to: connID, frame: models.WSFrame{Type: models.EventDocumentLoaded, Data: models.DocumentLoaded{Document: loaded.Document, Fallback: loaded.Fallback}}},
		{to: connID, frame: models.WSFrame{Type: models.EventUsersInDocument, Data: peers}},
	}
	var feed []models.DocumentEvent
	for _, d := range joined.Left {
		out = append(out, outbound{room: d.DocumentID, frame: models.WSFrame{Type: models.EventUserLeftDocument, Data: connID}})
		feed = append(feed, models.DocumentEvent{Type: FeedUserLeftDocument, DocumentID: d.DocumentID, UserID: connID})
	}
	if !joined.Rejoined {
		out = append(out, outbound{room: documentID, exclude: connID, frame: models.WSFrame{Type: models.EventUserJoinedDocument, Data: user}})
		feed = append(feed, models.DocumentEvent{Type: FeedUserJoinedDocument, DocumentID: documentID, UserID: connID})
	}
	c.deliver(out)
	c.mu.Unlock()
	c.announce(feed)

	if loaded.Fallback {
		metrics.FallbackLoad()
		c.log.Warn("unknown document requested, served default", "connectionId", connID, "documentId", documentID, "servedId", loaded.Document.ID)
	}
	for _, d := range joined.Left {
		c.log.Debug("left document", "connectionId", connID, "documentId", d.DocumentID, "remaining", len(d.Remaining))
	}
	c.log.Info("user joined document", "connectionId", connID, "name", user.Name, "documentId", documentID,
		"peers", len(joined.Peers), "rejoined", joined.Rejoined)
	return true
}

// inRoom reports whether connID is currently a member of documentID's room.
func (c *Coordinator) inRoom(connID, documentID string) bool {
	current, ok := c.rooms.RoomOf(connID)
	return ok && current == documentID
}

func (c *Coordinator) textChange(connID string, raw json.RawMessage) bool {
	var in models.TextChange
	if !decode(raw, &in) || in.DocumentID == "" || in.Content == nil || in.Version == nil {
		return false
	}

	c.mu.Lock()
	if !c.live(connID) || !c.inRoom(connID, in.DocumentID) {
		c.mu.Unlock()
		return false
	}
	applied := c.docs.ApplyEdit(in.DocumentID, *in.Content, *in.Version)
	// Relayed even when the store dropped the edit.
	c.deliver([]outbound{{
		room:    in.DocumentID,
		exclude: connID,
		frame: models.WSFrame{Type: models.EventTextChanged, Data: models.TextChanged{
			Content: *in.Content,
			Version: *in.Version,
			UserID:  connID,
		}},
	}})
	c.mu.Unlock()

	if !applied {
		c.log.Debug("edit for unknown document relayed without storing", "connectionId", connID, "documentId", in.DocumentID)
		return true
	}
	c.announce([]models.DocumentEvent{{Type: FeedDocumentEdited, DocumentID: in.DocumentID, UserID: connID, Version: *in.Version}})
	return true
}

func (c *Coordinator) cursorUpdate(connID string, raw json.RawMessage) bool {
	var in models.CursorUpdate
	if !decode(raw, &in) || in.DocumentID == "" || in.Cursor == nil {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.live(connID) || !c.inRoom(connID, in.DocumentID) {
		return false
	}
	user, ok := c.presence.UpdateCursor(connID, *in.Cursor)
	if !ok {
		return false
	}
	c.deliver([]outbound{{
		room:    in.DocumentID,
		exclude: connID,
		frame: models.WSFrame{Type: models.EventCursorUpdated, Data: models.CursorUpdated{
			UserID: connID,
			Cursor: *in.Cursor,
			User:   user,
		}},
	}})
	return true
}

// Documents exposes the store for read-only HTTP endpoints.
func (c *Coordinator) Documents() *store.DocumentStore { return c.docs }

func (c *Coordinator) Stats() models.Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return models.Stats{
		Connections: c.hub.Count(),
		Users:       c.registry.Count(),
		Rooms:       c.rooms.RoomCount(),
		Documents:   c.docs.Len(),
	}
}

// Shutdown disconnects every live client.
func (c *Coordinator) Shutdown() {
	for _, client := range c.hub.All() {
		c.Disconnect(client.ID)
	}
}
