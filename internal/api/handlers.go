package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"collabdocs/internal/collab"
	"collabdocs/internal/session"
	"collabdocs/internal/utils"
)

type Options struct {
	QueueSize int
	ReadLimit int64
}

type Handlers struct {
	log      *utils.Logger
	coord    *collab.Coordinator
	opts     Options
	upgrader websocket.Upgrader
}

func NewHandlers(log *utils.Logger, coord *collab.Coordinator, opts Options) *Handlers {
	if opts.QueueSize < 1 {
		opts.QueueSize = session.DefaultQueueSize
	}
	if opts.ReadLimit < 1 {
		opts.ReadLimit = 1 << 20
	}
	return &Handlers{
		log:   log,
		coord: coord,
		opts:  opts,
		// Origin checks are left to the CORS layer; browsers connect from the editor's origin.
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
	}
}

func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	_, _ = w.Write([]byte("ok"))
}

func (h *Handlers) ListDocuments(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, h.coord.Documents().List())
}

func (h *Handlers) GetDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		http.Error(w, "missing document id", http.StatusBadRequest)
		return
	}
	doc, ok := h.coord.Documents().Lookup(id)
	if !ok {
		http.Error(w, "document not found", http.StatusNotFound)
		return
	}
	writeJSON(w, doc)
}

func (h *Handlers) Stats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, h.coord.Stats())
}

/*** Collab WebSocket: one connection per client, JSON {type, data} frames ***/
func (h *Handlers) CollabWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	defer conn.Close()

	client := session.NewClientWithQueue(uuid.NewString(), conn, h.opts.QueueSize)
	h.coord.Connect(client)
	defer h.coord.Disconnect(client.ID)

	go func() {
		if err := client.WritePump(); err != nil {
			h.log.Debug("write pump stopped", "connectionId", client.ID, "error", err)
			// unblock the read loop below
			_ = conn.Close()
		}
	}()

	conn.SetReadLimit(h.opts.ReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(session.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(session.PongWait))
	})

	// Event loop
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.log.Debug("connection read error", "connectionId", client.ID, "error", err)
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(session.PongWait))
		h.coord.HandleMessage(client.ID, msg)
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
