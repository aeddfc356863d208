package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collabdocs/internal/collab"
	"collabdocs/internal/events"
	"collabdocs/internal/models"
	"collabdocs/internal/store"
	"collabdocs/internal/utils"
)

func newTestHandlers(t *testing.T) (*Handlers, *collab.Coordinator) {
	t.Helper()
	docs, err := store.NewDocumentStore()
	require.NoError(t, err)
	coord := collab.New(docs, events.Nop{}, utils.NopLogger())
	return NewHandlers(utils.NopLogger(), coord, Options{}), coord
}

func newTestServer(t *testing.T, h *Handlers) *httptest.Server {
	t.Helper()
	r := chi.NewRouter()
	r.Get("/healthz", h.Health)
	r.Get("/api/v1/documents", h.ListDocuments)
	r.Get("/api/v1/documents/{id}", h.GetDocument)
	r.Get("/api/v1/stats", h.Stats)
	r.Get("/ws", h.CollabWS)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func TestHealth(t *testing.T) {
	h, _ := newTestHandlers(t)
	rec := httptest.NewRecorder()
	h.Health(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestListDocuments(t *testing.T) {
	h, coord := newTestHandlers(t)
	_, err := coord.Documents().Create(models.CreateDocument{ID: "notes", Title: "Notes"})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	h.ListDocuments(rec, httptest.NewRequest(http.MethodGet, "/api/v1/documents", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var got []models.DocumentSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, store.DefaultDocumentID, got[0].ID)
	assert.Equal(t, "notes", got[1].ID)
	assert.Equal(t, models.DefaultLanguage, got[1].Language)
}

func TestGetDocument(t *testing.T) {
	h, _ := newTestHandlers(t)
	srv := newTestServer(t, h)

	resp, err := http.Get(srv.URL + "/api/v1/documents/welcome")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var doc models.Document
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&doc))
	assert.Equal(t, "welcome", doc.ID)
	assert.Contains(t, doc.Content, "welcomeMessage")
}

func TestGetDocumentNotFound(t *testing.T) {
	h, _ := newTestHandlers(t)
	srv := newTestServer(t, h)

	resp, err := http.Get(srv.URL + "/api/v1/documents/missing")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGetDocumentMissingParam(t *testing.T) {
	h, _ := newTestHandlers(t)
	rec := httptest.NewRecorder()
	h.GetDocument(rec, httptest.NewRequest(http.MethodGet, "/api/v1/documents/", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStatsEndpoint(t *testing.T) {
	h, _ := newTestHandlers(t)
	rec := httptest.NewRecorder()
	h.Stats(rec, httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var got models.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, models.Stats{Documents: 1}, got)
}

func TestCollabWSRejectsPlainHTTP(t *testing.T) {
	h, coord := newTestHandlers(t)
	srv := newTestServer(t, h)

	resp, err := http.Get(srv.URL + "/ws")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, 0, coord.Stats().Connections)
}

type inFrame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, typ string, data interface{}) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(models.WSFrame{Type: typ, Data: data}))
}

// expect reads frames until one of type typ arrives, skipping anything else.
func expect(t *testing.T, conn *websocket.Conn, typ string) json.RawMessage {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		require.NoError(t, conn.SetReadDeadline(deadline))
		var f inFrame
		require.NoError(t, conn.ReadJSON(&f), "waiting for %s", typ)
		if f.Type == typ {
			return f.Data
		}
	}
}

func TestCollabWSEndToEnd(t *testing.T) {
	h, coord := newTestHandlers(t)
	srv := newTestServer(t, h)

	alice := dial(t, srv)
	send(t, alice, models.EventUserJoin, models.Profile{Name: "Alice", Color: "#f00"})
	var aliceUser models.User
	require.NoError(t, json.Unmarshal(expect(t, alice, models.EventUserRegistered), &aliceUser))
	assert.Equal(t, "Alice", aliceUser.Name)
	assert.NotEmpty(t, aliceUser.ID)

	send(t, alice, models.EventJoinDocument, "welcome")
	var loaded models.DocumentLoaded
	require.NoError(t, json.Unmarshal(expect(t, alice, models.EventDocumentLoaded), &loaded))
	assert.Equal(t, "welcome", loaded.ID)
	assert.False(t, loaded.Fallback)
	var peers []models.User
	require.NoError(t, json.Unmarshal(expect(t, alice, models.EventUsersInDocument), &peers))
	assert.Empty(t, peers)

	bob := dial(t, srv)
	send(t, bob, models.EventUserJoin, models.Profile{Name: "Bob"})
	expect(t, bob, models.EventUserRegistered)
	send(t, bob, models.EventJoinDocument, models.JoinDocument{DocumentID: "welcome"})
	expect(t, bob, models.EventDocumentLoaded)
	require.NoError(t, json.Unmarshal(expect(t, bob, models.EventUsersInDocument), &peers))
	require.Len(t, peers, 1)
	assert.Equal(t, "Alice", peers[0].Name)

	var joined models.User
	require.NoError(t, json.Unmarshal(expect(t, alice, models.EventUserJoinedDocument), &joined))
	assert.Equal(t, "Bob", joined.Name)

	send(t, bob, models.EventTextChange, map[string]any{"documentId": "welcome", "content": "hello", "version": 2})
	var changed models.TextChanged
	require.NoError(t, json.Unmarshal(expect(t, alice, models.EventTextChanged), &changed))
	assert.Equal(t, "hello", changed.Content)
	assert.Equal(t, int64(2), changed.Version)
	assert.Equal(t, joined.ID, changed.UserID)

	send(t, alice, models.EventCursorUpdate, models.CursorUpdate{DocumentID: "welcome", Cursor: &models.Cursor{Line: 3, Column: 7}})
	var cursor models.CursorUpdated
	require.NoError(t, json.Unmarshal(expect(t, bob, models.EventCursorUpdated), &cursor))
	assert.Equal(t, aliceUser.ID, cursor.UserID)
	assert.Equal(t, models.Cursor{Line: 3, Column: 7}, cursor.Cursor)

	require.NoError(t, bob.Close())
	var leftID string
	require.NoError(t, json.Unmarshal(expect(t, alice, models.EventUserLeftDocument), &leftID))
	assert.Equal(t, joined.ID, leftID)

	doc, ok := coord.Documents().Lookup("welcome")
	require.True(t, ok)
	assert.Equal(t, "hello", doc.Content)
	assert.Equal(t, int64(2), doc.Version)

	assert.Eventually(t, func() bool { return coord.Stats().Connections == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestCollabWSIgnoresMalformedFrames(t *testing.T) {
	h, _ := newTestHandlers(t)
	srv := newTestServer(t, h)

	conn := dial(t, srv)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	send(t, conn, "no-such-event", nil)
	send(t, conn, models.EventGetDocuments, nil)

	var list []models.DocumentSummary
	require.NoError(t, json.Unmarshal(expect(t, conn, models.EventDocumentsList), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "welcome", list[0].ID)
}

func TestCollabWSReadLimitClosesConnection(t *testing.T) {
	docs, err := store.NewDocumentStore()
	require.NoError(t, err)
	coord := collab.New(docs, events.Nop{}, utils.NopLogger())
	h := NewHandlers(utils.NopLogger(), coord, Options{ReadLimit: 64})
	srv := newTestServer(t, h)

	conn := dial(t, srv)
	assert.Eventually(t, func() bool { return coord.Stats().Connections == 1 }, 2*time.Second, 10*time.Millisecond)
	send(t, conn, models.EventCreateDocument, models.CreateDocument{ID: "big", Content: strings.Repeat("x", 256)})

	assert.Eventually(t, func() bool { return coord.Stats().Connections == 0 }, 2*time.Second, 10*time.Millisecond)
	_, ok := docs.Lookup("big")
	assert.False(t, ok)
}
