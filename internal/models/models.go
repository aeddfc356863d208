package models

import (
	"encoding/json"
	"time"
)

/*** Wire envelope ***/
type WSFrame struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// InboundFrame keeps the payload raw until the event type is known.
type InboundFrame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Client -> server events
const (
	EventUserJoin       = "user-join"
	EventGetDocuments   = "get-documents"
	EventCreateDocument = "create-document"
	EventJoinDocument   = "join-document"
	EventTextChange     = "text-change"
	EventCursorUpdate   = "cursor-update"
)

// Server -> client events
const (
	EventUserRegistered     = "user-registered"
	EventDocumentsList      = "documents-list"
	EventDocumentCreated    = "document-created"
	EventDocumentLoaded     = "document-loaded"
	EventTextChanged        = "text-changed"
	EventCursorUpdated      = "cursor-updated"
	EventUsersInDocument    = "users-in-document"
	EventUserJoinedDocument = "user-joined-document"
	EventUserLeftDocument   = "user-left-document"
)

const DefaultLanguage = "javascript"

/*** Identity ***/
type Cursor struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

type User struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Avatar string  `json:"avatar"`
	Color  string  `json:"color"`
	Cursor *Cursor `json:"cursor"`
}

// Clone returns a copy that does not share the cursor pointer.
func (u User) Clone() User {
	if u.Cursor != nil {
		c := *u.Cursor
		u.Cursor = &c
	}
	return u
}

type Profile struct {
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
	Color  string `json:"color"`
}

// Session links a live connection to the user it registered as.
type Session struct {
	ConnectionID string
	User         User
	RegisteredAt time.Time
}

/*** Documents ***/
type Document struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Content      string    `json:"content"`
	Language     string    `json:"language"`
	CreatedAt    time.Time `json:"createdAt"`
	LastModified time.Time `json:"lastModified"`
	Version      int64     `json:"version"`
}

type DocumentSummary struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Language     string    `json:"language"`
	LastModified time.Time `json:"lastModified"`
}

// LoadResult reports whether the requested document existed or the default was served instead.
type LoadResult struct {
	Document Document
	Fallback bool
}

// DocumentLoaded is the document-loaded payload.
type DocumentLoaded struct {
	Document
	Fallback bool `json:"fallback,omitempty"`
}

/*** Payloads ***/
type CreateDocument struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Content  string `json:"content"`
	Language string `json:"language"`
}

type JoinDocument struct {
	DocumentID string `json:"documentId"`
}

// TextChange fields are pointers so a frame missing content or version can be told apart
// from one that clears the document.
type TextChange struct {
	DocumentID string  `json:"documentId"`
	Content    *string `json:"content"`
	Version    *int64  `json:"version"`
}

type TextChanged struct {
	Content string `json:"content"`
	Version int64  `json:"version"`
	UserID  string `json:"userId"`
}

type CursorUpdate struct {
	DocumentID string  `json:"documentId"`
	Cursor     *Cursor `json:"cursor"`
}

type CursorUpdated struct {
	UserID string `json:"userId"`
	Cursor Cursor `json:"cursor"`
	User   User   `json:"user"`
}

// Stats is a point-in-time view of the coordinator.
type Stats struct {
	Connections int `json:"connections"`
	Users       int `json:"users"`
	Rooms       int `json:"rooms"`
	Documents   int `json:"documents"`
}

/*** Outbound feed ***/
type DocumentEvent struct {
	Type       string    `json:"type"`
	DocumentID string    `json:"documentId"`
	UserID     string    `json:"userId,omitempty"`
	Version    int64     `json:"version,omitempty"`
	At         time.Time `json:"at"`
}
