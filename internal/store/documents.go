package store

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"collabdocs/internal/models"
)

var ErrInvalidDocument = errors.New("invalid document")

// DocumentStore holds the canonical copy of every document in memory.
// Edits are last-write-wins: the caller's content and version replace what is stored.
type DocumentStore struct {
	mu    sync.RWMutex
	docs  map[string]*models.Document
	order []string
	now   func() time.Time
}

// NewDocumentStore builds a store preloaded with the embedded seeds plus any extra ones.
func NewDocumentStore(extra ...SeedDocument) (*DocumentStore, error) {
	seeds, err := embeddedSeeds()
	if err != nil {
		return nil, err
	}
	s := &DocumentStore{
		docs: make(map[string]*models.Document),
		now:  time.Now,
	}
	for _, seed := range append(seeds, extra...) {
		if _, err := s.Create(seed.toCreate()); err != nil {
			return nil, fmt.Errorf("seed %q: %w", seed.ID, err)
		}
	}
	if _, ok := s.docs[DefaultDocumentID]; !ok {
		return nil, fmt.Errorf("default document %q missing from seeds", DefaultDocumentID)
	}
	return s, nil
}

// SetClock replaces the time source (used in tests).
func (s *DocumentStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

// Create inserts a document at version 1. An existing id is replaced in place.
func (s *DocumentStore) Create(in models.CreateDocument) (models.Document, error) {
	if strings.TrimSpace(in.ID) == "" {
		return models.Document{}, fmt.Errorf("%w: id is required", ErrInvalidDocument)
	}
	lang := in.Language
	if lang == "" {
		lang = models.DefaultLanguage
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	ts := s.now().UTC()
	doc := &models.Document{
		ID:           in.ID,
		Title:        in.Title,
		Content:      in.Content,
		Language:     lang,
		CreatedAt:    ts,
		LastModified: ts,
		Version:      1,
	}
	if _, exists := s.docs[in.ID]; !exists {
		s.order = append(s.order, in.ID)
	}
	s.docs[in.ID] = doc
	return *doc, nil
}

// Get returns the document, or the default document flagged as a fallback.
func (s *DocumentStore) Get(id string) models.LoadResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if doc, ok := s.docs[id]; ok {
		return models.LoadResult{Document: *doc}
	}
	return models.LoadResult{Document: *s.docs[DefaultDocumentID], Fallback: true}
}

// Lookup is an exact read with no fallback.
func (s *DocumentStore) Lookup(id string) (models.Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[id]
	if !ok {
		return models.Document{}, false
	}
	return *doc, true
}

// List returns summaries in insertion order.
func (s *DocumentStore) List() []models.DocumentSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.DocumentSummary, 0, len(s.order))
	for _, id := range s.order {
		doc := s.docs[id]
		out = append(out, models.DocumentSummary{
			ID:           doc.ID,
			Title:        doc.Title,
			Language:     doc.Language,
			LastModified: doc.LastModified,
		})
	}
	return out
}

// ApplyEdit overwrites content and version without comparing against the stored version.
// It reports false, and changes nothing, when the document does not exist.
func (s *DocumentStore) ApplyEdit(id, content string, version int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[id]
	if !ok {
		return false
	}
	doc.Content = content
	doc.Version = version
	doc.LastModified = s.now().UTC()
	return true
}

func (s *DocumentStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}
