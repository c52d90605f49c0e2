// Package memory provides an in-memory predefine store for tests and ephemeral deployments.
package memory

import (
	"cmp"
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/artpar/predefine/core/schema"
	"github.com/artpar/predefine/domain/predefine"
	"github.com/artpar/predefine/ports"
)

// PredefineStore is an in-memory implementation of ports.PredefineStore.
// Like the SQLite store it allows one live document per identity
// (namespace, bucket, code), which also covers the descriptor's unique index.
type PredefineStore struct {
	mu   sync.RWMutex
	desc *schema.Descriptor
	docs map[string]predefine.Document // by ID
}

// NewPredefineStore creates a new in-memory predefine store.
func NewPredefineStore(desc *schema.Descriptor) *PredefineStore {
	return &PredefineStore{
		desc: desc,
		docs: make(map[string]predefine.Document),
	}
}

// Create stores a new document.
func (s *PredefineStore) Create(ctx context.Context, doc predefine.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.docs[doc.ID]; ok {
		return predefine.ErrDuplicate
	}
	if s.conflicts(doc) {
		return predefine.ErrDuplicate
	}
	s.docs[doc.ID] = doc
	return nil
}

// Get retrieves a live document by id.
func (s *PredefineStore) Get(ctx context.Context, id string) (predefine.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[id]
	if !ok || doc.IsDeleted() {
		return predefine.Document{}, predefine.ErrNotFound
	}
	return doc, nil
}

// GetMany retrieves live documents by id.
func (s *PredefineStore) GetMany(ctx context.Context, ids []string) (map[string]predefine.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]predefine.Document, len(ids))
	for _, id := range ids {
		if doc, ok := s.docs[id]; ok && !doc.IsDeleted() {
			out[id] = doc
		}
	}
	return out, nil
}

// List returns one page of live documents matching q.
func (s *PredefineStore) List(ctx context.Context, q predefine.Query) (predefine.Page, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(q.Q)
	var matched []predefine.Document
	var lastModified *time.Time
	for _, doc := range s.docs {
		switch {
		case doc.IsDeleted():
			continue
		case q.Bucket != "" && doc.Bucket != q.Bucket:
			continue
		case q.Namespace != "" && doc.Namespace != q.Namespace:
			continue
		case q.Code != "" && doc.Code != q.Code:
			continue
		case needle != "" &&
			!strings.Contains(strings.ToLower(doc.Code), needle) &&
			!strings.Contains(strings.ToLower(doc.Name[s.desc.DefaultLocale()]), needle):
			continue
		}
		matched = append(matched, doc)
		if lastModified == nil || doc.UpdatedAt.After(*lastModified) {
			t := doc.UpdatedAt
			lastModified = &t
		}
	}

	field, desc := q.SortField()
	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if c := compareField(a, b, field); c != 0 {
			return (c < 0) != desc
		}
		if a.Code != b.Code {
			return a.Code < b.Code
		}
		return a.ID < b.ID
	})

	total := len(matched)
	start := min(max(q.Skip, 0), total)
	end := min(start+q.Limit, total)
	return predefine.NewPage(q, matched[start:end], total, lastModified), nil
}

// Update replaces a live document.
func (s *PredefineStore) Update(ctx context.Context, doc predefine.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.docs[doc.ID]
	if !ok || current.IsDeleted() {
		return predefine.ErrNotFound
	}
	if s.conflicts(doc) {
		return predefine.ErrDuplicate
	}
	s.docs[doc.ID] = doc
	return nil
}

// SoftDelete marks a live document as deleted.
func (s *PredefineStore) SoftDelete(ctx context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[id]
	if !ok || doc.IsDeleted() {
		return predefine.ErrNotFound
	}
	doc.DeletedAt = &at
	doc.UpdatedAt = at
	s.docs[id] = doc
	return nil
}

// Delete removes a document permanently.
func (s *PredefineStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.docs[id]; !ok {
		return predefine.ErrNotFound
	}
	delete(s.docs, id)
	return nil
}

// conflicts reports whether another live document has doc's identity.
// Callers hold the lock.
func (s *PredefineStore) conflicts(doc predefine.Document) bool {
	key := identityKey(doc)
	for id, other := range s.docs {
		if id == doc.ID || other.IsDeleted() {
			continue
		}
		if identityKey(other) == key {
			return true
		}
	}
	return false
}

func identityKey(doc predefine.Document) string {
	parts := make([]string, 0, len(schema.IdentityFields))
	for _, f := range schema.IdentityFields {
		parts = append(parts, fieldValue(doc, f))
	}
	return strings.Join(parts, "\x00")
}

func fieldValue(doc predefine.Document, field string) string {
	switch field {
	case "namespace":
		return doc.Namespace
	case "bucket":
		return doc.Bucket
	case "code":
		return doc.Code
	}
	if base, loc, ok := strings.Cut(field, "."); ok {
		switch base {
		case "name":
			return doc.Name[loc]
		case "abbreviation":
			return doc.Abbreviation[loc]
		case "description":
			return doc.Description[loc]
		}
	}
	return ""
}

func compareField(a, b predefine.Document, field string) int {
	switch field {
	case "weight":
		return cmp.Compare(a.Weight, b.Weight)
	case "createdAt":
		return a.CreatedAt.Compare(b.CreatedAt)
	case "updatedAt":
		return a.UpdatedAt.Compare(b.UpdatedAt)
	default:
		return strings.Compare(fieldValue(a, field), fieldValue(b, field))
	}
}

// Ensure interface compliance.
var _ ports.PredefineStore = (*PredefineStore)(nil)
