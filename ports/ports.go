// Package ports defines interfaces (contracts) between layers.
// These interfaces enable dependency injection and testability.
// Implementations live in adapters/.
package ports

import (
	"context"
	"time"

	"github.com/artpar/predefine/core/events"
	"github.com/artpar/predefine/domain/predefine"
)

// -----------------------------------------------------------------------------
// Infrastructure Ports
// -----------------------------------------------------------------------------

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// IDGenerator generates unique identifiers.
type IDGenerator interface {
	New() string
}

// -----------------------------------------------------------------------------
// Data Store Ports
// -----------------------------------------------------------------------------

// PredefineStore persists predefine documents.
// Reads never return soft-deleted documents.
type PredefineStore interface {
	// Create stores a new document.
	// Returns predefine.ErrDuplicate when the unique index is violated.
	Create(ctx context.Context, doc predefine.Document) error

	// Get retrieves a live document by id.
	// Returns predefine.ErrNotFound when missing or deleted.
	Get(ctx context.Context, id string) (predefine.Document, error)

	// GetMany retrieves live documents by id. Missing ids are skipped.
	GetMany(ctx context.Context, ids []string) (map[string]predefine.Document, error)

	// List returns one page of live documents matching a normalized query.
	List(ctx context.Context, q predefine.Query) (predefine.Page, error)

	// Update replaces a live document.
	Update(ctx context.Context, doc predefine.Document) error

	// SoftDelete marks a live document as deleted.
	SoftDelete(ctx context.Context, id string, at time.Time) error

	// Delete removes a document permanently.
	Delete(ctx context.Context, id string) error
}

// -----------------------------------------------------------------------------
// Event Ports
// -----------------------------------------------------------------------------

// EventPublisher forwards change events outside the process.
type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
	Close() error
}
