// Package idgen provides document id generators.
package idgen

import (
	"fmt"
	"strconv"
	"sync/atomic"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/artpar/predefine/config"
	"github.com/artpar/predefine/ports"
)

// UUID generates UUIDs.
type UUID struct{}

// New generates a new UUID v4.
func (UUID) New() string {
	return uuid.New().String()
}

// ObjectID generates 24-character hex object ids, which sort by creation time.
type ObjectID struct{}

// New generates a new object id.
func (ObjectID) New() string {
	return primitive.NewObjectID().Hex()
}

// Sequential generates sequential IDs (for testing).
type Sequential struct {
	prefix  string
	counter atomic.Uint64
}

// NewSequential creates a sequential ID generator.
func NewSequential(prefix string) *Sequential {
	return &Sequential{prefix: prefix}
}

// New generates the next sequential ID.
func (s *Sequential) New() string {
	return s.prefix + strconv.FormatUint(s.counter.Add(1), 10)
}

// ForFormat returns the generator for a configured id format.
func ForFormat(format string) (ports.IDGenerator, error) {
	switch format {
	case "", config.IDFormatUUID:
		return UUID{}, nil
	case config.IDFormatObjectID:
		return ObjectID{}, nil
	default:
		return nil, fmt.Errorf("unknown id format %q", format)
	}
}

// Ensure interface compliance.
var (
	_ ports.IDGenerator = UUID{}
	_ ports.IDGenerator = ObjectID{}
	_ ports.IDGenerator = (*Sequential)(nil)
)
