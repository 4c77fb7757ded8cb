// Package catalog defines the read-only boundary to the content collaborator
// that owns the practicable items (questions and flashcards). The scheduler
// core holds only item references; it never copies or mutates item content.
package catalog

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrItemNotFound indicates that the catalog holds no item with the given ID.
var ErrItemNotFound = errors.New("item not found in catalog")

// Item describes one practicable learning item. RatedDifficulty is the
// author-assigned label, distinct from the per-student difficulty the memory
// model maintains.
type Item struct {
	ID              uuid.UUID
	Topic           string
	SkillTags       []string
	RatedDifficulty string
}

// Catalog is the lookup interface the scheduler consumes. Implementations
// are expected to be stable for the duration of a session.
type Catalog interface {
	// GetItem returns the item descriptor for an ID.
	// Returns ErrItemNotFound for unknown IDs.
	GetItem(ctx context.Context, itemID uuid.UUID) (*Item, error)
}

// StaticCatalog is a Catalog backed by a fixed item set. The enclosing
// platform hands the scheduler a snapshot at construction; tests build their
// fixtures with it directly.
type StaticCatalog struct {
	items map[uuid.UUID]Item
}

// NewStaticCatalog creates a StaticCatalog over the given items.
func NewStaticCatalog(items []Item) *StaticCatalog {
	m := make(map[uuid.UUID]Item, len(items))
	for _, item := range items {
		m[item.ID] = item
	}
	return &StaticCatalog{items: m}
}

// GetItem implements Catalog.
func (c *StaticCatalog) GetItem(_ context.Context, itemID uuid.UUID) (*Item, error) {
	item, ok := c.items[itemID]
	if !ok {
		return nil, ErrItemNotFound
	}
	return &item, nil
}
