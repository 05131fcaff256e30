package ports

import (
	"context"

	"github.com/aretw0/ferry/pkg/domain"
)

// EntryStore persists history entries.
// Keys are scoped by the caller so that two tabs or history branches never share a slot.
type EntryStore interface {
	// Save writes the entry under key, replacing any previous value.
	Save(ctx context.Context, key string, entry *domain.Entry) error

	// Load retrieves the entry stored under key.
	// Returns domain.ErrEntryNotFound if the slot is empty.
	Load(ctx context.Context, key string) (*domain.Entry, error)

	// Delete removes the entry. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// List returns the stored keys starting with prefix.
	List(ctx context.Context, prefix string) ([]string, error)
}
