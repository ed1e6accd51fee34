package domain

import "context"

// KeyValueStore is the storage medium behind the record store. It mirrors the
// browser storage API the tool was first written against: opaque values under
// string keys, replaced wholesale on every write. Implementations live under
// internal/infra/persistence.
type KeyValueStore interface {
	// GetItem returns the value stored under key. The bool is false when the
	// key is absent; absence is not an error.
	GetItem(ctx context.Context, key string) ([]byte, bool, error)
	// SetItem replaces the value stored under key.
	SetItem(ctx context.Context, key string, value []byte) error
	// RemoveItem deletes key. Removing an absent key is not an error.
	RemoveItem(ctx context.Context, key string) error
	// Driver returns the backend identifier.
	Driver() string
	// Close releases backend resources.
	Close() error
}
