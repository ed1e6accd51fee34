// Package blobkv stores key/value items as objects in a blob store, one JSON
// object per key. It lets the record live in S3 or MinIO alongside the
// archived handover workbooks.
package blobkv

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"signout/internal/blob/core"
	"signout/pkg/domain"
)

// Compile-time contract assertion ensuring blobkv.Store adheres to the domain persistence interface.
var _ domain.KeyValueStore = (*Store)(nil)

// DefaultPrefix is prepended to every object key.
const DefaultPrefix = "records/"

// Store adapts a core.Store to domain.KeyValueStore.
type Store struct {
	blobs  core.Store
	prefix string
}

// NewStore wraps blobs. An empty prefix selects DefaultPrefix.
func NewStore(blobs core.Store, prefix string) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Store{blobs: blobs, prefix: prefix}
}

// ObjectKey returns the blob key holding item key.
func (s *Store) ObjectKey(key string) string { return s.prefix + key + ".json" }

// GetItem reads the object for key.
func (s *Store) GetItem(ctx context.Context, key string) ([]byte, bool, error) {
	_, rc, err := s.blobs.Get(ctx, s.ObjectKey(key))
	if errors.Is(err, core.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %s: %w", key, err)
	}
	defer func() { _ = rc.Close() }()
	b, err := io.ReadAll(rc)
	if err != nil {
		return nil, false, fmt.Errorf("read %s: %w", key, err)
	}
	return b, true, nil
}

// SetItem writes the object for key, replacing any previous version.
func (s *Store) SetItem(ctx context.Context, key string, value []byte) error {
	if _, err := s.blobs.Put(ctx, s.ObjectKey(key), bytes.NewReader(value), core.PutOptions{ContentType: "application/json"}); err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

// RemoveItem deletes the object for key.
func (s *Store) RemoveItem(ctx context.Context, key string) error {
	if _, err := s.blobs.Delete(ctx, s.ObjectKey(key)); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// Driver returns the backend identifier, qualified by the blob driver.
func (s *Store) Driver() string { return "blob:" + string(s.blobs.Driver()) }

// Close is a no-op; blob stores hold no long-lived resources.
func (s *Store) Close() error { return nil }
