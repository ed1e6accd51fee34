// Package memory keeps blobs in process memory. It backs the blob-mem record
// driver and archive tests.
package memory

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"signout/internal/blob/core"
)

type object struct {
	info core.Info
	data []byte
}

// Store is a core.Store held in a map.
type Store struct {
	mu   sync.RWMutex
	objs map[string]object
	now  func() time.Time
}

// Option customizes a Store.
type Option func(*Store)

// WithClock stamps LastModified from now instead of the wall clock.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

func New(opts ...Option) *Store {
	s := &Store{objs: map[string]object{}, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Driver() core.Driver { return core.DriverMemory }

func (s *Store) Put(_ context.Context, key string, r io.Reader, opts core.PutOptions) (core.Info, error) {
	if strings.TrimSpace(key) == "" {
		return core.Info{}, fmt.Errorf("put: empty key")
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return core.Info{}, fmt.Errorf("put %s: %w", key, err)
	}
	sum := sha256.Sum256(data)
	obj := object{
		data: data,
		info: core.Info{
			Key:          key,
			Size:         int64(len(data)),
			ContentType:  opts.ContentType,
			ETag:         hex.EncodeToString(sum[:8]),
			Metadata:     maps.Clone(opts.Metadata),
			LastModified: s.now().UTC(),
		},
	}
	s.mu.Lock()
	s.objs[key] = obj
	s.mu.Unlock()
	return snapshot(obj.info), nil
}

func (s *Store) Get(_ context.Context, key string) (core.Info, io.ReadCloser, error) {
	obj, err := s.lookup(key)
	if err != nil {
		return core.Info{}, nil, err
	}
	return snapshot(obj.info), io.NopCloser(bytes.NewReader(bytes.Clone(obj.data))), nil
}

func (s *Store) Head(_ context.Context, key string) (core.Info, error) {
	obj, err := s.lookup(key)
	if err != nil {
		return core.Info{}, err
	}
	return snapshot(obj.info), nil
}

func (s *Store) Delete(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objs[key]
	delete(s.objs, key)
	return ok, nil
}

func (s *Store) List(_ context.Context, prefix string) ([]core.Info, error) {
	s.mu.RLock()
	out := make([]core.Info, 0, len(s.objs))
	for key, obj := range s.objs {
		if strings.HasPrefix(key, prefix) {
			out = append(out, snapshot(obj.info))
		}
	}
	s.mu.RUnlock()
	slices.SortFunc(out, func(a, b core.Info) int { return strings.Compare(a.Key, b.Key) })
	return out, nil
}

// PresignURL always fails: memory objects are not reachable over HTTP.
func (s *Store) PresignURL(context.Context, string, time.Duration) (string, error) {
	return "", core.ErrUnsupported
}

func (s *Store) lookup(key string) (object, error) {
	s.mu.RLock()
	obj, ok := s.objs[key]
	s.mu.RUnlock()
	if !ok {
		return object{}, fmt.Errorf("blob %s: %w", key, core.ErrNotFound)
	}
	return obj, nil
}

// snapshot detaches the metadata map from the stored copy.
func snapshot(info core.Info) core.Info {
	info.Metadata = maps.Clone(info.Metadata)
	return info
}
