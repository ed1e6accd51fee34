// Package core holds the blob contract shared by handover archiving and the
// blob-backed record driver.
package core

import (
	"context"
	"errors"
	"io"
	"time"
)

// Driver names a blob backend.
type Driver string

const (
	DriverFilesystem Driver = "fs"
	DriverS3         Driver = "s3"
	DriverMemory     Driver = "memory"
)

// DefaultURLExpiry applies when PresignURL is given a non-positive expiry.
const DefaultURLExpiry = 15 * time.Minute

// PutOptions describes the object being written.
type PutOptions struct {
	ContentType string
	// Metadata is stored alongside the object, e.g. the archive timestamp.
	Metadata map[string]string
}

// Info describes a stored object. It is also the JSON shape of an archive
// listing entry.
type Info struct {
	Key          string            `json:"key"`
	Size         int64             `json:"size_bytes"`
	ContentType  string            `json:"content_type,omitempty"`
	ETag         string            `json:"etag,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	LastModified time.Time         `json:"last_modified"`
	URL          string            `json:"url,omitempty"`
}

// Store is a flat key/object namespace. Put overwrites, so a single key can
// hold the mutable sign-out document as well as immutable archives.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, opts PutOptions) (Info, error)
	// Get and Head wrap ErrNotFound for a missing key.
	Get(ctx context.Context, key string) (Info, io.ReadCloser, error)
	Head(ctx context.Context, key string) (Info, error)
	// Delete reports whether the key existed.
	Delete(ctx context.Context, key string) (bool, error)
	// List returns objects under prefix sorted by key.
	List(ctx context.Context, prefix string) ([]Info, error)
	// PresignURL returns a download URL valid for expiry, or ErrUnsupported.
	PresignURL(ctx context.Context, key string, expiry time.Duration) (string, error)
	Driver() Driver
}

var (
	ErrUnsupported = errors.New("blobstore: unsupported operation")
	ErrNotFound    = errors.New("blobstore: not found")
)
