// Package mongo provides a MongoDB-backed key/value store. Each key is one
// document in the items collection.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"signout/pkg/domain"
)

// Compile-time contract assertion ensuring mongo.Store adheres to the domain persistence interface.
var _ domain.KeyValueStore = (*Store)(nil)

const (
	// DefaultDatabase is used when no database name is configured.
	DefaultDatabase = "signout"
	// CollectionName is the collection holding stored items.
	CollectionName = "items"
)

// Config describes the MongoDB connection.
type Config struct {
	URI                    string
	Database               string
	ConnectTimeout         time.Duration
	ServerSelectionTimeout time.Duration
}

type itemDocument struct {
	Key       string    `bson:"_id"`
	Payload   string    `bson:"payload"`
	UpdatedAt time.Time `bson:"updatedAt"`
}

// Store persists items in a MongoDB collection.
type Store struct {
	client *mongo.Client
	coll   *mongo.Collection
	now    func() time.Time
}

// NewStore connects to MongoDB and verifies the connection.
func NewStore(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.URI == "" {
		return nil, errors.New("mongo uri is required")
	}
	if cfg.Database == "" {
		cfg.Database = DefaultDatabase
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	if cfg.ServerSelectionTimeout == 0 {
		cfg.ServerSelectionTimeout = 5 * time.Second
	}
	clientOptions := options.Client().
		ApplyURI(cfg.URI).
		SetConnectTimeout(cfg.ConnectTimeout).
		SetServerSelectionTimeout(cfg.ServerSelectionTimeout)
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	s := NewStoreWithCollection(client.Database(cfg.Database).Collection(CollectionName))
	s.client = client
	return s, nil
}

// NewStoreWithCollection wraps an existing collection. Close does not
// disconnect the owning client.
func NewStoreWithCollection(coll *mongo.Collection) *Store {
	return &Store{coll: coll, now: time.Now}
}

// GetItem returns the payload stored under key.
func (s *Store) GetItem(ctx context.Context, key string) ([]byte, bool, error) {
	var doc itemDocument
	err := s.coll.FindOne(ctx, bson.M{"_id": key}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("find %s: %w", key, err)
	}
	return []byte(doc.Payload), true, nil
}

// SetItem replaces (or inserts) the document for key.
func (s *Store) SetItem(ctx context.Context, key string, value []byte) error {
	doc := itemDocument{Key: key, Payload: string(value), UpdatedAt: s.now().UTC()}
	if _, err := s.coll.ReplaceOne(ctx, bson.M{"_id": key}, doc, options.Replace().SetUpsert(true)); err != nil {
		return fmt.Errorf("replace %s: %w", key, err)
	}
	return nil
}

// RemoveItem deletes the document for key.
func (s *Store) RemoveItem(ctx context.Context, key string) error {
	if _, err := s.coll.DeleteOne(ctx, bson.M{"_id": key}); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// Driver returns the backend identifier.
func (s *Store) Driver() string { return "mongo" }

// Close disconnects the client when the store owns it.
func (s *Store) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Disconnect(context.Background())
}
