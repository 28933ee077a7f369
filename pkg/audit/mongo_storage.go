package audit

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/v2/mongo"
)

// MongoStorage persists audit events to a MongoDB collection. The audit
// trail is append-only; events are never updated or deleted by this storage.
type MongoStorage struct {
	collection *mongo.Collection
}

// NewMongoStorage creates a storage writing to the given collection.
// Panics on nil collection to fail fast during initialization.
func NewMongoStorage(collection *mongo.Collection) *MongoStorage {
	if collection == nil {
		panic("audit: mongo collection cannot be nil")
	}
	return &MongoStorage{collection: collection}
}

func (s *MongoStorage) Store(ctx context.Context, event Event) error {
	if _, err := s.collection.InsertOne(ctx, event); err != nil {
		return errors.Join(ErrStorageFailed, err)
	}
	return nil
}
