package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// mongoEntry is the document shape; the cache key is the document _id.
type mongoEntry struct {
	Key       string    `bson:"_id"`
	Value     string    `bson:"value"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// MongoDBStore implements Store on a shared MongoDB database.
// The client is owned by the caller.
type MongoDBStore struct {
	collection *mongo.Collection
}

// NewMongoDBStore uses the location_cache collection of database.
func NewMongoDBStore(database *mongo.Database) (*MongoDBStore, error) {
	if database == nil {
		return nil, fmt.Errorf("database is required")
	}
	return &MongoDBStore{collection: database.Collection(tableName)}, nil
}

func (s *MongoDBStore) Get(ctx context.Context, key string) (string, bool, error) {
	var entry mongoEntry
	err := s.collection.FindOne(ctx, bson.D{{Key: "_id", Value: key}}).Decode(&entry)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to read cache entry %s: %w", key, err)
	}
	return entry.Value, true, nil
}

func (s *MongoDBStore) Set(ctx context.Context, key, value string) error {
	entry := mongoEntry{Key: key, Value: value, UpdatedAt: time.Now().UTC()}
	_, err := s.collection.ReplaceOne(ctx,
		bson.D{{Key: "_id", Value: key}},
		entry,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to write cache entry %s: %w", key, err)
	}
	return nil
}

func (s *MongoDBStore) Delete(ctx context.Context, key string) error {
	if _, err := s.collection.DeleteOne(ctx, bson.D{{Key: "_id", Value: key}}); err != nil {
		return fmt.Errorf("failed to delete cache entry %s: %w", key, err)
	}
	return nil
}

// Close is a no-op; the shared client is closed by its owner.
func (s *MongoDBStore) Close() error {
	return nil
}
