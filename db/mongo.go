package db

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/vainnor/session-stats/models"
)

// MongoStore reads session documents from myapp.user_sessions.
type MongoStore struct {
	client     *mongo.Client
	collection *mongo.Collection
}

func openMongo(ctx context.Context, uri string, opts Options) (*MongoStore, error) {
	clientOpts := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(opts.connectTimeout()).
		SetServerSelectionTimeout(opts.connectTimeout())

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("error opening mongo client: %w", err)
	}

	return NewMongoStore(client), nil
}

// NewMongoStore wraps an already connected client. Closing the store
// disconnects the client.
func NewMongoStore(client *mongo.Client) *MongoStore {
	return &MongoStore{
		client:     client,
		collection: client.Database(DatabaseName).Collection(CollectionName),
	}
}

func (s *MongoStore) FindSessions(ctx context.Context, userID string) ([]models.SessionRecord, error) {
	cursor, err := s.collection.Find(ctx, bson.M{"user_id": userID})
	if err != nil {
		return nil, fmt.Errorf("error querying sessions: %w", err)
	}

	var records []models.SessionRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("error decoding sessions: %w", err)
	}

	return records, nil
}

func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
