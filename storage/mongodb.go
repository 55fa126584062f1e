package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/johnwmail/npaste/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore implements PasteStore using MongoDB
type MongoStore struct {
	client     *mongo.Client
	collection *mongo.Collection
	timeout    time.Duration
}

// NewMongoStore connects to uri and prepares the pastes collection
func NewMongoStore(ctx context.Context, uri, dbName, collection string, timeout time.Duration) (*MongoStore, error) {
	cctx, cancel := withTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(cctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	// Test the connection
	if err := client.Ping(cctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	store := &MongoStore{
		client:     client,
		collection: client.Database(dbName).Collection(collection),
		timeout:    timeout,
	}

	if err := store.createIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to create indexes: %w", err)
	}

	return store, nil
}

// createIndexes creates necessary indexes for the collection
func (m *MongoStore) createIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	// TTL index on expires_at: the server sweeps expired documents on its own.
	// Documents without expires_at are never touched.
	ttlIndex := mongo.IndexModel{
		Keys:    bson.D{{Key: "expires_at", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(0),
	}

	// Index on created_at for listing
	createdAtIndex := mongo.IndexModel{
		Keys: bson.D{{Key: "created_at", Value: -1}},
	}

	_, err := m.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		ttlIndex,
		createdAtIndex,
	})

	return err
}

func (m *MongoStore) Ping(ctx context.Context) error {
	ctx, cancel := withTimeout(ctx, m.timeout)
	defer cancel()

	return m.client.Ping(ctx, nil)
}

// Create inserts the paste; the _id unique index rejects duplicates
func (m *MongoStore) Create(ctx context.Context, paste *models.Paste) error {
	ctx, cancel := withTimeout(ctx, m.timeout)
	defer cancel()

	if _, err := m.collection.InsertOne(ctx, paste); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateID
		}
		return err
	}
	return nil
}

// Get retrieves a paste by its ID
func (m *MongoStore) Get(ctx context.Context, id string) (*models.Paste, error) {
	ctx, cancel := withTimeout(ctx, m.timeout)
	defer cancel()

	var paste models.Paste
	err := m.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&paste)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &paste, nil
}

func (m *MongoStore) Exists(ctx context.Context, id string) (bool, error) {
	ctx, cancel := withTimeout(ctx, m.timeout)
	defer cancel()

	n, err := m.collection.CountDocuments(ctx, bson.M{"_id": id}, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (m *MongoStore) List(ctx context.Context) ([]*models.Paste, error) {
	ctx, cancel := withTimeout(ctx, m.timeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: 1}})
	cursor, err := m.collection.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	pastes := make([]*models.Paste, 0)
	if err := cursor.All(ctx, &pastes); err != nil {
		return nil, err
	}
	return pastes, nil
}

// Delete removes a paste from MongoDB
func (m *MongoStore) Delete(ctx context.Context, id string) error {
	ctx, cancel := withTimeout(ctx, m.timeout)
	defer cancel()

	res, err := m.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// availableFilter matches id only while it is neither expired nor out of views
func availableFilter(id string, now time.Time) bson.M {
	return bson.M{
		"_id": id,
		"$and": bson.A{
			bson.M{"$or": bson.A{
				bson.M{"expires_at": nil},
				bson.M{"expires_at": bson.M{"$gte": now}},
			}},
			bson.M{"$or": bson.A{
				bson.M{"max_views": nil},
				bson.M{"$expr": bson.M{"$lt": bson.A{"$views_count", "$max_views"}}},
			}},
		},
	}
}

// RecordView applies the increment with the availability predicate as the
// update filter, so concurrent viewers can never push views_count past
// max_views.
func (m *MongoStore) RecordView(ctx context.Context, id string, now time.Time) (*models.Paste, error) {
	ctx, cancel := withTimeout(ctx, m.timeout)
	defer cancel()

	var paste models.Paste
	err := m.collection.FindOneAndUpdate(
		ctx,
		availableFilter(id, now),
		bson.M{"$inc": bson.M{"views_count": 1}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&paste)
	if err == nil {
		return &paste, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, err
	}

	exists, err := m.Exists(ctx, id)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrUnavailable
	}
	return nil, ErrNotFound
}

// PurgeExpired removes expired documents the TTL monitor has not reached yet
func (m *MongoStore) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	ctx, cancel := withTimeout(ctx, m.timeout)
	defer cancel()

	res, err := m.collection.DeleteMany(ctx, bson.M{"expires_at": bson.M{"$lt": now}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// Close closes the MongoDB connection
func (m *MongoStore) Close() error {
	ctx, cancel := withTimeout(context.Background(), m.timeout)
	defer cancel()

	return m.client.Disconnect(ctx)
}
