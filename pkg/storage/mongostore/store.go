// Package mongostore is a domain.DocumentStore backed by MongoDB. Each
// collection maps to a MongoDB collection of the same name and documents are
// stored as given, keyed by their string _id.
package mongostore

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/adfharrison1/go-securedocs/pkg/domain"
)

var _ domain.DocumentStore = (*Store)(nil)

type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// Connect dials uri and pings the server before returning.
func Connect(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	return New(client, database), nil
}

// New wraps an existing client. Close disconnects it.
func New(client *mongo.Client, database string) *Store {
	return &Store{client: client, db: client.Database(database)}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *Store) FindByID(ctx context.Context, collName, docID string) (domain.Document, error) {
	var raw bson.M
	err := s.db.Collection(collName).FindOne(ctx, bson.M{domain.IDField: docID}).Decode(&raw)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%w: %s/%s", domain.ErrNotFound, collName, docID)
	}
	if err != nil {
		return nil, domain.StorageFault("find", err)
	}
	return domain.Document(normalize(raw).(map[string]interface{})), nil
}

func (s *Store) Insert(ctx context.Context, collName string, doc domain.Document) error {
	docID, ok := doc.ID()
	if !ok || docID == "" {
		return fmt.Errorf("insert into %s: document has no string %s", collName, domain.IDField)
	}
	_, err := s.db.Collection(collName).InsertOne(ctx, bson.M(doc))
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w: %s/%s", domain.ErrDuplicateID, collName, docID)
	}
	if err != nil {
		return domain.StorageFault("insert", err)
	}
	return nil
}

func (s *Store) UpdateFields(ctx context.Context, collName, docID string, fields domain.Document) error {
	set := bson.M(fields.Without(domain.IDField))
	coll := s.db.Collection(collName)

	// $set rejects an empty document; only existence matters then
	if len(set) == 0 {
		n, err := coll.CountDocuments(ctx, bson.M{domain.IDField: docID})
		if err != nil {
			return domain.StorageFault("update", err)
		}
		if n == 0 {
			return fmt.Errorf("%w: %s/%s", domain.ErrNotFound, collName, docID)
		}
		return nil
	}

	res, err := coll.UpdateOne(ctx, bson.M{domain.IDField: docID}, bson.M{"$set": set})
	if err != nil {
		return domain.StorageFault("update", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%w: %s/%s", domain.ErrNotFound, collName, docID)
	}
	return nil
}

func (s *Store) DeleteByID(ctx context.Context, collName, docID string) (int64, error) {
	res, err := s.db.Collection(collName).DeleteOne(ctx, bson.M{domain.IDField: docID})
	if err != nil {
		return 0, domain.StorageFault("delete", err)
	}
	return res.DeletedCount, nil
}

// normalize converts the driver's bson.D, bson.M and bson.A values into plain
// maps and slices.
func normalize(v interface{}) interface{} {
	switch val := v.(type) {
	case bson.M:
		return normalizeMap(val)
	case map[string]interface{}:
		return normalizeMap(val)
	case bson.D:
		out := make(map[string]interface{}, len(val))
		for _, e := range val {
			out[e.Key] = normalize(e.Value)
		}
		return out
	case bson.A:
		return normalizeSlice(val)
	case []interface{}:
		return normalizeSlice(val)
	default:
		return v
	}
}

func normalizeMap(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, item := range m {
		out[k] = normalize(item)
	}
	return out
}

func normalizeSlice(a []interface{}) []interface{} {
	out := make([]interface{}, len(a))
	for i, item := range a {
		out[i] = normalize(item)
	}
	return out
}
