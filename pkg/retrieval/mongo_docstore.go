package retrieval

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoDocStore implements DocStore against a MongoDB database, one
// collection per logical domain collection (hospitals, welfare programs,
// medical Q&A). Grounded on the collection-access patterns in
// original_source/backend/app/db/mongodb_manager.py, wired through the
// official go.mongodb.org/mongo-driver (also used by hyperion-coordinator
// in the example pack).
type MongoDocStore struct {
	db *mongo.Database
}

// NewMongoDocStore wraps an already-connected database handle.
func NewMongoDocStore(db *mongo.Database) *MongoDocStore {
	return &MongoDocStore{db: db}
}

func (s *MongoDocStore) TextSearch(ctx context.Context, collection, query string, filters Filters, limit int) ([]ScoredDoc, error) {
	coll := s.db.Collection(collection)

	filter := bson.M{"$text": bson.M{"$search": query}}
	for k, v := range filters {
		filter[k] = v
	}

	projection := bson.M{"score": bson.M{"$meta": "textScore"}}
	opts := options.Find().
		SetProjection(projection).
		SetSort(bson.M{"score": bson.M{"$meta": "textScore"}}).
		SetLimit(int64(limit))

	cur, err := coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("text search on %s: %w", collection, err)
	}
	defer cur.Close(ctx)

	var out []ScoredDoc
	for cur.Next(ctx) {
		var doc bson.M
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode text search hit: %w", err)
		}
		score, _ := doc["score"].(float64)
		id := idString(doc["_id"])
		delete(doc, "score")
		out = append(out, ScoredDoc{ID: id, Score: score, Payload: doc})
	}
	return out, cur.Err()
}

func (s *MongoDocStore) FilterScan(ctx context.Context, collection string, filters Filters, limit int) ([]map[string]any, error) {
	coll := s.db.Collection(collection)

	filter := bson.M{}
	for k, v := range filters {
		filter[k] = v
	}

	opts := options.Find().SetSort(bson.M{"_id": 1}).SetLimit(int64(limit))
	cur, err := coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("filter scan on %s: %w", collection, err)
	}
	defer cur.Close(ctx)

	var out []map[string]any
	for cur.Next(ctx) {
		var doc bson.M
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode filter scan hit: %w", err)
		}
		doc["_id"] = idString(doc["_id"])
		out = append(out, doc)
	}
	return out, cur.Err()
}

func (s *MongoDocStore) Hydrate(ctx context.Context, collection string, ids []string) (map[string]map[string]any, error) {
	if len(ids) == 0 {
		return map[string]map[string]any{}, nil
	}
	coll := s.db.Collection(collection)

	objIDs := make([]any, 0, len(ids))
	for _, id := range ids {
		objIDs = append(objIDs, id)
	}

	cur, err := coll.Find(ctx, bson.M{"_id": bson.M{"$in": objIDs}})
	if err != nil {
		return nil, fmt.Errorf("hydrate on %s: %w", collection, err)
	}
	defer cur.Close(ctx)

	out := make(map[string]map[string]any, len(ids))
	for cur.Next(ctx) {
		var doc bson.M
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode hydrate hit: %w", err)
		}
		id := idString(doc["_id"])
		doc["_id"] = id
		out[id] = doc
	}
	return out, cur.Err()
}

func (s *MongoDocStore) Ping(ctx context.Context) error {
	return s.db.Client().Ping(ctx, nil)
}

func idString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	default:
		return fmt.Sprintf("%v", t)
	}
}
