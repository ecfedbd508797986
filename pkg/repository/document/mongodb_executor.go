package document

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	mongostore "github.com/nimburion/docstore/pkg/store/mongodb"
)

// MongoDBExecutor adapts the store/mongodb adapter to Executor.
type MongoDBExecutor struct {
	adapter *mongostore.Adapter
}

// NewMongoDBExecutor creates a new MongoDBExecutor instance.
func NewMongoDBExecutor(adapter *mongostore.Adapter) (*MongoDBExecutor, error) {
	if adapter == nil {
		return nil, fmt.Errorf("mongodb adapter is required")
	}
	return &MongoDBExecutor{adapter: adapter}, nil
}

func (e *MongoDBExecutor) FindOne(ctx context.Context, collection string, filter Filter, sort []Sort) (Document, error) {
	out := bson.M{}
	if err := e.adapter.FindOne(ctx, collection, bson.M(filter), sortSpec(sort), &out); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNoMatch
		}
		return nil, err
	}
	return Document(out), nil
}

func (e *MongoDBExecutor) Find(ctx context.Context, collection string, filter Filter, opts FindOptions) ([]Document, error) {
	var out []bson.M
	err := e.adapter.Find(ctx, collection, bson.M(filter), mongostore.FindOptions{
		Sort:  sortSpec(opts.Sort),
		Skip:  opts.Skip,
		Limit: opts.Limit,
	}, &out)
	if err != nil {
		return nil, err
	}
	return toDocuments(out), nil
}

func (e *MongoDBExecutor) InsertMany(ctx context.Context, collection string, docs []Document) ([]interface{}, error) {
	payload := make([]interface{}, len(docs))
	for i, d := range docs {
		payload[i] = bson.M(d)
	}
	res, err := e.adapter.InsertMany(ctx, collection, payload)
	if err != nil {
		return nil, err
	}
	return res.InsertedIDs, nil
}

func (e *MongoDBExecutor) UpdateOne(ctx context.Context, collection string, filter Filter, fields Document) (UpdateResult, error) {
	res, err := e.adapter.UpdateOne(ctx, collection, bson.M(filter), bson.M{"$set": bson.M(fields)})
	if err != nil {
		return UpdateResult{}, err
	}
	return UpdateResult{Matched: res.MatchedCount, Modified: res.ModifiedCount}, nil
}

func (e *MongoDBExecutor) DeleteMany(ctx context.Context, collection string, filter Filter) (int64, error) {
	res, err := e.adapter.DeleteMany(ctx, collection, bson.M(filter))
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func (e *MongoDBExecutor) DeleteOne(ctx context.Context, collection string, filter Filter) (int64, error) {
	res, err := e.adapter.DeleteOne(ctx, collection, bson.M(filter))
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func (e *MongoDBExecutor) Count(ctx context.Context, collection string, filter Filter) (int64, error) {
	return e.adapter.CountDocuments(ctx, collection, bson.M(filter))
}

func (e *MongoDBExecutor) Aggregate(ctx context.Context, collection string, pipeline mongo.Pipeline) ([]Document, error) {
	var out []bson.M
	if err := e.adapter.Aggregate(ctx, collection, pipeline, &out); err != nil {
		return nil, err
	}
	return toDocuments(out), nil
}

func sortSpec(sort []Sort) bson.D {
	if len(sort) == 0 {
		return nil
	}
	spec := make(bson.D, 0, len(sort))
	for _, s := range sort {
		dir := 1
		if s.Order == SortDesc {
			dir = -1
		}
		spec = append(spec, bson.E{Key: s.Field, Value: dir})
	}
	return spec
}

func toDocuments(in []bson.M) []Document {
	out := make([]Document, len(in))
	for i, m := range in {
		out[i] = Document(m)
	}
	return out
}
