package document

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
)

// Document is a schemaless record.
type Document map[string]interface{}

// Filter is a store-native match expression, e.g. {"amount": {"$gt": 100}}.
type Filter map[string]interface{}

// SortOrder defines the direction of sorting.
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// Sort specifies one sort key.
type Sort struct {
	Field string
	Order SortOrder
}

// FindOptions controls ordering and windowing of Find.
type FindOptions struct {
	Sort  []Sort
	Skip  int64
	Limit int64
}

// Page is one window of a paginated listing.
type Page struct {
	PageNumber   int64      `json:"pageNumber"`
	PageSize     int64      `json:"pageSize"`
	TotalRecords int64      `json:"totalRecords"`
	Records      []Document `json:"records"`
}

// TotalPages returns the number of pages needed to cover TotalRecords.
func (p Page) TotalPages() int64 {
	if p.PageSize <= 0 {
		return 0
	}
	return (p.TotalRecords + p.PageSize - 1) / p.PageSize
}

// InsertResult reports a bulk insert.
type InsertResult struct {
	InsertedCount int64         `json:"insertedCount"`
	InsertedIDs   []interface{} `json:"insertedIds"`
}

// UpdateResult reports a single-document update.
type UpdateResult struct {
	Matched  int64 `json:"matched"`
	Modified int64 `json:"modified"`
}

// ErrNoMatch is returned by executors when a single-document lookup finds nothing.
var ErrNoMatch = errors.New("no matching document")

// Executor is the store seam the Repository drives. Implementations receive
// normalised collection names and store-native filters.
type Executor interface {
	FindOne(ctx context.Context, collection string, filter Filter, sort []Sort) (Document, error)
	Find(ctx context.Context, collection string, filter Filter, opts FindOptions) ([]Document, error)
	InsertMany(ctx context.Context, collection string, docs []Document) ([]interface{}, error)
	// UpdateOne merges fields into the first document matching filter.
	UpdateOne(ctx context.Context, collection string, filter Filter, fields Document) (UpdateResult, error)
	DeleteMany(ctx context.Context, collection string, filter Filter) (int64, error)
	DeleteOne(ctx context.Context, collection string, filter Filter) (int64, error)
	Count(ctx context.Context, collection string, filter Filter) (int64, error)
	Aggregate(ctx context.Context, collection string, pipeline mongo.Pipeline) ([]Document, error)
}

// Recorder receives one observation per repository call.
type Recorder interface {
	ObserveOperation(method, collection, outcome string, duration time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) ObserveOperation(string, string, string, time.Duration) {}
