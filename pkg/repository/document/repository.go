package document

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.opentelemetry.io/otel/trace"

	"github.com/nimburion/docstore/pkg/failure"
	"github.com/nimburion/docstore/pkg/observability/logger"
	"github.com/nimburion/docstore/pkg/observability/tracing"
)

const (
	defaultOwnerField   = "userId"
	defaultCreatedField = "createdAt"
	idField             = "_id"
)

// Repository provides generic document operations over named collections.
// Filter expressions are parsed with the filter package; only the supported comparison
// operators ever reach the store.
type Repository struct {
	exec         Executor
	logger       logger.Logger
	recorder     Recorder
	ownerField   string
	createdField string
	system       string
}

// Option configures a Repository.
type Option func(*Repository)

// WithOwnerField sets the field CountByOwner matches on. Default "userId".
func WithOwnerField(field string) Option {
	return func(r *Repository) { r.ownerField = field }
}

// WithCreatedField sets the creation timestamp field used for ordering. Default "createdAt".
func WithCreatedField(field string) Option {
	return func(r *Repository) { r.createdField = field }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(rec Recorder) Option {
	return func(r *Repository) {
		if rec != nil {
			r.recorder = rec
		}
	}
}

// Cosa fa: costruisce un repository generico sopra un Executor.
// Cosa NON fa: non apre connessioni; l'Executor arriva già pronto.
// Esempio minimo: repo, err := document.NewRepository(exec, log, document.WithRecorder(reg.Store))
func NewRepository(exec Executor, log logger.Logger, opts ...Option) (*Repository, error) {
	if exec == nil {
		return nil, fmt.Errorf("executor is required")
	}
	if log == nil {
		log = logger.NewNop()
	}
	r := &Repository{
		exec:         exec,
		logger:       log,
		recorder:     nopRecorder{},
		ownerField:   defaultOwnerField,
		createdField: defaultCreatedField,
		system:       "mongodb",
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// newestFirst is the total order used for listings: creation time, then _id, both descending.
func (r *Repository) newestFirst() []Sort {
	return []Sort{
		{Field: r.createdField, Order: SortDesc},
		{Field: idField, Order: SortDesc},
	}
}

// GetOne returns the first document matching expr.
func (r *Repository) GetOne(ctx context.Context, collection, expr string) (Document, error) {
	var doc Document
	err := r.run(ctx, "get_one", collection, tracing.SpanOperationDBQuery, expr, func(ctx context.Context, coll string) error {
		f, err := parseExpression(expr)
		if err != nil {
			return err
		}
		doc, err = r.exec.FindOne(ctx, coll, f, nil)
		return err
	})
	return doc, err
}

// GetMany returns every document matching expr, newest first.
func (r *Repository) GetMany(ctx context.Context, collection, expr string) ([]Document, error) {
	var docs []Document
	err := r.run(ctx, "get_many", collection, tracing.SpanOperationDBQuery, expr, func(ctx context.Context, coll string) error {
		f, err := parseExpression(expr)
		if err != nil {
			return err
		}
		docs, err = r.exec.Find(ctx, coll, f, FindOptions{Sort: r.newestFirst()})
		return err
	})
	if docs == nil && err == nil {
		docs = []Document{}
	}
	return docs, err
}

// GetByID returns the document whose _id is the given hex ObjectID.
func (r *Repository) GetByID(ctx context.Context, collection, id string) (Document, error) {
	var doc Document
	err := r.run(ctx, "get_by_id", collection, tracing.SpanOperationDBQuery, "", func(ctx context.Context, coll string) error {
		oid, err := parseObjectID(id)
		if err != nil {
			return err
		}
		doc, err = r.exec.FindOne(ctx, coll, Filter{idField: oid}, nil)
		return err
	})
	return doc, err
}

// InsertMany stores docs in order. A uniqueness violation fails with DuplicateKey.
func (r *Repository) InsertMany(ctx context.Context, collection string, docs []Document) (InsertResult, error) {
	var res InsertResult
	err := r.run(ctx, "insert_many", collection, tracing.SpanOperationDBInsert, "", func(ctx context.Context, coll string) error {
		if len(docs) == 0 {
			return failure.New(failure.KindInvalid, "at least one document is required")
		}
		ids, err := r.exec.InsertMany(ctx, coll, docs)
		if err != nil {
			return err
		}
		res = InsertResult{InsertedCount: int64(len(ids)), InsertedIDs: ids}
		return nil
	})
	return res, err
}

// UpdateOne merges fields into the first document matching expr. Fields not named are kept.
func (r *Repository) UpdateOne(ctx context.Context, collection, expr string, fields Document) (UpdateResult, error) {
	var res UpdateResult
	err := r.run(ctx, "update_one", collection, tracing.SpanOperationDBUpdate, expr, func(ctx context.Context, coll string) error {
		f, err := parseExpression(expr)
		if err != nil {
			return err
		}
		if len(fields) == 0 {
			return failure.New(failure.KindInvalid, "update payload is empty")
		}
		if _, ok := fields[idField]; ok {
			return failure.New(failure.KindInvalid, "_id cannot be updated")
		}
		res, err = r.exec.UpdateOne(ctx, coll, f, fields)
		return err
	})
	return res, err
}

// DeleteMany removes every document matching expr and returns how many were removed.
func (r *Repository) DeleteMany(ctx context.Context, collection, expr string) (int64, error) {
	var n int64
	err := r.run(ctx, "delete_many", collection, tracing.SpanOperationDBDelete, expr, func(ctx context.Context, coll string) error {
		f, err := parseExpression(expr)
		if err != nil {
			return err
		}
		n, err = r.exec.DeleteMany(ctx, coll, f)
		return err
	})
	return n, err
}

// DeleteByID removes the document with the given hex ObjectID. A missing document is NotFound.
func (r *Repository) DeleteByID(ctx context.Context, collection, id string) (int64, error) {
	var n int64
	err := r.run(ctx, "delete_by_id", collection, tracing.SpanOperationDBDelete, "", func(ctx context.Context, coll string) error {
		oid, err := parseObjectID(id)
		if err != nil {
			return err
		}
		n, err = r.exec.DeleteOne(ctx, coll, Filter{idField: oid})
		if err != nil {
			return err
		}
		if n == 0 {
			return failure.Newf(failure.KindNotFound, "document %s not found", id)
		}
		return nil
	})
	return n, err
}

// CountByOwner counts documents whose owner field equals ownerID.
func (r *Repository) CountByOwner(ctx context.Context, collection string, ownerID interface{}) (int64, error) {
	var n int64
	err := r.run(ctx, "count_by_owner", collection, tracing.SpanOperationDBQuery, "", func(ctx context.Context, coll string) error {
		var err error
		n, err = r.exec.Count(ctx, coll, Filter{r.ownerField: ownerID})
		return err
	})
	return n, err
}

// GetLatest returns the most recently created document matching expr.
func (r *Repository) GetLatest(ctx context.Context, collection, expr string) (Document, error) {
	var doc Document
	err := r.run(ctx, "get_latest", collection, tracing.SpanOperationDBQuery, expr, func(ctx context.Context, coll string) error {
		f, err := parseExpression(expr)
		if err != nil {
			return err
		}
		doc, err = r.exec.FindOne(ctx, coll, f, r.newestFirst())
		return err
	})
	return doc, err
}

// Paginate returns page pageNumber (1-based) of the documents matching f, newest first.
// Both the window and TotalRecords are computed against the same filter.
func (r *Repository) Paginate(ctx context.Context, collection string, f Filter, pageNumber, pageSize int64) (Page, error) {
	var page Page
	err := r.run(ctx, "paginate", collection, tracing.SpanOperationDBQuery, "", func(ctx context.Context, coll string) error {
		var err error
		page, err = r.paginate(ctx, coll, f, pageNumber, pageSize)
		return err
	})
	return page, err
}

// PaginateWhere is Paginate with a filter expression.
func (r *Repository) PaginateWhere(ctx context.Context, collection, expr string, pageNumber, pageSize int64) (Page, error) {
	var page Page
	err := r.run(ctx, "paginate", collection, tracing.SpanOperationDBQuery, expr, func(ctx context.Context, coll string) error {
		f, err := parseExpression(expr)
		if err != nil {
			return err
		}
		page, err = r.paginate(ctx, coll, f, pageNumber, pageSize)
		return err
	})
	return page, err
}

func (r *Repository) paginate(ctx context.Context, coll string, f Filter, pageNumber, pageSize int64) (Page, error) {
	if pageNumber < 1 {
		return Page{}, failure.Newf(failure.KindInvalid, "page number must be >= 1, got %d", pageNumber)
	}
	if pageSize < 1 {
		return Page{}, failure.Newf(failure.KindInvalid, "page size must be >= 1, got %d", pageSize)
	}
	if f == nil {
		f = Filter{}
	}

	total, err := r.exec.Count(ctx, coll, f)
	if err != nil {
		return Page{}, err
	}
	// a skip past MaxInt64 is past any collection
	if pageNumber-1 > math.MaxInt64/pageSize {
		return Page{
			PageNumber:   pageNumber,
			PageSize:     pageSize,
			TotalRecords: total,
			Records:      []Document{},
		}, nil
	}
	docs, err := r.exec.Find(ctx, coll, f, FindOptions{
		Sort:  r.newestFirst(),
		Skip:  (pageNumber - 1) * pageSize,
		Limit: pageSize,
	})
	if err != nil {
		return Page{}, err
	}
	if docs == nil {
		docs = []Document{}
	}
	return Page{
		PageNumber:   pageNumber,
		PageSize:     pageSize,
		TotalRecords: total,
		Records:      docs,
	}, nil
}

// Aggregate runs a store-native pipeline against collection.
func (r *Repository) Aggregate(ctx context.Context, collection string, pipeline mongo.Pipeline) ([]Document, error) {
	var docs []Document
	err := r.run(ctx, "aggregate", collection, tracing.SpanOperationDBAggregate, "", func(ctx context.Context, coll string) error {
		var err error
		docs, err = r.exec.Aggregate(ctx, coll, pipeline)
		return err
	})
	if docs == nil && err == nil {
		docs = []Document{}
	}
	return docs, err
}

// run wraps one repository call with collection normalisation, a span, metrics, error
// classification and logging.
func (r *Repository) run(
	ctx context.Context,
	method, collection string,
	op tracing.SpanOperation,
	statement string,
	fn func(ctx context.Context, coll string) error,
) error {
	start := time.Now()
	coll, err := NormalizeCollection(collection)
	if err != nil {
		err = classify("repository."+method, err)
		r.finish(ctx, nil, method, collection, start, err)
		return err
	}

	spanOpts := []tracing.DatabaseSpanOption{
		tracing.WithDBSystem(r.system),
		tracing.WithDBCollection(coll),
		tracing.WithDBMethod(method),
	}
	if statement != "" {
		spanOpts = append(spanOpts, tracing.WithDBStatement(statement))
	}
	ctx, span := tracing.StartDatabaseSpan(ctx, op, spanOpts...)
	defer span.End()

	err = classify("repository."+method, fn(ctx, coll))
	r.finish(ctx, span, method, coll, start, err)
	return err
}

func (r *Repository) finish(ctx context.Context, span trace.Span, method, coll string, start time.Time, err error) {
	elapsed := time.Since(start)
	r.recorder.ObserveOperation(method, coll, outcome(err), elapsed)

	if span != nil {
		if err != nil {
			tracing.RecordError(span, err)
		} else {
			tracing.RecordSuccess(span)
		}
	}
	if err == nil {
		return
	}

	log := r.logger.WithContext(ctx)
	fields := []any{"method", method, "collection", coll, "kind", string(failure.KindOf(err)), "duration", elapsed, "error", err}
	switch failure.KindOf(err) {
	case failure.KindNotFound, failure.KindMalformedFilter, failure.KindUnsupportedOperator,
		failure.KindInvalid, failure.KindDuplicateKey, failure.KindCanceled:
		log.Debug("repository operation rejected", fields...)
	case failure.KindTimeout, failure.KindStoreUnavailable:
		log.Warn("repository operation failed", fields...)
	default:
		log.Error("repository operation failed", fields...)
	}
}

func parseObjectID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, failure.Newf(failure.KindInvalid, "invalid document id %q", id)
	}
	return oid, nil
}
