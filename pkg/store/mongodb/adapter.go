package mongodb

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/nimburion/docstore/pkg/observability/logger"
)

// ErrClosed is returned by every operation once Close has been called.
var ErrClosed = errors.New("mongodb adapter is closed")

// Adapter provides MongoDB connectivity and collection-level operations.
type Adapter struct {
	client   *mongo.Client
	database string
	logger   logger.Logger
	timeout  time.Duration
	mu       sync.RWMutex
	closed   bool
}

// Config holds MongoDB adapter configuration.
type Config struct {
	URL              string
	Database         string
	ConnectTimeout   time.Duration
	OperationTimeout time.Duration
	MaxPoolSize      uint64
}

// Validate checks the required fields.
func (c Config) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("mongodb URL is required")
	}
	if c.Database == "" {
		return fmt.Errorf("mongodb database is required")
	}
	return nil
}

// FindOptions controls ordering and windowing for Find.
type FindOptions struct {
	Sort  bson.D
	Skip  int64
	Limit int64
}

// Cosa fa: inizializza un adapter MongoDB e verifica connettività via ping.
// Cosa NON fa: non crea indici o collezioni automaticamente.
// Esempio minimo: adapter, err := mongodb.NewAdapter(cfg, log)
func NewAdapter(cfg Config, log logger.Logger) (*Adapter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 5 * time.Second
	}
	if cfg.OperationTimeout <= 0 {
		cfg.OperationTimeout = 5 * time.Second
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
	defer cancel()

	clientOpts := options.Client().ApplyURI(cfg.URL)
	if cfg.MaxPoolSize > 0 {
		clientOpts.SetMaxPoolSize(cfg.MaxPoolSize)
	}
	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	log.Info("MongoDB connection established", "database", cfg.Database)
	return &Adapter{
		client:   client,
		database: cfg.Database,
		logger:   log,
		timeout:  cfg.OperationTimeout,
	}, nil
}

// Client exposes the underlying driver client.
func (a *Adapter) Client() *mongo.Client {
	return a.client
}

// Database returns the configured database handle.
func (a *Adapter) Database() *mongo.Database {
	return a.client.Database(a.database)
}

// Collection returns a handle for name in the configured database.
func (a *Adapter) Collection(name string) *mongo.Collection {
	return a.Database().Collection(name)
}

func (a *Adapter) Ping(ctx context.Context) error {
	if err := a.ensureOpen(); err != nil {
		return err
	}
	return a.client.Ping(ctx, readpref.Primary())
}

func (a *Adapter) HealthCheck(ctx context.Context) error {
	hcCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := a.Ping(hcCtx); err != nil {
		a.logger.Error("MongoDB health check failed", "error", err)
		return fmt.Errorf("mongodb health check failed: %w", err)
	}
	return nil
}

// Close disconnects the client. Calling it more than once is a no-op.
func (a *Adapter) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	a.mu.Unlock()

	if a.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("failed to close mongodb connection: %w", err)
	}
	a.logger.Info("MongoDB connection closed", "database", a.database)
	return nil
}

// FindOne decodes the first document matching filter into result.
// It returns mongo.ErrNoDocuments when nothing matches.
func (a *Adapter) FindOne(ctx context.Context, collection string, filter interface{}, sort bson.D, result interface{}) error {
	if err := a.ensureOpen(); err != nil {
		return err
	}
	opCtx, cancel := a.withOperationTimeout(ctx)
	defer cancel()

	opts := options.FindOne()
	if len(sort) > 0 {
		opts.SetSort(sort)
	}
	return a.Collection(collection).FindOne(opCtx, filter, opts).Decode(result)
}

// Find decodes every document matching filter into results, which must be a pointer to a slice.
func (a *Adapter) Find(ctx context.Context, collection string, filter interface{}, fo FindOptions, results interface{}) error {
	if err := a.ensureOpen(); err != nil {
		return err
	}
	opCtx, cancel := a.withOperationTimeout(ctx)
	defer cancel()

	opts := options.Find()
	if len(fo.Sort) > 0 {
		opts.SetSort(fo.Sort)
	}
	if fo.Skip > 0 {
		opts.SetSkip(fo.Skip)
	}
	if fo.Limit > 0 {
		opts.SetLimit(fo.Limit)
	}

	cursor, err := a.Collection(collection).Find(opCtx, filter, opts)
	if err != nil {
		return err
	}
	return cursor.All(opCtx, results)
}

// Cosa fa: inserisce un documento nella collection target.
// Cosa NON fa: non valida lo schema del documento.
// Esempio minimo: _, err := adapter.InsertOne(ctx, "users", doc)
func (a *Adapter) InsertOne(ctx context.Context, collection string, doc interface{}) (*mongo.InsertOneResult, error) {
	if err := a.ensureOpen(); err != nil {
		return nil, err
	}
	opCtx, cancel := a.withOperationTimeout(ctx)
	defer cancel()
	return a.Collection(collection).InsertOne(opCtx, doc)
}

// InsertMany inserts docs in order and stops at the first failure.
func (a *Adapter) InsertMany(ctx context.Context, collection string, docs []interface{}) (*mongo.InsertManyResult, error) {
	if err := a.ensureOpen(); err != nil {
		return nil, err
	}
	opCtx, cancel := a.withOperationTimeout(ctx)
	defer cancel()
	return a.Collection(collection).InsertMany(opCtx, docs, options.InsertMany().SetOrdered(true))
}

func (a *Adapter) UpdateOne(ctx context.Context, collection string, filter, update interface{}) (*mongo.UpdateResult, error) {
	if err := a.ensureOpen(); err != nil {
		return nil, err
	}
	opCtx, cancel := a.withOperationTimeout(ctx)
	defer cancel()
	return a.Collection(collection).UpdateOne(opCtx, filter, update)
}

func (a *Adapter) DeleteOne(ctx context.Context, collection string, filter interface{}) (*mongo.DeleteResult, error) {
	if err := a.ensureOpen(); err != nil {
		return nil, err
	}
	opCtx, cancel := a.withOperationTimeout(ctx)
	defer cancel()
	return a.Collection(collection).DeleteOne(opCtx, filter)
}

func (a *Adapter) DeleteMany(ctx context.Context, collection string, filter interface{}) (*mongo.DeleteResult, error) {
	if err := a.ensureOpen(); err != nil {
		return nil, err
	}
	opCtx, cancel := a.withOperationTimeout(ctx)
	defer cancel()
	return a.Collection(collection).DeleteMany(opCtx, filter)
}

func (a *Adapter) CountDocuments(ctx context.Context, collection string, filter interface{}) (int64, error) {
	if err := a.ensureOpen(); err != nil {
		return 0, err
	}
	opCtx, cancel := a.withOperationTimeout(ctx)
	defer cancel()
	return a.Collection(collection).CountDocuments(opCtx, filter)
}

// Aggregate runs pipeline against collection and decodes every output document into results.
func (a *Adapter) Aggregate(ctx context.Context, collection string, pipeline mongo.Pipeline, results interface{}) error {
	if err := a.ensureOpen(); err != nil {
		return err
	}
	opCtx, cancel := a.withOperationTimeout(ctx)
	defer cancel()

	cursor, err := a.Collection(collection).Aggregate(opCtx, pipeline)
	if err != nil {
		return err
	}
	return cursor.All(opCtx, results)
}

// Cosa fa: incrementa atomicamente un campo numerico, creando il documento se assente.
// Cosa NON fa: non garantisce l'assenza di buchi nella sequenza in caso di errori del chiamante.
// Esempio minimo: err := adapter.IncrementField(ctx, "usercounters", bson.M{"_id": "countUsers"}, "sequence", &out)
func (a *Adapter) IncrementField(ctx context.Context, collection string, filter interface{}, field string, result interface{}) error {
	if err := a.ensureOpen(); err != nil {
		return err
	}
	opCtx, cancel := a.withOperationTimeout(ctx)
	defer cancel()

	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)
	update := bson.M{"$inc": bson.M{field: 1}}
	return a.Collection(collection).FindOneAndUpdate(opCtx, filter, update, opts).Decode(result)
}

func (a *Adapter) EnsureCollection(ctx context.Context, name string) error {
	if err := a.ensureOpen(); err != nil {
		return err
	}
	opCtx, cancel := a.withOperationTimeout(ctx)
	defer cancel()
	_, err := a.Database().Collection(name).CountDocuments(opCtx, bson.D{})
	return err
}

// EnsureIndex creates an ascending index on keys, unique when requested.
func (a *Adapter) EnsureIndex(ctx context.Context, collection string, unique bool, keys ...string) error {
	if err := a.ensureOpen(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return fmt.Errorf("at least one index key is required")
	}
	opCtx, cancel := a.withOperationTimeout(ctx)
	defer cancel()

	spec := bson.D{}
	for _, k := range keys {
		spec = append(spec, bson.E{Key: k, Value: 1})
	}
	_, err := a.Collection(collection).Indexes().CreateOne(opCtx, mongo.IndexModel{
		Keys:    spec,
		Options: options.Index().SetUnique(unique),
	})
	return err
}

func (a *Adapter) ensureOpen() error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return ErrClosed
	}
	return nil
}

func (a *Adapter) withOperationTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.timeout <= 0 {
		return ctx, func() {}
	}
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, a.timeout)
}
