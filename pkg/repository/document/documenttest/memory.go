// Package documenttest provides an in-memory document.Executor for tests and local runs.
package documenttest

import (
	"bytes"
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/nimburion/docstore/pkg/repository/document"
)

// MemoryExecutor keeps collections in memory and evaluates the comparison operators the
// filter package produces. It is safe for concurrent use.
type MemoryExecutor struct {
	mu          sync.Mutex
	collections map[string][]document.Document
	unique      map[string][]string

	failNext  error
	pipelines []mongo.Pipeline
	aggregate func(collection string, pipeline mongo.Pipeline) ([]document.Document, error)
}

// NewMemoryExecutor returns an empty executor.
func NewMemoryExecutor() *MemoryExecutor {
	return &MemoryExecutor{
		collections: map[string][]document.Document{},
		unique:      map[string][]string{},
	}
}

// UniqueIndex makes InsertMany reject documents whose field value is already stored.
func (m *MemoryExecutor) UniqueIndex(collection, field string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unique[collection] = append(m.unique[collection], field)
}

// FailNext makes the next call return err.
func (m *MemoryExecutor) FailNext(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext = err
}

// OnAggregate installs the function answering Aggregate calls.
func (m *MemoryExecutor) OnAggregate(fn func(collection string, pipeline mongo.Pipeline) ([]document.Document, error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.aggregate = fn
}

// Pipelines returns every pipeline passed to Aggregate so far.
func (m *MemoryExecutor) Pipelines() []mongo.Pipeline {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]mongo.Pipeline, len(m.pipelines))
	copy(out, m.pipelines)
	return out
}

// Len returns the number of documents stored in collection.
func (m *MemoryExecutor) Len(collection string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.collections[collection])
}

func (m *MemoryExecutor) takeFailure(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := m.failNext
	m.failNext = nil
	return err
}

func (m *MemoryExecutor) FindOne(ctx context.Context, collection string, f document.Filter, order []document.Sort) (document.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(ctx); err != nil {
		return nil, err
	}
	matched, err := m.match(collection, f)
	if err != nil {
		return nil, err
	}
	sortDocs(matched, order)
	if len(matched) == 0 {
		return nil, document.ErrNoMatch
	}
	return clone(matched[0]), nil
}

func (m *MemoryExecutor) Find(ctx context.Context, collection string, f document.Filter, opts document.FindOptions) ([]document.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(ctx); err != nil {
		return nil, err
	}
	matched, err := m.match(collection, f)
	if err != nil {
		return nil, err
	}
	sortDocs(matched, opts.Sort)

	if opts.Skip > 0 {
		if opts.Skip >= int64(len(matched)) {
			matched = nil
		} else {
			matched = matched[opts.Skip:]
		}
	}
	if opts.Limit > 0 && int64(len(matched)) > opts.Limit {
		matched = matched[:opts.Limit]
	}

	out := make([]document.Document, len(matched))
	for i, d := range matched {
		out[i] = clone(d)
	}
	return out, nil
}

func (m *MemoryExecutor) InsertMany(ctx context.Context, collection string, docs []document.Document) ([]interface{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(ctx); err != nil {
		return nil, err
	}

	ids := make([]interface{}, 0, len(docs))
	for i, d := range docs {
		stored := clone(d)
		if _, ok := stored["_id"]; !ok {
			stored["_id"] = primitive.NewObjectID()
		}
		if field, dup := m.duplicate(collection, stored); dup {
			return ids, duplicateKeyError(i, collection, field)
		}
		m.collections[collection] = append(m.collections[collection], stored)
		ids = append(ids, stored["_id"])
	}
	return ids, nil
}

func (m *MemoryExecutor) UpdateOne(ctx context.Context, collection string, f document.Filter, fields document.Document) (document.UpdateResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(ctx); err != nil {
		return document.UpdateResult{}, err
	}
	for _, d := range m.collections[collection] {
		ok, err := matches(d, f)
		if err != nil {
			return document.UpdateResult{}, err
		}
		if !ok {
			continue
		}
		modified := int64(0)
		for k, v := range fields {
			if old, exists := d[k]; !exists || !reflect.DeepEqual(old, v) {
				modified = 1
			}
			d[k] = v
		}
		return document.UpdateResult{Matched: 1, Modified: modified}, nil
	}
	return document.UpdateResult{}, nil
}

func (m *MemoryExecutor) DeleteMany(ctx context.Context, collection string, f document.Filter) (int64, error) {
	return m.delete(ctx, collection, f, -1)
}

func (m *MemoryExecutor) DeleteOne(ctx context.Context, collection string, f document.Filter) (int64, error) {
	return m.delete(ctx, collection, f, 1)
}

func (m *MemoryExecutor) Count(ctx context.Context, collection string, f document.Filter) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(ctx); err != nil {
		return 0, err
	}
	matched, err := m.match(collection, f)
	return int64(len(matched)), err
}

// Aggregate records pipeline and answers with the OnAggregate function, or no documents.
func (m *MemoryExecutor) Aggregate(ctx context.Context, collection string, pipeline mongo.Pipeline) ([]document.Document, error) {
	m.mu.Lock()
	if err := m.takeFailure(ctx); err != nil {
		m.mu.Unlock()
		return nil, err
	}
	m.pipelines = append(m.pipelines, pipeline)
	fn := m.aggregate
	m.mu.Unlock()

	if fn == nil {
		return []document.Document{}, nil
	}
	return fn(collection, pipeline)
}

func (m *MemoryExecutor) delete(ctx context.Context, collection string, f document.Filter, limit int) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(ctx); err != nil {
		return 0, err
	}
	kept := m.collections[collection][:0:0]
	var removed int64
	for _, d := range m.collections[collection] {
		ok, err := matches(d, f)
		if err != nil {
			return 0, err
		}
		if ok && (limit < 0 || removed < int64(limit)) {
			removed++
			continue
		}
		kept = append(kept, d)
	}
	m.collections[collection] = kept
	return removed, nil
}

func (m *MemoryExecutor) match(collection string, f document.Filter) ([]document.Document, error) {
	var out []document.Document
	for _, d := range m.collections[collection] {
		ok, err := matches(d, f)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *MemoryExecutor) duplicate(collection string, doc document.Document) (string, bool) {
	fields := append([]string{"_id"}, m.unique[collection]...)
	for _, field := range fields {
		v, ok := doc[field]
		if !ok {
			continue
		}
		for _, existing := range m.collections[collection] {
			if ev, ok := existing[field]; ok && compare(ev, v) == 0 {
				return field, true
			}
		}
	}
	return "", false
}

func duplicateKeyError(index int, collection, field string) error {
	return mongo.WriteException{
		WriteErrors: mongo.WriteErrors{{
			Index:   index,
			Code:    11000,
			Message: fmt.Sprintf("E11000 duplicate key error collection: %s index: %s_1", collection, field),
		}},
	}
}

func matches(doc document.Document, f document.Filter) (bool, error) {
	for field, cond := range f {
		actual, present := lookup(doc, field)
		ops, isOps := cond.(map[string]interface{})
		if !isOps {
			if !present || compare(actual, cond) != 0 {
				return false, nil
			}
			continue
		}
		for op, want := range ops {
			ok, err := evaluate(op, actual, present, want)
			if err != nil || !ok {
				return false, err
			}
		}
	}
	return true, nil
}

func evaluate(op string, actual interface{}, present bool, want interface{}) (bool, error) {
	switch op {
	case "$eq":
		return present && compare(actual, want) == 0, nil
	case "$ne":
		return !present || compare(actual, want) != 0, nil
	case "$in":
		list, ok := want.([]interface{})
		if !ok {
			return false, fmt.Errorf("$in needs an array")
		}
		if !present {
			return false, nil
		}
		for _, item := range list {
			if compare(actual, item) == 0 {
				return true, nil
			}
		}
		return false, nil
	case "$gt", "$gte", "$lt", "$lte":
		if !present || !sameClass(actual, want) {
			return false, nil
		}
		c := compare(actual, want)
		switch op {
		case "$gt":
			return c > 0, nil
		case "$gte":
			return c >= 0, nil
		case "$lt":
			return c < 0, nil
		default:
			return c <= 0, nil
		}
	default:
		return false, fmt.Errorf("unknown operator %s", op)
	}
}

func lookup(doc map[string]interface{}, path string) (interface{}, bool) {
	parts := strings.Split(path, ".")
	var cur interface{} = doc
	for _, p := range parts {
		switch m := cur.(type) {
		case document.Document:
			v, ok := m[p]
			if !ok {
				return nil, false
			}
			cur = v
		case map[string]interface{}:
			v, ok := m[p]
			if !ok {
				return nil, false
			}
			cur = v
		default:
			return nil, false
		}
	}
	return cur, true
}

type class int

const (
	classNull class = iota
	classNumber
	classString
	classObjectID
	classBool
	classDate
	classOther
)

func classify(v interface{}) (class, float64) {
	switch n := v.(type) {
	case nil:
		return classNull, 0
	case int:
		return classNumber, float64(n)
	case int32:
		return classNumber, float64(n)
	case int64:
		return classNumber, float64(n)
	case float32:
		return classNumber, float64(n)
	case float64:
		return classNumber, n
	case string:
		return classString, 0
	case primitive.ObjectID:
		return classObjectID, 0
	case bool:
		return classBool, 0
	case time.Time, primitive.DateTime:
		return classDate, 0
	default:
		return classOther, 0
	}
}

func sameClass(a, b interface{}) bool {
	ca, _ := classify(a)
	cb, _ := classify(b)
	return ca == cb && ca != classOther
}

// compare orders values the way the store brackets types: first by type class, then by value.
func compare(a, b interface{}) int {
	ca, na := classify(a)
	cb, nb := classify(b)
	if ca != cb {
		return int(ca) - int(cb)
	}
	switch ca {
	case classNull:
		return 0
	case classNumber:
		switch {
		case na < nb:
			return -1
		case na > nb:
			return 1
		}
		return 0
	case classString:
		return strings.Compare(a.(string), b.(string))
	case classObjectID:
		x, y := a.(primitive.ObjectID), b.(primitive.ObjectID)
		return bytes.Compare(x[:], y[:])
	case classBool:
		x, y := a.(bool), b.(bool)
		switch {
		case x == y:
			return 0
		case !x:
			return -1
		}
		return 1
	case classDate:
		x, y := asTime(a), asTime(b)
		switch {
		case x.Before(y):
			return -1
		case x.After(y):
			return 1
		}
		return 0
	default:
		if reflect.DeepEqual(a, b) {
			return 0
		}
		return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
	}
}

func asTime(v interface{}) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t
	case primitive.DateTime:
		return t.Time()
	}
	return time.Time{}
}

func sortDocs(docs []document.Document, order []document.Sort) {
	if len(order) == 0 {
		return
	}
	sort.SliceStable(docs, func(i, j int) bool {
		for _, s := range order {
			a, _ := lookup(docs[i], s.Field)
			b, _ := lookup(docs[j], s.Field)
			c := compare(a, b)
			if c == 0 {
				continue
			}
			if s.Order == document.SortDesc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}

func clone(d document.Document) document.Document {
	out := make(document.Document, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}
