// Package service implements the user and product operations on top of the generic document
// repository. Payloads are validated here and every failure carries a failure kind.
package service

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/nimburion/docstore/pkg/filter"
)

const (
	usersCollection    = "users"
	productsCollection = "products"

	// UsersEntity and ProductsEntity name the identifier bindings the services draw from.
	UsersEntity    = "users"
	ProductsEntity = "products"

	// DefaultPageSize is the listing window used by List.
	DefaultPageSize int64 = 50
)

// IDSource mints identifiers per entity. *identifier.Registry satisfies it.
type IDSource interface {
	Next(ctx context.Context, entity string) (int64, error)
}

func equals(field string, v filter.Value) string {
	return filter.MustWhere(field, filter.Eq, v).String()
}

func asInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int32:
		return int64(n), true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	default:
		return 0, false
	}
}

func asTime(v interface{}) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t.UTC()
	case primitive.DateTime:
		return t.Time().UTC()
	default:
		return time.Time{}
	}
}

func asString(v interface{}) string {
	s, _ := v.(string)
	return s
}
