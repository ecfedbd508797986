package document

import (
	"reflect"
	"testing"

	"github.com/nimburion/docstore/pkg/filter"
)

func TestPredicateFilter(t *testing.T) {
	tests := []struct {
		expr string
		want Filter
	}{
		{"amount $gt 100", Filter{"amount": map[string]interface{}{"$gt": int64(100)}}},
		{"productId $eq str:0123", Filter{"productId": map[string]interface{}{"$eq": "0123"}}},
		{"status $in a,b", Filter{"status": map[string]interface{}{"$in": []interface{}{"a", "b"}}}},
	}
	for _, tt := range tests {
		got := PredicateFilter(filter.MustParse(tt.expr))
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("PredicateFilter(%q) = %#v, want %#v", tt.expr, got, tt.want)
		}
	}
}

func TestAndMergesSameField(t *testing.T) {
	got := And(
		filter.MustParse("amount $gte 10"),
		filter.MustParse("amount $lt 20"),
		filter.MustParse("status $ne archived"),
	)
	want := Filter{
		"amount": map[string]interface{}{"$gte": int64(10), "$lt": int64(20)},
		"status": map[string]interface{}{"$ne": "archived"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("And() = %#v, want %#v", got, want)
	}
}
