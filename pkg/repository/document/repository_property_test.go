package document_test

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/nimburion/docstore/pkg/observability/logger"
	"github.com/nimburion/docstore/pkg/repository/document"
	"github.com/nimburion/docstore/pkg/repository/document/documenttest"
)

// Property 5: Pagination partitions the result set
//
// For any number of documents (including creation-time ties) and any page size, concatenating
// every page reproduces the full newest-first listing with no duplicates and no gaps.
func TestProperty_PaginationPartitions(t *testing.T) {
	properties := gopter.NewProperties(gopter.DefaultTestParameters())

	properties.Property("pages concatenate to the full listing", prop.ForAll(
		func(offsets []int, pageSize int64) bool {
			exec := documenttest.NewMemoryExecutor()
			repo, err := document.NewRepository(exec, logger.NewNop())
			if err != nil {
				return false
			}
			ctx := context.Background()

			if len(offsets) > 0 {
				docs := make([]document.Document, len(offsets))
				for i, off := range offsets {
					docs[i] = document.Document{
						"seq":       i,
						"createdAt": base.Add(time.Duration(off) * time.Second),
					}
				}
				if _, err := repo.InsertMany(ctx, "items", docs); err != nil {
					return false
				}
			}

			seen := map[primitive.ObjectID]bool{}
			var lastCreated time.Time
			collected := 0
			pages := int64(len(offsets))/pageSize + 2
			for n := int64(1); n <= pages; n++ {
				page, err := repo.Paginate(ctx, "items", nil, n, pageSize)
				if err != nil {
					t.Logf("Paginate: %v", err)
					return false
				}
				if page.TotalRecords != int64(len(offsets)) || int64(len(page.Records)) > pageSize {
					return false
				}
				for _, d := range page.Records {
					id := d["_id"].(primitive.ObjectID)
					if seen[id] {
						return false
					}
					seen[id] = true
					created := d["createdAt"].(time.Time)
					if collected > 0 && created.After(lastCreated) {
						return false
					}
					lastCreated = created
					collected++
				}
			}
			return collected == len(offsets)
		},
		gen.SliceOf(gen.IntRange(0, 5)),
		gen.Int64Range(1, 7),
	))

	properties.TestingRun(t)
}

// Property 6: Bulk delete is idempotent
func TestProperty_DeleteManyIdempotent(t *testing.T) {
	properties := gopter.NewProperties(gopter.DefaultTestParameters())

	properties.Property("second delete removes nothing", prop.ForAll(
		func(amounts []int, threshold int) bool {
			exec := documenttest.NewMemoryExecutor()
			repo, _ := document.NewRepository(exec, logger.NewNop())
			ctx := context.Background()

			if len(amounts) > 0 {
				docs := make([]document.Document, len(amounts))
				for i, a := range amounts {
					docs[i] = document.Document{"amount": a}
				}
				if _, err := repo.InsertMany(ctx, "orders", docs); err != nil {
					return false
				}
			}

			expr := "amount $lt " + strconv.Itoa(threshold)
			want := 0
			for _, a := range amounts {
				if a < threshold {
					want++
				}
			}
			first, err := repo.DeleteMany(ctx, "orders", expr)
			if err != nil || first != int64(want) {
				return false
			}
			second, err := repo.DeleteMany(ctx, "orders", expr)
			if err != nil || second != 0 {
				return false
			}
			left, err := repo.GetMany(ctx, "orders", expr)
			return err == nil && len(left) == 0
		},
		gen.SliceOf(gen.IntRange(-100, 100)),
		gen.IntRange(-100, 100),
	))

	properties.TestingRun(t)
}
