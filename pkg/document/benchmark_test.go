// ABOUTME: Performance benchmarks for the document write pipeline
// ABOUTME: Measures create and search cost against the in-memory store

package document

import (
	"context"
	"fmt"
	"testing"

	"github.com/nainya/doccatalog/pkg/query"
	"github.com/nainya/doccatalog/pkg/store/memstore"
)

func BenchmarkCreate(b *testing.B) {
	svc, _ := setupTestService(b, memstore.New())
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := svc.Create(ctx, owner, "Orders", map[string]any{"total": i, "status": "new"}); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkSearch(b *testing.B) {
	svc, _ := setupTestService(b, memstore.New())
	ctx := context.Background()

	// Pre-populate
	for i := 0; i < 1000; i++ {
		status := "new"
		if i%3 == 0 {
			status = "paid"
		}
		if _, err := svc.Create(ctx, owner, "Orders", map[string]any{"total": i, "status": status, "ref": fmt.Sprint(i)}); err != nil {
			b.Fatal(err)
		}
	}
	q := query.NewQueryBuilder().Where("status", "paid").OrderBy("total", true).Limit(20).Build()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := svc.Search(ctx, owner, "Orders", q); err != nil {
			b.Fatal(err)
		}
	}
}
