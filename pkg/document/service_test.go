// ABOUTME: Tests for the document write pipeline
// ABOUTME: Verifies count bookkeeping, constraint enforcement, compensation and sweeps

package document

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/nainya/doccatalog/pkg/catalog"
	"github.com/nainya/doccatalog/pkg/constraint"
	"github.com/nainya/doccatalog/pkg/locale"
	"github.com/nainya/doccatalog/pkg/metadata"
	"github.com/nainya/doccatalog/pkg/query"
	"github.com/nainya/doccatalog/pkg/store"
	"github.com/nainya/doccatalog/pkg/store/memstore"
)

const owner = "alice"

// failingPuts makes every document write fail once armed
type failingPuts struct {
	store.Store
	fail bool
}

func (f *failingPuts) PutDocument(ctx context.Context, container string, doc store.Document) error {
	if f.fail {
		return fmt.Errorf("%w: injected", store.ErrUnavailable)
	}
	return f.Store.PutDocument(ctx, container, doc)
}

// failingNthPut fails the nth document write after it is armed and lets the rest through
type failingNthPut struct {
	store.Store
	nth  int
	puts int
}

func (f *failingNthPut) PutDocument(ctx context.Context, container string, doc store.Document) error {
	if f.nth > 0 {
		f.puts++
		if f.puts == f.nth {
			return fmt.Errorf("%w: injected", store.ErrUnavailable)
		}
	}
	return f.Store.PutDocument(ctx, container, doc)
}

func setupTestService(t testing.TB, st store.Store) (*Service, *catalog.Catalog) {
	t.Helper()
	c, err := catalog.New(st, constraint.Default(locale.MustNew("")))
	if err != nil {
		t.Fatalf("Failed to create catalog: %v", err)
	}
	if _, err := c.Create(context.Background(), owner, "Orders"); err != nil {
		t.Fatalf("Failed to create collection: %v", err)
	}

	n := 0
	svc := NewService(c, WithIDGenerator(func() string {
		n++
		return fmt.Sprintf("doc%d", n)
	}))
	return svc, c
}

func countOf(t *testing.T, c *catalog.Catalog, name string) int64 {
	t.Helper()
	e, err := c.Attribute(context.Background(), owner, "Orders", name)
	if err != nil {
		return 0
	}
	return e.Count
}

func TestCreateCountsFields(t *testing.T) {
	ctx := context.Background()
	svc, c := setupTestService(t, memstore.New())

	for i := 0; i < 2; i++ {
		if _, err := svc.Create(ctx, owner, "Orders", map[string]any{"total": 10, "note": nil}); err != nil {
			t.Fatalf("Failed to create: %v", err)
		}
	}

	if got := countOf(t, c, "total"); got != 2 {
		t.Errorf("Expected total count 2, got %d", got)
	}
	if got := countOf(t, c, "note"); got != 0 {
		t.Errorf("Null field must not be counted, got %d", got)
	}
}

func TestConstraintsApplyOnWrite(t *testing.T) {
	ctx := context.Background()
	svc, c := setupTestService(t, memstore.New())

	if _, err := svc.Create(ctx, owner, "Orders", map[string]any{"total": 1, "name": "x"}); err != nil {
		t.Fatalf("Failed to seed: %v", err)
	}
	if err := c.AddConstraint(ctx, owner, "Orders", "total", constraint.ParseConfig("range:0,1000")); err != nil {
		t.Fatalf("Failed to add constraint: %v", err)
	}
	if err := c.AddConstraint(ctx, owner, "Orders", "name", constraint.ParseConfig("case:lower")); err != nil {
		t.Fatalf("Failed to add constraint: %v", err)
	}

	_, err := svc.Create(ctx, owner, "Orders", map[string]any{"total": 5000})
	var verr *constraint.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Expected ValidationError, got %v", err)
	}
	if got := countOf(t, c, "total"); got != 1 {
		t.Errorf("Rejected write changed count to %d", got)
	}
	res, _ := svc.Search(ctx, owner, "Orders", query.Query{})
	if res.Total != 1 {
		t.Errorf("Rejected write stored a document, total %d", res.Total)
	}

	doc, err := svc.Create(ctx, owner, "Orders", map[string]any{"total": 500, "name": "ALICE"})
	if err != nil {
		t.Fatalf("Failed to create: %v", err)
	}
	stored, err := svc.Get(ctx, owner, "Orders", doc.ID)
	if err != nil {
		t.Fatalf("Failed to get: %v", err)
	}
	if stored.Fields["total"] != 500.0 {
		t.Errorf("Expected total 500, got %v", stored.Fields["total"])
	}
	if stored.Fields["name"] != "alice" {
		t.Errorf("Expected name alice, got %v", stored.Fields["name"])
	}
}

func TestUpdateAcquiresAndReleases(t *testing.T) {
	ctx := context.Background()
	svc, c := setupTestService(t, memstore.New())

	doc, err := svc.Create(ctx, owner, "Orders", map[string]any{"total": 1, "status": "new"})
	if err != nil {
		t.Fatalf("Failed to create: %v", err)
	}

	updated, err := svc.Update(ctx, owner, "Orders", doc.ID, map[string]any{"status": nil, "paid": true, "total": 2})
	if err != nil {
		t.Fatalf("Failed to update: %v", err)
	}
	if _, ok := updated.Fields["status"]; ok {
		t.Error("Expected status to be unset")
	}
	if countOf(t, c, "status") != 0 || countOf(t, c, "paid") != 1 || countOf(t, c, "total") != 1 {
		t.Errorf("Unexpected counts status=%d paid=%d total=%d",
			countOf(t, c, "status"), countOf(t, c, "paid"), countOf(t, c, "total"))
	}

	if _, err := svc.Update(ctx, owner, "Orders", "missing", map[string]any{"x": 1}); !errors.Is(err, catalog.ErrDocumentNotFound) {
		t.Errorf("Expected ErrDocumentNotFound, got %v", err)
	}
}

func TestDeleteReleasesFields(t *testing.T) {
	ctx := context.Background()
	svc, c := setupTestService(t, memstore.New())

	doc, _ := svc.Create(ctx, owner, "Orders", map[string]any{"total": 1})
	if err := svc.Delete(ctx, owner, "Orders", doc.ID); err != nil {
		t.Fatalf("Failed to delete: %v", err)
	}
	if countOf(t, c, "total") != 0 {
		t.Error("Expected attribute to be forgotten")
	}
	if _, err := svc.Get(ctx, owner, "Orders", doc.ID); !errors.Is(err, catalog.ErrDocumentNotFound) {
		t.Errorf("Expected ErrDocumentNotFound, got %v", err)
	}
}

func TestFailedWriteRestoresCounts(t *testing.T) {
	ctx := context.Background()
	st := &failingPuts{Store: memstore.New()}
	svc, c := setupTestService(t, st)

	st.fail = true
	_, err := svc.Create(ctx, owner, "Orders", map[string]any{"total": 1})
	if !errors.Is(err, store.ErrUnavailable) {
		t.Fatalf("Expected ErrUnavailable, got %v", err)
	}
	if got := countOf(t, c, "total"); got != 0 {
		t.Errorf("Expected count restored to 0, got %d", got)
	}
}

func TestRenameAttributeSweepsDocuments(t *testing.T) {
	ctx := context.Background()
	svc, c := setupTestService(t, memstore.New())

	svc.Create(ctx, owner, "Orders", map[string]any{"amount": 1})
	svc.Create(ctx, owner, "Orders", map[string]any{"amount": 2, "x": true})
	svc.Create(ctx, owner, "Orders", map[string]any{"x": false})

	if err := svc.RenameAttribute(ctx, owner, "Orders", "amount", "total"); err != nil {
		t.Fatalf("Failed to rename: %v", err)
	}
	if countOf(t, c, "total") != 2 || countOf(t, c, "amount") != 0 {
		t.Error("Counts not moved by rename")
	}

	res, err := svc.Search(ctx, owner, "Orders", query.Query{})
	if err != nil {
		t.Fatalf("Failed to search: %v", err)
	}
	withTotal := 0
	for _, d := range res.Documents {
		if _, ok := d.Fields["amount"]; ok {
			t.Errorf("Document %s still holds the old name", d.ID)
		}
		if _, ok := d.Fields["total"]; ok {
			withTotal++
		}
	}
	if withTotal != 2 {
		t.Errorf("Expected 2 documents with total, got %d", withTotal)
	}
}

func TestDropAttributeSweepsDocuments(t *testing.T) {
	ctx := context.Background()
	svc, c := setupTestService(t, memstore.New())

	svc.Create(ctx, owner, "Orders", map[string]any{"total": 1, "x": 1})
	svc.Create(ctx, owner, "Orders", map[string]any{"total": 2})

	if err := svc.DropAttribute(ctx, owner, "Orders", "total"); err != nil {
		t.Fatalf("Failed to drop: %v", err)
	}
	attrs, _ := c.ListAttributes(ctx, owner, "Orders")
	if len(attrs) != 1 || attrs[0].Name != "x" {
		t.Errorf("Expected only x to remain, got %+v", attrs)
	}

	res, _ := svc.Search(ctx, owner, "Orders", query.NewQueryBuilder().Where("total", nil).Build())
	if res.Total != 2 {
		t.Errorf("Expected total removed from every document, %d clean", res.Total)
	}
}

func TestFailedRenameLeavesNoTrace(t *testing.T) {
	ctx := context.Background()
	st := &failingNthPut{Store: memstore.New()}
	svc, c := setupTestService(t, st)

	for i := 1; i <= 3; i++ {
		if _, err := svc.Create(ctx, owner, "Orders", map[string]any{"total": i}); err != nil {
			t.Fatalf("Failed to create: %v", err)
		}
	}

	st.nth = 2
	err := svc.RenameAttribute(ctx, owner, "Orders", "total", "sum")
	if !errors.Is(err, store.ErrUnavailable) {
		t.Fatalf("Expected ErrUnavailable, got %v", err)
	}
	st.nth = 0

	names, _ := c.AttributeNames(ctx, owner, "Orders")
	if len(names) != 1 || names[0] != "total" {
		t.Errorf("Expected metadata to keep total, got %v", names)
	}
	res, _ := svc.Search(ctx, owner, "Orders", query.Query{})
	for _, d := range res.Documents {
		if _, ok := d.Fields["total"]; !ok {
			t.Errorf("Document %s lost total: %v", d.ID, d.Fields)
		}
		if _, ok := d.Fields["sum"]; ok {
			t.Errorf("Document %s kept the new name: %v", d.ID, d.Fields)
		}
	}

	if err := svc.Delete(ctx, owner, "Orders", "doc3"); err != nil {
		t.Errorf("Failed to delete after aborted rename: %v", err)
	}
	if got := countOf(t, c, "total"); got != 2 {
		t.Errorf("Expected total count 2, got %d", got)
	}
}

func TestFailedDropLeavesNoTrace(t *testing.T) {
	ctx := context.Background()
	st := &failingNthPut{Store: memstore.New()}
	svc, c := setupTestService(t, st)

	for i := 1; i <= 3; i++ {
		svc.Create(ctx, owner, "Orders", map[string]any{"total": i})
	}

	st.nth = 3
	if err := svc.DropAttribute(ctx, owner, "Orders", "total"); !errors.Is(err, store.ErrUnavailable) {
		t.Fatalf("Expected ErrUnavailable, got %v", err)
	}
	st.nth = 0

	if got := countOf(t, c, "total"); got != 3 {
		t.Errorf("Expected total count 3, got %d", got)
	}
	res, _ := svc.Search(ctx, owner, "Orders", query.NewQueryBuilder().Where("total", nil).Build())
	if res.Total != 0 {
		t.Errorf("Expected every document to keep total, %d without it", res.Total)
	}
}

func TestRenameRejectsUnknownAttribute(t *testing.T) {
	ctx := context.Background()
	svc, _ := setupTestService(t, memstore.New())

	svc.Create(ctx, owner, "Orders", map[string]any{"total": 1})
	if err := svc.RenameAttribute(ctx, owner, "Orders", "missing", "sum"); !errors.Is(err, metadata.ErrUnknownAttribute) {
		t.Errorf("Expected ErrUnknownAttribute, got %v", err)
	}
	if err := svc.DropAttribute(ctx, "mallory", "Orders", "total"); !errors.Is(err, catalog.ErrAccessDenied) {
		t.Errorf("Expected ErrAccessDenied, got %v", err)
	}
}

func TestSearchRequiresRead(t *testing.T) {
	ctx := context.Background()
	svc, _ := setupTestService(t, memstore.New())

	_, err := svc.Search(ctx, "mallory", "Orders", query.Query{})
	if !errors.Is(err, catalog.ErrAccessDenied) {
		t.Errorf("Expected ErrAccessDenied, got %v", err)
	}
	_, err = svc.Create(ctx, "mallory", "Orders", map[string]any{"x": 1})
	if !errors.Is(err, catalog.ErrAccessDenied) {
		t.Errorf("Expected ErrAccessDenied, got %v", err)
	}
}

func TestSearchOrdersAndPages(t *testing.T) {
	ctx := context.Background()
	svc, _ := setupTestService(t, memstore.New())

	for _, total := range []int{30, 10, 20} {
		svc.Create(ctx, owner, "Orders", map[string]any{"total": total, "status": "paid"})
	}

	q := query.NewQueryBuilder().Where("status", "paid").OrderBy("total", false).Limit(2).Build()
	res, err := svc.Search(ctx, owner, "Orders", q)
	if err != nil {
		t.Fatalf("Failed to search: %v", err)
	}
	if res.Total != 3 || !res.HasMore || len(res.Documents) != 2 {
		t.Fatalf("Unexpected page: total=%d more=%v len=%d", res.Total, res.HasMore, len(res.Documents))
	}
	if res.Documents[0].Fields["total"] != 10.0 || res.Documents[1].Fields["total"] != 20.0 {
		t.Errorf("Unexpected order: %v", res.Documents)
	}
}
