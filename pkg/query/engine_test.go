// ABOUTME: Tests for document query execution
// ABOUTME: Verifies filtering, typed ordering and pagination

package query

import (
	"testing"
)

func testDocs() []Document {
	return []Document{
		{ID: "d", Fields: map[string]any{"status": "paid", "total": 40.0}},
		{ID: "a", Fields: map[string]any{"status": "new", "total": 500}},
		{ID: "c", Fields: map[string]any{"status": "paid"}},
		{ID: "b", Fields: map[string]any{"status": "paid", "total": int64(7)}},
	}
}

func ids(docs []Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.ID
	}
	return out
}

func assertIDs(t *testing.T, got []Document, want ...string) {
	t.Helper()
	g := ids(got)
	if len(g) != len(want) {
		t.Fatalf("Expected %v, got %v", want, g)
	}
	for i := range want {
		if g[i] != want[i] {
			t.Fatalf("Expected %v, got %v", want, g)
		}
	}
}

func TestQueryBuilder(t *testing.T) {
	q := NewQueryBuilder().
		Where("status", "paid").
		Limit(10).
		Offset(2).
		OrderBy("total", true).
		Build()

	if q.Filters["status"] != "paid" {
		t.Error("status filter not set correctly")
	}
	if q.Limit != 10 || q.Offset != 2 {
		t.Errorf("Expected limit 10 offset 2, got %d %d", q.Limit, q.Offset)
	}
	if q.OrderBy != "total" || !q.Descending {
		t.Errorf("Unexpected ordering %q desc=%v", q.OrderBy, q.Descending)
	}

	if NewQueryBuilder().Build().Limit != DefaultLimit {
		t.Error("Expected default limit")
	}
}

func TestExecuteFilter(t *testing.T) {
	res := Execute(testDocs(), NewQueryBuilder().Where("status", "paid").Build())

	assertIDs(t, res.Documents, "b", "c", "d")
	if res.Total != 3 || res.HasMore {
		t.Errorf("Expected total 3 without more, got %d %v", res.Total, res.HasMore)
	}
}

func TestExecuteNumericEquality(t *testing.T) {
	res := Execute(testDocs(), NewQueryBuilder().Where("total", 7).Build())
	assertIDs(t, res.Documents, "b")

	res = Execute(testDocs(), NewQueryBuilder().Where("total", nil).Build())
	assertIDs(t, res.Documents, "c")

	res = Execute(testDocs(), NewQueryBuilder().Where(IDField, "a").Build())
	assertIDs(t, res.Documents, "a")
}

func TestExecuteOrderMissingLast(t *testing.T) {
	res := Execute(testDocs(), NewQueryBuilder().OrderBy("total", false).Build())
	assertIDs(t, res.Documents, "b", "d", "a", "c")

	res = Execute(testDocs(), NewQueryBuilder().OrderBy("total", true).Build())
	assertIDs(t, res.Documents, "a", "d", "b", "c")
}

func TestExecutePagination(t *testing.T) {
	q := NewQueryBuilder().OrderBy(IDField, false).Limit(2).Build()

	res := Execute(testDocs(), q)
	assertIDs(t, res.Documents, "a", "b")
	if !res.HasMore || res.Total != 4 {
		t.Errorf("Expected more results, got total %d more %v", res.Total, res.HasMore)
	}

	q.Offset = 2
	res = Execute(testDocs(), q)
	assertIDs(t, res.Documents, "c", "d")
	if res.HasMore {
		t.Error("Expected last page")
	}

	q.Offset = 10
	res = Execute(testDocs(), q)
	if len(res.Documents) != 0 || res.Total != 4 {
		t.Errorf("Expected empty page past the end, got %v", ids(res.Documents))
	}
}

func TestExecuteMixedKinds(t *testing.T) {
	docs := []Document{
		{ID: "1", Fields: map[string]any{"v": true}},
		{ID: "2", Fields: map[string]any{"v": "x"}},
		{ID: "3", Fields: map[string]any{"v": 3}},
	}
	res := Execute(docs, Query{OrderBy: "v"})
	assertIDs(t, res.Documents, "3", "2", "1")
}
