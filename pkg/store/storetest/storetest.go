// Package storetest provides a conformance suite run against every store.Store backend
package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nainya/doccatalog/pkg/store"
)

// Factory returns a fresh, empty store. The suite closes it.
type Factory func(t *testing.T) store.Store

// Run executes the conformance suite
func Run(t *testing.T, newStore Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s store.Store)
	}{
		{"RecordLifecycle", testRecordLifecycle},
		{"CreateRecordTwice", testCreateRecordTwice},
		{"StaleUpdate", testStaleUpdate},
		{"ConcurrentConditionalUpdates", testConcurrentConditionalUpdates},
		{"ContainerLifecycle", testContainerLifecycle},
		{"DocumentsVanishWithContainer", testDocumentsVanishWithContainer},
		{"DocumentErrors", testDocumentErrors},
		{"AtomicCreate", testAtomicCreate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t)
			defer s.Close()
			tt.fn(t, s)
		})
	}
}

func testRecordLifecycle(t *testing.T, s store.Store) {
	ctx := context.Background()

	_, err := s.GetRecord(ctx, "meta.a")
	require.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.CreateRecord(ctx, store.Record{Name: "meta.b", Version: 1, Data: []byte(`{"n":1}`)}))
	require.NoError(t, s.CreateRecord(ctx, store.Record{Name: "meta.a", Version: 1, Data: []byte(`{}`)}))

	rec, err := s.GetRecord(ctx, "meta.b")
	require.NoError(t, err)
	assert.Equal(t, int64(1), rec.Version)
	assert.Equal(t, `{"n":1}`, string(rec.Data))

	require.NoError(t, s.UpdateRecord(ctx, store.Record{Name: "meta.b", Version: 2, Data: []byte(`{"n":2}`)}, 1))
	rec, err = s.GetRecord(ctx, "meta.b")
	require.NoError(t, err)
	assert.Equal(t, int64(2), rec.Version)
	assert.Equal(t, `{"n":2}`, string(rec.Data))

	names, err := s.ListRecords(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"meta.a", "meta.b"}, names)

	require.NoError(t, s.DeleteRecord(ctx, "meta.b"))
	assert.ErrorIs(t, s.DeleteRecord(ctx, "meta.b"), store.ErrNotFound)
	assert.ErrorIs(t, s.UpdateRecord(ctx, store.Record{Name: "meta.b", Version: 3}, 2), store.ErrNotFound)
}

func testCreateRecordTwice(t *testing.T, s store.Store) {
	ctx := context.Background()

	require.NoError(t, s.CreateRecord(ctx, store.Record{Name: "r", Version: 1}))
	assert.ErrorIs(t, s.CreateRecord(ctx, store.Record{Name: "r", Version: 1}), store.ErrExists)
}

func testStaleUpdate(t *testing.T, s store.Store) {
	ctx := context.Background()

	require.NoError(t, s.CreateRecord(ctx, store.Record{Name: "r", Version: 1, Data: []byte("one")}))
	require.NoError(t, s.UpdateRecord(ctx, store.Record{Name: "r", Version: 2, Data: []byte("two")}, 1))

	err := s.UpdateRecord(ctx, store.Record{Name: "r", Version: 2, Data: []byte("stale")}, 1)
	assert.ErrorIs(t, err, store.ErrVersionConflict)

	rec, err := s.GetRecord(ctx, "r")
	require.NoError(t, err)
	assert.Equal(t, "two", string(rec.Data))
}

func testConcurrentConditionalUpdates(t *testing.T, s store.Store) {
	ctx := context.Background()
	require.NoError(t, s.CreateRecord(ctx, store.Record{Name: "r", Version: 1}))

	const workers = 8
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := s.UpdateRecord(ctx, store.Record{Name: "r", Version: 2, Data: []byte(fmt.Sprint(i))}, 1)
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, wins, "exactly one conditional update must win")
}

func testContainerLifecycle(t *testing.T, s store.Store) {
	ctx := context.Background()

	ok, err := s.ContainerExists(ctx, "c")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.CreateContainer(ctx, "c"))
	assert.ErrorIs(t, s.CreateContainer(ctx, "c"), store.ErrExists)

	ok, err = s.ContainerExists(ctx, "c")
	require.NoError(t, err)
	assert.True(t, ok)

	docs, err := s.ListDocuments(ctx, "c")
	require.NoError(t, err)
	assert.Empty(t, docs)

	require.NoError(t, s.DropContainer(ctx, "c"))
	assert.ErrorIs(t, s.DropContainer(ctx, "c"), store.ErrNotFound)
}

func testDocumentsVanishWithContainer(t *testing.T, s store.Store) {
	ctx := context.Background()

	require.NoError(t, s.CreateContainer(ctx, "c"))
	require.NoError(t, s.PutDocument(ctx, "c", store.Document{ID: "2", Data: []byte(`{"b":2}`)}))
	require.NoError(t, s.PutDocument(ctx, "c", store.Document{ID: "1", Data: []byte(`{"a":1}`)}))
	require.NoError(t, s.PutDocument(ctx, "c", store.Document{ID: "1", Data: []byte(`{"a":3}`)}))

	docs, err := s.ListDocuments(ctx, "c")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "1", docs[0].ID)
	assert.Equal(t, `{"a":3}`, string(docs[0].Data))

	require.NoError(t, s.DropContainer(ctx, "c"))
	require.NoError(t, s.CreateContainer(ctx, "c"))

	docs, err = s.ListDocuments(ctx, "c")
	require.NoError(t, err)
	assert.Empty(t, docs)
	_, err = s.GetDocument(ctx, "c", "1")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testDocumentErrors(t *testing.T, s store.Store) {
	ctx := context.Background()

	assert.ErrorIs(t, s.PutDocument(ctx, "missing", store.Document{ID: "1"}), store.ErrNotFound)
	_, err := s.ListDocuments(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.CreateContainer(ctx, "c"))
	_, err = s.GetDocument(ctx, "c", "nope")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, s.DeleteDocument(ctx, "c", "nope"), store.ErrNotFound)

	require.NoError(t, s.PutDocument(ctx, "c", store.Document{ID: "1", Data: []byte("{}")}))
	require.NoError(t, s.DeleteDocument(ctx, "c", "1"))
	_, err = s.GetDocument(ctx, "c", "1")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testAtomicCreate(t *testing.T, s store.Store) {
	ac, ok := s.(store.AtomicCreator)
	if !ok {
		t.Skip("store does not support atomic creation")
	}
	ctx := context.Background()

	require.NoError(t, ac.CreateCollection(ctx, store.Record{Name: "meta.c", Version: 1}, "c"))
	assert.ErrorIs(t, ac.CreateCollection(ctx, store.Record{Name: "meta.c", Version: 1}, "c2"), store.ErrExists)

	// container clash must leave no record behind
	require.NoError(t, s.CreateContainer(ctx, "taken"))
	err := ac.CreateCollection(ctx, store.Record{Name: "meta.taken", Version: 1}, "taken")
	assert.ErrorIs(t, err, store.ErrExists)
	_, err = s.GetRecord(ctx, "meta.taken")
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = s.GetRecord(ctx, "meta.c2")
	assert.ErrorIs(t, err, store.ErrNotFound)
	ok, err = s.ContainerExists(ctx, "c2")
	require.NoError(t, err)
	assert.False(t, ok)
}
