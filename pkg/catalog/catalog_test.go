// ABOUTME: Tests for the metadata catalog
// ABOUTME: Covers collection lifecycle, attribute counting, access checks and retries

package catalog

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nainya/doccatalog/internal/logger"
	"github.com/nainya/doccatalog/pkg/constraint"
	"github.com/nainya/doccatalog/pkg/locale"
	"github.com/nainya/doccatalog/pkg/metadata"
	"github.com/nainya/doccatalog/pkg/store"
	"github.com/nainya/doccatalog/pkg/store/memstore"
)

const alice = "alice"

// faultyStore hides memstore's atomic creation and injects failures
type faultyStore struct {
	store.Store
	createContainerErr error
	updateErr          error
	updates            atomic.Int32
	beforeUpdate       func()
}

func (f *faultyStore) CreateContainer(ctx context.Context, name string) error {
	if f.createContainerErr != nil {
		return f.createContainerErr
	}
	return f.Store.CreateContainer(ctx, name)
}

func (f *faultyStore) UpdateRecord(ctx context.Context, rec store.Record, expected int64) error {
	f.updates.Add(1)
	if hook := f.beforeUpdate; hook != nil {
		f.beforeUpdate = nil
		hook()
	}
	if f.updateErr != nil {
		return f.updateErr
	}
	return f.Store.UpdateRecord(ctx, rec, expected)
}

func newTestCatalog(t *testing.T, st store.Store, opts ...Option) *Catalog {
	t.Helper()
	c, err := New(st, constraint.Default(locale.MustNew("en-US")), opts...)
	require.NoError(t, err)
	return c
}

func TestOrdersScenario(t *testing.T) {
	ctx := context.Background()
	c := newTestCatalog(t, memstore.New())

	m, err := c.Create(ctx, alice, "Orders")
	require.NoError(t, err)
	assert.Equal(t, "collection.orders_0", m.InternalName)

	for i := 0; i < 2; i++ {
		_, err := c.AddOrIncrementAttribute(ctx, alice, "Orders", "total")
		require.NoError(t, err)
	}
	e, err := c.Attribute(ctx, alice, "Orders", "total")
	require.NoError(t, err)
	assert.Equal(t, int64(2), e.Count)

	require.NoError(t, c.ReleaseAttribute(ctx, alice, "Orders", "total"))
	attrs, err := c.ListAttributes(ctx, alice, "Orders")
	require.NoError(t, err)
	require.Len(t, attrs, 1)
	assert.Equal(t, int64(1), attrs[0].Count)

	require.NoError(t, c.ReleaseAttribute(ctx, alice, "Orders", "total"))
	attrs, err = c.ListAttributes(ctx, alice, "Orders")
	require.NoError(t, err)
	assert.Empty(t, attrs)

	err = c.ReleaseAttribute(ctx, alice, "Orders", "total")
	assert.ErrorIs(t, err, metadata.ErrUnknownAttribute)
}

func TestCreateTwice(t *testing.T) {
	ctx := context.Background()
	for name, st := range map[string]store.Store{
		"atomic":     memstore.New(),
		"non-atomic": &faultyStore{Store: memstore.New()},
	} {
		t.Run(name, func(t *testing.T) {
			c := newTestCatalog(t, st)
			_, err := c.Create(ctx, alice, "Orders")
			require.NoError(t, err)

			_, err = c.Create(ctx, "bob", "orders")
			assert.ErrorIs(t, err, ErrDuplicateCollection)
		})
	}
}

func TestCreateRejectsBlankName(t *testing.T) {
	c := newTestCatalog(t, memstore.New())

	_, err := c.Create(context.Background(), alice, "  ")
	assert.ErrorIs(t, err, metadata.ErrInvalidCollectionName)
}

func TestFailedCreateLeavesNoMetadata(t *testing.T) {
	ctx := context.Background()
	st := &faultyStore{Store: memstore.New(), createContainerErr: store.ErrUnavailable}
	c := newTestCatalog(t, st)

	_, err := c.Create(ctx, alice, "Orders")
	assert.ErrorIs(t, err, ErrStorageUnavailable)

	records, err := st.ListRecords(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestExistingContainerIsDuplicate(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	require.NoError(t, st.CreateContainer(ctx, "collection.orders_0"))
	c := newTestCatalog(t, &faultyStore{Store: st})

	_, err := c.Create(ctx, alice, "Orders")
	assert.ErrorIs(t, err, ErrDuplicateCollection)

	records, _ := st.ListRecords(ctx)
	assert.Empty(t, records)
}

func TestDrop(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	c := newTestCatalog(t, st)

	_, err := c.Create(ctx, alice, "Orders")
	require.NoError(t, err)

	assert.ErrorIs(t, c.Drop(ctx, "bob", "Orders"), ErrAccessDenied)
	require.NoError(t, c.Drop(ctx, alice, "Orders"))
	assert.ErrorIs(t, c.Drop(ctx, alice, "Orders"), ErrCollectionNotFound)

	ok, err := st.ContainerExists(ctx, "collection.orders_0")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = c.Create(ctx, alice, "Orders")
	assert.NoError(t, err, "name must be reusable after drop")
}

func TestListFiltersByReadRight(t *testing.T) {
	ctx := context.Background()
	c := newTestCatalog(t, memstore.New())

	for _, name := range []string{"Orders", "Invoices", "Archive"} {
		_, err := c.Create(ctx, alice, name)
		require.NoError(t, err)
	}
	require.NoError(t, c.SetAccessRights(ctx, alice, "Invoices", "bob", true, false, false))

	names, err := c.List(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, []string{"Archive", "Invoices", "Orders"}, names)

	names, err = c.List(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, []string{"Invoices"}, names)
}

func TestAccessChecks(t *testing.T) {
	ctx := context.Background()
	c := newTestCatalog(t, memstore.New())
	_, err := c.Create(ctx, alice, "Orders")
	require.NoError(t, err)

	_, err = c.AddOrIncrementAttribute(ctx, "bob", "Orders", "total")
	assert.ErrorIs(t, err, ErrAccessDenied)
	assert.Equal(t, "access denied", err.Error())

	require.NoError(t, c.SetAccessRights(ctx, alice, "Orders", "bob", true, false, false))
	_, err = c.ListAttributes(ctx, "bob", "Orders")
	assert.NoError(t, err)
	_, err = c.AddOrIncrementAttribute(ctx, "bob", "Orders", "total")
	assert.ErrorIs(t, err, ErrAccessDenied)

	rights, err := c.GetAccessRights(ctx, alice, "Orders")
	require.NoError(t, err)
	assert.Equal(t, metadata.AccessEntry{User: alice, Read: true, Write: true, Execute: true}, rights.Get(alice))
	assert.Equal(t, metadata.AccessEntry{User: "bob", Read: true}, rights.Get("bob"))
	assert.Equal(t, metadata.AccessEntry{User: "eve"}, rights.Get("eve"))
}

func TestConcurrentIncrements(t *testing.T) {
	ctx := context.Background()
	c := newTestCatalog(t, memstore.New(), WithMaxRetries(1000))
	_, err := c.Create(ctx, alice, "Orders")
	require.NoError(t, err)

	const workers = 20
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.AddOrIncrementAttribute(ctx, alice, "Orders", "total"); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("increment failed: %v", err)
	}

	e, err := c.Attribute(ctx, alice, "Orders", "total")
	require.NoError(t, err)
	assert.Equal(t, int64(workers), e.Count)
}

func TestExhaustedRetriesAreUnavailable(t *testing.T) {
	ctx := context.Background()
	st := &faultyStore{Store: memstore.New()}
	c := newTestCatalog(t, st, WithMaxRetries(3))
	_, err := c.Create(ctx, alice, "Orders")
	require.NoError(t, err)

	st.updateErr = store.ErrVersionConflict
	_, err = c.AddOrIncrementAttribute(ctx, alice, "Orders", "total")
	assert.ErrorIs(t, err, ErrStorageUnavailable)
	assert.Equal(t, int32(4), st.updates.Load())
}

func TestWriteAgainstRecreatedCollectionIsRejected(t *testing.T) {
	ctx := context.Background()
	st := &faultyStore{Store: memstore.New()}
	c := newTestCatalog(t, st)
	_, err := c.Create(ctx, alice, "Orders")
	require.NoError(t, err)

	st.beforeUpdate = func() {
		require.NoError(t, c.Drop(ctx, alice, "Orders"))
		_, err := c.Create(ctx, "carol", "Orders")
		require.NoError(t, err)
	}
	err = c.SetAccessRights(ctx, alice, "Orders", "bob", true, true, true)
	assert.ErrorIs(t, err, ErrAccessDenied)

	m, err := c.Metadata(ctx, "carol", "Orders")
	require.NoError(t, err)
	assert.Equal(t, "carol", m.CreatedBy)
	assert.True(t, m.AccessRights.Allows("carol", metadata.Write))
	assert.False(t, m.AccessRights.Allows("alice", metadata.Read))
	assert.False(t, m.AccessRights.Allows("bob", metadata.Read))
}

func TestStoreFaultIsNotRetried(t *testing.T) {
	ctx := context.Background()
	st := &faultyStore{Store: memstore.New()}
	c := newTestCatalog(t, st)
	_, err := c.Create(ctx, alice, "Orders")
	require.NoError(t, err)

	st.updateErr = errors.New("disk on fire")
	_, err = c.AddOrIncrementAttribute(ctx, alice, "Orders", "total")
	assert.EqualError(t, err, "disk on fire")
	assert.Equal(t, int32(1), st.updates.Load())
}

func TestRenameIsAtomic(t *testing.T) {
	ctx := context.Background()
	c := newTestCatalog(t, memstore.New())
	_, err := c.Create(ctx, alice, "Orders")
	require.NoError(t, err)
	c.AddOrIncrementAttribute(ctx, alice, "Orders", "amount")
	require.NoError(t, c.SetAttributeType(ctx, alice, "Orders", "amount", metadata.TypeInt))
	require.NoError(t, c.AddConstraint(ctx, alice, "Orders", "amount", constraint.ParseConfig("range:0,10")))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	require.NoError(t, c.RenameAttribute(cancelled, alice, "Orders", "amount", "total"))

	attrs, err := c.ListAttributes(ctx, alice, "Orders")
	require.NoError(t, err)
	require.Len(t, attrs, 1)
	assert.Equal(t, "total", attrs[0].Name)
	assert.Equal(t, metadata.TypeInt, attrs[0].Type)
	assert.Equal(t, []constraint.Config{{Prefix: "range", Param: "0,10"}}, attrs[0].Constraints)

	_, err = c.AddOrIncrementAttribute(ctx, alice, "Orders", "x")
	require.NoError(t, err)
	assert.ErrorIs(t, c.RenameAttribute(ctx, alice, "Orders", "total", "x"), metadata.ErrDuplicateAttribute)
	assert.ErrorIs(t, c.RenameAttribute(ctx, alice, "Orders", "nope", "y"), metadata.ErrUnknownAttribute)
}

func TestTypesAndConstraints(t *testing.T) {
	ctx := context.Background()
	c := newTestCatalog(t, memstore.New())
	_, err := c.Create(ctx, alice, "Orders")
	require.NoError(t, err)
	c.AddOrIncrementAttribute(ctx, alice, "Orders", "total")

	require.NoError(t, c.SetAttributeType(ctx, alice, "Orders", "total", metadata.TypeDouble))
	assert.ErrorIs(t, c.SetAttributeType(ctx, alice, "Orders", "total", metadata.TypeString), metadata.ErrTypeConflict)
	typ, err := c.GetAttributeType(ctx, alice, "Orders", "total")
	require.NoError(t, err)
	assert.Equal(t, metadata.TypeDouble, typ)

	err = c.AddConstraint(ctx, alice, "Orders", "total", constraint.ParseConfig("bogus:1"))
	assert.ErrorIs(t, err, constraint.ErrUnknownPrefix)
	err = c.AddConstraint(ctx, alice, "Orders", "total", constraint.ParseConfig("range:x,y"))
	assert.ErrorIs(t, err, constraint.ErrInvalidParameter)

	cfgs := []constraint.Config{constraint.ParseConfig("range:0,1000"), constraint.ParseConfig("number:decimal")}
	for _, cfg := range cfgs {
		require.NoError(t, c.AddConstraint(ctx, alice, "Orders", "total", cfg))
	}
	got, err := c.ListConstraints(ctx, alice, "Orders", "total")
	require.NoError(t, err)
	assert.Equal(t, cfgs, got)

	require.NoError(t, c.DropConstraint(ctx, alice, "Orders", "total", cfgs[0]))
	require.NoError(t, c.DropConstraint(ctx, alice, "Orders", "total", cfgs[0]))
	got, err = c.ListConstraints(ctx, alice, "Orders", "total")
	require.NoError(t, err)
	assert.Equal(t, cfgs[1:], got)
}

func TestApplyValidatesAndCounts(t *testing.T) {
	ctx := context.Background()
	c := newTestCatalog(t, memstore.New())
	_, err := c.Create(ctx, alice, "Orders")
	require.NoError(t, err)
	c.AddOrIncrementAttribute(ctx, alice, "Orders", "total")
	c.AddOrIncrementAttribute(ctx, alice, "Orders", "name")
	require.NoError(t, c.AddConstraint(ctx, alice, "Orders", "total", constraint.ParseConfig("range:0,1000")))
	require.NoError(t, c.AddConstraint(ctx, alice, "Orders", "name", constraint.ParseConfig("case:lower")))

	_, err = c.Apply(ctx, alice, "Orders", Change{
		Values:  map[string]any{"total": 5000, "name": "ALICE"},
		Acquire: []string{"total", "name"},
	})
	var verr *constraint.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "total", verr.Attribute)

	e, _ := c.Attribute(ctx, alice, "Orders", "total")
	assert.Equal(t, int64(1), e.Count, "rejected write must not change counts")

	out, err := c.Apply(ctx, alice, "Orders", Change{
		Values:  map[string]any{"total": 500, "name": "ALICE"},
		Acquire: []string{"total", "name"},
	})
	require.NoError(t, err)
	assert.Equal(t, 500, out["total"])
	assert.Equal(t, "alice", out["name"])

	e, _ = c.Attribute(ctx, alice, "Orders", "total")
	assert.Equal(t, int64(2), e.Count)
}

func TestApplyTypeCheck(t *testing.T) {
	ctx := context.Background()
	c := newTestCatalog(t, memstore.New())
	_, err := c.Create(ctx, alice, "Orders")
	require.NoError(t, err)
	c.AddOrIncrementAttribute(ctx, alice, "Orders", "paid")
	require.NoError(t, c.SetAttributeType(ctx, alice, "Orders", "paid", metadata.TypeBool))

	_, err = c.Apply(ctx, alice, "Orders", Change{Values: map[string]any{"paid": "yes"}})
	var verr *constraint.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "paid", verr.Attribute)
	assert.Equal(t, "type", verr.Config.Prefix)
}

func TestReconcile(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	c := newTestCatalog(t, st)
	_, err := c.Create(ctx, alice, "Orders")
	require.NoError(t, err)
	_, err = c.Create(ctx, alice, "Invoices")
	require.NoError(t, err)

	// simulate a crash between the two steps of a drop
	require.NoError(t, st.DropContainer(ctx, "collection.invoices_0"))

	removed, err := c.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Invoices"}, removed)

	names, err := c.List(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, []string{"Orders"}, names)
}

func TestCustomMetadata(t *testing.T) {
	ctx := context.Background()
	c := newTestCatalog(t, memstore.New())
	created, err := c.Create(ctx, alice, "Orders")
	require.NoError(t, err)

	require.NoError(t, c.SetCustomMetadata(ctx, alice, "Orders", "owner", "sales"))
	assert.ErrorIs(t, c.SetCustomMetadata(ctx, alice, "Orders", "version", 1), metadata.ErrReservedKey)

	custom, err := c.CustomMetadata(ctx, alice, "Orders")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"owner": "sales"}, custom)

	m, err := c.Metadata(ctx, alice, "Orders")
	require.NoError(t, err)
	assert.Equal(t, created.Version+1, m.Version)
}

func TestEvents(t *testing.T) {
	ctx := context.Background()
	c := newTestCatalog(t, memstore.New())

	var mu sync.Mutex
	var got []Event
	record := func(ctx context.Context, e Event) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, e)
		return nil
	}
	unsubscribe := c.Subscribe(EventAttributeCreate, record)
	defer unsubscribe()

	_, err := c.Create(ctx, alice, "Orders")
	require.NoError(t, err)
	c.AddOrIncrementAttribute(ctx, alice, "Orders", "total")
	c.AddOrIncrementAttribute(ctx, alice, "Orders", "total")

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	}, time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "total", got[0].Attribute)
	assert.Equal(t, "Orders", got[0].Collection)
	assert.Equal(t, alice, got[0].User)
}

// lockedBuffer is a log sink safe for the bus's error goroutines
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestFailingSubscriberIsNotRetried(t *testing.T) {
	ctx := context.Background()
	var out lockedBuffer
	c := newTestCatalog(t, memstore.New(), WithLogger(logger.NewLogger(logger.Config{Level: "info", Output: &out})))

	var calls atomic.Int32
	defer c.Subscribe(EventCollectionCreate, func(ctx context.Context, e Event) error {
		calls.Add(1)
		return errors.New("subscriber down")
	})()

	_, err := c.Create(ctx, alice, "Orders")
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "subscriber down")
	}, time.Second, 10*time.Millisecond)
	assert.Contains(t, out.String(), "event bus error")
}
