// ABOUTME: Metadata catalog: one versioned record per collection, mutated optimistically
// ABOUTME: Every mutation is read, modify, conditional write, retried only on version conflicts

package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/asaidimu/go-events"
	"github.com/cenkalti/backoff/v4"

	"github.com/nainya/doccatalog/internal/logger"
	"github.com/nainya/doccatalog/internal/metrics"
	"github.com/nainya/doccatalog/pkg/constraint"
	"github.com/nainya/doccatalog/pkg/metadata"
	"github.com/nainya/doccatalog/pkg/store"
)

// DefaultMaxRetries bounds conditional-write retries per mutation
const DefaultMaxRetries = 8

// Catalog owns the metadata records of all collections. Safe for concurrent use.
type Catalog struct {
	store      store.Store
	registry   *constraint.Registry
	log        *logger.Logger
	metrics    *metrics.Metrics
	bus        *events.TypedEventBus[Event]
	maxRetries uint64
	now        func() time.Time
}

// Option configures a Catalog
type Option func(*Catalog)

// WithLogger sets the logger
func WithLogger(l *logger.Logger) Option {
	return func(c *Catalog) { c.log = l }
}

// WithMetrics sets the metrics sink
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Catalog) { c.metrics = m }
}

// WithMaxRetries sets how many times a conflicting write is retried
func WithMaxRetries(n uint64) Option {
	return func(c *Catalog) { c.maxRetries = n }
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(c *Catalog) { c.now = now }
}

// New creates a catalog over st, validating constraint configs with reg
func New(st store.Store, reg *constraint.Registry, opts ...Option) (*Catalog, error) {
	c := &Catalog{
		store:      st,
		registry:   reg,
		log:        logger.Nop(),
		maxRetries: DefaultMaxRetries,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	bus, err := events.NewTypedEventBus[Event](c.busConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create event bus: %w", err)
	}
	c.bus = bus
	return c, nil
}

// Registry returns the constraint registry used for validation
func (c *Catalog) Registry() *constraint.Registry {
	return c.registry
}

// Store returns the underlying store
func (c *Catalog) Store() store.Store {
	return c.store
}

func (c *Catalog) newBackOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 2 * time.Millisecond
	b.MaxInterval = 100 * time.Millisecond
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, c.maxRetries), ctx)
}

func (c *Catalog) observe(operation string, err error, start time.Time) {
	if c.metrics != nil {
		c.metrics.RecordCatalogOperation(operation, err, time.Since(start))
	}
	if errors.Is(err, store.ErrUnavailable) {
		c.log.Error("store fault").Str("operation", operation).Err(err).Send()
	}
}

func (c *Catalog) rejected(err error) {
	var verr *constraint.ValidationError
	if c.metrics != nil && errors.As(err, &verr) {
		c.metrics.RecordValidationRejection(verr.Config.Prefix)
	}
}

// load reads and decodes the metadata record of a collection
func (c *Catalog) load(ctx context.Context, collection string) (store.Record, *metadata.CollectionMetadata, error) {
	name, err := metadata.RecordName(collection)
	if err != nil {
		return store.Record{}, nil, err
	}
	rec, err := c.store.GetRecord(ctx, name)
	if errors.Is(err, store.ErrNotFound) {
		return store.Record{}, nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, collection)
	}
	if err != nil {
		return store.Record{}, nil, err
	}
	m, err := metadata.Decode(rec.Data)
	if err != nil {
		return store.Record{}, nil, err
	}
	return rec, m, nil
}

// read loads a collection and checks that user holds perm
func (c *Catalog) read(ctx context.Context, user, collection string, perm metadata.Permission) (*metadata.CollectionMetadata, error) {
	_, m, err := c.load(ctx, collection)
	if err != nil {
		return nil, err
	}
	if !m.AccessRights.Allows(user, perm) {
		return nil, ErrAccessDenied
	}
	return m, nil
}

// Authorize returns a fresh copy of the collection metadata if user holds perm.
// Callers may modify the copy; it is never written back.
func (c *Catalog) Authorize(ctx context.Context, user, collection string, perm metadata.Permission) (*metadata.CollectionMetadata, error) {
	return c.read(ctx, user, collection, perm)
}

// mutate applies fn to a fresh copy of the collection metadata and writes it back
// if the stored version is unchanged. fn runs again from a fresh read on conflict.
// Events returned by the committed attempt are published.
func (c *Catalog) mutate(
	ctx context.Context,
	user, collection string,
	perm metadata.Permission,
	operation string,
	fn func(m *metadata.CollectionMetadata) ([]Event, error),
) (*metadata.CollectionMetadata, error) {
	// an abandoned caller must not leave a rename or constraint change half-applied
	ctx = context.WithoutCancel(ctx)
	start := time.Now()

	var (
		attempts  int
		committed *metadata.CollectionMetadata
		changes   []Event
	)
	attempt := func() error {
		attempts++
		if attempts > 1 && c.metrics != nil {
			c.metrics.RecordConflictRetry(operation)
		}

		rec, m, err := c.load(ctx, collection)
		if err != nil {
			return backoff.Permanent(err)
		}
		if !m.AccessRights.Allows(user, perm) {
			return backoff.Permanent(ErrAccessDenied)
		}

		evs, err := fn(m)
		if err != nil {
			return backoff.Permanent(err)
		}

		m.Version = rec.Version + 1
		m.UpdatedAt = c.now().UTC()
		data, err := m.Encode()
		if err != nil {
			return backoff.Permanent(err)
		}

		err = c.store.UpdateRecord(ctx, store.Record{Name: rec.Name, Version: m.Version, Data: data}, rec.Version)
		if errors.Is(err, store.ErrVersionConflict) {
			return err
		}
		if err != nil {
			return backoff.Permanent(err)
		}

		committed, changes = m, evs
		return nil
	}

	err := backoff.Retry(attempt, c.newBackOff(ctx))
	if errors.Is(err, store.ErrVersionConflict) {
		err = fmt.Errorf("%w: %s: gave up after %d conflicting attempts", ErrStorageUnavailable, collection, attempts)
	}
	c.observe(operation, err, start)
	if err != nil {
		c.rejected(err)
		return nil, err
	}

	c.log.LogCatalogEvent(committed.InternalName, operation, attempts, time.Since(start))

	now := c.now().UTC()
	for i := range changes {
		changes[i].Collection = committed.DisplayName
		changes[i].InternalName = committed.InternalName
		changes[i].User = user
		changes[i].Version = committed.Version
		changes[i].Timestamp = now
	}
	c.emit(changes)
	return committed, nil
}
