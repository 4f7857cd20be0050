package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/nainya/doccatalog/pkg/metadata"
	"github.com/nainya/doccatalog/pkg/store"
)

// Create registers a collection and its empty data container. The creator
// receives all rights. No metadata survives a failed create.
func (c *Catalog) Create(ctx context.Context, user, displayName string) (*metadata.CollectionMetadata, error) {
	ctx = context.WithoutCancel(ctx)
	start := time.Now()

	m, err := c.create(ctx, user, displayName)
	c.observe("create", err, start)
	if err != nil {
		return nil, err
	}

	c.log.LogCatalogEvent(m.InternalName, "create", 1, time.Since(start))
	c.emit([]Event{{
		Type:         EventCollectionCreate,
		Collection:   m.DisplayName,
		InternalName: m.InternalName,
		User:         user,
		Version:      m.Version,
		Timestamp:    m.CreatedAt,
	}})
	return m, nil
}

func (c *Catalog) create(ctx context.Context, user, displayName string) (*metadata.CollectionMetadata, error) {
	m, err := metadata.New(displayName, user, c.now())
	if err != nil {
		return nil, err
	}
	data, err := m.Encode()
	if err != nil {
		return nil, err
	}
	rec := store.Record{Name: m.RecordName(), Version: m.Version, Data: data}

	duplicate := func(err error) error {
		if errors.Is(err, store.ErrExists) {
			return fmt.Errorf("%w: %s", ErrDuplicateCollection, displayName)
		}
		return err
	}

	if ac, ok := c.store.(store.AtomicCreator); ok {
		return m, duplicate(ac.CreateCollection(ctx, rec, m.InternalName))
	}

	if err := c.store.CreateRecord(ctx, rec); err != nil {
		return nil, duplicate(err)
	}
	if err := c.store.CreateContainer(ctx, m.InternalName); err != nil {
		if derr := c.store.DeleteRecord(ctx, rec.Name); derr != nil {
			c.log.Error("failed to roll back metadata after container failure").
				Str("collection", m.InternalName).
				Err(derr).
				Send()
		} else {
			c.log.Warn("rolled back metadata after container failure").
				Str("collection", m.InternalName).
				Err(err).
				Send()
		}
		return nil, duplicate(err)
	}
	return m, nil
}

// Drop removes the data container and then the metadata record. A crash
// between the two leaves an orphan record that Reconcile removes.
func (c *Catalog) Drop(ctx context.Context, user, collection string) error {
	ctx = context.WithoutCancel(ctx)
	start := time.Now()

	m, err := c.drop(ctx, user, collection)
	c.observe("drop", err, start)
	if err != nil {
		return err
	}

	c.log.LogCatalogEvent(m.InternalName, "drop", 1, time.Since(start))
	c.emit([]Event{{
		Type:         EventCollectionDrop,
		Collection:   m.DisplayName,
		InternalName: m.InternalName,
		User:         user,
		Version:      m.Version,
		Timestamp:    c.now().UTC(),
	}})
	return nil
}

func (c *Catalog) drop(ctx context.Context, user, collection string) (*metadata.CollectionMetadata, error) {
	m, err := c.read(ctx, user, collection, metadata.Write)
	if err != nil {
		return nil, err
	}
	if err := c.store.DropContainer(ctx, m.InternalName); err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	if err := c.store.DeleteRecord(ctx, m.RecordName()); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, collection)
		}
		return nil, err
	}
	return m, nil
}

// List returns the display names of the collections user may read, sorted
func (c *Catalog) List(ctx context.Context, user string) ([]string, error) {
	all, err := c.collections(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(all))
	for _, m := range all {
		if m.AccessRights.Allows(user, metadata.Read) {
			names = append(names, m.DisplayName)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (c *Catalog) collections(ctx context.Context) ([]*metadata.CollectionMetadata, error) {
	start := time.Now()
	records, err := c.store.ListRecords(ctx)
	if err != nil {
		c.observe("list", err, start)
		return nil, err
	}

	out := make([]*metadata.CollectionMetadata, 0, len(records))
	for _, name := range records {
		if !metadata.IsRecordName(name) {
			continue
		}
		rec, err := c.store.GetRecord(ctx, name)
		if errors.Is(err, store.ErrNotFound) {
			// dropped since the listing
			continue
		}
		if err != nil {
			c.observe("list", err, start)
			return nil, err
		}
		m, err := metadata.Decode(rec.Data)
		if err != nil {
			c.log.Warn("skipping undecodable metadata record").Str("record", name).Err(err).Send()
			continue
		}
		out = append(out, m)
	}

	c.observe("list", nil, start)
	if c.metrics != nil {
		c.metrics.CollectionsTotal.Set(float64(len(out)))
	}
	return out, nil
}

// Reconcile removes metadata records whose data container no longer exists
// and returns the display names of the removed collections
func (c *Catalog) Reconcile(ctx context.Context) ([]string, error) {
	ctx = context.WithoutCancel(ctx)
	start := time.Now()

	records, err := c.store.ListRecords(ctx)
	if err != nil {
		c.observe("reconcile", err, start)
		return nil, err
	}

	removed := []string{}
	for _, name := range records {
		if !metadata.IsRecordName(name) {
			continue
		}
		ok, err := c.store.ContainerExists(ctx, metadata.ContainerName(name))
		if err != nil {
			c.observe("reconcile", err, start)
			return removed, err
		}
		if ok {
			continue
		}

		display := name
		if rec, err := c.store.GetRecord(ctx, name); err == nil {
			if m, err := metadata.Decode(rec.Data); err == nil {
				display = m.DisplayName
			}
		}
		if err := c.store.DeleteRecord(ctx, name); err != nil && !errors.Is(err, store.ErrNotFound) {
			c.observe("reconcile", err, start)
			return removed, err
		}
		c.log.Warn("removed orphan metadata record").Str("record", name).Send()
		removed = append(removed, display)
	}

	c.observe("reconcile", nil, start)
	return removed, nil
}

// Metadata returns the full metadata record; requires read
func (c *Catalog) Metadata(ctx context.Context, user, collection string) (*metadata.CollectionMetadata, error) {
	return c.read(ctx, user, collection, metadata.Read)
}

// SetCustomMetadata stores a user-defined key on the collection; a nil value removes it
func (c *Catalog) SetCustomMetadata(ctx context.Context, user, collection, key string, value any) error {
	_, err := c.mutate(ctx, user, collection, metadata.Write, "set_custom", func(m *metadata.CollectionMetadata) ([]Event, error) {
		if err := m.SetCustom(key, value); err != nil {
			return nil, err
		}
		return []Event{change(EventMetadataUpdate, "", map[string]any{"key": key})}, nil
	})
	return err
}

// CustomMetadata returns a copy of the user-defined keys; requires read
func (c *Catalog) CustomMetadata(ctx context.Context, user, collection string) (map[string]any, error) {
	m, err := c.read(ctx, user, collection, metadata.Read)
	if err != nil {
		return nil, err
	}
	out := make(map[string]any, len(m.Custom))
	for k, v := range m.Custom {
		out[k] = v
	}
	return out, nil
}
