package catalog

import (
	"context"
	"errors"
	"sort"

	"github.com/nainya/doccatalog/pkg/constraint"
	"github.com/nainya/doccatalog/pkg/metadata"
)

// Change is the catalog side of one document write
type Change struct {
	// Values are the incoming non-null field values to validate
	Values map[string]any

	// Acquire lists attributes that gain a non-null value
	Acquire []string

	// Release lists attributes that lose their non-null value
	Release []string
}

// Apply validates and normalizes ch.Values against the collection's current
// attribute types and constraints, and in the same conditional write adjusts
// usage counts. Any rejection aborts the whole change. Requires write.
func (c *Catalog) Apply(ctx context.Context, user, collection string, ch Change) (map[string]any, error) {
	var normalized map[string]any

	if len(ch.Acquire) == 0 && len(ch.Release) == 0 {
		m, err := c.read(ctx, user, collection, metadata.Write)
		if err != nil {
			return nil, err
		}
		normalized, err = c.normalize(m, ch.Values)
		if err != nil {
			c.rejected(err)
			return nil, err
		}
		return normalized, nil
	}

	_, err := c.mutate(ctx, user, collection, metadata.Write, "apply", func(m *metadata.CollectionMetadata) ([]Event, error) {
		values, err := c.normalize(m, ch.Values)
		if err != nil {
			return nil, err
		}

		var evs []Event
		for _, name := range ch.Release {
			if err := m.Attributes.Release(name); err != nil {
				return nil, err
			}
			if _, ok := m.Attributes.Entry(name); !ok {
				evs = append(evs, change(EventAttributeRemove, name, nil))
			}
		}
		for _, name := range ch.Acquire {
			e, err := m.Attributes.Ensure(name)
			if err != nil {
				return nil, err
			}
			if e.Count == 1 {
				evs = append(evs, change(EventAttributeCreate, name, nil))
			}
		}

		normalized = values
		return evs, nil
	})
	if err != nil {
		return nil, err
	}
	return normalized, nil
}

// normalize runs the type check and then the constraint pipeline of each value
func (c *Catalog) normalize(m *metadata.CollectionMetadata, values map[string]any) (map[string]any, error) {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make(map[string]any, len(values))
	for _, name := range names {
		value := values[name]
		entry, ok := m.Attributes.Entry(name)
		if !ok || value == nil {
			out[name] = value
			continue
		}

		if err := entry.Type.Check(value); err != nil {
			if verr, ok := asValidation(err); ok {
				verr.Attribute = name
			}
			return nil, err
		}
		pipeline, err := c.registry.Pipeline(entry.Constraints)
		if err != nil {
			return nil, err
		}
		v, err := pipeline.Apply(name, value)
		if err != nil {
			return nil, err
		}
		out[name] = v
	}
	return out, nil
}

func asValidation(err error) (*constraint.ValidationError, bool) {
	var verr *constraint.ValidationError
	ok := errors.As(err, &verr)
	return verr, ok
}
