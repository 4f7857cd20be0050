package catalog

import (
	"context"
	"fmt"

	"github.com/nainya/doccatalog/pkg/constraint"
	"github.com/nainya/doccatalog/pkg/metadata"
)

// AddOrIncrementAttribute increments the usage count of an attribute, creating it on first use
func (c *Catalog) AddOrIncrementAttribute(ctx context.Context, user, collection, name string) (metadata.AttributeEntry, error) {
	var entry metadata.AttributeEntry
	_, err := c.mutate(ctx, user, collection, metadata.Write, "add_attribute", func(m *metadata.CollectionMetadata) ([]Event, error) {
		e, err := m.Attributes.Ensure(name)
		if err != nil {
			return nil, err
		}
		entry, _ = m.Attributes.Entry(name)
		if e.Count == 1 {
			return []Event{change(EventAttributeCreate, name, nil)}, nil
		}
		return nil, nil
	})
	return entry, err
}

// ReleaseAttribute decrements the usage count and forgets the attribute at zero
func (c *Catalog) ReleaseAttribute(ctx context.Context, user, collection, name string) error {
	_, err := c.mutate(ctx, user, collection, metadata.Write, "release_attribute", func(m *metadata.CollectionMetadata) ([]Event, error) {
		if err := m.Attributes.Release(name); err != nil {
			return nil, err
		}
		if _, ok := m.Attributes.Entry(name); !ok {
			return []Event{change(EventAttributeRemove, name, nil)}, nil
		}
		return nil, nil
	})
	return err
}

// RemoveAttribute forgets the attribute regardless of its usage count
func (c *Catalog) RemoveAttribute(ctx context.Context, user, collection, name string) error {
	_, err := c.mutate(ctx, user, collection, metadata.Write, "remove_attribute", func(m *metadata.CollectionMetadata) ([]Event, error) {
		if err := m.Attributes.Remove(name); err != nil {
			return nil, err
		}
		return []Event{change(EventAttributeRemove, name, nil)}, nil
	})
	return err
}

// RenameAttribute moves an attribute entry, with its count, type and constraints, to a new name
func (c *Catalog) RenameAttribute(ctx context.Context, user, collection, oldName, newName string) error {
	_, err := c.mutate(ctx, user, collection, metadata.Write, "rename_attribute", func(m *metadata.CollectionMetadata) ([]Event, error) {
		if err := m.Attributes.Rename(oldName, newName); err != nil {
			return nil, err
		}
		return []Event{change(EventAttributeRename, newName, map[string]any{"from": oldName})}, nil
	})
	return err
}

// ListAttributes returns the attribute entries sorted by name; requires read
func (c *Catalog) ListAttributes(ctx context.Context, user, collection string) ([]metadata.AttributeEntry, error) {
	m, err := c.read(ctx, user, collection, metadata.Read)
	if err != nil {
		return nil, err
	}
	return m.Attributes.Entries(), nil
}

// AttributeNames returns the sorted attribute names; requires execute
func (c *Catalog) AttributeNames(ctx context.Context, user, collection string) ([]string, error) {
	m, err := c.read(ctx, user, collection, metadata.Execute)
	if err != nil {
		return nil, err
	}
	return m.Attributes.Names(), nil
}

// Attribute returns one attribute entry; requires read
func (c *Catalog) Attribute(ctx context.Context, user, collection, name string) (metadata.AttributeEntry, error) {
	m, err := c.read(ctx, user, collection, metadata.Read)
	if err != nil {
		return metadata.AttributeEntry{}, err
	}
	e, ok := m.Attributes.Entry(name)
	if !ok {
		return metadata.AttributeEntry{}, fmt.Errorf("%w: %q", metadata.ErrUnknownAttribute, name)
	}
	return e, nil
}

// SetAttributeType fixes the declared type of an attribute
func (c *Catalog) SetAttributeType(ctx context.Context, user, collection, name string, t metadata.AttributeType) error {
	_, err := c.mutate(ctx, user, collection, metadata.Write, "set_attribute_type", func(m *metadata.CollectionMetadata) ([]Event, error) {
		if err := m.Attributes.SetType(name, t); err != nil {
			return nil, err
		}
		return []Event{change(EventAttributeType, name, map[string]any{"type": string(t)})}, nil
	})
	return err
}

// GetAttributeType returns the declared type, TypeUnset if none
func (c *Catalog) GetAttributeType(ctx context.Context, user, collection, name string) (metadata.AttributeType, error) {
	e, err := c.Attribute(ctx, user, collection, name)
	if err != nil {
		return metadata.TypeUnset, err
	}
	return e.Type, nil
}

// AddConstraint validates cfg and appends it to the attribute's constraints
func (c *Catalog) AddConstraint(ctx context.Context, user, collection, name string, cfg constraint.Config) error {
	_, err := c.mutate(ctx, user, collection, metadata.Write, "add_constraint", func(m *metadata.CollectionMetadata) ([]Event, error) {
		if err := m.Attributes.AddConstraint(name, cfg, c.registry); err != nil {
			return nil, err
		}
		return []Event{change(EventConstraintAdd, name, map[string]any{"constraint": cfg.String()})}, nil
	})
	return err
}

// DropConstraint removes cfg from the attribute; an absent config is not an error
func (c *Catalog) DropConstraint(ctx context.Context, user, collection, name string, cfg constraint.Config) error {
	_, err := c.mutate(ctx, user, collection, metadata.Write, "drop_constraint", func(m *metadata.CollectionMetadata) ([]Event, error) {
		if err := m.Attributes.DropConstraint(name, cfg); err != nil {
			return nil, err
		}
		return []Event{change(EventConstraintDrop, name, map[string]any{"constraint": cfg.String()})}, nil
	})
	return err
}

// ListConstraints returns the attribute's constraints in declared order; requires read
func (c *Catalog) ListConstraints(ctx context.Context, user, collection, name string) ([]constraint.Config, error) {
	m, err := c.read(ctx, user, collection, metadata.Read)
	if err != nil {
		return nil, err
	}
	if _, ok := m.Attributes.Entry(name); !ok {
		return nil, fmt.Errorf("%w: %q", metadata.ErrUnknownAttribute, name)
	}
	return m.Attributes.Constraints(name), nil
}

// GetAccessRights returns the collection's access entries; requires read
func (c *Catalog) GetAccessRights(ctx context.Context, user, collection string) (metadata.AccessRights, error) {
	m, err := c.read(ctx, user, collection, metadata.Read)
	if err != nil {
		return nil, err
	}
	return append(metadata.AccessRights{}, m.AccessRights...), nil
}

// SetAccessRights upserts the rights of target; requires write
func (c *Catalog) SetAccessRights(ctx context.Context, user, collection, target string, read, write, execute bool) error {
	_, err := c.mutate(ctx, user, collection, metadata.Write, "set_access_rights", func(m *metadata.CollectionMetadata) ([]Event, error) {
		m.AccessRights.Set(target, read, write, execute)
		return []Event{change(EventAccessUpdate, "", map[string]any{
			"user": target, "read": read, "write": write, "execute": execute,
		})}, nil
	})
	return err
}
