// ABOUTME: Reference-counted attribute registry owned by one collection
// ABOUTME: Entries exist only while their usage count is positive

package metadata

import (
	"fmt"
	"sort"
	"strings"

	"github.com/nainya/doccatalog/pkg/constraint"
)

// ConfigValidator checks a constraint config before it is stored
type ConfigValidator interface {
	Validate(cfg constraint.Config) error
}

// AttributeRegistry maps attribute names to their entries.
// Not safe for concurrent use; callers mutate a private copy and persist it.
type AttributeRegistry map[string]*AttributeEntry

// ValidateAttributeName rejects empty names and names reserved for document fields
func ValidateAttributeName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidAttributeName)
	}
	if strings.HasPrefix(name, "_") {
		return fmt.Errorf("%w: %q is reserved", ErrInvalidAttributeName, name)
	}
	return nil
}

// Ensure increments the usage count of name, creating the entry on first use
func (r *AttributeRegistry) Ensure(name string) (*AttributeEntry, error) {
	if err := ValidateAttributeName(name); err != nil {
		return nil, err
	}
	if *r == nil {
		*r = make(AttributeRegistry)
	}
	e, ok := (*r)[name]
	if !ok {
		e = &AttributeEntry{Name: name, Constraints: []constraint.Config{}}
		(*r)[name] = e
	}
	e.Count++
	return e, nil
}

// Release decrements the usage count of name and removes the entry at zero
func (r *AttributeRegistry) Release(name string) error {
	e, ok := (*r)[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownAttribute, name)
	}
	e.Count--
	if e.Count <= 0 {
		delete(*r, name)
	}
	return nil
}

// Remove deletes the entry regardless of its count
func (r *AttributeRegistry) Remove(name string) error {
	if _, ok := (*r)[name]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownAttribute, name)
	}
	delete(*r, name)
	return nil
}

// Rename moves the full entry from oldName to newName
func (r *AttributeRegistry) Rename(oldName, newName string) error {
	e, ok := (*r)[oldName]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownAttribute, oldName)
	}
	if err := ValidateAttributeName(newName); err != nil {
		return err
	}
	if _, exists := (*r)[newName]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateAttribute, newName)
	}
	e.Name = newName
	(*r)[newName] = e
	delete(*r, oldName)
	return nil
}

// SetType fixes the declared type. Setting the same type again is a no-op.
func (r *AttributeRegistry) SetType(name string, t AttributeType) error {
	e, ok := (*r)[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownAttribute, name)
	}
	if e.Type != TypeUnset && e.Type != t {
		return fmt.Errorf("%w: %q is %s, not %s", ErrTypeConflict, name, e.Type, t)
	}
	e.Type = t
	return nil
}

// AddConstraint validates cfg and appends it to the attribute's ordered constraint list
func (r *AttributeRegistry) AddConstraint(name string, cfg constraint.Config, v ConfigValidator) error {
	e, ok := (*r)[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownAttribute, name)
	}
	if err := v.Validate(cfg); err != nil {
		return err
	}
	e.Constraints = append(e.Constraints, cfg)
	return nil
}

// DropConstraint removes the first exact match of cfg. A missing config is not an error.
func (r *AttributeRegistry) DropConstraint(name string, cfg constraint.Config) error {
	e, ok := (*r)[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownAttribute, name)
	}
	for i, c := range e.Constraints {
		if c == cfg {
			e.Constraints = append(e.Constraints[:i], e.Constraints[i+1:]...)
			break
		}
	}
	return nil
}

// Names returns the sorted attribute names. Never nil.
func (r AttributeRegistry) Names() []string {
	names := make([]string, 0, len(r))
	for name := range r {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Constraints returns a copy of the attribute's constraint configs. Never nil.
func (r AttributeRegistry) Constraints(name string) []constraint.Config {
	e, ok := r[name]
	if !ok {
		return []constraint.Config{}
	}
	return append([]constraint.Config{}, e.Constraints...)
}

// Entry returns a copy of the entry for name
func (r AttributeRegistry) Entry(name string) (AttributeEntry, bool) {
	e, ok := r[name]
	if !ok {
		return AttributeEntry{}, false
	}
	return e.clone(), true
}

// Entries returns copies of all entries sorted by name
func (r AttributeRegistry) Entries() []AttributeEntry {
	out := make([]AttributeEntry, 0, len(r))
	for _, name := range r.Names() {
		out = append(out, r[name].clone())
	}
	return out
}
