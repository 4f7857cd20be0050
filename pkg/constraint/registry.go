// ABOUTME: Registry of constraint types with locale-aware prefix lookup
// ABOUTME: Compiled constraints are cached in an LRU keyed by prefix and parameter

package constraint

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru"

	"github.com/nainya/doccatalog/pkg/locale"
)

// DefaultCacheSize is the number of compiled constraints kept when Options.CacheSize is zero
const DefaultCacheSize = 256

// Options configures a Registry
type Options struct {
	CacheSize int
}

// Registry holds the immutable set of constraint definitions.
// Safe for concurrent use.
type Registry struct {
	folder      locale.Folder
	definitions map[string]Definition
	prefixes    []string
	cache       *lru.Cache
}

// NewRegistry creates a registry over defs, or over Builtin() when none are given
func NewRegistry(folder locale.Folder, opts Options, defs ...Definition) (*Registry, error) {
	if len(defs) == 0 {
		defs = Builtin()
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = DefaultCacheSize
	}

	cache, err := lru.New(opts.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create constraint cache: %w", err)
	}

	r := &Registry{
		folder:      folder,
		definitions: make(map[string]Definition, len(defs)),
		prefixes:    make([]string, 0, len(defs)),
		cache:       cache,
	}
	for _, d := range defs {
		if _, ok := r.definitions[d.Prefix]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicatePrefix, d.Prefix)
		}
		r.definitions[d.Prefix] = d
		r.prefixes = append(r.prefixes, d.Prefix)
	}
	return r, nil
}

// Default creates a registry of the builtin constraints with default options
func Default(folder locale.Folder) *Registry {
	r, err := NewRegistry(folder, Options{})
	if err != nil {
		panic(err)
	}
	return r
}

// Prefixes returns the registered prefixes starting with partial, compared
// case-insensitively under the registry locale
func (r *Registry) Prefixes(partial string) []string {
	return r.folder.Filter(r.prefixes, partial)
}

// Validate checks that cfg names a registered type with an acceptable parameter
func (r *Registry) Validate(cfg Config) error {
	def, ok := r.definitions[cfg.Prefix]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownPrefix, cfg.Prefix)
	}
	if err := def.Validate(cfg.Param); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidParameter, cfg, err)
	}
	return nil
}

// Compile returns the constraint for cfg, building it on a cache miss
func (r *Registry) Compile(cfg Config) (Constraint, error) {
	key := cfg.Prefix + "\x00" + cfg.Param
	if c, ok := r.cache.Get(key); ok {
		return c.(Constraint), nil
	}

	def, ok := r.definitions[cfg.Prefix]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPrefix, cfg.Prefix)
	}
	c, err := def.Build(cfg.Param)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidParameter, cfg, err)
	}

	r.cache.Add(key, c)
	return c, nil
}

// ParameterSuggestions returns the example parameters for prefix that start with partial
func (r *Registry) ParameterSuggestions(prefix, partial string) ([]string, error) {
	def, ok := r.definitions[prefix]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPrefix, prefix)
	}
	var values []string
	if def.Suggest != nil {
		values = def.Suggest()
	}
	return r.folder.Filter(values, partial), nil
}

// Pipeline compiles cfgs in order
func (r *Registry) Pipeline(cfgs []Config) (Pipeline, error) {
	p := make(Pipeline, 0, len(cfgs))
	for _, cfg := range cfgs {
		c, err := r.Compile(cfg)
		if err != nil {
			return nil, err
		}
		p = append(p, c)
	}
	return p, nil
}
