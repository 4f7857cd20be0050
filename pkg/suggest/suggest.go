// ABOUTME: Prefix completion for collection names, attribute names and constraint configs
// ABOUTME: Matching is case-insensitive under the configured locale

package suggest

import (
	"context"
	"errors"

	"github.com/nainya/doccatalog/pkg/catalog"
	"github.com/nainya/doccatalog/pkg/constraint"
	"github.com/nainya/doccatalog/pkg/locale"
)

// Service answers completion requests. Every result is sorted and never nil.
type Service struct {
	catalog  *catalog.Catalog
	registry *constraint.Registry
	folder   locale.Folder
}

// New creates a suggestion service
func New(c *catalog.Catalog, reg *constraint.Registry, folder locale.Folder) *Service {
	return &Service{catalog: c, registry: reg, folder: folder}
}

// CollectionNames returns the display names user may read that start with partial
func (s *Service) CollectionNames(ctx context.Context, user, partial string) ([]string, error) {
	names, err := s.catalog.List(ctx, user)
	if err != nil {
		return nil, err
	}
	return s.folder.Filter(names, partial), nil
}

// AttributeNames returns the attributes of collection that start with partial.
// An unknown collection has no attributes.
func (s *Service) AttributeNames(ctx context.Context, user, collection, partial string) ([]string, error) {
	names, err := s.catalog.AttributeNames(ctx, user, collection)
	if errors.Is(err, catalog.ErrCollectionNotFound) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}
	return s.folder.Filter(names, partial), nil
}

// ConstraintPrefixes returns the registered constraint prefixes starting with partial
func (s *Service) ConstraintPrefixes(partial string) []string {
	return s.registry.Prefixes(partial)
}

// ConstraintParameters returns example parameters of prefix starting with partial
func (s *Service) ConstraintParameters(prefix, partial string) ([]string, error) {
	return s.registry.ParameterSuggestions(prefix, partial)
}
