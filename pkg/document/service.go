// ABOUTME: Document write pipeline over the catalog: validate, count, persist
// ABOUTME: Keeps attribute usage counts equal to the number of documents holding each field

package document

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/nainya/doccatalog/internal/logger"
	"github.com/nainya/doccatalog/internal/metrics"
	"github.com/nainya/doccatalog/pkg/catalog"
	"github.com/nainya/doccatalog/pkg/metadata"
	"github.com/nainya/doccatalog/pkg/query"
	"github.com/nainya/doccatalog/pkg/store"
)

// Document is a stored document
type Document = query.Document

// Service creates, updates and searches documents of catalogued collections
type Service struct {
	catalog *catalog.Catalog
	store   store.Store
	log     *logger.Logger
	metrics *metrics.Metrics
	newID   func() string
}

// Option configures a Service
type Option func(*Service)

// WithLogger sets the logger
func WithLogger(l *logger.Logger) Option {
	return func(s *Service) { s.log = l }
}

// WithMetrics sets the metrics sink
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithIDGenerator overrides document ID generation
func WithIDGenerator(fn func() string) Option {
	return func(s *Service) { s.newID = fn }
}

// NewService creates a document service over the catalog's store
func NewService(c *catalog.Catalog, opts ...Option) *Service {
	s := &Service{
		catalog: c,
		store:   c.Store(),
		log:     logger.Nop(),
		newID:   func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) record(operation string, err error) {
	if s.metrics != nil {
		s.metrics.RecordDocumentWrite(operation, err)
	}
}

// Create validates fields, counts each non-null field and stores a new document
func (s *Service) Create(ctx context.Context, user, collection string, fields map[string]any) (Document, error) {
	doc, err := s.create(context.WithoutCancel(ctx), user, collection, fields)
	s.record("create", err)
	return doc, err
}

func (s *Service) create(ctx context.Context, user, collection string, fields map[string]any) (Document, error) {
	container, err := metadata.InternalName(collection)
	if err != nil {
		return Document{}, err
	}

	present := nonNull(fields)
	values, err := s.catalog.Apply(ctx, user, collection, catalog.Change{
		Values:  fields,
		Acquire: present,
	})
	if err != nil {
		return Document{}, err
	}

	doc := Document{ID: s.newID(), Fields: compact(values)}
	if err := s.put(ctx, container, doc); err != nil {
		s.compensate(ctx, user, collection, catalog.Change{Release: present}, err)
		return Document{}, err
	}
	return doc, nil
}

// Update merges fields into a document. A nil value unsets the field.
func (s *Service) Update(ctx context.Context, user, collection, id string, fields map[string]any) (Document, error) {
	doc, err := s.update(context.WithoutCancel(ctx), user, collection, id, fields)
	s.record("update", err)
	return doc, err
}

func (s *Service) update(ctx context.Context, user, collection, id string, fields map[string]any) (Document, error) {
	container, err := metadata.InternalName(collection)
	if err != nil {
		return Document{}, err
	}
	current, err := s.get(ctx, container, id)
	if err != nil {
		return Document{}, err
	}

	var acquire, release []string
	values := make(map[string]any, len(fields))
	for _, name := range sortedKeys(fields) {
		v := fields[name]
		_, had := current.Get(name)
		switch {
		case v == nil && had:
			release = append(release, name)
		case v != nil:
			values[name] = v
			if !had {
				acquire = append(acquire, name)
			}
		}
	}

	normalized, err := s.catalog.Apply(ctx, user, collection, catalog.Change{
		Values:  values,
		Acquire: acquire,
		Release: release,
	})
	if err != nil {
		return Document{}, err
	}

	next := Document{ID: id, Fields: make(map[string]any, len(current.Fields)+len(normalized))}
	for k, v := range current.Fields {
		next.Fields[k] = v
	}
	for _, name := range release {
		delete(next.Fields, name)
	}
	for k, v := range normalized {
		next.Fields[k] = v
	}

	if err := s.put(ctx, container, next); err != nil {
		s.compensate(ctx, user, collection, catalog.Change{Acquire: release, Release: acquire}, err)
		return Document{}, err
	}
	return next, nil
}

// Delete removes a document and releases each of its fields
func (s *Service) Delete(ctx context.Context, user, collection, id string) error {
	err := s.delete(context.WithoutCancel(ctx), user, collection, id)
	s.record("delete", err)
	return err
}

func (s *Service) delete(ctx context.Context, user, collection, id string) error {
	container, err := metadata.InternalName(collection)
	if err != nil {
		return err
	}
	current, err := s.get(ctx, container, id)
	if err != nil {
		return err
	}

	present := nonNull(current.Fields)
	if _, err := s.catalog.Apply(ctx, user, collection, catalog.Change{Release: present}); err != nil {
		return err
	}
	if err := s.store.DeleteDocument(ctx, container, id); err != nil {
		s.compensate(ctx, user, collection, catalog.Change{Acquire: present}, err)
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: %s", catalog.ErrDocumentNotFound, id)
		}
		return err
	}
	return nil
}

// Get returns one document; requires read
func (s *Service) Get(ctx context.Context, user, collection, id string) (Document, error) {
	m, err := s.catalog.Metadata(ctx, user, collection)
	if err != nil {
		return Document{}, err
	}
	return s.get(ctx, m.InternalName, id)
}

// Search filters, orders and pages the collection's documents; requires read
func (s *Service) Search(ctx context.Context, user, collection string, q query.Query) (query.Result, error) {
	m, err := s.catalog.Metadata(ctx, user, collection)
	if err != nil {
		return query.Result{}, err
	}
	docs, err := s.list(ctx, m.InternalName)
	if err != nil {
		return query.Result{}, err
	}

	res := query.Execute(docs, q)
	if s.metrics != nil {
		s.metrics.SearchResultsTotal.Add(float64(len(res.Documents)))
	}
	return res, nil
}

// RenameAttribute renames the attribute in every document holding it and then
// in metadata. On failure the rewritten documents are restored and metadata is
// left untouched.
func (s *Service) RenameAttribute(ctx context.Context, user, collection, oldName, newName string) error {
	ctx = context.WithoutCancel(ctx)
	m, err := s.catalog.Authorize(ctx, user, collection, metadata.Write)
	if err != nil {
		return err
	}
	if err := m.Attributes.Rename(oldName, newName); err != nil {
		return err
	}

	undo, err := s.sweep(ctx, m.InternalName, "rename_attribute", func(fields map[string]any) bool {
		v, ok := fields[oldName]
		if !ok {
			return false
		}
		delete(fields, oldName)
		fields[newName] = v
		return true
	})
	if err != nil {
		return err
	}
	if err := s.catalog.RenameAttribute(ctx, user, collection, oldName, newName); err != nil {
		undo()
		return err
	}
	return nil
}

// DropAttribute removes the attribute from every document and then forgets it.
// On failure the rewritten documents are restored and metadata is left untouched.
func (s *Service) DropAttribute(ctx context.Context, user, collection, name string) error {
	ctx = context.WithoutCancel(ctx)
	m, err := s.catalog.Authorize(ctx, user, collection, metadata.Write)
	if err != nil {
		return err
	}
	if err := m.Attributes.Remove(name); err != nil {
		return err
	}

	undo, err := s.sweep(ctx, m.InternalName, "drop_attribute", func(fields map[string]any) bool {
		if _, ok := fields[name]; !ok {
			return false
		}
		delete(fields, name)
		return true
	})
	if err != nil {
		return err
	}
	if err := s.catalog.RemoveAttribute(ctx, user, collection, name); err != nil {
		undo()
		return err
	}
	return nil
}

// sweep rewrites every document for which edit reports a change. The returned
// func puts the original documents back. A failed sweep restores them itself.
func (s *Service) sweep(ctx context.Context, container, operation string, edit func(map[string]any) bool) (func(), error) {
	raws, err := s.store.ListDocuments(ctx, container)
	if err != nil {
		return nil, err
	}

	var originals []store.Document
	undo := func() {
		for _, raw := range originals {
			if err := s.store.PutDocument(ctx, container, raw); err != nil {
				s.log.Error("failed to restore document after sweep").
					Str("collection", container).
					Str("operation", operation).
					Str("document", raw.ID).
					Err(err).
					Send()
			}
		}
		if len(originals) > 0 {
			s.log.Warn("restored documents after sweep").
				Str("collection", container).
				Str("operation", operation).
				Int("documents", len(originals)).
				Send()
		}
	}

	for _, raw := range raws {
		doc, err := decode(raw)
		if err != nil {
			undo()
			return nil, err
		}
		if !edit(doc.Fields) {
			continue
		}
		if err := s.put(ctx, container, doc); err != nil {
			s.log.Error("document sweep interrupted").
				Str("collection", container).
				Str("operation", operation).
				Str("document", doc.ID).
				Err(err).
				Send()
			undo()
			return nil, err
		}
		originals = append(originals, raw)
	}

	s.log.Debug("document sweep completed").
		Str("collection", container).
		Str("operation", operation).
		Int("documents", len(originals)).
		Send()
	return undo, nil
}

// compensate reverses a count change after the document write failed
func (s *Service) compensate(ctx context.Context, user, collection string, ch catalog.Change, cause error) {
	if len(ch.Acquire) == 0 && len(ch.Release) == 0 {
		return
	}
	if _, err := s.catalog.Apply(ctx, user, collection, ch); err != nil {
		s.log.Error("failed to restore attribute counts").
			Str("collection", collection).
			AnErr("cause", cause).
			Err(err).
			Send()
		return
	}
	s.log.Warn("restored attribute counts after failed document write").
		Str("collection", collection).
		Err(cause).
		Send()
}

func (s *Service) get(ctx context.Context, container, id string) (Document, error) {
	raw, err := s.store.GetDocument(ctx, container, id)
	if errors.Is(err, store.ErrNotFound) {
		return Document{}, fmt.Errorf("%w: %s", catalog.ErrDocumentNotFound, id)
	}
	if err != nil {
		return Document{}, err
	}
	return decode(raw)
}

func (s *Service) list(ctx context.Context, container string) ([]Document, error) {
	raws, err := s.store.ListDocuments(ctx, container)
	if err != nil {
		return nil, err
	}
	docs := make([]Document, 0, len(raws))
	for _, raw := range raws {
		doc, err := decode(raw)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func (s *Service) put(ctx context.Context, container string, doc Document) error {
	data, err := json.Marshal(doc.Fields)
	if err != nil {
		return fmt.Errorf("failed to encode document %s: %w", doc.ID, err)
	}
	return s.store.PutDocument(ctx, container, store.Document{ID: doc.ID, Data: data})
}

func decode(raw store.Document) (Document, error) {
	fields := map[string]any{}
	if err := json.Unmarshal(raw.Data, &fields); err != nil {
		return Document{}, fmt.Errorf("failed to decode document %s: %w", raw.ID, err)
	}
	return Document{ID: raw.ID, Fields: fields}, nil
}

func nonNull(fields map[string]any) []string {
	names := make([]string, 0, len(fields))
	for _, name := range sortedKeys(fields) {
		if fields[name] != nil {
			names = append(names, name)
		}
	}
	return names
}

func compact(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		if v != nil {
			out[k] = v
		}
	}
	return out
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
