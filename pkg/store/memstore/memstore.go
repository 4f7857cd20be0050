// ABOUTME: In-process store backed by maps under a single RWMutex
// ABOUTME: Used for tests and single-node deployments without persistence

package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/nainya/doccatalog/pkg/store"
)

// Store is an in-memory store.Store
type Store struct {
	mu         sync.RWMutex
	records    map[string]store.Record
	containers map[string]map[string][]byte
	closed     bool
}

// New creates an empty in-memory store
func New() *Store {
	return &Store{
		records:    make(map[string]store.Record),
		containers: make(map[string]map[string][]byte),
	}
}

var (
	_ store.Store         = (*Store)(nil)
	_ store.AtomicCreator = (*Store)(nil)
)

func (s *Store) check() error {
	if s.closed {
		return fmt.Errorf("%w: store closed", store.ErrUnavailable)
	}
	return nil
}

func copyBytes(b []byte) []byte {
	return append([]byte(nil), b...)
}

func (s *Store) GetRecord(ctx context.Context, name string) (store.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(); err != nil {
		return store.Record{}, err
	}

	rec, ok := s.records[name]
	if !ok {
		return store.Record{}, fmt.Errorf("%w: record %s", store.ErrNotFound, name)
	}
	rec.Data = copyBytes(rec.Data)
	return rec, nil
}

func (s *Store) CreateRecord(ctx context.Context, rec store.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(); err != nil {
		return err
	}

	if _, ok := s.records[rec.Name]; ok {
		return fmt.Errorf("%w: record %s", store.ErrExists, rec.Name)
	}
	rec.Data = copyBytes(rec.Data)
	s.records[rec.Name] = rec
	return nil
}

func (s *Store) UpdateRecord(ctx context.Context, rec store.Record, expected int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(); err != nil {
		return err
	}

	cur, ok := s.records[rec.Name]
	if !ok {
		return fmt.Errorf("%w: record %s", store.ErrNotFound, rec.Name)
	}
	if cur.Version != expected {
		return fmt.Errorf("%w: record %s at version %d, expected %d", store.ErrVersionConflict, rec.Name, cur.Version, expected)
	}
	rec.Data = copyBytes(rec.Data)
	s.records[rec.Name] = rec
	return nil
}

func (s *Store) DeleteRecord(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(); err != nil {
		return err
	}

	if _, ok := s.records[name]; !ok {
		return fmt.Errorf("%w: record %s", store.ErrNotFound, name)
	}
	delete(s.records, name)
	return nil
}

func (s *Store) ListRecords(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(s.records))
	for name := range s.records {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (s *Store) CreateContainer(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(); err != nil {
		return err
	}

	if _, ok := s.containers[name]; ok {
		return fmt.Errorf("%w: container %s", store.ErrExists, name)
	}
	s.containers[name] = make(map[string][]byte)
	return nil
}

// CreateCollection creates the record and the container under one lock
func (s *Store) CreateCollection(ctx context.Context, rec store.Record, container string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(); err != nil {
		return err
	}

	if _, ok := s.records[rec.Name]; ok {
		return fmt.Errorf("%w: record %s", store.ErrExists, rec.Name)
	}
	if _, ok := s.containers[container]; ok {
		return fmt.Errorf("%w: container %s", store.ErrExists, container)
	}
	rec.Data = copyBytes(rec.Data)
	s.records[rec.Name] = rec
	s.containers[container] = make(map[string][]byte)
	return nil
}

func (s *Store) DropContainer(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(); err != nil {
		return err
	}

	if _, ok := s.containers[name]; !ok {
		return fmt.Errorf("%w: container %s", store.ErrNotFound, name)
	}
	delete(s.containers, name)
	return nil
}

func (s *Store) ContainerExists(ctx context.Context, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(); err != nil {
		return false, err
	}

	_, ok := s.containers[name]
	return ok, nil
}

func (s *Store) PutDocument(ctx context.Context, container string, doc store.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(); err != nil {
		return err
	}

	docs, ok := s.containers[container]
	if !ok {
		return fmt.Errorf("%w: container %s", store.ErrNotFound, container)
	}
	docs[doc.ID] = copyBytes(doc.Data)
	return nil
}

func (s *Store) GetDocument(ctx context.Context, container, id string) (store.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(); err != nil {
		return store.Document{}, err
	}

	docs, ok := s.containers[container]
	if !ok {
		return store.Document{}, fmt.Errorf("%w: container %s", store.ErrNotFound, container)
	}
	data, ok := docs[id]
	if !ok {
		return store.Document{}, fmt.Errorf("%w: document %s/%s", store.ErrNotFound, container, id)
	}
	return store.Document{ID: id, Data: copyBytes(data)}, nil
}

func (s *Store) DeleteDocument(ctx context.Context, container, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(); err != nil {
		return err
	}

	docs, ok := s.containers[container]
	if !ok {
		return fmt.Errorf("%w: container %s", store.ErrNotFound, container)
	}
	if _, ok := docs[id]; !ok {
		return fmt.Errorf("%w: document %s/%s", store.ErrNotFound, container, id)
	}
	delete(docs, id)
	return nil
}

func (s *Store) ListDocuments(ctx context.Context, container string) ([]store.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(); err != nil {
		return nil, err
	}

	docs, ok := s.containers[container]
	if !ok {
		return nil, fmt.Errorf("%w: container %s", store.ErrNotFound, container)
	}
	out := make([]store.Document, 0, len(docs))
	for id, data := range docs {
		out = append(out, store.Document{ID: id, Data: copyBytes(data)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Close marks the store closed; later calls return store.ErrUnavailable
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
