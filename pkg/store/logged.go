package store

import (
	"context"
	"errors"
	"time"

	"github.com/nainya/doccatalog/internal/logger"
)

// WithLogging wraps s so that every call is logged at debug level and every
// backend fault at error level. Outcome errors such as ErrNotFound or
// ErrVersionConflict are not faults. Atomic creation is preserved.
func WithLogging(s Store, log *logger.Logger) Store {
	l := &logged{next: s, log: log}
	if a, ok := s.(AtomicCreator); ok {
		return &loggedAtomic{logged: l, atomic: a}
	}
	return l
}

type logged struct {
	next Store
	log  *logger.Logger
}

func (l *logged) done(operation string, start time.Time, err error) {
	if !errors.Is(err, ErrUnavailable) {
		err = nil
	}
	l.log.LogStoreOperation(operation, time.Since(start), err)
}

func (l *logged) GetRecord(ctx context.Context, name string) (Record, error) {
	start := time.Now()
	rec, err := l.next.GetRecord(ctx, name)
	l.done("get_record", start, err)
	return rec, err
}

func (l *logged) CreateRecord(ctx context.Context, rec Record) error {
	start := time.Now()
	err := l.next.CreateRecord(ctx, rec)
	l.done("create_record", start, err)
	return err
}

func (l *logged) UpdateRecord(ctx context.Context, rec Record, expected int64) error {
	start := time.Now()
	err := l.next.UpdateRecord(ctx, rec, expected)
	l.done("update_record", start, err)
	return err
}

func (l *logged) DeleteRecord(ctx context.Context, name string) error {
	start := time.Now()
	err := l.next.DeleteRecord(ctx, name)
	l.done("delete_record", start, err)
	return err
}

func (l *logged) ListRecords(ctx context.Context) ([]string, error) {
	start := time.Now()
	names, err := l.next.ListRecords(ctx)
	l.done("list_records", start, err)
	return names, err
}

func (l *logged) CreateContainer(ctx context.Context, name string) error {
	start := time.Now()
	err := l.next.CreateContainer(ctx, name)
	l.done("create_container", start, err)
	return err
}

func (l *logged) DropContainer(ctx context.Context, name string) error {
	start := time.Now()
	err := l.next.DropContainer(ctx, name)
	l.done("drop_container", start, err)
	return err
}

func (l *logged) ContainerExists(ctx context.Context, name string) (bool, error) {
	start := time.Now()
	ok, err := l.next.ContainerExists(ctx, name)
	l.done("container_exists", start, err)
	return ok, err
}

func (l *logged) PutDocument(ctx context.Context, container string, doc Document) error {
	start := time.Now()
	err := l.next.PutDocument(ctx, container, doc)
	l.done("put_document", start, err)
	return err
}

func (l *logged) GetDocument(ctx context.Context, container, id string) (Document, error) {
	start := time.Now()
	doc, err := l.next.GetDocument(ctx, container, id)
	l.done("get_document", start, err)
	return doc, err
}

func (l *logged) DeleteDocument(ctx context.Context, container, id string) error {
	start := time.Now()
	err := l.next.DeleteDocument(ctx, container, id)
	l.done("delete_document", start, err)
	return err
}

func (l *logged) ListDocuments(ctx context.Context, container string) ([]Document, error) {
	start := time.Now()
	docs, err := l.next.ListDocuments(ctx, container)
	l.done("list_documents", start, err)
	return docs, err
}

func (l *logged) Close() error {
	return l.next.Close()
}

type loggedAtomic struct {
	*logged
	atomic AtomicCreator
}

func (l *loggedAtomic) CreateCollection(ctx context.Context, rec Record, container string) error {
	start := time.Now()
	err := l.atomic.CreateCollection(ctx, rec, container)
	l.done("create_collection", start, err)
	return err
}
