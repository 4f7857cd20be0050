// ABOUTME: Storage contract for catalog records and collection data containers
// ABOUTME: Records carry a version so callers can perform conditional writes

package store

import (
	"context"
	"errors"
)

var (
	// ErrNotFound indicates the record, container or document does not exist
	ErrNotFound = errors.New("store: not found")

	// ErrExists indicates the record or container already exists
	ErrExists = errors.New("store: already exists")

	// ErrVersionConflict indicates a conditional write saw a different version
	ErrVersionConflict = errors.New("store: version conflict")

	// ErrUnavailable indicates the backend could not be reached or failed
	ErrUnavailable = errors.New("store: unavailable")
)

// Record is a named, versioned blob
type Record struct {
	Name    string
	Version int64
	Data    []byte
}

// Document is one entry of a data container
type Document struct {
	ID   string
	Data []byte
}

// Store persists catalog records and the data containers they describe.
// Implementations must be safe for concurrent use.
type Store interface {
	// GetRecord returns the named record or ErrNotFound
	GetRecord(ctx context.Context, name string) (Record, error)

	// CreateRecord stores rec or returns ErrExists
	CreateRecord(ctx context.Context, rec Record) error

	// UpdateRecord replaces rec only if the stored version equals expected,
	// otherwise ErrVersionConflict. A missing record is ErrNotFound.
	UpdateRecord(ctx context.Context, rec Record, expected int64) error

	// DeleteRecord removes the named record or returns ErrNotFound
	DeleteRecord(ctx context.Context, name string) error

	// ListRecords returns the names of all records, sorted
	ListRecords(ctx context.Context) ([]string, error)

	// CreateContainer creates an empty data container or returns ErrExists
	CreateContainer(ctx context.Context, name string) error

	// DropContainer removes a container and all of its documents or returns ErrNotFound
	DropContainer(ctx context.Context, name string) error

	// ContainerExists reports whether the container exists
	ContainerExists(ctx context.Context, name string) (bool, error)

	// PutDocument inserts or replaces a document in an existing container
	PutDocument(ctx context.Context, container string, doc Document) error

	// GetDocument returns a document or ErrNotFound
	GetDocument(ctx context.Context, container, id string) (Document, error)

	// DeleteDocument removes a document or returns ErrNotFound
	DeleteDocument(ctx context.Context, container, id string) error

	// ListDocuments returns every document of a container, sorted by ID
	ListDocuments(ctx context.Context, container string) ([]Document, error)

	// Close releases backend resources
	Close() error
}

// AtomicCreator is implemented by stores that can create a record and its
// container in a single atomic step
type AtomicCreator interface {
	CreateCollection(ctx context.Context, rec Record, container string) error
}
