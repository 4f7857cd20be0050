// Package catalog manages collection metadata records on top of a store.Store
package catalog

import (
	"errors"

	"github.com/nainya/doccatalog/pkg/store"
)

var (
	// ErrAccessDenied indicates the acting user lacks the required right
	ErrAccessDenied = errors.New("access denied")

	// ErrDuplicateCollection indicates a collection with the same internal name exists
	ErrDuplicateCollection = errors.New("catalog: duplicate collection")

	// ErrCollectionNotFound indicates the collection has no metadata record
	ErrCollectionNotFound = errors.New("catalog: collection not found")

	// ErrDocumentNotFound indicates the document does not exist in the collection
	ErrDocumentNotFound = errors.New("catalog: document not found")

	// ErrStorageUnavailable indicates a store fault or exhausted conflict retries
	ErrStorageUnavailable = store.ErrUnavailable
)
