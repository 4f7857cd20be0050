// ABOUTME: Collection metadata record: identity, attributes, access rights, custom fields
// ABOUTME: Persisted as one JSON document per collection and versioned for optimistic writes

package metadata

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/nainya/doccatalog/pkg/constraint"
)

const (
	internalPrefix = "collection."
	internalSuffix = "_0"
	recordPrefix   = "meta."
)

// reservedCustomKeys are the JSON field names of CollectionMetadata
var reservedCustomKeys = map[string]struct{}{
	"internal_name": {},
	"display_name":  {},
	"attributes":    {},
	"access_rights": {},
	"custom":        {},
	"created_by":    {},
	"created_at":    {},
	"updated_at":    {},
	"version":       {},
}

// CollectionMetadata is the catalog record of one collection
type CollectionMetadata struct {
	InternalName string            `json:"internal_name"`
	DisplayName  string            `json:"display_name"`
	Attributes   AttributeRegistry `json:"attributes"`
	AccessRights AccessRights      `json:"access_rights"`
	Custom       map[string]any    `json:"custom"`
	CreatedBy    string            `json:"created_by"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
	Version      int64             `json:"version"`
}

// lastVersion is the most recent initial version handed out by New
var lastVersion atomic.Int64

// initialVersion returns a version no earlier incarnation of any collection
// created by this process has used: the creation time in microseconds, bumped
// past the previous seed when the clock repeats or runs backwards
func initialVersion(now time.Time) int64 {
	for {
		prev := lastVersion.Load()
		next := now.UnixMicro()
		if next <= prev {
			next = prev + 1
		}
		if lastVersion.CompareAndSwap(prev, next) {
			return next
		}
	}
}

// InternalName derives the storage identifier of a collection from its display name
func InternalName(displayName string) (string, error) {
	fields := strings.Fields(displayName)
	if len(fields) == 0 {
		return "", ErrInvalidCollectionName
	}
	return internalPrefix + strings.ToLower(strings.Join(fields, "_")) + internalSuffix, nil
}

// RecordName derives the name of the metadata record of a collection
func RecordName(displayName string) (string, error) {
	internal, err := InternalName(displayName)
	if err != nil {
		return "", err
	}
	return recordPrefix + internal, nil
}

// IsRecordName reports whether name belongs to a collection metadata record
func IsRecordName(name string) bool {
	return strings.HasPrefix(name, recordPrefix+internalPrefix)
}

// ContainerName returns the data container name for a metadata record name
func ContainerName(recordName string) string {
	return strings.TrimPrefix(recordName, recordPrefix)
}

// New creates metadata for a fresh collection; the creator holds all rights.
// The initial version differs from every earlier incarnation of the same name,
// so a conditional write prepared against a dropped collection cannot land on
// its successor.
func New(displayName, creator string, now time.Time) (*CollectionMetadata, error) {
	internal, err := InternalName(displayName)
	if err != nil {
		return nil, err
	}
	m := &CollectionMetadata{
		InternalName: internal,
		DisplayName:  strings.TrimSpace(displayName),
		Attributes:   AttributeRegistry{},
		AccessRights: AccessRights{},
		Custom:       map[string]any{},
		CreatedBy:    creator,
		CreatedAt:    now.UTC(),
		UpdatedAt:    now.UTC(),
		Version:      initialVersion(now),
	}
	m.AccessRights.Set(creator, true, true, true)
	return m, nil
}

// RecordName returns the metadata record name for this collection
func (m *CollectionMetadata) RecordName() string {
	return recordPrefix + m.InternalName
}

// SetCustom stores a user-defined metadata value. A nil value removes the key.
func (m *CollectionMetadata) SetCustom(key string, value any) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("%w: empty key", ErrReservedKey)
	}
	if _, ok := reservedCustomKeys[key]; ok {
		return fmt.Errorf("%w: %q", ErrReservedKey, key)
	}
	if m.Custom == nil {
		m.Custom = map[string]any{}
	}
	if value == nil {
		delete(m.Custom, key)
		return nil
	}
	m.Custom[key] = value
	return nil
}

// Encode serializes the record
func (m *CollectionMetadata) Encode() ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode metadata %s: %w", m.InternalName, err)
	}
	return data, nil
}

// Decode parses a record produced by Encode
func Decode(data []byte) (*CollectionMetadata, error) {
	var m CollectionMetadata
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to decode metadata: %w", err)
	}
	if m.Attributes == nil {
		m.Attributes = AttributeRegistry{}
	}
	for name, e := range m.Attributes {
		if e == nil {
			delete(m.Attributes, name)
			continue
		}
		e.Name = name
		if e.Constraints == nil {
			e.Constraints = []constraint.Config{}
		}
	}
	if m.AccessRights == nil {
		m.AccessRights = AccessRights{}
	}
	if m.Custom == nil {
		m.Custom = map[string]any{}
	}
	return &m, nil
}
