// Package metadata models per-collection catalog state: attributes, access rights and identity
package metadata

import "errors"

var (
	// ErrInvalidAttributeName indicates an empty or reserved attribute name
	ErrInvalidAttributeName = errors.New("metadata: invalid attribute name")

	// ErrDuplicateAttribute indicates the target name of a rename already exists
	ErrDuplicateAttribute = errors.New("metadata: duplicate attribute")

	// ErrUnknownAttribute indicates the attribute has no entry
	ErrUnknownAttribute = errors.New("metadata: unknown attribute")

	// ErrTypeConflict indicates the attribute is already fixed to a different type
	ErrTypeConflict = errors.New("metadata: type conflict")

	// ErrInvalidCollectionName indicates an empty display name
	ErrInvalidCollectionName = errors.New("metadata: invalid collection name")

	// ErrUnknownAttributeType indicates a type name outside the closed set
	ErrUnknownAttributeType = errors.New("metadata: unknown attribute type")

	// ErrReservedKey indicates a custom metadata key collides with a catalog field
	ErrReservedKey = errors.New("metadata: reserved key")
)
