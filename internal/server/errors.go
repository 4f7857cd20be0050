package server

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/nainya/doccatalog/pkg/catalog"
	"github.com/nainya/doccatalog/pkg/constraint"
	"github.com/nainya/doccatalog/pkg/metadata"
)

var codeTable = []struct {
	err  error
	code codes.Code
}{
	{metadata.ErrInvalidAttributeName, codes.InvalidArgument},
	{metadata.ErrInvalidCollectionName, codes.InvalidArgument},
	{metadata.ErrUnknownAttributeType, codes.InvalidArgument},
	{metadata.ErrReservedKey, codes.InvalidArgument},
	{constraint.ErrUnknownPrefix, codes.InvalidArgument},
	{constraint.ErrInvalidParameter, codes.InvalidArgument},
	{metadata.ErrUnknownAttribute, codes.NotFound},
	{catalog.ErrCollectionNotFound, codes.NotFound},
	{catalog.ErrDocumentNotFound, codes.NotFound},
	{catalog.ErrDuplicateCollection, codes.AlreadyExists},
	{metadata.ErrDuplicateAttribute, codes.AlreadyExists},
	{metadata.ErrTypeConflict, codes.FailedPrecondition},
	{catalog.ErrAccessDenied, codes.PermissionDenied},
	{catalog.ErrStorageUnavailable, codes.Unavailable},
	{context.Canceled, codes.Canceled},
	{context.DeadlineExceeded, codes.DeadlineExceeded},
}

// Code returns the status code a service error is reported with
func Code(err error) codes.Code {
	if err == nil {
		return codes.OK
	}
	if s, ok := status.FromError(err); ok {
		return s.Code()
	}
	var verr *constraint.ValidationError
	if errors.As(err, &verr) {
		return codes.InvalidArgument
	}
	for _, e := range codeTable {
		if errors.Is(err, e.err) {
			return e.code
		}
	}
	return codes.Internal
}

// toStatus converts a service error into a gRPC status error
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	code := Code(err)
	if code == codes.Internal {
		return status.Error(code, "internal error")
	}
	return status.Error(code, err.Error())
}
