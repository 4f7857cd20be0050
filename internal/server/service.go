// ABOUTME: gRPC service descriptor for doccatalog.v1.CatalogService
// ABOUTME: Every method is unary with google.protobuf.Struct request and response

package server

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name
const ServiceName = "doccatalog.v1.CatalogService"

// CatalogServiceServer is the server API for CatalogService
type CatalogServiceServer interface {
	CreateCollection(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DropCollection(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListCollections(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ReadCollectionMetadata(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SetCollectionMetadata(context.Context, *structpb.Struct) (*structpb.Struct, error)

	AddOrIncrementAttribute(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DropAttribute(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RenameAttribute(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListAttributes(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SetAttributeType(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetAttributeType(context.Context, *structpb.Struct) (*structpb.Struct, error)

	AddConstraint(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DropConstraint(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListConstraints(context.Context, *structpb.Struct) (*structpb.Struct, error)

	GetAccessRights(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SetAccessRights(context.Context, *structpb.Struct) (*structpb.Struct, error)

	CreateDocument(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UpdateDocument(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetDocument(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DeleteDocument(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SearchDocuments(context.Context, *structpb.Struct) (*structpb.Struct, error)

	SuggestCollections(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SuggestAttributes(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SuggestConstraintPrefixes(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SuggestConstraintParameters(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryMethod func(CatalogServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

var methods = []struct {
	name string
	call unaryMethod
}{
	{"CreateCollection", CatalogServiceServer.CreateCollection},
	{"DropCollection", CatalogServiceServer.DropCollection},
	{"ListCollections", CatalogServiceServer.ListCollections},
	{"ReadCollectionMetadata", CatalogServiceServer.ReadCollectionMetadata},
	{"SetCollectionMetadata", CatalogServiceServer.SetCollectionMetadata},
	{"AddOrIncrementAttribute", CatalogServiceServer.AddOrIncrementAttribute},
	{"DropAttribute", CatalogServiceServer.DropAttribute},
	{"RenameAttribute", CatalogServiceServer.RenameAttribute},
	{"ListAttributes", CatalogServiceServer.ListAttributes},
	{"SetAttributeType", CatalogServiceServer.SetAttributeType},
	{"GetAttributeType", CatalogServiceServer.GetAttributeType},
	{"AddConstraint", CatalogServiceServer.AddConstraint},
	{"DropConstraint", CatalogServiceServer.DropConstraint},
	{"ListConstraints", CatalogServiceServer.ListConstraints},
	{"GetAccessRights", CatalogServiceServer.GetAccessRights},
	{"SetAccessRights", CatalogServiceServer.SetAccessRights},
	{"CreateDocument", CatalogServiceServer.CreateDocument},
	{"UpdateDocument", CatalogServiceServer.UpdateDocument},
	{"GetDocument", CatalogServiceServer.GetDocument},
	{"DeleteDocument", CatalogServiceServer.DeleteDocument},
	{"SearchDocuments", CatalogServiceServer.SearchDocuments},
	{"SuggestCollections", CatalogServiceServer.SuggestCollections},
	{"SuggestAttributes", CatalogServiceServer.SuggestAttributes},
	{"SuggestConstraintPrefixes", CatalogServiceServer.SuggestConstraintPrefixes},
	{"SuggestConstraintParameters", CatalogServiceServer.SuggestConstraintParameters},
}

// ServiceDesc is the grpc.ServiceDesc for CatalogService
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*CatalogServiceServer)(nil),
	Methods:     methodDescs(),
	Streams:     []grpc.StreamDesc{},
	Metadata:    "doccatalog/v1/catalog.proto",
}

// RegisterCatalogServiceServer registers srv on s
func RegisterCatalogServiceServer(s grpc.ServiceRegistrar, srv CatalogServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// FullMethod returns the gRPC path of a CatalogService method
func FullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}

func methodDescs() []grpc.MethodDesc {
	descs := make([]grpc.MethodDesc, 0, len(methods))
	for _, m := range methods {
		descs = append(descs, grpc.MethodDesc{
			MethodName: m.name,
			Handler:    handler(m.call, FullMethod(m.name)),
		})
	}
	return descs
}

func handler(call unaryMethod, fullMethod string) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(CatalogServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod,
		}
		next := func(ctx context.Context, req any) (any, error) {
			return call(srv.(CatalogServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, next)
	}
}
