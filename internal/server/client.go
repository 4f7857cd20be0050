package server

import (
	"context"

	"google.golang.org/grpc"
	grpcmd "google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client calls CatalogService methods as one user
type Client struct {
	cc   grpc.ClientConnInterface
	user string
}

// NewClient creates a client acting as user
func NewClient(cc grpc.ClientConnInterface, user string) *Client {
	return &Client{cc: cc, user: user}
}

// As returns a client on the same connection acting as another user
func (c *Client) As(user string) *Client {
	return &Client{cc: c.cc, user: user}
}

// Call invokes method with req and returns the decoded reply
func (c *Client) Call(ctx context.Context, method string, req map[string]any, opts ...grpc.CallOption) (map[string]any, error) {
	in, err := structpb.NewStruct(req)
	if err != nil {
		return nil, err
	}
	if c.user != "" {
		ctx = grpcmd.AppendToOutgoingContext(ctx, UserHeader, c.user)
	}

	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, FullMethod(method), in, out, opts...); err != nil {
		return nil, err
	}
	return out.AsMap(), nil
}

// CreateCollection creates a collection and returns its metadata
func (c *Client) CreateCollection(ctx context.Context, name string) (map[string]any, error) {
	out, err := c.Call(ctx, "CreateCollection", map[string]any{"collection": name})
	if err != nil {
		return nil, err
	}
	m, _ := out["metadata"].(map[string]any)
	return m, nil
}

// CreateDocument stores a new document and returns it
func (c *Client) CreateDocument(ctx context.Context, collection string, fields map[string]any) (map[string]any, error) {
	out, err := c.Call(ctx, "CreateDocument", map[string]any{
		"collection": collection,
		"fields":     fields,
	})
	if err != nil {
		return nil, err
	}
	doc, _ := out["document"].(map[string]any)
	return doc, nil
}

// SearchDocuments runs a search; req carries filters, limit, offset, order_by and descending
func (c *Client) SearchDocuments(ctx context.Context, collection string, req map[string]any) (map[string]any, error) {
	body := map[string]any{"collection": collection}
	for k, v := range req {
		body[k] = v
	}
	return c.Call(ctx, "SearchDocuments", body)
}
