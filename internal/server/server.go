// Package server implements the gRPC CatalogService
package server

import (
	"context"

	"google.golang.org/grpc/codes"
	grpcmd "google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/nainya/doccatalog/internal/logger"
	"github.com/nainya/doccatalog/pkg/catalog"
	"github.com/nainya/doccatalog/pkg/constraint"
	"github.com/nainya/doccatalog/pkg/document"
	"github.com/nainya/doccatalog/pkg/metadata"
	"github.com/nainya/doccatalog/pkg/query"
	"github.com/nainya/doccatalog/pkg/suggest"
)

// UserHeader is the incoming metadata key carrying the acting user
const UserHeader = "x-user"

// Server implements the CatalogServiceServer interface
type Server struct {
	catalog *catalog.Catalog
	docs    *document.Service
	suggest *suggest.Service
	log     *logger.Logger
}

var _ CatalogServiceServer = (*Server)(nil)

// NewServer creates a new gRPC server instance
func NewServer(c *catalog.Catalog, docs *document.Service, sug *suggest.Service, log *logger.Logger) *Server {
	if log == nil {
		log = logger.Nop()
	}
	return &Server{
		catalog: c,
		docs:    docs,
		suggest: sug,
		log:     log,
	}
}

func userFrom(ctx context.Context) (string, error) {
	md, ok := grpcmd.FromIncomingContext(ctx)
	if !ok {
		return "", status.Error(codes.Unauthenticated, UserHeader+" metadata is required")
	}
	vals := md.Get(UserHeader)
	if len(vals) == 0 || vals[0] == "" {
		return "", status.Error(codes.Unauthenticated, UserHeader+" metadata is required")
	}
	return vals[0], nil
}

// handle resolves the acting user, runs fn and encodes its reply
func (s *Server) handle(ctx context.Context, req *structpb.Struct, fn func(user string, a args) (map[string]any, error)) (*structpb.Struct, error) {
	user, err := userFrom(ctx)
	if err != nil {
		return nil, err
	}
	out, err := fn(user, newArgs(req))
	if err != nil {
		return nil, toStatus(err)
	}
	if out == nil {
		return empty(), nil
	}
	return encode(out)
}

// ========== Collection Operations ==========

func (s *Server) CreateCollection(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.handle(ctx, req, func(user string, a args) (map[string]any, error) {
		name, err := a.str("collection")
		if err != nil {
			return nil, err
		}
		m, err := s.catalog.Create(ctx, user, name)
		if err != nil {
			return nil, err
		}
		return map[string]any{"metadata": m}, nil
	})
}

func (s *Server) DropCollection(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.handle(ctx, req, func(user string, a args) (map[string]any, error) {
		name, err := a.str("collection")
		if err != nil {
			return nil, err
		}
		return nil, s.catalog.Drop(ctx, user, name)
	})
}

func (s *Server) ListCollections(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.handle(ctx, req, func(user string, a args) (map[string]any, error) {
		names, err := s.catalog.List(ctx, user)
		if err != nil {
			return nil, err
		}
		return map[string]any{"collections": names}, nil
	})
}

func (s *Server) ReadCollectionMetadata(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.handle(ctx, req, func(user string, a args) (map[string]any, error) {
		name, err := a.str("collection")
		if err != nil {
			return nil, err
		}
		m, err := s.catalog.Metadata(ctx, user, name)
		if err != nil {
			return nil, err
		}
		return map[string]any{"metadata": m}, nil
	})
}

// SetCollectionMetadata sets one custom metadata key; a null value removes it
func (s *Server) SetCollectionMetadata(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.handle(ctx, req, func(user string, a args) (map[string]any, error) {
		name, err := a.str("collection")
		if err != nil {
			return nil, err
		}
		key, err := a.str("key")
		if err != nil {
			return nil, err
		}
		return nil, s.catalog.SetCustomMetadata(ctx, user, name, key, a["value"])
	})
}

// ========== Attribute Operations ==========

func (s *Server) AddOrIncrementAttribute(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.handle(ctx, req, func(user string, a args) (map[string]any, error) {
		coll, attr, err := collectionAttribute(a)
		if err != nil {
			return nil, err
		}
		e, err := s.catalog.AddOrIncrementAttribute(ctx, user, coll, attr)
		if err != nil {
			return nil, err
		}
		return map[string]any{"attribute": e}, nil
	})
}

// DropAttribute forgets the attribute and strips it from every document
func (s *Server) DropAttribute(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.handle(ctx, req, func(user string, a args) (map[string]any, error) {
		coll, attr, err := collectionAttribute(a)
		if err != nil {
			return nil, err
		}
		return nil, s.docs.DropAttribute(ctx, user, coll, attr)
	})
}

func (s *Server) RenameAttribute(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.handle(ctx, req, func(user string, a args) (map[string]any, error) {
		coll, attr, err := collectionAttribute(a)
		if err != nil {
			return nil, err
		}
		newName, err := a.str("new_name")
		if err != nil {
			return nil, err
		}
		return nil, s.docs.RenameAttribute(ctx, user, coll, attr, newName)
	})
}

func (s *Server) ListAttributes(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.handle(ctx, req, func(user string, a args) (map[string]any, error) {
		coll, err := a.str("collection")
		if err != nil {
			return nil, err
		}
		entries, err := s.catalog.ListAttributes(ctx, user, coll)
		if err != nil {
			return nil, err
		}
		return map[string]any{"attributes": entries}, nil
	})
}

func (s *Server) SetAttributeType(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.handle(ctx, req, func(user string, a args) (map[string]any, error) {
		coll, attr, err := collectionAttribute(a)
		if err != nil {
			return nil, err
		}
		raw, err := a.str("type")
		if err != nil {
			return nil, err
		}
		t, err := metadata.ParseAttributeType(raw)
		if err != nil {
			return nil, err
		}
		return nil, s.catalog.SetAttributeType(ctx, user, coll, attr, t)
	})
}

func (s *Server) GetAttributeType(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.handle(ctx, req, func(user string, a args) (map[string]any, error) {
		coll, attr, err := collectionAttribute(a)
		if err != nil {
			return nil, err
		}
		t, err := s.catalog.GetAttributeType(ctx, user, coll, attr)
		if err != nil {
			return nil, err
		}
		return map[string]any{"type": string(t)}, nil
	})
}

// ========== Constraint Operations ==========

func (s *Server) AddConstraint(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.handle(ctx, req, func(user string, a args) (map[string]any, error) {
		coll, attr, cfg, err := constraintArgs(a)
		if err != nil {
			return nil, err
		}
		return nil, s.catalog.AddConstraint(ctx, user, coll, attr, cfg)
	})
}

func (s *Server) DropConstraint(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.handle(ctx, req, func(user string, a args) (map[string]any, error) {
		coll, attr, cfg, err := constraintArgs(a)
		if err != nil {
			return nil, err
		}
		return nil, s.catalog.DropConstraint(ctx, user, coll, attr, cfg)
	})
}

func (s *Server) ListConstraints(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.handle(ctx, req, func(user string, a args) (map[string]any, error) {
		coll, attr, err := collectionAttribute(a)
		if err != nil {
			return nil, err
		}
		cfgs, err := s.catalog.ListConstraints(ctx, user, coll, attr)
		if err != nil {
			return nil, err
		}
		out := make([]string, len(cfgs))
		for i, cfg := range cfgs {
			out[i] = cfg.String()
		}
		return map[string]any{"constraints": out}, nil
	})
}

// ========== Access Operations ==========

func (s *Server) GetAccessRights(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.handle(ctx, req, func(user string, a args) (map[string]any, error) {
		coll, err := a.str("collection")
		if err != nil {
			return nil, err
		}
		rights, err := s.catalog.GetAccessRights(ctx, user, coll)
		if err != nil {
			return nil, err
		}
		return map[string]any{"access_rights": rights}, nil
	})
}

func (s *Server) SetAccessRights(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.handle(ctx, req, func(user string, a args) (map[string]any, error) {
		coll, err := a.str("collection")
		if err != nil {
			return nil, err
		}
		target, err := a.str("target")
		if err != nil {
			return nil, err
		}
		read, err := a.boolean("read")
		if err != nil {
			return nil, err
		}
		write, err := a.boolean("write")
		if err != nil {
			return nil, err
		}
		execute, err := a.boolean("execute")
		if err != nil {
			return nil, err
		}
		return nil, s.catalog.SetAccessRights(ctx, user, coll, target, read, write, execute)
	})
}

// ========== Document Operations ==========

func (s *Server) CreateDocument(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.handle(ctx, req, func(user string, a args) (map[string]any, error) {
		coll, err := a.str("collection")
		if err != nil {
			return nil, err
		}
		fields, err := a.object("fields")
		if err != nil {
			return nil, err
		}
		doc, err := s.docs.Create(ctx, user, coll, fields)
		if err != nil {
			return nil, err
		}
		return map[string]any{"document": doc}, nil
	})
}

// UpdateDocument merges fields into a document; null values unset fields
func (s *Server) UpdateDocument(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.handle(ctx, req, func(user string, a args) (map[string]any, error) {
		coll, id, err := collectionDocument(a)
		if err != nil {
			return nil, err
		}
		fields, err := a.object("fields")
		if err != nil {
			return nil, err
		}
		doc, err := s.docs.Update(ctx, user, coll, id, fields)
		if err != nil {
			return nil, err
		}
		return map[string]any{"document": doc}, nil
	})
}

func (s *Server) GetDocument(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.handle(ctx, req, func(user string, a args) (map[string]any, error) {
		coll, id, err := collectionDocument(a)
		if err != nil {
			return nil, err
		}
		doc, err := s.docs.Get(ctx, user, coll, id)
		if err != nil {
			return nil, err
		}
		return map[string]any{"document": doc}, nil
	})
}

func (s *Server) DeleteDocument(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.handle(ctx, req, func(user string, a args) (map[string]any, error) {
		coll, id, err := collectionDocument(a)
		if err != nil {
			return nil, err
		}
		return nil, s.docs.Delete(ctx, user, coll, id)
	})
}

func (s *Server) SearchDocuments(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.handle(ctx, req, func(user string, a args) (map[string]any, error) {
		coll, err := a.str("collection")
		if err != nil {
			return nil, err
		}
		q, err := searchQuery(a)
		if err != nil {
			return nil, err
		}
		res, err := s.docs.Search(ctx, user, coll, q)
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"documents": res.Documents,
			"total":     res.Total,
			"has_more":  res.HasMore,
		}, nil
	})
}

// ========== Suggestion Operations ==========

func (s *Server) SuggestCollections(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.handle(ctx, req, func(user string, a args) (map[string]any, error) {
		partial, err := a.optStr("partial")
		if err != nil {
			return nil, err
		}
		out, err := s.suggest.CollectionNames(ctx, user, partial)
		if err != nil {
			return nil, err
		}
		return map[string]any{"suggestions": out}, nil
	})
}

func (s *Server) SuggestAttributes(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.handle(ctx, req, func(user string, a args) (map[string]any, error) {
		coll, err := a.str("collection")
		if err != nil {
			return nil, err
		}
		partial, err := a.optStr("partial")
		if err != nil {
			return nil, err
		}
		out, err := s.suggest.AttributeNames(ctx, user, coll, partial)
		if err != nil {
			return nil, err
		}
		return map[string]any{"suggestions": out}, nil
	})
}

func (s *Server) SuggestConstraintPrefixes(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.handle(ctx, req, func(user string, a args) (map[string]any, error) {
		partial, err := a.optStr("partial")
		if err != nil {
			return nil, err
		}
		return map[string]any{"suggestions": s.suggest.ConstraintPrefixes(partial)}, nil
	})
}

func (s *Server) SuggestConstraintParameters(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	return s.handle(ctx, req, func(user string, a args) (map[string]any, error) {
		prefix, err := a.str("prefix")
		if err != nil {
			return nil, err
		}
		partial, err := a.optStr("partial")
		if err != nil {
			return nil, err
		}
		out, err := s.suggest.ConstraintParameters(prefix, partial)
		if err != nil {
			return nil, err
		}
		return map[string]any{"suggestions": out}, nil
	})
}

// ========== Request Helpers ==========

func collectionAttribute(a args) (string, string, error) {
	coll, err := a.str("collection")
	if err != nil {
		return "", "", err
	}
	attr, err := a.str("attribute")
	if err != nil {
		return "", "", err
	}
	return coll, attr, nil
}

func collectionDocument(a args) (string, string, error) {
	coll, err := a.str("collection")
	if err != nil {
		return "", "", err
	}
	id, err := a.str("id")
	if err != nil {
		return "", "", err
	}
	return coll, id, nil
}

func constraintArgs(a args) (string, string, constraint.Config, error) {
	coll, attr, err := collectionAttribute(a)
	if err != nil {
		return "", "", constraint.Config{}, err
	}
	raw, err := a.str("constraint")
	if err != nil {
		return "", "", constraint.Config{}, err
	}
	return coll, attr, constraint.ParseConfig(raw), nil
}

func searchQuery(a args) (query.Query, error) {
	filters, err := a.object("filters")
	if err != nil {
		return query.Query{}, err
	}
	limit, err := a.integer("limit", query.DefaultLimit)
	if err != nil {
		return query.Query{}, err
	}
	offset, err := a.integer("offset", 0)
	if err != nil {
		return query.Query{}, err
	}
	orderBy, err := a.optStr("order_by")
	if err != nil {
		return query.Query{}, err
	}
	desc, err := a.boolean("descending")
	if err != nil {
		return query.Query{}, err
	}

	b := query.NewQueryBuilder().Limit(limit).Offset(offset).OrderBy(orderBy, desc)
	for field, v := range filters {
		b = b.Where(field, v)
	}
	return b.Build(), nil
}
