// ABOUTME: Document query types: filters, ordering and pagination
// ABOUTME: Fluent QueryBuilder for constructing queries

package query

// IDField addresses the document identifier in filters and ordering
const IDField = "_id"

// DefaultLimit is the page size of a freshly built query
const DefaultLimit = 100

// Document is a schemaless document as seen by queries
type Document struct {
	ID     string         `json:"_id"`
	Fields map[string]any `json:"fields"`
}

// Get returns a field value, resolving IDField to the document ID
func (d Document) Get(field string) (any, bool) {
	if field == IDField {
		return d.ID, true
	}
	v, ok := d.Fields[field]
	if ok && v == nil {
		return nil, false
	}
	return v, ok
}

// Query selects, orders and pages documents. A Limit of zero or less means no limit.
type Query struct {
	Filters    map[string]interface{}
	Limit      int
	Offset     int
	OrderBy    string
	Descending bool
}

// Result is one page of matching documents
type Result struct {
	Documents []Document
	Total     int
	HasMore   bool
}

// QueryBuilder provides fluent interface for building queries
type QueryBuilder struct {
	query Query
}

// NewQueryBuilder creates a new query builder
func NewQueryBuilder() *QueryBuilder {
	return &QueryBuilder{
		query: Query{
			Filters: make(map[string]interface{}),
			Limit:   DefaultLimit,
		},
	}
}

// Where adds an equality filter
func (qb *QueryBuilder) Where(key string, value interface{}) *QueryBuilder {
	qb.query.Filters[key] = value
	return qb
}

// Limit sets the result limit
func (qb *QueryBuilder) Limit(limit int) *QueryBuilder {
	qb.query.Limit = limit
	return qb
}

// Offset sets the result offset
func (qb *QueryBuilder) Offset(offset int) *QueryBuilder {
	qb.query.Offset = offset
	return qb
}

// OrderBy sets ordering field
func (qb *QueryBuilder) OrderBy(field string, descending bool) *QueryBuilder {
	qb.query.OrderBy = field
	qb.query.Descending = descending
	return qb
}

// Build returns the constructed query
func (qb *QueryBuilder) Build() Query {
	return qb.query
}
