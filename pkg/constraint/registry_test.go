// ABOUTME: Tests for the constraint registry and pipeline
// ABOUTME: Covers prefix lookup, validation, caching and ordered application

package constraint

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nainya/doccatalog/pkg/locale"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	r, err := NewRegistry(locale.MustNew("en-US"), Options{CacheSize: 8})
	require.NoError(t, err)
	return r
}

func TestPrefixes(t *testing.T) {
	r := newTestRegistry(t)

	assert.Equal(t, []string{"case"}, r.Prefixes("ca"))
	assert.Equal(t, []string{"case"}, r.Prefixes("CA"))
	assert.Equal(t, []string{}, r.Prefixes("zz"))
	assert.Equal(t, []string{"case", "date", "length", "matches", "number", "oneOf", "range"}, r.Prefixes(""))
}

func TestDuplicatePrefix(t *testing.T) {
	def := caseDefinition()
	_, err := NewRegistry(locale.MustNew(""), Options{}, def, def)
	assert.ErrorIs(t, err, ErrDuplicatePrefix)
}

func TestValidate(t *testing.T) {
	r := newTestRegistry(t)

	assert.NoError(t, r.Validate(ParseConfig("case:lower")))
	assert.NoError(t, r.Validate(ParseConfig("range:0,1000")))
	assert.NoError(t, r.Validate(ParseConfig("range:,10")))

	assert.ErrorIs(t, r.Validate(ParseConfig("bogus:1")), ErrUnknownPrefix)
	assert.ErrorIs(t, r.Validate(ParseConfig("case:sideways")), ErrInvalidParameter)
	assert.ErrorIs(t, r.Validate(ParseConfig("range:10,1")), ErrInvalidParameter)
	assert.ErrorIs(t, r.Validate(ParseConfig("range:,")), ErrInvalidParameter)
	assert.ErrorIs(t, r.Validate(ParseConfig("matches:([")), ErrInvalidParameter)
}

func TestCompileIsCached(t *testing.T) {
	r := newTestRegistry(t)

	a, err := r.Compile(ParseConfig("case:upper"))
	require.NoError(t, err)
	b, err := r.Compile(ParseConfig("case:upper"))
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Equal(t, 1, r.cache.Len())

	_, err = r.Compile(ParseConfig("nope:x"))
	assert.ErrorIs(t, err, ErrUnknownPrefix)
}

func TestParameterSuggestions(t *testing.T) {
	r := newTestRegistry(t)

	got, err := r.ParameterSuggestions("case", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"lower", "upper"}, got)

	got, err = r.ParameterSuggestions("case", "LO")
	require.NoError(t, err)
	assert.Equal(t, []string{"lower"}, got)

	got, err = r.ParameterSuggestions("matches", "")
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)

	_, err = r.ParameterSuggestions("unknown", "")
	assert.ErrorIs(t, err, ErrUnknownPrefix)
}

func TestPipelineRangeRejects(t *testing.T) {
	r := newTestRegistry(t)

	p, err := r.Pipeline([]Config{ParseConfig("range:0,1000")})
	require.NoError(t, err)

	v, err := p.Apply("total", 500)
	require.NoError(t, err)
	assert.Equal(t, 500, v)

	_, err = p.Apply("total", 5000)
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "total", verr.Attribute)
	assert.Equal(t, Config{Prefix: "range", Param: "0,1000"}, verr.Config)
	assert.Equal(t, 5000, verr.Value)
}

func TestPipelineNormalizesCase(t *testing.T) {
	r := newTestRegistry(t)

	p, err := r.Pipeline([]Config{ParseConfig("case:lower")})
	require.NoError(t, err)

	v, err := p.Apply("customer", "ALICE")
	require.NoError(t, err)
	assert.Equal(t, "alice", v)
}

func TestPipelineOrderMatters(t *testing.T) {
	r := newTestRegistry(t)

	// oneOf sees the lowered value only when case runs first
	lowerFirst, err := r.Pipeline([]Config{ParseConfig("case:lower"), ParseConfig("oneOf:new,paid")})
	require.NoError(t, err)
	v, err := lowerFirst.Apply("status", "PAID")
	require.NoError(t, err)
	assert.Equal(t, "paid", v)

	oneOfFirst, err := r.Pipeline([]Config{ParseConfig("oneOf:new,paid"), ParseConfig("case:lower")})
	require.NoError(t, err)
	_, err = oneOfFirst.Apply("status", "PAID")
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "oneOf", verr.Config.Prefix)
}

func TestPipelineFirstErrorStops(t *testing.T) {
	calls := 0
	counting := Definition{
		Prefix:   "count",
		Validate: func(string) error { return nil },
		Build: func(param string) (Constraint, error) {
			return countingConstraint{calls: &calls}, nil
		},
	}
	r, err := NewRegistry(locale.MustNew(""), Options{}, caseDefinition(), counting)
	require.NoError(t, err)

	p, err := r.Pipeline([]Config{ParseConfig("case:lower"), ParseConfig("count")})
	require.NoError(t, err)

	_, err = p.Apply("name", 42)
	require.Error(t, err)
	assert.Equal(t, 0, calls)
}

func TestEmptyPipelinePassesThrough(t *testing.T) {
	v, err := Pipeline(nil).Apply("x", "value")
	require.NoError(t, err)
	assert.Equal(t, "value", v)
}

type countingConstraint struct {
	calls *int
}

func (c countingConstraint) Normalize(value any) (any, error) {
	*c.calls++
	return value, nil
}

func (c countingConstraint) Config() Config { return Config{Prefix: "count"} }
