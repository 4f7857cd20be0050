// ABOUTME: Constraint data model: textual configs, definitions, compiled constraints
// ABOUTME: Errors raised at configuration time and at write time

package constraint

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownPrefix indicates a config names a constraint type that is not registered
	ErrUnknownPrefix = errors.New("constraint: unknown prefix")

	// ErrInvalidParameter indicates the parameter is not accepted by the constraint type
	ErrInvalidParameter = errors.New("constraint: invalid parameter")

	// ErrDuplicatePrefix indicates two definitions share a prefix
	ErrDuplicatePrefix = errors.New("constraint: duplicate prefix")
)

// Config is the raw textual configuration of a constraint on an attribute
type Config struct {
	Prefix string `json:"prefix"`
	Param  string `json:"param"`
}

// ParseConfig splits "prefix:param" on the first colon. A config without a
// colon has an empty parameter.
func ParseConfig(s string) Config {
	s = strings.TrimSpace(s)
	prefix, param, _ := strings.Cut(s, ":")
	return Config{Prefix: strings.TrimSpace(prefix), Param: param}
}

// String renders the config in its textual form
func (c Config) String() string {
	if c.Param == "" {
		return c.Prefix
	}
	return c.Prefix + ":" + c.Param
}

// Constraint is a compiled, stateless validator/normalizer. Implementations
// are immutable and safe for concurrent use.
type Constraint interface {
	// Normalize returns the normalized value or a *ValidationError
	Normalize(value any) (any, error)

	// Config returns the configuration the constraint was compiled from
	Config() Config
}

// Definition describes one constraint type
type Definition struct {
	Prefix   string
	Validate func(param string) error
	Suggest  func() []string
	Build    func(param string) (Constraint, error)
}

// ValidationError reports a value rejected by a constraint
type ValidationError struct {
	Attribute string
	Config    Config
	Value     any
	Reason    string
}

func (e *ValidationError) Error() string {
	if e.Attribute == "" {
		return fmt.Sprintf("value %v rejected by %s: %s", e.Value, e.Config, e.Reason)
	}
	return fmt.Sprintf("attribute %q: value %v rejected by %s: %s", e.Attribute, e.Value, e.Config, e.Reason)
}

// reject builds a ValidationError for a compiled constraint
func reject(cfg Config, value any, format string, args ...any) error {
	return &ValidationError{
		Config: cfg,
		Value:  value,
		Reason: fmt.Sprintf(format, args...),
	}
}
