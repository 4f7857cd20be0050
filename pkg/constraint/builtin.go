// ABOUTME: Built-in constraint types (case, range, matches, oneOf, length, number, date)
// ABOUTME: Each variant carries its own parameter validation, suggestions and factory

package constraint

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// Builtin returns the fixed set of constraint definitions
func Builtin() []Definition {
	return []Definition{
		caseDefinition(),
		rangeDefinition(),
		matchesDefinition(),
		oneOfDefinition(),
		lengthDefinition(),
		numberDefinition(),
		dateDefinition(),
	}
}

// ========== case ==========

type caseConstraint struct {
	cfg   Config
	upper bool
}

func caseDefinition() Definition {
	validate := func(param string) error {
		if param != "lower" && param != "upper" {
			return fmt.Errorf("expected lower or upper, got %q", param)
		}
		return nil
	}
	return Definition{
		Prefix:   "case",
		Validate: validate,
		Suggest:  func() []string { return []string{"lower", "upper"} },
		Build: func(param string) (Constraint, error) {
			if err := validate(param); err != nil {
				return nil, err
			}
			return caseConstraint{cfg: Config{Prefix: "case", Param: param}, upper: param == "upper"}, nil
		},
	}
}

func (c caseConstraint) Config() Config { return c.cfg }

func (c caseConstraint) Normalize(value any) (any, error) {
	s, ok := value.(string)
	if !ok {
		return nil, reject(c.cfg, value, "expected a string")
	}
	if c.upper {
		return strings.ToUpper(s), nil
	}
	return strings.ToLower(s), nil
}

// ========== range ==========

type rangeConstraint struct {
	cfg      Config
	min, max *float64
}

func rangeDefinition() Definition {
	return Definition{
		Prefix: "range",
		Validate: func(param string) error {
			_, _, err := parseFloatBounds(param)
			return err
		},
		Suggest: func() []string { return []string{"0,", "0,100", ",0"} },
		Build: func(param string) (Constraint, error) {
			lo, hi, err := parseFloatBounds(param)
			if err != nil {
				return nil, err
			}
			return rangeConstraint{cfg: Config{Prefix: "range", Param: param}, min: lo, max: hi}, nil
		},
	}
}

func (c rangeConstraint) Config() Config { return c.cfg }

func (c rangeConstraint) Normalize(value any) (any, error) {
	f, ok := toFloat(value)
	if !ok {
		return nil, reject(c.cfg, value, "expected a number")
	}
	if c.min != nil && f < *c.min {
		return nil, reject(c.cfg, value, "must be at least %s", formatFloat(*c.min))
	}
	if c.max != nil && f > *c.max {
		return nil, reject(c.cfg, value, "must be at most %s", formatFloat(*c.max))
	}
	return value, nil
}

// parseFloatBounds parses "min,max" where either side may be empty
func parseFloatBounds(param string) (*float64, *float64, error) {
	lo, hi, ok := strings.Cut(param, ",")
	if !ok {
		return nil, nil, fmt.Errorf("expected min,max, got %q", param)
	}
	lo, hi = strings.TrimSpace(lo), strings.TrimSpace(hi)
	if lo == "" && hi == "" {
		return nil, nil, fmt.Errorf("at least one bound is required")
	}

	var minP, maxP *float64
	if lo != "" {
		v, err := strconv.ParseFloat(lo, 64)
		if err != nil || math.IsNaN(v) {
			return nil, nil, fmt.Errorf("invalid lower bound %q", lo)
		}
		minP = &v
	}
	if hi != "" {
		v, err := strconv.ParseFloat(hi, 64)
		if err != nil || math.IsNaN(v) {
			return nil, nil, fmt.Errorf("invalid upper bound %q", hi)
		}
		maxP = &v
	}
	if minP != nil && maxP != nil && *minP > *maxP {
		return nil, nil, fmt.Errorf("lower bound %s exceeds upper bound %s", lo, hi)
	}
	return minP, maxP, nil
}

// ========== matches ==========

type matchesConstraint struct {
	cfg Config
	re  *regexp.Regexp
}

func matchesDefinition() Definition {
	compile := func(param string) (*regexp.Regexp, error) {
		if param == "" {
			return nil, fmt.Errorf("pattern is required")
		}
		return regexp.Compile(param)
	}
	return Definition{
		Prefix: "matches",
		Validate: func(param string) error {
			_, err := compile(param)
			return err
		},
		Suggest: func() []string { return []string{} },
		Build: func(param string) (Constraint, error) {
			re, err := compile(param)
			if err != nil {
				return nil, err
			}
			return matchesConstraint{cfg: Config{Prefix: "matches", Param: param}, re: re}, nil
		},
	}
}

func (c matchesConstraint) Config() Config { return c.cfg }

func (c matchesConstraint) Normalize(value any) (any, error) {
	s, ok := value.(string)
	if !ok {
		return nil, reject(c.cfg, value, "expected a string")
	}
	if !c.re.MatchString(s) {
		return nil, reject(c.cfg, value, "does not match %s", c.re.String())
	}
	return s, nil
}

// ========== oneOf ==========

type oneOfConstraint struct {
	cfg     Config
	allowed map[string]struct{}
}

func oneOfDefinition() Definition {
	parse := func(param string) ([]string, error) {
		var values []string
		for _, v := range strings.Split(param, ",") {
			if v = strings.TrimSpace(v); v != "" {
				values = append(values, v)
			}
		}
		if len(values) == 0 {
			return nil, fmt.Errorf("at least one value is required")
		}
		return values, nil
	}
	return Definition{
		Prefix: "oneOf",
		Validate: func(param string) error {
			_, err := parse(param)
			return err
		},
		Suggest: func() []string { return []string{} },
		Build: func(param string) (Constraint, error) {
			values, err := parse(param)
			if err != nil {
				return nil, err
			}
			allowed := make(map[string]struct{}, len(values))
			for _, v := range values {
				allowed[v] = struct{}{}
			}
			return oneOfConstraint{cfg: Config{Prefix: "oneOf", Param: param}, allowed: allowed}, nil
		},
	}
}

func (c oneOfConstraint) Config() Config { return c.cfg }

func (c oneOfConstraint) Normalize(value any) (any, error) {
	s, ok := value.(string)
	if !ok {
		return nil, reject(c.cfg, value, "expected a string")
	}
	if _, ok := c.allowed[s]; !ok {
		return nil, reject(c.cfg, value, "not one of %s", c.cfg.Param)
	}
	return s, nil
}

// ========== length ==========

type lengthConstraint struct {
	cfg      Config
	min, max int
}

func lengthDefinition() Definition {
	return Definition{
		Prefix: "length",
		Validate: func(param string) error {
			_, _, err := parseIntBounds(param)
			return err
		},
		Suggest: func() []string { return []string{"1,", "1,64", "1,255"} },
		Build: func(param string) (Constraint, error) {
			lo, hi, err := parseIntBounds(param)
			if err != nil {
				return nil, err
			}
			return lengthConstraint{cfg: Config{Prefix: "length", Param: param}, min: lo, max: hi}, nil
		},
	}
}

func (c lengthConstraint) Config() Config { return c.cfg }

func (c lengthConstraint) Normalize(value any) (any, error) {
	s, ok := value.(string)
	if !ok {
		return nil, reject(c.cfg, value, "expected a string")
	}
	n := utf8.RuneCountInString(s)
	if n < c.min {
		return nil, reject(c.cfg, value, "shorter than %d characters", c.min)
	}
	if c.max >= 0 && n > c.max {
		return nil, reject(c.cfg, value, "longer than %d characters", c.max)
	}
	return s, nil
}

// parseIntBounds parses "min,max"; a missing min is 0, a missing max is -1 (unbounded)
func parseIntBounds(param string) (int, int, error) {
	lo, hi, ok := strings.Cut(param, ",")
	if !ok {
		return 0, 0, fmt.Errorf("expected min,max, got %q", param)
	}
	lo, hi = strings.TrimSpace(lo), strings.TrimSpace(hi)
	if lo == "" && hi == "" {
		return 0, 0, fmt.Errorf("at least one bound is required")
	}

	minV, maxV := 0, -1
	if lo != "" {
		v, err := strconv.Atoi(lo)
		if err != nil || v < 0 {
			return 0, 0, fmt.Errorf("invalid lower bound %q", lo)
		}
		minV = v
	}
	if hi != "" {
		v, err := strconv.Atoi(hi)
		if err != nil || v < 0 {
			return 0, 0, fmt.Errorf("invalid upper bound %q", hi)
		}
		maxV = v
	}
	if maxV >= 0 && minV > maxV {
		return 0, 0, fmt.Errorf("lower bound %d exceeds upper bound %d", minV, maxV)
	}
	return minV, maxV, nil
}

// ========== number ==========

type numberConstraint struct {
	cfg     Config
	integer bool
}

func numberDefinition() Definition {
	validate := func(param string) error {
		if param != "integer" && param != "decimal" {
			return fmt.Errorf("expected integer or decimal, got %q", param)
		}
		return nil
	}
	return Definition{
		Prefix:   "number",
		Validate: validate,
		Suggest:  func() []string { return []string{"decimal", "integer"} },
		Build: func(param string) (Constraint, error) {
			if err := validate(param); err != nil {
				return nil, err
			}
			return numberConstraint{cfg: Config{Prefix: "number", Param: param}, integer: param == "integer"}, nil
		},
	}
}

func (c numberConstraint) Config() Config { return c.cfg }

func (c numberConstraint) Normalize(value any) (any, error) {
	f, ok := toFloat(value)
	if !ok || math.IsInf(f, 0) {
		return nil, reject(c.cfg, value, "expected a number")
	}
	if c.integer {
		if f != math.Trunc(f) {
			return nil, reject(c.cfg, value, "expected an integer")
		}
		if f < math.MinInt64 || f >= math.MaxInt64 {
			return nil, reject(c.cfg, value, "integer out of range")
		}
		return int64(f), nil
	}
	return f, nil
}

// ========== date ==========

var dateLayouts = map[string]struct {
	canonical string
	accepted  []string
}{
	"date":     {canonical: "2006-01-02", accepted: []string{"2006-01-02", "2006/01/02", "02.01.2006"}},
	"datetime": {canonical: time.RFC3339, accepted: []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05"}},
	"time":     {canonical: "15:04:05", accepted: []string{"15:04:05", "15:04"}},
}

// IsDateString reports whether s parses with a layout accepted by the date or
// datetime constraint
func IsDateString(s string) bool {
	s = strings.TrimSpace(s)
	for _, param := range []string{"date", "datetime"} {
		for _, layout := range dateLayouts[param].accepted {
			if _, err := time.Parse(layout, s); err == nil {
				return true
			}
		}
	}
	return false
}

type dateConstraint struct {
	cfg       Config
	canonical string
	accepted  []string
}

func dateDefinition() Definition {
	validate := func(param string) error {
		if _, ok := dateLayouts[param]; !ok {
			return fmt.Errorf("expected date, datetime or time, got %q", param)
		}
		return nil
	}
	return Definition{
		Prefix:   "date",
		Validate: validate,
		Suggest:  func() []string { return []string{"date", "datetime", "time"} },
		Build: func(param string) (Constraint, error) {
			if err := validate(param); err != nil {
				return nil, err
			}
			l := dateLayouts[param]
			return dateConstraint{
				cfg:       Config{Prefix: "date", Param: param},
				canonical: l.canonical,
				accepted:  l.accepted,
			}, nil
		},
	}
}

func (c dateConstraint) Config() Config { return c.cfg }

func (c dateConstraint) Normalize(value any) (any, error) {
	switch v := value.(type) {
	case time.Time:
		return v.Format(c.canonical), nil
	case string:
		for _, layout := range c.accepted {
			if t, err := time.Parse(layout, strings.TrimSpace(v)); err == nil {
				return t.Format(c.canonical), nil
			}
		}
		return nil, reject(c.cfg, value, "not a valid %s", c.cfg.Param)
	default:
		return nil, reject(c.cfg, value, "expected a string")
	}
}

// ========== helpers ==========

// toFloat converts numeric values and numeric strings to float64
func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, !math.IsNaN(v)
	case float32:
		return float64(v), !math.IsNaN(float64(v))
	case int:
		return float64(v), true
	case int8:
		return float64(v), true
	case int16:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint8:
		return float64(v), true
	case uint16:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil && !math.IsNaN(f)
	default:
		return 0, false
	}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
