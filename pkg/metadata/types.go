// ABOUTME: Attribute type enum and the per-attribute catalog entry
// ABOUTME: Types are declared explicitly and checked on write before constraints

package metadata

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/nainya/doccatalog/pkg/constraint"
)

// AttributeType is the declared type of an attribute. The zero value means unset.
type AttributeType string

const (
	TypeUnset  AttributeType = ""
	TypeInt    AttributeType = "int"
	TypeDouble AttributeType = "double"
	TypeBool   AttributeType = "bool"
	TypeString AttributeType = "string"
	TypeDate   AttributeType = "date"
	TypeList   AttributeType = "list"
	TypeNested AttributeType = "nested"
)

// AttributeTypes lists every declarable type
var AttributeTypes = []AttributeType{TypeInt, TypeDouble, TypeBool, TypeString, TypeDate, TypeList, TypeNested}

// ParseAttributeType resolves a type name, case-insensitively
func ParseAttributeType(s string) (AttributeType, error) {
	t := AttributeType(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range AttributeTypes {
		if t == known {
			return t, nil
		}
	}
	return TypeUnset, fmt.Errorf("%w: %q", ErrUnknownAttributeType, s)
}

// Check reports whether value is acceptable for the type. An unset type accepts anything.
func (t AttributeType) Check(value any) error {
	ok := true
	switch t {
	case TypeUnset:
	case TypeInt:
		ok = isInteger(value)
	case TypeDouble:
		ok = isNumber(value)
	case TypeBool:
		_, ok = value.(bool)
	case TypeString:
		_, ok = value.(string)
	case TypeDate:
		ok = isDate(value)
	case TypeList:
		_, ok = value.([]any)
	case TypeNested:
		_, ok = value.(map[string]any)
	default:
		ok = false
	}
	if ok {
		return nil
	}
	return &constraint.ValidationError{
		Config: constraint.Config{Prefix: "type", Param: string(t)},
		Value:  value,
		Reason: fmt.Sprintf("expected %s", t),
	}
}

// AttributeEntry is the catalog state of one attribute
type AttributeEntry struct {
	Name        string              `json:"name"`
	Count       int64               `json:"count"`
	Type        AttributeType       `json:"type,omitempty"`
	Constraints []constraint.Config `json:"constraints"`
}

func (e *AttributeEntry) clone() AttributeEntry {
	c := *e
	c.Constraints = append([]constraint.Config{}, e.Constraints...)
	return c
}

func isInteger(value any) bool {
	switch v := value.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return true
	case float64:
		return v == math.Trunc(v) && !math.IsInf(v, 0)
	case json.Number:
		_, err := v.Int64()
		return err == nil
	default:
		return false
	}
}

func isNumber(value any) bool {
	switch v := value.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32:
		return true
	case float64:
		return !math.IsNaN(v)
	case json.Number:
		_, err := v.Float64()
		return err == nil
	default:
		return false
	}
}

func isDate(value any) bool {
	switch v := value.(type) {
	case time.Time:
		return true
	case string:
		return constraint.IsDateString(v)
	}
	return false
}
