// ABOUTME: In-memory query execution over a collection's documents
// ABOUTME: Equality filtering, stable typed ordering and offset pagination

package query

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

// Execute filters, orders and pages docs according to q. docs is not modified.
func Execute(docs []Document, q Query) Result {
	matched := make([]Document, 0, len(docs))
	for _, d := range docs {
		if matches(d, q.Filters) {
			matched = append(matched, d)
		}
	}

	sort.SliceStable(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })
	if q.OrderBy != "" {
		sort.SliceStable(matched, func(i, j int) bool {
			return less(matched[i], matched[j], q.OrderBy, q.Descending)
		})
	}

	total := len(matched)
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}
	if offset > total {
		offset = total
	}
	end := total
	if q.Limit > 0 && offset+q.Limit < total {
		end = offset + q.Limit
	}

	return Result{
		Documents: matched[offset:end],
		Total:     total,
		HasMore:   end < total,
	}
}

func matches(d Document, filters map[string]interface{}) bool {
	for field, want := range filters {
		got, ok := d.Get(field)
		if want == nil {
			if ok {
				return false
			}
			continue
		}
		if !ok || !equal(got, want) {
			return false
		}
	}
	return true
}

// equal compares numbers by value and everything else structurally
func equal(a, b any) bool {
	fa, aNum := toFloat(a)
	fb, bNum := toFloat(b)
	if aNum && bNum {
		return fa == fb
	}
	return reflect.DeepEqual(a, b)
}

// kind ranks values for mixed-type ordering
func kind(v any) int {
	if _, ok := toFloat(v); ok {
		return 0
	}
	switch v.(type) {
	case string:
		return 1
	case bool:
		return 2
	default:
		return 3
	}
}

// less orders by field; documents missing the field sort last in either direction
func less(a, b Document, field string, descending bool) bool {
	va, okA := a.Get(field)
	vb, okB := b.Get(field)
	switch {
	case !okA && !okB:
		return false
	case !okA:
		return false
	case !okB:
		return true
	}

	c := compare(va, vb)
	if descending {
		return c > 0
	}
	return c < 0
}

func compare(a, b any) int {
	ka, kb := kind(a), kind(b)
	if ka != kb {
		return ka - kb
	}
	switch ka {
	case 0:
		fa, _ := toFloat(a)
		fb, _ := toFloat(b)
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return 0
	case 1:
		return strings.Compare(a.(string), b.(string))
	case 2:
		ba, bb := a.(bool), b.(bool)
		switch {
		case ba == bb:
			return 0
		case !ba:
			return -1
		}
		return 1
	default:
		return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := strconv.ParseFloat(string(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
