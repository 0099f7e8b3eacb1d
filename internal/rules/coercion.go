// internal/rules/coercion.go
package rules

import (
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/solatis/condfields/internal/types"
)

/*
 * Value coercion for dependency evaluation.
 *
 * Submitted values arrive as decoded JSON: strings, float64 numbers, bools,
 * nil, []any lists and map[string]any rows. Stored reference values come
 * from the rule option bag in the same shapes.
 *
 * Rules preserved literally:
 *   - "_none" (the "no selection" option) counts as empty
 *   - emptiness: nil, "", "0", false, 0 and empty lists/maps
 *   - strict comparison keeps "" and "0" distinct
 *   - an integer compared against a numeric string coerces the string
 *   - an integral float64 counts as an integer (JSON has one number type)
 *   - bool never strictly equals a number
 *
 * Lists and maps are both "indexed" values: lists by position, maps by key
 * with numeric keys first in numeric order, then the rest sorted. Sorting
 * keeps evaluation deterministic across identical inputs.
 */

// NoneSentinel is the option key of an unselected select list.
const NoneSentinel = "_none"

var numericPattern = regexp.MustCompile(`^[ \t\n\r\v\f]*[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?[ \t\n\r\v\f]*$`)

// normalizeNone maps the no-selection sentinel to the empty string.
func normalizeNone(v any) any {
	if s, ok := v.(string); ok && s == NoneSentinel {
		return ""
	}
	return v
}

// isEmpty reports emptiness by loose truthiness.
func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == "" || t == "0"
	case bool:
		return !t
	case float64:
		return t == 0
	case int:
		return t == 0
	case int64:
		return t == 0
	case []any:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	default:
		return false
	}
}

// isIndexed reports whether v is a list or a map.
func isIndexed(v any) bool {
	switch v.(type) {
	case []any, map[string]any:
		return true
	}
	return false
}

// isNumeric accepts numbers and numeric strings.
func isNumeric(v any) bool {
	switch t := v.(type) {
	case float64, int, int64:
		return true
	case string:
		return numericPattern.MatchString(t)
	}
	return false
}

// isInt reports whether v is an integer value.
func isInt(v any) bool {
	switch t := v.(type) {
	case int, int64:
		return true
	case float64:
		return !math.IsInf(t, 0) && t == math.Trunc(t)
	}
	return false
}

// toInt truncates a number or numeric string. Non-numeric input yields 0.
func toInt(v any) int64 {
	switch t := v.(type) {
	case int:
		return int64(t)
	case int64:
		return t
	case float64:
		return int64(t)
	case bool:
		if t {
			return 1
		}
		return 0
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0
		}
		return int64(f)
	}
	return 0
}

// toFloat64 converts a number or numeric string.
func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		if !numericPattern.MatchString(n) {
			return 0, false
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}

// entry is one element of an indexed value.
type entry struct {
	Key   string
	Value any
}

// entries lists an indexed value in deterministic order.
// Scalars yield a single entry under key "0"; nil yields none.
func entries(v any) []entry {
	switch t := v.(type) {
	case nil:
		return nil
	case []any:
		out := make([]entry, len(t))
		for i, e := range t {
			out[i] = entry{Key: strconv.Itoa(i), Value: e}
		}
		return out
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sortKeys(keys)
		out := make([]entry, len(keys))
		for i, k := range keys {
			out[i] = entry{Key: k, Value: t[k]}
		}
		return out
	default:
		return []entry{{Key: "0", Value: v}}
	}
}

// sortKeys orders numeric keys numerically ahead of the rest.
func sortKeys(keys []string) {
	sort.SliceStable(keys, func(i, j int) bool {
		ni, ei := strconv.Atoi(keys[i])
		nj, ej := strconv.Atoi(keys[j])
		switch {
		case ei == nil && ej == nil:
			return ni < nj
		case ei == nil:
			return true
		case ej == nil:
			return false
		default:
			return keys[i] < keys[j]
		}
	})
}

// element returns the entry stored under key of an indexed value.
func element(v any, key string) (any, bool) {
	switch t := v.(type) {
	case []any:
		i, err := strconv.Atoi(key)
		if err != nil || i < 0 || i >= len(t) {
			return nil, false
		}
		return t[i], true
	case map[string]any:
		e, ok := t[key]
		return e, ok
	}
	return nil, false
}

// firstEntry returns the first element of an indexed value.
func firstEntry(v any) (entry, bool) {
	es := entries(v)
	if len(es) == 0 {
		return entry{}, false
	}
	return es[0], true
}

// firstRowValue unwraps the submitted shape [{"value": x}, ...] to x.
func firstRowValue(v any) (any, bool) {
	list, ok := v.([]any)
	if !ok || len(list) == 0 {
		return nil, false
	}
	row, ok := list[0].(map[string]any)
	if !ok {
		return nil, false
	}
	x, ok := row["value"]
	if !ok || x == nil {
		return nil, false
	}
	return x, true
}

// indexedValues drops the keys of an indexed value.
func indexedValues(v any) []any {
	es := entries(v)
	out := make([]any, len(es))
	for i, e := range es {
		out[i] = e.Value
	}
	return out
}

// strictEqual compares without cross-type coercion. Numbers compare by value
// because decoded JSON cannot tell integers from floats.
func strictEqual(a, b any) bool {
	switch x := a.(type) {
	case nil:
		return b == nil
	case string:
		y, ok := b.(string)
		return ok && x == y
	case bool:
		y, ok := b.(bool)
		return ok && x == y
	case float64, int, int64:
		switch b.(type) {
		case float64, int, int64:
			fa, _ := toFloat64(a)
			fb, _ := toFloat64(b)
			return fa == fb
		}
		return false
	case []any, map[string]any:
		if !isIndexed(b) {
			return false
		}
		ea, eb := entries(a), entries(b)
		if len(ea) != len(eb) {
			return false
		}
		for i := range ea {
			if ea[i].Key != eb[i].Key || !strictEqual(ea[i].Value, eb[i].Value) {
				return false
			}
		}
		return true
	}
	return false
}

// looseEqual compares with scalar juggling: numeric strings equal numbers,
// nil equals empty values, bools compare by truthiness.
func looseEqual(a, b any) bool {
	if isIndexed(a) || isIndexed(b) {
		if !isIndexed(a) || !isIndexed(b) {
			if a == nil || b == nil {
				return isEmpty(a) && isEmpty(b)
			}
			return false
		}
		ea, eb := entries(a), entries(b)
		if len(ea) != len(eb) {
			return false
		}
		for i := range ea {
			if ea[i].Key != eb[i].Key || !looseEqual(ea[i].Value, eb[i].Value) {
				return false
			}
		}
		return true
	}

	switch x := a.(type) {
	case nil:
		switch y := b.(type) {
		case nil:
			return true
		case string:
			return y == ""
		default:
			return isEmpty(y)
		}
	case bool:
		return x == !isEmpty(b)
	}
	switch y := b.(type) {
	case nil:
		return looseEqual(b, a)
	case bool:
		return y == !isEmpty(a)
	}

	fa, okA := toFloat64(a)
	fb, okB := toFloat64(b)
	if okA && okB {
		return fa == fb
	}
	return types.StringValue(a) == types.StringValue(b)
}
