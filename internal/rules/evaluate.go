// internal/rules/evaluate.go
package rules

import (
	"github.com/solatis/condfields/internal/core/metrics"
	"github.com/solatis/condfields/internal/types"
)

/*
 * Dependency evaluation.
 *
 * EvaluateDependency decides whether one dependency is triggered by the
 * dependee's current values. EvaluateGrouping folds per-grouping results
 * into the dependent's final truth.
 *
 * Evaluation flow for values_set WIDGET:
 *   1. !empty / empty: unwrap the first row value, map "_none" to "", test
 *   2. checked / !checked: the reference becomes 1 / 0
 *   3. scalar (or empty) values against a scalar reference: strict compare,
 *      coercing a numeric string reference when the value is an integer
 *   4. edit context: compare lists by values, ignoring key shape
 *   5. view context: intersect keys present in the reference, coerce
 *      numeric strings where the reference holds an integer, compare
 *
 * Any other values_set flattens the values into a reference list and
 * applies the set operator (operators.go). Unknown values sets fail open.
 */

// Context tells the evaluator where values came from.
type Context int

const (
	// ContextEdit means values were extracted from a form submission.
	ContextEdit Context = iota
	// ContextView means values were loaded from a stored entity.
	ContextView
)

// EvaluateDependency reports whether values trigger a dependency configured
// with opts.
func EvaluateDependency(ctx Context, values any, opts types.Options) bool {
	result := evaluateDependency(ctx, values, opts)
	metrics.ConditionEvaluations.WithLabelValues(opts.ValuesSet.String(), resultLabel(result)).Inc()
	return result
}

func evaluateDependency(ctx Context, values any, opts types.Options) bool {
	if opts.ValuesSet != types.ValuesWidget {
		return CompareSet(opts.ValuesSet, opts.Values, opts.Regex, flattenReference(values))
	}

	reference := opts.ValueForm
	if ctx == ContextView {
		reference = opts.Value
	}

	switch opts.Condition {
	case types.ConditionFilled:
		return !isEmpty(normalizeNone(unwrapFirst(values)))
	case types.ConditionEmpty:
		return isEmpty(normalizeNone(unwrapFirst(values)))
	case types.ConditionChecked:
		reference = 1
	case types.ConditionUnchecked:
		reference = 0
	}

	if !isIndexed(values) || isEmpty(values) {
		values = normalizeNone(values)
		if !isIndexed(reference) {
			if isInt(values) && isNumeric(reference) {
				reference = toInt(reference)
			}
			return strictEqual(reference, values)
		}
		// Single value inputs compare in the standard row shape.
		values = []any{map[string]any{"value": values}}
	}

	if ctx == ContextEdit {
		return compareEdit(values, reference, opts)
	}
	return compareView(values, reference)
}

// unwrapFirst returns the first row value of [{"value": x}] shaped input.
func unwrapFirst(values any) any {
	if x, ok := firstRowValue(values); ok {
		return x
	}
	return values
}

// compareEdit compares submitted rows against the reference by values only;
// multiple selects submit numeric keys where storage uses named keys.
func compareEdit(values, reference any, opts types.Options) bool {
	if !isIndexed(reference) {
		// A scalar reference maps to the first key of the first row.
		first, ok := firstEntry(values)
		if !ok || first.Value == nil {
			return false
		}
		stored, ok := firstEntry(opts.Value)
		if !ok || isEmpty(stored.Value) {
			return false
		}
		key := "value"
		if row, ok := first.Value.(map[string]any); ok {
			if _, has := row[key]; !has {
				if e, ok := firstEntry(row); ok {
					key = e.Key
				}
			}
		}
		refValue, _ := element(stored.Value, key)
		rowValue, _ := element(first.Value, key)
		reference = []any{map[string]any{key: refValue}}
		values = []any{map[string]any{key: rowValue}}
	}
	return looseEqual(indexedValues(reference), indexedValues(values))
}

// compareView compares stored entity values against a delta-keyed reference.
// Keys present only in the values are ignored.
func compareView(values, reference any) bool {
	if !isIndexed(reference) {
		reference = []any{map[string]any{"value": reference}}
	}
	for _, ref := range entries(reference) {
		row, ok := element(values, ref.Key)
		if !ok {
			return false
		}
		for _, want := range entries(ref.Value) {
			got, ok := element(row, want.Key)
			if !ok || got == nil {
				continue
			}
			if isInt(want.Value) && isNumeric(got) {
				got = toInt(got)
			}
			if !strictEqual(got, want.Value) {
				return false
			}
		}
	}
	return true
}

// EvaluateGrouping combines results per grouping: OR needs any true, AND
// needs all true, XOR needs exactly one true. Empty groups are satisfied.
func EvaluateGrouping(groups map[types.Grouping][]bool) bool {
	or, and, xor := true, true, true
	if g := groups[types.GroupOR]; len(g) > 0 {
		or = countTrue(g) > 0
	}
	if g := groups[types.GroupAND]; len(g) > 0 {
		and = countTrue(g) == len(g)
	}
	if g := groups[types.GroupXOR]; len(g) > 0 {
		xor = countTrue(g) == 1
	}
	return or && and && xor
}

func countTrue(results []bool) int {
	n := 0
	for _, r := range results {
		if r {
			n++
		}
	}
	return n
}

func resultLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
