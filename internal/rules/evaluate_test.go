// internal/rules/evaluate_test.go
package rules

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/solatis/condfields/internal/types"
)

func rows(values ...any) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = map[string]any{"value": v}
	}
	return out
}

func widgetOpts(condition types.Condition, valueForm any) types.Options {
	opts := types.DefaultOptions()
	opts.Condition = condition
	opts.ValueForm = valueForm
	opts.Value = valueForm
	return opts
}

func setOpts(set types.ValuesSet, values ...string) types.Options {
	opts := types.DefaultOptions()
	opts.ValuesSet = set
	opts.Values = values
	return opts
}

func TestEvaluateDependency_Widget(t *testing.T) {
	tests := []struct {
		name   string
		ctx    Context
		values any
		opts   types.Options
		want   bool
	}{
		{name: "same row value", values: rows("yes"), opts: widgetOpts(types.ConditionValue, rows("yes")), want: true},
		{name: "different row value", values: rows("no"), opts: widgetOpts(types.ConditionValue, rows("yes")), want: false},
		{name: "numeric string matches number", values: rows(float64(3)), opts: widgetOpts(types.ConditionValue, rows("3")), want: true},
		{name: "row count differs", values: rows("a", "b"), opts: widgetOpts(types.ConditionValue, rows("a")), want: false},
		{name: "scalar strict equal", values: "5", opts: widgetOpts(types.ConditionValue, "5"), want: true},
		{name: "integer against numeric string", values: float64(5), opts: widgetOpts(types.ConditionValue, "5"), want: true},
		{name: "empty string is not zero", values: "", opts: widgetOpts(types.ConditionValue, "0"), want: false},
		{name: "none sentinel equals empty string", values: NoneSentinel, opts: widgetOpts(types.ConditionValue, ""), want: true},
		{
			name:   "scalar reference compares first row",
			values: rows("a"),
			opts: func() types.Options {
				o := widgetOpts(types.ConditionValue, "a")
				o.Value = rows("a")
				return o
			}(),
			want: true,
		},
		{name: "filled", values: rows("x"), opts: widgetOpts(types.ConditionFilled, nil), want: true},
		{name: "filled with empty row", values: rows(""), opts: widgetOpts(types.ConditionFilled, nil), want: false},
		{name: "filled with none sentinel", values: NoneSentinel, opts: widgetOpts(types.ConditionFilled, nil), want: false},
		{name: "empty with nothing submitted", values: nil, opts: widgetOpts(types.ConditionEmpty, nil), want: true},
		{name: "empty with zero string", values: rows("0"), opts: widgetOpts(types.ConditionEmpty, nil), want: true},
		{name: "checked", values: float64(1), opts: widgetOpts(types.ConditionChecked, nil), want: true},
		{name: "checked when off", values: float64(0), opts: widgetOpts(types.ConditionChecked, nil), want: false},
		{name: "unchecked when off", values: float64(0), opts: widgetOpts(types.ConditionUnchecked, nil), want: true},
		{
			name:   "view ignores extra keys",
			ctx:    ContextView,
			values: []any{map[string]any{"value": "a", "format": "plain"}},
			opts:   widgetOpts(types.ConditionValue, rows("a")),
			want:   true,
		},
		{
			name:   "view coerces numeric strings",
			ctx:    ContextView,
			values: rows("3"),
			opts:   widgetOpts(types.ConditionValue, rows(float64(3))),
			want:   true,
		},
		{
			name:   "view missing delta",
			ctx:    ContextView,
			values: rows("a"),
			opts:   widgetOpts(types.ConditionValue, rows("a", "b")),
			want:   false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EvaluateDependency(tt.ctx, tt.values, tt.opts); got != tt.want {
				t.Errorf("EvaluateDependency() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEvaluateDependency_Sets(t *testing.T) {
	regex := func(pattern string) types.Options {
		o := setOpts(types.ValuesRegex)
		o.Regex = pattern
		return o
	}
	tests := []struct {
		name   string
		values any
		opts   types.Options
		want   bool
	}{
		{name: "AND all present", values: rows("a", "b", "c"), opts: setOpts(types.ValuesAND, "a", "b"), want: true},
		{name: "AND one missing", values: rows("a"), opts: setOpts(types.ValuesAND, "a", "b"), want: false},
		{name: "AND empty configured", values: rows("a"), opts: setOpts(types.ValuesAND), want: true},
		{name: "OR one present", values: rows("b"), opts: setOpts(types.ValuesOR, "a", "b"), want: true},
		{name: "OR none present", values: rows("c"), opts: setOpts(types.ValuesOR, "a", "b"), want: false},
		{name: "XOR exactly one", values: rows("a"), opts: setOpts(types.ValuesXOR, "a", "b"), want: true},
		{name: "XOR both", values: rows("a", "b"), opts: setOpts(types.ValuesXOR, "a", "b"), want: false},
		{name: "XOR duplicated configured entry", values: rows("a"), opts: setOpts(types.ValuesXOR, "a", "a"), want: false},
		{name: "NOT none present", values: rows("c"), opts: setOpts(types.ValuesNOT, "a"), want: true},
		{name: "NOT present", values: rows("a"), opts: setOpts(types.ValuesNOT, "a"), want: false},
		{name: "numbers compare as strings", values: rows(float64(2)), opts: setOpts(types.ValuesOR, "2"), want: true},
		{name: "target ids", values: []any{map[string]any{"target_id": "7"}}, opts: setOpts(types.ValuesOR, "7"), want: true},
		{name: "scalar dependee", values: "a", opts: setOpts(types.ValuesOR, "a"), want: true},
		{name: "REGEX all match", values: rows("12", "3"), opts: regex(`^\d+$`), want: true},
		{name: "REGEX one fails", values: rows("12", "x"), opts: regex(`^\d+$`), want: false},
		{name: "REGEX no values", values: nil, opts: regex(`^\d+$`), want: true},
		{name: "REGEX malformed", values: rows("a"), opts: regex(`(`), want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EvaluateDependency(ContextEdit, tt.values, tt.opts); got != tt.want {
				t.Errorf("EvaluateDependency() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEvaluateGrouping(t *testing.T) {
	tests := []struct {
		name   string
		groups map[types.Grouping][]bool
		want   bool
	}{
		{name: "no dependencies", groups: nil, want: true},
		{name: "AND all true", groups: map[types.Grouping][]bool{types.GroupAND: {true, true}}, want: true},
		{name: "AND one false", groups: map[types.Grouping][]bool{types.GroupAND: {true, false}}, want: false},
		{name: "OR one true", groups: map[types.Grouping][]bool{types.GroupOR: {false, true}}, want: true},
		{name: "OR all false", groups: map[types.Grouping][]bool{types.GroupOR: {false, false}}, want: false},
		{name: "XOR one true", groups: map[types.Grouping][]bool{types.GroupXOR: {false, true}}, want: true},
		{name: "XOR two true", groups: map[types.Grouping][]bool{types.GroupXOR: {true, true}}, want: false},
		{
			name: "groups combine with AND",
			groups: map[types.Grouping][]bool{
				types.GroupAND: {true},
				types.GroupOR:  {false},
			},
			want: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EvaluateGrouping(tt.groups); got != tt.want {
				t.Errorf("EvaluateGrouping() = %v, want %v", got, tt.want)
			}
		})
	}
}

var sampleInputs = []any{"", "0", "x", NoneSentinel, float64(0), float64(7), true, false, nil}

// Property-based test: !empty is the negation of empty
func TestEvaluateDependency_PropertyFilledNegatesEmpty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("!empty == !empty(values)", prop.ForAll(
		func(i int, wrap bool) bool {
			var values any = sampleInputs[i]
			if wrap {
				values = rows(values)
			}
			filled := EvaluateDependency(ContextEdit, values, widgetOpts(types.ConditionFilled, nil))
			empty := EvaluateDependency(ContextEdit, values, widgetOpts(types.ConditionEmpty, nil))
			return filled == !empty
		},
		gen.IntRange(0, len(sampleInputs)-1),
		gen.Bool(),
	))

	properties.TestingRun(t)
}

func letters(idx []int) []string {
	out := make([]string, len(idx))
	for i, n := range idx {
		out[i] = string(rune('a' + n))
	}
	return out
}

// Property-based test: set operators agree with each other
func TestCompareSet_PropertyLaws(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	alphabet := gen.SliceOf(gen.IntRange(0, 4))

	properties.Property("AND holds when the reference contains every configured value", prop.ForAll(
		func(configured, extra []int) bool {
			c := letters(configured)
			reference := append(append([]string{}, letters(extra)...), c...)
			return CompareSet(types.ValuesAND, c, "", reference)
		},
		alphabet, alphabet,
	))

	properties.Property("NOT is the negation of OR", prop.ForAll(
		func(configured, reference []int) bool {
			c, r := letters(configured), letters(reference)
			return CompareSet(types.ValuesNOT, c, "", r) == !CompareSet(types.ValuesOR, c, "", r)
		},
		alphabet, alphabet,
	))

	properties.Property("XOR implies OR", prop.ForAll(
		func(configured, reference []int) bool {
			c, r := letters(configured), letters(reference)
			return !CompareSet(types.ValuesXOR, c, "", r) || CompareSet(types.ValuesOR, c, "", r)
		},
		alphabet, alphabet,
	))

	properties.TestingRun(t)
}

// Property-based test: grouping law
func TestEvaluateGrouping_PropertyLaw(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("AND needs all, OR needs any, XOR needs exactly one", prop.ForAll(
		func(and, or, xor []bool) bool {
			want := true
			if len(and) > 0 {
				want = want && countTrue(and) == len(and)
			}
			if len(or) > 0 {
				want = want && countTrue(or) > 0
			}
			if len(xor) > 0 {
				want = want && countTrue(xor) == 1
			}
			groups := map[types.Grouping][]bool{
				types.GroupAND: and,
				types.GroupOR:  or,
				types.GroupXOR: xor,
			}
			return EvaluateGrouping(groups) == want
		},
		gen.SliceOf(gen.Bool()), gen.SliceOf(gen.Bool()), gen.SliceOf(gen.Bool()),
	))

	properties.TestingRun(t)
}
