// internal/rules/guard_test.go
package rules

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/solatis/condfields/internal/form"
	"github.com/solatis/condfields/internal/types"
)

type guardCase struct {
	name       string
	rules      []types.DependencyRule
	bDefault   any
	bRequired  bool
	values     map[string]any
	errors     map[string]string
	wantValues map[string]any
	wantErrors map[string]string
	wantReport FieldReport
}

// guardTree has a dependee text field a and a dependent text field b.
func guardTree(t *testing.T, bDefault any, bRequired bool) *form.Tree {
	t.Helper()
	b := form.NewBuilder(form.Node{})
	textField(b, 0, "a")
	w := b.Add(0, form.Node{Key: "b", Kind: form.KindContainer, Field: "b", Widget: "string_textfield", Cardinality: 1, Title: "Body", Default: bDefault, Required: bRequired})
	delta := b.Add(w, form.Node{Key: "0", Kind: form.KindContainer})
	b.Add(delta, form.Node{Key: "value", Kind: form.KindTextfield})
	return buildTree(t, b)
}

func valuesOneOf(values ...string) func(*types.Options) {
	return func(o *types.Options) {
		o.Condition = types.ConditionValue
		o.ValuesSet = types.ValuesOR
		o.Values = values
	}
}

func TestGuard_Validate(t *testing.T) {
	const bErr = "b][0][value"
	tests := []guardCase{
		{
			name:       "triggered field is preserved",
			rules:      []types.DependencyRule{rule("r1", "a", valueIs("yes"))},
			values:     map[string]any{"a": rows("yes"), "b": rows("keep")},
			errors:     map[string]string{bErr: "too short"},
			wantValues: map[string]any{"a": rows("yes"), "b": rows("keep")},
			wantErrors: map[string]string{bErr: "too short"},
			wantReport: FieldReport{Key: "b", Field: "b", Triggered: true, Outcome: OutcomePreserved},
		},
		{
			name:       "untriggered field is stripped",
			rules:      []types.DependencyRule{rule("r1", "a", valueIs("yes"))},
			values:     map[string]any{"a": rows("no"), "b": rows("drop")},
			errors:     map[string]string{bErr: "too short", "a][0][value": "typo"},
			wantValues: map[string]any{"a": rows("no")},
			wantErrors: map[string]string{"a][0][value": "typo"},
			wantReport: FieldReport{Key: "b", Field: "b", Outcome: OutcomeStripped, RemovedErrors: []string{bErr}},
		},
		{
			name:       "invisible while untriggered is preserved",
			rules:      []types.DependencyRule{rule("r1", "a", valueIs("yes"), inState(types.StateInvisible))},
			values:     map[string]any{"a": rows("no"), "b": rows("keep")},
			wantValues: map[string]any{"a": rows("no"), "b": rows("keep")},
			wantErrors: map[string]string{},
			wantReport: FieldReport{Key: "b", Field: "b", Outcome: OutcomePreserved},
		},
		{
			name:       "reset restores the default",
			rules:      []types.DependencyRule{rule("r1", "a", valueIs("yes"), func(o *types.Options) { o.Reset = true })},
			bDefault:   rows("default"),
			values:     map[string]any{"a": rows("no"), "b": rows("typed")},
			wantValues: map[string]any{"a": rows("no"), "b": rows("default")},
			wantErrors: map[string]string{},
			wantReport: FieldReport{Key: "b", Field: "b", Outcome: OutcomeReset},
		},
		{
			name:       "reset without default removes the value",
			rules:      []types.DependencyRule{rule("r1", "a", valueIs("yes"), func(o *types.Options) { o.Reset = true })},
			values:     map[string]any{"a": rows("no"), "b": rows("typed")},
			wantValues: map[string]any{"a": rows("no")},
			wantErrors: map[string]string{},
			wantReport: FieldReport{Key: "b", Field: "b", Outcome: OutcomeReset},
		},
		{
			name:       "required and blank raises an error",
			rules:      []types.DependencyRule{rule("r1", "a", valueIs("yes"), inState(types.StateRequired))},
			values:     map[string]any{"a": rows("yes"), "b": rows("")},
			wantValues: map[string]any{"a": rows("yes"), "b": rows("")},
			wantErrors: map[string]string{bErr: "Body is required."},
			wantReport: FieldReport{Key: "b", Field: "b", Triggered: true, Outcome: OutcomePreserved, RequiredError: bErr},
		},
		{
			name:       "required keeps an existing error",
			rules:      []types.DependencyRule{rule("r1", "a", valueIs("yes"), inState(types.StateRequired))},
			values:     map[string]any{"a": rows("yes"), "b": rows("")},
			errors:     map[string]string{bErr: "already bad"},
			wantValues: map[string]any{"a": rows("yes"), "b": rows("")},
			wantErrors: map[string]string{bErr: "already bad"},
			wantReport: FieldReport{Key: "b", Field: "b", Triggered: true, Outcome: OutcomePreserved},
		},
		{
			name:       "not required clears errors only",
			rules:      []types.DependencyRule{rule("r1", "a", valueIs("yes"), inState(types.StateRequired))},
			values:     map[string]any{"a": rows("no"), "b": rows("")},
			errors:     map[string]string{bErr: "Body is required."},
			wantValues: map[string]any{"a": rows("no"), "b": rows("")},
			wantErrors: map[string]string{},
			wantReport: FieldReport{Key: "b", Field: "b", Outcome: OutcomeErrorsCleared, RemovedErrors: []string{bErr}},
		},
		{
			name:       "missing value location keeps errors",
			rules:      []types.DependencyRule{rule("r1", "a", valueIs("yes"))},
			values:     map[string]any{"a": rows("no")},
			errors:     map[string]string{bErr: "bad"},
			wantValues: map[string]any{"a": rows("no")},
			wantErrors: map[string]string{bErr: "bad"},
			wantReport: FieldReport{Key: "b", Field: "b", Outcome: OutcomeKeptErrors},
		},
		{
			name: "or grouping needs one match",
			rules: []types.DependencyRule{
				rule("r1", "a", valueIs("x"), func(o *types.Options) { o.Grouping = types.GroupOR }),
				rule("r2", "a", valueIs("y"), func(o *types.Options) { o.Grouping = types.GroupOR }),
			},
			values:     map[string]any{"a": rows("y"), "b": rows("keep")},
			wantValues: map[string]any{"a": rows("y"), "b": rows("keep")},
			wantErrors: map[string]string{},
			wantReport: FieldReport{Key: "b", Field: "b", Triggered: true, Outcome: OutcomePreserved},
		},
		{
			name:       "scalar form value matches the first row",
			rules:      []types.DependencyRule{rule("r1", "a", func(o *types.Options) { o.ValueForm = "hello" })},
			values:     map[string]any{"a": rows("hello"), "b": rows("keep")},
			wantValues: map[string]any{"a": rows("hello"), "b": rows("keep")},
			wantErrors: map[string]string{},
			wantReport: FieldReport{Key: "b", Field: "b", Triggered: true, Outcome: OutcomePreserved},
		},
		{
			name:       "scalar form value mismatch strips",
			rules:      []types.DependencyRule{rule("r1", "a", func(o *types.Options) { o.ValueForm = "hello" })},
			values:     map[string]any{"a": rows("bye"), "b": rows("drop")},
			wantValues: map[string]any{"a": rows("bye")},
			wantErrors: map[string]string{},
			wantReport: FieldReport{Key: "b", Field: "b", Outcome: OutcomeStripped},
		},
		{
			name:       "only the first submitted row is evaluated",
			rules:      []types.DependencyRule{rule("r1", "a", valueIs("x"))},
			values:     map[string]any{"a": rows("x", "y"), "b": rows("keep")},
			wantValues: map[string]any{"a": rows("x", "y"), "b": rows("keep")},
			wantErrors: map[string]string{},
			wantReport: FieldReport{Key: "b", Field: "b", Triggered: true, Outcome: OutcomePreserved},
		},
		{
			name:       "later rows do not trigger",
			rules:      []types.DependencyRule{rule("r1", "a", valueIs("x"))},
			values:     map[string]any{"a": rows("y", "x"), "b": rows("drop")},
			wantValues: map[string]any{"a": rows("y", "x")},
			wantErrors: map[string]string{},
			wantReport: FieldReport{Key: "b", Field: "b", Outcome: OutcomeStripped},
		},
		{
			name:       "empty summary discards body",
			rules:      []types.DependencyRule{rule("r1", "a", filled)},
			values:     map[string]any{"a": rows(""), "b": rows("text")},
			wantValues: map[string]any{"a": rows("")},
			wantErrors: map[string]string{},
			wantReport: FieldReport{Key: "b", Field: "b", Outcome: OutcomeStripped},
		},
		{
			name:       "filled summary keeps body",
			rules:      []types.DependencyRule{rule("r1", "a", filled)},
			values:     map[string]any{"a": rows("hello"), "b": rows("text")},
			wantValues: map[string]any{"a": rows("hello"), "b": rows("text")},
			wantErrors: map[string]string{},
			wantReport: FieldReport{Key: "b", Field: "b", Triggered: true, Outcome: OutcomePreserved},
		},
		{
			name:       "category outside the set hides body",
			rules:      []types.DependencyRule{rule("r1", "a", valuesOneOf("news", "sport"))},
			values:     map[string]any{"a": rows("tech"), "b": rows("text")},
			wantValues: map[string]any{"a": rows("tech")},
			wantErrors: map[string]string{},
			wantReport: FieldReport{Key: "b", Field: "b", Outcome: OutcomeStripped},
		},
		{
			name:       "category in the set shows body",
			rules:      []types.DependencyRule{rule("r1", "a", valuesOneOf("news", "sport"))},
			values:     map[string]any{"a": rows("sport"), "b": rows("text")},
			wantValues: map[string]any{"a": rows("sport"), "b": rows("text")},
			wantErrors: map[string]string{},
			wantReport: FieldReport{Key: "b", Field: "b", Triggered: true, Outcome: OutcomePreserved},
		},
		{
			name:       "visible required field left blank gets no dependency error",
			rules:      []types.DependencyRule{rule("r1", "a", valueIs("yes"))},
			bRequired:  true,
			values:     map[string]any{"a": rows("yes"), "b": rows("")},
			wantValues: map[string]any{"a": rows("yes"), "b": rows("")},
			wantErrors: map[string]string{},
			wantReport: FieldReport{Key: "b", Field: "b", Triggered: true, Outcome: OutcomePreserved},
		},
		{
			name:       "client-only conditions are ignored",
			rules:      []types.DependencyRule{rule("r1", "a", func(o *types.Options) { o.Condition = types.ConditionFocused })},
			values:     map[string]any{"a": rows("no"), "b": rows("keep")},
			wantValues: map[string]any{"a": rows("no"), "b": rows("keep")},
			wantErrors: map[string]string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree := guardTree(t, tt.bDefault, tt.bRequired)
			e := newTestEngine(t, newStaticSource(article(
				field("a", "string_textfield"),
				field("b", "string_textfield", tt.rules...),
			)))
			sub := Submission{Values: tt.values, Errors: tt.errors}
			report, err := e.Validate(context.Background(), e.NewSession(), "node", "article", tree, sub)
			if err != nil {
				t.Fatalf("Validate() error = %v", err)
			}
			if diff := cmp.Diff(tt.wantValues, report.Values); diff != "" {
				t.Errorf("Values mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.wantErrors, report.Errors); diff != "" {
				t.Errorf("Errors mismatch (-want +got):\n%s", diff)
			}
			got, ok := report.Field("b")
			if tt.wantReport.Key == "" {
				if ok {
					t.Errorf("Field(b) = %+v, want no report", got)
				}
				return
			}
			if diff := cmp.Diff(tt.wantReport, got); diff != "" {
				t.Errorf("Field(b) mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestGuard_DoesNotMutateSubmission(t *testing.T) {
	tree := guardTree(t, nil, false)
	e := newTestEngine(t, newStaticSource(article(
		field("a", "string_textfield"),
		field("b", "string_textfield", rule("r1", "a", valueIs("yes"))),
	)))
	sub := Submission{
		Values: map[string]any{"a": rows("no"), "b": rows("drop")},
		Errors: map[string]string{"b][0][value": "bad"},
	}
	if _, err := e.Validate(context.Background(), e.NewSession(), "node", "article", tree, sub); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if _, ok := sub.Values["b"]; !ok {
		t.Errorf("submitted values were mutated: %v", sub.Values)
	}
	if len(sub.Errors) != 1 {
		t.Errorf("submitted errors were mutated: %v", sub.Errors)
	}
}

func TestGuard_CheckboxDependee(t *testing.T) {
	b := form.NewBuilder(form.Node{})
	checkboxField(b, 0, "promote")
	textField(b, 0, "b")
	tree := buildTree(t, b)

	e := newTestEngine(t, newStaticSource(article(
		field("promote", "boolean_checkbox"),
		field("b", "string_textfield", rule("r1", "promote", func(o *types.Options) { o.Condition = types.ConditionChecked })),
	)))

	tests := []struct {
		checked bool
		want    Outcome
	}{
		{checked: true, want: OutcomePreserved},
		{checked: false, want: OutcomeStripped},
	}
	for _, tt := range tests {
		sub := Submission{Values: map[string]any{"promote": tt.checked, "b": rows("text")}}
		report, err := e.Validate(context.Background(), e.NewSession(), "node", "article", tree, sub)
		if err != nil {
			t.Fatalf("Validate() error = %v", err)
		}
		got, _ := report.Field("b")
		if got.Outcome != tt.want {
			t.Errorf("checked=%v: Outcome = %s, want %s", tt.checked, got.Outcome, tt.want)
		}
		if got.Triggered != tt.checked || got.State() != map[bool]string{true: "TRIGGERED", false: "UNTRIGGERED"}[tt.checked] {
			t.Errorf("checked=%v: Triggered = %v (%s)", tt.checked, got.Triggered, got.State())
		}
	}
}
