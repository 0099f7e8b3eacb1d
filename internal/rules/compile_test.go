// internal/rules/compile_test.go
package rules

import (
	"errors"
	"testing"

	"github.com/solatis/condfields/internal/types"
)

func TestCompileRule_DefaultsPartialOptions(t *testing.T) {
	rule := types.DependencyRule{
		ID:         "rule-001",
		EntityType: "node",
		Bundle:     "article",
		Dependent:  "body",
		Dependee:   "summary",
		Options:    types.Options{Condition: types.ConditionFilled},
	}

	dep, err := CompileRule(rule)
	if err != nil {
		t.Fatalf("CompileRule() error = %v, want nil", err)
	}
	if dep.ID != "rule-001" || dep.Dependent != "body" || dep.Dependee != "summary" {
		t.Errorf("CompileRule() = %+v", dep)
	}
	if dep.Options.State != types.StateVisible {
		t.Errorf("State = %v, want %v", dep.Options.State, types.StateVisible)
	}
	if dep.Options.ValuesSet != types.ValuesWidget {
		t.Errorf("ValuesSet = %v, want %v", dep.Options.ValuesSet, types.ValuesWidget)
	}
	if dep.Options.Condition != types.ConditionFilled {
		t.Errorf("Condition = %v, want %v", dep.Options.Condition, types.ConditionFilled)
	}
}

func TestCompileRule_Errors(t *testing.T) {
	base := types.DependencyRule{ID: "rule-002", EntityType: "node", Bundle: "article", Dependent: "body", Dependee: "summary"}
	tests := []struct {
		name    string
		mutate  func(*types.DependencyRule)
		wantErr error
	}{
		{name: "missing id", mutate: func(r *types.DependencyRule) { r.ID = "" }, wantErr: types.ErrInvalidRule},
		{name: "self dependency", mutate: func(r *types.DependencyRule) { r.Dependee = "body" }, wantErr: types.ErrSameField},
		{name: "unknown state", mutate: func(r *types.DependencyRule) { r.Options.State = "hidden" }, wantErr: types.ErrInvalidOption},
		{name: "unknown effect", mutate: func(r *types.DependencyRule) { r.Options.Effect = "spin" }, wantErr: types.ErrInvalidOption},
		{
			name: "malformed regex",
			mutate: func(r *types.DependencyRule) {
				r.Options.ValuesSet = types.ValuesRegex
				r.Options.Regex = "(?P<"
			},
			wantErr: types.ErrInvalidOption,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule := base
			tt.mutate(&rule)
			if _, err := CompileRule(rule); !errors.Is(err, tt.wantErr) {
				t.Errorf("CompileRule() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestCompileOptions_RegexOnlyCheckedForRegexSet(t *testing.T) {
	opts := types.Options{ValuesSet: types.ValuesAND, Regex: "("}
	if _, err := CompileOptions(opts); err != nil {
		t.Errorf("CompileOptions() error = %v, want nil for an unused pattern", err)
	}
}
