// internal/rules/admin_test.go
package rules

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/solatis/condfields/internal/types"
)

func newArticleStore(t *testing.T) *MemoryStore {
	t.Helper()
	s := NewMemoryStore()
	ctx := context.Background()
	for _, f := range []types.FieldConfig{
		field("summary", "string_textfield"),
		field("body", "text_textarea"),
		{Name: "title", Widget: "string_textfield", Cardinality: 1, Required: true},
	} {
		if err := s.SaveField(ctx, "node", "article", f); err != nil {
			t.Fatalf("SaveField(%s) error = %v", f.Name, err)
		}
	}
	return s
}

func TestAdmin_AddDependency(t *testing.T) {
	ctx := context.Background()
	store := newArticleStore(t)
	admin, err := NewAdmin(store)
	if err != nil {
		t.Fatalf("NewAdmin() error = %v", err)
	}

	ids, err := admin.AddDependency(ctx, NewDependencyRequest{
		EntityType: "node",
		Bundle:     "article",
		Dependee:   "summary",
		Dependents: []string{"body", "title"},
		Options:    types.Options{Condition: types.ConditionFilled},
	})
	if err != nil {
		t.Fatalf("AddDependency() error = %v", err)
	}
	if len(ids) != 2 || ids[0] == ids[1] {
		t.Fatalf("AddDependency() ids = %v, want two distinct ids", ids)
	}
	for _, id := range ids {
		if _, err := types.ParseRuleID(string(id)); err != nil {
			t.Errorf("id %s is not a rule id: %v", id, err)
		}
	}

	rules, err := admin.ListDependencies(ctx, "node", "article")
	if err != nil {
		t.Fatalf("ListDependencies() error = %v", err)
	}
	var dependents []string
	for _, r := range rules {
		dependents = append(dependents, r.Dependent)
		if r.Options.State != types.StateVisible || r.Options.Grouping != types.GroupAND {
			t.Errorf("rule %s options were not defaulted: %+v", r.ID, r.Options)
		}
	}
	if diff := cmp.Diff([]string{"body", "title"}, dependents); diff != "" {
		t.Errorf("dependents mismatch (-want +got):\n%s", diff)
	}

	display, _ := store.LoadDisplay(ctx, "node", "article")
	body, _ := display.Field("body")
	if len(body.Rules) != 1 || body.Rules[0].Dependee != "summary" {
		t.Errorf("display did not attach the rule to body: %+v", body.Rules)
	}

	if err := admin.DeleteDependency(ctx, ids[0]); err != nil {
		t.Fatalf("DeleteDependency() error = %v", err)
	}
	if _, err := store.GetRule(ctx, ids[0]); !errors.Is(err, types.ErrRuleNotFound) {
		t.Errorf("GetRule() after delete error = %v, want ErrRuleNotFound", err)
	}
	if err := admin.DeleteDependency(ctx, ids[0]); !errors.Is(err, types.ErrRuleNotFound) {
		t.Errorf("second DeleteDependency() error = %v, want ErrRuleNotFound", err)
	}
	if err := admin.DeleteDependency(ctx, "not-a-uuid"); !errors.Is(err, types.ErrInvalidRule) {
		t.Errorf("DeleteDependency(bad id) error = %v, want ErrInvalidRule", err)
	}
}

func TestAdmin_AddDependencyErrors(t *testing.T) {
	base := NewDependencyRequest{EntityType: "node", Bundle: "article", Dependee: "summary", Dependents: []string{"body"}}
	tests := []struct {
		name    string
		mutate  func(*NewDependencyRequest)
		wantErr error
	}{
		{name: "unknown bundle", mutate: func(r *NewDependencyRequest) { r.Bundle = "page" }, wantErr: types.ErrDisplayNotFound},
		{name: "no dependents", mutate: func(r *NewDependencyRequest) { r.Dependents = nil }, wantErr: types.ErrInvalidRule},
		{name: "unknown dependee", mutate: func(r *NewDependencyRequest) { r.Dependee = "nope" }, wantErr: types.ErrFieldNotFound},
		{name: "unknown dependent", mutate: func(r *NewDependencyRequest) { r.Dependents = []string{"nope"} }, wantErr: types.ErrFieldNotFound},
		{name: "dependee is dependent", mutate: func(r *NewDependencyRequest) { r.Dependents = []string{"summary"} }, wantErr: types.ErrSameField},
		{
			name: "required field hidden",
			mutate: func(r *NewDependencyRequest) {
				r.Dependents = []string{"title"}
				r.Options.State = types.StateInvisible
			},
			wantErr: types.ErrRequiredFieldHidden,
		},
		{
			name: "malformed regex",
			mutate: func(r *NewDependencyRequest) {
				r.Options.ValuesSet = types.ValuesRegex
				r.Options.Regex = "[a-"
			},
			wantErr: types.ErrInvalidOption,
		},
		{name: "unknown grouping", mutate: func(r *NewDependencyRequest) { r.Options.Grouping = "NAND" }, wantErr: types.ErrInvalidOption},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newArticleStore(t)
			admin, _ := NewAdmin(store)
			req := base
			tt.mutate(&req)
			if _, err := admin.AddDependency(context.Background(), req); !errors.Is(err, tt.wantErr) {
				t.Errorf("AddDependency() error = %v, want %v", err, tt.wantErr)
			}
			if rules, _ := store.ListRules(context.Background(), "node", "article"); len(rules) != 0 {
				t.Errorf("rejected request stored %d rules", len(rules))
			}
		})
	}

	if _, err := NewAdmin(nil); err == nil {
		t.Errorf("NewAdmin(nil) error = nil")
	}
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := newArticleStore(t)

	if err := s.SaveField(ctx, "node", "article", types.FieldConfig{Name: "summary", Widget: "text_textarea"}); err != nil {
		t.Fatalf("SaveField(replace) error = %v", err)
	}
	display, _ := s.LoadDisplay(ctx, "node", "article")
	var names []string
	for _, f := range display.Fields {
		names = append(names, f.Name)
	}
	if diff := cmp.Diff([]string{"summary", "body", "title"}, names); diff != "" {
		t.Errorf("replace moved the field (-want +got):\n%s", diff)
	}
	if display.Fields[0].Widget != "text_textarea" {
		t.Errorf("replace kept the old widget %s", display.Fields[0].Widget)
	}

	r := types.DependencyRule{ID: types.NewRuleID(), EntityType: "node", Bundle: "article", Dependent: "body", Dependee: "summary", Options: types.DefaultOptions()}
	if err := s.AddRule(ctx, r); err != nil {
		t.Fatalf("AddRule() error = %v", err)
	}

	tests := []struct {
		name    string
		rule    types.DependencyRule
		wantErr error
	}{
		{name: "duplicate id", rule: r, wantErr: types.ErrInvalidRule},
		{name: "unknown bundle", rule: func() types.DependencyRule { x := r; x.ID = types.NewRuleID(); x.Bundle = "page"; return x }(), wantErr: types.ErrDisplayNotFound},
		{name: "unknown dependent", rule: func() types.DependencyRule { x := r; x.ID = types.NewRuleID(); x.Dependent = "nope"; return x }(), wantErr: types.ErrFieldNotFound},
		{name: "invalid rule", rule: func() types.DependencyRule { x := r; x.ID = ""; return x }(), wantErr: types.ErrInvalidRule},
	}
	for _, tt := range tests {
		if err := s.AddRule(ctx, tt.rule); !errors.Is(err, tt.wantErr) {
			t.Errorf("%s: AddRule() error = %v, want %v", tt.name, err, tt.wantErr)
		}
	}

	got, err := s.GetRule(ctx, r.ID)
	if err != nil {
		t.Fatalf("GetRule() error = %v", err)
	}
	if diff := cmp.Diff(r, got); diff != "" {
		t.Errorf("GetRule() mismatch (-want +got):\n%s", diff)
	}
	if _, err := s.LoadDisplay(ctx, "node", "page"); !errors.Is(err, types.ErrDisplayNotFound) {
		t.Errorf("LoadDisplay(page) error = %v, want ErrDisplayNotFound", err)
	}
	if err := s.SaveField(ctx, "node", "article", types.FieldConfig{}); !errors.Is(err, types.ErrInvalidRule) {
		t.Errorf("SaveField(no name) error = %v, want ErrInvalidRule", err)
	}
}
