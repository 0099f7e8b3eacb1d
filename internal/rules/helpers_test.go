// internal/rules/helpers_test.go
package rules

import (
	"context"
	"fmt"
	"testing"

	"github.com/solatis/condfields/internal/form"
	"github.com/solatis/condfields/internal/types"
)

// staticSource serves fixed displays and counts loads.
type staticSource struct {
	displays map[string]*types.BundleDisplay
	calls    int
}

func newStaticSource(displays ...*types.BundleDisplay) *staticSource {
	s := &staticSource{displays: make(map[string]*types.BundleDisplay)}
	for _, d := range displays {
		s.displays[types.BundleKey(d.EntityType, d.Bundle)] = d
	}
	return s
}

func (s *staticSource) LoadDisplay(_ context.Context, entityType, bundle string) (*types.BundleDisplay, error) {
	s.calls++
	d, ok := s.displays[types.BundleKey(entityType, bundle)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", types.ErrDisplayNotFound, types.BundleKey(entityType, bundle))
	}
	return d, nil
}

func article(fields ...types.FieldConfig) *types.BundleDisplay {
	return &types.BundleDisplay{EntityType: "node", Bundle: "article", Fields: fields}
}

func field(name, widget string, rules ...types.DependencyRule) types.FieldConfig {
	return types.FieldConfig{Name: name, Widget: widget, Cardinality: 1, Rules: rules}
}

// rule builds a rule on dependee with fully defaulted options.
func rule(id types.RuleID, dependee string, mutate ...func(*types.Options)) types.DependencyRule {
	opts := types.DefaultOptions()
	for _, m := range mutate {
		m(&opts)
	}
	return types.DependencyRule{ID: id, Dependee: dependee, Options: opts}
}

func filled(o *types.Options) { o.Condition = types.ConditionFilled }

func valueIs(v any) func(*types.Options) {
	return func(o *types.Options) {
		o.Condition = types.ConditionValue
		o.ValueForm = rows(v)
		o.Value = rows(v)
	}
}

func inState(s types.State) func(*types.Options) {
	return func(o *types.Options) { o.State = s }
}

// textField adds a wrapper with a single textfield at <name>[0][value].
func textField(b *form.Builder, parent int, name string) int {
	w := b.Add(parent, form.Node{Key: name, Kind: form.KindContainer, Field: name, Widget: "string_textfield", Cardinality: 1, Title: name})
	delta := b.Add(w, form.Node{Key: "0", Kind: form.KindContainer})
	b.Add(delta, form.Node{Key: "value", Kind: form.KindTextfield})
	return w
}

// checkboxField adds a single on/off checkbox that is its own wrapper.
func checkboxField(b *form.Builder, parent int, name string) int {
	return b.Add(parent, form.Node{Key: name, Kind: form.KindCheckbox, Field: name, Widget: "boolean_checkbox", Cardinality: 1, Title: name})
}

func buildTree(t *testing.T, b *form.Builder) *form.Tree {
	t.Helper()
	tree, err := b.Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	return tree
}

func newTestEngine(t *testing.T, source DisplaySource, opts ...EngineOption) *Engine {
	t.Helper()
	e, err := NewEngine(source, opts...)
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	return e
}
