// internal/rules/attach_test.go
package rules

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/solatis/condfields/internal/form"
	"github.com/solatis/condfields/internal/types"
)

func attach(t *testing.T, source DisplaySource, tree *form.Tree) (*Session, *FormDependencies) {
	t.Helper()
	r, err := NewResolver(source)
	if err != nil {
		t.Fatalf("NewResolver() error = %v", err)
	}
	sess := r.NewSession()
	fd, err := NewAttacher().Attach(context.Background(), sess, tree, "node", "article")
	if err != nil {
		t.Fatalf("Attach() error = %v", err)
	}
	return sess, fd
}

func entryKeys(fd *FormDependencies) []string {
	var out []string
	for _, e := range fd.Entries() {
		out = append(out, e.Key)
	}
	return out
}

func TestAttacher_SubformScope(t *testing.T) {
	b := form.NewBuilder(form.Node{})
	textField(b, 0, "title")
	sub := b.Add(0, form.Node{Key: "inline", Kind: form.KindSubform, EntityType: "paragraph", Bundle: "quote"})
	subTitle := textField(b, sub, "title")
	textField(b, sub, "body")
	tree := buildTree(t, b)

	quote := &types.BundleDisplay{EntityType: "paragraph", Bundle: "quote", Fields: []types.FieldConfig{
		field("title", "string_textfield"),
		field("body", "string_textfield", rule("r1", "title", filled)),
	}}
	source := newStaticSource(article(field("title", "string_textfield")), quote)
	_, fd := attach(t, source, tree)

	if diff := cmp.Diff([]string{"title", "edit-inline/title", "edit-inline/body"}, entryKeys(fd)); diff != "" {
		t.Errorf("Entries() mismatch (-want +got):\n%s", diff)
	}
	body, _ := fd.Entry("edit-inline/body")
	if !body.Dependents.Has("r1") {
		t.Fatalf("subform body did not receive its bundle's rule")
	}
	dependee, ok := fd.DependeeOf(body, "title")
	if !ok || dependee.Node != subTitle {
		t.Errorf("DependeeOf(body, title) = %+v, want the subform title wrapper %d", dependee, subTitle)
	}
	top, _ := fd.Entry("title")
	if top.Dependees.Len() != 0 {
		t.Errorf("top-level title picked up subform dependees")
	}

	e := newTestEngine(t, source)
	res, err := e.Process(context.Background(), e.NewSession(), "node", "article", tree)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	want := map[string]any{"visible": map[string]any{
		`[name="inline[title][0][value]"]`: map[string]any{"!empty": true},
	}}
	if diff := cmp.Diff(want, nodeStates(t, res.Tree, "edit-inline-body").States); diff != "" {
		t.Errorf("subform states mismatch (-want +got):\n%s", diff)
	}
}

func TestAttacher_PriorityKinds(t *testing.T) {
	b := form.NewBuilder(form.Node{})
	textField(b, 0, "a")
	plain := b.Add(0, form.Node{Key: "when", Kind: form.KindContainer, Field: "when", Widget: "datetime_default"})
	b.Add(plain, form.Node{Key: "value", Kind: form.KindDate})
	list := b.Add(0, form.Node{Key: "when_list", Kind: form.KindContainer, Field: "when", Widget: "datetime_datelist"})
	b.Add(list, form.Node{Key: "value", Kind: form.KindDatelist})
	tree := buildTree(t, b)

	source := newStaticSource(article(
		field("a", "string_textfield"),
		field("when", "datetime_datelist", rule("r1", "a", filled)),
	))
	_, fd := attach(t, source, tree)

	entry, ok := fd.Entry("when")
	if !ok {
		t.Fatalf("Entry(when) not found")
	}
	if entry.Node != list {
		t.Errorf("Entry(when).Node = %d, want datelist wrapper %d", entry.Node, list)
	}
	if entry.Dependents.Len() != 1 || fd.Len() != 2 {
		t.Errorf("dependents = %d, entries = %d; want 1 and 2", entry.Dependents.Len(), fd.Len())
	}

	r, _ := NewResolver(source)
	fd, err := NewAttacher(form.KindDate).Attach(context.Background(), r.NewSession(), tree, "node", "article")
	if err != nil {
		t.Fatalf("Attach() error = %v", err)
	}
	if entry, _ := fd.Entry("when"); entry.Node != plain {
		t.Errorf("custom priority kind: Node = %d, want %d", entry.Node, plain)
	}
}

func TestAttachCustom(t *testing.T) {
	b := form.NewBuilder(form.Node{})
	textField(b, 0, "a")
	textField(b, 0, "b")
	b.Add(0, form.Node{Key: "actions", Kind: form.KindContainer})
	tree := buildTree(t, b)
	sess, fd := attach(t, newStaticSource(article(field("a", "string_textfield"), field("b", "string_textfield"))), tree)

	id, err := AttachCustom(sess, fd, "a", "b", types.Options{Condition: types.ConditionFilled})
	if err != nil {
		t.Fatalf("AttachCustom() error = %v", err)
	}
	if id != "custom-1" {
		t.Errorf("id = %s, want custom-1", id)
	}
	b2, _ := fd.Entry("b")
	dep, ok := b2.Dependents.Get(id)
	if !ok || dep.Dependee != "a" || dep.Options.State != types.StateVisible {
		t.Errorf("Dependents(b)[%s] = %+v, %v", id, dep, ok)
	}
	a, _ := fd.Entry("a")
	if !a.Dependees.Has(id) {
		t.Errorf("Dependees(a) misses %s", id)
	}
	if next, _ := AttachCustom(sess, fd, "b", "a", types.Options{}); next != "custom-2" {
		t.Errorf("second id = %s, want custom-2", next)
	}

	tests := []struct {
		name     string
		dependee string
		opts     types.Options
		wantErr  error
	}{
		{name: "same field", dependee: "b", wantErr: types.ErrSameField},
		{name: "unknown field", dependee: "nope", wantErr: types.ErrFieldNotFound},
		{name: "invalid option", dependee: "a", opts: types.Options{State: "shiny"}, wantErr: types.ErrInvalidOption},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := AttachCustom(sess, fd, tt.dependee, "b", tt.opts)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("AttachCustom() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestEngine_ProcessCustom(t *testing.T) {
	b := form.NewBuilder(form.Node{})
	textField(b, 0, "a")
	textField(b, 0, "b")
	tree := buildTree(t, b)

	e := newTestEngine(t, newStaticSource())
	custom := CustomDependency{Dependee: "a", Dependent: "b", Options: types.Options{Condition: types.ConditionFilled}}
	res, err := e.Process(context.Background(), e.NewSession(), "node", "article", tree, custom)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	want := map[string]any{"visible": map[string]any{selA: map[string]any{"!empty": true}}}
	if diff := cmp.Diff(want, nodeStates(t, res.Tree, "edit-b").States); diff != "" {
		t.Errorf("States mismatch (-want +got):\n%s", diff)
	}

	custom.Dependee = "b"
	if _, err := e.Process(context.Background(), e.NewSession(), "node", "article", tree, custom); !errors.Is(err, types.ErrSameField) {
		t.Errorf("Process() error = %v, want ErrSameField", err)
	}
}
