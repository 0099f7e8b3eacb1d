package form

import (
	"fmt"
	"strings"

	"github.com/solatis/condfields/internal/types"
)

// Builder assembles a Tree. The zero value is not usable; call NewBuilder.
type Builder struct {
	tree *Tree
	err  error
}

// NewBuilder starts a tree with the given root.
func NewBuilder(root Node) *Builder {
	if root.Kind == "" {
		root.Kind = KindForm
	}
	if root.ID == "" {
		root.ID = "form"
	}
	t := &Tree{
		nodes:    []Node{root},
		parent:   []int{-1},
		children: [][]int{nil},
		byID:     map[string]int{root.ID: 0},
	}
	b := &Builder{tree: t}
	if !root.Kind.Valid() {
		b.err = fmt.Errorf("%w: %q", types.ErrUnknownFormElement, root.Kind)
	}
	return b
}

// Add appends n under parent and returns its index.
// Missing ids, names and value parents are derived from the key path.
// The first error is kept and reported by Build.
func (b *Builder) Add(parent int, n Node) int {
	if b.err != nil {
		return -1
	}
	t := b.tree
	if parent < 0 || parent >= len(t.nodes) {
		b.err = fmt.Errorf("parent index %d out of range", parent)
		return -1
	}
	if !n.Kind.Valid() {
		b.err = fmt.Errorf("%w: %q", types.ErrUnknownFormElement, n.Kind)
		return -1
	}
	if n.Key == "" {
		b.err = fmt.Errorf("node under %s has no key", t.nodes[parent].ID)
		return -1
	}

	idx := len(t.nodes)
	t.nodes = append(t.nodes, n)
	t.parent = append(t.parent, parent)
	t.children = append(t.children, nil)
	t.children[parent] = append(t.children[parent], idx)

	keys := t.ArrayParents(idx)
	node := &t.nodes[idx]
	if node.ID == "" {
		node.ID = ElementID(keys)
	}
	if len(node.Parents) == 0 {
		node.Parents = keys
	}
	if node.Name == "" && node.Kind.IsInput() {
		node.Name = InputName(node.Parents)
	}
	if _, dup := t.byID[node.ID]; dup {
		b.err = fmt.Errorf("%w: %s", types.ErrDuplicateElement, node.ID)
		return -1
	}
	t.byID[node.ID] = idx
	return idx
}

// Build returns the assembled tree. The builder must not be reused.
func (b *Builder) Build() (*Tree, error) {
	if b.err != nil {
		return nil, b.err
	}
	t := b.tree
	b.tree = nil
	return t, nil
}

// ElementID derives an html id from a key path ("edit-field-tags-0-value").
func ElementID(keys []string) string {
	parts := make([]string, 0, len(keys)+1)
	parts = append(parts, "edit")
	for _, k := range keys {
		parts = append(parts, strings.ToLower(strings.ReplaceAll(k, "_", "-")))
	}
	return strings.Join(parts, "-")
}

// InputName derives an input name attribute ("body[0][value]").
func InputName(parents []string) string {
	if len(parents) == 0 {
		return ""
	}
	if len(parents) == 1 {
		return parents[0]
	}
	return parents[0] + "[" + strings.Join(parents[1:], "][") + "]"
}
