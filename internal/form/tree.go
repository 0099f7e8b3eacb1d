// Package form models a rendered entity form as an immutable tree of typed
// nodes.
//
// Nodes live in a flat slice with explicit parent and children indices.
// Queries never mutate; Update returns a new Tree sharing every node except
// the one that changed. States, effects and validation flags computed by
// internal/rules flow back into a form through Update.
package form

import (
	"fmt"

	"github.com/mitchellh/copystructure"
	"github.com/solatis/condfields/internal/types"
)

// Kind is the element type of a node.
type Kind string

const (
	KindForm       Kind = "form"
	KindContainer  Kind = "container"
	KindFieldset   Kind = "fieldset"
	KindDetails    Kind = "details"
	KindSubform    Kind = "subform"
	KindTextfield  Kind = "textfield"
	KindTextarea   Kind = "textarea"
	KindNumber     Kind = "number"
	KindEmail      Kind = "email"
	KindSelect     Kind = "select"
	KindCheckbox   Kind = "checkbox"
	KindCheckboxes Kind = "checkboxes"
	KindRadio      Kind = "radio"
	KindRadios     Kind = "radios"
	KindDate       Kind = "date"
	KindDatelist   Kind = "datelist"
	KindHidden     Kind = "hidden"
	KindValue      Kind = "value"
)

var inputKinds = map[Kind]bool{
	KindTextfield: true, KindTextarea: true, KindNumber: true, KindEmail: true,
	KindSelect: true, KindCheckbox: true, KindCheckboxes: true, KindRadio: true,
	KindRadios: true, KindDate: true, KindDatelist: true, KindHidden: true,
}

var structuralKinds = map[Kind]bool{
	KindForm: true, KindContainer: true, KindFieldset: true, KindDetails: true,
	KindSubform: true, KindValue: true,
}

// Valid reports whether k is a known element kind.
func (k Kind) Valid() bool { return inputKinds[k] || structuralKinds[k] }

// IsInput reports whether k renders a control the user can change.
func (k Kind) IsInput() bool { return inputKinds[k] }

// Node is one form element. Treat nodes returned by a Tree as read-only.
type Node struct {
	ID       string
	Key      string
	Kind     Kind
	Name     string
	Field    string
	Widget   string
	Language string
	Title    string

	Cardinality int
	Required    bool
	Default     any

	// Parents locates the node's submitted value inside the values tree.
	Parents []string

	Attributes map[string]any
	States     map[string]any

	Validate           bool
	ResetIfUntriggered bool

	// EntityType and Bundle name the bundle edited by a subform.
	EntityType string
	Bundle     string
}

// IsField reports whether the node wraps a configured field.
func (n Node) IsField() bool { return n.Field != "" }

// Tree is an immutable form. The root is always index 0.
type Tree struct {
	nodes    []Node
	parent   []int
	children [][]int
	byID     map[string]int
}

// Len returns the number of nodes.
func (t *Tree) Len() int { return len(t.nodes) }

// Root returns the index of the root node.
func (t *Tree) Root() int { return 0 }

// Node returns a copy of the node at idx.
func (t *Tree) Node(idx int) Node { return t.nodes[idx] }

// Lookup resolves an element id.
func (t *Tree) Lookup(id string) (int, bool) {
	idx, ok := t.byID[id]
	return idx, ok
}

// Parent returns the parent index, -1 for the root.
func (t *Tree) Parent(idx int) int { return t.parent[idx] }

// Children returns the child indices of idx in declaration order.
func (t *Tree) Children(idx int) []int {
	out := make([]int, len(t.children[idx]))
	copy(out, t.children[idx])
	return out
}

// ArrayParents returns the keys from the root (exclusive) down to idx.
func (t *Tree) ArrayParents(idx int) []string {
	var keys []string
	for i := idx; i > 0; i = t.parent[i] {
		keys = append(keys, t.nodes[i].Key)
	}
	for l, r := 0, len(keys)-1; l < r; l, r = l+1, r-1 {
		keys[l], keys[r] = keys[r], keys[l]
	}
	return keys
}

// Child returns the direct child of idx with the given key.
func (t *Tree) Child(idx int, key string) (int, bool) {
	for _, c := range t.children[idx] {
		if t.nodes[c].Key == key {
			return c, true
		}
	}
	return -1, false
}

// Descendant follows keys from idx.
func (t *Tree) Descendant(idx int, keys ...string) (int, bool) {
	cur := idx
	for _, k := range keys {
		next, ok := t.Child(cur, k)
		if !ok {
			return -1, false
		}
		cur = next
	}
	return cur, true
}

// AncestorOfKind returns the closest strict ancestor of idx with kind k.
func (t *Tree) AncestorOfKind(idx int, k Kind) (int, bool) {
	for i := t.parent[idx]; i >= 0; i = t.parent[i] {
		if t.nodes[i].Kind == k {
			return i, true
		}
	}
	return -1, false
}

// Walk visits nodes in pre-order. Returning false skips the subtree.
func (t *Tree) Walk(fn func(idx int, n Node) bool) {
	var visit func(int)
	visit = func(i int) {
		if !fn(i, t.nodes[i]) {
			return
		}
		for _, c := range t.children[i] {
			visit(c)
		}
	}
	visit(0)
}

// Fields returns every field wrapper in pre-order, subform fields included.
func (t *Tree) Fields() []int {
	var out []int
	t.Walk(func(idx int, n Node) bool {
		if n.IsField() {
			out = append(out, idx)
		}
		return true
	})
	return out
}

// Scope returns the subform enclosing idx, or -1 at top level.
func (t *Tree) Scope(idx int) int {
	if s, ok := t.AncestorOfKind(idx, KindSubform); ok {
		return s
	}
	return -1
}

// FieldIn returns the wrapper of field name whose enclosing subform is scope.
// Use scope -1 for top-level fields.
func (t *Tree) FieldIn(scope int, name string) (int, bool) {
	for _, idx := range t.Fields() {
		if t.nodes[idx].Field == name && t.Scope(idx) == scope {
			return idx, true
		}
	}
	return -1, false
}

// Control returns the input element of a field wrapper: the node itself when
// it is an input, otherwise its first input descendant.
func (t *Tree) Control(idx int) (int, bool) {
	if t.nodes[idx].Kind.IsInput() {
		return idx, true
	}
	found := -1
	t.walkFrom(idx, func(i int) bool {
		if found >= 0 {
			return false
		}
		if i != idx && t.nodes[i].Kind == KindSubform {
			return false
		}
		if t.nodes[i].Kind.IsInput() {
			found = i
			return false
		}
		return true
	})
	return found, found >= 0
}

func (t *Tree) walkFrom(idx int, fn func(int) bool) {
	if !fn(idx) {
		return
	}
	for _, c := range t.children[idx] {
		t.walkFrom(c, fn)
	}
}

// Update returns a new tree in which the node at idx was changed by fn.
// The changed node is deep-copied first; ids are immutable.
func (t *Tree) Update(idx int, fn func(n *Node)) (*Tree, error) {
	if idx < 0 || idx >= len(t.nodes) {
		return nil, fmt.Errorf("node index %d out of range", idx)
	}
	copied, err := copystructure.Copy(t.nodes[idx])
	if err != nil {
		return nil, fmt.Errorf("failed to copy node %s: %w", t.nodes[idx].ID, err)
	}
	n := copied.(Node)
	fn(&n)
	if n.ID != t.nodes[idx].ID {
		return nil, fmt.Errorf("%w: node id %s cannot change", types.ErrDuplicateElement, t.nodes[idx].ID)
	}

	nodes := make([]Node, len(t.nodes))
	copy(nodes, t.nodes)
	nodes[idx] = n
	return &Tree{nodes: nodes, parent: t.parent, children: t.children, byID: t.byID}, nil
}
