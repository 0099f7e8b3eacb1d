// internal/rules/attach.go
package rules

import (
	"context"
	"fmt"

	"github.com/solatis/condfields/internal/form"
	"github.com/solatis/condfields/internal/types"
)

/*
 * Form attachment.
 *
 * Attach walks the field wrappers of a form and copies each field's
 * dependents and dependees from its bundle's DependencyMap into a
 * per-form registry. Fields inside a subform resolve against the subform's
 * own bundle and are keyed "<subform id>/<field>", so repeated sub-groups
 * keep separate entries and dependees resolve within the same subform.
 *
 * A field seen twice keeps the dependencies attached first, unless the
 * element kind is a priority kind: priority elements are processed after
 * their ordinary siblings and overwrite the entry. The default priority
 * kind is datelist.
 */

// DefaultPriorityKinds lists the element kinds that overwrite attachments.
var DefaultPriorityKinds = []form.Kind{form.KindDatelist}

// FieldEntry is the attachment of one field wrapper.
type FieldEntry struct {
	Key   string
	Field string
	// Node is the wrapper index in the tree.
	Node int
	// Scope is the enclosing subform index, -1 at top level.
	Scope int

	// Dependents holds the rules controlling this field.
	Dependents *DependencyList
	// Dependees holds the rules this field controls.
	Dependees *DependencyList
}

// FormDependencies is the dependency registry of one form.
type FormDependencies struct {
	tree    *form.Tree
	order   []string
	entries map[string]*FieldEntry
}

func newFormDependencies(tree *form.Tree) *FormDependencies {
	return &FormDependencies{tree: tree, entries: make(map[string]*FieldEntry)}
}

// Entries returns the attached fields in form order.
func (fd *FormDependencies) Entries() []*FieldEntry {
	out := make([]*FieldEntry, 0, len(fd.order))
	for _, k := range fd.order {
		out = append(out, fd.entries[k])
	}
	return out
}

// Entry returns the field attached under key.
func (fd *FormDependencies) Entry(key string) (*FieldEntry, bool) {
	e, ok := fd.entries[key]
	return e, ok
}

// DependeeOf returns the entry of field in the same scope as entry.
func (fd *FormDependencies) DependeeOf(entry *FieldEntry, field string) (*FieldEntry, bool) {
	return fd.Entry(entryKey(fd.tree, entry.Scope, field))
}

// Len returns the number of attached fields.
func (fd *FormDependencies) Len() int { return len(fd.order) }

func (fd *FormDependencies) ensure(key, field string, node, scope int) *FieldEntry {
	if e, ok := fd.entries[key]; ok {
		return e
	}
	e := &FieldEntry{
		Key:        key,
		Field:      field,
		Node:       node,
		Scope:      scope,
		Dependents: newDependencyList(),
		Dependees:  newDependencyList(),
	}
	fd.entries[key] = e
	fd.order = append(fd.order, key)
	return e
}

func entryKey(tree *form.Tree, scope int, field string) string {
	if scope < 0 {
		return field
	}
	return tree.Node(scope).ID + "/" + field
}

// Attacher builds FormDependencies from resolved bundle maps.
type Attacher struct {
	priority map[form.Kind]bool
}

// NewAttacher creates an attacher with the given priority kinds.
func NewAttacher(priority ...form.Kind) *Attacher {
	if len(priority) == 0 {
		priority = DefaultPriorityKinds
	}
	a := &Attacher{priority: make(map[form.Kind]bool, len(priority))}
	for _, k := range priority {
		a.priority[k] = true
	}
	return a
}

// Attach resolves every field wrapper of tree. Top-level fields belong to
// entityType/bundle; subform fields to the subform's bundle.
func (a *Attacher) Attach(ctx context.Context, session *Session, tree *form.Tree, entityType, bundle string) (*FormDependencies, error) {
	if session == nil || tree == nil {
		return nil, fmt.Errorf("session and tree cannot be nil")
	}
	fd := newFormDependencies(tree)

	var ordinary, priority []int
	for _, idx := range tree.Fields() {
		if a.isPriority(tree, idx) {
			priority = append(priority, idx)
			continue
		}
		ordinary = append(ordinary, idx)
	}

	for _, pass := range []struct {
		nodes     []int
		overwrite bool
	}{{ordinary, false}, {priority, true}} {
		for _, idx := range pass.nodes {
			if err := a.attachField(ctx, session, tree, fd, idx, entityType, bundle, pass.overwrite); err != nil {
				return nil, err
			}
		}
	}
	return fd, nil
}

func (a *Attacher) isPriority(tree *form.Tree, idx int) bool {
	if a.priority[tree.Node(idx).Kind] {
		return true
	}
	if c, ok := tree.Control(idx); ok {
		return a.priority[tree.Node(c).Kind]
	}
	return false
}

func (a *Attacher) attachField(ctx context.Context, session *Session, tree *form.Tree, fd *FormDependencies, idx int, entityType, bundle string, overwrite bool) error {
	node := tree.Node(idx)
	scope := tree.Scope(idx)
	if scope >= 0 {
		sub := tree.Node(scope)
		if sub.EntityType != "" && sub.Bundle != "" {
			entityType, bundle = sub.EntityType, sub.Bundle
		}
	}

	m, err := session.Dependencies(ctx, entityType, bundle)
	if err != nil {
		return err
	}

	key := entryKey(tree, scope, node.Field)
	entry := fd.ensure(key, node.Field, idx, scope)
	if overwrite {
		entry.Node = idx
	}
	for _, dep := range m.Dependents(node.Field).All() {
		if overwrite || !entry.Dependents.Has(dep.ID) {
			entry.Dependents.Put(dep)
		}
	}
	for _, dep := range m.Dependees(node.Field).All() {
		if overwrite || !entry.Dependees.Has(dep.ID) {
			entry.Dependees.Put(dep)
		}
	}
	return nil
}

// AttachCustom declares a dependency between two top-level fields of the
// form, with a session-scoped progressive id.
func AttachCustom(session *Session, fd *FormDependencies, dependee, dependent string, opts types.Options) (types.RuleID, error) {
	if session == nil || fd == nil {
		return "", fmt.Errorf("session and dependencies cannot be nil")
	}
	if dependee == dependent {
		return "", fmt.Errorf("%w: %s", types.ErrSameField, dependee)
	}
	opts = opts.WithDefaults()
	if err := opts.Validate(); err != nil {
		return "", err
	}

	dependeeEntry, err := fd.customEntry(dependee)
	if err != nil {
		return "", err
	}
	dependentEntry, err := fd.customEntry(dependent)
	if err != nil {
		return "", err
	}

	dep := Dependency{
		ID:        session.NextCustomID(),
		Dependent: dependentEntry.Field,
		Dependee:  dependeeEntry.Field,
		Options:   opts,
	}
	dependentEntry.Dependents.Put(dep)
	dependeeEntry.Dependees.Put(dep)
	return dep.ID, nil
}

// customEntry finds a top-level field, by field name or by element key.
func (fd *FormDependencies) customEntry(name string) (*FieldEntry, error) {
	if e, ok := fd.entries[name]; ok {
		return e, nil
	}
	idx, ok := fd.tree.FieldIn(-1, name)
	if !ok {
		idx, ok = fd.tree.Child(fd.tree.Root(), name)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", types.ErrFieldNotFound, name)
	}
	field := fd.tree.Node(idx).Field
	if field == "" {
		field = name
	}
	return fd.ensure(field, field, idx, -1), nil
}
