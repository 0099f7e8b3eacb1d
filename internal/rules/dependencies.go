// internal/rules/dependencies.go
package rules

import (
	"github.com/solatis/condfields/internal/types"
)

/*
 * Bundle dependency map.
 *
 * Two ordered lookups built by the resolver:
 *   - dependents[field][ruleID] = {dependee, options}
 *   - dependees[field][ruleID]  = {dependent, options}
 *
 * Order is the storage iteration order. Registering an id twice overwrites
 * the entry in place, so the first registration fixes its position.
 */

// Dependency is one resolved rule.
type Dependency struct {
	ID        types.RuleID  `json:"id"`
	Dependent string        `json:"dependent"`
	Dependee  string        `json:"dependee"`
	Options   types.Options `json:"options"`
}

// DependencyList is an insertion-ordered set of dependencies keyed by id.
type DependencyList struct {
	order []types.RuleID
	byID  map[types.RuleID]Dependency
}

func newDependencyList() *DependencyList {
	return &DependencyList{byID: make(map[types.RuleID]Dependency)}
}

// Put registers d, overwriting an existing entry with the same id in place.
func (l *DependencyList) Put(d Dependency) {
	if _, ok := l.byID[d.ID]; !ok {
		l.order = append(l.order, d.ID)
	}
	l.byID[d.ID] = d
}

// Get returns the dependency with the given id.
func (l *DependencyList) Get(id types.RuleID) (Dependency, bool) {
	if l == nil {
		return Dependency{}, false
	}
	d, ok := l.byID[id]
	return d, ok
}

// Has reports whether id is registered.
func (l *DependencyList) Has(id types.RuleID) bool {
	_, ok := l.Get(id)
	return ok
}

// Len returns the number of dependencies.
func (l *DependencyList) Len() int {
	if l == nil {
		return 0
	}
	return len(l.order)
}

// All returns the dependencies in registration order.
func (l *DependencyList) All() []Dependency {
	if l == nil {
		return nil
	}
	out := make([]Dependency, 0, len(l.order))
	for _, id := range l.order {
		out = append(out, l.byID[id])
	}
	return out
}

// orderedIndex maps field names to dependency lists, keeping field order.
type orderedIndex struct {
	fields []string
	lists  map[string]*DependencyList
}

func newOrderedIndex() orderedIndex {
	return orderedIndex{lists: make(map[string]*DependencyList)}
}

func (x *orderedIndex) put(field string, d Dependency) {
	l, ok := x.lists[field]
	if !ok {
		l = newDependencyList()
		x.lists[field] = l
		x.fields = append(x.fields, field)
	}
	l.Put(d)
}

// DependencyMap holds the resolved dependencies of one bundle.
type DependencyMap struct {
	EntityType string
	Bundle     string

	dependents orderedIndex
	dependees  orderedIndex
	cycles     [][]string
}

// NewDependencyMap returns an empty map for a bundle.
func NewDependencyMap(entityType, bundle string) *DependencyMap {
	return &DependencyMap{
		EntityType: entityType,
		Bundle:     bundle,
		dependents: newOrderedIndex(),
		dependees:  newOrderedIndex(),
	}
}

// Register adds d under both its dependent and its dependee.
func (m *DependencyMap) Register(d Dependency) {
	m.dependents.put(d.Dependent, d)
	m.dependees.put(d.Dependee, d)
}

// Dependents returns the dependencies controlling field, as a dependent.
func (m *DependencyMap) Dependents(field string) *DependencyList {
	return m.dependents.lists[field]
}

// Dependees returns the dependencies field controls, as a dependee.
func (m *DependencyMap) Dependees(field string) *DependencyList {
	return m.dependees.lists[field]
}

// DependentFields lists fields with at least one dependee, in order.
func (m *DependencyMap) DependentFields() []string {
	return append([]string(nil), m.dependents.fields...)
}

// DependeeFields lists fields controlling at least one dependent, in order.
func (m *DependencyMap) DependeeFields() []string {
	return append([]string(nil), m.dependees.fields...)
}

// Empty reports whether the bundle has no dependencies.
func (m *DependencyMap) Empty() bool {
	return len(m.dependents.fields) == 0
}

// Cycles returns detected dependent->dependee cycles, each closed by its
// first field ("a", "b", "a").
func (m *DependencyMap) Cycles() [][]string {
	return m.cycles
}

// Snapshot is a plain-data view of a DependencyMap.
type Snapshot struct {
	EntityType string                  `json:"entity_type"`
	Bundle     string                  `json:"bundle"`
	Dependents map[string][]Dependency `json:"dependents"`
	Dependees  map[string][]Dependency `json:"dependees"`
	Cycles     [][]string              `json:"cycles,omitempty"`
}

// Snapshot copies the map into plain data.
func (m *DependencyMap) Snapshot() Snapshot {
	s := Snapshot{
		EntityType: m.EntityType,
		Bundle:     m.Bundle,
		Dependents: make(map[string][]Dependency),
		Dependees:  make(map[string][]Dependency),
		Cycles:     m.cycles,
	}
	for _, f := range m.dependents.fields {
		s.Dependents[f] = m.dependents.lists[f].All()
	}
	for _, f := range m.dependees.fields {
		s.Dependees[f] = m.dependees.lists[f].All()
	}
	return s
}

// detectCycles records every cycle of the dependent->dependee graph.
// Fields are visited in registration order so results are stable.
func (m *DependencyMap) detectCycles() {
	const (
		unvisited = iota
		onStack
		done
	)
	state := make(map[string]int)
	var stack []string
	var visit func(field string)
	visit = func(field string) {
		state[field] = onStack
		stack = append(stack, field)
		for _, d := range m.Dependents(field).All() {
			switch state[d.Dependee] {
			case unvisited:
				visit(d.Dependee)
			case onStack:
				for i := len(stack) - 1; i >= 0; i-- {
					if stack[i] == d.Dependee {
						cycle := append([]string(nil), stack[i:]...)
						m.cycles = append(m.cycles, append(cycle, d.Dependee))
						break
					}
				}
			}
		}
		stack = stack[:len(stack)-1]
		state[field] = done
	}
	for _, f := range m.dependents.fields {
		if state[f] == unvisited {
			visit(f)
		}
	}
}
