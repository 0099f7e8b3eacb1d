// internal/rules/states.go
package rules

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/solatis/condfields/internal/core/metrics"
	"github.com/solatis/condfields/internal/form"
	"github.com/solatis/condfields/internal/types"
)

/*
 * Client state construction.
 *
 * For every attached dependent, StateBuilder collects one Fragment per
 * dependency and groups it under the rule's grouping. The grouped
 * expression is rendered by MapStates and merged into the states already
 * present on the target node, so independent rule sets stack.
 *
 * Build workflow, per dependent in form order:
 *   1. Locate the dependee wrapper in the same subform scope and its control
 *   2. Derive the selector: the rule override (with %lang replaced) or the
 *      control's default selector
 *   3. Non-value conditions produce {condition: true}; value conditions are
 *      delegated to the widget's StateHandler
 *   4. Record the visual effect under the dependent's top-level selector
 *   5. Retarget checked states from a container to its single inner
 *      checkbox or radio
 *   6. Flag the wrapper for server-side validation and reset
 *
 * Dependencies whose dependee cannot be located are skipped. A broken rule
 * has no effect on the form.
 */

// StateExpression groups constraints by state and grouping.
type StateExpression map[types.State]map[types.Grouping][]Constraint

// Merge adds a fragment under grouping; constraints concatenate.
func (e StateExpression) Merge(frag Fragment, grouping types.Grouping) {
	for state, constraints := range frag {
		groups, ok := e[state]
		if !ok {
			groups = make(map[types.Grouping][]Constraint)
			e[state] = groups
		}
		groups[grouping] = append(groups[grouping], constraints...)
	}
}

// States lists the expression's states in sorted order.
func (e StateExpression) States() []types.State {
	out := make([]types.State, 0, len(e))
	for s := range e {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Client-side keys of grouped constraint lists. String keys keep the state
// an object, so the groups are ANDed with the direct constraints.
const (
	orGroupKey  = "1"
	xorGroupKey = "2"
	xorMarker   = "xor"
)

// MapStates renders an expression in the client shape:
//
//	{state: {selector: trigger, "1": [{sel: trig}, ...], "2": ["xor", {sel: trig}, ...]}}
//
// A plain list is ORed by the client; a leading "xor" switches it to XOR.
func MapStates(e StateExpression) map[string]any {
	out := make(map[string]any, len(e))
	for _, state := range e.States() {
		groups := e[state]
		rendered := make(map[string]any)
		for _, c := range groups[types.GroupAND] {
			rendered[c.Selector] = c.Trigger
		}
		if or := groups[types.GroupOR]; len(or) > 0 {
			rendered[orGroupKey] = constraintList(nil, or)
		}
		if xor := groups[types.GroupXOR]; len(xor) > 0 {
			rendered[xorGroupKey] = constraintList([]any{xorMarker}, xor)
		}
		out[string(state)] = rendered
	}
	return out
}

func constraintList(prefix []any, constraints []Constraint) []any {
	out := make([]any, 0, len(prefix)+len(constraints))
	out = append(out, prefix...)
	for _, c := range constraints {
		out = append(out, map[string]any{c.Selector: c.Trigger})
	}
	return out
}

// mergeStates merges rendered states into existing ones. Selector keys of
// the same state are replaced; grouped lists are concatenated, keeping a
// single leading "xor" marker.
func mergeStates(existing, add map[string]any) map[string]any {
	if existing == nil {
		existing = make(map[string]any, len(add))
	}
	for state, v := range add {
		next, ok := v.(map[string]any)
		prev, had := existing[state].(map[string]any)
		if !ok || !had {
			existing[state] = v
			continue
		}
		for key, val := range next {
			prevList, isList := prev[key].([]any)
			nextList, nextIsList := val.([]any)
			if (key == orGroupKey || key == xorGroupKey) && isList && nextIsList {
				prev[key] = joinLists(prevList, nextList)
				continue
			}
			prev[key] = val
		}
	}
	return existing
}

func joinLists(prev, next []any) []any {
	if len(prev) > 0 && len(next) > 0 && prev[0] == xorMarker && next[0] == xorMarker {
		next = next[1:]
	}
	return append(append(make([]any, 0, len(prev)+len(next)), prev...), next...)
}

// EffectSpec is the visual transition attached to a top-level selector.
type EffectSpec struct {
	Effect  types.Effect   `json:"effect"`
	Options map[string]any `json:"options,omitempty"`
}

// BuildResult is the output of StateBuilder.Build.
type BuildResult struct {
	Tree    *form.Tree
	Effects map[string]EffectSpec
	// Validate reports whether any dependent needs the Validation Guard.
	Validate bool
}

// StateBuilder attaches client states to a form tree.
type StateBuilder struct {
	handlers *HandlerRegistry
	language string
}

// NewStateBuilder creates a builder. language replaces %lang in selector
// overrides when the control carries no language of its own.
func NewStateBuilder(handlers *HandlerRegistry, language string) (*StateBuilder, error) {
	if handlers == nil {
		return nil, fmt.Errorf("handlers cannot be nil")
	}
	return &StateBuilder{handlers: handlers, language: language}, nil
}

// Build computes states for every attached dependent of fd.
func (b *StateBuilder) Build(tree *form.Tree, fd *FormDependencies) (*BuildResult, error) {
	if tree == nil || fd == nil {
		return nil, fmt.Errorf("tree and dependencies cannot be nil")
	}
	result := &BuildResult{Tree: tree, Effects: make(map[string]EffectSpec)}

	for _, entry := range fd.Entries() {
		if entry.Dependents.Len() == 0 {
			continue
		}

		expr := make(StateExpression)
		validate, reset := false, false
		for _, dep := range entry.Dependents.All() {
			frag, ok := b.fragment(result.Tree, fd, entry, dep)
			if !ok {
				continue
			}
			expr.Merge(frag, dep.Options.Grouping)
			if dep.Options.Condition.Evaluable() {
				validate = true
			}
			if dep.Options.Reset {
				reset = true
			}
			b.recordEffect(result, entry, dep.Options)
		}
		if len(expr) == 0 {
			continue
		}

		tree, err := b.attach(result.Tree, entry, expr, validate, reset)
		if err != nil {
			return nil, err
		}
		result.Tree = tree
		result.Validate = result.Validate || validate
		metrics.StatesBuilt.Inc()
	}

	for sel, spec := range result.Effects {
		if spec.Effect == "" || spec.Effect == types.EffectShow {
			delete(result.Effects, sel)
		}
	}
	return result, nil
}

// fragment computes the client state of one dependency.
func (b *StateBuilder) fragment(tree *form.Tree, fd *FormDependencies, entry *FieldEntry, dep Dependency) (Fragment, bool) {
	dependee, ok := fd.DependeeOf(entry, dep.Dependee)
	if !ok {
		skipRule(dep, entry, "dependee_missing")
		return nil, false
	}
	ctrlIdx, ok := tree.Control(dependee.Node)
	if !ok {
		skipRule(dep, entry, "dependee_without_control")
		return nil, false
	}
	wrapper := tree.Node(dependee.Node)
	control := tree.Node(ctrlIdx)

	opts := dep.Options
	opts.Selector = b.selector(opts.Selector, control)
	opts.FieldCardinality = wrapper.Cardinality
	if opts.Selector == "" {
		skipRule(dep, entry, "no_selector")
		return nil, false
	}

	if opts.Condition != types.ConditionValue {
		return Fragment{opts.State: {{
			Selector: opts.Selector,
			Trigger:  map[string]any{string(opts.Condition): true},
		}}}, true
	}

	frag := b.handlers.ComputeState(wrapper.Widget, control, opts)
	if len(frag) == 0 {
		skipRule(dep, entry, "empty_state")
		return nil, false
	}
	return frag, true
}

func skipRule(dep Dependency, entry *FieldEntry, reason string) {
	metrics.RulesSkipped.WithLabelValues(reason).Inc()
	logrus.WithFields(logrus.Fields{
		"rule_id":   dep.ID,
		"dependent": entry.Key,
		"dependee":  dep.Dependee,
		"reason":    reason,
	}).Debug("skipping dependency")
}

// selector applies the override, replacing the language placeholder.
func (b *StateBuilder) selector(override string, control form.Node) string {
	if override == "" {
		return form.Selector(control)
	}
	lang := control.Language
	if lang == "" {
		lang = b.language
	}
	return strings.ReplaceAll(override, "%lang", lang)
}

// recordEffect stores the dependency's effect; the last one wins.
func (b *StateBuilder) recordEffect(result *BuildResult, entry *FieldEntry, opts types.Options) {
	top := topLevel(result.Tree, entry.Node)
	sel := form.Selector(result.Tree.Node(top))
	if sel == "" {
		return
	}
	result.Effects[sel] = EffectSpec{Effect: opts.Effect, Options: effectOptions(opts.EffectOptions)}
}

// effectOptions converts numeric strings to numbers.
func effectOptions(in map[string]any) map[string]any {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		if s, ok := v.(string); ok && isNumeric(s) {
			if f, ok := toFloat64(s); ok {
				out[k] = f
				continue
			}
		}
		out[k] = v
	}
	return out
}

// topLevel returns the ancestor of idx directly under the root.
func topLevel(tree *form.Tree, idx int) int {
	for tree.Parent(idx) > 0 {
		idx = tree.Parent(idx)
	}
	return idx
}

// attach merges the rendered expression into the target node and flags the
// dependent wrapper.
func (b *StateBuilder) attach(tree *form.Tree, entry *FieldEntry, expr StateExpression, validate, reset bool) (*form.Tree, error) {
	target := entry.Node
	if _, ok := expr[types.StateChecked]; ok {
		target = checkedTarget(tree, entry.Node)
	} else if _, ok := expr[types.StateUnchecked]; ok {
		target = checkedTarget(tree, entry.Node)
	}

	rendered := MapStates(expr)
	tree, err := tree.Update(target, func(n *form.Node) {
		n.States = mergeStates(n.States, rendered)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to attach states to %s: %w", entry.Key, err)
	}
	if !validate && !reset {
		return tree, nil
	}
	tree, err = tree.Update(entry.Node, func(n *form.Node) {
		n.Validate = n.Validate || validate
		n.ResetIfUntriggered = n.ResetIfUntriggered || reset
	})
	if err != nil {
		return nil, fmt.Errorf("failed to flag %s: %w", entry.Key, err)
	}
	return tree, nil
}

// checkedTarget returns the single checkbox or radio inside a container,
// or the wrapper itself.
func checkedTarget(tree *form.Tree, wrapper int) int {
	switch tree.Node(wrapper).Kind {
	case form.KindCheckbox, form.KindRadio:
		return wrapper
	}
	found, count := -1, 0
	var visit func(int)
	visit = func(idx int) {
		for _, c := range tree.Children(idx) {
			switch tree.Node(c).Kind {
			case form.KindCheckbox, form.KindRadio:
				found = c
				count++
			case form.KindSubform:
				continue
			}
			visit(c)
		}
	}
	visit(wrapper)
	if count == 1 {
		return found
	}
	return wrapper
}
