// internal/rules/guard.go
package rules

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mitchellh/copystructure"
	"github.com/solatis/condfields/internal/core/metrics"
	"github.com/solatis/condfields/internal/form"
	"github.com/solatis/condfields/internal/types"
)

/*
 * Submission guard.
 *
 * Re-evaluates every dependent against the submitted values and emulates
 * untriggered fields being absent from the form: their values are stripped
 * (or reset to the default) and their validation errors removed.
 *
 * Per dependent:
 *   1. Evaluate each dependency with an evaluable condition against the
 *      dependee's submitted value; fold with the grouping law into triggered
 *   2. Preserve the field when a (grouping, state) result agrees with
 *      triggered: visible with a true result while triggered, or !visible
 *      with a false result while untriggered; likewise required/!required
 *   3. A field preserved through required/!required with blank input
 *      raises "<title> is required." on its deepest element unless an error
 *      already exists. Visibility alone never raises it
 *   4. Otherwise queue the field: visibility states strip or reset the
 *      value, required states only clear errors, other states keep it all
 *
 * The queue is applied in one sweep after every dependent was evaluated, so
 * fields referencing each other see the original submission. A queued
 * field whose value location is missing keeps its errors and values.
 *
 * The submission passed in is never mutated; Report holds the result.
 */

// Outcome is the final state of a guarded field.
type Outcome string

const (
	OutcomePreserved     Outcome = "preserved"
	OutcomeStripped      Outcome = "stripped"
	OutcomeReset         Outcome = "reset"
	OutcomeErrorsCleared Outcome = "errors-cleared"
	OutcomeKeptErrors    Outcome = "kept-errors"
)

// Submission is the submitted values tree and the validation errors keyed
// by element name ("body][0][value").
type Submission struct {
	Values map[string]any    `json:"values"`
	Errors map[string]string `json:"errors"`
}

// FieldReport describes what the guard did to one dependent.
type FieldReport struct {
	Key           string   `json:"key"`
	Field         string   `json:"field"`
	Triggered     bool     `json:"triggered"`
	Outcome       Outcome  `json:"outcome"`
	RemovedErrors []string `json:"removed_errors,omitempty"`
	RequiredError string   `json:"required_error,omitempty"`
}

// State returns TRIGGERED or UNTRIGGERED.
func (r FieldReport) State() string {
	if r.Triggered {
		return "TRIGGERED"
	}
	return "UNTRIGGERED"
}

// Report is the guarded submission.
type Report struct {
	Values map[string]any    `json:"values"`
	Errors map[string]string `json:"errors"`
	Fields []FieldReport     `json:"fields"`
}

// Field returns the report of the field attached under key.
func (r *Report) Field(key string) (FieldReport, bool) {
	for _, f := range r.Fields {
		if f.Key == key {
			return f, true
		}
	}
	return FieldReport{}, false
}

type guardAction int

const (
	actionNone guardAction = iota
	actionStrip
	actionReset
	actionClearErrors
)

type queued struct {
	report  int
	entry   *FieldEntry
	action  guardAction
	def     any
	parents []string
	names   []string
}

// Guard validates submissions against a form's dependencies.
type Guard struct{}

// NewGuard creates a guard.
func NewGuard() *Guard { return &Guard{} }

// Validate guards sub. tree must be the form the values were submitted
// from and fd its attached dependencies.
func (g *Guard) Validate(tree *form.Tree, fd *FormDependencies, sub Submission) (*Report, error) {
	if tree == nil || fd == nil {
		return nil, fmt.Errorf("tree and dependencies cannot be nil")
	}
	values, errs, err := copySubmission(sub)
	if err != nil {
		return nil, err
	}
	report := &Report{Values: values, Errors: errs}
	added := make(map[string]bool)

	var queue []queued
	for _, entry := range fd.Entries() {
		deps := evaluable(entry.Dependents.All())
		if len(deps) == 0 {
			continue
		}

		wrapper := tree.Node(entry.Node)
		triggered, results := g.evaluate(tree, fd, entry, deps, values)
		fr := FieldReport{Key: entry.Key, Field: entry.Field, Triggered: triggered, Outcome: OutcomePreserved}

		preserved, requiredPath := false, false
		hasVisibility, hasRequired := false, false
		for _, grouping := range sortedGroupings(results) {
			for state, result := range results[grouping] {
				switch state {
				case types.StateVisible, types.StateInvisible:
					hasVisibility = true
				case types.StateRequired, types.StateOptional:
					hasRequired = true
				}
				if (result && state == types.StateVisible && triggered) || (!result && state == types.StateInvisible && !triggered) {
					preserved = true
				}
				if (result && state == types.StateRequired && triggered) || (!result && state == types.StateOptional && !triggered) {
					preserved, requiredPath = true, true
				}
			}
		}

		if preserved {
			if requiredPath {
				fr.RequiredError = requireInput(tree, entry, wrapper, values, errs)
				if fr.RequiredError != "" {
					added[fr.RequiredError] = true
				}
			}
			report.Fields = append(report.Fields, fr)
			continue
		}

		action := actionNone
		switch {
		case hasVisibility && (wrapper.ResetIfUntriggered || anyReset(deps)):
			action = actionReset
		case hasVisibility:
			action = actionStrip
		case hasRequired:
			action = actionClearErrors
		}
		report.Fields = append(report.Fields, fr)
		if action == actionNone {
			continue
		}
		queue = append(queue, queued{
			report:  len(report.Fields) - 1,
			entry:   entry,
			action:  action,
			def:     wrapper.Default,
			parents: wrapper.Parents,
			names:   errorNames(tree, entry.Node),
		})
	}

	for _, q := range queue {
		fr := &report.Fields[q.report]
		fr.Outcome = g.sweep(q, values, errs, added, fr)
	}
	for _, fr := range report.Fields {
		metrics.GuardOutcomes.WithLabelValues(string(fr.Outcome)).Inc()
	}
	return report, nil
}

// evaluate computes triggered and the last result per (grouping, state).
func (g *Guard) evaluate(tree *form.Tree, fd *FormDependencies, entry *FieldEntry, deps []Dependency, values map[string]any) (bool, map[types.Grouping]map[types.State]bool) {
	groups := make(map[types.Grouping][]bool)
	results := make(map[types.Grouping]map[types.State]bool)
	for _, dep := range deps {
		dependee, ok := fd.DependeeOf(entry, dep.Dependee)
		if !ok {
			skipRule(dep, entry, "dependee_missing")
			continue
		}
		opts := dep.Options
		opts.FieldCardinality = tree.Node(dependee.Node).Cardinality
		r := EvaluateDependency(ContextEdit, dependeeValue(tree, dependee, values), opts)
		groups[opts.Grouping] = append(groups[opts.Grouping], r)
		if results[opts.Grouping] == nil {
			results[opts.Grouping] = make(map[types.State]bool)
		}
		results[opts.Grouping][opts.State] = r
	}
	return EvaluateGrouping(groups), results
}

// dependeeValue reads a dependee's submitted value in evaluator shape.
// Row lists [{"value": x}, ...] reduce to the first row's x, so only the
// first row takes part in evaluation.
func dependeeValue(tree *form.Tree, dependee *FieldEntry, values map[string]any) any {
	wrapper := tree.Node(dependee.Node)
	v, ok := LookupValue(values, wrapper.Parents)
	if !ok {
		return nil
	}
	if x, ok := firstRowValue(v); ok {
		v = x
	}
	if m, ok := v.(map[string]any); ok && wrapper.Language != "" {
		if inner, ok := m[wrapper.Language]; ok && len(m) == 1 {
			v = inner
		}
	}
	if b, ok := v.(bool); ok {
		if c, ok := tree.Control(dependee.Node); ok && tree.Node(c).Kind == form.KindCheckbox {
			if b {
				return float64(1)
			}
			return float64(0)
		}
	}
	return v
}

// requireInput raises the required error of a blank field. Returns the
// error key when an error was added.
func requireInput(tree *form.Tree, entry *FieldEntry, wrapper form.Node, values map[string]any, errs map[string]string) string {
	v, _ := LookupValue(values, wrapper.Parents)
	if !isBlank(v) {
		return ""
	}
	key := deepestName(tree, entry.Node)
	if _, exists := errs[key]; exists {
		return ""
	}
	title := wrapper.Title
	if title == "" {
		title = wrapper.Field
	}
	errs[key] = fmt.Sprintf("%s is required.", title)
	return key
}

// sweep applies one queued action.
func (g *Guard) sweep(q queued, values map[string]any, errs map[string]string, added map[string]bool, fr *FieldReport) Outcome {
	if _, ok := LookupValue(values, q.parents); !ok || len(q.parents) == 0 {
		return OutcomeKeptErrors
	}

	for _, name := range sortedErrorKeys(errs) {
		if added[name] || !matchesAny(name, q.names) {
			continue
		}
		delete(errs, name)
		fr.RemovedErrors = append(fr.RemovedErrors, name)
	}

	switch q.action {
	case actionClearErrors:
		return OutcomeErrorsCleared
	case actionReset:
		if q.def == nil {
			DeleteValue(values, q.parents)
			return OutcomeReset
		}
		def, err := copystructure.Copy(q.def)
		if err != nil {
			def = q.def
		}
		if err := SetValue(values, q.parents, def); err != nil {
			return OutcomeKeptErrors
		}
		return OutcomeReset
	default:
		DeleteValue(values, q.parents)
		return OutcomeStripped
	}
}

func evaluable(deps []Dependency) []Dependency {
	var out []Dependency
	for _, d := range deps {
		if d.Options.Condition.Evaluable() {
			out = append(out, d)
		}
	}
	return out
}

func anyReset(deps []Dependency) bool {
	for _, d := range deps {
		if d.Options.Reset {
			return true
		}
	}
	return false
}

func sortedGroupings(m map[types.Grouping]map[types.State]bool) []types.Grouping {
	out := make([]types.Grouping, 0, len(m))
	for g := range m {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func sortedErrorKeys(errs map[string]string) []string {
	out := make([]string, 0, len(errs))
	for k := range errs {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// errorNames lists the error name prefixes of a field: its wrapper's value
// location and its deepest element.
func errorNames(tree *form.Tree, wrapper int) []string {
	names := []string{strings.Join(tree.Node(wrapper).Parents, "][")}
	if deep := deepestName(tree, wrapper); deep != names[0] {
		names = append(names, deep)
	}
	return names
}

// deepestName returns the error key of the field's input element.
func deepestName(tree *form.Tree, wrapper int) string {
	if c, ok := tree.Control(wrapper); ok && len(tree.Node(c).Parents) > 0 {
		return strings.Join(tree.Node(c).Parents, "][")
	}
	return strings.Join(tree.Node(wrapper).Parents, "][")
}

// matchesAny reports whether an error name is one of prefixes or nested
// under one of them.
func matchesAny(name string, prefixes []string) bool {
	for _, p := range prefixes {
		if p == "" {
			continue
		}
		if name == p || strings.HasPrefix(name, p+"]") {
			return true
		}
	}
	return false
}

// isBlank reports whether submitted input holds nothing the user entered.
// The multi-value "add_more" button is ignored.
func isBlank(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == "" || t == NoneSentinel
	case bool:
		return !t
	case []any:
		for _, e := range t {
			if !isBlank(e) {
				return false
			}
		}
		return true
	case map[string]any:
		for k, e := range t {
			if k == "add_more" {
				continue
			}
			if !isBlank(e) {
				return false
			}
		}
		return true
	}
	return false
}

func copySubmission(sub Submission) (map[string]any, map[string]string, error) {
	values := map[string]any{}
	if sub.Values != nil {
		c, err := copystructure.Copy(sub.Values)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to copy submitted values: %w", err)
		}
		values = c.(map[string]any)
	}
	errs := make(map[string]string, len(sub.Errors))
	for k, v := range sub.Errors {
		errs[k] = v
	}
	return values, errs, nil
}
