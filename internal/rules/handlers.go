// internal/rules/handlers.go
package rules

import (
	"fmt"

	"github.com/solatis/condfields/internal/form"
	"github.com/solatis/condfields/internal/types"
)

/*
 * Widget state handlers.
 *
 * A value condition's client constraint depends on how the dependee widget
 * submits values. Handlers turn a rule into a Fragment for one widget
 * family; the registry picks the first handler whose CanHandle matches, in
 * registration order, falling back to DefaultHandler when none matches or
 * the match returns an empty fragment.
 *
 * Constraint triggers are JSON-ready values consumed by the client:
 *   {"value": x}            exact value
 *   {"value": {"regex": r}} pattern
 *   {"value": {"xor": [..]}} exactly one of
 *   [{"value": a}, ...]     any of (alternatives on one selector)
 *   {"checked": true}       non-value conditions
 */

// Constraint pairs a dependee selector with its trigger.
type Constraint struct {
	Selector string
	Trigger  any
}

// Fragment is the client state contributed by one dependency.
type Fragment map[types.State][]Constraint

// StateHandler computes the client state of value conditions for a widget.
type StateHandler interface {
	CanHandle(widget string, cardinality int) bool
	ComputeState(dependee form.Node, opts types.Options) Fragment
}

// HandlerRegistry resolves handlers in registration order.
type HandlerRegistry struct {
	handlers []StateHandler
	fallback StateHandler
}

// NewHandlerRegistry creates a registry over handlers with DefaultHandler as
// the fallback.
func NewHandlerRegistry(handlers ...StateHandler) *HandlerRegistry {
	return &HandlerRegistry{handlers: handlers, fallback: DefaultHandler{}}
}

// DefaultHandlers returns the registry of built-in handlers.
func DefaultHandlers() *HandlerRegistry {
	return NewHandlerRegistry(
		EmailHandler{},
		BooleanCheckboxHandler{},
		MultipleSelectHandler{},
		OptionsButtonsHandler{},
	)
}

// Register appends a handler; earlier handlers take precedence.
func (r *HandlerRegistry) Register(h StateHandler) error {
	if h == nil {
		return fmt.Errorf("handler cannot be nil")
	}
	r.handlers = append(r.handlers, h)
	return nil
}

// Resolve returns the handler for a widget.
func (r *HandlerRegistry) Resolve(widget string, cardinality int) StateHandler {
	for _, h := range r.handlers {
		if h.CanHandle(widget, cardinality) {
			return h
		}
	}
	return r.fallback
}

// ComputeState runs the resolved handler, falling back on empty output.
func (r *HandlerRegistry) ComputeState(widget string, dependee form.Node, opts types.Options) Fragment {
	frag := r.Resolve(widget, opts.FieldCardinality).ComputeState(dependee, opts)
	if len(frag) == 0 {
		frag = r.fallback.ComputeState(dependee, opts)
	}
	return frag
}

// configuredValues returns opts.Values as a JSON-ready list.
func configuredValues(opts types.Options) []any {
	out := make([]any, len(opts.Values))
	for i, v := range opts.Values {
		out[i] = v
	}
	return out
}

// widgetValue collapses the stored widget reference to what the client
// compares: the row value for single rows, a list for several.
func widgetValue(ref any) any {
	if !isIndexed(ref) {
		return ref
	}
	var out []any
	for _, e := range entries(ref) {
		if row, ok := e.Value.(map[string]any); ok {
			if v, ok := row["value"]; ok {
				out = append(out, v)
				continue
			}
			if first, ok := firstEntry(row); ok {
				out = append(out, first.Value)
			}
			continue
		}
		out = append(out, e.Value)
	}
	if len(out) == 1 {
		return out[0]
	}
	return out
}

// anyOf builds alternatives on one selector.
func anyOf(condition types.Condition, values []any) any {
	alts := make([]any, 0, len(values))
	for _, v := range values {
		alts = append(alts, map[string]any{string(condition): v})
	}
	return alts
}

// DefaultHandler covers plain text, number and list widgets.
type DefaultHandler struct{}

// CanHandle matches every widget.
func (DefaultHandler) CanHandle(string, int) bool { return true }

// ComputeState builds the constraint for each values set.
func (DefaultHandler) ComputeState(_ form.Node, opts types.Options) Fragment {
	cond := string(opts.Condition)
	state := opts.State
	var trigger any

	switch opts.ValuesSet {
	case types.ValuesWidget:
		v := widgetValue(opts.ValueForm)
		if opts.FieldCardinality != types.CardinalitySingle && opts.FieldCardinality != 0 && !isIndexed(v) && v != nil {
			v = []any{v}
		}
		trigger = map[string]any{cond: v}
	case types.ValuesRegex:
		trigger = map[string]any{cond: map[string]any{"regex": opts.Regex}}
	case types.ValuesAND:
		values := configuredValues(opts)
		if len(values) == 1 {
			trigger = map[string]any{cond: values[0]}
		} else {
			trigger = map[string]any{cond: values}
		}
	case types.ValuesXOR:
		trigger = map[string]any{cond: map[string]any{"xor": configuredValues(opts)}}
	case types.ValuesNOT:
		state = state.Negate()
		trigger = anyOf(opts.Condition, configuredValues(opts))
	case types.ValuesOR:
		trigger = anyOf(opts.Condition, configuredValues(opts))
	default:
		return nil
	}
	return Fragment{state: {{Selector: opts.Selector, Trigger: trigger}}}
}

// EmailHandler covers email widgets, whose values are keyed per delta.
type EmailHandler struct{}

// CanHandle matches the email widget.
func (EmailHandler) CanHandle(widget string, _ int) bool { return widget == "email_default" }

// ComputeState flattens per-delta rows; AND is left to the default handler.
func (EmailHandler) ComputeState(_ form.Node, opts types.Options) Fragment {
	cond := string(opts.Condition)
	switch opts.ValuesSet {
	case types.ValuesWidget:
		var frag Fragment
		for _, e := range entries(opts.ValueForm) {
			row, ok := e.Value.(map[string]any)
			if !ok || isEmpty(row["value"]) {
				continue
			}
			frag = Fragment{opts.State: {{Selector: opts.Selector, Trigger: map[string]any{cond: row["value"]}}}}
		}
		return frag
	case types.ValuesRegex:
		return Fragment{opts.State: {{Selector: opts.Selector, Trigger: map[string]any{cond: map[string]any{"regex": opts.Regex}}}}}
	case types.ValuesXOR:
		return Fragment{opts.State: {{Selector: opts.Selector, Trigger: map[string]any{cond: map[string]any{"xor": configuredValues(opts)}}}}}
	case types.ValuesNOT:
		return Fragment{opts.State.Negate(): {{Selector: opts.Selector, Trigger: emailAlternatives(opts)}}}
	case types.ValuesOR:
		return Fragment{opts.State: {{Selector: opts.Selector, Trigger: emailAlternatives(opts)}}}
	}
	return nil
}

func emailAlternatives(opts types.Options) any {
	values := configuredValues(opts)
	if len(values) == 0 {
		return map[string]any{string(opts.Condition): values}
	}
	return anyOf(types.ConditionValue, values)
}

// BooleanCheckboxHandler covers the single on/off checkbox widget.
// The client compares a checkbox by its checked state, not its value.
type BooleanCheckboxHandler struct{}

// CanHandle matches the boolean checkbox widget.
func (BooleanCheckboxHandler) CanHandle(widget string, _ int) bool {
	return widget == "boolean_checkbox"
}

// ComputeState maps the stored 0/1 reference to a checked constraint.
func (BooleanCheckboxHandler) ComputeState(_ form.Node, opts types.Options) Fragment {
	if opts.ValuesSet != types.ValuesWidget {
		return nil
	}
	checked := !isEmpty(normalizeNone(widgetValue(opts.ValueForm)))
	return Fragment{opts.State: {{Selector: opts.Selector, Trigger: map[string]any{"checked": checked}}}}
}

// MultipleSelectHandler covers select lists accepting several values.
type MultipleSelectHandler struct{}

// CanHandle matches multi-value select widgets.
func (MultipleSelectHandler) CanHandle(widget string, cardinality int) bool {
	return widget == "options_select" && cardinality != types.CardinalitySingle
}

// ComputeState always compares against the full list of selected keys.
func (MultipleSelectHandler) ComputeState(_ form.Node, opts types.Options) Fragment {
	if opts.ValuesSet != types.ValuesWidget {
		return nil
	}
	var selected []any
	for _, e := range entries(opts.ValueForm) {
		if row, ok := e.Value.(map[string]any); ok {
			if v, ok := row["target_id"]; ok {
				selected = append(selected, types.StringValue(v))
				continue
			}
			if v, ok := row["value"]; ok {
				selected = append(selected, types.StringValue(v))
			}
			continue
		}
		selected = append(selected, types.StringValue(e.Value))
	}
	if selected == nil {
		selected = []any{}
	}
	return Fragment{opts.State: {{Selector: opts.Selector, Trigger: map[string]any{string(opts.Condition): selected}}}}
}

// OptionsButtonsHandler covers checkbox lists, where every option is its own
// input named after the option key.
type OptionsButtonsHandler struct{}

// CanHandle matches multi-value checkbox lists.
func (OptionsButtonsHandler) CanHandle(widget string, cardinality int) bool {
	return widget == "options_buttons" && cardinality != types.CardinalitySingle
}

// ComputeState requires every stored option's checkbox to be checked.
func (OptionsButtonsHandler) ComputeState(dependee form.Node, opts types.Options) Fragment {
	if opts.ValuesSet != types.ValuesWidget || dependee.Name == "" {
		return nil
	}
	var constraints []Constraint
	for _, e := range entries(opts.ValueForm) {
		v := e.Value
		if row, ok := v.(map[string]any); ok {
			v = row["value"]
		}
		if isEmpty(v) {
			continue
		}
		constraints = append(constraints, Constraint{
			Selector: fmt.Sprintf(`[name="%s[%s]"]`, dependee.Name, types.StringValue(v)),
			Trigger:  map[string]any{"checked": true},
		})
	}
	if len(constraints) == 0 {
		return nil
	}
	return Fragment{opts.State: constraints}
}
