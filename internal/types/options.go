package types

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// State is the UI property a dependency controls on its dependent.
type State string

const (
	StateVisible   State = "visible"
	StateInvisible State = "!visible"
	StateRequired  State = "required"
	StateOptional  State = "!required"
	StateDisabled  State = "disabled"
	StateEnabled   State = "!disabled"
	StateChecked   State = "checked"
	StateUnchecked State = "!checked"
	StateEmpty     State = "empty"
	StateFilled    State = "!empty"
	StateCollapsed State = "collapsed"
	StateExpanded  State = "!collapsed"
)

var knownStates = map[State]bool{
	StateVisible: true, StateInvisible: true,
	StateRequired: true, StateOptional: true,
	StateDisabled: true, StateEnabled: true,
	StateChecked: true, StateUnchecked: true,
	StateEmpty: true, StateFilled: true,
	StateCollapsed: true, StateExpanded: true,
}

// Valid reports whether s is a known state.
func (s State) Valid() bool { return knownStates[s] }

// Negate toggles the "!" prefix.
func (s State) Negate() State {
	if strings.HasPrefix(string(s), "!") {
		return State(strings.TrimPrefix(string(s), "!"))
	}
	return State("!" + string(s))
}

// Condition is the trigger evaluated against the dependee.
type Condition string

const (
	ConditionValue     Condition = "value"
	ConditionEmpty     Condition = "empty"
	ConditionFilled    Condition = "!empty"
	ConditionChecked   Condition = "checked"
	ConditionUnchecked Condition = "!checked"
	ConditionTouched   Condition = "touched"
	ConditionUntouched Condition = "!touched"
	ConditionFocused   Condition = "focused"
	ConditionUnfocused Condition = "!focused"
)

var knownConditions = map[Condition]bool{
	ConditionValue: true, ConditionEmpty: true, ConditionFilled: true,
	ConditionChecked: true, ConditionUnchecked: true,
	ConditionTouched: true, ConditionUntouched: true,
	ConditionFocused: true, ConditionUnfocused: true,
}

// Valid reports whether c is a known condition.
func (c Condition) Valid() bool { return knownConditions[c] }

// Evaluable reports whether the server can evaluate c from submitted values.
// Touched and focused only exist in the client.
func (c Condition) Evaluable() bool {
	switch c {
	case ConditionValue, ConditionEmpty, ConditionFilled, ConditionChecked, ConditionUnchecked:
		return true
	}
	return false
}

// Grouping combines the results of a dependent's dependencies.
type Grouping string

const (
	GroupAND Grouping = "AND"
	GroupOR  Grouping = "OR"
	GroupXOR Grouping = "XOR"
)

// Valid reports whether g is a known grouping.
func (g Grouping) Valid() bool {
	return g == GroupAND || g == GroupOR || g == GroupXOR
}

// ValuesSet selects how a value condition compares against the dependee.
type ValuesSet int

const (
	ValuesWidget ValuesSet = iota + 1
	ValuesRegex
	ValuesAND
	ValuesOR
	ValuesXOR
	ValuesNOT
)

func (v ValuesSet) String() string {
	switch v {
	case ValuesWidget:
		return "WIDGET"
	case ValuesRegex:
		return "REGEX"
	case ValuesAND:
		return "AND"
	case ValuesOR:
		return "OR"
	case ValuesXOR:
		return "XOR"
	case ValuesNOT:
		return "NOT"
	default:
		return "UNKNOWN"
	}
}

// ParseValuesSet accepts the numeric form or the name.
func ParseValuesSet(s string) (ValuesSet, error) {
	if n, err := strconv.Atoi(s); err == nil {
		return ValuesSet(n), nil
	}
	for v := ValuesWidget; v <= ValuesNOT; v++ {
		if strings.EqualFold(v.String(), s) {
			return v, nil
		}
	}
	return 0, fmt.Errorf("%w: values_set %q", ErrInvalidOption, s)
}

// UnmarshalJSON accepts a number or a name.
func (v *ValuesSet) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		*v = ValuesSet(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: values_set must be a number or a name", ErrInvalidOption)
	}
	parsed, err := ParseValuesSet(s)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// Effect is the client transition played when a state changes.
type Effect string

const (
	EffectShow  Effect = "show"
	EffectFade  Effect = "fade"
	EffectSlide Effect = "slide"
	EffectFill  Effect = "fill"
)

// Inheritance controls propagation into nested composite fields.
type Inheritance struct {
	Propagate     bool `json:"propagate,omitempty"`
	ApplyToParent bool `json:"apply_to_parent,omitempty"`
	Recurse       bool `json:"recurse,omitempty"`
}

// ValueList is the configured value list of a set-membership rule.
// Decodes from a JSON array or a CRLF separated string.
type ValueList []string

// UnmarshalJSON implements json.Unmarshaler.
func (l *ValueList) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*l = SplitValues(s)
		return nil
	}
	var raw []any
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: values must be a string or a list", ErrInvalidOption)
	}
	out := make(ValueList, 0, len(raw))
	for _, v := range raw {
		out = append(out, StringValue(v))
	}
	*l = out
	return nil
}

// SplitValues splits a textarea value list on CRLF.
// An empty string yields an empty list.
func SplitValues(s string) ValueList {
	if s == "" {
		return ValueList{}
	}
	return ValueList(strings.Split(s, "\r\n"))
}

// StringValue renders a scalar the way set comparisons see it.
func StringValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		if t {
			return "1"
		}
		return ""
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	default:
		return fmt.Sprintf("%v", t)
	}
}

// Options is the option bag of a dependency rule.
type Options struct {
	State         State          `json:"state"`
	Condition     Condition      `json:"condition"`
	Grouping      Grouping       `json:"grouping"`
	ValuesSet     ValuesSet      `json:"values_set"`
	Value         any            `json:"value,omitempty"`
	ValueForm     any            `json:"value_form,omitempty"`
	Values        ValueList      `json:"values,omitempty"`
	Regex         string         `json:"regex,omitempty"`
	Effect        Effect         `json:"effect,omitempty"`
	EffectOptions map[string]any `json:"effect_options,omitempty"`
	Selector      string         `json:"selector,omitempty"`
	Reset         bool           `json:"reset,omitempty"`
	Inheritance   Inheritance    `json:"inheritance,omitempty"`

	// FieldCardinality is filled from the dependee's configuration while
	// building states; never persisted.
	FieldCardinality int `json:"-"`
}

// DefaultOptions returns the settings of a freshly created dependency.
func DefaultOptions() Options {
	return Options{
		State:         StateVisible,
		Condition:     ConditionValue,
		Grouping:      GroupAND,
		ValuesSet:     ValuesWidget,
		Effect:        EffectShow,
		EffectOptions: map[string]any{},
	}
}

// WithDefaults fills unset enums from DefaultOptions.
func (o Options) WithDefaults() Options {
	d := DefaultOptions()
	if o.State == "" {
		o.State = d.State
	}
	if o.Condition == "" {
		o.Condition = d.Condition
	}
	if o.Grouping == "" {
		o.Grouping = d.Grouping
	}
	if o.ValuesSet == 0 {
		o.ValuesSet = d.ValuesSet
	}
	if o.Effect == "" {
		o.Effect = d.Effect
	}
	if o.EffectOptions == nil {
		o.EffectOptions = d.EffectOptions
	}
	return o
}

// Validate checks every enum against its known set.
func (o Options) Validate() error {
	if !o.State.Valid() {
		return fmt.Errorf("%w: state %q", ErrInvalidOption, o.State)
	}
	if !o.Condition.Valid() {
		return fmt.Errorf("%w: condition %q", ErrInvalidOption, o.Condition)
	}
	if !o.Grouping.Valid() {
		return fmt.Errorf("%w: grouping %q", ErrInvalidOption, o.Grouping)
	}
	if o.ValuesSet < ValuesWidget || o.ValuesSet > ValuesNOT {
		return fmt.Errorf("%w: values_set %d", ErrInvalidOption, o.ValuesSet)
	}
	switch o.Effect {
	case "", EffectShow, EffectFade, EffectSlide, EffectFill:
	default:
		return fmt.Errorf("%w: effect %q", ErrInvalidOption, o.Effect)
	}
	return nil
}
