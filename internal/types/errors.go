package types

import "errors"

// Sentinel errors for condfields operations.
var (
	// ErrDisplayNotFound indicates the bundle has no form display configuration.
	ErrDisplayNotFound = errors.New("bundle display not found")

	// ErrRuleNotFound indicates no dependency rule exists with the given id.
	ErrRuleNotFound = errors.New("dependency rule not found")

	// ErrFieldNotFound indicates a field is not part of the bundle display.
	ErrFieldNotFound = errors.New("field not found")

	// ErrInvalidRule indicates a dependency rule failed structural validation.
	ErrInvalidRule = errors.New("invalid dependency rule")

	// ErrInvalidOption indicates an unknown state, condition, grouping or values set.
	ErrInvalidOption = errors.New("invalid dependency option")

	// ErrSameField indicates a field was configured to depend on itself.
	ErrSameField = errors.New("a field cannot depend on itself")

	// ErrRequiredFieldHidden indicates a required field was given a state
	// that would hide, disable or unrequire it.
	ErrRequiredFieldHidden = errors.New("required field cannot be hidden, disabled or made optional")

	// ErrDependencyCycle indicates the dependent/dependee graph contains a cycle.
	ErrDependencyCycle = errors.New("dependency cycle detected")

	// ErrUnknownFormElement indicates a form element kind is not recognized.
	ErrUnknownFormElement = errors.New("unknown form element kind")

	// ErrDuplicateElement indicates two form elements share an id.
	ErrDuplicateElement = errors.New("duplicate form element id")

	// ErrPathNotFound indicates a submitted-values path could not be resolved.
	ErrPathNotFound = errors.New("value path not found")

	// ErrStorage indicates the rule store could not be reached or queried.
	ErrStorage = errors.New("rule storage error")
)
