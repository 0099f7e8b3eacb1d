// internal/rules/compile.go
package rules

import (
	"fmt"
	"regexp"

	"github.com/solatis/condfields/internal/types"
)

/*
 * Rule compilation.
 *
 * Turns a stored DependencyRule into the Dependency registered in a
 * DependencyMap: options defaulted, enums validated, regex patterns checked.
 *
 * Compilation workflow:
 *   1. Fill unset option enums from DefaultOptions
 *   2. Validate enums and identifiers
 *   3. For values_set REGEX, compile the pattern
 *
 * Admin writes reject rules that fail to compile. The resolver skips them
 * with a warning and resolves the rest of the bundle.
 */

// CompileOptions defaults and validates an option bag.
func CompileOptions(opts types.Options) (types.Options, error) {
	opts = opts.WithDefaults()
	if err := opts.Validate(); err != nil {
		return types.Options{}, err
	}
	if opts.ValuesSet == types.ValuesRegex {
		if _, err := regexp.Compile(opts.Regex); err != nil {
			return types.Options{}, fmt.Errorf("%w: regex %q: %v", types.ErrInvalidOption, opts.Regex, err)
		}
	}
	return opts, nil
}

// CompileRule converts a stored rule into a Dependency.
func CompileRule(rule types.DependencyRule) (Dependency, error) {
	rule.Options = rule.Options.WithDefaults()
	if err := rule.Validate(); err != nil {
		return Dependency{}, fmt.Errorf("rule %s: %w", rule.ID, err)
	}
	opts, err := CompileOptions(rule.Options)
	if err != nil {
		return Dependency{}, fmt.Errorf("rule %s: %w", rule.ID, err)
	}
	return Dependency{
		ID:        rule.ID,
		Dependent: rule.Dependent,
		Dependee:  rule.Dependee,
		Options:   opts,
	}, nil
}
