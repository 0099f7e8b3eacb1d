// internal/rules/operators.go
package rules

import (
	"regexp"

	"github.com/solatis/condfields/internal/types"
)

/*
 * Set-membership operators.
 *
 * Applies a values_set other than WIDGET to the flattened reference list of
 * the dependee. All comparisons are on string forms, so 1 and "1" match.
 *
 * Operators:
 *   - REGEX: every reference value matches the pattern (vacuously true)
 *   - AND: every configured value is present
 *   - OR: at least one configured value is present
 *   - XOR: exactly one configured entry is present
 *   - NOT: no configured value is present
 *
 * Configured lists are not de-duplicated: XOR over ["a", "a"] with "a"
 * present counts two hits and fails. Empty configured lists follow the same
 * arithmetic (AND and NOT true, OR and XOR false).
 *
 * A pattern that does not compile never matches.
 */

// flattenReference turns dependee values into the reference list: one entry
// per row, taking the row's first sub-value.
func flattenReference(values any) []string {
	var out []string
	for _, e := range entries(values) {
		v := e.Value
		if isIndexed(v) {
			if row, ok := v.(map[string]any); ok {
				if x, ok := row["value"]; ok {
					out = append(out, types.StringValue(x))
					continue
				}
			}
			first, ok := firstEntry(v)
			if !ok {
				out = append(out, "")
				continue
			}
			v = first.Value
		}
		out = append(out, types.StringValue(v))
	}
	return out
}

// CompareSet applies a set operator to configured values and reference values.
func CompareSet(set types.ValuesSet, configured []string, pattern string, reference []string) bool {
	switch set {
	case types.ValuesRegex:
		return matchAll(pattern, reference)
	case types.ValuesAND:
		return len(difference(configured, reference)) == 0
	case types.ValuesOR:
		return len(intersection(configured, reference)) > 0
	case types.ValuesXOR:
		return len(intersection(configured, reference)) == 1
	case types.ValuesNOT:
		return len(intersection(configured, reference)) == 0
	default:
		return true
	}
}

// matchAll reports whether every reference value matches pattern.
func matchAll(pattern string, reference []string) bool {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return false
	}
	for _, r := range reference {
		if !re.MatchString(r) {
			return false
		}
	}
	return true
}

// intersection keeps the configured entries present in reference.
func intersection(configured, reference []string) []string {
	present := toSet(reference)
	var out []string
	for _, c := range configured {
		if present[c] {
			out = append(out, c)
		}
	}
	return out
}

// difference keeps the configured entries missing from reference.
func difference(configured, reference []string) []string {
	present := toSet(reference)
	var out []string
	for _, c := range configured {
		if !present[c] {
			out = append(out, c)
		}
	}
	return out
}

func toSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}
