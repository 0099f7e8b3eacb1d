// internal/rules/bundlefile.go
package rules

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/solatis/condfields/internal/types"
	"gopkg.in/yaml.v3"
)

/*
 * Bundle files.
 *
 * A bundle file describes one bundle display and its rules in YAML:
 *
 *   entity_type: node
 *   bundle: article
 *   fields:
 *     - name: summary
 *       widget: string_textfield
 *     - name: body
 *       required: true
 *       rules:
 *         - dependee: summary
 *           options:
 *             state: visible
 *             condition: "!empty"
 *
 * The YAML document is decoded generically and re-read through the JSON
 * tags of the types package, so a bundle file accepts exactly what the API
 * accepts (values_set by number or name, values as a list or a
 * newline-separated string). Rules without an id get a fresh one.
 */

// ParseBundleFile decodes a YAML bundle document.
func ParseBundleFile(data []byte) (*types.BundleDisplay, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse bundle file: %w", err)
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to convert bundle file: %w", err)
	}
	var display types.BundleDisplay
	if err := json.Unmarshal(raw, &display); err != nil {
		return nil, fmt.Errorf("failed to decode bundle file: %w", err)
	}
	if display.EntityType == "" || display.Bundle == "" {
		return nil, fmt.Errorf("%w: entity_type and bundle are required", types.ErrInvalidRule)
	}

	seen := make(map[string]bool, len(display.Fields))
	for i := range display.Fields {
		f := &display.Fields[i]
		if f.Name == "" {
			return nil, fmt.Errorf("%w: field %d has no name", types.ErrInvalidRule, i)
		}
		if seen[f.Name] {
			return nil, fmt.Errorf("%w: duplicate field %s", types.ErrInvalidRule, f.Name)
		}
		seen[f.Name] = true
	}
	for i := range display.Fields {
		f := &display.Fields[i]
		for j := range f.Rules {
			r := &f.Rules[j]
			if r.ID == "" {
				r.ID = types.NewRuleID()
			}
			r.EntityType, r.Bundle, r.Dependent = display.EntityType, display.Bundle, f.Name
			dep, err := CompileRule(*r)
			if err != nil {
				return nil, err
			}
			if !seen[r.Dependee] {
				return nil, fmt.Errorf("%w: dependee %s of %s", types.ErrFieldNotFound, r.Dependee, f.Name)
			}
			r.Options = dep.Options
		}
	}
	return &display, nil
}

// LoadBundleFile reads and decodes a bundle file from disk.
func LoadBundleFile(path string) (*types.BundleDisplay, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read bundle file: %w", err)
	}
	return ParseBundleFile(data)
}

// ImportBundle writes a decoded bundle through repo: fields first, then
// rules in file order.
func ImportBundle(ctx context.Context, repo RuleRepository, display *types.BundleDisplay) (int, error) {
	if repo == nil || display == nil {
		return 0, fmt.Errorf("repository and display cannot be nil")
	}
	for _, f := range display.Fields {
		if err := repo.SaveField(ctx, display.EntityType, display.Bundle, f); err != nil {
			return 0, fmt.Errorf("failed to save field %s: %w", f.Name, err)
		}
	}
	n := 0
	for _, f := range display.Fields {
		for _, r := range f.Rules {
			if err := repo.AddRule(ctx, r); err != nil {
				return n, fmt.Errorf("failed to add rule %s: %w", r.ID, err)
			}
			n++
		}
	}
	return n, nil
}
