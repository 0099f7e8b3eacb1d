// Package types provides domain models shared across condfields components.
//
// Zero-dependency design: types.go, options.go and errors.go use only the
// standard library. ID utilities in ids.go import uuid.
//
// Wire messages are protobuf Structs built in internal/core/api; the types
// here carry json tags so the same shape serves storage, the API and the CLI.
package types

import "fmt"

// RuleID identifies a dependency rule within a bundle.
// Stored rules carry UUIDv7 ids; inherited rules append "+<field>".
type RuleID string

// Cardinality values that carry meaning beyond a plain count.
const (
	// CardinalityUnlimited marks a field accepting any number of values.
	CardinalityUnlimited = -1

	// CardinalitySingle marks a single-valued field.
	CardinalitySingle = 1
)

// DependencyRule declares that Dependent depends on Dependee with Options.
// Immutable once fetched for a resolution pass.
type DependencyRule struct {
	ID         RuleID  `json:"id"`
	EntityType string  `json:"entity_type"`
	Bundle     string  `json:"bundle"`
	Dependent  string  `json:"dependent"`
	Dependee   string  `json:"dependee"`
	Options    Options `json:"options"`
}

// Validate checks identifiers and option enums.
func (r DependencyRule) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidRule)
	}
	if r.EntityType == "" || r.Bundle == "" {
		return fmt.Errorf("%w: entity type and bundle are required", ErrInvalidRule)
	}
	if r.Dependent == "" || r.Dependee == "" {
		return fmt.Errorf("%w: dependent and dependee are required", ErrInvalidRule)
	}
	if r.Dependent == r.Dependee {
		return ErrSameField
	}
	return r.Options.Validate()
}

// FieldConfig is one component of a bundle's form display.
// Parent names the composite field this field is nested in, if any.
type FieldConfig struct {
	Name        string           `json:"name"`
	Label       string           `json:"label,omitempty"`
	Widget      string           `json:"widget,omitempty"`
	Cardinality int              `json:"cardinality,omitempty"`
	Required    bool             `json:"required,omitempty"`
	Parent      string           `json:"parent,omitempty"`
	Rules       []DependencyRule `json:"rules,omitempty"`
}

// BundleDisplay is the ordered form configuration of an (entity type, bundle).
type BundleDisplay struct {
	EntityType string        `json:"entity_type"`
	Bundle     string        `json:"bundle"`
	Fields     []FieldConfig `json:"fields"`
}

// Field returns the named field configuration.
func (d *BundleDisplay) Field(name string) (*FieldConfig, bool) {
	for i := range d.Fields {
		if d.Fields[i].Name == name {
			return &d.Fields[i], true
		}
	}
	return nil, false
}

// BundleKey identifies a bundle in caches and log fields.
func BundleKey(entityType, bundle string) string {
	return entityType + "." + bundle
}
