// internal/rules/admin.go
package rules

import (
	"context"
	"fmt"

	"github.com/solatis/condfields/internal/types"
)

/*
 * Rule administration.
 *
 * Validates and persists new dependencies. One request may declare several
 * dependents of the same dependee; each becomes its own rule with a fresh
 * UUIDv7 id.
 *
 * Validation:
 *   - dependee and dependents must be fields of the bundle display
 *   - the dependee cannot be one of its dependents
 *   - a required field cannot take state !visible, disabled or !required
 */

// RuleRepository persists field configuration and dependency rules.
type RuleRepository interface {
	SaveField(ctx context.Context, entityType, bundle string, field types.FieldConfig) error
	AddRule(ctx context.Context, rule types.DependencyRule) error
	ListRules(ctx context.Context, entityType, bundle string) ([]types.DependencyRule, error)
	GetRule(ctx context.Context, id types.RuleID) (types.DependencyRule, error)
	DeleteRule(ctx context.Context, id types.RuleID) error
}

// Store is a rule repository that also serves bundle displays.
type Store interface {
	DisplaySource
	RuleRepository
}

// NewDependencyRequest declares dependents of one dependee.
type NewDependencyRequest struct {
	EntityType string        `json:"entity_type"`
	Bundle     string        `json:"bundle"`
	Dependee   string        `json:"dependee"`
	Dependents []string      `json:"dependents"`
	Options    types.Options `json:"options"`
}

// hiddenRequiredStates cannot be applied to required fields.
var hiddenRequiredStates = map[types.State]bool{
	types.StateInvisible: true,
	types.StateDisabled:  true,
	types.StateOptional:  true,
}

// ValidateNewDependency checks req against the bundle display.
func ValidateNewDependency(display *types.BundleDisplay, req NewDependencyRequest) error {
	if display == nil {
		return fmt.Errorf("%w: %s", types.ErrDisplayNotFound, types.BundleKey(req.EntityType, req.Bundle))
	}
	if len(req.Dependents) == 0 {
		return fmt.Errorf("%w: at least one dependent is required", types.ErrInvalidRule)
	}
	if _, ok := display.Field(req.Dependee); !ok {
		return fmt.Errorf("%w: dependee %s", types.ErrFieldNotFound, req.Dependee)
	}
	state := req.Options.WithDefaults().State
	for _, name := range req.Dependents {
		if name == req.Dependee {
			return fmt.Errorf("%w: %s", types.ErrSameField, name)
		}
		field, ok := display.Field(name)
		if !ok {
			return fmt.Errorf("%w: dependent %s", types.ErrFieldNotFound, name)
		}
		if field.Required && hiddenRequiredStates[state] {
			return fmt.Errorf("%w: %s cannot take state %s", types.ErrRequiredFieldHidden, name, state)
		}
	}
	return nil
}

// NewDependencies builds one rule per dependent with defaulted options.
func NewDependencies(req NewDependencyRequest) ([]types.DependencyRule, error) {
	opts, err := CompileOptions(req.Options)
	if err != nil {
		return nil, err
	}
	out := make([]types.DependencyRule, 0, len(req.Dependents))
	for _, name := range req.Dependents {
		rule := types.DependencyRule{
			ID:         types.NewRuleID(),
			EntityType: req.EntityType,
			Bundle:     req.Bundle,
			Dependent:  name,
			Dependee:   req.Dependee,
			Options:    opts,
		}
		if err := rule.Validate(); err != nil {
			return nil, err
		}
		out = append(out, rule)
	}
	return out, nil
}

// Admin manages dependencies in a Store.
type Admin struct {
	store Store
}

// NewAdmin creates an admin over store.
func NewAdmin(store Store) (*Admin, error) {
	if store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	return &Admin{store: store}, nil
}

// AddDependency validates and stores req, returning the new rule ids.
func (a *Admin) AddDependency(ctx context.Context, req NewDependencyRequest) ([]types.RuleID, error) {
	display, err := a.store.LoadDisplay(ctx, req.EntityType, req.Bundle)
	if err != nil {
		return nil, err
	}
	if err := ValidateNewDependency(display, req); err != nil {
		return nil, err
	}
	rules, err := NewDependencies(req)
	if err != nil {
		return nil, err
	}

	ids := make([]types.RuleID, 0, len(rules))
	for _, rule := range rules {
		if err := a.store.AddRule(ctx, rule); err != nil {
			return ids, fmt.Errorf("failed to store rule for %s: %w", rule.Dependent, err)
		}
		ids = append(ids, rule.ID)
	}
	return ids, nil
}

// ListDependencies returns the stored rules of a bundle.
func (a *Admin) ListDependencies(ctx context.Context, entityType, bundle string) ([]types.DependencyRule, error) {
	return a.store.ListRules(ctx, entityType, bundle)
}

// DeleteDependency removes a stored rule.
func (a *Admin) DeleteDependency(ctx context.Context, id types.RuleID) error {
	parsed, err := types.ParseRuleID(string(id))
	if err != nil {
		return err
	}
	return a.store.DeleteRule(ctx, parsed)
}
