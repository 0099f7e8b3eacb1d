// internal/rules/memstore.go
package rules

import (
	"context"
	"fmt"
	"sync"

	"github.com/solatis/condfields/internal/types"
)

// MemoryStore is an in-memory Store. Rules keep insertion order.
// Safe for concurrent use.
type MemoryStore struct {
	mu       sync.RWMutex
	displays map[string]*types.BundleDisplay
	rules    []types.DependencyRule
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{displays: make(map[string]*types.BundleDisplay)}
}

// LoadDisplay returns the bundle's fields with their rules attached.
func (s *MemoryStore) LoadDisplay(_ context.Context, entityType, bundle string) (*types.BundleDisplay, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	key := types.BundleKey(entityType, bundle)
	d, ok := s.displays[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", types.ErrDisplayNotFound, key)
	}

	out := &types.BundleDisplay{EntityType: entityType, Bundle: bundle, Fields: make([]types.FieldConfig, len(d.Fields))}
	index := make(map[string]int, len(d.Fields))
	for i, f := range d.Fields {
		f.Rules = nil
		out.Fields[i] = f
		index[f.Name] = i
	}
	for _, r := range s.rules {
		if r.EntityType != entityType || r.Bundle != bundle {
			continue
		}
		if i, ok := index[r.Dependent]; ok {
			out.Fields[i].Rules = append(out.Fields[i].Rules, r)
		}
	}
	return out, nil
}

// SaveField creates or replaces a field configuration. Position is kept on
// replace. Rules on field are ignored; use AddRule.
func (s *MemoryStore) SaveField(_ context.Context, entityType, bundle string, field types.FieldConfig) error {
	if field.Name == "" {
		return fmt.Errorf("%w: field name is required", types.ErrInvalidRule)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := types.BundleKey(entityType, bundle)
	d, ok := s.displays[key]
	if !ok {
		d = &types.BundleDisplay{EntityType: entityType, Bundle: bundle}
		s.displays[key] = d
	}
	field.Rules = nil
	if existing, ok := d.Field(field.Name); ok {
		*existing = field
		return nil
	}
	d.Fields = append(d.Fields, field)
	return nil
}

// AddRule appends a rule. Its dependent must be a saved field.
func (s *MemoryStore) AddRule(_ context.Context, rule types.DependencyRule) error {
	if err := rule.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.displays[types.BundleKey(rule.EntityType, rule.Bundle)]
	if !ok {
		return fmt.Errorf("%w: %s", types.ErrDisplayNotFound, types.BundleKey(rule.EntityType, rule.Bundle))
	}
	if _, ok := d.Field(rule.Dependent); !ok {
		return fmt.Errorf("%w: %s", types.ErrFieldNotFound, rule.Dependent)
	}
	for _, r := range s.rules {
		if r.ID == rule.ID {
			return fmt.Errorf("%w: duplicate id %s", types.ErrInvalidRule, rule.ID)
		}
	}
	s.rules = append(s.rules, rule)
	return nil
}

// ListRules returns a bundle's rules in insertion order.
func (s *MemoryStore) ListRules(_ context.Context, entityType, bundle string) ([]types.DependencyRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []types.DependencyRule
	for _, r := range s.rules {
		if r.EntityType == entityType && r.Bundle == bundle {
			out = append(out, r)
		}
	}
	return out, nil
}

// GetRule returns a rule by id.
func (s *MemoryStore) GetRule(_ context.Context, id types.RuleID) (types.DependencyRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.rules {
		if r.ID == id {
			return r, nil
		}
	}
	return types.DependencyRule{}, fmt.Errorf("%w: %s", types.ErrRuleNotFound, id)
}

// DeleteRule removes a rule by id.
func (s *MemoryStore) DeleteRule(_ context.Context, id types.RuleID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, r := range s.rules {
		if r.ID == id {
			s.rules = append(s.rules[:i], s.rules[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", types.ErrRuleNotFound, id)
}
