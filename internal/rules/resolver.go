// internal/rules/resolver.go
package rules

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/solatis/condfields/internal/core/metrics"
	"github.com/solatis/condfields/internal/types"
)

/*
 * Dependency resolution.
 *
 * Expands the stored rules of a bundle into a DependencyMap.
 *
 * Resolution workflow, per field in display order, per rule in stored order:
 *   1. Rules are compiled (compile.go); invalid rules are skipped
 *   2. Non-propagating rules register at face value
 *   3. Propagating rules register on the field itself only with
 *      apply_to_parent, then expand onto every inheriting child under the
 *      derived id "<rule id>+<child>"
 *   4. The expanded copy keeps its inheritance settings only when recurse is
 *      set and the child has children of its own, so expansion continues
 *      one level down
 *
 * Results are memoized per (entity type, bundle) on the Session. A Session
 * is request-scoped; nothing is shared across sessions.
 *
 * Cycles in the dependent/dependee graph are detected after resolution.
 * By default they are logged and reported through DependencyMap.Cycles and
 * rules keep their stored order. WithRejectCycles turns them into errors.
 */

// DisplaySource loads the form display of a bundle.
// Returns an error wrapping types.ErrDisplayNotFound when there is none.
type DisplaySource interface {
	LoadDisplay(ctx context.Context, entityType, bundle string) (*types.BundleDisplay, error)
}

// InheritanceProvider lists the children of a composite field that inherit
// its propagating rules.
type InheritanceProvider interface {
	InheritingChildren(display *types.BundleDisplay, field string) []string
}

// ParentInheritance derives children from FieldConfig.Parent.
type ParentInheritance struct{}

// InheritingChildren returns fields whose Parent is field, in display order.
func (ParentInheritance) InheritingChildren(display *types.BundleDisplay, field string) []string {
	var out []string
	for _, f := range display.Fields {
		if f.Parent == field {
			out = append(out, f.Name)
		}
	}
	return out
}

// Resolver builds dependency maps from a DisplaySource.
type Resolver struct {
	source       DisplaySource
	inheritance  InheritanceProvider
	rejectCycles bool
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithInheritanceProvider replaces the default ParentInheritance.
func WithInheritanceProvider(p InheritanceProvider) ResolverOption {
	return func(r *Resolver) { r.inheritance = p }
}

// WithRejectCycles makes cyclic rule sets fail resolution.
func WithRejectCycles(reject bool) ResolverOption {
	return func(r *Resolver) { r.rejectCycles = reject }
}

// NewResolver creates a resolver reading from source.
func NewResolver(source DisplaySource, opts ...ResolverOption) (*Resolver, error) {
	if source == nil {
		return nil, fmt.Errorf("source cannot be nil")
	}
	r := &Resolver{source: source, inheritance: ParentInheritance{}}
	for _, opt := range opts {
		opt(r)
	}
	if r.inheritance == nil {
		return nil, fmt.Errorf("inheritance provider cannot be nil")
	}
	return r, nil
}

// Session is the request-scoped resolution context: the per-bundle memo
// and the counter for dependencies declared in code.
type Session struct {
	resolver *Resolver
	memo     map[string]*DependencyMap
	customID int
}

// NewSession starts a resolution context.
func (r *Resolver) NewSession() *Session {
	return &Session{resolver: r, memo: make(map[string]*DependencyMap)}
}

// NextCustomID returns the next progressive id for a code-level dependency.
func (s *Session) NextCustomID() types.RuleID {
	s.customID++
	return types.CustomRuleID(s.customID)
}

// Dependencies returns the memoized dependency map of a bundle.
// A bundle without display configuration resolves to an empty map.
func (s *Session) Dependencies(ctx context.Context, entityType, bundle string) (*DependencyMap, error) {
	key := types.BundleKey(entityType, bundle)
	if m, ok := s.memo[key]; ok {
		metrics.DependencyResolutions.WithLabelValues("hit").Inc()
		return m, nil
	}
	metrics.DependencyResolutions.WithLabelValues("miss").Inc()

	display, err := s.resolver.source.LoadDisplay(ctx, entityType, bundle)
	if err != nil {
		if !errors.Is(err, types.ErrDisplayNotFound) {
			return nil, fmt.Errorf("failed to load display %s: %w", key, err)
		}
		display = &types.BundleDisplay{EntityType: entityType, Bundle: bundle}
	}

	m := s.resolver.resolve(display)
	if cycles := m.Cycles(); len(cycles) > 0 {
		if s.resolver.rejectCycles {
			return nil, fmt.Errorf("%w in %s: %v", types.ErrDependencyCycle, key, cycles)
		}
		logrus.WithFields(logrus.Fields{
			"bundle": key,
			"cycles": cycles,
		}).Warn("dependency cycle detected, keeping stored rule order")
	}

	s.memo[key] = m
	return m, nil
}

// resolve expands every field's rules into a fresh map.
func (r *Resolver) resolve(display *types.BundleDisplay) *DependencyMap {
	m := NewDependencyMap(display.EntityType, display.Bundle)
	for _, field := range display.Fields {
		for _, rule := range field.Rules {
			rule.EntityType, rule.Bundle, rule.Dependent = display.EntityType, display.Bundle, field.Name
			dep, err := CompileRule(rule)
			if err != nil {
				metrics.RulesSkipped.WithLabelValues("invalid_rule").Inc()
				logrus.WithFields(logrus.Fields{
					"bundle": types.BundleKey(display.EntityType, display.Bundle),
					"field":  field.Name,
					"rule":   rule.ID,
				}).WithError(err).Warn("skipping invalid rule")
				continue
			}
			r.expand(m, display, dep, map[string]bool{field.Name: true})
		}
	}
	m.detectCycles()
	return m
}

// expand registers dep, propagating it into inheriting children.
// chain holds the fields on the current expansion path and stops loops in
// a misconfigured parent hierarchy.
func (r *Resolver) expand(m *DependencyMap, display *types.BundleDisplay, dep Dependency, chain map[string]bool) {
	inh := dep.Options.Inheritance
	if !inh.Propagate {
		m.Register(dep)
		return
	}
	if inh.ApplyToParent {
		m.Register(dep)
	}
	for _, child := range r.inheritance.InheritingChildren(display, dep.Dependent) {
		if chain[child] {
			logrus.WithFields(logrus.Fields{
				"bundle": types.BundleKey(display.EntityType, display.Bundle),
				"field":  child,
				"rule":   dep.ID,
			}).Warn("inheritance loop, skipping child")
			continue
		}
		inherited := dep
		inherited.ID = types.InheritedRuleID(dep.ID, child)
		inherited.Dependent = child
		if !inh.Recurse || len(r.inheritance.InheritingChildren(display, child)) == 0 {
			inherited.Options.Inheritance = types.Inheritance{}
		}
		chain[child] = true
		r.expand(m, display, inherited, chain)
		delete(chain, child)
	}
}

// AvailableFields lists the fields of a bundle that can take part in
// dependencies, in display order.
func (s *Session) AvailableFields(ctx context.Context, entityType, bundle string) ([]string, error) {
	display, err := s.resolver.source.LoadDisplay(ctx, entityType, bundle)
	if err != nil {
		if errors.Is(err, types.ErrDisplayNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load display %s: %w", types.BundleKey(entityType, bundle), err)
	}
	var out []string
	for _, f := range display.Fields {
		if f.Widget == "" || f.Widget == "hidden" {
			continue
		}
		out = append(out, f.Name)
	}
	return out, nil
}
