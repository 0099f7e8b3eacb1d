// internal/rules/engine.go
package rules

import (
	"context"
	"fmt"

	"github.com/solatis/condfields/internal/form"
	"github.com/solatis/condfields/internal/types"
)

/*
 * Engine ties resolution, attachment, state building and the guard
 * together for one request.
 *
 * Form build and form submission are separate requests, each with its own
 * Session:
 *
 *   sess := engine.NewSession()
 *   built, err := engine.Process(ctx, sess, "node", "article", tree)
 *   ...
 *   sess = engine.NewSession()
 *   report, err := engine.Validate(ctx, sess, "node", "article", tree, sub)
 */

// CustomDependency is a dependency declared by the caller for one form.
type CustomDependency struct {
	Dependee  string        `json:"dependee"`
	Dependent string        `json:"dependent"`
	Options   types.Options `json:"options"`
}

// Engine evaluates field dependencies for forms.
type Engine struct {
	resolver *Resolver
	attacher *Attacher
	builder  *StateBuilder
	guard    *Guard
}

type engineConfig struct {
	handlers *HandlerRegistry
	priority []form.Kind
	language string
	resolver []ResolverOption
}

// EngineOption configures an Engine.
type EngineOption func(*engineConfig)

// WithHandlers replaces the built-in state handlers.
func WithHandlers(h *HandlerRegistry) EngineOption {
	return func(c *engineConfig) { c.handlers = h }
}

// WithPriorityKinds replaces DefaultPriorityKinds.
func WithPriorityKinds(kinds ...form.Kind) EngineOption {
	return func(c *engineConfig) { c.priority = kinds }
}

// WithLanguage sets the language substituted for %lang in selectors.
func WithLanguage(lang string) EngineOption {
	return func(c *engineConfig) { c.language = lang }
}

// WithResolverOptions passes options through to the Resolver.
func WithResolverOptions(opts ...ResolverOption) EngineOption {
	return func(c *engineConfig) { c.resolver = append(c.resolver, opts...) }
}

// NewEngine creates an engine reading rules from source.
func NewEngine(source DisplaySource, opts ...EngineOption) (*Engine, error) {
	cfg := engineConfig{handlers: DefaultHandlers(), language: "und"}
	for _, opt := range opts {
		opt(&cfg)
	}

	resolver, err := NewResolver(source, cfg.resolver...)
	if err != nil {
		return nil, fmt.Errorf("failed to create resolver: %w", err)
	}
	builder, err := NewStateBuilder(cfg.handlers, cfg.language)
	if err != nil {
		return nil, fmt.Errorf("failed to create state builder: %w", err)
	}
	return &Engine{
		resolver: resolver,
		attacher: NewAttacher(cfg.priority...),
		builder:  builder,
		guard:    NewGuard(),
	}, nil
}

// NewSession starts a request-scoped resolution context.
func (e *Engine) NewSession() *Session {
	return e.resolver.NewSession()
}

// Dependencies resolves a bundle within session.
func (e *Engine) Dependencies(ctx context.Context, session *Session, entityType, bundle string) (*DependencyMap, error) {
	return session.Dependencies(ctx, entityType, bundle)
}

// Attach resolves and attaches the dependencies of tree, including custom
// dependencies.
func (e *Engine) Attach(ctx context.Context, session *Session, entityType, bundle string, tree *form.Tree, custom ...CustomDependency) (*FormDependencies, error) {
	if session == nil {
		return nil, fmt.Errorf("session cannot be nil")
	}
	fd, err := e.attacher.Attach(ctx, session, tree, entityType, bundle)
	if err != nil {
		return nil, fmt.Errorf("failed to attach dependencies: %w", err)
	}
	for _, c := range custom {
		if _, err := AttachCustom(session, fd, c.Dependee, c.Dependent, c.Options); err != nil {
			return nil, fmt.Errorf("failed to attach custom dependency %s -> %s: %w", c.Dependent, c.Dependee, err)
		}
	}
	return fd, nil
}

// ProcessResult is the built form of one request.
type ProcessResult struct {
	*BuildResult
	Dependencies *FormDependencies
	Cycles       [][]string
}

// Process builds the client states of tree.
func (e *Engine) Process(ctx context.Context, session *Session, entityType, bundle string, tree *form.Tree, custom ...CustomDependency) (*ProcessResult, error) {
	fd, err := e.Attach(ctx, session, entityType, bundle, tree, custom...)
	if err != nil {
		return nil, err
	}
	built, err := e.builder.Build(tree, fd)
	if err != nil {
		return nil, fmt.Errorf("failed to build states: %w", err)
	}
	m, err := session.Dependencies(ctx, entityType, bundle)
	if err != nil {
		return nil, err
	}
	return &ProcessResult{BuildResult: built, Dependencies: fd, Cycles: m.Cycles()}, nil
}

// Validate guards a submission of tree.
func (e *Engine) Validate(ctx context.Context, session *Session, entityType, bundle string, tree *form.Tree, sub Submission, custom ...CustomDependency) (*Report, error) {
	fd, err := e.Attach(ctx, session, entityType, bundle, tree, custom...)
	if err != nil {
		return nil, err
	}
	report, err := e.guard.Validate(tree, fd, sub)
	if err != nil {
		return nil, fmt.Errorf("failed to validate submission: %w", err)
	}
	return report, nil
}
