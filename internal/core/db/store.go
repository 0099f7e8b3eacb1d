package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/solatis/condfields/internal/types"
)

// Store is the SQL-backed rule store. It serves bundle displays to the
// resolver and persists admin writes.
//
// Option bags are stored as JSON in field_dependencies.settings; rules and
// fields keep insertion order through their seq column.
type Store struct {
	queries *Queries
}

// NewStore creates a store over an opened and migrated database.
func NewStore(db *sqlx.DB) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("db cannot be nil")
	}
	queries, err := LoadQueries(db)
	if err != nil {
		return nil, err
	}
	return &Store{queries: queries}, nil
}

// Queries exposes the named queries, e.g. for the authenticator.
func (s *Store) Queries() *Queries { return s.queries }

type fieldRow struct {
	Name        string `db:"field_name"`
	Label       string `db:"label"`
	Widget      string `db:"widget"`
	Cardinality int    `db:"cardinality"`
	Required    bool   `db:"required"`
	Parent      string `db:"parent_field"`
}

type ruleRow struct {
	ID         string `db:"rule_id"`
	EntityType string `db:"entity_type"`
	Bundle     string `db:"bundle"`
	Dependent  string `db:"dependent"`
	Dependee   string `db:"dependee"`
	Settings   []byte `db:"settings"`
}

func (r ruleRow) rule() (types.DependencyRule, error) {
	var opts types.Options
	if err := json.Unmarshal(r.Settings, &opts); err != nil {
		return types.DependencyRule{}, fmt.Errorf("failed to decode settings of rule %s: %w", r.ID, err)
	}
	return types.DependencyRule{
		ID:         types.RuleID(r.ID),
		EntityType: r.EntityType,
		Bundle:     r.Bundle,
		Dependent:  r.Dependent,
		Dependee:   r.Dependee,
		Options:    opts,
	}, nil
}

// storageError marks database failures for the API error mapping.
func storageError(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%w: %s: %v", types.ErrStorage, op, err)
}

// LoadDisplay returns the bundle's fields in display order with their rules.
func (s *Store) LoadDisplay(ctx context.Context, entityType, bundle string) (*types.BundleDisplay, error) {
	var fields []fieldRow
	if err := s.queries.Select(ctx, "list-fields", &fields, entityType, bundle); err != nil {
		return nil, storageError("failed to list fields", err)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: %s", types.ErrDisplayNotFound, types.BundleKey(entityType, bundle))
	}

	rules, err := s.ListRules(ctx, entityType, bundle)
	if err != nil {
		return nil, err
	}

	display := &types.BundleDisplay{EntityType: entityType, Bundle: bundle}
	index := make(map[string]int, len(fields))
	for i, f := range fields {
		display.Fields = append(display.Fields, types.FieldConfig{
			Name:        f.Name,
			Label:       f.Label,
			Widget:      f.Widget,
			Cardinality: f.Cardinality,
			Required:    f.Required,
			Parent:      f.Parent,
		})
		index[f.Name] = i
	}
	for _, r := range rules {
		if i, ok := index[r.Dependent]; ok {
			display.Fields[i].Rules = append(display.Fields[i].Rules, r)
		}
	}
	return display, nil
}

// SaveField creates or updates a field configuration; display position is
// kept on update. Rules on field are ignored.
func (s *Store) SaveField(ctx context.Context, entityType, bundle string, field types.FieldConfig) error {
	if entityType == "" || bundle == "" || field.Name == "" {
		return fmt.Errorf("%w: entity type, bundle and field name are required", types.ErrInvalidRule)
	}
	cardinality := field.Cardinality
	if cardinality == 0 {
		cardinality = types.CardinalitySingle
	}
	_, err := s.queries.Exec(ctx, "upsert-field",
		entityType, bundle, field.Name, field.Label, field.Widget, cardinality, field.Required, field.Parent)
	if err != nil {
		return storageError("failed to save field", err)
	}
	return nil
}

// AddRule stores a rule after its dependent field.
func (s *Store) AddRule(ctx context.Context, rule types.DependencyRule) error {
	if err := rule.Validate(); err != nil {
		return err
	}

	var count int
	if err := s.queries.Get(ctx, "count-field", &count, rule.EntityType, rule.Bundle, rule.Dependent); err != nil {
		return storageError("failed to check field", err)
	}
	if count == 0 {
		return fmt.Errorf("%w: %s", types.ErrFieldNotFound, rule.Dependent)
	}
	if _, err := s.GetRule(ctx, rule.ID); err == nil {
		return fmt.Errorf("%w: duplicate id %s", types.ErrInvalidRule, rule.ID)
	} else if !errors.Is(err, types.ErrRuleNotFound) {
		return err
	}

	settings, err := json.Marshal(rule.Options)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	_, err = s.queries.Exec(ctx, "insert-rule",
		string(rule.ID), rule.EntityType, rule.Bundle, rule.Dependent, rule.Dependee, string(settings), time.Now().UTC())
	if err != nil {
		return storageError("failed to insert rule", err)
	}
	return nil
}

// ListRules returns a bundle's rules in insertion order.
func (s *Store) ListRules(ctx context.Context, entityType, bundle string) ([]types.DependencyRule, error) {
	var rows []ruleRow
	if err := s.queries.Select(ctx, "list-rules", &rows, entityType, bundle); err != nil {
		return nil, storageError("failed to list rules", err)
	}
	out := make([]types.DependencyRule, 0, len(rows))
	for _, r := range rows {
		rule, err := r.rule()
		if err != nil {
			return nil, err
		}
		out = append(out, rule)
	}
	return out, nil
}

// GetRule returns a rule by id.
func (s *Store) GetRule(ctx context.Context, id types.RuleID) (types.DependencyRule, error) {
	var row ruleRow
	err := s.queries.Get(ctx, "get-rule", &row, string(id))
	if errors.Is(err, sql.ErrNoRows) {
		return types.DependencyRule{}, fmt.Errorf("%w: %s", types.ErrRuleNotFound, id)
	}
	if err != nil {
		return types.DependencyRule{}, storageError("failed to get rule", err)
	}
	return row.rule()
}

// DeleteRule removes a rule by id.
func (s *Store) DeleteRule(ctx context.Context, id types.RuleID) error {
	res, err := s.queries.Exec(ctx, "delete-rule", string(id))
	if err != nil {
		return storageError("failed to delete rule", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storageError("failed to delete rule", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", types.ErrRuleNotFound, id)
	}
	return nil
}
