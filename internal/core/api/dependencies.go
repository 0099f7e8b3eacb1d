package api

import (
	"context"

	"github.com/sirupsen/logrus"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/solatis/condfields/internal/core/auth"
	"github.com/solatis/condfields/internal/rules"
	"github.com/solatis/condfields/internal/types"
)

type addDependencyResponse struct {
	RuleIDs []types.RuleID `json:"rule_ids"`
}

// AddDependency stores one rule per dependent.
//
// Request:  {entity_type, bundle, dependee, dependents: [..], options}
// Response: {rule_ids: [..]}
func (s *FormStatesService) AddDependency(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in rules.NewDependencyRequest
	if err := decode(req, &in); err != nil {
		return nil, err
	}
	if in.EntityType == "" || in.Bundle == "" {
		return nil, invalid("entity_type and bundle are required")
	}

	ids, err := s.admin.AddDependency(ctx, in)
	if err != nil {
		return nil, toStatus(MethodAddDependency, err)
	}

	logrus.WithFields(logrus.Fields{
		"entity_type": in.EntityType,
		"bundle":      in.Bundle,
		"dependee":    in.Dependee,
		"rules":       len(ids),
		"admin_key":   auth.AdminKeyIDFromContext(ctx),
	}).Info("added dependencies")

	out, err := encode(addDependencyResponse{RuleIDs: ids})
	return out, toStatus(MethodAddDependency, err)
}

type listDependenciesRequest struct {
	EntityType string `json:"entity_type"`
	Bundle     string `json:"bundle"`
}

type listDependenciesResponse struct {
	Rules []types.DependencyRule `json:"rules"`
}

// ListDependencies returns the stored rules of a bundle.
//
// Request:  {entity_type, bundle}
// Response: {rules: [{id, entity_type, bundle, dependent, dependee, options}]}
func (s *FormStatesService) ListDependencies(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in listDependenciesRequest
	if err := decode(req, &in); err != nil {
		return nil, err
	}
	if in.EntityType == "" || in.Bundle == "" {
		return nil, invalid("entity_type and bundle are required")
	}

	list, err := s.admin.ListDependencies(ctx, in.EntityType, in.Bundle)
	if err != nil {
		return nil, toStatus(MethodListDependencies, err)
	}
	if list == nil {
		list = []types.DependencyRule{}
	}
	out, err := encode(listDependenciesResponse{Rules: list})
	return out, toStatus(MethodListDependencies, err)
}

type deleteDependencyRequest struct {
	RuleID string `json:"rule_id"`
}

// DeleteDependency removes a stored rule.
//
// Request:  {rule_id}
// Response: {}
func (s *FormStatesService) DeleteDependency(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in deleteDependencyRequest
	if err := decode(req, &in); err != nil {
		return nil, err
	}
	if in.RuleID == "" {
		return nil, invalid("rule_id is required")
	}
	if err := s.admin.DeleteDependency(ctx, types.RuleID(in.RuleID)); err != nil {
		return nil, toStatus(MethodDeleteDependency, err)
	}

	logrus.WithFields(logrus.Fields{
		"rule_id":   in.RuleID,
		"admin_key": auth.AdminKeyIDFromContext(ctx),
	}).Info("deleted dependency")
	return &structpb.Struct{Fields: map[string]*structpb.Value{}}, nil
}
