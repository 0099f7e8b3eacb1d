package api

import (
	"context"
	"encoding/json"

	"github.com/sirupsen/logrus"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/solatis/condfields/internal/form"
	"github.com/solatis/condfields/internal/rules"
)

// formRequest names the bundle and carries the form document.
type formRequest struct {
	EntityType string                   `json:"entity_type"`
	Bundle     string                   `json:"bundle"`
	Form       json.RawMessage          `json:"form"`
	Custom     []rules.CustomDependency `json:"custom,omitempty"`
}

func (r formRequest) tree() (*form.Tree, error) {
	if r.EntityType == "" || r.Bundle == "" {
		return nil, invalid("entity_type and bundle are required")
	}
	if len(r.Form) == 0 {
		return nil, invalid("form is required")
	}
	tree, err := form.Decode(r.Form)
	if err != nil {
		return nil, invalid("invalid form: %v", err)
	}
	return tree, nil
}

type buildStatesResponse struct {
	Form     json.RawMessage             `json:"form"`
	Effects  map[string]rules.EffectSpec `json:"effects"`
	Validate bool                        `json:"validate"`
	Cycles   [][]string                  `json:"cycles,omitempty"`
}

// BuildStates attaches client states to a form.
//
// Request:  {entity_type, bundle, form, custom?: [{dependee, dependent, options}]}
// Response: {form, effects: {selector: {effect, options}}, validate, cycles?}
func (s *FormStatesService) BuildStates(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in formRequest
	if err := decode(req, &in); err != nil {
		return nil, err
	}
	tree, err := in.tree()
	if err != nil {
		return nil, err
	}

	result, err := s.engine.Process(ctx, s.engine.NewSession(), in.EntityType, in.Bundle, tree, in.Custom...)
	if err != nil {
		return nil, toStatus(MethodBuildStates, err)
	}
	encoded, err := form.Encode(result.Tree)
	if err != nil {
		return nil, toStatus(MethodBuildStates, err)
	}

	logrus.WithFields(logrus.Fields{
		"entity_type": in.EntityType,
		"bundle":      in.Bundle,
		"dependents":  result.Dependencies.Len(),
		"effects":     len(result.Effects),
	}).Debug("built form states")

	out, err := encode(buildStatesResponse{
		Form:     encoded,
		Effects:  result.Effects,
		Validate: result.Validate,
		Cycles:   result.Cycles,
	})
	return out, toStatus(MethodBuildStates, err)
}

type validateRequest struct {
	formRequest
	Values map[string]any    `json:"values"`
	Errors map[string]string `json:"errors"`
}

type fieldResult struct {
	Key           string        `json:"key"`
	Field         string        `json:"field"`
	State         string        `json:"state"`
	Outcome       rules.Outcome `json:"outcome"`
	RemovedErrors []string      `json:"removed_errors,omitempty"`
	RequiredError string        `json:"required_error,omitempty"`
}

type validateResponse struct {
	Values map[string]any    `json:"values"`
	Errors map[string]string `json:"errors"`
	Fields []fieldResult     `json:"fields"`
}

// ValidateSubmission guards a form submission.
//
// Request:  {entity_type, bundle, form, values, errors, custom?}
// Response: {values, errors, fields: [{key, field, state, outcome, removed_errors?, required_error?}]}
func (s *FormStatesService) ValidateSubmission(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in validateRequest
	if err := decode(req, &in); err != nil {
		return nil, err
	}
	tree, err := in.tree()
	if err != nil {
		return nil, err
	}

	sub := rules.Submission{Values: in.Values, Errors: in.Errors}
	report, err := s.engine.Validate(ctx, s.engine.NewSession(), in.EntityType, in.Bundle, tree, sub, in.Custom...)
	if err != nil {
		return nil, toStatus(MethodValidateSubmission, err)
	}

	resp := validateResponse{
		Values: report.Values,
		Errors: report.Errors,
		Fields: make([]fieldResult, 0, len(report.Fields)),
	}
	for _, f := range report.Fields {
		resp.Fields = append(resp.Fields, fieldResult{
			Key:           f.Key,
			Field:         f.Field,
			State:         f.State(),
			Outcome:       f.Outcome,
			RemovedErrors: f.RemovedErrors,
			RequiredError: f.RequiredError,
		})
	}
	out, err := encode(resp)
	return out, toStatus(MethodValidateSubmission, err)
}
