package api

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"
)

// decode copies a request Struct into a typed request through its JSON form.
func decode(in *structpb.Struct, out any) error {
	if in == nil {
		return invalid("request cannot be empty")
	}
	data, err := json.Marshal(in.AsMap())
	if err != nil {
		return invalid("malformed request: %v", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return invalid("malformed request: %v", err)
	}
	return nil
}

// encode renders a typed response as a Struct through its JSON form.
func encode(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, fmt.Errorf("failed to build response: %w", err)
	}
	return out, nil
}
