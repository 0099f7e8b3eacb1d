package form

import (
	"encoding/json"
	"fmt"
)

// wireNode is the JSON shape of a form element.
type wireNode struct {
	ID                 string         `json:"id,omitempty"`
	Key                string         `json:"key,omitempty"`
	Kind               Kind           `json:"kind"`
	Name               string         `json:"name,omitempty"`
	Field              string         `json:"field,omitempty"`
	Widget             string         `json:"widget,omitempty"`
	Language           string         `json:"language,omitempty"`
	Title              string         `json:"title,omitempty"`
	Cardinality        int            `json:"cardinality,omitempty"`
	Required           bool           `json:"required,omitempty"`
	Default            any            `json:"default,omitempty"`
	Parents            []string       `json:"parents,omitempty"`
	Attributes         map[string]any `json:"attributes,omitempty"`
	States             map[string]any `json:"states,omitempty"`
	Validate           bool           `json:"validate,omitempty"`
	ResetIfUntriggered bool           `json:"reset_if_untriggered,omitempty"`
	EntityType         string         `json:"entity_type,omitempty"`
	Bundle             string         `json:"bundle,omitempty"`
	Children           []wireNode     `json:"children,omitempty"`
}

func (w wireNode) node() Node {
	return Node{
		ID: w.ID, Key: w.Key, Kind: w.Kind, Name: w.Name, Field: w.Field,
		Widget: w.Widget, Language: w.Language, Title: w.Title,
		Cardinality: w.Cardinality, Required: w.Required, Default: w.Default,
		Parents: w.Parents, Attributes: w.Attributes, States: w.States,
		Validate: w.Validate, ResetIfUntriggered: w.ResetIfUntriggered,
		EntityType: w.EntityType, Bundle: w.Bundle,
	}
}

func wireFrom(n Node) wireNode {
	return wireNode{
		ID: n.ID, Key: n.Key, Kind: n.Kind, Name: n.Name, Field: n.Field,
		Widget: n.Widget, Language: n.Language, Title: n.Title,
		Cardinality: n.Cardinality, Required: n.Required, Default: n.Default,
		Parents: n.Parents, Attributes: n.Attributes, States: n.States,
		Validate: n.Validate, ResetIfUntriggered: n.ResetIfUntriggered,
		EntityType: n.EntityType, Bundle: n.Bundle,
	}
}

// Decode parses a JSON form document into a Tree.
func Decode(data []byte) (*Tree, error) {
	var root wireNode
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("failed to parse form: %w", err)
	}
	b := NewBuilder(root.node())
	addChildren(b, 0, root.Children)
	return b.Build()
}

// DecodeMap converts a generic map (e.g. a protobuf Struct) into a Tree.
func DecodeMap(m map[string]any) (*Tree, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode form: %w", err)
	}
	return Decode(data)
}

func addChildren(b *Builder, parent int, children []wireNode) {
	for _, c := range children {
		idx := b.Add(parent, c.node())
		if idx < 0 {
			return
		}
		addChildren(b, idx, c.Children)
	}
}

// Encode renders the tree in the shape Decode accepts.
func Encode(t *Tree) ([]byte, error) {
	return json.Marshal(t.wire(0))
}

// EncodeMap renders the tree as a generic map.
func EncodeMap(t *Tree) (map[string]any, error) {
	data, err := Encode(t)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func (t *Tree) wire(idx int) wireNode {
	w := wireFrom(t.nodes[idx])
	for _, c := range t.children[idx] {
		w.Children = append(w.Children, t.wire(c))
	}
	return w
}

// Selector builds the client selector of an element from its name
// attribute, its name, or its id, in that order.
func Selector(n Node) string {
	if name, ok := n.Attributes["name"].(string); ok && name != "" {
		return fmt.Sprintf(`[name="%s"]`, name)
	}
	if n.Name != "" {
		return fmt.Sprintf(`[name="%s"]`, n.Name)
	}
	if n.ID != "" {
		return "#" + n.ID
	}
	return ""
}
