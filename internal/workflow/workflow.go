package workflow

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
)

//go:embed assets/workflow_api.json
var defaultTemplate []byte

// ErrInvalidTemplate marks a template that cannot be used: malformed JSON,
// malformed nodes, or missing nodes the caller requires.
var ErrInvalidTemplate = errors.New("invalid workflow template")

// ErrUnknownField is returned when a write targets a node or input field
// that the template does not define.
var ErrUnknownField = errors.New("unknown workflow field")

// Node is a single engine node in API format.
type Node struct {
	ClassType string         `json:"class_type"`
	Inputs    map[string]any `json:"inputs"`
	Meta      map[string]any `json:"_meta,omitempty"`
}

// Graph maps node ids to nodes. It is what gets submitted to the engine.
type Graph map[string]*Node

// Field returns the value of an input field and whether it exists.
func (g Graph) Field(nodeID, field string) (any, bool) {
	node, ok := g[nodeID]
	if !ok {
		return nil, false
	}
	v, ok := node.Inputs[field]
	return v, ok
}

// Write is a single field assignment applied by Bind.
type Write struct {
	Node  string
	Field string
	Value any
}

// Template is a parsed, validated workflow. It is safe to share.
type Template struct {
	source []byte
	fields map[string]map[string]struct{}
	ids    []string
}

// Default returns the template packaged with the binary.
func Default(requiredNodes ...string) (*Template, error) {
	return Parse(defaultTemplate, requiredNodes...)
}

// Load reads and parses the template at path.
func Load(path string, requiredNodes ...string) (*Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read workflow template %s: %w", path, err)
	}
	t, err := Parse(data, requiredNodes...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// Parse validates data as an API-format workflow. Every node must carry a
// class_type and an inputs object, and every id in requiredNodes must exist.
func Parse(data []byte, requiredNodes ...string) (*Template, error) {
	g, err := decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTemplate, err)
	}
	if len(g) == 0 {
		return nil, fmt.Errorf("%w: no nodes", ErrInvalidTemplate)
	}

	t := &Template{
		source: bytes.Clone(data),
		fields: make(map[string]map[string]struct{}, len(g)),
	}

	for id, node := range g {
		if node == nil {
			return nil, fmt.Errorf("%w: node %q is null", ErrInvalidTemplate, id)
		}
		if node.ClassType == "" {
			return nil, fmt.Errorf("%w: node %q has no class_type", ErrInvalidTemplate, id)
		}
		if node.Inputs == nil {
			return nil, fmt.Errorf("%w: node %q has no inputs", ErrInvalidTemplate, id)
		}
		fields := make(map[string]struct{}, len(node.Inputs))
		for name := range node.Inputs {
			fields[name] = struct{}{}
		}
		t.fields[id] = fields
		t.ids = append(t.ids, id)
	}
	sort.Strings(t.ids)

	for _, id := range requiredNodes {
		if _, ok := t.fields[id]; !ok {
			return nil, fmt.Errorf("%w: required node %q is missing", ErrInvalidTemplate, id)
		}
	}

	return t, nil
}

// NodeIDs returns the template's node ids in sorted order.
func (t *Template) NodeIDs() []string {
	return append([]string(nil), t.ids...)
}

// Require reports an ErrUnknownField if nodeID.field is not in the template.
func (t *Template) Require(nodeID, field string) error {
	fields, ok := t.fields[nodeID]
	if !ok {
		return fmt.Errorf("%w: node %q", ErrUnknownField, nodeID)
	}
	if _, ok := fields[field]; !ok {
		return fmt.Errorf("%w: %s.%s", ErrUnknownField, nodeID, field)
	}
	return nil
}

// Graph returns a fresh, unbound copy of the template.
func (t *Template) Graph() Graph {
	g, err := decode(t.source)
	if err != nil {
		// source was validated by Parse
		panic(fmt.Sprintf("workflow: template source no longer decodes: %v", err))
	}
	return g
}

// Bind returns a fresh copy of the template with writes applied. Writes may
// only overwrite fields that already exist; the template is left untouched.
func (t *Template) Bind(writes []Write) (Graph, error) {
	for _, w := range writes {
		if err := t.Require(w.Node, w.Field); err != nil {
			return nil, err
		}
	}

	g := t.Graph()
	for _, w := range writes {
		g[w.Node].Inputs[w.Field] = w.Value
	}
	return g, nil
}

func decode(data []byte) (Graph, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var g Graph
	if err := dec.Decode(&g); err != nil {
		return nil, err
	}
	return g, nil
}
