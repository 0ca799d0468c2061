// Package binder maps a validated parameter set and the staged source image
// onto the workflow fields the packaged template expects.
package binder

import (
	"errors"
	"fmt"

	"github.com/specialistvlad/facerig/internal/params"
	"github.com/specialistvlad/facerig/internal/stager"
	"github.com/specialistvlad/facerig/internal/workflow"
)

// Node ids in the packaged template.
const (
	ImageNode      = "15"
	ImageField     = "image"
	ExpressionNode = "14"
)

// Input is everything a binding may read from.
type Input struct {
	Params *params.Set
	Asset  *stager.Asset
}

// Binding writes one value into one node field.
type Binding struct {
	Node  string
	Field string
	Value func(Input) any
}

// Table returns the bindings for the packaged template: the image reference
// plus one binding per expression control.
func Table() []Binding {
	table := []Binding{{
		Node:  ImageNode,
		Field: ImageField,
		Value: func(in Input) any {
			if in.Asset == nil {
				return nil
			}
			return in.Asset.CanonicalFilename
		},
	}}

	for _, c := range params.Controls() {
		table = append(table, Binding{
			Node:  ExpressionNode,
			Field: c.Name,
			Value: func(in Input) any { return c.Value(in.Params) },
		})
	}
	return table
}

// Binder applies a binding table to a template.
type Binder struct {
	tmpl  *workflow.Template
	table []Binding
}

// New checks every binding in table against tmpl. A binding that targets a
// missing node or field is a configuration error.
func New(tmpl *workflow.Template, table []Binding) (*Binder, error) {
	var errs []error
	for _, b := range table {
		if err := tmpl.Require(b.Node, b.Field); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("binding table does not match template: %w", err)
	}
	return &Binder{tmpl: tmpl, table: table}, nil
}

// Bind returns a fresh graph with every binding applied. Values are passed
// through unmodified; set is assumed to be validated already. A nil asset
// leaves the image reference null.
func (b *Binder) Bind(set *params.Set, asset *stager.Asset) (workflow.Graph, error) {
	if set == nil {
		return nil, errors.New("binder: nil parameter set")
	}

	in := Input{Params: set, Asset: asset}
	writes := make([]workflow.Write, 0, len(b.table))
	for _, binding := range b.table {
		writes = append(writes, workflow.Write{
			Node:  binding.Node,
			Field: binding.Field,
			Value: binding.Value(in),
		})
	}

	return b.tmpl.Bind(writes)
}
