package config

import (
	"fmt"
	"sort"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/specialistvlad/facerig/internal/params"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/gocty"
)

// Request is a prediction request read from an HCL file. Only the values the
// file sets are present; callers layer them over their own defaults.
type Request struct {
	Image         *string
	OutputFormat  *string
	OutputQuality *int
	Controls      map[string]float64
}

// Apply writes the file's control values into set.
func (r *Request) Apply(set *params.Set) {
	for name, v := range r.Controls {
		if c, ok := params.Lookup(name); ok {
			*c.Ptr(set) = v
		}
	}
}

// LoadRequest reads a request file such as
//
//	image        = "face.jpg"
//	rotate_pitch = 10
//	output_format = "jpg"
//
// Unknown attributes and blocks are rejected.
func LoadRequest(path string) (*Request, error) {
	return loadRequest(path, processEnv())
}

func loadRequest(path string, environ []string) (*Request, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse request file %s: %w", path, diags)
	}

	attrs, diags := file.Body.JustAttributes()
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode request file %s: %w", path, diags)
	}

	names := make([]string, 0, len(attrs))
	for name := range attrs {
		names = append(names, name)
	}
	sort.Strings(names)

	ectx := evalContext(environ)
	req := &Request{Controls: make(map[string]float64)}
	for _, name := range names {
		attr := attrs[name]
		val, diags := attr.Expr.Value(ectx)
		if diags.HasErrors() {
			return nil, fmt.Errorf("request file %s: %w", path, diags)
		}

		if err := req.set(name, val); err != nil {
			return nil, fmt.Errorf("request file %s: %s: %w", path, rangeOf(attr), err)
		}
	}

	return req, nil
}

func (r *Request) set(name string, val cty.Value) error {
	switch name {
	case "image":
		var s string
		if err := gocty.FromCtyValue(val, &s); err != nil {
			return fmt.Errorf("image: %w", err)
		}
		r.Image = &s
	case "output_format":
		var s string
		if err := gocty.FromCtyValue(val, &s); err != nil {
			return fmt.Errorf("output_format: %w", err)
		}
		r.OutputFormat = &s
	case "output_quality":
		var q int
		if err := gocty.FromCtyValue(val, &q); err != nil {
			return fmt.Errorf("output_quality: %w", err)
		}
		r.OutputQuality = &q
	default:
		if _, ok := params.Lookup(name); !ok {
			return fmt.Errorf("unknown attribute %q", name)
		}
		var f float64
		if err := gocty.FromCtyValue(val, &f); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		r.Controls[name] = f
	}
	return nil
}

func rangeOf(attr *hcl.Attribute) string {
	return attr.NameRange.String()
}
