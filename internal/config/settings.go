package config

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/specialistvlad/facerig/internal/ctxlog"
	"github.com/specialistvlad/facerig/internal/engine"
)

// Defaults for a settings file that leaves a value out.
const (
	DefaultInputDir   = "/tmp/inputs"
	DefaultOutputDir  = "/tmp/outputs"
	DefaultScratchDir = "ComfyUI/temp"
	DefaultAddress    = "127.0.0.1:8188"
	DefaultModelsDir  = "ComfyUI/models"
)

// Settings is the resolved process configuration.
type Settings struct {
	InputDir   string
	OutputDir  string
	ScratchDir string

	EngineAddress  string
	ModelsDir      string
	WeightsBaseURL string
	EngineCommand  []string
	EngineDir      string

	// TemplatePath is empty when the embedded template is used.
	TemplatePath string
	Weights      []engine.Weight
}

// Defaults returns the settings used when no file is given.
func Defaults() *Settings {
	return &Settings{
		InputDir:      DefaultInputDir,
		OutputDir:     DefaultOutputDir,
		ScratchDir:    DefaultScratchDir,
		EngineAddress: DefaultAddress,
		ModelsDir:     DefaultModelsDir,
		Weights:       append([]engine.Weight(nil), engine.DefaultManifest...),
	}
}

type settingsFile struct {
	Workspace *workspaceBlock `hcl:"workspace,block"`
	Engine    *engineBlock    `hcl:"engine,block"`
	Template  *string         `hcl:"template,optional"`
	Weights   []*weightBlock  `hcl:"weight,block"`
}

type workspaceBlock struct {
	InputDir   *string `hcl:"input_dir,optional"`
	OutputDir  *string `hcl:"output_dir,optional"`
	ScratchDir *string `hcl:"scratch_dir,optional"`
}

type engineBlock struct {
	Address        *string  `hcl:"address,optional"`
	ModelsDir      *string  `hcl:"models_dir,optional"`
	WeightsBaseURL *string  `hcl:"weights_base_url,optional"`
	Command        []string `hcl:"command,optional"`
	Dir            *string  `hcl:"dir,optional"`
}

type weightBlock struct {
	Name string `hcl:"name,label"`
	Dir  string `hcl:"dir"`
}

// Load reads the settings file at path over the defaults. An empty path
// returns the defaults unchanged.
func Load(ctx context.Context, path string) (*Settings, error) {
	return load(ctx, path, processEnv())
}

func load(ctx context.Context, path string, environ []string) (*Settings, error) {
	logger := ctxlog.FromContext(ctx)
	s := Defaults()
	if path == "" {
		logger.Debug("No settings file, using defaults.")
		return s, nil
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse settings file %s: %w", path, diags)
	}

	var root settingsFile
	diags = gohcl.DecodeBody(file.Body, evalContext(environ), &root)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode settings file %s: %w", path, diags)
	}

	if ws := root.Workspace; ws != nil {
		setString(&s.InputDir, ws.InputDir)
		setString(&s.OutputDir, ws.OutputDir)
		setString(&s.ScratchDir, ws.ScratchDir)
	}
	if e := root.Engine; e != nil {
		setString(&s.EngineAddress, e.Address)
		setString(&s.ModelsDir, e.ModelsDir)
		setString(&s.WeightsBaseURL, e.WeightsBaseURL)
		setString(&s.EngineDir, e.Dir)
		if len(e.Command) > 0 {
			s.EngineCommand = e.Command
		}
	}
	setString(&s.TemplatePath, root.Template)

	if len(root.Weights) > 0 {
		s.Weights = s.Weights[:0]
		seen := make(map[string]bool, len(root.Weights))
		for _, w := range root.Weights {
			if seen[w.Name] {
				return nil, fmt.Errorf("settings file %s: duplicate weight %q", path, w.Name)
			}
			seen[w.Name] = true
			s.Weights = append(s.Weights, engine.Weight{Name: w.Name, Dir: w.Dir})
		}
	}

	logger.Debug("Settings loaded.", "path", path, "weights", len(s.Weights))
	return s, nil
}

func setString(dst *string, v *string) {
	if v != nil && *v != "" {
		*dst = *v
	}
}
