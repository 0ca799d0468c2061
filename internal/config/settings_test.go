package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/specialistvlad/facerig/internal/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_EmptyPathReturnsDefaults(t *testing.T) {
	s, err := Load(context.Background(), "")
	require.NoError(t, err)

	assert.Equal(t, Defaults(), s)
	assert.Equal(t, "/tmp/inputs", s.InputDir)
	assert.Equal(t, "/tmp/outputs", s.OutputDir)
	assert.Equal(t, "ComfyUI/temp", s.ScratchDir)
	assert.Equal(t, engine.DefaultManifest, s.Weights)
}

func TestLoad_FullFile(t *testing.T) {
	path := writeFile(t, "facerig.hcl", `
workspace {
  input_dir   = "/data/in"
  output_dir  = "/data/out"
  scratch_dir = "/opt/comfy/temp"
}

engine {
  address          = "10.0.0.5:8188"
  models_dir       = "/opt/comfy/models"
  weights_base_url = env.WEIGHTS_URL
  command          = ["python", "main.py", "--listen"]
  dir              = "/opt/comfy"
}

template = "/etc/facerig/workflow_api.json"

weight "face_yolov8n.pt" {
  dir = "ultralytics/bbox"
}

weight "warping_module.safetensors" {
  dir = "liveportrait/base_models"
}
`)

	s, err := load(context.Background(), path, []string{"WEIGHTS_URL=https://weights.example.com", "IGNORED"})
	require.NoError(t, err)

	assert.Equal(t, &Settings{
		InputDir:       "/data/in",
		OutputDir:      "/data/out",
		ScratchDir:     "/opt/comfy/temp",
		EngineAddress:  "10.0.0.5:8188",
		ModelsDir:      "/opt/comfy/models",
		WeightsBaseURL: "https://weights.example.com",
		EngineCommand:  []string{"python", "main.py", "--listen"},
		EngineDir:      "/opt/comfy",
		TemplatePath:   "/etc/facerig/workflow_api.json",
		Weights: []engine.Weight{
			{Name: "face_yolov8n.pt", Dir: "ultralytics/bbox"},
			{Name: "warping_module.safetensors", Dir: "liveportrait/base_models"},
		},
	}, s)
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	path := writeFile(t, "facerig.hcl", `
engine {
  weights_base_url = lookup(env, "MISSING", "")
}
`)

	s, err := load(context.Background(), path, nil)
	require.NoError(t, err)
	assert.Equal(t, Defaults(), s)
}

func TestLoad_Errors(t *testing.T) {
	testCases := []struct {
		name    string
		content string
	}{
		{"syntax error", `workspace {`},
		{"unknown attribute", `colour = "blue"`},
		{"wrong type", `template = ["a", "b"]`},
		{"undefined env key", `engine { address = env.NOPE }`},
		{"duplicate weight", `
weight "a.pt" { dir = "x" }
weight "a.pt" { dir = "y" }
`},
		{"weight without dir", `weight "a.pt" {}`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeFile(t, "facerig.hcl", tc.content)
			_, err := load(context.Background(), path, nil)
			require.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(context.Background(), filepath.Join(t.TempDir(), "nope.hcl"))
	require.Error(t, err)
}
