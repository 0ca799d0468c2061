package cli

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/specialistvlad/facerig/internal/media"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	testCases := []struct {
		name  string
		args  []string
		check func(t *testing.T, cfg *configView)
	}{
		{
			name: "defaults",
			args: []string{},
			check: func(t *testing.T, c *configView) {
				assert.Equal(t, "", c.image)
				assert.Equal(t, media.FormatWebP, c.format)
				assert.Equal(t, 95, c.quality)
				assert.Equal(t, 1.7, c.cropFactor)
				assert.Equal(t, "text", c.logFormat)
			},
		},
		{
			name: "positional image and controls",
			args: []string{"-rotate-pitch", "10", "-rotate-yaw=-5", "-blink", "2", "-output-format", "JPG", "-output-quality", "90", "face.jpg"},
			check: func(t *testing.T, c *configView) {
				assert.Equal(t, "face.jpg", c.image)
				assert.Equal(t, 10.0, c.pitch)
				assert.Equal(t, -5.0, c.yaw)
				assert.Equal(t, 2.0, c.blink)
				assert.Equal(t, media.FormatJPG, c.format)
				assert.Equal(t, 90, c.quality)
			},
		},
		{
			name: "image flag",
			args: []string{"-image", "/uploads/face.png", "-log-format", "JSON", "-log-level", "DEBUG"},
			check: func(t *testing.T, c *configView) {
				assert.Equal(t, "/uploads/face.png", c.image)
				assert.Equal(t, "json", c.logFormat)
				assert.Equal(t, "debug", c.logLevel)
			},
		},
		{
			name: "boundary values are accepted",
			args: []string{"-blink", "5", "-aaa", "120", "-smile", "-0.3", "-crop-factor", "2.5"},
			check: func(t *testing.T, c *configView) {
				assert.Equal(t, 5.0, c.blink)
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, shouldExit, err := Parse(tc.args, &bytes.Buffer{})
			require.NoError(t, err)
			require.False(t, shouldExit)
			require.NotNil(t, cfg)
			tc.check(t, &configView{
				image:      cfg.Request.ImagePath,
				format:     cfg.Request.OutputFormat,
				quality:    cfg.Request.OutputQuality,
				pitch:      cfg.Request.Params.RotatePitch,
				yaw:        cfg.Request.Params.RotateYaw,
				blink:      cfg.Request.Params.Blink,
				cropFactor: cfg.Request.Params.CropFactor,
				logFormat:  cfg.LogFormat,
				logLevel:   cfg.LogLevel,
			})
		})
	}
}

type configView struct {
	image      string
	format     media.Format
	quality    int
	pitch      float64
	yaw        float64
	blink      float64
	cropFactor float64
	logFormat  string
	logLevel   string
}

func TestParse_Errors(t *testing.T) {
	testCases := []struct {
		name string
		args []string
	}{
		{"unknown flag", []string{"-frown", "1"}},
		{"blink above range", []string{"-blink", "5.5"}},
		{"wink below range", []string{"-wink", "-1"}},
		{"crop factor below range", []string{"-crop-factor", "1"}},
		{"bad format", []string{"-output-format", "gif"}},
		{"quality above range", []string{"-output-quality", "101"}},
		{"bad log format", []string{"-log-format", "xml"}},
		{"bad log level", []string{"-log-level", "trace"}},
		{"two images", []string{"a.jpg", "b.jpg"}},
		{"image twice", []string{"-image", "a.jpg", "b.jpg"}},
		{"missing request file", []string{"-request", "/does/not/exist.hcl"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, shouldExit, err := Parse(tc.args, &bytes.Buffer{})
			require.Error(t, err)
			assert.Nil(t, cfg)
			assert.False(t, shouldExit)

			var exitErr *ExitError
			require.True(t, errors.As(err, &exitErr))
			assert.Equal(t, 2, exitErr.Code)
		})
	}
}

func TestParse_Help(t *testing.T) {
	out := &bytes.Buffer{}
	cfg, shouldExit, err := Parse([]string{"-h"}, out)
	require.NoError(t, err)
	assert.True(t, shouldExit)
	assert.Nil(t, cfg)
	assert.Contains(t, out.String(), "Usage:")
	assert.Contains(t, out.String(), "-rotate-pitch")
}

func TestParse_RequestFileLayering(t *testing.T) {
	path := filepath.Join(t.TempDir(), "request.hcl")
	require.NoError(t, os.WriteFile(path, []byte(`
image          = "from-file.jpg"
rotate_pitch   = 10
blink          = 2
output_format  = "png"
output_quality = 50
`), 0o644))

	cfg, _, err := Parse([]string{"-request", path, "-blink", "-3", "-output-format", "jpg"}, &bytes.Buffer{})
	require.NoError(t, err)

	assert.Equal(t, "from-file.jpg", cfg.Request.ImagePath)
	assert.Equal(t, 10.0, cfg.Request.Params.RotatePitch)
	assert.Equal(t, -3.0, cfg.Request.Params.Blink, "flags override the request file")
	assert.Equal(t, media.FormatJPG, cfg.Request.OutputFormat)
	assert.Equal(t, 50, cfg.Request.OutputQuality)
}

func TestParse_RequestFileOutOfRange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "request.hcl")
	require.NoError(t, os.WriteFile(path, []byte(`eyebrow = 16`), 0o644))

	_, _, err := Parse([]string{"-request", path}, &bytes.Buffer{})
	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 2, exitErr.Code)
	assert.Contains(t, exitErr.Message, "eyebrow")
}

func TestParse_FormatSpellingIsNormalized(t *testing.T) {
	path := filepath.Join(t.TempDir(), "request.hcl")
	require.NoError(t, os.WriteFile(path, []byte(`output_format = "WEBP"`), 0o644))

	cfg, _, err := Parse([]string{"-request", path}, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, media.FormatWebP, cfg.Request.OutputFormat)

	cfg, _, err = Parse([]string{"-output-format", "jpeg"}, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, media.FormatJPG, cfg.Request.OutputFormat)
}

func TestParse_RequestFileBadFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "request.hcl")
	require.NoError(t, os.WriteFile(path, []byte(`output_format = "gif"`), 0o644))

	_, _, err := Parse([]string{"-request", path}, &bytes.Buffer{})
	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 2, exitErr.Code)
}
