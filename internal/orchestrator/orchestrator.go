// Package orchestrator runs the request lifecycle: it prepares the engine
// once, then turns each request into delivered artifacts.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/specialistvlad/facerig/internal/ctxlog"
	"github.com/specialistvlad/facerig/internal/engine"
	"github.com/specialistvlad/facerig/internal/harvest"
	"github.com/specialistvlad/facerig/internal/media"
	"github.com/specialistvlad/facerig/internal/params"
	"github.com/specialistvlad/facerig/internal/stager"
	"github.com/specialistvlad/facerig/internal/workflow"
)

// Cleaner resets the working directories between requests.
type Cleaner interface {
	Cleanup(ctx context.Context) error
}

// Stager places the source image where the engine can read it.
type Stager interface {
	Stage(ctx context.Context, src string) (*stager.Asset, error)
}

// Binder produces a fresh engine graph for one request.
type Binder interface {
	Bind(set *params.Set, asset *stager.Asset) (workflow.Graph, error)
}

// Collector gathers the files an execution produced.
type Collector interface {
	Collect(ctx context.Context) ([]harvest.Artifact, error)
}

// Options holds the collaborators of a Predictor. All of them are required.
type Options struct {
	Workspace  Cleaner
	Stager     Stager
	Binder     Binder
	Engine     engine.Session
	Harvester  Collector
	Normalizer media.Normalizer
}

// Request is one facial-animation request.
type Request struct {
	// ImagePath is the source image. Empty means the request has no image.
	ImagePath     string
	Params        params.Set
	OutputFormat  media.Format
	OutputQuality int
}

// NewRequest returns a request with default controls and output settings.
func NewRequest(imagePath string) Request {
	return Request{
		ImagePath:     imagePath,
		Params:        params.Defaults(),
		OutputFormat:  media.DefaultFormat,
		OutputQuality: media.DefaultQuality,
	}
}

// Validate checks the controls and output settings of r.
func (r *Request) Validate() error {
	var errs []error
	if err := r.Params.Validate(); err != nil {
		errs = append(errs, err)
	}
	if _, err := media.ParseFormat(string(r.OutputFormat)); err != nil {
		errs = append(errs, err)
	}
	if err := media.CheckQuality(r.OutputQuality); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Predictor serves requests one at a time against a single engine session.
type Predictor struct {
	opts Options
}

// New returns a Predictor wired with opts.
func New(opts Options) (*Predictor, error) {
	var missing []string
	if opts.Workspace == nil {
		missing = append(missing, "workspace")
	}
	if opts.Stager == nil {
		missing = append(missing, "stager")
	}
	if opts.Binder == nil {
		missing = append(missing, "binder")
	}
	if opts.Engine == nil {
		missing = append(missing, "engine")
	}
	if opts.Harvester == nil {
		missing = append(missing, "harvester")
	}
	if opts.Normalizer == nil {
		missing = append(missing, "normalizer")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("predictor: missing collaborators %v", missing)
	}
	return &Predictor{opts: opts}, nil
}

// Setup connects to the engine and makes sure every weight in manifest is in
// place. It runs once before the first request; an error is fatal.
func (p *Predictor) Setup(ctx context.Context, manifest []engine.Weight) error {
	logger := ctxlog.FromContext(ctx)
	logger.Info("Preparing engine.", "weights", len(manifest))

	if err := p.opts.Engine.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to engine: %w", err)
	}
	if err := p.opts.Engine.ResolveWeights(ctx, manifest); err != nil {
		return fmt.Errorf("failed to resolve model weights: %w", err)
	}

	logger.Info("Engine ready.")
	return nil
}

// Predict runs one request and returns the delivered artifact paths. Any
// failure aborts the request; there is no partial result. An execution that
// produced no files returns an empty slice.
func (p *Predictor) Predict(ctx context.Context, req Request) ([]string, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}

	started := time.Now()
	ctx = ctxlog.With(ctx, "image", req.ImagePath)
	logger := ctxlog.FromContext(ctx)
	logger.Info("Request started.", "format", req.OutputFormat, "quality", req.OutputQuality)

	if err := p.opts.Workspace.Cleanup(ctx); err != nil {
		return nil, fmt.Errorf("failed to clean workspace: %w", err)
	}
	if err := p.opts.Engine.Connect(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to engine: %w", err)
	}

	asset, err := p.opts.Stager.Stage(ctx, req.ImagePath)
	if err != nil {
		return nil, fmt.Errorf("failed to stage image: %w", err)
	}
	if asset == nil {
		logger.Debug("No source image, staging skipped.")
	}

	graph, err := p.opts.Binder.Bind(&req.Params, asset)
	if err != nil {
		return nil, fmt.Errorf("failed to bind parameters: %w", err)
	}

	if err := p.opts.Engine.Execute(ctx, graph); err != nil {
		return nil, fmt.Errorf("engine execution failed: %w", err)
	}

	artifacts, err := p.opts.Harvester.Collect(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to collect outputs: %w", err)
	}
	if len(artifacts) == 0 {
		logger.Warn("Engine produced no output files.")
		return []string{}, nil
	}

	converted, err := p.opts.Normalizer.Convert(ctx, req.OutputFormat, req.OutputQuality, artifacts)
	if err != nil {
		return nil, fmt.Errorf("failed to normalize outputs: %w", err)
	}

	paths := make([]string, 0, len(converted))
	for _, a := range converted {
		paths = append(paths, a.FinalPath)
	}

	logger.Info("Request finished.", "artifacts", len(paths), "duration", time.Since(started))
	return paths, nil
}
