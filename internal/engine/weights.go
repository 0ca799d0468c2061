package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/specialistvlad/facerig/internal/ctxlog"
	"golang.org/x/sync/errgroup"
)

// WeightPath is where w is expected under the engine's models root.
func (c *Comfy) WeightPath(w Weight) string {
	return filepath.Join(c.opts.ModelsDir, w.Dir, w.Name)
}

// ResolveWeights makes sure every manifest entry exists on disk. Missing files
// are fetched from WeightsBaseURL when one is configured; otherwise they are
// reported as ErrMissingWeight. Any failure is a configuration error.
func (c *Comfy) ResolveWeights(ctx context.Context, manifest []Weight) error {
	logger := ctxlog.FromContext(ctx)

	var missing []Weight
	for _, w := range manifest {
		if w.Name == "" {
			return fmt.Errorf("%w: manifest entry without a name", ErrMissingWeight)
		}
		if _, err := os.Stat(c.WeightPath(w)); err == nil {
			logger.Debug("Weight present.", "weight", w.Name, "path", c.WeightPath(w))
			continue
		} else if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to check weight %s: %w", w.Name, err)
		}
		missing = append(missing, w)
	}

	if len(missing) == 0 {
		logger.Info("All weights resolved.", "count", len(manifest))
		return nil
	}
	if c.opts.WeightsBaseURL == "" {
		var names []string
		for _, w := range missing {
			names = append(names, w.Name)
		}
		return fmt.Errorf("%w: %s", ErrMissingWeight, strings.Join(names, ", "))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.DownloadConcurrency)
	for _, w := range missing {
		g.Go(func() error {
			return c.download(gctx, w)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	logger.Info("All weights resolved.", "count", len(manifest), "downloaded", len(missing))
	return nil
}

func (c *Comfy) download(ctx context.Context, w Weight) (err error) {
	logger := ctxlog.FromContext(ctx).With("weight", w.Name)
	src := strings.TrimRight(c.opts.WeightsBaseURL, "/") + "/" + w.Name
	dst := c.WeightPath(w)

	logger.Info("Downloading weight.", "url", src)

	res, err := c.http.R().
		SetContext(ctx).
		SetHeader("Accept", "*/*").
		SetDoNotParseResponse(true).
		Get(src)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMissingWeight, w.Name, err)
	}
	body := res.Body
	defer body.Close()

	if res.IsError() {
		return fmt.Errorf("%w: %s: download returned %s", ErrMissingWeight, w.Name, res.Status())
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("failed to prepare directory for weight %s: %w", w.Name, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+w.Name+".*")
	if err != nil {
		return fmt.Errorf("failed to create file for weight %s: %w", w.Name, err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	n, err := io.Copy(tmp, body)
	if err != nil {
		return fmt.Errorf("failed to download %s: %w", w.Name, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to write weight %s: %w", w.Name, err)
	}
	if err = os.Rename(tmp.Name(), dst); err != nil {
		return fmt.Errorf("failed to install weight %s: %w", w.Name, err)
	}

	logger.Info("Weight downloaded.", "path", dst, "bytes", n)
	return nil
}
