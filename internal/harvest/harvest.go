// Package harvest collects the files an engine execution produced.
package harvest

import (
	"context"
	"fmt"

	"github.com/specialistvlad/facerig/internal/ctxlog"
)

// Artifact is one produced file. FinalPath is empty until the file has been
// normalized for delivery.
type Artifact struct {
	SourcePath string
	FinalPath  string
}

// Lister enumerates files under an engine scratch root.
type Lister interface {
	ListScratchFiles(ctx context.Context, root string) ([]string, error)
}

// Harvester turns a scratch root listing into artifacts.
type Harvester struct {
	lister Lister
	root   string
}

// New returns a Harvester reading root through lister.
func New(lister Lister, root string) *Harvester {
	return &Harvester{lister: lister, root: root}
}

// Collect returns one artifact per file in listing order. An execution that
// produced nothing yields an empty, non-nil slice.
func (h *Harvester) Collect(ctx context.Context) ([]Artifact, error) {
	files, err := h.lister.ListScratchFiles(ctx, h.root)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", h.root, err)
	}

	artifacts := make([]Artifact, 0, len(files))
	for _, f := range files {
		artifacts = append(artifacts, Artifact{SourcePath: f})
	}

	ctxlog.FromContext(ctx).Debug("Harvested engine outputs.", "root", h.root, "count", len(artifacts))
	return artifacts, nil
}
