// Package workspace owns the three filesystem roots a prediction works in:
// the input staging root, the output root handed back to the caller, and the
// engine's scratch root where it writes raw results.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/specialistvlad/facerig/internal/ctxlog"
)

const dirPerm = 0o755

// Workspace holds the fixed directory roots for the process.
type Workspace struct {
	InputDir   string
	OutputDir  string
	ScratchDir string
}

// New returns a Workspace rooted at the given directories. All three must be
// set and distinct.
func New(inputDir, outputDir, scratchDir string) (*Workspace, error) {
	if inputDir == "" || outputDir == "" || scratchDir == "" {
		return nil, errors.New("workspace: input, output and scratch directories are required")
	}
	if inputDir == outputDir || inputDir == scratchDir || outputDir == scratchDir {
		return nil, fmt.Errorf("workspace: directories must be distinct (input=%q output=%q scratch=%q)", inputDir, outputDir, scratchDir)
	}
	return &Workspace{
		InputDir:   inputDir,
		OutputDir:  outputDir,
		ScratchDir: scratchDir,
	}, nil
}

// Dirs returns the roots in cleanup order.
func (w *Workspace) Dirs() []string {
	return []string{w.OutputDir, w.InputDir, w.ScratchDir}
}

// Cleanup removes every root recursively and creates it again, empty.
// Missing roots are simply created. Anything left between requests is lost.
func (w *Workspace) Cleanup(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)

	for _, dir := range w.Dirs() {
		if err := os.RemoveAll(dir); err != nil {
			return fmt.Errorf("failed to clear %s: %w", dir, err)
		}
		if err := os.MkdirAll(dir, dirPerm); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
		logger.Debug("Workspace root reset.", "dir", dir)
	}

	return nil
}
